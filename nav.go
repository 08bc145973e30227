// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.3
//

package gnsspos

import (
	"fmt"
	"strings"
)

// Structure to store ephemeris (navigation data for one satellite, one issue)
type Ephe struct {
	Sat SatType
	Toc GTime // Reference time for satellite clock error correction
	Toe GTime // Reference time for satellite orbit calculation

	// Clock correction polynomial coefficients
	Af0 float64
	Af1 float64
	Af2 float64

	// Orbital elements
	Crs    float64
	DeltaN float64
	M0     float64
	Cuc    float64
	Ecc    float64
	Cus    float64
	SqrtA  float64
	Cic    float64
	Omega0 float64
	Cis    float64
	I0     float64
	Crc    float64
	Omega  float64
	OmegaD float64
	Idot   float64

	Week int
	Svh  int

	// Earth rotation rate used for the transit-time correction
	OmgEDot float64
}

func (e *Ephe) String() string {
	str := ""
	str += fmt.Sprintf("### Nav. for %s (%c, %d)\n", e.Sat, e.Sat.Sys(), e.Sat.Num())
	str += fmt.Sprintf("    Toc: %v (%v)\n", e.Toc.ToTime().UTC(), e.Toc)
	str += fmt.Sprintf("    Toe: %v (%v)\n", e.Toe.ToTime().UTC(), e.Toe)
	str += fmt.Sprintf("    Af0: %v\n", e.Af0)
	str += fmt.Sprintf("    Af1: %v\n", e.Af1)
	str += fmt.Sprintf("    Af2: %v\n", e.Af2)
	str += fmt.Sprintf("    Crs: %v\n", e.Crs)
	str += fmt.Sprintf(" DeltaN: %v\n", e.DeltaN)
	str += fmt.Sprintf("     M0: %v\n", e.M0)
	str += fmt.Sprintf("    Cuc: %v\n", e.Cuc)
	str += fmt.Sprintf("    Ecc: %v\n", e.Ecc)
	str += fmt.Sprintf("    Cus: %v\n", e.Cus)
	str += fmt.Sprintf("  SqrtA: %v\n", e.SqrtA)
	str += fmt.Sprintf("    Cic: %v\n", e.Cic)
	str += fmt.Sprintf(" Omega0: %v\n", e.Omega0)
	str += fmt.Sprintf("    Cis: %v\n", e.Cis)
	str += fmt.Sprintf("     I0: %v\n", e.I0)
	str += fmt.Sprintf("    Crc: %v\n", e.Crc)
	str += fmt.Sprintf("  Omega: %v\n", e.Omega)
	str += fmt.Sprintf(" OmegaD: %v\n", e.OmegaD)
	str += fmt.Sprintf("   Idot: %v\n", e.Idot)
	str += fmt.Sprintf("   Week: %v\n", e.Week)
	str += fmt.Sprintf("    Svh: %v\n", e.Svh)
	return str
}

// Satellite clock correction at the given transmission time (seconds of week)
// - dts = a0 + a1 dt + a2 dt^2, dt = sow - Toc
func (e *Ephe) ClockCorr(sow float64) float64 {
	dt := wrapSow(sow - e.Toc.Sec)
	return e.Af0 + e.Af1*dt + e.Af2*dt*dt
}

// Wrap a seconds-of-week difference into [-302400, 302400]
func wrapSow(dt float64) float64 {
	if dt > 302400 {
		dt -= 604800
	} else if dt < -302400 {
		dt += 604800
	}
	return dt
}

// Source of ephemeris records for the position solver.
// FindEphe returns the record temporally closest to the given time for
// the satellite, or an error when none exists.
type EpheSource interface {
	FindEphe(sat SatType, gt GTime) (*Ephe, error)
}

// Maximum allowed age of an ephemeris relative to its Toc [s]
// (1 second buffer is set to handle rounding errors)
const MAX_DTOC = 7201.0

// Structure to store navigation data for each satellite at each time
// - Map with satellite name as Key and slice sorted by Toc in ascending order as Value
type Nav map[SatType][]*Ephe

// Select the ephemeris closest in time to the specified time
func (nav *Nav) FindEphe(sat SatType, gt GTime) (*Ephe, error) {
	navs, ok := (*nav)[sat]
	if !ok {
		return nil, fmt.Errorf("can't find %s", sat)
	}
	diffMin := MAX_DTOC
	j := -1
	for i, eph := range navs {
		diff := gt.Diff(eph.Toc)
		if diff < 0 {
			diff = -diff
		}
		if diff < diffMin {
			diffMin = diff
			j = i
		}
	}
	if j < 0 {
		return nil, fmt.Errorf("can't find a valid ephemeris for %s", sat)
	}
	return navs[j], nil
}

// Display navigation data overview
func (p *Nav) String() string {
	keys := []SatType{}
	for k := range *p {
		keys = append(keys, k)
	}
	keys = Sorted(keys)
	var sb strings.Builder
	sb.WriteString("toc:\n")
	for _, sat := range keys {
		sb.WriteString(fmt.Sprintf("\t%s: ", sat))
		if len((*p)[sat]) > 0 {
			st := (*p)[sat][0].Toc
			et := (*p)[sat][len((*p)[sat])-1].Toc
			sb.WriteString(fmt.Sprintf("%s - %s (%d)\n",
				st.ToTime().UTC().Format("2006/01/02 15:04:05.000"), et.ToTime().UTC().Format("2006/01/02 15:04:05.000"), len((*p)[sat])))
		} else {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
