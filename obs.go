// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.3
//

package gnsspos

import (
	"fmt"
	"strconv"
	"strings"
)

// Type representing satellite name like "G10"
type SatType string

// Type representing satellite system like 'G'
type SysType byte

// Extract satellite system from satellite name
func (p *SatType) Sys() SysType {
	if len(*p) == 0 {
		return 0
	}
	return SysType((*p)[0])
}

// Check validity of satellite system
func (p *SysType) IsValid() bool {
	return *p == 'G' || *p == 'J' || *p == 'E' || *p == 'R' || *p == 'C' || *p == 'S'
}

// Extract satellite number from satellite name
func (p *SatType) Num() int {
	if len(*p) < 3 {
		return 0
	}
	i, err := strconv.Atoi(strings.TrimSpace(string((*p)[1:3])))
	if err != nil {
		return 0
	}
	return i
}

// Only GPS observations are processed. Lines of other systems are
// dropped while reading the observation file.
func useSys(sys SysType) bool {
	return sys == 'G'
}

// Structure to store the observations of all satellites in one epoch.
// The per-satellite slices run in parallel: index i of each slice
// belongs to Sats[i]. A pseudorange below EPS means the measurement
// is missing for that satellite.
type ObsRecord struct {
	Time  GTime     // Receiver time
	Flag  int       // Receiver status flag
	NSat  int       // Declared satellite count (retained lines may be fewer)
	Sats  []SatType // Satellite names
	PrC1C []float64 // C1C pseudorange [m]
	PrC2P []float64 // C2P pseudorange [m]
	CpL1C []float64 // L1C carrier phase [cycle]
	CpL2P []float64 // L2P carrier phase [cycle]
}

// Append the observations of one satellite keeping the slices parallel
func (p *ObsRecord) add(sat SatType, c1c, c2p, l1c, l2p float64) {
	p.Sats = append(p.Sats, sat)
	p.PrC1C = append(p.PrC1C, c1c)
	p.PrC2P = append(p.PrC2P, c2p)
	p.CpL1C = append(p.CpL1C, l1c)
	p.CpL2P = append(p.CpL2P, l2p)
}

// Structure to store the observation file header
type ObsHeader struct {
	Lines     []string // Header lines kept verbatim
	ApproxPos PosXYZ   // Approximate station position from APPROX POSITION XYZ
	HasApprox bool
}

// Structure to store observation data for all epochs
type Obs struct {
	Header ObsHeader
	Recs   []*ObsRecord // Sorted in file order
}

// Display observation data overview
func (p *Obs) String() string {
	if len(p.Recs) == 0 {
		return "NO DATA"
	}
	var sb strings.Builder
	st := p.Recs[0].Time
	et := p.Recs[len(p.Recs)-1].Time
	sb.WriteString(fmt.Sprintf("datetime:\n\t%s - %s (%d)\n",
		st.ToTime().UTC().Format("2006/01/02 15:04:05.000"),
		et.ToTime().UTC().Format("2006/01/02 15:04:05.000"), len(p.Recs)))
	sats := map[SatType]bool{}
	for _, rec := range p.Recs {
		for _, sat := range rec.Sats {
			sats[sat] = true
		}
	}
	keys := make([]SatType, 0, len(sats))
	for k := range sats {
		keys = append(keys, k)
	}
	sb.WriteString(fmt.Sprintf("sats (%d):", len(keys)))
	for _, sat := range Sorted(keys) {
		sb.WriteString(fmt.Sprintf(" %s", sat))
	}
	sb.WriteString("\n")
	return sb.String()
}
