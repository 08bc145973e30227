// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.3
//

package gnsspos

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ------------------------------------
// Observation data
// ------------------------------------

// One fixed-width field of the observation file, addressed by column offset
type colField struct {
	off   int
	width int
}

// Extract the field from a line, tolerating short lines
func (f colField) cut(l string) string {
	if len(l) <= f.off {
		return ""
	}
	end := f.off + f.width
	if end > len(l) {
		end = len(l)
	}
	return strings.TrimSpace(l[f.off:end])
}

func (f colField) float(l string) float64 {
	v, err := strconv.ParseFloat(f.cut(l), 64)
	if err != nil {
		return 0 // A blank or unreadable observable counts as missing
	}
	return v
}

func (f colField) int(l string) (int, error) {
	v, err := strconv.Atoi(f.cut(l))
	if err != nil {
		return 0, fmt.Errorf("can't read integer field at column %d: %q", f.off, f.cut(l))
	}
	return v, nil
}

// Column layout of the observation file
var (
	// Approximate station position in the APPROX POSITION XYZ header line
	approxPosFields = [3]colField{{1, 13}, {15, 13}, {29, 13}}

	// Epoch header line
	epochYearField = colField{1, 5}
	epochMonField  = colField{6, 3}
	epochDayField  = colField{9, 3}
	epochHourField = colField{12, 3}
	epochMinField  = colField{15, 3}
	epochSecField  = colField{18, 11}
	epochFlagField = colField{29, 3}
	epochNSatField = colField{32, 3}

	// Satellite line: name, then C1C, C2P, L1C, L2P observables
	satNameField = colField{0, 3}
	satObsFields = [4]colField{{3, 14}, {19, 14}, {51, 14}, {67, 14}}
)

// Extract HEADER LABEL string from observation data file header line
func getHeaderLabel(l string) string {
	if len(l) < 60 {
		return ""
	}
	return strings.TrimSpace(l[60:])
}

// Read the date and time from an epoch header line
func getEpochTime(l string) (GTime, error) {
	year, err := epochYearField.int(l)
	if err != nil {
		return GTime{}, err
	}
	month, err := epochMonField.int(l)
	if err != nil {
		return GTime{}, err
	}
	day, err := epochDayField.int(l)
	if err != nil {
		return GTime{}, err
	}
	hour, err := epochHourField.int(l)
	if err != nil {
		return GTime{}, err
	}
	min, err := epochMinField.int(l)
	if err != nil {
		return GTime{}, err
	}
	sec, err := strconv.ParseFloat(epochSecField.cut(l), 64)
	if err != nil {
		return GTime{}, fmt.Errorf("can't read seconds field: %q", epochSecField.cut(l))
	}
	s := int(sec)
	ns := int((sec - float64(s)) * 1e9)
	return *NewGTime(time.Date(year, time.Month(month), day, hour, min, s, ns, time.UTC)), nil
}

// Read observation data
// - Header lines are accumulated verbatim until the END OF HEADER label.
// - Only GPS satellite lines are retained; lines of other systems are
//   skipped, so a record may hold fewer satellites than declared.
// - Reading stops at the first blank line.
func ReadObs(r io.Reader) (*Obs, error) {

	obs := &Obs{}
	s := bufio.NewScanner(r)

	// Process header lines
	for s.Scan() {
		line := s.Text()
		obs.Header.Lines = append(obs.Header.Lines, line)
		label := getHeaderLabel(line)
		if label == "END OF HEADER" {
			break
		}
		if label == "APPROX POSITION XYZ" {
			obs.Header.ApproxPos = PosXYZ{
				X: approxPosFields[0].float(line),
				Y: approxPosFields[1].float(line),
				Z: approxPosFields[2].float(line),
			}
			obs.Header.HasApprox = true
		}
	}

	// Process epoch records
	for s.Scan() {
		line := s.Text()
		if strings.TrimSpace(line) == "" {
			break
		}

		rec := &ObsRecord{}
		t, err := getEpochTime(line)
		if err != nil {
			return nil, fmt.Errorf("invalid epoch header line: %w", err)
		}
		rec.Time = t
		rec.Flag, err = epochFlagField.int(line)
		if err != nil {
			return nil, fmt.Errorf("invalid epoch header line: %w", err)
		}
		rec.NSat, err = epochNSatField.int(line)
		if err != nil {
			return nil, fmt.Errorf("invalid epoch header line: %w", err)
		}

		// The declared count may exceed the available lines; a short
		// read is tolerated.
		for i := 0; i < rec.NSat && s.Scan(); i++ {
			line = s.Text()
			sat := SatType(satNameField.cut(line))
			if !useSys(sat.Sys()) {
				continue
			}
			rec.add(sat,
				satObsFields[0].float(line),
				satObsFields[1].float(line),
				satObsFields[2].float(line),
				satObsFields[3].float(line))
		}

		obs.Recs = append(obs.Recs, rec)
	}

	if err := s.Err(); err != nil {
		return nil, err
	}

	return obs, nil
}

// ------------------------------------
// Navigation data (RINEX 3.0x, GPS)
// ------------------------------------

// Read satellite name and ToC from navigation data epoch line
func getNavTime(l string) (gt GTime, sat SatType, err error) {
	m := regexp.MustCompile(`^G([0-9 ][0-9]) (\d{4}) ([ \d]{2}) ([ \d]{2}) ([ \d]{2}) ([ \d]{2}) ([ \d]{2})`)
	ms := m.FindAllStringSubmatch(l, -1)
	if ms == nil {
		return gt, sat, fmt.Errorf("regexp match failed. l=%s", l)
	}
	num, err := strconv.ParseInt(strings.TrimSpace(ms[0][1]), 10, 0)
	if err != nil {
		return gt, sat, err
	}
	sat = SatType(fmt.Sprintf("G%02d", num))
	var f [6]int64
	for i := 0; i < 6; i++ {
		f[i], err = strconv.ParseInt(strings.TrimSpace(ms[0][i+2]), 10, 0)
		if err != nil {
			return gt, sat, err
		}
	}
	gt = *NewGTime(time.Date(int(f[0]), time.Month(f[1]), int(f[2]), int(f[3]), int(f[4]), int(f[5]), 0, time.UTC))
	return
}

// Read navigation data
// - Only GPS records are retained; other systems are skipped.
func ReadNav(r io.Reader) (*Nav, error) {

	headerDone := false
	nav := Nav{}

	// Variable to hold ephemeris information during reading
	var eph *Ephe

	// Current line number being read, counted from satellite name and ToC line
	var lineCount int

	// Matches the broadcast orbit continuation lines
	valLine := regexp.MustCompile(`[- +\d]{2}\.\d{12}[DE][-+]\d{2}`)

	s := bufio.NewScanner(r)
	for s.Scan() {
		line := s.Text()

		// Process header lines
		if !headerDone {
			if getHeaderLabel(line) == "RINEX VERSION / TYPE" {
				ver := line[5:9]
				if ver != "3.02" && ver != "3.04" {
					return nil, fmt.Errorf("unsupported RINEX version. RINEX version must be ether 3.02 or 3.04 (ver=%s)", ver)
				}
				typ := line[20:21]
				if typ != "N" {
					return nil, fmt.Errorf("not a navigation message file (typ=%s)", typ)
				}
			}
			if getHeaderLabel(line) == "END OF HEADER" {
				headerDone = true
			}
			continue
		}

		// Process navigation message lines
		if !valLine.MatchString(line) {
			continue
		}

		switch line[:1] {
		case "G":
			if len(line) >= 80 {
				eph = &Ephe{OmgEDot: OMGE}
				var err error
				eph.Toc, eph.Sat, err = getNavTime(line)
				if err != nil {
					return nil, fmt.Errorf("failed to read time of clock in navigation message. err=%s", err.Error())
				}
				eph.Af0 = parseFloat(line[23:42])
				eph.Af1 = parseFloat(line[42:61])
				eph.Af2 = parseFloat(line[61:80])
				lineCount = 0
			}
		case " ":
			if eph == nil {
				continue // Continuation line of a skipped system
			}
			if len(line) < 80 {
				line = line + strings.Repeat(" ", 80-len(line))
			}
			v0 := parseFloat(line[4:23])
			v1 := parseFloat(line[23:42])
			v2 := parseFloat(line[42:61])
			v3 := parseFloat(line[61:80])
			lineCount += 1
			switch lineCount {
			case 1:
				eph.Crs = v1
				eph.DeltaN = v2
				eph.M0 = v3
			case 2:
				eph.Cuc = v0
				eph.Ecc = v1
				eph.Cus = v2
				eph.SqrtA = v3
			case 3:
				eph.Toe = GTime{Week: eph.Toc.Week, Sec: v0} // The value of Week has not been read yet, so it is temporarily filled.
				eph.Cic = v1
				eph.Omega0 = v2
				eph.Cis = v3
			case 4:
				eph.I0 = v0
				eph.Crc = v1
				eph.Omega = v2
				eph.OmegaD = v3
			case 5:
				eph.Idot = v0
				eph.Week = int(v2)
				eph.Toe.Week = eph.Week
				if eph.Toe.Sec-eph.Toc.Sec < -302400 {
					eph.Toe.Sec += 604800
				} else if eph.Toe.Sec-eph.Toc.Sec > 302400 {
					eph.Toe.Sec -= 604800
				}
			case 6:
				eph.Svh = int(v1)
			case 7:
				nav[eph.Sat] = append(nav[eph.Sat], eph)
				eph = nil
			}
		default:
			// Record of another satellite system: skip its
			// continuation lines as well.
			eph = nil
		}
	}

	if err := s.Err(); err != nil {
		return nil, err
	}

	// Sort by clock reference time
	for k, v := range nav {
		if len(v) > 1 {
			sort.Slice(nav[k], func(i, j int) bool { return nav[k][i].Toc.Less(nav[k][j].Toc, false) })
		}
	}

	return &nav, nil
}

// Read real values by absorbing variations in exponential notation within RINEX files
func parseFloat(str string) float64 {
	s := strings.TrimSpace(str)
	if strings.ContainsAny(s, "Dd") {
		s = strings.Replace(s, "D", "E", 1)
		s = strings.Replace(s, "d", "e", 1)
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
