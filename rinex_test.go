// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.3
//

package gnsspos

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"
)

// Build a header line with the label starting at column 60
func headerLine(body, label string) string {
	return fmt.Sprintf("%-60s%s", body, label)
}

// Build an epoch header line of the fixed-column observation format
func epochLine(year, month, day, hour, min int, sec float64, flag, nsat int) string {
	return fmt.Sprintf(" %5d%3d%3d%3d%3d%11.7f%3d%3d", year, month, day, hour, min, sec, flag, nsat)
}

// Build a satellite observation line of the fixed-column format
func satLine(sat string, c1c, c2p, l1c, l2p float64) string {
	return fmt.Sprintf("%-3s%14.3f  %14.3f%s%14.3f  %14.3f",
		sat, c1c, c2p, strings.Repeat(" ", 18), l1c, l2p)
}

func TestReadObs(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(headerLine("     3.04           OBSERVATION DATA    M", "RINEX VERSION / TYPE") + "\n")
	sb.WriteString(headerLine(fmt.Sprintf(" %13.4f %13.4f %13.4f", -3947762.7496, 3364399.8789, 3699428.5111), "APPROX POSITION XYZ") + "\n")
	sb.WriteString(headerLine("", "END OF HEADER") + "\n")
	sb.WriteString(epochLine(2023, 5, 30, 12, 0, 30.0, 0, 4) + "\n")
	sb.WriteString(satLine("G05", 21234567.123, 21234570.456, 111576432.1, 86950321.5) + "\n")
	sb.WriteString(satLine("R10", 23456789.012, 23456792.345, 125381234.0, 97518765.4) + "\n")
	sb.WriteString(satLine("G12", 0.0, 22345681.234, 117415678.9, 91501234.5) + "\n")
	sb.WriteString(satLine("G20", 24123456.789, 24123460.012, 126777890.1, 98802345.6) + "\n")
	sb.WriteString(epochLine(2023, 5, 30, 12, 0, 31.0, 0, 1) + "\n")
	sb.WriteString(satLine("G05", 21234570.321, 21234573.654, 111576448.9, 86950334.6) + "\n")
	sb.WriteString("\n")
	// Data after the first blank line must be ignored
	sb.WriteString(epochLine(2023, 5, 30, 12, 0, 32.0, 0, 1) + "\n")
	sb.WriteString(satLine("G05", 21234573.519, 21234576.852, 111576465.7, 86950347.7) + "\n")

	obs, err := ReadObs(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("ReadObs() failed: %v", err)
	}

	if len(obs.Header.Lines) != 3 {
		t.Fatalf("expected 3 header lines, got %d", len(obs.Header.Lines))
	}
	if !obs.Header.HasApprox {
		t.Fatalf("expected approximate position in header")
	}
	if math.Abs(obs.Header.ApproxPos.X+3947762.7496) > 1e-4 ||
		math.Abs(obs.Header.ApproxPos.Y-3364399.8789) > 1e-4 ||
		math.Abs(obs.Header.ApproxPos.Z-3699428.5111) > 1e-4 {
		t.Fatalf("wrong approximate position: %+v", obs.Header.ApproxPos)
	}

	if len(obs.Recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(obs.Recs))
	}

	rec := obs.Recs[0]
	want := NewGTime(time.Date(2023, 5, 30, 12, 0, 30, 0, time.UTC))
	if rec.Time != *want {
		t.Fatalf("wrong epoch time: %+v vs %+v", rec.Time, *want)
	}
	if rec.Flag != 0 {
		t.Fatalf("wrong status flag: %d", rec.Flag)
	}

	// The GLONASS line must be dropped while the declared count stays
	if rec.NSat != 4 {
		t.Fatalf("expected declared count 4, got %d", rec.NSat)
	}
	if len(rec.Sats) != 3 {
		t.Fatalf("expected 3 retained satellites, got %d (%v)", len(rec.Sats), rec.Sats)
	}
	if rec.Sats[0] != "G05" || rec.Sats[1] != "G12" || rec.Sats[2] != "G20" {
		t.Fatalf("wrong satellites: %v", rec.Sats)
	}

	// Parallel slices must stay the same length
	if len(rec.PrC1C) != 3 || len(rec.PrC2P) != 3 || len(rec.CpL1C) != 3 || len(rec.CpL2P) != 3 {
		t.Fatalf("parallel slices out of sync")
	}

	if math.Abs(rec.PrC1C[0]-21234567.123) > 1e-3 {
		t.Fatalf("wrong C1C for G05: %f", rec.PrC1C[0])
	}
	if math.Abs(rec.CpL2P[2]-98802345.6) > 1e-3 {
		t.Fatalf("wrong L2P for G20: %f", rec.CpL2P[2])
	}

	// A zero pseudorange marks a missing measurement, not an error
	if rec.PrC1C[1] >= EPS {
		t.Fatalf("expected missing C1C for G12, got %f", rec.PrC1C[1])
	}
}

func TestReadObsShortRead(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(headerLine("", "END OF HEADER") + "\n")
	// Declared count 3, but only 2 lines present before EOF
	sb.WriteString(epochLine(2023, 5, 30, 12, 1, 0.0, 0, 3) + "\n")
	sb.WriteString(satLine("G05", 21234567.123, 0, 0, 0) + "\n")
	sb.WriteString(satLine("G12", 22345678.901, 0, 0, 0) + "\n")

	obs, err := ReadObs(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("ReadObs() failed: %v", err)
	}
	if len(obs.Recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(obs.Recs))
	}
	rec := obs.Recs[0]
	if rec.NSat != 3 || len(rec.Sats) != 2 {
		t.Fatalf("expected a tolerated short read, got declared %d retained %d", rec.NSat, len(rec.Sats))
	}
}

func TestReadObsBadEpochLine(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(headerLine("", "END OF HEADER") + "\n")
	sb.WriteString("garbage line\n")
	if _, err := ReadObs(strings.NewReader(sb.String())); err == nil {
		t.Fatalf("expected error for malformed epoch line")
	}
}

// Build the first line of one GPS navigation record
func navEpochLine(sat SatType, dt time.Time, af0, af1, af2 float64) string {
	return fmt.Sprintf("G%02d %s%19.12E%19.12E%19.12E",
		sat.Num(), dt.Format("2006 01 02 15 04 05"), af0, af1, af2)
}

// Build one continuation line of a navigation record
func navDataLine(v0, v1, v2, v3 float64) string {
	return fmt.Sprintf("    %19.12E%19.12E%19.12E%19.12E", v0, v1, v2, v3)
}

func TestReadNav(t *testing.T) {
	toc := time.Date(2023, 5, 30, 12, 0, 0, 0, time.UTC)
	gt := NewGTime(toc)

	var sb strings.Builder
	sb.WriteString(headerLine("     3.04           N: GNSS NAV DATA    G: GPS", "RINEX VERSION / TYPE") + "\n")
	sb.WriteString(headerLine("", "END OF HEADER") + "\n")
	sb.WriteString(navEpochLine("G05", toc, 1.5e-4, 2.0e-12, 0) + "\n")
	sb.WriteString(navDataLine(61, 87.4, 4.3e-9, 1.2) + "\n")                      // iode, crs, deltan, m0
	sb.WriteString(navDataLine(4.5e-6, 0.011, 8.1e-6, 5153.6) + "\n")              // cuc, ecc, cus, sqrta
	sb.WriteString(navDataLine(gt.Sec, 1.0e-7, 0.95, -2.0e-7) + "\n")              // toe, cic, omega0, cis
	sb.WriteString(navDataLine(0.96, 210.8, -1.4, -8.0e-9) + "\n")                 // i0, crc, omega, omegadot
	sb.WriteString(navDataLine(4.0e-10, 1, float64(gt.Week), 0) + "\n")            // idot, codes, week, flag
	sb.WriteString(navDataLine(2.0, 0, 4.6e-9, 61) + "\n")                         // sva, svh, tgd, iodc
	sb.WriteString(navDataLine(gt.Sec-3600, 4, 0, 0) + "\n")                       // tot, fit
	sb.WriteString(fmt.Sprintf("R10 %s%19.12E%19.12E%19.12E", toc.Format("2006 01 02 15 04 05"), 1e-5, 0.0, 10800.0) + "\n")
	sb.WriteString(navDataLine(11234.5, 1.2, 0, 0) + "\n")
	sb.WriteString(navDataLine(-9876.5, -0.4, 0, 5.0) + "\n")
	sb.WriteString(navDataLine(20123.4, 2.2, 0, 0) + "\n")

	nav, err := ReadNav(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("ReadNav() failed: %v", err)
	}

	if len(*nav) != 1 {
		t.Fatalf("expected only the GPS record, got %d satellites", len(*nav))
	}
	ephs, ok := (*nav)["G05"]
	if !ok || len(ephs) != 1 {
		t.Fatalf("expected one record for G05")
	}
	eph := ephs[0]
	if eph.Toc != *gt {
		t.Fatalf("wrong Toc: %+v vs %+v", eph.Toc, *gt)
	}
	if math.Abs(eph.Af0-1.5e-4) > 1e-18 || math.Abs(eph.Af1-2.0e-12) > 1e-24 {
		t.Fatalf("wrong clock coefficients: %g %g", eph.Af0, eph.Af1)
	}
	if math.Abs(eph.SqrtA-5153.6) > 1e-6 || math.Abs(eph.Ecc-0.011) > 1e-12 {
		t.Fatalf("wrong orbit elements: sqrta=%f ecc=%f", eph.SqrtA, eph.Ecc)
	}
	if eph.Week != gt.Week || eph.Toe.Week != gt.Week || math.Abs(eph.Toe.Sec-gt.Sec) > 1e-6 {
		t.Fatalf("wrong Toe: week=%d %+v", eph.Week, eph.Toe)
	}
	if eph.Svh != 0 {
		t.Fatalf("wrong Svh: %d", eph.Svh)
	}
	if eph.OmgEDot != OMGE {
		t.Fatalf("wrong Earth rotation rate: %g", eph.OmgEDot)
	}
}

func TestReadNavRejectsObsFile(t *testing.T) {
	s := headerLine("     3.04           OBSERVATION DATA    M", "RINEX VERSION / TYPE") + "\n"
	if _, err := ReadNav(strings.NewReader(s)); err == nil {
		t.Fatalf("expected error for a non-navigation file")
	}
}
