// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.3
//

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	m "github.com/obslab/gnsspos"
)

func main() {

	// Parse command line arguments
	args, err := parseArgs()
	if err != nil {
		m.PrintE(err)
		flag.Usage()
		os.Exit(1)
	}

	// Run the main application
	if err := runApplication(args); err != nil {
		m.PrintE(err)
		os.Exit(1)
	}
}

// Main application processing
func runApplication(args cmdOpt) error {

	// Load input files
	obs, nav, err := loadInputFiles(args)
	if err != nil {
		return fmt.Errorf("failed to load input files: %w", err)
	}

	if m.DBG_ >= 1 {
		m.PrintA("--- obs data (%s)---\n", filepath.Base(args.obsFn))
		fmt.Println(obs)
	}
	if m.DBG_ >= 2 {
		m.PrintA("--- nav data (%s)---\n", filepath.Base(args.navFn))
		fmt.Println(nav)
	}

	// Determine the approximate station position
	approx, err := approxPosition(args, obs)
	if err != nil {
		return err
	}

	// Prepare output file
	pos, err := prepareOutput(args)
	if err != nil {
		return fmt.Errorf("failed to prepare output: %w", err)
	}
	defer closeOutput(pos)

	// Print header
	if !args.noPosHeader {
		printPosHeader(pos, os.Args[0], args.obsFn, args.navFn, approx)
	}

	// Process epochs
	return processEpochs(args, obs, nav, approx, pos)
}

// Load input files
func loadInputFiles(args cmdOpt) (*m.Obs, *m.Nav, error) {

	obs, err := readObs(args.obsFn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read observation file: %w", err)
	}

	nav, err := readNav(args.navFn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read navigation file: %w", err)
	}

	return obs, nav, nil
}

// Determine the approximate station position from the command line or the
// observation file header
func approxPosition(args cmdOpt, obs *m.Obs) (m.PosXYZ, error) {
	if args.approxSet {
		return args.approxPos.ToXYZ(), nil
	}
	if obs.Header.HasApprox {
		return obs.Header.ApproxPos, nil
	}
	return m.PosXYZ{}, fmt.Errorf("no approximate position. the obs file has no APPROX POSITION XYZ line, so specify one with the -l option")
}

// Prepare output file
func prepareOutput(args cmdOpt) (io.WriteCloser, error) {

	// Use stdout if no output file is specified
	if len(args.posFn) == 0 {
		return &nopCloser{os.Stdout}, nil
	}

	// Create output file
	posf, err := os.Create(args.posFn)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return posf, nil
}

// Close output file
func closeOutput(pos io.WriteCloser) {
	if pos != nil {
		pos.Close()
	}
}

// Process epochs. A failed epoch is reported and skipped; the remaining
// epochs are processed independently.
func processEpochs(args cmdOpt, obs *m.Obs, nav *m.Nav, approx m.PosXYZ, pos io.Writer) error {

	nOk := 0
	nFail := map[string]int{}

	for _, rec := range obs.Recs {
		if !shouldProcessEpoch(rec, args) {
			continue
		}

		m.PrintD(2, "\n>>> %s\n", rec.Time.ToTime().UTC())

		sol, err := m.CalcPos(rec, nav, approx, args.opt)
		if err != nil {
			nFail[failureClass(err)]++
			m.PrintB(rec.Time, "Error processing epoch: %s\n", err.Error())
			continue
		}

		nOk++
		printPos(rec.Time, sol, pos)
	}

	for class, n := range nFail {
		m.PrintD(1, "failed epochs (%s): %d\n", class, n)
	}
	m.PrintD(1, "processed epochs: %d\n", nOk)

	return nil
}

// Filter epochs
func shouldProcessEpoch(rec *m.ObsRecord, args cmdOpt) bool {

	// Skip epochs before processing start time
	if rec.Time.Before(args.ts, true) {
		return false
	}

	// Stop after processing end time
	if rec.Time.After(args.te, true) {
		return false
	}

	return true
}

// nopCloser - WriteCloser that ignores close operations
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// Structure to hold command line argument information
type cmdOpt struct {
	obsFn       string
	navFn       string
	posFn       string
	optFn       string
	ts, te      time.Time
	noPosHeader bool
	approxPos   m.PosLLH
	approxSet   bool
	opt         *m.PosOpt
}

// Parse command line arguments
func parseArgs() (a cmdOpt, err error) {
	flag.Usage = func() {
		m.PrintA(`
[Usage]
	%s [Options] station.obs nav_file.nav

[Options]
`, filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	a.opt = m.NewPosOpt()
	var ts_, te_ m.TimeStr
	flag.TextVar(&ts_, "ts", m.NewTimeStr(time.Time{}), "Start epoch specification. Enclose in quotes like -ts \"2023/01/01 00:00:00\"")
	flag.TextVar(&te_, "te", m.NewTimeStr(time.Now().UTC()), "End epoch specification. Enclose in quotes like -te \"2023/01/02 00:00:00\". This epoch is also included.")
	flag.StringVar(&a.posFn, "o", "", "Output pos file path. If not specified, output to stdout.")
	flag.StringVar(&a.optFn, "c", "", "Calculation options file (YAML). Values given by other options take precedence.")
	flag.BoolVar(&a.noPosHeader, "nh", false, "Do not output header section of pos file.")
	var exSats m.SatVar
	flag.Var(&exSats, "ex", "List of satellites to exclude. Comma-separated satellite names without spaces like G02,G14.")
	elMask := flag.Float64("m", a.opt.CutoffElev, "Elevation cutoff [deg].")
	var approxLLH m.PosLLH
	flag.Var(&approxLLH, "l", "Approximate station latitude/longitude/ellipsoidal height, overriding the obs file header. Enclose in quotes like -l \"35.73101206 139.7396917 80.33\"")
	var dbg int
	flag.IntVar(&dbg, "x", 0, "Debug information display. Specify level value. 0(OFF), 1(display), 2(detailed display), 3(more detailed), 4(most detailed)")
	flag.Parse()

	if flag.NArg() != 2 {
		return a, fmt.Errorf("too less or many arguments")
	}
	a.obsFn = flag.Arg(0)
	a.navFn = flag.Arg(1)
	a.ts = time.Time(ts_)
	a.te = time.Time(te_)
	m.DBG_ = dbg

	// Load the options file first, then apply explicitly given flags on
	// top of it
	if a.optFn != "" {
		if err := loadPosOpt(a.optFn, a.opt); err != nil {
			return a, err
		}
	}
	given := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { given[f.Name] = true })
	if given["m"] {
		a.opt.CutoffElev = *elMask
	}
	if given["ex"] {
		a.opt.ExSats = exSats
	}
	if given["l"] {
		a.approxPos = approxLLH
		a.approxSet = true
	}
	return
}

// Read calculation options from a YAML file
func loadPosOpt(fn string, opt *m.PosOpt) error {
	b, err := os.ReadFile(fn)
	if err != nil {
		return fmt.Errorf("failed to read options file: %w", err)
	}
	if err := yaml.Unmarshal(b, opt); err != nil {
		return fmt.Errorf("failed to parse options file %s: %w", fn, err)
	}
	return nil
}

// Read observation file
func readObs(fn string) (*m.Obs, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	obs, err := m.ReadObs(f)
	if err != nil {
		return nil, err
	}
	return obs, nil
}

// Read navigation file
func readNav(fn string) (*m.Nav, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	nav, err := m.ReadNav(f)
	if err != nil {
		return nil, err
	}
	return nav, nil
}

// Print pos file header
func printPosHeader(pos io.Writer, cmd, obsFn, navFn string, approx m.PosXYZ) {
	fmt.Fprintf(pos, "%% program   : %s\n", filepath.Base(cmd))
	fmt.Fprintf(pos, "%% inp file  : %s\n", obsFn)
	fmt.Fprintf(pos, "%% inp file  : %s\n", navFn)
	llh := approx.ToLLH()
	fmt.Fprintf(pos, "%% appr pos  : %.8f %.8f %.3f\n", m.ToDeg(llh.Lat), m.ToDeg(llh.Lon), llh.Hei)
	fmt.Fprintf(pos, "%%  GPST                 latitude(deg) longitude(deg)  height(m)           x(m)           y(m)           z(m)  ns      clk_bias(s) loops\n")
}

// Output one result line
func printPos(rcvt m.GTime, sol *m.PosSol, pos io.Writer) {
	llh := sol.Pos.ToLLH()
	rcvtStr := rcvt.ToTime().UTC().Format("2006/01/02 15:04:05.000")
	fmt.Fprintf(pos, "%s %13.9f %14.9f %10.4f %14.4f %14.4f %14.4f %3d %16.12f %5d\n",
		rcvtStr, m.ToDeg(llh.Lat), m.ToDeg(llh.Lon), llh.Hei,
		sol.Pos.X, sol.Pos.Y, sol.Pos.Z, len(sol.Sats), sol.Clk, sol.Loops)
}

// Classify a solver failure for summary counting
func failureClass(err error) string {
	switch {
	case errors.Is(err, m.ErrMissingEphemeris):
		return "missing ephemeris"
	case errors.Is(err, m.ErrInsufficientObs):
		return "insufficient observations"
	case errors.Is(err, m.ErrNotConverged):
		return "no convergence"
	default:
		return "other"
	}
}
