// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.3
//

// Implements single point positioning from single-frequency pseudorange
// observations of one epoch.

package gnsspos

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/mat"
)

// The three fatal failure classes of the position calculation. Every
// error returned by CalcPos wraps one of these, so callers can test the
// cause with errors.Is.
var (
	ErrNotConverged     = errors.New("iteration convergence failed")
	ErrMissingEphemeris = errors.New("no corresponding ephemeris found")
	ErrInsufficientObs  = errors.New("not enough observations to solve the equation")
)

// PosOpt contains options and parameters for the position calculation
type PosOpt struct {
	CutoffElev float64   `yaml:"cutoff_elev"` // Elevation cutoff [deg]
	BlunderLim float64   `yaml:"blunder_lim"` // Blunder detection threshold [m]
	MaxLoop    int       `yaml:"max_loop"`    // Iteration cap for the outer and the light-time loop
	ConvTol    float64   `yaml:"conv_tol"`    // Convergence tolerance (position [m], transmission time [s])
	DelaySeed  float64   `yaml:"delay_seed"`  // Initial one-way signal delay estimate [s]
	ExSats     []SatType `yaml:"ex_sats"`     // Satellites to exclude from calculation
}

// NewPosOpt creates a new PosOpt with default values
func NewPosOpt() *PosOpt {
	return &PosOpt{
		CutoffElev: 10.0,
		BlunderLim: 0.5e6,
		MaxLoop:    100,
		ConvTol:    1e-8,
		DelaySeed:  0.075,
		ExSats:     nil,
	}
}

// PosSol contains the results of the position calculation for one epoch
type PosSol struct {
	Pos      PosXYZ              // Receiver position (positioning result)
	Clk      float64             // Receiver clock bias [s]
	Loops    int                 // Number of outer iterations used
	Sats     []SatType           // Satellites used in the final pass
	Elev     map[SatType]float64 // Satellite elevation angles [rad]
	Res      map[SatType]float64 // Observed-minus-computed residuals at convergence [m]
	Disposed int                 // Satellites rejected in the final pass
}

// CalcPos computes the receiver position and clock bias for one epoch by
// iterative weighted least squares over the pseudorange observations.
//
// Parameters:
//   - rec: Single epoch observation data
//   - nav: Ephemeris lookup
//   - approx: Approximate receiver position, used as the starting
//     estimate and as the (fixed) reference for elevation screening
//   - opt: Calculation options
//
// A satellite with a missing pseudorange, a low elevation or a probable
// blunder is dropped from the equation system; a missing ephemeris or an
// iteration cap aborts the whole epoch.
func CalcPos(rec *ObsRecord, nav EpheSource, approx PosXYZ, opt *PosOpt) (*PosSol, error) {

	cutoff := ToRad(opt.CutoffElev)
	recSow := rec.Time.Sec

	// Receiver position and clock bias (initial values)
	pos := approx
	clk := 0.0

	for loop := 1; loop <= opt.MaxLoop; loop++ {

		PrintD(3, "\t--- LOOP: %d ---\n", loop)

		// Observation for each single satellite generates one equation
		n := len(rec.Sats)
		if n == 0 {
			return nil, fmt.Errorf("%w: no satellites in the record", ErrInsufficientObs)
		}
		G := mat.NewDense(n, 4, nil)
		dr := mat.NewVecDense(n, nil)
		w := make([]float64, 0, n)

		sats := make([]SatType, 0, n)
		elev := map[SatType]float64{}
		res := map[SatType]float64{}
		disposed := 0
		i := 0

		for si, sat := range rec.Sats {

			psr := rec.PrC1C[si]

			// Ignore records with data partly lost
			if psr < EPS {
				disposed++
				PrintD(3, "\t%s: no pseudorange\n", sat)
				continue
			}

			// Skip if satellite in exclusion list
			if opt.ExSats != nil && slices.Contains(opt.ExSats, sat) {
				disposed++
				PrintD(3, "\t%s: excluded\n", sat)
				continue
			}

			// A missing ephemeris is fatal for the whole epoch
			eph, err := nav.FindEphe(sat, rec.Time)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrMissingEphemeris, sat, err)
			}

			// Rotation of the Earth-fixed frame during the signal transit
			ang := eph.OmgEDot * (psr / C)
			sinA := math.Sin(ang)
			cosA := math.Cos(ang)

			// Transmission time and satellite position by light-time iteration
			delay := opt.DelaySeed
			satT := 0.0
			var spos PosXYZ
			ok := false
			for it := 0; it < opt.MaxLoop; it++ {
				prev := satT
				satT = recSow - clk - delay
				spos = SatPos(eph, satT)
				spos = PosXYZ{
					X: cosA*spos.X + sinA*spos.Y,
					Y: -sinA*spos.X + cosA*spos.Y,
					Z: spos.Z,
				}
				if math.Abs(satT-prev) <= opt.ConvTol {
					ok = true
					break
				}
				delay = EucDist(&spos, &pos) / C
			}
			if !ok {
				return nil, fmt.Errorf("%w: light-time iteration for %s", ErrNotConverged, sat)
			}

			// Ignore records of low elevation. The elevation is taken
			// against the fixed approximate position, not the current
			// estimate.
			neu := spos.ToNEU(approx)
			el := neu.Elevation()
			if el <= cutoff {
				disposed++
				PrintD(3, "\t%s: elev=%.3f <= %.3f\n", sat, ToDeg(el), opt.CutoffElev)
				continue
			}

			// Ignore records with probable blunders
			rho := EucDist(&pos, &spos)
			if math.Abs(rho-psr) > opt.BlunderLim {
				disposed++
				PrintD(3, "\t%s: |rho-psr|=%.1f > %.1f\n", sat, math.Abs(rho-psr), opt.BlunderLim)
				continue
			}

			// Direction cosines, satellite clock correction and weight
			dts := eph.ClockCorr(satT)
			G.Set(i, 0, (pos.X-spos.X)/rho)
			G.Set(i, 1, (pos.Y-spos.Y)/rho)
			G.Set(i, 2, (pos.Z-spos.Z)/rho)
			G.Set(i, 3, 1)
			dr.SetVec(i, psr-rho+C*dts)
			w = append(w, SQ(math.Sin(el)))

			PrintD(3, "\t%s: trsmt=%.6f, elev=%8.3f, x=%16.3f, y=%16.3f, z=%16.3f, psr=%14.3f, dts*C=%10.3f, dr=%12.3f\n",
				sat, satT, ToDeg(el), spos.X, spos.Y, spos.Z, psr, dts*C, dr.AtVec(i))

			sats = append(sats, sat)
			elev[sat] = el
			res[sat] = dr.AtVec(i)
			i++
		}

		// Solving for 3 position components and the clock bias requires
		// at least 4 equations
		if i < 4 {
			return nil, fmt.Errorf("%w: %d < 4", ErrInsufficientObs, i)
		}

		// Compact the system to the accepted rows and solve by weighted
		// least squares
		G2 := G.Slice(0, i, 0, 4)
		dr2 := dr.SliceVec(0, i)
		W := mat.NewDiagDense(len(w), w)
		if DBG_ >= 4 {
			PrintA("G=\n")
			PrintMat(G2)
			PrintA("dr=\n")
			PrintMat(dr2)
		}
		dx, _, err := SolveLS(G2, dr2, W)
		if err != nil {
			return nil, fmt.Errorf("SolveLS() failed, err=%v", err)
		}

		// Apply the correction. The clock bias is replaced, not
		// accumulated.
		pos.X += dx.AtVec(0)
		pos.Y += dx.AtVec(1)
		pos.Z += dx.AtVec(2)
		clk = dx.AtVec(3) / C

		norm := math.Sqrt(SQ(dx.AtVec(0)) + SQ(dx.AtVec(1)) + SQ(dx.AtVec(2)))
		PrintD(2, "\tLOOP %d: XYZ= %.4f %.4f %.4f, clk= %.12f, |dx|= %g\n", loop, pos.X, pos.Y, pos.Z, clk, norm)

		if norm < opt.ConvTol {
			return &PosSol{
				Pos:      pos,
				Clk:      clk,
				Loops:    loop,
				Sats:     sats,
				Elev:     elev,
				Res:      res,
				Disposed: disposed,
			}, nil
		}
	}

	return nil, fmt.Errorf("%w: number of loops reached %d", ErrNotConverged, opt.MaxLoop)
}
