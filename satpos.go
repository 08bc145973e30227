// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.3
//

package gnsspos

import (
	"math"
)

// Calculate the ECEF satellite position at the given transmission time
// (seconds of week) from the broadcast orbital elements. The rotation of
// the frame during the signal transit is not applied here; the solver
// rotates the result by the transit angle itself.
func SatPos(e *Ephe, sow float64) (xyz PosXYZ) {
	tk := wrapSow(sow - e.Toe.Sec)

	// Mean anomaly
	n := math.Sqrt(Mue)/e.SqrtA/e.SqrtA/e.SqrtA + e.DeltaN
	mk := e.M0 + n*tk

	// Eccentric anomaly (Kepler's equation by fixed-point iteration)
	ek := mk
	for i := 0; i < 10; i++ {
		ek = mk + e.Ecc*math.Sin(ek)
	}

	// True anomaly and argument of latitude
	vk := math.Atan2(math.Sqrt(1-e.Ecc*e.Ecc)*math.Sin(ek), math.Cos(ek)-e.Ecc)
	pk := vk + e.Omega

	// Harmonic corrections
	d_uk := e.Cus*math.Sin(2*pk) + e.Cuc*math.Cos(2*pk)
	d_rk := e.Crs*math.Sin(2*pk) + e.Crc*math.Cos(2*pk)
	d_ik := e.Cis*math.Sin(2*pk) + e.Cic*math.Cos(2*pk)
	uk := pk + d_uk
	rk := e.SqrtA*e.SqrtA*(1-e.Ecc*math.Cos(ek)) + d_rk
	ik := e.I0 + d_ik + e.Idot*tk

	// Position in the orbital plane
	xk := rk * math.Cos(uk)
	yk := rk * math.Sin(uk)

	// Longitude of ascending node in the Earth-fixed frame
	omk := e.Omega0 + (e.OmegaD-e.OmgEDot)*tk - e.OmgEDot*e.Toe.Sec

	xyz.X = xk*math.Cos(omk) - yk*math.Sin(omk)*math.Cos(ik)
	xyz.Y = xk*math.Sin(omk) + yk*math.Cos(omk)*math.Cos(ik)
	xyz.Z = yk * math.Sin(ik)
	return
}
