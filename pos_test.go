// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.3
//

package gnsspos

import (
	"math"
	"testing"
)

func TestLLHToXYZRoundTrip(t *testing.T) {
	llh := NewPosLLH(ToRad(35.0), ToRad(139.0), 100.0)
	xyz := llh.ToXYZ()
	back := xyz.ToLLH()
	if math.Abs(back.Lat-llh.Lat) > 1e-11 || math.Abs(back.Lon-llh.Lon) > 1e-11 {
		t.Fatalf("lat/lon round trip drifted: %v vs %v", back, llh)
	}
	if math.Abs(back.Hei-llh.Hei) > 1e-4 {
		t.Fatalf("height round trip drifted: %f vs %f", back.Hei, llh.Hei)
	}
}

func TestToNEUZenith(t *testing.T) {
	base := NewPosLLH(ToRad(35.0), ToRad(139.0), 100.0).ToXYZ()
	up := NewPosLLH(ToRad(35.0), ToRad(139.0), 100.0+5000.0).ToXYZ()
	neu := up.ToNEU(base)
	if math.Abs(neu.U-5000.0) > 1.0 {
		t.Fatalf("expected U close to 5000, got %f", neu.U)
	}
	if math.Abs(neu.N) > 10.0 || math.Abs(neu.E) > 10.0 {
		t.Fatalf("expected small N/E components, got N=%f E=%f", neu.N, neu.E)
	}
	if el := neu.Elevation(); math.Abs(el-PI/2) > 0.01 {
		t.Fatalf("expected elevation close to 90 deg, got %f deg", ToDeg(el))
	}
}

func TestNEUToXYZRoundTrip(t *testing.T) {
	base := NewPosLLH(ToRad(-20.0), ToRad(57.5), 300.0).ToXYZ()
	neu := NewPosNEU(1200.0, -340.0, 90.0)
	xyz := neu.ToXYZ(base)
	back := xyz.ToNEU(base)
	if math.Abs(back.N-neu.N) > 1e-6 || math.Abs(back.E-neu.E) > 1e-6 || math.Abs(back.U-neu.U) > 1e-6 {
		t.Fatalf("round trip drifted: %+v vs %+v", back, neu)
	}
}

func TestConversionsArePure(t *testing.T) {
	base := NewPosLLH(ToRad(35.0), ToRad(139.0), 100.0).ToXYZ()
	saved := base
	p := PosXYZ{X: base.X + 1000, Y: base.Y - 2000, Z: base.Z + 500}
	_ = p.ToNEU(base)
	_ = p.ToLLH()
	if base != saved {
		t.Fatalf("base was mutated: %+v vs %+v", base, saved)
	}
}

func TestAzimuthQuadrants(t *testing.T) {
	north := NewPosNEU(1000.0, 0.0, 100.0)
	if az := north.Azimuth(); math.Abs(az) > 1e-9 {
		t.Fatalf("expected azimuth 0 for north, got %f", az)
	}
	east := NewPosNEU(0.0, 1000.0, 100.0)
	if az := east.Azimuth(); math.Abs(az-PI/2) > 1e-9 {
		t.Fatalf("expected azimuth pi/2 for east, got %f", az)
	}
}
