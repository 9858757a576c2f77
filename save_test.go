/*
Copyright © 2026 the DOLfYN authors.
This file is part of DOLfYN.

DOLfYN is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

DOLfYN is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with DOLfYN.  If not, see <http://www.gnu.org/licenses/>.
*/

package dolfyn

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/mat"
)

func TestNetCDFRoundTrip(t *testing.T) {
	const nt = 8
	tm := make([]float64, nt)
	for i := range tm {
		tm[i] = 1.5e9 + float64(i)*0.25
	}
	ds := New(tm)
	ds.Attrs = Attrs{
		InstMake:            "Nortek",
		InstModel:           "VECTOR",
		InstType:            "ADV",
		Fs:                  4,
		CoordSys:            Earth,
		Declination:         11.5,
		DeclinationSet:      true,
		DeclinationInOrientmat: true,
		HasIMU:              true,
		PrincipalHeading:    123.4,
		PrincipalHeadingSet: true,
		Beam2Inst: mat.NewDense(3, 3, []float64{
			2.74, -1.384, -1.354,
			0.006, -2.462, 2.471,
			0.344, 0.344, 0.344,
		}),
		BeamAngle: 25,
	}

	vel := sparse.ZerosDense(3, nt)
	for i := range vel.Elements {
		vel.Elements[i] = float64(i) * 0.1
	}
	if err := ds.AddVariable(&Variable{Name: "vel", Dims: []string{"dir", "time"},
		Units: "m/s", Rotatable: RotateVector, BeamOriented: true, Data: vel}); err != nil {
		t.Fatal(err)
	}
	temp := sparse.ZerosDense(nt)
	for i := range temp.Elements {
		temp.Elements[i] = 12 + float64(i)*0.01
	}
	if err := ds.AddVariable(&Variable{Name: "temp", Dims: []string{"time"},
		Units: "C", Data: temp}); err != nil {
		t.Fatal(err)
	}

	fn := filepath.Join(t.TempDir(), "adv.nc")
	if err := SaveNetCDF(ds, fn); err != nil {
		t.Fatal(err)
	}
	back, err := LoadNetCDF(fn)
	if err != nil {
		t.Fatal(err)
	}

	if len(back.Time) != nt {
		t.Fatalf("time length: want %d, have %d", nt, len(back.Time))
	}
	for i := range tm {
		if math.Abs(back.Time[i]-tm[i]) > 1e-9 {
			t.Fatalf("time[%d]: want %g, have %g", i, tm[i], back.Time[i])
		}
	}

	a := back.Attrs
	if a.InstMake != "Nortek" || a.InstModel != "VECTOR" || a.InstType != "ADV" {
		t.Errorf("instrument attributes: have %q %q %q", a.InstMake, a.InstModel, a.InstType)
	}
	if a.Fs != 4 || a.CoordSys != Earth || !a.HasIMU {
		t.Errorf("fs/coord_sys/has_imu: have %g %s %v", a.Fs, a.CoordSys, a.HasIMU)
	}
	if !a.DeclinationSet || a.Declination != 11.5 || !a.DeclinationInOrientmat {
		t.Errorf("declination state lost: %+v", a)
	}
	if !a.PrincipalHeadingSet || a.PrincipalHeading != 123.4 {
		t.Errorf("principal heading lost: %+v", a)
	}
	if a.Beam2Inst == nil {
		t.Fatal("calibration matrix lost")
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if a.Beam2Inst.At(i, j) != ds.Attrs.Beam2Inst.At(i, j) {
				t.Fatalf("calibration[%d][%d]: want %g, have %g", i, j,
					ds.Attrs.Beam2Inst.At(i, j), a.Beam2Inst.At(i, j))
			}
		}
	}
	if a.BeamAngle != 25 {
		t.Errorf("beam angle: want 25, have %g", a.BeamAngle)
	}

	bv := back.Var("vel")
	if bv == nil {
		t.Fatal("vel variable lost")
	}
	if bv.Rotatable != RotateVector || !bv.BeamOriented || bv.Units != "m/s" {
		t.Errorf("vel declarations lost: %+v", bv)
	}
	for i := range vel.Elements {
		if bv.Data.Elements[i] != vel.Elements[i] {
			t.Fatalf("vel element %d: want %g, have %g", i, vel.Elements[i], bv.Data.Elements[i])
		}
	}
	bt := back.Var("temp")
	if bt == nil || bt.Rotatable != RotateNone || bt.Units != "C" {
		t.Fatalf("temp variable lost or misdeclared: %+v", bt)
	}
}

func TestSaveRejectsConflictingDims(t *testing.T) {
	ds := New([]float64{0, 1})
	if err := ds.AddVariable(&Variable{Name: "a", Dims: []string{"range"},
		Data: sparse.ZerosDense(4)}); err != nil {
		t.Fatal(err)
	}
	if err := ds.AddVariable(&Variable{Name: "b", Dims: []string{"range"},
		Data: sparse.ZerosDense(5)}); err != nil {
		t.Fatal(err)
	}
	fn := filepath.Join(t.TempDir(), "bad.nc")
	if err := SaveNetCDF(ds, fn); err == nil {
		t.Fatal("conflicting dimension lengths should fail to save")
	}
}
