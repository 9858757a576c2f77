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

// Package clean screens and repairs velocimeter data: threshold and
// correlation filters, orientation smoothing, gap filling and surface
// interference removal.
package clean

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/sparse"

	"github.com/jmcvey3/dolfyn"
	"github.com/jmcvey3/dolfyn/rotate"
)

// VelExceedsThresh replaces velocity samples whose magnitude exceeds
// thresh with NaN, returning the number of samples dropped.
func VelExceedsThresh(ds *dolfyn.Dataset, thresh float64) (int, error) {
	vel := ds.Var("vel")
	if vel == nil {
		return 0, fmt.Errorf("clean: dataset has no vel variable")
	}
	n := 0
	for i, v := range vel.Data.Elements {
		if math.Abs(v) > thresh {
			vel.Data.Elements[i] = math.NaN()
			n++
		}
	}
	return n, nil
}

// CorrelationFilter NaNs velocity where the beam correlation is at or
// below thresh (counts or percent). Correlation is measured per beam,
// so the velocity is rotated into beam coordinates for masking and then
// restored to its original frame.
func CorrelationFilter(ds *dolfyn.Dataset, thresh float64) error {
	corr := ds.Var("corr")
	if corr == nil {
		return fmt.Errorf("clean: dataset has no corr variable")
	}
	orig := ds.Attrs.CoordSys
	if _, err := rotate.Rotate2(ds, dolfyn.Beam, true); err != nil {
		return fmt.Errorf("clean: rotating to beam for correlation filter: %v", err)
	}
	vel := ds.Var("vel")
	if vel == nil || len(vel.Data.Elements) != len(corr.Data.Elements) {
		return fmt.Errorf("clean: corr shape does not match vel")
	}
	for i, c := range corr.Data.Elements {
		if c <= thresh {
			vel.Data.Elements[i] = math.NaN()
		}
	}
	if _, err := rotate.Rotate2(ds, orig, true); err != nil {
		return fmt.Errorf("clean: restoring %s frame after correlation filter: %v", orig, err)
	}
	return nil
}

// MedfiltOrient median-filters the heading, pitch and roll series with
// an odd kernel length nFilt. Any stored orientation matrices are
// dropped so that later rotations re-derive them from the filtered
// angles; for instruments with direct matrix output (IMU) this filter
// does not apply.
func MedfiltOrient(ds *dolfyn.Dataset, nFilt int) error {
	if ds.Attrs.HasIMU {
		return fmt.Errorf("clean: orientation filtering is not supported for IMU-equipped instruments")
	}
	if nFilt%2 == 0 {
		return fmt.Errorf("clean: median filter length must be odd, got %d", nFilt)
	}
	for _, name := range []string{"heading", "pitch", "roll"} {
		v := ds.Var(name)
		if v == nil {
			return fmt.Errorf("clean: dataset has no %s variable", name)
		}
		medfilt(v.Data.Elements, nFilt)
	}
	ds.DropVariable("orientmat")
	return nil
}

// medfilt applies an in-place running median with the window clamped at
// the edges.
func medfilt(x []float64, n int) {
	src := append([]float64(nil), x...)
	half := n / 2
	win := make([]float64, 0, n)
	for i := range x {
		lo, hi := i-half, i+half+1
		if lo < 0 {
			lo = 0
		}
		if hi > len(src) {
			hi = len(src)
		}
		win = win[:0]
		for _, v := range src[lo:hi] {
			if !math.IsNaN(v) {
				win = append(win, v)
			}
		}
		if len(win) == 0 {
			continue
		}
		sort.Float64s(win)
		m := win[len(win)/2]
		if len(win)%2 == 0 {
			m = 0.5 * (m + win[len(win)/2-1])
		}
		x[i] = m
	}
}

// FillgapsTime linearly interpolates NaN runs in the velocity along the
// time axis. Runs longer than maxGap samples are left alone; maxGap <= 0
// fills all interior gaps. Leading and trailing NaNs are not filled.
func FillgapsTime(ds *dolfyn.Dataset, maxGap int) error {
	vel := ds.Var("vel")
	if vel == nil {
		return fmt.Errorf("clean: dataset has no vel variable")
	}
	nt := vel.Data.Shape[len(vel.Data.Shape)-1]
	rows := len(vel.Data.Elements) / nt
	for r := 0; r < rows; r++ {
		fillgaps(vel.Data.Elements[r*nt:(r+1)*nt], maxGap)
	}
	return nil
}

// FillgapsDepth linearly interpolates NaN runs in a profiler's velocity
// along the range (depth) axis.
func FillgapsDepth(ds *dolfyn.Dataset, maxGap int) error {
	vel := ds.Var("vel")
	if vel == nil {
		return fmt.Errorf("clean: dataset has no vel variable")
	}
	if len(vel.Data.Shape) != 3 {
		return fmt.Errorf("clean: depth gap filling needs a 3-axis (dir,range,time) velocity, has shape %v", vel.Data.Shape)
	}
	nr, nt := vel.Data.Shape[1], vel.Data.Shape[2]
	col := make([]float64, nr)
	for c := 0; c < 3; c++ {
		for t := 0; t < nt; t++ {
			for j := 0; j < nr; j++ {
				col[j] = vel.Data.Get(c, j, t)
			}
			fillgaps(col, maxGap)
			// Write through Elements: DenseArray.Set drops zero values,
			// which would leave a NaN in place of a zero interpolant.
			for j := 0; j < nr; j++ {
				vel.Data.Elements[vel.Data.Index1d(c, j, t)] = col[j]
			}
		}
	}
	return nil
}

// fillgaps linearly interpolates interior NaN runs of length <= maxGap
// (or any length if maxGap <= 0) in place.
func fillgaps(x []float64, maxGap int) {
	i := 0
	for i < len(x) {
		if !math.IsNaN(x[i]) {
			i++
			continue
		}
		start := i
		for i < len(x) && math.IsNaN(x[i]) {
			i++
		}
		// A run at either edge has no anchor on one side.
		if start == 0 || i == len(x) {
			continue
		}
		if maxGap > 0 && i-start > maxGap {
			continue
		}
		a, b := x[start-1], x[i]
		span := float64(i - start + 1)
		for j := start; j < i; j++ {
			f := float64(j-start+1) / span
			x[j] = a + (b-a)*f
		}
	}
}

// SurfaceFromPressure estimates the distance to the water surface from
// the pressure record [dbar] and adds it as the d_range variable [m].
// The pressure sensor must have been zeroed to atmospheric pressure
// before deployment.
func SurfaceFromPressure(ds *dolfyn.Dataset, salinity float64) error {
	p := ds.Var("pressure")
	if p == nil {
		return fmt.Errorf("clean: dataset has no pressure variable")
	}
	rho := salinity + 1000
	d := sparse.ZerosDense(p.Data.Shape...)
	for i, v := range p.Data.Elements {
		d.Elements[i] = v * 10000 / (9.81 * rho)
	}
	ds.DropVariable("d_range")
	return ds.AddVariable(&dolfyn.Variable{
		Name: "d_range", Dims: append([]string(nil), p.Dims...),
		Units: "m", Data: d,
	})
}

// NaNBeyondSurface NaNs profile data beyond the water surface. Surface
// interference reaches down to d_range*cos(beam_angle), so each
// variable with a range axis is masked where the bin range exceeds that
// (less one cell).
func NaNBeyondSurface(ds *dolfyn.Dataset) error {
	r := ds.Var("range")
	dr := ds.Var("d_range")
	if r == nil || dr == nil {
		return fmt.Errorf("clean: surface masking needs range and d_range variables")
	}
	angle := ds.Attrs.BeamAngle
	if angle == 0 {
		angle = 25 // Nortek default
	}
	ca := math.Cos(angle * math.Pi / 180)
	nt := len(dr.Data.Elements)
	nr := len(r.Data.Elements)
	for _, name := range ds.Names() {
		v := ds.Var(name)
		if name == "range" || name == "d_range" || !hasDim(v, "range") {
			continue
		}
		nd := len(v.Data.Shape)
		if nd < 2 || v.Data.Shape[nd-1] != nt || v.Data.Shape[nd-2] != nr {
			continue
		}
		lead := len(v.Data.Elements) / (nr * nt)
		for l := 0; l < lead; l++ {
			for j := 0; j < nr; j++ {
				for t := 0; t < nt; t++ {
					if r.Data.Elements[j] > dr.Data.Elements[t]*ca-ds.Attrs.CellSize {
						v.Data.Elements[(l*nr+j)*nt+t] = math.NaN()
					}
				}
			}
		}
	}
	return nil
}

func hasDim(v *dolfyn.Variable, dim string) bool {
	for _, d := range v.Dims {
		if d == dim {
			return true
		}
	}
	return false
}
