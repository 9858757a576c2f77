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

package rotate

import (
	"math"
	"strings"

	"github.com/ctessum/sparse"
)

// OrientConvention converts between heading/pitch/roll triples and
// per-timestep orientation matrices using a device-specific sign
// convention. Implementations form a small closed set and are selected
// once per dataset (see ConventionFor), not re-dispatched per call.
//
// All conventions share the ZYX rotation order (heading about the
// vertical first, then pitch, then roll) and angle units of degrees:
// heading is positive clockwise from North, pitch is positive nose-up
// (opposite the right-hand rule about Y), and roll is positive by the
// right-hand rule about X. The returned matrix O is 3x3xNt and rotates
// earth-frame (ENU) vectors into the instrument frame: v_inst = O*v_earth.
type OrientConvention interface {
	Name() string
	// TripleToMatrix builds orientation matrices from per-timestep
	// heading, pitch and roll [degrees].
	TripleToMatrix(heading, pitch, roll []float64) *sparse.DenseArray
	// MatrixToTriple recovers heading, pitch and roll [degrees] from
	// orientation matrices. The recovered angles lie on the canonical
	// branch (pitch in [-90,90], heading in [0,360)); off-branch inputs
	// to TripleToMatrix therefore do not round-trip bit-exactly, which
	// is expected, not a bug. Near pitch = +-90 (gimbal lock) heading
	// and roll are individually ill-conditioned even though the matrix
	// itself is exact.
	MatrixToTriple(omat *sparse.DenseArray) (heading, pitch, roll []float64)
}

// Nortek is the orientation convention of Nortek Vector and AWAC
// instruments: at zero heading the instrument x-axis points North.
var Nortek OrientConvention = nortekConvention{}

// TRDI is the orientation convention of Teledyne RDI profilers: heading
// is that of the instrument y-axis (beam 3), so at zero heading the
// x-axis points East, and pitch is gimbal-corrected by the roll.
var TRDI OrientConvention = trdiConvention{}

// ConventionFor selects the orientation convention for an instrument
// make. Unrecognized makes get the Nortek convention.
func ConventionFor(instMake string) OrientConvention {
	switch {
	case strings.Contains(strings.ToLower(instMake), "rdi"),
		strings.Contains(strings.ToLower(instMake), "teledyne"):
		return TRDI
	default:
		return Nortek
	}
}

type nortekConvention struct{}

func (nortekConvention) Name() string { return "nortek" }

// tripleToMatrix builds the earth->inst matrices for one timestep given
// hh (the math-convention azimuth of the instrument x-axis [rad]), pitch
// and roll [rad], and writes them into omat at time index t.
//
// The inst->earth rotation is H*P with
//
//	H = | cos hh  sin hh  0 |    P = | cp  -sp*sr  -cr*sp |
//	    |-sin hh  cos hh  0 |        | 0    cr     -sr    |
//	    | 0       0       1 |        | sp   sr*cp   cp*cr |
//
// and the orientation matrix is its transpose.
func tripleToMatrix(omat *sparse.DenseArray, t int, hh, pp, rr float64) {
	sh, ch := math.Sincos(hh)
	sp, cp := math.Sincos(pp)
	sr, cr := math.Sincos(rr)

	r := [3][3]float64{
		{ch * cp, -ch*sp*sr + sh*cr, -ch*cr*sp - sh*sr},
		{-sh * cp, sh*sp*sr + ch*cr, sh*cr*sp - ch*sr},
		{sp, sr * cp, cp * cr},
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			omat.Set(r[j][i], i, j, t) // transpose
		}
	}
}

// matrixToTriple recovers hh, pitch and roll [rad] from the orientation
// matrix at time index t.
func matrixToTriple(omat *sparse.DenseArray, t int) (hh, pp, rr float64) {
	// R is the inst->earth rotation, the transpose of omat.
	r00 := omat.Get(0, 0, t)
	r10 := omat.Get(0, 1, t)
	r20 := omat.Get(0, 2, t)
	r21 := omat.Get(1, 2, t)
	r22 := omat.Get(2, 2, t)
	hh = math.Atan2(-r10, r00)
	pp = math.Asin(math.Max(-1, math.Min(1, r20)))
	rr = math.Atan2(r21, r22)
	return hh, pp, rr
}

func (nortekConvention) TripleToMatrix(heading, pitch, roll []float64) *sparse.DenseArray {
	n := len(heading)
	omat := sparse.ZerosDense(3, 3, n)
	for t := 0; t < n; t++ {
		// Heading is clockwise from North of the x-axis; the x-axis
		// azimuth in math convention is heading-90.
		hh := deg2rad(heading[t] - 90)
		tripleToMatrix(omat, t, hh, deg2rad(pitch[t]), deg2rad(roll[t]))
	}
	return omat
}

func (nortekConvention) MatrixToTriple(omat *sparse.DenseArray) (heading, pitch, roll []float64) {
	n := omat.Shape[2]
	heading = make([]float64, n)
	pitch = make([]float64, n)
	roll = make([]float64, n)
	for t := 0; t < n; t++ {
		hh, pp, rr := matrixToTriple(omat, t)
		heading[t] = wrapDeg(rad2deg(hh) + 90)
		pitch[t] = rad2deg(pp)
		roll[t] = rad2deg(rr)
	}
	return heading, pitch, roll
}

type trdiConvention struct{}

func (trdiConvention) Name() string { return "trdi" }

func (trdiConvention) TripleToMatrix(heading, pitch, roll []float64) *sparse.DenseArray {
	n := len(heading)
	omat := sparse.ZerosDense(3, 3, n)
	for t := 0; t < n; t++ {
		rr := deg2rad(roll[t])
		// RDI tilt sensors gimbal the pitch through the roll.
		pp := math.Atan(math.Tan(deg2rad(pitch[t])) * math.Cos(rr))
		// Heading is that of the y-axis (beam 3); the x-axis azimuth in
		// math convention is -heading.
		tripleToMatrix(omat, t, deg2rad(-heading[t]), pp, rr)
	}
	return omat
}

func (trdiConvention) MatrixToTriple(omat *sparse.DenseArray) (heading, pitch, roll []float64) {
	n := omat.Shape[2]
	heading = make([]float64, n)
	pitch = make([]float64, n)
	roll = make([]float64, n)
	for t := 0; t < n; t++ {
		hh, pp, rr := matrixToTriple(omat, t)
		heading[t] = wrapDeg(-rad2deg(hh))
		if c := math.Cos(rr); c != 0 {
			pp = math.Atan(math.Tan(pp) / c)
		}
		pitch[t] = rad2deg(pp)
		roll[t] = rad2deg(rr)
	}
	return heading, pitch, roll
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }

// wrapDeg maps an angle to [0,360).
func wrapDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}
