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

// Package rotate transforms dolfyn datasets between the beam, inst,
// earth and principal coordinate systems.
//
// The four frames form a linear chain with an edge between each
// neighboring pair: beam-inst uses the (non-orthonormal) instrument
// calibration matrix, inst-earth uses the per-timestep orientation
// matrix, and earth-principal rotates about the vertical by the
// principal heading. Rotate2 walks the chain from the dataset's current
// frame to the requested one, transforming every rotatable variable and
// nothing else.
package rotate

import (
	"math"

	"github.com/ctessum/sparse"
	log "github.com/sirupsen/logrus"

	"github.com/jmcvey3/dolfyn"
)

// Rotate2 rotates a dataset into the target coordinate system.
//
// If the dataset is already in the target frame the call is a no-op.
// Otherwise all prerequisites for the full rotation path are validated
// before anything is touched, so a failed call never leaves a partially
// rotated dataset. With inPlace false the input is left unmodified and a
// rotated copy is returned; with inPlace true the input itself is
// mutated and returned for chaining.
//
// Only variables declared rotatable are transformed. When the dataset is
// in beam coordinates, only the beam-oriented (velocity-like) variables
// are actually in the beam frame; the remaining rotatable variables are
// in the inst frame and skip the beam edge in either direction.
func Rotate2(ds *dolfyn.Dataset, target dolfyn.Frame, inPlace bool) (*dolfyn.Dataset, error) {
	if !target.Valid() {
		return nil, &InvalidFrameError{Frame: target.String()}
	}
	cur := ds.Attrs.CoordSys
	if !cur.Valid() {
		return nil, &InvalidFrameError{Frame: cur.String()}
	}
	if cur == target {
		log.Warnf("rotate: dataset is already in the %s frame", target)
		return ds, nil
	}

	// Validate every edge of the path before mutating anything.
	var calInv mat3
	var omat *sparse.DenseArray
	var omatDerived bool
	needBeam := cur == dolfyn.Beam || target == dolfyn.Beam
	if needBeam && ds.Attrs.Beam2Inst == nil {
		return nil, &MissingPrerequisiteError{From: cur.String(), To: target.String(),
			Missing: "no beam-to-inst calibration matrix"}
	}
	if target == dolfyn.Beam {
		inv, err := invertCalibration(ds.Attrs.Beam2Inst)
		if err != nil {
			return nil, err
		}
		calInv = inv
	}
	if crossesEdge(cur, target, dolfyn.Inst, dolfyn.Earth) {
		m, derived, err := ensureOrientmat(ds)
		if err != nil {
			return nil, err
		}
		omat, omatDerived = m, derived
		if warn := checkOrientmat(omat); warn != nil {
			log.Warn(warn.Error())
		}
	}
	if crossesEdge(cur, target, dolfyn.Earth, dolfyn.Principal) &&
		!ds.Attrs.PrincipalHeadingSet {
		return nil, &MissingPrerequisiteError{From: cur.String(), To: target.String(),
			Missing: "no principal heading set"}
	}

	work := ds
	if !inPlace {
		work = ds.Copy()
	}
	if omatDerived {
		// Keep the derived matrices with the dataset so that repeat
		// rotations (and declination adjustment) agree with this one.
		if err := work.AddVariable(&dolfyn.Variable{
			Name: "orientmat",
			Dims: []string{"earth", "inst", "time"},
			Data: omat,
		}); err != nil {
			return nil, err
		}
	} else if !inPlace && omat != nil {
		omat = work.Var("orientmat").Data
	}

	step := 1
	if target < cur {
		step = -1
	}
	for f := cur; f != target; f += dolfyn.Frame(step) {
		next := f + dolfyn.Frame(step)
		applyEdge(work, f, next, calInv, omat)
	}
	work.Attrs.CoordSys = target
	return work, nil
}

// crossesEdge reports whether the path from cur to target traverses the
// edge between neighboring frames a and b (a < b).
func crossesEdge(cur, target, a, b dolfyn.Frame) bool {
	lo, hi := cur, target
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo <= a && b <= hi
}

// applyEdge transforms the rotatable variables of ds across one edge of
// the frame chain. All prerequisites have been validated by the caller.
func applyEdge(ds *dolfyn.Dataset, from, to dolfyn.Frame, calInv mat3, omat *sparse.DenseArray) {
	switch {
	case from == dolfyn.Beam && to == dolfyn.Inst:
		m := mat3FromDense(ds.Attrs.Beam2Inst)
		forEachRotatable(ds, func(v *dolfyn.Variable) {
			// Only velocity-like variables are in beam coordinates.
			if v.BeamOriented && v.Rotatable == dolfyn.RotateVector {
				applyFixed(v.Data, m)
			}
		})
	case from == dolfyn.Inst && to == dolfyn.Beam:
		forEachRotatable(ds, func(v *dolfyn.Variable) {
			if v.BeamOriented && v.Rotatable == dolfyn.RotateVector {
				applyFixed(v.Data, calInv)
			}
		})
	case from == dolfyn.Inst && to == dolfyn.Earth:
		// The orientation matrix maps earth->inst and is orthonormal,
		// so its transpose is the inst->earth rotation.
		forEachRotatable(ds, func(v *dolfyn.Variable) {
			if v.Rotatable == dolfyn.RotateTensor {
				applyTimeVaryingTensor(v.Data, omat, true)
			} else {
				applyTimeVarying(v.Data, omat, true)
			}
		})
	case from == dolfyn.Earth && to == dolfyn.Inst:
		forEachRotatable(ds, func(v *dolfyn.Variable) {
			if v.Rotatable == dolfyn.RotateTensor {
				applyTimeVaryingTensor(v.Data, omat, false)
			} else {
				applyTimeVarying(v.Data, omat, false)
			}
		})
	case from == dolfyn.Earth && to == dolfyn.Principal:
		m := principalMatrix(ds.Attrs.PrincipalHeading)
		forEachRotatable(ds, func(v *dolfyn.Variable) {
			if v.Rotatable == dolfyn.RotateTensor {
				applyFixedTensor(v.Data, m)
			} else {
				applyFixed(v.Data, m)
			}
		})
	case from == dolfyn.Principal && to == dolfyn.Earth:
		m := principalMatrix(ds.Attrs.PrincipalHeading).transpose()
		forEachRotatable(ds, func(v *dolfyn.Variable) {
			if v.Rotatable == dolfyn.RotateTensor {
				applyFixedTensor(v.Data, m)
			} else {
				applyFixed(v.Data, m)
			}
		})
	}
}

func forEachRotatable(ds *dolfyn.Dataset, f func(v *dolfyn.Variable)) {
	for _, name := range ds.Names() {
		if v := ds.Var(name); v.Rotatable != dolfyn.RotateNone {
			f(v)
		}
	}
}

// principalMatrix is the orthonormal earth->principal rotation: east and
// north map to streamwise and cross-stream, up is unchanged.
func principalMatrix(headingDeg float64) mat3 {
	// Math-convention angle of the streamwise axis.
	s, c := math.Sincos(deg2rad(90 - headingDeg))
	return mat3{
		{c, s, 0},
		{-s, c, 0},
		{0, 0, 1},
	}
}

// ensureOrientmat returns the dataset's per-timestep orientation
// matrices, deriving them from the heading/pitch/roll series (with the
// device's sign convention) when the instrument does not record
// matrices directly. The returned bool reports whether the matrices
// were derived here rather than read from the dataset.
func ensureOrientmat(ds *dolfyn.Dataset) (*sparse.DenseArray, bool, error) {
	if v := ds.Var("orientmat"); v != nil {
		return v.Data, false, nil
	}
	h, p, r := ds.Var("heading"), ds.Var("pitch"), ds.Var("roll")
	if h == nil || p == nil || r == nil {
		return nil, false, &MissingPrerequisiteError{From: "inst", To: "earth",
			Missing: "no orientation matrix and no heading/pitch/roll to derive one from"}
	}
	conv := ConventionFor(ds.Attrs.InstMake)
	omat := conv.TripleToMatrix(h.Data.Elements, p.Data.Elements, r.Data.Elements)
	return omat, true, nil
}
