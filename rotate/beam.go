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

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/mat"
)

// singularDetEps is the determinant magnitude below which a calibration
// matrix is treated as singular.
const singularDetEps = 1e-12

// BeamToInst converts beam-coordinate velocity (3 x ... x Nt) to
// instrument coordinates using the instrument calibration matrix. The
// input is not modified.
func BeamToInst(velBeam *sparse.DenseArray, cal *mat.Dense) (*sparse.DenseArray, error) {
	if cal == nil {
		return nil, &MissingPrerequisiteError{From: "beam", To: "inst",
			Missing: "no beam-to-inst calibration matrix"}
	}
	out := velBeam.Copy()
	applyFixed(out, mat3FromDense(cal))
	return out, nil
}

// InstToBeam converts instrument-coordinate velocity back to beam
// coordinates. The calibration matrix is not orthonormal, so this
// requires its explicit inverse rather than a transpose. The input is
// not modified.
func InstToBeam(velInst *sparse.DenseArray, cal *mat.Dense) (*sparse.DenseArray, error) {
	if cal == nil {
		return nil, &MissingPrerequisiteError{From: "inst", To: "beam",
			Missing: "no beam-to-inst calibration matrix"}
	}
	inv, err := invertCalibration(cal)
	if err != nil {
		return nil, err
	}
	out := velInst.Copy()
	applyFixed(out, inv)
	return out, nil
}

// invertCalibration computes the explicit inverse of the beam-to-inst
// calibration matrix, failing with SingularCalibrationError if the
// matrix is not invertible.
func invertCalibration(cal *mat.Dense) (mat3, error) {
	det := mat.Det(cal)
	if math.Abs(det) < singularDetEps || math.IsNaN(det) {
		return mat3{}, &SingularCalibrationError{Det: det}
	}
	var inv mat.Dense
	if err := inv.Inverse(cal); err != nil {
		return mat3{}, &SingularCalibrationError{Det: det}
	}
	return mat3FromDense(&inv), nil
}
