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
	"fmt"
	"math"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/mat"
)

// CalcPrincipalHeading computes the best-fit flow-aligned heading
// [degrees clockwise from North] from an earth-frame velocity array
// (3 x ... x Nt, components east, north, up).
//
// The horizontal components are treated as a 2-D point cloud and the
// principal axis is the leading eigenvector of their covariance matrix;
// the 180-degree ambiguity is resolved toward the mean flow direction.
// NaN samples are skipped.
//
// The input must already be in the earth frame. That precondition is
// not checked here: velocity in any other frame yields a heading
// relative to that frame, which is meaningless as a principal heading.
// Callers track the current frame themselves (see Rotate2).
func CalcPrincipalHeading(vel *sparse.DenseArray) (float64, error) {
	if len(vel.Shape) < 2 || vel.Shape[0] < 2 {
		return 0, fmt.Errorf("rotate: principal heading needs a velocity array with at least 2 components, got shape %v", vel.Shape)
	}
	ni := inner(vel)
	e := vel.Elements

	var mu, mv float64
	n := 0
	for k := 0; k < ni; k++ {
		u, v := e[k], e[ni+k]
		if math.IsNaN(u) || math.IsNaN(v) {
			continue
		}
		mu += u
		mv += v
		n++
	}
	if n < 2 {
		return 0, fmt.Errorf("rotate: principal heading needs at least 2 finite velocity samples, got %d", n)
	}
	mu /= float64(n)
	mv /= float64(n)

	var cuu, cvv, cuv float64
	for k := 0; k < ni; k++ {
		u, v := e[k], e[ni+k]
		if math.IsNaN(u) || math.IsNaN(v) {
			continue
		}
		du, dv := u-mu, v-mv
		cuu += du * du
		cvv += dv * dv
		cuv += du * dv
	}

	cov := mat.NewSymDense(2, []float64{cuu, cuv, cuv, cvv})
	var es mat.EigenSym
	if !es.Factorize(cov, true) {
		return 0, fmt.Errorf("rotate: eigen decomposition of velocity covariance failed")
	}
	var vecs mat.Dense
	es.VectorsTo(&vecs)
	// Eigenvalues are in ascending order; the principal axis is the
	// eigenvector of the largest one.
	ax, ay := vecs.At(0, 1), vecs.At(1, 1)

	// Resolve the 180-degree ambiguity: the axis must point with the
	// mean flow, not against it.
	if ax*mu+ay*mv < 0 {
		ax, ay = -ax, -ay
	}
	return wrapDeg(90 - rad2deg(math.Atan2(ay, ax))), nil
}
