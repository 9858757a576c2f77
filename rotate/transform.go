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
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/mat"
)

// detTolerance is the allowed deviation of orientation matrix
// determinants from 1 before an OrthonormalityWarning is raised.
// Deviations beyond this usually mean the matrices were averaged
// upstream rather than recomputed from averaged angles.
const detTolerance = 1e-3

// mat3 is a 3x3 transformation matrix, row-major.
type mat3 [3][3]float64

func mat3FromDense(m *mat.Dense) mat3 {
	var out mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

func (m mat3) transpose() mat3 {
	var out mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[j][i]
		}
	}
	return out
}

func (m mat3) det() float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// omatAt extracts the 3x3 matrix at time index t from a 3x3xNt array.
func omatAt(omat *sparse.DenseArray, t int) mat3 {
	n := omat.Shape[2]
	var out mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = omat.Elements[(i*3+j)*n+t]
		}
	}
	return out
}

// setOmatAt writes the 3x3 matrix at time index t of a 3x3xNt array.
func setOmatAt(omat *sparse.DenseArray, t int, m mat3) {
	n := omat.Shape[2]
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			omat.Elements[(i*3+j)*n+t] = m[i][j]
		}
	}
}

// inner returns the number of samples per vector component in data,
// whose leading axis is the component axis.
func inner(data *sparse.DenseArray) int {
	n := 1
	for _, s := range data.Shape[1:] {
		n *= s
	}
	return n
}

// applyFixed transforms a vector array (3 x ... x Nt) in place:
// v' = m*v for every trailing sample.
func applyFixed(data *sparse.DenseArray, m mat3) {
	ni := inner(data)
	e := data.Elements
	for k := 0; k < ni; k++ {
		x, y, z := e[k], e[ni+k], e[2*ni+k]
		e[k] = m[0][0]*x + m[0][1]*y + m[0][2]*z
		e[ni+k] = m[1][0]*x + m[1][1]*y + m[1][2]*z
		e[2*ni+k] = m[2][0]*x + m[2][1]*y + m[2][2]*z
	}
}

// applyTimeVarying transforms a vector array (3 x ... x Nt) in place by
// the per-timestep matrix omat(t) (or its transpose). The time axis is
// last, so the matrix index is the sample index modulo Nt.
func applyTimeVarying(data, omat *sparse.DenseArray, transpose bool) {
	ni := inner(data)
	nt := omat.Shape[2]
	e := data.Elements
	for t := 0; t < nt; t++ {
		m := omatAt(omat, t)
		if transpose {
			m = m.transpose()
		}
		for k := t; k < ni; k += nt {
			x, y, z := e[k], e[ni+k], e[2*ni+k]
			e[k] = m[0][0]*x + m[0][1]*y + m[0][2]*z
			e[ni+k] = m[1][0]*x + m[1][1]*y + m[1][2]*z
			e[2*ni+k] = m[2][0]*x + m[2][1]*y + m[2][2]*z
		}
	}
}

// tensorAt and setTensorAt address a 3x3 tensor sample k within a
// (3 x 3 x ... x Nt) array whose per-component sample count is ni.
func tensorAt(e []float64, ni, k int) mat3 {
	var out mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = e[(i*3+j)*ni+k]
		}
	}
	return out
}

func setTensorAt(e []float64, ni, k int, m mat3) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			e[(i*3+j)*ni+k] = m[i][j]
		}
	}
}

func (m mat3) mul(b mat3) mat3 {
	var out mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[i][0]*b[0][j] + m[i][1]*b[1][j] + m[i][2]*b[2][j]
		}
	}
	return out
}

// congruence returns m*T*mt.
func congruence(m, T mat3) mat3 { return m.mul(T).mul(m.transpose()) }

// applyFixedTensor transforms a tensor array (3 x 3 x ... x Nt) in
// place: T' = m*T*mt for every trailing sample.
func applyFixedTensor(data *sparse.DenseArray, m mat3) {
	ni := 1
	for _, s := range data.Shape[2:] {
		ni *= s
	}
	for k := 0; k < ni; k++ {
		setTensorAt(data.Elements, ni, k, congruence(m, tensorAt(data.Elements, ni, k)))
	}
}

// applyTimeVaryingTensor is applyFixedTensor with a per-timestep matrix.
func applyTimeVaryingTensor(data, omat *sparse.DenseArray, transpose bool) {
	ni := 1
	for _, s := range data.Shape[2:] {
		ni *= s
	}
	nt := omat.Shape[2]
	for t := 0; t < nt; t++ {
		m := omatAt(omat, t)
		if transpose {
			m = m.transpose()
		}
		for k := t; k < ni; k += nt {
			setTensorAt(data.Elements, ni, k, congruence(m, tensorAt(data.Elements, ni, k)))
		}
	}
}

// checkOrientmat scans the determinants of a 3x3xNt orientation matrix
// series. It returns a non-nil OrthonormalityWarning if any determinant
// deviates from 1 by more than detTolerance.
func checkOrientmat(omat *sparse.DenseArray) *OrthonormalityWarning {
	var warn *OrthonormalityWarning
	for t := 0; t < omat.Shape[2]; t++ {
		dev := omatAt(omat, t).det() - 1
		if dev < 0 {
			dev = -dev
		}
		if dev > detTolerance && (warn == nil || dev > warn.MaxDeviation) {
			warn = &OrthonormalityWarning{MaxDeviation: dev, Index: t}
		}
	}
	return warn
}
