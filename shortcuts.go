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
	"fmt"
	"math"

	"github.com/ctessum/sparse"
)

// UMag returns the horizontal speed sqrt(u^2+v^2) of the dataset's
// "vel" variable, with the component axis dropped.
func UMag(ds *Dataset) (*sparse.DenseArray, error) {
	vel := ds.Var("vel")
	if vel == nil {
		return nil, fmt.Errorf("dolfyn: dataset has no vel variable")
	}
	n := 1
	for _, s := range vel.Data.Shape[1:] {
		n *= s
	}
	out := sparse.ZerosDense(vel.Data.Shape[1:]...)
	for k := 0; k < n; k++ {
		u := vel.Data.Elements[k]
		v := vel.Data.Elements[n+k]
		out.Elements[k] = math.Hypot(u, v)
	}
	return out, nil
}

// UDir returns the horizontal flow direction [degrees clockwise from
// North] of the dataset's "vel" variable. Meaningful only in the earth
// frame.
func UDir(ds *Dataset) (*sparse.DenseArray, error) {
	vel := ds.Var("vel")
	if vel == nil {
		return nil, fmt.Errorf("dolfyn: dataset has no vel variable")
	}
	n := 1
	for _, s := range vel.Data.Shape[1:] {
		n *= s
	}
	out := sparse.ZerosDense(vel.Data.Shape[1:]...)
	for k := 0; k < n; k++ {
		u := vel.Data.Elements[k]
		v := vel.Data.Elements[n+k]
		d := math.Mod(90-math.Atan2(v, u)*180/math.Pi, 360)
		if d < 0 {
			d += 360
		}
		out.Elements[k] = d
	}
	return out, nil
}
