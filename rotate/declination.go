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

	"github.com/jmcvey3/dolfyn"
)

// SetDeclination bakes a magnetic declination [degrees east of true
// North] into the dataset's orientation matrices, so that subsequent
// earth-frame data is referenced to true North rather than magnetic.
//
// Each per-timestep orientation matrix is rotated by the declination
// about the vertical axis, the declination value and the baked-in flag
// are stored in the dataset attributes, and the raw heading variable is
// explicitly left alone: it records magnetic heading regardless of
// declination state.
//
// Setting the same declination twice is a no-op. Changing it requires
// force, otherwise DeclinationAlreadySetError is returned; with force
// only the difference from the previous declination is applied, so the
// operation remains consistent however often it is repeated.
//
// If the dataset is currently in the earth frame, its rotatable
// variables are rotated into the new true-North frame as well, and a
// set principal heading is shifted by the same difference, keeping the
// dataset self-consistent.
func SetDeclination(ds *dolfyn.Dataset, declin float64, force bool) error {
	if ds.Attrs.DeclinationSet {
		if declin == ds.Attrs.Declination {
			return nil
		}
		if !force {
			return &DeclinationAlreadySetError{Declination: ds.Attrs.Declination}
		}
	}
	angle := declin
	if ds.Attrs.DeclinationSet {
		angle = declin - ds.Attrs.Declination
	}

	omat, derived, err := ensureOrientmat(ds)
	if err != nil {
		return err
	}

	// Q converts magnetic-North ENU components to true-North ENU
	// components: a rotation by the declination about the vertical.
	s, c := math.Sincos(deg2rad(angle))
	q := mat3{
		{c, s, 0},
		{-s, c, 0},
		{0, 0, 1},
	}

	// The orientation matrix maps earth->inst; with the earth frame
	// redefined to true North it becomes O*Qt.
	qt := q.transpose()
	for t := 0; t < omat.Shape[2]; t++ {
		setOmatAt(omat, t, omatAt(omat, t).mul(qt))
	}
	if derived {
		if err := ds.AddVariable(&dolfyn.Variable{
			Name: "orientmat",
			Dims: []string{"earth", "inst", "time"},
			Data: omat,
		}); err != nil {
			return err
		}
	}

	if ds.Attrs.CoordSys == dolfyn.Earth {
		forEachRotatable(ds, func(v *dolfyn.Variable) {
			if v.Rotatable == dolfyn.RotateTensor {
				applyFixedTensor(v.Data, q)
			} else {
				applyFixed(v.Data, q)
			}
		})
	}
	if ds.Attrs.PrincipalHeadingSet {
		// The physical streamwise axis is unchanged; its heading
		// relative to true North shifts with the declination.
		ds.Attrs.PrincipalHeading = wrapDeg(ds.Attrs.PrincipalHeading + angle)
	}

	ds.Attrs.Declination = declin
	ds.Attrs.DeclinationSet = true
	ds.Attrs.DeclinationInOrientmat = true
	return nil
}
