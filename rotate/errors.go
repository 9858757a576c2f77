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

import "fmt"

// SingularCalibrationError indicates that the beam-to-inst calibration
// matrix is not invertible. This signals corrupted or missing instrument
// calibration; it is not retryable.
type SingularCalibrationError struct {
	// Det is the determinant that was found to be within machine
	// epsilon of zero.
	Det float64
}

func (e *SingularCalibrationError) Error() string {
	return fmt.Sprintf("rotate: beam calibration matrix is singular (determinant %g)", e.Det)
}

// DeclinationAlreadySetError indicates that a declination has already
// been baked into the orientation matrices and the caller did not
// request an explicit override. Re-declination must be intentional.
type DeclinationAlreadySetError struct {
	// Declination is the value currently baked in [degrees].
	Declination float64
}

func (e *DeclinationAlreadySetError) Error() string {
	return fmt.Sprintf("rotate: declination %g already set; pass force to override", e.Declination)
}

// MissingPrerequisiteError indicates that data required for a rotation
// step is absent from the dataset. It is raised before any mutation, so
// the dataset is left exactly as it was. The caller may supply the
// missing metadata and retry.
type MissingPrerequisiteError struct {
	// From and To name the frame edge that could not be traversed.
	From, To string
	// Missing describes the absent input.
	Missing string
}

func (e *MissingPrerequisiteError) Error() string {
	return fmt.Sprintf("rotate: %s: cannot rotate %s->%s", e.Missing, e.From, e.To)
}

// InvalidFrameError indicates a request for a coordinate system outside
// the known set, or a dataset whose recorded frame is unknown.
type InvalidFrameError struct {
	Frame string
}

func (e *InvalidFrameError) Error() string {
	return fmt.Sprintf("rotate: invalid coordinate system %q", e.Frame)
}

// OrthonormalityWarning reports that an orientation matrix determinant
// deviates from 1 beyond tolerance. It is surfaced, not fatal: transforms
// proceed, but the deviation usually means the matrices were damaged
// upstream (e.g. by averaging them directly).
type OrthonormalityWarning struct {
	// MaxDeviation is the largest |det-1| found.
	MaxDeviation float64
	// Index is the time index at which it occurred.
	Index int
}

func (e *OrthonormalityWarning) Error() string {
	return fmt.Sprintf("rotate: orientation matrix determinant deviates from 1 by %g at sample %d; matrices may have been averaged",
		e.MaxDeviation, e.Index)
}
