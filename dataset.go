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

// Package dolfyn holds the labeled dataset container for oceanographic
// current-measurement data (acoustic Doppler velocimeters and profilers),
// along with its netCDF serialization. The coordinate-rotation engine
// lives in the rotate subpackage, bin-averaging and turbulence statistics
// in the velocity and turbulence subpackages, and instrument file readers
// in the nortek subpackage.
package dolfyn

import (
	"fmt"
	"strings"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/mat"
)

// Frame identifies the coordinate system that the rotatable variables
// of a dataset are currently expressed in. The four frames form a linear
// chain: beam–inst–earth–principal.
type Frame int

const (
	// Beam is the raw along-beam velocity frame of a multi-beam
	// instrument. Its basis is not orthogonal.
	Beam Frame = iota
	// Inst is the orthonormal instrument-fixed XYZ frame.
	Inst
	// Earth is East-North-Up, optionally declination-corrected.
	Earth
	// Principal is the earth frame rotated in the horizontal plane to
	// align with the mean flow (streamwise, cross-stream, up).
	Principal
)

var frameNames = map[Frame]string{
	Beam:      "beam",
	Inst:      "inst",
	Earth:     "earth",
	Principal: "principal",
}

func (f Frame) String() string {
	if s, ok := frameNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Frame(%d)", int(f))
}

// Valid reports whether f is one of the four known frames.
func (f Frame) Valid() bool { return f >= Beam && f <= Principal }

// ParseFrame converts a frame name ("beam", "inst", "earth" or
// "principal") to a Frame.
func ParseFrame(s string) (Frame, error) {
	for f, name := range frameNames {
		if name == strings.ToLower(strings.TrimSpace(s)) {
			return f, nil
		}
	}
	return -1, fmt.Errorf("dolfyn: unknown coordinate system %q", s)
}

// Rotatable declares how a variable participates in coordinate
// rotations. It is fixed when the variable is added to a dataset.
type Rotatable int

const (
	// RotateNone marks a variable that passes through rotations
	// unchanged (scalars, signal quality, coordinates).
	RotateNone Rotatable = iota
	// RotateVector marks a 3-component vector quantity that is
	// transformed by per-timestep matrix-vector multiplication.
	RotateVector
	// RotateTensor marks a 3x3 rank-2 tensor quantity that is
	// transformed by the congruence R*T*Rt.
	RotateTensor
)

// rotatablePrefixes are the variable-name prefixes permitted for
// rotatable variables. Anything else is presumed not to be a physical
// vector quantity and is rejected at construction.
var rotatablePrefixes = []string{"vel", "accel", "angrt", "mag", "stress"}

// Variable is a single named array in a Dataset. Data is stored with
// the component axis (if any) first and the time axis last; coordinate
// variables (e.g. "range", "freq") carry no time axis.
type Variable struct {
	Name  string
	Dims  []string
	Units string
	// Rotatable declares whether and how the rotation engine
	// transforms this variable.
	Rotatable Rotatable
	// BeamOriented marks velocity-like variables that are measured
	// along the instrument beams. When the dataset frame is Beam,
	// these are the only variables actually in beam coordinates; all
	// other rotatable variables remain in the inst frame.
	BeamOriented bool
	Data         *sparse.DenseArray
}

// Copy returns a deep copy of v.
func (v *Variable) Copy() *Variable {
	out := &Variable{
		Name:         v.Name,
		Dims:         append([]string(nil), v.Dims...),
		Units:        v.Units,
		Rotatable:    v.Rotatable,
		BeamOriented: v.BeamOriented,
	}
	if v.Data != nil {
		out.Data = v.Data.Copy()
	}
	return out
}

// Attrs holds dataset-level metadata. CoordSys tracks the single
// coordinate system the rotatable variables are in; the rotation engine
// is the only code that should change it.
type Attrs struct {
	InstMake  string
	InstModel string
	InstType  string

	// Fs is the sampling frequency [Hz].
	Fs float64

	CoordSys Frame

	// Declination is the magnetic declination [degrees east of true
	// North] most recently applied with rotate.SetDeclination.
	// DeclinationInOrientmat records that the declination has been
	// baked into the orientation matrices. The raw heading variable is
	// never adjusted; it remains magnetic.
	Declination            float64
	DeclinationSet         bool
	DeclinationInOrientmat bool

	// HasIMU reports whether the instrument provides orientation
	// matrices directly (e.g. a MicroStrain AHRS) rather than only
	// heading/pitch/roll.
	HasIMU bool

	// PrincipalHeading is the streamwise direction [degrees clockwise
	// from North] defining the principal frame. It is set explicitly
	// by the analyst, typically from rotate.CalcPrincipalHeading.
	PrincipalHeading    float64
	PrincipalHeadingSet bool

	// Beam2Inst is the instrument calibration matrix mapping
	// beam-coordinate velocity to inst-coordinate velocity. It is not
	// orthonormal; its inverse must be computed explicitly.
	Beam2Inst *mat.Dense

	// Profiler geometry, where applicable.
	BeamAngle float64 // [degrees]
	CellSize  float64 // [m]
	BlankDist float64 // [m]
}

// Dataset is a time-indexed collection of named variables plus
// instrument metadata. It is created by an instrument file reader (or
// test fixture); the rotation engine mutates the values of rotatable
// variables and the CoordSys attribute, and nothing else.
type Dataset struct {
	// Time holds the sample times [s since the epoch].
	Time  []float64
	Attrs Attrs

	vars  map[string]*Variable
	order []string
}

// New creates an empty dataset over the given time axis.
func New(time []float64) *Dataset {
	return &Dataset{
		Time: time,
		vars: make(map[string]*Variable),
	}
}

// AddVariable validates v against the dataset and stores it. The
// rotatable declaration is checked here, once, so that the rotation
// engine never needs to pattern-match names at rotate time.
func (d *Dataset) AddVariable(v *Variable) error {
	if v.Name == "" {
		return fmt.Errorf("dolfyn: adding variable with empty name")
	}
	if _, ok := d.vars[v.Name]; ok {
		return fmt.Errorf("dolfyn: variable %s already exists", v.Name)
	}
	if v.Data == nil {
		return fmt.Errorf("dolfyn: variable %s has no data", v.Name)
	}
	if len(v.Dims) != len(v.Data.Shape) {
		return fmt.Errorf("dolfyn: variable %s has %d dims but %d axes",
			v.Name, len(v.Dims), len(v.Data.Shape))
	}
	if n := len(v.Dims); n > 0 && v.Dims[n-1] == "time" &&
		v.Data.Shape[n-1] != len(d.Time) {
		return fmt.Errorf("dolfyn: variable %s time axis length %d does not match dataset length %d",
			v.Name, v.Data.Shape[n-1], len(d.Time))
	}
	if v.Rotatable != RotateNone {
		if !hasRotatablePrefix(v.Name) {
			return fmt.Errorf("dolfyn: variable %s declared rotatable but does not begin with one of %v",
				v.Name, rotatablePrefixes)
		}
		switch v.Rotatable {
		case RotateVector:
			if v.Data.Shape[0] != 3 {
				return fmt.Errorf("dolfyn: rotatable vector %s must have leading axis 3, has %d",
					v.Name, v.Data.Shape[0])
			}
		case RotateTensor:
			if len(v.Data.Shape) < 2 || v.Data.Shape[0] != 3 || v.Data.Shape[1] != 3 {
				return fmt.Errorf("dolfyn: rotatable tensor %s must have leading axes 3x3", v.Name)
			}
		}
	}
	if v.Name == "orientmat" {
		if len(v.Data.Shape) != 3 || v.Data.Shape[0] != 3 || v.Data.Shape[1] != 3 {
			return fmt.Errorf("dolfyn: orientmat must be 3x3xNt, has shape %v", v.Data.Shape)
		}
	}
	d.vars[v.Name] = v
	d.order = append(d.order, v.Name)
	return nil
}

func hasRotatablePrefix(name string) bool {
	for _, p := range rotatablePrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Var returns the named variable, or nil if it is not present.
func (d *Dataset) Var(name string) *Variable { return d.vars[name] }

// Has reports whether the named variable is present.
func (d *Dataset) Has(name string) bool {
	_, ok := d.vars[name]
	return ok
}

// Names lists the variables in insertion order.
func (d *Dataset) Names() []string { return append([]string(nil), d.order...) }

// DropVariable removes the named variable, if present.
func (d *Dataset) DropVariable(name string) {
	if _, ok := d.vars[name]; !ok {
		return
	}
	delete(d.vars, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Copy returns a deep copy of the dataset: variables, time axis and
// attributes are all duplicated.
func (d *Dataset) Copy() *Dataset {
	out := New(append([]float64(nil), d.Time...))
	out.Attrs = d.Attrs
	if d.Attrs.Beam2Inst != nil {
		out.Attrs.Beam2Inst = mat.DenseCopyOf(d.Attrs.Beam2Inst)
	}
	for _, name := range d.order {
		if err := out.AddVariable(d.vars[name].Copy()); err != nil {
			// The source dataset already passed validation.
			panic(err)
		}
	}
	return out
}
