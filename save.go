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
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/mat"
)

// SaveNetCDF writes the dataset to a netCDF-3 file, including the
// coordinate-system state, rotatable declarations and instrument
// attributes needed to reconstruct it with LoadNetCDF.
func SaveNetCDF(ds *Dataset, filename string) error {
	dims := []string{"time"}
	lengths := []int{len(ds.Time)}
	seen := map[string]int{"time": len(ds.Time)}
	for _, name := range ds.Names() {
		v := ds.Var(name)
		for i, d := range v.Dims {
			if n, ok := seen[d]; ok {
				if n != v.Data.Shape[i] {
					return fmt.Errorf("dolfyn: saving %s: dimension %s has length %d here but %d elsewhere",
						filename, d, v.Data.Shape[i], n)
				}
				continue
			}
			seen[d] = v.Data.Shape[i]
			dims = append(dims, d)
			lengths = append(lengths, v.Data.Shape[i])
		}
	}

	h := cdf.NewHeader(dims, lengths)
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", "seconds since 1970-01-01 00:00:00")
	for _, name := range ds.Names() {
		v := ds.Var(name)
		h.AddVariable(name, v.Dims, []float64{0})
		if v.Units != "" {
			h.AddAttribute(name, "units", v.Units)
		}
		h.AddAttribute(name, "rotatable", []int32{int32(v.Rotatable)})
		if v.BeamOriented {
			h.AddAttribute(name, "beam_oriented", []int32{1})
		}
	}
	addGlobalAttrs(h, &ds.Attrs)
	h.Define()
	for _, err := range h.Check() {
		return fmt.Errorf("dolfyn: creating netcdf header for %s: %v", filename, err)
	}

	ff, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("dolfyn: creating netcdf file: %v", err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("dolfyn: creating netcdf file %s: %v", filename, err)
	}

	w := f.Writer("time", []int{0}, []int{len(ds.Time)})
	if _, err := w.Write(ds.Time); err != nil {
		return fmt.Errorf("dolfyn: writing time to %s: %v", filename, err)
	}
	for _, name := range ds.Names() {
		v := ds.Var(name)
		begin := make([]int, len(v.Data.Shape))
		w := f.Writer(name, begin, v.Data.Shape)
		if _, err := w.Write(v.Data.Elements); err != nil {
			return fmt.Errorf("dolfyn: writing %s to %s: %v", name, filename, err)
		}
	}
	return nil
}

func addGlobalAttrs(h *cdf.Header, a *Attrs) {
	for _, s := range []struct{ name, val string }{
		{"inst_make", a.InstMake},
		{"inst_model", a.InstModel},
		{"inst_type", a.InstType},
	} {
		if s.val != "" {
			h.AddAttribute("", s.name, s.val)
		}
	}
	h.AddAttribute("", "fs", []float64{a.Fs})
	h.AddAttribute("", "coord_sys", a.CoordSys.String())
	h.AddAttribute("", "has_imu", []int32{b2i(a.HasIMU)})
	if a.DeclinationSet {
		h.AddAttribute("", "declination", []float64{a.Declination})
		h.AddAttribute("", "declination_in_orientmat", []int32{b2i(a.DeclinationInOrientmat)})
	}
	if a.PrincipalHeadingSet {
		h.AddAttribute("", "principal_heading", []float64{a.PrincipalHeading})
	}
	if a.Beam2Inst != nil {
		raw := make([]float64, 0, 9)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				raw = append(raw, a.Beam2Inst.At(i, j))
			}
		}
		h.AddAttribute("", "beam2inst_orientmat", raw)
	}
	if a.BeamAngle != 0 {
		h.AddAttribute("", "beam_angle", []float64{a.BeamAngle})
	}
	if a.CellSize != 0 {
		h.AddAttribute("", "cell_size", []float64{a.CellSize})
	}
	if a.BlankDist != 0 {
		h.AddAttribute("", "blank_dist", []float64{a.BlankDist})
	}
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// LoadNetCDF reads a dataset previously written with SaveNetCDF.
func LoadNetCDF(filename string) (*Dataset, error) {
	ff, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("dolfyn: opening netcdf file: %v", err)
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		return nil, fmt.Errorf("dolfyn: reading netcdf file %s: %v", filename, err)
	}
	h := f.Header

	time, err := readVar(f, "time")
	if err != nil {
		return nil, fmt.Errorf("dolfyn: reading time from %s: %v", filename, err)
	}
	ds := New(time)
	readGlobalAttrs(h, &ds.Attrs)

	for _, name := range h.Variables() {
		if name == "time" {
			continue
		}
		data, err := readVar(f, name)
		if err != nil {
			return nil, fmt.Errorf("dolfyn: reading %s from %s: %v", name, filename, err)
		}
		shape := h.Lengths(name)
		arr := sparse.ZerosDense(shape...)
		copy(arr.Elements, data)
		v := &Variable{
			Name:      name,
			Dims:      h.Dimensions(name),
			Data:      arr,
			Rotatable: Rotatable(attrInt(h, name, "rotatable")),
		}
		if attrInt(h, name, "beam_oriented") != 0 {
			v.BeamOriented = true
		}
		if u, ok := h.GetAttribute(name, "units").(string); ok {
			v.Units = u
		}
		if err := ds.AddVariable(v); err != nil {
			return nil, fmt.Errorf("dolfyn: loading %s: %v", filename, err)
		}
	}
	return ds, nil
}

func readVar(f *cdf.File, name string) ([]float64, error) {
	lengths := f.Header.Lengths(name)
	n := 1
	for _, l := range lengths {
		n *= l
	}
	buf := make([]float64, n)
	r := f.Reader(name, make([]int, len(lengths)), lengths)
	if _, err := r.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readGlobalAttrs(h *cdf.Header, a *Attrs) {
	a.InstMake, _ = h.GetAttribute("", "inst_make").(string)
	a.InstModel, _ = h.GetAttribute("", "inst_model").(string)
	a.InstType, _ = h.GetAttribute("", "inst_type").(string)
	a.Fs = attrFloat(h, "", "fs")
	if cs, ok := h.GetAttribute("", "coord_sys").(string); ok {
		if frame, err := ParseFrame(cs); err == nil {
			a.CoordSys = frame
		}
	}
	a.HasIMU = attrInt(h, "", "has_imu") != 0
	if v, ok := h.GetAttribute("", "declination").([]float64); ok && len(v) == 1 {
		a.Declination = v[0]
		a.DeclinationSet = true
		a.DeclinationInOrientmat = attrInt(h, "", "declination_in_orientmat") != 0
	}
	if v, ok := h.GetAttribute("", "principal_heading").([]float64); ok && len(v) == 1 {
		a.PrincipalHeading = v[0]
		a.PrincipalHeadingSet = true
	}
	if v, ok := h.GetAttribute("", "beam2inst_orientmat").([]float64); ok && len(v) == 9 {
		a.Beam2Inst = mat.NewDense(3, 3, v)
	}
	a.BeamAngle = attrFloat(h, "", "beam_angle")
	a.CellSize = attrFloat(h, "", "cell_size")
	a.BlankDist = attrFloat(h, "", "blank_dist")
}

func attrFloat(h *cdf.Header, v, name string) float64 {
	if x, ok := h.GetAttribute(v, name).([]float64); ok && len(x) == 1 {
		return x[0]
	}
	return 0
}

func attrInt(h *cdf.Header, v, name string) int32 {
	if x, ok := h.GetAttribute(v, name).([]int32); ok && len(x) == 1 {
		return x[0]
	}
	return 0
}
