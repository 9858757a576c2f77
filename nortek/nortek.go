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

// Package nortek reads Nortek binary instrument files (Vector ADVs and
// AWAC profilers) into dolfyn datasets.
//
// The file format is a sequence of records framed by a 0xa5 sync byte
// and a one-byte ID, with a trailing word-sum checksum seeded with
// 0xb58c. The hardware, head and user configuration records at the top
// of the file carry the instrument calibration (including the
// beam-to-inst transformation matrix) and the recording configuration;
// data records follow.
package nortek

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/ctessum/sparse"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/jmcvey3/dolfyn"
)

const (
	syncByte     = 0xa5
	checksumSeed = 0xb58c

	idHardwareCfg = 0x05
	idHeadCfg     = 0x04
	idUserCfg     = 0x00
	idVecCheck    = 0x07
	idVecData     = 0x10
	idVecSysData  = 0x11
	idVecHeader   = 0x12
	idMicrostrain = 0x71
	idAwacProfile = 0x20
)

// ReadFile reads a Nortek binary file into a dataset.
func ReadFile(filename string) (*dolfyn.Dataset, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("nortek: reading %s: %v", filename, err)
	}
	ds, err := Read(b)
	if err != nil {
		return nil, fmt.Errorf("nortek: parsing %s: %v", filename, err)
	}
	return ds, nil
}

// Read parses the contents of a Nortek binary file.
func Read(b []byte) (*dolfyn.Dataset, error) {
	r := &reader{buf: b, order: binary.LittleEndian}
	if len(b) < 4 {
		return nil, fmt.Errorf("nortek: file too short")
	}
	// The endianness check from the Nortek System Integrator Manual:
	// the first record is the hardware configuration, size 24 words.
	if binary.LittleEndian.Uint16(b[0:2]) != 0x05a5 ||
		binary.LittleEndian.Uint16(b[2:4]) != 24 {
		if binary.BigEndian.Uint16(b[2:4]) == 24 {
			r.order = binary.BigEndian
		} else {
			return nil, fmt.Errorf("nortek: not a Nortek data file (bad leading hardware configuration)")
		}
	}
	if err := r.readAll(); err != nil {
		return nil, err
	}
	return r.toDataset()
}

type reader struct {
	buf   []byte
	pos   int
	order binary.ByteOrder

	// configuration
	serial     string
	headFreq   uint16
	nBeams     uint16
	nBins      int
	binLength  uint16
	avgIntv    uint16
	blankDist  uint16
	coordSys   dolfyn.Frame
	beam2inst  *mat.Dense
	model      string // "VECTOR" or "AWAC"
	haveHW     bool
	haveHead   bool
	haveUser   bool

	// vector data
	velRaw   [3][]float64 // mm/s
	amp      [3][]float64
	corr     [3][]float64
	pressure []float64

	// system data, sparse over samples (NaN between updates)
	mtime   []float64
	batt    []float64
	csound  []float64
	heading []float64
	pitch   []float64
	roll    []float64
	temp    []float64

	// microstrain AHRS
	accel    [3][]float64
	angrt    [3][]float64
	magn     [3][]float64
	omat     []float64 // 9 values per sample, row-major
	haveAHRS bool

	// awac profile data
	profVel [][]float64 // 3*nBins per sample
	profAmp [][]float64

	lastWasSys bool
	c          int // current sample index (1 + last written)
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) readAll() error {
	for r.remaining() >= 2 {
		if r.buf[r.pos] != syncByte {
			// Corrupted block; scan for the next sync code.
			r.pos++
			continue
		}
		id := r.buf[r.pos+1]
		var err error
		switch id {
		case idHardwareCfg:
			err = r.readHardwareCfg()
		case idHeadCfg:
			err = r.readHeadCfg()
		case idUserCfg:
			err = r.readUserCfg()
		case idVecCheck:
			err = r.readVecCheck()
		case idVecData:
			err = r.readVecData()
		case idVecSysData:
			err = r.readVecSysData()
		case idVecHeader:
			err = r.readVecHeader()
		case idMicrostrain:
			err = r.readMicrostrain()
		case idAwacProfile:
			err = r.readAwacProfile()
		default:
			log.Debugf("nortek: unrecognized record id 0x%02x at offset %d", id, r.pos)
			r.pos += 2
			continue
		}
		if err != nil {
			if err == errShort {
				break // truncated final record
			}
			return err
		}
	}
	if !r.haveHW || !r.haveHead || !r.haveUser {
		return fmt.Errorf("nortek: missing hardware/head/user configuration records")
	}
	return nil
}

var errShort = fmt.Errorf("nortek: truncated record")

// record returns the full record of n bytes starting at the sync byte,
// verifies the trailing checksum and advances past it.
func (r *reader) record(n int) ([]byte, error) {
	if r.remaining() < n+2 {
		r.pos = len(r.buf)
		return nil, errShort
	}
	rec := r.buf[r.pos : r.pos+n]
	sum := uint16(checksumSeed)
	for i := 0; i+1 < n; i += 2 {
		sum += r.order.Uint16(rec[i : i+2])
	}
	want := r.order.Uint16(r.buf[r.pos+n : r.pos+n+2])
	r.pos += n + 2
	if sum != want {
		log.Warnf("nortek: checksum failed for record 0x%02x", rec[1])
	}
	return rec, nil
}

func (r *reader) u16(b []byte) uint16  { return r.order.Uint16(b) }
func (r *reader) i16(b []byte) int16   { return int16(r.order.Uint16(b)) }
func (r *reader) u32(b []byte) uint32  { return r.order.Uint32(b) }
func (r *reader) f32(b []byte) float64 { return float64(math.Float32frombits(r.order.Uint32(b))) }

func (r *reader) readHardwareCfg() error {
	rec, err := r.record(46)
	if err != nil {
		return err
	}
	r.serial = strings.TrimRight(string(rec[4:18]), "\x00 ")
	r.haveHW = true
	switch {
	case strings.HasPrefix(strings.ToUpper(r.serial), "WPR"):
		r.model = "AWAC"
	case strings.HasPrefix(strings.ToUpper(r.serial), "VEC"):
		r.model = "VECTOR"
	}
	return nil
}

func (r *reader) readHeadCfg() error {
	rec, err := r.record(222)
	if err != nil {
		return err
	}
	r.headFreq = r.u16(rec[6:8])
	// The transformation matrix lives in the head "system" block,
	// stored as 9 int16s scaled by 4096.
	sys := rec[22 : 22+176]
	v := make([]float64, 9)
	for i := 0; i < 9; i++ {
		v[i] = float64(r.i16(sys[8+2*i:10+2*i])) / 4096
	}
	r.beam2inst = mat.NewDense(3, 3, v)
	r.nBeams = r.u16(rec[220:222])
	r.haveHead = true
	return nil
}

func (r *reader) readUserCfg() error {
	rec, err := r.record(510)
	if err != nil {
		return err
	}
	r.avgIntv = r.u16(rec[16:18])
	r.blankDist = r.u16(rec[6:8])
	switch r.u16(rec[32:34]) {
	case 0:
		r.coordSys = dolfyn.Earth // ENU
	case 1:
		r.coordSys = dolfyn.Inst // XYZ
	case 2:
		r.coordSys = dolfyn.Beam
	default:
		return fmt.Errorf("nortek: invalid coordinate system code in user configuration")
	}
	r.nBins = int(r.u16(rec[34:36]))
	r.binLength = r.u16(rec[36:38])
	r.haveUser = true
	return nil
}

func (r *reader) readVecHeader() error {
	_, err := r.record(40)
	return err
}

func (r *reader) readVecCheck() error {
	if r.remaining() < 8 {
		r.pos = len(r.buf)
		return errShort
	}
	n := int(r.u16(r.buf[r.pos+4 : r.pos+6]))
	_, err := r.record(8 + 3*n)
	return err
}

func (r *reader) readVecData() error {
	rec, err := r.record(22)
	if err != nil {
		return err
	}
	if !r.lastWasSys {
		r.c++
	}
	r.lastWasSys = false
	r.growVector(r.c)
	c := r.c - 1
	r.pressure[c] = float64(rec[4])*65536 + float64(r.u16(rec[6:8]))
	for i := 0; i < 3; i++ {
		r.velRaw[i][c] = float64(r.i16(rec[10+2*i : 12+2*i]))
		r.amp[i][c] = float64(rec[16+i])
		r.corr[i][c] = float64(rec[19+i])
	}
	return nil
}

func (r *reader) readVecSysData() error {
	rec, err := r.record(26)
	if err != nil {
		return err
	}
	r.lastWasSys = true
	r.c++
	r.growVector(r.c)
	c := r.c - 1
	r.mtime[c] = r.decodeClock(rec[4:10])
	r.batt[c] = float64(r.u16(rec[10:12])) / 10
	r.csound[c] = float64(r.u16(rec[12:14])) / 10
	r.heading[c] = float64(r.i16(rec[14:16])) / 10
	r.pitch[c] = float64(r.i16(rec[16:18])) / 10
	r.roll[c] = float64(r.i16(rec[18:20])) / 10
	r.temp[c] = float64(r.u16(rec[20:22])) / 100
	return nil
}

func (r *reader) readMicrostrain() error {
	if r.remaining() < 6 {
		r.pos = len(r.buf)
		return errShort
	}
	ahrsid := r.buf[r.pos+5]
	if ahrsid != 0xcc {
		// Other AHRS record layouts are not recorded by the Vector
		// firmware we support.
		n := int(r.u16(r.buf[r.pos+2:r.pos+4]))*2 - 2
		_, err := r.record(n)
		return err
	}
	rec, err := r.record(6 + 78)
	if err != nil {
		return err
	}
	if r.lastWasSys {
		// The firmware interleaves a system-data record between a
		// velocity sample and its AHRS data; undo the extra advance.
		r.lastWasSys = false
		r.c--
	}
	if r.c < 1 {
		// Orientation data before any velocity sample; attach it to
		// the first sample rather than abandoning the file.
		log.Warnf("nortek: orientation record before any velocity sample")
		r.c = 1
	}
	r.haveAHRS = true
	r.growVector(r.c)
	c := r.c - 1
	d := rec[6:]
	for i := 0; i < 3; i++ {
		r.accel[i][c] = r.f32(d[4*i : 4*i+4])
		r.angrt[i][c] = r.f32(d[12+4*i : 12+4*i+4])
		r.magn[i][c] = r.f32(d[24+4*i : 24+4*i+4])
	}
	for i := 0; i < 9; i++ {
		r.omat[9*c+i] = r.f32(d[36+4*i : 36+4*i+4])
	}
	return nil
}

func (r *reader) readAwacProfile() error {
	n := r.nBins
	size := 2 + 116 + 9*n + (9*n)%2
	rec, err := r.record(size)
	if err != nil {
		return err
	}
	r.c++
	r.growProfile(r.c)
	c := r.c - 1
	r.mtime[c] = r.decodeClock(rec[4:10])
	r.batt[c] = float64(r.u16(rec[14:16])) / 10
	r.csound[c] = float64(r.u16(rec[16:18])) / 10
	r.heading[c] = float64(r.i16(rec[18:20])) / 10
	r.pitch[c] = float64(r.i16(rec[20:22])) / 10
	r.roll[c] = float64(r.i16(rec[22:24])) / 10
	pmsb := float64(rec[24])
	plsw := float64(r.u16(rec[26:28]))
	r.pressure[c] = 65536*pmsb + plsw
	r.temp[c] = float64(r.i16(rec[28:30])) / 100
	// A spare block precedes the profile; velocities start 118 bytes
	// into the record, followed by the amplitude bytes.
	for i := 0; i < 3*n; i++ {
		r.profVel[c][i] = float64(r.i16(rec[118+2*i : 120+2*i]))
	}
	for i := 0; i < 3*n; i++ {
		r.profAmp[c][i] = float64(rec[118+6*n+i])
	}
	return nil
}

func (r *reader) growVector(n int) {
	for len(r.mtime) < n {
		r.mtime = append(r.mtime, math.NaN())
		r.batt = append(r.batt, math.NaN())
		r.csound = append(r.csound, math.NaN())
		r.heading = append(r.heading, math.NaN())
		r.pitch = append(r.pitch, math.NaN())
		r.roll = append(r.roll, math.NaN())
		r.temp = append(r.temp, math.NaN())
		r.pressure = append(r.pressure, math.NaN())
		for i := 0; i < 3; i++ {
			r.velRaw[i] = append(r.velRaw[i], math.NaN())
			r.amp[i] = append(r.amp[i], math.NaN())
			r.corr[i] = append(r.corr[i], math.NaN())
			r.accel[i] = append(r.accel[i], math.NaN())
			r.angrt[i] = append(r.angrt[i], math.NaN())
			r.magn[i] = append(r.magn[i], math.NaN())
		}
		r.omat = append(r.omat, make([]float64, 9)...)
	}
}

func (r *reader) growProfile(n int) {
	for len(r.mtime) < n {
		r.mtime = append(r.mtime, math.NaN())
		r.batt = append(r.batt, math.NaN())
		r.csound = append(r.csound, math.NaN())
		r.heading = append(r.heading, math.NaN())
		r.pitch = append(r.pitch, math.NaN())
		r.roll = append(r.roll, math.NaN())
		r.temp = append(r.temp, math.NaN())
		r.pressure = append(r.pressure, math.NaN())
		r.profVel = append(r.profVel, make([]float64, 3*r.nBins))
		r.profAmp = append(r.profAmp, make([]float64, 3*r.nBins))
	}
}

// decodeClock reads the 6-byte BCD clock (minute, second, day, hour,
// year, month) and returns seconds since the epoch.
func (r *reader) decodeClock(b []byte) float64 {
	min := bcd(b[0])
	sec := bcd(b[1])
	day := bcd(b[2])
	hour := bcd(b[3])
	year := bcd(b[4])
	month := bcd(b[5])
	if year < 90 {
		year += 100
	}
	t := time.Date(1900+year, time.Month(month), day, hour, min, sec, 0, time.UTC)
	return float64(t.Unix())
}

func bcd(c byte) int {
	if c > 153 {
		c = 153
	}
	return int(c&15) + 10*int(c>>4)
}

// toDataset converts the parsed records to a dataset in scientific
// units.
func (r *reader) toDataset() (*dolfyn.Dataset, error) {
	switch r.model {
	case "AWAC":
		return r.toProfileDataset()
	default:
		return r.toVectorDataset()
	}
}

func (r *reader) fs() float64 {
	if r.avgIntv == 0 {
		return 1
	}
	return 512 / float64(r.avgIntv)
}

func (r *reader) toVectorDataset() (*dolfyn.Dataset, error) {
	n := r.c
	if n == 0 {
		return nil, fmt.Errorf("nortek: no velocity samples in file")
	}
	fs := r.fs()
	tm := regularizeTime(r.mtime[:n], fs)
	ds := dolfyn.New(tm)
	ds.Attrs = dolfyn.Attrs{
		InstMake:  "Nortek",
		InstModel: "VECTOR",
		InstType:  "ADV",
		Fs:        fs,
		CoordSys:  r.coordSys,
		Beam2Inst: r.beam2inst,
		HasIMU:    r.haveAHRS,
	}

	vel := sparse.ZerosDense(3, n)
	amp := sparse.ZerosDense(3, n)
	corr := sparse.ZerosDense(3, n)
	for i := 0; i < 3; i++ {
		for t := 0; t < n; t++ {
			vel.Set(r.velRaw[i][t]*0.001, i, t) // mm/s -> m/s
			amp.Set(r.amp[i][t], i, t)
			corr.Set(r.corr[i][t], i, t)
		}
	}
	add := func(v *dolfyn.Variable) error { return ds.AddVariable(v) }
	if err := add(&dolfyn.Variable{Name: "vel", Dims: []string{"dir", "time"},
		Units: "m/s", Rotatable: dolfyn.RotateVector, BeamOriented: true,
		Data: vel}); err != nil {
		return nil, err
	}
	if err := add(&dolfyn.Variable{Name: "amp", Dims: []string{"dir", "time"},
		Units: "counts", Data: amp}); err != nil {
		return nil, err
	}
	if err := add(&dolfyn.Variable{Name: "corr", Dims: []string{"dir", "time"},
		Units: "%", Data: corr}); err != nil {
		return nil, err
	}
	for _, s := range []struct {
		name, units string
		data        []float64
		scale       float64
	}{
		{"pressure", "dbar", r.pressure[:n], 0.001},
		{"heading", "deg", r.heading[:n], 1},
		{"pitch", "deg", r.pitch[:n], 1},
		{"roll", "deg", r.roll[:n], 1},
		{"temp", "C", r.temp[:n], 1},
		{"batt", "V", r.batt[:n], 1},
		{"c_sound", "m/s", r.csound[:n], 1},
	} {
		d := sparse.ZerosDense(n)
		for t, v := range s.data {
			d.Elements[t] = v * s.scale
		}
		// System data arrives once per second; interpolate to the
		// velocity sample rate.
		linearFill(d.Elements)
		if err := add(&dolfyn.Variable{Name: s.name, Dims: []string{"time"},
			Units: s.units, Data: d}); err != nil {
			return nil, err
		}
	}

	if r.haveAHRS {
		if err := r.addAHRS(ds, n); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// addAHRS attaches the MicroStrain IMU variables, rotated from the
// sensor's body/NED conventions to the ADV's inst/ENU conventions:
// body axes map as (x,y,-z)_ms = (z,y,x)_adv, and the earth reference
// flips from North-East-Down to East-North-Up.
func (r *reader) addAHRS(ds *dolfyn.Dataset, n int) error {
	const gravity = 9.80665 // MicroStrain 3DM-GX3 accel units are g

	for _, s := range []struct {
		name, units string
		src         *[3][]float64
		rotatable   dolfyn.Rotatable
		scale       float64
	}{
		{"accel", "m/s^2", &r.accel, dolfyn.RotateVector, gravity},
		{"angrt", "rad/s", &r.angrt, dolfyn.RotateVector, 1},
		{"mag", "gauss", &r.magn, dolfyn.RotateVector, 1},
	} {
		d := sparse.ZerosDense(3, n)
		for t := 0; t < n; t++ {
			x, y, z := s.src[0][t], s.src[1][t], s.src[2][t]
			// (x,y,-z)_ms = (z,y,x)_adv
			d.Set(-z*s.scale, 0, t)
			d.Set(y*s.scale, 1, t)
			d.Set(x*s.scale, 2, t)
		}
		if err := ds.AddVariable(&dolfyn.Variable{Name: s.name,
			Dims: []string{"dir", "time"}, Units: s.units,
			Rotatable: s.rotatable, Data: d}); err != nil {
			return err
		}
	}

	om := sparse.ZerosDense(3, 3, n)
	for t := 0; t < n; t++ {
		var m [3][3]float64
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				m[i][j] = r.omat[9*t+i*3+j]
			}
		}
		for i := 0; i < 3; i++ {
			// NED earth frame -> ENU: swap the first two columns and
			// negate the third.
			m[i][0], m[i][1] = m[i][1], m[i][0]
			m[i][2] = -m[i][2]
		}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				om.Set(m[i][j], i, j, t)
			}
		}
	}
	return ds.AddVariable(&dolfyn.Variable{Name: "orientmat",
		Dims: []string{"earth", "inst", "time"}, Data: om})
}

func (r *reader) toProfileDataset() (*dolfyn.Dataset, error) {
	n := r.c
	if n == 0 {
		return nil, fmt.Errorf("nortek: no profile samples in file")
	}
	nb := r.nBins
	tm := r.mtime[:n]
	ds := dolfyn.New(tm)
	ds.Attrs = dolfyn.Attrs{
		InstMake:  "Nortek",
		InstModel: "AWAC",
		InstType:  "ADP",
		Fs:        r.fs(),
		CoordSys:  r.coordSys,
		Beam2Inst: r.beam2inst,
		BeamAngle: 25, // all AWACs
	}

	vel := sparse.ZerosDense(3, nb, n)
	amp := sparse.ZerosDense(3, nb, n)
	for t := 0; t < n; t++ {
		for i := 0; i < 3; i++ {
			for j := 0; j < nb; j++ {
				vel.Set(r.profVel[t][i*nb+j]*0.001, i, j, t)
				amp.Set(r.profAmp[t][i*nb+j], i, j, t)
			}
		}
	}
	if err := ds.AddVariable(&dolfyn.Variable{Name: "vel",
		Dims: []string{"dir", "range", "time"}, Units: "m/s",
		Rotatable: dolfyn.RotateVector, BeamOriented: true, Data: vel}); err != nil {
		return nil, err
	}
	if err := ds.AddVariable(&dolfyn.Variable{Name: "amp",
		Dims: []string{"dir", "range", "time"}, Units: "counts", Data: amp}); err != nil {
		return nil, err
	}

	// Cell geometry, from the Nortek knowledge base. The head angle is
	// 25 degrees for all AWACs.
	csCoefs := map[uint16]float64{2000: 0.0239, 1000: 0.0478, 600: 0.0797, 400: 0.1195}
	cosHead := math.Cos(25 * math.Pi / 180)
	cs := float64(r.binLength) / 256 * csCoefs[r.headFreq] * cosHead
	bd := float64(r.blankDist)*0.0229*cosHead - cs
	ds.Attrs.CellSize = cs
	ds.Attrs.BlankDist = bd
	rng := sparse.ZerosDense(nb)
	for j := 0; j < nb; j++ {
		rng.Elements[j] = bd + cs*float64(j+1) // bin centers
	}
	if err := ds.AddVariable(&dolfyn.Variable{Name: "range",
		Dims: []string{"range"}, Units: "m", Data: rng}); err != nil {
		return nil, err
	}

	for _, s := range []struct {
		name, units string
		data        []float64
		scale       float64
	}{
		{"pressure", "dbar", r.pressure[:n], 0.001},
		{"heading", "deg", r.heading[:n], 1},
		{"pitch", "deg", r.pitch[:n], 1},
		{"roll", "deg", r.roll[:n], 1},
		{"temp", "C", r.temp[:n], 1},
		{"batt", "V", r.batt[:n], 1},
		{"c_sound", "m/s", r.csound[:n], 1},
	} {
		d := sparse.ZerosDense(n)
		for t, v := range s.data {
			d.Elements[t] = v * s.scale
		}
		if err := ds.AddVariable(&dolfyn.Variable{Name: s.name, Dims: []string{"time"},
			Units: s.units, Data: d}); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// regularizeTime replaces the once-per-second clock records with a
// least-squares linear fit over the sample index, giving every velocity
// sample a timestamp at the sampling rate.
func regularizeTime(t []float64, fs float64) []float64 {
	var xs, ys []float64
	for i, v := range t {
		if !math.IsNaN(v) {
			xs = append(xs, float64(i))
			ys = append(ys, v)
		}
	}
	out := make([]float64, len(t))
	if len(xs) < 2 {
		for i := range out {
			out[i] = float64(i) / fs
		}
		return out
	}
	slope, intercept, _, _, _, _ := stats.LinearRegression(xs, ys)
	for i := range out {
		out[i] = intercept + slope*float64(i)
	}
	return out
}

// linearFill interpolates interior NaN runs and extends the edges with
// the nearest value.
func linearFill(x []float64) {
	first, last := -1, -1
	for i, v := range x {
		if !math.IsNaN(v) {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return
	}
	for i := 0; i < first; i++ {
		x[i] = x[first]
	}
	for i := last + 1; i < len(x); i++ {
		x[i] = x[last]
	}
	i := first
	for i <= last {
		if !math.IsNaN(x[i]) {
			i++
			continue
		}
		start := i
		for math.IsNaN(x[i]) {
			i++
		}
		a, b := x[start-1], x[i]
		span := float64(i - start + 1)
		for j := start; j < i; j++ {
			x[j] = a + (b-a)*float64(j-start+1)/span
		}
	}
}
