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

package velocity

import (
	"math"
	"testing"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/mat"

	"github.com/jmcvey3/dolfyn"
)

func TestNewBinnerValidation(t *testing.T) {
	if _, err := NewBinner(1, 1, 0); err == nil {
		t.Error("bin length 1 should be rejected")
	}
	if _, err := NewBinner(64, 0, 0); err == nil {
		t.Error("zero sampling frequency should be rejected")
	}
	if _, err := NewBinner(64, 1, 128); err == nil {
		t.Error("fft longer than bin should be rejected")
	}
	if _, err := NewBinner(64, 1, -8); err == nil {
		t.Error("negative fft length should be rejected")
	}
	if _, err := NewBinner(64, 1, 1); err == nil {
		t.Error("fft length 1 should be rejected")
	}
	b, err := NewBinner(64, 1, 33)
	if err != nil {
		t.Fatal(err)
	}
	if b.NFFT != 32 {
		t.Errorf("odd fft length should round down to 32, have %d", b.NFFT)
	}
	b, err = NewBinner(64, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if b.NFFT != 64 {
		t.Errorf("default fft length: want 64, have %d", b.NFFT)
	}
}

func TestMeanVarSkipNaN(t *testing.T) {
	b, err := NewBinner(4, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	x := []float64{1, 2, 3, math.NaN(), 5, 5, 5, 5, 9} // last bin incomplete
	m := b.Mean(x)
	if len(m) != 2 {
		t.Fatalf("number of bins: want 2, have %d", len(m))
	}
	if m[0] != 2 || m[1] != 5 {
		t.Errorf("means: want [2 5], have %v", m)
	}
	v := b.Var(x)
	if math.Abs(v[0]-2.0/3.0) > 1e-12 || v[1] != 0 {
		t.Errorf("variances: want [0.667 0], have %v", v)
	}
}

func TestDetrendRemovesLine(t *testing.T) {
	b, err := NewBinner(32, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	x := make([]float64, 64)
	for i := range x {
		x[i] = 3 + 0.5*float64(i%32)
	}
	d := b.Detrend(x)
	for i, v := range d {
		if math.Abs(v) > 1e-9 {
			t.Fatalf("detrended sample %d: want 0, have %g", i, v)
		}
	}
}

func TestFreqLayout(t *testing.T) {
	b, err := NewBinner(128, 8, 0)
	if err != nil {
		t.Fatal(err)
	}
	f := b.Freq("Hz")
	if len(f) != 64 {
		t.Fatalf("frequency count: want 64, have %d", len(f))
	}
	if math.Abs(f[0]-8.0/128.0) > 1e-12 {
		t.Errorf("first frequency: want %g, have %g", 8.0/128.0, f[0])
	}
	if math.Abs(f[len(f)-1]-4) > 1e-12 {
		t.Errorf("last frequency should be Nyquist 4, have %g", f[len(f)-1])
	}
	fr := b.Freq("rad/s")
	if math.Abs(fr[0]-f[0]*2*math.Pi) > 1e-12 {
		t.Errorf("rad/s scaling: want %g, have %g", f[0]*2*math.Pi, fr[0])
	}
}

// The integral of the one-sided PSD over frequency approximates the
// signal variance.
func TestPSDRecoversVariance(t *testing.T) {
	const n = 1024
	const fs = 16.0
	b, err := NewBinner(n, fs, 0)
	if err != nil {
		t.Fatal(err)
	}
	x := make([]float64, n)
	amp := 0.8
	f0 := 1.0 // on a bin center: 64 cycles over the window
	for i := range x {
		x[i] = 2.5 + amp*math.Sin(2*math.Pi*f0*float64(i)/fs)
	}
	psd := b.PSD(x, "Hz")
	df := fs / float64(n)
	var total float64
	for _, p := range psd[0] {
		total += p * df
	}
	wantVar := amp * amp / 2
	if math.Abs(total-wantVar)/wantVar > 0.05 {
		t.Errorf("integrated spectrum: want about %g, have %g", wantVar, total)
	}

	// The peak must sit at f0.
	freq := b.Freq("Hz")
	kmax := 0
	for k, p := range psd[0] {
		if p > psd[0][kmax] {
			kmax = k
		}
	}
	if math.Abs(freq[kmax]-f0) > df {
		t.Errorf("spectral peak at %g Hz, want %g", freq[kmax], f0)
	}
}

func TestAutocovarianceLagZeroIsVariance(t *testing.T) {
	b, err := NewBinner(256, 4, 0)
	if err != nil {
		t.Fatal(err)
	}
	x := make([]float64, 256)
	for i := range x {
		x[i] = math.Sin(float64(i)*0.37) + 0.2*math.Cos(float64(i)*1.1)
	}
	acov := b.Autocovariance(x, 32)
	v := b.Var(x)
	if math.Abs(acov[0][0]-v[0]) > 1e-12 {
		t.Errorf("lag-0 autocovariance: want %g, have %g", v[0], acov[0][0])
	}
}

func TestBinAverage(t *testing.T) {
	const nt = 64
	tm := make([]float64, nt)
	for i := range tm {
		tm[i] = float64(i) * 0.5
	}
	ds := dolfyn.New(tm)
	ds.Attrs.Fs = 2
	ds.Attrs.CoordSys = dolfyn.Earth

	vel := sparse.ZerosDense(3, nt)
	for c := 0; c < 3; c++ {
		for k := 0; k < nt; k++ {
			vel.Set(float64(c)+float64(k%2), c, k) // per-bin mean c+0.5
		}
	}
	if err := ds.AddVariable(&dolfyn.Variable{Name: "vel", Dims: []string{"dir", "time"},
		Units: "m/s", Rotatable: dolfyn.RotateVector, Data: vel}); err != nil {
		t.Fatal(err)
	}
	rng := sparse.ZerosDense(5)
	if err := ds.AddVariable(&dolfyn.Variable{Name: "range", Dims: []string{"range"},
		Units: "m", Data: rng}); err != nil {
		t.Fatal(err)
	}

	b, err := NewBinner(16, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	avg, err := b.BinAverage(ds)
	if err != nil {
		t.Fatal(err)
	}
	if len(avg.Time) != 4 {
		t.Fatalf("averaged time length: want 4, have %d", len(avg.Time))
	}
	av := avg.Var("vel")
	if av == nil || av.Data.Shape[1] != 4 {
		t.Fatalf("averaged vel shape: %+v", av)
	}
	for c := 0; c < 3; c++ {
		for i := 0; i < 4; i++ {
			want := float64(c) + 0.5
			if math.Abs(av.Data.Get(c, i)-want) > 1e-12 {
				t.Fatalf("averaged vel[%d][%d]: want %g, have %g", c, i, want, av.Data.Get(c, i))
			}
		}
	}
	if av.Rotatable != dolfyn.RotateVector {
		t.Error("averaging dropped the rotatable declaration")
	}
	if r := avg.Var("range"); r == nil || r.Data.Shape[0] != 5 {
		t.Error("time-free variable should pass through unchanged")
	}

	short := dolfyn.New(tm[:8])
	if _, err := b.BinAverage(short); err == nil {
		t.Error("dataset shorter than one bin should be rejected")
	}
}

func TestBinAverageCopiesCalibration(t *testing.T) {
	const nt = 32
	ds := dolfyn.New(make([]float64, nt))
	ds.Attrs.Beam2Inst = mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
	b, err := NewBinner(16, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	avg, err := b.BinAverage(ds)
	if err != nil {
		t.Fatal(err)
	}
	avg.Attrs.Beam2Inst.Set(0, 0, 42)
	if ds.Attrs.Beam2Inst.At(0, 0) != 1 {
		t.Error("averaged dataset shares its calibration matrix with the source")
	}
}

// With NFFT < NBin the spectrum averages overlapping segments spanning
// the whole bin, and the variance integral still holds.
func TestPSDWelchSegments(t *testing.T) {
	const (
		n    = 1024
		nFFT = 256
		fs   = 16.0
	)
	b, err := NewBinner(n, fs, nFFT)
	if err != nil {
		t.Fatal(err)
	}
	x := make([]float64, n)
	amp := 0.6
	f0 := 1.0 // on a segment bin center: 16 cycles per segment
	for i := range x {
		x[i] = 1.2 + amp*math.Sin(2*math.Pi*f0*float64(i)/fs)
	}
	psd := b.PSD(x, "Hz")
	if len(psd[0]) != nFFT/2 {
		t.Fatalf("spectrum length: want %d, have %d", nFFT/2, len(psd[0]))
	}
	df := fs / float64(nFFT)
	var total float64
	for _, p := range psd[0] {
		total += p * df
	}
	wantVar := amp * amp / 2
	if math.Abs(total-wantVar)/wantVar > 0.05 {
		t.Errorf("integrated spectrum: want about %g, have %g", wantVar, total)
	}
}

func TestPSDBoxcarWindow(t *testing.T) {
	const (
		n  = 256
		fs = 8.0
	)
	b, err := NewBinner(n, fs, 0)
	if err != nil {
		t.Fatal(err)
	}
	b.Window = "boxcar"
	x := make([]float64, n)
	amp := 1.1
	f0 := 1.0
	for i := range x {
		x[i] = amp * math.Sin(2*math.Pi*f0*float64(i)/fs)
	}
	psd := b.PSD(x, "Hz")
	// An unwindowed on-bin sine puts all its variance in one bin.
	df := fs / float64(n)
	k0 := int(f0/df) - 1
	want := amp * amp / 2 / df
	if math.Abs(psd[0][k0]-want)/want > 1e-9 {
		t.Errorf("boxcar peak: want %g, have %g", want, psd[0][k0])
	}
}

// The cross-spectrum of a series with itself is its power spectrum.
func TestCSDSelfIsPSD(t *testing.T) {
	const n = 512
	b, err := NewBinner(n, 4, 128)
	if err != nil {
		t.Fatal(err)
	}
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(float64(i)*0.21) + 0.4*math.Cos(float64(i)*0.83)
	}
	psd := b.PSD(x, "Hz")
	csd := b.CSD(x, x, "Hz")
	for k := range psd[0] {
		if math.Abs(real(csd[0][k])-psd[0][k]) > 1e-12 {
			t.Fatalf("co-spectrum at %d: want %g, have %g", k, psd[0][k], real(csd[0][k]))
		}
		if math.Abs(imag(csd[0][k])) > 1e-12 {
			t.Fatalf("quadrature spectrum of a series with itself at %d: want 0, have %g",
				k, imag(csd[0][k]))
		}
	}
}
