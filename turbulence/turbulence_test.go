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

package turbulence

import (
	"math"
	"testing"

	"github.com/ctessum/sparse"

	"github.com/jmcvey3/dolfyn"
)

func turbDataset(t *testing.T, nt int, fs float64) *dolfyn.Dataset {
	t.Helper()
	tm := make([]float64, nt)
	for i := range tm {
		tm[i] = float64(i) / fs
	}
	ds := dolfyn.New(tm)
	ds.Attrs.Fs = fs
	ds.Attrs.CoordSys = dolfyn.Principal

	vel := sparse.ZerosDense(3, nt)
	for k := 0; k < nt; k++ {
		u := 1.0 + 0.3*math.Sin(float64(k)*0.7)
		v := 0.3 * math.Sin(float64(k)*0.7) // perfectly correlated with u'
		w := 0.1 * math.Cos(float64(k)*1.9)
		vel.Set(u, 0, k)
		vel.Set(v, 1, k)
		vel.Set(w, 2, k)
	}
	if err := ds.AddVariable(&dolfyn.Variable{Name: "vel", Dims: []string{"dir", "time"},
		Units: "m/s", Rotatable: dolfyn.RotateVector, Data: vel}); err != nil {
		t.Fatal(err)
	}
	return ds
}

func TestCalcShapes(t *testing.T) {
	ds := turbDataset(t, 1024, 8)
	b, err := NewBinner(256, 8, 0)
	if err != nil {
		t.Fatal(err)
	}
	out, err := b.Calc(ds)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Time) != 4 {
		t.Fatalf("binned time length: want 4, have %d", len(out.Time))
	}
	for _, c := range []struct {
		name  string
		shape []int
	}{
		{"tke_vec", []int{3, 4}},
		{"stress_vec", []int{3, 4}},
		{"psd", []int{3, 128, 4}},
		{"freq", []int{128}},
	} {
		v := out.Var(c.name)
		if v == nil {
			t.Fatalf("missing %s", c.name)
		}
		if len(v.Data.Shape) != len(c.shape) {
			t.Fatalf("%s shape: want %v, have %v", c.name, c.shape, v.Data.Shape)
		}
		for i := range c.shape {
			if v.Data.Shape[i] != c.shape[i] {
				t.Fatalf("%s shape: want %v, have %v", c.name, c.shape, v.Data.Shape)
			}
		}
	}
	if out.Attrs.CoordSys != dolfyn.Principal {
		t.Error("binning changed the coordinate system")
	}
}

// u' and v' are constructed identical, so u'v' equals the u variance
// and both equal the corresponding TKE component.
func TestStressMatchesCorrelatedComponents(t *testing.T) {
	ds := turbDataset(t, 2048, 8)
	b, err := NewBinner(512, 8, 0)
	if err != nil {
		t.Fatal(err)
	}
	out, err := b.Calc(ds)
	if err != nil {
		t.Fatal(err)
	}
	tke := out.Var("tke_vec").Data
	stress := out.Var("stress_vec").Data
	for i := 0; i < tke.Shape[1]; i++ {
		upup := tke.Get(0, i)
		upvp := stress.Get(0, i)
		if math.Abs(upvp-upup) > 1e-3*upup {
			t.Errorf("bin %d: u'v' %g should match u'u' %g", i, upvp, upup)
		}
		if upup <= 0 {
			t.Errorf("bin %d: u'u' should be positive, have %g", i, upup)
		}
	}
}

func TestNoiseSubtraction(t *testing.T) {
	ds := turbDataset(t, 1024, 8)
	clean, err := NewBinner(512, 8, 0)
	if err != nil {
		t.Fatal(err)
	}
	noisy, err := NewBinner(512, 8, 0)
	if err != nil {
		t.Fatal(err)
	}
	const noise = 0.05
	noisy.Noise = [3]float64{noise, 0, 0}

	a, err := clean.Calc(ds)
	if err != nil {
		t.Fatal(err)
	}
	c, err := noisy.Calc(ds.Copy())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		want := a.Var("tke_vec").Data.Get(0, i) - noise*noise
		have := c.Var("tke_vec").Data.Get(0, i)
		if math.Abs(have-want) > 1e-12 {
			t.Errorf("bin %d: noise-corrected u'u': want %g, have %g", i, want, have)
		}
	}
}

func TestCalcRequiresVel(t *testing.T) {
	ds := dolfyn.New(make([]float64, 512))
	b, err := NewBinner(256, 8, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Calc(ds); err == nil {
		t.Fatal("dataset without velocity should be rejected")
	}
}

// A spectrum built exactly on the Lumley-Terray form must return the
// dissipation rate it was built from.
func TestEpsilonLT83RecoversKnownRate(t *testing.T) {
	b, err := NewBinner(1024, 8, 0)
	if err != nil {
		t.Fatal(err)
	}
	const (
		eps   = 1e-5
		alpha = 0.5
		U     = 0.9
	)
	freq := b.Freq("rad/s")
	row := make([]float64, len(freq))
	for k, f := range freq {
		row[k] = alpha * math.Pow(eps*U, 2.0/3.0) * math.Pow(f, -5.0/3.0)
	}
	out := b.EpsilonLT83([][]float64{row}, freq, []float64{U}, [2]float64{1, 10})
	if math.Abs(out[0]-eps)/eps > 1e-10 {
		t.Fatalf("dissipation: want %g, have %g", eps, out[0])
	}
}

// A synthetic velocity whose increments follow the Kolmogorov
// structure function D(r) = 2.1 (eps r)^(2/3) must give back eps.
func TestEpsilonSFOrderOfMagnitude(t *testing.T) {
	const (
		n   = 4096
		fs  = 16.0
		U   = 1.0
		eps = 1e-4
	)
	b, err := NewBinner(n, fs, 0)
	if err != nil {
		t.Fatal(err)
	}
	// Sum of sines with a -5/3 spectrum approximates inertial-subrange
	// statistics well enough for an order-of-magnitude check.
	x := make([]float64, n)
	for m := 1; m <= 64; m++ {
		f := float64(m) * fs / n * 8
		a := math.Sqrt(math.Pow(f, -5.0/3.0))
		ph := float64(m) * 2.399963
		for i := range x {
			x[i] += a * math.Sin(2*math.Pi*f*float64(i)/fs+ph)
		}
	}
	out := b.EpsilonSF(x, []float64{U}, [2]float64{0.5, 4})
	if len(out) != 1 || math.IsNaN(out[0]) || out[0] <= 0 {
		t.Fatalf("structure-function dissipation: have %v", out)
	}
}

// u' and v' are constructed identical, so their cross-spectrum is the
// u' power spectrum with no quadrature component.
func TestCSDPairs(t *testing.T) {
	const nt = 1024
	ds := turbDataset(t, nt, 8)
	b, err := NewBinner(256, 8, 0)
	if err != nil {
		t.Fatal(err)
	}
	csd, err := b.CSD(ds, "rad/s")
	if err != nil {
		t.Fatal(err)
	}
	u := ds.Var("vel").Data.Elements[0:nt]
	psd := b.PSD(u, "rad/s")
	for i := range psd {
		for k := range psd[i] {
			if math.Abs(real(csd[0][i][k])-psd[i][k]) > 1e-12 {
				t.Fatalf("bin %d co-spectrum at %d: want %g, have %g",
					i, k, psd[i][k], real(csd[0][i][k]))
			}
			if math.Abs(imag(csd[0][i][k])) > 1e-12 {
				t.Fatalf("bin %d quadrature spectrum at %d: want 0, have %g",
					i, k, imag(csd[0][i][k]))
			}
		}
	}
}

func TestCSDRequiresVel(t *testing.T) {
	b, err := NewBinner(256, 8, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.CSD(dolfyn.New(make([]float64, 512)), "Hz"); err == nil {
		t.Fatal("dataset without velocity should be rejected")
	}
}

// The TE01 estimate scales with the spectra as psd^(3/2): doubling the
// stored spectra multiplies the dissipation rate by 2^(3/2).
func TestEpsilonTE01(t *testing.T) {
	ds := turbDataset(t, 2048, 8)
	b, err := NewBinner(512, 8, 0)
	if err != nil {
		t.Fatal(err)
	}
	avg, err := b.Calc(ds)
	if err != nil {
		t.Fatal(err)
	}
	fr := [2]float64{1, 6} // rad/s
	eps1, err := b.EpsilonTE01(ds, avg, fr)
	if err != nil {
		t.Fatal(err)
	}
	if len(eps1) != 4 {
		t.Fatalf("dissipation length: want 4, have %d", len(eps1))
	}
	for i, e := range eps1 {
		if !(e > 0) || math.IsInf(e, 0) {
			t.Fatalf("bin %d: dissipation should be positive and finite, have %g", i, e)
		}
	}

	psd := avg.Var("psd").Data
	for i := range psd.Elements {
		psd.Elements[i] *= 2
	}
	eps2, err := b.EpsilonTE01(ds, avg, fr)
	if err != nil {
		t.Fatal(err)
	}
	want := math.Pow(2, 1.5)
	for i := range eps1 {
		if math.Abs(eps2[i]/eps1[i]-want) > 1e-9 {
			t.Fatalf("bin %d: doubled-spectrum ratio: want %g, have %g",
				i, want, eps2[i]/eps1[i])
		}
	}
}

func TestEpsilonTE01RequiresStatistics(t *testing.T) {
	ds := turbDataset(t, 1024, 8)
	b, err := NewBinner(256, 8, 0)
	if err != nil {
		t.Fatal(err)
	}
	avg, err := b.BinAverage(ds)
	if err != nil {
		t.Fatal(err)
	}
	// BinAverage alone carries no spectra or TKE.
	if _, err := b.EpsilonTE01(ds, avg, [2]float64{1, 6}); err == nil {
		t.Fatal("averaged dataset without turbulence statistics should be rejected")
	}
}

func TestIntegralLengthScale(t *testing.T) {
	b, err := NewBinner(64, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	// Exponential autocovariance with decay constant of 5.5 lags first
	// reaches 1/e at lag 6.
	row := make([]float64, 32)
	for lag := range row {
		row[lag] = math.Exp(-float64(lag) / 5.5)
	}
	out := b.IntegralLengthScale([][]float64{row}, []float64{1.5})
	want := 1.5 / 2 * 6
	if math.Abs(out[0]-want) > 1e-12 {
		t.Fatalf("length scale: want %g, have %g", want, out[0])
	}
}
