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

// Package turbulence computes turbulence statistics (TKE, Reynolds
// stresses, velocity spectra, dissipation rates) from velocimeter data
// over time-averaged bins.
package turbulence

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/sparse"

	"github.com/jmcvey3/dolfyn"
	"github.com/jmcvey3/dolfyn/velocity"
)

// Binner extends velocity.Binner with turbulence statistics.
type Binner struct {
	velocity.Binner
	// Noise is the instrument Doppler noise per velocity component, in
	// the same units as the velocity. It is subtracted in quadrature
	// from the TKE components.
	Noise [3]float64
}

// NewBinner creates a turbulence binner with nBin samples per bin at
// sampling frequency fs [Hz]. nFFT defaults to nBin when zero.
func NewBinner(nBin int, fs float64, nFFT int) (*Binner, error) {
	vb, err := velocity.NewBinner(nBin, fs, nFFT)
	if err != nil {
		return nil, err
	}
	return &Binner{Binner: *vb}, nil
}

// crossPairs are the component index pairs of the Reynolds stress
// vector: u'v', u'w', v'w'.
var crossPairs = [3][2]int{{0, 1}, {0, 2}, {1, 2}}

// Calc bin-averages the dataset and adds tke_vec, stress_vec and psd
// variables, mirroring the layout of the raw dataset. The velocity
// variable "vel" must be present with 3 components. Spectra are stored
// with radial frequency units [rad/s].
func (b *Binner) Calc(ds *dolfyn.Dataset) (*dolfyn.Dataset, error) {
	vel := ds.Var("vel")
	if vel == nil {
		return nil, fmt.Errorf("turbulence: dataset has no vel variable")
	}
	if len(vel.Data.Shape) != 2 || vel.Data.Shape[0] != 3 {
		return nil, fmt.Errorf("turbulence: vel must be 3xNt, has shape %v", vel.Data.Shape)
	}
	out, err := b.BinAverage(ds)
	if err != nil {
		return nil, err
	}
	nt := vel.Data.Shape[1]
	nb := b.NumBins(nt)

	u := vel.Data.Elements[0:nt]
	v := vel.Data.Elements[nt : 2*nt]
	w := vel.Data.Elements[2*nt : 3*nt]
	comp := [3][]float64{u, v, w}

	// TKE components with Doppler noise removed.
	tke := sparse.ZerosDense(3, nb)
	for c := 0; c < 3; c++ {
		dt := b.Detrend(comp[c])
		for i, bin := range b.Reshape(dt) {
			var s float64
			n := 0
			for _, x := range bin {
				if math.IsNaN(x) {
					continue
				}
				s += x * x
				n++
			}
			val := math.NaN()
			if n > 0 {
				val = s/float64(n) - b.Noise[c]*b.Noise[c]
			}
			tke.Set(val, c, i)
		}
	}
	if err := out.AddVariable(&dolfyn.Variable{
		Name: "tke_vec", Dims: []string{"tke", "time"},
		Units: "m^2/s^2", Data: tke,
	}); err != nil {
		return nil, err
	}

	// Reynolds stresses.
	stress := sparse.ZerosDense(3, nb)
	dts := [3][]float64{b.Detrend(u), b.Detrend(v), b.Detrend(w)}
	for p, pair := range crossPairs {
		a, c := dts[pair[0]], dts[pair[1]]
		for i := 0; i < nb; i++ {
			var s float64
			n := 0
			for j := i * b.NBin; j < (i+1)*b.NBin; j++ {
				if math.IsNaN(a[j]) || math.IsNaN(c[j]) {
					continue
				}
				s += a[j] * c[j]
				n++
			}
			val := math.NaN()
			if n > 0 {
				val = s / float64(n)
			}
			stress.Set(val, p, i)
		}
	}
	if err := out.AddVariable(&dolfyn.Variable{
		Name: "stress_vec", Dims: []string{"tau", "time"},
		Units: "m^2/s^2", Data: stress,
	}); err != nil {
		return nil, err
	}

	// Velocity spectra.
	freq := b.Freq("rad/s")
	psd := sparse.ZerosDense(3, len(freq), nb)
	for c := 0; c < 3; c++ {
		rows := b.PSD(comp[c], "rad/s")
		for i, row := range rows {
			for k, p := range row {
				psd.Set(p, c, k, i)
			}
		}
	}
	fv := sparse.ZerosDense(len(freq))
	copy(fv.Elements, freq)
	if err := out.AddVariable(&dolfyn.Variable{
		Name: "freq", Dims: []string{"freq"}, Units: "rad/s", Data: fv,
	}); err != nil {
		return nil, err
	}
	if err := out.AddVariable(&dolfyn.Variable{
		Name: "psd", Dims: []string{"dir", "freq", "time"},
		Units: "m^2/s^2/(rad/s)", Data: psd,
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// EpsilonLT83 estimates the dissipation rate [m^2/s^3] per bin from a
// power spectral density by fitting the inertial subrange of the
// spectrum, after Lumley and Terray (1983):
//
//	S(omega) = alpha * epsilon^(2/3) * omega^(-5/3) * U^(2/3)
//
// psd holds one spectrum per bin over freq [rad/s]; uMag is the
// bin-averaged horizontal speed; freqRange bounds the inertial subrange
// [rad/s].
func (b *Binner) EpsilonLT83(psd [][]float64, freq, uMag []float64, freqRange [2]float64) []float64 {
	const alpha = 0.5
	out := make([]float64, len(psd))
	for i, row := range psd {
		var s float64
		n := 0
		for k, f := range freq {
			if f <= freqRange[0] || f >= freqRange[1] {
				continue
			}
			s += row[k] * math.Pow(f, 5.0/3.0) / alpha
			n++
		}
		if n == 0 || uMag[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Pow(s/float64(n), 1.5) / uMag[i]
	}
	return out
}

// CSD computes the per-bin cross-spectral densities of the velocity
// component pairs u-v, u-w and v-w, with the same segmenting and
// normalization as the psd variable. Spectra are over Freq(units); the
// co-spectrum is the real part and the quadrature spectrum the
// imaginary part of each value.
func (b *Binner) CSD(ds *dolfyn.Dataset, units string) ([3][][]complex128, error) {
	var out [3][][]complex128
	vel := ds.Var("vel")
	if vel == nil {
		return out, fmt.Errorf("turbulence: dataset has no vel variable")
	}
	if len(vel.Data.Shape) != 2 || vel.Data.Shape[0] != 3 {
		return out, fmt.Errorf("turbulence: vel must be 3xNt, has shape %v", vel.Data.Shape)
	}
	nt := vel.Data.Shape[1]
	comp := [3][]float64{
		vel.Data.Elements[0:nt],
		vel.Data.Elements[nt : 2*nt],
		vel.Data.Elements[2*nt : 3*nt],
	}
	for p, pair := range crossPairs {
		out[p] = b.Binner.CSD(comp[pair[0]], comp[pair[1]], units)
	}
	return out, nil
}

// EpsilonTE01 estimates the dissipation rate [m^2/s^3] per bin after
// Trowbridge and Elgar (2001), which corrects the inertial-subrange fit
// for advection of the turbulence past the sensor by wave orbital
// motion as well as the mean current. raw is the unbinned dataset that
// avg was computed from; avg must carry the vel, tke_vec, psd and freq
// variables added by BinAverage and Calc. freqRange bounds the inertial
// subrange [rad/s].
func (b *Binner) EpsilonTE01(raw, avg *dolfyn.Dataset, freqRange [2]float64) ([]float64, error) {
	rawVel := raw.Var("vel")
	if rawVel == nil {
		return nil, fmt.Errorf("turbulence: raw dataset has no vel variable")
	}
	if len(rawVel.Data.Shape) != 2 || rawVel.Data.Shape[0] != 3 {
		return nil, fmt.Errorf("turbulence: raw vel must be 3xNt, has shape %v", rawVel.Data.Shape)
	}
	for _, name := range []string{"vel", "tke_vec", "psd", "freq"} {
		if !avg.Has(name) {
			return nil, fmt.Errorf("turbulence: averaged dataset has no %s variable", name)
		}
	}
	avgVel := avg.Var("vel").Data
	tke := avg.Var("tke_vec").Data
	psd := avg.Var("psd").Data
	freq := avg.Var("freq").Data.Elements
	nt := rawVel.Data.Shape[1]
	nb := psd.Shape[2]
	nf := len(freq)

	u := rawVel.Data.Elements[0:nt]
	v := rawVel.Data.Elements[nt : 2*nt]
	ubins, vbins := b.Reshape(u), b.Reshape(v)

	const alpha = 1.5
	out := make([]float64, nb)
	for i := 0; i < nb; i++ {
		uMag := math.Hypot(avgVel.Get(0, i), avgVel.Get(1, i))
		k := 0.5 * (tke.Get(0, i) + tke.Get(1, i) + tke.Get(2, i))
		iTke := math.Sqrt(2*k) / uMag
		if uMag == 0 || math.IsNaN(iTke) {
			out[i] = math.NaN()
			continue
		}
		// Angle between the mean current and the primary axis of the
		// turbulent fluctuations.
		theta := math.Atan2(avgVel.Get(1, i), avgVel.Get(0, i)) -
			upAngle(ubins[i], vbins[i])
		intgrl := te01Integral(iTke, theta)

		var sHoriz, sVert float64
		n := 0
		for j := 0; j < nf; j++ {
			f := freq[j]
			if f <= freqRange[0] || f >= freqRange[1] {
				continue
			}
			f53 := math.Pow(f, 5.0/3.0)
			sHoriz += (psd.Get(0, j, i) + psd.Get(1, j, i)) * f53
			sVert += psd.Get(2, j, i) * f53
			n++
		}
		if n == 0 {
			out[i] = math.NaN()
			continue
		}
		// Horizontal (u,v) and vertical (w) estimates, averaged.
		eH := math.Pow(sHoriz/float64(n)/(21.0/55*alpha*intgrl), 1.5) / uMag
		eV := math.Pow(sVert/float64(n)/(12.0/55*alpha*intgrl), 1.5) / uMag
		out[i] = 0.5 * (eH + eV)
	}
	return out, nil
}

// upAngle returns the angle [rad] of the primary axis of the horizontal
// turbulent fluctuations within one bin. Fluctuation vectors pointing
// into the lower half-plane are reflected so that opposing excursions
// along the same axis reinforce rather than cancel.
func upAngle(u, v []float64) float64 {
	um, vm := nanMean(u), nanMean(v)
	var su, sv float64
	for j := range u {
		du, dv := u[j]-um, v[j]-vm
		if math.IsNaN(du) || math.IsNaN(dv) {
			continue
		}
		if dv <= 0 {
			du, dv = -du, -dv
		}
		su += du
		sv += dv
	}
	return math.Atan2(sv, su)
}

// te01Integral evaluates the spectral correction integral (equation A13
// of Trowbridge and Elgar 2001) for turbulence intensity beta and
// current-to-fluctuation angle theta, by the trapezoid rule over the
// effectively full support of the Gaussian weight.
func te01Integral(beta, theta float64) float64 {
	const (
		x0 = -20.0
		dx = 1e-2
		n  = 4000
	)
	f := func(x float64) float64 {
		return math.Cbrt(x*x-2/beta*math.Cos(theta)*x+1/(beta*beta)) *
			math.Exp(-0.5*x*x)
	}
	var s float64
	for j := 1; j < n-1; j++ {
		s += f(x0 + dx*float64(j))
	}
	s += 0.5 * (f(x0) + f(x0+dx*float64(n-1)))
	return s * dx / math.Sqrt(2*math.Pi) * math.Pow(beta, 2.0/3.0)
}

func nanMean(x []float64) float64 {
	var s float64
	n := 0
	for _, v := range x {
		if math.IsNaN(v) {
			continue
		}
		s += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return s / float64(n)
}

// EpsilonSF estimates the dissipation rate [m^2/s^3] per bin with the
// second-order structure function method: D(r) = 2.1 * epsilon^(2/3) *
// r^(2/3) in the inertial subrange. velRaw is a raw single-component
// velocity series, uMag the bin-averaged horizontal speed used to map
// time lags to separations via Taylor's hypothesis, and freqRange [Hz]
// bounds the lag range.
func (b *Binner) EpsilonSF(velRaw, uMag []float64, freqRange [2]float64) []float64 {
	lMin := int(b.Fs / freqRange[1])
	lMax := int(b.Fs / freqRange[0])
	if lMin < 1 {
		lMin = 1
	}
	bins := b.Reshape(velRaw)
	out := make([]float64, len(bins))
	for i, bin := range bins {
		var cv2 []float64
		for L := lMin; L < lMax && L < len(bin); L++ {
			var d float64
			n := 0
			for j := 0; j+L < len(bin); j++ {
				df := bin[j+L] - bin[j]
				if math.IsNaN(df) {
					continue
				}
				d += df * df
				n++
			}
			if n == 0 {
				continue
			}
			lag := uMag[i] / b.Fs * float64(L)
			cv2 = append(cv2, d/float64(n)/math.Pow(lag, 2.0/3.0))
		}
		if len(cv2) == 0 {
			out[i] = math.NaN()
			continue
		}
		sort.Float64s(cv2)
		med := cv2[len(cv2)/2]
		if len(cv2)%2 == 0 {
			med = 0.5 * (med + cv2[len(cv2)/2-1])
		}
		out[i] = math.Pow(med/2.1, 1.5)
	}
	return out
}

// IntegralLengthScale computes the per-bin integral length scale
// [m]: the lag at which the autocovariance first falls to 1/e of its
// zero-lag value, scaled by the advection speed. Bins whose
// autocovariance never reaches 1/e get 0.
func (b *Binner) IntegralLengthScale(acov [][]float64, uMag []float64) []float64 {
	out := make([]float64, len(acov))
	for i, row := range acov {
		if len(row) == 0 || row[0] == 0 {
			out[i] = math.NaN()
			continue
		}
		scale := 0
		for lag, v := range row {
			if v/row[0] <= 1/math.E {
				scale = lag
				break
			}
		}
		out[i] = uMag[i] / b.Fs * float64(scale)
	}
	return out
}

// CalcTurbulence is the functional form of Binner.Calc.
func CalcTurbulence(ds *dolfyn.Dataset, nBin int, fs float64, nFFT int) (*dolfyn.Dataset, error) {
	b, err := NewBinner(nBin, fs, nFFT)
	if err != nil {
		return nil, err
	}
	return b.Calc(ds)
}
