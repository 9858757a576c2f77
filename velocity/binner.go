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

// Package velocity provides time-averaging machinery for velocity
// datasets: binning, detrending and spectral estimation. The turbulence
// subpackage builds turbulence statistics on top of it.
package velocity

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"

	"github.com/jmcvey3/dolfyn"
)

// Binner chops time series into fixed-length bins and computes
// per-bin averages, variances and spectra.
type Binner struct {
	// NBin is the number of samples per averaging bin.
	NBin int
	// Fs is the sampling frequency [Hz].
	Fs float64
	// NFFT is the FFT length for spectra; at most NBin.
	NFFT int
	// Window selects the spectral window: "hann" (the default) or
	// "boxcar".
	Window string

	fft *fourier.FFT
}

// NewBinner creates a binner. nFFT defaults to nBin when zero; an even
// nFFT is required for the one-sided spectrum layout.
func NewBinner(nBin int, fs float64, nFFT int) (*Binner, error) {
	if nBin < 2 {
		return nil, fmt.Errorf("velocity: bin length must be at least 2, got %d", nBin)
	}
	if fs <= 0 {
		return nil, fmt.Errorf("velocity: sampling frequency must be positive, got %g", fs)
	}
	if nFFT < 0 {
		return nil, fmt.Errorf("velocity: fft length must not be negative, got %d", nFFT)
	}
	if nFFT == 0 {
		nFFT = nBin
	}
	if nFFT > nBin {
		return nil, fmt.Errorf("velocity: fft length %d exceeds bin length %d", nFFT, nBin)
	}
	if nFFT%2 != 0 {
		nFFT--
	}
	if nFFT < 2 {
		return nil, fmt.Errorf("velocity: fft length must be at least 2, got %d", nFFT)
	}
	return &Binner{NBin: nBin, Fs: fs, NFFT: nFFT, Window: "hann", fft: fourier.NewFFT(nFFT)}, nil
}

// NumBins is the number of whole bins in a series of length n; trailing
// samples beyond the last whole bin are dropped.
func (b *Binner) NumBins(n int) int { return n / b.NBin }

// Reshape returns per-bin views into x. The underlying data is shared.
func (b *Binner) Reshape(x []float64) [][]float64 {
	nb := b.NumBins(len(x))
	out := make([][]float64, nb)
	for i := 0; i < nb; i++ {
		out[i] = x[i*b.NBin : (i+1)*b.NBin]
	}
	return out
}

// Mean computes the per-bin mean of x, skipping NaN samples.
func (b *Binner) Mean(x []float64) []float64 {
	bins := b.Reshape(x)
	out := make([]float64, len(bins))
	for i, bin := range bins {
		out[i] = nanMean(bin)
	}
	return out
}

// Var computes the per-bin population variance of x, skipping NaN
// samples.
func (b *Binner) Var(x []float64) []float64 {
	bins := b.Reshape(x)
	out := make([]float64, len(bins))
	for i, bin := range bins {
		m := nanMean(bin)
		var ss float64
		n := 0
		for _, v := range bin {
			if math.IsNaN(v) {
				continue
			}
			ss += (v - m) * (v - m)
			n++
		}
		if n == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = ss / float64(n)
	}
	return out
}

// Demean returns a copy of x with the per-bin mean removed.
func (b *Binner) Demean(x []float64) []float64 {
	out := make([]float64, b.NumBins(len(x))*b.NBin)
	copy(out, x)
	for _, bin := range b.Reshape(out) {
		m := nanMean(bin)
		for i := range bin {
			bin[i] -= m
		}
	}
	return out
}

// Detrend returns a copy of x with a least-squares linear fit removed
// from each bin.
func (b *Binner) Detrend(x []float64) []float64 {
	out := make([]float64, b.NumBins(len(x))*b.NBin)
	copy(out, x)
	idx := make([]float64, b.NBin)
	for i := range idx {
		idx[i] = float64(i)
	}
	for _, bin := range b.Reshape(out) {
		slope, intercept, _, _, _, _ := stats.LinearRegression(idx, bin)
		for i := range bin {
			bin[i] -= slope*idx[i] + intercept
		}
	}
	return out
}

// Freq returns the one-sided frequency vector of the binner's spectra,
// excluding the zero frequency and including the Nyquist frequency, in
// "Hz" or "rad/s".
func (b *Binner) Freq(units string) []float64 {
	nf := b.NFFT / 2
	out := make([]float64, nf)
	scale := b.Fs / float64(b.NFFT)
	if units == "rad/s" {
		scale *= 2 * math.Pi
	}
	for i := 0; i < nf; i++ {
		out[i] = float64(i+1) * scale
	}
	return out
}

// PSD computes the per-bin one-sided power spectral density of x,
// averaging windowed, demeaned Welch segments (NFFT samples, 50%
// overlap) across each bin, normalized so that the integral of the
// spectrum approximates the variance. The result has one row per bin
// and NFFT/2 frequencies matching Freq. Units follow the frequency
// units: m^2/s^2/Hz for "Hz", m^2/s^2/(rad/s) for "rad/s".
func (b *Binner) PSD(x []float64, units string) [][]float64 {
	window := b.window()
	norm := b.specNorm(window, units)
	starts := b.segmentStarts()

	bins := b.Reshape(x)
	out := make([][]float64, len(bins))
	coef := make([]complex128, b.NFFT/2+1)
	seq := make([]float64, b.NFFT)
	for i, bin := range bins {
		row := make([]float64, b.NFFT/2)
		for _, off := range starts {
			loadSegment(seq, bin[off:off+b.NFFT], window)
			b.fft.Coefficients(coef, seq)
			for k := 1; k <= b.NFFT/2; k++ {
				p := real(coef[k])*real(coef[k]) + imag(coef[k])*imag(coef[k])
				p *= norm
				if k < b.NFFT/2 { // double all but the Nyquist bin
					p *= 2
				}
				row[k-1] += p
			}
		}
		for k := range row {
			row[k] /= float64(len(starts))
		}
		out[i] = row
	}
	return out
}

// CSD computes the per-bin one-sided cross-spectral density of x and y,
// with the same segmenting, windowing and normalization as PSD. The
// co-spectrum is the real part and the quadrature spectrum the
// imaginary part of each complex value.
func (b *Binner) CSD(x, y []float64, units string) [][]complex128 {
	window := b.window()
	norm := complex(b.specNorm(window, units), 0)
	starts := b.segmentStarts()

	xbins, ybins := b.Reshape(x), b.Reshape(y)
	out := make([][]complex128, len(xbins))
	cx := make([]complex128, b.NFFT/2+1)
	cy := make([]complex128, b.NFFT/2+1)
	sx := make([]float64, b.NFFT)
	sy := make([]float64, b.NFFT)
	for i := range xbins {
		row := make([]complex128, b.NFFT/2)
		for _, off := range starts {
			loadSegment(sx, xbins[i][off:off+b.NFFT], window)
			loadSegment(sy, ybins[i][off:off+b.NFFT], window)
			b.fft.Coefficients(cx, sx)
			b.fft.Coefficients(cy, sy)
			for k := 1; k <= b.NFFT/2; k++ {
				c := cmplx.Conj(cx[k]) * cy[k] * norm
				if k < b.NFFT/2 {
					c *= 2
				}
				row[k-1] += c
			}
		}
		for k := range row {
			row[k] /= complex(float64(len(starts)), 0)
		}
		out[i] = row
	}
	return out
}

// specNorm is the one-sided density normalization for the binner's
// window and the requested frequency units.
func (b *Binner) specNorm(window []float64, units string) float64 {
	var wss float64
	for _, w := range window {
		wss += w * w
	}
	norm := 1 / (b.Fs * wss)
	if units == "rad/s" {
		norm /= 2 * math.Pi
	}
	return norm
}

// segmentStarts returns the offsets of the 50%-overlapping Welch
// segments within one bin.
func (b *Binner) segmentStarts() []int {
	var starts []int
	for off := 0; off+b.NFFT <= b.NBin; off += b.NFFT / 2 {
		starts = append(starts, off)
	}
	return starts
}

// loadSegment fills seq with the demeaned, windowed segment, replacing
// NaN samples with zero.
func loadSegment(seq, segment, window []float64) {
	m := nanMean(segment)
	for j := range seq {
		v := segment[j] - m
		if math.IsNaN(v) {
			v = 0
		}
		seq[j] = v * window[j]
	}
}

func (b *Binner) window() []float64 {
	if b.Window == "boxcar" {
		w := make([]float64, b.NFFT)
		for i := range w {
			w[i] = 1
		}
		return w
	}
	return hann(b.NFFT)
}

// Autocovariance computes the per-bin biased autocovariance of x for
// lags 0..maxLag-1, after removing each bin's mean.
func (b *Binner) Autocovariance(x []float64, maxLag int) [][]float64 {
	if maxLag > b.NBin {
		maxLag = b.NBin
	}
	bins := b.Reshape(x)
	out := make([][]float64, len(bins))
	for i, bin := range bins {
		m := nanMean(bin)
		row := make([]float64, maxLag)
		for lag := 0; lag < maxLag; lag++ {
			var s float64
			n := 0
			for j := 0; j+lag < len(bin); j++ {
				a, c := bin[j]-m, bin[j+lag]-m
				if math.IsNaN(a) || math.IsNaN(c) {
					continue
				}
				s += a * c
				n++
			}
			if n > 0 {
				row[lag] = s / float64(len(bin))
			}
		}
		out[i] = row
	}
	return out
}

// BinAverage averages every time-varying variable of ds over whole
// bins, producing a dataset whose time axis holds the per-bin mean
// times. Variables without a time axis pass through unchanged.
//
// Averaging orientation matrices sample-by-sample does not preserve
// orthonormality; the rotation engine detects and warns about the
// resulting determinant drift rather than correcting it here.
func (b *Binner) BinAverage(ds *dolfyn.Dataset) (*dolfyn.Dataset, error) {
	nb := b.NumBins(len(ds.Time))
	if nb == 0 {
		return nil, fmt.Errorf("velocity: dataset length %d is shorter than one bin (%d)", len(ds.Time), b.NBin)
	}
	out := dolfyn.New(b.Mean(ds.Time))
	out.Attrs = ds.Attrs
	if ds.Attrs.Beam2Inst != nil {
		out.Attrs.Beam2Inst = mat.DenseCopyOf(ds.Attrs.Beam2Inst)
	}

	for _, name := range ds.Names() {
		v := ds.Var(name)
		nd := len(v.Dims)
		if nd == 0 || v.Dims[nd-1] != "time" {
			if err := out.AddVariable(v.Copy()); err != nil {
				return nil, err
			}
			continue
		}
		shape := append([]int{}, v.Data.Shape...)
		nt := shape[nd-1]
		shape[nd-1] = nb
		avg := sparse.ZerosDense(shape...)
		rows := len(v.Data.Elements) / nt
		for r := 0; r < rows; r++ {
			row := v.Data.Elements[r*nt : (r+1)*nt]
			copy(avg.Elements[r*nb:(r+1)*nb], b.Mean(row))
		}
		nv := &dolfyn.Variable{
			Name:         v.Name,
			Dims:         append([]string(nil), v.Dims...),
			Units:        v.Units,
			Rotatable:    v.Rotatable,
			BeamOriented: v.BeamOriented,
			Data:         avg,
		}
		if err := out.AddVariable(nv); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
	return w
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
