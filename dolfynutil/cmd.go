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

// Package dolfynutil wires the dolfyn libraries into the command-line
// interface: reading instrument binaries, rotating coordinate systems,
// and computing binned turbulence statistics, driven by a TOML
// configuration file and command-line flags.
package dolfynutil

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/ctessum/sparse"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jmcvey3/dolfyn"
	"github.com/jmcvey3/dolfyn/nortek"
	"github.com/jmcvey3/dolfyn/rotate"
	"github.com/jmcvey3/dolfyn/turbulence"
)

// Root assembles the dolfyn command tree.
func Root() *cobra.Command {
	var configFile string
	cfg := DefaultConfig()

	root := &cobra.Command{
		Use:   "dolfyn",
		Short: "dolfyn processes acoustic Doppler velocimeter and profiler data",
		Long: `dolfyn reads binary files from acoustic Doppler instruments,
rotates their velocity data among the beam, inst, earth and principal
coordinate systems, and computes binned turbulence statistics. Results
are stored as netCDF.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := LoadConfig(configFile)
			if err != nil {
				return err
			}
			*cfg = *c
			if err := cfg.mergeFlags(cmd.Flags()); err != nil {
				return err
			}
			lvl, err := log.ParseLevel(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("dolfynutil: log level %q: %v", cfg.LogLevel, err)
			}
			log.SetLevel(lvl)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "",
		"path to a TOML configuration file")
	root.PersistentFlags().String("log-level", cfg.LogLevel,
		"logging verbosity: debug, info, warn or error")

	root.AddCommand(convertCmd(cfg), rotateCmd(cfg), turbulenceCmd(cfg))
	return root
}

func convertCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "convert INPUT [OUTPUT]",
		Short: "read an instrument binary file and save it as netCDF",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := readInput(args[0])
			if err != nil {
				return err
			}
			out := outputName(args, ".nc")
			log.Infof("writing %s", out)
			return dolfyn.SaveNetCDF(ds, out)
		},
	}
}

func rotateCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotate INPUT [OUTPUT]",
		Short: "rotate a dataset to another coordinate system",
		Long: `rotate loads a dataset, optionally applies the magnetic declination
and the principal heading, rotates it to the requested coordinate
system, and saves the result.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := readInput(args[0])
			if err != nil {
				return err
			}
			if err := applyRotation(ds, cfg); err != nil {
				return err
			}
			out := outputName(args, "."+cfg.CoordSys+".nc")
			log.Infof("writing %s", out)
			return dolfyn.SaveNetCDF(ds, out)
		},
	}
	cmd.Flags().String("to", cfg.CoordSys,
		"target coordinate system: beam, inst, earth or principal")
	cmd.Flags().Float64("declination", 0,
		"magnetic declination to apply [degrees east of true North]")
	cmd.Flags().Float64("principal-heading", 0,
		"principal-frame direction [degrees clockwise from North]")
	cmd.Flags().Bool("calc-principal", false,
		"compute the principal heading from the mean earth-frame velocity")
	return cmd
}

// applyRotation performs the declination, principal-heading and frame
// steps of the rotate command on ds in place.
func applyRotation(ds *dolfyn.Dataset, cfg *Config) error {
	if cfg.SetDeclination {
		if err := rotate.SetDeclination(ds, cfg.Declination, false); err != nil {
			return err
		}
	}
	target, err := dolfyn.ParseFrame(cfg.CoordSys)
	if err != nil {
		return err
	}
	switch {
	case cfg.CalcPrincipalHeading:
		// The heading is defined by the mean earth-frame flow.
		if _, err := rotate.Rotate2(ds, dolfyn.Earth, true); err != nil {
			return err
		}
		vel := ds.Var("vel")
		if vel == nil {
			return fmt.Errorf("dolfynutil: dataset has no vel variable")
		}
		h, err := rotate.CalcPrincipalHeading(vel.Data)
		if err != nil {
			return err
		}
		log.Infof("principal heading %.2f degrees", h)
		ds.Attrs.PrincipalHeading = h
		ds.Attrs.PrincipalHeadingSet = true
	case cfg.SetPrincipalHeading:
		ds.Attrs.PrincipalHeading = cfg.PrincipalHeading
		ds.Attrs.PrincipalHeadingSet = true
	}
	_, err = rotate.Rotate2(ds, target, true)
	return err
}

func turbulenceCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "turbulence INPUT [OUTPUT]",
		Short: "compute binned turbulence statistics",
		Long: `turbulence loads a dataset, splits it into bins of n-bin samples,
and computes bin means, turbulent kinetic energy components, Reynolds
stresses and velocity spectra, saving the binned result as netCDF.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := readInput(args[0])
			if err != nil {
				return err
			}
			b, err := turbulence.NewBinner(cfg.NBin, ds.Attrs.Fs, cfg.NFFT)
			if err != nil {
				return err
			}
			b.Noise = [3]float64{cfg.Noise, cfg.Noise, cfg.Noise}
			avg, err := b.Calc(ds)
			if err != nil {
				return err
			}
			if err := addDissipation(b, avg, cfg); err != nil {
				return err
			}
			out := outputName(args, ".bin.nc")
			log.Infof("writing %s", out)
			return dolfyn.SaveNetCDF(avg, out)
		},
	}
	cmd.Flags().Int("n-bin", cfg.NBin, "samples per averaging bin")
	cmd.Flags().Int("n-fft", 0, "spectral window length (default n-bin)")
	cmd.Flags().Float64("noise", 0, "instrument Doppler noise level [m/s]")
	cmd.Flags().Float64("freq-min", cfg.FreqRange[0],
		"lower bound of the inertial subrange [Hz]")
	cmd.Flags().Float64("freq-max", cfg.FreqRange[1],
		"upper bound of the inertial subrange [Hz]")
	return cmd
}

// addDissipation estimates the per-bin dissipation rate from the
// streamwise velocity spectrum over the configured inertial subrange
// and stores it as the epsilon variable.
func addDissipation(b *turbulence.Binner, avg *dolfyn.Dataset, cfg *Config) error {
	psdVar, freqVar := avg.Var("psd"), avg.Var("freq")
	if psdVar == nil || freqVar == nil {
		return nil
	}
	uMag, err := dolfyn.UMag(avg)
	if err != nil {
		return err
	}
	nf := len(freqVar.Data.Elements)
	nb := psdVar.Data.Shape[2]
	rows := make([][]float64, nb)
	for i := 0; i < nb; i++ {
		row := make([]float64, nf)
		for k := 0; k < nf; k++ {
			row[k] = psdVar.Data.Get(0, k, i)
		}
		rows[i] = row
	}
	// The configured subrange is in Hz; the stored spectra are radial.
	fr := [2]float64{cfg.FreqRange[0] * 2 * math.Pi, cfg.FreqRange[1] * 2 * math.Pi}
	eps := b.EpsilonLT83(rows, freqVar.Data.Elements, uMag.Elements, fr)
	ev := sparse.ZerosDense(nb)
	copy(ev.Elements, eps)
	return avg.AddVariable(&dolfyn.Variable{
		Name: "epsilon", Dims: []string{"time"}, Units: "m^2/s^3", Data: ev,
	})
}

// readInput loads a dataset, dispatching on the file extension:
// netCDF for .nc, Nortek binary otherwise.
func readInput(filename string) (*dolfyn.Dataset, error) {
	log.Infof("reading %s", filename)
	if strings.EqualFold(filepath.Ext(filename), ".nc") {
		return dolfyn.LoadNetCDF(filename)
	}
	return nortek.ReadFile(filename)
}

// outputName returns the explicit output argument if given, otherwise
// the input name with its extension replaced by suffix.
func outputName(args []string, suffix string) string {
	if len(args) > 1 {
		return args[1]
	}
	in := args[0]
	return strings.TrimSuffix(in, filepath.Ext(in)) + suffix
}
