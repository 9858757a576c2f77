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

package dolfynutil

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
)

// Config holds the processing options shared by the dolfyn commands.
// Values come from a TOML configuration file, overridden by
// command-line flags.
type Config struct {
	// LogLevel sets the logging verbosity: debug, info, warn or error.
	LogLevel string

	// Rotation options.

	// CoordSys is the target coordinate system for the rotate command:
	// beam, inst, earth or principal.
	CoordSys string
	// Declination is the magnetic declination to set before rotating
	// [degrees east of true North]. Ignored unless SetDeclination is
	// true.
	Declination    float64
	SetDeclination bool
	// PrincipalHeading fixes the principal-frame direction [degrees
	// clockwise from North]. When CalcPrincipalHeading is true it is
	// computed from the depth-averaged earth-frame velocity instead.
	PrincipalHeading     float64
	SetPrincipalHeading  bool
	CalcPrincipalHeading bool

	// Averaging and turbulence options.

	// NBin is the number of samples per averaging bin.
	NBin int
	// NFFT is the spectral window length; it defaults to NBin.
	NFFT int
	// Noise is the instrument Doppler noise level removed from the
	// turbulent kinetic energy components [m/s].
	Noise float64
	// FreqRange bounds the inertial subrange used by the dissipation
	// estimates [Hz].
	FreqRange [2]float64
}

// DefaultConfig returns the configuration used when no file or flags
// are given.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		CoordSys:  "earth",
		NBin:      4096,
		FreqRange: [2]float64{0.2, 1},
	}
}

// LoadConfig reads a TOML configuration file over the defaults. An
// empty filename returns the defaults unchanged.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()
	if filename == "" {
		return cfg, nil
	}
	if _, err := os.Stat(filename); err != nil {
		return nil, fmt.Errorf("dolfynutil: configuration file %s: %v", filename, err)
	}
	if _, err := toml.DecodeFile(filename, cfg); err != nil {
		return nil, fmt.Errorf("dolfynutil: parsing configuration file %s: %v", filename, err)
	}
	return cfg, nil
}

// mergeFlags copies every flag the user actually set on the command
// line into the configuration, so flags take precedence over the file.
func (cfg *Config) mergeFlags(fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		v := f.Value.String()
		switch f.Name {
		case "log-level":
			cfg.LogLevel = v
		case "to":
			cfg.CoordSys = v
		case "declination":
			cfg.Declination, err = cast.ToFloat64E(v)
			cfg.SetDeclination = true
		case "principal-heading":
			cfg.PrincipalHeading, err = cast.ToFloat64E(v)
			cfg.SetPrincipalHeading = true
		case "calc-principal":
			cfg.CalcPrincipalHeading, err = cast.ToBoolE(v)
		case "n-bin":
			cfg.NBin, err = cast.ToIntE(v)
		case "n-fft":
			cfg.NFFT, err = cast.ToIntE(v)
		case "noise":
			cfg.Noise, err = cast.ToFloat64E(v)
		case "freq-min":
			cfg.FreqRange[0], err = cast.ToFloat64E(v)
		case "freq-max":
			cfg.FreqRange[1], err = cast.ToFloat64E(v)
		}
	})
	if err != nil {
		return fmt.Errorf("dolfynutil: parsing flags: %v", err)
	}
	return nil
}
