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

// Command dolfyn processes acoustic Doppler instrument data: it
// converts binary instrument files to netCDF, rotates datasets among
// coordinate systems, and computes binned turbulence statistics.
package main

import (
	"os"

	"github.com/jmcvey3/dolfyn/dolfynutil"
)

func main() {
	if err := dolfynutil.Root().Execute(); err != nil {
		os.Exit(1)
	}
}
