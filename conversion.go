/*
 * conversion.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package chem

import "math"

//This provides useful conversion factors and other constants

//Conversions
const (
	Deg2Rad = math.Pi / 180
	Rad2Deg = 180 / math.Pi
	Nm2A    = 10.0 //GROMACS and MMTK lengths are in nm, goChem's in A.
	A2Nm    = 0.1
)
