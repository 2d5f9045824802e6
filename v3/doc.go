/*
 * doc.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

/*Package v3 implements a Matrix type representing a row-major 3D matrix (i.e. a Nx3 matrix).
The v3.Matrix is used to represent the cartesian coordinates of sets of atoms in xtc2nc.
It is based on gonum's Dense type, with the additional restriction of the fixed number
of columns, and with a few functions to move coordinates from and to the float32 buffers
used by the trajectory formats.
*/
package v3
