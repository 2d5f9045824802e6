/*
 * doc.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

//Package stf implements the simple trajectory format, an internal trajectory format for goChem.
//stf aims to produce reasonably small files and to be very easy to read and write, so readers/writers
//can be easily implemented in other programing languages / for other libraries or programs, while
//also being reasonably fast to write and, especially, to read.

/******************** Format Specification   ***************************************************

A STF file may only contain ASCII symbols. The whole file is compressed, the method
being given by the last letter of the file extension:

	stf: z-standard (zstd)
	stz: gzip
	stl: lzw (MSB order, 8-bit literals)
	str: raw deflate

Files with other extensions are assumed to be compressed with zstd.

A STF file has a "header" starting in the first line, and ending with a line that starts with the
characters "**" followed by one or more spaces, and the number of atoms per frame.

Each line of the header must be a pair key=value. The precision (an integer greater than 0,
see below) must be included in the header, with the corresponding key "prec". For example:

prec=2

After the header, the file has one line per atom, per frame. Each line contains  3 numbers,
corresponding to the x y and z cartesian coordinates, respectively, and nothing more. Each
of these 3 number contains the respective coordinate in Angstrom, multiplied by 10 to the
power of (precision) and rounded to make it an integer. The implementation in this package
uses a default precision of 2.

Each frame ends with a line starting with the character "*" (no whitespaces before) , optionally
followed by: one or more whitespace and 9 floating-point numbers separated by spaces (precision
unspecified). If present, these number correspond to the vectors defining the simulation box, in Angstrom

The "**" sequence may only be used as a header termination, as described above and can not appear
anywhere else in the file.

***************************************************************************************************/

package stf
