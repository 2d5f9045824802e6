/*
 * pdb.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package chem

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	v3 "github.com/rmera/xtc2nc/v3"
)

const pdbLineLen = 80

//PDBFileRead reads the first model of the PDB file pdbname. It returns the topology, the
//coordinates (in A), and, if the file contains a CRYST1 record, the 3 box vectors (in A) as a
//slice of 9 floats, or nil otherwise.
func PDBFileRead(pdbname string) (*Topology, *v3.Matrix, []float64, error) {
	pdbfile, err := os.Open(pdbname)
	if err != nil {
		return nil, nil, nil, CError{err.Error(), pdbname, []string{"os.Open", "PDBFileRead"}, true}
	}
	defer pdbfile.Close()
	top, coords, box, err := PDBRead(pdbfile, pdbname)
	if err != nil {
		if e, ok := err.(CError); ok {
			e.deco = e.Decorate("PDBFileRead")
			err = e
		}
		return nil, nil, nil, err
	}
	return top, coords, box, nil
}

//PDBRead reads the atomic entries of the first model of a PDB from r. name is only used
//for error messages. It returns the topology, the coordinates (in A), and the
//box vectors (in A) from the CRYST1 record, if present and not the 1x1x1 placeholder.
func PDBRead(r io.Reader, name string) (*Topology, *v3.Matrix, []float64, error) {
	atoms := make([]*Atom, 0, 100)
	coords := make([]float64, 0, 300)
	var box []float64
	pdb := bufio.NewScanner(r)
	pdb.Buffer(make([]byte, 0, 1024), 1024*1024)
	contlines := 0 //count the lines read to better report errors
reading:
	for pdb.Scan() {
		contlines++
		line := pdb.Text()
		if len(line) < 4 {
			continue
		}
		switch {
		case strings.HasPrefix(line, "ATOM") || strings.HasPrefix(line, "HETATM"):
			atom, c, err := readPDBAtomLine(line, len(atoms))
			if err != nil {
				return nil, nil, nil, CError{fmt.Sprintf("line %d: %s", contlines, err.Error()), name, []string{"readPDBAtomLine", "PDBRead"}, true}
			}
			atoms = append(atoms, atom)
			coords = append(coords, c[0], c[1], c[2])
		case strings.HasPrefix(line, "CRYST1"):
			var err error
			box, err = readCryst1Line(line)
			if err != nil {
				return nil, nil, nil, CError{fmt.Sprintf("line %d: %s", contlines, err.Error()), name, []string{"readCryst1Line", "PDBRead"}, true}
			}
		case strings.HasPrefix(line, "ENDMDL") || strings.HasPrefix(line, "END"):
			//atom data is the same in all models so we just read the first.
			if len(atoms) > 0 {
				break reading
			}
		}
	}
	if err := pdb.Err(); err != nil {
		return nil, nil, nil, CError{err.Error(), name, []string{"Scan", "PDBRead"}, true}
	}
	if len(atoms) == 0 {
		return nil, nil, nil, CError{"No atoms found", name, []string{"PDBRead"}, true}
	}
	mcoords, err := v3.NewMatrix(coords)
	if err != nil {
		return nil, nil, nil, CError{err.Error(), name, []string{"v3.NewMatrix", "PDBRead"}, true}
	}
	return &Topology{Atoms: atoms}, mcoords, box, nil
}

//readPDBAtomLine parses a valid ATOM or HETATM line of a PDB file, returns an Atom
//object with the info except for the coordinates, which are returned
//separately as an array of 3 float64. index is the 0-based position of the atom, used
//when the serial number can't be parsed (as in files with more than 99999 atoms).
func readPDBAtomLine(line string, index int) (*Atom, [3]float64, error) {
	var coords [3]float64
	var err error
	if len(line) < 54 {
		return nil, coords, fmt.Errorf("ATOM/HETATM line too short (%d characters)", len(line))
	}
	if len(line) < pdbLineLen {
		line = line + strings.Repeat(" ", pdbLineLen-len(line))
	}
	atom := new(Atom)
	atom.Het = strings.HasPrefix(line, "HETATM")
	atom.Id, err = strconv.Atoi(strings.TrimSpace(line[6:11]))
	if err != nil {
		atom.Id = index + 1
	}
	atom.Name = strings.TrimSpace(line[12:16])
	atom.Molname = strings.TrimSpace(line[17:21])
	atom.Molname1 = three2OneLetter[atom.Molname]
	atom.Chain = line[21]
	atom.Molid, err = strconv.Atoi(strings.TrimSpace(line[22:26]))
	if err != nil {
		atom.Molid = 0
	}
	for i := 0; i < 3; i++ {
		field := strings.TrimSpace(line[30+8*i : 38+8*i])
		coords[i], err = strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, coords, fmt.Errorf("can't read coordinate %d ('%s')", i, field)
		}
	}
	//occupancy, b-factor, element and charge are optional, errors here are not fatal.
	if occ := strings.TrimSpace(line[54:60]); occ != "" {
		atom.Occupancy, _ = strconv.ParseFloat(occ, 64)
	}
	if bfac := strings.TrimSpace(line[60:66]); bfac != "" {
		atom.Bfactor, _ = strconv.ParseFloat(bfac, 64)
	}
	atom.Symbol = normalizeSymbol(strings.TrimSpace(line[76:78]))
	if ch := strings.TrimSpace(line[78:80]); len(ch) == 2 {
		q, err := strconv.Atoi(ch[:1])
		if err == nil {
			atom.Charge = float64(q)
			if ch[1] == '-' {
				atom.Charge = -atom.Charge
			}
		}
	}
	//This part tries to guess the symbol from the atom name, if it has not been read
	//No error checking here, just fills symbol with the empty string the function returns
	if atom.Symbol == "" {
		atom.Symbol, _ = symbolFromName(atom.Name)
	}
	if atom.Symbol != "" {
		atom.Mass = symbolMass[atom.Symbol]
	}
	return atom, coords, nil
}

//normalizeSymbol turns "CL" into "Cl" and so on.
func normalizeSymbol(s string) string {
	if len(s) < 2 {
		return s
	}
	return s[:1] + strings.ToLower(s[1:])
}

//readCryst1Line reads the unit cell in a CRYST1 line and returns the 3 corresponding
//box vectors in the GROMACS convention (first vector along x, second in the xy plane).
//It returns nil for the 1 A cubic cell that many programs write when there is no cell.
func readCryst1Line(line string) ([]float64, error) {
	if len(line) < 54 {
		return nil, fmt.Errorf("CRYST1 line too short (%d characters)", len(line))
	}
	var p [6]float64
	limits := [7]int{6, 15, 24, 33, 40, 47, 54}
	var err error
	for i := range p {
		p[i], err = strconv.ParseFloat(strings.TrimSpace(line[limits[i]:limits[i+1]]), 64)
		if err != nil {
			return nil, fmt.Errorf("can't read CRYST1 field %d", i)
		}
	}
	if p[0] <= 1 && p[1] <= 1 && p[2] <= 1 {
		return nil, nil
	}
	return CellToBox(p[0], p[1], p[2], p[3], p[4], p[5]), nil
}

//CellToBox returns the 3 box vectors, as a slice of 9 floats, for a cell with lengths
//a, b, c and angles alpha, beta, gamma (in degrees). The lengths of the vectors are in
//the same units as a, b, and c.
func CellToBox(a, b, c, alpha, beta, gamma float64) []float64 {
	cosa := math.Cos(alpha * Deg2Rad)
	cosb := math.Cos(beta * Deg2Rad)
	cosg := math.Cos(gamma * Deg2Rad)
	sing := math.Sin(gamma * Deg2Rad)
	box := make([]float64, 9)
	box[0] = a
	box[3] = b * cosg
	box[4] = b * sing
	box[6] = c * cosb
	box[7] = c * (cosa - cosb*cosg) / sing
	box[8] = math.Sqrt(math.Max(c*c-box[6]*box[6]-box[7]*box[7], 0))
	//cos(90) is not exactly zero in floating point.
	for i, v := range box {
		if math.Abs(v) < 1e-6*math.Max(a, math.Max(b, c)) {
			box[i] = 0
		}
	}
	return box
}

//BoxToCell is the inverse of CellToBox. It returns the lengths and the angles (in degrees)
//of the cell defined by the 3 box vectors in box.
func BoxToCell(box []float64) (a, b, c, alpha, beta, gamma float64) {
	norm := func(v []float64) float64 { return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2]) }
	dot := func(u, v []float64) float64 { return u[0]*v[0] + u[1]*v[1] + u[2]*v[2] }
	angle := func(u, v []float64, nu, nv float64) float64 {
		if nu == 0 || nv == 0 {
			return 90
		}
		cos := math.Max(-1, math.Min(1, dot(u, v)/(nu*nv)))
		return math.Acos(cos) * Rad2Deg
	}
	v1, v2, v3 := box[0:3], box[3:6], box[6:9]
	a, b, c = norm(v1), norm(v2), norm(v3)
	alpha = angle(v2, v3, b, c)
	beta = angle(v1, v3, a, c)
	gamma = angle(v1, v2, a, b)
	return
}
