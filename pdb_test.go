/*
 * pdb_test.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package chem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pdbAtomLine(rec string, serial int, name, resname string, chain byte, resid int, x, y, z float64, element string) string {
	return fmt.Sprintf("%-6s%5d %-4s %3s %c%4d    %8.3f%8.3f%8.3f%6.2f%6.2f          %2s",
		rec, serial, name, resname, chain, resid, x, y, z, 1.0, 0.5, element)
}

func testPDB() string {
	lines := []string{
		"REMARK   a test structure",
		fmt.Sprintf("CRYST1%9.3f%9.3f%9.3f%7.2f%7.2f%7.2f", 30.0, 35.0, 40.0, 90.0, 90.0, 90.0),
		"MODEL        1",
		pdbAtomLine("ATOM", 1, "N", "GLY", 'A', 1, 1.0, 2.0, 3.0, "N"),
		pdbAtomLine("ATOM", 2, "CA", "GLY", 'A', 1, 1.5, 2.5, 3.5, ""),
		pdbAtomLine("ATOM", 3, "OW", "SOL", 'W', 2, -1.0, 0.0, 10.125, "O"),
		pdbAtomLine("HETATM", 4, "CL", "CL", 'W', 3, 5.0, 5.0, 5.0, "CL") + "1-",
		"ENDMDL",
		"MODEL        2",
		pdbAtomLine("ATOM", 1, "N", "GLY", 'A', 1, 9.0, 9.0, 9.0, "N"),
		"ENDMDL",
		"END",
	}
	return strings.Join(lines, "\n") + "\n"
}

func TestPDBRead(Te *testing.T) {
	top, coords, box, err := PDBRead(strings.NewReader(testPDB()), "test.pdb")
	require.NoError(Te, err)
	require.Equal(Te, 4, top.Len())
	require.Equal(Te, 4, coords.NVecs())
	assert.InDeltaSlice(Te, []float64{30, 0, 0, 0, 35, 0, 0, 0, 40}, box, 1e-9)

	n := top.Atom(0)
	assert.Equal(Te, "N", n.Name)
	assert.Equal(Te, "GLY", n.Molname)
	assert.Equal(Te, byte('G'), n.Molname1)
	assert.Equal(Te, byte('A'), n.Chain)
	assert.Equal(Te, 1, n.Molid)
	assert.Equal(Te, 1, n.Id)
	assert.Equal(Te, "N", n.Symbol)
	assert.Equal(Te, 14.01, n.Mass)
	assert.Equal(Te, 1.0, n.Occupancy)
	assert.Equal(Te, 0.5, n.Bfactor)
	assert.False(Te, n.Het)

	ca := top.Atom(1)
	assert.Equal(Te, "C", ca.Symbol) //guessed, not calcium
	ow := top.Atom(2)
	assert.Equal(Te, "SOL", ow.Molname)
	assert.Equal(Te, 2, ow.Molid)
	assert.Equal(Te, "O", ow.Symbol)
	cl := top.Atom(3)
	assert.True(Te, cl.Het)
	assert.Equal(Te, "Cl", cl.Symbol)
	assert.Equal(Te, -1.0, cl.Charge)
	assert.Equal(Te, 35.45, cl.Mass)

	assert.InDelta(Te, 1.5, coords.At(1, 0), 1e-9)
	assert.InDelta(Te, 10.125, coords.At(2, 2), 1e-9)
	assert.InDelta(Te, 5.0, coords.At(3, 1), 1e-9) //only the first model is read
}

func TestPDBFileRead(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "test.pdb")
	noCell := strings.Replace(testPDB(), "CRYST1", "REMARK", 1)
	require.NoError(Te, os.WriteFile(name, []byte(noCell), 0o644))
	top, _, box, err := PDBFileRead(name)
	require.NoError(Te, err)
	assert.Equal(Te, 4, top.Len())
	assert.Nil(Te, box)

	_, _, _, err = PDBFileRead(filepath.Join(Te.TempDir(), "missing.pdb"))
	require.Error(Te, err)
}

func TestPDBErrors(Te *testing.T) {
	_, _, _, err := PDBRead(strings.NewReader("REMARK nothing here\nEND\n"), "empty.pdb")
	require.Error(Te, err)
	assert.Contains(Te, err.Error(), "No atoms")

	bad := pdbAtomLine("ATOM", 1, "N", "GLY", 'A', 1, 1.0, 2.0, 3.0, "N")
	bad = bad[:38] + "   xx.xx" + bad[46:]
	_, _, _, err = PDBRead(strings.NewReader("REMARK\n"+bad+"\n"), "bad.pdb")
	require.Error(Te, err)
	assert.Contains(Te, err.Error(), "line 2")
	assert.Contains(Te, err.Error(), "bad.pdb")

	//The 1 A cubic cell is a placeholder.
	placeholder := fmt.Sprintf("CRYST1%9.3f%9.3f%9.3f%7.2f%7.2f%7.2f\n", 1.0, 1.0, 1.0, 90.0, 90.0, 90.0)
	_, _, box, err := PDBRead(strings.NewReader(placeholder+pdbAtomLine("ATOM", 1, "N", "GLY", 'A', 1, 1.0, 2.0, 3.0, "N")), "p.pdb")
	require.NoError(Te, err)
	assert.Nil(Te, box)

	empty := filepath.Join(Te.TempDir(), "empty.pdb")
	require.NoError(Te, os.WriteFile(empty, []byte("END\n"), 0o644))
	_, _, _, err = PDBFileRead(empty)
	require.Error(Te, err)
	deco := err.(Error).Decorate("")
	require.NotEmpty(Te, deco)
	assert.Equal(Te, "PDBFileRead", deco[len(deco)-1])
}

func TestSymbolFromName(Te *testing.T) {
	cases := map[string]string{
		"CA":   "C",
		"CB":   "C",
		"1HB":  "H",
		"HD21": "H",
		"NZ":   "N",
		"OW":   "O",
		"SG":   "S",
		"SE":   "Se",
		"CL":   "Cl",
		"NA":   "Na",
		"ZN":   "Zn",
		"P":    "P",
	}
	for name, want := range cases {
		got, err := symbolFromName(name)
		require.NoError(Te, err, name)
		assert.Equal(Te, want, got, name)
	}
	_, err := symbolFromName("XX")
	require.Error(Te, err)
	_, err = symbolFromName("")
	require.Error(Te, err)
}

func TestCellBox(Te *testing.T) {
	box := CellToBox(40, 50, 60, 80, 95, 110)
	assert.InDelta(Te, 40, box[0], 1e-9)
	assert.Zero(Te, box[1])
	assert.Zero(Te, box[2])
	assert.Zero(Te, box[5])
	a, b, c, alpha, beta, gamma := BoxToCell(box)
	assert.InDelta(Te, 40, a, 1e-9)
	assert.InDelta(Te, 50, b, 1e-9)
	assert.InDelta(Te, 60, c, 1e-9)
	assert.InDelta(Te, 80, alpha, 1e-6)
	assert.InDelta(Te, 95, beta, 1e-6)
	assert.InDelta(Te, 110, gamma, 1e-6)
}

func TestMasses(Te *testing.T) {
	top, err := NewTopology([]*Atom{
		{Name: "OW", Symbol: "O", Mass: 16.00},
		{Name: "DU", Symbol: "Du"},
	})
	require.NoError(Te, err)
	m, err := top.Masses()
	assert.Error(Te, err)
	assert.Equal(Te, []float64{16.00, 0}, m)
	top.Atoms[1].Mass = 1.008
	_, err = top.Masses()
	assert.NoError(Te, err)
	_, err = NewTopology(nil)
	assert.Error(Te, err)
}
