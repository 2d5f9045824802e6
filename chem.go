/*
 * chem.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package chem

import "fmt"

/**Note: Many funcitons here panic instead of returning errors. This is because they are "fundamental"
 * functions. If something goes wrong here, the program is most likely wrong and should
 * crash. Most panics are related to using the funciton on a nil object or trying to access out-of bounds
 * fields**/

//Atom contains the information read for an atom, except for the coordinates, which will be in a matrix.
type Atom struct {
	Name      string
	Id        int
	Molname   string //residue name
	Molname1  byte   //the one letter name for residues and nucleotids
	Molid     int    //residue number
	Chain     byte
	Mass      float64
	Occupancy float64
	Bfactor   float64
	Charge    float64
	Symbol    string
	Het       bool // is hetatm in the pdb file?
}

var _ Atomer = (*Topology)(nil)

//Topology contains information about a molecular system which is not expected to change in time
//(i.e. everything except for coordinates)
type Topology struct {
	Atoms []*Atom
}

//NewTopology returns a topology with the atoms ats. It returns error if ats is empty.
func NewTopology(ats []*Atom) (*Topology, error) {
	if len(ats) == 0 {
		return nil, CError{"Supplied an empty atom list", "", []string{"NewTopology"}, true}
	}
	return &Topology{Atoms: ats}, nil
}

//Atom returns the Atom corresponding to the index i
//of the Atom slice in the Topology. Panics if
//out of range.
func (T *Topology) Atom(i int) *Atom {
	if i >= T.Len() || i < 0 {
		panic("Topology: Requested Atom out of bounds")
	}
	return T.Atoms[i]
}

//Len returns the number of atoms in the topology.
func (T *Topology) Len() int {
	return len(T.Atoms)
}

//Masses returns a slice with the masses of all atoms.
//It returns an error if an atom has zero mass, together with the slice.
func (T *Topology) Masses() ([]float64, error) {
	mass := make([]float64, T.Len())
	var err error
	for i, a := range T.Atoms {
		mass[i] = a.Mass
		if a.Mass == 0 && err == nil {
			err = CError{fmt.Sprintf("Atom %d (%s) has no mass", i, a.Name), "", []string{"Masses"}, false}
		}
	}
	return mass, err
}

//CError is the error type of the chem package. It fullfills chem.Error
type CError struct {
	message  string
	filename string //the input file that has problems, or empty string if none.
	deco     []string
	critical bool
}

func (err CError) Error() string {
	if err.filename == "" {
		return err.message
	}
	return fmt.Sprintf("%s: %s", err.filename, err.message)
}

//Decorate returns the decoration slice of the error, followed by dec if it is not empty.
//err itself is not modified.
func (err CError) Decorate(dec string) []string {
	if dec == "" {
		return err.deco
	}
	return append(err.deco[:len(err.deco):len(err.deco)], dec)
}

//FileName returns the file associated with the error, if any.
func (err CError) FileName() string { return err.filename }

//Critical returns true if the error is critical, false otherwise
func (err CError) Critical() bool { return err.critical }
