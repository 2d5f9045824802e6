/*
 * atomicdata.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package chem

//A map for assigning mass to elements.
//Note that just common "bio-elements" are present
var symbolMass = map[string]float64{
	"H":  1.0,
	"C":  12.01,
	"O":  16.00,
	"N":  14.01,
	"P":  30.97,
	"S":  32.06,
	"Se": 78.96,
	"K":  39.1,
	"Ca": 40.08,
	"Mg": 24.30,
	"Cl": 35.45,
	"Na": 22.99,
	"Cu": 63.55,
	"Zn": 65.38,
	"Co": 58.93,
	"Fe": 55.84,
	"Mn": 54.94,
	"Cr": 51.996,
	"Si": 28.08,
	"Be": 9.012,
	"F":  18.998,
	"Br": 79.904,
	"I":  126.90,
}

//A map between 3-letters name for aminoacidic residues to the corresponding 1-letter names.
var three2OneLetter = map[string]byte{
	"SER": 'S',
	"THR": 'T',
	"ASN": 'N',
	"GLN": 'Q',
	"SEC": 'U', //Selenocysteine!
	"CYS": 'C',
	"GLY": 'G',
	"PRO": 'P',
	"ALA": 'A',
	"VAL": 'V',
	"ILE": 'I',
	"LEU": 'L',
	"MET": 'M',
	"PHE": 'F',
	"TYR": 'Y',
	"TRP": 'W',
	"ARG": 'R',
	"HIS": 'H',
	"HID": 'H',
	"HIE": 'H',
	"HIP": 'H',
	"LYS": 'K',
	"ASP": 'D',
	"GLU": 'E',
}

//symbolFromName tries to guess a chemical element symbol from a PDB atom name.
//Mostly based on AMBER and GROMACS names. It only deals with some common bio-elements.
func symbolFromName(name string) (string, error) {
	symbol := ""
	if name == "" {
		return symbol, CError{"Couldn't guess symbol from empty PDB name", "", []string{"symbolFromName"}, false}
	}
	//GROMACS and AMBER hydrogens may start with a digit, as in 1HB.
	for name[0] >= '0' && name[0] <= '9' && len(name) > 1 {
		name = name[1:]
	}
	switch {
	case len(name) == 4 || name[0] == 'H': //only Hs can have 4-char names in amber.
		symbol = "H"
	case name == "CU":
		symbol = "Cu"
	case name == "CO":
		symbol = "Co"
	case name == "CL", name == "CLA":
		symbol = "Cl"
	case name == "CA" || name[0] == 'C': //CA is alpha carbon, not calcium.
		symbol = "C"
	case name == "NA", name == "SOD":
		symbol = "Na"
	case name[0] == 'N':
		symbol = "N"
	case name[0] == 'O':
		symbol = "O"
	case name == "K", name == "POT":
		symbol = "K"
	case name[0] == 'P':
		symbol = "P"
	case name == "SE":
		symbol = "Se"
	case name[0] == 'S':
		symbol = "S"
	case len(name) > 1 && name[0:2] == "ZN":
		symbol = "Zn"
	case len(name) > 1 && name[0:2] == "FE":
		symbol = "Fe"
	case len(name) > 1 && name[0:2] == "MG":
		symbol = "Mg"
	}
	if symbol == "" {
		return symbol, CError{"Couldn't guess symbol from PDB name " + name, "", []string{"symbolFromName"}, false}
	}
	return symbol, nil
}
