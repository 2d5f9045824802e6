/*
 * dcd.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

//Package dcd reads and writes CHARMM/NAMD binary trajectories.
//Coordinates and boxes are exchanged in Angstrom, as stored in the files,
//except for WriteFrame, which takes nm, as in XTC and MMTK files.
package dcd

import "fmt"

const mAXTITLE int32 = 80

//Errors

type Error struct {
	message  string
	filename string //the input file that has problems, or empty string if none.
	deco     []string
	critical bool
}

func (err Error) Error() string {
	return fmt.Sprintf("dcd file %s error: %s", err.filename, err.message)
}

//Decorate returns the decorations of the error, followed by deco if it is not empty.
//Error is a value, so E is not modified: errDecorate returns a decorated copy.
func (E Error) Decorate(deco string) []string {
	if deco == "" {
		return E.deco
	}
	return append(E.deco[:len(E.deco):len(E.deco)], deco)
}

func (err Error) FileName() string { return err.filename }

func (err Error) Format() string { return "dcd" }

func (err Error) Critical() bool { return err.critical }

const (
	TrajUnIni      = "Traj object uninitialized to read"
	ReadError      = "Error reading frame"
	WrongFormat    = "Wrong format in DCD"
	UnableToOpen   = "Unable to open file"
	NotEnoughSpace = "Not enough space in passed slice"
	NatomsMismatch = "Coordinates don't match the trajectory size"
	FixedAtoms     = "Fixed atoms not supported"
)

type lastFrameError struct {
	deco     []string
	fileName string
}

//lastFrameError does nothing
func (E lastFrameError) NormalLastFrameTermination() {}

func (E lastFrameError) FileName() string { return E.fileName }

func (E lastFrameError) Error() string { return "EOF" }

func (E lastFrameError) Critical() bool { return false }

func (E lastFrameError) Format() string { return "dcd" }

func (E *lastFrameError) Decorate(deco string) []string {
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

func newlastFrameError(filename string, caller string) *lastFrameError {
	e := new(lastFrameError)
	e.fileName = filename
	e.deco = []string{caller}
	return e
}

//errDecorate returns err with caller added to its decorations. Errors that
//don't come from this package are returned unchanged.
func errDecorate(err error, caller string) error {
	switch e := err.(type) {
	case Error:
		e.deco = e.Decorate(caller)
		return e
	case *lastFrameError:
		e.Decorate(caller)
		return e
	}
	return err
}
