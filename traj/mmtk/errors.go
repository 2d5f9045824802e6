/*
 * errors.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package mmtk

import "fmt"

//Errors

type Error struct {
	message  string
	filename string //the file that has problems, or empty string if none.
	deco     []string
	critical bool
}

func (err Error) Error() string {
	return fmt.Sprintf("mmtk file %s error: %s", err.filename, err.message)
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

func (err Error) Format() string { return "mmtk" }

func (err Error) Critical() bool { return err.critical }

const (
	TrajUnIni     = "Traj object uninitialized"
	ReadError     = "Error reading trajectory"
	WriteError    = "Error writing trajectory"
	NoFrames      = "No frames to write"
	WrongAtoms    = "Wrong number of atoms"
	MemoryLimit   = "Memory limit exceeded, select fewer frames or use a streaming output format (dcd, stf, xtc)"
	MissingVar    = "Missing variable"
	UnexpectedVar = "Variable has an unexpected type or shape"
)

func newError(msg, filename, caller, detail string) Error {
	if detail != "" {
		msg = msg + ": " + detail
	}
	return Error{msg, filename, []string{caller}, true}
}

type lastFrameError struct {
	deco     []string
	fileName string
}

func (E lastFrameError) NormalLastFrameTermination() {}

func (E lastFrameError) FileName() string { return E.fileName }

func (E lastFrameError) Error() string { return "EOF" }

func (E lastFrameError) Critical() bool { return false }

func (E lastFrameError) Format() string { return "mmtk" }

func (E *lastFrameError) Decorate(deco string) []string {
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

func newlastFrameError(filename string, caller string) *lastFrameError {
	return &lastFrameError{fileName: filename, deco: []string{caller}}
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
