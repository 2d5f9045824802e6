/*
 * xtc_write.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package xtc

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"

	chem "github.com/rmera/xtc2nc"
	v3 "github.com/rmera/xtc2nc/v3"
)

var _ chem.WTraj = (*XTCWObj)(nil)

//XTCWObj writes GROMACS XTC trajectories.
type XTCWObj struct {
	natoms    int
	precision float32
	filename  string
	f         *os.File //nil if the object doesn't own the underlying writer.
	w         *bufio.Writer
	writable  bool
	frames    int
	frame     *Frame //buffer for WNext
	hdr       [headerSize]byte

	//TimeStep is the time, in ps, between consecutive frames written with WNext.
	TimeStep float32
}

//NewWriter creates the file filename and returns an XTCWObj to write frames of natoms atoms to it,
//with the given precision (0 means DefaultPrecision)
func NewWriter(filename string, natoms int, precision float32) (*XTCWObj, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, newError(UnableToOpen, filename, "NewWriter", err.Error())
	}
	W, err := NewStreamWriter(f, natoms, precision, filename)
	if err != nil {
		f.Close()
		return nil, errDecorate(err, "NewWriter")
	}
	W.f = f
	return W, nil
}

//NewStreamWriter returns an XTCWObj that writes to w. name is only used in error messages.
func NewStreamWriter(w io.Writer, natoms int, precision float32, name string) (*XTCWObj, error) {
	if natoms <= 0 {
		return nil, newError(NatomsMismatch, name, "NewStreamWriter", fmt.Sprintf("can't write frames of %d atoms", natoms))
	}
	if precision < 0 || math.IsNaN(float64(precision)) {
		return nil, newError(WriteError, name, "NewStreamWriter", fmt.Sprintf("invalid precision %g", precision))
	}
	return &XTCWObj{natoms: natoms, precision: precision, filename: name, w: bufio.NewWriterSize(w, 1<<16), writable: true, TimeStep: 1}, nil
}

//Len returns the number of atoms per frame.
func (W *XTCWObj) Len() int {
	return W.natoms
}

//Frames returns the number of frames written so far.
func (W *XTCWObj) Frames() int {
	return W.frames
}

//WriteFrame writes f as the next frame. The writer's precision is used
//if set, otherwise, the frame's one.
func (W *XTCWObj) WriteFrame(f *Frame) error {
	if !W.writable {
		return Error{TrajUnIni, W.filename, []string{"WriteFrame"}, true}
	}
	if len(f.Coords) != 3*W.natoms {
		return newError(NatomsMismatch, W.filename, "WriteFrame", fmt.Sprintf("frame has %d atoms, expected %d", len(f.Coords)/3, W.natoms))
	}
	h := W.hdr[:]
	be.PutUint32(h[0:], magic)
	be.PutUint32(h[4:], uint32(W.natoms))
	be.PutUint32(h[8:], uint32(int32(f.Step)))
	be.PutUint32(h[12:], math.Float32bits(f.Time))
	for i, v := range f.Box {
		be.PutUint32(h[16+4*i:], math.Float32bits(v))
	}
	be.PutUint32(h[52:], uint32(W.natoms))
	var payload []byte
	if W.natoms <= maxUncompressed {
		payload = make([]byte, 4*len(f.Coords))
		for i, v := range f.Coords {
			be.PutUint32(payload[4*i:], math.Float32bits(v))
		}
	} else {
		prec := W.precision
		if prec == 0 {
			prec = f.Precision
		}
		var err error
		payload, err = compressCoords(f.Coords, prec)
		if err != nil {
			return newError(WriteError, W.filename, "WriteFrame", err.Error())
		}
	}
	if _, err := W.w.Write(h); err != nil {
		W.writable = false
		return newError(WriteError, W.filename, "WriteFrame", err.Error())
	}
	if _, err := W.w.Write(payload); err != nil {
		W.writable = false
		return newError(WriteError, W.filename, "WriteFrame", err.Error())
	}
	W.frames++
	return nil
}

//WNext writes coords (in Angstrom) as the next frame. The optional box is also
//in Angstrom. The step number is the number of frames written before, and the time
//is the step times W.TimeStep.
func (W *XTCWObj) WNext(coords *v3.Matrix, box ...[]float64) error {
	if coords.NVecs() != W.natoms {
		return newError(NatomsMismatch, W.filename, "WNext", fmt.Sprintf("got %d atoms, expected %d", coords.NVecs(), W.natoms))
	}
	if W.frame == nil {
		W.frame = NewFrame(W.natoms)
	}
	f := W.frame
	f.Coords = coords.Float32(f.Coords, chem.A2Nm)
	f.Step = W.frames
	f.Time = float32(W.frames) * W.TimeStep
	f.Box = [9]float32{}
	if len(box) > 0 {
		for i := 0; i < len(box[0]) && i < 9; i++ {
			f.Box[i] = float32(box[0][i] * chem.A2Nm)
		}
	}
	if err := W.WriteFrame(f); err != nil {
		return errDecorate(err, "WNext")
	}
	return nil
}

//Close flushes the pending data and closes the file, if the object created it.
func (W *XTCWObj) Close() error {
	if W.w == nil {
		return nil
	}
	err := W.w.Flush()
	W.w = nil
	W.writable = false
	if W.f != nil {
		if cerr := W.f.Close(); err == nil {
			err = cerr
		}
		W.f = nil
	}
	if err != nil {
		return newError(WriteError, W.filename, "Close", err.Error())
	}
	return nil
}
