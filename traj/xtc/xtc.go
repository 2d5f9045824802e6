/*
 * xtc.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package xtc

import (
	"bufio"
	"errors"
	"io"
	"math"
	"os"

	chem "github.com/rmera/xtc2nc"
	v3 "github.com/rmera/xtc2nc/v3"
)

const (
	magic = 1995
	//magic, natoms, step, time, box[9] and the size of the coordinate list.
	headerSize = 56
	//frames with at most this many atoms store their coordinates uncompressed.
	maxUncompressed = 9
)

//Frame is a decoded XTC frame. Coordinates and box are in nm, time in ps.
type Frame struct {
	Step      int
	Time      float32
	Box       [9]float32 //box vectors, one after the other.
	Precision float32    //0 for uncompressed frames.
	Coords    []float32  //3 values per atom.
}

//NewFrame returns a frame with room for natoms atoms.
func NewFrame(natoms int) *Frame {
	return &Frame{Coords: make([]float32, 3*natoms)}
}

//Natoms returns the number of atoms the frame can hold.
func (F *Frame) Natoms() int { return len(F.Coords) / 3 }

//RawFrame is a complete frame record, as read from the file, with its
//coordinates still compressed. Decoding can be done in a different goroutine
//than the reading.
type RawFrame struct {
	Step      int
	Time      float32
	Box       [9]float32
	Precision float32
	natoms    int
	payload   []byte
	filename  string
}

//Natoms returns the number of atoms in the frame.
func (R *RawFrame) Natoms() int { return R.natoms }

//Decode decompresses the coordinates of R into f. f.Coords is resized if needed.
func (R *RawFrame) Decode(f *Frame) error {
	if R.payload == nil {
		return newError(ReadError, R.filename, "Decode", "frame was skipped, not read")
	}
	f.Step = R.Step
	f.Time = R.Time
	f.Box = R.Box
	f.Precision = R.Precision
	if cap(f.Coords) < 3*R.natoms {
		f.Coords = make([]float32, 3*R.natoms)
	}
	f.Coords = f.Coords[:3*R.natoms]
	if R.natoms <= maxUncompressed {
		if len(R.payload) < 12*R.natoms {
			return newError(Truncated, R.filename, "Decode", "")
		}
		for i := range f.Coords {
			f.Coords[i] = math.Float32frombits(be.Uint32(R.payload[4*i:]))
		}
		return nil
	}
	if _, err := decompressCoords(R.payload, R.natoms, f.Coords); err != nil {
		return newError(CorruptFrame, R.filename, "Decode", err.Error())
	}
	return nil
}

var (
	_ chem.Traj     = (*XTCObj)(nil)
	_ chem.ConcTraj = (*XTCObj)(nil)
)

//XTCObj is a container for a GROMACS XTC binary trajectory file.
type XTCObj struct {
	readable bool
	natoms   int
	filename string
	f        *os.File //nil if the object doesn't own the underlying reader.
	r        *bufio.Reader
	hdr      [headerSize]byte
	frame    *Frame //buffer for Next
	read     int    //frames read or skipped so far.
}

//New opens the XTC file filename for reading.
func New(filename string) (*XTCObj, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, newError(UnableToOpen, filename, "New", err.Error())
	}
	traj, err := NewReader(f, filename)
	if err != nil {
		f.Close()
		return nil, errDecorate(err, "New")
	}
	traj.f = f
	return traj, nil
}

//NewReader returns an XTCObj that reads from r. name is only used in error messages.
//The first frame header is peeked to obtain the number of atoms.
func NewReader(r io.Reader, name string) (*XTCObj, error) {
	traj := &XTCObj{filename: name, r: bufio.NewReaderSize(r, 1<<16)}
	head, err := traj.r.Peek(8)
	if err != nil {
		if len(head) == 0 {
			return nil, newError(ReadError, name, "NewReader", "file contains no frames")
		}
		return nil, newError(Truncated, name, "NewReader", err.Error())
	}
	if m := int32(be.Uint32(head)); m != magic {
		return nil, newError(BadMagic, name, "NewReader", "")
	}
	traj.natoms = int(int32(be.Uint32(head[4:])))
	if traj.natoms <= 0 {
		return nil, newError(NatomsMismatch, name, "NewReader", "no atoms in frame")
	}
	traj.readable = true
	return traj, nil
}

//Readable returns true if the object is ready to be read from
//false otherwise. It doesnt guarantee that there is something
//to read.
func (X *XTCObj) Readable() bool {
	return X.readable
}

//Len returns the number of atoms per frame in the XTCObj.
//0 means an uninitialized object.
func (X *XTCObj) Len() int {
	return X.natoms
}

//FramesRead returns the number of frames read or skipped so far.
func (X *XTCObj) FramesRead() int {
	return X.read
}

//Close closes the underlying file, if the object opened it.
func (X *XTCObj) Close() error {
	X.readable = false
	if X.f == nil {
		return nil
	}
	err := X.f.Close()
	X.f = nil
	return err
}

//ReadRaw reads the next frame record without decompressing it.
func (X *XTCObj) ReadRaw() (*RawFrame, error) {
	return X.readFrame(true, "ReadRaw")
}

//SkipFrame reads past the next frame, without keeping nor decompressing its coordinates.
func (X *XTCObj) SkipFrame() error {
	_, err := X.readFrame(false, "SkipFrame")
	return err
}

//ReadFrame reads and decodes the next frame into f.
func (X *XTCObj) ReadFrame(f *Frame) error {
	raw, err := X.readFrame(true, "ReadFrame")
	if err != nil {
		return err
	}
	if err := raw.Decode(f); err != nil {
		X.readable = false
		return errDecorate(err, "ReadFrame")
	}
	return nil
}

//readFrame reads a frame record. If keep is false, the coordinates are skipped
//and the returned RawFrame has no payload.
func (X *XTCObj) readFrame(keep bool, caller string) (*RawFrame, error) {
	if !X.readable {
		return nil, Error{TrajUnIni, X.filename, []string{caller}, true}
	}
	n, err := io.ReadFull(X.r, X.hdr[:])
	if err != nil {
		X.readable = false
		if n == 0 && errors.Is(err, io.EOF) {
			return nil, newlastFrameError(X.filename, caller) //This is not really an error and should be catched in the calling function
		}
		return nil, newError(Truncated, X.filename, caller, "incomplete header")
	}
	h := X.hdr[:]
	if m := int32(be.Uint32(h)); m != magic {
		X.readable = false
		return nil, newError(BadMagic, X.filename, caller, "")
	}
	if natoms := int(int32(be.Uint32(h[4:]))); natoms != X.natoms {
		X.readable = false
		return nil, newError(NatomsMismatch, X.filename, caller, "")
	}
	raw := &RawFrame{natoms: X.natoms, filename: X.filename}
	raw.Step = int(int32(be.Uint32(h[8:])))
	raw.Time = math.Float32frombits(be.Uint32(h[12:]))
	for i := range raw.Box {
		raw.Box[i] = math.Float32frombits(be.Uint32(h[16+4*i:]))
	}
	if lsize := int(int32(be.Uint32(h[52:]))); lsize != X.natoms {
		X.readable = false
		return nil, newError(NatomsMismatch, X.filename, caller, "coordinate list size differs from header")
	}
	if X.natoms <= maxUncompressed {
		if err := X.payload(raw, 12*X.natoms, keep, nil); err != nil {
			return nil, newError(Truncated, X.filename, caller, "")
		}
		X.read++
		return raw, nil
	}
	var fixed [compressedHeader]byte
	if _, err := io.ReadFull(X.r, fixed[:]); err != nil {
		X.readable = false
		return nil, newError(Truncated, X.filename, caller, "incomplete compressed block")
	}
	raw.Precision = math.Float32frombits(be.Uint32(fixed[:]))
	bytecount := int(int32(be.Uint32(fixed[32:])))
	if bytecount < 0 || bytecount > 16*X.natoms+1024 {
		X.readable = false
		return nil, newError(CorruptFrame, X.filename, caller, "invalid byte count")
	}
	if err := X.payload(raw, (bytecount+3)&^3, keep, fixed[:]); err != nil {
		return nil, newError(Truncated, X.filename, caller, "")
	}
	X.read++
	return raw, nil
}

//payload reads (or discards) the next n bytes, prefixed by prefix, into raw.
func (X *XTCObj) payload(raw *RawFrame, n int, keep bool, prefix []byte) error {
	var err error
	if keep {
		raw.payload = make([]byte, len(prefix)+n)
		copy(raw.payload, prefix)
		_, err = io.ReadFull(X.r, raw.payload[len(prefix):])
	} else {
		_, err = X.r.Discard(n)
	}
	if err != nil {
		X.readable = false
		raw.payload = nil
	}
	return err
}

//Next reads the next frame in a XTCObj that has been initialized for read.
//If output is not nil, the coordinates are put there, in Angstrom.
//If a box slice is given, the 9 box vector components are also copied there, in Angstrom.
//If neither is given, the frame is skipped without decompression.
func (X *XTCObj) Next(output *v3.Matrix, box ...[]float64) error {
	wantbox := len(box) > 0 && box[0] != nil
	if output == nil && !wantbox {
		return X.SkipFrame() //Just drop the frame
	}
	if X.frame == nil {
		X.frame = NewFrame(X.natoms)
	}
	if err := X.ReadFrame(X.frame); err != nil {
		return err
	}
	if output != nil {
		if output.NVecs() < X.natoms {
			panic("Buffer v3.Matrix too small to hold trajectory frame")
		}
		output.View(0, 0, X.natoms, 3).SetFloat32(X.frame.Coords, chem.Nm2A)
	}
	if wantbox {
		for i := 0; i < len(box[0]) && i < 9; i++ {
			box[0][i] = chem.Nm2A * float64(X.frame.Box[i])
		}
	}
	return nil
}

/*NextConc takes a slice of matrices and reads as many frames as elements the list has
from the trajectory. The frames are discarted, without decompression, if the corresponding
element of the slice is nil. The function returns a slice of channels through each of which
a *v3.Matrix will be transmited, once the frame has been decompressed, in its own goroutine.
A nil matrix is sent if the frame could not be decompressed.*/
func (X *XTCObj) NextConc(frames []*v3.Matrix) ([]chan *v3.Matrix, error) {
	if X.natoms == 0 {
		return nil, Error{TrajUnIni, X.filename, []string{"NextConc"}, true}
	}
	framechans := make([]chan *v3.Matrix, len(frames)) //the slice of chans that will be returned
	used := false
	for key, val := range frames {
		raw, err := X.readFrame(val != nil, "NextConc")
		if err != nil {
			if _, ok := err.(*lastFrameError); ok && used {
				return framechans, err
			}
			return nil, err
		}
		if val == nil {
			framechans[key] = nil //ignored frame
			continue
		}
		used = true
		framechans[key] = make(chan *v3.Matrix, 1)
		//Now the parallel part
		go func(raw *RawFrame, goCoords *v3.Matrix, pipe chan *v3.Matrix) {
			f := NewFrame(raw.natoms)
			if err := raw.Decode(f); err != nil {
				pipe <- nil
				return
			}
			goCoords.View(0, 0, raw.natoms, 3).SetFloat32(f.Coords, chem.Nm2A)
			pipe <- goCoords
		}(raw, val, framechans[key])
	}
	return framechans, nil
}
