/*
 * dcd_read.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package dcd

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"strings"

	chem "github.com/rmera/xtc2nc"
	v3 "github.com/rmera/xtc2nc/v3"
)

var _ chem.Traj = (*DCDObj)(nil)

//Container for an Charmm/NAMD binary trajectory file, opened for reading.
type DCDObj struct {
	natoms     int32
	nset       int32 //frames, according to the header
	readable   bool  //Is it ready to be read
	filename   string
	charmm     bool //Charmm traj?
	extrablock bool //unit cell in each frame
	fourdim    bool
	fixed      int32 //Fixed atoms (not supported)
	delta      float32
	title      string
	dcd        io.Reader //The DCD file
	fhandle    *os.File
	dcdFields  [][]float32
	cell       [6]float64
	hascell    bool //did the last frame read contain a unit cell?
	endian     binary.ByteOrder
	read       int
}

//New opens the DCD file filename for reading.
func New(filename string) (*DCDObj, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, Error{err.Error(), filename, []string{"os.Open", "New"}, true}
	}
	traj, err := NewReader(f, filename)
	if err != nil {
		f.Close()
		return nil, errDecorate(err, "New")
	}
	traj.fhandle = f
	return traj, nil
}

//NewReader reads the DCD header from r, and returns an object ready to read the frames.
//It supports big and little endianness, charmm or (namd>=2.1) and no fixed atoms.
func NewReader(r io.Reader, name string) (*DCDObj, error) {
	D := &DCDObj{filename: name, dcd: bufio.NewReader(r)}
	if err := D.initRead(); err != nil {
		return nil, errDecorate(err, "NewReader")
	}
	return D, nil
}

func (D *DCDObj) initRead() error {
	NB := bytes.NewReader //shortness sake
	wrongFormat := func(caller string) error {
		return Error{WrongFormat, D.filename, []string{caller, "initRead"}, true}
	}
	var first [4]byte
	if _, err := io.ReadFull(D.dcd, first[:]); err != nil {
		return Error{err.Error(), D.filename, []string{"io.ReadFull", "initRead"}, true}
	}
	//For some reason the first thing we should read is an 84.
	switch {
	case binary.LittleEndian.Uint32(first[:]) == 84:
		D.endian = binary.LittleEndian
	case binary.BigEndian.Uint32(first[:]) == 84:
		D.endian = binary.BigEndian
	default:
		return wrongFormat("endianness")
	}
	//Then the magic number "CORD", and a big chunk for random access.
	buf := make([]byte, 84)
	if _, err := io.ReadFull(D.dcd, buf); err != nil {
		return wrongFormat("io.ReadFull")
	}
	if string(buf[:4]) != "CORD" {
		return Error{"Wrong magic number", D.filename, []string{"initRead"}, true}
	}
	buf = buf[4:]
	var check int32
	//X-plor sets this last int to zero, charmm sets it to its version number.
	//if we have a charmm file we get some additional flags.
	binary.Read(NB(buf[76:]), D.endian, &check)
	if check == 0 {
		return Error{"X-plor DCD not supported", D.filename, []string{"initRead"}, true}
	}
	D.charmm = true
	binary.Read(NB(buf[0:]), D.endian, &D.nset)
	binary.Read(NB(buf[40:]), D.endian, &check)
	D.extrablock = check != 0
	binary.Read(NB(buf[44:]), D.endian, &check)
	D.fourdim = check == 1
	binary.Read(NB(buf[32:]), D.endian, &D.fixed)
	binary.Read(NB(buf[36:]), D.endian, &D.delta) //This should work only on Charmm and namd >=2.1
	if err := binary.Read(D.dcd, D.endian, &check); err != nil || check != 84 {
		return wrongFormat("header end")
	}
	var blocksize, ntitle int32
	if err := binary.Read(D.dcd, D.endian, &blocksize); err != nil {
		return wrongFormat("title size")
	}
	//how many units of mAXTITLE does the title have?
	if err := binary.Read(D.dcd, D.endian, &ntitle); err != nil || ntitle < 0 || 4+ntitle*mAXTITLE != blocksize {
		return wrongFormat("title")
	}
	title := make([]byte, mAXTITLE*ntitle)
	if _, err := io.ReadFull(D.dcd, title); err != nil {
		return wrongFormat("title")
	}
	D.title = strings.TrimRight(string(title), " \x00")
	if err := binary.Read(D.dcd, D.endian, &check); err != nil || check != blocksize {
		return wrongFormat("title end")
	}
	if err := binary.Read(D.dcd, D.endian, &check); err != nil || check != 4 { //one must read a 4 before the natoms
		return wrongFormat("natoms")
	}
	if err := binary.Read(D.dcd, D.endian, &D.natoms); err != nil || D.natoms <= 0 {
		return wrongFormat("natoms")
	}
	if err := binary.Read(D.dcd, D.endian, &check); err != nil || check != 4 { //and one more 4
		return wrongFormat("natoms")
	}
	if D.fixed != 0 {
		return Error{FixedAtoms, D.filename, []string{"initRead"}, true}
	}
	D.readable = true
	return nil //nothing else to do
}

//Readable returns true if the object is ready to be read from
//false otherwise. It doesnt guarantee that there is something
//to read.
func (D *DCDObj) Readable() bool {
	return D.readable
}

//Len returns the number of atoms per frame.
func (D *DCDObj) Len() int {
	return int(D.natoms)
}

//Frames returns the number of frames declared in the header.
func (D *DCDObj) Frames() int {
	return int(D.nset)
}

//Title returns the title lines of the file, joined.
func (D *DCDObj) Title() string {
	return D.title
}

//Close closes the file, if the object opened it.
func (D *DCDObj) Close() error {
	D.readable = false
	if D.fhandle == nil {
		return nil
	}
	err := D.fhandle.Close()
	D.fhandle = nil
	return err
}

//Next Reads the next frame. If output is not nil, the coordinates (A) are put there.
//If a box slice is given, and the frame has a unit cell, its 3 vectors (A) are put there.
func (D *DCDObj) Next(output *v3.Matrix, box ...[]float64) error {
	if !D.readable {
		return Error{TrajUnIni, D.filename, []string{"Next"}, true}
	}
	if D.dcdFields == nil {
		D.dcdFields = make([][]float32, 3, 3)
		D.dcdFields[0] = make([]float32, int(D.natoms), int(D.natoms))
		D.dcdFields[1] = make([]float32, int(D.natoms), int(D.natoms))
		D.dcdFields[2] = make([]float32, int(D.natoms), int(D.natoms))
	}
	if err := D.nextRaw(D.dcdFields); err != nil {
		return errDecorate(err, "Next")
	}
	if output != nil {
		if output.NVecs() < int(D.natoms) {
			panic("Buffer v3.Matrix too small to hold trajectory frame")
		}
		for k := 0; k < int(D.natoms); k++ {
			output.Set(k, 0, float64(D.dcdFields[0][k]))
			output.Set(k, 1, float64(D.dcdFields[1][k]))
			output.Set(k, 2, float64(D.dcdFields[2][k]))
		}
	}
	if len(box) > 0 && len(box[0]) >= 9 && D.hascell {
		//a, gamma, b, beta, alpha, c. Newer CHARMM versions store the cosines of the angles.
		c := D.cell
		for _, i := range []int{1, 3, 4} {
			if math.Abs(c[i]) <= 1 {
				c[i] = math.Acos(c[i]) * chem.Rad2Deg
			}
		}
		copy(box[0], chem.CellToBox(c[0], c[2], c[5], c[4], c[3], c[1]))
	}
	return nil
}

//nextRaw reads the next frame into blocks, and the unit cell, if present, into D.cell
func (D *DCDObj) nextRaw(blocks [][]float32) error {
	if len(blocks[0]) != int(D.natoms) || len(blocks[1]) != int(D.natoms) || len(blocks[2]) != int(D.natoms) {
		return Error{NotEnoughSpace, D.filename, []string{"nextRaw"}, true}
	}
	var blocksize int32
	if err := binary.Read(D.dcd, D.endian, &blocksize); err != nil {
		D.readable = false
		if errors.Is(err, io.EOF) {
			return newlastFrameError(D.filename, "nextRaw") //This is not really an error and should be catched in the calling function
		}
		return Error{ReadError, D.filename, []string{"binary.Read", "nextRaw"}, true}
	}
	D.hascell = false
	//If the blocksize is 4*natoms it means that the block is not an
	//extra block, but the X coordinates.
	if D.extrablock && blocksize != D.natoms*4 {
		if blocksize != 48 {
			D.readable = false
			return Error{WrongFormat, D.filename, []string{"nextRaw"}, true}
		}
		if err := binary.Read(D.dcd, D.endian, &D.cell); err != nil {
			D.readable = false
			return Error{ReadError, D.filename, []string{"binary.Read", "nextRaw"}, true}
		}
		if err := D.checkSize(48); err != nil {
			return errDecorate(err, "nextRaw")
		}
		D.hascell = true
		blocksize = 0
	}
	for i, block := range blocks {
		//we collect the X block size again only if it has not been collected before
		if i > 0 || blocksize == 0 {
			if err := binary.Read(D.dcd, D.endian, &blocksize); err != nil {
				D.readable = false
				return Error{ReadError, D.filename, []string{"binary.Read", "nextRaw"}, true}
			}
		}
		if blocksize != 4*D.natoms {
			D.readable = false
			return Error{WrongFormat, D.filename, []string{"nextRaw"}, true}
		}
		if err := binary.Read(D.dcd, D.endian, block); err != nil {
			D.readable = false
			return Error{ReadError, D.filename, []string{"binary.Read", "nextRaw"}, true}
		}
		if err := D.checkSize(blocksize); err != nil {
			return errDecorate(err, "nextRaw")
		}
	}
	//we skip the 4-D values if they exist.
	if D.fourdim {
		if err := binary.Read(D.dcd, D.endian, &blocksize); err != nil {
			D.readable = false
			return Error{ReadError, D.filename, []string{"binary.Read", "nextRaw"}, true}
		}
		if _, err := io.CopyN(io.Discard, D.dcd, int64(blocksize)); err != nil {
			D.readable = false
			return Error{ReadError, D.filename, []string{"io.CopyN", "nextRaw"}, true}
		}
		if err := D.checkSize(blocksize); err != nil {
			return errDecorate(err, "nextRaw")
		}
	}
	D.read++
	return nil
}

//checkSize reads the size at the end of a block and compares it with blocksize.
func (D *DCDObj) checkSize(blocksize int32) error {
	var check int32
	if err := binary.Read(D.dcd, D.endian, &check); err != nil || check != blocksize {
		D.readable = false
		return Error{"Wrong format in DCD snapshot", D.filename, []string{"checkSize"}, true}
	}
	return nil
}
