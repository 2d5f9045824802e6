/*
 * dcd_write.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package dcd

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	chem "github.com/rmera/xtc2nc"
	v3 "github.com/rmera/xtc2nc/v3"
)

var _ chem.WTraj = (*DCDWObj)(nil)

//Container for an Charmm/NAMD binary trajectory file.
//opened for writing
type DCDWObj struct {
	natoms    int32
	writable  bool //Is it ready to be written on
	filename  string
	periodic  bool       //do frames carry a unit cell?
	box       [9]float64 //default box vectors, A
	frames    int32
	dcd       io.WriteSeeker //The DCD file
	fhandle   *os.File       //nil if the object doesn't own dcd
	dcdFields [][]float32
	boxbuf    []float64
	endian    binary.ByteOrder
}

//NewWriter creates filename and initializes a DCD trajectory of natoms atoms
//for writing. If box (A, 9 values) is not nil, every frame will contain a unit cell,
//which will be box unless another one is given to WNext.
func NewWriter(filename string, natoms int, box []float64) (*DCDWObj, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, Error{err.Error(), filename, []string{"os.Create", "NewWriter"}, true}
	}
	traj, err := NewStreamWriter(f, natoms, box, filename)
	if err != nil {
		f.Close()
		return nil, errDecorate(err, "NewWriter")
	}
	traj.fhandle = f
	return traj, nil
}

//NewStreamWriter initializes a DCD trajectory to be written to w. name
//is used in the title and in error messages.
func NewStreamWriter(w io.WriteSeeker, natoms int, box []float64, name string) (*DCDWObj, error) {
	traj := new(DCDWObj)
	traj.natoms = int32(natoms)
	traj.filename = name
	traj.dcd = w
	if len(box) >= 9 && chem.ClassifyBox(box) != chem.InfiniteUniverse {
		traj.periodic = true
		copy(traj.box[:], box[:9])
	}
	if err := traj.initWrite(); err != nil {
		return nil, errDecorate(err, "NewStreamWriter")
	}
	return traj, nil
}

//Len returns the number of atoms per frame.
func (D *DCDWObj) Len() int {
	return int(D.natoms)
}

//Frames returns the number of frames written so far.
func (D *DCDWObj) Frames() int {
	return int(D.frames)
}

//Close closes the underlying file, if the object created it.
func (D *DCDWObj) Close() error {
	if !D.writable {
		return nil
	}
	D.writable = false
	if D.fhandle != nil {
		if err := D.fhandle.Close(); err != nil {
			return Error{err.Error(), D.filename, []string{"Close"}, true}
		}
	}
	return nil
}

//initWrite writes the header of a little endian CHARMM (version 24) DCD file, without fixed atoms.
func (D *DCDWObj) initWrite() error {
	wrapbinerr := func(err error) error {
		return Error{err.Error(), D.filename, []string{"binary.Write", "initWrite"}, true}
	}
	//if it's zero it means it hasn't been set.
	if D.natoms <= 0 {
		return Error{"Trajectory not initialized correctly, the number of atoms is not positive", D.filename, []string{"initWrite"}, true}
	}
	D.endian = binary.LittleEndian
	var unitcell int32
	if D.periodic {
		unitcell = 1
	}
	header := []interface{}{
		int32(84),
		[]byte("CORD"),
		int32(0),   //The frames in the file go here. No frames written yet, but will update this part after every write.
		int32(0),   //Initial step
		int32(1),   //step interval (nsavc)
		[6]int32{}, //5 zeros plus natom-nfreat
		float32(1), //delta time
		unitcell,
		[8]int32{},
		int32(24), //charmm version
		int32(84),
	}
	for _, v := range header {
		if err := binary.Write(D.dcd, D.endian, v); err != nil {
			return wrapbinerr(err)
		}
	}
	//2 title lines of mAXTITLE characters each.
	line := func(s string) string { return fmt.Sprintf("%-80s", s)[:mAXTITLE] }
	title := line("REMARKS CREATED BY XTC2NC") + line(fmt.Sprintf("REMARKS %d ATOMS %s", D.natoms, D.filename))
	titlesize := int32(4 + 2*mAXTITLE)
	for _, v := range []interface{}{titlesize, int32(2), []byte(title), titlesize, int32(4), D.natoms, int32(4)} {
		if err := binary.Write(D.dcd, D.endian, v); err != nil {
			return wrapbinerr(err)
		}
	}
	D.writable = true
	return nil //nothing else to do
}

//WNext writes the next frame to the trajectory. Coordinates are in A.
//If the trajectory has unit cells, the box, if given, is used, otherwise,
//the box given when creating the writer is written.
func (D *DCDWObj) WNext(towrite *v3.Matrix, box ...[]float64) error {
	if !D.writable {
		return Error{TrajUnIni, D.filename, []string{"WNext"}, true}
	}
	if towrite == nil {
		return Error{"got nil coordinates", D.filename, []string{"WNext"}, true}
	}
	if int32(towrite.NVecs()) != D.natoms {
		return Error{NatomsMismatch, D.filename, []string{"WNext"}, true}
	}
	D.fields()
	//This is easier to write to the dcd
	for k := 0; k < int(D.natoms); k++ {
		D.dcdFields[0][k] = float32(towrite.At(k, 0))
		D.dcdFields[1][k] = float32(towrite.At(k, 1))
		D.dcdFields[2][k] = float32(towrite.At(k, 2))
	}
	cell := D.box[:]
	if len(box) > 0 && len(box[0]) >= 9 {
		cell = box[0]
	}
	return errDecorate(D.wnextRaw(D.dcdFields, cell), "WNext")
}

//WriteFrame writes the next frame from coordinates (3 values per atom) and box vectors
//in nm, as found in XTC files. The box is ignored if the trajectory has no unit cells.
func (D *DCDWObj) WriteFrame(coords []float32, box [9]float32) error {
	if !D.writable {
		return Error{TrajUnIni, D.filename, []string{"WriteFrame"}, true}
	}
	if len(coords) != 3*int(D.natoms) {
		return Error{NatomsMismatch, D.filename, []string{"WriteFrame"}, true}
	}
	D.fields()
	for k := 0; k < int(D.natoms); k++ {
		D.dcdFields[0][k] = float32(chem.Nm2A) * coords[3*k] //nm to A
		D.dcdFields[1][k] = float32(chem.Nm2A) * coords[3*k+1]
		D.dcdFields[2][k] = float32(chem.Nm2A) * coords[3*k+2]
	}
	if D.boxbuf == nil {
		D.boxbuf = make([]float64, 9)
	}
	for i, v := range box {
		D.boxbuf[i] = chem.Nm2A * float64(v)
	}
	if chem.ClassifyBox(D.boxbuf) == chem.InfiniteUniverse {
		copy(D.boxbuf, D.box[:])
	}
	return errDecorate(D.wnextRaw(D.dcdFields, D.boxbuf), "WriteFrame")
}

func (D *DCDWObj) fields() {
	if D.dcdFields == nil {
		D.dcdFields = make([][]float32, 3, 3)
		D.dcdFields[0] = make([]float32, int(D.natoms), int(D.natoms))
		D.dcdFields[1] = make([]float32, int(D.natoms), int(D.natoms))
		D.dcdFields[2] = make([]float32, int(D.natoms), int(D.natoms))
	}
}

//wnextRaw writes the unit cell block, if needed, and the 3 coordinate blocks,
//then updates the number of frames in the header.
func (D *DCDWObj) wnextRaw(blocks [][]float32, box []float64) error {
	if len(blocks[0]) != int(D.natoms) || len(blocks[1]) != int(D.natoms) || len(blocks[2]) != int(D.natoms) {
		return Error{NotEnoughSpace, D.filename, []string{"wnextRaw"}, true}
	}
	if D.periodic {
		a, b, c, alpha, beta, gamma := chem.BoxToCell(box)
		//CHARMM order for the unit cell.
		cell := [6]float64{a, gamma, b, beta, alpha, c}
		for _, v := range []interface{}{int32(48), cell, int32(48)} {
			if err := binary.Write(D.dcd, D.endian, v); err != nil {
				D.writable = false
				return Error{err.Error(), D.filename, []string{"binary.Write", "wnextRaw"}, true}
			}
		}
	}
	for _, block := range blocks {
		if err := D.writeFloat32Block(block); err != nil {
			D.writable = false
			return errDecorate(err, "wnextRaw")
		}
	}
	D.frames++
	return errDecorate(D.updateFrames(), "wnextRaw")
}

//Writes a block of float32s to the file, between its size
func (D *DCDWObj) writeFloat32Block(block []float32) error {
	var blocksize int32 = int32(len(block)) * 4 //the size is required in bytes.
	for _, v := range []interface{}{blocksize, block, blocksize} {
		if err := binary.Write(D.dcd, D.endian, v); err != nil {
			return Error{err.Error(), D.filename, []string{"binary.Write", "writeFloat32Block"}, true}
		}
	}
	return nil
}

//DCD requires the number of frames at the begining.
func (D *DCDWObj) updateFrames() error {
	currentoffset, err := D.dcd.Seek(0, io.SeekCurrent) //we'll need it to go back
	if err != nil {
		return Error{err.Error(), D.filename, []string{"dcd.Seek", "updateFrames"}, true}
	}
	//the number of frames comes after the 84 and the "CORD" magic.
	if _, err = D.dcd.Seek(8, io.SeekStart); err != nil {
		return Error{err.Error(), D.filename, []string{"dcd.Seek", "updateFrames"}, true}
	}
	if err := binary.Write(D.dcd, D.endian, D.frames); err != nil {
		return Error{err.Error(), D.filename, []string{"binary.Write", "updateFrames"}, true}
	}
	//we go back to the part of the file we were writing
	if _, err = D.dcd.Seek(currentoffset, io.SeekStart); err != nil {
		return Error{err.Error(), D.filename, []string{"dcd.Seek", "updateFrames"}, true}
	}
	return nil
}
