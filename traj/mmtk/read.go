/*
 * read.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package mmtk

import (
	"fmt"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	chem "github.com/rmera/xtc2nc"
	v3 "github.com/rmera/xtc2nc/v3"
)

var _ chem.Traj = (*MMTKObj)(nil)

//MMTKObj reads MMTK trajectories in netCDF format. Time, step and box
//values are loaded when the file is opened, configurations are read frame by frame.
type MMTKObj struct {
	filename string
	readable bool
	nc       api.Group
	conf     api.VarGetter
	universe *chem.Universe
	title    string
	comment  string
	steps    []int32
	times    []float64
	boxes    [][]float64
	current  int
	buf      []float32
}

//Open opens the MMTK trajectory filename for reading.
func Open(filename string) (*MMTKObj, error) {
	nc, err := netcdf.Open(filename)
	if err != nil {
		return nil, newError(ReadError, filename, "Open", err.Error())
	}
	M := &MMTKObj{filename: filename, nc: nc}
	if err := M.load(); err != nil {
		nc.Close()
		return nil, errDecorate(err, "Open")
	}
	M.readable = true
	return M, nil
}

func (M *MMTKObj) load() error {
	attrs := M.nc.Attributes()
	if c, has := attrs.Get("Conventions"); !has || c != Conventions {
		return newError(ReadError, M.filename, "load", "not an MMTK trajectory")
	}
	if t, has := attrs.Get("title"); has {
		M.title, _ = t.(string)
	}
	if t, has := attrs.Get("comment"); has {
		M.comment, _ = t.(string)
	}
	dv, err := M.nc.GetVariable(VarDescription)
	if err != nil {
		return newError(MissingVar, M.filename, "load", VarDescription)
	}
	desc, ok := dv.Values.(string)
	if !ok {
		return newError(UnexpectedVar, M.filename, "load", VarDescription)
	}
	M.universe, err = chem.ParseDescription(desc)
	if err != nil {
		return newError(ReadError, M.filename, "load", err.Error())
	}
	sv, err := M.nc.GetVariable(VarStep)
	if err != nil {
		return newError(MissingVar, M.filename, "load", VarStep)
	}
	if M.steps, ok = sv.Values.([]int32); !ok {
		return newError(UnexpectedVar, M.filename, "load", VarStep)
	}
	tv, err := M.nc.GetVariable(VarTime)
	if err != nil {
		return newError(MissingVar, M.filename, "load", VarTime)
	}
	switch t := tv.Values.(type) {
	case []float32:
		M.times = widen(t)
	case []float64:
		M.times = t
	default:
		return newError(UnexpectedVar, M.filename, "load", VarTime)
	}
	if M.universe.Periodic() {
		bv, err := M.nc.GetVariable(VarBox)
		if err != nil {
			return newError(MissingVar, M.filename, "load", VarBox)
		}
		switch b := bv.Values.(type) {
		case [][]float32:
			M.boxes = make([][]float64, len(b))
			for i, v := range b {
				M.boxes[i] = widen(v)
			}
		case [][]float64:
			M.boxes = b
		default:
			return newError(UnexpectedVar, M.filename, "load", VarBox)
		}
	}
	M.conf, err = M.nc.GetVarGetter(VarConfiguration)
	if err != nil {
		return newError(MissingVar, M.filename, "load", VarConfiguration)
	}
	if len(M.times) != len(M.steps) || (M.boxes != nil && len(M.boxes) != len(M.steps)) {
		return newError(UnexpectedVar, M.filename, "load", "variables have different numbers of frames")
	}
	return nil
}

//Readable returns true if there are frames left to read with Next.
func (M *MMTKObj) Readable() bool {
	return M.readable
}

//Universe returns the system described in the trajectory.
func (M *MMTKObj) Universe() *chem.Universe { return M.universe }

//Title returns the title of the trajectory.
func (M *MMTKObj) Title() string { return M.title }

//Comment returns the comment of the trajectory, if any.
func (M *MMTKObj) Comment() string { return M.comment }

//Len returns the number of atoms per frame.
func (M *MMTKObj) Len() int { return M.universe.Len() }

//Frames returns the number of frames in the trajectory.
func (M *MMTKObj) Frames() int { return len(M.steps) }

//Time returns the time, in ps, of frame i.
func (M *MMTKObj) Time(i int) float64 { return M.times[i] }

//Step returns the step number of frame i.
func (M *MMTKObj) Step(i int) int { return int(M.steps[i]) }

//Close closes the file.
func (M *MMTKObj) Close() {
	M.readable = false
	if M.nc != nil {
		M.nc.Close()
		M.nc = nil
	}
}

//ReadFrame puts the coordinates of frame i (nm) in coords, which must have room for 3 values per atom,
//and, if box is not nil, the 9 box vector components (nm) in box.
func (M *MMTKObj) ReadFrame(i int, coords []float32, box []float32) error {
	if M.nc == nil {
		return Error{TrajUnIni, M.filename, []string{"ReadFrame"}, true}
	}
	if i < 0 || i >= M.Frames() {
		return newError(ReadError, M.filename, "ReadFrame", fmt.Sprintf("frame %d out of range [0,%d)", i, M.Frames()))
	}
	n := 3 * M.Len()
	if len(coords) < n {
		panic("Buffer too small to hold trajectory frame")
	}
	vals, err := M.conf.GetSlice(int64(i), int64(i+1))
	if err != nil {
		return newError(ReadError, M.filename, "ReadFrame", err.Error())
	}
	k := 0
	switch f := vals.(type) {
	case [][][]float32:
		if len(f) != 1 || len(f[0]) != M.Len() {
			return newError(UnexpectedVar, M.filename, "ReadFrame", VarConfiguration)
		}
		for _, at := range f[0] {
			k += copy(coords[k:k+3], at)
		}
	case [][][]float64:
		if len(f) != 1 || len(f[0]) != M.Len() {
			return newError(UnexpectedVar, M.filename, "ReadFrame", VarConfiguration)
		}
		for _, at := range f[0] {
			for _, v := range at[:3] {
				coords[k] = float32(v)
				k++
			}
		}
	default:
		return newError(UnexpectedVar, M.filename, "ReadFrame", VarConfiguration)
	}
	if box != nil {
		for j := range box[:9] {
			box[j] = 0
		}
		switch M.universe.Kind {
		case chem.OrthorhombicPeriodicUniverse:
			box[0], box[4], box[8] = float32(M.boxes[i][0]), float32(M.boxes[i][1]), float32(M.boxes[i][2])
		case chem.ParallelepipedicPeriodicUniverse:
			for j, v := range M.boxes[i][:9] {
				box[j] = float32(v)
			}
		}
	}
	return nil
}

//Next reads the next frame into output, in Angstrom, and, if given, the box vectors into box,
//also in Angstrom. If output is nil and no box is given, the frame is skipped.
func (M *MMTKObj) Next(output *v3.Matrix, box ...[]float64) error {
	if !M.readable {
		return Error{TrajUnIni, M.filename, []string{"Next"}, true}
	}
	if M.current >= M.Frames() {
		M.readable = false
		return newlastFrameError(M.filename, "Next")
	}
	i := M.current
	M.current++
	wantbox := len(box) > 0 && box[0] != nil
	if output == nil && !wantbox {
		return nil
	}
	if len(M.buf) < 3*M.Len() {
		M.buf = make([]float32, 3*M.Len())
	}
	var b [9]float32
	if err := M.ReadFrame(i, M.buf, b[:]); err != nil {
		return errDecorate(err, "Next")
	}
	if output != nil {
		output.View(0, 0, M.Len(), 3).SetFloat32(M.buf, chem.Nm2A)
	}
	if wantbox {
		for j := 0; j < len(box[0]) && j < 9; j++ {
			box[0][j] = chem.Nm2A * float64(b[j])
		}
	}
	return nil
}
