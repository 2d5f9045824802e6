/*
 * mmtk.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package mmtk

import (
	"fmt"
	"os"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"

	chem "github.com/rmera/xtc2nc"
	v3 "github.com/rmera/xtc2nc/v3"
)

//Names of the dimensions, variables and attributes in an MMTK trajectory.
const (
	DimStep        = "step_number"
	DimAtom        = "atom_number"
	DimXYZ         = "xyz"
	DimBox         = "box_size_length"
	DimDescription = "description_length"

	VarDescription   = "description"
	VarConfiguration = "configuration"
	VarBox           = "box_size"
	VarTime          = "time"
	VarStep          = "step"

	Conventions = "MMTK_trajectory"
)

//Options for the MMTK writer.
type Options struct {
	Double      bool   //store configurations, boxes and times in double precision.
	Title       string //title attribute.
	Comment     string //comment attribute, omitted if empty.
	History     string //history attribute, omitted if empty.
	MemoryLimit int64  //maximum bytes to hold in memory before writing, 0 means no limit.
}

var _ chem.WTraj = (*MMTKWObj)(nil)

//MMTKWObj writes an MMTK trajectory in netCDF format. The classic netCDF writer needs
//each variable as a whole, so frames are kept in memory until Close.
type MMTKWObj struct {
	filename   string
	universe   *chem.Universe
	opts       Options
	natoms     int
	writable   bool
	steps      []int32
	times      []float32
	coords     [][]float32 //one flat slice per frame, nm.
	boxes      [][]float32 //box_size values per frame, nm.
	frameBytes int64
	boxbuf     [9]float32
	scratch    []float32
}

//NewWriter returns a writer for an MMTK trajectory of the system U, to be written to filename.
//Nothing is written until Close is called.
func NewWriter(filename string, U *chem.Universe, opts Options) (*MMTKWObj, error) {
	if U == nil || U.Len() == 0 {
		return nil, newError(WrongAtoms, filename, "NewWriter", "empty universe")
	}
	W := &MMTKWObj{filename: filename, universe: U, opts: opts, natoms: U.Len(), writable: true}
	elem := int64(4)
	if opts.Double {
		elem = 8
	}
	//flat data, plus the slice headers the nested layout needs when writing.
	W.frameBytes = int64(W.natoms)*(3*elem+24) + int64(U.BoxSizeLen())*elem + 64
	return W, nil
}

//Len returns the number of atoms per frame.
func (W *MMTKWObj) Len() int {
	return W.natoms
}

//Frames returns the number of frames stored so far.
func (W *MMTKWObj) Frames() int {
	return len(W.steps)
}

//EstimatedBytes returns the approximate amount of memory needed to hold nframes frames.
func (W *MMTKWObj) EstimatedBytes(nframes int) int64 {
	return int64(nframes) * W.frameBytes
}

//WriteFrame adds a frame with the given step number, time (ps), coordinates (nm, 3 values per atom)
//and box vectors (nm). The box is ignored for non-periodic universes. coords is copied.
func (W *MMTKWObj) WriteFrame(step int, time float32, coords []float32, box [9]float32) error {
	if !W.writable {
		return Error{TrajUnIni, W.filename, []string{"WriteFrame"}, true}
	}
	if len(coords) != 3*W.natoms {
		return newError(WrongAtoms, W.filename, "WriteFrame", fmt.Sprintf("got %d atoms, expected %d", len(coords)/3, W.natoms))
	}
	if W.opts.MemoryLimit > 0 && W.EstimatedBytes(W.Frames()+1) > W.opts.MemoryLimit {
		return newError(MemoryLimit, W.filename, "WriteFrame", fmt.Sprintf("%d frames need more than %d bytes", W.Frames()+1, W.opts.MemoryLimit))
	}
	c := make([]float32, len(coords))
	copy(c, coords)
	W.coords = append(W.coords, c)
	W.steps = append(W.steps, int32(step))
	W.times = append(W.times, time)
	if W.universe.Periodic() {
		W.boxes = append(W.boxes, W.universe.BoxSize(box[:], nil))
	}
	return nil
}

//WNext adds coords (Angstrom) as the next frame. If no box (Angstrom) is given, the
//box of the universe is used. Step and time (ps) are both the number of frames written before.
func (W *MMTKWObj) WNext(coords *v3.Matrix, box ...[]float64) error {
	if coords.NVecs() != W.natoms {
		return newError(WrongAtoms, W.filename, "WNext", fmt.Sprintf("got %d atoms, expected %d", coords.NVecs(), W.natoms))
	}
	W.scratch = coords.Float32(W.scratch, chem.A2Nm)
	for i := range W.boxbuf {
		W.boxbuf[i] = float32(W.universe.Box[i])
	}
	if len(box) > 0 && len(box[0]) >= 9 {
		for i := range W.boxbuf {
			W.boxbuf[i] = float32(box[0][i] * chem.A2Nm)
		}
	}
	n := W.Frames()
	if err := W.WriteFrame(n, float32(n), W.scratch, W.boxbuf); err != nil {
		return errDecorate(err, "WNext")
	}
	return nil
}

//Abort discards all the stored frames. Nothing is written.
func (W *MMTKWObj) Abort() {
	W.writable = false
	W.coords = nil
	W.boxes = nil
	W.steps = nil
	W.times = nil
}

//Close writes the trajectory to the file. It is an error to close a writer without frames,
//in which case no file is written.
func (W *MMTKWObj) Close() error {
	if !W.writable {
		return nil
	}
	W.writable = false
	if W.Frames() == 0 {
		return newError(NoFrames, W.filename, "Close", "")
	}
	err := W.write()
	W.Abort()
	if err != nil {
		os.Remove(W.filename)
		return newError(WriteError, W.filename, "Close", err.Error())
	}
	return nil
}

func (W *MMTKWObj) write() error {
	cw, err := cdf.OpenWriter(W.filename)
	if err != nil {
		return err
	}
	gattrs, err := W.globalAttributes()
	if err != nil {
		cw.Close()
		return err
	}
	if err := cw.AddGlobalAttrs(gattrs); err != nil {
		cw.Close()
		return err
	}
	vars, err := W.variables()
	if err != nil {
		cw.Close()
		return err
	}
	for _, v := range vars {
		if err := cw.AddVar(v.name, v.v); err != nil {
			cw.Close()
			return fmt.Errorf("variable %s: %w", v.name, err)
		}
	}
	return cw.Close()
}

func (W *MMTKWObj) globalAttributes() (api.AttributeMap, error) {
	keys := []string{"Conventions", "trajectory_type", "title"}
	vals := map[string]interface{}{
		"Conventions":     Conventions,
		"trajectory_type": int32(0),
		"title":           W.opts.Title,
	}
	if W.opts.Comment != "" {
		keys = append(keys, "comment")
		vals["comment"] = W.opts.Comment
	}
	if W.opts.History != "" {
		keys = append(keys, "history")
		vals["history"] = W.opts.History
	}
	return util.NewOrderedMap(keys, vals)
}

func units(u string) (api.AttributeMap, error) {
	return util.NewOrderedMap([]string{"units"}, map[string]interface{}{"units": u})
}

type namedVar struct {
	name string
	v    api.Variable
}

//variables builds the netCDF variables from the stored frames. The nested
//slices share the memory of the stored frames.
func (W *MMTKWObj) variables() ([]namedVar, error) {
	nm, err := units("nm")
	if err != nil {
		return nil, err
	}
	ps, err := units("ps")
	if err != nil {
		return nil, err
	}
	empty, err := util.NewOrderedMap([]string{}, map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	vars := []namedVar{{VarDescription, api.Variable{
		Values:     W.universe.Description(),
		Dimensions: []string{DimDescription},
		Attributes: empty,
	}}}
	conf := api.Variable{Dimensions: []string{DimStep, DimAtom, DimXYZ}, Attributes: nm}
	timev := api.Variable{Dimensions: []string{DimStep}, Attributes: ps}
	if W.opts.Double {
		conf.Values = nest64(W.coords, 3)
		timev.Values = widen(W.times)
	} else {
		conf.Values = nest32(W.coords, 3)
		timev.Values = W.times
	}
	vars = append(vars, namedVar{VarConfiguration, conf})
	if W.universe.Periodic() {
		boxv := api.Variable{Dimensions: []string{DimStep, DimBox}, Attributes: nm}
		if W.opts.Double {
			b := make([][]float64, len(W.boxes))
			for i, v := range W.boxes {
				b[i] = widen(v)
			}
			boxv.Values = b
		} else {
			boxv.Values = W.boxes
		}
		vars = append(vars, namedVar{VarBox, boxv})
	}
	vars = append(vars, namedVar{VarTime, timev})
	vars = append(vars, namedVar{VarStep, api.Variable{
		Values:     W.steps,
		Dimensions: []string{DimStep},
		Attributes: empty,
	}})
	return vars, nil
}

//nest32 returns the frames as [frame][atom][xyz] slices sharing memory with frames.
func nest32(frames [][]float32, width int) [][][]float32 {
	ret := make([][][]float32, len(frames))
	for i, f := range frames {
		rows := make([][]float32, len(f)/width)
		for j := range rows {
			rows[j] = f[width*j : width*(j+1) : width*(j+1)]
		}
		ret[i] = rows
	}
	return ret
}

//nest64 is like nest32, but converts the values to float64.
func nest64(frames [][]float32, width int) [][][]float64 {
	ret := make([][][]float64, len(frames))
	for i, f := range frames {
		wide := widen(f)
		rows := make([][]float64, len(f)/width)
		for j := range rows {
			rows[j] = wide[width*j : width*(j+1) : width*(j+1)]
		}
		ret[i] = rows
	}
	return ret
}

func widen(f []float32) []float64 {
	ret := make([]float64, len(f))
	for i, v := range f {
		ret[i] = float64(v)
	}
	return ret
}
