/*
 * stf.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package stf

import (
	"bufio"
	"compress/lzw"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	chem "github.com/rmera/xtc2nc"
	v3 "github.com/rmera/xtc2nc/v3"
)

const (
	lzwLitwidth int = 8
	//DefaultPrec is the number of decimal places kept for coordinates in A.
	DefaultPrec = 2
)

//compression returns the compression method for the file name,
//from the last letter of its extension.
func compression(name string) byte {
	if name == "" {
		return 'f'
	}
	switch c := strings.ToLower(name)[len(name)-1]; c {
	case 'l', 'z', 'r':
		return c
	}
	return 'f'
}

var _ chem.WTraj = (*StfW)(nil)

//Write!
type StfW struct {
	f         *os.File //nil if the object doesn't own the underlying writer.
	h         io.WriteCloser
	w         *bufio.Writer
	natoms    int
	filename  string
	writeable bool
	prec      int
	mult      float64
	line      []byte
}

//NewWriter creates the file name and returns a writer for a trajectory of natoms atoms. The
//header will contain the pairs in header (which can be nil), plus the precision.
//The compression method is chosen from the file extension. The compression level is only
//used for gzip and deflate.
func NewWriter(name string, natoms int, header map[string]string, compressionLevel ...int) (*StfW, error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, Error{err.Error(), name, []string{"os.Create", "NewWriter"}, true}
	}
	S, err := NewStreamWriter(f, name, natoms, header, compressionLevel...)
	if err != nil {
		f.Close()
		return nil, errDecorate(err, "NewWriter")
	}
	S.f = f
	return S, nil
}

//NewStreamWriter is like NewWriter, but writes to w. name is only used to pick the compression
//method, and in error messages.
func NewStreamWriter(w io.Writer, name string, natoms int, header map[string]string, compressionLevel ...int) (*StfW, error) {
	level := flate.DefaultCompression
	if len(compressionLevel) > 0 {
		level = compressionLevel[0]
	}
	if natoms <= 0 {
		return nil, Error{fmt.Sprintf("Can't write frames of %d atoms", natoms), name, []string{"NewStreamWriter"}, true}
	}
	S := &StfW{natoms: natoms, filename: name, prec: DefaultPrec}
	var err error
	switch compression(name) {
	case 'l':
		S.h = lzw.NewWriter(w, lzw.MSB, lzwLitwidth)
	case 'z':
		S.h, err = gzip.NewWriterLevel(w, level)
	case 'r':
		S.h, err = flate.NewWriter(w, level)
	default:
		S.h, err = zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	}
	if err != nil {
		return nil, Error{"Can't create compressor " + err.Error(), S.filename, []string{"NewStreamWriter"}, true}
	}
	S.w = bufio.NewWriterSize(S.h, 1<<16)
	if p, ok := header["prec"]; ok {
		prec, err := strconv.Atoi(p)
		if err == nil && prec > 0 {
			S.prec = prec
		} else {
			log.Printf("Invalid precision for trajectory %s. Will use the default", S.filename)
		}
	}
	S.mult = math.Pow(10, float64(S.prec))
	keys := make([]string, 0, len(header)+1)
	for k := range header {
		if k != "prec" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	fmt.Fprintf(S.w, "prec=%d\n", S.prec)
	for _, k := range keys {
		fmt.Fprintf(S.w, "%s=%s\n", k, strings.ReplaceAll(header[k], "\n", " "))
	}
	fmt.Fprintf(S.w, "** %d\n", S.natoms)
	S.writeable = true
	return S, nil
}

//Close flushes the data, and closes the compressor and the file, if the object created it.
func (S *StfW) Close() error {
	if S == nil || !S.writeable {
		return nil
	}
	S.writeable = false
	err := S.w.Flush()
	if cerr := S.h.Close(); err == nil {
		err = cerr
	}
	if S.f != nil {
		if cerr := S.f.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return Error{err.Error(), S.filename, []string{"Close"}, true}
	}
	return nil
}

func (S *StfW) Len() int {
	return S.natoms
}

//WNext writes a frame with the coordinates in coord and, optionally, the box vectors
//in box. Both in A.
func (S *StfW) WNext(coord *v3.Matrix, box ...[]float64) error {
	if !S.writeable {
		return Error{TrajUnIniWrite, S.filename, []string{"WNext"}, true}
	}
	if coord == nil {
		return Error{NilCoordinates, S.filename, []string{"WNext"}, true}
	}
	v := coord.NVecs()
	if v != S.natoms {
		return Error{fmt.Sprintf("%d coordinates given, but %d expected", v, S.natoms), S.filename, []string{"WNext"}, true}
	}
	var floats [3]float64
	for i := 0; i < v; i++ {
		floats[0] = coord.At(i, 0)
		floats[1] = coord.At(i, 1)
		floats[2] = coord.At(i, 2)
		S.line = coordsEncode(S.line[:0], floats, S.mult)
		S.w.Write(S.line)
	}
	var b []float64
	if len(box) > 0 && len(box[0]) >= 9 {
		b = box[0]
	}
	return S.endFrame(b, "WNext")
}

//WriteFrame writes a frame with coordinates (3 values per atom) and box vectors in nm,
//as found in XTC files. A zero box is not written.
func (S *StfW) WriteFrame(coords []float32, box [9]float32) error {
	if !S.writeable {
		return Error{TrajUnIniWrite, S.filename, []string{"WriteFrame"}, true}
	}
	if len(coords) != 3*S.natoms {
		return Error{fmt.Sprintf("%d coordinates given, but %d expected", len(coords)/3, S.natoms), S.filename, []string{"WriteFrame"}, true}
	}
	var floats [3]float64
	for i := 0; i < S.natoms; i++ {
		for j := range floats {
			floats[j] = chem.Nm2A * float64(coords[3*i+j])
		}
		S.line = coordsEncode(S.line[:0], floats, S.mult)
		S.w.Write(S.line)
	}
	b := make([]float64, 9)
	for i, v := range box {
		b[i] = chem.Nm2A * float64(v)
	}
	if chem.ClassifyBox(b) == chem.InfiniteUniverse {
		b = nil
	}
	return S.endFrame(b, "WriteFrame")
}

func (S *StfW) endFrame(b []float64, caller string) error {
	var err error
	if b != nil {
		_, err = fmt.Fprintf(S.w, "* %4.2f %4.2f %4.2f %4.2f %4.2f %4.2f %4.2f %4.2f %4.2f\n", b[0],
			b[1], b[2], b[3], b[4], b[5], b[6], b[7], b[8])
	} else {
		_, err = S.w.WriteString("*\n")
	}
	if err != nil {
		S.writeable = false
		return Error{err.Error(), S.filename, []string{caller}, true}
	}
	return nil
}

//coordsEncode appends to dst the line for one atom.
func coordsEncode(dst []byte, f [3]float64, mult float64) []byte {
	for i, v := range f {
		if i > 0 {
			dst = append(dst, ' ')
		}
		dst = strconv.AppendInt(dst, int64(math.RoundToEven(v*mult)), 10)
	}
	return append(dst, '\n')
}

var (
	_ chem.Traj     = (*StfR)(nil)
	_ chem.ConcTraj = (*StfR)(nil)
)

//Read!
type StfR struct {
	f        *os.File
	lzw      io.ReadCloser
	h        *bufio.Reader
	natoms   int
	filename string
	prec     int
	mult     float64
	readable bool
}

//This will cause additional indirections
//but I suppose it won't matter, as each call will
//take enough time to make those delays irrelevant.
//Also, why couldn't *zstd.Decoder implement io.ReadCloser? :-(
type stdql struct {
	*zstd.Decoder
}

//Close Closes the object. It can not be used after this call
func (s stdql) Close() error {
	s.Decoder.Close()
	return nil
}

//New opens a STF trajectory for reading, and returns a pointer
//to the handle, a map with the metadata and error or nil.
func New(name string) (*StfR, map[string]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, Error{err.Error(), name, []string{"os.Open", "New"}, true}
	}
	S, m, err := NewReader(f, name)
	if err != nil {
		f.Close()
		return nil, nil, errDecorate(err, "New")
	}
	S.f = f
	return S, m, nil
}

//NewReader is like New, but reads the trajectory from r. name is used to choose the
//decompression method, and in error messages.
func NewReader(r io.Reader, name string) (*StfR, map[string]string, error) {
	S := new(StfR)
	S.natoms = -1 //just so we know if things don't work
	S.filename = name
	S.prec = DefaultPrec
	m := make(map[string]string)
	var err error
	intermediate := bufio.NewReader(r)
	switch compression(name) {
	case 'l':
		S.lzw = lzw.NewReader(intermediate, lzw.MSB, lzwLitwidth)
	case 'z':
		S.lzw, err = gzip.NewReader(intermediate)
	case 'r':
		S.lzw = flate.NewReader(intermediate)
	default:
		var d *zstd.Decoder
		d, err = zstd.NewReader(intermediate)
		if err == nil {
			S.lzw = stdql{d}
		}
	}
	if err != nil {
		return nil, nil, Error{"Can't read header " + err.Error(), S.filename, []string{"NewReader"}, true}
	}
	S.h = bufio.NewReader(S.lzw)
	for {
		str, err := S.h.ReadString('\n')
		if err != nil {
			S.lzw.Close()
			return nil, nil, Error{"Can't read header " + err.Error(), S.filename, []string{"NewReader"}, true}
		}
		str = strings.TrimSuffix(str, "\n")
		if strings.HasPrefix(str, "**") {
			nat := strings.Fields(str)
			if len(nat) < 2 {
				S.lzw.Close()
				return nil, nil, Error{fmt.Sprintf("Can't read atom number from '%s'", str), S.filename, []string{"NewReader"}, true}
			}
			S.natoms, err = strconv.Atoi(nat[1])
			if err != nil || S.natoms <= 0 {
				S.lzw.Close()
				return nil, nil, Error{fmt.Sprintf("Can't read atom number from '%s'", nat[1]), S.filename, []string{"NewReader"}, true}
			}
			break
		}
		k, v, ok := strings.Cut(str, "=")
		if !ok {
			S.lzw.Close()
			return nil, nil, Error{"Malformed header line: " + str, S.filename, []string{"NewReader"}, true}
		}
		m[k] = v
	}
	if p, ok := m["prec"]; ok {
		prec, err := strconv.Atoi(p)
		if err == nil && prec > 0 {
			S.prec = prec
		} else {
			log.Printf("Invalid precision for trajectory %s. Will assume the default", S.filename)
		}
	}
	S.mult = math.Pow(10, float64(S.prec))
	S.readable = true
	return S, m, nil
}

//Readabe returns true if the handle is readable (if it is possible to call Next on it)
func (S *StfR) Readable() bool {
	return S.readable
}

func coordsDecode(str string, temp *[3]float64, mult float64) error {
	s := strings.Fields(str)
	if len(s) < 3 {
		return fmt.Errorf("Ill formated coordinates line in stf: Too few fields: %s", str)
	}
	if len(s) > 3 {
		return fmt.Errorf("Ill formated coordinates line in stf: Too many fields: %s", str)
	}
	for i, v := range s {
		f, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("Can't parse coordinate %d (%s). Error: %s", i, v, err.Error())
		}
		temp[i] = float64(f) / mult
	}
	return nil
}

//Next puts in the given matrix (c) the coordinates for the next frame of the trajectory
//and, if given, and the information is present, puts the box vector information in box
//Returns error if the operation is not successful. If the error is a chem.LastFrameError,
//the end of the trajectory has been reached, not an actual error.
func (S *StfR) Next(c *v3.Matrix, box ...[]float64) error {
	if !S.readable {
		return Error{TrajUnIniRead, S.filename, []string{"Next"}, true}
	}
	var temp [3]float64
	for i := 0; i < S.natoms; i++ {
		b, err := S.h.ReadString('\n')
		if err != nil {
			// EOF should only happen when reading the first atom
			if err == io.EOF && b == "" && i == 0 {
				//nothing bad happened here, the trajectory just ended.
				S.Close()
				return newlastFrameError(S.filename, "Next")
			}
			S.readable = false
			return Error{err.Error(), S.filename, []string{"Next"}, true}
		}
		err = coordsDecode(strings.TrimSuffix(b, "\n"), &temp, S.mult)
		if err != nil {
			S.readable = false
			return Error{err.Error(), S.filename, []string{"Next"}, true}
		}
		if c == nil {
			continue //We ignore this whole frame, reading the content but not saving it.
			//Note that we still check the frame for correctness.
		}
		for j, v := range temp {
			c.Set(i, j, v)
		}
	}
	s, err := S.h.ReadString('\n')
	if err != nil {
		S.readable = false
		return Error{"Can't read the frame termination mark " + err.Error(), S.filename, []string{"Next"}, true}
	}
	if s[0] != '*' {
		S.readable = false
		return Error{"Wrong number of atoms in frame", S.filename, []string{"Next"}, true}
	}
	if len(box) == 0 || len(box[0]) < 9 {
		return nil
	}
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) < 10 { // The "*" and the 9 numbers
		log.Printf("Trajectory file %s does not contain (correct) box information: %s", S.filename, fields) //just a head-up
		return nil
	}
	var errbox error
	for j, v := range fields[1:10] {
		box[0][j], errbox = strconv.ParseFloat(v, 64)
		if errbox != nil {
			break
		}
	}
	//If we got an error reading any of the values, we just set the whole thing to zero
	//and log, no error returned.
	if errbox != nil {
		log.Printf("Failed to read box in a frame from %s", S.filename) //just a head-up
		for i := range box[0] {
			box[0][i] = 0.0
		}
	}
	return nil
}

//Close closes the object, and marks it as unreadable
func (S *StfR) Close() {
	if !S.readable {
		return
	}
	S.lzw.Close()
	if S.f != nil {
		S.f.Close()
	}
	S.readable = false
}

//Len returns the number of atoms in each frame of the trajectory.
func (S *StfR) Len() int {
	return S.natoms
}

//NextConc takes a slice of matrices and reads as many frames as elements the list has
//form the trajectory. The frames are discarted if the corresponding element of the slice
//is nil. The function returns a slice of channels through each of each of which
// a *v3.Matrix will be transmited
func (S *StfR) NextConc(frames []*v3.Matrix) ([]chan *v3.Matrix, error) {
	if !S.Readable() {
		return nil, Error{TrajUnIniRead, S.filename, []string{"NextConc"}, true}
	}
	framechans := make([]chan *v3.Matrix, len(frames)) //the slice of chans that will be returned
	for key, v := range frames {
		if err := S.Next(v); err != nil {
			if _, ok := err.(*lastFrameError); ok && key > 0 {
				return framechans, err
			}
			return nil, errDecorate(err, "NextConc")
		}
		if v == nil {
			continue
		}
		framechans[key] = make(chan *v3.Matrix, 1)
		framechans[key] <- v
	}
	return framechans, nil
}

//Errors

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

//Error is the general structure for STF trajectory errors. It fullfills  chem.Error and chem.TrajError
type Error struct {
	message  string
	filename string //the input file that has problems, or empty string if none.
	deco     []string
	critical bool
}

func (err Error) Error() string {
	return fmt.Sprintf("stf file %s error: %s", err.filename, err.message)
}

//Decorate returns the decorations of the error, followed by deco if it is not empty.
//Error is a value, so E is not modified: errDecorate returns a decorated copy.
func (E Error) Decorate(deco string) []string {
	if deco == "" {
		return E.deco
	}
	return append(E.deco[:len(E.deco):len(E.deco)], deco)
}

//Filename returns the file to which the failing trajectory was associated
func (err Error) FileName() string { return err.filename }

//Format returns the format of the file (always "stf") associated to the error
func (err Error) Format() string { return "stf" }

//Critical returns true if the error is critical, false otherwise
func (err Error) Critical() bool { return err.critical }

const (
	TrajUnIniRead  = "Traj object uninitialized to read"
	TrajUnIniWrite = "Traj object uninitialized to write"
	NilCoordinates = "Given nil coordinates"
)

//lastFrameError implements chem.LastFrameError
type lastFrameError struct {
	deco     []string
	fileName string
}

//lastFrameError does nothing
func (E lastFrameError) NormalLastFrameTermination() {}

func (E lastFrameError) FileName() string { return E.fileName }

func (E lastFrameError) Error() string { return "EOF" }

func (E lastFrameError) Critical() bool { return false }

func (E lastFrameError) Format() string { return "stf" }

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
