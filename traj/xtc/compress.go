/*
 * compress.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package xtc

import (
	"encoding/binary"
	"fmt"
	"math"
)

//DefaultPrecision is the precision GROMACS uses by default (0.001 nm).
const DefaultPrecision = 1000

//maxAbs is the largest absolute value a scaled coordinate can take.
const maxAbs = math.MaxInt32 - 2

//compressedHeader is the size of the fixed part of a compressed coordinate block:
//precision, minint[3], maxint[3], smallidx and the byte count.
const compressedHeader = 36

var be = binary.BigEndian

func abs32(i int32) int64 {
	if i < 0 {
		return -int64(i)
	}
	return int64(i)
}

//decompressCoords decodes a compressed coordinate block for natoms atoms
//into out (nm), returning the precision with which it was stored.
func decompressCoords(payload []byte, natoms int, out []float32) (float32, error) {
	if len(payload) < compressedHeader {
		return 0, fmt.Errorf("compressed block too short (%d bytes)", len(payload))
	}
	if len(out) < 3*natoms {
		return 0, fmt.Errorf("output buffer too small for %d atoms", natoms)
	}
	precision := math.Float32frombits(be.Uint32(payload[0:]))
	if !(precision > 0) {
		return 0, fmt.Errorf("invalid precision %g", precision)
	}
	var minint, maxint [3]int32
	for i := 0; i < 3; i++ {
		minint[i] = int32(be.Uint32(payload[4+4*i:]))
		maxint[i] = int32(be.Uint32(payload[16+4*i:]))
	}
	smallidx := int(int32(be.Uint32(payload[28:])))
	bytecount := int(int32(be.Uint32(payload[32:])))
	if bytecount < 0 || compressedHeader+bytecount > len(payload) {
		return 0, fmt.Errorf("invalid byte count %d", bytecount)
	}
	if smallidx < firstIdx || smallidx >= lastIdx {
		return 0, fmt.Errorf("invalid small index %d", smallidx)
	}
	var sizeint [3]uint32
	var bitsizeint [3]uint
	var bitsize uint
	for i := range sizeint {
		sizeint[i] = uint32(maxint[i]) - uint32(minint[i]) + 1
	}
	if (sizeint[0] | sizeint[1] | sizeint[2]) > 0xffffff {
		for i := range sizeint {
			bitsizeint[i] = sizeOfInt(sizeint[i])
		}
	} else {
		if sizeint[0] == 0 || sizeint[1] == 0 || sizeint[2] == 0 {
			return 0, fmt.Errorf("invalid coordinate range")
		}
		bitsize = sizeOfInts(sizeint[:])
	}
	smaller := int32(magicInts[max(firstIdx, smallidx-1)] / 2)
	smallnum := int32(magicInts[smallidx] / 2)
	sizesmall := [3]uint32{magicInts[smallidx], magicInts[smallidx], magicInts[smallidx]}
	buf := &bitBuffer{data: payload[compressedHeader : compressedHeader+bytecount]}
	inv := 1 / precision
	var thiscoord, prevcoord [3]int32
	put := func(pos int, c [3]int32) {
		out[3*pos] = float32(c[0]) * inv
		out[3*pos+1] = float32(c[1]) * inv
		out[3*pos+2] = float32(c[2]) * inv
	}
	run := 0
	pos := 0
	for i := 0; i < natoms; {
		if bitsize == 0 {
			for k := range thiscoord {
				thiscoord[k] = int32(buf.receiveBits(bitsizeint[k]))
			}
		} else {
			buf.receiveInts(bitsize, sizeint, &thiscoord)
		}
		i++
		for k := range thiscoord {
			thiscoord[k] += minint[k]
		}
		prevcoord = thiscoord
		isSmaller := 0
		if buf.receiveBits(1) == 1 {
			run = int(buf.receiveBits(5))
			isSmaller = run % 3
			run -= isSmaller
			isSmaller--
		}
		if run > 0 {
			if i+run/3 > natoms {
				return 0, fmt.Errorf("run of %d atoms after atom %d exceeds the atom count", run/3, i)
			}
			for k := 0; k < run; k += 3 {
				buf.receiveInts(uint(smallidx), sizesmall, &thiscoord)
				i++
				for j := range thiscoord {
					thiscoord[j] += prevcoord[j] - smallnum
				}
				if k == 0 {
					//The first small atom was stored before the large one.
					thiscoord, prevcoord = prevcoord, thiscoord
					put(pos, prevcoord)
					pos++
				} else {
					prevcoord = thiscoord
				}
				put(pos, thiscoord)
				pos++
			}
		} else {
			put(pos, thiscoord)
			pos++
		}
		smallidx += isSmaller
		if smallidx < firstIdx || smallidx >= lastIdx {
			return 0, fmt.Errorf("invalid small index %d at atom %d", smallidx, i)
		}
		if isSmaller < 0 {
			smallnum = smaller
			if smallidx > firstIdx {
				smaller = int32(magicInts[smallidx-1] / 2)
			} else {
				smaller = 0
			}
		} else if isSmaller > 0 {
			smaller = smallnum
			smallnum = int32(magicInts[smallidx] / 2)
		}
		sizesmall = [3]uint32{magicInts[smallidx], magicInts[smallidx], magicInts[smallidx]}
		if buf.overrun {
			return 0, fmt.Errorf("compressed data exhausted at atom %d of %d", i, natoms)
		}
	}
	return precision, nil
}

//compressCoords encodes coords (nm, 3 values per atom, more than 9 atoms)
//with the given precision, returning the complete compressed block,
//padded to a multiple of 4 bytes.
func compressCoords(coords []float32, precision float32) ([]byte, error) {
	natoms := len(coords) / 3
	if precision <= 0 {
		precision = DefaultPrecision
	}
	ints := make([]int32, 3*natoms)
	minint := [3]int32{math.MaxInt32, math.MaxInt32, math.MaxInt32}
	maxint := [3]int32{math.MinInt32, math.MinInt32, math.MinInt32}
	mindiff := int64(math.MaxInt32)
	var old [3]int32
	for i := 0; i < natoms; i++ {
		var diff int64
		for j := 0; j < 3; j++ {
			lf := float32(coords[3*i+j] * precision) //no fused multiply-add, as in xdrfile.
			if lf >= 0 {
				lf += 0.5
			} else {
				lf -= 0.5
			}
			if math.IsNaN(float64(lf)) || math.Abs(float64(lf)) > maxAbs {
				return nil, fmt.Errorf("coordinate %g of atom %d can't be stored with precision %g", coords[3*i+j], i, precision)
			}
			l := int32(lf)
			ints[3*i+j] = l
			minint[j] = min(minint[j], l)
			maxint[j] = max(maxint[j], l)
			diff += abs32(old[j] - l)
			old[j] = l
		}
		if i > 0 && diff < mindiff {
			mindiff = diff
		}
	}
	for j := 0; j < 3; j++ {
		if float64(maxint[j])-float64(minint[j]) >= maxAbs {
			return nil, fmt.Errorf("coordinate range too large for precision %g", precision)
		}
	}
	var sizeint [3]uint32
	var bitsizeint [3]uint
	var bitsize uint
	for i := range sizeint {
		sizeint[i] = uint32(maxint[i]-minint[i]) + 1
	}
	if (sizeint[0] | sizeint[1] | sizeint[2]) > 0xffffff {
		for i := range sizeint {
			bitsizeint[i] = sizeOfInt(sizeint[i])
		}
	} else {
		bitsize = sizeOfInts(sizeint[:])
	}
	smallidx := firstIdx
	for smallidx < lastIdx-1 && int64(magicInts[smallidx]) < mindiff {
		smallidx++
	}
	startidx := smallidx
	maxidx := min(lastIdx-1, smallidx+8)
	minidx := maxidx - 8
	smaller := int64(magicInts[max(firstIdx, smallidx-1)] / 2)
	smallnum := int64(magicInts[smallidx] / 2)
	sizesmall := [3]uint32{magicInts[smallidx], magicInts[smallidx], magicInts[smallidx]}
	larger := int64(magicInts[maxidx] / 2)

	buf := &bitBuffer{data: make([]byte, 0, natoms*4)}
	var prevcoord [3]int32
	var tmpcoord [30]uint32
	prevrun := -1
	near := func(a, b []int32, lim int64) bool {
		return abs32(a[0]-b[0]) < lim && abs32(a[1]-b[1]) < lim && abs32(a[2]-b[2]) < lim
	}
	for i := 0; i < natoms; {
		this := ints[3*i : 3*i+3]
		isSmall := false
		isSmaller := 0
		if smallidx < maxidx && i >= 1 && near(this, prevcoord[:], larger) {
			isSmaller = 1
		} else if smallidx > minidx {
			isSmaller = -1
		}
		if i+1 < natoms {
			next := ints[3*i+3 : 3*i+6]
			if near(this, next, smallnum) {
				//swap the first two atoms of the run, which improves
				//compression for water molecules.
				for j := 0; j < 3; j++ {
					this[j], next[j] = next[j], this[j]
				}
				isSmall = true
			}
		}
		if bitsize == 0 {
			for j := 0; j < 3; j++ {
				buf.sendBits(bitsizeint[j], uint32(this[j]-minint[j]))
			}
		} else {
			buf.sendInts(bitsize, sizeint, [3]uint32{uint32(this[0] - minint[0]), uint32(this[1] - minint[1]), uint32(this[2] - minint[2])})
		}
		copy(prevcoord[:], this)
		i++
		run := 0
		if !isSmall && isSmaller == -1 {
			isSmaller = 0
		}
		for isSmall && run < 8*3 {
			this = ints[3*i : 3*i+3]
			var tmpsum int64
			for j := 0; j < 3; j++ {
				d := int64(this[j]) - int64(prevcoord[j])
				tmpsum += d * d
			}
			if isSmaller == -1 && tmpsum >= smaller*smaller {
				isSmaller = 0
			}
			for j := 0; j < 3; j++ {
				tmpcoord[run+j] = uint32(int64(this[j]) - int64(prevcoord[j]) + smallnum)
			}
			run += 3
			copy(prevcoord[:], this)
			i++
			isSmall = i < natoms && near(ints[3*i:3*i+3], prevcoord[:], smallnum)
		}
		if run != prevrun || isSmaller != 0 {
			prevrun = run
			buf.sendBits(1, 1)
			buf.sendBits(5, uint32(run+isSmaller+1))
		} else {
			buf.sendBits(1, 0)
		}
		for k := 0; k < run; k += 3 {
			buf.sendInts(uint(smallidx), sizesmall, [3]uint32{tmpcoord[k], tmpcoord[k+1], tmpcoord[k+2]})
		}
		if isSmaller != 0 {
			smallidx += isSmaller
			if isSmaller < 0 {
				smallnum = smaller
				smaller = int64(magicInts[smallidx-1] / 2)
			} else {
				smaller = smallnum
				smallnum = int64(magicInts[smallidx] / 2)
			}
			sizesmall = [3]uint32{magicInts[smallidx], magicInts[smallidx], magicInts[smallidx]}
		}
	}
	data := buf.bytes()
	padded := (len(data) + 3) &^ 3
	out := make([]byte, compressedHeader+padded)
	be.PutUint32(out[0:], math.Float32bits(precision))
	for i := 0; i < 3; i++ {
		be.PutUint32(out[4+4*i:], uint32(minint[i]))
		be.PutUint32(out[16+4*i:], uint32(maxint[i]))
	}
	be.PutUint32(out[28:], uint32(startidx))
	be.PutUint32(out[32:], uint32(len(data)))
	copy(out[compressedHeader:], data)
	return out, nil
}
