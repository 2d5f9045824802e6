/*
 * bits_test.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package xtc

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeOfInt(Te *testing.T) {
	assert.Equal(Te, uint(0), sizeOfInt(0))
	assert.Equal(Te, uint(1), sizeOfInt(1))
	assert.Equal(Te, uint(8), sizeOfInt(255))
	assert.Equal(Te, uint(9), sizeOfInt(256))
	assert.Equal(Te, uint(32), sizeOfInt(math.MaxUint32))
	//10*10*10=1000 needs 10 bits.
	assert.Equal(Te, uint(10), sizeOfInts([]uint32{10, 10, 10}))
}

func TestBitsRoundTrip(Te *testing.T) {
	rng := rand.New(rand.NewSource(7))
	w := &bitBuffer{}
	widths := make([]uint, 500)
	values := make([]uint32, 500)
	for i := range widths {
		widths[i] = uint(rng.Intn(32) + 1)
		values[i] = uint32(rng.Int63n(int64(1) << widths[i]))
		w.sendBits(widths[i], values[i])
	}
	r := &bitBuffer{data: w.bytes()}
	for i := range widths {
		require.Equal(Te, values[i], r.receiveBits(widths[i]), "value %d, %d bits", i, widths[i])
	}
	assert.False(Te, r.overrun)
	r.receiveBits(32)
	r.receiveBits(32)
	assert.True(Te, r.overrun)
}

func TestIntsRoundTrip(Te *testing.T) {
	rng := rand.New(rand.NewSource(11))
	sets := [][3]uint32{
		{10, 10, 10},
		{magicInts[20], magicInts[20], magicInts[20]},
		{5000, 70000, 123},
		{0xffffff, 0xffffff, 0xffffff},
	}
	w := &bitBuffer{}
	var sent [][3]uint32
	for _, sizes := range sets {
		nbits := sizeOfInts(sizes[:])
		for k := 0; k < 20; k++ {
			nums := [3]uint32{uint32(rng.Int63n(int64(sizes[0]))), uint32(rng.Int63n(int64(sizes[1]))), uint32(rng.Int63n(int64(sizes[2])))}
			w.sendInts(nbits, sizes, nums)
			sent = append(sent, nums)
		}
	}
	r := &bitBuffer{data: w.bytes()}
	i := 0
	for _, sizes := range sets {
		nbits := sizeOfInts(sizes[:])
		for k := 0; k < 20; k++ {
			var got [3]int32
			r.receiveInts(nbits, sizes, &got)
			want := sent[i]
			require.Equal(Te, [3]int32{int32(want[0]), int32(want[1]), int32(want[2])}, got, "set %v, triplet %d", sizes, k)
			i++
		}
	}
	assert.False(Te, r.overrun)
}
