/*
 * bits.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package xtc

//The bit packing used by the XTC compression algorithm. The functions here follow, step by
//step, the ones in the xdrfile library distributed by the GROMACS developers, so the
//resulting files are readable by GROMACS and any other XTC reader.

//magicInts are the sizes used to encode small differences between consecutive atoms.
//Each size is ~2^(1/3) times the previous, so 3 integers of size magicInts[i] take i bits.
var magicInts = [...]uint32{
	0, 0, 0, 0, 0, 0, 0, 0, 0,
	8, 10, 12, 16, 20, 25, 32, 40, 50, 64,
	80, 101, 128, 161, 203, 256, 322, 406, 512, 645,
	812, 1024, 1290, 1625, 2048, 2580, 3250, 4096, 5060, 6501,
	8192, 10321, 13003, 16384, 20642, 26007, 32768, 41285, 52015, 65536,
	82570, 104031, 131072, 165140, 208063, 262144, 330280, 416127, 524287, 660561,
	832255, 1048576, 1321122, 1664510, 2097152, 2642245, 3329021, 4194304, 5284491, 6658042,
	8388607, 10568983, 13316085, 16777216,
}

const (
	firstIdx = 9
	lastIdx  = len(magicInts)
)

//bitBuffer holds a compressed coordinate block, and the state needed to
//read it, or write it, a few bits at the time.
type bitBuffer struct {
	data     []byte
	cnt      int
	lastbits uint
	lastbyte uint32
	overrun  bool //set if a read went past the end of data.
}

func (b *bitBuffer) nextByte() uint32 {
	if b.cnt >= len(b.data) {
		b.overrun = true
		b.cnt++
		return 0
	}
	r := b.data[b.cnt]
	b.cnt++
	return uint32(r)
}

//receiveBits reads nbits (at most 32) bits from the buffer.
func (b *bitBuffer) receiveBits(nbits uint) uint32 {
	mask := uint32((uint64(1) << nbits) - 1)
	var num uint32
	for nbits >= 8 {
		b.lastbyte = (b.lastbyte << 8) | b.nextByte()
		num |= (b.lastbyte >> b.lastbits) << (nbits - 8)
		nbits -= 8
	}
	if nbits > 0 {
		if b.lastbits < nbits {
			b.lastbits += 8
			b.lastbyte = (b.lastbyte << 8) | b.nextByte()
		}
		b.lastbits -= nbits
		num |= (b.lastbyte >> b.lastbits) & ((uint32(1) << nbits) - 1)
	}
	return num & mask
}

//sendBits appends the nbits least significant bits of num to the buffer.
func (b *bitBuffer) sendBits(nbits uint, num uint32) {
	for nbits >= 8 {
		b.lastbyte = (b.lastbyte << 8) | (num >> (nbits - 8))
		b.data = append(b.data, byte(b.lastbyte>>b.lastbits))
		nbits -= 8
	}
	if nbits > 0 {
		b.lastbyte = (b.lastbyte << nbits) | num
		b.lastbits += nbits
		if b.lastbits >= 8 {
			b.lastbits -= 8
			b.data = append(b.data, byte(b.lastbyte>>b.lastbits))
		}
	}
}

//bytes returns the written data, including the last, partially filled, byte.
func (b *bitBuffer) bytes() []byte {
	if b.lastbits > 0 {
		return append(b.data, byte(b.lastbyte<<(8-b.lastbits)))
	}
	return b.data
}

//sizeOfInt returns the number of bits needed to store any integer in [0, size).
func sizeOfInt(size uint32) uint {
	num := uint64(1)
	var nbits uint
	for uint64(size) >= num && nbits < 32 {
		nbits++
		num <<= 1
	}
	return nbits
}

//sizeOfInts returns the number of bits needed to store the integers in sizes, packed
//together as a single mixed-radix number.
func sizeOfInts(sizes []uint32) uint {
	var bytes [32]uint32
	nbytes := 1
	bytes[0] = 1
	var nbits uint
	for _, size := range sizes {
		var tmp uint32
		bytecnt := 0
		for ; bytecnt < nbytes; bytecnt++ {
			tmp = bytes[bytecnt]*size + tmp
			bytes[bytecnt] = tmp & 0xff
			tmp >>= 8
		}
		for tmp != 0 {
			bytes[bytecnt] = tmp & 0xff
			bytecnt++
			tmp >>= 8
		}
		nbytes = bytecnt
	}
	num := uint32(1)
	nbytes--
	for bytes[nbytes] >= num {
		nbits++
		num *= 2
	}
	return nbits + uint(nbytes)*8
}

//receiveInts reads 3 integers, of sizes sizes, packed together in nbits bits.
func (b *bitBuffer) receiveInts(nbits uint, sizes [3]uint32, nums *[3]int32) {
	var bytes [32]uint32
	nbytes := 0
	for nbits > 8 {
		bytes[nbytes] = b.receiveBits(8)
		nbytes++
		nbits -= 8
	}
	if nbits > 0 {
		bytes[nbytes] = b.receiveBits(nbits)
		nbytes++
	}
	for i := 2; i > 0; i-- {
		var num uint32
		for j := nbytes - 1; j >= 0; j-- {
			num = (num << 8) | bytes[j]
			p := num / sizes[i]
			bytes[j] = p
			num = num - p*sizes[i]
		}
		nums[i] = int32(num)
	}
	nums[0] = int32(bytes[0] | (bytes[1] << 8) | (bytes[2] << 16) | (bytes[3] << 24))
}

//sendInts packs the 3 integers in nums, of sizes sizes, in nbits bits.
//Each number must be smaller than its size.
func (b *bitBuffer) sendInts(nbits uint, sizes [3]uint32, nums [3]uint32) {
	var bytes [32]uint32
	nbytes := 0
	tmp := nums[0]
	for {
		bytes[nbytes] = tmp & 0xff
		nbytes++
		tmp >>= 8
		if tmp == 0 {
			break
		}
	}
	for i := 1; i < 3; i++ {
		tmp = nums[i]
		bytecnt := 0
		for ; bytecnt < nbytes; bytecnt++ {
			tmp = bytes[bytecnt]*sizes[i] + tmp
			bytes[bytecnt] = tmp & 0xff
			tmp >>= 8
		}
		for tmp != 0 {
			bytes[bytecnt] = tmp & 0xff
			bytecnt++
			tmp >>= 8
		}
		nbytes = bytecnt
	}
	if nbits >= uint(nbytes)*8 {
		for i := 0; i < nbytes; i++ {
			b.sendBits(8, bytes[i])
		}
		b.sendBits(nbits-uint(nbytes)*8, 0)
		return
	}
	i := 0
	for ; i < nbytes-1; i++ {
		b.sendBits(8, bytes[i])
	}
	b.sendBits(nbits-uint(nbytes-1)*8, bytes[i])
}
