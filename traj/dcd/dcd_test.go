/*
 * dcd_test.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package dcd

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	chem "github.com/rmera/xtc2nc"
	v3 "github.com/rmera/xtc2nc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(natoms, frame int) *v3.Matrix {
	m := v3.Zeros(natoms)
	for i := 0; i < natoms; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, float64(frame)+float64(3*i+j)*0.25)
		}
	}
	return m
}

//Tests the writing capabilities.
func TestDCDWrite(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "test.dcd")
	box := []float64{30, 0, 0, 0, 40, 0, 0, 0, 50}
	traj, err := NewWriter(name, 12, box)
	require.NoError(Te, err)
	for i := 0; i < 3; i++ {
		require.NoError(Te, traj.WNext(testFrame(12, i)))
	}
	assert.Equal(Te, 3, traj.Frames())
	require.NoError(Te, traj.Close())

	data, err := os.ReadFile(name)
	require.NoError(Te, err)
	assert.Equal(Te, uint32(84), binary.LittleEndian.Uint32(data))
	assert.Equal(Te, "CORD", string(data[4:8]))
	assert.Equal(Te, uint32(3), binary.LittleEndian.Uint32(data[8:]))
	assert.Equal(Te, uint32(1), binary.LittleEndian.Uint32(data[8+40:]), "unit cell flag")
	assert.Equal(Te, uint32(24), binary.LittleEndian.Uint32(data[8+76:]), "charmm version")
	//header (92) + title (4+4+160+4) + natoms (12), then per frame the cell (56) and 3 blocks.
	assert.Equal(Te, 92+172+12+3*(56+3*(8+4*12)), len(data))
}

//TestDCD reads back the frames written by the writer, one at a time.
func TestDCD(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "cell.dcd")
	box := chem.CellToBox(30, 40, 50, 80, 85, 95)
	w, err := NewWriter(name, 5, box)
	require.NoError(Te, err)
	for i := 0; i < 4; i++ {
		require.NoError(Te, w.WNext(testFrame(5, i)))
	}
	require.NoError(Te, w.Close())

	traj, err := New(name)
	require.NoError(Te, err)
	defer traj.Close()
	assert.Equal(Te, 5, traj.Len())
	assert.Equal(Te, 4, traj.Frames())
	assert.Contains(Te, traj.Title(), "CREATED BY XTC2NC")
	mat := v3.Zeros(traj.Len())
	readbox := make([]float64, 9)
	i := 0
	for ; ; i++ {
		err := traj.Next(mat, readbox)
		if err != nil {
			require.True(Te, chem.IsLastFrame(err), "unexpected error: %v", err)
			break
		}
		want := testFrame(5, i)
		assert.InDelta(Te, want.At(4, 2), mat.At(4, 2), 1e-5)
		assert.InDeltaSlice(Te, box, readbox, 1e-4)
	}
	assert.Equal(Te, 4, i)
}

func TestDCDWriteFrame(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "nm.dcd")
	w, err := NewWriter(name, 4, nil)
	require.NoError(Te, err)
	coords := []float32{0.1, 0.2, 0.3, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	require.NoError(Te, w.WriteFrame(coords, [9]float32{}))
	assert.Error(Te, w.WriteFrame(coords[:9], [9]float32{}))
	require.NoError(Te, w.Close())
	assert.Error(Te, w.WNext(v3.Zeros(4)))

	traj, err := New(name)
	require.NoError(Te, err)
	defer traj.Close()
	mat := v3.Zeros(4)
	readbox := make([]float64, 9)
	require.NoError(Te, traj.Next(mat, readbox))
	assert.InDelta(Te, 1.0, mat.At(0, 0), 1e-5)
	assert.InDelta(Te, 90.0, mat.At(3, 2), 1e-4)
	assert.Equal(Te, make([]float64, 9), readbox)
	err = traj.Next(nil)
	assert.True(Te, chem.IsLastFrame(err))
}

func TestDCDErrors(Te *testing.T) {
	dir := Te.TempDir()
	_, err := NewWriter(filepath.Join(dir, "zero.dcd"), 0, nil)
	assert.Error(Te, err)
	bad := filepath.Join(dir, "bad.dcd")
	require.NoError(Te, os.WriteFile(bad, []byte("definitely not a dcd file, just some text"), 0o644))
	_, err = New(bad)
	assert.Error(Te, err)

	name := filepath.Join(dir, "cut.dcd")
	w, err := NewWriter(name, 10, nil)
	require.NoError(Te, err)
	require.NoError(Te, w.WNext(testFrame(10, 0)))
	require.NoError(Te, w.WNext(testFrame(10, 1)))
	require.NoError(Te, w.Close())
	data, err := os.ReadFile(name)
	require.NoError(Te, err)
	require.NoError(Te, os.WriteFile(name, data[:len(data)-7], 0o644))
	traj, err := New(name)
	require.NoError(Te, err)
	defer traj.Close()
	require.NoError(Te, traj.Next(nil))
	err = traj.Next(nil)
	require.Error(Te, err)
	assert.False(Te, chem.IsLastFrame(err))
}
