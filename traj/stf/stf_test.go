/*
 * stf_test.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package stf

import (
	"bytes"
	"path/filepath"
	"testing"

	chem "github.com/rmera/xtc2nc"
	v3 "github.com/rmera/xtc2nc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrames(natoms, nframes int) []*v3.Matrix {
	frames := make([]*v3.Matrix, nframes)
	for f := range frames {
		frames[f] = v3.Zeros(natoms)
		for i := 0; i < natoms; i++ {
			for j := 0; j < 3; j++ {
				frames[f].Set(i, j, float64(f)+0.5*float64(i)-1.25*float64(j)+0.001*float64(i*j))
			}
		}
	}
	return frames
}

func TestSTFRoundTrip(Te *testing.T) {
	box := []float64{30, 0, 0, 0, 31.5, 0, 0, 0, 32.25}
	for _, name := range []string{"test.stf", "test.stz", "test.stl", "test.str"} {
		Te.Run(name, func(Te *testing.T) {
			fname := filepath.Join(Te.TempDir(), name)
			frames := testFrames(7, 4)
			w, err := NewWriter(fname, 7, map[string]string{"title": "a test", "prec": "3"})
			require.NoError(Te, err)
			for i, f := range frames {
				if i == 2 {
					require.NoError(Te, w.WNext(f))
					continue
				}
				require.NoError(Te, w.WNext(f, box))
			}
			require.NoError(Te, w.Close())

			r, m, err := New(fname)
			require.NoError(Te, err)
			defer r.Close()
			assert.Equal(Te, "a test", m["title"])
			assert.Equal(Te, "3", m["prec"])
			assert.Equal(Te, 7, r.Len())
			mat := v3.Zeros(7)
			for i, f := range frames {
				b := make([]float64, 9)
				require.NoError(Te, r.Next(mat, b))
				for k := 0; k < 7; k++ {
					for j := 0; j < 3; j++ {
						assert.InDelta(Te, f.At(k, j), mat.At(k, j), 0.0006)
					}
				}
				if i == 2 {
					assert.Equal(Te, make([]float64, 9), b)
				} else {
					assert.InDeltaSlice(Te, box, b, 0.006)
				}
			}
			err = r.Next(mat)
			require.Error(Te, err)
			assert.True(Te, chem.IsLastFrame(err))
			assert.False(Te, r.Readable())
		})
	}
}

func TestSTFWriteFrame(Te *testing.T) {
	var buf bytes.Buffer
	w, err := NewStreamWriter(&buf, "mem.stz", 2, nil)
	require.NoError(Te, err)
	box := [9]float32{2, 0, 0, 0, 2, 0, 0, 0, 2}
	require.NoError(Te, w.WriteFrame([]float32{0.1, 0.2, 0.3, 1.1, 1.2, 1.3}, box))
	require.NoError(Te, w.WriteFrame([]float32{0.1, 0.2, 0.3, 1.1, 1.2, 1.3}, [9]float32{}))
	require.Error(Te, w.WriteFrame([]float32{0.1}, box))
	require.NoError(Te, w.Close())
	require.NoError(Te, w.Close())

	r, m, err := NewReader(&buf, "mem.stz")
	require.NoError(Te, err)
	assert.Equal(Te, "2", m["prec"])
	mat := v3.Zeros(2)
	b := make([]float64, 9)
	require.NoError(Te, r.Next(mat, b))
	assert.InDelta(Te, 1.0, mat.At(0, 0), 1e-6)
	assert.InDelta(Te, 13.0, mat.At(1, 2), 1e-6)
	assert.InDeltaSlice(Te, []float64{20, 0, 0, 0, 20, 0, 0, 0, 20}, b, 1e-6)
	b = make([]float64, 9)
	require.NoError(Te, r.Next(nil, b))
	assert.Equal(Te, make([]float64, 9), b)
	assert.True(Te, chem.IsLastFrame(r.Next(mat)))
}

func TestSTFNextConc(Te *testing.T) {
	var buf bytes.Buffer
	frames := testFrames(3, 3)
	w, err := NewStreamWriter(&buf, "mem.stf", 3, nil)
	require.NoError(Te, err)
	for _, f := range frames {
		require.NoError(Te, w.WNext(f))
	}
	require.NoError(Te, w.Close())
	r, _, err := NewReader(&buf, "mem.stf")
	require.NoError(Te, err)
	defer r.Close()
	chans, err := r.NextConc([]*v3.Matrix{v3.Zeros(3), nil, v3.Zeros(3)})
	require.NoError(Te, err)
	require.Len(Te, chans, 3)
	assert.Nil(Te, chans[1])
	got := <-chans[2]
	assert.InDelta(Te, frames[2].At(2, 1), got.At(2, 1), 0.006)
}

func TestSTFErrors(Te *testing.T) {
	_, err := NewStreamWriter(&bytes.Buffer{}, "x.stf", 0, nil)
	require.Error(Te, err)
	_, _, err = New(filepath.Join(Te.TempDir(), "missing.stf"))
	require.Error(Te, err)

	var buf bytes.Buffer
	w, err := NewStreamWriter(&buf, "x.stz", 3, nil)
	require.NoError(Te, err)
	require.Error(Te, w.WNext(v3.Zeros(2)))
	require.Error(Te, w.WNext(nil))
	require.NoError(Te, w.WNext(v3.Zeros(3)))
	require.NoError(Te, w.Close())
	require.Error(Te, w.WNext(v3.Zeros(3)))

	//read with a wrong atom count in the header
	data := buf.Bytes()
	r, _, err := NewReader(bytes.NewReader(data), "x.stz")
	require.NoError(Te, err)
	r.natoms = 2
	err = r.Next(v3.Zeros(2))
	require.Error(Te, err)
	assert.False(Te, chem.IsLastFrame(err))
	te, ok := err.(chem.TrajError)
	require.True(Te, ok)
	assert.Equal(Te, "stf", te.Format())
	assert.False(Te, r.Readable())
}
