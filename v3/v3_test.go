/*
 * v3_test.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package v3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMatrix(Te *testing.T) {
	A, err := NewMatrix([]float64{1, 2, 3, 4, 5, 6})
	require.NoError(Te, err)
	assert.Equal(Te, 2, A.NVecs())
	View := A.VecView(1)
	View.Set(0, 0, 100)
	assert.Equal(Te, 100.0, A.At(1, 0))

	_, err = NewMatrix([]float64{1, 2, 3, 4})
	assert.Error(Te, err)
}

func TestFloat32RoundTrip(Te *testing.T) {
	data := []float32{0.1, 0.2, 0.3, -1.5, 2.25, 3}
	A := Zeros(2)
	A.SetFloat32(data, 10)
	assert.InDelta(Te, -15.0, A.At(1, 0), 1e-5)
	assert.InDelta(Te, 2.0, A.At(0, 1), 1e-5)
	out := A.Float32(nil, 0.1)
	require.Len(Te, out, 6)
	for i := range data {
		assert.InDelta(Te, data[i], out[i], 1e-6)
	}
}

func TestSetFloat32Short(Te *testing.T) {
	A := Zeros(3)
	assert.Panics(Te, func() { A.SetFloat32(make([]float32, 6), 1) })
}
