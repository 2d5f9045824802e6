/*
 * universe_test.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package chem

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallTopology(Te *testing.T) *Topology {
	Te.Helper()
	ats := []*Atom{
		{Name: "N", Id: 1, Molname: "GLY", Molname1: 'G', Molid: 1, Chain: 'A', Symbol: "N", Mass: 14.01},
		{Name: "CA", Id: 2, Molname: "GLY", Molname1: 'G', Molid: 1, Chain: 'A', Symbol: "C", Mass: 12.01},
		{Name: "OW", Id: 3, Molname: "SOL", Molid: 2, Chain: 'W', Symbol: "O", Mass: 16.00, Occupancy: 1},
	}
	top, err := NewTopology(ats)
	require.NoError(Te, err)
	return top
}

func TestClassifyBox(Te *testing.T) {
	assert.Equal(Te, InfiniteUniverse, ClassifyBox(nil))
	assert.Equal(Te, InfiniteUniverse, ClassifyBox(make([]float64, 9)))
	assert.Equal(Te, InfiniteUniverse, ClassifyBox([]float64{1, 2, 3}))
	assert.Equal(Te, OrthorhombicPeriodicUniverse, ClassifyBox([]float64{3, 0, 0, 0, 3, 0, 0, 0, 3}))
	assert.Equal(Te, OrthorhombicPeriodicUniverse, ClassifyBox([]float64{3, 1e-8, 0, 0, 3, 0, 0, 0, 3}))
	assert.Equal(Te, ParallelepipedicPeriodicUniverse, ClassifyBox([]float64{3, 0, 0, 1, 3, 0, 0, 0, 3}))
}

func TestUniverseBox(Te *testing.T) {
	top := smallTopology(Te)
	inf := NewUniverse(top, nil)
	assert.False(Te, inf.Periodic())
	assert.Equal(Te, 0, inf.BoxSizeLen())
	assert.Empty(Te, inf.BoxSize(make([]float32, 9), nil))
	assert.Equal(Te, 3, inf.Len())

	ortho := NewUniverse(top, []float64{3, 0, 0, 0, 3.5, 0, 0, 0, 4})
	assert.True(Te, ortho.Periodic())
	assert.Equal(Te, 3, ortho.BoxSizeLen())
	assert.Equal(Te, []float32{3, 3.5, 4}, ortho.BoxSize([]float32{3, 0, 0, 0, 3.5, 0, 0, 0, 4}, nil))

	tric := NewUniverse(top, []float64{3, 0, 0, 1, 3, 0, 1, 1, 3})
	assert.Equal(Te, ParallelepipedicPeriodicUniverse, tric.Kind)
	assert.Equal(Te, 9, tric.BoxSizeLen())
	box := []float32{3, 0, 0, 1, 3, 0, 1, 1, 3}
	out := make([]float32, 9)
	assert.Equal(Te, box, tric.BoxSize(box, out))
}

func TestDescription(Te *testing.T) {
	U := NewUniverse(smallTopology(Te), []float64{3, 0, 0, 0, 3.5, 0, 0, 0, 4})
	want := "c('OrthorhombicPeriodicUniverse',((3,3.5,4),),[m('A',[g('GLY',1,[a('N','N',0),a('CA','C',1)])]),m('W',[g('SOL',2,[a('OW','O',2)])])])"
	assert.Equal(Te, want, U.Description())

	inf := NewUniverse(&Topology{Atoms: []*Atom{{Name: "O'1", Molname: "HOH", Molid: 7, Chain: ' ', Symbol: "O"}}}, nil)
	assert.Equal(Te, "c('InfiniteUniverse',(),[m('',[g('HOH',7,[a('O_1','O',0)])])])", inf.Description())
}

func TestParseDescription(Te *testing.T) {
	boxes := [][]float64{
		nil,
		{3, 0, 0, 0, 3.5, 0, 0, 0, 4},
		{3.25, 0, 0, -1.5, 2.8, 0, 0.5, 0.75, 4.125},
	}
	for _, box := range boxes {
		U := NewUniverse(smallTopology(Te), box)
		U2, err := ParseDescription(U.Description())
		require.NoError(Te, err)
		assert.Equal(Te, U.Kind, U2.Kind)
		assert.Equal(Te, U.Box, U2.Box)
		if diff := cmp.Diff(U.Top.Atoms, U2.Top.Atoms, cmpopts.IgnoreFields(Atom{}, "Occupancy")); diff != "" {
			Te.Errorf("topology mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestParseDescriptionErrors(Te *testing.T) {
	bad := []string{
		"",
		"c('OrthorhombicPeriodicUniverse',(),[])",
		"c('InfiniteUniverse',(),[m('A',[g('GLY',1,[a('N','N',1)])])])",
		"c('InfiniteUniverse',(),[m('A',[g('GLY',x,[a('N','N',0)])])])",
		"c('InfiniteUniverse',(),[m('A',[g('GLY',1,[a('N','N',0)])])]",
	}
	for _, d := range bad {
		_, err := ParseDescription(d)
		assert.Error(Te, err, d)
	}
}
