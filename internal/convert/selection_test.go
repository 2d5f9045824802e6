/*
 * selection_test.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelection(Te *testing.T) {
	cases := []struct {
		sel   Selection
		total int
		want  []int
		str   string
	}{
		{Selection{0, 0, 1}, 5, []int{0, 1, 2, 3, 4}, "[0::1]"},
		{Selection{2, 9, 3}, 10, []int{2, 5, 8}, "[2:9:3]"},
		{Selection{1, 0, 2}, 6, []int{1, 3, 5}, "[1::2]"},
		{Selection{3, 4, 1}, 10, []int{3}, "[3:4:1]"},
		{Selection{0, 20, 4}, 10, []int{0, 4, 8}, "[0:20:4]"},
		{Selection{12, 0, 1}, 10, nil, "[12::1]"},
		{Selection{0, 0, 0}, 3, []int{0, 1, 2}, "[0::1]"},
	}
	for _, c := range cases {
		var got []int
		for i := 0; i < c.total && !c.sel.Done(i); i++ {
			if c.sel.Selected(i) {
				got = append(got, i)
			}
		}
		assert.Equal(Te, c.want, got, c.str)
		assert.Equal(Te, len(c.want), c.sel.Count(c.total), c.str)
		assert.Equal(Te, c.str, c.sel.String())
	}
}
