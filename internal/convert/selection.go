/*
 * selection.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package convert

import "fmt"

//Selection picks frames by index as the slice [First:Last:Skip]. Last = 0 means
//there is no upper bound.
type Selection struct {
	First int
	Last  int
	Skip  int
}

//Selected returns true if frame i is part of the selection.
func (S Selection) Selected(i int) bool {
	if i < S.First || S.Done(i) {
		return false
	}
	return (i-S.First)%S.skip() == 0
}

//Done returns true if no frame at index i or later is selected.
func (S Selection) Done(i int) bool {
	return S.Last > 0 && i >= S.Last
}

//Count returns the number of selected frames in a trajectory of total frames.
func (S Selection) Count(total int) int {
	end := total
	if S.Last > 0 && S.Last < end {
		end = S.Last
	}
	if end <= S.First {
		return 0
	}
	return (end-S.First-1)/S.skip() + 1
}

func (S Selection) skip() int {
	if S.Skip < 1 {
		return 1
	}
	return S.Skip
}

func (S Selection) String() string {
	if S.Last > 0 {
		return fmt.Sprintf("[%d:%d:%d]", S.First, S.Last, S.skip())
	}
	return fmt.Sprintf("[%d::%d]", S.First, S.skip())
}
