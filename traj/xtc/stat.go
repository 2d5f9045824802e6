/*
 * stat.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package xtc

//Info summarizes an XTC file.
type Info struct {
	Natoms    int
	Frames    int
	FirstStep int
	LastStep  int
	FirstTime float32    //ps
	LastTime  float32    //ps
	Box       [9]float32 //box of the first frame, nm.
	Precision float32    //precision of the first frame, 0 if uncompressed.
}

//Stat scans the headers of all frames in filename, without decompressing
//any coordinates.
func Stat(filename string) (*Info, error) {
	traj, err := New(filename)
	if err != nil {
		return nil, errDecorate(err, "Stat")
	}
	defer traj.Close()
	info := &Info{Natoms: traj.Len()}
	for {
		raw, err := traj.readFrame(false, "Stat")
		if err != nil {
			if _, ok := err.(*lastFrameError); ok {
				break
			}
			return nil, err
		}
		if info.Frames == 0 {
			info.FirstStep = raw.Step
			info.FirstTime = raw.Time
			info.Box = raw.Box
			info.Precision = raw.Precision
		}
		info.LastStep = raw.Step
		info.LastTime = raw.Time
		info.Frames++
	}
	return info, nil
}
