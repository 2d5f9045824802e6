/*
 * main_test.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmera/xtc2nc/traj/mmtk"
	"github.com/rmera/xtc2nc/traj/xtc"
)

func inputs(Te *testing.T) (dir, pdb, traj string) {
	Te.Helper()
	const natoms, nframes = 12, 5
	dir = Te.TempDir()
	var b strings.Builder
	for i := 0; i < natoms; i++ {
		fmt.Fprintf(&b, "%-6s%5d %-4s %3s %c%4d    %8.3f%8.3f%8.3f%6.2f%6.2f          %2s\n",
			"ATOM", i+1, "CA", "ALA", 'A', i+1, 3.8*float64(i), 0.0, 0.0, 1.0, 0.0, "C")
	}
	pdb = filepath.Join(dir, "ca.pdb")
	require.NoError(Te, os.WriteFile(pdb, []byte(b.String()), 0o644))
	traj = filepath.Join(dir, "ca.xtc")
	w, err := xtc.NewWriter(traj, natoms, 1000)
	require.NoError(Te, err)
	for f := 0; f < nframes; f++ {
		c := make([]float32, 3*natoms)
		for i := 0; i < natoms; i++ {
			c[3*i] = 0.38*float32(i) + 0.01*float32(f)
		}
		require.NoError(Te, w.WriteFrame(&xtc.Frame{Step: f, Time: float32(f), Coords: c}))
	}
	require.NoError(Te, w.Close())
	return dir, pdb, traj
}

func execute(args ...string) (string, error) {
	out, _, err := executeLog(args...)
	return out, err
}

//executeLog is like execute, but also returns what was written to stderr.
func executeLog(args ...string) (string, string, error) {
	root := newRootCmd()
	var out, errout bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errout)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errout.String(), err
}

func TestConvertCommand(Te *testing.T) {
	dir, pdb, traj := inputs(Te)
	output := filepath.Join(dir, "ca.nc")
	out, err := execute("--skip", "2", "--title", "alpha carbons", "--workers", "2", pdb, traj, output)
	require.NoError(Te, err)
	assert.Contains(Te, out, "3 of 5 frames")

	r, err := mmtk.Open(output)
	require.NoError(Te, err)
	assert.Equal(Te, "alpha carbons", r.Title())
	assert.Equal(Te, 3, r.Frames())
	assert.Equal(Te, 4, r.Step(2))
	r.Close()

	//the output exists now
	_, err = execute(pdb, traj, output)
	require.Error(Te, err)
	_, err = execute("--force", "--last", "2", pdb, traj, output)
	require.NoError(Te, err)

	out, err = execute("info", output)
	require.NoError(Te, err)
	assert.Contains(Te, out, "universe:  InfiniteUniverse")
	assert.Contains(Te, out, "frames:    2")
}

func TestConfigFile(Te *testing.T) {
	dir, pdb, traj := inputs(Te)
	output := filepath.Join(dir, "ca.dat")
	cfgfile := filepath.Join(dir, "xtc2nc.yaml")
	doc := fmt.Sprintf("pdb: %s\nxtc: %s\noutput: %s\nformat: xtc\nfirst: 1\nskip: 3\n", pdb, traj, output)
	require.NoError(Te, os.WriteFile(cfgfile, []byte(doc), 0o644))
	//the flag overrides the file
	out, err := execute("-c", cfgfile, "--skip", "1")
	require.NoError(Te, err)
	assert.Contains(Te, out, "4 of 5 frames")
	info, err := xtc.Stat(output)
	require.NoError(Te, err)
	assert.Equal(Te, 4, info.Frames)
	assert.Equal(Te, 1, info.FirstStep)
}

func TestLogLevelFlag(Te *testing.T) {
	dir, pdb, traj := inputs(Te)
	output := filepath.Join(dir, "ca.stz")
	_, logs, err := executeLog("--log-level", "error", pdb, traj, output)
	require.NoError(Te, err)
	assert.NotContains(Te, logs, "conversion finished")

	//each run applies its own level
	_, logs, err = executeLog("--force", "--log-level", "debug", pdb, traj, output)
	require.NoError(Te, err)
	assert.Contains(Te, logs, "conversion finished")
}

func TestInfoAndVersion(Te *testing.T) {
	_, _, traj := inputs(Te)
	out, err := execute("info", traj)
	require.NoError(Te, err)
	assert.Contains(Te, out, "atoms:     12")
	assert.Contains(Te, out, "frames:    5")
	assert.Contains(Te, out, "steps:     0 - 4")

	_, err = execute("info", "structure.pdb")
	require.Error(Te, err)

	out, err = execute("version")
	require.NoError(Te, err)
	assert.Contains(Te, out, "GromacsTrajectoryConverter")
	assert.Contains(Te, out, "0.1")
	assert.Contains(Te, out, "BSD")
}

func TestBadArguments(Te *testing.T) {
	_, err := execute("only-one.pdb")
	require.Error(Te, err)
	_, err = execute()
	require.Error(Te, err) //no paths at all
	dir, pdb, traj := inputs(Te)
	_, err = execute("--skip", "0", pdb, traj, filepath.Join(dir, "x.nc"))
	require.Error(Te, err)
	_, err = execute(pdb, traj, filepath.Join(dir, "x.unknown"))
	require.Error(Te, err)
}
