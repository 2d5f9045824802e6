/*
 * config_test.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func valid() *Config {
	c := Default()
	c.PDB = "conf.pdb"
	c.XTC = "traj.xtc"
	c.Output = "traj.nc"
	return c
}

func TestNew(Te *testing.T) {
	doc := `
pdb: conf.pdb
xtc: traj.xtc
output: out.stz
first: 10
last: 100
skip: 5
workers: 3
double: true
title: "a test"
metrics_file: /tmp/xtc2nc.prom
log_level: debug
`
	path := filepath.Join(Te.TempDir(), "xtc2nc.yaml")
	require.NoError(Te, os.WriteFile(path, []byte(doc), 0o644))
	c, err := New(path)
	require.NoError(Te, err)
	want := &Config{
		PDB:               "conf.pdb",
		XTC:               "traj.xtc",
		Output:            "out.stz",
		First:             10,
		Last:              100,
		Skip:              5,
		Workers:           3,
		Double:            true,
		Precision:         DefaultPrecision,
		Title:             "a test",
		MetricsFile:       "/tmp/xtc2nc.prom",
		LogLevel:          "debug",
		MaxMemoryFraction: DefaultMaxMemoryFraction,
	}
	if diff := cmp.Diff(want, c); diff != "" {
		Te.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	f, err := c.OutputFormat()
	require.NoError(Te, err)
	assert.Equal(Te, FormatSTF, f)
	assert.Equal(Te, 3, c.NWorkers())
}

func TestDecode(Te *testing.T) {
	c, err := Decode(strings.NewReader(""))
	require.NoError(Te, err)
	assert.Equal(Te, Default(), c)

	_, err = Decode(strings.NewReader("pbd: typo.pdb\n"))
	require.Error(Te, err)

	_, err = Read(filepath.Join(Te.TempDir(), "missing.yaml"))
	require.Error(Te, err)
}

func TestCheck(Te *testing.T) {
	require.NoError(Te, valid().Check())
	assert.Positive(Te, valid().NWorkers())

	cases := map[string]func(*Config){
		"no pdb":          func(c *Config) { c.PDB = "" },
		"no xtc":          func(c *Config) { c.XTC = "" },
		"no output":       func(c *Config) { c.Output = "" },
		"negative first":  func(c *Config) { c.First = -1 },
		"negative last":   func(c *Config) { c.Last = -4 },
		"last <= first":   func(c *Config) { c.First, c.Last = 10, 10 },
		"zero skip":       func(c *Config) { c.Skip = 0 },
		"workers":         func(c *Config) { c.Workers = -2 },
		"precision":       func(c *Config) { c.Precision = 0 },
		"memory fraction": func(c *Config) { c.MaxMemoryFraction = 1.5 },
		"zero fraction":   func(c *Config) { c.MaxMemoryFraction = 0 },
		"format":          func(c *Config) { c.Format = "trr" },
		"extension":       func(c *Config) { c.Output = "out.trr" },
		"log level":       func(c *Config) { c.LogLevel = "loud" },
	}
	for name, mod := range cases {
		c := valid()
		mod(c)
		assert.Error(Te, c.Check(), name)
	}
}

func TestOutputFormat(Te *testing.T) {
	cases := map[string]Format{
		"a.nc":     FormatNC,
		"a.NC":     FormatNC,
		"a.dcd":    FormatDCD,
		"a.stf":    FormatSTF,
		"a.stl":    FormatSTF,
		"a.str":    FormatSTF,
		"a.xtc":    FormatXTC,
		"dir/a.nc": FormatNC,
	}
	for out, want := range cases {
		c := valid()
		c.Output = out
		f, err := c.OutputFormat()
		require.NoError(Te, err, out)
		assert.Equal(Te, want, f, out)
	}
	c := valid()
	c.Output = "a.trj"
	c.Format = "DCD"
	f, err := c.OutputFormat()
	require.NoError(Te, err)
	assert.Equal(Te, FormatDCD, f)
}
