/*
 * config.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

//Package config holds the parameters of a conversion, which can be read from a
//YAML file and overridden from the command line.
package config

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/rmera/xtc2nc/internal/log"
)

//Format is the format of the converted trajectory.
type Format string

//Accepted output formats. nc is the MMTK trajectory in netCDF format, the others
//are alternatives that are written through the same pipeline.
const (
	FormatNC  Format = "nc"
	FormatDCD Format = "dcd"
	FormatSTF Format = "stf"
	FormatXTC Format = "xtc"
)

//Default values.
const (
	DefaultPrecision         = 1000
	DefaultMaxMemoryFraction = 0.5
)

//Config contains the parameters of a conversion. It can be obtained through New,
//or built by hand, in which case Check must be called before using it.
type Config struct {
	//PDB is the structure file that defines the molecular system.
	PDB string `yaml:"pdb"`

	//XTC is the GROMACS trajectory.
	XTC string `yaml:"xtc"`

	//Output is the converted trajectory.
	Output string `yaml:"output"`

	//Format of the output. If empty, it is taken from the extension of Output.
	Format Format `yaml:"format"`

	//First, Last and Skip select frames as the slice [First:Last:Skip] of the
	//frame indexes. Last = 0 means up to the last frame.
	First int `yaml:"first"`
	Last  int `yaml:"last"`
	Skip  int `yaml:"skip"`

	//Workers is the number of goroutines that decompress frames. 0 means one per CPU.
	Workers int `yaml:"workers"`

	//Double makes the nc output use double precision variables.
	Double bool `yaml:"double"`

	//Precision of the xtc output.
	Precision float32 `yaml:"precision"`

	Title   string `yaml:"title"`
	Comment string `yaml:"comment"`

	//Force allows overwriting an existing output.
	Force bool `yaml:"force"`

	//MetricsFile, if set, gets the Prometheus metrics of the conversion in the
	//textfile collector format.
	MetricsFile string `yaml:"metrics_file"`

	LogLevel string `yaml:"log_level"`

	//MaxMemoryFraction is the largest fraction of the system memory that the nc output
	//can use to hold frames.
	MaxMemoryFraction float64 `yaml:"max_memory_fraction"`
}

//Default returns a Config with the default values and no files.
func Default() *Config {
	return &Config{
		Skip:              1,
		Precision:         DefaultPrecision,
		MaxMemoryFraction: DefaultMaxMemoryFraction,
	}
}

//Read decodes the YAML file path over the defaults. It doesn't check the result.
func Read(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "can't open configuration")
	}
	defer f.Close()
	c, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "configuration %s", path)
	}
	return c, nil
}

//Decode decodes a YAML document from r over the defaults. Unknown keys are an error.
func Decode(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "can't decode configuration")
	}
	return c, nil
}

//New reads the configuration file path and checks the result.
func New(path string) (*Config, error) {
	c, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Check(); err != nil {
		return nil, errors.Wrapf(err, "configuration %s", path)
	}
	return c, nil
}

//Check returns an error if a field doesn't meet the requirements.
func (c *Config) Check() error {
	switch {
	case c.PDB == "":
		return errors.New("no PDB file given")
	case c.XTC == "":
		return errors.New("no XTC file given")
	case c.Output == "":
		return errors.New("no output file given")
	case c.First < 0:
		return errors.Errorf("first frame must be greater or equal to 0, not %d", c.First)
	case c.Last < 0:
		return errors.Errorf("last frame can't be negative (%d)", c.Last)
	case c.Last != 0 && c.Last <= c.First:
		return errors.Errorf("last frame (%d) must be greater than the first (%d)", c.Last, c.First)
	case c.Skip < 1:
		return errors.Errorf("skip must be at least 1, not %d", c.Skip)
	case c.Workers < 0:
		return errors.Errorf("the number of workers can't be negative (%d)", c.Workers)
	case c.Precision <= 0:
		return errors.Errorf("precision must be positive, not %g", c.Precision)
	case c.MaxMemoryFraction <= 0 || c.MaxMemoryFraction > 1:
		return errors.Errorf("max_memory_fraction must be in (0, 1], not %g", c.MaxMemoryFraction)
	}
	if c.LogLevel != "" {
		if err := log.ParseLevel(c.LogLevel); err != nil {
			return errors.Wrap(err, "log_level")
		}
	}
	_, err := c.OutputFormat()
	return err
}

//OutputFormat returns the explicit format or, if none was given, the one implied
//by the extension of the output file.
func (c *Config) OutputFormat() (Format, error) {
	if c.Format != "" {
		switch f := Format(strings.ToLower(string(c.Format))); f {
		case FormatNC, FormatDCD, FormatSTF, FormatXTC:
			return f, nil
		}
		return "", errors.Errorf("unknown output format %q", c.Format)
	}
	switch ext := strings.ToLower(filepath.Ext(c.Output)); ext {
	case ".nc":
		return FormatNC, nil
	case ".dcd":
		return FormatDCD, nil
	case ".stf", ".stz", ".stl", ".str":
		return FormatSTF, nil
	case ".xtc":
		return FormatXTC, nil
	default:
		return "", errors.Errorf("can't tell the output format from the extension %q, use format", ext)
	}
}

//NWorkers returns the number of decompressing goroutines to use.
func (c *Config) NWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}
