/*
 * main.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

//xtc2nc converts GROMACS XTC trajectories, plus a PDB file that defines the
//molecular system, into MMTK trajectories in netCDF format.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/rmera/xtc2nc/internal/config"
	"github.com/rmera/xtc2nc/internal/convert"
	"github.com/rmera/xtc2nc/internal/log"
	"github.com/rmera/xtc2nc/internal/version"
	"github.com/rmera/xtc2nc/traj/mmtk"
	"github.com/rmera/xtc2nc/traj/xtc"
)

//options holds the command line flags. Only the flags that were set override
//the configuration file.
type options struct {
	configFile        string
	first             int
	last              int
	skip              int
	workers           int
	double            bool
	precision         float32
	title             string
	comment           string
	format            string
	force             bool
	metricsFile       string
	logLevel          string
	maxMemoryFraction float64
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "xtc2nc [flags] <structure.pdb> <trajectory.xtc> <output>",
		Short: version.Package.Description,
		Long: version.Package.LongDescription + `

The output format is taken from the extension of the output file: .nc (MMTK),
.dcd (CHARMM/NAMD), .stf/.stz/.stl/.str (goChem STF) or .xtc, unless --format is given.
Paths can also be given in the configuration file.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 3 {
				return errors.Errorf("expected a structure, a trajectory and an output file, got %d arguments", len(args))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, opts, args)
		},
	}
	f := root.Flags()
	f.StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file")
	f.IntVar(&opts.first, "first", 0, "first frame to convert (0-based)")
	f.IntVar(&opts.last, "last", 0, "convert frames before this one (0 means to the end)")
	f.IntVar(&opts.skip, "skip", 1, "convert every skip-th frame")
	f.IntVar(&opts.workers, "workers", 0, "goroutines decompressing frames (0 means one per CPU)")
	f.BoolVar(&opts.double, "double", false, "store nc data in double precision")
	f.Float32Var(&opts.precision, "precision", config.DefaultPrecision, "precision of xtc output")
	f.StringVar(&opts.title, "title", "", "title of the output trajectory")
	f.StringVar(&opts.comment, "comment", "", "comment stored in the output trajectory")
	f.StringVar(&opts.format, "format", "", "output format: nc, dcd, stf or xtc")
	f.BoolVar(&opts.force, "force", false, "overwrite an existing output")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus textfile metrics here")
	f.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.Float64Var(&opts.maxMemoryFraction, "max-memory-fraction", config.DefaultMaxMemoryFraction,
		"largest fraction of the system memory used to hold nc frames")

	root.AddCommand(newInfoCmd(), newVersionCmd())
	return root
}

//configFor builds the configuration from the file, the arguments and the flags, in
//increasing order of priority.
func configFor(cmd *cobra.Command, opts *options, args []string) (*config.Config, error) {
	cfg := config.Default()
	if opts.configFile != "" {
		var err error
		if cfg, err = config.Read(opts.configFile); err != nil {
			return nil, err
		}
	}
	if len(args) == 3 {
		cfg.PDB, cfg.XTC, cfg.Output = args[0], args[1], args[2]
	}
	f := cmd.Flags()
	set := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
		}
	}
	set("first", func() { cfg.First = opts.first })
	set("last", func() { cfg.Last = opts.last })
	set("skip", func() { cfg.Skip = opts.skip })
	set("workers", func() { cfg.Workers = opts.workers })
	set("double", func() { cfg.Double = opts.double })
	set("precision", func() { cfg.Precision = opts.precision })
	set("title", func() { cfg.Title = opts.title })
	set("comment", func() { cfg.Comment = opts.comment })
	set("format", func() { cfg.Format = config.Format(opts.format) })
	set("force", func() { cfg.Force = opts.force })
	set("metrics-file", func() { cfg.MetricsFile = opts.metricsFile })
	set("log-level", func() { cfg.LogLevel = opts.logLevel })
	set("max-memory-fraction", func() { cfg.MaxMemoryFraction = opts.maxMemoryFraction })
	return cfg, nil
}

func runConvert(cmd *cobra.Command, opts *options, args []string) error {
	cfg, err := configFor(cmd, opts, args)
	if err != nil {
		return err
	}
	log.Configure(log.Config{Level: cfg.LogLevel, Output: cmd.ErrOrStderr(), Console: true})
	C, err := convert.New(cfg)
	if err != nil {
		return err
	}
	rep, err := C.Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), rep.String())
	return nil
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file.xtc|file.nc>",
		Short: "Summarize an XTC or MMTK trajectory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			name := args[0]
			switch strings.ToLower(filepath.Ext(name)) {
			case ".xtc":
				info, err := xtc.Stat(name)
				if err != nil {
					return errors.Wrap(err, "can't read trajectory")
				}
				fmt.Fprintf(out, "file:      %s\nformat:    xtc\natoms:     %d\nframes:    %d\n", name, info.Natoms, info.Frames)
				fmt.Fprintf(out, "steps:     %d - %d\ntime:      %g - %g ps\n", info.FirstStep, info.LastStep, info.FirstTime, info.LastTime)
				fmt.Fprintf(out, "box:       %v nm\nprecision: %g\n", info.Box, info.Precision)
			case ".nc":
				r, err := mmtk.Open(name)
				if err != nil {
					return errors.Wrap(err, "can't read trajectory")
				}
				defer r.Close()
				fmt.Fprintf(out, "file:      %s\nformat:    nc\ntitle:     %s\n", name, r.Title())
				fmt.Fprintf(out, "universe:  %s\natoms:     %d\nframes:    %d\n", r.Universe().Kind, r.Len(), r.Frames())
				if n := r.Frames(); n > 0 {
					fmt.Fprintf(out, "steps:     %d - %d\ntime:      %g - %g ps\n", r.Step(0), r.Step(n-1), r.Time(0), r.Time(n-1))
				}
			default:
				return errors.Errorf("don't know how to read %s, expected .xtc or .nc", name)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the package metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return version.Package.Write(cmd.OutOrStdout())
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "xtc2nc:", err)
		os.Exit(1)
	}
}
