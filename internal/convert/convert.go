/*
 * convert.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

//Package convert turns a GROMACS XTC trajectory, plus the PDB file that defines
//the molecular system, into an MMTK trajectory in netCDF format, or into one of
//the alternative formats.
//
//Frames are read sequentially. The selected ones are decompressed by a pool of
//goroutines and handed to the output strictly in their original order.
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pbnjay/memory"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	chem "github.com/rmera/xtc2nc"
	"github.com/rmera/xtc2nc/internal/config"
	"github.com/rmera/xtc2nc/internal/log"
	"github.com/rmera/xtc2nc/internal/version"
	"github.com/rmera/xtc2nc/traj/xtc"
)

//DefaultProgressInterval is the minimum time between two progress messages.
const DefaultProgressInterval = 2 * time.Second

//ErrNoFrames is returned when the selection doesn't contain any frame of the trajectory.
var ErrNoFrames = errors.New("no frames selected")

//Converter performs the conversion described by a configuration.
type Converter struct {
	cfg    *config.Config
	format config.Format
	log    zerolog.Logger

	//ProgressInterval is the minimum time between progress messages.
	ProgressInterval time.Duration

	//TotalMemory returns the memory of the system, in bytes. 0 means unknown.
	TotalMemory func() uint64
}

//New returns a converter for cfg, which is checked first.
func New(cfg *config.Config) (*Converter, error) {
	if err := cfg.Check(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	format, err := cfg.OutputFormat()
	if err != nil {
		return nil, err
	}
	return &Converter{
		cfg:              cfg,
		format:           format,
		log:              log.WithComponent("convert"),
		ProgressInterval: DefaultProgressInterval,
		TotalMemory:      memory.TotalMemory,
	}, nil
}

//job is a selected frame on its way from the reader to the sink.
type job struct {
	index int
	raw   *xtc.RawFrame
	done  chan *xtc.Frame
}

func newJob(index int, raw *xtc.RawFrame) *job {
	return &job{index: index, raw: raw, done: make(chan *xtc.Frame, 1)}
}

//Run performs the conversion. If it fails, or ctx is cancelled, no output
//is left behind, and an existing output is not modified.
func (C *Converter) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	cfg := C.cfg
	R := &Report{
		Output:    cfg.Output,
		Format:    C.format,
		Selection: Selection{First: cfg.First, Last: cfg.Last, Skip: cfg.Skip},
	}
	err := C.run(ctx, R)
	R.Duration = time.Since(start)
	if cfg.MetricsFile != "" {
		if merr := writeMetrics(cfg.MetricsFile, R, err); merr != nil {
			C.log.Warn().Err(merr).Str("metrics_file", cfg.MetricsFile).Msg("can't write metrics")
		}
	}
	if err != nil {
		return nil, err
	}
	C.log.Info().Object("report", R).Msg("conversion finished")
	return R, nil
}

func (C *Converter) run(ctx context.Context, R *Report) error {
	cfg := C.cfg
	if !cfg.Force {
		if _, err := os.Stat(cfg.Output); err == nil {
			return errors.Errorf("output %s already exists, use force to overwrite it", cfg.Output)
		}
	}
	top, _, cell, err := chem.PDBFileRead(cfg.PDB)
	if err != nil {
		return errors.Wrap(err, "can't read the structure")
	}
	if _, err := top.Masses(); err != nil {
		C.log.Warn().Err(err).Msg("structure has atoms of unknown element")
	}
	traj, err := xtc.New(cfg.XTC)
	if err != nil {
		return errors.Wrap(err, "can't open the trajectory")
	}
	defer traj.Close()
	R.Atoms = top.Len()
	if traj.Len() != top.Len() {
		return errors.Errorf("%s has %d atoms, but %s has %d", cfg.PDB, top.Len(), cfg.XTC, traj.Len())
	}
	var limit int64
	var expected int
	if C.format == config.FormatNC {
		limit = int64(cfg.MaxMemoryFraction * float64(C.TotalMemory()))
		info, err := xtc.Stat(cfg.XTC)
		if err != nil {
			return errors.Wrap(err, "can't scan the trajectory")
		}
		expected = R.Selection.Count(info.Frames)
	}

	//The universe is defined by the first selected frame, so it is read before
	//anything else starts.
	index, first, err := C.firstFrame(traj, R.Selection)
	if err != nil {
		return err
	}
	R.FramesScanned = index + 1
	box := make([]float64, 9)
	for i, v := range first.Box {
		box[i] = float64(v)
	}
	var fixedBox *[9]float32
	if chem.ClassifyBox(box) == chem.InfiniteUniverse && cell != nil {
		fixedBox = new([9]float32)
		for i, v := range cell {
			box[i] = chem.A2Nm * v
			fixedBox[i] = float32(box[i])
		}
		R.BoxFromPDB = true
		C.log.Info().Str("pdb", cfg.PDB).Msg("trajectory has no box, using the CRYST1 cell of the structure")
	}
	U := chem.NewUniverse(top, box)
	R.Universe = U.Kind

	title := cfg.Title
	if title == "" {
		title = "Converted from " + filepath.Base(cfg.XTC)
	}
	s, err := newSink(sinkParams{
		output:      cfg.Output,
		format:      C.format,
		universe:    U,
		cfg:         cfg,
		memoryLimit: limit,
		history:     version.Package.History(filepath.Base(cfg.PDB), filepath.Base(cfg.XTC)),
		title:       title,
	})
	if err != nil {
		return err
	}
	if ns, ok := s.(*ncSink); ok && limit > 0 {
		if need := ns.w.EstimatedBytes(expected); need > limit {
			s.abort()
			return errors.Errorf("%d selected frames need about %d MiB, more than the %d MiB allowed: select fewer frames, or use a streaming format (dcd, stf, xtc)",
				expected, need>>20, limit>>20)
		}
	}
	C.log.Debug().Str("universe", string(U.Kind)).Int("atoms", U.Len()).Stringer("selection", R.Selection).
		Int("workers", cfg.NWorkers()).Msg("starting conversion")
	if err := C.pipeline(ctx, traj, newJob(index, first), s, fixedBox, R); err != nil {
		s.abort()
		return err
	}
	if err := s.commit(); err != nil {
		return errors.Wrapf(err, "can't write %s", cfg.Output)
	}
	return nil
}

//firstFrame skips the trajectory until the first selected frame, and reads it.
func (C *Converter) firstFrame(traj *xtc.XTCObj, sel Selection) (int, *xtc.RawFrame, error) {
	for i := 0; !sel.Done(i); i++ {
		if !sel.Selected(i) {
			if err := traj.SkipFrame(); err != nil {
				if chem.IsLastFrame(err) {
					break
				}
				return i, nil, errors.Wrapf(err, "frame %d", i)
			}
			continue
		}
		raw, err := traj.ReadRaw()
		if err != nil {
			if chem.IsLastFrame(err) {
				break
			}
			return i, nil, errors.Wrapf(err, "frame %d", i)
		}
		return i, raw, nil
	}
	return 0, nil, errors.Wrapf(ErrNoFrames, "%s has %d frames, selection %s", C.cfg.XTC, traj.FramesRead(), sel)
}

//pipeline reads the frames after first, decompresses the selected ones concurrently,
//and writes them, in order, to s.
func (C *Converter) pipeline(ctx context.Context, traj *xtc.XTCObj, first *job, s sink, fixedBox *[9]float32, R *Report) error {
	workers := C.cfg.NWorkers()
	sel := R.Selection
	natoms := traj.Len()
	pool := sync.Pool{New: func() any { return xtc.NewFrame(natoms) }}
	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan *job, workers)
	order := make(chan *job, workers)
	scanned := R.FramesScanned

	send := func(j *job) error {
		select {
		case jobs <- j:
		case <-gctx.Done():
			return gctx.Err()
		}
		select {
		case order <- j:
		case <-gctx.Done():
			return gctx.Err()
		}
		return nil
	}

	//reader
	g.Go(func() error {
		defer close(order)
		defer close(jobs)
		if err := send(first); err != nil {
			return err
		}
		for i := first.index + 1; !sel.Done(i); i++ {
			if err := gctx.Err(); err != nil {
				return err
			}
			if !sel.Selected(i) {
				err := traj.SkipFrame()
				if chem.IsLastFrame(err) {
					return nil
				}
				if err != nil {
					return errors.Wrapf(err, "frame %d", i)
				}
				scanned++
				continue
			}
			raw, err := traj.ReadRaw()
			if chem.IsLastFrame(err) {
				return nil
			}
			if err != nil {
				return errors.Wrapf(err, "frame %d", i)
			}
			scanned++
			if err := send(newJob(i, raw)); err != nil {
				return err
			}
		}
		return nil
	})

	//decoders
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for j := range jobs {
				if gctx.Err() != nil {
					continue //drain
				}
				f := pool.Get().(*xtc.Frame)
				if err := j.raw.Decode(f); err != nil {
					pool.Put(f)
					return errors.Wrapf(err, "frame %d", j.index)
				}
				j.done <- f
			}
			return nil
		})
	}

	//sink
	progress := rate.Sometimes{Interval: C.ProgressInterval}
	written := 0
	g.Go(func() error {
		for j := range order {
			var f *xtc.Frame
			select {
			case f = <-j.done:
			case <-gctx.Done():
				return gctx.Err()
			}
			if fixedBox != nil {
				f.Box = *fixedBox
			}
			err := s.write(f)
			if err == nil {
				if written == 0 {
					R.FirstStep, R.FirstTime = f.Step, f.Time
				}
				R.LastStep, R.LastTime = f.Step, f.Time
				written++
			}
			pool.Put(f)
			if err != nil {
				return errors.Wrapf(err, "can't write frame %d", j.index)
			}
			progress.Do(func() {
				C.log.Info().Int("frame", j.index).Int("written", written).Float32("time_ps", R.LastTime).Msg("converting")
			})
		}
		return nil
	})

	err := g.Wait()
	R.FramesScanned = scanned
	R.FramesWritten = written
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "conversion interrupted")
		}
		return err
	}
	return nil
}

//String returns a one-line summary of the report.
func (R *Report) String() string {
	return fmt.Sprintf("%d of %d frames (%d atoms, %s) written to %s in %s",
		R.FramesWritten, R.FramesScanned, R.Atoms, R.Universe, R.Output, R.Duration.Round(time.Millisecond))
}
