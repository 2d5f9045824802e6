/*
 * sink.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package convert

import (
	"github.com/google/renameio/v2"
	"github.com/pkg/errors"

	chem "github.com/rmera/xtc2nc"
	"github.com/rmera/xtc2nc/internal/config"
	"github.com/rmera/xtc2nc/traj/dcd"
	"github.com/rmera/xtc2nc/traj/mmtk"
	"github.com/rmera/xtc2nc/traj/stf"
	"github.com/rmera/xtc2nc/traj/xtc"
)

//sink receives the selected frames, in order, and produces the output file.
//Nothing is visible at the output path until commit succeeds.
type sink interface {
	write(f *xtc.Frame) error
	commit() error
	abort()
}

type sinkParams struct {
	output      string
	format      config.Format
	universe    *chem.Universe
	cfg         *config.Config
	memoryLimit int64
	history     string
	title       string
}

func newSink(p sinkParams) (sink, error) {
	pf, err := renameio.NewPendingFile(p.output, renameio.WithPermissions(0o644))
	if err != nil {
		return nil, errors.Wrap(err, "can't create pending output file")
	}
	pend := pending{pf: pf}
	natoms := p.universe.Len()
	var s sink
	switch p.format {
	case config.FormatNC:
		var w *mmtk.MMTKWObj
		//the netCDF writer creates the file itself, so it writes at the
		//pending file's path.
		w, err = mmtk.NewWriter(pf.Name(), p.universe, mmtk.Options{
			Double:      p.cfg.Double,
			Title:       p.title,
			Comment:     p.cfg.Comment,
			History:     p.history,
			MemoryLimit: p.memoryLimit,
		})
		s = &ncSink{pending: pend, w: w}
	case config.FormatDCD:
		var box []float64
		if p.universe.Periodic() {
			box = make([]float64, 9)
			for i, v := range p.universe.Box {
				box[i] = chem.Nm2A * v
			}
		}
		var w *dcd.DCDWObj
		w, err = dcd.NewStreamWriter(pf, natoms, box, p.output)
		s = &dcdSink{pending: pend, w: w}
	case config.FormatSTF:
		header := map[string]string{
			"title":    p.title,
			"history":  p.history,
			"universe": string(p.universe.Kind),
		}
		if p.cfg.Comment != "" {
			header["comment"] = p.cfg.Comment
		}
		var w *stf.StfW
		w, err = stf.NewStreamWriter(pf, p.output, natoms, header)
		s = &stfSink{pending: pend, w: w}
	case config.FormatXTC:
		var w *xtc.XTCWObj
		w, err = xtc.NewStreamWriter(pf, natoms, p.cfg.Precision, p.output)
		s = &xtcSink{pending: pend, w: w}
	default:
		err = errors.Errorf("unknown output format %q", p.format)
	}
	if err != nil {
		pf.Cleanup()
		return nil, errors.Wrapf(err, "can't open %s output", p.format)
	}
	return s, nil
}

//pending is the temporary file that replaces the output on success.
type pending struct {
	pf *renameio.PendingFile
}

//replace closes the trajectory writer and moves the pending file to the output path.
func (p pending) replace(closeWriter func() error) error {
	if err := closeWriter(); err != nil {
		p.pf.Cleanup()
		return errors.Wrap(err, "can't finish output")
	}
	if err := p.pf.CloseAtomicallyReplace(); err != nil {
		p.pf.Cleanup()
		return errors.Wrap(err, "can't replace output")
	}
	return nil
}

func (p pending) abort() {
	p.pf.Cleanup()
}

type ncSink struct {
	pending
	w *mmtk.MMTKWObj
}

func (s *ncSink) write(f *xtc.Frame) error {
	return s.w.WriteFrame(f.Step, f.Time, f.Coords, f.Box)
}

func (s *ncSink) commit() error { return s.replace(s.w.Close) }

func (s *ncSink) abort() {
	s.w.Abort()
	s.pending.abort()
}

type dcdSink struct {
	pending
	w *dcd.DCDWObj
}

func (s *dcdSink) write(f *xtc.Frame) error { return s.w.WriteFrame(f.Coords, f.Box) }

func (s *dcdSink) commit() error { return s.replace(s.w.Close) }

type stfSink struct {
	pending
	w *stf.StfW
}

func (s *stfSink) write(f *xtc.Frame) error { return s.w.WriteFrame(f.Coords, f.Box) }

func (s *stfSink) commit() error { return s.replace(s.w.Close) }

func (s *stfSink) abort() {
	s.w.Close()
	s.pending.abort()
}

type xtcSink struct {
	pending
	w *xtc.XTCWObj
}

func (s *xtcSink) write(f *xtc.Frame) error { return s.w.WriteFrame(f) }

func (s *xtcSink) commit() error { return s.replace(s.w.Close) }
