/*
 * report.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package convert

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	chem "github.com/rmera/xtc2nc"
	"github.com/rmera/xtc2nc/internal/config"
)

//Report summarizes a conversion.
type Report struct {
	Output        string
	Format        config.Format
	Universe      chem.UniverseKind
	Atoms         int
	Selection     Selection
	FramesScanned int //frames read or skipped from the XTC file.
	FramesWritten int
	FirstStep     int
	LastStep      int
	FirstTime     float32 //ps
	LastTime      float32 //ps
	BoxFromPDB    bool    //the box was taken from the CRYST1 record.
	Duration      time.Duration
}

//MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (R *Report) MarshalZerologObject(e *zerolog.Event) {
	e.Str("output", R.Output).
		Str("format", string(R.Format)).
		Str("universe", string(R.Universe)).
		Int("atoms", R.Atoms).
		Stringer("selection", R.Selection).
		Int("frames_scanned", R.FramesScanned).
		Int("frames_written", R.FramesWritten).
		Dur("duration", R.Duration)
	if R.FramesWritten > 0 {
		e.Int("first_step", R.FirstStep).
			Int("last_step", R.LastStep).
			Float32("first_time_ps", R.FirstTime).
			Float32("last_time_ps", R.LastTime)
	}
	if R.BoxFromPDB {
		e.Bool("box_from_pdb", true)
	}
}

//writeMetrics writes the metrics of a conversion to path, in the format of the
//Prometheus node exporter textfile collector.
func writeMetrics(path string, R *Report, runErr error) error {
	reg := prometheus.NewRegistry()
	framesRead := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xtc2nc_frames_read_total",
		Help: "Frames read or skipped from the input trajectory.",
	})
	framesWritten := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xtc2nc_frames_written_total",
		Help: "Frames written to the output trajectory.",
	})
	atoms := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "xtc2nc_atoms",
		Help: "Atoms per frame.",
	})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "xtc2nc_duration_seconds",
		Help: "Duration of the last conversion.",
	})
	success := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "xtc2nc_last_run_success",
		Help: "1 if the last conversion succeeded, 0 otherwise.",
	})
	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "xtc2nc_last_success_timestamp_seconds",
		Help: "Unix time of the last successful conversion.",
	})
	output := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "xtc2nc_output_info",
		Help: "Format and universe of the last conversion.",
	}, []string{"format", "universe"})
	reg.MustRegister(framesRead, framesWritten, atoms, duration, success, lastSuccess, output)

	framesRead.Add(float64(R.FramesScanned))
	framesWritten.Add(float64(R.FramesWritten))
	atoms.Set(float64(R.Atoms))
	duration.Set(R.Duration.Seconds())
	output.WithLabelValues(string(R.Format), string(R.Universe)).Set(1)
	if runErr == nil {
		success.Set(1)
		lastSuccess.SetToCurrentTime()
	}
	return prometheus.WriteToTextfile(path, reg)
}
