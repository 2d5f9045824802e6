/*
 * logger.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

//Package log configures the structured logger used by the converter and the
//command line tool.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

//Config captures options for configuring the global logger.
type Config struct {
	Level   string    //optional log level ("debug", "info", etc.)
	Output  io.Writer //optional writer (defaults to os.Stderr)
	Console bool      //human-readable output instead of JSON lines
}

var (
	mu         sync.Mutex
	configured bool
	base       zerolog.Logger
)

//Configure sets up the base logger. Each call replaces the previous configuration.
//Loggers obtained before the call keep the configuration they were created with.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	configure(cfg)
}

func configure(cfg Config) {
	configured = true
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	} else if env := os.Getenv("LOG_LEVEL"); env != "" {
		if parsed, err := zerolog.ParseLevel(env); err == nil {
			level = parsed
		}
	}
	zerolog.TimeFieldFormat = time.RFC3339

	writer := cfg.Output
	if writer == nil {
		writer = os.Stderr
	}
	if cfg.Console {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.Kitchen}
	}
	base = zerolog.New(writer).Level(level).With().
		Timestamp().
		Str("program", "xtc2nc").
		Logger()
}

//ParseLevel reports whether level is a valid log level name.
func ParseLevel(level string) error {
	_, err := zerolog.ParseLevel(level)
	return err
}

//logger returns the base logger, with the default configuration if
//Configure was never called.
func logger() zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if !configured {
		configure(Config{})
	}
	return base
}

//Base returns the configured base logger instance.
func Base() zerolog.Logger {
	return logger()
}

//WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return logger().With().Str("component", component).Logger()
}

//reset forgets the current configuration. Tests only.
func reset() {
	mu.Lock()
	configured = false
	mu.Unlock()
}
