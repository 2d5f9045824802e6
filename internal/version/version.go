/*
 * version.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

//Package version holds the packaging metadata of the converter.
package version

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

//Info describes a distribution: what it is, who wrote it, and which
//commands it installs.
type Info struct {
	Name            string
	Version         string
	Description     string
	LongDescription string
	Author          string
	AuthorEmail     string
	URL             string
	License         string
	Scripts         []string
}

//Package is the metadata of this distribution.
var Package = Info{
	Name:        "GromacsTrajectoryConverter",
	Version:     "0.1",
	Description: "GROMACS to MMTK trajectory converter",
	LongDescription: "Reads GROMACS trajectories in XTC format, plus a compatible PDB file " +
		"that defines the molecular system, and converts it to an MMTK trajectory in netCDF format.",
	Author:      "Konrad Hinsen",
	AuthorEmail: "konrad.hinsen@cnrs.fr",
	URL:         "http://github.com/khinsen/GromacsTrajectoryConverter",
	License:     "BSD",
	Scripts:     []string{"xtc2nc"},
}

//Validate returns an error if the metadata can't describe an installable distribution.
func (I Info) Validate() error {
	if strings.TrimSpace(I.Name) == "" {
		return errors.New("empty distribution name")
	}
	if strings.TrimSpace(I.Version) == "" {
		return errors.Errorf("distribution %s has an empty version", I.Name)
	}
	if len(I.Scripts) != 1 {
		return errors.Errorf("distribution %s must install exactly one script, not %d", I.Name, len(I.Scripts))
	}
	if strings.TrimSpace(I.Scripts[0]) == "" {
		return errors.Errorf("distribution %s has an empty script name", I.Name)
	}
	return nil
}

//String returns the name and the version.
func (I Info) String() string {
	return I.Name + " " + I.Version
}

//History returns the line stored in the history attribute of the files the
//converter writes.
func (I Info) History(sources ...string) string {
	h := fmt.Sprintf("%s %s (%s)", I.Scripts[0], I.Version, I.Name)
	if len(sources) > 0 {
		h += " from " + strings.Join(sources, ", ")
	}
	return h
}

//Write writes all the fields to w, one per line.
func (I Info) Write(w io.Writer) error {
	if err := I.Validate(); err != nil {
		return err
	}
	fields := [][2]string{
		{"name", I.Name},
		{"version", I.Version},
		{"description", I.Description},
		{"long_description", I.LongDescription},
		{"author", I.Author},
		{"author_email", I.AuthorEmail},
		{"url", I.URL},
		{"license", I.License},
		{"scripts", strings.Join(I.Scripts, ", ")},
	}
	for _, f := range fields {
		if _, err := fmt.Fprintf(w, "%-17s %s\n", f[0]+":", f[1]); err != nil {
			return errors.Wrap(err, "can't write version information")
		}
	}
	return nil
}
