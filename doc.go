/*
 * doc.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

/*Package chem is the main package of xtc2nc. It provides the atom and topology structures
read from PDB files, the MMTK-style universe description written to netCDF trajectories,
and the interfaces shared by the trajectory readers and writers in the traj/ subpackages.

	**Capabilities**

    Reads the first model of PDB files, including the CRYST1 unit cell.

    Classifies boundary conditions (infinite, orthorhombic or parallelepipedic periodic)
	from GROMACS box vectors.

    Writes and parses the universe description expression stored in MMTK trajectories.

    Reads and writes GROMACS XTC trajectories in pure Go (package traj/xtc), sequentially
	and concurrently.

    Writes MMTK trajectories in netCDF format (traj/mmtk), and, as alternative outputs,
	CHARMM/NAMD DCD (traj/dcd) and goChem STF (traj/stf) trajectories.

Coordinates are kept in v3.Matrix objects, based on gonum's Dense type. Each row of a
v3.Matrix represents one point in space. The chem.Traj interface works in Angstrom, as goChem
does, while the native frame types of the XTC and MMTK packages keep GROMACS units (nm, ps).

The xtc2nc command (cmd/xtc2nc) converts a GROMACS trajectory plus a compatible PDB
file that defines the molecular system into an MMTK trajectory.*/
package chem
