/*
 * universe.go, part of xtc2nc
 *
 * Copyright 2024 Konrad Hinsen <konrad.hinsen@cnrs.fr>
 *
 * Use of this source code is governed by a BSD-style license
 * that can be found in the LICENSE file.
 */

package chem

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

//UniverseKind is the class of the MMTK universe a trajectory belongs to.
type UniverseKind string

const (
	InfiniteUniverse                 UniverseKind = "InfiniteUniverse"
	OrthorhombicPeriodicUniverse     UniverseKind = "OrthorhombicPeriodicUniverse"
	ParallelepipedicPeriodicUniverse UniverseKind = "ParallelepipedicPeriodicUniverse"
)

//boxZero is the threshold (in nm) under which a box element is considered zero.
const boxZero = 1e-6

//Universe is a molecular system together with the boundary conditions it lives in.
type Universe struct {
	Kind UniverseKind
	Box  [9]float64 //box vectors, in nm. All zeros for an infinite universe.
	Top  *Topology
}

//ClassifyBox returns the kind of universe defined by the box vectors in box (9 values).
//A nil or zero box defines an infinite universe.
func ClassifyBox(box []float64) UniverseKind {
	if len(box) < 9 {
		return InfiniteUniverse
	}
	nonzero := false
	for _, v := range box[:9] {
		if math.Abs(v) > boxZero {
			nonzero = true
			break
		}
	}
	if !nonzero {
		return InfiniteUniverse
	}
	for _, i := range []int{1, 2, 3, 5, 6, 7} {
		if math.Abs(box[i]) > boxZero {
			return ParallelepipedicPeriodicUniverse
		}
	}
	return OrthorhombicPeriodicUniverse
}

//NewUniverse returns a universe for the topology top and the box vectors box (9 values, nm),
//which may be nil.
func NewUniverse(top *Topology, box []float64) *Universe {
	U := &Universe{Kind: ClassifyBox(box), Top: top}
	if U.Kind != InfiniteUniverse {
		copy(U.Box[:], box[:9])
	}
	return U
}

//Periodic returns true if the universe has periodic boundary conditions.
func (U *Universe) Periodic() bool {
	return U.Kind != InfiniteUniverse
}

//BoxSizeLen returns the number of values needed to describe the box of one frame
//(0, 3 or 9)
func (U *Universe) BoxSizeLen() int {
	switch U.Kind {
	case OrthorhombicPeriodicUniverse:
		return 3
	case ParallelepipedicPeriodicUniverse:
		return 9
	}
	return 0
}

//BoxSize puts in out, and returns, the box_size values of a frame with the box vectors box.
//For orthorhombic universes those are the diagonal elements, for parallelepipedic ones
//all nine values. If out is too short a new slice is allocated.
func (U *Universe) BoxSize(box []float32, out []float32) []float32 {
	l := U.BoxSizeLen()
	if len(out) < l {
		out = make([]float32, l)
	}
	out = out[:l]
	switch U.Kind {
	case OrthorhombicPeriodicUniverse:
		out[0], out[1], out[2] = box[0], box[4], box[8]
	case ParallelepipedicPeriodicUniverse:
		copy(out, box[:9])
	}
	return out
}

//Len returns the number of atoms in the universe.
func (U *Universe) Len() int {
	if U.Top == nil {
		return 0
	}
	return U.Top.Len()
}

//Description returns the expression describing the universe, which is stored in the
//"description" variable of MMTK trajectories. Chains group consecutive atoms with the same
//chain identifier, and, inside them, groups contain consecutive atoms with the same
//residue name and number.
func (U *Universe) Description() string {
	var b strings.Builder
	fmt.Fprintf(&b, "c('%s',(", U.Kind)
	switch U.Kind {
	case OrthorhombicPeriodicUniverse:
		fmt.Fprintf(&b, "(%s,%s,%s),", fnum(U.Box[0]), fnum(U.Box[4]), fnum(U.Box[8]))
	case ParallelepipedicPeriodicUniverse:
		for i := 0; i < 3; i++ {
			fmt.Fprintf(&b, "(%s,%s,%s),", fnum(U.Box[3*i]), fnum(U.Box[3*i+1]), fnum(U.Box[3*i+2]))
		}
	}
	b.WriteString("),[")
	if U.Top != nil {
		U.writeObjects(&b)
	}
	b.WriteString("])")
	return b.String()
}

func (U *Universe) writeObjects(b *strings.Builder) {
	var prev *Atom
	for i, at := range U.Top.Atoms {
		newchain := prev == nil || at.Chain != prev.Chain
		newgroup := newchain || at.Molname != prev.Molname || at.Molid != prev.Molid
		if prev != nil {
			if newchain {
				b.WriteString("])]),")
			} else if newgroup {
				b.WriteString("]),")
			} else {
				b.WriteString(",")
			}
		}
		if newchain {
			fmt.Fprintf(b, "m('%s',[", quote(chainLabel(at.Chain)))
		}
		if newgroup {
			fmt.Fprintf(b, "g('%s',%d,[", quote(at.Molname), at.Molid)
		}
		fmt.Fprintf(b, "a('%s','%s',%d)", quote(at.Name), quote(at.Symbol), i)
		prev = at
	}
	if prev != nil {
		b.WriteString("])])")
	}
}

func chainLabel(c byte) string {
	if c == ' ' || c == 0 {
		return ""
	}
	return string(c)
}

func quote(s string) string {
	return strings.ReplaceAll(s, "'", "_")
}

func fnum(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

//ParseDescription rebuilds a universe from the expression produced by Universe.Description.
func ParseDescription(desc string) (*Universe, error) {
	p := &descParser{s: desc}
	U, err := p.universe()
	if err != nil {
		return nil, CError{fmt.Sprintf("can't parse universe description at position %d: %s", p.pos, err.Error()), "", []string{"ParseDescription"}, true}
	}
	return U, nil
}

//descParser is a small recursive-descent parser for universe descriptions.
type descParser struct {
	s   string
	pos int
}

func (p *descParser) expect(tok string) error {
	if !strings.HasPrefix(p.s[p.pos:], tok) {
		return fmt.Errorf("expected %q", tok)
	}
	p.pos += len(tok)
	return nil
}

func (p *descParser) peek(tok string) bool {
	return strings.HasPrefix(p.s[p.pos:], tok)
}

func (p *descParser) str() (string, error) {
	if err := p.expect("'"); err != nil {
		return "", err
	}
	end := strings.IndexByte(p.s[p.pos:], '\'')
	if end < 0 {
		return "", fmt.Errorf("unterminated string")
	}
	ret := p.s[p.pos : p.pos+end]
	p.pos += end + 1
	return ret, nil
}

func (p *descParser) number() (float64, error) {
	end := strings.IndexAny(p.s[p.pos:], ",)")
	if end < 0 {
		return 0, fmt.Errorf("unterminated number")
	}
	f, err := strconv.ParseFloat(p.s[p.pos:p.pos+end], 64)
	if err != nil {
		return 0, err
	}
	p.pos += end
	return f, nil
}

func (p *descParser) integer() (int, error) {
	f, err := p.number()
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("expected an integer, got %g", f)
	}
	return int(f), nil
}

//list parses "[item,item,...]" calling item for each element.
func (p *descParser) list(item func() error) error {
	if err := p.expect("["); err != nil {
		return err
	}
	for !p.peek("]") {
		if err := item(); err != nil {
			return err
		}
		if p.peek(",") {
			p.pos++
		} else if !p.peek("]") {
			return fmt.Errorf("expected ',' or ']'")
		}
	}
	p.pos++
	return nil
}

func (p *descParser) universe() (*Universe, error) {
	U := new(Universe)
	if err := p.expect("c("); err != nil {
		return nil, err
	}
	kind, err := p.str()
	if err != nil {
		return nil, err
	}
	U.Kind = UniverseKind(kind)
	if err := p.expect(",("); err != nil {
		return nil, err
	}
	var box []float64
	for p.peek("(") {
		p.pos++
		for {
			f, err := p.number()
			if err != nil {
				return nil, err
			}
			box = append(box, f)
			if p.peek(")") {
				p.pos++
				break
			}
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
	}
	if err := p.expect("),"); err != nil {
		return nil, err
	}
	switch {
	case U.Kind == InfiniteUniverse && len(box) == 0:
	case U.Kind == OrthorhombicPeriodicUniverse && len(box) == 3:
		U.Box[0], U.Box[4], U.Box[8] = box[0], box[1], box[2]
	case U.Kind == ParallelepipedicPeriodicUniverse && len(box) == 9:
		copy(U.Box[:], box)
	default:
		return nil, fmt.Errorf("universe %s with %d box values", kind, len(box))
	}
	atoms := make([]*Atom, 0, 100)
	err = p.list(func() error { return p.chain(&atoms) })
	if err != nil {
		return nil, err
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	U.Top = &Topology{Atoms: atoms}
	return U, nil
}

func (p *descParser) chain(atoms *[]*Atom) error {
	if err := p.expect("m("); err != nil {
		return err
	}
	label, err := p.str()
	if err != nil {
		return err
	}
	chain := byte(' ')
	if label != "" {
		chain = label[0]
	}
	if err := p.expect(","); err != nil {
		return err
	}
	err = p.list(func() error { return p.group(atoms, chain) })
	if err != nil {
		return err
	}
	return p.expect(")")
}

func (p *descParser) group(atoms *[]*Atom, chain byte) error {
	if err := p.expect("g("); err != nil {
		return err
	}
	resname, err := p.str()
	if err != nil {
		return err
	}
	if err := p.expect(","); err != nil {
		return err
	}
	resid, err := p.integer()
	if err != nil {
		return err
	}
	if err := p.expect(","); err != nil {
		return err
	}
	err = p.list(func() error {
		at, err := p.atom(len(*atoms))
		if err != nil {
			return err
		}
		at.Molname = resname
		at.Molname1 = three2OneLetter[resname]
		at.Molid = resid
		at.Chain = chain
		*atoms = append(*atoms, at)
		return nil
	})
	if err != nil {
		return err
	}
	return p.expect(")")
}

func (p *descParser) atom(index int) (*Atom, error) {
	if err := p.expect("a("); err != nil {
		return nil, err
	}
	at := new(Atom)
	var err error
	if at.Name, err = p.str(); err != nil {
		return nil, err
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	if at.Symbol, err = p.str(); err != nil {
		return nil, err
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	i, err := p.integer()
	if err != nil {
		return nil, err
	}
	if i != index {
		return nil, fmt.Errorf("atom index %d found where %d was expected", i, index)
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	at.Id = index + 1
	at.Mass = symbolMass[at.Symbol]
	return at, nil
}
