// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package isa

import (
	"fmt"
)

// Defaults holds the values an encoder uses
// for fields a description leaves ignored.
type Defaults struct {
	REX   REXDefaults   `toml:"rex"`
	VEX   VEXDefaults   `toml:"vex"`
	EVEX  EVEXDefaults  `toml:"evex"`
	MVEX  MVEXDefaults  `toml:"mvex"`
	ModRM ModRMDefaults `toml:"modrm"`
}

type REXDefaults struct {
	W uint8 `toml:"w"`
	R uint8 `toml:"r"`
	X uint8 `toml:"x"`
	B uint8 `toml:"b"`
}

type VEXDefaults struct {
	W uint8 `toml:"w"`
	L uint8 `toml:"l"`
	R uint8 `toml:"r"`
	X uint8 `toml:"x"`
	B uint8 `toml:"b"`
}

type EVEXDefaults struct {
	W  uint8 `toml:"w"`
	LL uint8 `toml:"ll"`
	Z  uint8 `toml:"z"`
}

type MVEXDefaults struct {
	W  uint8 `toml:"w"`
	RR uint8 `toml:"rr"`
	X  uint8 `toml:"x"`
	E  uint8 `toml:"e"`
}

type ModRMDefaults struct {
	Mode uint8 `toml:"mode"`
	RM   uint8 `toml:"rm"`
}

type defaultValue struct {
	name  string
	value uint8
	width uint
}

func checkDefaults(kind ComponentKind, values ...defaultValue) error {
	for _, v := range values {
		if uint(v.value) >= 1<<v.width {
			return Errorf(IllegalEnumeratedValue, kind.String()+"."+v.name, "default %d does not fit in %d bits", v.value, v.width)
		}
	}

	return nil
}

// SetIgnored replaces each ignored field with
// its default. Concrete fields and operand
// references are left unchanged.
func (r *REX) SetIgnored(d REXDefaults) error {
	err := checkDefaults(KindREX, defaultValue{"W", d.W, 1}, defaultValue{"R", d.R, 1}, defaultValue{"X", d.X, 1}, defaultValue{"B", d.B, 1})
	if err != nil {
		return err
	}

	r.W = r.W.orDefault(d.W)
	r.R = r.R.orDefault(d.R)
	r.X = r.X.orDefault(d.X)
	r.B = r.B.orDefault(d.B)

	return nil
}

// SetIgnored replaces each ignored field with
// its default. Concrete fields and operand
// references are left unchanged. The vvvv
// field has no default.
func (v *VEX) SetIgnored(d VEXDefaults) error {
	err := checkDefaults(KindVEX, defaultValue{"W", d.W, 1}, defaultValue{"L", d.L, 1}, defaultValue{"R", d.R, 1}, defaultValue{"X", d.X, 1}, defaultValue{"B", d.B, 1})
	if err != nil {
		return err
	}

	v.W = v.W.orDefault(d.W)
	v.L = v.L.orDefault(d.L)
	v.R = v.R.orDefault(d.R)
	v.X = v.X.orDefault(d.X)
	v.B = v.B.orDefault(d.B)

	return nil
}

// SetIgnored replaces each ignored field with
// its default. Concrete fields and operand
// references are left unchanged.
func (e *EVEX) SetIgnored(d EVEXDefaults) error {
	err := checkDefaults(KindEVEX, defaultValue{"W", d.W, 1}, defaultValue{"LL", d.LL, 2}, defaultValue{"z", d.Z, 1})
	if err != nil {
		return err
	}

	e.W = e.W.orDefault(d.W)
	e.LL = e.LL.orDefault(d.LL)
	e.Z = e.Z.orDefault(d.Z)

	return nil
}

// SetIgnored replaces each ignored field with
// its default. Concrete fields and operand
// references are left unchanged.
func (m *MVEX) SetIgnored(d MVEXDefaults) error {
	err := checkDefaults(KindMVEX, defaultValue{"W", d.W, 1}, defaultValue{"RR", d.RR, 2}, defaultValue{"X", d.X, 1}, defaultValue{"E", d.E, 1})
	if err != nil {
		return err
	}

	m.W = m.W.orDefault(d.W)
	m.RR = m.RR.orDefault(d.RR)
	m.X = m.X.orDefault(d.X)
	m.E = m.E.orDefault(d.E)

	return nil
}

// SetIgnored replaces each ignored field with
// its default. Concrete fields and operand
// references are left unchanged.
func (m *ModRM) SetIgnored(d ModRMDefaults) error {
	err := checkDefaults(KindModRM, defaultValue{"mode", d.Mode, 2}, defaultValue{"rm", d.RM, 3})
	if err != nil {
		return err
	}

	m.Mode = m.Mode.orDefault(d.Mode)
	m.RM = m.RM.orDefault(d.RM)

	return nil
}

// WithDefaults returns a copy of e with every
// ignored field that has a default filled in.
// The receiver is not modified.
func (e Encoding) WithDefaults(d Defaults) (Encoding, error) {
	c := e.Clone()
	for i, comp := range c.Components {
		var err error
		switch comp := comp.(type) {
		case *REX:
			err = comp.SetIgnored(d.REX)
		case *VEX:
			err = comp.SetIgnored(d.VEX)
		case *EVEX:
			err = comp.SetIgnored(d.EVEX)
		case *MVEX:
			err = comp.SetIgnored(d.MVEX)
		case *ModRM:
			err = comp.SetIgnored(d.ModRM)
		}

		if err != nil {
			return Encoding{}, WithPath(err, fmt.Sprintf("%s[%d]", comp.Kind(), i))
		}
	}

	return c, nil
}

// WithDefaults returns a copy of s with the
// defaults applied to every encoding.
func (s *InstructionSet) WithDefaults(d Defaults) (*InstructionSet, error) {
	out := &InstructionSet{
		Arch:         s.Arch,
		Instructions: make([]*Instruction, len(s.Instructions)),
	}

	for i, inst := range s.Instructions {
		instCopy := *inst
		instCopy.Forms = make([]*Form, len(inst.Forms))
		for j, form := range inst.Forms {
			formCopy := *form
			formCopy.Encodings = make([]Encoding, len(form.Encodings))
			for k, enc := range form.Encodings {
				filled, err := enc.WithDefaults(d)
				if err != nil {
					return nil, WithPath(err, formPath(inst.Name, j, k))
				}

				formCopy.Encodings[k] = filled
			}

			instCopy.Forms[j] = &formCopy
		}

		out.Instructions[i] = &instCopy
	}

	return out, nil
}
