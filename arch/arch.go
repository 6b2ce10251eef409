// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package arch describes the differences between the
// architectures whose instruction sets can be loaded.
//
// Each architecture has a Profile, which lists the
// encoding components and operand types it uses, the
// attributes its descriptions must include, the ISA
// extension scores, and the defaults an encoder uses
// for ignored fields. The built-in profiles for x86,
// x86-64, and k1om are embedded TOML files; other
// profiles can be loaded with Open.
package arch

import (
	"cmp"
	"embed"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/exp/slices"

	"firefly-os.dev/opcodes/isa"
)

// Reference styles.
const (
	ReferenceAttribute = "attribute" // F-operand-number="i"
	ReferenceInline    = "inline"    // F="#i"
)

// Profile describes one architecture's instruction
// set descriptions.
//
// Profiles are shared and must not be modified
// after they are returned by Parse or Lookup.
type Profile struct {
	Name string `toml:"name"`

	// Strict profiles reject component attributes
	// that are not understood.
	Strict bool `toml:"strict"`

	// ReferenceStyle is the way operand references
	// are written when a set is marshalled.
	ReferenceStyle string `toml:"reference-style"`

	// Element names within an InstructionForm.
	ImplicitOperandTag string `toml:"implicit-operand-tag"`
	ExtensionTag       string `toml:"extension-tag"`

	Components   []string `toml:"components"`
	OperandTypes []string `toml:"operand-types"`

	// Required maps a component tag to the
	// attributes it must include.
	Required map[string][]string `toml:"required"`

	// Literals maps "Tag.field" to the only literal
	// values allowed for that field.
	Literals map[string][]string `toml:"literals"`

	// Absent maps "Tag.field" to the value used
	// when the field is omitted. Other omitted
	// fields are ignored.
	Absent map[string]string `toml:"absent"`

	ISAScores map[string]int `toml:"isa-scores"`
	Defaults  isa.Defaults   `toml:"defaults"`

	components   map[isa.ComponentKind]bool
	operandTypes map[string]bool
	required     map[string]bool // "Tag.field"
}

func (p *Profile) String() string {
	return p.Name
}

// Recognizes returns whether tag names an encoding
// component used by the architecture.
func (p *Profile) Recognizes(tag string) bool {
	kind, ok := isa.ComponentKinds[tag]
	return ok && p.components[kind]
}

// Allows returns whether the architecture uses
// components of the given kind.
func (p *Profile) Allows(kind isa.ComponentKind) bool {
	return p.components[kind]
}

// HasOperandType returns whether typ is an operand
// type of the architecture.
func (p *Profile) HasOperandType(typ string) bool {
	return p.operandTypes[typ]
}

// Requires returns whether the given attribute of a
// component must be present.
func (p *Profile) Requires(tag, field string) bool {
	return p.required[tag+"."+field]
}

// LiteralAllowed returns whether text is a legal
// literal value for the given component field.
func (p *Profile) LiteralAllowed(tag, field, text string) bool {
	allowed, ok := p.Literals[tag+"."+field]
	if !ok {
		return true
	}

	return slices.Contains(allowed, text)
}

// AbsentValue returns the value to use for a field
// that is omitted, if it has one.
func (p *Profile) AbsentValue(tag, field string) (string, bool) {
	v, ok := p.Absent[tag+"."+field]
	return v, ok
}

// Score returns the score of the named ISA
// extension, or zero if it is unknown.
func (p *Profile) Score(name string) int {
	return p.ISAScores[name]
}

// NewExtension returns the named ISA extension,
// with its score.
func (p *Profile) NewExtension(name string) isa.ISAExtension {
	return isa.ISAExtension{Name: name, Score: p.Score(name)}
}

// Extensions returns every ISA extension with a
// score, ordered by score and then by name.
func (p *Profile) Extensions() []isa.ISAExtension {
	exts := make([]isa.ISAExtension, 0, len(p.ISAScores))
	for name, score := range p.ISAScores {
		exts = append(exts, isa.ISAExtension{Name: name, Score: score})
	}

	slices.SortFunc(exts, func(a, b isa.ISAExtension) int {
		if c := cmp.Compare(a.Score, b.Score); c != 0 {
			return c
		}

		return strings.Compare(a.Name, b.Name)
	})

	return exts
}

// Parse decodes a profile from TOML and checks
// that it is consistent.
func Parse(data []byte) (*Profile, error) {
	p := new(Profile)
	md, err := toml.Decode(string(data), p)
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile: %v", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("failed to parse profile: unknown key %q", undecoded[0].String())
	}

	err = p.init()
	if err != nil {
		if p.Name != "" {
			return nil, fmt.Errorf("invalid profile %q: %v", p.Name, err)
		}

		return nil, fmt.Errorf("invalid profile: %v", err)
	}

	return p, nil
}

// Open reads a profile from a TOML file.
func Open(name string) (*Profile, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", name, err)
	}

	return p, nil
}

func (p *Profile) init() error {
	if p.Name == "" {
		return fmt.Errorf("missing name")
	}

	switch p.ReferenceStyle {
	case ReferenceAttribute, ReferenceInline:
	default:
		return fmt.Errorf("invalid reference-style %q: must be %q or %q", p.ReferenceStyle, ReferenceAttribute, ReferenceInline)
	}

	if p.ImplicitOperandTag == "" {
		return fmt.Errorf("missing implicit-operand-tag")
	}

	if p.ExtensionTag == "" {
		return fmt.Errorf("missing extension-tag")
	}

	p.components = make(map[isa.ComponentKind]bool)
	for _, tag := range p.Components {
		kind, ok := isa.ComponentKinds[tag]
		if !ok {
			return fmt.Errorf("unknown component %q", tag)
		}

		if p.components[kind] {
			return fmt.Errorf("component %q listed twice", tag)
		}

		p.components[kind] = true
	}

	p.operandTypes = make(map[string]bool)
	for _, typ := range p.OperandTypes {
		if _, ok := isa.OperandClasses[typ]; !ok {
			return fmt.Errorf("unknown operand type %q", typ)
		}

		if p.operandTypes[typ] {
			return fmt.Errorf("operand type %q listed twice", typ)
		}

		p.operandTypes[typ] = true
	}

	p.required = make(map[string]bool)
	for tag, fields := range p.Required {
		if !p.Recognizes(tag) {
			return fmt.Errorf("required attributes for unused component %q", tag)
		}

		for _, field := range fields {
			p.required[tag+"."+field] = true
		}
	}

	for key := range p.Literals {
		if err := p.checkFieldKey("literals", key); err != nil {
			return err
		}
	}

	for key := range p.Absent {
		if err := p.checkFieldKey("absent", key); err != nil {
			return err
		}
	}

	for name, score := range p.ISAScores {
		if score < 0 {
			return fmt.Errorf("ISA extension %q has negative score %d", name, score)
		}
	}

	// Every default must fit its field.
	probe := isa.Encoding{Components: []isa.Component{
		new(isa.REX),
		new(isa.VEX),
		new(isa.EVEX),
		new(isa.MVEX),
		new(isa.ModRM),
	}}

	if _, err := probe.WithDefaults(p.Defaults); err != nil {
		return fmt.Errorf("invalid defaults: %v", err)
	}

	return nil
}

func (p *Profile) checkFieldKey(table, key string) error {
	tag, field, ok := strings.Cut(key, ".")
	if !ok || field == "" {
		return fmt.Errorf("invalid %s key %q: want Tag.field", table, key)
	}

	if !p.Recognizes(tag) {
		return fmt.Errorf("invalid %s key %q: component %q is not used", table, key, tag)
	}

	return nil
}

//go:embed profiles/*.toml
var profilesFS embed.FS

var builtin = mustLoadBuiltin()

func mustLoadBuiltin() map[string]*Profile {
	entries, err := profilesFS.ReadDir("profiles")
	if err != nil {
		panic(err)
	}

	profiles := make(map[string]*Profile)
	for _, entry := range entries {
		name := path.Join("profiles", entry.Name())
		data, err := profilesFS.ReadFile(name)
		if err != nil {
			panic(err)
		}

		p, err := Parse(data)
		if err != nil {
			panic(fmt.Sprintf("%s: %v", name, err))
		}

		profiles[p.Name] = p
	}

	return profiles
}

// Names returns the names of the built-in
// profiles, in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Lookup returns the built-in profile with the
// given name.
func Lookup(name string) (*Profile, error) {
	p, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("unknown architecture %q: must be one of %s", name, strings.Join(Names(), ", "))
	}

	return p, nil
}
