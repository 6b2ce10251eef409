// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package loader reads XML instruction set descriptions
// into the model in package isa.
//
// A description is checked against an architecture
// profile as it is read. Any problem other than an
// unrecognised encoding component aborts the load
// and is reported as an error wrapping an *isa.Error,
// so callers can test its kind:
//
//	res, err := loader.LoadFile("x86_64.xml", profile)
//	if errors.Is(err, isa.OutOfRangeReference) {
//		...
//	}
//
// Unrecognised encoding components are logged,
// recorded in the result's warnings, and skipped.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"firefly-os.dev/opcodes/arch"
	"firefly-os.dev/opcodes/isa"
)

// Result is a loaded instruction set.
type Result struct {
	Set      *isa.InstructionSet
	Warnings []Warning
}

// Warning is a recoverable problem found while
// loading.
type Warning struct {
	Line int
	Tag  string     // The element that was skipped.
	Err  *isa.Error // Always of kind isa.UnknownComponentTag.
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %v", w.Line, w.Err)
}

// Option configures a load.
type Option func(*options)

type options struct {
	log    logrus.FieldLogger
	source string
}

// WithLogger sets the logger used to report
// warnings. The default is the logrus standard
// logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = log
	}
}

func withSource(name string) Option {
	return func(o *options) {
		o.source = name
	}
}

// Load reads an instruction set description
// for the given architecture from r.
func Load(r io.Reader, p *arch.Profile, opts ...Option) (*Result, error) {
	o := options{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	log := o.log.WithField("arch", p.Name)
	if o.source != "" {
		log = log.WithField("source", o.source)
	}

	root, err := parseTree(r)
	if err != nil {
		return nil, err
	}

	l := &loader{profile: p, log: log}
	set, err := l.instructionSet(root)
	if err != nil {
		return nil, err
	}

	return &Result{Set: set, Warnings: l.warnings}, nil
}

// LoadFile reads an instruction set description
// from the named file.
func LoadFile(name string, p *arch.Profile, opts ...Option) (*Result, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	res, err := Load(f, p, append(opts, withSource(name))...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return res, nil
}

// Source names a description file and the
// architecture it describes.
type Source struct {
	Path    string
	Profile *arch.Profile
}

// LoadFiles loads each source concurrently. The
// results are in the same order as the sources.
// If any load fails, the first error is returned.
func LoadFiles(ctx context.Context, sources []Source, opts ...Option) ([]*Result, error) {
	results := make([]*Result, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			res, err := LoadFile(src.Path, src.Profile, opts...)
			if err != nil {
				return err
			}

			results[i] = res

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, err
	}

	return results, nil
}

type loader struct {
	profile  *arch.Profile
	log      logrus.FieldLogger
	warnings []Warning
}

// errorAt attaches the location of n to err.
func errorAt(n *node, path string, err error) error {
	return fmt.Errorf("line %d: %w", n.Line, isa.WithPath(err, path))
}

func unexpected(n *node, parent string, candidates ...string) error {
	return isa.Errorf(isa.SchemaMismatch, "", "unexpected element %s in %s%s", n.Name, parent, didYouMean(n.Name, candidates))
}

func (l *loader) warn(n *node, path string, err *isa.Error) {
	e := *err
	if e.Path == "" {
		e.Path = path
	}

	l.warnings = append(l.warnings, Warning{Line: n.Line, Tag: n.Name, Err: &e})
	l.log.WithFields(logrus.Fields{
		"line": n.Line,
		"path": path,
		"tag":  n.Name,
	}).Warn(e.Msg)
}

func (l *loader) instructionSet(n *node) (*isa.InstructionSet, error) {
	if n.Name != "InstructionSet" {
		return nil, errorAt(n, "", isa.Errorf(isa.SchemaMismatch, "", "root element is %s, want InstructionSet", n.Name))
	}

	r := newReader(n, l.profile)
	name, _ := r.text("name", true)
	if r.err != nil {
		return nil, errorAt(n, "", r.err)
	}

	if name != l.profile.Name {
		return nil, errorAt(n, "", isa.Errorf(isa.SchemaMismatch, "name", "instruction set is for %q, want %q", name, l.profile.Name))
	}

	set := &isa.InstructionSet{
		Arch:         l.profile.Name,
		Instructions: make([]*isa.Instruction, 0, len(n.Children)),
	}

	for _, child := range n.Children {
		if child.Name != "Instruction" {
			return nil, errorAt(child, "", unexpected(child, "InstructionSet", "Instruction"))
		}

		inst, err := l.instruction(child)
		if err != nil {
			return nil, err
		}

		set.Instructions = append(set.Instructions, inst)
	}

	return set, nil
}

func (l *loader) instruction(n *node) (*isa.Instruction, error) {
	r := newReader(n, l.profile)
	name, _ := r.text("name", true)
	summary, _ := r.text("summary", false)
	if r.err != nil {
		return nil, errorAt(n, "Instruction", r.err)
	}

	inst := &isa.Instruction{
		Name:    name,
		Summary: summary,
		Forms:   make([]*isa.Form, 0, len(n.Children)),
	}

	for i, child := range n.Children {
		if child.Name != "InstructionForm" {
			return nil, errorAt(child, name, unexpected(child, "Instruction", "InstructionForm"))
		}

		form, err := l.form(child, name, fmt.Sprintf("%s[%d]", name, i))
		if err != nil {
			return nil, err
		}

		inst.Forms = append(inst.Forms, form)
	}

	return inst, nil
}

func (l *loader) form(n *node, name, path string) (*isa.Form, error) {
	r := newReader(n, l.profile)
	form := &isa.Form{Name: name}
	form.GASName, _ = r.text("gas-name", true)
	form.GoName, _ = r.text("go-name", false)
	form.MMXMode, _ = r.text("mmx-mode", false)
	form.XMMMode, _ = r.text("xmm-mode", false)
	form.CancellingInputs = r.boolean("cancelling-inputs", false)
	form.NaClZeroExtendsOutputs = r.optionalBoolean("nacl-zero-extends-outputs")
	if r.err != nil {
		return nil, errorAt(n, path, r.err)
	}

	implicitTag := l.profile.ImplicitOperandTag
	extensionTag := l.profile.ExtensionTag
	for _, child := range n.Children {
		switch child.Name {
		case "Operand", implicitTag, extensionTag, "Encoding":
		default:
			return nil, errorAt(child, path, unexpected(child, "InstructionForm", "Operand", implicitTag, extensionTag, "Encoding"))
		}
	}

	// Operands are numbered in document order,
	// wherever they appear in the form.
	for i, child := range n.children("Operand") {
		op, err := l.operand(child)
		if err != nil {
			return nil, errorAt(child, fmt.Sprintf("%s/operand[%d]", path, i), err)
		}

		form.Operands = append(form.Operands, op)
	}

	for _, child := range n.children(implicitTag) {
		r := newReader(child, l.profile)
		id, _ := r.text("id", true)
		input := r.boolean("input", true)
		output := r.boolean("output", true)
		if r.err != nil {
			return nil, errorAt(child, path, r.err)
		}

		if input && !slices.Contains(form.ImplicitInputs, id) {
			form.ImplicitInputs = append(form.ImplicitInputs, id)
		}

		if output && !slices.Contains(form.ImplicitOutputs, id) {
			form.ImplicitOutputs = append(form.ImplicitOutputs, id)
		}
	}

	for _, child := range n.children(extensionTag) {
		r := newReader(child, l.profile)
		id, _ := r.text("id", true)
		if r.err != nil {
			return nil, errorAt(child, path, r.err)
		}

		form.ISAExtensions = append(form.ISAExtensions, l.profile.NewExtension(id))
	}

	for i, child := range n.children("Encoding") {
		enc, err := l.encoding(child, len(form.Operands), fmt.Sprintf("%s/encoding[%d]", path, i))
		if err != nil {
			return nil, err
		}

		form.Encodings = append(form.Encodings, enc)
	}

	err := form.Validate()
	if err != nil {
		return nil, errorAt(n, path, err)
	}

	return form, nil
}

func (l *loader) operand(n *node) (isa.Operand, error) {
	r := newReader(n, l.profile)
	op := isa.Operand{}
	op.Type, _ = r.text("type", true)
	op.Input = r.boolean("input", false)
	op.Output = r.boolean("output", false)
	op.ExtendedSize = r.integer("extended-size")
	op.AllowConversion = r.boolean("allow-conversion", false)
	op.Allow1to16 = r.boolean("allow-1to16", false)
	if r.err != nil {
		return isa.Operand{}, r.err
	}

	if !l.profile.HasOperandType(op.Type) {
		return isa.Operand{}, isa.Errorf(isa.IllegalEnumeratedValue, "type", "unknown operand type %q%s", op.Type, didYouMean(op.Type, l.profile.OperandTypes))
	}

	err := op.Validate()
	if err != nil {
		return isa.Operand{}, err
	}

	return op, nil
}

func (l *loader) encoding(n *node, operands int, path string) (isa.Encoding, error) {
	enc := isa.Encoding{Components: make([]isa.Component, 0, len(n.Children))}
	for i, child := range n.Children {
		compPath := fmt.Sprintf("%s/%s[%d]", path, child.Name, i)
		c, err := readComponent(child, l.profile)
		if err != nil {
			var e *isa.Error
			if errors.As(err, &e) && !e.Kind.Fatal() {
				l.warn(child, compPath, e)
				continue
			}

			return isa.Encoding{}, errorAt(child, compPath, err)
		}

		err = c.Validate(operands)
		if err != nil {
			return isa.Encoding{}, errorAt(child, compPath, err)
		}

		enc.Components = append(enc.Components, c)
	}

	err := enc.Validate(operands)
	if err != nil {
		return isa.Encoding{}, errorAt(n, path, err)
	}

	return enc, nil
}
