// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package isa contains a structured model of
// an instruction set: its instructions, their
// forms, and the components that make up each
// form's encodings.
//
// An InstructionSet is normally produced by the
// loader package and is read-only afterwards.
// Encoder-specific defaults for ignored fields
// are applied to copies, using WithDefaults.
package isa

import (
	"cmp"
	"fmt"
	"io"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/slices"
)

// InstructionSet is the full set of
// instructions for one architecture, in the
// order they were declared.
//
// Instructions that share a mnemonic are kept
// as separate entries.
type InstructionSet struct {
	Arch         string         `json:"arch"`
	Instructions []*Instruction `json:"instructions"`
}

// Instruction groups the forms of a mnemonic.
type Instruction struct {
	Name    string  `json:"name"`
	Summary string  `json:"summary,omitempty"`
	Forms   []*Form `json:"forms"`
}

// MMX technology states.
const (
	MMXModeFPU = "FPU" // Requires the MMX state to be clear.
	MMXModeMMX = "MMX" // Enters the MMX state.
)

// XMM register access modes.
const (
	XMMModeSSE = "SSE"
	XMMModeAVX = "AVX"
)

// Form is one operand signature of an
// instruction, with its alternative encodings.
type Form struct {
	Name    string `json:"name"`             // Mnemonic, shared with the instruction.
	GASName string `json:"gasName"`          // Name in the GNU assembler.
	GoName  string `json:"goName,omitempty"` // Name in the Go assembler, if supported.
	MMXMode string `json:"mmxMode,omitempty"`
	XMMMode string `json:"xmmMode,omitempty"`

	// CancellingInputs means the result does not
	// depend on the inputs when both name the same
	// register, as in VPXOR xmm1, xmm0, xmm0.
	CancellingInputs bool `json:"cancellingInputs,omitempty"`

	// NaClZeroExtendsOutputs, if set, records
	// whether the Native Client validator treats
	// the instruction as zeroing the upper 32 bits
	// of its outputs.
	NaClZeroExtendsOutputs *bool `json:"naclZeroExtendsOutputs,omitempty"`

	Operands        []Operand      `json:"operands"`
	ImplicitInputs  []string       `json:"implicitInputs,omitempty"`
	ImplicitOutputs []string       `json:"implicitOutputs,omitempty"`
	ISAExtensions   []ISAExtension `json:"isaExtensions,omitempty"`
	Encodings       []Encoding     `json:"encodings"`
}

// Operand returns the operand that f refers
// to, or nil if f is not a valid reference.
func (form *Form) Operand(f Field) *Operand {
	i, ok := f.OperandIndex()
	if !ok || i < 0 || i >= len(form.Operands) {
		return nil
	}

	return &form.Operands[i]
}

func (form *Form) String() string {
	if len(form.Operands) == 0 {
		return form.Name
	}

	types := make([]string, len(form.Operands))
	for i, op := range form.Operands {
		types[i] = op.Type
	}

	return form.Name + " " + strings.Join(types, ", ")
}

// ISAExtension is a CPU feature needed to
// execute an instruction form.
type ISAExtension struct {
	Name string `json:"name"`

	// Score orders extensions by when they were
	// introduced. Unknown extensions score zero.
	Score int `json:"score"`
}

// SortExtensions sorts extensions by score,
// keeping the declared order between equal
// scores.
func SortExtensions(exts []ISAExtension) {
	slices.SortStableFunc(exts, func(a, b ISAExtension) int {
		return cmp.Compare(a.Score, b.Score)
	})
}

// Latest returns the extension with the highest
// score, which is the most recent requirement.
func Latest(exts []ISAExtension) (ISAExtension, bool) {
	if len(exts) == 0 {
		return ISAExtension{}, false
	}

	latest := exts[0]
	for _, ext := range exts[1:] {
		if ext.Score > latest.Score {
			latest = ext
		}
	}

	return latest, true
}

func formPath(inst string, form, enc int) string {
	if enc < 0 {
		return fmt.Sprintf("%s[%d]", inst, form)
	}

	return fmt.Sprintf("%s[%d]/encoding[%d]", inst, form, enc)
}

// Validate checks the form's operands, its
// encodings, and the cancelling inputs rule.
func (form *Form) Validate() error {
	switch form.MMXMode {
	case "", MMXModeFPU, MMXModeMMX:
	default:
		return Errorf(IllegalEnumeratedValue, "mmx-mode", "invalid MMX mode %q", form.MMXMode)
	}

	switch form.XMMMode {
	case "", XMMModeSSE, XMMModeAVX:
	default:
		return Errorf(IllegalEnumeratedValue, "xmm-mode", "invalid XMM mode %q", form.XMMMode)
	}

	for i := range form.Operands {
		if err := form.Operands[i].Validate(); err != nil {
			return WithPath(err, fmt.Sprintf("operand[%d]", i))
		}
	}

	if form.CancellingInputs {
		if err := form.checkCancellingInputs(); err != nil {
			return err
		}
	}

	for i, enc := range form.Encodings {
		if err := enc.Validate(len(form.Operands)); err != nil {
			return WithPath(err, fmt.Sprintf("encoding[%d]", i))
		}
	}

	return nil
}

// checkCancellingInputs checks that the form has
// exactly two input operands, both registers of
// the same type.
func (form *Form) checkCancellingInputs() error {
	var inputs []*Operand
	for i := range form.Operands {
		if form.Operands[i].Input {
			inputs = append(inputs, &form.Operands[i])
		}
	}

	if len(inputs) != 2 {
		return Errorf(InvariantViolation, "cancelling-inputs", "form has %d input operands, want 2", len(inputs))
	}

	if !inputs[0].IsRegister() || !inputs[1].IsRegister() {
		return Errorf(InvariantViolation, "cancelling-inputs", "inputs %s and %s are not both registers", inputs[0].Type, inputs[1].Type)
	}

	if inputs[0].Type != inputs[1].Type {
		return Errorf(InvariantViolation, "cancelling-inputs", "inputs have different register types %s and %s", inputs[0].Type, inputs[1].Type)
	}

	return nil
}

// Validate checks every form of the instruction.
func (inst *Instruction) Validate() error {
	for i, form := range inst.Forms {
		path := formPath(inst.Name, i, -1)
		if form == nil {
			return WithPath(Errorf(InvariantViolation, "", "form %d is nil", i), inst.Name)
		}

		if form.Name != inst.Name {
			return WithPath(Errorf(InvariantViolation, "name", "form name %q does not match instruction", form.Name), path)
		}

		if err := form.Validate(); err != nil {
			return WithPath(err, path)
		}
	}

	return nil
}

// Validate checks the whole instruction set. It
// is used for graphs that were not produced by
// the loader, such as those read from JSON.
func (s *InstructionSet) Validate() error {
	for i, inst := range s.Instructions {
		if inst == nil {
			return Errorf(InvariantViolation, "", "instruction %d is nil", i)
		}

		if err := inst.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Forms returns the number of forms in s.
func (s *InstructionSet) Forms() int {
	var n int
	for _, inst := range s.Instructions {
		n += len(inst.Forms)
	}

	return n
}

// Fingerprint returns a hash of the set's
// canonical text. Two sets with the same
// fingerprint have the same structure and
// field values.
func (s *InstructionSet) Fingerprint() uint64 {
	h := xxhash.New()
	s.writeCanonical(h)
	return h.Sum64()
}

func (s *InstructionSet) writeCanonical(w io.Writer) {
	fmt.Fprintf(w, "set %q\n", s.Arch)
	for _, inst := range s.Instructions {
		fmt.Fprintf(w, "instruction %q %q\n", inst.Name, inst.Summary)
		for _, form := range inst.Forms {
			nacl := "unset"
			if form.NaClZeroExtendsOutputs != nil {
				nacl = fmt.Sprint(*form.NaClZeroExtendsOutputs)
			}

			fmt.Fprintf(w, "form %q gas=%q go=%q mmx=%q xmm=%q cancelling=%v nacl=%s\n",
				form.Name, form.GASName, form.GoName, form.MMXMode, form.XMMMode, form.CancellingInputs, nacl)
			for _, op := range form.Operands {
				fmt.Fprintf(w, "operand %q in=%v out=%v ext=%d conv=%v 1to16=%v\n",
					op.Type, op.Input, op.Output, op.ExtendedSize, op.AllowConversion, op.Allow1to16)
			}
			fmt.Fprintf(w, "implicit in=%q out=%q\n", form.ImplicitInputs, form.ImplicitOutputs)
			for _, ext := range form.ISAExtensions {
				fmt.Fprintf(w, "isa %q %d\n", ext.Name, ext.Score)
			}
			for _, enc := range form.Encodings {
				fmt.Fprintf(w, "encoding %s\n", enc)
			}
		}
	}
}
