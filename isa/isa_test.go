// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package isa

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCancellingInputs(t *testing.T) {
	tests := []struct {
		Name     string
		Operands []Operand
		Want     ErrorKind // Zero for success.
	}{
		{
			Name: "xmm xmm",
			Operands: []Operand{
				{Type: "xmm", Output: true},
				{Type: "xmm", Input: true},
				{Type: "xmm", Input: true},
			},
		},
		{
			Name: "one input",
			Operands: []Operand{
				{Type: "r32", Input: true, Output: true},
				{Type: "imm32"},
			},
			Want: InvariantViolation,
		},
		{
			Name: "three inputs",
			Operands: []Operand{
				{Type: "xmm", Input: true, Output: true},
				{Type: "xmm", Input: true},
				{Type: "xmm", Input: true},
			},
			Want: InvariantViolation,
		},
		{
			Name: "memory input",
			Operands: []Operand{
				{Type: "xmm", Input: true, Output: true},
				{Type: "m128", Input: true},
			},
			Want: InvariantViolation,
		},
		{
			Name: "mixed registers",
			Operands: []Operand{
				{Type: "xmm", Output: true},
				{Type: "xmm", Input: true},
				{Type: "ymm", Input: true},
			},
			Want: InvariantViolation,
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			form := &Form{Name: "PXOR", GASName: "pxor", CancellingInputs: true, Operands: test.Operands}
			err := form.Validate()
			if test.Want == 0 {
				if err != nil {
					t.Fatalf("Validate(): unexpected error: %v", err)
				}

				return
			}

			if !errors.Is(err, test.Want) {
				t.Fatalf("Validate(): got error %v, want %s", err, test.Want)
			}
		})
	}
}

func TestFormValidate(t *testing.T) {
	tests := []struct {
		Name string
		Form *Form
		Want ErrorKind
		Path string
	}{
		{
			Name: "bad MMX mode",
			Form: &Form{Name: "EMMS", MMXMode: "SSE"},
			Want: IllegalEnumeratedValue,
		},
		{
			Name: "bad XMM mode",
			Form: &Form{Name: "PXOR", XMMMode: "MMX"},
			Want: IllegalEnumeratedValue,
		},
		{
			Name: "constant output",
			Form: &Form{Name: "SHL", Operands: []Operand{{Type: "r32", Input: true, Output: true}, {Type: "1", Output: true}}},
			Want: InvariantViolation,
			Path: "operand[1]",
		},
		{
			Name: "bad extended size",
			Form: &Form{Name: "ADD", Operands: []Operand{{Type: "imm8", ExtendedSize: 3}}},
			Want: IllegalEnumeratedValue,
			Path: "operand[0]",
		},
		{
			Name: "immediate out of range",
			Form: &Form{
				Name: "ADD",
				Operands: []Operand{
					{Type: "r32", Input: true, Output: true},
					{Type: "imm32"},
				},
				Encodings: []Encoding{
					{Components: []Component{
						&Opcode{Byte: 0x81},
						&ModRM{Mode: Concrete(0b11), Reg: Concrete(0), RM: OperandRef(0)},
						&Immediate{Size: 4, Value: OperandRef(2)},
					}},
				},
			},
			Want: OutOfRangeReference,
			Path: "encoding[0]/Immediate[2]",
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			err := test.Form.Validate()
			if !errors.Is(err, test.Want) {
				t.Fatalf("Validate(): got error %v, want %s", err, test.Want)
			}

			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("Validate(): got error %T, want *Error", err)
			}

			if e.Path != test.Path {
				t.Fatalf("Validate(): got path %q, want %q", e.Path, test.Path)
			}
		})
	}
}

func TestInstructionValidate(t *testing.T) {
	inst := &Instruction{
		Name: "ADD",
		Forms: []*Form{
			{Name: "ADD", GASName: "addl"},
			{Name: "SUB", GASName: "subl"},
		},
	}

	err := inst.Validate()
	if !errors.Is(err, InvariantViolation) {
		t.Fatalf("Validate(): got error %v, want %s", err, InvariantViolation)
	}

	const want = `ADD[1]: name: form name "SUB" does not match instruction`
	if err.Error() != want {
		t.Fatalf("Validate(): got error %q, want %q", err, want)
	}
}

func TestFormOperand(t *testing.T) {
	form := &Form{
		Name: "ADD",
		Operands: []Operand{
			{Type: "r32", Input: true, Output: true},
			{Type: "r32", Input: true},
		},
	}

	// References resolve to the form's own
	// operands, not copies.
	if got := form.Operand(OperandRef(1)); got != &form.Operands[1] {
		t.Fatalf("Operand(#1): got %p, want %p", got, &form.Operands[1])
	}

	for _, f := range []Field{Ignored(), Concrete(1), OperandRef(2), OperandRef(-1)} {
		if got := form.Operand(f); got != nil {
			t.Errorf("Operand(%s): got %s, want nil", f, got)
		}
	}

	if got, want := form.String(), "ADD r32, r32"; got != want {
		t.Errorf("String(): got %q, want %q", got, want)
	}
}

func TestExtensions(t *testing.T) {
	exts := []ISAExtension{
		{Name: "AVX2", Score: 71},
		{Name: "BMI", Score: 103},
		{Name: "CMOV", Score: 20},
		{Name: "Unknown", Score: 0},
	}

	latest, ok := Latest(exts)
	if !ok || latest.Name != "BMI" {
		t.Fatalf("Latest(): got %v, %v, want BMI", latest, ok)
	}

	SortExtensions(exts)
	want := []ISAExtension{
		{Name: "Unknown", Score: 0},
		{Name: "CMOV", Score: 20},
		{Name: "AVX2", Score: 71},
		{Name: "BMI", Score: 103},
	}

	if diff := cmp.Diff(want, exts); diff != "" {
		t.Fatalf("SortExtensions(): (-want, +got)\n%s", diff)
	}

	if _, ok := Latest(nil); ok {
		t.Fatalf("Latest(nil): unexpected success")
	}
}

func TestSetWithDefaults(t *testing.T) {
	set := sampleSet()
	before := set.Fingerprint()

	filled, err := set.WithDefaults(Defaults{
		VEX:   VEXDefaults{W: 0, L: 0, R: 1, X: 1, B: 1},
		REX:   REXDefaults{},
		ModRM: ModRMDefaults{Mode: 3},
	})
	if err != nil {
		t.Fatalf("WithDefaults(): %v", err)
	}

	if after := set.Fingerprint(); after != before {
		t.Fatalf("WithDefaults() modified its receiver")
	}

	if filled.Fingerprint() == before {
		t.Fatalf("WithDefaults() made no changes")
	}

	vex := filled.Instructions[0].Forms[0].Encodings[0].Components[0].(*VEX)
	if !vex.W.Equal(Concrete(0)) {
		t.Errorf("VEX.W: got %s, want 0", vex.W)
	}

	// References survive.
	if !vex.R.Equal(OperandRef(0)) || !vex.VVVV.Equal(OperandRef(1)) {
		t.Errorf("VEX references changed: %s", vex)
	}

	if err := filled.Validate(); err != nil {
		t.Fatalf("Validate(): %v", err)
	}

	if got, want := filled.Forms(), set.Forms(); got != want {
		t.Fatalf("Forms(): got %d, want %d", got, want)
	}
}
