// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package loader

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"firefly-os.dev/opcodes/isa"
)

func TestMarshalRoundTrip(t *testing.T) {
	for _, test := range fixtures {
		t.Run(test.arch, func(t *testing.T) {
			p := profile(t, test.arch)
			data, err := Marshal(test.want, p)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}

			res, err := Load(bytes.NewReader(data), p, quiet())
			if err != nil {
				t.Fatalf("Load: %v\n%s", err, data)
			}

			if diff := cmp.Diff(test.want, res.Set); diff != "" {
				t.Fatalf("Load(Marshal()): (-want, +got)\n%s", diff)
			}

			if res.Set.Fingerprint() != test.want.Fingerprint() {
				t.Fatalf("Load(Marshal()): fingerprint changed")
			}
		})
	}
}

func TestMarshalDialect(t *testing.T) {
	set := &isa.InstructionSet{
		Instructions: []*isa.Instruction{
			{
				Name: "MOV",
				Forms: []*isa.Form{
					{
						Name:    "MOV",
						GASName: "movl",
						Operands: []isa.Operand{
							{Type: "m32", Output: true},
							{Type: "imm32"},
						},
						Encodings: []isa.Encoding{
							components(
								&isa.Opcode{Byte: 0xc7},
								&isa.ModRM{Mode: ref0, Reg: zero, RM: ref0},
								&isa.Immediate{Size: 4, Value: ref1},
							),
						},
					},
				},
			},
		},
	}

	tests := []struct {
		Arch string
		Want []string
	}{
		{
			Arch: "x86-64",
			Want: []string{
				`<Opcode byte="C7"></Opcode>`,
				`<ModRM mode-operand-number="0" reg="0" rm-operand-number="0"></ModRM>`,
				`<Immediate size="4" operand-number="1"></Immediate>`,
			},
		},
		{
			Arch: "x86",
			Want: []string{
				`<Opcode byte="C7"></Opcode>`,
				`<ModRM mode="#0" reg="0" rm="#0"></ModRM>`,
				`<Immediate size="4" value="#1"></Immediate>`,
			},
		},
	}

	for _, test := range tests {
		t.Run(test.Arch, func(t *testing.T) {
			set.Arch = test.Arch
			data, err := Marshal(set, profile(t, test.Arch))
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}

			text := string(data)
			if !strings.HasPrefix(text, `<?xml version="1.0" encoding="UTF-8"?>`) {
				t.Errorf("Marshal: missing XML header:\n%s", text)
			}

			for _, want := range test.Want {
				if !strings.Contains(text, want) {
					t.Errorf("Marshal: output does not contain %s:\n%s", want, text)
				}
			}
		})
	}
}

func TestMarshalErrors(t *testing.T) {
	form := func(cs ...isa.Component) *isa.InstructionSet {
		return &isa.InstructionSet{
			Arch: "x86-64",
			Instructions: []*isa.Instruction{
				{
					Name: "ADD",
					Forms: []*isa.Form{
						{
							Name:    "ADD",
							GASName: "addl",
							Operands: []isa.Operand{
								{Type: "r32", Input: true, Output: true},
								{Type: "r32", Input: true},
							},
							Encodings: []isa.Encoding{components(cs...)},
						},
					},
				},
			},
		}
	}

	tests := []struct {
		Name string
		Arch string
		Set  *isa.InstructionSet
		Want isa.ErrorKind
	}{
		{
			Name: "wrong architecture",
			Arch: "x86",
			Set:  form(&isa.Opcode{Byte: 0x01}),
			Want: isa.SchemaMismatch,
		},
		{
			Name: "unused component",
			Arch: "x86-64",
			Set:  form(&isa.EVEX{}, &isa.Opcode{Byte: 0x01}),
			Want: isa.SchemaMismatch,
		},
		{
			Name: "disallowed literal",
			Arch: "x86-64",
			Set:  form(&isa.Opcode{Byte: 0x01}, &isa.ModRM{Mode: zero, Reg: ref0, RM: ref1}),
			Want: isa.IllegalEnumeratedValue,
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			_, err := Marshal(test.Set, profile(t, test.Arch))
			if !errors.Is(err, test.Want) {
				t.Fatalf("Marshal: got error %v, want %v", err, test.Want)
			}
		})
	}
}
