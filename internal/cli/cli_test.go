// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package cli

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"firefly-os.dev/opcodes/isa"
)

func TestProfileFor(t *testing.T) {
	tests := []struct {
		Name     string
		Options  Options
		Filename string
		Want     string
	}{
		{
			Name:     "file name",
			Filename: "testdata/x86_64.xml",
			Want:     "x86-64",
		},
		{
			Name:     "file name with dash",
			Filename: "x86-64.xml",
			Want:     "x86-64",
		},
		{
			Name:     "upper case file name",
			Filename: "/tmp/K1OM.XML",
			Want:     "k1om",
		},
		{
			Name:     "arch flag",
			Options:  Options{Arch: "x86"},
			Filename: "x86-64.xml",
			Want:     "x86",
		},
		{
			Name:     "profile file",
			Options:  Options{Arch: "x86", Profile: "../../arch/profiles/k1om.toml"},
			Filename: "x86-64.xml",
			Want:     "k1om",
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			p, err := test.Options.ProfileFor(test.Filename)
			if err != nil {
				t.Fatalf("ProfileFor(%q): %v", test.Filename, err)
			}

			if p.Name != test.Want {
				t.Fatalf("ProfileFor(%q): got %s, want %s", test.Filename, p.Name, test.Want)
			}
		})
	}

	_, err := new(Options).ProfileFor("z80.xml")
	if err == nil {
		t.Fatalf("ProfileFor(%q): unexpected success", "z80.xml")
	}

	_, err = (&Options{Arch: "arm64"}).ProfileFor("x86.xml")
	if err == nil {
		t.Fatalf("ProfileFor(--arch=arm64): unexpected success")
	}
}

func TestParse(t *testing.T) {
	var opts Options
	flags := NewFlagSet("test", "FILE")
	opts.AddFlags(flags)
	flags.Usage = func() {}

	err := Parse(flags, []string{"--arch", "k1om", "--log-level=error", "a.xml", "b.xml"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := Options{Arch: "k1om", LogLevel: "error"}
	if diff := cmp.Diff(want, opts); diff != "" {
		t.Fatalf("Parse: options (-want, +got)\n%s", diff)
	}

	if diff := cmp.Diff([]string{"a.xml", "b.xml"}, flags.Args()); diff != "" {
		t.Fatalf("Parse: args (-want, +got)\n%s", diff)
	}

	for _, args := range [][]string{{"--help"}, {"--no-such-flag"}} {
		flags := NewFlagSet("test", "FILE")
		flags.Usage = func() {}
		err := Parse(flags, args)
		if !errors.Is(err, ErrUsage) {
			t.Errorf("Parse(%q): got error %v, want %v", args, err, ErrUsage)
		}
	}
}

func TestMatcher(t *testing.T) {
	set := &isa.InstructionSet{
		Arch: "x86-64",
		Instructions: []*isa.Instruction{
			{Name: "ADD"},
			{Name: "VADDPS"},
			{Name: "VPXOR"},
			{Name: "ADD"},
			{Name: "MOV"},
		},
	}

	tests := []struct {
		Name     string
		Patterns []string
		Want     []string
	}{
		{
			Name: "no patterns",
			Want: []string{"ADD", "VADDPS", "VPXOR", "ADD", "MOV"},
		},
		{
			Name:     "exact",
			Patterns: []string{"add"},
			Want:     []string{"ADD", "ADD"},
		},
		{
			Name:     "prefix",
			Patterns: []string{"V*"},
			Want:     []string{"VADDPS", "VPXOR"},
		},
		{
			Name:     "several",
			Patterns: []string{"mov", "*XOR"},
			Want:     []string{"VPXOR", "MOV"},
		},
		{
			Name:     "character class",
			Patterns: []string{"?[AP]*"},
			Want:     []string{"VADDPS", "VPXOR"},
		},
		{
			Name:     "none",
			Patterns: []string{"JMP"},
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			m, err := NewMatcher(test.Patterns)
			if err != nil {
				t.Fatalf("NewMatcher: %v", err)
			}

			var got []string
			for _, inst := range m.Filter(set).Instructions {
				got = append(got, inst.Name)
			}

			if diff := cmp.Diff(test.Want, got); diff != "" {
				t.Fatalf("Filter(): (-want, +got)\n%s", diff)
			}
		})
	}
}
