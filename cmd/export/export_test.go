// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package export

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"firefly-os.dev/opcodes/arch"
	"firefly-os.dev/opcodes/internal/cli"
	"firefly-os.dev/opcodes/isa"
	"firefly-os.dev/opcodes/loader"
)

const descriptions = "../../loader/testdata/x86-64.xml"

func load(t *testing.T, name string) (*isa.InstructionSet, *arch.Profile) {
	t.Helper()
	p, err := arch.Lookup("x86-64")
	if err != nil {
		t.Fatal(err)
	}

	res, err := loader.LoadFile(name, p)
	if err != nil {
		t.Fatalf("LoadFile(%s): %v", name, err)
	}

	return res.Set, p
}

func TestExportJSON(t *testing.T) {
	want, _ := load(t, descriptions)

	var buf bytes.Buffer
	err := Main(context.Background(), &buf, []string{descriptions})
	if err != nil {
		t.Fatalf("Main: %v", err)
	}

	got, err := isa.FromJSON(&buf)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Main(): (-want, +got)\n%s", diff)
	}
}

func TestExportDefaults(t *testing.T) {
	set, p := load(t, descriptions)
	want, err := set.WithDefaults(p.Defaults)
	if err != nil {
		t.Fatalf("WithDefaults: %v", err)
	}

	var buf bytes.Buffer
	err = Main(context.Background(), &buf, []string{"--defaults", "--format=json", descriptions})
	if err != nil {
		t.Fatalf("Main: %v", err)
	}

	got, err := isa.FromJSON(&buf)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Main(--defaults): (-want, +got)\n%s", diff)
	}

	// VPXOR's VEX.W is ignored in the description.
	vex := got.Instructions[5].Forms[0].Encodings[0].Components[0].(*isa.VEX)
	if !vex.W.Equal(isa.Concrete(0)) {
		t.Fatalf("Main(--defaults): VPXOR VEX.W is %s, want 0", vex.W)
	}

	// The XML form must load back to the same set.
	name := filepath.Join(t.TempDir(), "x86-64.xml")
	buf.Reset()
	err = Main(context.Background(), &buf, []string{"--defaults", "--format", "xml", "-o", name, descriptions})
	if err != nil {
		t.Fatalf("Main(--format=xml): %v", err)
	}

	if buf.Len() != 0 {
		t.Fatalf("Main(-o): unexpected output:\n%s", buf.String())
	}

	reloaded, _ := load(t, name)
	if diff := cmp.Diff(want, reloaded); diff != "" {
		t.Fatalf("Main(--format=xml): (-want, +got)\n%s", diff)
	}
}

func TestExportYAML(t *testing.T) {
	var buf bytes.Buffer
	err := Main(context.Background(), &buf, []string{"--format=yaml", descriptions})
	if err != nil {
		t.Fatalf("Main: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"arch: x86-64\n", "  - name: ADD\n", "gasName: vpxor\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("Main(--format=yaml): output does not contain %q:\n%s", want, out)
		}
	}
}

func TestExportErrors(t *testing.T) {
	tests := []struct {
		Name  string
		Args  []string
		Usage bool
	}{
		{
			Name:  "no file",
			Usage: true,
		},
		{
			Name:  "two files",
			Args:  []string{descriptions, descriptions},
			Usage: true,
		},
		{
			Name:  "bad format",
			Args:  []string{"--format=toml", descriptions},
			Usage: true,
		},
		{
			Name: "wrong architecture",
			Args: []string{"--arch=x86", descriptions},
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			var buf bytes.Buffer
			err := Main(context.Background(), &buf, test.Args)
			if err == nil {
				t.Fatalf("Main(%q): unexpected success", test.Args)
			}

			if got := errors.Is(err, cli.ErrUsage); got != test.Usage {
				t.Fatalf("Main(%q): got error %v, want usage error: %v", test.Args, err, test.Usage)
			}
		})
	}
}
