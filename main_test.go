// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"firefly-os.dev/opcodes/internal/cli"
)

func TestCommands(t *testing.T) {
	root := rootCommand()
	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}

	want := []string{"check", "export", "inspect", "list", "z80gen"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("rootCommand(): commands (-want, +got)\n%s", diff)
	}
}

func TestDispatch(t *testing.T) {
	root := rootCommand()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"check", "--log-level=error", "loader/testdata/k1om.xml"})
	err := root.Execute()
	if err != nil {
		t.Fatalf("check: %v", err)
	}

	if got := buf.String(); !strings.HasPrefix(got, "loader/testdata/k1om.xml: arch=k1om instructions=2 forms=2 warnings=0 ") {
		t.Fatalf("check: got %q", got)
	}

	root = rootCommand()
	root.SetArgs([]string{"check"})
	err = root.Execute()
	if !errors.Is(err, cli.ErrUsage) {
		t.Fatalf("check: got error %v, want %v", err, cli.ErrUsage)
	}
}
