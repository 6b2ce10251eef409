// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package z80gen generates the z80 instruction set
// description from its CSV tables.
package z80gen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"firefly-os.dev/opcodes/internal/cli"
	"firefly-os.dev/opcodes/z80"
)

// Main reads the forms and descriptions tables
// and writes the XML description.
func Main(ctx context.Context, w io.Writer, args []string) error {
	flags := cli.NewFlagSet("z80gen", "FORMS.csv DESCRIPTIONS.csv")

	var output string
	flags.StringVarP(&output, "output", "o", "", "Write to the named file instead of standard output.")

	err := cli.Parse(flags, args)
	if err != nil {
		return err
	}

	args = flags.Args()
	if len(args) != 2 {
		return cli.Usagef(flags, "want a forms table and a descriptions table")
	}

	forms, err := os.Open(args[0])
	if err != nil {
		return err
	}

	defer forms.Close()

	descriptions, err := os.Open(args[1])
	if err != nil {
		return err
	}

	defer descriptions.Close()

	var buf bytes.Buffer
	err = z80.Generate(forms, descriptions, &buf)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	if output != "" {
		err = os.WriteFile(output, buf.Bytes(), 0o644)
		if err != nil {
			return fmt.Errorf("failed to write %s: %v", output, err)
		}

		return nil
	}

	_, err = w.Write(buf.Bytes())
	return err
}
