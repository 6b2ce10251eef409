// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package export converts a description file to
// JSON, YAML, or normalised XML.
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"firefly-os.dev/opcodes/arch"
	"firefly-os.dev/opcodes/internal/cli"
	"firefly-os.dev/opcodes/isa"
	"firefly-os.dev/opcodes/loader"
)

var formats = map[string]func(io.Writer, *isa.InstructionSet, *arch.Profile) error{
	"json": func(w io.Writer, s *isa.InstructionSet, _ *arch.Profile) error {
		return isa.WriteJSON(w, s)
	},
	"yaml": func(w io.Writer, s *isa.InstructionSet, _ *arch.Profile) error {
		return isa.WriteYAML(w, s)
	},
	"xml": func(w io.Writer, s *isa.InstructionSet, p *arch.Profile) error {
		data, err := loader.Marshal(s, p)
		if err != nil {
			return err
		}

		_, err = w.Write(data)
		return err
	},
}

// Main loads a description file and writes it
// in the selected format.
func Main(ctx context.Context, w io.Writer, args []string) error {
	flags := cli.NewFlagSet("export", "FILE")

	var opts cli.Options
	var format, output string
	var defaults bool
	opts.AddFlags(flags)
	flags.StringVar(&format, "format", "json", "Output format (json, yaml, xml).")
	flags.StringVarP(&output, "output", "o", "", "Write to the named file instead of standard output.")
	flags.BoolVar(&defaults, "defaults", false, "Replace ignored fields with the architecture's default values.")

	err := cli.Parse(flags, args)
	if err != nil {
		return err
	}

	args = flags.Args()
	if len(args) != 1 {
		return cli.Usagef(flags, "want exactly one description file")
	}

	write, ok := formats[format]
	if !ok {
		return cli.Usagef(flags, "invalid format %q", format)
	}

	log, err := opts.Logger()
	if err != nil {
		return err
	}

	name := args[0]
	p, err := opts.ProfileFor(name)
	if err != nil {
		return err
	}

	res, err := loader.LoadFile(name, p, loader.WithLogger(log))
	if err != nil {
		return err
	}

	set := res.Set
	if defaults {
		set, err = set.WithDefaults(p.Defaults)
		if err != nil {
			return fmt.Errorf("%s: failed to apply defaults: %w", name, err)
		}
	}

	var buf bytes.Buffer
	err = write(&buf, set, p)
	if err != nil {
		return fmt.Errorf("failed to export %s: %w", name, err)
	}

	if output != "" {
		err = os.WriteFile(output, buf.Bytes(), 0o644)
		if err != nil {
			return fmt.Errorf("failed to write %s: %v", output, err)
		}

		log.WithField("output", output).Debugf("wrote %d bytes", buf.Len())

		return nil
	}

	_, err = w.Write(buf.Bytes())
	return err
}
