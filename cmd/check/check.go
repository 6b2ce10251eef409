// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package check validates instruction set description
// files.
package check

import (
	"context"
	"fmt"
	"io"

	"firefly-os.dev/opcodes/internal/cli"
	"firefly-os.dev/opcodes/loader"
)

// Main loads and validates each description file,
// printing a summary line for each.
func Main(ctx context.Context, w io.Writer, args []string) error {
	flags := cli.NewFlagSet("check", "FILE...")

	var opts cli.Options
	var strict bool
	opts.AddFlags(flags)
	flags.BoolVar(&strict, "strict", false, "Treat skipped encoding components as errors.")

	err := cli.Parse(flags, args)
	if err != nil {
		return err
	}

	filenames := flags.Args()
	if len(filenames) == 0 {
		return cli.Usagef(flags, "no description files")
	}

	log, err := opts.Logger()
	if err != nil {
		return err
	}

	sources := make([]loader.Source, len(filenames))
	for i, name := range filenames {
		p, err := opts.ProfileFor(name)
		if err != nil {
			return err
		}

		sources[i] = loader.Source{Path: name, Profile: p}
	}

	results, err := loader.LoadFiles(ctx, sources, loader.WithLogger(log))
	if err != nil {
		return err
	}

	var skipped int
	for i, res := range results {
		set := res.Set
		skipped += len(res.Warnings)
		_, err = fmt.Fprintf(w, "%s: arch=%s instructions=%d forms=%d warnings=%d fingerprint=%016x\n",
			sources[i].Path, set.Arch, len(set.Instructions), set.Forms(), len(res.Warnings), set.Fingerprint())
		if err != nil {
			return err
		}
	}

	if strict && skipped > 0 {
		return fmt.Errorf("%d encoding components were skipped", skipped)
	}

	return nil
}
