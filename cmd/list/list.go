// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package list prints tables of instruction forms
// and ISA extensions.
package list

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"firefly-os.dev/opcodes/arch"
	"firefly-os.dev/opcodes/internal/cli"
	"firefly-os.dev/opcodes/loader"
)

// Main prints a table of the instruction forms
// in a description file, or of the ISA extensions
// known to an architecture.
func Main(ctx context.Context, w io.Writer, args []string) error {
	flags := cli.NewFlagSet("list", "FILE [PATTERN...]")

	var opts cli.Options
	var extensions bool
	opts.AddFlags(flags)
	flags.BoolVar(&extensions, "isa", false, "List the architecture's ISA extensions in the order they were introduced.")

	err := cli.Parse(flags, args)
	if err != nil {
		return err
	}

	args = flags.Args()
	if extensions {
		var name string
		if len(args) > 0 {
			name = args[0]
		} else if opts.Arch == "" && opts.Profile == "" {
			return cli.Usagef(flags, "--isa needs a file, --arch, or --profile")
		}

		p, err := opts.ProfileFor(name)
		if err != nil {
			return err
		}

		listExtensions(w, p)
		return nil
	}

	if len(args) == 0 {
		return cli.Usagef(flags, "no description file")
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

	match, err := cli.NewMatcher(args[1:])
	if err != nil {
		return err
	}

	res, err := loader.LoadFile(name, p, loader.WithLogger(log))
	if err != nil {
		return err
	}

	table := newTable(w, "Mnemonic", "Operands", "GAS", "Go", "ISA", "Encodings")
	for _, inst := range match.Filter(res.Set).Instructions {
		for _, form := range inst.Forms {
			operands := make([]string, len(form.Operands))
			for i, op := range form.Operands {
				operands[i] = op.Type
			}

			exts := make([]string, len(form.ISAExtensions))
			for i, ext := range form.ISAExtensions {
				exts[i] = ext.Name
			}

			table.Append([]string{
				inst.Name,
				strings.Join(operands, ", "),
				form.GASName,
				form.GoName,
				strings.Join(exts, ", "),
				strconv.Itoa(len(form.Encodings)),
			})
		}
	}

	table.Render()

	return nil
}

func listExtensions(w io.Writer, p *arch.Profile) {
	table := newTable(w, "Extension", "Score")
	for _, ext := range p.Extensions() {
		table.Append([]string{ext.Name, strconv.Itoa(ext.Score)})
	}

	table.Render()
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	return table
}
