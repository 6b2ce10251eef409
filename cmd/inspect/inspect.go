// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package inspect prints the forms of selected
// instructions in a description file.
package inspect

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xlab/treeprint"

	"firefly-os.dev/opcodes/internal/cli"
	"firefly-os.dev/opcodes/isa"
	"firefly-os.dev/opcodes/loader"
)

// Main prints the instructions whose mnemonics
// match the given patterns.
func Main(ctx context.Context, w io.Writer, args []string) error {
	flags := cli.NewFlagSet("inspect", "FILE PATTERN...")

	var opts cli.Options
	var format string
	opts.AddFlags(flags)
	flags.StringVar(&format, "format", "tree", "Output format (tree, go).")

	err := cli.Parse(flags, args)
	if err != nil {
		return err
	}

	args = flags.Args()
	if len(args) < 2 {
		return cli.Usagef(flags, "want a file and at least one pattern")
	}

	var write func(*bytes.Buffer, *isa.InstructionSet)
	switch format {
	case "tree":
		write = printTree
	case "go":
		write = printGo
	default:
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

	match, err := cli.NewMatcher(args[1:])
	if err != nil {
		return err
	}

	res, err := loader.LoadFile(name, p, loader.WithLogger(log))
	if err != nil {
		return err
	}

	set := match.Filter(res.Set)
	if len(set.Instructions) == 0 {
		return fmt.Errorf("no instructions in %s match %s", name, strings.Join(args[1:], " "))
	}

	var buf bytes.Buffer
	write(&buf, set)
	_, err = w.Write(buf.Bytes())
	return err
}

func printTree(buf *bytes.Buffer, set *isa.InstructionSet) {
	tree := treeprint.NewWithRoot(set.Arch)
	for _, inst := range set.Instructions {
		label := inst.Name
		if inst.Summary != "" {
			label += ": " + inst.Summary
		}

		branch := tree.AddBranch(label)
		for _, form := range inst.Forms {
			addForm(branch, form)
		}
	}

	buf.WriteString(tree.String())
}

func addForm(tree treeprint.Tree, form *isa.Form) {
	branch := tree.AddMetaBranch(form.GASName, form.String())
	if form.MMXMode != "" {
		branch.AddNode("mmx mode: " + form.MMXMode)
	}
	if form.XMMMode != "" {
		branch.AddNode("xmm mode: " + form.XMMMode)
	}
	if form.CancellingInputs {
		branch.AddNode("cancelling inputs")
	}
	if form.NaClZeroExtendsOutputs != nil {
		branch.AddNode(fmt.Sprintf("nacl zero extends outputs: %v", *form.NaClZeroExtendsOutputs))
	}

	if len(form.Operands) != 0 {
		operands := branch.AddBranch("operands")
		for _, op := range form.Operands {
			operands.AddNode(op.String())
		}
	}

	if len(form.ImplicitInputs) != 0 {
		branch.AddNode("implicit inputs: " + strings.Join(form.ImplicitInputs, ", "))
	}
	if len(form.ImplicitOutputs) != 0 {
		branch.AddNode("implicit outputs: " + strings.Join(form.ImplicitOutputs, ", "))
	}

	if len(form.ISAExtensions) != 0 {
		names := make([]string, len(form.ISAExtensions))
		for i, ext := range form.ISAExtensions {
			names[i] = ext.Name
		}

		branch.AddNode("isa: " + strings.Join(names, ", "))
	}

	for i, enc := range form.Encodings {
		label := "encoding"
		if len(form.Encodings) > 1 {
			label = fmt.Sprintf("encoding %d", i)
		}

		encoding := branch.AddBranch(label)
		for _, c := range enc.Components {
			encoding.AddNode(c.String())
		}
	}
}

func printGo(buf *bytes.Buffer, set *isa.InstructionSet) {
	for i, inst := range set.Instructions {
		if i > 0 {
			// Add a spacer.
			buf.WriteByte('\n')
		}

		fmt.Fprintf(buf, "%s: []*Form{\n", inst.Name)
		for _, form := range inst.Forms {
			fmt.Fprintf(buf, "	{\n")
			fmt.Fprintf(buf, "		GASName: %q,\n", form.GASName)
			if form.GoName != "" {
				fmt.Fprintf(buf, "		GoName:  %q,\n", form.GoName)
			}
			if form.MMXMode != "" {
				fmt.Fprintf(buf, "		MMXMode: %q,\n", form.MMXMode)
			}
			if form.XMMMode != "" {
				fmt.Fprintf(buf, "		XMMMode: %q,\n", form.XMMMode)
			}
			if form.CancellingInputs {
				fmt.Fprintf(buf, "		CancellingInputs: %v,\n", form.CancellingInputs)
			}
			if form.NaClZeroExtendsOutputs != nil {
				fmt.Fprintf(buf, "		NaClZeroExtendsOutputs: %v,\n", *form.NaClZeroExtendsOutputs)
			}
			if len(form.Operands) > 0 {
				fmt.Fprintf(buf, "		Operands: [\n")
				for _, op := range form.Operands {
					fmt.Fprintf(buf, "			%q,\n", op.String())
				}
				fmt.Fprintf(buf, "		],\n")
			}
			if len(form.ImplicitInputs) > 0 {
				fmt.Fprintf(buf, "		ImplicitInputs:  %q,\n", form.ImplicitInputs)
			}
			if len(form.ImplicitOutputs) > 0 {
				fmt.Fprintf(buf, "		ImplicitOutputs: %q,\n", form.ImplicitOutputs)
			}
			if len(form.ISAExtensions) > 0 {
				fmt.Fprintf(buf, "		ISA: [\n")
				for _, ext := range form.ISAExtensions {
					fmt.Fprintf(buf, "			{%q, %d},\n", ext.Name, ext.Score)
				}
				fmt.Fprintf(buf, "		],\n")
			}
			fmt.Fprintf(buf, "		Encodings: [\n")
			for _, enc := range form.Encodings {
				fmt.Fprintf(buf, "			%s,\n", enc)
			}
			fmt.Fprintf(buf, "		],\n")
			fmt.Fprintf(buf, "	},\n")
		}
		fmt.Fprintf(buf, "}\n")
	}
}
