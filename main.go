// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Command opcodes checks, inspects, and converts
// instruction set descriptions for x86, x86-64,
// and k1om, and generates the z80 description.
package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"firefly-os.dev/opcodes/cmd/check"
	"firefly-os.dev/opcodes/cmd/export"
	"firefly-os.dev/opcodes/cmd/inspect"
	"firefly-os.dev/opcodes/cmd/list"
	"firefly-os.dev/opcodes/cmd/z80gen"
	"firefly-os.dev/opcodes/internal/cli"
)

func init() {
	log.SetFlags(0)
	log.SetOutput(os.Stderr)
	log.SetPrefix("")
}

type Command struct {
	Name        string
	Description string
	Func        func(ctx context.Context, w io.Writer, args []string) error
}

var (
	commandsNames = make([]string, 0, 10)
	commandsMap   = make(map[string]*Command)
)

func RegisterCommand(name, description string, fun func(ctx context.Context, w io.Writer, args []string) error) {
	if commandsMap[name] != nil {
		panic("command " + name + " already registered")
	}

	if fun == nil {
		panic("command " + name + " registered with nil implementation")
	}

	commandsNames = append(commandsNames, name)
	commandsMap[name] = &Command{Name: name, Description: description, Func: fun}
}

func init() {
	RegisterCommand("check", "Load and validate instruction set descriptions", check.Main)
	RegisterCommand("export", "Convert an instruction set description to JSON, YAML, or XML", export.Main)
	RegisterCommand("inspect", "Print the forms and encodings of selected instructions", inspect.Main)
	RegisterCommand("list", "Print a table of instruction forms or ISA extensions", list.Main)
	RegisterCommand("z80gen", "Generate the z80 instruction set description from CSV tables", z80gen.Main)
}

// rootCommand returns the command tree. Each
// subcommand parses its own flags.
func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           cli.Program + " COMMAND [OPTIONS]",
		Short:         "Work with instruction set descriptions",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.CompletionOptions.DisableDefaultCmd = true

	sort.Strings(commandsNames)
	for _, name := range commandsNames {
		cmd := commandsMap[name]
		root.AddCommand(&cobra.Command{
			Use:                name,
			Short:              cmd.Description,
			DisableFlagParsing: true,
			RunE: func(c *cobra.Command, args []string) error {
				log.SetPrefix(name + ": ")
				return cmd.Func(c.Context(), c.OutOrStdout(), args)
			},
		})
	}

	return root
}

func main() {
	err := rootCommand().ExecuteContext(context.Background())
	if errors.Is(err, cli.ErrUsage) {
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}
