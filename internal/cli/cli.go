// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package cli contains helpers shared by the
// opcodes subcommands.
package cli

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"firefly-os.dev/opcodes/arch"
	"firefly-os.dev/opcodes/internal/logging"
)

// ErrUsage indicates that a command was invoked
// incorrectly. The usage message has already
// been printed.
var ErrUsage = errors.New("invalid usage")

// Program is the name of the running program.
var Program = filepath.Base(os.Args[0])

// NewFlagSet returns a flag set for the named
// subcommand. The usage string describes the
// positional arguments.
func NewFlagSet(name, usage string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.SetOutput(os.Stderr)
	flags.Usage = func() {
		log.Printf("Usage:\n  %s %s [OPTIONS] %s\n\nOptions:\n%s", Program, name, usage, flags.FlagUsages())
	}

	return flags
}

// Parse parses the command-line arguments,
// returning an error wrapping ErrUsage if they
// are invalid or help was requested.
func Parse(flags *pflag.FlagSet, args []string) error {
	err := flags.Parse(args)
	if errors.Is(err, pflag.ErrHelp) {
		return ErrUsage
	}

	if err != nil {
		flags.Usage()
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	return nil
}

// Usagef prints the usage message and returns
// an error wrapping ErrUsage.
func Usagef(flags *pflag.FlagSet, format string, v ...any) error {
	flags.Usage()
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, v...))
}

// Options are the flags common to every command
// that reads instruction set descriptions.
type Options struct {
	Arch     string
	Profile  string
	LogLevel string
}

// AddFlags registers the options with flags.
func (o *Options) AddFlags(flags *pflag.FlagSet) {
	flags.StringVar(&o.Arch, "arch", "", "Architecture of the descriptions ("+strings.Join(arch.Names(), ", ")+"). Inferred from the file name if unset.")
	flags.StringVar(&o.Profile, "profile", "", "Read the architecture profile from a TOML file.")
	flags.StringVar(&o.LogLevel, "log-level", "warn", "Minimum level of log messages ("+strings.Join(logging.Levels, ", ")+").")
}

// Logger returns a logger writing to standard
// error at the selected level.
func (o *Options) Logger() (*logrus.Logger, error) {
	level, err := logging.ParseLevel(o.LogLevel)
	if err != nil {
		return nil, err
	}

	return logging.New(os.Stderr, level), nil
}

// ProfileFor returns the profile to use for the
// named description file. A profile file takes
// precedence over --arch, which takes precedence
// over the file name.
func (o *Options) ProfileFor(filename string) (*arch.Profile, error) {
	switch {
	case o.Profile != "":
		return arch.Open(o.Profile)
	case o.Arch != "":
		return arch.Lookup(o.Arch)
	default:
		return Infer(filename)
	}
}

// Infer returns the built-in profile named by
// a description file, such as x86_64.xml.
func Infer(filename string) (*arch.Profile, error) {
	base := filepath.Base(filename)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.ReplaceAll(strings.ToLower(name), "_", "-")
	p, err := arch.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("cannot infer the architecture of %s: use --arch or --profile", filename)
	}

	return p, nil
}
