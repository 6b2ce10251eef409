// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package cli

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"firefly-os.dev/opcodes/isa"
)

// Matcher selects instructions by mnemonic,
// using case-insensitive glob patterns.
type Matcher struct {
	patterns []glob.Glob
}

// NewMatcher compiles the patterns. A matcher
// with no patterns matches every mnemonic.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{patterns: make([]glob.Glob, 0, len(patterns))}
	for _, pattern := range patterns {
		g, err := glob.Compile(strings.ToUpper(pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %v", pattern, err)
		}

		m.patterns = append(m.patterns, g)
	}

	return m, nil
}

// Match returns whether the mnemonic matches
// any pattern.
func (m *Matcher) Match(mnemonic string) bool {
	if len(m.patterns) == 0 {
		return true
	}

	mnemonic = strings.ToUpper(mnemonic)
	for _, g := range m.patterns {
		if g.Match(mnemonic) {
			return true
		}
	}

	return false
}

// Filter returns a set containing the matching
// instructions of s, in order.
// The instructions are shared with s.
func (m *Matcher) Filter(s *isa.InstructionSet) *isa.InstructionSet {
	out := &isa.InstructionSet{Arch: s.Arch}
	for _, inst := range s.Instructions {
		if m.Match(inst.Name) {
			out.Instructions = append(out.Instructions, inst)
		}
	}

	return out
}
