// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package isa

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a problem found in an
// instruction set description.
//
// An ErrorKind is itself an error, so callers
// can test for a class of problem with
// errors.Is:
//
//	if errors.Is(err, isa.OutOfRangeReference) {
//		...
//	}
type ErrorKind uint8

const (
	_ ErrorKind = iota

	// SchemaMismatch means the description is for
	// a different architecture or has the wrong
	// structure.
	SchemaMismatch

	// MissingRequiredField means a mandatory field
	// was not supplied.
	MissingRequiredField

	// ConflictingFieldSpecification means a field
	// was given both as a literal and as an operand
	// reference, or two aliases disagree.
	ConflictingFieldSpecification

	// OutOfRangeReference means an operand number
	// does not name an operand of the form.
	OutOfRangeReference

	// IllegalEnumeratedValue means a value is
	// outside its legal set or does not parse.
	IllegalEnumeratedValue

	// InvariantViolation means a form or encoding
	// breaks a structural rule, such as having two
	// extended prefixes.
	InvariantViolation

	// UnknownComponentTag means an encoding component
	// was not recognised. It is never fatal.
	UnknownComponentTag
)

func (k ErrorKind) String() string {
	switch k {
	case SchemaMismatch:
		return "SchemaMismatch"
	case MissingRequiredField:
		return "MissingRequiredField"
	case ConflictingFieldSpecification:
		return "ConflictingFieldSpecification"
	case OutOfRangeReference:
		return "OutOfRangeReference"
	case IllegalEnumeratedValue:
		return "IllegalEnumeratedValue"
	case InvariantViolation:
		return "InvariantViolation"
	case UnknownComponentTag:
		return "UnknownComponentTag"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

func (k ErrorKind) Error() string {
	return k.String()
}

// Fatal returns whether a problem of kind k
// aborts loading.
func (k ErrorKind) Fatal() bool {
	return k != UnknownComponentTag
}

// Error describes a single problem with an
// instruction set description.
type Error struct {
	Kind  ErrorKind
	Path  string // Location, such as "ADD[0]/encoding[1]/ModRM".
	Field string // Any field or attribute involved.
	Msg   string
}

// Errorf returns an *Error of the given kind.
func Errorf(kind ErrorKind, field, format string, v ...any) *Error {
	return &Error{Kind: kind, Field: field, Msg: fmt.Sprintf(format, v...)}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}

	b.WriteString(e.Msg)

	return b.String()
}

// Unwrap returns the error's kind, which allows
// errors.Is to match against an ErrorKind.
func (e *Error) Unwrap() error {
	return e.Kind
}

// WithPath returns err with path prepended to
// its location. Errors that are not an *Error
// are returned unchanged.
func WithPath(err error, path string) error {
	var e *Error
	if err == nil || path == "" || !errors.As(err, &e) {
		return err
	}

	c := *e
	if c.Path == "" {
		c.Path = path
	} else {
		c.Path = path + "/" + c.Path
	}

	return &c
}
