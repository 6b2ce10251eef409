// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package isa

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldKind describes the state of a Field.
type FieldKind uint8

const (
	FieldIgnored  FieldKind = iota // The value is supplied later, by the encoder.
	FieldConcrete                  // The value is fixed by the description.
	FieldOperand                   // The value comes from an operand of the form.
)

func (k FieldKind) String() string {
	switch k {
	case FieldIgnored:
		return "ignored"
	case FieldConcrete:
		return "concrete"
	case FieldOperand:
		return "operand"
	default:
		return fmt.Sprintf("FieldKind(%d)", k)
	}
}

// Field is a bit field in an encoding component.
//
// A field is either a concrete value, ignored,
// or a reference to one of the operands of the
// form that owns the component. The zero Field
// is ignored. Optional references, such as an
// opcode addend, use the ignored state for
// "none".
type Field struct {
	kind  FieldKind
	value uint8
	index int
}

// Concrete returns a field with a fixed value.
func Concrete(v uint8) Field {
	return Field{kind: FieldConcrete, value: v}
}

// Ignored returns an ignored field.
func Ignored() Field {
	return Field{}
}

// OperandRef returns a field that refers to
// the operand with index i.
func OperandRef(i int) Field {
	return Field{kind: FieldOperand, index: i}
}

func (f Field) Kind() FieldKind  { return f.kind }
func (f Field) IsIgnored() bool  { return f.kind == FieldIgnored }
func (f Field) IsConcrete() bool { return f.kind == FieldConcrete }
func (f Field) IsOperand() bool  { return f.kind == FieldOperand }

// Value returns the field's concrete value.
func (f Field) Value() (v uint8, ok bool) {
	if f.kind != FieldConcrete {
		return 0, false
	}

	return f.value, true
}

// OperandIndex returns the index of the operand
// the field refers to.
func (f Field) OperandIndex() (i int, ok bool) {
	if f.kind != FieldOperand {
		return 0, false
	}

	return f.index, true
}

// Equal reports whether f and g are identical.
func (f Field) Equal(g Field) bool {
	return f == g
}

// orDefault returns f, or a concrete field
// with value v if f is ignored.
func (f Field) orDefault(v uint8) Field {
	if f.kind == FieldIgnored {
		return Concrete(v)
	}

	return f
}

func (f Field) String() string {
	switch f.kind {
	case FieldIgnored:
		return "ignored"
	case FieldConcrete:
		return strconv.Itoa(int(f.value))
	case FieldOperand:
		return "#" + strconv.Itoa(f.index)
	default:
		return fmt.Sprintf("Field(%d)", f.kind)
	}
}

// bits formats f, printing any concrete value
// as a binary number with the given width.
func (f Field) bits(width int) string {
	if f.kind == FieldConcrete {
		return fmt.Sprintf("%0*b", width, f.value)
	}

	return f.String()
}

// ParseField parses the textual form of a field:
// "ignored", "#i" for a reference to operand i,
// or a literal value in the given base.
func ParseField(s string, base int) (Field, error) {
	if s == "ignored" {
		return Ignored(), nil
	}

	if rest, ok := strings.CutPrefix(s, "#"); ok {
		i, err := strconv.Atoi(rest)
		if err != nil || i < 0 {
			return Field{}, fmt.Errorf("invalid operand reference %q", s)
		}

		return OperandRef(i), nil
	}

	v, err := strconv.ParseUint(s, base, 8)
	if err != nil {
		return Field{}, fmt.Errorf("invalid base %d value %q", base, s)
	}

	return Concrete(uint8(v)), nil
}

// checkBits checks that a field fits in the
// given number of bits and that any operand
// reference is in range.
func checkBits(name string, f Field, width uint, operands int, refOK bool) error {
	switch f.kind {
	case FieldConcrete:
		if uint(f.value) >= 1<<width {
			return Errorf(IllegalEnumeratedValue, name, "value %#b does not fit in %d bits", f.value, width)
		}
	case FieldOperand:
		if !refOK {
			return Errorf(IllegalEnumeratedValue, name, "cannot refer to an operand")
		}

		return checkRef(name, f, operands)
	}

	return nil
}

// checkOperandOnly checks a field that may only
// hold an operand reference. If optional is set,
// the field may also be ignored.
func checkOperandOnly(name string, f Field, operands int, optional bool) error {
	switch f.kind {
	case FieldIgnored:
		if !optional {
			return Errorf(MissingRequiredField, name, "missing operand reference")
		}
	case FieldConcrete:
		return Errorf(IllegalEnumeratedValue, name, "must refer to an operand, found literal %d", f.value)
	case FieldOperand:
		return checkRef(name, f, operands)
	}

	return nil
}

func checkRef(name string, f Field, operands int) error {
	if f.index < 0 || f.index >= operands {
		return Errorf(OutOfRangeReference, name, "operand %d out of range: form has %d operands", f.index, operands)
	}

	return nil
}
