// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package loader

import (
	"strconv"
	"strings"

	"firefly-os.dev/opcodes/arch"
	"firefly-os.dev/opcodes/isa"
)

// refSuffix is appended to a field name to give
// the attribute that refers to an operand by
// number, as in reg-operand-number="1".
const refSuffix = "-operand-number"

// Value fields of immediates and offsets are
// referenced by a bare operand-number attribute.
const valueRef = "operand-number"

// bxRef refers to a memory operand whose base
// and index registers set REX.B and REX.X.
const bxRef = "BX-operand-number"

// reader reads the attributes of an element. The
// first error is kept and later reads return zero
// values, so a component can be read with a
// single check at the end.
type reader struct {
	n       *node
	tag     string // Component tag, or empty.
	profile *arch.Profile
	err     error
}

func newReader(n *node, p *arch.Profile) *reader {
	return &reader{n: n, profile: p}
}

func newComponentReader(n *node, p *arch.Profile) *reader {
	return &reader{n: n, tag: n.Name, profile: p}
}

func (r *reader) fail(kind isa.ErrorKind, field, format string, v ...any) {
	if r.err == nil {
		r.err = isa.Errorf(kind, field, format, v...)
	}
}

func (r *reader) required(name string) bool {
	return r.tag != "" && r.profile.Requires(r.tag, name)
}

// text returns the named attribute. If it is
// absent and must be present, the reader fails.
func (r *reader) text(name string, mandatory bool) (string, bool) {
	if r.err != nil {
		return "", false
	}

	s, ok := r.n.attr(name)
	if !ok && (mandatory || r.required(name)) {
		r.fail(isa.MissingRequiredField, name, "missing %s attribute", name)
	}

	return s, ok
}

// boolean reads an attribute that must be
// exactly "true" or "false". Absent attributes
// are false.
func (r *reader) boolean(name string, mandatory bool) bool {
	s, ok := r.text(name, mandatory)
	if !ok {
		return false
	}

	switch s {
	case "true":
		return true
	case "false":
		return false
	}

	r.fail(isa.IllegalEnumeratedValue, name, "invalid boolean %q: must be \"true\" or \"false\"", s)

	return false
}

// optionalBoolean is like boolean, but returns
// nil if the attribute is absent.
func (r *reader) optionalBoolean(name string) *bool {
	if !r.n.has(name) {
		return nil
	}

	b := r.boolean(name, false)
	return &b
}

// integer reads a decimal attribute.
func (r *reader) integer(name string) int {
	s, ok := r.text(name, false)
	if !ok {
		return 0
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		r.fail(isa.IllegalEnumeratedValue, name, "invalid decimal number %q", s)
		return 0
	}

	return v
}

// hex reads a byte written in hexadecimal.
func (r *reader) hex(name string) byte {
	s, ok := r.text(name, false)
	if !ok {
		return 0
	}

	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(digits, 16, 8)
	if err != nil {
		r.fail(isa.IllegalEnumeratedValue, name, "invalid hexadecimal byte %q", s)
		return 0
	}

	return byte(v)
}

// bits reads a binary value with the given
// width, such as a VEX pp field.
func (r *reader) bits(name string, width int) uint8 {
	s, ok := r.text(name, false)
	if !ok {
		return 0
	}

	v, err := strconv.ParseUint(s, 2, width)
	if err != nil {
		r.fail(isa.IllegalEnumeratedValue, name, "invalid %d-bit binary value %q", width, s)
		return 0
	}

	return uint8(v)
}

// vexType reads the type of a VEX component,
// which defaults to VEX.
func (r *reader) vexType() isa.VEXType {
	s, ok := r.text("type", false)
	if !ok {
		return isa.VEXTypeVEX
	}

	typ, ok := isa.VEXTypes[s]
	if !ok {
		r.fail(isa.IllegalEnumeratedValue, "type", "invalid VEX type %q: must be \"VEX\" or \"XOP\"", s)
	}

	return typ
}

// field reads a component field. The field can
// be written as a literal or "#i" reference in
// the attribute with its own name, or as an
// operand number in the name-operand-number
// attribute or any of the aliases. Supplying
// more than one spelling is a conflict.
func (r *reader) field(name string, base int, aliases ...string) isa.Field {
	if r.err != nil {
		return isa.Field{}
	}

	spellings := append([]string{name, name + refSuffix}, aliases...)
	var present []string
	for _, s := range spellings {
		if r.n.has(s) {
			present = append(present, s)
		}
	}

	switch len(present) {
	case 0:
		if r.required(name) {
			r.fail(isa.MissingRequiredField, name, "missing %s attribute", name)
			return isa.Field{}
		}

		if v, ok := r.profile.AbsentValue(r.tag, name); ok {
			return r.literal(name, v, base)
		}

		return isa.Ignored()
	case 1:
	default:
		r.fail(isa.ConflictingFieldSpecification, name, "field given as both %s and %s", present[0], present[1])
		return isa.Field{}
	}

	spelling := present[0]
	s, _ := r.n.attr(spelling)
	if spelling == name {
		return r.literal(name, s, base)
	}

	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		r.fail(isa.IllegalEnumeratedValue, spelling, "invalid operand number %q", s)
		return isa.Field{}
	}

	return isa.OperandRef(i)
}

func (r *reader) literal(name, s string, base int) isa.Field {
	f, err := isa.ParseField(s, base)
	if err != nil {
		r.fail(isa.IllegalEnumeratedValue, name, "%v", err)
		return isa.Field{}
	}

	if f.IsConcrete() && !r.profile.LiteralAllowed(r.tag, name, s) {
		r.fail(isa.IllegalEnumeratedValue, name, "literal value %q is not allowed in %s descriptions", s, r.profile.Name)
		return isa.Field{}
	}

	return f
}

// ref reads a field that must be an operand
// reference or ignored.
func (r *reader) ref(name string, aliases ...string) isa.Field {
	f := r.field(name, 10, aliases...)
	if v, ok := f.Value(); ok {
		r.fail(isa.IllegalEnumeratedValue, name, "must refer to an operand, found literal %d", v)
		return isa.Field{}
	}

	return f
}

// checkUnused fails if the element has an
// attribute that was never read.
func (r *reader) checkUnused() {
	if r.err != nil {
		return
	}

	if name, ok := r.n.unused(); ok {
		r.fail(isa.SchemaMismatch, name, "unexpected attribute %s=%q in %s", name, r.attrValue(name), r.n.Name)
	}
}

func (r *reader) attrValue(name string) string {
	for _, a := range r.n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}

	return ""
}
