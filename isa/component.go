// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package isa

import (
	"fmt"
	"strings"
)

// ComponentKind identifies a variant of
// Component.
type ComponentKind uint8

const (
	_ ComponentKind = iota
	KindPrefix
	KindREX
	KindVEX
	KindEVEX
	KindMVEX
	KindOpcode
	KindModRM
	KindImmediate
	KindRegisterByte
	KindCodeOffset
	KindDataOffset
)

// ComponentKinds maps the name of each component
// kind, as used in descriptions, to the kind.
var ComponentKinds = map[string]ComponentKind{
	"Prefix":       KindPrefix,
	"REX":          KindREX,
	"VEX":          KindVEX,
	"EVEX":         KindEVEX,
	"MVEX":         KindMVEX,
	"Opcode":       KindOpcode,
	"ModRM":        KindModRM,
	"Immediate":    KindImmediate,
	"RegisterByte": KindRegisterByte,
	"CodeOffset":   KindCodeOffset,
	"DataOffset":   KindDataOffset,
}

func (k ComponentKind) String() string {
	switch k {
	case KindPrefix:
		return "Prefix"
	case KindREX:
		return "REX"
	case KindVEX:
		return "VEX"
	case KindEVEX:
		return "EVEX"
	case KindMVEX:
		return "MVEX"
	case KindOpcode:
		return "Opcode"
	case KindModRM:
		return "ModRM"
	case KindImmediate:
		return "Immediate"
	case KindRegisterByte:
		return "RegisterByte"
	case KindCodeOffset:
		return "CodeOffset"
	case KindDataOffset:
		return "DataOffset"
	default:
		return fmt.Sprintf("ComponentKind(%d)", k)
	}
}

// ExtendedPrefix returns whether k is one of
// the mutually exclusive REX, VEX, EVEX, and
// MVEX prefixes.
func (k ComponentKind) ExtendedPrefix() bool {
	switch k {
	case KindREX, KindVEX, KindEVEX, KindMVEX:
		return true
	}

	return false
}

// Component is one piece of an instruction's
// encoding. The set of implementations is
// closed; consumers switch on the concrete
// type:
//
//	switch c := c.(type) {
//	case *isa.Prefix:
//	case *isa.REX:
//	...
//	}
type Component interface {
	// Kind returns the variant.
	Kind() ComponentKind

	// Validate checks the component's fields,
	// given the number of operands in the form.
	Validate(operands int) error

	// Refs returns each operand reference, in
	// field order.
	Refs() []Ref

	String() string

	clone() Component
}

// Ref is a reference from a component field to
// an operand.
type Ref struct {
	Field   string
	Operand int
}

func appendRef(refs []Ref, name string, f Field) []Ref {
	if i, ok := f.OperandIndex(); ok {
		refs = append(refs, Ref{Field: name, Operand: i})
	}

	return refs
}

// PrefixByte is a legacy prefix that can
// appear in an encoding.
type PrefixByte byte

const (
	PrefixOperandSize PrefixByte = 0x66
	PrefixRepeatNot   PrefixByte = 0xf2
	PrefixRepeat      PrefixByte = 0xf3
)

func (p PrefixByte) String() string {
	switch p {
	case PrefixOperandSize:
		return "data16/data32"
	case PrefixRepeatNot:
		return "repnz/repne"
	case PrefixRepeat:
		return "rep/repe/repz"
	default:
		return fmt.Sprintf("Prefix(%#02x)", byte(p))
	}
}

// Prefix is a legacy prefix byte.
type Prefix struct {
	Byte      PrefixByte
	Mandatory bool // Part of the opcode, rather than a modifier.
}

func (p *Prefix) Kind() ComponentKind { return KindPrefix }
func (p *Prefix) Refs() []Ref         { return nil }
func (p *Prefix) clone() Component    { c := *p; return &c }

func (p *Prefix) Validate(operands int) error {
	switch p.Byte {
	case PrefixOperandSize, PrefixRepeatNot, PrefixRepeat:
		return nil
	}

	return Errorf(IllegalEnumeratedValue, "byte", "invalid prefix %#02x: must be 0x66, 0xf2, or 0xf3", byte(p.Byte))
}

func (p *Prefix) String() string {
	if p.Mandatory {
		return fmt.Sprintf("Prefix{%#02x, mandatory}", byte(p.Byte))
	}

	return fmt.Sprintf("Prefix{%#02x}", byte(p.Byte))
}

// REX is a REX prefix.
//
// Intel x86 manuals, Volume 2A,
// Section 2.2.1.2, Table 2-4.
//
//	| 7  6  5  4   3  2  1  0 |
//	+-------------------------|
//	| 0  1  0  0   W  R  X  B |
//
// R, X, and B may refer to an operand, in
// which case the bit is the high bit of
// that operand's register number. If B and X
// refer to the same memory operand, they
// carry its base and index registers.
type REX struct {
	Mandatory bool // Required even if no bits are set.
	W         Field
	R         Field
	X         Field
	B         Field
}

func (r *REX) Kind() ComponentKind { return KindREX }
func (r *REX) clone() Component    { c := *r; return &c }

func (r *REX) Validate(operands int) error {
	if err := checkBits("W", r.W, 1, operands, false); err != nil {
		return err
	}
	if err := checkBits("R", r.R, 1, operands, true); err != nil {
		return err
	}
	if err := checkBits("X", r.X, 1, operands, true); err != nil {
		return err
	}
	if err := checkBits("B", r.B, 1, operands, true); err != nil {
		return err
	}

	return nil
}

func (r *REX) Refs() []Ref {
	var refs []Ref
	refs = appendRef(refs, "R", r.R)
	refs = appendRef(refs, "X", r.X)
	refs = appendRef(refs, "B", r.B)
	return refs
}

func (r *REX) String() string {
	s := fmt.Sprintf("REX{W: %s, R: %s, X: %s, B: %s", r.W.bits(1), r.R.bits(1), r.X.bits(1), r.B.bits(1))
	if r.Mandatory {
		s += ", mandatory"
	}

	return s + "}"
}

// VEXType distinguishes the VEX prefix from the
// AMD XOP prefix, which shares its layout.
type VEXType uint8

const (
	VEXTypeVEX VEXType = iota
	VEXTypeXOP
)

// VEXTypes maps the names of VEX types to the
// type.
var VEXTypes = map[string]VEXType{
	"VEX": VEXTypeVEX,
	"XOP": VEXTypeXOP,
}

func (t VEXType) String() string {
	switch t {
	case VEXTypeVEX:
		return "VEX"
	case VEXTypeXOP:
		return "XOP"
	default:
		return fmt.Sprintf("VEXType(%d)", t)
	}
}

// VEX is a VEX or XOP prefix.
//
// Intel x86 manuals, Volume 2A,
// Section 2.3.5, Table 2-9.
//
// 3-byte form:
//
//	| 7  6  5  4   3  2  1  0 |
//	+-------------------------|
//	| 1  1  0  0   0  1  0  0 | // 0xc4 prefix (0x8f for XOP).
//	| R  X  B  m   m  m  m  m | // P0.
//	| W  v  v  v   v  L  p  p | // P1.
//
// R, X, and B are stored inverted by the
// encoder; the fields here hold the logical
// values.
type VEX struct {
	Type  VEXType
	MMMMM uint8 // Implied leading opcode bytes.
	PP    uint8 // Implied mandatory prefix.
	W     Field
	L     Field
	R     Field
	X     Field
	B     Field
	VVVV  Field // 0b1111 when unused, or an operand.
}

func (v *VEX) Kind() ComponentKind { return KindVEX }
func (v *VEX) clone() Component    { c := *v; return &c }

func (v *VEX) Validate(operands int) error {
	switch v.Type {
	case VEXTypeVEX, VEXTypeXOP:
	default:
		return Errorf(IllegalEnumeratedValue, "type", "invalid VEX type %d", v.Type)
	}
	if v.MMMMM >= 1<<5 {
		return Errorf(IllegalEnumeratedValue, "m-mmmm", "value %#b does not fit in 5 bits", v.MMMMM)
	}
	if v.PP >= 1<<2 {
		return Errorf(IllegalEnumeratedValue, "pp", "value %#b does not fit in 2 bits", v.PP)
	}

	fields := []struct {
		name  string
		field Field
		width uint
		ref   bool
	}{
		{"W", v.W, 1, false},
		{"L", v.L, 1, false},
		{"R", v.R, 1, true},
		{"X", v.X, 1, true},
		{"B", v.B, 1, true},
		{"vvvv", v.VVVV, 4, true},
	}

	for _, f := range fields {
		if err := checkBits(f.name, f.field, f.width, operands, f.ref); err != nil {
			return err
		}
	}

	return nil
}

func (v *VEX) Refs() []Ref {
	var refs []Ref
	refs = appendRef(refs, "R", v.R)
	refs = appendRef(refs, "X", v.X)
	refs = appendRef(refs, "B", v.B)
	refs = appendRef(refs, "vvvv", v.VVVV)
	return refs
}

func (v *VEX) String() string {
	return fmt.Sprintf("%s{m-mmmm: %05b, pp: %02b, W: %s, L: %s, R: %s, X: %s, B: %s, vvvv: %s}",
		v.Type, v.MMMMM, v.PP, v.W.bits(1), v.L.bits(1),
		v.R.bits(1), v.X.bits(1), v.B.bits(1), v.VVVV.bits(4))
}

// EVEX is an EVEX prefix.
//
// Intel x86 manuals, Volume 2A,
// Section 2.6.1, Table 2-11.
//
//	| 7  6  5  4   3  2  1  0 |
//	+-------------------------|
//	| 0  1  1  0   0  0  1  0 | // 0x62 prefix.
//	| R  X  B  R'  0  0  m  m | // P0.
//	| W  v  v  v   v  1  p  p | // P1.
//	| z  L' L  b   V' a  a  a | // P2.
type EVEX struct {
	MM      uint8 // Implied leading opcode bytes.
	PP      uint8 // Implied mandatory prefix.
	W       Field
	LL      Field // Vector length, or rounding control via an operand.
	RR      Field // R'R: high bits of the ModR/M reg operand.
	B       Field
	X       Field
	VVVV    Field
	V       Field // V': high bit of vvvv.
	Br      Field // b: broadcast, rounding, or exception suppression.
	AAA     Field // Mask register.
	Z       Field // Zeroing rather than merging.
	Disp8xN int   // Compressed displacement scale, or zero.
}

func (e *EVEX) Kind() ComponentKind { return KindEVEX }
func (e *EVEX) clone() Component    { c := *e; return &c }

func (e *EVEX) Validate(operands int) error {
	if e.MM >= 1<<2 {
		return Errorf(IllegalEnumeratedValue, "mm", "value %#b does not fit in 2 bits", e.MM)
	}
	if e.PP >= 1<<2 {
		return Errorf(IllegalEnumeratedValue, "pp", "value %#b does not fit in 2 bits", e.PP)
	}

	fields := []struct {
		name  string
		field Field
		width uint
		ref   bool
	}{
		{"W", e.W, 1, false},
		{"LL", e.LL, 2, true},
		{"RR", e.RR, 2, true},
		{"B", e.B, 1, true},
		{"X", e.X, 1, true},
		{"vvvv", e.VVVV, 4, true},
		{"V", e.V, 1, true},
		{"b", e.Br, 1, true},
		{"aaa", e.AAA, 3, true},
		{"z", e.Z, 1, true},
	}

	for _, f := range fields {
		if err := checkBits(f.name, f.field, f.width, operands, f.ref); err != nil {
			return err
		}
	}

	switch e.Disp8xN {
	case 0, 1, 2, 4, 8, 16, 32, 64:
	default:
		return Errorf(IllegalEnumeratedValue, "disp8xN", "invalid scale %d: must be a power of two from 1 to 64", e.Disp8xN)
	}

	return nil
}

func (e *EVEX) Refs() []Ref {
	var refs []Ref
	refs = appendRef(refs, "LL", e.LL)
	refs = appendRef(refs, "RR", e.RR)
	refs = appendRef(refs, "B", e.B)
	refs = appendRef(refs, "X", e.X)
	refs = appendRef(refs, "vvvv", e.VVVV)
	refs = appendRef(refs, "V", e.V)
	refs = appendRef(refs, "b", e.Br)
	refs = appendRef(refs, "aaa", e.AAA)
	refs = appendRef(refs, "z", e.Z)
	return refs
}

func (e *EVEX) String() string {
	s := fmt.Sprintf("EVEX{mm: %02b, pp: %02b, W: %s, LL: %s, RR: %s, B: %s, X: %s, vvvv: %s, V: %s, b: %s, aaa: %s, z: %s",
		e.MM, e.PP, e.W.bits(1), e.LL.bits(2), e.RR.bits(2), e.B.bits(1), e.X.bits(1),
		e.VVVV.bits(4), e.V.bits(1), e.Br.bits(1), e.AAA.bits(3), e.Z.bits(1))
	if e.Disp8xN != 0 {
		s += fmt.Sprintf(", disp8xN: %d", e.Disp8xN)
	}

	return s + "}"
}

// MVEX is the MVEX prefix used by the Knights
// Corner (k1om) instruction set.
//
//	| 7  6  5  4   3  2  1  0 |
//	+-------------------------|
//	| 0  1  1  0   0  0  1  0 | // 0x62 prefix.
//	| R  X  B  R'  m  m  m  m | // P0.
//	| W  v  v  v   v  0  p  p | // P1.
//	| E  S  S  S   V' k  k  k | // P2.
type MVEX struct {
	MMMM uint8 // Implied leading opcode bytes.
	PP   uint8 // Implied mandatory prefix.
	W    Field
	RR   Field
	B    Field
	X    Field
	VVVV Field
	V    Field
	SSS  Field // Swizzle, broadcast, or conversion.
	AAA  Field // Mask register.
	E    Field // Eviction hint.
}

func (m *MVEX) Kind() ComponentKind { return KindMVEX }
func (m *MVEX) clone() Component    { c := *m; return &c }

func (m *MVEX) Validate(operands int) error {
	if m.MMMM >= 1<<4 {
		return Errorf(IllegalEnumeratedValue, "mmmm", "value %#b does not fit in 4 bits", m.MMMM)
	}
	if m.PP >= 1<<2 {
		return Errorf(IllegalEnumeratedValue, "pp", "value %#b does not fit in 2 bits", m.PP)
	}

	fields := []struct {
		name  string
		field Field
		width uint
		ref   bool
	}{
		{"W", m.W, 1, false},
		{"RR", m.RR, 2, true},
		{"B", m.B, 1, true},
		{"X", m.X, 1, true},
		{"vvvv", m.VVVV, 4, true},
		{"V", m.V, 1, true},
		{"SSS", m.SSS, 3, true},
		{"aaa", m.AAA, 3, true},
		{"E", m.E, 1, true},
	}

	for _, f := range fields {
		if err := checkBits(f.name, f.field, f.width, operands, f.ref); err != nil {
			return err
		}
	}

	return nil
}

func (m *MVEX) Refs() []Ref {
	var refs []Ref
	refs = appendRef(refs, "RR", m.RR)
	refs = appendRef(refs, "B", m.B)
	refs = appendRef(refs, "X", m.X)
	refs = appendRef(refs, "vvvv", m.VVVV)
	refs = appendRef(refs, "V", m.V)
	refs = appendRef(refs, "SSS", m.SSS)
	refs = appendRef(refs, "aaa", m.AAA)
	refs = appendRef(refs, "E", m.E)
	return refs
}

func (m *MVEX) String() string {
	return fmt.Sprintf("MVEX{mmmm: %04b, pp: %02b, W: %s, RR: %s, B: %s, X: %s, vvvv: %s, V: %s, SSS: %s, aaa: %s, E: %s}",
		m.MMMM, m.PP, m.W.bits(1), m.RR.bits(2), m.B.bits(1), m.X.bits(1),
		m.VVVV.bits(4), m.V.bits(1), m.SSS.bits(3), m.AAA.bits(3), m.E.bits(1))
}

// Opcode is an opcode byte.
//
// If Addend refers to an operand, the low three
// bits of the operand's register number are
// added to Byte.
type Opcode struct {
	Byte   byte
	Addend Field
}

func (o *Opcode) Kind() ComponentKind { return KindOpcode }
func (o *Opcode) clone() Component    { c := *o; return &c }

func (o *Opcode) Validate(operands int) error {
	return checkOperandOnly("addend", o.Addend, operands, true)
}

func (o *Opcode) Refs() []Ref {
	return appendRef(nil, "addend", o.Addend)
}

func (o *Opcode) String() string {
	if o.Addend.IsOperand() {
		return fmt.Sprintf("Opcode{%#02x + %s}", o.Byte, o.Addend)
	}

	return fmt.Sprintf("Opcode{%#02x}", o.Byte)
}

// ModRM is a ModR/M byte.
//
// Intel x86 manuals, Volume 2A,
// Section 2.1.5, Table 2-2.
//
//	| 7  6  5  4   3  2  1  0 |
//	+-------------------------|
//	| mod  |  reg    |  r/m   |
//
// If Mode refers to an operand, it is the
// same operand as RM, which is then a memory
// operand and determines the addressing mode.
type ModRM struct {
	Mode Field
	Reg  Field
	RM   Field
}

const (
	ModRMmod00 = 0b00
	ModRMmod01 = 0b01
	ModRMmod10 = 0b10
	ModRMmod11 = 0b11

	// Section 2.1.5, table 2.2, Mod column.
	ModRMmodDereferenceRegister    = ModRMmod00
	ModRMmodSmallDisplacedRegister = ModRMmod01
	ModRMmodLargeDisplacedRegister = ModRMmod10
	ModRMmodRegister               = ModRMmod11
)

func (m *ModRM) Kind() ComponentKind { return KindModRM }
func (m *ModRM) clone() Component    { c := *m; return &c }

func (m *ModRM) Validate(operands int) error {
	if err := checkBits("mode", m.Mode, 2, operands, true); err != nil {
		return err
	}
	if err := checkBits("reg", m.Reg, 3, operands, true); err != nil {
		return err
	}
	if err := checkBits("rm", m.RM, 3, operands, true); err != nil {
		return err
	}

	if mode, ok := m.Mode.OperandIndex(); ok {
		if rm, ok := m.RM.OperandIndex(); !ok || rm != mode {
			return Errorf(ConflictingFieldSpecification, "mode", "mode refers to operand %d but rm is %s", mode, m.RM)
		}
	}

	return nil
}

func (m *ModRM) Refs() []Ref {
	var refs []Ref
	refs = appendRef(refs, "mode", m.Mode)
	refs = appendRef(refs, "reg", m.Reg)
	refs = appendRef(refs, "rm", m.RM)
	return refs
}

func (m *ModRM) String() string {
	return fmt.Sprintf("ModRM{mode: %s, reg: %s, rm: %s}", m.Mode.bits(2), m.Reg.bits(3), m.RM.bits(3))
}

// Immediate is an immediate value taken from
// an operand.
type Immediate struct {
	Size  int // In bytes.
	Value Field
}

func (i *Immediate) Kind() ComponentKind { return KindImmediate }
func (i *Immediate) clone() Component    { c := *i; return &c }

func (i *Immediate) Validate(operands int) error {
	switch i.Size {
	case 1, 2, 4, 8:
	default:
		return Errorf(IllegalEnumeratedValue, "size", "invalid immediate size %d: must be 1, 2, 4, or 8", i.Size)
	}

	return checkOperandOnly("value", i.Value, operands, false)
}

func (i *Immediate) Refs() []Ref {
	return appendRef(nil, "value", i.Value)
}

func (i *Immediate) String() string {
	return fmt.Sprintf("Immediate{size: %d, value: %s}", i.Size, i.Value)
}

// RegisterByte is a byte whose high four bits
// hold a register number, as used by the
// four-operand VEX and XOP instructions. The
// low four bits may carry an immediate.
type RegisterByte struct {
	Register Field
	Payload  Field
}

func (r *RegisterByte) Kind() ComponentKind { return KindRegisterByte }
func (r *RegisterByte) clone() Component    { c := *r; return &c }

func (r *RegisterByte) Validate(operands int) error {
	if err := checkOperandOnly("register", r.Register, operands, false); err != nil {
		return err
	}

	return checkOperandOnly("payload", r.Payload, operands, true)
}

func (r *RegisterByte) Refs() []Ref {
	var refs []Ref
	refs = appendRef(refs, "register", r.Register)
	refs = appendRef(refs, "payload", r.Payload)
	return refs
}

func (r *RegisterByte) String() string {
	return fmt.Sprintf("RegisterByte{register: %s, payload: %s}", r.Register, r.Payload)
}

// CodeOffset is a displacement relative to the
// end of the instruction.
type CodeOffset struct {
	Size  int // In bytes.
	Value Field
}

func (c *CodeOffset) Kind() ComponentKind { return KindCodeOffset }
func (c *CodeOffset) clone() Component    { d := *c; return &d }

func (c *CodeOffset) Validate(operands int) error {
	switch c.Size {
	case 1, 4:
	default:
		return Errorf(IllegalEnumeratedValue, "size", "invalid code offset size %d: must be 1 or 4", c.Size)
	}

	return checkOperandOnly("value", c.Value, operands, false)
}

func (c *CodeOffset) Refs() []Ref {
	return appendRef(nil, "value", c.Value)
}

func (c *CodeOffset) String() string {
	return fmt.Sprintf("CodeOffset{size: %d, value: %s}", c.Size, c.Value)
}

// DataOffset is an absolute memory address, as
// used by the MOV moffs forms.
type DataOffset struct {
	Size  int // In bytes.
	Value Field
}

func (d *DataOffset) Kind() ComponentKind { return KindDataOffset }
func (d *DataOffset) clone() Component    { c := *d; return &c }

func (d *DataOffset) Validate(operands int) error {
	switch d.Size {
	case 4, 8:
	default:
		return Errorf(IllegalEnumeratedValue, "size", "invalid data offset size %d: must be 4 or 8", d.Size)
	}

	return checkOperandOnly("value", d.Value, operands, false)
}

func (d *DataOffset) Refs() []Ref {
	return appendRef(nil, "value", d.Value)
}

func (d *DataOffset) String() string {
	return fmt.Sprintf("DataOffset{size: %d, value: %s}", d.Size, d.Value)
}

// Encoding is one way to encode an instruction
// form. Components appear in the order their
// bytes are emitted.
type Encoding struct {
	Components []Component
}

// Validate checks every component, and that
// the encoding has at most one legacy prefix
// and at most one extended prefix.
func (e Encoding) Validate(operands int) error {
	var prefix, extended Component
	for i, c := range e.Components {
		if c == nil {
			return Errorf(InvariantViolation, "", "component %d is nil", i)
		}

		path := fmt.Sprintf("%s[%d]", c.Kind(), i)
		if err := c.Validate(operands); err != nil {
			return WithPath(err, path)
		}

		switch {
		case c.Kind() == KindPrefix:
			if prefix != nil {
				return WithPath(Errorf(InvariantViolation, "", "second legacy prefix after %s", prefix), path)
			}

			prefix = c
		case c.Kind().ExtendedPrefix():
			if extended != nil {
				return WithPath(Errorf(InvariantViolation, "", "second extended prefix after %s", extended.Kind()), path)
			}

			extended = c
		}
	}

	return nil
}

// Refs returns every operand reference in the
// encoding.
func (e Encoding) Refs() []Ref {
	var refs []Ref
	for _, c := range e.Components {
		refs = append(refs, c.Refs()...)
	}

	return refs
}

// Clone returns a deep copy of e.
func (e Encoding) Clone() Encoding {
	c := Encoding{Components: make([]Component, len(e.Components))}
	for i, comp := range e.Components {
		c.Components[i] = comp.clone()
	}

	return c
}

func (e Encoding) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, c := range e.Components {
		if i > 0 {
			b.WriteString(", ")
		}

		b.WriteString(c.String())
	}

	b.WriteByte(']')

	return b.String()
}
