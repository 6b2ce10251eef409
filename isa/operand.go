// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package isa

import (
	"fmt"
)

// OperandClass is the broad category of an
// operand type.
type OperandClass uint8

const (
	ClassOther     OperandClass = iota // Anything not listed below.
	ClassRegister                      // A register, possibly masked.
	ClassMemory                        // A memory location, possibly masked or broadcast.
	ClassImmediate                     // An immediate value.
	ClassConstant                      // A fixed value, such as the 1 in SHL r32, 1.
	ClassRelative                      // A code offset relative to the end of the instruction.
	ClassModifier                      // A pseudo-operand, such as {sae} or {er}.
)

func (c OperandClass) String() string {
	switch c {
	case ClassOther:
		return "other"
	case ClassRegister:
		return "register"
	case ClassMemory:
		return "memory"
	case ClassImmediate:
		return "immediate"
	case ClassConstant:
		return "constant"
	case ClassRelative:
		return "relative"
	case ClassModifier:
		return "modifier"
	default:
		return fmt.Sprintf("OperandClass(%d)", c)
	}
}

// OperandClasses maps every operand type known
// to any supported architecture to its class.
//
// Masked register and memory types, like
// "zmm{k}" and "m512{k}", share the class of
// the unmasked type, as do the up-conversion
// and broadcast forms used by k1om.
var OperandClasses = map[string]OperandClass{
	// Constants.
	"1": ClassConstant,
	"3": ClassConstant,

	// Relative offsets.
	"rel8":  ClassRelative,
	"rel32": ClassRelative,

	// Immediates.
	"imm4":  ClassImmediate,
	"imm8":  ClassImmediate,
	"imm16": ClassImmediate,
	"imm32": ClassImmediate,
	"imm64": ClassImmediate,

	// Fixed registers.
	"al":   ClassRegister,
	"cl":   ClassRegister,
	"ax":   ClassRegister,
	"eax":  ClassRegister,
	"rax":  ClassRegister,
	"xmm0": ClassRegister,

	// General purpose registers.
	"r8":   ClassRegister,
	"r16":  ClassRegister,
	"r32":  ClassRegister,
	"r64":  ClassRegister,
	"r8l":  ClassRegister,
	"r16l": ClassRegister,
	"r32l": ClassRegister,

	// Vector and mask registers.
	"mm":        ClassRegister,
	"xmm":       ClassRegister,
	"xmm{k}":    ClassRegister,
	"xmm{k}{z}": ClassRegister,
	"ymm":       ClassRegister,
	"ymm{k}":    ClassRegister,
	"ymm{k}{z}": ClassRegister,
	"zmm":       ClassRegister,
	"zmm{k}":    ClassRegister,
	"zmm{k}{z}": ClassRegister,
	"k":         ClassRegister,
	"k{k}":      ClassRegister,
	"S(zmm)":    ClassRegister,
	"Cf32(zmm)": ClassRegister,
	"Ci32(zmm)": ClassRegister,

	// Memory.
	"m":          ClassMemory,
	"m8":         ClassMemory,
	"m16":        ClassMemory,
	"m16{k}{z}":  ClassMemory,
	"m32":        ClassMemory,
	"m32{k}":     ClassMemory,
	"m32{k}{z}":  ClassMemory,
	"m64":        ClassMemory,
	"m64{k}":     ClassMemory,
	"m64{k}{z}":  ClassMemory,
	"m80":        ClassMemory,
	"m128":       ClassMemory,
	"m128{k}{z}": ClassMemory,
	"m256":       ClassMemory,
	"m256{k}{z}": ClassMemory,
	"m512":       ClassMemory,
	"m512{k}":    ClassMemory,
	"m512{k}{z}": ClassMemory,

	// Broadcast memory.
	"m64/m32bcst":  ClassMemory,
	"m128/m32bcst": ClassMemory,
	"m256/m32bcst": ClassMemory,
	"m512/m32bcst": ClassMemory,
	"m128/m64bcst": ClassMemory,
	"m256/m64bcst": ClassMemory,
	"m512/m64bcst": ClassMemory,
	"BCf32(m512)":  ClassMemory,
	"BCi32(m512)":  ClassMemory,
	"B64(m512)":    ClassMemory,
	"Cf32(m512)":   ClassMemory,
	"Ci32(m512)":   ClassMemory,

	// Vector SIB memory.
	"vm32x":          ClassMemory,
	"vm32x{k}":       ClassMemory,
	"vm32y":          ClassMemory,
	"vm32y{k}":       ClassMemory,
	"vm32z":          ClassMemory,
	"vm32z{k}":       ClassMemory,
	"vm64x":          ClassMemory,
	"vm64x{k}":       ClassMemory,
	"vm64y":          ClassMemory,
	"vm64y{k}":       ClassMemory,
	"vm64z":          ClassMemory,
	"vm64z{k}":       ClassMemory,
	"Cf32(vm32z)":    ClassMemory,
	"Ci32(vm32z)":    ClassMemory,
	"Cf32(vm32z){k}": ClassMemory,

	// Modifiers.
	"{sae}": ClassModifier,
	"{er}":  ClassModifier,
}

// Operand is an explicit operand of an
// instruction form.
type Operand struct {
	Type   string `json:"type"`
	Input  bool   `json:"input,omitempty"`  // The instruction reads the operand.
	Output bool   `json:"output,omitempty"` // The instruction writes the operand.

	// ExtendedSize is the size in bytes of an
	// immediate after sign extension, or zero.
	ExtendedSize int `json:"extendedSize,omitempty"`

	// k1om conversion and broadcast permissions.
	AllowConversion bool `json:"allowConversion,omitempty"`
	Allow1to16      bool `json:"allow1to16,omitempty"`
}

// Class returns the operand's class.
func (o *Operand) Class() OperandClass {
	return OperandClasses[o.Type]
}

func (o *Operand) IsRegister() bool  { return o.Class() == ClassRegister }
func (o *Operand) IsMemory() bool    { return o.Class() == ClassMemory }
func (o *Operand) IsImmediate() bool { return o.Class() == ClassImmediate }

// IsVariable returns whether the operand names
// a register or memory location that the
// instruction reads or writes.
func (o *Operand) IsVariable() bool {
	return o.Input || o.Output
}

func (o *Operand) String() string {
	switch {
	case o.Input && o.Output:
		return "[in/out] " + o.Type
	case o.Input:
		return "[in] " + o.Type
	case o.Output:
		return "[out] " + o.Type
	default:
		return o.Type
	}
}

// Validate checks the operand's internal
// consistency. The type itself is checked
// against an architecture by the loader.
func (o *Operand) Validate() error {
	switch o.ExtendedSize {
	case 0, 1, 2, 4, 8:
	default:
		return Errorf(IllegalEnumeratedValue, "extended-size", "invalid size %d", o.ExtendedSize)
	}

	if o.Class() == ClassConstant && o.IsVariable() {
		return Errorf(InvariantViolation, "type", "constant operand %q cannot be read or written", o.Type)
	}

	return nil
}
