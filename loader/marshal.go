// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package loader

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"firefly-os.dev/opcodes/arch"
	"firefly-os.dev/opcodes/isa"
)

// Marshal writes set as an XML description in
// the dialect of the given architecture. Loading
// the result with the same profile produces a
// set equal to set.
func Marshal(set *isa.InstructionSet, p *arch.Profile) ([]byte, error) {
	if set.Arch != p.Name {
		return nil, isa.Errorf(isa.SchemaMismatch, "", "instruction set is for %q, not %q", set.Arch, p.Name)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	m := &marshaller{p: p, enc: xml.NewEncoder(&buf)}
	m.enc.Indent("", "\t")

	m.start("InstructionSet", attr("name", p.Name))
	for _, inst := range set.Instructions {
		err := m.instruction(inst)
		if err != nil {
			return nil, err
		}
	}

	m.end("InstructionSet")
	if m.err == nil {
		m.err = m.enc.Flush()
	}

	if m.err != nil {
		return nil, m.err
	}

	buf.WriteByte('\n')

	return buf.Bytes(), nil
}

type marshaller struct {
	p   *arch.Profile
	enc *xml.Encoder
	err error
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func (m *marshaller) start(name string, attrs ...xml.Attr) {
	if m.err != nil {
		return
	}

	m.err = m.enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs})
}

func (m *marshaller) end(name string) {
	if m.err != nil {
		return
	}

	m.err = m.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: name}})
}

func (m *marshaller) leaf(name string, attrs ...xml.Attr) {
	m.start(name, attrs...)
	m.end(name)
}

func (m *marshaller) instruction(inst *isa.Instruction) error {
	attrs := []xml.Attr{attr("name", inst.Name)}
	if inst.Summary != "" {
		attrs = append(attrs, attr("summary", inst.Summary))
	}

	m.start("Instruction", attrs...)
	for i, form := range inst.Forms {
		err := m.form(form)
		if err != nil {
			return isa.WithPath(err, fmt.Sprintf("%s[%d]", inst.Name, i))
		}
	}

	m.end("Instruction")

	return nil
}

func (m *marshaller) form(form *isa.Form) error {
	attrs := []xml.Attr{attr("gas-name", form.GASName)}
	if form.GoName != "" {
		attrs = append(attrs, attr("go-name", form.GoName))
	}
	if form.MMXMode != "" {
		attrs = append(attrs, attr("mmx-mode", form.MMXMode))
	}
	if form.XMMMode != "" {
		attrs = append(attrs, attr("xmm-mode", form.XMMMode))
	}
	if form.CancellingInputs {
		attrs = append(attrs, attr("cancelling-inputs", "true"))
	}
	if form.NaClZeroExtendsOutputs != nil {
		attrs = append(attrs, attr("nacl-zero-extends-outputs", strconv.FormatBool(*form.NaClZeroExtendsOutputs)))
	}

	m.start("InstructionForm", attrs...)
	for _, op := range form.Operands {
		attrs := []xml.Attr{attr("type", op.Type)}
		if op.Input {
			attrs = append(attrs, attr("input", "true"))
		}
		if op.Output {
			attrs = append(attrs, attr("output", "true"))
		}
		if op.ExtendedSize != 0 {
			attrs = append(attrs, attr("extended-size", strconv.Itoa(op.ExtendedSize)))
		}
		if op.AllowConversion {
			attrs = append(attrs, attr("allow-conversion", "true"))
		}
		if op.Allow1to16 {
			attrs = append(attrs, attr("allow-1to16", "true"))
		}

		m.leaf("Operand", attrs...)
	}

	// Inputs and outputs are written separately
	// so that both orders survive a reload.
	for _, id := range form.ImplicitInputs {
		m.leaf(m.p.ImplicitOperandTag, attr("id", id), attr("input", "true"), attr("output", "false"))
	}
	for _, id := range form.ImplicitOutputs {
		m.leaf(m.p.ImplicitOperandTag, attr("id", id), attr("input", "false"), attr("output", "true"))
	}

	for _, ext := range form.ISAExtensions {
		m.leaf(m.p.ExtensionTag, attr("id", ext.Name))
	}

	for i, enc := range form.Encodings {
		m.start("Encoding")
		for j, c := range enc.Components {
			err := m.component(c)
			if err != nil {
				return isa.WithPath(err, fmt.Sprintf("encoding[%d]/%s[%d]", i, c.Kind(), j))
			}
		}

		m.end("Encoding")
	}

	m.end("InstructionForm")

	return nil
}

// componentWriter collects the attributes of
// one component.
type componentWriter struct {
	p     *arch.Profile
	tag   string
	attrs []xml.Attr
	err   error
}

func (w *componentWriter) add(name, value string) {
	w.attrs = append(w.attrs, attr(name, value))
}

func (w *componentWriter) boolean(name string, b bool) {
	if b || w.p.Requires(w.tag, name) {
		w.add(name, strconv.FormatBool(b))
	}
}

func (w *componentWriter) bits(name string, v uint8, width int) {
	w.add(name, fmt.Sprintf("%0*b", width, v))
}

// field writes f, in binary with the given width,
// or in decimal if width is zero.
func (w *componentWriter) field(name string, f isa.Field, width int) {
	switch f.Kind() {
	case isa.FieldIgnored:
		_, hasAbsent := w.p.AbsentValue(w.tag, name)
		if w.p.Requires(w.tag, name) || hasAbsent {
			w.add(name, "ignored")
		}
	case isa.FieldConcrete:
		v, _ := f.Value()
		text := strconv.Itoa(int(v))
		if width > 0 {
			text = fmt.Sprintf("%0*b", width, v)
		}

		if !w.p.LiteralAllowed(w.tag, name, text) {
			if w.err == nil {
				w.err = isa.Errorf(isa.IllegalEnumeratedValue, name, "literal value %q is not allowed in %s descriptions", text, w.p.Name)
			}

			return
		}

		w.add(name, text)
	case isa.FieldOperand:
		i, _ := f.OperandIndex()
		w.ref(name, i)
	}
}

func (w *componentWriter) ref(name string, i int) {
	if w.p.ReferenceStyle == arch.ReferenceInline {
		w.add(name, "#"+strconv.Itoa(i))
		return
	}

	if name == "value" {
		w.add(valueRef, strconv.Itoa(i))
		return
	}

	w.add(name+refSuffix, strconv.Itoa(i))
}

// baseIndex writes the B and X fields, using
// the combined attribute where both refer to
// the same memory operand.
func (w *componentWriter) baseIndex(b, x isa.Field) {
	bi, bok := b.OperandIndex()
	xi, xok := x.OperandIndex()
	if w.p.ReferenceStyle == arch.ReferenceAttribute && bok && xok && bi == xi {
		w.add(bxRef, strconv.Itoa(bi))
		return
	}

	w.field("X", x, 1)
	w.field("B", b, 1)
}

func (m *marshaller) component(c isa.Component) error {
	if !m.p.Allows(c.Kind()) {
		return isa.Errorf(isa.SchemaMismatch, "", "encoding component %s is not used in %s descriptions", c.Kind(), m.p.Name)
	}

	w := &componentWriter{p: m.p, tag: c.Kind().String()}
	switch c := c.(type) {
	case *isa.Prefix:
		w.add("byte", fmt.Sprintf("%02X", byte(c.Byte)))
		w.boolean("mandatory", c.Mandatory)
	case *isa.REX:
		w.boolean("mandatory", c.Mandatory)
		w.field("W", c.W, 1)
		w.field("R", c.R, 1)
		w.baseIndex(c.B, c.X)
	case *isa.VEX:
		if c.Type != isa.VEXTypeVEX || m.p.Requires(w.tag, "type") {
			w.add("type", c.Type.String())
		}
		w.bits("m-mmmm", c.MMMMM, 5)
		w.bits("pp", c.PP, 2)
		w.field("W", c.W, 1)
		w.field("L", c.L, 1)
		w.field("R", c.R, 1)
		w.baseIndex(c.B, c.X)
		w.field("vvvv", c.VVVV, 4)
	case *isa.EVEX:
		w.bits("mm", c.MM, 2)
		w.bits("pp", c.PP, 2)
		w.field("W", c.W, 1)
		w.field("LL", c.LL, 2)
		w.field("RR", c.RR, 2)
		w.baseIndex(c.B, c.X)
		w.field("vvvv", c.VVVV, 4)
		w.field("V", c.V, 1)
		w.field("b", c.Br, 1)
		w.field("aaa", c.AAA, 3)
		w.field("z", c.Z, 1)
		if c.Disp8xN != 0 {
			w.add("disp8xN", strconv.Itoa(c.Disp8xN))
		}
	case *isa.MVEX:
		w.bits("mmmm", c.MMMM, 4)
		w.bits("pp", c.PP, 2)
		w.field("W", c.W, 1)
		w.field("RR", c.RR, 2)
		w.baseIndex(c.B, c.X)
		w.field("vvvv", c.VVVV, 4)
		w.field("V", c.V, 1)
		w.field("SSS", c.SSS, 3)
		w.field("aaa", c.AAA, 3)
		w.field("E", c.E, 1)
	case *isa.Opcode:
		w.add("byte", fmt.Sprintf("%02X", c.Byte))
		w.field("addend", c.Addend, 0)
	case *isa.ModRM:
		w.field("mode", c.Mode, 2)
		w.field("reg", c.Reg, 0)
		w.field("rm", c.RM, 0)
	case *isa.Immediate:
		w.add("size", strconv.Itoa(c.Size))
		w.field("value", c.Value, 0)
	case *isa.RegisterByte:
		w.field("register", c.Register, 0)
		w.field("payload", c.Payload, 0)
	case *isa.CodeOffset:
		w.add("size", strconv.Itoa(c.Size))
		w.field("value", c.Value, 0)
	case *isa.DataOffset:
		w.add("size", strconv.Itoa(c.Size))
		w.field("value", c.Value, 0)
	default:
		return isa.Errorf(isa.SchemaMismatch, "", "unsupported component %T", c)
	}

	if w.err != nil {
		return w.err
	}

	m.leaf(w.tag, w.attrs...)

	return m.err
}
