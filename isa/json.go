// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package isa

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Fields are encoded as a number, the string
// "ignored", or "#i" for an operand reference.

func (f Field) MarshalJSON() ([]byte, error) {
	if f.kind == FieldConcrete {
		return json.Marshal(f.value)
	}

	return json.Marshal(f.String())
}

func (f *Field) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		got, err := ParseField(s, 10)
		if err != nil {
			return err
		}

		if got.kind == FieldConcrete {
			return fmt.Errorf("invalid field %q: literal values must be numbers", s)
		}

		*f = got
		return nil
	}

	var v uint8
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid field %s", data)
	}

	*f = Concrete(v)

	return nil
}

type jsonPrefix struct {
	Kind      string `json:"kind"`
	Byte      byte   `json:"byte"`
	Mandatory bool   `json:"mandatory,omitempty"`
}

type jsonREX struct {
	Kind      string `json:"kind"`
	Mandatory bool   `json:"mandatory,omitempty"`
	W         Field  `json:"W"`
	R         Field  `json:"R"`
	X         Field  `json:"X"`
	B         Field  `json:"B"`
}

type jsonVEX struct {
	Kind  string `json:"kind"`
	Type  string `json:"type"`
	MMMMM uint8  `json:"m-mmmm"`
	PP    uint8  `json:"pp"`
	W     Field  `json:"W"`
	L     Field  `json:"L"`
	R     Field  `json:"R"`
	X     Field  `json:"X"`
	B     Field  `json:"B"`
	VVVV  Field  `json:"vvvv"`
}

type jsonEVEX struct {
	Kind    string `json:"kind"`
	MM      uint8  `json:"mm"`
	PP      uint8  `json:"pp"`
	W       Field  `json:"W"`
	LL      Field  `json:"LL"`
	RR      Field  `json:"RR"`
	B       Field  `json:"B"`
	X       Field  `json:"X"`
	VVVV    Field  `json:"vvvv"`
	V       Field  `json:"V"`
	Br      Field  `json:"b"`
	AAA     Field  `json:"aaa"`
	Z       Field  `json:"z"`
	Disp8xN int    `json:"disp8xN,omitempty"`
}

type jsonMVEX struct {
	Kind string `json:"kind"`
	MMMM uint8  `json:"mmmm"`
	PP   uint8  `json:"pp"`
	W    Field  `json:"W"`
	RR   Field  `json:"RR"`
	B    Field  `json:"B"`
	X    Field  `json:"X"`
	VVVV Field  `json:"vvvv"`
	V    Field  `json:"V"`
	SSS  Field  `json:"SSS"`
	AAA  Field  `json:"aaa"`
	E    Field  `json:"E"`
}

type jsonOpcode struct {
	Kind   string `json:"kind"`
	Byte   byte   `json:"byte"`
	Addend Field  `json:"addend"`
}

type jsonModRM struct {
	Kind string `json:"kind"`
	Mode Field  `json:"mode"`
	Reg  Field  `json:"reg"`
	RM   Field  `json:"rm"`
}

type jsonImmediate struct {
	Kind  string `json:"kind"`
	Size  int    `json:"size"`
	Value Field  `json:"value"`
}

type jsonRegisterByte struct {
	Kind     string `json:"kind"`
	Register Field  `json:"register"`
	Payload  Field  `json:"payload"`
}

type jsonCodeOffset struct {
	Kind  string `json:"kind"`
	Size  int    `json:"size"`
	Value Field  `json:"value"`
}

type jsonDataOffset struct {
	Kind  string `json:"kind"`
	Size  int    `json:"size"`
	Value Field  `json:"value"`
}

type jsonEncoding struct {
	Components []json.RawMessage `json:"components"`
}

func marshalComponent(c Component) any {
	kind := c.Kind().String()
	switch c := c.(type) {
	case *Prefix:
		return jsonPrefix{Kind: kind, Byte: byte(c.Byte), Mandatory: c.Mandatory}
	case *REX:
		return jsonREX{Kind: kind, Mandatory: c.Mandatory, W: c.W, R: c.R, X: c.X, B: c.B}
	case *VEX:
		return jsonVEX{Kind: kind, Type: c.Type.String(), MMMMM: c.MMMMM, PP: c.PP,
			W: c.W, L: c.L, R: c.R, X: c.X, B: c.B, VVVV: c.VVVV}
	case *EVEX:
		return jsonEVEX{Kind: kind, MM: c.MM, PP: c.PP, W: c.W, LL: c.LL, RR: c.RR,
			B: c.B, X: c.X, VVVV: c.VVVV, V: c.V, Br: c.Br, AAA: c.AAA, Z: c.Z, Disp8xN: c.Disp8xN}
	case *MVEX:
		return jsonMVEX{Kind: kind, MMMM: c.MMMM, PP: c.PP, W: c.W, RR: c.RR, B: c.B,
			X: c.X, VVVV: c.VVVV, V: c.V, SSS: c.SSS, AAA: c.AAA, E: c.E}
	case *Opcode:
		return jsonOpcode{Kind: kind, Byte: c.Byte, Addend: c.Addend}
	case *ModRM:
		return jsonModRM{Kind: kind, Mode: c.Mode, Reg: c.Reg, RM: c.RM}
	case *Immediate:
		return jsonImmediate{Kind: kind, Size: c.Size, Value: c.Value}
	case *RegisterByte:
		return jsonRegisterByte{Kind: kind, Register: c.Register, Payload: c.Payload}
	case *CodeOffset:
		return jsonCodeOffset{Kind: kind, Size: c.Size, Value: c.Value}
	case *DataOffset:
		return jsonDataOffset{Kind: kind, Size: c.Size, Value: c.Value}
	default:
		panic(fmt.Sprintf("unexpected component type %T", c))
	}
}

// decodeStrict decodes data into v, rejecting
// unknown fields.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func unmarshalComponent(data []byte) (Component, error) {
	var head struct {
		Kind string `json:"kind"`
	}

	err := json.Unmarshal(data, &head)
	if err != nil {
		return nil, err
	}

	kind, ok := ComponentKinds[head.Kind]
	if !ok {
		return nil, fmt.Errorf("invalid encoding component kind %q", head.Kind)
	}

	switch kind {
	case KindPrefix:
		var j jsonPrefix
		err = decodeStrict(data, &j)
		return &Prefix{Byte: PrefixByte(j.Byte), Mandatory: j.Mandatory}, err
	case KindREX:
		var j jsonREX
		err = decodeStrict(data, &j)
		return &REX{Mandatory: j.Mandatory, W: j.W, R: j.R, X: j.X, B: j.B}, err
	case KindVEX:
		var j jsonVEX
		err = decodeStrict(data, &j)
		if err != nil {
			return nil, err
		}

		typ, ok := VEXTypes[j.Type]
		if !ok {
			return nil, fmt.Errorf("invalid VEX type %q", j.Type)
		}

		return &VEX{Type: typ, MMMMM: j.MMMMM, PP: j.PP, W: j.W, L: j.L, R: j.R, X: j.X, B: j.B, VVVV: j.VVVV}, nil
	case KindEVEX:
		var j jsonEVEX
		err = decodeStrict(data, &j)
		return &EVEX{MM: j.MM, PP: j.PP, W: j.W, LL: j.LL, RR: j.RR, B: j.B, X: j.X,
			VVVV: j.VVVV, V: j.V, Br: j.Br, AAA: j.AAA, Z: j.Z, Disp8xN: j.Disp8xN}, err
	case KindMVEX:
		var j jsonMVEX
		err = decodeStrict(data, &j)
		return &MVEX{MMMM: j.MMMM, PP: j.PP, W: j.W, RR: j.RR, B: j.B, X: j.X,
			VVVV: j.VVVV, V: j.V, SSS: j.SSS, AAA: j.AAA, E: j.E}, err
	case KindOpcode:
		var j jsonOpcode
		err = decodeStrict(data, &j)
		return &Opcode{Byte: j.Byte, Addend: j.Addend}, err
	case KindModRM:
		var j jsonModRM
		err = decodeStrict(data, &j)
		return &ModRM{Mode: j.Mode, Reg: j.Reg, RM: j.RM}, err
	case KindImmediate:
		var j jsonImmediate
		err = decodeStrict(data, &j)
		return &Immediate{Size: j.Size, Value: j.Value}, err
	case KindRegisterByte:
		var j jsonRegisterByte
		err = decodeStrict(data, &j)
		return &RegisterByte{Register: j.Register, Payload: j.Payload}, err
	case KindCodeOffset:
		var j jsonCodeOffset
		err = decodeStrict(data, &j)
		return &CodeOffset{Size: j.Size, Value: j.Value}, err
	case KindDataOffset:
		var j jsonDataOffset
		err = decodeStrict(data, &j)
		return &DataOffset{Size: j.Size, Value: j.Value}, err
	}

	panic("unreachable")
}

func (e Encoding) MarshalJSON() ([]byte, error) {
	j := jsonEncoding{Components: make([]json.RawMessage, len(e.Components))}
	for i, c := range e.Components {
		data, err := json.Marshal(marshalComponent(c))
		if err != nil {
			return nil, err
		}

		j.Components[i] = data
	}

	return json.Marshal(j)
}

func (e *Encoding) UnmarshalJSON(data []byte) error {
	var j jsonEncoding
	err := decodeStrict(data, &j)
	if err != nil {
		return err
	}

	e.Components = make([]Component, len(j.Components))
	for i, raw := range j.Components {
		e.Components[i], err = unmarshalComponent(raw)
		if err != nil {
			return fmt.Errorf("component %d: %v", i, err)
		}
	}

	return nil
}

// WriteJSON writes s to w as indented JSON.
func WriteJSON(w io.Writer, s *InstructionSet) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	return enc.Encode(s)
}

// WriteYAML writes s to w as YAML, with the same
// structure and key order as WriteJSON.
func WriteYAML(w io.Writer, s *InstructionSet) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}

	// JSON is a subset of YAML, so the node tree
	// keeps the key order. Clearing the styles
	// makes the encoder use block style.
	var doc yaml.Node
	err = yaml.Unmarshal(data, &doc)
	if err != nil {
		return err
	}

	clearStyle(&doc)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	err = enc.Encode(&doc)
	if err != nil {
		return err
	}

	return enc.Close()
}

func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		clearStyle(child)
	}
}

// FromJSON reads an instruction set previously
// written by WriteJSON, rejecting unknown fields,
// and validates it.
func FromJSON(r io.Reader) (*InstructionSet, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	s := new(InstructionSet)
	err := dec.Decode(s)
	if err != nil {
		return nil, err
	}

	err = s.Validate()
	if err != nil {
		return nil, err
	}

	return s, nil
}
