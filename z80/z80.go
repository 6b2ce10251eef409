// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package z80 converts tables of z80 instruction forms into the
// XML description format used by the other architectures, and
// reads the result back.
//
// The forms table is a CSV file with the header
//
//	instructionform,opcode,timing_z80,timing_z80_m1,timing_r800,timing_r800_wait
//
// where each instruction form is a mnemonic, optionally followed by
// a space and a comma-separated argument list, and each opcode is a
// space-separated list of bytes. The descriptions table has the
// header
//
//	instruction,description
//
// and supplies the summary for each mnemonic.
package z80

import (
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/exp/slices"
)

// Instruction is a z80 mnemonic and its forms.
type Instruction struct {
	Name    string `xml:"name,attr"`
	Summary string `xml:"summary,attr"`
	Forms   []Form `xml:"InstructionForm"`
}

// Form is one row of the forms table.
type Form struct {
	Form    string `xml:"form,attr"`    // Such as "LD A, B".
	Z80Name string `xml:"z80name,attr"` // Lower-case mnemonic.

	Encoding Encoding  `xml:"Encoding"`
	Argument *Argument `xml:"Argument"`

	TimingZ80      *Timing `xml:"TimingZ80"`
	TimingZ80M1    *Timing `xml:"TimingZ80M1"`
	TimingR800     *Timing `xml:"TimingR800"`
	TimingR800Wait *Timing `xml:"TimingR800Wait"`
}

// Encoding lists the opcode bytes of a form, as
// written in the forms table.
type Encoding struct {
	Opcodes []Opcode `xml:"Opcode"`
}

type Opcode struct {
	Byte string `xml:"byte,attr"`
}

// Argument is the first argument of a form. Exactly
// one of Reg and Arg is set.
type Argument struct {
	Reg string `xml:"reg,attr,omitempty"`
	Arg string `xml:"arg,attr,omitempty"`
}

// Timing is a cycle count, such as "4" or "11/16".
type Timing struct {
	Value string `xml:"value,attr"`
}

type document struct {
	XMLName      xml.Name      `xml:"InstructionSet"`
	Name         string        `xml:"name,attr"`
	Instructions []Instruction `xml:"Instruction"`
}

// registers are the argument names written as
// reg attributes.
var registers = map[string]bool{
	"A": true, "B": true, "C": true, "D": true, "E": true, "H": true, "L": true,
	"I":  true,
	"BC": true, "DE": true, "HL": true, "SP": true,
	"IX": true, "IY": true,
}

var formsHeader = []string{
	"instructionform",
	"opcode",
	"timing_z80",
	"timing_z80_m1",
	"timing_r800",
	"timing_r800_wait",
}

var descriptionsHeader = []string{
	"instruction",
	"description",
}

// table reads a CSV file with a header row,
// returning each row as a map from the named
// columns to their values.
func table(r io.Reader, name string, columns []string) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s table is empty", name)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read %s table: %v", name, err)
	}

	index := make(map[string]int)
	for i, col := range header {
		index[strings.TrimSpace(col)] = i
	}

	for _, col := range columns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%s table has no %q column", name, col)
		}
	}

	var rows []map[string]string
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("failed to read %s table: %v", name, err)
		}

		row := make(map[string]string, len(columns))
		for _, col := range columns {
			row[col] = record[index[col]]
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// clean removes the superscript markers used
// for footnotes in the source tables.
func clean(s string) string {
	return strings.NewReplacer("²", "", "³", "").Replace(strings.TrimSpace(s))
}

func timing(s string) *Timing {
	s = clean(s)
	if s == "" {
		return nil
	}

	return &Timing{Value: s}
}

// Parse reads the forms and descriptions tables.
// Instructions are returned in the order their
// mnemonics first appear in the forms table.
func Parse(forms, descriptions io.Reader) ([]Instruction, error) {
	descRows, err := table(descriptions, "descriptions", descriptionsHeader)
	if err != nil {
		return nil, err
	}

	summaries := make(map[string]string)
	for _, row := range descRows {
		name := strings.TrimSpace(row["instruction"])
		if _, ok := summaries[name]; !ok {
			summaries[name] = strings.ReplaceAll(row["description"], `"`, "")
		}
	}

	formRows, err := table(forms, "forms", formsHeader)
	if err != nil {
		return nil, err
	}

	var order []string
	byName := make(map[string][]Form)
	for i, row := range formRows {
		text := clean(row["instructionform"])
		mnemonic, args, err := splitForm(text)
		if err != nil {
			return nil, fmt.Errorf("forms table row %d: %v", i+2, err)
		}

		if !slices.Contains(order, mnemonic) {
			order = append(order, mnemonic)
		}

		form := Form{
			Form:           text,
			Z80Name:        strings.ToLower(mnemonic),
			Argument:       argument(args),
			TimingZ80:      timing(row["timing_z80"]),
			TimingZ80M1:    timing(row["timing_z80_m1"]),
			TimingR800:     timing(row["timing_r800"]),
			TimingR800Wait: timing(row["timing_r800_wait"]),
		}

		// Separate the last two arguments with a
		// space, so the form can be used in a URL
		// fragment.
		if i := strings.LastIndexByte(text, ','); i >= 0 {
			form.Form = text[:i] + ", " + text[i+1:]
		}

		for _, b := range strings.Fields(row["opcode"]) {
			form.Encoding.Opcodes = append(form.Encoding.Opcodes, Opcode{Byte: b})
		}

		byName[mnemonic] = append(byName[mnemonic], form)
	}

	insts := make([]Instruction, 0, len(order))
	for _, name := range order {
		insts = append(insts, Instruction{
			Name:    strings.ToLower(name),
			Summary: summaries[name],
			Forms:   byName[name],
		})
	}

	return insts, nil
}

// splitForm splits an instruction form into its
// mnemonic and arguments.
func splitForm(form string) (mnemonic string, args []string, err error) {
	parts := strings.Split(form, " ")
	switch len(parts) {
	case 1:
		return parts[0], nil, nil
	case 2:
		return parts[0], strings.Split(parts[1], ","), nil
	default:
		return "", nil, fmt.Errorf("invalid instruction form %q: want a mnemonic and at most one argument list", form)
	}
}

func argument(args []string) *Argument {
	if len(args) == 0 || args[0] == "" {
		return nil
	}

	arg := args[0]
	if registers[arg] {
		return &Argument{Reg: strings.ToLower(arg)}
	}

	return &Argument{Arg: strings.ToLower(arg)}
}

// Write writes the instructions as an XML
// description.
func Write(w io.Writer, insts []Instruction) error {
	doc := document{Name: "z80", Instructions: insts}
	data, err := xml.MarshalIndent(doc, "", "\t")
	if err != nil {
		return fmt.Errorf("failed to encode z80 instructions: %v", err)
	}

	_, err = io.WriteString(w, xml.Header)
	if err != nil {
		return err
	}

	data = append(data, '\n')
	_, err = w.Write(data)

	return err
}

// Generate reads the forms and descriptions tables
// and writes the XML description to w.
func Generate(forms, descriptions io.Reader, w io.Writer) error {
	insts, err := Parse(forms, descriptions)
	if err != nil {
		return err
	}

	return Write(w, insts)
}

// Read parses an XML description produced by
// Generate.
func Read(r io.Reader) ([]Instruction, error) {
	var doc document
	err := xml.NewDecoder(r).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode z80 instructions: %v", err)
	}

	if doc.Name != "z80" {
		return nil, fmt.Errorf("instruction set is for %q, not z80", doc.Name)
	}

	return doc.Instructions, nil
}
