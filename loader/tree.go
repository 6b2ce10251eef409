// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package loader

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"firefly-os.dev/opcodes/isa"
)

// node is an XML element. Attributes and children
// are kept in document order.
type node struct {
	Name     string
	Attrs    []xml.Attr
	Children []*node
	Line     int

	used map[string]bool // Attributes that have been read.
}

// attr returns the named attribute, marking it
// as used.
func (n *node) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			if n.used == nil {
				n.used = make(map[string]bool)
			}

			n.used[name] = true
			return a.Value, true
		}
	}

	return "", false
}

// has returns whether the named attribute is
// present, without marking it as used.
func (n *node) has(name string) bool {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return true
		}
	}

	return false
}

// unused returns the first attribute that has
// not been read.
func (n *node) unused() (string, bool) {
	for _, a := range n.Attrs {
		if !n.used[a.Name.Local] {
			return a.Name.Local, true
		}
	}

	return "", false
}

// children returns the children with the given
// name.
func (n *node) children(name string) []*node {
	var out []*node
	for _, child := range n.Children {
		if child.Name == name {
			out = append(out, child)
		}
	}

	return out
}

// parseTree reads a complete XML document and
// returns its root element. Character data
// other than whitespace is rejected, as no
// element in a description has text content.
func parseTree(r io.Reader) (*node, error) {
	dec := xml.NewDecoder(r)
	var root *node
	var stack []*node
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, isa.Errorf(isa.SchemaMismatch, "", "invalid XML: %v", err)
		}

		line, _ := dec.InputPos()
		switch tok := tok.(type) {
		case xml.StartElement:
			n := &node{
				Name:  tok.Name.Local,
				Attrs: tok.Copy().Attr,
				Line:  line,
			}

			if len(stack) == 0 {
				if root != nil {
					return nil, isa.Errorf(isa.SchemaMismatch, "", "line %d: second root element %s", line, n.Name)
				}

				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}

			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) != 0 && strings.TrimSpace(string(tok)) != "" {
				return nil, isa.Errorf(isa.SchemaMismatch, "", "line %d: unexpected text in %s", line, stack[len(stack)-1].Name)
			}
		}
	}

	if root == nil {
		return nil, isa.Errorf(isa.SchemaMismatch, "", "empty document")
	}

	if len(stack) != 0 {
		return nil, isa.Errorf(isa.SchemaMismatch, "", "unclosed element %s", stack[len(stack)-1].Name)
	}

	return root, nil
}
