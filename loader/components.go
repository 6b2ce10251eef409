// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package loader

import (
	"firefly-os.dev/opcodes/arch"
	"firefly-os.dev/opcodes/isa"
)

// readComponent builds the encoding component
// described by n. Unknown tags, and tags the
// architecture does not use, produce a non-fatal
// UnknownComponentTag error.
func readComponent(n *node, p *arch.Profile) (isa.Component, error) {
	kind, ok := isa.ComponentKinds[n.Name]
	if !ok {
		return nil, isa.Errorf(isa.UnknownComponentTag, "", "unknown encoding component %s%s", n.Name, didYouMean(n.Name, p.Components))
	}

	if !p.Allows(kind) {
		return nil, isa.Errorf(isa.UnknownComponentTag, "", "encoding component %s is not used in %s descriptions", n.Name, p.Name)
	}

	r := newComponentReader(n, p)

	var c isa.Component
	switch kind {
	case isa.KindPrefix:
		c = &isa.Prefix{
			Byte:      isa.PrefixByte(r.hex("byte")),
			Mandatory: r.boolean("mandatory", false),
		}
	case isa.KindREX:
		c = &isa.REX{
			Mandatory: r.boolean("mandatory", false),
			W:         r.field("W", 2),
			R:         r.field("R", 2),
			X:         r.field("X", 2, bxRef),
			B:         r.field("B", 2, bxRef),
		}
	case isa.KindVEX:
		c = &isa.VEX{
			Type:  r.vexType(),
			MMMMM: r.bits("m-mmmm", 5),
			PP:    r.bits("pp", 2),
			W:     r.field("W", 2),
			L:     r.field("L", 2),
			R:     r.field("R", 2),
			X:     r.field("X", 2, bxRef),
			B:     r.field("B", 2, bxRef),
			VVVV:  r.field("vvvv", 2),
		}
	case isa.KindEVEX:
		c = &isa.EVEX{
			MM:      r.bits("mm", 2),
			PP:      r.bits("pp", 2),
			W:       r.field("W", 2),
			LL:      r.field("LL", 2),
			RR:      r.field("RR", 2),
			B:       r.field("B", 2, bxRef),
			X:       r.field("X", 2, bxRef),
			VVVV:    r.field("vvvv", 2),
			V:       r.field("V", 2),
			Br:      r.field("b", 2),
			AAA:     r.field("aaa", 2),
			Z:       r.field("z", 2),
			Disp8xN: r.integer("disp8xN"),
		}
	case isa.KindMVEX:
		c = &isa.MVEX{
			MMMM: r.bits("mmmm", 4),
			PP:   r.bits("pp", 2),
			W:    r.field("W", 2),
			RR:   r.field("RR", 2),
			B:    r.field("B", 2, bxRef),
			X:    r.field("X", 2, bxRef),
			VVVV: r.field("vvvv", 2),
			V:    r.field("V", 2),
			SSS:  r.field("SSS", 2),
			AAA:  r.field("aaa", 2),
			E:    r.field("E", 2),
		}
	case isa.KindOpcode:
		c = &isa.Opcode{
			Byte:   r.hex("byte"),
			Addend: r.ref("addend"),
		}
	case isa.KindModRM:
		c = &isa.ModRM{
			Mode: r.field("mode", 2),
			Reg:  r.field("reg", 10),
			RM:   r.ref("rm"),
		}
	case isa.KindImmediate:
		c = &isa.Immediate{
			Size:  r.integer("size"),
			Value: r.ref("value", valueRef),
		}
	case isa.KindRegisterByte:
		c = &isa.RegisterByte{
			Register: r.ref("register"),
			Payload:  r.ref("payload"),
		}
	case isa.KindCodeOffset:
		c = &isa.CodeOffset{
			Size:  r.integer("size"),
			Value: r.ref("value", valueRef),
		}
	case isa.KindDataOffset:
		c = &isa.DataOffset{
			Size:  r.integer("size"),
			Value: r.ref("value", valueRef),
		}
	}

	if p.Strict {
		r.checkUnused()
	}

	if r.err != nil {
		return nil, r.err
	}

	return c, nil
}
