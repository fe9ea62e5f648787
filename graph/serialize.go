package graph

import (
	"sort"

	"github.com/iden3/circom-witnesscalc/field"
	"github.com/iden3/circom-witnesscalc/utils"
)

// Binary container layout (all integers little-endian):
//
//	u64 magic, u32 version
//	modulus (field.Bytes, little-endian) -- the file is self-describing
//	u64 input vector length
//	u64 input count, then per input: string name, u64 offset, u64 len
//	u64 node count, then per node: u8 kind + kind-specific payload
//	u64 assertion count + u64 entries
//	u64 witness count + u64 entries
//
// Input entries are sorted by name so that re-encoding the same graph is
// byte-for-byte deterministic.
const (
	graphMagic   = 0x68707267736e7477 // "wtnsgrph"
	graphVersion = 1
)

// Serialize encodes the graph into its binary container.
func (g *Graph) Serialize() []byte {
	o := utils.OutputBuf{}
	o.AppendUint64(graphMagic)
	o.AppendUint32(graphVersion)
	o.AppendBigInt(field.Bytes, field.Modulus())

	o.AppendUint64(uint64(g.NbInputs))
	names := make([]string, 0, len(g.Inputs))
	for name := range g.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	o.AppendUint64(uint64(len(names)))
	for _, name := range names {
		r := g.Inputs[name]
		o.AppendString(name)
		o.AppendUint64(uint64(r.Offset))
		o.AppendUint64(uint64(r.Len))
	}

	o.AppendUint64(uint64(len(g.Nodes)))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		o.AppendUint8(uint8(n.Kind))
		switch n.Kind {
		case KindConstant:
			o.AppendBigInt(field.Bytes, field.ToBigInt(n.Value))
		case KindInput:
			o.AppendUint64(uint64(n.A))
		case KindUnary:
			o.AppendUint8(uint8(n.Op))
			o.AppendUint64(uint64(n.A))
		case KindBinary:
			o.AppendUint8(uint8(n.Op))
			o.AppendUint64(uint64(n.A))
			o.AppendUint64(uint64(n.B))
		case KindTernary:
			o.AppendUint64(uint64(n.A))
			o.AppendUint64(uint64(n.B))
			o.AppendUint64(uint64(n.C))
		case KindMux:
			o.AppendUint64(uint64(n.A))
			o.AppendUint64(uint64(len(n.Cands)))
			for _, c := range n.Cands {
				o.AppendUint64(uint64(c))
			}
		}
	}

	o.AppendUint64(uint64(len(g.Assertions)))
	for _, a := range g.Assertions {
		o.AppendUint64(uint64(a))
	}
	o.AppendUint64(uint64(len(g.Witness)))
	for _, w := range g.Witness {
		o.AppendUint64(uint64(w))
	}
	return o.Bytes()
}

// Deserialize decodes a binary container produced by Serialize and validates
// the structural invariants of the result.
func Deserialize(buf []byte) (*Graph, error) {
	in := utils.NewInputBuf(buf)
	if in.ReadUint64() != graphMagic {
		return nil, Errorf(CodeMalformedGraph, "bad magic")
	}
	if v := in.ReadUint32(); v != graphVersion {
		if in.Err() != nil {
			return nil, Errorf(CodeMalformedGraph, "truncated header")
		}
		return nil, Errorf(CodeUnsupportedGraphVersion, "graph version %d, expected %d", v, graphVersion)
	}
	modulus := in.ReadBigInt(field.Bytes)
	if in.Err() != nil {
		return nil, Errorf(CodeMalformedGraph, "truncated header")
	}
	if modulus.Cmp(field.Modulus()) != 0 {
		return nil, Errorf(CodeFieldMismatch, "graph modulus %s does not match the evaluator field", modulus)
	}

	g := &Graph{Inputs: make(map[string]SignalRange)}
	g.NbInputs = int(in.ReadUint64())
	nbInputNames := in.ReadUint64()
	for i := uint64(0); i < nbInputNames; i++ {
		name := in.ReadString()
		offset := int(in.ReadUint64())
		length := int(in.ReadUint64())
		if in.Err() != nil {
			return nil, Errorf(CodeMalformedGraph, "truncated input table")
		}
		if _, ok := g.Inputs[name]; ok {
			return nil, Errorf(CodeMalformedGraph, "duplicate input name %q", name)
		}
		g.Inputs[name] = SignalRange{Offset: offset, Len: length}
	}

	nbNodes := in.ReadUint64()
	for i := uint64(0); i < nbNodes; i++ {
		var n Node
		n.Kind = Kind(in.ReadUint8())
		switch n.Kind {
		case KindConstant:
			v, ok := field.FromBigInt(in.ReadBigInt(field.Bytes))
			if !ok && in.Err() == nil {
				return nil, NodeErrorf(CodeMalformedGraph, int(i), "constant out of field range")
			}
			n.Value = v
		case KindInput:
			n.A = int(in.ReadUint64())
		case KindUnary:
			n.Op = Op(in.ReadUint8())
			n.A = int(in.ReadUint64())
			if n.Op != OpNeg && n.Op != OpBnot && n.Op != OpLnot {
				return nil, NodeErrorf(CodeMalformedGraph, int(i), "invalid unary operator tag %d", n.Op)
			}
		case KindBinary:
			n.Op = Op(in.ReadUint8())
			n.A = int(in.ReadUint64())
			n.B = int(in.ReadUint64())
			if n.Op < OpAdd || n.Op >= opMax {
				return nil, NodeErrorf(CodeMalformedGraph, int(i), "invalid binary operator tag %d", n.Op)
			}
		case KindTernary:
			n.A = int(in.ReadUint64())
			n.B = int(in.ReadUint64())
			n.C = int(in.ReadUint64())
		case KindMux:
			n.A = int(in.ReadUint64())
			nbCands := in.ReadUint64()
			if nbCands > uint64(in.Remaining())/8 {
				return nil, NodeErrorf(CodeMalformedGraph, int(i), "mux candidate count %d exceeds container", nbCands)
			}
			n.Cands = make([]int, nbCands)
			for j := range n.Cands {
				n.Cands[j] = int(in.ReadUint64())
			}
		default:
			if in.Err() != nil {
				return nil, Errorf(CodeMalformedGraph, "truncated node table")
			}
			return nil, NodeErrorf(CodeMalformedGraph, int(i), "invalid node kind tag %d", n.Kind)
		}
		g.Nodes = append(g.Nodes, n)
	}

	nbAssertions := in.ReadUint64()
	if nbAssertions > uint64(in.Remaining())/8 {
		return nil, Errorf(CodeMalformedGraph, "assertion count %d exceeds container", nbAssertions)
	}
	g.Assertions = make([]int, nbAssertions)
	for i := range g.Assertions {
		g.Assertions[i] = int(in.ReadUint64())
	}
	nbWitness := in.ReadUint64()
	if nbWitness > uint64(in.Remaining())/8 {
		return nil, Errorf(CodeMalformedGraph, "witness count %d exceeds container", nbWitness)
	}
	g.Witness = make([]int, nbWitness)
	for i := range g.Witness {
		g.Witness[i] = int(in.ReadUint64())
	}

	if in.Err() != nil {
		return nil, Errorf(CodeMalformedGraph, "truncated container")
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
