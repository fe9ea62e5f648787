// Package graph holds the executable form of a compiled circuit: a directed
// acyclic graph of primitive operations over the scalar field, together with
// the flattened input layout and the ordering of the witness vector. The
// package also provides the optimizer, the evaluator and the binary codec
// for the graph.
//
// A Graph is immutable once built: the optimizer produces a new Graph, and
// the evaluator only reads one, so a loaded Graph may be shared by any number
// of concurrent evaluations.
package graph

// SignalRange locates a named input signal inside the flattened input
// vector. Arrays occupy Len contiguous slots, flattened row-major.
type SignalRange struct {
	Offset int
	Len    int
}

// Graph is a compiled circuit.
type Graph struct {
	Nodes []Node

	// NbInputs is the length of the flattened input vector. Slot 0 always
	// holds the constant-one signal.
	NbInputs int

	// Inputs maps each declared input signal name to its slot range.
	Inputs map[string]SignalRange

	// Witness lists, in witness order, the node index producing each
	// witness value. Duplicates are permitted.
	Witness []int

	// Assertions lists node indices that must evaluate to a nonzero value;
	// a zero aborts evaluation with ConstraintViolation.
	Assertions []int
}

// Validate checks the structural invariants of the graph: every operand
// index strictly precedes its node, every input slot is within the declared
// input vector, and every witness and assertion entry references an existing
// node.
func (g *Graph) Validate() error {
	for i := range g.Nodes {
		n := &g.Nodes[i]
		bad := -1
		n.forEachOperand(func(j int) {
			if j < 0 || j >= i {
				bad = j
			}
		})
		if bad != -1 {
			return NodeErrorf(CodeMalformedGraph, i, "operand %d does not precede its node", bad)
		}
		if n.Kind == KindInput && (n.A < 0 || n.A >= g.NbInputs) {
			return NodeErrorf(CodeMalformedGraph, i, "input slot %d out of %d", n.A, g.NbInputs)
		}
		if n.Kind == KindMux && len(n.Cands) == 0 {
			return NodeErrorf(CodeMalformedGraph, i, "mux without candidates")
		}
	}
	for name, r := range g.Inputs {
		if r.Offset < 0 || r.Len <= 0 || r.Offset+r.Len > g.NbInputs {
			return &Error{
				Code:    CodeMalformedGraph,
				Message: "input range out of bounds",
				Node:    -1,
				Signal:  name,
			}
		}
	}
	for i, w := range g.Witness {
		if w < 0 || w >= len(g.Nodes) {
			return Errorf(CodeMalformedGraph, "witness entry %d references node %d of %d", i, w, len(g.Nodes))
		}
	}
	for _, a := range g.Assertions {
		if a < 0 || a >= len(g.Nodes) {
			return Errorf(CodeMalformedGraph, "assertion references node %d of %d", a, len(g.Nodes))
		}
	}
	return nil
}

// Stats summarizes the node population of a graph.
type Stats struct {
	NbConstants  int
	NbInputs     int
	NbUnary      int
	NbBinary     int
	NbTernary    int
	NbMux        int
	NbAssertions int
}

func (g *Graph) Stats() Stats {
	s := Stats{NbAssertions: len(g.Assertions)}
	for i := range g.Nodes {
		switch g.Nodes[i].Kind {
		case KindConstant:
			s.NbConstants++
		case KindInput:
			s.NbInputs++
		case KindUnary:
			s.NbUnary++
		case KindBinary:
			s.NbBinary++
		case KindTernary:
			s.NbTernary++
		case KindMux:
			s.NbMux++
		}
	}
	return s
}
