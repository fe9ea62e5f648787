package graph

import (
	"fmt"
	"io"
	"math/big"

	"github.com/iden3/circom-witnesscalc/field"
)

// EvalNodes evaluates every node exactly once, in index order, and returns
// the value of each node. The acyclicity invariant makes ascending index
// order a valid topological order, so this is a single linear scan with no
// recursion and no re-visitation.
//
// inputs must have length g.NbInputs; the caller owns the layout (slot 0 is
// the constant-one signal).
func EvalNodes(g *Graph, inputs []field.Element) ([]field.Element, error) {
	if len(inputs) != g.NbInputs {
		panic("input vector length mismatch")
	}

	asserted := make([]bool, len(g.Nodes))
	for _, a := range g.Assertions {
		asserted[a] = true
	}

	values := make([]field.Element, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		switch n.Kind {
		case KindConstant:
			values[i] = n.Value
		case KindInput:
			values[i] = inputs[n.A]
		case KindUnary:
			v, err := EvalUnary(n.Op, values[n.A])
			if err != nil {
				return nil, NodeErrorf(CodeUnsupportedFeature, i, "%v", err)
			}
			values[i] = v
		case KindBinary:
			v, ok, err := EvalBinary(n.Op, values[n.A], values[n.B])
			if err != nil {
				return nil, NodeErrorf(CodeUnsupportedFeature, i, "%v", err)
			}
			if !ok {
				return nil, NodeErrorf(CodeDivisionByZero, i, "%s with zero divisor", n.Op)
			}
			values[i] = v
		case KindTernary:
			// both branches are already evaluated; select by value
			if values[n.A].IsZero() {
				values[i] = values[n.C]
			} else {
				values[i] = values[n.B]
			}
		case KindMux:
			sel, ok := muxIndex(values[n.A], len(n.Cands))
			if !ok {
				return nil, NodeErrorf(CodeConstraintViolation, i,
					"mux selector %s out of %d candidates",
					field.ToBigInt(values[n.A]), len(n.Cands))
			}
			values[i] = values[n.Cands[sel]]
		default:
			return nil, NodeErrorf(CodeMalformedGraph, i, "invalid node kind")
		}
		if asserted[i] && values[i].IsZero() {
			return nil, NodeErrorf(CodeConstraintViolation, i, "assertion failed")
		}
	}
	return values, nil
}

// Evaluate computes the witness vector: the values of the nodes listed in
// g.Witness, in that order.
func Evaluate(g *Graph, inputs []field.Element) ([]field.Element, error) {
	values, err := EvalNodes(g, inputs)
	if err != nil {
		return nil, err
	}
	out := make([]field.Element, len(g.Witness))
	for i, w := range g.Witness {
		out[i] = values[w]
	}
	return out, nil
}

func muxIndex(sel field.Element, nbCands int) (int, bool) {
	x := field.ToBigInt(sel)
	if !x.IsInt64() {
		return 0, false
	}
	i := x.Int64()
	if i < 0 || i >= int64(nbCands) {
		return 0, false
	}
	return int(i), true
}

// Trace writes the computation of node i, one line per transitive operand,
// for debugging a witness value. values must come from EvalNodes on the same
// graph.
func Trace(w io.Writer, g *Graph, values []field.Element, i int) {
	seen := make(map[int]bool)
	traceNode(w, g, values, i, seen)
}

func traceNode(w io.Writer, g *Graph, values []field.Element, i int, seen map[int]bool) {
	if seen[i] {
		return
	}
	seen[i] = true
	n := &g.Nodes[i]
	var v *big.Int
	if i < len(values) {
		v = field.ToBigInt(values[i])
	}
	fmt.Fprintf(w, "at [%d]: %s = %v\n", i, n, v)
	n.forEachOperand(func(j int) {
		traceNode(w, g, values, j, seen)
	})
}
