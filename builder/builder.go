// Package builder compiles a circuit description into an operation graph.
//
// Every template instantiation is inlined into a single global graph; there
// is no call mechanism at runtime. Control flow that depends only on
// compile-time values (template parameters, loop counters) is resolved while
// building, so the untaken branch and the unexecuted iteration leave no
// trace in the graph. Control flow that depends on a signal value is lowered
// to selection nodes: a conditional assignment becomes a ternary node and a
// signal-indexed array read becomes a multiplexer over every candidate cell.
//
// A template body compiles once per distinct parameter tuple, against
// placeholder input nodes. Each instantiation then splices a copy of that
// subgraph into the parent, substituting the actual input nodes for the
// placeholders.
package builder

import (
	"math/big"
	"strings"

	"github.com/consensys/gnark/logger"

	"github.com/iden3/circom-witnesscalc/field"
	"github.com/iden3/circom-witnesscalc/graph"
	"github.com/iden3/circom-witnesscalc/ir"
)

// Build compiles prog into an operation graph. The witness order is the
// constant-one signal, then the main component's output signals in
// declaration order, then its input signals in slot order. The result is
// unoptimized; callers normally pass it through graph.Optimize before
// serializing.
func Build(prog *ir.Program) (*graph.Graph, error) {
	log := logger.Logger()
	main := prog.Templates[prog.Main]
	if main == nil {
		return nil, graph.Errorf(graph.CodeUnsupportedFeature, "main template %q not defined", prog.Main)
	}
	if len(prog.MainArgs) != len(main.Params) {
		return nil, errAt(main.Pos, graph.CodeUnsupportedFeature,
			"main template %q takes %d parameters, got %d", prog.Main, len(main.Params), len(prog.MainArgs))
	}

	b := &builder{
		prog:   prog,
		root:   newSpace(),
		subs:   make(map[string]*subCircuit),
		making: make(map[string]bool),
		inputs: make(map[string]graph.SignalRange),
	}

	// slot 0 of the flattened input vector carries the constant one signal
	b.inputNodes = append(b.inputNodes, b.root.emit(graph.Input(0)))
	b.nbInputs = 1

	f := b.newFrame(frameMain, b.root, nil)
	for i, p := range main.Params {
		f.bindParam(p, b.elem(prog.MainArgs[i]))
	}
	if err := f.execBlock(main.Body); err != nil {
		return nil, err
	}

	witness := []int{b.inputNodes[0]}
	outNodes, err := f.outputNodes()
	if err != nil {
		return nil, err
	}
	witness = append(witness, outNodes...)
	witness = append(witness, b.inputNodes[1:]...)

	g := &graph.Graph{
		Nodes:      b.root.nodes,
		NbInputs:   b.nbInputs,
		Inputs:     b.inputs,
		Witness:    witness,
		Assertions: b.root.asserts,
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	log.Debug().
		Int("nbNodes", len(g.Nodes)).
		Int("nbInputs", g.NbInputs).
		Int("nbWitness", len(g.Witness)).
		Int("nbTemplates", len(b.subs)+1).
		Msg("circuit built")
	return g, nil
}

type builder struct {
	prog *ir.Program
	root *space

	// compiled template bodies, keyed by name and parameter tuple
	subs   map[string]*subCircuit
	making map[string]bool

	// flattened input vector of the main component
	nbInputs   int
	inputs     map[string]graph.SignalRange
	inputNodes []int

	callDepth int
}

// maxCallDepth bounds function recursion, maxLoopIters bounds a single
// counted loop. Both exist to turn a non-terminating circuit description
// into an error instead of a hang.
const (
	maxCallDepth = 256
	maxLoopIters = 1 << 24
)

func (b *builder) elem(x *big.Int) field.Element {
	v, ok := field.FromBigInt(x)
	if ok {
		return v
	}
	v, _ = field.FromBigInt(new(big.Int).Mod(x, field.Modulus()))
	return v
}

// space is a node arena nodes are emitted into: the root graph, or the body
// of a template being compiled against placeholder inputs.
type space struct {
	nodes     []graph.Node
	asserts   []int
	constants map[field.Element]int
}

func newSpace() *space {
	return &space{constants: make(map[field.Element]int)}
}

func (s *space) emit(n graph.Node) int {
	s.nodes = append(s.nodes, n)
	return len(s.nodes) - 1
}

func (s *space) constant(c field.Element) int {
	if i, ok := s.constants[c]; ok {
		return i
	}
	i := s.emit(graph.Constant(c))
	s.constants[c] = i
	return i
}

func (s *space) materialize(v value) int {
	if v.kind == valConst {
		return s.constant(v.c)
	}
	return v.node
}

// value is what an expression evaluates to while building: a compile-time
// field element, or a node of the graph under construction. valNone marks an
// unassigned signal cell.
type valueKind uint8

const (
	valNone valueKind = iota
	valConst
	valNode
)

type value struct {
	kind valueKind
	node int
	c    field.Element
}

func constValue(c field.Element) value { return value{kind: valConst, c: c} }
func nodeValue(n int) value            { return value{kind: valNode, node: n} }

func sameValue(a, b value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case valConst:
		return a.c == b.c
	case valNode:
		return a.node == b.node
	}
	return true
}

func errAt(pos ir.Pos, code graph.Code, format string, args ...interface{}) *graph.Error {
	e := graph.Errorf(code, format, args...)
	e.Pos = pos.String()
	return e
}

// constIndex resolves a compile-time value to a non-negative int, for array
// subscripts and dimensions.
func constIndex(v value, pos ir.Pos, what string) (int, error) {
	if v.kind != valConst {
		return 0, errAt(pos, graph.CodeNonConstantControlFlow, "%s is not a compile-time constant", what)
	}
	x := field.ToBigInt(v.c)
	if !x.IsInt64() || x.Int64() < 0 || x.Int64() > 1<<31 {
		return 0, errAt(pos, graph.CodeUnknown, "%s %s out of range", what, x)
	}
	return int(x.Int64()), nil
}

var binOps = map[ir.BinOp]graph.Op{
	ir.Add: graph.OpAdd, ir.Sub: graph.OpSub, ir.Mul: graph.OpMul,
	ir.Div: graph.OpDiv, ir.IntDiv: graph.OpIntDiv, ir.Mod: graph.OpMod,
	ir.Pow: graph.OpPow, ir.Shl: graph.OpShl, ir.Shr: graph.OpShr,
	ir.BitAnd: graph.OpBand, ir.BitOr: graph.OpBor, ir.BitXor: graph.OpBxor,
	ir.Eq: graph.OpEq, ir.Neq: graph.OpNeq, ir.Lt: graph.OpLt,
	ir.Gt: graph.OpGt, ir.Leq: graph.OpLeq, ir.Geq: graph.OpGeq,
	ir.And: graph.OpLand, ir.Or: graph.OpLor,
}

var unOps = map[ir.UnOp]graph.Op{
	ir.Neg: graph.OpNeg, ir.Not: graph.OpLnot, ir.Complement: graph.OpBnot,
}

func subKey(name string, args []field.Element) string {
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(field.ToBigInt(a).String())
	}
	sb.WriteByte(')')
	return sb.String()
}
