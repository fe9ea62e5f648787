package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iden3/circom-witnesscalc/field"
)

func TestOptimizeFoldsConstants(t *testing.T) {
	// (2*3) + a
	g := &Graph{NbInputs: 2, Inputs: map[string]SignalRange{"a": {Offset: 1, Len: 1}}}
	g.Nodes = append(g.Nodes, Input(0))
	g.Nodes = append(g.Nodes, Input(1))
	g.Nodes = append(g.Nodes, Constant(field.NewElement(2)))
	g.Nodes = append(g.Nodes, Constant(field.NewElement(3)))
	g.Nodes = append(g.Nodes, Binary(OpMul, 2, 3))
	g.Nodes = append(g.Nodes, Binary(OpAdd, 4, 1))
	g.Witness = []int{0, 5, 1}

	opt, err := Optimize(g)
	require.NoError(t, err)
	require.NoError(t, opt.Validate())

	s := opt.Stats()
	require.Equal(t, 1, s.NbBinary, "mul of constants should fold away")
	require.Equal(t, 1, s.NbConstants)

	w, err := Evaluate(opt, inputVector(10))
	require.NoError(t, err)
	require.Equal(t, field.NewElement(16), w[1])

	// the original graph is untouched
	require.Len(t, g.Nodes, 6)
}

func TestOptimizeMergesSubexpressions(t *testing.T) {
	// a+b computed twice, including once with swapped operands
	g := &Graph{NbInputs: 3, Inputs: map[string]SignalRange{
		"a": {Offset: 1, Len: 1}, "b": {Offset: 2, Len: 1},
	}}
	g.Nodes = append(g.Nodes, Input(1))
	g.Nodes = append(g.Nodes, Input(2))
	g.Nodes = append(g.Nodes, Binary(OpAdd, 0, 1))
	g.Nodes = append(g.Nodes, Binary(OpAdd, 1, 0))
	g.Nodes = append(g.Nodes, Binary(OpMul, 2, 3))
	g.Witness = []int{4}

	opt, err := Optimize(g)
	require.NoError(t, err)
	require.Equal(t, 2, opt.Stats().NbBinary, "duplicate adds should merge")

	w, err := Evaluate(opt, inputVector(3, 4))
	require.NoError(t, err)
	require.Equal(t, field.NewElement(49), w[0])
}

func TestOptimizeAlgebraicIdentities(t *testing.T) {
	// ((a*1) + 0) - a == 0, and a/1 == a
	g := &Graph{NbInputs: 2, Inputs: map[string]SignalRange{"a": {Offset: 1, Len: 1}}}
	g.Nodes = append(g.Nodes, Input(1))
	g.Nodes = append(g.Nodes, Constant(field.One()))
	g.Nodes = append(g.Nodes, Constant(field.Zero()))
	g.Nodes = append(g.Nodes, Binary(OpMul, 0, 1))
	g.Nodes = append(g.Nodes, Binary(OpAdd, 3, 2))
	g.Nodes = append(g.Nodes, Binary(OpSub, 4, 0))
	g.Nodes = append(g.Nodes, Binary(OpDiv, 0, 1))
	g.Witness = []int{5, 6}

	opt, err := Optimize(g)
	require.NoError(t, err)

	s := opt.Stats()
	require.Equal(t, 0, s.NbBinary, "every operation should simplify away")

	w, err := Evaluate(opt, inputVector(9))
	require.NoError(t, err)
	require.Equal(t, field.Zero(), w[0])
	require.Equal(t, field.NewElement(9), w[1])
}

func TestOptimizeKeepsUnusedInputs(t *testing.T) {
	g := &Graph{NbInputs: 3, Inputs: map[string]SignalRange{
		"a": {Offset: 1, Len: 1}, "b": {Offset: 2, Len: 1},
	}}
	g.Nodes = append(g.Nodes, Input(0))
	g.Nodes = append(g.Nodes, Input(1))
	g.Nodes = append(g.Nodes, Input(2)) // never referenced by the witness
	g.Nodes = append(g.Nodes, Binary(OpMul, 1, 1))
	g.Witness = []int{0, 3}

	opt, err := Optimize(g)
	require.NoError(t, err)
	require.Equal(t, 3, opt.Stats().NbInputs, "input nodes survive dead-node elimination")
	require.Equal(t, 3, opt.NbInputs)
	require.Equal(t, g.Inputs, opt.Inputs)
}

func TestOptimizeRemovesDeadNodes(t *testing.T) {
	g := &Graph{NbInputs: 2, Inputs: map[string]SignalRange{"a": {Offset: 1, Len: 1}}}
	g.Nodes = append(g.Nodes, Input(1))
	g.Nodes = append(g.Nodes, Binary(OpMul, 0, 0))
	g.Nodes = append(g.Nodes, Binary(OpAdd, 0, 1)) // dead
	g.Nodes = append(g.Nodes, Unary(OpNeg, 2))     // dead
	g.Witness = []int{1}

	opt, err := Optimize(g)
	require.NoError(t, err)
	require.Len(t, opt.Nodes, 2)

	w, err := Evaluate(opt, inputVector(6))
	require.NoError(t, err)
	require.Equal(t, field.NewElement(36), w[0])
}

func TestOptimizeIdempotent(t *testing.T) {
	g := testGraph()
	g.Nodes = append(g.Nodes, Ternary(4, 5, 3))
	g.Nodes = append(g.Nodes, Mux(4, []int{3, 5}))
	g.Witness = append(g.Witness, 6, 7)

	once, err := Optimize(g)
	require.NoError(t, err)
	twice, err := Optimize(once)
	require.NoError(t, err)
	require.Equal(t, once, twice)
}

func TestOptimizeConstantAssertionFails(t *testing.T) {
	g := &Graph{NbInputs: 1}
	g.Nodes = append(g.Nodes, Input(0))
	g.Nodes = append(g.Nodes, Constant(field.NewElement(1)))
	g.Nodes = append(g.Nodes, Constant(field.NewElement(2)))
	g.Nodes = append(g.Nodes, Binary(OpEq, 1, 2))
	g.Witness = []int{0}
	g.Assertions = []int{3}

	_, err := Optimize(g)
	require.True(t, errors.Is(err, ErrConstraintViolation))
}

func TestOptimizeConstantAssertionHoldsIsDropped(t *testing.T) {
	g := &Graph{NbInputs: 1}
	g.Nodes = append(g.Nodes, Input(0))
	g.Nodes = append(g.Nodes, Constant(field.NewElement(2)))
	g.Nodes = append(g.Nodes, Binary(OpEq, 1, 1))
	g.Witness = []int{0}
	g.Assertions = []int{2}

	opt, err := Optimize(g)
	require.NoError(t, err)
	require.Empty(t, opt.Assertions)
}

func TestOptimizeConstantDivisionByZero(t *testing.T) {
	g := &Graph{NbInputs: 2, Inputs: map[string]SignalRange{"a": {Offset: 1, Len: 1}}}
	g.Nodes = append(g.Nodes, Input(1))
	g.Nodes = append(g.Nodes, Constant(field.Zero()))
	g.Nodes = append(g.Nodes, Binary(OpIntDiv, 0, 1))
	g.Witness = []int{2}

	_, err := Optimize(g)
	require.True(t, errors.Is(err, ErrDivisionByZero))
}

func TestOptimizeConstantMuxSelectorOutOfRange(t *testing.T) {
	g := &Graph{NbInputs: 2, Inputs: map[string]SignalRange{"a": {Offset: 1, Len: 1}}}
	g.Nodes = append(g.Nodes, Input(1))
	g.Nodes = append(g.Nodes, Constant(field.NewElement(5)))
	g.Nodes = append(g.Nodes, Mux(1, []int{0, 0}))
	g.Witness = []int{2}

	_, err := Optimize(g)
	require.True(t, errors.Is(err, ErrConstraintViolation))
}

func TestOptimizeConstantTernary(t *testing.T) {
	g := &Graph{NbInputs: 2, Inputs: map[string]SignalRange{"a": {Offset: 1, Len: 1}}}
	g.Nodes = append(g.Nodes, Input(1))
	g.Nodes = append(g.Nodes, Constant(field.NewElement(1)))
	g.Nodes = append(g.Nodes, Unary(OpNeg, 0))
	g.Nodes = append(g.Nodes, Ternary(1, 0, 2))
	g.Witness = []int{3}

	opt, err := Optimize(g)
	require.NoError(t, err)
	require.Equal(t, 0, opt.Stats().NbTernary)

	w, err := Evaluate(opt, inputVector(11))
	require.NoError(t, err)
	require.Equal(t, field.NewElement(11), w[0])
}
