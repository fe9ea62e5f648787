package builder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iden3/circom-witnesscalc/field"
	"github.com/iden3/circom-witnesscalc/graph"
	"github.com/iden3/circom-witnesscalc/ir"
)

func prog(main *ir.Template, args []int64, more ...interface{}) *ir.Program {
	p := &ir.Program{
		Templates: map[string]*ir.Template{main.Name: main},
		Functions: map[string]*ir.Function{},
		Main:      main.Name,
	}
	for _, a := range args {
		p.MainArgs = append(p.MainArgs, ir.Num(a).Value)
	}
	for _, m := range more {
		switch m := m.(type) {
		case *ir.Template:
			p.Templates[m.Name] = m
		case *ir.Function:
			p.Functions[m.Name] = m
		}
	}
	return p
}

func inSig(name string, dims ...ir.Expr) *ir.DeclareSignal {
	return &ir.DeclareSignal{Name: name, Kind: ir.SignalInput, Dims: dims}
}

func outSig(name string, dims ...ir.Expr) *ir.DeclareSignal {
	return &ir.DeclareSignal{Name: name, Kind: ir.SignalOutput, Dims: dims}
}

func run(t *testing.T, g *graph.Graph, inputs ...uint64) []field.Element {
	t.Helper()
	vec := make([]field.Element, g.NbInputs)
	vec[0] = field.One()
	require.Len(t, inputs, g.NbInputs-1)
	for i, v := range inputs {
		vec[i+1] = field.NewElement(v)
	}
	w, err := graph.Evaluate(g, vec)
	require.NoError(t, err)
	return w
}

func TestBuildMultiplier(t *testing.T) {
	// c <== a*b + 3
	main := &ir.Template{Name: "Main", Body: []ir.Stmt{
		inSig("a"),
		inSig("b"),
		outSig("c"),
		ir.NewRef("c").Set(ir.Bin(ir.Add, ir.Bin(ir.Mul, ir.NewRef("a"), ir.NewRef("b")), ir.Num(3))),
	}}
	g, err := Build(prog(main, nil))
	require.NoError(t, err)
	require.Equal(t, 3, g.NbInputs)
	require.Equal(t, graph.SignalRange{Offset: 1, Len: 1}, g.Inputs["a"])
	require.Equal(t, graph.SignalRange{Offset: 2, Len: 1}, g.Inputs["b"])
	require.Len(t, g.Witness, 4)

	w := run(t, g, 5, 7)
	require.Equal(t, field.One(), w[0])
	require.Equal(t, field.NewElement(38), w[1])
	require.Equal(t, field.NewElement(5), w[2])
	require.Equal(t, field.NewElement(7), w[3])
}

func TestBuildConstantFoldsAtCompileTime(t *testing.T) {
	// out <== (2+3)*p with p a template parameter: everything is constant
	main := &ir.Template{Name: "Main", Params: []string{"p"}, Body: []ir.Stmt{
		outSig("out"),
		ir.NewRef("out").Set(ir.Bin(ir.Mul, ir.Bin(ir.Add, ir.Num(2), ir.Num(3)), ir.NewRef("p"))),
	}}
	g, err := Build(prog(main, []int64{9}))
	require.NoError(t, err)

	w := run(t, g)
	require.Equal(t, field.NewElement(45), w[1])
	// no arithmetic nodes survive, the output is a constant
	require.Equal(t, 0, g.Stats().NbBinary)
}

func TestBuildSignalConditional(t *testing.T) {
	// if (c) out <-- 10; else out <-- 20  lowers to a ternary
	main := &ir.Template{Name: "Main", Body: []ir.Stmt{
		inSig("c"),
		outSig("out"),
		&ir.If{
			Cond: ir.NewRef("c"),
			Then: []ir.Stmt{ir.NewRef("out").Set(ir.Num(10))},
			Else: []ir.Stmt{ir.NewRef("out").Set(ir.Num(20))},
		},
	}}
	g, err := Build(prog(main, nil))
	require.NoError(t, err)
	require.Equal(t, 1, g.Stats().NbTernary)

	require.Equal(t, field.NewElement(10), run(t, g, 1)[1])
	require.Equal(t, field.NewElement(20), run(t, g, 0)[1])
	require.Equal(t, field.NewElement(10), run(t, g, 5)[1])
}

func TestBuildStaticConditional(t *testing.T) {
	// a parameter condition resolves at build time, no ternary emitted
	main := &ir.Template{Name: "Main", Params: []string{"p"}, Body: []ir.Stmt{
		inSig("x"),
		outSig("out"),
		&ir.If{
			Cond: ir.Bin(ir.Gt, ir.NewRef("p"), ir.Num(5)),
			Then: []ir.Stmt{ir.NewRef("out").Set(ir.NewRef("x"))},
			Else: []ir.Stmt{ir.NewRef("out").Set(ir.Bin(ir.Mul, ir.NewRef("x"), ir.NewRef("x")))},
		},
	}}
	g, err := Build(prog(main, []int64{3}))
	require.NoError(t, err)
	require.Equal(t, 0, g.Stats().NbTernary)
	require.Equal(t, field.NewElement(49), run(t, g, 7)[1])
}

func TestBuildRuntimeArrayIndex(t *testing.T) {
	// out <== xs[i] with i a signal lowers to a mux
	main := &ir.Template{Name: "Main", Body: []ir.Stmt{
		inSig("i"),
		inSig("xs", ir.Num(3)),
		outSig("out"),
		ir.NewRef("out").Set(ir.NewRef("xs").Idx(ir.NewRef("i"))),
	}}
	g, err := Build(prog(main, nil))
	require.NoError(t, err)
	require.Equal(t, 1, g.Stats().NbMux)
	require.Equal(t, graph.SignalRange{Offset: 2, Len: 3}, g.Inputs["xs"])

	require.Equal(t, field.NewElement(30), run(t, g, 0, 30, 40, 50)[1])
	require.Equal(t, field.NewElement(50), run(t, g, 2, 30, 40, 50)[1])

	// out-of-range selector fails the evaluation
	vec := []field.Element{field.One(), field.NewElement(3),
		field.NewElement(30), field.NewElement(40), field.NewElement(50)}
	_, err = graph.Evaluate(g, vec)
	require.True(t, errors.Is(err, graph.ErrConstraintViolation))
}

func TestBuildConstantArrayIndexOutOfRange(t *testing.T) {
	main := &ir.Template{Name: "Main", Body: []ir.Stmt{
		inSig("xs", ir.Num(3)),
		outSig("out"),
		ir.NewRef("out").Set(ir.NewRef("xs").Idx(ir.Num(7))),
	}}
	_, err := Build(prog(main, nil))
	require.Error(t, err)
}

func TestBuildLoop(t *testing.T) {
	// out <== sum(xs[0..n))
	main := &ir.Template{Name: "Main", Params: []string{"n"}, Body: []ir.Stmt{
		inSig("xs", ir.NewRef("n")),
		outSig("out"),
		&ir.DeclareVar{Name: "acc"},
		&ir.For{
			Init: &ir.DeclareVar{Name: "i", Value: ir.Num(0)},
			Cond: ir.Bin(ir.Lt, ir.NewRef("i"), ir.NewRef("n")),
			Step: ir.NewRef("i").Set(ir.Bin(ir.Add, ir.NewRef("i"), ir.Num(1))),
			Body: []ir.Stmt{
				ir.NewRef("acc").Set(ir.Bin(ir.Add, ir.NewRef("acc"), ir.NewRef("xs").Idx(ir.NewRef("i")))),
			},
		},
		ir.NewRef("out").Set(ir.NewRef("acc")),
	}}
	g, err := Build(prog(main, []int64{4}))
	require.NoError(t, err)
	require.Equal(t, field.NewElement(10), run(t, g, 1, 2, 3, 4)[1])
}

func TestBuildNonConstantLoopBound(t *testing.T) {
	main := &ir.Template{Name: "Main", Body: []ir.Stmt{
		inSig("n"),
		outSig("out"),
		&ir.For{
			Init: &ir.DeclareVar{Name: "i", Value: ir.Num(0)},
			Cond: ir.Bin(ir.Lt, ir.NewRef("i"), ir.NewRef("n")),
			Step: ir.NewRef("i").Set(ir.Bin(ir.Add, ir.NewRef("i"), ir.Num(1))),
			Body: nil,
		},
		ir.NewRef("out").Set(ir.Num(0)),
	}}
	_, err := Build(prog(main, nil))
	require.True(t, errors.Is(err, graph.ErrNonConstantControlFlow))
}

func TestBuildComponents(t *testing.T) {
	// two chained squarers: out <== (a^2)^2
	square := &ir.Template{Name: "Square", Body: []ir.Stmt{
		inSig("in"),
		outSig("out"),
		ir.NewRef("out").Set(ir.Bin(ir.Mul, ir.NewRef("in"), ir.NewRef("in"))),
	}}
	main := &ir.Template{Name: "Main", Body: []ir.Stmt{
		inSig("a"),
		outSig("out"),
		&ir.DeclareComponent{Name: "sq", Dims: []ir.Expr{ir.Num(2)}},
		ir.NewRef("sq").Idx(ir.Num(0)).Set(ir.NewCall("Square")),
		ir.NewRef("sq").Idx(ir.Num(1)).Set(ir.NewCall("Square")),
		ir.NewRef("sq").Idx(ir.Num(0)).Member("in").Set(ir.NewRef("a")),
		ir.NewRef("sq").Idx(ir.Num(1)).Member("in").Set(ir.NewRef("sq").Idx(ir.Num(0)).Member("out")),
		ir.NewRef("out").Set(ir.NewRef("sq").Idx(ir.Num(1)).Member("out")),
	}}
	g, err := Build(prog(main, nil, square))
	require.NoError(t, err)
	require.Equal(t, field.NewElement(81), run(t, g, 3)[1])
}

func TestBuildParameterizedComponent(t *testing.T) {
	// Scale(k): out <== in*k, instantiated with two different parameters
	scale := &ir.Template{Name: "Scale", Params: []string{"k"}, Body: []ir.Stmt{
		inSig("in"),
		outSig("out"),
		ir.NewRef("out").Set(ir.Bin(ir.Mul, ir.NewRef("in"), ir.NewRef("k"))),
	}}
	main := &ir.Template{Name: "Main", Body: []ir.Stmt{
		inSig("a"),
		outSig("out"),
		&ir.DeclareComponent{Name: "s2"},
		&ir.DeclareComponent{Name: "s5"},
		ir.NewRef("s2").Set(ir.NewCall("Scale", ir.Num(2))),
		ir.NewRef("s5").Set(ir.NewCall("Scale", ir.Num(5))),
		ir.NewRef("s2").Member("in").Set(ir.NewRef("a")),
		ir.NewRef("s5").Member("in").Set(ir.NewRef("s2").Member("out")),
		ir.NewRef("out").Set(ir.NewRef("s5").Member("out")),
	}}
	g, err := Build(prog(main, nil, scale))
	require.NoError(t, err)
	require.Equal(t, field.NewElement(70), run(t, g, 7)[1])
}

func TestBuildComponentOutputBeforeRun(t *testing.T) {
	square := &ir.Template{Name: "Square", Body: []ir.Stmt{
		inSig("in"),
		outSig("out"),
		ir.NewRef("out").Set(ir.Bin(ir.Mul, ir.NewRef("in"), ir.NewRef("in"))),
	}}
	main := &ir.Template{Name: "Main", Body: []ir.Stmt{
		inSig("a"),
		outSig("out"),
		&ir.DeclareComponent{Name: "sq"},
		ir.NewRef("sq").Set(ir.NewCall("Square")),
		// reading out before assigning in
		ir.NewRef("out").Set(ir.NewRef("sq").Member("out")),
	}}
	_, err := Build(prog(main, nil, square))
	require.Error(t, err)
}

func TestBuildFunctionCall(t *testing.T) {
	double := &ir.Function{Name: "double", Params: []string{"x"}, Body: []ir.Stmt{
		&ir.Return{Value: ir.Bin(ir.Mul, ir.NewRef("x"), ir.Num(2))},
	}}
	main := &ir.Template{Name: "Main", Body: []ir.Stmt{
		inSig("a"),
		outSig("out"),
		ir.NewRef("out").Set(ir.NewCall("double", ir.NewRef("a"))),
	}}
	g, err := Build(prog(main, nil, double))
	require.NoError(t, err)
	require.Equal(t, field.NewElement(26), run(t, g, 13)[1])
}

func TestBuildRuntimeAssertion(t *testing.T) {
	// assert(a != 0); out <== a
	main := &ir.Template{Name: "Main", Body: []ir.Stmt{
		inSig("a"),
		outSig("out"),
		&ir.Assert{Cond: ir.Bin(ir.Neq, ir.NewRef("a"), ir.Num(0))},
		ir.NewRef("out").Set(ir.NewRef("a")),
	}}
	g, err := Build(prog(main, nil))
	require.NoError(t, err)
	require.Len(t, g.Assertions, 1)

	require.Equal(t, field.NewElement(4), run(t, g, 4)[1])

	vec := []field.Element{field.One(), field.Zero()}
	_, err = graph.Evaluate(g, vec)
	require.True(t, errors.Is(err, graph.ErrConstraintViolation))
}

func TestBuildConstantAssertionFails(t *testing.T) {
	main := &ir.Template{Name: "Main", Params: []string{"p"}, Body: []ir.Stmt{
		outSig("out"),
		&ir.Assert{Cond: ir.Bin(ir.Gt, ir.NewRef("p"), ir.Num(10))},
		ir.NewRef("out").Set(ir.Num(1)),
	}}
	_, err := Build(prog(main, []int64{3}))
	require.True(t, errors.Is(err, graph.ErrConstraintViolation))
}

func TestBuildGuardedAssertion(t *testing.T) {
	// the assertion only binds when the branch is taken
	main := &ir.Template{Name: "Main", Body: []ir.Stmt{
		inSig("c"),
		inSig("a"),
		outSig("out"),
		&ir.If{
			Cond: ir.NewRef("c"),
			Then: []ir.Stmt{&ir.Assert{Cond: ir.Bin(ir.Eq, ir.NewRef("a"), ir.Num(1))}},
		},
		ir.NewRef("out").Set(ir.NewRef("a")),
	}}
	g, err := Build(prog(main, nil))
	require.NoError(t, err)

	require.Equal(t, field.NewElement(9), run(t, g, 0, 9)[1]) // branch not taken
	require.Equal(t, field.NewElement(1), run(t, g, 1, 1)[1])

	vec := []field.Element{field.One(), field.One(), field.NewElement(9)}
	_, err = graph.Evaluate(g, vec)
	require.True(t, errors.Is(err, graph.ErrConstraintViolation))
}

func TestBuildVariableMergeInConditional(t *testing.T) {
	// v starts at 3; a signal branch reassigns it
	main := &ir.Template{Name: "Main", Body: []ir.Stmt{
		inSig("c"),
		outSig("out"),
		&ir.DeclareVar{Name: "v", Value: ir.Num(3)},
		&ir.If{
			Cond: ir.NewRef("c"),
			Then: []ir.Stmt{ir.NewRef("v").Set(ir.Num(8))},
		},
		ir.NewRef("out").Set(ir.NewRef("v")),
	}}
	g, err := Build(prog(main, nil))
	require.NoError(t, err)
	require.Equal(t, field.NewElement(8), run(t, g, 1)[1])
	require.Equal(t, field.NewElement(3), run(t, g, 0)[1])
}

func TestBuildSignalDependentTemplateParam(t *testing.T) {
	scale := &ir.Template{Name: "Scale", Params: []string{"k"}, Body: []ir.Stmt{
		inSig("in"), outSig("out"),
		ir.NewRef("out").Set(ir.Bin(ir.Mul, ir.NewRef("in"), ir.NewRef("k"))),
	}}
	main := &ir.Template{Name: "Main", Body: []ir.Stmt{
		inSig("a"),
		outSig("out"),
		&ir.DeclareComponent{Name: "s"},
		ir.NewRef("s").Set(ir.NewCall("Scale", ir.NewRef("a"))),
		ir.NewRef("s").Member("in").Set(ir.NewRef("a")),
		ir.NewRef("out").Set(ir.NewRef("s").Member("out")),
	}}
	_, err := Build(prog(main, nil, scale))
	require.True(t, errors.Is(err, graph.ErrNonConstantControlFlow))
}

func TestBuildSignalAssignedTwice(t *testing.T) {
	main := &ir.Template{Name: "Main", Body: []ir.Stmt{
		inSig("a"),
		outSig("out"),
		ir.NewRef("out").Set(ir.NewRef("a")),
		ir.NewRef("out").Set(ir.Num(1)),
	}}
	_, err := Build(prog(main, nil))
	require.Error(t, err)
}

func TestBuildTernaryExpression(t *testing.T) {
	// out <== c ? a+1 : a-1
	main := &ir.Template{Name: "Main", Body: []ir.Stmt{
		inSig("c"),
		inSig("a"),
		outSig("out"),
		ir.NewRef("out").Set(ir.Cond(ir.NewRef("c"),
			ir.Bin(ir.Add, ir.NewRef("a"), ir.Num(1)),
			ir.Bin(ir.Sub, ir.NewRef("a"), ir.Num(1)))),
	}}
	g, err := Build(prog(main, nil))
	require.NoError(t, err)
	require.Equal(t, field.NewElement(11), run(t, g, 1, 10)[1])
	require.Equal(t, field.NewElement(9), run(t, g, 0, 10)[1])
}

func TestBuildDivisionByConstantZero(t *testing.T) {
	main := &ir.Template{Name: "Main", Body: []ir.Stmt{
		inSig("a"),
		outSig("out"),
		ir.NewRef("out").Set(ir.Bin(ir.Div, ir.NewRef("a"), ir.Num(0))),
	}}
	_, err := Build(prog(main, nil))
	require.True(t, errors.Is(err, graph.ErrDivisionByZero))
}

func TestBuildRecursiveTemplate(t *testing.T) {
	rec := &ir.Template{Name: "Rec", Body: []ir.Stmt{
		inSig("in"),
		outSig("out"),
		&ir.DeclareComponent{Name: "r"},
		ir.NewRef("r").Set(ir.NewCall("Rec")),
		ir.NewRef("r").Member("in").Set(ir.NewRef("in")),
		ir.NewRef("out").Set(ir.NewRef("r").Member("out")),
	}}
	main := &ir.Template{Name: "Main", Body: []ir.Stmt{
		inSig("a"),
		outSig("out"),
		&ir.DeclareComponent{Name: "r"},
		ir.NewRef("r").Set(ir.NewCall("Rec")),
		ir.NewRef("r").Member("in").Set(ir.NewRef("a")),
		ir.NewRef("out").Set(ir.NewRef("r").Member("out")),
	}}
	_, err := Build(prog(main, nil, rec))
	require.True(t, errors.Is(err, graph.ErrUnsupportedFeature))
}

func TestBuildOptimizeEquivalence(t *testing.T) {
	// the optimizer must not change observable behavior
	main := &ir.Template{Name: "Main", Params: []string{"n"}, Body: []ir.Stmt{
		inSig("xs", ir.NewRef("n")),
		inSig("i"),
		outSig("out"),
		&ir.DeclareVar{Name: "acc", Value: ir.Num(0)},
		&ir.For{
			Init: &ir.DeclareVar{Name: "k", Value: ir.Num(0)},
			Cond: ir.Bin(ir.Lt, ir.NewRef("k"), ir.NewRef("n")),
			Step: ir.NewRef("k").Set(ir.Bin(ir.Add, ir.NewRef("k"), ir.Num(1))),
			Body: []ir.Stmt{
				ir.NewRef("acc").Set(ir.Bin(ir.Add, ir.NewRef("acc"),
					ir.Bin(ir.Mul, ir.NewRef("xs").Idx(ir.NewRef("k")), ir.NewRef("xs").Idx(ir.NewRef("k"))))),
			},
		},
		ir.NewRef("out").Set(ir.Bin(ir.Add, ir.NewRef("acc"), ir.NewRef("xs").Idx(ir.NewRef("i")))),
	}}
	raw, err := Build(prog(main, []int64{3}))
	require.NoError(t, err)
	opt, err := graph.Optimize(raw)
	require.NoError(t, err)
	require.LessOrEqual(t, len(opt.Nodes), len(raw.Nodes))

	wantRaw := run(t, raw, 2, 3, 4, 1)
	wantOpt := run(t, opt, 2, 3, 4, 1)
	require.Equal(t, wantRaw, wantOpt)
	require.Equal(t, field.NewElement(32), wantOpt[1]) // 4+9+16 + xs[1]
}

func TestBuildLogStatement(t *testing.T) {
	main := &ir.Template{Name: "Main", Body: []ir.Stmt{
		inSig("a"),
		outSig("c"),
		&ir.Log{Args: []ir.Expr{ir.Num(42), ir.NewRef("a")}},
		ir.NewRef("c").Set(ir.NewRef("a")),
	}}
	g, err := Build(prog(main, nil))
	require.NoError(t, err)
	require.Equal(t, []field.Element{field.One(), field.NewElement(9), field.NewElement(9)}, run(t, g, 9))

	// an erroneous argument still surfaces
	main.Body[2] = &ir.Log{Args: []ir.Expr{ir.NewRef("nope")}}
	_, err = Build(prog(main, nil))
	require.Error(t, err)
}
