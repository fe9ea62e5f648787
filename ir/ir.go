// Package ir is the intermediate representation of a circuit consumed by the
// graph builder: a set of templates with compile-time parameters, signal and
// component declarations, and a statement/expression form of assignments,
// conditionals, loops and assertions. The IR is assumed to be produced by a
// circuit-language front end and already type checked; template parameters
// are always resolved to constants at instantiation time.
package ir

import (
	"fmt"
	"math/big"
)

// Pos is a source location carried through to diagnostics.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	if p.Line == 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Program is a complete circuit description: its templates and functions,
// and the instantiation of the main component.
type Program struct {
	Templates map[string]*Template
	Functions map[string]*Function

	// Main names the template instantiated as the root component.
	Main string
	// MainArgs are the parameter values of the main instantiation.
	MainArgs []*big.Int
}

// Template is a parameterized circuit piece. Instantiating a template with a
// concrete parameter tuple produces a component, inlined into the global
// graph by the builder.
type Template struct {
	Name   string
	Params []string
	Body   []Stmt
	Pos    Pos
}

// Function computes a compile-time value from compile-time arguments.
type Function struct {
	Name   string
	Params []string
	Body   []Stmt
	Pos    Pos
}

// SignalKind classifies a signal declaration.
type SignalKind uint8

const (
	SignalInput SignalKind = iota
	SignalOutput
	SignalIntermediate
)

func (k SignalKind) String() string {
	switch k {
	case SignalInput:
		return "input"
	case SignalOutput:
		return "output"
	}
	return "intermediate"
}

// Stmt is a statement of a template or function body.
type Stmt interface {
	Position() Pos
	stmtNode()
}

// DeclareSignal declares a signal, optionally an array with constant
// dimensions.
type DeclareSignal struct {
	Name string
	Kind SignalKind
	Dims []Expr
	Pos  Pos
}

// DeclareVar declares a compile-time-or-runtime variable, optionally an
// array with constant dimensions. Value initializes a scalar variable;
// without it every cell starts at zero.
type DeclareVar struct {
	Name  string
	Dims  []Expr
	Value Expr
	Pos   Pos
}

// DeclareComponent declares a subcomponent slot, optionally an array of
// slots. Each slot is instantiated by assigning a template Call to it.
type DeclareComponent struct {
	Name string
	Dims []Expr
	Pos  Pos
}

// Assign stores an expression into a signal, a variable, or a subcomponent
// input signal. Assigning a template Call to a component slot instantiates
// the component.
type Assign struct {
	Dest  *Ref
	Value Expr
	Pos   Pos
}

// If executes one of two branches. A condition that depends on a signal
// value lowers both branches into the graph and selects by value.
type If struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
	Pos  Pos
}

// For is a counted loop. The condition must be resolvable at build time on
// every iteration.
type For struct {
	Init Stmt
	Cond Expr
	Step Stmt
	Body []Stmt
	Pos  Pos
}

// Assert requires the condition to be nonzero, at build time when provable,
// otherwise during witness generation.
type Assert struct {
	Cond Expr
	Pos  Pos
}

// Return yields the value of a function body.
type Return struct {
	Value Expr
	Pos   Pos
}

// Log prints its arguments during graph construction. It has no effect on
// the compiled graph.
type Log struct {
	Args []Expr
	Pos  Pos
}

func (s *DeclareSignal) Position() Pos    { return s.Pos }
func (s *DeclareVar) Position() Pos       { return s.Pos }
func (s *DeclareComponent) Position() Pos { return s.Pos }
func (s *Assign) Position() Pos           { return s.Pos }
func (s *If) Position() Pos               { return s.Pos }
func (s *For) Position() Pos              { return s.Pos }
func (s *Assert) Position() Pos           { return s.Pos }
func (s *Return) Position() Pos           { return s.Pos }
func (s *Log) Position() Pos              { return s.Pos }

func (*DeclareSignal) stmtNode()    {}
func (*DeclareVar) stmtNode()       {}
func (*DeclareComponent) stmtNode() {}
func (*Assign) stmtNode()           {}
func (*If) stmtNode()               {}
func (*For) stmtNode()              {}
func (*Assert) stmtNode()           {}
func (*Return) stmtNode()           {}
func (*Log) stmtNode()              {}

// Expr is an expression over numbers, parameters, variables and signals.
type Expr interface {
	Position() Pos
	exprNode()
}

// Number is an integer literal, interpreted in the field.
type Number struct {
	Value *big.Int
	Pos   Pos
}

// Ref names a parameter, variable, signal or component, with optional array
// indexing and component member access, e.g. a, a[i], cmp.out[2],
// cmp[i].in[j].
type Ref struct {
	Name   string
	Access []Access
	Pos    Pos
}

// Access is one step of a Ref: exactly one of Index (array subscript) or
// Member (component signal) is set.
type Access struct {
	Index  Expr
	Member string
}

// Binary applies a binary operator.
type Binary struct {
	Op  BinOp
	L   Expr
	R   Expr
	Pos Pos
}

// Unary applies a unary operator.
type Unary struct {
	Op  UnOp
	X   Expr
	Pos Pos
}

// Conditional is the ternary operator cond ? then : else.
type Conditional struct {
	Cond Expr
	Then Expr
	Else Expr
	Pos  Pos
}

// Call invokes a function inside an expression, or instantiates a template
// when assigned to a component slot.
type Call struct {
	Name string
	Args []Expr
	Pos  Pos
}

func (e *Number) Position() Pos      { return e.Pos }
func (e *Ref) Position() Pos         { return e.Pos }
func (e *Binary) Position() Pos      { return e.Pos }
func (e *Unary) Position() Pos       { return e.Pos }
func (e *Conditional) Position() Pos { return e.Pos }
func (e *Call) Position() Pos        { return e.Pos }

func (*Number) exprNode()      {}
func (*Ref) exprNode()         {}
func (*Binary) exprNode()      {}
func (*Unary) exprNode()       {}
func (*Conditional) exprNode() {}
func (*Call) exprNode()        {}

// BinOp is a binary operator of the source language.
type BinOp uint8

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	IntDiv
	Mod
	Pow
	Shl
	Shr
	BitAnd
	BitOr
	BitXor
	Eq
	Neq
	Lt
	Gt
	Leq
	Geq
	And
	Or
)

var binOpNames = [...]string{
	Add: "+", Sub: "-", Mul: "*", Div: "/", IntDiv: "\\", Mod: "%",
	Pow: "**", Shl: "<<", Shr: ">>", BitAnd: "&", BitOr: "|", BitXor: "^",
	Eq: "==", Neq: "!=", Lt: "<", Gt: ">", Leq: "<=", Geq: ">=",
	And: "&&", Or: "||",
}

func (op BinOp) String() string {
	if int(op) < len(binOpNames) {
		return binOpNames[op]
	}
	return fmt.Sprintf("binop(%d)", uint8(op))
}

// UnOp is a unary operator of the source language.
type UnOp uint8

const (
	Neg UnOp = iota
	Not
	Complement
)

func (op UnOp) String() string {
	switch op {
	case Neg:
		return "-"
	case Not:
		return "!"
	}
	return "~"
}
