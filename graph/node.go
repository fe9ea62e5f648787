package graph

import (
	"fmt"

	"github.com/iden3/circom-witnesscalc/field"
	"github.com/iden3/circom-witnesscalc/utils"
)

// Kind discriminates the node variants of the graph.
type Kind uint8

const (
	KindInvalid Kind = iota
	// KindConstant is a fixed field element.
	KindConstant
	// KindInput references one slot of the flattened input vector.
	KindInput
	KindUnary
	KindBinary
	// KindTernary selects B when A is nonzero, C otherwise.
	KindTernary
	// KindMux selects among Cands by the canonical value of A.
	KindMux
)

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindInput:
		return "input"
	case KindUnary:
		return "unary"
	case KindBinary:
		return "binary"
	case KindTernary:
		return "ternary"
	case KindMux:
		return "mux"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Op is an operator applied by a unary or binary node.
type Op uint8

const (
	OpNop Op = iota

	// unary
	OpNeg
	OpBnot
	OpLnot

	// binary
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpIntDiv
	OpMod
	OpPow
	OpShl
	OpShr
	OpBand
	OpBor
	OpBxor
	OpEq
	OpNeq
	OpLt
	OpGt
	OpLeq
	OpGeq
	OpLand
	OpLor

	opMax
)

var opNames = [...]string{
	OpNop: "nop", OpNeg: "neg", OpBnot: "bnot", OpLnot: "lnot",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div",
	OpIntDiv: "idiv", OpMod: "mod", OpPow: "pow", OpShl: "shl",
	OpShr: "shr", OpBand: "band", OpBor: "bor", OpBxor: "bxor",
	OpEq: "eq", OpNeq: "neq", OpLt: "lt", OpGt: "gt",
	OpLeq: "leq", OpGeq: "geq", OpLand: "land", OpLor: "lor",
}

func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// IsCommutative reports whether swapping the operands of op preserves its
// result. Used to canonicalize operand order before subexpression merging.
func (op Op) IsCommutative() bool {
	switch op {
	case OpAdd, OpMul, OpBand, OpBor, OpBxor, OpEq, OpNeq, OpLand, OpLor:
		return true
	}
	return false
}

// Node is one operation of the graph. Operands reference previously defined
// nodes by index, so a node slice is acyclic and topologically ordered by
// construction.
type Node struct {
	Kind Kind
	Op   Op
	// operand node indices; for KindInput, A is the input-vector slot
	A, B, C int
	// constant value, for KindConstant
	Value field.Element
	// candidate node indices, for KindMux
	Cands []int
}

func Constant(v field.Element) Node {
	return Node{Kind: KindConstant, Value: v}
}

func Input(slot int) Node {
	return Node{Kind: KindInput, A: slot}
}

func Unary(op Op, a int) Node {
	return Node{Kind: KindUnary, Op: op, A: a}
}

func Binary(op Op, a, b int) Node {
	return Node{Kind: KindBinary, Op: op, A: a, B: b}
}

func Ternary(cond, then, els int) Node {
	return Node{Kind: KindTernary, A: cond, B: then, C: els}
}

func Mux(selector int, cands []int) Node {
	return Node{Kind: KindMux, A: selector, Cands: cands}
}

// forEachOperand calls f for every node index the node references.
func (n *Node) forEachOperand(f func(int)) {
	switch n.Kind {
	case KindUnary:
		f(n.A)
	case KindBinary:
		f(n.A)
		f(n.B)
	case KindTernary:
		f(n.A)
		f(n.B)
		f(n.C)
	case KindMux:
		f(n.A)
		for _, c := range n.Cands {
			f(c)
		}
	}
}

// mapOperands rewrites every referenced node index through f in place.
func (n *Node) mapOperands(f func(int) int) {
	switch n.Kind {
	case KindUnary:
		n.A = f(n.A)
	case KindBinary:
		n.A = f(n.A)
		n.B = f(n.B)
	case KindTernary:
		n.A = f(n.A)
		n.B = f(n.B)
		n.C = f(n.C)
	case KindMux:
		n.A = f(n.A)
		for i, c := range n.Cands {
			n.Cands[i] = f(c)
		}
	}
}

func (n Node) String() string {
	switch n.Kind {
	case KindConstant:
		return fmt.Sprintf("const %s", field.ToBigInt(n.Value))
	case KindInput:
		return fmt.Sprintf("input %d", n.A)
	case KindUnary:
		return fmt.Sprintf("%s [%d]", n.Op, n.A)
	case KindBinary:
		return fmt.Sprintf("%s [%d] [%d]", n.Op, n.A, n.B)
	case KindTernary:
		return fmt.Sprintf("tern [%d] [%d] [%d]", n.A, n.B, n.C)
	case KindMux:
		return fmt.Sprintf("mux [%d] %v", n.A, n.Cands)
	}
	return "invalid"
}

// HashCode implements utils.Hashable for subexpression merging.
func (n Node) HashCode() uint64 {
	h := uint64(n.Kind)*998244353 ^ uint64(n.Op)*1000000007
	h ^= uint64(n.A) * 754974721
	h ^= uint64(n.B) * 167772161
	h ^= uint64(n.C) * 469762049
	if n.Kind == KindConstant {
		h ^= n.Value[0] ^ n.Value[1]*23 ^ n.Value[2]*29 ^ n.Value[3]*31
	}
	for _, c := range n.Cands {
		h = h*23 + uint64(c)
	}
	return h
}

// EqualI implements utils.Hashable.
func (n Node) EqualI(o utils.Hashable) bool {
	m, ok := o.(Node)
	if !ok {
		return false
	}
	if n.Kind != m.Kind || n.Op != m.Op || n.A != m.A || n.B != m.B || n.C != m.C {
		return false
	}
	if n.Kind == KindConstant && !n.Value.Equal(&m.Value) {
		return false
	}
	if len(n.Cands) != len(m.Cands) {
		return false
	}
	for i := range n.Cands {
		if n.Cands[i] != m.Cands[i] {
			return false
		}
	}
	return true
}

// EvalUnary applies a unary operator.
func EvalUnary(op Op, a field.Element) (field.Element, error) {
	switch op {
	case OpNeg:
		return field.Neg(a), nil
	case OpBnot:
		return field.Bnot(a), nil
	case OpLnot:
		return field.Lnot(a), nil
	}
	return field.Element{}, fmt.Errorf("unary operator %s not implemented", op)
}

// EvalBinary applies a binary operator. The bool result is false only when
// the operator divides by the additive identity.
func EvalBinary(op Op, a, b field.Element) (field.Element, bool, error) {
	switch op {
	case OpAdd:
		return field.Add(a, b), true, nil
	case OpSub:
		return field.Sub(a, b), true, nil
	case OpMul:
		return field.Mul(a, b), true, nil
	case OpDiv:
		r, ok := field.Div(a, b)
		return r, ok, nil
	case OpIntDiv:
		r, ok := field.IntDiv(a, b)
		return r, ok, nil
	case OpMod:
		r, ok := field.Rem(a, b)
		return r, ok, nil
	case OpPow:
		return field.Exp(a, b), true, nil
	case OpShl:
		return field.Shl(a, b), true, nil
	case OpShr:
		return field.Shr(a, b), true, nil
	case OpBand:
		return field.Band(a, b), true, nil
	case OpBor:
		return field.Bor(a, b), true, nil
	case OpBxor:
		return field.Bxor(a, b), true, nil
	case OpEq:
		return field.Eq(a, b), true, nil
	case OpNeq:
		return field.Neq(a, b), true, nil
	case OpLt:
		return field.Lt(a, b), true, nil
	case OpGt:
		return field.Gt(a, b), true, nil
	case OpLeq:
		return field.Leq(a, b), true, nil
	case OpGeq:
		return field.Geq(a, b), true, nil
	case OpLand:
		return field.Land(a, b), true, nil
	case OpLor:
		return field.Lor(a, b), true, nil
	}
	return field.Element{}, true, fmt.Errorf("binary operator %s not implemented", op)
}
