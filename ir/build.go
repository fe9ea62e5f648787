package ir

import "math/big"

// Helper constructors for assembling IR by hand, used by tests and by front
// ends that do not track source positions.

func Num(v int64) *Number           { return &Number{Value: big.NewInt(v)} }
func BigNum(v *big.Int) *Number     { return &Number{Value: v} }
func NewRef(name string) *Ref       { return &Ref{Name: name} }
func Bin(op BinOp, l, r Expr) *Binary {
	return &Binary{Op: op, L: l, R: r}
}
func Un(op UnOp, x Expr) *Unary { return &Unary{Op: op, X: x} }
func Cond(c, t, e Expr) *Conditional {
	return &Conditional{Cond: c, Then: t, Else: e}
}
func NewCall(name string, args ...Expr) *Call {
	return &Call{Name: name, Args: args}
}

// Idx appends an array subscript to a reference and returns it.
func (r *Ref) Idx(i Expr) *Ref {
	r.Access = append(r.Access, Access{Index: i})
	return r
}

// Member appends a component signal access to a reference and returns it.
func (r *Ref) Member(name string) *Ref {
	r.Access = append(r.Access, Access{Member: name})
	return r
}

// Set builds an assignment to the reference.
func (r *Ref) Set(v Expr) *Assign { return &Assign{Dest: r, Value: v} }
