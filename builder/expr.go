package builder

import (
	"github.com/iden3/circom-witnesscalc/field"
	"github.com/iden3/circom-witnesscalc/graph"
	"github.com/iden3/circom-witnesscalc/ir"
)

func (f *frame) eval(e ir.Expr) (value, error) {
	switch e := e.(type) {
	case *ir.Number:
		return constValue(f.b.elem(e.Value)), nil

	case *ir.Ref:
		return f.readRef(e)

	case *ir.Unary:
		x, err := f.eval(e.X)
		if err != nil {
			return value{}, err
		}
		return f.fold1(unOps[e.Op], x)

	case *ir.Binary:
		l, err := f.eval(e.L)
		if err != nil {
			return value{}, err
		}
		r, err := f.eval(e.R)
		if err != nil {
			return value{}, err
		}
		return f.fold2(binOps[e.Op], l, r, e.Pos)

	case *ir.Conditional:
		c, err := f.eval(e.Cond)
		if err != nil {
			return value{}, err
		}
		// a compile-time condition evaluates the taken arm only
		if c.kind == valConst {
			if c.c.IsZero() {
				return f.eval(e.Else)
			}
			return f.eval(e.Then)
		}
		t, err := f.eval(e.Then)
		if err != nil {
			return value{}, err
		}
		el, err := f.eval(e.Else)
		if err != nil {
			return value{}, err
		}
		n := f.sp.emit(graph.Ternary(f.sp.materialize(c), f.sp.materialize(t), f.sp.materialize(el)))
		return nodeValue(n), nil

	case *ir.Call:
		return f.call(e)
	}
	return value{}, graph.Errorf(graph.CodeUnsupportedFeature, "expression %T has no lowering rule", e)
}

// fold1 applies a unary operator, at compile time when the operand is a
// constant.
func (f *frame) fold1(op graph.Op, x value) (value, error) {
	if x.kind == valConst {
		r, err := graph.EvalUnary(op, x.c)
		if err != nil {
			return value{}, err
		}
		return constValue(r), nil
	}
	return nodeValue(f.sp.emit(graph.Unary(op, f.sp.materialize(x)))), nil
}

// fold2 applies a binary operator, at compile time when both operands are
// constants. A constant zero divisor fails the build.
func (f *frame) fold2(op graph.Op, l, r value, pos ir.Pos) (value, error) {
	if r.kind == valConst && r.c.IsZero() &&
		(op == graph.OpDiv || op == graph.OpIntDiv || op == graph.OpMod) {
		return value{}, errAt(pos, graph.CodeDivisionByZero, "%s with constant zero divisor", op)
	}
	if l.kind == valConst && r.kind == valConst {
		v, ok, err := graph.EvalBinary(op, l.c, r.c)
		if err != nil {
			return value{}, err
		}
		if !ok {
			return value{}, errAt(pos, graph.CodeDivisionByZero, "%s with constant zero divisor", op)
		}
		return constValue(v), nil
	}
	n := f.sp.emit(graph.Binary(op, f.sp.materialize(l), f.sp.materialize(r)))
	return nodeValue(n), nil
}

func (f *frame) readRef(r *ir.Ref) (value, error) {
	if vs, ok := f.vars[r.Name]; ok {
		return f.readCells(r.Name, vs, vs.dims, r.Access, r.Pos)
	}
	if ss, ok := f.signals[r.Name]; ok {
		return f.readCells(r.Name, ss, ss.dims, r.Access, r.Pos)
	}
	if cs, ok := f.comps[r.Name]; ok {
		return f.readComponent(r, cs)
	}
	return value{}, errAt(r.Pos, graph.CodeUnknown, "undefined identifier %q", r.Name)
}

// readCells resolves an indexed read. Compile-time indices select the cell
// directly; a signal-dependent index lowers to a multiplexer over every
// cell, selected by the flattened runtime index.
func (f *frame) readCells(name string, st cellStore, dims []int, access []ir.Access, pos ir.Pos) (value, error) {
	sel, konst, flat, err := f.resolveIndex(name, dims, access, pos)
	if err != nil {
		return value{}, err
	}
	if konst {
		v := st.get(flat)
		if v.kind == valNone {
			return value{}, errAt(pos, graph.CodeUnknown, "%q read before assignment", name)
		}
		return v, nil
	}
	size := 1
	for _, d := range dims {
		size *= d
	}
	cands := make([]int, size)
	for i := 0; i < size; i++ {
		v := st.get(i)
		if v.kind == valNone {
			return value{}, errAt(pos, graph.CodeUnknown,
				"%q indexed by a signal value while cell %d is unassigned", name, i)
		}
		cands[i] = f.sp.materialize(v)
	}
	return nodeValue(f.sp.emit(graph.Mux(f.sp.materialize(sel), cands))), nil
}

// resolveIndex folds an access path over dims into a flattened row-major
// index. When every subscript is a compile-time constant it returns
// (konst=true, flat); otherwise it returns the selector as a value.
func (f *frame) resolveIndex(name string, dims []int, access []ir.Access, pos ir.Pos) (sel value, konst bool, flat int, err error) {
	if len(access) != len(dims) {
		return value{}, false, 0, errAt(pos, graph.CodeUnsupportedFeature,
			"%q requires %d subscripts, got %d (whole-array references are not supported)", name, len(dims), len(access))
	}
	sel = constValue(field.Zero())
	konst = true
	for k, a := range access {
		if a.Member != "" {
			return value{}, false, 0, errAt(pos, graph.CodeUnknown, "%q is not a component", name)
		}
		iv, err := f.eval(a.Index)
		if err != nil {
			return value{}, false, 0, err
		}
		if iv.kind == valConst {
			i, err := constIndex(iv, pos, "array index")
			if err != nil {
				return value{}, false, 0, err
			}
			if i >= dims[k] {
				return value{}, false, 0, errAt(pos, graph.CodeUnknown,
					"index %d out of range for %q dimension of length %d", i, name, dims[k])
			}
		} else {
			konst = false
		}
		sel, err = f.fold2(graph.OpMul, sel, constValue(field.NewElement(uint64(dims[k]))), pos)
		if err != nil {
			return value{}, false, 0, err
		}
		sel, err = f.fold2(graph.OpAdd, sel, iv, pos)
		if err != nil {
			return value{}, false, 0, err
		}
	}
	if konst {
		return value{}, true, int(field.ToBigInt(sel.c).Int64()), nil
	}
	return sel, false, 0, nil
}

// readComponent resolves cmp[i...].member[j...] to the component's output
// nodes.
func (f *frame) readComponent(r *ir.Ref, cs *compSlot) (value, error) {
	flat, rest, err := f.componentIndex(r, cs)
	if err != nil {
		return value{}, err
	}
	inst := cs.cells[flat]
	if inst == nil {
		return value{}, errAt(r.Pos, graph.CodeUnknown, "component %q used before instantiation", r.Name)
	}
	if len(rest) == 0 || rest[0].Member == "" {
		return value{}, errAt(r.Pos, graph.CodeUnsupportedFeature, "component %q referenced without a signal member", r.Name)
	}
	member := rest[0].Member
	rest = rest[1:]
	if !inst.ran {
		return value{}, errAt(r.Pos, graph.CodeUnknown,
			"output %q.%s read before all %d inputs of %s were assigned", r.Name, member, inst.pending, inst.sub.name)
	}
	mr, ok := inst.sub.outputs[member]
	if !ok {
		if _, isIn := inst.sub.inputs[member]; isIn {
			return value{}, errAt(r.Pos, graph.CodeUnsupportedFeature, "input %q.%s is write-only from the parent", r.Name, member)
		}
		return value{}, errAt(r.Pos, graph.CodeUnknown, "%s has no output signal %q", inst.sub.name, member)
	}
	st := &nodeCells{nodes: inst.outNodes[mr.offset : mr.offset+mr.size]}
	return f.readCells(r.Name+"."+member, st, mr.dims, rest, r.Pos)
}

// call executes a function body in a fresh frame sharing the current node
// space.
func (f *frame) call(c *ir.Call) (value, error) {
	if _, ok := f.b.prog.Templates[c.Name]; ok {
		return value{}, errAt(c.Pos, graph.CodeUnsupportedFeature,
			"template %q instantiated outside a component assignment", c.Name)
	}
	fn := f.b.prog.Functions[c.Name]
	if fn == nil {
		return value{}, errAt(c.Pos, graph.CodeUnknown, "undefined function %q", c.Name)
	}
	if len(c.Args) != len(fn.Params) {
		return value{}, errAt(c.Pos, graph.CodeUnknown,
			"function %q takes %d arguments, got %d", c.Name, len(fn.Params), len(c.Args))
	}
	if f.b.callDepth >= maxCallDepth {
		return value{}, errAt(c.Pos, graph.CodeUnsupportedFeature, "call depth exceeds %d", maxCallDepth)
	}
	nf := f.b.newFrame(frameFunc, f.sp, nil)
	nf.guard = f.guard
	for i, p := range fn.Params {
		v, err := f.eval(c.Args[i])
		if err != nil {
			return value{}, err
		}
		nf.vars[p] = &varSlot{cells: []value{v}}
	}
	f.b.callDepth++
	err := nf.execBlock(fn.Body)
	f.b.callDepth--
	if err != nil {
		return value{}, err
	}
	if nf.ret == nil {
		return value{}, errAt(fn.Pos, graph.CodeUnknown, "function %q returned no value", c.Name)
	}
	return *nf.ret, nil
}
