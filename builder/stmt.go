package builder

import (
	"fmt"
	"strings"

	"github.com/consensys/gnark/logger"

	"github.com/iden3/circom-witnesscalc/field"
	"github.com/iden3/circom-witnesscalc/graph"
	"github.com/iden3/circom-witnesscalc/ir"
)

func (f *frame) execBlock(stmts []ir.Stmt) error {
	for _, s := range stmts {
		if err := f.execStmt(s); err != nil {
			return err
		}
		if f.ret != nil {
			break
		}
	}
	return nil
}

func (f *frame) execStmt(s ir.Stmt) error {
	switch s := s.(type) {
	case *ir.DeclareSignal:
		return f.declareSignal(s)

	case *ir.DeclareVar:
		return f.declareVar(s)

	case *ir.DeclareComponent:
		return f.declareComponent(s)

	case *ir.Assign:
		return f.execAssign(s)

	case *ir.If:
		c, err := f.eval(s.Cond)
		if err != nil {
			return err
		}
		if c.kind == valConst {
			if c.c.IsZero() {
				return f.execBlock(s.Else)
			}
			return f.execBlock(s.Then)
		}
		return f.execSignalIf(s, c)

	case *ir.For:
		return f.execFor(s)

	case *ir.Assert:
		return f.execAssert(s)

	case *ir.Log:
		return f.execLog(s)

	case *ir.Return:
		if f.kind != frameFunc {
			return errAt(s.Pos, graph.CodeUnsupportedFeature, "return outside a function body")
		}
		if f.guarded() {
			return errAt(s.Pos, graph.CodeUnsupportedFeature, "return inside a signal-dependent branch")
		}
		v, err := f.eval(s.Value)
		if err != nil {
			return err
		}
		f.ret = &v
		return nil
	}
	return graph.Errorf(graph.CodeUnsupportedFeature, "statement %T has no lowering rule", s)
}

func (f *frame) declareSignal(s *ir.DeclareSignal) error {
	if f.guarded() {
		return errAt(s.Pos, graph.CodeUnsupportedFeature, "declaration inside a signal-dependent branch")
	}
	if f.kind == frameFunc {
		return errAt(s.Pos, graph.CodeUnsupportedFeature, "signal declared in a function body")
	}
	if f.declared(s.Name) {
		return errAt(s.Pos, graph.CodeUnknown, "redeclaration of %q", s.Name)
	}
	dims, size, err := f.dimsOf(s.Dims, s.Pos)
	if err != nil {
		return err
	}
	ss := &signalSlot{kind: s.Kind, dims: dims, cells: make([]value, size)}
	if s.Kind == ir.SignalInput {
		switch f.kind {
		case frameMain:
			off := f.b.nbInputs
			for i := 0; i < size; i++ {
				n := f.sp.emit(graph.Input(off + i))
				ss.cells[i] = nodeValue(n)
				f.b.inputNodes = append(f.b.inputNodes, n)
			}
			f.b.inputs[s.Name] = graph.SignalRange{Offset: off, Len: size}
			f.b.nbInputs += size
		case frameSub:
			off := f.sub.nbInputs
			for i := 0; i < size; i++ {
				ss.cells[i] = nodeValue(f.sp.emit(graph.Input(off + i)))
			}
			f.sub.inputs[s.Name] = memberRange{offset: off, dims: dims, size: size}
			f.sub.nbInputs += size
		}
	}
	f.signals[s.Name] = ss
	f.signalOrder = append(f.signalOrder, s.Name)
	return nil
}

func (f *frame) declareVar(s *ir.DeclareVar) error {
	if f.guarded() {
		return errAt(s.Pos, graph.CodeUnsupportedFeature, "declaration inside a signal-dependent branch")
	}
	if _, ok := f.signals[s.Name]; ok {
		return errAt(s.Pos, graph.CodeUnknown, "redeclaration of %q", s.Name)
	}
	if _, ok := f.comps[s.Name]; ok {
		return errAt(s.Pos, graph.CodeUnknown, "redeclaration of %q", s.Name)
	}
	dims, size, err := f.dimsOf(s.Dims, s.Pos)
	if err != nil {
		return err
	}
	vs := &varSlot{dims: dims, cells: make([]value, size)}
	zero := constValue(field.Zero())
	for i := range vs.cells {
		vs.cells[i] = zero
	}
	if s.Value != nil {
		if len(dims) > 0 {
			return errAt(s.Pos, graph.CodeUnsupportedFeature, "array variable with a scalar initializer")
		}
		v, err := f.eval(s.Value)
		if err != nil {
			return err
		}
		vs.cells[0] = v
	}
	// redeclaration of a variable overwrites it, so loop bodies can
	// re-declare their locals on every iteration
	f.vars[s.Name] = vs
	return nil
}

func (f *frame) declareComponent(s *ir.DeclareComponent) error {
	if f.guarded() {
		return errAt(s.Pos, graph.CodeUnsupportedFeature, "declaration inside a signal-dependent branch")
	}
	if f.kind == frameFunc {
		return errAt(s.Pos, graph.CodeUnsupportedFeature, "component declared in a function body")
	}
	if f.declared(s.Name) {
		return errAt(s.Pos, graph.CodeUnknown, "redeclaration of %q", s.Name)
	}
	dims, size, err := f.dimsOf(s.Dims, s.Pos)
	if err != nil {
		return err
	}
	f.comps[s.Name] = &compSlot{dims: dims, cells: make([]*componentInstance, size)}
	return nil
}

func (f *frame) execAssign(s *ir.Assign) error {
	if call, ok := s.Value.(*ir.Call); ok {
		if _, isTemplate := f.b.prog.Templates[call.Name]; isTemplate {
			return f.instantiate(s.Dest, call, s.Pos)
		}
	}
	v, err := f.eval(s.Value)
	if err != nil {
		return err
	}
	dest := s.Dest

	if vs, ok := f.vars[dest.Name]; ok {
		_, konst, flat, err := f.resolveIndex(dest.Name, vs.dims, dest.Access, dest.Pos)
		if err != nil {
			return err
		}
		if !konst {
			return errAt(dest.Pos, graph.CodeUnsupportedFeature, "assignment through a signal-dependent index")
		}
		f.setCell(vs, flat, v)
		return nil
	}

	if ss, ok := f.signals[dest.Name]; ok {
		if ss.kind == ir.SignalInput {
			return errAt(dest.Pos, graph.CodeUnknown, "input signal %q cannot be assigned", dest.Name)
		}
		_, konst, flat, err := f.resolveIndex(dest.Name, ss.dims, dest.Access, dest.Pos)
		if err != nil {
			return err
		}
		if !konst {
			return errAt(dest.Pos, graph.CodeUnsupportedFeature, "assignment through a signal-dependent index")
		}
		if ss.get(flat).kind != valNone {
			return errAt(dest.Pos, graph.CodeUnknown, "signal %q assigned twice", dest.Name)
		}
		f.setCell(ss, flat, v)
		return nil
	}

	if cs, ok := f.comps[dest.Name]; ok {
		if f.guarded() {
			return errAt(dest.Pos, graph.CodeUnsupportedFeature,
				"component input assigned inside a signal-dependent branch")
		}
		flat, rest, err := f.componentIndex(dest, cs)
		if err != nil {
			return err
		}
		inst := cs.cells[flat]
		if inst == nil {
			return errAt(dest.Pos, graph.CodeUnknown, "component %q used before instantiation", dest.Name)
		}
		if len(rest) == 0 || rest[0].Member == "" {
			return errAt(dest.Pos, graph.CodeUnsupportedFeature,
				"component %q assigned without a signal member", dest.Name)
		}
		member := rest[0].Member
		mr, ok := inst.sub.inputs[member]
		if !ok {
			if _, isOut := inst.sub.outputs[member]; isOut {
				return errAt(dest.Pos, graph.CodeUnknown, "output %q.%s is read-only", dest.Name, member)
			}
			return errAt(dest.Pos, graph.CodeUnknown, "%s has no input signal %q", inst.sub.name, member)
		}
		_, konst, idx, err := f.resolveIndex(dest.Name+"."+member, mr.dims, rest[1:], dest.Pos)
		if err != nil {
			return err
		}
		if !konst {
			return errAt(dest.Pos, graph.CodeUnsupportedFeature, "assignment through a signal-dependent index")
		}
		return f.assignComponentInput(inst, mr.offset+idx, v, dest.Pos, dest.Name, member)
	}

	return errAt(dest.Pos, graph.CodeUnknown, "undefined identifier %q", dest.Name)
}

// execSignalIf lowers a conditional whose condition carries a signal value.
// Both branches execute against a write journal; their effects are unwound
// and every touched cell is re-assigned a ternary node selecting between
// the branch results.
func (f *frame) execSignalIf(s *ir.If, cond value) error {
	condNode := f.sp.materialize(cond)
	outer := f.log

	run := func(body []ir.Stmt, guardNode int) (*writeLog, map[writeKey]value, error) {
		l := newWriteLog()
		f.log = l
		f.guard = append(f.guard, guardNode)
		err := f.execBlock(body)
		f.guard = f.guard[:len(f.guard)-1]
		f.log = outer
		if err != nil {
			return nil, nil, err
		}
		vals := l.snapshot()
		l.revert()
		return l, vals, nil
	}

	thenLog, thenVals, err := run(s.Then, condNode)
	if err != nil {
		return err
	}
	notCond := f.sp.emit(graph.Unary(graph.OpLnot, condNode))
	elseLog, elseVals, err := run(s.Else, notCond)
	if err != nil {
		return err
	}

	keys := append([]writeKey(nil), thenLog.order...)
	for _, k := range elseLog.order {
		if !thenLog.written(k) {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		tv, tok := thenVals[k]
		if !tok {
			tv = k.store.get(k.idx)
		}
		ev, eok := elseVals[k]
		if !eok {
			ev = k.store.get(k.idx)
		}
		if sameValue(tv, ev) {
			f.setCell(k.store, k.idx, tv)
			continue
		}
		if tv.kind == valNone || ev.kind == valNone {
			return errAt(s.Pos, graph.CodeNonConstantControlFlow,
				"cell assigned on only one branch of a signal-dependent condition has no prior value")
		}
		m := f.sp.emit(graph.Ternary(condNode, f.sp.materialize(tv), f.sp.materialize(ev)))
		f.setCell(k.store, k.idx, nodeValue(m))
	}
	return nil
}

func (f *frame) execFor(s *ir.For) error {
	if s.Init != nil {
		if err := f.execStmt(s.Init); err != nil {
			return err
		}
	}
	if s.Cond == nil {
		return errAt(s.Pos, graph.CodeUnsupportedFeature, "loop without a condition")
	}
	for iters := 0; ; iters++ {
		if iters >= maxLoopIters {
			return errAt(s.Pos, graph.CodeUnknown, "loop exceeded %d iterations", maxLoopIters)
		}
		c, err := f.eval(s.Cond)
		if err != nil {
			return err
		}
		if c.kind != valConst {
			return errAt(s.Pos, graph.CodeNonConstantControlFlow, "loop condition depends on a signal value")
		}
		if c.c.IsZero() {
			break
		}
		if err := f.execBlock(s.Body); err != nil {
			return err
		}
		if f.ret != nil {
			break
		}
		if s.Step != nil {
			if err := f.execStmt(s.Step); err != nil {
				return err
			}
		}
	}
	return nil
}

// execAssert proves a compile-time assertion on the spot and defers a
// runtime one to witness generation. Inside a signal-dependent branch the
// assertion is weakened to hold trivially whenever the branch is not taken.
func (f *frame) execAssert(s *ir.Assert) error {
	v, err := f.eval(s.Cond)
	if err != nil {
		return err
	}
	if v.kind == valConst {
		if !v.c.IsZero() {
			return nil
		}
		if !f.guarded() {
			return errAt(s.Pos, graph.CodeConstraintViolation, "assertion is provably false")
		}
	}
	n := f.sp.materialize(v)
	if f.guarded() {
		one := f.sp.constant(field.One())
		n = f.sp.emit(graph.Ternary(f.pathCond(), n, one))
	}
	f.sp.asserts = append(f.sp.asserts, n)
	return nil
}

// execLog prints its arguments through the logger and leaves the graph
// untouched. Compile-time values print as field elements; values that depend
// on signals print as node references, since no signal value exists yet.
func (f *frame) execLog(s *ir.Log) error {
	log := logger.Logger()
	parts := make([]string, 0, len(s.Args))
	for _, a := range s.Args {
		v, err := f.eval(a)
		if err != nil {
			return err
		}
		if v.kind == valConst {
			parts = append(parts, field.ToBigInt(v.c).String())
		} else {
			parts = append(parts, fmt.Sprintf("[%d]", v.node))
		}
	}
	log.Info().Str("values", strings.Join(parts, " ")).Msg("circuit log")
	return nil
}
