package builder

import (
	"github.com/iden3/circom-witnesscalc/field"
	"github.com/iden3/circom-witnesscalc/graph"
	"github.com/iden3/circom-witnesscalc/ir"
)

// subCircuit is a template body compiled once per distinct parameter tuple.
// Its node space uses placeholder input nodes whose slot is the position in
// the instance input vector; splicing substitutes the caller's nodes.
type subCircuit struct {
	name string
	sp   *space

	nbInputs int
	inputs   map[string]memberRange
	outputs  map[string]memberRange
	// sub-local node ids of the flattened outputs, in declaration order
	outNodes []int
}

// memberRange locates one named signal inside a component's flattened input
// or output vector.
type memberRange struct {
	offset int
	dims   []int
	size   int
}

// componentInstance tracks one instantiation while its inputs are being
// assigned. The body splices into the parent space once the last input
// arrives.
type componentInstance struct {
	sub     *subCircuit
	inputs  []int
	pending int
	// parent-space node ids of the outputs, valid once ran
	outNodes []int
	ran      bool
}

// subFor returns the compiled body of a template for one parameter tuple,
// compiling and caching it on first use.
func (b *builder) subFor(name string, args []field.Element, pos ir.Pos) (*subCircuit, error) {
	t := b.prog.Templates[name]
	if t == nil {
		return nil, errAt(pos, graph.CodeUnknown, "undefined template %q", name)
	}
	if len(args) != len(t.Params) {
		return nil, errAt(pos, graph.CodeUnknown,
			"template %q takes %d parameters, got %d", name, len(t.Params), len(args))
	}
	key := subKey(name, args)
	if sc, ok := b.subs[key]; ok {
		return sc, nil
	}
	if b.making[key] {
		return nil, errAt(pos, graph.CodeUnsupportedFeature, "recursive instantiation of %s", key)
	}
	b.making[key] = true
	defer delete(b.making, key)

	sc := &subCircuit{
		name:    key,
		sp:      newSpace(),
		inputs:  make(map[string]memberRange),
		outputs: make(map[string]memberRange),
	}
	f := b.newFrame(frameSub, sc.sp, sc)
	for i, p := range t.Params {
		f.bindParam(p, args[i])
	}
	if err := f.execBlock(t.Body); err != nil {
		return nil, err
	}
	for _, sig := range f.signalOrder {
		ss := f.signals[sig]
		if ss.kind != ir.SignalOutput {
			continue
		}
		sc.outputs[sig] = memberRange{offset: len(sc.outNodes), dims: ss.dims, size: len(ss.cells)}
		for i, c := range ss.cells {
			if c.kind == valNone {
				return nil, errAt(t.Pos, graph.CodeUnknown,
					"output signal %q cell %d of %s never assigned", sig, i, key)
			}
			sc.outNodes = append(sc.outNodes, sc.sp.materialize(c))
		}
	}
	b.subs[key] = sc
	return sc, nil
}

// instantiate handles `dest = Template(args)`: the arguments must be
// compile-time constants, and a template with no inputs runs immediately.
func (f *frame) instantiate(dest *ir.Ref, call *ir.Call, pos ir.Pos) error {
	if f.guarded() {
		return errAt(pos, graph.CodeUnsupportedFeature,
			"component instantiated inside a signal-dependent branch")
	}
	cs, ok := f.comps[dest.Name]
	if !ok {
		return errAt(pos, graph.CodeUnknown, "%q is not declared as a component", dest.Name)
	}
	flat, rest, err := f.componentIndex(dest, cs)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return errAt(pos, graph.CodeUnknown, "template assigned to a signal member of %q", dest.Name)
	}
	args := make([]field.Element, len(call.Args))
	for i, a := range call.Args {
		v, err := f.eval(a)
		if err != nil {
			return err
		}
		if v.kind != valConst {
			return errAt(pos, graph.CodeNonConstantControlFlow,
				"parameter %d of template %q depends on a signal value", i, call.Name)
		}
		args[i] = v.c
	}
	sub, err := f.b.subFor(call.Name, args, pos)
	if err != nil {
		return err
	}
	if cs.cells[flat] != nil {
		return errAt(pos, graph.CodeUnknown, "component %q instantiated twice", dest.Name)
	}
	inst := &componentInstance{sub: sub, inputs: make([]int, sub.nbInputs), pending: sub.nbInputs}
	for i := range inst.inputs {
		inst.inputs[i] = -1
	}
	cs.cells[flat] = inst
	if inst.pending == 0 {
		f.runComponent(inst)
	}
	return nil
}

// componentIndex consumes the leading array subscripts of a component
// reference, which must be compile-time constants, and returns the
// flattened slot plus the remaining access path.
func (f *frame) componentIndex(r *ir.Ref, cs *compSlot) (int, []ir.Access, error) {
	flat := 0
	for k, d := range cs.dims {
		if k >= len(r.Access) || r.Access[k].Member != "" {
			return 0, nil, errAt(r.Pos, graph.CodeUnsupportedFeature,
				"component array %q requires %d subscripts", r.Name, len(cs.dims))
		}
		iv, err := f.eval(r.Access[k].Index)
		if err != nil {
			return 0, nil, err
		}
		i, err := constIndex(iv, r.Pos, "component index")
		if err != nil {
			return 0, nil, err
		}
		if i >= d {
			return 0, nil, errAt(r.Pos, graph.CodeUnknown,
				"index %d out of range for component array %q of length %d", i, r.Name, d)
		}
		flat = flat*d + i
	}
	return flat, r.Access[len(cs.dims):], nil
}

func (f *frame) assignComponentInput(inst *componentInstance, slot int, v value, pos ir.Pos, comp, member string) error {
	if inst.inputs[slot] >= 0 {
		return errAt(pos, graph.CodeUnknown, "input %q.%s assigned twice", comp, member)
	}
	inst.inputs[slot] = f.sp.materialize(v)
	inst.pending--
	if inst.pending == 0 {
		f.runComponent(inst)
	}
	return nil
}

// runComponent splices a copy of the compiled body into the parent space,
// mapping placeholder inputs to the assigned nodes and carrying the body's
// assertions along.
func (f *frame) runComponent(inst *componentInstance) {
	sub := inst.sub
	m := make([]int, len(sub.sp.nodes))
	for i, n := range sub.sp.nodes {
		switch n.Kind {
		case graph.KindInput:
			m[i] = inst.inputs[n.A]
		case graph.KindConstant:
			m[i] = f.sp.constant(n.Value)
		default:
			c := n
			switch c.Kind {
			case graph.KindUnary:
				c.A = m[c.A]
			case graph.KindBinary:
				c.A, c.B = m[c.A], m[c.B]
			case graph.KindTernary:
				c.A, c.B, c.C = m[c.A], m[c.B], m[c.C]
			case graph.KindMux:
				c.A = m[c.A]
				cands := make([]int, len(c.Cands))
				for j, x := range c.Cands {
					cands[j] = m[x]
				}
				c.Cands = cands
			}
			m[i] = f.sp.emit(c)
		}
	}
	for _, a := range sub.sp.asserts {
		f.sp.asserts = append(f.sp.asserts, m[a])
	}
	inst.outNodes = make([]int, len(sub.outNodes))
	for i, o := range sub.outNodes {
		inst.outNodes[i] = m[o]
	}
	inst.ran = true
}
