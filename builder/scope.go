package builder

import (
	"github.com/iden3/circom-witnesscalc/field"
	"github.com/iden3/circom-witnesscalc/graph"
	"github.com/iden3/circom-witnesscalc/ir"
)

type frameKind uint8

const (
	// frameMain compiles the main template straight into the root space.
	frameMain frameKind = iota
	// frameSub compiles a template body against placeholder inputs.
	frameSub
	// frameFunc executes a function body; no signals or components.
	frameFunc
)

// frame is one activation of a template or function body: its parameters,
// variables, signals and subcomponents, addressed by name.
type frame struct {
	b    *builder
	sp   *space
	kind frameKind
	sub  *subCircuit

	vars    map[string]*varSlot
	signals map[string]*signalSlot
	comps   map[string]*compSlot
	// signal declaration order, fixing the input and output layouts
	signalOrder []string

	// function return value, once a Return executed
	ret *value

	// active write journal and path conditions while lowering a
	// signal-dependent branch
	log   *writeLog
	guard []int
}

func (b *builder) newFrame(kind frameKind, sp *space, sub *subCircuit) *frame {
	return &frame{
		b:       b,
		sp:      sp,
		kind:    kind,
		sub:     sub,
		vars:    make(map[string]*varSlot),
		signals: make(map[string]*signalSlot),
		comps:   make(map[string]*compSlot),
	}
}

func (f *frame) bindParam(name string, v field.Element) {
	f.vars[name] = &varSlot{cells: []value{constValue(v)}}
}

func (f *frame) guarded() bool { return len(f.guard) > 0 }

// pathCond combines the active branch conditions into one node that is
// nonzero exactly when the current lexical path is live at runtime.
func (f *frame) pathCond() int {
	g := f.guard[0]
	for _, c := range f.guard[1:] {
		g = f.sp.emit(graph.Binary(graph.OpLand, g, c))
	}
	return g
}

// cellStore is a flat array of cells addressable by the write journal:
// variable storage, signal storage, or a component's output vector.
type cellStore interface {
	get(i int) value
	set(i int, v value)
}

type varSlot struct {
	dims  []int
	cells []value
}

func (s *varSlot) get(i int) value    { return s.cells[i] }
func (s *varSlot) set(i int, v value) { s.cells[i] = v }

type signalSlot struct {
	kind  ir.SignalKind
	dims  []int
	cells []value
}

func (s *signalSlot) get(i int) value    { return s.cells[i] }
func (s *signalSlot) set(i int, v value) { s.cells[i] = v }

type compSlot struct {
	dims  []int
	cells []*componentInstance
}

// nodeCells exposes an already-built node vector, for multiplexed reads of
// component outputs. It is never written.
type nodeCells struct {
	nodes []int
}

func (s *nodeCells) get(i int) value    { return nodeValue(s.nodes[i]) }
func (s *nodeCells) set(i int, v value) { panic("write to component output") }

// setCell stores v, journaling the previous cell value when a
// signal-dependent branch is being lowered.
func (f *frame) setCell(st cellStore, i int, v value) {
	if f.log != nil {
		f.log.record(writeKey{st, i}, st.get(i))
	}
	st.set(i, v)
}

type writeKey struct {
	store cellStore
	idx   int
}

// writeLog records the first-seen previous value of every cell written while
// lowering one branch of a signal-dependent conditional, so the branch can
// be unwound and its effects merged through ternary selection.
type writeLog struct {
	order []writeKey
	old   map[writeKey]value
}

func newWriteLog() *writeLog {
	return &writeLog{old: make(map[writeKey]value)}
}

func (l *writeLog) record(k writeKey, old value) {
	if _, ok := l.old[k]; ok {
		return
	}
	l.old[k] = old
	l.order = append(l.order, k)
}

func (l *writeLog) written(k writeKey) bool {
	_, ok := l.old[k]
	return ok
}

// snapshot captures the current value of every journaled cell.
func (l *writeLog) snapshot() map[writeKey]value {
	cur := make(map[writeKey]value, len(l.old))
	for k := range l.old {
		cur[k] = k.store.get(k.idx)
	}
	return cur
}

// revert restores every journaled cell to its pre-branch value.
func (l *writeLog) revert() {
	for k, v := range l.old {
		k.store.set(k.idx, v)
	}
}

// dims evaluates declared array dimensions to compile-time sizes and returns
// them with the flattened cell count.
func (f *frame) dimsOf(exprs []ir.Expr, pos ir.Pos) ([]int, int, error) {
	if len(exprs) == 0 {
		return nil, 1, nil
	}
	dims := make([]int, len(exprs))
	size := 1
	for i, e := range exprs {
		v, err := f.eval(e)
		if err != nil {
			return nil, 0, err
		}
		d, err := constIndex(v, pos, "array dimension")
		if err != nil {
			return nil, 0, err
		}
		if d == 0 {
			return nil, 0, errAt(pos, graph.CodeUnknown, "zero-length array dimension")
		}
		dims[i] = d
		size *= d
	}
	return dims, size, nil
}

func (f *frame) declared(name string) bool {
	if _, ok := f.vars[name]; ok {
		return true
	}
	if _, ok := f.signals[name]; ok {
		return true
	}
	_, ok := f.comps[name]
	return ok
}

// outputNodes materializes the output signals in declaration order into a
// flat node list, failing on any cell left unassigned.
func (f *frame) outputNodes() ([]int, error) {
	var out []int
	for _, name := range f.signalOrder {
		ss := f.signals[name]
		if ss.kind != ir.SignalOutput {
			continue
		}
		for i, c := range ss.cells {
			if c.kind == valNone {
				return nil, graph.Errorf(graph.CodeUnknown, "output signal %q cell %d never assigned", name, i)
			}
			out = append(out, f.sp.materialize(c))
		}
	}
	return out, nil
}
