package graph

import (
	"github.com/consensys/gnark/logger"

	"github.com/iden3/circom-witnesscalc/field"
	"github.com/iden3/circom-witnesscalc/utils"
)

// Optimize rewrites g into a new, semantically equivalent graph. It runs
// constant folding (with algebraic simplification), common-subexpression
// merging and dead-node elimination to a fixed point: each pass can expose
// new work for the others. The result is stable: optimizing an optimized
// graph is a no-op.
//
// Input nodes are never removed, even when no reachable node reads them, so
// the flattened input layout stays identical across optimizer runs.
//
// A division by a constant zero is reported as DivisionByZero at build time;
// an assertion that folds to constant zero is reported as
// ConstraintViolation.
func Optimize(g *Graph) (*Graph, error) {
	log := logger.Logger()
	res := g.clone()
	before := len(res.Nodes)

	for {
		folded, err := constantFold(res)
		if err != nil {
			return nil, err
		}
		merged := mergeSubexpressions(res)
		removed := treeShake(res)
		log.Debug().
			Int("folded", folded).
			Int("merged", merged).
			Int("removed", removed).
			Msg("optimizer pass")
		if folded+merged+removed == 0 {
			break
		}
	}

	log.Info().
		Int("nbNodesBefore", before).
		Int("nbNodes", len(res.Nodes)).
		Msg("optimized graph")
	return res, nil
}

func (g *Graph) clone() *Graph {
	res := &Graph{
		Nodes:      make([]Node, len(g.Nodes)),
		NbInputs:   g.NbInputs,
		Inputs:     make(map[string]SignalRange, len(g.Inputs)),
		Witness:    append([]int(nil), g.Witness...),
		Assertions: append([]int(nil), g.Assertions...),
	}
	copy(res.Nodes, g.Nodes)
	for i := range res.Nodes {
		if c := res.Nodes[i].Cands; c != nil {
			res.Nodes[i].Cands = append([]int(nil), c...)
		}
	}
	for k, v := range g.Inputs {
		res.Inputs[k] = v
	}
	return res
}

// constantFold replaces every node whose operands are all constants by a
// constant node, and applies the algebraic identities that are special cases
// of it (x*1, x*0, x+0, x-0, x/1, x^0, x^1, double negation, a-a, same
// operand comparisons, constant ternary conditions and mux selectors).
// Folding that bypasses a node records an alias; references are rewritten
// through aliases as the single ascending scan proceeds.
func constantFold(g *Graph) (int, error) {
	alias := newAliasTable(len(g.Nodes))
	changed := 0

	constOf := func(i int) (field.Element, bool) {
		if g.Nodes[i].Kind == KindConstant {
			return g.Nodes[i].Value, true
		}
		return field.Element{}, false
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		if alias.rewrite(n) {
			changed++
		}
		switch n.Kind {
		case KindUnary:
			if va, ok := constOf(n.A); ok {
				v, err := EvalUnary(n.Op, va)
				if err != nil {
					return 0, NodeErrorf(CodeUnsupportedFeature, i, "%v", err)
				}
				g.Nodes[i] = Constant(v)
				changed++
				continue
			}
			// --x => x
			if n.Op == OpNeg && g.Nodes[n.A].Kind == KindUnary && g.Nodes[n.A].Op == OpNeg {
				alias.set(i, g.Nodes[n.A].A)
				changed++
			}
		case KindBinary:
			va, aConst := constOf(n.A)
			vb, bConst := constOf(n.B)
			if bConst && vb.IsZero() && (n.Op == OpDiv || n.Op == OpIntDiv || n.Op == OpMod) {
				return 0, NodeErrorf(CodeDivisionByZero, i, "%s by constant zero", n.Op)
			}
			if aConst && bConst {
				v, _, err := EvalBinary(n.Op, va, vb)
				if err != nil {
					return 0, NodeErrorf(CodeUnsupportedFeature, i, "%v", err)
				}
				g.Nodes[i] = Constant(v)
				changed++
				continue
			}
			if to, v, ok := foldIdentity(n, va, aConst, vb, bConst); ok {
				if to >= 0 {
					alias.set(i, to)
				} else {
					g.Nodes[i] = Constant(v)
				}
				changed++
			}
		case KindTernary:
			if va, ok := constOf(n.A); ok {
				if va.IsZero() {
					alias.set(i, n.C)
				} else {
					alias.set(i, n.B)
				}
				changed++
			} else if n.B == n.C {
				alias.set(i, n.B)
				changed++
			}
		case KindMux:
			if va, ok := constOf(n.A); ok {
				sel, inRange := muxIndex(va, len(n.Cands))
				if !inRange {
					return 0, NodeErrorf(CodeConstraintViolation, i,
						"constant mux selector %s out of %d candidates",
						field.ToBigInt(va), len(n.Cands))
				}
				alias.set(i, n.Cands[sel])
				changed++
			}
		}
	}

	if err := finishRewrite(g, alias); err != nil {
		return 0, err
	}
	return changed, nil
}

// foldIdentity handles binary identities with one constant operand or two
// identical operands. It returns either an alias target (to >= 0) or a
// replacement constant value.
func foldIdentity(n *Node, va field.Element, aConst bool, vb field.Element, bConst bool) (to int, v field.Element, ok bool) {
	one := field.One()
	if n.A == n.B && !aConst {
		switch n.Op {
		case OpEq, OpLeq, OpGeq:
			return -1, one, true
		case OpNeq, OpLt, OpGt:
			return -1, field.Element{}, true
		case OpSub, OpBxor:
			return -1, field.Element{}, true
		case OpBand, OpBor:
			return n.A, field.Element{}, true
		}
		return 0, field.Element{}, false
	}
	switch n.Op {
	case OpMul:
		if aConst && va.IsOne() {
			return n.B, field.Element{}, true
		}
		if bConst && vb.IsOne() {
			return n.A, field.Element{}, true
		}
		if (aConst && va.IsZero()) || (bConst && vb.IsZero()) {
			return -1, field.Element{}, true
		}
	case OpAdd:
		if aConst && va.IsZero() {
			return n.B, field.Element{}, true
		}
		if bConst && vb.IsZero() {
			return n.A, field.Element{}, true
		}
	case OpSub:
		if bConst && vb.IsZero() {
			return n.A, field.Element{}, true
		}
	case OpDiv:
		if bConst && vb.IsOne() {
			return n.A, field.Element{}, true
		}
	case OpPow:
		if bConst && vb.IsOne() {
			return n.A, field.Element{}, true
		}
		if bConst && vb.IsZero() {
			return -1, field.One(), true
		}
	}
	return 0, field.Element{}, false
}

// mergeSubexpressions merges nodes with identical kind, operator and operand
// lists into the earliest occurrence, rewriting all later references.
// Commutative operators are canonicalized first. Input nodes are left alone:
// they are the anchors of the input layout.
func mergeSubexpressions(g *Graph) int {
	alias := newAliasTable(len(g.Nodes))
	seen := make(utils.Map)
	changed := 0

	for i := range g.Nodes {
		n := &g.Nodes[i]
		if alias.rewrite(n) {
			changed++
		}
		if n.Kind == KindInput {
			continue
		}
		if n.Kind == KindBinary && n.Op.IsCommutative() && n.B < n.A {
			n.A, n.B = n.B, n.A
			changed++
		}
		if first, ok := seen.Find(*n); ok {
			alias.set(i, first.(int))
			changed++
		} else {
			seen.Set(*n, i)
		}
	}

	// merging cannot turn an assertion into a constant
	if err := finishRewrite(g, alias); err != nil {
		panic(err)
	}
	return changed
}

// treeShake deletes nodes unreachable by backward traversal from the witness
// and assertion sets, preserving every input node, and compacts indices with
// a stable renumbering.
func treeShake(g *Graph) int {
	used := make([]bool, len(g.Nodes))
	for _, w := range g.Witness {
		used[w] = true
	}
	for _, a := range g.Assertions {
		used[a] = true
	}
	for i := range g.Nodes {
		if g.Nodes[i].Kind == KindInput {
			used[i] = true
		}
	}
	// all references are backwards, so one reverse scan settles reachability
	for i := len(g.Nodes) - 1; i >= 0; i-- {
		if used[i] {
			g.Nodes[i].forEachOperand(func(j int) {
				used[j] = true
			})
		}
	}

	renumber := make([]int, len(g.Nodes))
	kept := 0
	for i := range g.Nodes {
		if used[i] {
			g.Nodes[kept] = g.Nodes[i]
			renumber[i] = kept
			kept++
		} else {
			renumber[i] = -1
		}
	}
	removed := len(g.Nodes) - kept
	if removed == 0 {
		return 0
	}
	g.Nodes = g.Nodes[:kept]

	for i := range g.Nodes {
		g.Nodes[i].mapOperands(func(j int) int {
			return renumber[j]
		})
	}
	for i, w := range g.Witness {
		g.Witness[i] = renumber[w]
	}
	for i, a := range g.Assertions {
		g.Assertions[i] = renumber[a]
	}
	return removed
}

// aliasTable tracks node replacements within one optimizer pass. An alias
// always points at a smaller, already-final index.
type aliasTable []int

func newAliasTable(n int) aliasTable {
	t := make(aliasTable, n)
	for i := range t {
		t[i] = i
	}
	return t
}

func (t aliasTable) set(i, to int) {
	t[i] = t[to]
}

func (t aliasTable) rewrite(n *Node) bool {
	changed := false
	n.mapOperands(func(j int) int {
		if t[j] != j {
			changed = true
		}
		return t[j]
	})
	return changed
}

// finishRewrite redirects the witness and assertion tables through the alias
// table. An assertion that now points at a constant is resolved immediately:
// zero is a build-time ConstraintViolation, nonzero is dropped.
func finishRewrite(g *Graph, alias aliasTable) error {
	for i, w := range g.Witness {
		g.Witness[i] = alias[w]
	}
	kept := g.Assertions[:0]
	for _, a := range g.Assertions {
		a = alias[a]
		if g.Nodes[a].Kind == KindConstant {
			if g.Nodes[a].Value.IsZero() {
				return NodeErrorf(CodeConstraintViolation, a, "assertion is provably false")
			}
			continue
		}
		kept = append(kept, a)
	}
	g.Assertions = kept
	return nil
}
