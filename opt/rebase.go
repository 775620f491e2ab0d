package opt

import "github.com/cockroachdb/errors"

// Rebase renames the quantifier aliases of an expression through the given
// map, preserving which quantifier produces which value. Aliases outside the
// map are unchanged. Rebasing is required whenever a sub-expression is
// copied into a context that binds the same row streams under different
// aliases, and when aligning two subtrees for a rule match.
//
// Rebase is pure: the original expression is never mutated, and rebasing
// under the identity map yields a distinct but observationally equal copy.
// An unknown variant is a registration error and fails with ErrRebase.
func Rebase(e *Expr, am *AliasMap) (*Expr, error) {
	switch e.op {
	case ScanOp, FullScanOp, IndexScanOp, AggregateIndexScanOp,
		FilterOp, ProjectOp, GroupByOp, HashGroupByOp,
		SortOp, UnionOp, InnerJoinOp:
		// All current variants support rebasing.
	default:
		return nil, errors.Wrapf(ErrRebase, "variant %s", e.op)
	}

	out := &Expr{
		op:          e.op,
		typ:         e.typ,
		table:       e.table,
		names:       e.names,
		aggName:     e.aggName,
		ordering:    e.ordering,
		index:       e.index,
		scanRange:   e.scanRange,
		permutation: e.permutation,
		reverse:     e.reverse,
		columns:     e.columns,
	}
	if len(e.quns) > 0 {
		out.quns = make([]Quantifier, len(e.quns))
		for i, q := range e.quns {
			out.quns[i] = Quantifier{kind: q.kind, alias: am.Target(q.alias), input: q.input}
		}
	}
	if e.pred != nil {
		out.pred = RebasePredicate(e.pred, am)
	}
	if len(e.projections) > 0 {
		out.projections = make([]*Value, len(e.projections))
		for i, v := range e.projections {
			out.projections[i] = RebaseValue(v, am)
		}
	}
	if len(e.groupings) > 0 {
		out.groupings = make([]*Value, len(e.groupings))
		for i, v := range e.groupings {
			out.groupings[i] = RebaseValue(v, am)
		}
	}
	if e.free != nil {
		out.free = make(AliasSet, len(e.free))
		for a := range e.free {
			out.free.Add(am.Target(a))
		}
	}
	return out, nil
}

// RebaseValue substitutes quantifier aliases throughout a value tree.
// Subtrees without quantified references are shared, not copied.
func RebaseValue(v *Value, am *AliasMap) *Value {
	switch v.op {
	case QuantifiedOp:
		target := am.Target(v.alias)
		if target == v.alias {
			return v
		}
		return &Value{op: QuantifiedOp, typ: v.typ, alias: target}
	case LiteralOp:
		return v
	}
	changed := false
	children := make([]*Value, len(v.children))
	for i, c := range v.children {
		children[i] = RebaseValue(c, am)
		if children[i] != c {
			changed = true
		}
	}
	if !changed {
		return v
	}
	out := *v
	out.children = children
	return &out
}

// RebasePredicate substitutes quantifier aliases throughout a predicate
// tree. Subtrees without quantified references are shared, not copied.
func RebasePredicate(p *Predicate, am *AliasMap) *Predicate {
	switch p.op {
	case ComparisonOp:
		left := RebaseValue(p.left, am)
		right := RebaseValue(p.right, am)
		if left == p.left && right == p.right {
			return p
		}
		return &Predicate{op: ComparisonOp, cmp: p.cmp, left: left, right: right}
	case ExistsOp:
		target := am.Target(p.exists)
		if target == p.exists {
			return p
		}
		return &Predicate{op: ExistsOp, exists: target}
	default:
		changed := false
		children := make([]*Predicate, len(p.children))
		for i, c := range p.children {
			children[i] = RebasePredicate(c, am)
			if children[i] != c {
				changed = true
			}
		}
		if !changed {
			return p
		}
		out := *p
		out.children = children
		return &out
	}
}
