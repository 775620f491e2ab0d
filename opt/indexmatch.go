package opt

import (
	"github.com/golang/glog"

	"github.com/touba73/fdb-record-layer/cat"
	"github.com/touba73/fdb-record-layer/plan"
)

// aggregateCandidate is the normalized shape of a grouped-aggregate query
// fragment: group-by keys over a scanned record type, an aggregate function
// over one column, and the residual filter conjuncts, if any.
type aggregateCandidate struct {
	table     string
	groupCols []string // query order
	aggKind   cat.AggregateKind
	aggCol    string
	residual  []residualCond
}

// residualCond is one residual filter conjunct: column cmp constant.
type residualCond struct {
	col   string
	cmp   plan.Cmp
	datum plan.Datum
}

// IndexMatch is a successful structural match of a grouped aggregate
// against an aggregate index: the resolved scan range over the index's key
// order and the permutation mapping query grouping position to physical
// index key position, needed later to reorder result columns back to the
// query's requested order.
type IndexMatch struct {
	Index       *cat.Index
	Permutation []int
	Range       *plan.ScanRange
}

// extractAggregateCandidate recognizes a group-by expression whose input is
// a scan, or a filter over a scan, of a single record type. The grouping
// values and the aggregate argument must be simple field accesses on the
// quantified record; anything else is not a matchable shape.
func extractAggregateCandidate(m *Memo, e *Expr) (aggregateCandidate, bool) {
	var c aggregateCandidate
	if e.op != GroupByOp || len(e.quns) != 1 || e.quns[0].kind != ForEach {
		return c, false
	}

	table, residual, ok := extractScanInput(m, e.quns[0].input)
	if !ok {
		return c, false
	}
	c.table = table
	c.residual = residual

	qalias := e.quns[0].alias
	for _, g := range e.groupings {
		col, ok := simpleFieldColumn(g, qalias)
		if !ok {
			return c, false
		}
		c.groupCols = append(c.groupCols, col)
	}

	agg := e.projections[0]
	if agg.Op() != AggregateOp {
		return c, false
	}
	switch agg.Name() {
	case string(cat.AggregateMax), string(cat.AggregateMin), string(cat.AggregateSum):
		c.aggKind = cat.AggregateKind(agg.Name())
	default:
		return c, false
	}
	col, ok := simpleFieldColumn(agg.Child(0), qalias)
	if !ok {
		return c, false
	}
	c.aggCol = col
	return c, true
}

// extractScanInput looks through the variants of the group-by input group
// for a scan, or a filter whose input group contains a scan.
func extractScanInput(m *Memo, input GroupID) (table string, residual []residualCond, ok bool) {
	for _, v := range m.Variants(input) {
		switch v.op {
		case ScanOp:
			return v.table, nil, true
		case FilterOp:
			if len(v.quns) != 1 {
				continue
			}
			for _, inner := range m.Variants(v.quns[0].input) {
				if inner.op != ScanOp {
					continue
				}
				conds, condsOK := residualConds(v.pred, v.quns[0].alias)
				if !condsOK {
					continue
				}
				return inner.table, conds, true
			}
		}
	}
	return "", nil, false
}

// residualConds lowers a predicate into column-vs-constant conjuncts. Any
// conjunct that is not of that shape makes the whole filter unmatchable.
func residualConds(p *Predicate, qalias Alias) ([]residualCond, bool) {
	var out []residualCond
	for _, conj := range p.Conjuncts() {
		if conj.Op() != ComparisonOp {
			return nil, false
		}
		left, cmp, right := conj.Comparison()
		col, ok := simpleFieldColumn(left, qalias)
		if !ok || right.Op() != LiteralOp {
			return nil, false
		}
		out = append(out, residualCond{col: col, cmp: cmp, datum: right.Datum()})
	}
	return out, true
}

// simpleFieldColumn recognizes field(quantified(qalias)).col and returns the
// column name.
func simpleFieldColumn(v *Value, qalias Alias) (string, bool) {
	if v.Op() != FieldOp || v.ChildCount() != 1 {
		return "", false
	}
	base := v.Child(0)
	if base.Op() != QuantifiedOp || base.ProducerAlias() != qalias {
		return "", false
	}
	return v.Name(), true
}

// matchAggregateIndex structurally compares a grouped-aggregate candidate
// against one aggregate index. A match requires: the index aggregates the
// same function over the same column; the index key columns are a
// permutation of the grouping columns, where only the leading PermutedSize
// positions may be reordered; and the residual filter compiles to a
// contiguous range over the index's key order (equality prefix, then at
// most one bounded column). A partial match returns no match rather than a
// degraded plan.
func matchAggregateIndex(c aggregateCandidate, idx *cat.Index) (IndexMatch, bool) {
	if idx.AggregateKind() == cat.NoAggregate || idx.AggregateKind() != c.aggKind {
		return IndexMatch{}, false
	}
	if idx.AggregateColumn() != c.aggCol {
		return IndexMatch{}, false
	}
	if len(idx.KeyColumns) != len(c.groupCols) {
		return IndexMatch{}, false
	}

	perm, ok := permutationFor(c.groupCols, idx.KeyColumns, idx.PermutedSize())
	if !ok {
		return IndexMatch{}, false
	}

	r, ok := rangeFor(c.residual, idx.KeyColumns)
	if !ok {
		glog.V(2).Infof("index %s: residual filter is not a contiguous scan range", idx.Name)
		return IndexMatch{}, false
	}

	return IndexMatch{Index: idx, Permutation: perm, Range: r}, true
}

// permutationFor maps each query grouping position to its index key
// position. Positions at or beyond the permutation window must match the
// declared key order exactly; positions inside the window may be freely
// reordered.
func permutationFor(groupCols, keyCols []string, permutedSize int) ([]int, bool) {
	perm := make([]int, len(groupCols))
	for i, col := range groupCols {
		j := -1
		for k, keyCol := range keyCols {
			if keyCol == col {
				j = k
				break
			}
		}
		if j < 0 {
			return nil, false
		}
		if (i >= permutedSize || j >= permutedSize) && i != j {
			return nil, false
		}
		perm[i] = j
	}
	// Distinct column names make perm injective by construction; reject
	// duplicate grouping columns outright.
	seen := make(map[int]bool, len(perm))
	for _, j := range perm {
		if seen[j] {
			return nil, false
		}
		seen[j] = true
	}
	return perm, true
}

// rangeFor compiles residual conjuncts into a scan range over the index key
// order: an equality value for each leading key column, then optionally a
// low and/or high bound on the single next column. Conditions on later
// columns, inequalities on two different columns, or non-range comparisons
// (!=) defeat the match.
func rangeFor(residual []residualCond, keyCols []string) (*plan.ScanRange, bool) {
	if len(residual) == 0 {
		return &plan.ScanRange{}, true
	}

	byCol := make(map[string][]residualCond)
	for _, rc := range residual {
		if rc.cmp == plan.NE {
			return nil, false
		}
		byCol[rc.col] = append(byCol[rc.col], rc)
	}

	r := &plan.ScanRange{}
	consumed := 0
	pos := 0
	for ; pos < len(keyCols); pos++ {
		conds := byCol[keyCols[pos]]
		if len(conds) == 1 && conds[0].cmp == plan.EQ {
			r.Prefix = append(r.Prefix, conds[0].datum)
			consumed++
			continue
		}
		break
	}

	if pos < len(keyCols) {
		for _, rc := range byCol[keyCols[pos]] {
			switch rc.cmp {
			case plan.GT:
				if r.Low != nil {
					return nil, false
				}
				r.Low = &plan.Bound{Datum: rc.datum}
			case plan.GE:
				if r.Low != nil {
					return nil, false
				}
				r.Low = &plan.Bound{Datum: rc.datum, Inclusive: true}
			case plan.LT:
				if r.High != nil {
					return nil, false
				}
				r.High = &plan.Bound{Datum: rc.datum}
			case plan.LE:
				if r.High != nil {
					return nil, false
				}
				r.High = &plan.Bound{Datum: rc.datum, Inclusive: true}
			default:
				return nil, false
			}
			consumed++
		}
	}

	// Every residual conjunct must have been absorbed by the range; a
	// leftover condition on a later key column cannot be expressed as a
	// contiguous scan.
	if consumed != len(residual) {
		return nil, false
	}
	return r, true
}
