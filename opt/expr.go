package opt

import (
	"bytes"
	"fmt"

	"github.com/touba73/fdb-record-layer/plan"
)

// QuantifierKind distinguishes iteration from existence probing.
type QuantifierKind uint8

const (
	// ForEach iterates the rows of its input.
	ForEach QuantifierKind = iota
	// Existential produces a single boolean: did the input produce any row.
	Existential
)

func (k QuantifierKind) String() string {
	if k == Existential {
		return "exists"
	}
	return "for-each"
}

// Quantifier binds an alias to the output of a memo group ("ranges over"
// it). It owns the binding only, never the evaluation state of its input.
type Quantifier struct {
	kind  QuantifierKind
	alias Alias
	input GroupID
}

// ForEachOf binds an alias to the row stream of the input group.
func ForEachOf(alias Alias, input GroupID) Quantifier {
	return Quantifier{kind: ForEach, alias: alias, input: input}
}

// ExistsOf binds an alias to an existence probe over the input group.
func ExistsOf(alias Alias, input GroupID) Quantifier {
	return Quantifier{kind: Existential, alias: alias, input: input}
}

func (q Quantifier) Kind() QuantifierKind { return q.kind }
func (q Quantifier) Alias() Alias         { return q.alias }
func (q Quantifier) Input() GroupID       { return q.input }

// Ordering is a sort requirement over named columns of a record stream.
type Ordering struct {
	Columns []string
	Reverse bool
}

func (o Ordering) String() string {
	dir := "asc"
	if o.Reverse {
		dir = "desc"
	}
	return fmt.Sprintf("%v %s", o.Columns, dir)
}

// Expr is a relational expression node, logical or physical: a variant tag
// over zero or more child quantifiers plus value/predicate payloads.
// Expressions are immutable after construction by the Factory or a rule, and
// are owned by the memo once inserted.
type Expr struct {
	op   Operator
	quns []Quantifier
	typ  ResultType
	free AliasSet

	// Payloads by variant.
	table       string          // ScanOp, FullScanOp
	pred        *Predicate      // FilterOp
	projections []*Value        // ProjectOp outputs; GroupByOp/HashGroupByOp aggregate
	names       []string        // ProjectOp output names
	groupings   []*Value        // GroupByOp/HashGroupByOp keys
	aggName     string          // GroupByOp/HashGroupByOp aggregate output name
	ordering    Ordering        // SortOp
	index       string          // IndexScanOp, AggregateIndexScanOp
	scanRange   *plan.ScanRange // IndexScanOp, AggregateIndexScanOp
	permutation []int           // AggregateIndexScanOp
	reverse     bool            // IndexScanOp, AggregateIndexScanOp
	columns     []string        // AggregateIndexScanOp output columns, query order
}

func (e *Expr) Op() Operator {
	return e.op
}

// Type returns the output type shared by every member of the expression's
// group.
func (e *Expr) Type() ResultType {
	return e.typ
}

// Quantifiers returns the ordered child quantifiers.
func (e *Expr) Quantifiers() []Quantifier {
	return e.quns
}

// FreeAliases returns the aliases referenced by this expression but not
// bound by any of its own quantifiers. The returned set is shared; callers
// must not mutate it.
func (e *Expr) FreeAliases() AliasSet {
	return e.free
}

func (e *Expr) Table() string            { return e.table }
func (e *Expr) Predicate() *Predicate    { return e.pred }
func (e *Expr) Projections() []*Value    { return e.projections }
func (e *Expr) ProjectionNames() []string { return e.names }
func (e *Expr) Groupings() []*Value      { return e.groupings }
func (e *Expr) AggregateName() string    { return e.aggName }
func (e *Expr) Ordering() Ordering       { return e.ordering }
func (e *Expr) Index() string            { return e.index }
func (e *Expr) ScanRange() *plan.ScanRange { return e.scanRange }
func (e *Expr) Permutation() []int       { return e.permutation }
func (e *Expr) ReverseScan() bool        { return e.reverse }
func (e *Expr) OutputColumns() []string  { return e.columns }

// computeFreeAliases derives the free-alias set of an expression given the
// free aliases of its child groups: payload aliases and child free aliases,
// minus the aliases bound by the expression's own quantifiers.
func (e *Expr) computeFreeAliases(childFree func(GroupID) AliasSet) {
	free := make(AliasSet)
	for _, q := range e.quns {
		free.UnionWith(childFree(q.input))
	}
	if e.pred != nil {
		e.pred.FreeAliases(free)
	}
	for _, v := range e.projections {
		v.FreeAliases(free)
	}
	for _, v := range e.groupings {
		v.FreeAliases(free)
	}
	for _, q := range e.quns {
		free.Remove(q.alias)
	}
	e.free = free
}

// Fingerprint uniquely identifies the expression's structure within a memo:
// the variant tag, the payload, and the (kind, alias, input group) of every
// child quantifier.
func (e *Expr) Fingerprint() string {
	var buf bytes.Buffer
	buf.WriteString(e.op.String())
	switch e.op {
	case ScanOp, FullScanOp:
		fmt.Fprintf(&buf, " %s", e.table)
	case FilterOp:
		fmt.Fprintf(&buf, " %s", e.pred)
	case ProjectOp:
		fmt.Fprintf(&buf, " %v=%v", e.names, e.projections)
	case GroupByOp, HashGroupByOp:
		fmt.Fprintf(&buf, " keys=%v agg=%v as %s", e.groupings, e.projections, e.aggName)
	case SortOp:
		fmt.Fprintf(&buf, " %s", e.ordering)
	case IndexScanOp:
		fmt.Fprintf(&buf, " %s %s reverse=%t", e.index, e.scanRange, e.reverse)
	case AggregateIndexScanOp:
		fmt.Fprintf(&buf, " %s %s perm=%v reverse=%t cols=%v",
			e.index, e.scanRange, e.permutation, e.reverse, e.columns)
	}
	if len(e.quns) > 0 {
		buf.WriteString(" [")
		for i, q := range e.quns {
			if i > 0 {
				buf.WriteByte(' ')
			}
			fmt.Fprintf(&buf, "%s:%s@%d", q.kind, q.alias, q.input)
		}
		buf.WriteByte(']')
	}
	return buf.String()
}

// Equal reports structural equality usable for deduplication inside a memo
// group.
func (e *Expr) Equal(o *Expr) bool {
	if e == nil || o == nil {
		return e == o
	}
	return e.Fingerprint() == o.Fingerprint()
}

func (e *Expr) String() string {
	return e.Fingerprint()
}
