// Package opt implements the rule-driven expression optimizer: the
// expression and quantifier vocabulary, the memoization graph, the
// transformation-rule engine, the structural index matcher and alias
// rebasing. Planning is synchronous and single-threaded per query; a Memo
// and its groups must not be shared across goroutines. Rule sets and
// catalogs are read-only after initialization and may be shared freely.
package opt

import "fmt"

// Operator tags every expression, value and predicate variant. The set is
// closed: consumers dispatch with exhaustive switches, so adding a variant
// is a compile-time-checked exercise across the rebaser, the matcher, the
// coster and the plan builder.
type Operator uint8

const (
	UnknownOp Operator = iota

	// Relational, logical.
	ScanOp
	FilterOp
	ProjectOp
	GroupByOp
	SortOp
	InnerJoinOp
	UnionOp

	// Relational, physical.
	FullScanOp
	IndexScanOp
	AggregateIndexScanOp
	HashGroupByOp

	// Values.
	LiteralOp
	QuantifiedOp
	FieldOp
	FunctionOp
	AggregateOp
	RecordCtorOp

	// Predicates.
	ComparisonOp
	AndOp
	OrOp
	NotOp
	ExistsOp

	numOperators
)

var opNames = [numOperators]string{
	UnknownOp:            "unknown",
	ScanOp:               "scan",
	FilterOp:             "filter",
	ProjectOp:            "project",
	GroupByOp:            "group-by",
	SortOp:               "sort",
	InnerJoinOp:          "inner-join",
	UnionOp:              "union",
	FullScanOp:           "full-scan",
	IndexScanOp:          "index-scan",
	AggregateIndexScanOp: "aggregate-index-scan",
	HashGroupByOp:        "hash-group-by",
	LiteralOp:            "literal",
	QuantifiedOp:         "quantified",
	FieldOp:              "field",
	FunctionOp:           "function",
	AggregateOp:          "aggregate",
	RecordCtorOp:         "record-ctor",
	ComparisonOp:         "comparison",
	AndOp:                "and",
	OrOp:                 "or",
	NotOp:                "not",
	ExistsOp:             "exists",
}

func (op Operator) String() string {
	if op >= numOperators {
		return fmt.Sprintf("op(%d)", op)
	}
	return opNames[op]
}

// physicalOps marks the relational variants that carry an execution
// strategy. Only physical variants participate in best-plan extraction;
// logical variants are not executable.
var physicalOps = [numOperators]bool{
	FullScanOp:           true,
	IndexScanOp:          true,
	AggregateIndexScanOp: true,
	HashGroupByOp:        true,
	FilterOp:             true,
	ProjectOp:            true,
	SortOp:               true,
	UnionOp:              true,
}

// IsPhysical reports whether the operator is executable. FilterOp, ProjectOp,
// SortOp and UnionOp are directly executable and therefore both logical and
// physical; ScanOp, GroupByOp and InnerJoinOp require an implementation rule
// to produce a physical counterpart.
func (op Operator) IsPhysical() bool {
	return physicalOps[op]
}

// IsRelational reports whether the operator is a relational expression
// variant (as opposed to a value or predicate variant).
func (op Operator) IsRelational() bool {
	return op >= ScanOp && op <= HashGroupByOp
}
