package opt

import (
	"github.com/touba73/fdb-record-layer/cat"
)

// RuleContext gives rules read access to the memo and the catalog during
// match and transform.
type RuleContext struct {
	Memo    *Memo
	Catalog *cat.Catalog
}

// Rule is one transformation: a cheap structural match predicate and a
// transform producing zero or more equivalent expressions. Rules must be
// monotonic: they only derive new expressions, never remove existing ones,
// so the memo only grows and exploration terminates under a finite rule set
// and budget. Transform results are inserted into the same group as the
// matched expression; a rule deriving a result with different free aliases
// inserts into the memo itself and returns nothing.
type Rule interface {
	// Name uniquely identifies the rule within a rule set.
	Name() string

	// MatchOp is the variant tag the rule fires on. The match is structural
	// (tag plus shape of children), never full semantic equivalence.
	MatchOp() Operator

	// Check refines the structural match.
	Check(ctx *RuleContext, e *Expr) bool

	// Apply derives equivalent expressions from a matched expression.
	Apply(ctx *RuleContext, grp GroupID, e *Expr) ([]*Expr, error)
}

// RuleSet is an immutable registry of rules, indexed by match operator.
// Registration order is the firing order, which keeps plan exploration
// deterministic. A RuleSet is safe for concurrent readers.
type RuleSet struct {
	byOp [numOperators][]Rule
}

func NewRuleSet(rules ...Rule) *RuleSet {
	rs := &RuleSet{}
	for _, r := range rules {
		rs.byOp[r.MatchOp()] = append(rs.byOp[r.MatchOp()], r)
	}
	return rs
}

func (rs *RuleSet) forOp(op Operator) []Rule {
	return rs.byOp[op]
}

// DefaultRules returns the built-in rule set: implementation rules for scan
// and group-by, and the aggregate index matcher.
func DefaultRules() *RuleSet {
	return NewRuleSet(
		implementScan{},
		implementGroupBy{},
		matchAggregateIndexRule{},
	)
}

// implementScan derives the physical full scan from a logical scan.
type implementScan struct{}

func (implementScan) Name() string       { return "ImplementScan" }
func (implementScan) MatchOp() Operator  { return ScanOp }
func (implementScan) Check(*RuleContext, *Expr) bool { return true }

func (implementScan) Apply(ctx *RuleContext, grp GroupID, e *Expr) ([]*Expr, error) {
	return []*Expr{{op: FullScanOp, typ: e.typ, table: e.table}}, nil
}

// implementGroupBy derives in-memory hash grouping over the group-by's
// input. This is the non-index fallback; without it a grouped aggregate is
// only plannable when an index matches.
type implementGroupBy struct{}

func (implementGroupBy) Name() string      { return "ImplementGroupBy" }
func (implementGroupBy) MatchOp() Operator { return GroupByOp }
func (implementGroupBy) Check(*RuleContext, *Expr) bool { return true }

func (implementGroupBy) Apply(ctx *RuleContext, grp GroupID, e *Expr) ([]*Expr, error) {
	return []*Expr{{
		op:          HashGroupByOp,
		quns:        e.quns,
		typ:         e.typ,
		groupings:   e.groupings,
		projections: e.projections,
		aggName:     e.aggName,
	}}, nil
}

// matchAggregateIndexRule binds grouped-aggregate shapes to declared
// aggregate indexes, emitting a physical aggregate-index-scan for every
// index that matches structurally. A failed match is a local signal only;
// the engine simply tries other variants.
type matchAggregateIndexRule struct{}

func (matchAggregateIndexRule) Name() string      { return "MatchAggregateIndex" }
func (matchAggregateIndexRule) MatchOp() Operator { return GroupByOp }

func (matchAggregateIndexRule) Check(ctx *RuleContext, e *Expr) bool {
	_, ok := extractAggregateCandidate(ctx.Memo, e)
	return ok
}

func (matchAggregateIndexRule) Apply(ctx *RuleContext, grp GroupID, e *Expr) ([]*Expr, error) {
	c, ok := extractAggregateCandidate(ctx.Memo, e)
	if !ok {
		return nil, nil
	}
	var out []*Expr
	for _, idx := range ctx.Catalog.Indexes(c.table) {
		match, ok := matchAggregateIndex(c, idx)
		if !ok {
			continue
		}
		columns := make([]string, 0, len(c.groupCols)+1)
		columns = append(columns, c.groupCols...)
		columns = append(columns, e.aggName)
		out = append(out, &Expr{
			op:          AggregateIndexScanOp,
			typ:         e.typ,
			index:       match.Index.Name,
			scanRange:   match.Range,
			permutation: match.Permutation,
			columns:     columns,
		})
	}
	return out, nil
}
