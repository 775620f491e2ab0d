package opt

// Cost is the comparable score of a physical expression variant. Lower is
// better.
type Cost float64

// Coster scores physical expression variants within a group. The core does
// not mandate its internals: any total order over variants works, and the
// planner treats it as injectable state-free configuration. childCosts are
// the best costs of the expression's child groups, in quantifier order.
type Coster interface {
	ExprCost(m *Memo, e *Expr, childCosts []Cost) Cost
}

// defaultCoster is a crude unit-cost model: full scans are expensive,
// aggregate index scans nearly free, and everything else adds a small
// per-operator charge on top of its children. It exists to order variants,
// not to estimate cardinality.
type defaultCoster struct{}

// DefaultCoster returns the built-in cost model.
func DefaultCoster() Coster {
	return defaultCoster{}
}

func (defaultCoster) ExprCost(m *Memo, e *Expr, childCosts []Cost) Cost {
	cost := Cost(0)
	for _, c := range childCosts {
		cost += c
	}
	switch e.op {
	case FullScanOp:
		cost += 1000
	case IndexScanOp:
		cost += 50
	case AggregateIndexScanOp:
		cost += 10
	case HashGroupByOp:
		cost += 100
	case SortOp:
		cost += 50
	case FilterOp:
		cost += 10
	case ProjectOp:
		cost += 1
	case UnionOp:
		cost += 5
	default:
		// Logical variants are never extracted; give them a harmless charge
		// in case a custom coster delegates here.
		cost += 1
	}
	return cost
}
