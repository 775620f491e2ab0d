package opt

import (
	"github.com/cockroachdb/errors"
	"github.com/golang/glog"

	"github.com/touba73/fdb-record-layer/cat"
	"github.com/touba73/fdb-record-layer/plan"
)

// Strategy selects the top-level planning driver. Both drivers run over the
// same memo and rule primitives.
type Strategy uint8

const (
	// CascadesStrategy explores equivalent rewrites to a fixed point, or
	// until the step budget runs out, before extracting the best plan.
	CascadesStrategy Strategy = iota

	// HeuristicStrategy applies the rule set once, in registration order,
	// with no fixed-point iteration.
	HeuristicStrategy
)

// DefaultMaxSteps bounds rule firings per exploration when the config does
// not say otherwise.
const DefaultMaxSteps = 10000

// Config carries the injectable planner inputs. The rule set, coster and
// catalog are read-only and may be shared across concurrent planners; the
// planner itself (and its memo) may not.
type Config struct {
	Strategy Strategy
	MaxSteps int
	Rules    *RuleSet
	Coster   Coster
	Catalog  *cat.Catalog
}

// DefaultConfig returns a cascades planner config with the built-in rules
// and cost model.
func DefaultConfig(catalog *cat.Catalog) Config {
	return Config{
		Strategy: CascadesStrategy,
		MaxSteps: DefaultMaxSteps,
		Rules:    DefaultRules(),
		Coster:   DefaultCoster(),
		Catalog:  catalog,
	}
}

// Planner drives one planning request: build the query through Factory,
// then Plan the root group. A Planner owns its memo and serves exactly one
// query; replans construct a new Planner.
type Planner struct {
	cfg     Config
	mem     *Memo
	factory *Factory
}

func NewPlanner(cfg Config) *Planner {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.Rules == nil {
		cfg.Rules = DefaultRules()
	}
	if cfg.Coster == nil {
		cfg.Coster = DefaultCoster()
	}
	mem := NewMemo()
	return &Planner{cfg: cfg, mem: mem, factory: NewFactory(mem, cfg.Catalog)}
}

func (p *Planner) Factory() *Factory {
	return p.factory
}

func (p *Planner) Memo() *Memo {
	return p.mem
}

// Plan explores the memo under the configured strategy and extracts the
// best physical plan for the root group. On budget exhaustion the best plan
// found so far is still returned, together with an error marked
// ErrExplorationIncomplete so callers can reject low-confidence plans.
func (p *Planner) Plan(root GroupID) (*plan.Node, error) {
	var incomplete bool
	var err error
	switch p.cfg.Strategy {
	case CascadesStrategy:
		incomplete, err = p.Explore()
	case HeuristicStrategy:
		err = p.applyOnce()
	default:
		return nil, errors.AssertionFailedf("unknown planning strategy %d", p.cfg.Strategy)
	}
	if err != nil {
		return nil, err
	}

	best, cost, err := p.mem.BestPlan(root, p.cfg.Coster)
	if err != nil {
		return nil, err
	}
	glog.V(2).Infof("best plan for group %d: %s (cost %v)", root, best, cost)

	node, err := p.lower(best)
	if err != nil {
		return nil, err
	}
	if incomplete {
		return node, errors.Wrapf(ErrExplorationIncomplete,
			"stopped after %d steps", p.cfg.MaxSteps)
	}
	return node, nil
}

// Explore runs the exploring driver to a fixed point or until the step
// budget is exhausted. Every (group, expression, rule) triple fires at most
// once; inserts are deduplicated, so re-running exploration at a fixed
// point is a no-op. Returns whether exploration stopped early.
func (p *Planner) Explore() (incomplete bool, err error) {
	ctx := &RuleContext{Memo: p.mem, Catalog: p.cfg.Catalog}
	steps := 0
	for pass := 1; ; pass++ {
		progress := false
		// The group and expression slices grow while we iterate; index-based
		// loops pick up insertions within the same pass.
		for gi := 1; gi < len(p.mem.groups); gi++ {
			g := p.mem.groups[gi]
			for ei := 0; ei < len(g.exprs); ei++ {
				e := g.exprs[ei]
				for _, r := range p.cfg.Rules.forOp(e.op) {
					if g.fired[ei][r.Name()] {
						continue
					}
					if steps >= p.cfg.MaxSteps {
						glog.V(2).Infof("exploration budget exhausted at pass %d", pass)
						return true, nil
					}
					steps++
					if !r.Check(ctx, e) {
						// Not marked as fired: a later pass may succeed once
						// child groups have gained variants.
						continue
					}
					g.fired[ei][r.Name()] = true
					derived, err := r.Apply(ctx, g.id, e)
					if err != nil {
						return false, errors.Wrapf(err, "rule %s", r.Name())
					}
					for _, d := range derived {
						added, err := p.mem.InsertInto(g.id, d)
						if err != nil {
							return false, errors.Wrapf(err, "rule %s", r.Name())
						}
						if added {
							progress = true
						}
					}
				}
			}
		}
		if !progress {
			glog.V(2).Infof("exploration fixed point after %d passes, %d steps, %d exprs",
				pass, steps, p.mem.ExprCount())
			return false, nil
		}
	}
}

// applyOnce is the heuristic driver: one sweep over the memo in rule
// registration order, no fixed point.
func (p *Planner) applyOnce() error {
	ctx := &RuleContext{Memo: p.mem, Catalog: p.cfg.Catalog}
	for gi := 1; gi < len(p.mem.groups); gi++ {
		g := p.mem.groups[gi]
		for ei := 0; ei < len(g.exprs); ei++ {
			e := g.exprs[ei]
			for _, r := range p.cfg.Rules.forOp(e.op) {
				if g.fired[ei][r.Name()] || !r.Check(ctx, e) {
					continue
				}
				g.fired[ei][r.Name()] = true
				derived, err := r.Apply(ctx, g.id, e)
				if err != nil {
					return errors.Wrapf(err, "rule %s", r.Name())
				}
				for _, d := range derived {
					if _, err := p.mem.InsertInto(g.id, d); err != nil {
						return errors.Wrapf(err, "rule %s", r.Name())
					}
				}
			}
		}
	}
	return nil
}

// lower converts an extracted physical expression into an executable plan
// node, recursively extracting the best plan of each child group.
func (p *Planner) lower(e *Expr) (*plan.Node, error) {
	children := make([]*plan.Node, len(e.quns))
	for i, q := range e.quns {
		best, _, err := p.mem.BestPlan(q.input, p.cfg.Coster)
		if err != nil {
			return nil, err
		}
		child, err := p.lower(best)
		if err != nil {
			return nil, err
		}
		children[i] = child
	}

	switch e.op {
	case FullScanOp:
		return &plan.Node{Kind: plan.FullScan, Table: e.table}, nil

	case IndexScanOp:
		return &plan.Node{Kind: plan.IndexScan, Index: e.index, Range: e.scanRange, Reverse: e.reverse}, nil

	case AggregateIndexScanOp:
		return &plan.Node{
			Kind:        plan.AggregateIndexScan,
			Index:       e.index,
			Range:       e.scanRange,
			Permutation: e.permutation,
			Reverse:     e.reverse,
			Columns:     e.columns,
		}, nil

	case FilterOp:
		conds, ok := residualConds(e.pred, e.quns[0].alias)
		if !ok {
			return nil, errors.Wrapf(ErrPlanningFailed, "filter predicate is not executable: %s", e.pred)
		}
		filter := make([]plan.FilterCond, len(conds))
		for i, rc := range conds {
			filter[i] = plan.FilterCond{Column: rc.col, Cmp: rc.cmp, Datum: rc.datum}
		}
		return &plan.Node{Kind: plan.Filter, Children: children, Filter: filter}, nil

	case ProjectOp:
		cols := make([]string, len(e.projections))
		for i, v := range e.projections {
			col, ok := simpleFieldColumn(v, e.quns[0].alias)
			if !ok {
				return nil, errors.Wrapf(ErrPlanningFailed, "projection %s is not executable", v)
			}
			cols[i] = col
		}
		return &plan.Node{Kind: plan.Project, Children: children, ProjectColumns: cols}, nil

	case HashGroupByOp:
		groupCols := make([]string, len(e.groupings))
		for i, g := range e.groupings {
			groupCols[i] = g.Name()
		}
		agg := e.projections[0]
		return &plan.Node{
			Kind:         plan.HashGroupBy,
			Children:     children,
			GroupColumns: groupCols,
			Aggregate: plan.AggregateSpec{
				Kind:   agg.Name(),
				Column: agg.Child(0).Name(),
				As:     e.aggName,
			},
		}, nil

	case SortOp:
		return &plan.Node{
			Kind:        plan.Sort,
			Children:    children,
			SortColumns: e.ordering.Columns,
			Reverse:     e.ordering.Reverse,
		}, nil

	case UnionOp:
		return &plan.Node{Kind: plan.Union, Children: children}, nil
	}
	return nil, errors.AssertionFailedf("cannot lower %s", e.op)
}
