// Package exec runs physical plans against a RecordStore. It exists so the
// planner's output can be validated end to end; the execution model is
// straightforwardly materialized, one node at a time.
package exec

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/golang/glog"

	"github.com/touba73/fdb-record-layer/cat"
	"github.com/touba73/fdb-record-layer/plan"
)

// Executor evaluates a plan tree bottom-up, fully materializing each node's
// rows.
type Executor struct {
	rs *RecordStore
}

func NewExecutor(rs *RecordStore) *Executor {
	return &Executor{rs: rs}
}

// Run executes the plan and returns its rows.
func (ex *Executor) Run(n *plan.Node) ([]Row, error) {
	rows, err := ex.run(n)
	if err != nil {
		return nil, err
	}
	glog.V(2).Infof("%s produced %d rows", n.Kind, len(rows))
	return rows, nil
}

func (ex *Executor) run(n *plan.Node) ([]Row, error) {
	switch n.Kind {
	case plan.FullScan:
		return ex.runFullScan(n)
	case plan.IndexScan:
		return ex.runIndexScan(n)
	case plan.AggregateIndexScan:
		return ex.runAggregateIndexScan(n)
	case plan.Filter:
		return ex.runFilter(n)
	case plan.Project:
		return ex.runProject(n)
	case plan.HashGroupBy:
		return ex.runHashGroupBy(n)
	case plan.Sort:
		return ex.runSort(n)
	case plan.Union:
		return ex.runUnion(n)
	}
	return nil, errors.Newf("cannot execute %s node", n.Kind)
}

func (ex *Executor) child(n *plan.Node, i int) ([]Row, error) {
	if i >= len(n.Children) {
		return nil, errors.Newf("%s node missing child %d", n.Kind, i)
	}
	return ex.run(n.Children[i])
}

func (ex *Executor) runFullScan(n *plan.Node) ([]Row, error) {
	var out []Row
	err := ex.rs.ScanTable(n.Table, func(row Row) bool {
		out = append(out, row)
		return true
	})
	return out, err
}

// runIndexScan walks a value index and fetches the base record for every
// entry, so downstream nodes see full rows.
func (ex *Executor) runIndexScan(n *plan.Node) ([]Row, error) {
	m, err := ex.rs.Maintainer(n.Index)
	if err != nil {
		return nil, err
	}
	idx := m.Index()
	if idx.AggregateKind() != cat.NoAggregate {
		return nil, errors.Newf("index %s is an aggregate index; use an aggregate scan", n.Index)
	}
	table, rt, err := ex.rs.typeForIndex(n.Index)
	if err != nil {
		return nil, err
	}

	var out []Row
	var scanErr error
	err = m.ScanEntries(n.Range, n.Reverse, func(key []plan.Datum, _ plan.Datum) bool {
		// Entry key = indexed columns, then primary key.
		if len(key) != len(idx.KeyColumns)+len(rt.PrimaryKey) {
			scanErr = errors.Newf("index %s: entry has %d key datums", n.Index, len(key))
			return false
		}
		pkRow := make(Row, len(rt.PrimaryKey))
		for i, col := range rt.PrimaryKey {
			pkRow[col] = key[len(idx.KeyColumns)+i]
		}
		row, ok, err := ex.rs.fetch(table, rt, pkRow)
		if err != nil {
			scanErr = err
			return false
		}
		if !ok {
			scanErr = errors.Newf("index %s: dangling entry", n.Index)
			return false
		}
		out = append(out, row)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, scanErr
}

// runAggregateIndexScan reads pre-aggregated entries. Entry keys are in the
// index's physical column order; Permutation maps each output grouping
// position to its physical key position.
func (ex *Executor) runAggregateIndexScan(n *plan.Node) ([]Row, error) {
	m, err := ex.rs.Maintainer(n.Index)
	if err != nil {
		return nil, err
	}
	if len(n.Columns) != len(n.Permutation)+1 {
		return nil, errors.Newf("aggregate scan of %s: %d columns for %d key positions",
			n.Index, len(n.Columns), len(n.Permutation))
	}
	var out []Row
	var scanErr error
	err = m.ScanEntries(n.Range, n.Reverse, func(key []plan.Datum, val plan.Datum) bool {
		row := make(Row, len(n.Columns))
		for qpos, kpos := range n.Permutation {
			if kpos < 0 || kpos >= len(key) {
				scanErr = errors.Newf("aggregate scan of %s: key position %d out of range", n.Index, kpos)
				return false
			}
			row[n.Columns[qpos]] = key[kpos]
		}
		row[n.Columns[len(n.Columns)-1]] = val
		out = append(out, row)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, scanErr
}

func (ex *Executor) runFilter(n *plan.Node) ([]Row, error) {
	in, err := ex.child(n, 0)
	if err != nil {
		return nil, err
	}
	var out []Row
	for _, row := range in {
		keep := true
		for _, cond := range n.Filter {
			if !cond.Cmp.Eval(row[cond.Column].Compare(cond.Datum)) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out, nil
}

func (ex *Executor) runProject(n *plan.Node) ([]Row, error) {
	in, err := ex.child(n, 0)
	if err != nil {
		return nil, err
	}
	out := make([]Row, len(in))
	for i, row := range in {
		proj := make(Row, len(n.ProjectColumns))
		for _, col := range n.ProjectColumns {
			proj[col] = row[col]
		}
		out[i] = proj
	}
	return out, nil
}

func (ex *Executor) runHashGroupBy(n *plan.Node) ([]Row, error) {
	in, err := ex.child(n, 0)
	if err != nil {
		return nil, err
	}
	kind := cat.AggregateKind(n.Aggregate.Kind)

	type groupState struct {
		row Row
		agg plan.Datum
	}
	groups := make(map[string]*groupState)
	var order []string

	for _, row := range in {
		var keyBuf []byte
		for _, col := range n.GroupColumns {
			keyBuf = append(keyBuf, []byte(row[col].String())...)
			keyBuf = append(keyBuf, 0x00)
		}
		key := string(keyBuf)
		v := row[n.Aggregate.Column]
		g, ok := groups[key]
		if !ok {
			out := make(Row, len(n.GroupColumns)+1)
			for _, col := range n.GroupColumns {
				out[col] = row[col]
			}
			groups[key] = &groupState{row: out, agg: v}
			order = append(order, key)
			continue
		}
		next, err := combine(kind, g.agg, v)
		if err != nil {
			return nil, err
		}
		g.agg = next
	}

	out := make([]Row, len(order))
	for i, key := range order {
		g := groups[key]
		g.row[n.Aggregate.As] = g.agg
		out[i] = g.row
	}
	return out, nil
}

func (ex *Executor) runSort(n *plan.Node) ([]Row, error) {
	in, err := ex.child(n, 0)
	if err != nil {
		return nil, err
	}
	out := append([]Row(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		for _, col := range n.SortColumns {
			c := out[i][col].Compare(out[j][col])
			if c != 0 {
				if n.Reverse {
					return c > 0
				}
				return c < 0
			}
		}
		return false
	})
	return out, nil
}

func (ex *Executor) runUnion(n *plan.Node) ([]Row, error) {
	var out []Row
	for i := range n.Children {
		rows, err := ex.child(n, i)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}
