package opt

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/errors"
)

// GroupID identifies a memo group. Groups have numbers greater than 0; a
// GroupID of 0 indicates an unknown group.
type GroupID int32

// group owns a set of mutually-equivalent expression variants producing the
// same result under the same correlation. All members share an output type
// and a free-alias set; groups with differing free-alias sets are never
// merged.
type group struct {
	id   GroupID
	typ  ResultType
	free AliasSet

	exprs   []*Expr
	exprMap map[string]int // fingerprint -> index into exprs

	// fired records which rules have fired on which expression, keyed by
	// expression index then rule name. Owned by the rule engine.
	fired []map[string]bool
}

func (g *group) maybeAddExpr(e *Expr) (added bool) {
	f := e.Fingerprint()
	if _, ok := g.exprMap[f]; ok {
		return false
	}
	g.exprMap[f] = len(g.exprs)
	g.exprs = append(g.exprs, e)
	g.fired = append(g.fired, make(map[string]bool))
	return true
}

// Memo is the memoization graph: a DAG of groups connected through child
// quantifiers. The memo is the sole owner of all group and expression
// storage; cross-references are GroupIDs, never pointers, so teardown is
// dropping the memo. A memo serves exactly one planning request and must
// not be shared across goroutines.
type Memo struct {
	groups []*group // index 0 reserved invalid
}

func NewMemo() *Memo {
	return &Memo{groups: make([]*group, 1)}
}

// GroupCount returns the number of live groups.
func (m *Memo) GroupCount() int {
	return len(m.groups) - 1
}

// ExprCount returns the total number of memoized expressions.
func (m *Memo) ExprCount() int {
	n := 0
	for _, g := range m.groups[1:] {
		n += len(g.exprs)
	}
	return n
}

func (m *Memo) lookupGroup(id GroupID) *group {
	if id <= 0 || int(id) >= len(m.groups) {
		panic(fmt.Sprintf("invalid group id %d", id))
	}
	return m.groups[id]
}

// GroupType returns the output type shared by the group's members.
func (m *Memo) GroupType(id GroupID) ResultType {
	return m.lookupGroup(id).typ
}

// GroupFreeAliases returns the free-alias set shared by the group's members.
// The returned set is shared; callers must not mutate it.
func (m *Memo) GroupFreeAliases(id GroupID) AliasSet {
	return m.lookupGroup(id).free
}

// Variants returns the equivalent expression variants of a group, in
// insertion order. The returned slice is shared; callers must not mutate it.
func (m *Memo) Variants(id GroupID) []*Expr {
	return m.lookupGroup(id).exprs
}

// Insert adds an expression to the memo in a fresh group, unless the same
// expression (by structural equality) was inserted before, in which case the
// existing group is returned. The expression's free aliases are computed
// here against its child groups.
func (m *Memo) Insert(e *Expr) GroupID {
	e.computeFreeAliases(m.GroupFreeAliases)
	if id, ok := m.findExisting(e); ok {
		return id
	}
	id := GroupID(len(m.groups))
	g := &group{id: id, typ: e.typ, free: e.free, exprMap: make(map[string]int)}
	g.maybeAddExpr(e)
	m.groups = append(m.groups, g)
	return id
}

// InsertInto adds an expression as a new variant of an existing group: the
// caller asserts it is another representation of the same result. Members of
// a group must agree on output type and free aliases; violations are
// programming errors in a transformation rule.
func (m *Memo) InsertInto(id GroupID, e *Expr) (added bool, err error) {
	g := m.lookupGroup(id)
	e.computeFreeAliases(m.GroupFreeAliases)
	if !e.typ.Equal(g.typ) {
		return false, errors.AssertionFailedf(
			"expression type %s differs from group %d type %s", e.typ, id, g.typ)
	}
	if !e.free.Equal(g.free) {
		return false, errors.AssertionFailedf(
			"expression free aliases %s differ from group %d aliases %s", e.free, id, g.free)
	}
	return g.maybeAddExpr(e), nil
}

// findExisting locates the group already holding a structurally equal
// expression among groups with matching type and free aliases.
func (m *Memo) findExisting(e *Expr) (GroupID, bool) {
	f := e.Fingerprint()
	for _, g := range m.groups[1:] {
		if !g.typ.Equal(e.typ) || !g.free.Equal(e.free) {
			continue
		}
		if _, ok := g.exprMap[f]; ok {
			return g.id, true
		}
	}
	return 0, false
}

// bestEntry caches the outcome of best-plan extraction for one group within
// a single BestPlan call.
type bestEntry struct {
	expr *Expr
	cost Cost
	err  error
}

// BestPlan selects the lowest-cost physical variant of the group, costing
// children recursively. Logical variants are not executable and never
// selected. Ties are broken by insertion order, keeping plan choice
// reproducible across runs given identical input. If the group holds no
// physical variant, extraction fails with ErrPlanningFailed.
func (m *Memo) BestPlan(id GroupID, coster Coster) (*Expr, Cost, error) {
	cache := make(map[GroupID]*bestEntry)
	entry := m.bestPlan(id, coster, cache)
	return entry.expr, entry.cost, entry.err
}

func (m *Memo) bestPlan(id GroupID, coster Coster, cache map[GroupID]*bestEntry) *bestEntry {
	if entry, ok := cache[id]; ok {
		return entry
	}
	// Reserve the slot to catch accidental cycles; a memo is a DAG, so
	// revisiting a group mid-extraction is a corrupted memo.
	placeholder := &bestEntry{err: errors.AssertionFailedf("cycle through group %d", id)}
	cache[id] = placeholder

	g := m.lookupGroup(id)
	best := &bestEntry{err: errors.Wrapf(ErrPlanningFailed, "group %d has no physical variant", id)}
	for _, e := range g.exprs {
		if !e.op.IsPhysical() {
			continue
		}
		childCosts := make([]Cost, len(e.quns))
		childrenOK := true
		for i, q := range e.quns {
			child := m.bestPlan(q.input, coster, cache)
			if child.err != nil {
				childrenOK = false
				break
			}
			childCosts[i] = child.cost
		}
		if !childrenOK {
			continue
		}
		cost := coster.ExprCost(m, e, childCosts)
		if best.expr == nil || cost < best.cost {
			best = &bestEntry{expr: e, cost: cost}
		}
	}
	cache[id] = best
	return best
}

func (m *Memo) String() string {
	var buf bytes.Buffer
	for _, g := range m.groups[1:] {
		fmt.Fprintf(&buf, "%d: type=%s free=%s\n", g.id, g.typ, g.free)
		for _, e := range g.exprs {
			fmt.Fprintf(&buf, "  [%s]\n", e.Fingerprint())
		}
	}
	return buf.String()
}
