package opt

import "github.com/cockroachdb/errors"

// ErrPlanningFailed reports that no executable physical variant exists in
// the root group after exploration. It is fatal to the planning request and
// is never retried internally; callers wanting a different outcome must
// explicitly select a fallback driver.
var ErrPlanningFailed = errors.New("no physical plan exists for query")

// ErrExplorationIncomplete reports that the exploration budget was exhausted
// before reaching a fixed point. It is not fatal: the best plan found so far
// is still returned alongside it, and callers decide whether to reject a
// low-confidence plan.
var ErrExplorationIncomplete = errors.New("exploration budget exhausted before fixed point")

// ErrRebase reports that rebasing reached an expression variant that does
// not support alias substitution in the current context. This is a
// programming or registration error, not a query-data condition.
var ErrRebase = errors.New("expression variant does not support rebasing")
