package opt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/touba73/fdb-record-layer/cat"
	"github.com/touba73/fdb-record-layer/plan"
)

func TestPermutationWithinWindow(t *testing.T) {
	perm, ok := permutationFor([]string{"a", "b"}, []string{"b", "a"}, 2)
	require.True(t, ok)
	require.Equal(t, []int{1, 0}, perm)

	// Identity order always matches regardless of window.
	perm, ok = permutationFor([]string{"a", "b"}, []string{"a", "b"}, 0)
	require.True(t, ok)
	require.Equal(t, []int{0, 1}, perm)

	// Reordering outside the window is rejected.
	_, ok = permutationFor([]string{"a", "b"}, []string{"b", "a"}, 0)
	require.False(t, ok)
	_, ok = permutationFor([]string{"a", "b", "c"}, []string{"b", "a", "c"}, 1)
	require.False(t, ok)
	perm, ok = permutationFor([]string{"a", "b", "c"}, []string{"b", "a", "c"}, 2)
	require.True(t, ok)
	require.Equal(t, []int{1, 0, 2}, perm)

	// Missing and duplicate columns are rejected.
	_, ok = permutationFor([]string{"a", "x"}, []string{"b", "a"}, 2)
	require.False(t, ok)
	_, ok = permutationFor([]string{"a", "a"}, []string{"a", "b"}, 2)
	require.False(t, ok)
}

func TestRangeForEqualityPrefixAndBound(t *testing.T) {
	keyCols := []string{"a", "b", "c"}

	r, ok := rangeFor(nil, keyCols)
	require.True(t, ok)
	require.True(t, r.Unbounded())

	r, ok = rangeFor([]residualCond{
		{col: "a", cmp: plan.EQ, datum: plan.IntDatum(1)},
		{col: "b", cmp: plan.GE, datum: plan.IntDatum(5)},
		{col: "b", cmp: plan.LT, datum: plan.IntDatum(9)},
	}, keyCols)
	require.True(t, ok)
	require.Len(t, r.Prefix, 1)
	require.True(t, r.Low.Inclusive)
	require.True(t, r.Low.Datum.Equal(plan.IntDatum(5)))
	require.False(t, r.High.Inclusive)
	require.True(t, r.High.Datum.Equal(plan.IntDatum(9)))
}

func TestRangeForRejectsNonContiguousShapes(t *testing.T) {
	keyCols := []string{"a", "b", "c"}

	// != is never a range.
	_, ok := rangeFor([]residualCond{{col: "a", cmp: plan.NE, datum: plan.IntDatum(1)}}, keyCols)
	require.False(t, ok)

	// Inequalities on two different columns cannot form one contiguous range.
	_, ok = rangeFor([]residualCond{
		{col: "a", cmp: plan.GT, datum: plan.IntDatum(1)},
		{col: "b", cmp: plan.LT, datum: plan.IntDatum(9)},
	}, keyCols)
	require.False(t, ok)

	// A condition skipping a key column leaves an unabsorbed conjunct.
	_, ok = rangeFor([]residualCond{
		{col: "a", cmp: plan.EQ, datum: plan.IntDatum(1)},
		{col: "c", cmp: plan.EQ, datum: plan.IntDatum(3)},
	}, keyCols)
	require.False(t, ok)

	// Two lower bounds on the same column.
	_, ok = rangeFor([]residualCond{
		{col: "a", cmp: plan.GT, datum: plan.IntDatum(1)},
		{col: "a", cmp: plan.GE, datum: plan.IntDatum(2)},
	}, keyCols)
	require.False(t, ok)
}

func testAggIndex(keyCols []string, kind string, col string, permuted string) *cat.Index {
	return &cat.Index{
		Name:       "agg_idx",
		KeyColumns: keyCols,
		Options: map[string]string{
			cat.AggregateKindOption:   kind,
			cat.AggregateColumnOption: col,
			cat.PermutedSizeOption:    permuted,
		},
	}
}

func TestMatchAggregateIndex(t *testing.T) {
	c := aggregateCandidate{
		table:     "orders",
		groupCols: []string{"region", "sku"},
		aggKind:   cat.AggregateMax,
		aggCol:    "amount",
	}

	m, ok := matchAggregateIndex(c, testAggIndex([]string{"sku", "region"}, "max", "amount", "2"))
	require.True(t, ok)
	require.Equal(t, []int{1, 0}, m.Permutation)
	require.True(t, m.Range.Unbounded())

	// Any structural mismatch yields no match rather than a degraded plan.
	_, ok = matchAggregateIndex(c, testAggIndex([]string{"sku", "region"}, "min", "amount", "2"))
	require.False(t, ok)
	_, ok = matchAggregateIndex(c, testAggIndex([]string{"sku", "region"}, "max", "id", "2"))
	require.False(t, ok)
	_, ok = matchAggregateIndex(c, testAggIndex([]string{"sku", "region"}, "max", "amount", "0"))
	require.False(t, ok)
	_, ok = matchAggregateIndex(c, testAggIndex([]string{"sku"}, "max", "amount", "2"))
	require.False(t, ok)
	_, ok = matchAggregateIndex(c, &cat.Index{Name: "value_idx", KeyColumns: []string{"sku", "region"}})
	require.False(t, ok)

	// A residual equality on a grouping column narrows the scan range.
	c.residual = []residualCond{{col: "sku", cmp: plan.EQ, datum: plan.StrDatum("widget")}}
	m, ok = matchAggregateIndex(c, testAggIndex([]string{"sku", "region"}, "max", "amount", "2"))
	require.True(t, ok)
	require.Len(t, m.Range.Prefix, 1)
	require.True(t, m.Range.Prefix[0].Equal(plan.StrDatum("widget")))

	// A residual the index order cannot absorb defeats the whole match.
	c.residual = []residualCond{
		{col: "sku", cmp: plan.GT, datum: plan.StrDatum("a")},
		{col: "region", cmp: plan.LT, datum: plan.StrDatum("m")},
	}
	_, ok = matchAggregateIndex(c, testAggIndex([]string{"sku", "region"}, "max", "amount", "2"))
	require.False(t, ok)
}

func TestExtractAggregateCandidate(t *testing.T) {
	mem := NewMemo()
	f := NewFactory(mem, testCatalog(t))

	scan, err := f.ConstructScan("orders")
	require.NoError(t, err)

	fa := MakeAlias("f")
	sku, err := OfFieldName(QuantifiedRecord(fa, mem.GroupType(scan)), "sku")
	require.NoError(t, err)
	pred := Compare(sku, plan.EQ, Literal(ScalarType(StringType), plan.StrDatum("widget")))
	filtered, err := f.ConstructFilter(pred, ForEachOf(fa, scan))
	require.NoError(t, err)

	ga := MakeAlias("g")
	rec := QuantifiedRecord(ga, mem.GroupType(filtered))
	region, err := OfFieldName(rec, "region")
	require.NoError(t, err)
	gsku, err := OfFieldName(rec, "sku")
	require.NoError(t, err)
	amount, err := OfFieldName(rec, "amount")
	require.NoError(t, err)

	grouped, err := f.ConstructGroupBy(
		ForEachOf(ga, filtered), []*Value{region, gsku}, Aggregate("max", amount), "max_amount")
	require.NoError(t, err)

	c, ok := extractAggregateCandidate(mem, mem.Variants(grouped)[0])
	require.True(t, ok)
	require.Equal(t, "orders", c.table)
	require.Equal(t, []string{"region", "sku"}, c.groupCols)
	require.Equal(t, cat.AggregateMax, c.aggKind)
	require.Equal(t, "amount", c.aggCol)
	require.Len(t, c.residual, 1)
	require.Equal(t, "sku", c.residual[0].col)
}

func TestExtractAggregateCandidateRejectsComplexShapes(t *testing.T) {
	mem := NewMemo()
	f := NewFactory(mem, testCatalog(t))

	scan, err := f.ConstructScan("orders")
	require.NoError(t, err)
	a := MakeAlias("o")
	rec := QuantifiedRecord(a, mem.GroupType(scan))
	region, err := OfFieldName(rec, "region")
	require.NoError(t, err)
	amount, err := OfFieldName(rec, "amount")
	require.NoError(t, err)

	// An aggregate over a computed value is not a matchable shape.
	grouped, err := f.ConstructGroupBy(
		ForEachOf(a, scan), []*Value{region},
		Aggregate("max", Function("abs", ScalarType(IntType), amount)), "m")
	require.NoError(t, err)
	_, ok := extractAggregateCandidate(mem, mem.Variants(grouped)[0])
	require.False(t, ok)

	// An unknown aggregate function is not matchable either.
	grouped2, err := f.ConstructGroupBy(
		ForEachOf(a, scan), []*Value{region}, Aggregate("median", amount), "m")
	require.NoError(t, err)
	_, ok = extractAggregateCandidate(mem, mem.Variants(grouped2)[0])
	require.False(t, ok)
}
