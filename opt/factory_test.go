package opt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/touba73/fdb-record-layer/plan"
)

func buildSelfJoin(t *testing.T, f *Factory) (GroupID, Alias, Alias) {
	t.Helper()
	mem := f.Memo()
	scan, err := f.ConstructScan("orders")
	require.NoError(t, err)

	l := NewAlias()
	r := NewAlias()
	lid, err := OfFieldName(QuantifiedRecord(l, mem.GroupType(scan)), "id")
	require.NoError(t, err)
	rid, err := OfFieldName(QuantifiedRecord(r, mem.GroupType(scan)), "id")
	require.NoError(t, err)
	pred := Compare(lid, plan.EQ, rid)

	join, err := f.ConstructInnerJoin(ForEachOf(l, scan), ForEachOf(r, scan), pred)
	require.NoError(t, err)
	return join, l, r
}

func TestConstructInnerJoinConcatenatesFields(t *testing.T) {
	mem := NewMemo()
	f := NewFactory(mem, testCatalog(t))

	join, _, _ := buildSelfJoin(t, f)

	typ := mem.GroupType(join)
	require.Len(t, typ.Fields, 8)
	scanFields := []string{"id", "region", "sku", "amount"}
	for i, name := range scanFields {
		require.Equal(t, name, typ.Fields[i].Name)
		require.Equal(t, name, typ.Fields[i+4].Name)
	}
	// Both sides are bound by the join's own quantifiers.
	require.Empty(t, mem.GroupFreeAliases(join))
}

func TestInnerJoinRebase(t *testing.T) {
	mem := NewMemo()
	f := NewFactory(mem, testCatalog(t))

	join, l, _ := buildSelfJoin(t, f)
	e := mem.Variants(join)[0]
	require.Equal(t, InnerJoinOp, e.Op())

	l2 := NewAlias()
	am, err := MakeAliasMap(map[Alias]Alias{l: l2})
	require.NoError(t, err)

	out, err := Rebase(e, am)
	require.NoError(t, err)
	require.Equal(t, l2, out.Quantifiers()[0].Alias())
	require.NotEqual(t, e.Fingerprint(), out.Fingerprint())

	back, err := Rebase(out, am.Inverse())
	require.NoError(t, err)
	require.True(t, e.Equal(back))
}

func TestInnerJoinHasNoPhysicalPlan(t *testing.T) {
	p := NewPlanner(DefaultConfig(testCatalog(t)))
	join, _, _ := buildSelfJoin(t, p.Factory())

	// No implementation rule targets joins, so plan extraction fails even
	// though exploration itself completes.
	_, err := p.Plan(join)
	require.ErrorIs(t, err, ErrPlanningFailed)
}

func TestConstructFilterWithExistentialBinding(t *testing.T) {
	mem := NewMemo()
	f := NewFactory(mem, testCatalog(t))

	scan, err := f.ConstructScan("orders")
	require.NoError(t, err)

	o := MakeAlias("o")
	e := NewAlias()
	region, err := OfFieldName(QuantifiedRecord(o, mem.GroupType(scan)), "region")
	require.NoError(t, err)
	pred := And(
		Compare(region, plan.EQ, Literal(ScalarType(StringType), plan.StrDatum("east"))),
		Exists(e),
	)

	filtered, err := f.ConstructFilter(pred, ForEachOf(o, scan), ExistsOf(e, scan))
	require.NoError(t, err)

	quns := mem.Variants(filtered)[0].Quantifiers()
	require.Len(t, quns, 2)
	require.Equal(t, ForEach, quns[0].Kind())
	require.Equal(t, Existential, quns[1].Kind())
	// The existential alias is bound by its own quantifier, not free.
	require.Empty(t, mem.GroupFreeAliases(filtered))

	// Rebasing the existential binding rewrites the probe in the predicate.
	e2 := NewAlias()
	am, err := MakeAliasMap(map[Alias]Alias{e: e2})
	require.NoError(t, err)
	out, err := Rebase(mem.Variants(filtered)[0], am)
	require.NoError(t, err)
	require.Equal(t, e2, out.Quantifiers()[1].Alias())
	require.Equal(t, e2, out.Predicate().Conjuncts()[1].ExistsAlias())
}

func TestExistentialFilterIsNotExecutable(t *testing.T) {
	p := NewPlanner(DefaultConfig(testCatalog(t)))
	f := p.Factory()

	scan, err := f.ConstructScan("orders")
	require.NoError(t, err)
	o := MakeAlias("o")
	e := NewAlias()
	filtered, err := f.ConstructFilter(Exists(e), ForEachOf(o, scan), ExistsOf(e, scan))
	require.NoError(t, err)

	_, err = p.Plan(filtered)
	require.ErrorIs(t, err, ErrPlanningFailed)
}

func TestConstructFilterRequiresLeadingForEach(t *testing.T) {
	mem := NewMemo()
	f := NewFactory(mem, testCatalog(t))

	scan, err := f.ConstructScan("orders")
	require.NoError(t, err)
	_, err = f.ConstructFilter(Exists(MakeAlias("e")), ExistsOf(MakeAlias("e"), scan))
	require.Error(t, err)
}
