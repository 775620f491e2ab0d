package opt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/touba73/fdb-record-layer/plan"
)

func buildFilterExpr(t *testing.T, mem *Memo, f *Factory, alias Alias) *Expr {
	t.Helper()
	scan, err := f.ConstructScan("orders")
	require.NoError(t, err)
	region, err := OfFieldName(QuantifiedRecord(alias, mem.GroupType(scan)), "region")
	require.NoError(t, err)
	pred := Compare(region, plan.EQ, Literal(ScalarType(StringType), plan.StrDatum("east")))
	filtered, err := f.ConstructFilter(pred, ForEachOf(alias, scan))
	require.NoError(t, err)
	return mem.Variants(filtered)[0]
}

func TestRebaseIdentityYieldsEqualCopy(t *testing.T) {
	mem := NewMemo()
	f := NewFactory(mem, testCatalog(t))
	e := buildFilterExpr(t, mem, f, MakeAlias("o"))

	out, err := Rebase(e, IdentityAliasMap())
	require.NoError(t, err)
	require.NotSame(t, e, out)
	require.Equal(t, e.Fingerprint(), out.Fingerprint())
	require.True(t, e.FreeAliases().Equal(out.FreeAliases()))
}

func TestRebaseSubstitutesAliases(t *testing.T) {
	mem := NewMemo()
	f := NewFactory(mem, testCatalog(t))
	from, to := MakeAlias("q_from"), MakeAlias("q_to")
	e := buildFilterExpr(t, mem, f, from)

	am, err := MakeAliasMap(map[Alias]Alias{from: to})
	require.NoError(t, err)

	out, err := Rebase(e, am)
	require.NoError(t, err)
	require.Equal(t, to, out.Quantifiers()[0].Alias())
	require.Contains(t, out.Predicate().Fingerprint(), string(to))
	require.NotContains(t, out.Predicate().Fingerprint(), string(from))

	// The original is untouched.
	require.Equal(t, from, e.Quantifiers()[0].Alias())

	// Rebasing back through the inverse restores the original form.
	back, err := Rebase(out, am.Inverse())
	require.NoError(t, err)
	require.Equal(t, e.Fingerprint(), back.Fingerprint())
}

func TestRebaseValueSharesUnchangedSubtrees(t *testing.T) {
	lit := IntLiteral(7)
	require.Same(t, lit, RebaseValue(lit, IdentityAliasMap()))

	a, b := MakeAlias("a"), MakeAlias("b")
	am, err := MakeAliasMap(map[Alias]Alias{a: b})
	require.NoError(t, err)

	typ := MakeRecordType(ResultField{Name: "x", Type: ScalarType(IntType)})
	field, err := OfFieldName(QuantifiedRecord(a, typ), "x")
	require.NoError(t, err)

	out := RebaseValue(field, am)
	require.NotSame(t, field, out)
	require.Equal(t, b, out.Child(0).ProducerAlias())

	// A value over an unrelated alias is returned as is.
	other, err := OfFieldName(QuantifiedRecord(MakeAlias("c"), typ), "x")
	require.NoError(t, err)
	require.Same(t, other, RebaseValue(other, am))
}

func TestRebasePredicateExists(t *testing.T) {
	a, b := MakeAlias("a"), MakeAlias("b")
	am, err := MakeAliasMap(map[Alias]Alias{a: b})
	require.NoError(t, err)

	p := Exists(a)
	out := RebasePredicate(p, am)
	require.Equal(t, b, out.ExistsAlias())
	other := Exists(MakeAlias("c"))
	require.Same(t, other, RebasePredicate(other, am))
}

func TestRebaseUnknownVariant(t *testing.T) {
	_, err := Rebase(&Expr{op: LiteralOp}, IdentityAliasMap())
	require.ErrorIs(t, err, ErrRebase)
}

func TestAliasMapRejectsNonInvertible(t *testing.T) {
	_, err := MakeAliasMap(map[Alias]Alias{
		MakeAlias("a"): MakeAlias("x"),
		MakeAlias("b"): MakeAlias("x"),
	})
	require.Error(t, err)
}
