package opt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/touba73/fdb-record-layer/plan"
)

func TestFieldAccessFusesRecordCtor(t *testing.T) {
	fields := []ResultField{
		{Name: "x", Type: ScalarType(IntType)},
		{Name: "y", Type: ScalarType(StringType)},
	}
	xv := IntLiteral(7)
	yv := Literal(ScalarType(StringType), plan.StrDatum("s"))
	ctor, err := RecordCtor(fields, []*Value{xv, yv})
	require.NoError(t, err)

	// Accessing a field of a record construction collapses to the composed
	// child itself, by either access path.
	byName, err := OfFieldName(ctor, "y")
	require.NoError(t, err)
	require.Same(t, yv, byName)

	byOrd, err := OfOrdinalNumber(ctor, 0)
	require.NoError(t, err)
	require.Same(t, xv, byOrd)
}

func TestNameAndOrdinalAccessCanonicalize(t *testing.T) {
	typ := MakeRecordType(
		ResultField{Name: "x", Type: ScalarType(IntType)},
		ResultField{Name: "y", Type: ScalarType(StringType)},
	)
	rec := QuantifiedRecord(MakeAlias("q"), typ)

	// On a non-constructed base there is nothing to fuse; both paths build
	// the same canonical field access.
	byName, err := OfFieldName(rec, "y")
	require.NoError(t, err)
	require.Equal(t, FieldOp, byName.Op())
	byOrd, err := OfOrdinalNumber(rec, 1)
	require.NoError(t, err)
	require.Equal(t, byName.Fingerprint(), byOrd.Fingerprint())
	require.True(t, byName.Equal(byOrd))
}

func TestFusedFormsMatchStructurally(t *testing.T) {
	mem := NewMemo()
	f := NewFactory(mem, testCatalog(t))
	scan, err := f.ConstructScan("orders")
	require.NoError(t, err)

	a := MakeAlias("o")
	rec := QuantifiedRecord(a, mem.GroupType(scan))
	region, err := OfFieldName(rec, "region")
	require.NoError(t, err)
	sku, err := OfFieldName(rec, "sku")
	require.NoError(t, err)

	ctorFields := []ResultField{
		{Name: "region", Type: region.Type()},
		{Name: "sku", Type: sku.Type()},
	}
	ctor, err := RecordCtor(ctorFields, []*Value{region, sku})
	require.NoError(t, err)

	// A field access composed over the construction fuses back to the plain
	// access, so the index matcher still recognizes it as a simple column.
	composed, err := OfFieldName(ctor, "region")
	require.NoError(t, err)
	require.Same(t, region, composed)

	col, ok := simpleFieldColumn(composed, a)
	require.True(t, ok)
	require.Equal(t, "region", col)
}

func TestValueConstructorErrors(t *testing.T) {
	typ := MakeRecordType(ResultField{Name: "x", Type: ScalarType(IntType)})
	rec := QuantifiedRecord(MakeAlias("q"), typ)

	_, err := OfFieldName(rec, "nope")
	require.Error(t, err)
	_, err = OfOrdinalNumber(rec, 1)
	require.Error(t, err)

	fields := []ResultField{{Name: "x", Type: ScalarType(IntType)}}
	_, err = RecordCtor(fields, nil)
	require.Error(t, err)
	_, err = RecordCtor(fields, []*Value{Literal(ScalarType(StringType), plan.StrDatum("s"))})
	require.Error(t, err)
}
