package kv

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/touba73/fdb-record-layer/plan"
)

func TestTupleOrderPreserved(t *testing.T) {
	// In strictly increasing datum order, across kinds and within kinds.
	datums := []plan.Datum{
		{},
		plan.BoolDatum(false),
		plan.BoolDatum(true),
		plan.IntDatum(math.MinInt64),
		plan.IntDatum(-1),
		plan.IntDatum(0),
		plan.IntDatum(42),
		plan.IntDatum(math.MaxInt64),
		plan.StrDatum(""),
		plan.StrDatum("a"),
		plan.StrDatum("a\x00b"),
		plan.StrDatum("ab"),
		plan.StrDatum("b"),
	}
	encoded := make([][]byte, len(datums))
	for i, d := range datums {
		encoded[i] = EncodeTuple(nil, []plan.Datum{d})
	}
	for i := range datums {
		for j := range datums {
			want := datums[i].Compare(datums[j])
			got := bytes.Compare(encoded[i], encoded[j])
			require.Equalf(t, want, got, "%s vs %s", datums[i], datums[j])
		}
	}
}

func TestTupleRoundTrip(t *testing.T) {
	in := []plan.Datum{
		plan.IntDatum(-7),
		plan.StrDatum("x\x00y"),
		plan.BoolDatum(true),
		{},
		plan.StrDatum(""),
	}
	out, err := DecodeTuple(EncodeTuple(nil, in))
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		require.Truef(t, in[i].Equal(out[i]), "datum %d: %s != %s", i, in[i], out[i])
	}
}

func TestDecodeTupleErrors(t *testing.T) {
	_, err := DecodeTuple([]byte{tagInt, 0x01})
	require.Error(t, err)
	_, err = DecodeTuple([]byte{tagString, 'a'})
	require.Error(t, err)
	_, err = DecodeTuple([]byte{0xee})
	require.Error(t, err)
}
