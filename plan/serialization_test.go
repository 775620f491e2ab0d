package plan

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func sharedScanPlan() (*Node, *Node) {
	scan := &Node{Kind: FullScan, Table: "orders"}
	f1 := &Node{Kind: Filter, Children: []*Node{scan},
		Filter: []FilterCond{{Column: "region", Cmp: EQ, Datum: StrDatum("east")}}}
	f2 := &Node{Kind: Filter, Children: []*Node{scan},
		Filter: []FilterCond{{Column: "region", Cmp: EQ, Datum: StrDatum("west")}}}
	return &Node{Kind: Union, Children: []*Node{f1, f2}}, scan
}

func TestSerializationRoundTripPreservesSharing(t *testing.T) {
	root, _ := sharedScanPlan()
	reg := DefaultRegistry()

	token, err := Encode(root, reg, PlanHashV1)
	require.NoError(t, err)

	decoded, err := Decode(token, reg, PlanHashV1)
	require.NoError(t, err)
	require.Equal(t, root.String(), decoded.String())

	// The scan appears once on the wire; decoding restores pointer sharing.
	left := decoded.Children[0].Children[0]
	right := decoded.Children[1].Children[0]
	require.Same(t, left, right)
}

func TestSerializationDenseEmissionOrderIDs(t *testing.T) {
	root, _ := sharedScanPlan()
	ctx := NewContextForCurrentMode(DefaultRegistry())

	ref, err := ctx.ToPlanReference(root)
	require.NoError(t, err)
	require.Equal(t, 0, ref.ReferenceID)
	require.NotNil(t, ref.Node)

	f1 := ref.Node.Children[0]
	require.Equal(t, 1, f1.ReferenceID)
	require.Equal(t, 2, f1.Node.Children[0].ReferenceID)

	// The second filter re-references the scan without re-encoding it.
	f2 := ref.Node.Children[1]
	require.Equal(t, 3, f2.ReferenceID)
	require.Equal(t, 2, f2.Node.Children[0].ReferenceID)
	require.Nil(t, f2.Node.Children[0].Node)
}

func TestSerializationModeMismatch(t *testing.T) {
	root, _ := sharedScanPlan()
	reg := DefaultRegistry()

	token, err := Encode(root, reg, PlanHashV1)
	require.NoError(t, err)

	_, err = Decode(token, reg, HashMode("v2"))
	require.ErrorIs(t, err, ErrSerialization)

	_, err = Encode(root, reg, HashMode("v2"))
	require.ErrorIs(t, err, ErrSerialization)
}

func TestSerializationBackReferenceToUnseenID(t *testing.T) {
	ctx := NewContextForCurrentMode(DefaultRegistry())
	_, err := ctx.FromPlanReference(&PlanReference{ReferenceID: 5})
	require.ErrorIs(t, err, ErrSerialization)
}

func TestSerializationIDClaimedTwice(t *testing.T) {
	ctx := NewContextForCurrentMode(DefaultRegistry())
	inline := func() *PlanReference {
		return &PlanReference{ReferenceID: 0, Node: &NodeProto{Kind: "full-scan", Table: "t"}}
	}
	_, err := ctx.FromPlanReference(inline())
	require.NoError(t, err)
	_, err = ctx.FromPlanReference(inline())
	require.ErrorIs(t, err, ErrSerialization)
}

func TestSerializationValidatesPayloads(t *testing.T) {
	ctx := NewContextForCurrentMode(DefaultRegistry())

	// A full scan without a table is corrupt.
	_, err := ctx.FromPlanReference(&PlanReference{ReferenceID: 0, Node: &NodeProto{Kind: "full-scan"}})
	require.ErrorIs(t, err, ErrSerialization)

	// An aggregate scan whose permutation does not cover its grouping columns
	// is corrupt.
	ctx = NewContextForCurrentMode(DefaultRegistry())
	_, err = ctx.FromPlanReference(&PlanReference{ReferenceID: 0, Node: &NodeProto{
		Kind:        "aggregate-index-scan",
		Index:       "idx",
		Columns:     []string{"a", "b", "m"},
		Permutation: []int{0},
	}})
	require.ErrorIs(t, err, ErrSerialization)

	ctx = NewContextForCurrentMode(DefaultRegistry())
	_, err = ctx.FromPlanReference(&PlanReference{ReferenceID: 0, Node: &NodeProto{Kind: "no-such-kind"}})
	require.ErrorIs(t, err, ErrSerialization)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not snappy"), DefaultRegistry(), PlanHashV1)
	require.True(t, errors.Is(err, ErrSerialization))
}
