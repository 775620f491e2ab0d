package plan

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
)

// HashMode versions the serialization and hashing rules in effect for a plan.
// The mode is part of the wire contract: a payload encoded under one mode is
// rejected by a reader expecting another.
type HashMode string

const (
	// PlanHashV1 is the current continuation encoding.
	PlanHashV1 HashMode = "v1"

	// CurrentForContinuation is the mode used for newly minted continuations.
	CurrentForContinuation = PlanHashV1
)

// ErrSerialization marks a corrupted or version-mismatched wire payload: an
// id collision, a back-reference to an unseen id, or an unknown HashMode.
// Callers must treat it as fatal; a mis-reconstructed shared plan can corrupt
// query results.
var ErrSerialization = errors.New("plan serialization inconsistency")

// PlanReference is the wire form of a plan node: a reference id, plus the
// node's inline encoding the first time the node is emitted. Later
// occurrences of the same node carry only the id.
type PlanReference struct {
	ReferenceID int        `json:"referenceId"`
	Node        *NodeProto `json:"node,omitempty"`
}

// NodeProto is the inline wire encoding of a single plan node. Which payload
// fields are meaningful depends on Kind.
type NodeProto struct {
	Kind           string           `json:"kind"`
	Children       []*PlanReference `json:"children,omitempty"`
	Table          string           `json:"table,omitempty"`
	Index          string           `json:"index,omitempty"`
	Range          *ScanRange       `json:"range,omitempty"`
	Reverse        bool             `json:"reverse,omitempty"`
	Columns        []string         `json:"columns,omitempty"`
	Permutation    []int            `json:"permutation,omitempty"`
	Filter         []FilterCond     `json:"filter,omitempty"`
	GroupColumns   []string         `json:"groupColumns,omitempty"`
	Aggregate      *AggregateSpec   `json:"aggregate,omitempty"`
	SortColumns    []string         `json:"sortColumns,omitempty"`
	ProjectColumns []string         `json:"projectColumns,omitempty"`
}

// A decoder validates the payload of one node variant after the generic
// fields have been copied.
type decoder func(n *Node) error

// Registry maps node variant tags to their decoders and lists the HashModes
// a reader understands. Registries are immutable after construction and are
// threaded explicitly into every SerializationContext; there is no implicit
// process-global registry state.
type Registry struct {
	decoders map[string]decoder
	modes    map[HashMode]struct{}
}

// NewRegistry returns an empty registry supporting the given modes.
func NewRegistry(modes ...HashMode) *Registry {
	r := &Registry{
		decoders: make(map[string]decoder),
		modes:    make(map[HashMode]struct{}),
	}
	for _, m := range modes {
		r.modes[m] = struct{}{}
	}
	return r
}

// Register adds a decoder for a node variant tag.
func (r *Registry) Register(kind Kind, d decoder) {
	r.decoders[kind.String()] = d
}

// Supports reports whether the registry understands the given mode.
func (r *Registry) Supports(mode HashMode) bool {
	_, ok := r.modes[mode]
	return ok
}

// DefaultRegistry returns a registry with every built-in node variant and
// the current mode. Callers needing custom variants construct their own.
func DefaultRegistry() *Registry {
	r := NewRegistry(PlanHashV1)
	r.Register(FullScan, func(n *Node) error {
		if n.Table == "" {
			return errors.Wrap(ErrSerialization, "full-scan without table")
		}
		return nil
	})
	r.Register(IndexScan, requireIndex)
	r.Register(AggregateIndexScan, func(n *Node) error {
		if err := requireIndex(n); err != nil {
			return err
		}
		if len(n.Permutation) != len(n.Columns)-1 {
			return errors.Wrapf(ErrSerialization,
				"aggregate-index-scan permutation size %d does not cover %d grouping columns",
				len(n.Permutation), len(n.Columns)-1)
		}
		return nil
	})
	r.Register(Filter, requireOneChild)
	r.Register(Project, requireOneChild)
	r.Register(HashGroupBy, requireOneChild)
	r.Register(Sort, requireOneChild)
	r.Register(Union, func(n *Node) error {
		if len(n.Children) < 2 {
			return errors.Wrap(ErrSerialization, "union with fewer than two inputs")
		}
		return nil
	})
	return r
}

func requireIndex(n *Node) error {
	if n.Index == "" {
		return errors.Wrapf(ErrSerialization, "%s without index name", n.Kind)
	}
	return nil
}

func requireOneChild(n *Node) error {
	if len(n.Children) != 1 {
		return errors.Wrapf(ErrSerialization, "%s expects one input, got %d", n.Kind, len(n.Children))
	}
	return nil
}

// SerializationContext tracks the state of one serialize or deserialize pass.
// It owns the identity-keyed bidirectional map from plan node to reference
// id. Identity is pointer identity: two distinct nodes that happen to be
// structurally identical serialize independently. Create a fresh context per
// top-level call and discard it afterwards.
type SerializationContext struct {
	registry *Registry
	mode     HashMode
	ids      map[*Node]int
	byID     map[int]*Node
}

// NewSerializationContext returns a fresh context for the given registry and
// mode.
func NewSerializationContext(registry *Registry, mode HashMode) *SerializationContext {
	return &SerializationContext{
		registry: registry,
		mode:     mode,
		ids:      make(map[*Node]int),
		byID:     make(map[int]*Node),
	}
}

// NewContextForCurrentMode returns a fresh context using the current
// continuation mode.
func NewContextForCurrentMode(registry *Registry) *SerializationContext {
	return NewSerializationContext(registry, CurrentForContinuation)
}

// Mode returns the hash mode in effect for this pass.
func (c *SerializationContext) Mode() HashMode {
	return c.mode
}

// ToPlanReference serializes a plan node. If the node was already emitted
// during this pass, only its previously assigned reference id is emitted.
// Otherwise the node claims the next dense id (ids are assigned in emission
// order starting at 0) and is encoded inline alongside it.
func (c *SerializationContext) ToPlanReference(n *Node) (*PlanReference, error) {
	if id, ok := c.ids[n]; ok {
		return &PlanReference{ReferenceID: id}, nil
	}

	id := len(c.ids)
	c.ids[n] = id
	c.byID[id] = n

	p := &NodeProto{
		Kind:           n.Kind.String(),
		Table:          n.Table,
		Index:          n.Index,
		Range:          n.Range,
		Reverse:        n.Reverse,
		Columns:        n.Columns,
		Permutation:    n.Permutation,
		Filter:         n.Filter,
		GroupColumns:   n.GroupColumns,
		SortColumns:    n.SortColumns,
		ProjectColumns: n.ProjectColumns,
	}
	if n.Kind == HashGroupBy {
		agg := n.Aggregate
		p.Aggregate = &agg
	}
	for _, child := range n.Children {
		ref, err := c.ToPlanReference(child)
		if err != nil {
			return nil, err
		}
		p.Children = append(p.Children, ref)
	}
	return &PlanReference{ReferenceID: id, Node: p}, nil
}

// FromPlanReference reconstructs a plan node from its wire form. A
// reference-only message must point at an id already seen by this context,
// and yields the identical in-memory node, restoring sharing. An inline
// message must claim an id not seen before.
func (c *SerializationContext) FromPlanReference(ref *PlanReference) (*Node, error) {
	if ref == nil {
		return nil, errors.Wrap(ErrSerialization, "nil plan reference")
	}
	if ref.Node == nil {
		n, ok := c.byID[ref.ReferenceID]
		if !ok {
			return nil, errors.Wrapf(ErrSerialization, "back-reference to unseen id %d", ref.ReferenceID)
		}
		return n, nil
	}

	if _, claimed := c.byID[ref.ReferenceID]; claimed {
		return nil, errors.Wrapf(ErrSerialization, "reference id %d claimed twice", ref.ReferenceID)
	}

	kind, ok := KindFromName(ref.Node.Kind)
	if !ok {
		return nil, errors.Wrapf(ErrSerialization, "unknown plan node kind %q", ref.Node.Kind)
	}
	dec, ok := c.registry.decoders[ref.Node.Kind]
	if !ok {
		return nil, errors.Wrapf(ErrSerialization, "no decoder registered for kind %q", ref.Node.Kind)
	}

	n := &Node{
		Kind:           kind,
		Table:          ref.Node.Table,
		Index:          ref.Node.Index,
		Range:          ref.Node.Range,
		Reverse:        ref.Node.Reverse,
		Columns:        ref.Node.Columns,
		Permutation:    ref.Node.Permutation,
		Filter:         ref.Node.Filter,
		GroupColumns:   ref.Node.GroupColumns,
		SortColumns:    ref.Node.SortColumns,
		ProjectColumns: ref.Node.ProjectColumns,
	}
	if ref.Node.Aggregate != nil {
		n.Aggregate = *ref.Node.Aggregate
	}

	// Register before decoding children so emission order on the encode side
	// is mirrored exactly on the decode side.
	c.byID[ref.ReferenceID] = n
	c.ids[n] = ref.ReferenceID

	for _, childRef := range ref.Node.Children {
		child, err := c.FromPlanReference(childRef)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	return n, dec(n)
}

// envelope is the outermost wire message of an encoded continuation.
type envelope struct {
	Mode HashMode       `json:"mode"`
	Root *PlanReference `json:"root"`
}

// Encode serializes a plan into a compact continuation token: a
// snappy-compressed envelope carrying the mode tag and the deduplicated node
// tree. A fresh SerializationContext is used for the whole pass.
func Encode(n *Node, registry *Registry, mode HashMode) ([]byte, error) {
	if !registry.Supports(mode) {
		return nil, errors.Wrapf(ErrSerialization, "cannot encode under unsupported mode %q", mode)
	}
	ctx := NewSerializationContext(registry, mode)
	root, err := ctx.ToPlanReference(n)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(envelope{Mode: mode, Root: root})
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

// Decode reconstructs a plan from a continuation token. The token's mode tag
// must equal the expected mode and be supported by the registry; otherwise
// decoding fails with ErrSerialization rather than misinterpreting bytes.
func Decode(token []byte, registry *Registry, mode HashMode) (*Node, error) {
	raw, err := snappy.Decode(nil, token)
	if err != nil {
		return nil, errors.Wrap(ErrSerialization, err.Error())
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(ErrSerialization, err.Error())
	}
	if env.Mode != mode {
		return nil, errors.Wrapf(ErrSerialization, "mode mismatch: token %q, reader %q", env.Mode, mode)
	}
	if !registry.Supports(env.Mode) {
		return nil, errors.Wrapf(ErrSerialization, "unsupported mode %q", env.Mode)
	}
	ctx := NewSerializationContext(registry, mode)
	return ctx.FromPlanReference(env.Root)
}
