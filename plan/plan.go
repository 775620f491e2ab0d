// Package plan defines executable physical plan trees and their compact,
// reference-deduplicated wire form. A serialized plan doubles as a resumable
// continuation: execution can suspend, ship the encoded plan elsewhere, and
// resume against a fresh transaction.
package plan

import (
	"bytes"
	"fmt"

	"github.com/emicklei/dot"
)

// Kind tags a physical plan node variant.
type Kind uint8

const (
	UnknownNode Kind = iota
	FullScan
	IndexScan
	AggregateIndexScan
	Filter
	Project
	HashGroupBy
	Sort
	Union

	numKinds
)

var kindNames = [numKinds]string{
	UnknownNode:        "unknown",
	FullScan:           "full-scan",
	IndexScan:          "index-scan",
	AggregateIndexScan: "aggregate-index-scan",
	Filter:             "filter",
	Project:            "project",
	HashGroupBy:        "hash-group-by",
	Sort:               "sort",
	Union:              "union",
}

func (k Kind) String() string {
	if k >= numKinds {
		return fmt.Sprintf("kind(%d)", k)
	}
	return kindNames[k]
}

// KindFromName is the inverse of Kind.String, used when decoding wire plans.
func KindFromName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name && Kind(k) != UnknownNode {
			return Kind(k), true
		}
	}
	return UnknownNode, false
}

// Cmp identifies a comparison operator in a filter condition.
type Cmp uint8

const (
	EQ Cmp = iota
	NE
	LT
	LE
	GT
	GE
)

func (c Cmp) String() string {
	switch c {
	case EQ:
		return "="
	case NE:
		return "!="
	case LT:
		return "<"
	case LE:
		return "<="
	case GT:
		return ">"
	case GE:
		return ">="
	}
	return "?"
}

// Eval applies the comparison to the result of Datum.Compare.
func (c Cmp) Eval(cmp int) bool {
	switch c {
	case EQ:
		return cmp == 0
	case NE:
		return cmp != 0
	case LT:
		return cmp < 0
	case LE:
		return cmp <= 0
	case GT:
		return cmp > 0
	case GE:
		return cmp >= 0
	}
	return false
}

// FilterCond is one conjunct of a filter: column cmp datum.
type FilterCond struct {
	Column string `json:"column"`
	Cmp    Cmp    `json:"cmp"`
	Datum  Datum  `json:"datum"`
}

func (f FilterCond) String() string {
	return fmt.Sprintf("%s %s %s", f.Column, f.Cmp, f.Datum)
}

// Bound is one end of an index scan range.
type Bound struct {
	Datum     Datum `json:"datum"`
	Inclusive bool  `json:"inclusive"`
}

// ScanRange is a contiguous range over an index's key order: equality values
// for a prefix of the key columns, optionally followed by at most one
// inequality (Low and/or High) on the next column. Columns past the
// inequality are unconstrained.
type ScanRange struct {
	Prefix []Datum `json:"prefix,omitempty"`
	Low    *Bound  `json:"low,omitempty"`
	High   *Bound  `json:"high,omitempty"`
}

// Unbounded reports whether the range constrains nothing.
func (r *ScanRange) Unbounded() bool {
	return r == nil || (len(r.Prefix) == 0 && r.Low == nil && r.High == nil)
}

func (r *ScanRange) String() string {
	if r.Unbounded() {
		return "[]"
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, d := range r.Prefix {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "EQUALS %s", d)
	}
	if r.Low != nil || r.High != nil {
		if len(r.Prefix) > 0 {
			buf.WriteString(", ")
		}
		if r.Low != nil {
			op := ">"
			if r.Low.Inclusive {
				op = ">="
			}
			fmt.Fprintf(&buf, "%s %s", op, r.Low.Datum)
		}
		if r.High != nil {
			if r.Low != nil {
				buf.WriteString(" AND ")
			}
			op := "<"
			if r.High.Inclusive {
				op = "<="
			}
			fmt.Fprintf(&buf, "%s %s", op, r.High.Datum)
		}
	}
	buf.WriteByte(']')
	return buf.String()
}

// AggregateSpec names the aggregate computed by a grouping node: the function
// kind, the aggregated input column and the output column name.
type AggregateSpec struct {
	Kind   string `json:"kind"`
	Column string `json:"column"`
	As     string `json:"as"`
}

// Node is a physical plan node. The payload fields in use depend on Kind;
// unused fields are zero. Nodes form a DAG: a node may appear as a child of
// more than one parent (e.g. both branches of a union scanning the same
// index), and the wire form preserves that sharing.
type Node struct {
	Kind     Kind
	Children []*Node

	// FullScan.
	Table string

	// IndexScan, AggregateIndexScan.
	Index   string
	Range   *ScanRange
	Reverse bool

	// AggregateIndexScan: output column names in query order, and the
	// mapping from query grouping position to physical index key position.
	Columns     []string
	Permutation []int

	// Filter.
	Filter []FilterCond

	// HashGroupBy.
	GroupColumns []string
	Aggregate    AggregateSpec

	// Sort.
	SortColumns []string

	// Project.
	ProjectColumns []string
}

func (n *Node) String() string {
	var buf bytes.Buffer
	n.format(&buf, 0)
	return buf.String()
}

func (n *Node) format(buf *bytes.Buffer, indent int) {
	for i := 0; i < indent; i++ {
		buf.WriteString("  ")
	}
	buf.WriteString(n.label())
	buf.WriteByte('\n')
	for _, c := range n.Children {
		c.format(buf, indent+1)
	}
}

func (n *Node) label() string {
	switch n.Kind {
	case FullScan:
		return fmt.Sprintf("full-scan %s", n.Table)
	case IndexScan:
		return fmt.Sprintf("index-scan %s %s reverse=%t", n.Index, n.Range, n.Reverse)
	case AggregateIndexScan:
		return fmt.Sprintf("aggregate-index-scan %s %s permutation=%v reverse=%t",
			n.Index, n.Range, n.Permutation, n.Reverse)
	case Filter:
		return fmt.Sprintf("filter %v", n.Filter)
	case Project:
		return fmt.Sprintf("project %v", n.ProjectColumns)
	case HashGroupBy:
		return fmt.Sprintf("hash-group-by %v %s(%s) as %s",
			n.GroupColumns, n.Aggregate.Kind, n.Aggregate.Column, n.Aggregate.As)
	case Sort:
		return fmt.Sprintf("sort %v reverse=%t", n.SortColumns, n.Reverse)
	case Union:
		return "union"
	}
	return n.Kind.String()
}

// Graph renders the plan DAG in graphviz dot form. Shared sub-plans appear
// once, with multiple in-edges.
func (n *Node) Graph() string {
	g := dot.NewGraph(dot.Directed)
	seen := make(map[*Node]dot.Node)
	n.graphNode(g, seen)
	return g.String()
}

func (n *Node) graphNode(g *dot.Graph, seen map[*Node]dot.Node) dot.Node {
	if dn, ok := seen[n]; ok {
		return dn
	}
	dn := g.Node(fmt.Sprintf("n%d", len(seen))).Label(n.label())
	seen[n] = dn
	for _, c := range n.Children {
		g.Edge(dn, c.graphNode(g, seen))
	}
	return dn
}
