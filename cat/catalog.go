// Package cat contains the metadata consumed by the planner: record types,
// their columns, and the indexes declared over them. A Catalog is immutable
// once planning starts and may be shared by concurrent planning requests.
package cat

import (
	"strconv"

	"github.com/cockroachdb/errors"
)

// ColumnType describes the static type of a record column.
type ColumnType uint8

const (
	UnknownType ColumnType = iota
	Int
	String
	Bool
)

func (t ColumnType) String() string {
	switch t {
	case Int:
		return "int"
	case String:
		return "string"
	case Bool:
		return "bool"
	}
	return "unknown"
}

// Column is a single typed column of a record type. Ordinal is the column's
// position within the record, used for ordinal-path value access.
type Column struct {
	Name    string
	Ordinal int
	Type    ColumnType
}

// RecordType is a named record shape. Columns are ordered; the ordinal of
// each column equals its slice index.
type RecordType struct {
	Name    string
	Columns []Column

	// PrimaryKey names the columns forming the record's primary key, in key
	// order. Used by the storage layer; the planner treats it as opaque.
	PrimaryKey []string
}

// Column returns the column with the given name.
func (t *RecordType) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnByOrdinal returns the column at the given ordinal.
func (t *RecordType) ColumnByOrdinal(ord int) (Column, bool) {
	if ord < 0 || ord >= len(t.Columns) {
		return Column{}, false
	}
	return t.Columns[ord], true
}

// Index option keys. Options not understood by the planner are carried
// through untouched.
const (
	// AggregateKindOption declares the aggregate function an aggregate index
	// physically maintains ("max", "min" or "sum").
	AggregateKindOption = "aggregateKind"

	// AggregateColumnOption names the column the index aggregates.
	AggregateColumnOption = "aggregateColumn"

	// PermutedSizeOption bounds how many leading key columns may be freely
	// reordered when matching the index against a query's grouping columns.
	PermutedSizeOption = "permutedSize"
)

// AggregateKind identifies the aggregate function maintained by an aggregate
// index.
type AggregateKind string

const (
	NoAggregate  AggregateKind = ""
	AggregateMax AggregateKind = "max"
	AggregateMin AggregateKind = "min"
	AggregateSum AggregateKind = "sum"
)

// Index describes a secondary index over a record type. For value indexes
// KeyColumns are the indexed columns in key order. For aggregate indexes
// KeyColumns are the grouping columns in declared key order, and the options
// map carries the aggregate kind, the aggregated column and the permutation
// window size.
type Index struct {
	Name       string
	KeyColumns []string
	Options    map[string]string
}

// AggregateKind returns the aggregate function this index maintains, or
// NoAggregate for a plain value index.
func (i *Index) AggregateKind() AggregateKind {
	switch AggregateKind(i.Options[AggregateKindOption]) {
	case AggregateMax:
		return AggregateMax
	case AggregateMin:
		return AggregateMin
	case AggregateSum:
		return AggregateSum
	}
	return NoAggregate
}

// AggregateColumn returns the column this index aggregates, or "" if the
// index is not an aggregate index.
func (i *Index) AggregateColumn() string {
	return i.Options[AggregateColumnOption]
}

// PermutedSize returns the number of leading key columns that may be freely
// reordered during index matching. Zero means the declared order is fixed.
func (i *Index) PermutedSize() int {
	s, ok := i.Options[PermutedSizeOption]
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Catalog holds the record types and indexes visible to the planner. Mutate
// only during initialization; afterwards a Catalog is safe for concurrent
// readers.
type Catalog struct {
	types   map[string]*RecordType
	indexes map[string][]*Index
}

func NewCatalog() *Catalog {
	return &Catalog{
		types:   make(map[string]*RecordType),
		indexes: make(map[string][]*Index),
	}
}

// AddType registers a record type.
func (c *Catalog) AddType(t *RecordType) error {
	if _, ok := c.types[t.Name]; ok {
		return errors.Newf("record type %q already defined", t.Name)
	}
	c.types[t.Name] = t
	return nil
}

// AddIndex registers an index over the named record type. The index key
// columns (and the aggregated column, if any) must exist on the type.
func (c *Catalog) AddIndex(typeName string, idx *Index) error {
	t, ok := c.types[typeName]
	if !ok {
		return errors.Newf("unknown record type %q", typeName)
	}
	for _, col := range idx.KeyColumns {
		if _, ok := t.Column(col); !ok {
			return errors.Newf("index %q: unknown key column %q", idx.Name, col)
		}
	}
	if agg := idx.AggregateColumn(); agg != "" {
		if _, ok := t.Column(agg); !ok {
			return errors.Newf("index %q: unknown aggregate column %q", idx.Name, agg)
		}
	}
	c.indexes[typeName] = append(c.indexes[typeName], idx)
	return nil
}

// Type returns the named record type.
func (c *Catalog) Type(name string) (*RecordType, bool) {
	t, ok := c.types[name]
	return t, ok
}

// TypeNames returns the names of all registered record types.
func (c *Catalog) TypeNames() []string {
	names := make([]string, 0, len(c.types))
	for name := range c.types {
		names = append(names, name)
	}
	return names
}

// Indexes returns the indexes declared over the named record type, in
// registration order.
func (c *Catalog) Indexes(typeName string) []*Index {
	return c.indexes[typeName]
}

// Index returns the index with the given name, searching all record types.
func (c *Catalog) Index(name string) (*Index, bool) {
	for _, idxs := range c.indexes {
		for _, idx := range idxs {
			if idx.Name == name {
				return idx, true
			}
		}
	}
	return nil, false
}
