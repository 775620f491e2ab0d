package opt

import (
	"github.com/cockroachdb/errors"

	"github.com/touba73/fdb-record-layer/cat"
)

// Factory constructs relational expressions and inserts them into its memo.
// All query construction goes through the factory so that types and free
// aliases are derived consistently at build time.
type Factory struct {
	mem     *Memo
	catalog *cat.Catalog
}

func NewFactory(mem *Memo, catalog *cat.Catalog) *Factory {
	return &Factory{mem: mem, catalog: catalog}
}

func (f *Factory) Memo() *Memo {
	return f.mem
}

func (f *Factory) Catalog() *cat.Catalog {
	return f.catalog
}

// ConstructScan builds a logical scan over all records of a type.
func (f *Factory) ConstructScan(table string) (GroupID, error) {
	t, ok := f.catalog.Type(table)
	if !ok {
		return 0, errors.Newf("unknown record type %q", table)
	}
	e := &Expr{op: ScanOp, typ: RecordTypeFor(t), table: table}
	return f.mem.Insert(e), nil
}

// ConstructFilter wraps an input with a predicate. The first quantifier must
// be a for-each over the filtered input; further quantifiers may be
// existential bindings referenced by the predicate.
func (f *Factory) ConstructFilter(pred *Predicate, quns ...Quantifier) (GroupID, error) {
	if len(quns) == 0 || quns[0].kind != ForEach {
		return 0, errors.Newf("filter needs a leading for-each quantifier")
	}
	e := &Expr{
		op:   FilterOp,
		quns: quns,
		typ:  f.mem.GroupType(quns[0].input),
		pred: pred,
	}
	return f.mem.Insert(e), nil
}

// ConstructProject computes named output values per row of the input.
func (f *Factory) ConstructProject(q Quantifier, names []string, projections []*Value) (GroupID, error) {
	if len(names) != len(projections) {
		return 0, errors.Newf("project arity mismatch: %d names, %d values", len(names), len(projections))
	}
	fields := make([]ResultField, len(projections))
	for i, v := range projections {
		fields[i] = ResultField{Name: names[i], Type: v.Type()}
	}
	e := &Expr{
		op:          ProjectOp,
		quns:        []Quantifier{q},
		typ:         MakeRecordType(fields...),
		projections: projections,
		names:       names,
	}
	return f.mem.Insert(e), nil
}

// ConstructGroupBy builds a logical grouped aggregate: one output row per
// distinct grouping-key combination, carrying the keys and the aggregate.
// Each grouping value must be a field access so the output columns have
// names.
func (f *Factory) ConstructGroupBy(q Quantifier, groupings []*Value, agg *Value, aggName string) (GroupID, error) {
	if agg.Op() != AggregateOp {
		return 0, errors.Newf("group-by aggregate must be an aggregate value, got %s", agg.Op())
	}
	fields := make([]ResultField, 0, len(groupings)+1)
	for _, g := range groupings {
		if g.Op() != FieldOp {
			return 0, errors.Newf("grouping value must be a field access, got %s", g.Op())
		}
		fields = append(fields, ResultField{Name: g.Name(), Type: g.Type()})
	}
	fields = append(fields, ResultField{Name: aggName, Type: agg.Type()})
	e := &Expr{
		op:          GroupByOp,
		quns:        []Quantifier{q},
		typ:         MakeRecordType(fields...),
		groupings:   groupings,
		projections: []*Value{agg},
		aggName:     aggName,
	}
	return f.mem.Insert(e), nil
}

// ConstructSort orders the input by named columns of its record stream.
func (f *Factory) ConstructSort(q Quantifier, ordering Ordering) (GroupID, error) {
	typ := f.mem.GroupType(q.input)
	for _, col := range ordering.Columns {
		if _, _, ok := typ.Field(col); !ok {
			return 0, errors.Newf("sort column %q not produced by input", col)
		}
	}
	e := &Expr{op: SortOp, quns: []Quantifier{q}, typ: typ, ordering: ordering}
	return f.mem.Insert(e), nil
}

// ConstructUnion concatenates two inputs of identical shape.
func (f *Factory) ConstructUnion(left, right Quantifier) (GroupID, error) {
	lt := f.mem.GroupType(left.input)
	rt := f.mem.GroupType(right.input)
	if !lt.Equal(rt) {
		return 0, errors.Newf("union inputs differ in shape: %s vs %s", lt, rt)
	}
	e := &Expr{op: UnionOp, quns: []Quantifier{left, right}, typ: lt}
	return f.mem.Insert(e), nil
}

// ConstructInnerJoin joins two inputs under a predicate. The output record
// concatenates the fields of both sides.
func (f *Factory) ConstructInnerJoin(left, right Quantifier, pred *Predicate) (GroupID, error) {
	lt := f.mem.GroupType(left.input)
	rt := f.mem.GroupType(right.input)
	fields := make([]ResultField, 0, len(lt.Fields)+len(rt.Fields))
	fields = append(fields, lt.Fields...)
	fields = append(fields, rt.Fields...)
	e := &Expr{
		op:   InnerJoinOp,
		quns: []Quantifier{left, right},
		typ:  MakeRecordType(fields...),
		pred: pred,
	}
	return f.mem.Insert(e), nil
}
