package opt

import (
	"bytes"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/touba73/fdb-record-layer/plan"
)

// Value is an expression computing a scalar or structured result from the
// rows flowing through a quantifier. Values are immutable once constructed;
// every composing constructor applies fuse simplification so that later
// structural matching sees canonical forms.
type Value struct {
	op       Operator
	typ      ResultType
	children []*Value

	alias   Alias      // QuantifiedOp: the producing quantifier
	name    string     // FieldOp: field name; FunctionOp/AggregateOp: function name
	ordinal int        // FieldOp: resolved field ordinal
	datum   plan.Datum // LiteralOp
}

// Literal constructs a constant value.
func Literal(typ ResultType, d plan.Datum) *Value {
	return &Value{op: LiteralOp, typ: typ, datum: d}
}

// IntLiteral is shorthand for an int constant.
func IntLiteral(v int64) *Value {
	return Literal(ScalarType(IntType), plan.IntDatum(v))
}

// QuantifiedRecord references the current record flowing through the
// quantifier bound to the given alias.
func QuantifiedRecord(alias Alias, typ ResultType) *Value {
	return &Value{op: QuantifiedOp, typ: typ, alias: alias}
}

// OfFieldName accesses a field of a record-shaped value by name. A field
// access immediately following a record construction of that same field is
// fused into the constructed child.
func OfFieldName(base *Value, name string) (*Value, error) {
	f, ord, ok := base.typ.Field(name)
	if !ok {
		return nil, errors.Newf("no field %q in %s", name, base.typ)
	}
	if fused := fuseFieldAccess(base, ord); fused != nil {
		return fused, nil
	}
	return &Value{op: FieldOp, typ: f.Type, children: []*Value{base}, name: name, ordinal: ord}, nil
}

// OfOrdinalNumber accesses a field of a record-shaped value by ordinal,
// with the same fuse simplification as OfFieldName.
func OfOrdinalNumber(base *Value, ord int) (*Value, error) {
	f, ok := base.typ.FieldByOrdinal(ord)
	if !ok {
		return nil, errors.Newf("no ordinal %d in %s", ord, base.typ)
	}
	if fused := fuseFieldAccess(base, ord); fused != nil {
		return fused, nil
	}
	return &Value{op: FieldOp, typ: f.Type, children: []*Value{base}, name: f.Name, ordinal: ord}, nil
}

// fuseFieldAccess collapses (record-ctor ... f_i ...).i into f_i.
func fuseFieldAccess(base *Value, ord int) *Value {
	if base.op == RecordCtorOp && ord >= 0 && ord < len(base.children) {
		return base.children[ord]
	}
	return nil
}

// RecordCtor constructs a record value from named children. The i'th child
// computes the i'th field.
func RecordCtor(fields []ResultField, children []*Value) (*Value, error) {
	if len(fields) != len(children) {
		return nil, errors.Newf("record-ctor arity mismatch: %d fields, %d children", len(fields), len(children))
	}
	for i := range fields {
		if !fields[i].Type.Equal(children[i].typ) {
			return nil, errors.Newf("record-ctor field %q: declared %s, child computes %s",
				fields[i].Name, fields[i].Type, children[i].typ)
		}
	}
	return &Value{op: RecordCtorOp, typ: MakeRecordType(fields...), children: children}, nil
}

// Function applies a named scalar function to its arguments.
func Function(name string, typ ResultType, args ...*Value) *Value {
	return &Value{op: FunctionOp, typ: typ, children: args, name: name}
}

// Aggregate applies a named aggregate function (max, min, sum) to a value
// computed per row of the grouped input.
func Aggregate(name string, arg *Value) *Value {
	return &Value{op: AggregateOp, typ: arg.typ, children: []*Value{arg}, name: name}
}

// Op returns the variant tag.
func (v *Value) Op() Operator {
	return v.op
}

// Type returns the static shape of the value's result.
func (v *Value) Type() ResultType {
	return v.typ
}

// Child returns the nth child value.
func (v *Value) Child(nth int) *Value {
	return v.children[nth]
}

// ChildCount returns the number of child values.
func (v *Value) ChildCount() int {
	return len(v.children)
}

// Name returns the field or function name, when meaningful for the variant.
func (v *Value) Name() string {
	return v.name
}

// Ordinal returns the resolved field ordinal of a field access.
func (v *Value) Ordinal() int {
	return v.ordinal
}

// Datum returns the constant of a literal.
func (v *Value) Datum() plan.Datum {
	return v.datum
}

// ProducerAlias returns the alias of a quantified reference.
func (v *Value) ProducerAlias() Alias {
	return v.alias
}

// FreeAliases accumulates the aliases this value reads into the given set.
func (v *Value) FreeAliases(into AliasSet) {
	if v.op == QuantifiedOp {
		into.Add(v.alias)
	}
	for _, c := range v.children {
		c.FreeAliases(into)
	}
}

// Fingerprint renders the canonical structural form used for deduplication
// and equality. Two values with equal fingerprints are structurally equal.
func (v *Value) Fingerprint() string {
	var buf bytes.Buffer
	v.fingerprint(&buf)
	return buf.String()
}

func (v *Value) fingerprint(buf *bytes.Buffer) {
	buf.WriteString(v.op.String())
	switch v.op {
	case LiteralOp:
		fmt.Fprintf(buf, " %s", v.datum)
	case QuantifiedOp:
		fmt.Fprintf(buf, " %s", v.alias)
	case FieldOp:
		fmt.Fprintf(buf, " #%d(%s)", v.ordinal, v.name)
	case FunctionOp, AggregateOp:
		fmt.Fprintf(buf, " %s", v.name)
	case RecordCtorOp:
		fmt.Fprintf(buf, " %s", v.typ)
	}
	if len(v.children) > 0 {
		buf.WriteByte('[')
		for i, c := range v.children {
			if i > 0 {
				buf.WriteByte(' ')
			}
			c.fingerprint(buf)
		}
		buf.WriteByte(']')
	}
}

// Equal reports structural equality.
func (v *Value) Equal(o *Value) bool {
	if v == nil || o == nil {
		return v == o
	}
	return v.Fingerprint() == o.Fingerprint()
}

func (v *Value) String() string {
	return v.Fingerprint()
}
