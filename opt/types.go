package opt

import (
	"bytes"
	"fmt"

	"github.com/touba73/fdb-record-layer/cat"
)

// TypeKind classifies a ResultType.
type TypeKind uint8

const (
	AnyType TypeKind = iota
	IntType
	StringType
	BoolType
	RecordType
)

// ResultType is the static shape of the result a value or expression
// computes. Record types carry ordered, named fields; field ordinals are
// their positions.
type ResultType struct {
	Kind   TypeKind
	Fields []ResultField
}

// ResultField is one field of a record-shaped result.
type ResultField struct {
	Name string
	Type ResultType
}

func ScalarType(k TypeKind) ResultType {
	return ResultType{Kind: k}
}

func MakeRecordType(fields ...ResultField) ResultType {
	return ResultType{Kind: RecordType, Fields: fields}
}

// RecordTypeFor derives the planner's record result type from a catalog
// record type.
func RecordTypeFor(t *cat.RecordType) ResultType {
	fields := make([]ResultField, len(t.Columns))
	for i, c := range t.Columns {
		fields[i] = ResultField{Name: c.Name, Type: ScalarType(kindForColumn(c.Type))}
	}
	return MakeRecordType(fields...)
}

func kindForColumn(t cat.ColumnType) TypeKind {
	switch t {
	case cat.Int:
		return IntType
	case cat.String:
		return StringType
	case cat.Bool:
		return BoolType
	}
	return AnyType
}

// Field returns the named field and its ordinal.
func (t ResultType) Field(name string) (ResultField, int, bool) {
	for i, f := range t.Fields {
		if f.Name == name {
			return f, i, true
		}
	}
	return ResultField{}, -1, false
}

// FieldByOrdinal returns the field at the given ordinal.
func (t ResultType) FieldByOrdinal(ord int) (ResultField, bool) {
	if ord < 0 || ord >= len(t.Fields) {
		return ResultField{}, false
	}
	return t.Fields[ord], true
}

// Equal reports structural type equality.
func (t ResultType) Equal(o ResultType) bool {
	if t.Kind != o.Kind || len(t.Fields) != len(o.Fields) {
		return false
	}
	for i := range t.Fields {
		if t.Fields[i].Name != o.Fields[i].Name || !t.Fields[i].Type.Equal(o.Fields[i].Type) {
			return false
		}
	}
	return true
}

// Fingerprint renders a canonical string form of the type, used in group
// keys and expression fingerprints.
func (t ResultType) Fingerprint() string {
	var buf bytes.Buffer
	t.fingerprint(&buf)
	return buf.String()
}

func (t ResultType) fingerprint(buf *bytes.Buffer) {
	switch t.Kind {
	case AnyType:
		buf.WriteString("any")
	case IntType:
		buf.WriteString("int")
	case StringType:
		buf.WriteString("string")
	case BoolType:
		buf.WriteString("bool")
	case RecordType:
		buf.WriteString("record(")
		for i, f := range t.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			fmt.Fprintf(buf, "%s:", f.Name)
			f.Type.fingerprint(buf)
		}
		buf.WriteByte(')')
	}
}

func (t ResultType) String() string {
	return t.Fingerprint()
}
