package plan

import "fmt"

// Datum is a single scalar value flowing through a plan or embedded in a
// serialized plan payload. Exactly one field is set. The struct form (rather
// than interface{}) keeps the wire encoding unambiguous: JSON round-trips
// int64 exactly instead of widening it to float64.
type Datum struct {
	Int  *int64  `json:"int,omitempty"`
	Str  *string `json:"str,omitempty"`
	Bool *bool   `json:"bool,omitempty"`
}

func IntDatum(v int64) Datum {
	return Datum{Int: &v}
}

func StrDatum(v string) Datum {
	return Datum{Str: &v}
}

func BoolDatum(v bool) Datum {
	return Datum{Bool: &v}
}

// IsNull reports whether no field of the datum is set.
func (d Datum) IsNull() bool {
	return d.Int == nil && d.Str == nil && d.Bool == nil
}

// Equal reports value equality.
func (d Datum) Equal(o Datum) bool {
	return d.Compare(o) == 0
}

// Compare returns -1, 0 or +1. Datums of different kinds order as
// null < bool < int < string, matching the tuple key encoding.
func (d Datum) Compare(o Datum) int {
	dk, ok := d.kind(), o.kind()
	if dk != ok {
		if dk < ok {
			return -1
		}
		return 1
	}
	switch dk {
	case 0: // null
		return 0
	case 1: // bool
		db, ob := *d.Bool, *o.Bool
		if db == ob {
			return 0
		}
		if !db {
			return -1
		}
		return 1
	case 2: // int
		di, oi := *d.Int, *o.Int
		switch {
		case di < oi:
			return -1
		case di > oi:
			return 1
		}
		return 0
	default: // string
		ds, os := *d.Str, *o.Str
		switch {
		case ds < os:
			return -1
		case ds > os:
			return 1
		}
		return 0
	}
}

func (d Datum) kind() int {
	switch {
	case d.Bool != nil:
		return 1
	case d.Int != nil:
		return 2
	case d.Str != nil:
		return 3
	}
	return 0
}

func (d Datum) String() string {
	switch {
	case d.Int != nil:
		return fmt.Sprintf("%d", *d.Int)
	case d.Str != nil:
		return fmt.Sprintf("%q", *d.Str)
	case d.Bool != nil:
		return fmt.Sprintf("%t", *d.Bool)
	}
	return "NULL"
}
