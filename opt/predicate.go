package opt

import (
	"bytes"
	"fmt"

	"github.com/touba73/fdb-record-layer/plan"
)

// Predicate is a boolean-valued expression over values. Immutable.
type Predicate struct {
	op       Operator
	cmp      plan.Cmp // ComparisonOp
	left     *Value   // ComparisonOp
	right    *Value   // ComparisonOp
	children []*Predicate
	exists   Alias // ExistsOp: the existential quantifier probed
}

// Compare builds a comparison predicate over two values.
func Compare(left *Value, cmp plan.Cmp, right *Value) *Predicate {
	return &Predicate{op: ComparisonOp, cmp: cmp, left: left, right: right}
}

// And conjoins predicates. A single conjunct is returned unchanged.
func And(preds ...*Predicate) *Predicate {
	if len(preds) == 1 {
		return preds[0]
	}
	return &Predicate{op: AndOp, children: preds}
}

// Or disjoins predicates. A single disjunct is returned unchanged.
func Or(preds ...*Predicate) *Predicate {
	if len(preds) == 1 {
		return preds[0]
	}
	return &Predicate{op: OrOp, children: preds}
}

// Not negates a predicate.
func Not(p *Predicate) *Predicate {
	return &Predicate{op: NotOp, children: []*Predicate{p}}
}

// Exists probes whether the existential quantifier bound to the given alias
// produced at least one row.
func Exists(alias Alias) *Predicate {
	return &Predicate{op: ExistsOp, exists: alias}
}

func (p *Predicate) Op() Operator {
	return p.op
}

// Comparison returns the parts of a comparison predicate.
func (p *Predicate) Comparison() (left *Value, cmp plan.Cmp, right *Value) {
	return p.left, p.cmp, p.right
}

// Children returns the sub-predicates of a boolean combinator.
func (p *Predicate) Children() []*Predicate {
	return p.children
}

// ExistsAlias returns the probed alias of an existential check.
func (p *Predicate) ExistsAlias() Alias {
	return p.exists
}

// Conjuncts flattens a conjunction into its leaves. A non-and predicate is
// its own single conjunct.
func (p *Predicate) Conjuncts() []*Predicate {
	if p.op != AndOp {
		return []*Predicate{p}
	}
	var out []*Predicate
	for _, c := range p.children {
		out = append(out, c.Conjuncts()...)
	}
	return out
}

// FreeAliases accumulates the aliases this predicate reads into the set.
func (p *Predicate) FreeAliases(into AliasSet) {
	switch p.op {
	case ComparisonOp:
		p.left.FreeAliases(into)
		p.right.FreeAliases(into)
	case ExistsOp:
		into.Add(p.exists)
	default:
		for _, c := range p.children {
			c.FreeAliases(into)
		}
	}
}

// Fingerprint renders the canonical structural form.
func (p *Predicate) Fingerprint() string {
	var buf bytes.Buffer
	p.fingerprint(&buf)
	return buf.String()
}

func (p *Predicate) fingerprint(buf *bytes.Buffer) {
	switch p.op {
	case ComparisonOp:
		buf.WriteByte('(')
		p.left.fingerprint(buf)
		fmt.Fprintf(buf, " %s ", p.cmp)
		p.right.fingerprint(buf)
		buf.WriteByte(')')
	case ExistsOp:
		fmt.Fprintf(buf, "exists(%s)", p.exists)
	default:
		buf.WriteString(p.op.String())
		buf.WriteByte('[')
		for i, c := range p.children {
			if i > 0 {
				buf.WriteByte(' ')
			}
			c.fingerprint(buf)
		}
		buf.WriteByte(']')
	}
}

// Equal reports structural equality.
func (p *Predicate) Equal(o *Predicate) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.Fingerprint() == o.Fingerprint()
}

func (p *Predicate) String() string {
	return p.Fingerprint()
}
