package opt

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/gogo/protobuf/sortkeys"
	"github.com/google/uuid"
)

// Alias is a process-unique opaque correlation identifier. An alias connects
// a value or predicate to the quantifier producing the data it reads; it
// carries no ownership.
type Alias string

// NewAlias mints a fresh process-unique alias.
func NewAlias() Alias {
	return Alias(uuid.NewString())
}

// MakeAlias builds an alias from a fixed name. Intended for tests and for
// stable well-known bindings; uniqueness is the caller's problem.
func MakeAlias(name string) Alias {
	return Alias(name)
}

// AliasSet is a set of aliases. The zero value is an empty set usable for
// reads; use make or the helpers before writing.
type AliasSet map[Alias]struct{}

func MakeAliasSet(aliases ...Alias) AliasSet {
	s := make(AliasSet, len(aliases))
	for _, a := range aliases {
		s[a] = struct{}{}
	}
	return s
}

func (s AliasSet) Contains(a Alias) bool {
	_, ok := s[a]
	return ok
}

func (s AliasSet) Add(a Alias) {
	s[a] = struct{}{}
}

func (s AliasSet) Remove(a Alias) {
	delete(s, a)
}

func (s AliasSet) UnionWith(o AliasSet) {
	for a := range o {
		s[a] = struct{}{}
	}
}

func (s AliasSet) Copy() AliasSet {
	c := make(AliasSet, len(s))
	c.UnionWith(s)
	return c
}

// Equal reports set equality.
func (s AliasSet) Equal(o AliasSet) bool {
	if len(s) != len(o) {
		return false
	}
	for a := range s {
		if !o.Contains(a) {
			return false
		}
	}
	return true
}

// Sorted returns the aliases in a canonical order, used when a set
// participates in a fingerprint.
func (s AliasSet) Sorted() []Alias {
	strs := make([]string, 0, len(s))
	for a := range s {
		strs = append(strs, string(a))
	}
	sortkeys.Strings(strs)
	out := make([]Alias, len(strs))
	for i, v := range strs {
		out[i] = Alias(v)
	}
	return out
}

func (s AliasSet) String() string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range s.Sorted() {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(string(a))
	}
	buf.WriteByte('}')
	return buf.String()
}

// AliasMap is a finite, invertible mapping from old aliases to new aliases.
// It is used transiently while rebasing a copied subtree and while aligning
// two differently-aliased expression trees during matching. Aliases absent
// from the map are treated as unchanged.
type AliasMap struct {
	fwd map[Alias]Alias
	rev map[Alias]Alias
}

// IdentityAliasMap returns the empty map, under which every alias maps to
// itself.
func IdentityAliasMap() *AliasMap {
	return &AliasMap{}
}

// MakeAliasMap builds an alias map from old→new pairs. The mapping must be
// invertible: duplicate sources or duplicate targets are rejected.
func MakeAliasMap(pairs map[Alias]Alias) (*AliasMap, error) {
	m := &AliasMap{
		fwd: make(map[Alias]Alias, len(pairs)),
		rev: make(map[Alias]Alias, len(pairs)),
	}
	for from, to := range pairs {
		if _, dup := m.rev[to]; dup {
			return nil, errors.Newf("alias map is not invertible: duplicate target %s", to)
		}
		m.fwd[from] = to
		m.rev[to] = from
	}
	return m, nil
}

// Target maps an alias forward; aliases outside the map are identity.
func (m *AliasMap) Target(a Alias) Alias {
	if m == nil || m.fwd == nil {
		return a
	}
	if to, ok := m.fwd[a]; ok {
		return to
	}
	return a
}

// Source maps an alias backward; aliases outside the map are identity.
func (m *AliasMap) Source(a Alias) Alias {
	if m == nil || m.rev == nil {
		return a
	}
	if from, ok := m.rev[a]; ok {
		return from
	}
	return a
}

// Inverse returns the reversed mapping.
func (m *AliasMap) Inverse() *AliasMap {
	if m == nil {
		return IdentityAliasMap()
	}
	inv := &AliasMap{
		fwd: make(map[Alias]Alias, len(m.rev)),
		rev: make(map[Alias]Alias, len(m.fwd)),
	}
	for from, to := range m.fwd {
		inv.fwd[to] = from
		inv.rev[from] = to
	}
	return inv
}

// Len returns the number of explicit pairs.
func (m *AliasMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.fwd)
}
