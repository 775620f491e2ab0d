// Package kv abstracts the ordered key-value transaction store the record
// layer sits on. The planner never touches it; the execution layer consumes
// it through the Store interface only. MemStore is an in-memory
// implementation used by tests and local execution.
package kv

import (
	"bytes"

	"github.com/google/btree"
)

// Store is an ordered byte-keyed store. Scan visits keys in [start, end) in
// key order (reversed when reverse is set) until the callback returns false.
type Store interface {
	Set(key, val []byte) error
	Get(key []byte) (val []byte, ok bool, err error)
	Delete(key []byte) error
	Scan(start, end []byte, reverse bool, f func(key, val []byte) bool) error
}

// PrefixEnd returns the key immediately after all keys having the given
// prefix, or nil if the prefix is all 0xff.
func PrefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] != 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

type item struct {
	key, val []byte
}

func (i item) Less(o btree.Item) bool {
	return bytes.Compare(i.key, o.(item).key) < 0
}

// MemStore is a btree-backed Store. Not safe for concurrent use; callers
// wanting transactional semantics wrap it themselves.
type MemStore struct {
	tr *btree.BTree
}

func NewMemStore() *MemStore {
	return &MemStore{tr: btree.New(32)}
}

func (s *MemStore) Set(key, val []byte) error {
	s.tr.ReplaceOrInsert(item{
		key: append([]byte(nil), key...),
		val: append([]byte(nil), val...),
	})
	return nil
}

func (s *MemStore) Get(key []byte) ([]byte, bool, error) {
	it := s.tr.Get(item{key: key})
	if it == nil {
		return nil, false, nil
	}
	return it.(item).val, true, nil
}

func (s *MemStore) Delete(key []byte) error {
	s.tr.Delete(item{key: key})
	return nil
}

func (s *MemStore) Scan(start, end []byte, reverse bool, f func(key, val []byte) bool) error {
	var collected []item
	s.tr.AscendGreaterOrEqual(item{key: start}, func(it btree.Item) bool {
		kv := it.(item)
		if end != nil && bytes.Compare(kv.key, end) >= 0 {
			return false
		}
		collected = append(collected, kv)
		return true
	})
	if reverse {
		for i := len(collected) - 1; i >= 0; i-- {
			if !f(collected[i].key, collected[i].val) {
				return nil
			}
		}
		return nil
	}
	for _, kv := range collected {
		if !f(kv.key, kv.val) {
			return nil
		}
	}
	return nil
}

// Len returns the number of live keys.
func (s *MemStore) Len() int {
	return s.tr.Len()
}
