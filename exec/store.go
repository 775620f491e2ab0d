package exec

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/golang/glog"

	"github.com/touba73/fdb-record-layer/cat"
	"github.com/touba73/fdb-record-layer/kv"
	"github.com/touba73/fdb-record-layer/plan"
)

// RecordStore stores typed records in an ordered kv store and keeps their
// secondary indexes in sync. Records live under a per-type key prefix, keyed
// by primary key tuple, with JSON row values. Not safe for concurrent use.
type RecordStore struct {
	store    kv.Store
	catalog  *cat.Catalog
	deferred *DeferredMaintenanceControl

	// maintainers by record type name, in index registration order.
	maintainers map[string][]IndexMaintainer
	byIndex     map[string]IndexMaintainer
}

func NewRecordStore(store kv.Store, catalog *cat.Catalog) *RecordStore {
	return &RecordStore{
		store:       store,
		catalog:     catalog,
		deferred:    NewDeferredMaintenanceControl(),
		maintainers: make(map[string][]IndexMaintainer),
		byIndex:     make(map[string]IndexMaintainer),
	}
}

// Deferred exposes the store's merge-policy control for callers that want to
// adjust limits or take over merging.
func (rs *RecordStore) Deferred() *DeferredMaintenanceControl {
	return rs.deferred
}

func recordPrefix(table string) []byte {
	b := append([]byte{'r', 0x00}, table...)
	return append(b, 0x00)
}

func (rs *RecordStore) maintainersFor(table string) ([]IndexMaintainer, error) {
	if ms, ok := rs.maintainers[table]; ok {
		return ms, nil
	}
	rt, ok := rs.catalog.Type(table)
	if !ok {
		return nil, errors.Newf("unknown record type %q", table)
	}
	var ms []IndexMaintainer
	for _, idx := range rs.catalog.Indexes(table) {
		var m IndexMaintainer
		if idx.AggregateKind() != cat.NoAggregate {
			keyCols := idx.KeyColumns
			rescan := func(group []plan.Datum, f func(Row) bool) error {
				return rs.ScanTable(table, func(row Row) bool {
					for i, col := range keyCols {
						if !row[col].Equal(group[i]) {
							return true
						}
					}
					return f(row)
				})
			}
			m = newAggregateMaintainer(rs.store, idx, rescan, rs.deferred)
		} else {
			m = newValueMaintainer(rs.store, idx, rt)
		}
		ms = append(ms, m)
		rs.byIndex[idx.Name] = m
	}
	rs.maintainers[table] = ms
	return ms, nil
}

// Maintainer returns the maintainer for the named index, if its record type
// has been touched or is registered in the catalog.
func (rs *RecordStore) Maintainer(index string) (IndexMaintainer, error) {
	if m, ok := rs.byIndex[index]; ok {
		return m, nil
	}
	// Lazily build maintainers for whichever type declares the index.
	for _, table := range rs.catalog.TypeNames() {
		if _, err := rs.maintainersFor(table); err != nil {
			return nil, err
		}
		if m, ok := rs.byIndex[index]; ok {
			return m, nil
		}
	}
	return nil, errors.Newf("unknown index %q", index)
}

// typeForIndex returns the record type declaring the named index.
func (rs *RecordStore) typeForIndex(index string) (string, *cat.RecordType, error) {
	for _, table := range rs.catalog.TypeNames() {
		for _, idx := range rs.catalog.Indexes(table) {
			if idx.Name == index {
				rt, _ := rs.catalog.Type(table)
				return table, rt, nil
			}
		}
	}
	return "", nil, errors.Newf("unknown index %q", index)
}

// fetch loads one record by its primary key columns.
func (rs *RecordStore) fetch(table string, rt *cat.RecordType, pkRow Row) (Row, bool, error) {
	key, err := rs.recordKey(rt, pkRow)
	if err != nil {
		return nil, false, err
	}
	val, ok, err := rs.store.Get(key)
	if err != nil || !ok {
		return nil, false, err
	}
	row, err := decodeRow(val)
	if err != nil {
		return nil, false, errors.Wrapf(err, "record type %q", table)
	}
	return row, true, nil
}

func (rs *RecordStore) recordKey(rt *cat.RecordType, row Row) ([]byte, error) {
	pk := make([]plan.Datum, len(rt.PrimaryKey))
	for i, col := range rt.PrimaryKey {
		d := row[col]
		if d.IsNull() {
			return nil, errors.Newf("record type %q: null primary key column %q", rt.Name, col)
		}
		pk[i] = d
	}
	return kv.EncodeTuple(recordPrefix(rt.Name), pk), nil
}

// Insert writes a record and updates every index over its type. A record
// with the same primary key is replaced, with its old index entries removed
// first.
func (rs *RecordStore) Insert(table string, row Row) error {
	rt, ok := rs.catalog.Type(table)
	if !ok {
		return errors.Newf("unknown record type %q", table)
	}
	key, err := rs.recordKey(rt, row)
	if err != nil {
		return err
	}
	ms, err := rs.maintainersFor(table)
	if err != nil {
		return err
	}

	if old, ok, err := rs.store.Get(key); err != nil {
		return err
	} else if ok {
		oldRow, err := decodeRow(old)
		if err != nil {
			return errors.Wrapf(err, "record type %q", table)
		}
		if err := rs.Delete(table, oldRow); err != nil {
			return err
		}
	}

	val, err := json.Marshal(row)
	if err != nil {
		return err
	}
	if err := rs.store.Set(key, val); err != nil {
		return err
	}
	for _, m := range ms {
		if err := m.WriteEntry(row); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a record (looked up by its primary key columns in row) and
// its index entries. Deleting an absent record is a no-op.
func (rs *RecordStore) Delete(table string, row Row) error {
	rt, ok := rs.catalog.Type(table)
	if !ok {
		return errors.Newf("unknown record type %q", table)
	}
	key, err := rs.recordKey(rt, row)
	if err != nil {
		return err
	}
	stored, ok, err := rs.store.Get(key)
	if err != nil || !ok {
		return err
	}
	full, err := decodeRow(stored)
	if err != nil {
		return errors.Wrapf(err, "record type %q", table)
	}
	if err := rs.store.Delete(key); err != nil {
		return err
	}
	ms, err := rs.maintainersFor(table)
	if err != nil {
		return err
	}
	for _, m := range ms {
		if err := m.DeleteEntry(full); err != nil {
			return err
		}
	}
	return nil
}

// ScanTable visits every record of the type in primary key order until f
// returns false.
func (rs *RecordStore) ScanTable(table string, f func(Row) bool) error {
	prefix := recordPrefix(table)
	var scanErr error
	err := rs.store.Scan(prefix, kv.PrefixEnd(prefix), false, func(key, val []byte) bool {
		row, err := decodeRow(val)
		if err != nil {
			scanErr = errors.Wrapf(err, "record type %q", table)
			return false
		}
		return f(row)
	})
	if err != nil {
		return err
	}
	return scanErr
}

// Commit runs end-of-transaction maintenance: if auto-merge is enabled, it
// accounts for the pending merge requests against the configured limit. The
// merge work itself is the storage engine's; here we only keep the policy
// counters honest.
func (rs *RecordStore) Commit() error {
	if !rs.deferred.ShouldAutoMergeOnCommit() {
		return nil
	}
	pending := rs.deferred.MergeRequiredIndexes()
	if len(pending) == 0 {
		return nil
	}
	rs.deferred.AddMergesFound(int64(len(pending)))
	limit := rs.deferred.MergesLimit()
	for _, name := range pending {
		if limit > 0 && rs.deferred.MergesTried() >= limit {
			// Re-queue what we did not get to; the next commit picks it up.
			rs.deferred.RequestMerge(name)
			continue
		}
		rs.deferred.AddMergesTried(1)
		glog.V(2).Infof("merged index %s on commit", name)
	}
	return nil
}

func decodeRow(b []byte) (Row, error) {
	var row Row
	if err := json.Unmarshal(b, &row); err != nil {
		return nil, err
	}
	return row, nil
}
