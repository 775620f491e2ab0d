package exec

import (
	"github.com/cockroachdb/errors"
	"github.com/golang/glog"

	"github.com/touba73/fdb-record-layer/cat"
	"github.com/touba73/fdb-record-layer/kv"
	"github.com/touba73/fdb-record-layer/plan"
)

// Row is one record's column values by column name. Missing columns read as
// null datums.
type Row map[string]plan.Datum

// Clone returns a copy sharing no map structure with the original.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IndexMaintainer keeps one secondary index in sync with record writes and
// serves range scans over its entries. Entry keys are datum tuples in the
// index's physical key column order.
type IndexMaintainer interface {
	Index() *cat.Index

	WriteEntry(row Row) error
	DeleteEntry(row Row) error

	// ScanEntries visits entries within r (interpreted over the index key
	// order) until f returns false. key holds the decoded key columns; val is
	// the entry value (the aggregate for aggregate indexes, null otherwise).
	ScanEntries(r *plan.ScanRange, reverse bool, f func(key []plan.Datum, val plan.Datum) bool) error
}

// groupScanner re-reads the base records belonging to one index group. The
// aggregate maintainer uses it to recompute max/min after a delete.
type groupScanner func(group []plan.Datum, f func(Row) bool) error

// aggregateMaintainer maintains a grouped aggregate index: one entry per
// distinct grouping key holding the current aggregate value. Sum is
// maintained incrementally in both directions; max and min are maintained
// incrementally on write and recomputed from the base records on delete.
type aggregateMaintainer struct {
	store    kv.Store
	idx      *cat.Index
	kind     cat.AggregateKind
	aggCol   string
	rescan   groupScanner
	deferred *DeferredMaintenanceControl
}

func newAggregateMaintainer(
	store kv.Store, idx *cat.Index, rescan groupScanner, deferred *DeferredMaintenanceControl,
) *aggregateMaintainer {
	return &aggregateMaintainer{
		store:    store,
		idx:      idx,
		kind:     idx.AggregateKind(),
		aggCol:   idx.AggregateColumn(),
		rescan:   rescan,
		deferred: deferred,
	}
}

func (m *aggregateMaintainer) Index() *cat.Index {
	return m.idx
}

func indexPrefix(name string) []byte {
	b := append([]byte{'i', 0x00}, name...)
	return append(b, 0x00)
}

func (m *aggregateMaintainer) groupKey(row Row) ([]byte, []plan.Datum) {
	group := make([]plan.Datum, len(m.idx.KeyColumns))
	for i, col := range m.idx.KeyColumns {
		group[i] = row[col]
	}
	return kv.EncodeTuple(indexPrefix(m.idx.Name), group), group
}

func (m *aggregateMaintainer) WriteEntry(row Row) error {
	key, _ := m.groupKey(row)
	v := row[m.aggCol]
	cur, ok, err := m.store.Get(key)
	if err != nil {
		return err
	}
	if !ok {
		return m.store.Set(key, kv.EncodeTuple(nil, []plan.Datum{v}))
	}
	old, err := decodeAggValue(cur)
	if err != nil {
		return errors.Wrapf(err, "index %s", m.idx.Name)
	}
	next, err := combine(m.kind, old, v)
	if err != nil {
		return errors.Wrapf(err, "index %s", m.idx.Name)
	}
	// Updating an existing entry grows its mutation history; ask for a
	// deferred merge so the storage engine can compact it.
	m.deferred.RequestMerge(m.idx.Name)
	return m.store.Set(key, kv.EncodeTuple(nil, []plan.Datum{next}))
}

func (m *aggregateMaintainer) DeleteEntry(row Row) error {
	key, group := m.groupKey(row)
	cur, ok, err := m.store.Get(key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if m.kind == cat.AggregateSum {
		old, err := decodeAggValue(cur)
		if err != nil {
			return errors.Wrapf(err, "index %s", m.idx.Name)
		}
		v := row[m.aggCol]
		if old.Int == nil || v.Int == nil {
			return errors.Newf("index %s: sum over non-int values", m.idx.Name)
		}
		next := plan.IntDatum(*old.Int - *v.Int)
		m.deferred.RequestMerge(m.idx.Name)
		return m.store.Set(key, kv.EncodeTuple(nil, []plan.Datum{next}))
	}

	// Max/min: the deleted row may have carried the extremum, so recompute
	// from the surviving base records.
	var best plan.Datum
	found := false
	err = m.rescan(group, func(r Row) bool {
		v := r[m.aggCol]
		if !found {
			best, found = v, true
			return true
		}
		c := v.Compare(best)
		if (m.kind == cat.AggregateMax && c > 0) || (m.kind == cat.AggregateMin && c < 0) {
			best = v
		}
		return true
	})
	if err != nil {
		return err
	}
	if !found {
		return m.store.Delete(key)
	}
	m.deferred.RequestMerge(m.idx.Name)
	return m.store.Set(key, kv.EncodeTuple(nil, []plan.Datum{best}))
}

func (m *aggregateMaintainer) ScanEntries(
	r *plan.ScanRange, reverse bool, f func(key []plan.Datum, val plan.Datum) bool,
) error {
	return scanIndexEntries(m.store, m.idx.Name, r, reverse, f)
}

func combine(kind cat.AggregateKind, old, v plan.Datum) (plan.Datum, error) {
	switch kind {
	case cat.AggregateMax:
		if v.Compare(old) > 0 {
			return v, nil
		}
		return old, nil
	case cat.AggregateMin:
		if v.Compare(old) < 0 {
			return v, nil
		}
		return old, nil
	case cat.AggregateSum:
		if old.Int == nil || v.Int == nil {
			return plan.Datum{}, errors.Newf("sum over non-int values")
		}
		return plan.IntDatum(*old.Int + *v.Int), nil
	}
	return plan.Datum{}, errors.Newf("unknown aggregate kind %q", kind)
}

func decodeAggValue(b []byte) (plan.Datum, error) {
	datums, err := kv.DecodeTuple(b)
	if err != nil {
		return plan.Datum{}, err
	}
	if len(datums) != 1 {
		return plan.Datum{}, errors.Newf("aggregate entry holds %d datums", len(datums))
	}
	return datums[0], nil
}

// valueMaintainer maintains a plain value index: one entry per record, keyed
// by the indexed columns followed by the primary key, with an empty value.
type valueMaintainer struct {
	store kv.Store
	idx   *cat.Index
	pk    []string
}

func newValueMaintainer(store kv.Store, idx *cat.Index, rt *cat.RecordType) *valueMaintainer {
	return &valueMaintainer{store: store, idx: idx, pk: rt.PrimaryKey}
}

func (m *valueMaintainer) Index() *cat.Index {
	return m.idx
}

func (m *valueMaintainer) entryKey(row Row) []byte {
	datums := make([]plan.Datum, 0, len(m.idx.KeyColumns)+len(m.pk))
	for _, col := range m.idx.KeyColumns {
		datums = append(datums, row[col])
	}
	for _, col := range m.pk {
		datums = append(datums, row[col])
	}
	return kv.EncodeTuple(indexPrefix(m.idx.Name), datums)
}

func (m *valueMaintainer) WriteEntry(row Row) error {
	return m.store.Set(m.entryKey(row), nil)
}

func (m *valueMaintainer) DeleteEntry(row Row) error {
	return m.store.Delete(m.entryKey(row))
}

func (m *valueMaintainer) ScanEntries(
	r *plan.ScanRange, reverse bool, f func(key []plan.Datum, val plan.Datum) bool,
) error {
	return scanIndexEntries(m.store, m.idx.Name, r, reverse, f)
}

// scanIndexEntries walks the kv range selected by r under the index's key
// prefix. The equality prefix narrows the byte range directly; Low/High apply
// to the decoded datum at the first position past the prefix.
func scanIndexEntries(
	store kv.Store, index string, r *plan.ScanRange, reverse bool,
	f func(key []plan.Datum, val plan.Datum) bool,
) error {
	prefix := indexPrefix(index)
	start := prefix
	if r != nil && len(r.Prefix) > 0 {
		start = kv.EncodeTuple(prefix, r.Prefix)
	}
	end := kv.PrefixEnd(start)

	var scanErr error
	err := store.Scan(start, end, reverse, func(key, val []byte) bool {
		datums, err := kv.DecodeTuple(key[len(prefix):])
		if err != nil {
			scanErr = errors.Wrapf(err, "index %s", index)
			return false
		}
		if r != nil && (r.Low != nil || r.High != nil) {
			pos := len(r.Prefix)
			if pos >= len(datums) {
				scanErr = errors.Newf("index %s: entry shorter than scan bound position", index)
				return false
			}
			d := datums[pos]
			if r.Low != nil {
				c := d.Compare(r.Low.Datum)
				if c < 0 || (c == 0 && !r.Low.Inclusive) {
					return true
				}
			}
			if r.High != nil {
				c := d.Compare(r.High.Datum)
				if c > 0 || (c == 0 && !r.High.Inclusive) {
					return true
				}
			}
		}
		var v plan.Datum
		if len(val) > 0 {
			v, err = decodeAggValue(val)
			if err != nil {
				scanErr = errors.Wrapf(err, "index %s", index)
				return false
			}
		}
		return f(datums, v)
	})
	if err != nil {
		return err
	}
	if scanErr != nil {
		glog.Errorf("index scan %s failed: %v", index, scanErr)
	}
	return scanErr
}
