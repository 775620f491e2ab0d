package exec

import "sync"

// DeferredMaintenanceControl is the passive merge-policy bag shared between
// the caller and the execution layer. The execution layer only reads the
// limits, requests merges and increments the counters; interpreting the
// policy (and doing the actual merge work) belongs to the index storage
// engine, which is outside this core.
type DeferredMaintenanceControl struct {
	mu                   sync.Mutex
	mergeRequiredIndexes map[string]struct{}
	autoMergeOnCommit    bool
	mergesLimit          int64
	mergesFound          int64
	mergesTried          int64
	timeQuotaMillis      int64
	sizeQuotaBytes       int64
}

func NewDeferredMaintenanceControl() *DeferredMaintenanceControl {
	return &DeferredMaintenanceControl{autoMergeOnCommit: true}
}

// RequestMerge records that an index maintainer wants a deferred merge.
func (c *DeferredMaintenanceControl) RequestMerge(index string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mergeRequiredIndexes == nil {
		c.mergeRequiredIndexes = make(map[string]struct{})
	}
	c.mergeRequiredIndexes[index] = struct{}{}
}

// MergeRequiredIndexes returns and clears the set of indexes with a pending
// merge request.
func (c *DeferredMaintenanceControl) MergeRequiredIndexes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.mergeRequiredIndexes))
	for name := range c.mergeRequiredIndexes {
		out = append(out, name)
	}
	c.mergeRequiredIndexes = nil
	return out
}

// ShouldAutoMergeOnCommit reports whether maintenance runs merges as part
// of commit. Callers turning this off take over responsibility for merging
// the indexes returned by MergeRequiredIndexes.
func (c *DeferredMaintenanceControl) ShouldAutoMergeOnCommit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoMergeOnCommit
}

func (c *DeferredMaintenanceControl) SetAutoMergeOnCommit(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoMergeOnCommit = v
}

// MergesLimit bounds merge attempts per transaction; zero means unlimited.
func (c *DeferredMaintenanceControl) MergesLimit() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mergesLimit
}

func (c *DeferredMaintenanceControl) SetMergesLimit(v int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mergesLimit = v
}

func (c *DeferredMaintenanceControl) MergesFound() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mergesFound
}

func (c *DeferredMaintenanceControl) AddMergesFound(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mergesFound += n
}

func (c *DeferredMaintenanceControl) MergesTried() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mergesTried
}

func (c *DeferredMaintenanceControl) AddMergesTried(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mergesTried += n
}

// TimeQuotaMillis is the auto-commit time quota; zero means none.
func (c *DeferredMaintenanceControl) TimeQuotaMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeQuotaMillis
}

func (c *DeferredMaintenanceControl) SetTimeQuotaMillis(v int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeQuotaMillis = v
}

// SizeQuotaBytes is the auto-commit size quota; zero means none.
func (c *DeferredMaintenanceControl) SizeQuotaBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sizeQuotaBytes
}

func (c *DeferredMaintenanceControl) SetSizeQuotaBytes(v int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sizeQuotaBytes = v
}
