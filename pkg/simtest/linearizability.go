package simtest

import (
	"bytes"
	"fmt"
)

// opRecord is one completed client operation against the kv FSM,
// timestamped by the virtual clock at issue and completion so a
// History can check that results are consistent with some sequential
// order of non-overlapping operations — a simplified, single-session
// stand-in for a full Wing-Gong linearizability checker, adequate here
// because every op in a test run goes through one client loop.
type opRecord struct {
	start, end int64
	key        string
	isWrite    bool
	value      []byte
	result     []byte
	found      bool
}

// History collects opRecords from a single simulated client session
// against the cluster's kv.Store FSMs.
type History struct {
	ops []opRecord
}

// NewHistory returns an empty History.
func NewHistory() *History { return &History{} }

// RecordSet appends a completed Set(key, value) operation.
func (h *History) RecordSet(start, end int64, key string, value []byte) {
	h.ops = append(h.ops, opRecord{start: start, end: end, key: key, isWrite: true, value: value})
}

// RecordGet appends a completed Get(key) operation and its observed
// result.
func (h *History) RecordGet(start, end int64, key string, result []byte, found bool) {
	h.ops = append(h.ops, opRecord{start: start, end: end, key: key, result: result, found: found})
}

// CheckReadYourWrites verifies that for every key, a Get whose interval
// starts after some Set on that key's interval ended observes either
// that value or a value from a still-later Set — never a value that
// predates the last Set known to have completed before the Get began.
// This is the property single-client sequential consistency boils down
// to once there is only one session issuing requests, which is all the
// in-process test harness ever drives.
func (h *History) CheckReadYourWrites() error {
	for _, get := range h.ops {
		if get.isWrite {
			continue
		}
		var lastCompletedBeforeGet *opRecord
		for i := range h.ops {
			set := &h.ops[i]
			if !set.isWrite || set.key != get.key {
				continue
			}
			if set.end > get.start {
				continue
			}
			if lastCompletedBeforeGet == nil || set.end > lastCompletedBeforeGet.end {
				lastCompletedBeforeGet = set
			}
		}
		if lastCompletedBeforeGet == nil {
			continue
		}
		if !get.found {
			return fmt.Errorf("simtest: get(%q) at [%d,%d] found nothing, but set completed at %d", get.key, get.start, get.end, lastCompletedBeforeGet.end)
		}
		if bytes.Equal(get.result, lastCompletedBeforeGet.value) {
			continue
		}
		// The observed value may legitimately come from a concurrent or
		// later set overlapping the get's interval; only a value strictly
		// older than lastCompletedBeforeGet is a violation.
		staleButNewer := false
		for i := range h.ops {
			set := &h.ops[i]
			if !set.isWrite || set.key != get.key {
				continue
			}
			if bytes.Equal(set.value, get.result) && set.end >= lastCompletedBeforeGet.end {
				staleButNewer = true
				break
			}
		}
		if !staleButNewer {
			return fmt.Errorf("simtest: get(%q) at [%d,%d] returned a value older than the last set known complete at %d", get.key, get.start, get.end, lastCompletedBeforeGet.end)
		}
	}
	return nil
}
