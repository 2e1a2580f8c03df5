package raft

import "sync"

// Log is an in-memory ring of entries anchored by a snapshot cursor,
// with a parallel refcount vector so truncation can be statically
// ordered after outstanding IO (§4.1, §5 "Resource ownership"). Indices
// are 1-based and monotonically increasing starting at
// snapshotLastIndex+1; entry i lives at slot i-offset in the backing
// slices, where offset == snapshotLastIndex.
type Log struct {
	mu sync.Mutex

	entries  []Entry
	refcount []int32

	snapshotLastIndex uint64
	snapshotLastTerm  uint64

	lastStored uint64
}

// NewLog returns an empty log anchored at index 0.
func NewLog() *Log {
	return &Log{}
}

func (l *Log) offset() uint64 { return l.snapshotLastIndex }

func (l *Log) slot(index uint64) int {
	off := l.offset()
	if index <= off {
		return -1
	}
	i := int(index - off - 1)
	if i < 0 || i >= len(l.entries) {
		return -1
	}
	return i
}

// LastIndex returns the index of the newest in-memory entry, or the
// snapshot anchor if the log is empty (L2).
func (l *Log) LastIndex() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastIndexLocked()
}

func (l *Log) lastIndexLocked() uint64 {
	return l.offset() + uint64(len(l.entries))
}

// LastTerm returns the term of the newest entry, or the snapshot anchor
// term if the log has no in-memory entries.
func (l *Log) LastTerm() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return l.snapshotLastTerm
	}
	return l.entries[len(l.entries)-1].Term
}

// SnapshotIndex returns the anchor's last_index (L4).
func (l *Log) SnapshotIndex() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLastIndex
}

// SnapshotTerm returns the anchor's last_term.
func (l *Log) SnapshotTerm() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLastTerm
}

// LastStored returns the highest durably-written index (L2).
func (l *Log) LastStored() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastStored
}

// SetLastStored advances (or, after a restore, resets) the durable
// watermark. The follower-side append path and restore() call this.
func (l *Log) SetLastStored(index uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastStored = index
}

// NumEntries returns the count of in-memory (not necessarily stored)
// entries.
func (l *Log) NumEntries() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Get returns the entry at index, or ok=false if it isn't in memory
// (already snapshotted away or not yet appended).
func (l *Log) Get(index uint64) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.slot(index)
	if i < 0 {
		return Entry{}, false
	}
	return l.entries[i], true
}

// TermOf returns the term at index, or 0 if unknown — matching the
// source's logTermOf(index) -> term|0 contract, used pervasively by
// log-matching checks.
func (l *Log) TermOf(index uint64) uint64 {
	if index == 0 {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if index == l.snapshotLastIndex {
		return l.snapshotLastTerm
	}
	i := l.slot(index)
	if i < 0 {
		return 0
	}
	return l.entries[i].Term
}

// Append adds a single entry after the current tail and returns its new
// index. Enforces L1 is the caller's responsibility (callers only ever
// append with a term >= current_term).
func (l *Log) Append(term uint64, typ EntryType, payload []byte) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Term: term, Type: typ, Payload: payload})
	l.refcount = append(l.refcount, 0)
	return l.lastIndexLocked()
}

// AppendConfiguration appends a CHANGE entry carrying an encoded
// Configuration at term.
func (l *Log) AppendConfiguration(term uint64, encoded []byte) uint64 {
	return l.Append(term, EntryChange, encoded)
}

// AppendCommands appends one COMMAND entry per payload, all at the same
// term, and returns the index of the last one appended.
func (l *Log) AppendCommands(term uint64, payloads [][]byte) uint64 {
	var last uint64
	for _, p := range payloads {
		last = l.Append(term, EntryCommand, p)
	}
	return last
}

// AcquireView is a pointer-stable, refcounted handle on a contiguous
// range of entries, guaranteeing the range cannot be truncated away
// until Release is called (§5 "Resource ownership").
type AcquireView struct {
	From    uint64
	To      uint64
	Entries []Entry
}

// Acquire increments the refcount for [from, to] and returns a snapshot
// of those entries. Copies the slice header only; entries themselves are
// treated as immutable once appended.
func (l *Log) Acquire(from, to uint64) AcquireView {
	l.mu.Lock()
	defer l.mu.Unlock()
	if from == 0 || to < from {
		return AcquireView{From: from, To: to}
	}
	view := make([]Entry, 0, to-from+1)
	for idx := from; idx <= to; idx++ {
		i := l.slot(idx)
		if i < 0 {
			continue
		}
		l.refcount[i]++
		view = append(view, l.entries[i])
	}
	return AcquireView{From: from, To: to, Entries: view}
}

// Release decrements the refcount taken by a prior Acquire over the same
// range. Safe to call after a truncation already dropped the slots (a
// no-op in that case).
func (l *Log) Release(from, to uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for idx := from; idx <= to; idx++ {
		i := l.slot(idx)
		if i < 0 {
			continue
		}
		if l.refcount[i] > 0 {
			l.refcount[i]--
		}
	}
}

// IsReferenced reports whether any in-flight IO still holds index.
func (l *Log) IsReferenced(index uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.slot(index)
	if i < 0 {
		return false
	}
	return l.refcount[i] > 0
}

// Truncate removes all entries at index >= from. Refused with
// ErrLogBusy while any slot in [from, last_index] is still referenced
// (L3).
func (l *Log) Truncate(from uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	last := l.lastIndexLocked()
	if from > last {
		return nil
	}
	for idx := from; idx <= last; idx++ {
		i := l.slot(idx)
		if i >= 0 && l.refcount[i] > 0 {
			return ErrLogBusy
		}
	}
	i := l.slot(from)
	if i < 0 {
		// from <= snapshot anchor: nothing in memory to cut.
		return nil
	}
	l.entries = l.entries[:i]
	l.refcount = l.refcount[:i]
	if l.lastStored >= from {
		l.lastStored = from - 1
	}
	return nil
}

// Discard is Truncate's unchecked sibling used on the rollback path
// (§7) where the caller already knows nothing downstream is referenced
// (the entries were never sent anywhere, e.g. a just-appended,
// rejected client request).
func (l *Log) Discard(from uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.slot(from)
	if i < 0 {
		return
	}
	l.entries = l.entries[:i]
	l.refcount = l.refcount[:i]
	if l.lastStored >= from {
		l.lastStored = from - 1
	}
}

// Snapshot drops entries strictly before max(snapshot.last_index+1,
// at-trailing) and moves the anchor up to that new boundary, keeping any
// trailing entries (up to at) addressable in the log for straggler
// replication instead of forcing those peers through snapshot install
// (§4.1).
func (l *Log) Snapshot(at uint64, trailing uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if at <= l.snapshotLastIndex {
		return
	}
	last := l.lastIndexLocked()
	if at > last {
		at = last
	}
	keepFrom := l.snapshotLastIndex + 1
	if at > trailing && at-trailing > keepFrom {
		keepFrom = at - trailing
	}
	newAnchor := keepFrom - 1
	if newAnchor <= l.snapshotLastIndex {
		return
	}
	newAnchorTerm := l.TermOfLocked(newAnchor)
	dropCount := int(newAnchor - l.snapshotLastIndex)
	if dropCount > len(l.entries) {
		dropCount = len(l.entries)
	}
	l.entries = append([]Entry(nil), l.entries[dropCount:]...)
	l.refcount = append([]int32(nil), l.refcount[dropCount:]...)
	l.snapshotLastIndex = newAnchor
	l.snapshotLastTerm = newAnchorTerm
}

// TermOfLocked is TermOf without acquiring the mutex, for internal use
// while already holding it.
func (l *Log) TermOfLocked(index uint64) uint64 {
	if index == l.snapshotLastIndex {
		return l.snapshotLastTerm
	}
	i := l.slot(index)
	if i < 0 {
		return 0
	}
	return l.entries[i].Term
}

// Restore replaces the log wholesale with a single anchor after a
// snapshot install (L4): last_stored resets to 0 until entries are
// re-applied.
func (l *Log) Restore(lastIndex, lastTerm uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.refcount = nil
	l.snapshotLastIndex = lastIndex
	l.snapshotLastTerm = lastTerm
	l.lastStored = 0
}
