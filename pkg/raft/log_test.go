package raft_test

import (
	"testing"

	"github.com/vzdtic/raftcore/pkg/raft"
)

func TestLogAppendAdvancesLastIndex(t *testing.T) {
	l := raft.NewLog()
	if l.LastIndex() != 0 {
		t.Fatalf("expected empty log to start at index 0, got %d", l.LastIndex())
	}
	for i := 1; i <= 3; i++ {
		idx := l.Append(1, raft.EntryCommand, []byte("x"))
		if idx != uint64(i) {
			t.Fatalf("append %d: expected index %d, got %d", i, i, idx)
		}
	}
	if l.LastIndex() != 3 {
		t.Fatalf("expected last index 3, got %d", l.LastIndex())
	}
}

// L2: snapshot.last_index <= last_stored <= last_index.
func TestLogLastStoredBounds(t *testing.T) {
	l := raft.NewLog()
	l.Append(1, raft.EntryCommand, []byte("a"))
	l.Append(1, raft.EntryCommand, []byte("b"))
	l.SetLastStored(2)
	if l.LastStored() < l.SnapshotIndex() || l.LastStored() > l.LastIndex() {
		t.Fatalf("last_stored %d out of [%d, %d]", l.LastStored(), l.SnapshotIndex(), l.LastIndex())
	}
}

// L3: truncation refuses while an in-flight acquire still references the
// range being removed, and succeeds once released.
func TestLogTruncateRefusedWhileReferenced(t *testing.T) {
	l := raft.NewLog()
	l.Append(1, raft.EntryCommand, []byte("a"))
	l.Append(1, raft.EntryCommand, []byte("b"))
	view := l.Acquire(1, 2)

	if err := l.Truncate(1); err != raft.ErrLogBusy {
		t.Fatalf("expected ErrLogBusy while range is acquired, got %v", err)
	}

	l.Release(view.From, view.To)
	if err := l.Truncate(1); err != nil {
		t.Fatalf("truncate after release: %v", err)
	}
	if l.LastIndex() != 0 {
		t.Fatalf("expected truncation from 1 to empty the log, got last index %d", l.LastIndex())
	}
}

func TestLogTruncateClampsLastStored(t *testing.T) {
	l := raft.NewLog()
	l.Append(1, raft.EntryCommand, []byte("a"))
	l.Append(1, raft.EntryCommand, []byte("b"))
	l.Append(1, raft.EntryCommand, []byte("c"))
	l.SetLastStored(3)

	if err := l.Truncate(2); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if l.LastStored() != 1 {
		t.Fatalf("expected last_stored clamped to 1 after truncating from 2, got %d", l.LastStored())
	}
	if l.LastIndex() != 1 {
		t.Fatalf("expected last index 1 after truncate, got %d", l.LastIndex())
	}
}

// L1: entries at lower indices never carry a higher term than later ones
// — exercised here as the monotonic-term invariant a well-behaved leader
// maintains by construction.
func TestLogTermsAreMonotonic(t *testing.T) {
	l := raft.NewLog()
	l.Append(1, raft.EntryCommand, []byte("a"))
	l.Append(1, raft.EntryCommand, []byte("b"))
	l.Append(2, raft.EntryCommand, []byte("c"))

	var lastTerm uint64
	for i := uint64(1); i <= l.LastIndex(); i++ {
		term := l.TermOf(i)
		if term < lastTerm {
			t.Fatalf("term at index %d (%d) is lower than the preceding entry's (%d)", i, term, lastTerm)
		}
		lastTerm = term
	}
}

// L4: snapshot install replaces the log with a single anchor and resets
// last_stored.
func TestLogRestoreResetsToAnchor(t *testing.T) {
	l := raft.NewLog()
	l.Append(1, raft.EntryCommand, []byte("a"))
	l.Append(1, raft.EntryCommand, []byte("b"))
	l.SetLastStored(2)

	l.Restore(10, 3)

	if l.LastIndex() != 10 || l.LastTerm() != 3 {
		t.Fatalf("expected anchor (10,3), got (%d,%d)", l.LastIndex(), l.LastTerm())
	}
	if l.SnapshotIndex() != 10 || l.SnapshotTerm() != 3 {
		t.Fatalf("expected snapshot anchor (10,3), got (%d,%d)", l.SnapshotIndex(), l.SnapshotTerm())
	}
	if l.LastStored() != 0 {
		t.Fatalf("expected last_stored reset to 0 after restore, got %d", l.LastStored())
	}
	if l.NumEntries() != 0 {
		t.Fatalf("expected no in-memory entries after restore, got %d", l.NumEntries())
	}
}

func TestLogSnapshotKeepsTrailingEntries(t *testing.T) {
	l := raft.NewLog()
	for i := 0; i < 10; i++ {
		l.Append(1, raft.EntryCommand, []byte("x"))
	}
	l.SetLastStored(10)

	l.Snapshot(8, 3)

	if l.SnapshotIndex() != 4 {
		t.Fatalf("expected anchor at 4 (one before the kept trailing window), got %d", l.SnapshotIndex())
	}
	if _, ok := l.Get(6); !ok {
		t.Fatal("expected trailing entry 6 to remain addressable")
	}
	if _, ok := l.Get(10); !ok {
		t.Fatal("expected entry past the apply point to remain addressable")
	}
}
