package storage

import (
	"bytes"
	"testing"

	"github.com/vzdtic/raftcore/pkg/raft"
)

func openTestIO(t *testing.T) *BoltIO {
	t.Helper()
	now := int64(0)
	clock := func() int64 { return now }
	io, err := Open(t.TempDir(), clock)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { io.Close() })
	return io
}

func TestSetMetaPersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	clock := func() int64 { return 0 }

	io, err := Open(dir, clock)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var setErr error
	io.SetMeta(7, 3, func(err error) { setErr = err })
	if setErr != nil {
		t.Fatalf("SetMeta: %v", setErr)
	}
	io.Close()

	reopened, err := Open(dir, clock)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	term, votedFor, err := reopened.LoadMeta()
	if err != nil {
		t.Fatalf("LoadMeta: %v", err)
	}
	if term != 7 || votedFor != 3 {
		t.Fatalf("got (term=%d, votedFor=%d), want (7, 3)", term, votedFor)
	}
}

func TestAppendAndLoadLogRoundTrips(t *testing.T) {
	io := openTestIO(t)

	var lastStored uint64
	io.Append(raft.AppendRequest{
		PrevIndex: 0,
		Entries: []raft.Entry{
			{Term: 1, Type: raft.EntryCommand, Payload: []byte("a")},
			{Term: 1, Type: raft.EntryCommand, Payload: []byte("b")},
		},
	}, func(ls uint64, err error) {
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		lastStored = ls
	})
	if lastStored != 2 {
		t.Fatalf("lastStored = %d, want 2", lastStored)
	}

	log, err := io.LoadLog()
	if err != nil {
		t.Fatalf("LoadLog: %v", err)
	}
	if log.LastIndex() != 2 {
		t.Fatalf("LastIndex = %d, want 2", log.LastIndex())
	}
	e, ok := log.Get(1)
	if !ok || !bytes.Equal(e.Payload, []byte("a")) {
		t.Fatalf("entry 1 = %+v, ok=%v", e, ok)
	}
}

func TestTruncateRemovesTrailingEntries(t *testing.T) {
	io := openTestIO(t)

	io.Append(raft.AppendRequest{
		PrevIndex: 0,
		Entries: []raft.Entry{
			{Term: 1, Type: raft.EntryCommand, Payload: []byte("a")},
			{Term: 1, Type: raft.EntryCommand, Payload: []byte("b")},
			{Term: 1, Type: raft.EntryCommand, Payload: []byte("c")},
		},
	}, func(uint64, error) {})

	if err := io.Truncate(2); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	log, err := io.LoadLog()
	if err != nil {
		t.Fatalf("LoadLog: %v", err)
	}
	if log.LastIndex() != 1 {
		t.Fatalf("LastIndex after truncate = %d, want 1", log.LastIndex())
	}
}

func TestSnapshotPutTrimsEntriesAndIsRetrievable(t *testing.T) {
	io := openTestIO(t)

	io.Append(raft.AppendRequest{
		PrevIndex: 0,
		Entries: []raft.Entry{
			{Term: 1, Type: raft.EntryCommand, Payload: []byte("a")},
			{Term: 1, Type: raft.EntryCommand, Payload: []byte("b")},
			{Term: 1, Type: raft.EntryCommand, Payload: []byte("c")},
		},
	}, func(uint64, error) {})

	meta := raft.SnapshotMeta{LastIndex: 2, LastTerm: 1, Threshold: 1, Trailing: 0}
	var putErr error
	io.SnapshotPut(raft.SnapshotPutRequest{Trailing: 0, Meta: meta, Data: []byte("state")}, func(err error) {
		putErr = err
	})
	if putErr != nil {
		t.Fatalf("SnapshotPut: %v", putErr)
	}

	var gotMeta raft.SnapshotMeta
	var gotData []byte
	var found bool
	io.SnapshotGet(func(m raft.SnapshotMeta, data []byte, f bool, err error) {
		if err != nil {
			t.Fatalf("SnapshotGet: %v", err)
		}
		gotMeta, gotData, found = m, data, f
	})
	if !found {
		t.Fatal("expected a snapshot to be found")
	}
	if gotMeta.LastIndex != 2 || !bytes.Equal(gotData, []byte("state")) {
		t.Fatalf("got meta=%+v data=%q", gotMeta, gotData)
	}

	log, err := io.LoadLog()
	if err != nil {
		t.Fatalf("LoadLog: %v", err)
	}
	if log.SnapshotIndex() != 2 {
		t.Fatalf("SnapshotIndex = %d, want 2", log.SnapshotIndex())
	}
	if _, ok := log.Get(1); ok {
		t.Fatal("entry 1 should have been trimmed away by the snapshot")
	}
	e, ok := log.Get(3)
	if !ok || !bytes.Equal(e.Payload, []byte("c")) {
		t.Fatalf("entry 3 = %+v, ok=%v", e, ok)
	}
}
