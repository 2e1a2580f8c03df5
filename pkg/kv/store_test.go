package kv

import (
	"testing"

	"github.com/vzdtic/raftcore/pkg/raft"
)

func applyCommand(t *testing.T, s *Store, c Command) {
	t.Helper()
	payload, err := EncodeCommand(c)
	if err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}
	if _, err := s.Apply(raft.Entry{Type: raft.EntryCommand, Payload: payload}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
}

func TestStoreSetGetDelete(t *testing.T) {
	s := New()
	applyCommand(t, s, Command{Kind: OpSet, Key: "a", Value: []byte("1")})

	v, ok := s.Get("a")
	if !ok || string(v) != "1" {
		t.Fatalf("Get(a) = %q, %v, want 1, true", v, ok)
	}

	applyCommand(t, s, Command{Kind: OpDelete, Key: "a"})
	if _, ok := s.Get("a"); ok {
		t.Fatalf("Get(a) after delete: found, want not found")
	}
}

func TestStoreSnapshotRestore(t *testing.T) {
	s := New()
	applyCommand(t, s, Command{Kind: OpSet, Key: "x", Value: []byte("one")})
	applyCommand(t, s, Command{Kind: OpSet, Key: "y", Value: []byte("two")})

	data, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	restored := New()
	if err := restored.Restore(data); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	for _, key := range []string{"x", "y"} {
		want, _ := s.Get(key)
		got, ok := restored.Get(key)
		if !ok || string(got) != string(want) {
			t.Fatalf("restored Get(%q) = %q, %v, want %q, true", key, got, ok, want)
		}
	}
}

func TestStoreApplyMalformedCommand(t *testing.T) {
	s := New()
	if _, err := s.Apply(raft.Entry{Type: raft.EntryCommand, Payload: []byte("not gob")}); err == nil {
		t.Fatalf("Apply with malformed payload: want error, got nil")
	}
}
