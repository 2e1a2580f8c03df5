// Package kv is a reference raft.FSM: an in-memory key/value map driven
// entirely through committed log entries, the same role the teacher's
// pkg/kv store played for its Raft.Node.
package kv

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/vzdtic/raftcore/pkg/raft"
)

// OpKind distinguishes the command payload shapes Store understands.
type OpKind uint8

const (
	OpSet OpKind = iota
	OpDelete
)

// Command is the gob-encoded payload carried by COMMAND entries.
type Command struct {
	Kind  OpKind
	Key   string
	Value []byte
}

// EncodeCommand is the client-side helper that builds a Propose payload.
func EncodeCommand(c Command) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Store is a raft.FSM backing a flat string-keyed map. It has no locking
// of its own beyond what concurrent reads via Get need, since Apply is
// only ever called from the single thread driving the owning RaftNode
// (§5); Get is exposed for read-only access from other goroutines
// (e.g. an RPC handler), hence the RWMutex.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Get returns the value for key, if present.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Apply decodes and executes one committed command (raft.FSM).
func (s *Store) Apply(entry raft.Entry) ([]byte, error) {
	var cmd Command
	if err := gob.NewDecoder(bytes.NewReader(entry.Payload)).Decode(&cmd); err != nil {
		return nil, fmt.Errorf("kv: malformed command: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.Kind {
	case OpSet:
		s.data[cmd.Key] = cmd.Value
		return nil, nil
	case OpDelete:
		delete(s.data, cmd.Key)
		return nil, nil
	default:
		return nil, fmt.Errorf("kv: unknown op kind %d", cmd.Kind)
	}
}

// snapshot is the gob-encoded wire form Snapshot/Restore round-trip.
type snapshot struct {
	Data map[string][]byte
}

// Snapshot serializes the full key space (raft.FSM).
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string][]byte, len(s.data))
	for k, v := range s.data {
		cp[k] = append([]byte(nil), v...)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snapshot{Data: cp}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Restore replaces the key space wholesale (raft.FSM).
func (s *Store) Restore(data []byte) error {
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("kv: malformed snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Data == nil {
		snap.Data = make(map[string][]byte)
	}
	s.data = snap.Data
	return nil
}
