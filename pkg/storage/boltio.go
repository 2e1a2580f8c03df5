// Package storage provides bbolt-backed durability for the raft core:
// a bucket-per-concern layout (meta, entries, snapshot) in the style of
// the teacher's BoltStore, adapted from a REST-resource store into the
// raft.IO contract's (term/votedFor, log entries, snapshot) shape.
package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/vzdtic/raftcore/pkg/raft"
)

var (
	bucketMeta     = []byte("meta")
	bucketEntries  = []byte("entries")
	bucketSnapshot = []byte("snapshot")
)

var (
	keyTerm     = []byte("term")
	keyVotedFor = []byte("voted_for")
	keySnapMeta = []byte("meta")
	keySnapData = []byte("data")
)

// BoltIO is the reference raft.IO adapter backed by a single bbolt
// database file. Every call is synchronous internally; callbacks are
// invoked before the call returns, which satisfies §5's single-threaded
// cooperative model without a background goroutine.
type BoltIO struct {
	db    *bolt.DB
	clock func() int64
	busy  bool
}

// Open creates or reopens the on-disk store at <dataDir>/raft.db.
func Open(dataDir string, clock func() int64) (*BoltIO, error) {
	dbPath := filepath.Join(dataDir, "raft.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", dbPath, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketEntries, bucketSnapshot} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltIO{db: db, clock: clock}, nil
}

// Close releases the underlying database handle.
func (b *BoltIO) Close() error { return b.db.Close() }

func (b *BoltIO) Time() int64 { return b.clock() }

func (b *BoltIO) State() raft.IOState {
	if b.busy {
		return raft.IOBusy
	}
	return raft.IOAvailable
}

func (b *BoltIO) SetBusy(busy bool) { b.busy = busy }

// Send has no meaning for a storage-only adapter; a real deployment
// pairs BoltIO with pkg/transport/grpcio's sender through a composite
// IO. Standalone use (e.g. in tests) treats every send as undeliverable.
func (b *BoltIO) Send(_ uint64, _ raft.Message, cb func(error)) {
	cb(raft.ErrNoConnection)
}

func (b *BoltIO) SetMeta(term uint64, votedFor uint64, cb func(error)) {
	err := b.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if err := meta.Put(keyTerm, encodeU64(term)); err != nil {
			return err
		}
		return meta.Put(keyVotedFor, encodeU64(votedFor))
	})
	cb(err)
}

func (b *BoltIO) Append(req raft.AppendRequest, cb func(uint64, error)) {
	var lastStored uint64
	err := b.db.Update(func(tx *bolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		idx := req.PrevIndex
		for _, e := range req.Entries {
			idx++
			buf, err := encodeEntry(e)
			if err != nil {
				return err
			}
			if err := entries.Put(encodeU64(idx), buf); err != nil {
				return err
			}
		}
		lastStored = idx
		return nil
	})
	if err != nil {
		cb(0, err)
		return
	}
	cb(lastStored, nil)
}

func (b *BoltIO) Truncate(fromIndex uint64) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		c := entries.Cursor()
		from := encodeU64(fromIndex)
		for k, _ := c.Seek(from); k != nil; k, _ = c.Next() {
			if err := entries.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BoltIO) SnapshotPut(req raft.SnapshotPutRequest, cb func(error)) {
	err := b.db.Update(func(tx *bolt.Tx) error {
		snap := tx.Bucket(bucketSnapshot)
		metaBuf, err := encodeSnapshotMeta(req.Meta)
		if err != nil {
			return err
		}
		if err := snap.Put(keySnapMeta, metaBuf); err != nil {
			return err
		}
		if err := snap.Put(keySnapData, req.Data); err != nil {
			return err
		}
		entries := tx.Bucket(bucketEntries)
		c := entries.Cursor()
		cutoff := req.Meta.LastIndex
		if req.Trailing < cutoff {
			cutoff -= req.Trailing
		} else {
			cutoff = 0
		}
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if decodeU64(k) >= cutoff {
				break
			}
			if err := entries.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	cb(err)
}

func (b *BoltIO) SnapshotGet(cb func(raft.SnapshotMeta, []byte, bool, error)) {
	var meta raft.SnapshotMeta
	var data []byte
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		snap := tx.Bucket(bucketSnapshot)
		metaBuf := snap.Get(keySnapMeta)
		if metaBuf == nil {
			return nil
		}
		found = true
		m, err := decodeSnapshotMeta(metaBuf)
		if err != nil {
			return err
		}
		meta = m
		data = append([]byte(nil), snap.Get(keySnapData)...)
		return nil
	})
	cb(meta, data, found, err)
}

// LoadMeta returns the persisted (term, votedFor) pair, zero-valued if
// this is a fresh store.
func (b *BoltIO) LoadMeta() (term, votedFor uint64, err error) {
	err = b.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if v := meta.Get(keyTerm); v != nil {
			term = decodeU64(v)
		}
		if v := meta.Get(keyVotedFor); v != nil {
			votedFor = decodeU64(v)
		}
		return nil
	})
	return
}

// LoadLog rebuilds an in-memory raft.Log from everything durably
// stored: the most recent snapshot anchor, if any, followed by the
// entries recorded after it. Used once at node startup.
func (b *BoltIO) LoadLog() (*raft.Log, error) {
	log := raft.NewLog()
	var snapMeta raft.SnapshotMeta
	haveSnap := false

	err := b.db.View(func(tx *bolt.Tx) error {
		snap := tx.Bucket(bucketSnapshot)
		if metaBuf := snap.Get(keySnapMeta); metaBuf != nil {
			m, err := decodeSnapshotMeta(metaBuf)
			if err != nil {
				return err
			}
			snapMeta = m
			haveSnap = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if haveSnap {
		log.Restore(snapMeta.LastIndex, snapMeta.LastTerm)
	}

	err = b.db.View(func(tx *bolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		return entries.ForEach(func(k, v []byte) error {
			if haveSnap && decodeU64(k) <= snapMeta.LastIndex {
				return nil
			}
			var e raft.Entry
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&e); err != nil {
				return err
			}
			log.Append(e.Term, e.Type, e.Payload)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	log.SetLastStored(log.LastIndex())
	return log, nil
}

func encodeU64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func decodeU64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

func encodeEntry(e raft.Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeSnapshotMeta(m raft.SnapshotMeta) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeSnapshotMeta(data []byte) (raft.SnapshotMeta, error) {
	var m raft.SnapshotMeta
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m)
	return m, err
}
