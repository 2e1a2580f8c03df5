package raft

import "errors"

// Error taxonomy (§6). Adapters wrap these with fmt.Errorf("%w", ...)
// for additional context; callers should compare with errors.Is against
// these sentinels, the same idiom as the teacher's ErrNotLeader /
// ErrConfigChangePending pair.
var (
	ErrNotLeader          = errors.New("raft: not leader")
	ErrNotFound           = errors.New("raft: not found")
	ErrBadID              = errors.New("raft: bad server id")
	ErrBadRole            = errors.New("raft: bad role")
	ErrDuplicateID        = errors.New("raft: duplicate server id")
	ErrNoMem              = errors.New("raft: allocation failed")
	ErrBusy               = errors.New("raft: io busy")
	ErrApplyBusy          = errors.New("raft: apply already in flight")
	ErrLogBusy            = errors.New("raft: log range referenced by in-flight io")
	ErrShutdown           = errors.New("raft: safety invariant violated, node shutting down")
	ErrNoConnection       = errors.New("raft: no connection to peer")
	ErrMalformed          = errors.New("raft: malformed message or encoding")
	ErrDiscard            = errors.New("raft: message discarded")
	ErrConfigChangePending = errors.New("raft: a configuration change is already in flight")
	ErrTimeout            = errors.New("raft: operation timed out")
)
