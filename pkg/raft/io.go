package raft

// IOState reflects whether the adapter may be handed new inbound
// messages right now. The core sets BUSY only around term-bump metadata
// writes (§4.5, §5) and expects IO to suppress delivery meanwhile.
type IOState int

const (
	IOAvailable IOState = iota
	IOBusy
)

// AppendRequest batches the durable-write half of a log append; IO owns
// entries for the duration of the call and must not mutate them.
type AppendRequest struct {
	PrevIndex uint64
	Entries   []Entry
}

// SnapshotPutRequest carries a snapshot blob the core asks IO to persist
// durably, trimming the log up to Trailing entries before it.
type SnapshotPutRequest struct {
	Trailing uint64
	Meta     SnapshotMeta
	Data     []byte
}

// IO is the storage/network adapter contract the core consumes (§6). It
// is an out-of-scope external collaborator: the core never assumes a
// concrete transport or storage engine, only this interface. pkg/storage
// and pkg/transport/grpcio provide reference implementations.
type IO interface {
	// Time returns monotonic milliseconds, used for all timeout and
	// heartbeat arithmetic so a deterministic simulator can substitute a
	// virtual clock.
	Time() int64

	// Send is fire-and-forget; cb MUST be invoked on the node's own
	// driving goroutine/call stack (single-threaded cooperative model,
	// §5), never concurrently with other core calls.
	Send(dst uint64, msg Message, cb func(err error))

	// Append durably persists entries starting at req.PrevIndex+1. On
	// success cb reports the new LastStored index.
	Append(req AppendRequest, cb func(lastStored uint64, err error))

	// Truncate deletes all durable entries at or after fromIndex. It is
	// synchronous per §6 and must fail (wrapping ErrLogBusy) while the
	// core still has entries in that range acquired.
	Truncate(fromIndex uint64) error

	// SetMeta atomically persists (term, votedFor); cb runs once durable.
	SetMeta(term uint64, votedFor uint64, cb func(err error))

	// SnapshotPut persists a snapshot and truncates the log in front of
	// it; cb reports completion.
	SnapshotPut(req SnapshotPutRequest, cb func(err error))

	// SnapshotGet retrieves the most recently stored snapshot, if any.
	SnapshotGet(cb func(meta SnapshotMeta, data []byte, found bool, err error))

	// State reports AVAILABLE/BUSY; the core toggles this via SetBusy.
	State() IOState
	SetBusy(busy bool)
}

// FSM is the out-of-scope application state machine contract (§6).
type FSM interface {
	// Apply executes one committed COMMAND payload in log order.
	Apply(entry Entry) (result []byte, err error)
	// Snapshot serializes the current FSM state.
	Snapshot() (data []byte, err error)
	// Restore replaces FSM state from a snapshot produced by Snapshot.
	Restore(data []byte) error
}

// CatchUpGate resolves Open Question (a) in §9: it gates and sequences
// catch-up of STANDBY promotees, standing in for the source's vendor
// "placement-group replication" hook. The default implementation
// (AlwaysPermit) always grants; a real deployment with an external
// placement authority supplies its own.
type CatchUpGate interface {
	// Permit is consulted before the leader sends a PROBE-state
	// AppendEntries to peerID during catch-up round round — the send
	// that, on a prev_log_index mismatch, makes the peer truncate its
	// divergent log tail down to it (§4.7). Denying permission does not
	// fail the round outright: per Open Question (b), the leader skips
	// the send and retries on the next heartbeat rather than treating
	// the denial as fatal.
	Permit(peerID uint64, round int) bool
}

type alwaysPermit struct{}

func (alwaysPermit) Permit(uint64, int) bool { return true }

// AlwaysPermit is the default CatchUpGate for deployments with no
// external placement authority.
func AlwaysPermit() CatchUpGate { return alwaysPermit{} }
