package raft

import "github.com/google/uuid"

// RequestKind distinguishes the callback shapes a registry entry can
// carry.
type RequestKind int

const (
	RequestApply RequestKind = iota
	RequestBarrier
	RequestChange
)

// ApplyResult is delivered to an apply callback once its entry commits
// and the FSM has processed it.
type ApplyResult struct {
	Index  uint64
	Result []byte
	Err    error
}

// pendingRequest is one outstanding client callback tied to a log
// index (§4.10).
type pendingRequest struct {
	Index      uint64
	Kind       RequestKind
	RequestID  uuid.UUID
	EnqueueTime int64
	callback   func(ApplyResult)
}

// RequestRegistry maintains the indexed queue of pending client
// callbacks described in §4.10. The node enqueues at most one request
// per (index, kind), each at a freshly appended index; Enqueue itself
// does not reject a duplicate key, and RemoveAt takes the earliest.
type RequestRegistry struct {
	items []pendingRequest
}

// NewRequestRegistry returns an empty registry.
func NewRequestRegistry() *RequestRegistry {
	return &RequestRegistry{}
}

// Enqueue records cb to run once index commits and is applied. Returns
// the request's correlation id (used so a resubmission across a
// leadership change can be told apart from the original).
func (r *RequestRegistry) Enqueue(index uint64, kind RequestKind, now int64, cb func(ApplyResult)) uuid.UUID {
	id := uuid.New()
	r.items = append(r.items, pendingRequest{
		Index: index, Kind: kind, RequestID: id, EnqueueTime: now, callback: cb,
	})
	return id
}

// RemoveAt removes and returns the request at (index, kind), if any.
func (r *RequestRegistry) RemoveAt(index uint64, kind RequestKind) (pendingRequest, bool) {
	for i, it := range r.items {
		if it.Index == index && it.Kind == kind {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return it, true
		}
	}
	return pendingRequest{}, false
}

// Fire removes and invokes the callback for (index, kind), if present.
func (r *RequestRegistry) Fire(index uint64, kind RequestKind, result ApplyResult) {
	if it, ok := r.RemoveAt(index, kind); ok {
		it.callback(result)
	}
}

// Drain removes and returns every request for which predicate is true,
// in original enqueue order, without invoking callbacks — used on
// truncation rollback (§7) where the caller decides the failure status.
func (r *RequestRegistry) Drain(predicate func(index uint64, kind RequestKind) bool) []pendingRequest {
	var drained []pendingRequest
	kept := r.items[:0]
	for _, it := range r.items {
		if predicate(it.Index, it.Kind) {
			drained = append(drained, it)
		} else {
			kept = append(kept, it)
		}
	}
	r.items = kept
	return drained
}

// FailAll fails every remaining request with err (used on leader
// step-down, §4.10 invariant).
func (r *RequestRegistry) FailAll(err error) {
	items := r.items
	r.items = nil
	for _, it := range items {
		it.callback(ApplyResult{Index: it.Index, Err: err})
	}
}

// Len reports the number of outstanding requests.
func (r *RequestRegistry) Len() int { return len(r.items) }
