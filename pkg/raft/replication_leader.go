package raft

// Propose appends payloads as COMMAND entries and replicates them,
// invoking cb once, when the last of them has committed and been
// applied (§4.6, §4.10).
// Returns ErrNotLeader if this node is not currently leader.
func (n *RaftNode) Propose(payloads [][]byte, cb func(ApplyResult)) error {
	if n.state != Leader || n.leader == nil {
		return ErrNotLeader
	}
	if len(payloads) == 0 {
		return nil
	}
	var last uint64
	for _, p := range payloads {
		last = n.raftLog.Append(n.currentTerm, EntryCommand, p)
	}
	if cb != nil {
		n.registry.Enqueue(last, RequestApply, n.io.Time(), cb)
	}
	n.persistAndReplicateAll()
	return nil
}

// ReadBarrier is the client-facing linearizable-read helper: it
// succeeds only once a no_op (or, with NoOp disabled, the current
// commit position) has committed under this leadership term,
// satisfying Open Question (c) without blocking the caller.
func (n *RaftNode) ReadBarrier(cb func(ApplyResult)) error {
	if n.state != Leader || n.leader == nil {
		return ErrNotLeader
	}
	if n.Readable() {
		cb(ApplyResult{Index: n.commitIndex})
		return nil
	}
	if !n.cfg.NoOp {
		cb(ApplyResult{Index: n.commitIndex})
		return nil
	}
	return ErrNotLeader
}

// persistAndReplicateAll durably writes any newly appended entries and
// kicks replication to every peer (§4.5 "after mutating the log").
func (n *RaftNode) persistAndReplicateAll() {
	last := n.raftLog.LastIndex()
	stored := n.raftLog.LastStored()
	if last > stored {
		view := n.raftLog.Acquire(stored+1, last)
		n.io.Append(AppendRequest{PrevIndex: stored, Entries: view.Entries}, func(lastStored uint64, err error) {
			n.raftLog.Release(view.From, view.To)
			if err != nil {
				n.shutdown("append failed")
				return
			}
			n.raftLog.SetLastStored(lastStored)
			if n.leader != nil {
				if self := n.leader.progress.get(n.id); self != nil {
					maybeUpdate(self, lastStored)
				}
				n.advanceCommit()
			}
		})
	}
	if n.leader == nil {
		return
	}
	now := n.io.Time()
	for i := range n.leader.progress.items {
		p := &n.leader.progress.items[i]
		if p.ID == n.id {
			continue
		}
		n.maybeReplicateTo(p.ID, now)
	}
}

// maybeReplicateTo sends AppendEntries (or InstallSnapshot, if the
// follower has fallen behind the retained log) to peer id when
// shouldReplicate says it is due (§4.6).
func (n *RaftNode) maybeReplicateTo(id uint64, now int64) {
	s, ok := n.conf.Get(id)
	if !ok || (s.Role == RoleSpare && !n.isActivePromotee(id)) {
		return
	}
	p := n.leader.progress.get(id)
	if p == nil {
		return
	}
	lastIndex := n.raftLog.LastIndex()
	if !shouldReplicate(p, now, n.cfg.HeartbeatTimeout.Milliseconds(), n.cfg.InstallSnapshotTimeout.Milliseconds(), lastIndex, n.cfg.InflightLogThreshold) {
		return
	}

	if p.State == ProgressSnapshot {
		n.sendInstallSnapshot(id, p, now)
		return
	}

	if p.State == ProgressProbe && n.leader.catchup != nil && n.leader.catchup.peerID == id {
		// A PROBE-state send carries a prev_log_index guess that, on
		// mismatch, makes the follower truncate its divergent tail
		// down to it (§4.7). During a catch-up round that truncation
		// is gated by the CatchUpGate rather than fired blind.
		if !n.gate.Permit(id, n.leader.catchup.round) {
			n.log.Debug().Uint64("peer", id).Int("round", n.leader.catchup.round).Msg("raft: catch-up gate denied probe, deferring truncation")
			return
		}
	}

	prevIndex := p.NextIndex - 1
	prevTerm := n.raftLog.TermOf(prevIndex)
	if prevIndex > 0 && prevTerm == 0 && prevIndex < n.raftLog.SnapshotIndex() {
		// prev_index fell off the retained log tail entirely: the
		// follower needs a snapshot to catch up.
		toSnapshot(p, n.raftLog.SnapshotIndex())
		n.sendInstallSnapshot(id, p, now)
		return
	}
	if prevIndex == n.raftLog.SnapshotIndex() {
		prevTerm = n.raftLog.SnapshotTerm()
	}

	view := n.raftLog.Acquire(p.NextIndex, lastIndex)
	req := AppendEntriesRequest{
		Term:         n.currentTerm,
		SrcID:        n.id,
		PrevLogIndex: prevIndex,
		PrevLogTerm:  prevTerm,
		Entries:      view.Entries,
		LeaderCommit: n.commitIndex,
	}
	updateLastSend(p, now)
	if p.State == ProgressPipeline && len(view.Entries) > 0 {
		optimisticNextIndex(p, lastIndex+1)
	}
	n.io.Send(id, Message{AppendEntries: &req}, func(error) {
		n.raftLog.Release(view.From, view.To)
	})
}

func (n *RaftNode) sendInstallSnapshot(id uint64, p *Progress, now int64) {
	n.io.SnapshotGet(func(meta SnapshotMeta, data []byte, found bool, err error) {
		if err != nil || !found {
			return
		}
		req := InstallSnapshotRequest{
			Term:      n.currentTerm,
			SrcID:     n.id,
			LastIndex: meta.LastIndex,
			LastTerm:  meta.LastTerm,
			ConfIndex: meta.ConfIndex,
			Conf:      meta.Conf,
			Data:      data,
		}
		toSnapshot(p, meta.LastIndex)
		updateSnapshotLastSend(p, now)
		n.io.Send(id, Message{InstallSnapshot: &req}, func(error) {})
	})
}

// handleAppendEntriesResult folds a follower's reply into its Progress
// and re-evaluates the commit index (§4.6).
func (n *RaftNode) handleAppendEntriesResult(res *AppendEntriesResult) {
	if n.state != Leader || n.leader == nil {
		return
	}
	p := n.leader.progress.get(res.SrcID)
	if p == nil {
		return
	}
	markRecentRecv(p, n.io.Time())

	if res.Rejected > 0 {
		if maybeDecrement(p, res.Rejected, res.LastLogIndex) {
			n.maybeReplicateTo(res.SrcID, n.io.Time())
		}
		return
	}

	if p.State == ProgressProbe {
		toPipeline(p)
	}
	if maybeUpdate(p, res.LastLogIndex) {
		n.advanceCommit()
		n.maybeCompleteTransfer(res.SrcID, res.LastLogIndex)
	}
	if !isUpToDate(p, n.raftLog.LastIndex()) {
		n.maybeReplicateTo(res.SrcID, n.io.Time())
	}
}

// handleInstallSnapshotResult advances a SNAPSHOT-state peer once it
// confirms the install, moving it back to PROBE right away.
func (n *RaftNode) handleInstallSnapshotResult(res *InstallSnapshotResult) {
	if n.state != Leader || n.leader == nil {
		return
	}
	p := n.leader.progress.get(res.SrcID)
	if p == nil {
		return
	}
	markRecentRecv(p, n.io.Time())
	if maybeUpdate(p, res.LastLogIndex) && snapshotDone(p) {
		toProbe(p)
		n.advanceCommit()
	}
}

// advanceCommit recomputes commit_index as the highest index a
// majority of VOTERs in every active joint-consensus group have
// stored, restricted to entries from the current term (the standard
// Raft commitment rule), then drives apply forward.
func (n *RaftNode) advanceCommit() {
	if n.leader == nil {
		return
	}
	candidate := n.quorumMatchIndex()
	if candidate <= n.commitIndex {
		return
	}
	if n.raftLog.TermOf(candidate) != n.currentTerm {
		return
	}
	n.commitIndex = candidate
	n.triggerApply()
}

func (n *RaftNode) quorumMatchIndex() uint64 {
	best := n.raftLog.LastIndex()
	for _, group := range []Group{GroupOld, GroupNew} {
		total := n.conf.VoterCount(group)
		if total == 0 {
			continue
		}
		matches := make([]uint64, 0, total)
		for _, s := range n.conf.Servers {
			if !n.conf.IsVoter(s, group) {
				continue
			}
			p := n.leader.progress.get(s.ID)
			if p == nil {
				matches = append(matches, 0)
				continue
			}
			matches = append(matches, p.MatchIndex)
		}
		q := quorumIndex(matches)
		if q < best {
			best = q
		}
	}
	return best
}

// quorumIndex returns the largest value at least a majority of
// matches are >= to (the classic "sorted match index" commit rule).
func quorumIndex(matches []uint64) uint64 {
	if len(matches) == 0 {
		return 0
	}
	sorted := append([]uint64(nil), matches...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	return sorted[(len(sorted)-1)/2]
}

func (n *RaftNode) maybeCompleteTransfer(peerID, lastLogIndex uint64) {
	if n.transfer == nil || n.transfer.targetID != peerID {
		return
	}
	if lastLogIndex < n.raftLog.LastIndex() {
		return
	}
	req := TimeoutNowRequest{Term: n.currentTerm, LastLogIndex: n.raftLog.LastIndex(), LastLogTerm: n.raftLog.LastTerm()}
	n.io.Send(peerID, Message{TimeoutNow: &req}, func(error) {})
}

// handleTimeoutNow is the transferee side: a TimeoutNow grants
// permission to disrupt the current leader immediately, bypassing the
// usual "no live leader" check (§4.9): it starts a real election at once,
// without a pre-vote round, with disrupt_leader set.
func (n *RaftNode) handleTimeoutNow(req *TimeoutNowRequest) {
	if req.Term < n.currentTerm {
		return
	}
	n.start(true)
}

// closeTransfer clears an in-flight leadership transfer and logs a
// warning when err is non-nil. TransferLeadership takes no callback, so
// the outcome is not reported to its caller.
func (n *RaftNode) closeTransfer(err error) {
	if n.transfer == nil {
		return
	}
	n.transfer = nil
	if err != nil {
		n.log.Warn().Err(err).Msg("raft: leadership transfer did not complete")
	}
}
