package raft

// handleAppendEntries is the follower side of log replication (§4.7):
// stale-term rejection, log-matching, conflict truncation, durable
// append, and commit-index advancement.
func (n *RaftNode) handleAppendEntries(req *AppendEntriesRequest) {
	result := AppendEntriesResult{Term: n.currentTerm, SrcID: n.id}

	if req.Term < n.currentTerm {
		result.Rejected = req.PrevLogIndex + 1
		n.io.Send(req.SrcID, Message{AppendEntriesResult: &result}, func(error) {})
		return
	}

	if n.state != Follower {
		n.becomeFollower()
	}
	n.follower.electionTimerStart = n.io.Time()
	n.follower.currentLeader = req.SrcID

	if req.PrevLogIndex > 0 {
		localTerm := n.raftLog.TermOf(req.PrevLogIndex)
		if localTerm != req.PrevLogTerm {
			if req.PrevLogIndex <= n.commitIndex {
				// A mismatch at or before the committed watermark is a
				// safety violation (S1): some other node already
				// applied a conflicting entry at this index.
				n.shutdown("log matching violated at a committed index")
				return
			}
			result.Rejected = req.PrevLogIndex
			result.LastLogIndex = n.raftLog.LastIndex()
			n.io.Send(req.SrcID, Message{AppendEntriesResult: &result}, func(error) {})
			return
		}
	}

	appendFrom := req.PrevLogIndex + 1
	newEntries := req.Entries
	if existingLast := n.raftLog.LastIndex(); existingLast >= appendFrom {
		// Drop the overlap that already matches; truncate from the
		// first point of divergence only.
		conflictAt := uint64(0)
		for i, e := range newEntries {
			idx := appendFrom + uint64(i)
			if idx > existingLast {
				break
			}
			if n.raftLog.TermOf(idx) != e.Term {
				conflictAt = idx
				break
			}
		}
		if conflictAt == 0 {
			skip := minU64(uint64(len(newEntries)), existingLast-appendFrom+1)
			newEntries = newEntries[skip:]
			appendFrom += skip
		} else {
			if conflictAt <= n.commitIndex {
				n.shutdown("append would truncate a committed entry")
				return
			}
			// §4.7 step 4: the durable store and the in-memory log
			// truncate together, durable first, so a crash between
			// the two never leaves stale conflicting entries to
			// reload on restart.
			if err := n.io.Truncate(conflictAt); err != nil {
				// Entries still in flight to storage; reject and let
				// the leader retry once they drain.
				result.Rejected = req.PrevLogIndex
				result.LastLogIndex = n.raftLog.LastIndex()
				n.io.Send(req.SrcID, Message{AppendEntriesResult: &result}, func(error) {})
				return
			}
			if err := n.raftLog.Truncate(conflictAt); err != nil {
				result.Rejected = req.PrevLogIndex
				result.LastLogIndex = n.raftLog.LastIndex()
				n.io.Send(req.SrcID, Message{AppendEntriesResult: &result}, func(error) {})
				return
			}
			n.rollbackConfigurationIfTruncated(conflictAt)
			newEntries = newEntries[conflictAt-appendFrom:]
		}
	}

	for _, e := range newEntries {
		n.raftLog.Append(e.Term, e.Type, e.Payload)
		if e.Type == EntryChange {
			n.applyConfigurationEntry(n.raftLog.LastIndex(), e.Payload)
		}
	}

	lastNew := n.raftLog.LastIndex()
	stored := n.raftLog.LastStored()
	if lastNew > stored {
		view := n.raftLog.Acquire(stored+1, lastNew)
		n.io.Append(AppendRequest{PrevIndex: stored, Entries: view.Entries}, func(lastStored uint64, err error) {
			n.raftLog.Release(view.From, view.To)
			if err != nil {
				n.shutdown("follower append failed")
				return
			}
			n.raftLog.SetLastStored(lastStored)
			n.advanceFollowerCommit(req.LeaderCommit)
			result.LastLogIndex = lastStored
			n.io.Send(req.SrcID, Message{AppendEntriesResult: &result}, func(error) {})
		})
		return
	}

	n.advanceFollowerCommit(req.LeaderCommit)
	result.LastLogIndex = lastNew
	n.io.Send(req.SrcID, Message{AppendEntriesResult: &result}, func(error) {})
}

func (n *RaftNode) advanceFollowerCommit(leaderCommit uint64) {
	if leaderCommit <= n.commitIndex {
		return
	}
	newCommit := minU64(leaderCommit, n.raftLog.LastIndex())
	if newCommit <= n.commitIndex {
		return
	}
	n.commitIndex = newCommit
	n.triggerApply()
}

// handleInstallSnapshot replaces the follower's log wholesale with a
// leader-sent snapshot when its tail has fallen further behind than
// the leader's retained trailing entries (§4.1, §4.7).
func (n *RaftNode) handleInstallSnapshot(req *InstallSnapshotRequest) {
	result := InstallSnapshotResult{Term: n.currentTerm, SrcID: n.id}

	if req.Term < n.currentTerm {
		n.io.Send(req.SrcID, Message{InstallSnapshotResult: &result}, func(error) {})
		return
	}
	if n.state != Follower {
		n.becomeFollower()
	}
	n.follower.electionTimerStart = n.io.Time()
	n.follower.currentLeader = req.SrcID

	if req.LastIndex <= n.raftLog.SnapshotIndex() {
		result.LastLogIndex = n.raftLog.LastIndex()
		n.io.Send(req.SrcID, Message{InstallSnapshotResult: &result}, func(error) {})
		return
	}

	n.io.SnapshotPut(SnapshotPutRequest{
		Trailing: n.cfg.SnapshotTrailing,
		Meta: SnapshotMeta{
			LastIndex: req.LastIndex,
			LastTerm:  req.LastTerm,
			ConfIndex: req.ConfIndex,
			Conf:      req.Conf,
		},
		Data: req.Data,
	}, func(err error) {
		if err != nil {
			n.shutdown("snapshot_put failed")
			return
		}
		if err := n.fsm.Restore(req.Data); err != nil {
			n.shutdown("fsm restore failed")
			return
		}
		n.raftLog.Restore(req.LastIndex, req.LastTerm)
		n.raftLog.SetLastStored(req.LastIndex)
		if conf, err := DecodeConfiguration(req.Conf); err == nil {
			n.conf = conf
			n.configurationIndex = req.ConfIndex
		}
		n.commitIndex = req.LastIndex
		n.lastApplied = req.LastIndex
		n.lastApplying = req.LastIndex
		result.LastLogIndex = req.LastIndex
		n.io.Send(req.SrcID, Message{InstallSnapshotResult: &result}, func(error) {})
	})
}
