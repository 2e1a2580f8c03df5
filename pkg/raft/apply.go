package raft

// triggerApply dequeues (last_applied, commit_index] in batches of at
// most cfg.ApplyBatchSize, applying each entry's effect and firing any
// client callback registered against its index (§4.8).
func (n *RaftNode) triggerApply() {
	for n.lastApplied < n.commitIndex {
		n.lastApplying = n.lastApplied
		batchEnd := minU64(n.commitIndex, n.lastApplied+uint64(n.cfg.ApplyBatchSize))
		for idx := n.lastApplied + 1; idx <= batchEnd; idx++ {
			n.applyOne(idx)
			n.lastApplied = idx
		}
		n.lastApplying = n.lastApplied
	}
	n.maybeSnapshot()
}

func (n *RaftNode) applyOne(index uint64) {
	entry, ok := n.raftLog.Get(index)
	if !ok {
		// Already snapshotted past this index with no pending callback
		// possible (the snapshot's own commit already fired it).
		return
	}

	switch entry.Type {
	case EntryBarrier:
		n.registry.Fire(index, RequestBarrier, ApplyResult{Index: index})
	case EntryChange:
		n.commitConfigurationEntry(index, entry.Payload)
		n.registry.Fire(index, RequestChange, ApplyResult{Index: index})
	default:
		result, err := n.fsm.Apply(entry)
		n.registry.Fire(index, RequestApply, ApplyResult{Index: index, Result: result, Err: err})
	}
}

// applyConfigurationEntry installs a CHANGE entry's encoded
// Configuration optimistically as soon as it is appended (a node always
// uses the latest configuration in its log, committed or not), tracking
// the uncommitted index so a later truncation can detect it must roll
// the configuration back too.
func (n *RaftNode) applyConfigurationEntry(index uint64, payload []byte) {
	conf, err := DecodeConfiguration(payload)
	if err != nil {
		n.log.Error().Err(err).Uint64("index", index).Msg("raft: malformed configuration entry")
		return
	}
	old := n.conf
	n.conf = conf
	n.configurationPrev = old
	n.configurationUncommittedIndex = index
	if n.leader != nil {
		n.leader.progress.rebuild(old, conf, n.raftLog.LastIndex(), n.io.Time())
	}
}

// rollbackConfigurationIfTruncated undoes an optimistically-applied CHANGE
// entry when a log truncation removes it before it committed, symmetric
// to applyConfigurationEntry: a conflictAt at or before the pending
// CHANGE's index means that entry (and the configuration it installed)
// never survives, so the prior configuration is restored.
func (n *RaftNode) rollbackConfigurationIfTruncated(conflictAt uint64) {
	if n.configurationUncommittedIndex == 0 || conflictAt > n.configurationUncommittedIndex {
		return
	}
	if n.configurationPrev != nil {
		n.conf = n.configurationPrev
	}
	n.configurationPrev = nil
	n.configurationUncommittedIndex = 0
}

// commitConfigurationEntry runs once a CHANGE entry has committed and
// been dequeued for apply: it clears the pending marker and, if this
// node itself was dropped from the configuration, steps down and marks
// itself removed so the driving caller knows to stop serving traffic.
func (n *RaftNode) commitConfigurationEntry(index uint64, payload []byte) {
	if n.configurationUncommittedIndex == index {
		n.configurationUncommittedIndex = 0
	}
	n.configurationIndex = index

	conf, err := DecodeConfiguration(payload)
	if err != nil {
		return
	}
	if _, present := conf.Get(n.id); !present {
		n.removed = true
		if n.state == Leader {
			n.becomeFollower()
		}
	}
}

// maybeSnapshot implements the snapshot-after-apply threshold (§4.8):
// once enough entries have applied past the current anchor, ask the
// FSM for a serialized snapshot and hand it to IO, trimming the log.
func (n *RaftNode) maybeSnapshot() {
	if n.cfg.SnapshotThreshold == 0 {
		return
	}
	if n.lastApplied-n.raftLog.SnapshotIndex() < n.cfg.SnapshotThreshold {
		return
	}
	data, err := n.fsm.Snapshot()
	if err != nil {
		n.log.Warn().Err(err).Msg("raft: fsm snapshot failed, will retry at next threshold crossing")
		return
	}
	at := n.lastApplied
	atTerm := n.raftLog.TermOf(at)
	meta := SnapshotMeta{
		LastIndex: at,
		LastTerm:  atTerm,
		ConfIndex: n.configurationIndex,
		Conf:      n.conf.Encode(),
		Threshold: n.cfg.SnapshotThreshold,
		Trailing:  n.cfg.SnapshotTrailing,
	}
	n.io.SnapshotPut(SnapshotPutRequest{Trailing: n.cfg.SnapshotTrailing, Meta: meta, Data: data}, func(err error) {
		if err != nil {
			n.log.Warn().Err(err).Msg("raft: snapshot_put failed, will retry at next threshold crossing")
			return
		}
		n.raftLog.Snapshot(at, n.cfg.SnapshotTrailing)
	})
}
