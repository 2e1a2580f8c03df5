package raft

// progressArray is the leader's per-peer replication bookkeeping,
// ported method-for-method from original_source/src/progress.c (P1-P3,
// §4.3).
type progressArray struct {
	items        []Progress
	minMatch     uint64
	slowestPeer  uint64
}

func initProgress(p *Progress, id uint64, lastIndex uint64, now int64) {
	*p = Progress{
		ID:             id,
		NextIndex:      lastIndex + 1,
		MatchIndex:     0,
		SnapshotIndex:  0,
		State:          ProgressProbe,
		LastSend:       0,
		SnapshotLastSend: 0,
		RecentRecv:     false,
		RecentRecvTime: now,
	}
}

// buildProgressArray initializes one Progress per server in conf,
// matching progressBuildArray: the local node's own slot gets
// match_index = lastStored since it trivially "replicates" to itself.
func buildProgressArray(conf *Configuration, selfID uint64, lastIndex, lastStored uint64, now int64) *progressArray {
	pa := &progressArray{items: make([]Progress, len(conf.Servers))}
	for i, s := range conf.Servers {
		initProgress(&pa.items[i], s.ID, lastIndex, now)
		if s.ID == selfID {
			pa.items[i].MatchIndex = lastStored
		}
	}
	return pa
}

// rebuildProgressArray is progressRebuildArray: preserves replication
// state for servers present in both the current and new configuration,
// resets it for newly added ones, and drops departed ones (P3).
func (pa *progressArray) rebuild(oldConf, newConf *Configuration, lastIndex uint64, now int64) {
	next := make([]Progress, len(newConf.Servers))
	for j, s := range newConf.Servers {
		oi := oldConf.IndexOf(s.ID)
		if oi < len(oldConf.Servers) {
			// find its slot in pa.items by id, not by position: pa.items
			// is not guaranteed to line up with oldConf slot for slot.
			for _, p := range pa.items {
				if p.ID == s.ID {
					next[j] = p
					break
				}
			}
		} else {
			initProgress(&next[j], s.ID, lastIndex, now)
		}
	}
	pa.items = next
}

func (pa *progressArray) indexOf(id uint64) int {
	for i, p := range pa.items {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (pa *progressArray) get(id uint64) *Progress {
	i := pa.indexOf(id)
	if i < 0 {
		return nil
	}
	return &pa.items[i]
}

// isUpToDate is progressIsUpToDate.
func isUpToDate(p *Progress, lastIndex uint64) bool {
	return p.NextIndex == lastIndex+1
}

// shouldPipeMore is progressShouldPipeMore.
func shouldPipeMore(p *Progress, threshold uint64) bool {
	if threshold == 0 {
		return true
	}
	if p.NextIndex <= p.MatchIndex {
		return true
	}
	size := p.NextIndex - p.MatchIndex - 1
	return size < threshold
}

// shouldReplicate is progressShouldReplicate: decides whether the
// leader has anything to send peer p right now.
func shouldReplicate(p *Progress, now int64, heartbeatTimeout, installSnapshotTimeout int64, lastIndex uint64, inflightThreshold uint64) bool {
	needsHeartbeat := now-p.LastSend >= heartbeatTimeout

	switch p.State {
	case ProgressSnapshot:
		if now-p.SnapshotLastSend >= installSnapshotTimeout {
			abortSnapshot(p)
			return true
		}
		return needsHeartbeat
	case ProgressProbe:
		return needsHeartbeat
	case ProgressPipeline:
		return (!isUpToDate(p, lastIndex) && shouldPipeMore(p, inflightThreshold)) || needsHeartbeat
	default:
		return false
	}
}

func nextIndexOf(p *Progress) uint64  { return p.NextIndex }
func matchIndexOf(p *Progress) uint64 { return p.MatchIndex }

func updateLastSend(p *Progress, now int64)         { p.LastSend = now }
func updateSnapshotLastSend(p *Progress, now int64) { p.SnapshotLastSend = now }

// resetRecentRecv is progressResetRecentRecv: returns the previous value
// and clears the flag, used by the check-quorum tick (§4.11).
func resetRecentRecv(p *Progress) bool {
	prev := p.RecentRecv
	p.RecentRecv = false
	return prev
}

func markRecentRecv(p *Progress, now int64) {
	p.RecentRecv = true
	p.RecentRecvTime = now
}

// toSnapshot is progressToSnapshot: the leader discovered the follower
// needs entries older than the current snapshot anchor.
func toSnapshot(p *Progress, snapshotIndex uint64) {
	p.State = ProgressSnapshot
	p.SnapshotIndex = snapshotIndex
}

// abortSnapshot is progressAbortSnapshot.
func abortSnapshot(p *Progress) {
	p.SnapshotIndex = 0
	p.State = ProgressProbe
}

// snapshotDone is progressSnapshotDone.
func snapshotDone(p *Progress) bool {
	return p.MatchIndex >= p.SnapshotIndex
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// maybeDecrement is progressMaybeDecrement: the stale-rejection filter
// (§4.3). Returns whether the rejection was accepted as fresh.
func maybeDecrement(p *Progress, rejected, lastLogIndex uint64) bool {
	switch p.State {
	case ProgressSnapshot:
		if rejected != p.SnapshotIndex {
			return false
		}
		abortSnapshot(p)
		return true
	case ProgressPipeline:
		if rejected <= p.MatchIndex {
			return false
		}
		p.NextIndex = minU64(rejected, p.MatchIndex+1)
		toProbe(p)
		return true
	default: // ProgressProbe
		if rejected != p.NextIndex-1 {
			return false
		}
		p.NextIndex = minU64(rejected, lastLogIndex+1)
		return true
	}
}

// optimisticNextIndex is progressOptimisticNextIndex, used by PIPELINE
// sends that advance next_index before the reply arrives.
func optimisticNextIndex(p *Progress, next uint64) { p.NextIndex = next }

// maybeUpdate is progressMaybeUpdate: advances match_index upward on a
// successful reply, pushing next_index along if it had fallen behind.
// Returns whether match_index actually advanced.
func maybeUpdate(p *Progress, lastIndex uint64) bool {
	updated := false
	if p.MatchIndex < lastIndex {
		p.MatchIndex = lastIndex
		updated = true
	}
	if p.NextIndex < lastIndex+1 {
		p.NextIndex = lastIndex + 1
	}
	return updated
}

// toProbe is progressToProbe: transitions out of SNAPSHOT (probing from
// just past the installed snapshot) or out of a PIPELINE rejection
// (probing from match_index+1).
func toProbe(p *Progress) {
	if p.State == ProgressSnapshot {
		p.NextIndex = maxU64(p.MatchIndex+1, p.SnapshotIndex)
		p.SnapshotIndex = 0
	} else {
		p.NextIndex = p.MatchIndex + 1
	}
	p.State = ProgressProbe
}

// toPipeline is progressToPipeline: PROBE -> PIPELINE on first success.
func toPipeline(p *Progress) { p.State = ProgressPipeline }

// updateMinMatch is progressUpdateMinMatch, used by the (optional)
// synchronous-replication slowest-peer tracking some catch-up policies
// consult.
func (pa *progressArray) updateMinMatch(conf *Configuration, selfID, promoteeID uint64, lastIndex uint64) {
	tmp := lastIndex
	var id uint64
	for i, s := range conf.Servers {
		if s.Role == RoleSpare && s.ID != promoteeID {
			continue
		}
		p := &pa.items[i]
		if p.MatchIndex <= tmp {
			tmp = p.MatchIndex
			id = s.ID
		}
	}
	pa.minMatch = tmp
	pa.slowestPeer = id
}
