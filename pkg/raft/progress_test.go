package raft

import "testing"

func TestBuildProgressArraySeedsSelfMatchIndex(t *testing.T) {
	conf := NewConfiguration()
	conf.Add(1, RoleVoter)
	conf.Add(2, RoleVoter)

	pa := buildProgressArray(conf, 1, 5, 5, 0)

	self := pa.get(1)
	if self == nil {
		t.Fatal("expected a progress slot for the local node")
	}
	if self.MatchIndex != 5 {
		t.Fatalf("expected self match_index to seed at last_stored (5), got %d", self.MatchIndex)
	}
	other := pa.get(2)
	if other == nil || other.MatchIndex != 0 {
		t.Fatalf("expected peer 2 to start at match_index 0, got %+v", other)
	}
}

// P1: match_index < next_index <= last_index+1 holds through the normal
// probe -> pipeline -> update lifecycle.
func TestProgressP1HoldsAcrossTransitions(t *testing.T) {
	p := &Progress{}
	initProgress(p, 1, 10, 0)
	checkP1 := func(lastIndex uint64) {
		t.Helper()
		if !(p.MatchIndex < p.NextIndex && p.NextIndex <= lastIndex+1) {
			t.Fatalf("P1 violated: match_index=%d next_index=%d last_index=%d", p.MatchIndex, p.NextIndex, lastIndex)
		}
	}
	checkP1(10)

	toPipeline(p)
	maybeUpdate(p, 10)
	checkP1(10)

	maybeUpdate(p, 12)
	checkP1(12)
}

// P2: state == SNAPSHOT implies snapshot_index > 0.
func TestProgressP2SnapshotStateImpliesNonZeroIndex(t *testing.T) {
	p := &Progress{}
	initProgress(p, 1, 0, 0)
	toSnapshot(p, 7)
	if p.State == ProgressSnapshot && p.SnapshotIndex == 0 {
		t.Fatal("P2 violated: SNAPSHOT state with snapshot_index == 0")
	}
	abortSnapshot(p)
	if p.State != ProgressProbe || p.SnapshotIndex != 0 {
		t.Fatalf("expected abortSnapshot to return to PROBE with snapshot_index cleared, got state=%v index=%d", p.State, p.SnapshotIndex)
	}
}

// P3: rebuild preserves progress for servers present before and after,
// resets it for new ones, and drops departed ones.
func TestProgressArrayRebuildPreservesSurvivors(t *testing.T) {
	oldConf := NewConfiguration()
	oldConf.Add(1, RoleVoter)
	oldConf.Add(2, RoleVoter)
	pa := buildProgressArray(oldConf, 1, 10, 10, 0)
	if p := pa.get(2); p != nil {
		maybeUpdate(p, 8)
	}

	newConf := NewConfiguration()
	newConf.Add(1, RoleVoter)
	newConf.Add(3, RoleVoter)
	pa.rebuild(oldConf, newConf, 10, 0)

	if pa.get(2) != nil {
		t.Fatal("expected departed server 2 to be dropped from the progress array")
	}
	survivor := pa.get(1)
	if survivor == nil {
		t.Fatal("expected surviving server 1 to remain tracked")
	}
	if survivor.MatchIndex != 10 {
		t.Fatalf("expected server 1's match_index (10) to survive the rebuild, got %d", survivor.MatchIndex)
	}
	fresh := pa.get(3)
	if fresh == nil || fresh.MatchIndex != 0 {
		t.Fatalf("expected newly added server 3 to start fresh at match_index 0, got %+v", fresh)
	}
}

func TestProgressMaybeDecrementFiltersStaleRejections(t *testing.T) {
	p := &Progress{}
	initProgress(p, 1, 10, 0)
	toPipeline(p)
	maybeUpdate(p, 5)
	p.NextIndex = 8

	if maybeDecrement(p, 3, 10) {
		t.Fatal("expected a rejection below match_index to be filtered as stale")
	}
	if !maybeDecrement(p, 7, 10) {
		t.Fatal("expected a fresh rejection above match_index to be accepted")
	}
	if p.State != ProgressProbe {
		t.Fatalf("expected a pipeline rejection to fall back to PROBE, got %v", p.State)
	}
}

func TestUpdateMinMatchExcludesSparesExceptPromotee(t *testing.T) {
	conf := NewConfiguration()
	conf.Add(1, RoleVoter)
	conf.Add(2, RoleVoter)
	conf.Add(3, RoleSpare)
	pa := buildProgressArray(conf, 1, 20, 20, 0)
	if p := pa.get(2); p != nil {
		maybeUpdate(p, 15)
	}
	if p := pa.get(3); p != nil {
		maybeUpdate(p, 1)
	}

	pa.updateMinMatch(conf, 1, 0, 20)
	if pa.slowestPeer == 3 {
		t.Fatal("expected the non-promotee SPARE to be excluded from the slowest-peer computation")
	}

	pa.updateMinMatch(conf, 1, 3, 20)
	if pa.slowestPeer != 3 {
		t.Fatalf("expected the active promotee SPARE to be included once its id matches, got slowest_peer=%d", pa.slowestPeer)
	}
}

func TestIsUpToDateAndShouldReplicate(t *testing.T) {
	p := &Progress{}
	initProgress(p, 1, 5, 0)
	p.NextIndex = 4
	if isUpToDate(p, 5) {
		t.Fatal("a PROBE peer whose next_index trails last_index+1 should not read as up to date")
	}
	p.NextIndex = 6
	if !isUpToDate(p, 5) {
		t.Fatal("expected next_index == last_index+1 to read as up to date")
	}

	if !shouldReplicate(p, 1000, 50, 500, 5, 0) {
		t.Fatal("expected a PROBE peer past its heartbeat timeout to be due for replication")
	}
	if shouldReplicate(p, 10, 50, 500, 5, 0) {
		t.Fatal("expected a PROBE peer within its heartbeat interval to not be due")
	}
}
