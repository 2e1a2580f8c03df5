package grpcio

import (
	"testing"

	"github.com/google/uuid"

	"github.com/vzdtic/raftcore/pkg/raft"
)

func TestGobCodecRoundTripsEnvelope(t *testing.T) {
	c := gobCodec{}

	in := Envelope{
		Src:     1,
		Session: uuid.New(),
		Msg: raft.Message{
			AppendEntries: &raft.AppendEntriesRequest{
				Term:         4,
				SrcID:        1,
				PrevLogIndex: 10,
				PrevLogTerm:  3,
				Entries: []raft.Entry{
					{Term: 4, Type: raft.EntryCommand, Payload: []byte("x")},
				},
				LeaderCommit: 9,
			},
		},
	}

	data, err := c.Marshal(&in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out Envelope
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if out.Src != in.Src || out.Session != in.Session {
		t.Fatalf("envelope header mismatch: got %+v, want %+v", out, in)
	}
	if out.Msg.AppendEntries == nil {
		t.Fatal("decoded envelope lost its AppendEntries payload")
	}
	if out.Msg.AppendEntries.Term != 4 || out.Msg.AppendEntries.PrevLogIndex != 10 {
		t.Fatalf("decoded AppendEntries = %+v", out.Msg.AppendEntries)
	}
	if len(out.Msg.AppendEntries.Entries) != 1 || string(out.Msg.AppendEntries.Entries[0].Payload) != "x" {
		t.Fatalf("decoded entries = %+v", out.Msg.AppendEntries.Entries)
	}
}

func TestGobCodecName(t *testing.T) {
	if (gobCodec{}).Name() != "gob" {
		t.Fatal("codec must register under the \"gob\" content-subtype name")
	}
}
