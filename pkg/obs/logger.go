// Package obs wires the raft core's injected Logger capability to
// zerolog, the structured logger the rest of this module uses.
package obs

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/vzdtic/raftcore/pkg/raft"
)

// zerologLogger adapts a zerolog.Logger to raft.Logger.
type zerologLogger struct {
	l zerolog.Logger
}

// NewLogger builds a JSON-lines zerolog logger tagged with the
// node id, matching the single-process-per-node deployment model.
func NewLogger(nodeID uint64, w io.Writer) raft.Logger {
	if w == nil {
		w = os.Stderr
	}
	l := zerolog.New(w).With().Timestamp().Uint64("node", nodeID).Logger()
	return zerologLogger{l: l}
}

func (z zerologLogger) Debug() raft.LogEvent { return zerologEvent{e: z.l.Debug()} }
func (z zerologLogger) Info() raft.LogEvent  { return zerologEvent{e: z.l.Info()} }
func (z zerologLogger) Warn() raft.LogEvent  { return zerologEvent{e: z.l.Warn()} }
func (z zerologLogger) Error() raft.LogEvent { return zerologEvent{e: z.l.Error()} }

type zerologEvent struct {
	e *zerolog.Event
}

func (z zerologEvent) Str(key, val string) raft.LogEvent {
	z.e.Str(key, val)
	return z
}

func (z zerologEvent) Uint64(key string, val uint64) raft.LogEvent {
	z.e.Uint64(key, val)
	return z
}

func (z zerologEvent) Int(key string, val int) raft.LogEvent {
	z.e.Int(key, val)
	return z
}

func (z zerologEvent) Bool(key string, val bool) raft.LogEvent {
	z.e.Bool(key, val)
	return z
}

func (z zerologEvent) Err(err error) raft.LogEvent {
	z.e.Err(err)
	return z
}

func (z zerologEvent) Msg(msg string) { z.e.Msg(msg) }
