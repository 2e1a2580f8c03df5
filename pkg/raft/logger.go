package raft

// Logger is the structured-logging capability the core is given at
// construction, mirroring how IO and FSM are injected rather than
// imported. pkg/obs provides a zerolog-backed implementation; tests use
// a no-op one.
type Logger interface {
	Debug() LogEvent
	Info() LogEvent
	Warn() LogEvent
	Error() LogEvent
}

// LogEvent is a chainable single log line builder, matching zerolog's
// own Event API so the zerolog adapter in pkg/obs is a near-direct
// passthrough.
type LogEvent interface {
	Str(key, val string) LogEvent
	Uint64(key string, val uint64) LogEvent
	Int(key string, val int) LogEvent
	Bool(key string, val bool) LogEvent
	Err(err error) LogEvent
	Msg(msg string)
}

type noopLogger struct{}

// NewNoopLogger returns a Logger that discards everything, used as the
// default when a node is constructed without an explicit one.
func NewNoopLogger() Logger { return noopLogger{} }

func (noopLogger) Debug() LogEvent { return noopEvent{} }
func (noopLogger) Info() LogEvent  { return noopEvent{} }
func (noopLogger) Warn() LogEvent  { return noopEvent{} }
func (noopLogger) Error() LogEvent { return noopEvent{} }

type noopEvent struct{}

func (noopEvent) Str(string, string) LogEvent    { return noopEvent{} }
func (noopEvent) Uint64(string, uint64) LogEvent { return noopEvent{} }
func (noopEvent) Int(string, int) LogEvent       { return noopEvent{} }
func (noopEvent) Bool(string, bool) LogEvent     { return noopEvent{} }
func (noopEvent) Err(error) LogEvent             { return noopEvent{} }
func (noopEvent) Msg(string)                     {}
