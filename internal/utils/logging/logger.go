// Package logging defines the small logging surface the deployment
// libraries write to. Programs decide the sink: the bootstrap passes a
// NopLogger, the migration helper a stderr JSON writer, tests a buffer.
package logging

// Fields carries structured context for one entry. Values must be
// JSON-serializable.
type Fields map[string]any

// Logger is the leveled interface library code logs through. Messages are
// fixed strings; anything variable goes into Fields.
type Logger interface {
	Debug(msg string, ctx Fields)
	Info(msg string, ctx Fields)
	Warn(msg string, ctx Fields)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}

func (NopLogger) Info(string, Fields) {}

func (NopLogger) Warn(string, Fields) {}
