package authgate

import (
	"io"

	"github.com/MrEthical07/authgate/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is one security-relevant outcome: login, logout, refresh failure,
// verification failure, or denial.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink delivers audit events on a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// LogSink writes audit events as structured zap entries.
type LogSink = audit.LogSink

// NewLogSink returns a sink logging to logger at Info level.
func NewLogSink(logger *zap.Logger) *LogSink {
	return audit.NewLogSink(logger)
}

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}
