// Package audit implements async event dispatching for security-relevant operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON lines, zap log, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//     Drops are counted per event type and logged with the session fingerprint;
//     a panicking sink is recovered and logged.
//   - [Event]: structured audit record with id, type, user, session fingerprint, IP, path.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; that responsibility belongs to the Engine.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import authgate or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
