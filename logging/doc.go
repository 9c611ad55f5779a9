// Package logging provides a minimal logging interface and adapters for agentpanel.
//
// The Logger interface defines the logging methods (Debug, Info, Warn, Error)
// that the engine, moderator and HTTP server use for observability. This
// package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter and PanelLogger built on Go's structured logging
//   - ZapAdapter wrapping go.uber.org/zap
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	eng := engine.New(agents, synth, func(o *engine.Options) { o.Logger = logger })
//
// The interface is kept small so any structured logger can be plugged in.
package logging
