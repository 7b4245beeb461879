// Package logging provides the minimal Logger interface used across chatmesh
// and a slog-backed implementation.
//
// Components accept a Logger through their functional options and default to
// NoOpLogger. ChatLogger adds turn and participant context plus helpers for
// the events worth recording on every turn:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	eng := engine.New(resolver, store, func(o *engine.Options) { o.Logger = logger })
package logging
