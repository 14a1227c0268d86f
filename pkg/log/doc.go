// Package log provides the broker's structured logging facade and utilities.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Internally it is backed by Go's
// standard library slog via a custom handler that preserves our existing
// formatter/hooks/outputs pipeline. This allows adoption of the slog ecosystem
// while keeping consistent output and behavior across the codebase.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("session"), log.Str("session", id))
//	l.Info("queue defined", log.Str("queue", "ORDERS"), log.Int("threshold", 1000))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config, supporting JSON
// or text formatting and multiple outputs (console, file, null). RedactKeys
// masks sensitive fields (passwords) and sampling thins out repetitive entries.
//
// # Interop
//
// To integrate with libraries expecting *log.Logger (Pebble), use ToStdLogger
// or RedirectStdLog.
package log
