// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

// Package logging provides centralized zerolog-based structured logging
// for Trafikinfo.
//
// All components log through this package: the Trafikverket stream
// client, the event pipeline, the HTTP API, and the background workers.
// Output is JSON for production and human-readable console output for
// development.
//
// # Quick Start
//
//	import "github.com/trafikinfo/trafikinfo/internal/logging"
//
//	// Initialize at application startup
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	// Log messages with structured fields
//	logging.Info().Int("county", 14).Msg("Stream connected")
//	logging.Error().Err(err).Msg("Snapshot download failed")
//
//	// Context-aware logging in HTTP handlers
//	logging.Ctx(ctx).Info().Str("event_id", id).Msg("Event stored")
//
// # Component Loggers
//
// Long-lived components create child loggers with a component field:
//
//	log := logging.WithComponent("stream")
//	log.Info().Msg("Reconnecting")
//
// # Best Practices
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
//
// Use structured fields instead of string formatting:
//
//	logging.Info().Str("road", road).Int("count", n).Msg("conditions updated")
//
// # slog Adapter
//
// NewSlogLogger returns an slog.Logger backed by zerolog for libraries
// that require slog, such as the suture supervision tree:
//
//	slogger := logging.NewSlogLogger()
//	handler := (&sutureslog.Handler{Logger: slogger}).MustHook()
//
// # Thread Safety
//
// All exported functions are safe for concurrent use. The global logger
// is protected by sync.RWMutex for configuration changes.
package logging
