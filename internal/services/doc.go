// Package services defines shared utilities consumed by the dubbing pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, interval indexes, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that separate provider
//     failures, media tool failures, validation and configuration problems.
//
// Use these helpers when wiring new pipeline steps so operational behaviour
// (error classification, observability) stays uniform across the run.
package services
