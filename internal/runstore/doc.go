// Package runstore persists the run ledger and transcript cache in SQLite.
//
// Each pipeline invocation records a row in runs (running, then succeeded
// or failed with the error message). The transcripts table caches decoded
// segment lists keyed by a hash of the source file identity and the
// transcription settings, so re-running against an unchanged input skips
// the speech-to-text pass. Writes retry briefly on SQLITE_BUSY because
// concurrent CLI invocations share one database.
package runstore
