// Package preflight provides readiness checks for the external binaries,
// services and filesystem paths that dubber depends on.
//
// The run command calls RunAll before starting a pipeline so a missing
// directory or binary fails fast instead of after extraction. The status
// command renders the same results alongside the dependency report.
//
// Each check is gated by configuration; providers that are not selected
// are skipped.
package preflight
