// Package main hosts the dubber CLI entrypoint and command graph.
//
// The Cobra-based command tree resolves configuration, builds the logger and
// run store, and hands work to the dubbing pipeline. `run` dubs a file,
// `plan` prints the speech/silence timeline without rendering it, `history`
// lists recorded runs, and `status` reports dependency and directory
// readiness.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
