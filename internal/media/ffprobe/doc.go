// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Result carries the parsed streams and container format. Prober runs the
// binary through a swappable runner so callers can substitute canned JSON in
// tests. AudioFormat captures the codec, rate, and channel triple that the
// dubbing assembler compares before stream-copy concatenation.
package ffprobe
