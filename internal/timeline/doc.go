// Package timeline turns a transcription stream into a gap-free partition of
// the audio track.
//
// Drain collects the lazy segment sequence; Partition walks it once,
// clamping overlapping or out-of-range segments, and emits alternating
// Speech and Silence intervals that cover [0, total) with no gaps and no
// zero-length spans.
package timeline
