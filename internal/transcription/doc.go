// Package transcription produces speech segments from audio.
//
// A Provider returns a lazy iter.Seq2 of timeline.Segment values. Nothing
// runs until the sequence is ranged over, and each sequence can be consumed
// once; a second range yields ErrConsumed. Implementations:
//
//   - WhisperX runs the whisperx CLI through uvx and reads its JSON output.
//   - File reads a WhisperX-style JSON or SRT file prepared ahead of time.
//   - Cached wraps another provider with the run store transcript cache.
package transcription
