// Package subtitles renders, writes, parses, and validates SRT subtitle
// files.
//
// Cues are produced one per transcription segment using the original
// timestamps, numbered from 1, with times truncated to the millisecond.
// Parse accepts user-supplied SRT files (dropping advertisement cues) so
// they can stand in for a transcription pass.
package subtitles
