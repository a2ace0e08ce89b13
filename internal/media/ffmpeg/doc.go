// Package ffmpeg wraps the ffmpeg operations the dubbing pipeline needs:
// canonical audio extraction, sample-accurate slicing, volume scaling,
// overlay mixing under a mix policy, stream-copy concatenation, and video
// remuxing.
//
// Every operation runs through an injectable CommandRunner so tests can
// capture argv and fabricate outputs. Operations that produce final
// artifacts (Concatenate, Remux) write to a hidden temporary file beside the
// destination and rename it into place, so a failed call never leaves a
// partial destination behind.
package ffmpeg
