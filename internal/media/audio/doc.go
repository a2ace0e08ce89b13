// Package audio picks the source audio track to dub from a probed container.
//
// Candidates are ranked by whether their language tag matches the expected
// source language, then by the default disposition, then by channel count
// and losslessness. The result carries the audio-relative index used in
// ffmpeg's "0:a:N" stream specifiers.
package audio
