// Package dubbing rebuilds an audio track interval by interval.
//
// A Pipeline run extracts the source audio, transcribes it, partitions the
// track into a gap-free Timeline of speech and silence, renders every
// interval on a bounded worker pool, and concatenates the rendered clips
// back in Timeline order. Speech intervals are attenuated and overlaid with
// synthesized speech; silence passes through untouched. Each run owns a
// workspace under the configured work directory that is removed when the
// run ends.
package dubbing
