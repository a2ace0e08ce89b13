// Package language provides language code normalization for the transcription
// and synthesis backends.
//
// Codes are parsed as BCP 47 tags through golang.org/x/text, with a small set
// of English word forms and ISO 639-2/B aliases layered on top, so WhisperX
// receives ISO 639-1 codes and logs can show display names.
package language
