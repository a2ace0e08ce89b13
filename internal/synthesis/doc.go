// Package synthesis turns segment text into speech clips.
//
// Two providers are available: a local command engine (espeak-ng or any
// tool that accepts an output path and text) and an OpenAI-compatible
// HTTP speech endpoint with retry and backoff. Clip duration is whatever
// the engine produces; callers decide how to fit it to the source slice.
package synthesis
