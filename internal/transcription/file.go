package transcription

import (
	"context"
	"iter"
	"path/filepath"
	"strings"

	"dubber/internal/services"
	"dubber/internal/subtitles"
	"dubber/internal/timeline"
)

// File serves segments from a prepared WhisperX JSON or SRT file.
type File struct {
	path string
}

// NewFile creates a provider reading path.
func NewFile(path string) *File {
	return &File{path: strings.TrimSpace(path)}
}

// Name identifies the provider.
func (f *File) Name() string { return "file" }

// Path returns the segment file location.
func (f *File) Path() string { return f.path }

// Transcribe reads the segment file when the sequence is first ranged over.
// The request's audio is ignored.
func (f *File) Transcribe(ctx context.Context, _ Request) iter.Seq2[timeline.Segment, error] {
	return once(func(yield func(timeline.Segment, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(timeline.Segment{}, err)
			return
		}
		segments, err := f.load()
		if err != nil {
			yield(timeline.Segment{}, err)
			return
		}
		fromSlice(segments)(yield)
	})
}

func (f *File) load() ([]timeline.Segment, error) {
	if f.path == "" {
		return nil, services.Wrap(services.ErrConfiguration, stage, "segment file", "Segment file path is required", nil)
	}
	var (
		segments []timeline.Segment
		err      error
	)
	switch strings.ToLower(filepath.Ext(f.path)) {
	case ".srt":
		var cues []subtitles.Cue
		cues, err = subtitles.ParseFile(f.path)
		segments = subtitles.Segments(cues)
	default:
		segments, err = LoadWhisperXJSON(f.path)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, stage, "segment file", "Failed to read "+f.path, err)
	}
	return segments, nil
}
