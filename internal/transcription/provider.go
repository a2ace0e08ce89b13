package transcription

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"sync/atomic"

	"dubber/internal/config"
	"dubber/internal/services"
	"dubber/internal/timeline"
)

// ErrConsumed is yielded when a segment sequence is ranged over twice.
var ErrConsumed = errors.New("transcription sequence already consumed")

const stage = "transcribe"

// Request describes one transcription job.
type Request struct {
	// AudioPath is the canonical audio extracted for this run.
	AudioPath string
	// SourcePath is the user-supplied input the audio was extracted from.
	// It identifies the transcript for caching; AudioPath is used when empty.
	SourcePath string
	Language   string
	// WorkDir receives provider scratch output.
	WorkDir string
}

func (r Request) cacheSource() string {
	if strings.TrimSpace(r.SourcePath) != "" {
		return r.SourcePath
	}
	return r.AudioPath
}

// Provider produces a time-ordered segment sequence for a request.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, req Request) iter.Seq2[timeline.Segment, error]
}

// New builds the provider described by cfg. A non-nil store enables the
// transcript cache when cfg.Transcription.CacheEnabled is set. The file
// provider is never cached: its segments file already is the transcript and
// may change between runs over the same source.
func New(cfg *config.Config, store TranscriptStore, logger *slog.Logger) (Provider, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, stage, "select provider", "Configuration is required", nil)
	}
	var provider Provider
	switch cfg.Transcription.Provider {
	case config.TranscriptionFile:
		provider = NewFile(cfg.Transcription.SegmentsPath)
	case config.TranscriptionWhisperX, "":
		provider = NewWhisperX(WhisperXConfig{
			Model:       cfg.Transcription.Model,
			CUDAEnabled: cfg.Transcription.CUDAEnabled,
			VADMethod:   cfg.Transcription.VADMethod,
			HFToken:     cfg.Transcription.HFToken,
		}, logger)
	default:
		return nil, services.Wrap(services.ErrConfiguration, stage, "select provider",
			"Unknown transcription provider "+cfg.Transcription.Provider, nil)
	}
	if cfg.Transcription.CacheEnabled && store != nil && cfg.Transcription.Provider != config.TranscriptionFile {
		provider = NewCached(provider, store, cfg.Transcription.Model, logger)
	}
	return provider, nil
}

// once wraps seq so that it can be ranged over a single time.
func once(seq iter.Seq2[timeline.Segment, error]) iter.Seq2[timeline.Segment, error] {
	var used atomic.Bool
	return func(yield func(timeline.Segment, error) bool) {
		if used.Swap(true) {
			yield(timeline.Segment{}, ErrConsumed)
			return
		}
		seq(yield)
	}
}

// failed returns a sequence that yields err once.
func failed(err error) iter.Seq2[timeline.Segment, error] {
	return func(yield func(timeline.Segment, error) bool) {
		yield(timeline.Segment{}, err)
	}
}

// fromSlice yields segments in order, stopping early when the consumer does.
func fromSlice(segments []timeline.Segment) iter.Seq2[timeline.Segment, error] {
	return func(yield func(timeline.Segment, error) bool) {
		for _, seg := range segments {
			if !yield(seg, nil) {
				return
			}
		}
	}
}
