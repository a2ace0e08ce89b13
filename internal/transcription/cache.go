package transcription

import (
	"context"
	"iter"
	"log/slog"

	"dubber/internal/logging"
	"dubber/internal/runstore"
	"dubber/internal/timeline"
)

// TranscriptStore is the subset of runstore.Store used for caching.
type TranscriptStore interface {
	GetTranscript(ctx context.Context, key string) (runstore.CachedTranscript, bool, error)
	PutTranscript(ctx context.Context, entry runstore.CachedTranscript) error
}

// Cached serves transcripts from a TranscriptStore and fills it on misses.
// Cache failures are logged and never fail the transcription.
type Cached struct {
	inner  Provider
	store  TranscriptStore
	model  string
	logger *slog.Logger
}

// NewCached wraps inner with the transcript cache.
func NewCached(inner Provider, store TranscriptStore, model string, logger *slog.Logger) *Cached {
	return &Cached{
		inner:  inner,
		store:  store,
		model:  model,
		logger: logging.NewComponentLogger(logger, "transcript-cache"),
	}
}

// Name reports the wrapped provider's name.
func (c *Cached) Name() string { return c.inner.Name() }

// Transcribe yields cached segments on a hit. On a miss it drains the inner
// provider, stores the result, then yields it.
func (c *Cached) Transcribe(ctx context.Context, req Request) iter.Seq2[timeline.Segment, error] {
	return once(func(yield func(timeline.Segment, error) bool) {
		key, keyErr := runstore.TranscriptKey(req.cacheSource(), c.inner.Name(), c.model, req.Language)
		if keyErr != nil {
			logging.WarnWithContext(c.logger, "transcript cache key unavailable; cache bypassed", "transcript_cache_bypassed",
				logging.Error(keyErr),
				logging.String(logging.FieldImpact, "transcription runs without caching"),
			)
			c.inner.Transcribe(ctx, req)(yield)
			return
		}

		entry, ok, err := c.store.GetTranscript(ctx, key)
		if err != nil {
			logging.WarnWithContext(c.logger, "transcript cache read failed", "transcript_cache_read_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the state directory database"),
			)
		}
		if ok {
			c.logger.Info("transcript cache hit",
				logging.String("source", req.cacheSource()),
				logging.Int("segments", len(entry.Segments)),
				logging.String(logging.FieldEventType, "transcript_cache_hit"),
			)
			fromSlice(entry.Segments)(yield)
			return
		}

		segments, err := timeline.Drain(c.inner.Transcribe(ctx, req))
		if err != nil {
			yield(timeline.Segment{}, err)
			return
		}
		if err := c.store.PutTranscript(ctx, runstore.CachedTranscript{
			Key:        key,
			SourcePath: req.cacheSource(),
			Provider:   c.inner.Name(),
			Language:   req.Language,
			Segments:   segments,
		}); err != nil {
			logging.WarnWithContext(c.logger, "transcript cache write failed", "transcript_cache_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "next run transcribes again"),
			)
		}
		fromSlice(segments)(yield)
	})
}
