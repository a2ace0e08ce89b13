package dubbing

import (
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"dubber/internal/logging"
	"dubber/internal/media/ffmpeg"
	"dubber/internal/media/ffprobe"
	"dubber/internal/services"
	"dubber/internal/synthesis"
	"dubber/internal/timeline"
)

// Media is the set of media transforms the pipeline needs. *ffmpeg.Tool
// implements it.
type Media interface {
	ExtractAudio(ctx context.Context, source, mapSpec, dest string) error
	ExtractSegment(ctx context.Context, source string, start, end float64, dest string) error
	AdjustVolume(ctx context.Context, source string, gain float64, dest string) error
	Overlay(ctx context.Context, background, foreground, dest string, opts ffmpeg.OverlayOptions) error
	Concatenate(ctx context.Context, clips []string, listPath, dest string) error
	Remux(ctx context.Context, video, audio, dest, audioCodec string) error
}

// Prober inspects media files. *ffprobe.Prober implements it.
type Prober interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// ProcessedClip is the rendered output of one interval.
type ProcessedClip struct {
	Interval timeline.Interval
	Path     string
}

// ProcessorOptions tunes speech rendering.
type ProcessorOptions struct {
	// Gain is the linear factor applied to the original speech.
	Gain float64
	// Policy is the ffmpeg mix policy.
	Policy string
	// MaxTempo caps the stretch policy speed-up.
	MaxTempo float64
}

// Processor renders single intervals.
type Processor struct {
	media  Media
	synth  synthesis.Provider
	prober Prober
	opts   ProcessorOptions
	logger *slog.Logger
}

// NewProcessor builds a Processor. prober is only consulted by the stretch
// policy.
func NewProcessor(media Media, synth synthesis.Provider, prober Prober, opts ProcessorOptions, logger *slog.Logger) *Processor {
	if strings.TrimSpace(opts.Policy) == "" {
		opts.Policy = ffmpeg.PolicyFirst
	}
	return &Processor{
		media:  media,
		synth:  synth,
		prober: prober,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "processor"),
	}
}

// Process renders iv into the run's clip directory. Silence is copied out
// of the source audio; speech is attenuated and overlaid with synthesized
// speech for its text. Intermediates are removed whether or not rendering
// succeeds.
func (p *Processor) Process(ctx context.Context, run *Run, iv timeline.Interval) (ProcessedClip, error) {
	ctx = services.WithInterval(ctx, iv.Index)
	logger := logging.WithContext(ctx, p.logger)

	clip := ProcessedClip{Interval: iv, Path: run.ClipPath(iv.Index)}
	if err := os.MkdirAll(filepath.Dir(clip.Path), 0o755); err != nil {
		return ProcessedClip{}, services.Wrap(services.ErrExternalTool, "process", "prepare clip", "Failed to create clip directory", err)
	}

	if iv.Kind == timeline.Silence {
		if err := p.media.ExtractSegment(ctx, run.SourceAudio, iv.Start, iv.End, clip.Path); err != nil {
			return ProcessedClip{}, err
		}
		logger.Debug("silence passed through",
			logging.Float64("start", iv.Start),
			logging.Float64("end", iv.End),
		)
		return clip, nil
	}

	dir, err := run.IntervalDir(iv.Index)
	if err != nil {
		return ProcessedClip{}, services.Wrap(services.ErrExternalTool, "process", "prepare interval", "Failed to create interval directory", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logging.WarnWithContext(logger, "interval cleanup failed", "interval_cleanup_failed",
				logging.String("dir", dir),
				logging.Error(err),
				logging.String(logging.FieldImpact, "intermediates remain until the workspace is removed"),
			)
		}
	}()

	if err := p.renderSpeech(ctx, logger, run, iv, dir, clip.Path); err != nil {
		_ = os.Remove(clip.Path)
		return ProcessedClip{}, err
	}
	return clip, nil
}

func (p *Processor) renderSpeech(ctx context.Context, logger *slog.Logger, run *Run, iv timeline.Interval, dir, dest string) error {
	slice := filepath.Join(dir, "slice.wav")
	if err := p.media.ExtractSegment(services.WithStage(ctx, "extract"), run.SourceAudio, iv.Start, iv.End, slice); err != nil {
		return err
	}

	text := strings.TrimSpace(iv.Text())
	if text == "" {
		logger.Debug("blank speech attenuated without synthesis",
			logging.Args(logging.DecisionAttrs("synthesis", "skipped", "blank text")...)...,
		)
		return p.media.AdjustVolume(services.WithStage(ctx, "attenuate"), slice, p.opts.Gain, dest)
	}

	attenuated := filepath.Join(dir, "attenuated.wav")
	if err := p.media.AdjustVolume(services.WithStage(ctx, "attenuate"), slice, p.opts.Gain, attenuated); err != nil {
		return err
	}

	speech := filepath.Join(dir, "speech.wav")
	if err := p.synth.Synthesize(services.WithStage(ctx, "synthesize"), text, speech); err != nil {
		return err
	}

	opts := ffmpeg.OverlayOptions{Policy: p.opts.Policy}
	if opts.Policy == ffmpeg.PolicyStretch {
		tempo, err := p.stretchTempo(ctx, speech, iv.Duration())
		if err != nil {
			return err
		}
		opts.Tempo = tempo
		if tempo > 1 {
			logger.Debug("speech compressed to fit interval",
				logging.Args(append(logging.DecisionAttrs("stretch", "applied", "synthesized speech longer than slice"),
					logging.Float64("tempo", tempo),
				)...)...,
			)
		}
	}
	return p.media.Overlay(services.WithStage(ctx, "mix"), attenuated, speech, dest, opts)
}

func (p *Processor) stretchTempo(ctx context.Context, speech string, slice float64) (float64, error) {
	if p.prober == nil {
		return 1, nil
	}
	probe, err := p.prober.Inspect(ctx, speech)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "mix", "probe speech", "Failed to probe synthesized speech", err)
	}
	synthesized := probe.DurationSeconds()
	if math.IsNaN(synthesized) {
		return 1, nil
	}
	return ffmpeg.StretchTempo(synthesized, slice, p.opts.MaxTempo), nil
}
