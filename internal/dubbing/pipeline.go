package dubbing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"dubber/internal/config"
	"dubber/internal/logging"
	"dubber/internal/media/audio"
	"dubber/internal/media/ffmpeg"
	"dubber/internal/media/ffprobe"
	"dubber/internal/runstore"
	"dubber/internal/services"
	"dubber/internal/subtitles"
	"dubber/internal/synthesis"
	"dubber/internal/timeline"
	"dubber/internal/transcription"
)

// RunStore records run lifecycle. *runstore.Store implements it.
type RunStore interface {
	BeginRun(ctx context.Context, run runstore.Run) error
	FinishRun(ctx context.Context, id string, outcome runstore.Outcome) error
}

// Dependencies are the collaborators a Pipeline drives. Store is optional.
type Dependencies struct {
	Media       Media
	Prober      Prober
	Transcriber transcription.Provider
	Synthesizer synthesis.Provider
	Store       RunStore
}

// Request names the input video and the requested outputs.
type Request struct {
	InputPath  string
	OutputPath string
	// SubtitlePath overrides the derived <base>.srt location.
	SubtitlePath string
}

// Result describes a finished run.
type Result struct {
	RunID        string
	AudioPath    string
	VideoPath    string
	SubtitlePath string
	Timeline     timeline.Timeline
	Segments     []timeline.Segment
	// Duration is the source audio length in seconds.
	Duration float64
	// AssembledDuration is the probed length of the dubbed track, or zero
	// when it could not be probed.
	AssembledDuration float64
	// SubtitleIssues lists validation findings for the written subtitles.
	SubtitleIssues []string
}

// Plan is the Timeline computed for an input without rendering it.
type Plan struct {
	RunID    string
	Track    audio.Selection
	Duration float64
	Segments []timeline.Segment
	Timeline timeline.Timeline
}

// Pipeline orchestrates dubbing runs.
type Pipeline struct {
	cfg       *config.Config
	deps      Dependencies
	processor *Processor
	assembler *Assembler
	logger    *slog.Logger
}

// NewPipeline wires a Pipeline from explicit dependencies.
func NewPipeline(cfg *config.Config, deps Dependencies, logger *slog.Logger) *Pipeline {
	logger = logging.NewComponentLogger(logger, "pipeline")
	return &Pipeline{
		cfg:  cfg,
		deps: deps,
		processor: NewProcessor(deps.Media, deps.Synthesizer, deps.Prober, ProcessorOptions{
			Gain:     cfg.Dubbing.Gain,
			Policy:   cfg.Dubbing.MixPolicy,
			MaxTempo: cfg.Dubbing.MaxTempo,
		}, logger),
		assembler: NewAssembler(deps.Media, deps.Prober, logger),
		logger:    logger,
	}
}

// NewFromConfig builds the production Pipeline: ffmpeg and ffprobe from
// cfg.Media, the configured transcription and synthesis providers, and
// store for run records and the transcript cache. store may be nil.
func NewFromConfig(cfg *config.Config, store *runstore.Store, logger *slog.Logger) (*Pipeline, error) {
	var (
		transcripts transcription.TranscriptStore
		runs        RunStore
	)
	if store != nil {
		transcripts = store
		runs = store
	}
	transcriber, err := transcription.New(cfg, transcripts, logger)
	if err != nil {
		return nil, err
	}
	synth, err := synthesis.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewPipeline(cfg, Dependencies{
		Media:       ffmpeg.New(cfg.FFmpegBinary(), logger),
		Prober:      ffprobe.NewProber(cfg.FFprobeBinary()),
		Transcriber: transcriber,
		Synthesizer: synth,
		Store:       runs,
	}, logger), nil
}

// Run dubs req.InputPath. The output location is locked for the duration
// of the run; a second run against the same output fails with ErrBusy.
func (p *Pipeline) Run(ctx context.Context, req Request) (res Result, err error) {
	if err := validateInput(req.InputPath); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "run", "validate request", "Output path is required", nil)
	}
	outputs := DeriveOutputs(req.OutputPath, req.SubtitlePath)
	if err := os.MkdirAll(filepath.Dir(outputs.Audio), 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "run", "prepare output", "Failed to create output directory", err)
	}

	lock := flock.New(outputs.Lock)
	locked, err := lock.TryLock()
	if err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "run", "lock output", "Failed to acquire output lock", err)
	}
	if !locked {
		return Result{}, services.Wrap(services.ErrBusy, "run", "lock output",
			fmt.Sprintf("Another run is writing %s", outputs.Audio), nil)
	}
	defer func() { _ = lock.Unlock() }()

	if timeout := p.cfg.RunTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	run, err := NewRun(p.cfg.Paths.WorkDir, p.cfg.Output.KeepWorkspace, p.logger)
	if err != nil {
		return Result{}, err
	}
	defer run.Close()
	ctx = run.Context(ctx)
	logger := logging.WithContext(ctx, p.logger)
	started := time.Now()
	res.RunID = run.ID

	logger.Info("dubbing run started",
		logging.String("input", req.InputPath),
		logging.String("output", outputs.Audio),
		logging.String("mix_policy", p.cfg.Dubbing.MixPolicy),
		logging.String(logging.FieldEventType, "run_started"),
	)
	if p.deps.Store != nil {
		if err := p.deps.Store.BeginRun(ctx, runstore.Run{
			ID:         run.ID,
			InputPath:  req.InputPath,
			OutputPath: req.OutputPath,
			MixPolicy:  p.cfg.Dubbing.MixPolicy,
			StartedAt:  started,
		}); err != nil {
			logging.WarnWithContext(logger, "run record not created", "run_record_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "run missing from history"),
			)
		}
	}
	defer func() {
		err = normalizeDeadline(ctx, err)
		p.finish(ctx, logger, run, res, err, started)
	}()

	plan, probe, err := p.prepare(ctx, run, req.InputPath)
	if err != nil {
		return res, err
	}
	res.Timeline, res.Segments, res.Duration = plan.Timeline, plan.Segments, plan.Duration

	clips, err := p.processAll(ctx, run, plan.Timeline)
	if err != nil {
		return res, err
	}
	if err := p.assembler.Assemble(ctx, run, clips, outputs.Audio); err != nil {
		return res, err
	}
	res.AudioPath = outputs.Audio
	res.AssembledDuration = p.checkAssembled(ctx, logger, outputs.Audio, plan.Duration)

	if p.cfg.Output.Remux && outputs.Video != "" {
		if probe.VideoStreamCount() == 0 {
			logger.Info("remux skipped",
				logging.Args(logging.DecisionAttrs("remux", "skipped", "input has no video stream")...)...,
			)
		} else {
			remuxCtx := services.WithStage(ctx, "remux")
			if err := p.deps.Media.Remux(remuxCtx, req.InputPath, outputs.Audio, outputs.Video, p.cfg.Output.AudioCodec); err != nil {
				return res, err
			}
			res.VideoPath = outputs.Video
		}
	}

	if p.cfg.Output.Subtitles {
		issues, err := p.writeSubtitles(ctx, logger, outputs.Subtitles, plan.Segments, plan.Duration)
		if err != nil {
			return res, err
		}
		res.SubtitlePath = outputs.Subtitles
		res.SubtitleIssues = issues
	}
	return res, nil
}

// Plan extracts, transcribes and partitions input without rendering.
func (p *Pipeline) Plan(ctx context.Context, input string) (Plan, error) {
	if err := validateInput(input); err != nil {
		return Plan{}, err
	}
	run, err := NewRun(p.cfg.Paths.WorkDir, p.cfg.Output.KeepWorkspace, p.logger)
	if err != nil {
		return Plan{}, err
	}
	defer run.Close()
	plan, _, err := p.prepare(run.Context(ctx), run, input)
	return plan, normalizeDeadline(ctx, err)
}

func (p *Pipeline) prepare(ctx context.Context, run *Run, input string) (Plan, ffprobe.Result, error) {
	plan := Plan{RunID: run.ID}
	logger := logging.WithContext(ctx, p.logger)

	extractCtx := services.WithStage(ctx, "extract")
	probe, err := p.deps.Prober.Inspect(extractCtx, input)
	if err != nil {
		return plan, probe, services.Wrap(services.ErrExternalTool, "extract", "probe input", "Failed to probe input", err)
	}
	track := audio.Select(probe.Streams, p.cfg.Transcription.Language)
	if !track.Found() {
		return plan, probe, services.Wrap(services.ErrValidation, "extract", "select audio", "Input has no audio stream", nil)
	}
	plan.Track = track
	logger.Info("audio track selected",
		logging.String("track", track.Label()),
		logging.Bool("language_matched", track.LanguageMatched),
		logging.String(logging.FieldEventType, "track_selected"),
	)

	run.SourceAudio = run.Path("source.wav")
	if err := p.deps.Media.ExtractAudio(extractCtx, input, track.MapSpecifier(), run.SourceAudio); err != nil {
		return plan, probe, err
	}
	extracted, err := p.deps.Prober.Inspect(extractCtx, run.SourceAudio)
	if err != nil {
		return plan, probe, services.Wrap(services.ErrExternalTool, "extract", "probe audio", "Failed to probe extracted audio", err)
	}
	total := extracted.DurationSeconds()
	if math.IsNaN(total) || total <= 0 {
		return plan, probe, services.Wrap(services.ErrValidation, "extract", "probe audio", "Extracted audio has no duration", nil)
	}
	plan.Duration = total

	transcribeCtx := services.WithStage(ctx, "transcribe")
	segments, err := timeline.Drain(p.deps.Transcriber.Transcribe(transcribeCtx, transcription.Request{
		AudioPath:  run.SourceAudio,
		SourcePath: input,
		Language:   p.cfg.Transcription.Language,
		WorkDir:    run.Path("transcribe"),
	}))
	if err != nil {
		return plan, probe, err
	}
	plan.Segments = segments

	partitionLogger := logging.WithContext(services.WithStage(ctx, "partition"), p.logger)
	plan.Timeline = timeline.PartitionFunc(segments, total, func(original timeline.Segment, start, end float64, dropped bool) {
		result := "clamped"
		if dropped {
			result = "dropped"
		}
		partitionLogger.Debug("segment clamped",
			logging.Args(append(logging.DecisionAttrs("clamp", result, "segment outside timeline cursor or duration"),
				logging.Float64("original_start", original.Start),
				logging.Float64("original_end", original.End),
				logging.Float64("start", start),
				logging.Float64("end", end),
			)...)...,
		)
	})
	if err := plan.Timeline.Validate(total); err != nil {
		return plan, probe, services.Wrap(services.ErrValidation, "partition", "validate timeline", "Timeline is not contiguous", err)
	}
	speech, silence := plan.Timeline.Counts()
	logger.Info("timeline partitioned",
		logging.Int("segments", len(segments)),
		logging.Int("speech_intervals", speech),
		logging.Int("silence_intervals", silence),
		logging.Float64("duration_seconds", total),
		logging.String(logging.FieldEventType, "timeline_partitioned"),
	)
	return plan, probe, nil
}

// processAll renders every interval on a bounded worker pool. Clips are
// stored by interval index so the result is in Timeline order regardless
// of completion order. The first failure cancels the remaining work.
func (p *Pipeline) processAll(ctx context.Context, run *Run, tl timeline.Timeline) ([]ProcessedClip, error) {
	ctx = services.WithStage(ctx, "dubbing")
	logger := logging.WithContext(ctx, p.logger)
	workers := p.cfg.Dubbing.Workers
	if workers < 1 {
		workers = 1
	}

	clips := make([]ProcessedClip, len(tl))
	sampler := logging.NewProgressSampler(10)
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, iv := range tl {
		g.Go(func() error {
			clip, err := p.processor.Process(gctx, run, iv)
			if err != nil {
				return err
			}
			clips[iv.Index] = clip

			mu.Lock()
			done++
			pct, ok := sampler.Observe(done, len(tl), "dubbing")
			completed := done
			mu.Unlock()
			if ok {
				logger.Info("dubbing progress",
					logging.Float64("percent", math.Round(pct)),
					logging.Int("completed", completed),
					logging.Int("total", len(tl)),
					logging.String(logging.FieldEventType, "dubbing_progress"),
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return clips, nil
}

// assembledToleranceSeconds is the drift allowed between the dubbed track and
// the source before a warning is logged.
const assembledToleranceSeconds = 0.1

// checkAssembled probes the dubbed track and warns when its length drifts
// from the source. Drift is not an error because the longest mix policy
// lengthens speech clips.
func (p *Pipeline) checkAssembled(ctx context.Context, logger *slog.Logger, path string, want float64) float64 {
	probe, err := p.deps.Prober.Inspect(services.WithStage(ctx, assembleStage), path)
	if err != nil {
		logging.WarnWithContext(logger, "assembled track probe failed", "assembled_probe_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "dubbed track length not verified"),
		)
		return 0
	}
	got := probe.DurationSeconds()
	if math.Abs(got-want) > assembledToleranceSeconds {
		logging.WarnWithContext(logger, "dubbed track length differs from source", "duration_drift",
			logging.Float64("assembled_seconds", got),
			logging.Float64("source_seconds", want),
			logging.String(logging.FieldImpact, "dub may drift out of sync with the video"),
		)
	}
	return got
}

func (p *Pipeline) writeSubtitles(ctx context.Context, logger *slog.Logger, path string, segments []timeline.Segment, duration float64) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	count, err := subtitles.Write(path, segments)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "subtitles", "write", "Failed to write subtitles", err)
	}
	issues := subtitles.ValidateFile(path, len(segments), duration)
	if len(issues) > 0 {
		logging.WarnWithContext(logger, "subtitle validation reported issues", "subtitle_validation_issues",
			logging.String("path", path),
			logging.String("issues", strings.Join(issues, "; ")),
			logging.String(logging.FieldImpact, "subtitles may be misaligned"),
		)
	}
	logger.Info("subtitles written",
		logging.String("path", path),
		logging.Int("cues", count),
		logging.String(logging.FieldEventType, "subtitles_written"),
	)
	return issues, nil
}

func (p *Pipeline) finish(ctx context.Context, logger *slog.Logger, run *Run, res Result, runErr error, started time.Time) {
	speech, silence := res.Timeline.Counts()
	outcome := runstore.Outcome{
		Status:           runstore.StatusSucceeded,
		SpeechIntervals:  speech,
		SilenceIntervals: silence,
		DurationSeconds:  res.Duration,
		AudioPath:        res.AudioPath,
		VideoPath:        res.VideoPath,
		SubtitlePath:     res.SubtitlePath,
	}
	if runErr != nil {
		outcome.Status = runstore.StatusFailed
		outcome.ErrorKind = services.Kind(runErr)
		outcome.ErrorMessage = runErr.Error()
		logging.ErrorWithContext(logger, "dubbing run failed", "run_failed",
			logging.Error(runErr),
			logging.String("error_kind", outcome.ErrorKind),
			logging.Duration("elapsed", time.Since(started)),
		)
	} else {
		logger.Info("dubbing run finished",
			logging.String("audio", res.AudioPath),
			logging.String("video", res.VideoPath),
			logging.String("subtitles", res.SubtitlePath),
			logging.Int("speech_intervals", speech),
			logging.Int("silence_intervals", silence),
			logging.Duration("elapsed", time.Since(started)),
			logging.String(logging.FieldEventType, "run_finished"),
		)
	}
	if p.deps.Store == nil {
		return
	}
	if err := p.deps.Store.FinishRun(context.WithoutCancel(ctx), run.ID, outcome); err != nil {
		logging.WarnWithContext(logger, "run record not updated", "run_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "history shows the run as running"),
		)
	}
}

func validateInput(path string) error {
	if strings.TrimSpace(path) == "" {
		return services.Wrap(services.ErrValidation, "run", "validate request", "Input path is required", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "run", "validate request", "Input not found: "+path, err)
		}
		return services.Wrap(services.ErrValidation, "run", "validate request", "Input unreadable: "+path, err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrValidation, "run", "validate request", "Input is a directory: "+path, nil)
	}
	return nil
}

// normalizeDeadline reports a run that died on its deadline as ErrTimeout.
func normalizeDeadline(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, services.ErrTimeout) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "run", "deadline", "Run exceeded dubbing.timeout_seconds", err)
	}
	return err
}
