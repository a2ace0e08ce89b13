package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dubber/internal/config"
	"dubber/internal/dubbing"
	"dubber/internal/language"
	"dubber/internal/logging"
	"dubber/internal/preflight"
	"dubber/internal/services"
)

// workspaceRetentionDays is the age after which a leftover run workspace is
// considered abandoned.
const workspaceRetentionDays = 1

type runOptions struct {
	workers       int
	gain          float64
	mixPolicy     string
	language      string
	segments      string
	subtitlePath  string
	timeout       time.Duration
	noVideo       bool
	noSubtitles   bool
	keepWorkspace bool
	skipChecks    bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <input> <output> [<subtitles>]",
		Short: "Dub a video or audio file",
		Long: "Transcribe the dialogue in <input>, synthesize each line and mix it over the\n" +
			"attenuated original. <output> names the dubbed audio; a remuxed video and\n" +
			"subtitles are written next to it unless <subtitles> names another path.",
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg, err := applyRunOptions(*base, cmd, opts)
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !opts.skipChecks {
				if err := requireReady(commandContextOrBackground(cmd), cfg, out); err != nil {
					return err
				}
			}

			pruneStale(cfg, logger)

			store, storeErr := ctx.ensureStore()
			if storeErr != nil {
				logging.WarnWithContext(logger, "run store unavailable; history and transcript cache disabled", "store_unavailable",
					logging.Error(storeErr),
					logging.String(logging.FieldErrorHint, "check paths.state_dir permissions"),
					logging.String(logging.FieldImpact, "run will not be recorded"),
				)
				store = nil
			}

			pipeline, err := dubbing.NewFromConfig(cfg, store, logger)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(commandContextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			subtitlePath := opts.subtitlePath
			if len(args) == 3 {
				subtitlePath = args[2]
			}
			res, err := pipeline.Run(runCtx, dubbing.Request{
				InputPath:    args[0],
				OutputPath:   args[1],
				SubtitlePath: subtitlePath,
			})
			if err != nil {
				return err
			}
			printRunResult(out, res)
			return nil
		},
	}

	bindRunFlags(cmd, &opts)
	return cmd
}

func bindRunFlags(cmd *cobra.Command, opts *runOptions) {
	flags := cmd.Flags()
	flags.IntVar(&opts.workers, "workers", 0, "Override dubbing.workers")
	flags.Float64Var(&opts.gain, "gain", 0, "Override dubbing.gain (0..1)")
	flags.StringVar(&opts.mixPolicy, "mix-policy", "", "Override dubbing.mix_policy (first, longest, stretch)")
	flags.StringVar(&opts.language, "language", "", "Source language (ISO code or name)")
	flags.StringVar(&opts.segments, "segments", "", "Use a WhisperX JSON or SRT file instead of transcribing")
	flags.StringVar(&opts.subtitlePath, "subtitles", "", "Subtitle output path (default: <output base>.srt)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Abort the run after this duration")
	flags.BoolVar(&opts.noVideo, "no-video", false, "Do not remux the dubbed audio into the video")
	flags.BoolVar(&opts.noSubtitles, "no-subtitles", false, "Do not write subtitles")
	flags.BoolVar(&opts.keepWorkspace, "keep-workspace", false, "Keep the per-run workspace for inspection")
	flags.BoolVar(&opts.skipChecks, "skip-checks", false, "Skip dependency and directory checks")
}

// applyRunOptions layers explicitly set flags over cfg and revalidates.
func applyRunOptions(cfg config.Config, cmd *cobra.Command, opts runOptions) (*config.Config, error) {
	changed := cmd.Flags().Changed
	if changed("workers") {
		cfg.Dubbing.Workers = opts.workers
	}
	if changed("gain") {
		cfg.Dubbing.Gain = opts.gain
	}
	if changed("mix-policy") {
		cfg.Dubbing.MixPolicy = strings.ToLower(strings.TrimSpace(opts.mixPolicy))
	}
	if changed("language") {
		lang := strings.TrimSpace(opts.language)
		if normalized := language.Normalize(lang); normalized != "" {
			lang = normalized
		}
		cfg.Transcription.Language = lang
	}
	if changed("segments") {
		path, err := config.ExpandPath(strings.TrimSpace(opts.segments))
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "cli", "resolve segments", "Invalid --segments path", err)
		}
		cfg.Transcription.Provider = config.TranscriptionFile
		cfg.Transcription.SegmentsPath = path
	}
	if changed("timeout") {
		cfg.Dubbing.TimeoutSeconds = int(opts.timeout.Round(time.Second) / time.Second)
	}
	if opts.noVideo {
		cfg.Output.Remux = false
	}
	if opts.noSubtitles {
		cfg.Output.Subtitles = false
	}
	if opts.keepWorkspace {
		cfg.Output.KeepWorkspace = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "cli", "validate flags", "Invalid run options", err)
	}
	return &cfg, nil
}

// requireReady runs binary and directory checks, printing failures.
func requireReady(ctx context.Context, cfg *config.Config, out io.Writer) error {
	var problems []string
	for _, dep := range preflight.CheckSystemDeps(cfg) {
		if !dep.Available && !dep.Optional {
			problems = append(problems, fmt.Sprintf("%s: %s", dep.Name, dep.Detail))
		}
	}
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		problems = append(problems, fmt.Sprintf("%s: %s", result.Name, result.Detail))
	}
	if len(problems) == 0 {
		return nil
	}
	colorize := shouldColorize(out)
	for _, problem := range problems {
		fmt.Fprintln(out, formatStatus("Preflight", levelError, problem, colorize))
	}
	return services.Wrap(services.ErrConfiguration, "cli", "preflight",
		fmt.Sprintf("%d readiness check(s) failed; run `dubber status` for details", len(problems)), nil)
}

// pruneStale removes expired log files and workspaces abandoned by runs that
// died before cleaning up.
func pruneStale(cfg *config.Config, logger *slog.Logger) {
	logging.Prune(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
		Dir:     cfg.Paths.LogDir,
		Pattern: logging.LogFilePattern,
		Exclude: []string{logging.LogFilePath(cfg.Paths.LogDir, time.Now())},
	})
	if cfg.Output.KeepWorkspace {
		return
	}
	logging.Prune(logger, workspaceRetentionDays, logging.RetentionTarget{
		Dir:     cfg.Paths.WorkDir,
		Pattern: dubbing.WorkspacePrefix + "*",
		Dirs:    true,
	})
}

func printRunResult(out io.Writer, res dubbing.Result) {
	speech, silence := res.Timeline.Counts()
	fmt.Fprintf(out, "Run %s complete\n", res.RunID)
	fmt.Fprintf(out, "  Duration:  %s\n", formatSeconds(res.Duration))
	fmt.Fprintf(out, "  Intervals: %d speech, %d silence\n", speech, silence)
	fmt.Fprintf(out, "  Audio:     %s\n", res.AudioPath)
	if res.AssembledDuration > 0 {
		fmt.Fprintf(out, "  Dubbed:    %s\n", formatSeconds(res.AssembledDuration))
	}
	if res.VideoPath != "" {
		fmt.Fprintf(out, "  Video:     %s\n", res.VideoPath)
	}
	if res.SubtitlePath != "" {
		fmt.Fprintf(out, "  Subtitles: %s\n", res.SubtitlePath)
	}
	for _, issue := range res.SubtitleIssues {
		fmt.Fprintf(out, "  Subtitle warning: %s\n", issue)
	}
}

func commandContextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
