package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dubber/internal/config"
	"dubber/internal/deps"
	"dubber/internal/preflight"
	"dubber/internal/runstore"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report dependency, directory, and run store readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			runCtx := commandContextOrBackground(cmd)
			report := newStatusReport(out)

			report.section("Configuration")
			addConfigLines(report, cfg)
			report.section("Dependencies")
			addDependencyLines(runCtx, report, preflight.CheckSystemDeps(cfg))
			report.section("Preflight")
			addPreflightLines(report, preflight.RunAll(runCtx, cfg))
			report.section("Run Store")
			store, storeErr := ctx.ensureStore()
			addStoreLines(runCtx, report, store, storeErr)

			fmt.Fprintln(out, report)
			return nil
		},
	}
}

func addConfigLines(report *statusReport, cfg *config.Config) {
	report.add("Transcription", levelInfo, cfg.Transcription.Provider)
	report.add("Synthesis", levelInfo, cfg.Synthesis.Provider)
	report.add("Mix policy", levelInfo, cfg.Dubbing.MixPolicy)
	report.add("Workers", levelInfo, fmt.Sprint(cfg.Dubbing.Workers))
	report.add("Remux video", levelInfo, yesNo(cfg.Output.Remux))
	report.add("Subtitles", levelInfo, yesNo(cfg.Output.Subtitles))
}

func addDependencyLines(ctx context.Context, report *statusReport, statuses []deps.Status) {
	missing := deps.Missing(statuses)
	if len(missing) == 0 {
		report.add("Summary", levelOK, "All dependencies available")
	} else {
		report.add("Summary", levelError, fmt.Sprintf("%d required dependency(ies) missing", len(missing)))
	}
	for _, dep := range statuses {
		if dep.Available {
			message := fmt.Sprintf("Ready (command: %s)", dep.Command)
			if version := deps.Version(ctx, dep.Path, versionFlag(dep)); version != "" {
				message = fmt.Sprintf("Ready (%s)", version)
			}
			report.add(dep.Name, levelOK, message)
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		level := levelError
		if dep.Optional {
			level = levelWarn
		}
		report.add(dep.Name, level, detail)
	}
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, dep := range missing {
			names = append(names, dep.Name)
		}
		report.add("Missing dependencies", levelWarn, strings.Join(names, ", "))
	}
}

// versionFlag returns the flag dep prints its version for. ffmpeg and
// ffprobe use the single-dash form.
func versionFlag(dep deps.Status) string {
	if dep.Name == "FFmpeg" || dep.Name == "FFprobe" {
		return "-version"
	}
	return "--version"
}

func addPreflightLines(report *statusReport, results []preflight.Result) {
	for _, result := range results {
		level := levelOK
		if !result.Passed {
			level = levelError
		}
		report.add(result.Name, level, result.Detail)
	}
}

func addStoreLines(ctx context.Context, report *statusReport, store *runstore.Store, storeErr error) {
	if storeErr == nil {
		storeErr = store.Ping(ctx)
	}
	if storeErr != nil {
		report.add("Database", levelError, storeErr.Error())
		return
	}
	report.add("Database", levelOK, store.Path())
	stats, err := store.Stats(ctx)
	if err != nil {
		report.add("Runs", levelWarn, err.Error())
		return
	}
	report.add("Runs", levelInfo, fmt.Sprintf("%d succeeded, %d failed, %d running",
		stats[runstore.StatusSucceeded], stats[runstore.StatusFailed], stats[runstore.StatusRunning]))
}
