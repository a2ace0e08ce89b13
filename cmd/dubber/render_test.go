package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"dubber/internal/deps"
	"dubber/internal/dubbing"
	"dubber/internal/preflight"
	"dubber/internal/runstore"
	"dubber/internal/timeline"
)

func TestFormatStatus(t *testing.T) {
	got := formatStatus("FFmpeg", levelError, "binary \"ffmpeg\" not found", false)
	want := fmt.Sprintf("  %-*s %s", statusLabelWidth, "FFmpeg:", "[ERROR] binary \"ffmpeg\" not found")
	if got != want {
		t.Fatalf("formatStatus mismatch\n got: %q\nwant: %q", got, want)
	}

	colored := formatStatus("Database", levelOK, "", true)
	if !strings.HasPrefix(colored, text.FgGreen.EscapeSeq()) || !strings.HasSuffix(colored, text.EscapeReset) {
		t.Fatalf("expected green wrapped line, got %q", colored)
	}
	if plain := text.StripEscape(colored); plain != formatStatus("Database", levelOK, "", false) {
		t.Fatalf("colour changed the text: %q", plain)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func reportLines(report *statusReport) []string {
	return strings.Split(report.String(), "\n")
}

func TestStatusReportSections(t *testing.T) {
	report := &statusReport{}
	report.section("Configuration")
	report.add("Workers", levelInfo, "4")
	report.section(" Run Store ")
	report.add("Database", levelError, "locked")

	lines := reportLines(report)
	want := []string{
		"== Configuration ==",
		formatStatus("Workers", levelInfo, "4", false),
		"",
		"== Run Store ==",
		formatStatus("Database", levelError, "locked", false),
	}
	if strings.Join(lines, "\n") != strings.Join(want, "\n") {
		t.Fatalf("report mismatch\n got: %q\nwant: %q", lines, want)
	}
}

func TestDependencyLines(t *testing.T) {
	statuses := []deps.Status{
		{Name: "FFmpeg", Command: "ffmpeg", Available: false, Detail: "binary \"ffmpeg\" not found"},
		{Name: "Speech engine", Command: "espeak-ng", Available: true, Path: "/nonexistent/espeak-ng"},
	}
	report := &statusReport{}
	addDependencyLines(context.Background(), report, statuses)
	lines := reportLines(report)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], "[ERROR]") || !strings.Contains(lines[0], "Summary") {
		t.Fatalf("expected summary line first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "not found") {
		t.Fatalf("expected missing detail, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[OK] Ready (command: espeak-ng)") {
		t.Fatalf("expected ready detail, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "Missing dependencies") || !strings.Contains(lines[3], "FFmpeg") {
		t.Fatalf("expected missing summary, got %q", lines[3])
	}
}

func TestPreflightLines(t *testing.T) {
	report := &statusReport{}
	addPreflightLines(report, []preflight.Result{
		{Name: "Work directory", Passed: true, Detail: "/tmp/work (read/write ok)"},
		{Name: "Speech endpoint", Detail: "auth failed (invalid api key)"},
	})
	lines := reportLines(report)
	if !strings.Contains(lines[0], "[OK]") || !strings.Contains(lines[1], "[ERROR] auth failed") {
		t.Fatalf("unexpected lines: %q", lines)
	}
}

func TestEmitSwitchesOnJSON(t *testing.T) {
	cmd := &cobra.Command{}
	var out strings.Builder
	cmd.SetOut(&out)
	render := func(w io.Writer) { fmt.Fprint(w, "table view") }

	if err := emit(cmd, false, map[string]int{"runs": 2}, render); err != nil {
		t.Fatalf("emit text: %v", err)
	}
	if out.String() != "table view" {
		t.Fatalf("text output = %q", out.String())
	}

	out.Reset()
	if err := emit(cmd, true, map[string]int{"runs": 2}, render); err != nil {
		t.Fatalf("emit json: %v", err)
	}
	if out.String() != "{\n  \"runs\": 2\n}\n" {
		t.Fatalf("json output = %q", out.String())
	}
}

func TestBuildPlanOutput(t *testing.T) {
	segments := []timeline.Segment{{Start: 1, End: 2.5, Text: "  hello  "}}
	plan := dubbing.Plan{
		Duration: 4,
		Segments: segments,
		Timeline: timeline.Partition(segments, 4),
	}
	view := buildPlanOutput("movie.mp4", plan)
	if view.Segments != 1 || len(view.Intervals) != 3 {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.Intervals[1].Kind != "speech" || view.Intervals[1].Text != "hello" {
		t.Fatalf("speech interval = %+v", view.Intervals[1])
	}
	if view.Intervals[0].Kind != "silence" || view.Intervals[2].End != 4 {
		t.Fatalf("silence intervals = %+v", view.Intervals)
	}

	var out strings.Builder
	renderPlan(&out, view)
	requireContains(t, out.String(), "1 speech, 2 silence intervals")
	requireContains(t, out.String(), "hello")
	requireContains(t, out.String(), "1.500s")
}

func TestRenderHistory(t *testing.T) {
	started := time.Now().Add(-time.Hour)
	runs := []runstore.Run{
		{
			ID:               "0123456789abcdef",
			InputPath:        "/videos/movie.mkv",
			Status:           runstore.StatusFailed,
			ErrorKind:        "provider",
			SpeechIntervals:  2,
			SilenceIntervals: 3,
			StartedAt:        started,
			FinishedAt:       started.Add(90 * time.Second),
		},
	}
	var out strings.Builder
	renderHistory(&out, runs)
	for _, want := range []string{"01234567", "movie.mkv", "failed (provider)", "2/3", "1m30s"} {
		requireContains(t, out.String(), want)
	}
	if strings.Contains(out.String(), "0123456789abcdef") {
		t.Fatalf("expected shortened run id, got:\n%s", out.String())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"line one\nline two", 40, "line one line two"},
		{"abcdefghij", 5, "abcd…"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
