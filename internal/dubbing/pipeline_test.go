package dubbing

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"dubber/internal/runstore"
	"dubber/internal/services"
	"dubber/internal/testsupport"
	"dubber/internal/timeline"
)

func assertWorkDirEmpty(t *testing.T, workDir string) {
	t.Helper()
	entries, err := os.ReadDir(workDir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected run workspace removed, found %d entries", len(entries))
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	h := newHarness(t, []timeline.Segment{{Start: 2, End: 4, Text: "hello"}})
	store := testsupport.MustOpenStore(t, h.cfg)
	out := filepath.Join(h.outDir, "movie.mp4")

	res, err := h.pipeline(store).Run(context.Background(), Request{InputPath: h.input, OutputPath: out})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []timeline.Interval{
		{Index: 0, Start: 0, End: 2, Kind: timeline.Silence},
		{Index: 1, Start: 2, End: 4, Kind: timeline.Speech},
		{Index: 2, Start: 4, End: 6, Kind: timeline.Silence},
	}
	if len(res.Timeline) != len(want) {
		t.Fatalf("timeline = %+v", res.Timeline)
	}
	for i, w := range want {
		got := res.Timeline[i]
		if got.Index != w.Index || got.Start != w.Start || got.End != w.End || got.Kind != w.Kind {
			t.Errorf("interval %d = %+v, want %+v", i, got, w)
		}
	}
	if res.Duration != 6 {
		t.Errorf("duration = %v, want 6", res.Duration)
	}
	if math.Abs(res.AssembledDuration-6) > 1e-3 {
		t.Errorf("assembled duration = %v, want 6", res.AssembledDuration)
	}

	if res.AudioPath != filepath.Join(h.outDir, "movie_dubbed.wav") {
		t.Errorf("audio path = %s", res.AudioPath)
	}
	if res.VideoPath != filepath.Join(h.outDir, "movie_dubbed.mp4") {
		t.Errorf("video path = %s", res.VideoPath)
	}
	for _, path := range []string{res.AudioPath, res.VideoPath} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s: %v", path, err)
		}
	}
	srt, err := os.ReadFile(filepath.Join(h.outDir, "movie.srt"))
	if err != nil {
		t.Fatalf("read subtitles: %v", err)
	}
	if string(srt) != "1\n00:00:02,000 --> 00:00:04,000\nhello\n\n" {
		t.Errorf("subtitles = %q", srt)
	}
	if len(res.SubtitleIssues) != 0 {
		t.Errorf("subtitle issues: %v", res.SubtitleIssues)
	}

	if texts := h.synth.Texts(); len(texts) != 1 || texts[0] != "hello" {
		t.Errorf("synthesized %v", texts)
	}
	if len(h.recorder.CallsMatching("-map 0:a:0")) != 1 {
		t.Error("expected one audio extraction of the selected track")
	}
	if len(h.recorder.CallsMatching("-map 0:v -map 1:a -c:v copy -c:a aac -shortest")) != 1 {
		t.Error("expected remux against the source video")
	}
	assertWorkDirEmpty(t, h.cfg.Paths.WorkDir)

	run, err := store.GetRun(context.Background(), res.RunID)
	if err != nil || run == nil {
		t.Fatalf("GetRun: %v %v", run, err)
	}
	if run.Status != runstore.StatusSucceeded || run.SpeechIntervals != 1 || run.SilenceIntervals != 2 {
		t.Errorf("run record = %+v", run)
	}
}

func TestPipelineLongestPolicyReportsExtendedTrack(t *testing.T) {
	h := newHarness(t, []timeline.Segment{{Start: 2, End: 2.5, Text: "a longer line"}},
		testsupport.WithMixPolicy("longest"))
	h.cfg.Output.Subtitles = false

	res, err := h.pipeline(nil).Run(context.Background(), Request{InputPath: h.input, OutputPath: filepath.Join(h.outDir, "movie.wav")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 2s silence, then 1s of speech over a 0.5s slice, then 3.5s silence.
	if math.Abs(res.AssembledDuration-6.5) > 1e-3 {
		t.Fatalf("assembled duration = %v, want 6.5", res.AssembledDuration)
	}
}

func TestPipelineFailureRecordsRunAndCleansUp(t *testing.T) {
	h := newHarness(t, []timeline.Segment{{Start: 1, End: 2, Text: "boom"}})
	h.synth.err = services.Wrap(services.ErrProvider, "synthesize", "fake", "engine down", nil)
	store := testsupport.MustOpenStore(t, h.cfg)
	out := filepath.Join(h.outDir, "movie.mp4")

	res, err := h.pipeline(store).Run(context.Background(), Request{InputPath: h.input, OutputPath: out})
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(h.outDir, "movie_dubbed.wav")); !os.IsNotExist(statErr) {
		t.Errorf("expected no assembled track, stat err = %v", statErr)
	}
	assertWorkDirEmpty(t, h.cfg.Paths.WorkDir)

	run, err := store.GetRun(context.Background(), res.RunID)
	if err != nil || run == nil {
		t.Fatalf("GetRun: %v %v", run, err)
	}
	if run.Status != runstore.StatusFailed || run.ErrorKind != "provider" || !strings.Contains(run.ErrorMessage, "engine down") {
		t.Errorf("run record = %+v", run)
	}
}

func TestPipelineTranscriptionFailureIsFatal(t *testing.T) {
	h := newHarness(t, nil)
	h.trans.err = services.Wrap(services.ErrProvider, "transcribe", "fake", "model missing", nil)

	_, err := h.pipeline(nil).Run(context.Background(), Request{InputPath: h.input, OutputPath: filepath.Join(h.outDir, "movie.mp4")})
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if len(h.recorder.CallsMatching("-ss")) != 0 {
		t.Fatal("no interval may be processed after a transcription failure")
	}
}

func TestPipelineGathersInTimelineOrder(t *testing.T) {
	h := newHarness(t, []timeline.Segment{
		{Start: 0, End: 1, Text: "a"},
		{Start: 2, End: 3, Text: "b"},
		{Start: 4, End: 5, Text: "c"},
	})
	h.cfg.Dubbing.Workers = 4
	h.cfg.Output.KeepWorkspace = true
	h.synth.delay = func(text string) time.Duration {
		switch text {
		case "a":
			return 60 * time.Millisecond
		case "b":
			return 30 * time.Millisecond
		}
		return 0
	}

	res, err := h.pipeline(nil).Run(context.Background(), Request{InputPath: h.input, OutputPath: filepath.Join(h.outDir, "clip.wav")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.VideoPath != "" {
		t.Errorf("audio output must not be remuxed, got %s", res.VideoPath)
	}
	run := &Run{Workspace: filepath.Join(h.cfg.Paths.WorkDir, WorkspacePrefix+res.RunID)}
	list, err := os.ReadFile(run.Path("concat.txt"))
	if err != nil {
		t.Fatalf("read concat list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(list)), "\n")
	if len(lines) != len(res.Timeline) || len(lines) != 6 {
		t.Fatalf("concat list has %d entries for %d intervals", len(lines), len(res.Timeline))
	}
	for i, line := range lines {
		if line != "file '"+run.ClipPath(i)+"'" {
			t.Errorf("entry %d = %q", i, line)
		}
	}
}

func TestPipelineRejectsLockedOutput(t *testing.T) {
	h := newHarness(t, nil)
	out := filepath.Join(h.outDir, "movie.mp4")
	if err := os.MkdirAll(h.outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	holder := flock.New(DeriveOutputs(out, "").Lock)
	locked, err := holder.TryLock()
	if err != nil || !locked {
		t.Fatalf("pre-lock: %v %v", locked, err)
	}
	defer holder.Unlock()

	_, err = h.pipeline(nil).Run(context.Background(), Request{InputPath: h.input, OutputPath: out})
	if !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected busy error, got %v", err)
	}
	if len(h.recorder.Calls()) != 0 {
		t.Fatal("no media work may start while the output is locked")
	}
}

func TestPipelineMissingInput(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.pipeline(nil).Run(context.Background(), Request{InputPath: filepath.Join(h.outDir, "nope.mp4"), OutputPath: filepath.Join(h.outDir, "x.mp4")})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPipelineSkipsDisabledOutputs(t *testing.T) {
	h := newHarness(t, []timeline.Segment{{Start: 2, End: 4, Text: "hello"}})
	h.cfg.Output.Remux = false
	h.cfg.Output.Subtitles = false

	res, err := h.pipeline(nil).Run(context.Background(), Request{InputPath: h.input, OutputPath: filepath.Join(h.outDir, "movie.mp4")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.VideoPath != "" || res.SubtitlePath != "" {
		t.Fatalf("expected audio only, got %+v", res)
	}
	if _, err := os.Stat(filepath.Join(h.outDir, "movie.srt")); !os.IsNotExist(err) {
		t.Fatalf("expected no subtitles, stat err = %v", err)
	}
}

func TestPlanDoesNotRender(t *testing.T) {
	h := newHarness(t, []timeline.Segment{{Start: 0.5, End: 1, Text: "a"}, {Start: 0.8, End: 2, Text: "b"}})

	plan, err := h.pipeline(nil).Plan(context.Background(), h.input)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if err := plan.Timeline.Validate(6); err != nil {
		t.Fatalf("plan timeline invalid: %v", err)
	}
	speech, silence := plan.Timeline.Counts()
	if speech != 2 || silence != 2 {
		t.Fatalf("counts = %d speech, %d silence", speech, silence)
	}
	if plan.Timeline[2].Start != 1 {
		t.Fatalf("expected overlapping segment clamped to 1, got %+v", plan.Timeline[2])
	}
	if len(h.synth.Texts()) != 0 || len(h.recorder.CallsMatching("-ss")) != 0 {
		t.Fatal("plan must not process intervals")
	}
	assertWorkDirEmpty(t, h.cfg.Paths.WorkDir)
}
