package dubbing

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"dubber/internal/config"
	"dubber/internal/media/ffmpeg"
	"dubber/internal/media/ffprobe"
	"dubber/internal/testsupport"
	"dubber/internal/timeline"
	"dubber/internal/transcription"
)

func canonicalAudio(duration string) ffprobe.Result {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "audio", CodecName: "pcm_s16le", SampleRate: "44100", Channels: 2}},
		Format:  ffprobe.Format{Duration: duration},
	}
}

func sourceVideo(duration string) ffprobe.Result {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{
			{Index: 0, CodecType: "video", CodecName: "h264"},
			{Index: 1, CodecType: "audio", CodecName: "aac", SampleRate: "48000", Channels: 2, Tags: map[string]string{"language": "eng"}},
		},
		Format: ffprobe.Format{Duration: duration},
	}
}

type fakeProber struct {
	mu      sync.Mutex
	calls   []string
	inspect func(path string) (ffprobe.Result, error)
}

func (f *fakeProber) Inspect(_ context.Context, path string) (ffprobe.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	f.mu.Unlock()
	return f.inspect(path)
}

type fakeSynth struct {
	mu    sync.Mutex
	texts []string
	err   error
	delay func(text string) time.Duration
}

func (f *fakeSynth) Name() string { return "fake" }

func (f *fakeSynth) Synthesize(ctx context.Context, text, dest string) error {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.delay != nil {
		select {
		case <-time.After(f.delay(text)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.err != nil {
		return f.err
	}
	return (&testsupport.CommandRecorder{}).Run(ctx, "tts", dest)
}

func (f *fakeSynth) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeTranscriber struct {
	segments []timeline.Segment
	err      error
	requests int
}

func (f *fakeTranscriber) Name() string { return "fake" }

func (f *fakeTranscriber) Transcribe(context.Context, transcription.Request) iter.Seq2[timeline.Segment, error] {
	f.requests++
	return func(yield func(timeline.Segment, error) bool) {
		for _, seg := range f.segments {
			if !yield(seg, nil) {
				return
			}
		}
		if f.err != nil {
			yield(timeline.Segment{}, f.err)
		}
	}
}

type harness struct {
	cfg      *config.Config
	recorder *testsupport.CommandRecorder
	prober   *fakeProber
	synth    *fakeSynth
	trans    *fakeTranscriber
	input    string
	outDir   string

	// sourceSeconds is the probed length of input.
	sourceSeconds float64
}

func newHarness(t *testing.T, segments []timeline.Segment, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	input := filepath.Join(base, "in", "movie.mp4")
	testsupport.WriteWAV(t, input, 0.01)
	h := &harness{
		cfg:           cfg,
		recorder:      &testsupport.CommandRecorder{},
		synth:         &fakeSynth{},
		trans:         &fakeTranscriber{segments: segments},
		input:         input,
		outDir:        filepath.Join(base, "out"),
		sourceSeconds: 6,
	}
	h.prober = &fakeProber{inspect: h.inspect}
	return h
}

// inspect reports the input as a video of sourceSeconds and any other file
// as canonical audio whose length follows from the ffmpeg call that wrote it.
func (h *harness) inspect(path string) (ffprobe.Result, error) {
	if path == h.input {
		return sourceVideo(formatLength(h.sourceSeconds)), nil
	}
	length, err := h.mediaLength(path)
	if err != nil {
		return ffprobe.Result{}, err
	}
	return canonicalAudio(formatLength(length)), nil
}

// mediaLength models ffmpeg output lengths: "-t" sets the length, a concat
// sums its listed clips, and any other call inherits the length of its first
// input, or the longest input when amix runs with duration=longest. Files no
// recorded call produced, such as synthesized speech, are one second long.
func (h *harness) mediaLength(path string) (float64, error) {
	if path == h.input {
		return h.sourceSeconds, nil
	}
	call, ok := h.producer(path)
	if !ok {
		return 1, nil
	}
	args := call.Args
	if i := slices.Index(args, "-t"); i >= 0 && i+1 < len(args) {
		return strconv.ParseFloat(args[i+1], 64)
	}
	var inputs []string
	for i, arg := range args[:len(args)-1] {
		if arg == "-i" {
			inputs = append(inputs, args[i+1])
		}
	}
	if len(inputs) == 0 {
		return 0, fmt.Errorf("no inputs recorded for %s", path)
	}
	if slices.Contains(args, "concat") {
		return h.concatLength(inputs[0])
	}
	if !strings.Contains(call.Joined(), "duration=longest") {
		inputs = inputs[:1]
	}
	var longest float64
	for _, input := range inputs {
		length, err := h.mediaLength(input)
		if err != nil {
			return 0, err
		}
		longest = max(longest, length)
	}
	return longest, nil
}

// producer finds the latest recorded call that wrote path, directly or via
// its temporary sibling.
func (h *harness) producer(path string) (testsupport.Call, bool) {
	calls := h.recorder.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if out := calls[i].Output(); out == path || out == ffmpeg.TempPath(path) {
			return calls[i], true
		}
	}
	return testsupport.Call{}, false
}

func (h *harness) concatLength(listPath string) (float64, error) {
	data, err := os.ReadFile(listPath)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		clip := strings.TrimSuffix(strings.TrimPrefix(line, "file '"), "'")
		length, err := h.mediaLength(clip)
		if err != nil {
			return 0, err
		}
		total += length
	}
	return total, nil
}

func formatLength(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}

func (h *harness) media() *ffmpeg.Tool {
	return ffmpeg.New("ffmpeg", nil).WithCommandRunner(h.recorder.Run)
}

func (h *harness) pipeline(store RunStore) *Pipeline {
	return NewPipeline(h.cfg, Dependencies{
		Media:       h.media(),
		Prober:      h.prober,
		Transcriber: h.trans,
		Synthesizer: h.synth,
		Store:       store,
	}, nil)
}
