package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	langpkg "dubber/internal/language"
	"dubber/internal/logging"
	"dubber/internal/services"
	"dubber/internal/timeline"
)

// WhisperX configuration constants.
const (
	DefaultWhisperXModel = "large-v3"
	UVXCommand           = "uvx"
	CUDAIndexURL         = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL         = "https://pypi.org/simple"
	BatchSize            = "4"
	ChunkSize            = "15"
	VADOnset             = "0.08"
	VADOffset            = "0.07"
	BeamSize             = "5"
	SegmentResolution    = "sentence"
	CPUDevice            = "cpu"
	CUDADevice           = "cuda"
	CPUComputeType       = "float32"
	VADMethodPyannote    = "pyannote"
	VADMethodSilero      = "silero"
)

// WhisperXConfig captures runtime settings for WhisperX.
type WhisperXConfig struct {
	Model       string
	CUDAEnabled bool
	// VADMethod selects voice activity detection ("silero" or "pyannote").
	VADMethod string
	// HFToken is the Hugging Face token required by pyannote.
	HFToken string
}

// WhisperX transcribes audio by invoking the whisperx CLI via uvx.
type WhisperX struct {
	cfg    WhisperXConfig
	run    func(ctx context.Context, name string, args ...string) error
	logger *slog.Logger
}

// NewWhisperX creates a WhisperX provider.
func NewWhisperX(cfg WhisperXConfig, logger *slog.Logger) *WhisperX {
	return &WhisperX{
		cfg:    cfg,
		run:    runWhisperXCommand,
		logger: logging.NewComponentLogger(logger, "whisperx"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (w *WhisperX) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) *WhisperX {
	if runner != nil {
		w.run = runner
	}
	return w
}

// Name identifies the provider.
func (w *WhisperX) Name() string { return "whisperx" }

// Model returns the configured model name.
func (w *WhisperX) Model() string {
	if w.cfg.Model != "" {
		return w.cfg.Model
	}
	return DefaultWhisperXModel
}

// Transcribe runs WhisperX when the returned sequence is first ranged over.
func (w *WhisperX) Transcribe(ctx context.Context, req Request) iter.Seq2[timeline.Segment, error] {
	return once(func(yield func(timeline.Segment, error) bool) {
		segments, err := w.transcribe(ctx, req)
		if err != nil {
			failed(err)(yield)
			return
		}
		fromSlice(segments)(yield)
	})
}

func (w *WhisperX) transcribe(ctx context.Context, req Request) ([]timeline.Segment, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return nil, services.Wrap(services.ErrValidation, stage, "whisperx", "Audio path is required", nil)
	}
	outputDir := req.WorkDir
	if outputDir == "" {
		outputDir = filepath.Dir(req.AudioPath)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrProvider, stage, "whisperx", "Failed to create output directory", err)
	}

	args := w.buildArgs(req.AudioPath, outputDir, req.Language)
	w.logger.Info("whisperx transcription started",
		logging.String("model", w.Model()),
		logging.Bool("cuda", w.cfg.CUDAEnabled),
		logging.String("language", langpkg.ToISO2(req.Language)),
		logging.String(logging.FieldEventType, "transcription_started"),
	)
	if err := w.run(ctx, UVXCommand, args...); err != nil {
		return nil, services.Wrap(services.ErrProvider, stage, "whisperx", "WhisperX transcription failed", err)
	}

	base := strings.TrimSuffix(filepath.Base(req.AudioPath), filepath.Ext(req.AudioPath))
	jsonPath := filepath.Join(outputDir, base+".json")
	segments, err := LoadWhisperXJSON(jsonPath)
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, stage, "whisperx", "Failed to read WhisperX output", err)
	}
	w.logger.Info("whisperx transcription finished",
		logging.Int("segments", len(segments)),
		logging.String(logging.FieldEventType, "transcription_finished"),
	)
	return segments, nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (w *WhisperX) buildArgs(source, outputDir, language string) []string {
	args := make([]string, 0, 40)
	if w.cfg.CUDAEnabled {
		args = append(args, "--index-url", CUDAIndexURL, "--extra-index-url", PypiIndexURL)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", w.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", "json",
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
	)

	vadMethod := w.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && w.cfg.HFToken != "" {
		args = append(args, "--hf_token", w.cfg.HFToken)
	}

	if lang := langpkg.ToISO2(language); lang != "" {
		args = append(args, "--language", lang)
	}

	if w.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

func runWhisperXCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	// Torch 2.6 defaults torch.load to weights_only, which breaks pyannote checkpoints.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, lastLines(string(output), 5))
	}
	return nil
}

func lastLines(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

type whisperXSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperXPayload struct {
	Segments []whisperXSegment `json:"segments"`
}

// LoadWhisperXJSON loads segments from a WhisperX JSON file. A bare JSON
// array of segments is accepted as well.
func LoadWhisperXJSON(path string) ([]timeline.Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseWhisperXJSON(data)
}

// ParseWhisperXJSON decodes WhisperX JSON content.
func ParseWhisperXJSON(data []byte) ([]timeline.Segment, error) {
	trimmed := strings.TrimSpace(string(data))
	var raw []whisperXSegment
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse segment array: %w", err)
		}
	} else {
		var payload whisperXPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("parse whisperx json: %w", err)
		}
		raw = payload.Segments
	}
	segments := make([]timeline.Segment, 0, len(raw))
	for _, seg := range raw {
		segments = append(segments, timeline.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		})
	}
	return segments, nil
}
