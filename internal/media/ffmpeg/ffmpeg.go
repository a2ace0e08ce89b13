package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"dubber/internal/logging"
	"dubber/internal/media/ffprobe"
	"dubber/internal/services"
)

// Canonical audio format for every intermediate and the assembled track.
const (
	CanonicalCodec      = "pcm_s16le"
	CanonicalSampleRate = 44100
	CanonicalChannels   = 2
)

const stage = "media"

// Canonical returns the canonical AudioFormat.
func Canonical() ffprobe.AudioFormat {
	return ffprobe.AudioFormat{Codec: CanonicalCodec, SampleRate: CanonicalSampleRate, Channels: CanonicalChannels}
}

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Tool runs ffmpeg operations.
type Tool struct {
	binary string
	run    CommandRunner
	logger *slog.Logger
}

// New constructs a Tool that invokes binary (default "ffmpeg").
func New(binary string, logger *slog.Logger) *Tool {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Tool{
		binary: binary,
		run:    defaultCommandRunner,
		logger: logging.NewComponentLogger(logger, "ffmpeg"),
	}
}

// WithCommandRunner swaps the command runner, primarily for tests.
func (t *Tool) WithCommandRunner(r CommandRunner) *Tool {
	if r != nil {
		t.run = r
	}
	return t
}

// Binary reports the ffmpeg executable in use.
func (t *Tool) Binary() string { return t.binary }

// ExtractAudio decodes the selected audio stream of source into canonical
// WAV at dest. mapSpec is an ffmpeg stream specifier such as "0:a:0".
func (t *Tool) ExtractAudio(ctx context.Context, source, mapSpec, dest string) error {
	if strings.TrimSpace(source) == "" || strings.TrimSpace(dest) == "" {
		return services.Wrap(services.ErrValidation, stage, "extract audio", "Source and destination are required", nil)
	}
	if mapSpec == "" {
		mapSpec = "0:a:0"
	}
	args := baseArgs()
	args = append(args, "-i", source, "-map", mapSpec, "-vn", "-sn", "-dn")
	args = append(args, canonicalOutputArgs()...)
	args = append(args, dest)
	return t.exec(ctx, "extract audio", args)
}

// ExtractSegment copies [start, end) of source into dest in canonical format.
// Seeking happens after the input is opened so the cut is sample accurate and
// repeated calls with the same arguments yield identical slices.
func (t *Tool) ExtractSegment(ctx context.Context, source string, start, end float64, dest string) error {
	if start < 0 || end <= start {
		return services.Wrap(services.ErrValidation, stage, "extract segment",
			fmt.Sprintf("Invalid span [%s, %s)", formatSeconds(start), formatSeconds(end)), nil)
	}
	args := baseArgs()
	args = append(args,
		"-i", source,
		"-ss", formatSeconds(start),
		"-t", formatSeconds(end-start),
	)
	args = append(args, canonicalOutputArgs()...)
	args = append(args, dest)
	return t.exec(ctx, "extract segment", args)
}

// AdjustVolume scales source by the linear gain factor into dest.
func (t *Tool) AdjustVolume(ctx context.Context, source string, gain float64, dest string) error {
	if gain < 0 {
		return services.Wrap(services.ErrValidation, stage, "adjust volume", "Gain must not be negative", nil)
	}
	args := baseArgs()
	args = append(args, "-i", source, "-af", "volume="+strconv.FormatFloat(gain, 'f', -1, 64))
	args = append(args, canonicalOutputArgs()...)
	args = append(args, dest)
	return t.exec(ctx, "adjust volume", args)
}

// Overlay mixes foreground over background into dest according to opts.
func (t *Tool) Overlay(ctx context.Context, background, foreground, dest string, opts OverlayOptions) error {
	filter, err := BuildOverlayFilter(opts)
	if err != nil {
		return err
	}
	args := baseArgs()
	args = append(args,
		"-i", background,
		"-i", foreground,
		"-filter_complex", filter,
		"-map", "[mix]",
	)
	args = append(args, canonicalOutputArgs()...)
	args = append(args, dest)
	return t.exec(ctx, "overlay", args)
}

// Concatenate joins clips in order into dest using the concat demuxer and
// stream copy. The list file is written to listPath. dest is replaced
// atomically; on failure neither dest nor the temporary output remain.
func (t *Tool) Concatenate(ctx context.Context, clips []string, listPath, dest string) error {
	if len(clips) == 0 {
		return services.Wrap(services.ErrValidation, stage, "concatenate", "No clips to concatenate", nil)
	}
	if err := WriteConcatList(listPath, clips); err != nil {
		return services.Wrap(services.ErrExternalTool, stage, "concatenate", "Failed to write concat list", err)
	}
	return t.atomic(ctx, "concatenate", dest, func(tmp string) []string {
		args := baseArgs()
		return append(args,
			"-f", "concat",
			"-safe", "0",
			"-i", listPath,
			"-c", "copy",
			tmp,
		)
	})
}

// webmAudioCodecs are the encoders the WebM muxer accepts.
var webmAudioCodecs = map[string]struct{}{
	"libopus":   {},
	"opus":      {},
	"libvorbis": {},
	"vorbis":    {},
}

// RemuxAudioCodec picks the audio encoder for a remux into dest. The
// configured codec is used unless the container cannot carry it; WebM falls
// back to libopus.
func RemuxAudioCodec(dest, configured string) string {
	codec := strings.ToLower(strings.TrimSpace(configured))
	if codec == "" {
		codec = "aac"
	}
	if strings.EqualFold(filepath.Ext(dest), ".webm") {
		if _, ok := webmAudioCodecs[codec]; !ok {
			return "libopus"
		}
	}
	return codec
}

// Remux pairs the video streams of video with the audio of audio into dest.
// The video stream is copied; audio is encoded with RemuxAudioCodec.
func (t *Tool) Remux(ctx context.Context, video, audio, dest, audioCodec string) error {
	audioCodec = RemuxAudioCodec(dest, audioCodec)
	return t.atomic(ctx, "remux", dest, func(tmp string) []string {
		args := baseArgs()
		return append(args,
			"-i", video,
			"-i", audio,
			"-map", "0:v",
			"-map", "1:a",
			"-c:v", "copy",
			"-c:a", audioCodec,
			"-shortest",
			tmp,
		)
	})
}

func (t *Tool) atomic(ctx context.Context, operation, dest string, build func(tmp string) []string) error {
	if strings.TrimSpace(dest) == "" {
		return services.Wrap(services.ErrValidation, stage, operation, "Destination is required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrExternalTool, stage, operation, "Failed to create destination directory", err)
	}
	tmp := TempPath(dest)
	_ = os.Remove(tmp)
	if err := t.exec(ctx, operation, build(tmp)); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if _, err := os.Stat(tmp); err != nil {
		return services.Wrap(services.ErrExternalTool, stage, operation, "ffmpeg did not produce output", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrExternalTool, stage, operation, "Failed to move output into place", err)
	}
	return nil
}

func (t *Tool) exec(ctx context.Context, operation string, args []string) error {
	t.logger.Debug("executing ffmpeg",
		logging.String("operation", operation),
		logging.String("args", strings.Join(args, " ")),
	)
	if err := t.run(ctx, t.binary, args...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return services.Wrap(services.ErrTimeout, stage, operation, "ffmpeg interrupted by deadline", err)
			}
			return fmt.Errorf("%s: %w", operation, ctxErr)
		}
		return services.Wrap(services.ErrExternalTool, stage, operation, "ffmpeg failed", err)
	}
	return nil
}

// TempPath returns the hidden sibling path used for atomic writes. The
// extension is preserved so ffmpeg can infer the output muxer.
func TempPath(dest string) string {
	dir := filepath.Dir(dest)
	base := filepath.Base(dest)
	ext := filepath.Ext(base)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, ext)+".partial"+ext)
}

// WriteConcatList writes an ffmpeg concat demuxer script listing clips.
func WriteConcatList(path string, clips []string) error {
	var buf bytes.Buffer
	for _, clip := range clips {
		abs, err := filepath.Abs(clip)
		if err != nil {
			return err
		}
		buf.WriteString("file '")
		buf.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		buf.WriteString("'\n")
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func baseArgs() []string {
	return []string{"-y", "-hide_banner", "-nostdin", "-loglevel", "error"}
}

func canonicalOutputArgs() []string {
	return []string{
		"-ac", strconv.Itoa(CanonicalChannels),
		"-ar", strconv.Itoa(CanonicalSampleRate),
		"-c:a", CanonicalCodec,
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
