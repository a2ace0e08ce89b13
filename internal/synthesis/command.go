package synthesis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"dubber/internal/logging"
	"dubber/internal/services"
)

// DefaultCommand is the local speech engine used when none is configured.
const DefaultCommand = "espeak-ng"

// Command synthesizes speech with a local engine invoked as
// `<binary> [-v voice] -w <dest> <text>`.
type Command struct {
	binary string
	voice  string
	run    func(ctx context.Context, name string, args ...string) error
	logger *slog.Logger
}

// NewCommand creates a command provider.
func NewCommand(binary, voice string, logger *slog.Logger) *Command {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = DefaultCommand
	}
	return &Command{
		binary: binary,
		voice:  strings.TrimSpace(voice),
		run:    runCommand,
		logger: logging.NewComponentLogger(logger, "tts"),
	}
}

// WithCommandRunner overrides command execution (for testing).
func (c *Command) WithCommandRunner(run func(ctx context.Context, name string, args ...string) error) *Command {
	if run != nil {
		c.run = run
	}
	return c
}

// Name identifies the provider.
func (c *Command) Name() string { return c.binary }

// Synthesize renders text to dest.
func (c *Command) Synthesize(ctx context.Context, text, dest string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return services.Wrap(services.ErrValidation, stage, c.binary, "Text is required", nil)
	}
	args := make([]string, 0, 6)
	if c.voice != "" {
		args = append(args, "-v", c.voice)
	}
	args = append(args, "-w", dest, "--", text)
	c.logger.Debug("synthesizing clip",
		logging.String("text", snippet(text)),
		logging.String("dest", dest),
	)
	if err := c.run(ctx, c.binary, args...); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, stage, c.binary, "Speech synthesis timed out", err)
		}
		return services.Wrap(services.ErrProvider, stage, c.binary, "Speech synthesis failed", err)
	}
	if err := ensureOutput(dest); err != nil {
		return services.Wrap(services.ErrProvider, stage, c.binary, "Speech engine produced no audio", err)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
