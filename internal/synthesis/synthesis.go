package synthesis

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dubber/internal/config"
	"dubber/internal/services"
)

const stage = "synthesize"

// Provider writes a synthesized clip for text to dest.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text, dest string) error
}

// New builds the provider selected by cfg.Synthesis.Provider.
func New(cfg *config.Config, logger *slog.Logger) (Provider, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, stage, "select provider", "Configuration is required", nil)
	}
	syn := cfg.Synthesis
	switch syn.Provider {
	case config.SynthesisCommand, "":
		return NewCommand(syn.Command, syn.Voice, logger), nil
	case config.SynthesisOpenAI:
		return NewOpenAI(OpenAIConfig{
			BaseURL:        syn.BaseURL,
			APIKey:         syn.APIKey,
			Model:          syn.Model,
			Voice:          syn.Voice,
			TimeoutSeconds: syn.TimeoutSeconds,
		}, logger, WithRetryMaxAttempts(syn.RetryAttempts+1)), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, stage, "select provider",
			"Unknown synthesis provider "+syn.Provider, nil)
	}
}

// writeAtomic writes data beside dest and renames it into place.
func writeAtomic(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.partial")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func ensureOutput(dest string) error {
	info, err := os.Stat(dest)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return os.ErrNotExist
	}
	return nil
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 48 {
		return text[:45] + "..."
	}
	return text
}
