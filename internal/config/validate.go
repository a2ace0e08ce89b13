package config

import (
	"errors"
	"fmt"
	"strings"

	langpkg "dubber/internal/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateSynthesis(); err != nil {
		return err
	}
	if err := c.validateDubbing(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Provider {
	case TranscriptionWhisperX, TranscriptionFile:
	default:
		return fmt.Errorf("transcription.provider: unsupported value %q (want whisperx or file)", c.Transcription.Provider)
	}
	switch c.Transcription.VADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("transcription.vad_method: unsupported value %q (want silero or pyannote)", c.Transcription.VADMethod)
	}
	if lang := strings.TrimSpace(c.Transcription.Language); lang != "" && langpkg.ToISO2(lang) == "" {
		return fmt.Errorf("transcription.language: unrecognized language %q", lang)
	}
	return nil
}

func (c *Config) validateSynthesis() error {
	switch c.Synthesis.Provider {
	case SynthesisCommand:
		if strings.TrimSpace(c.Synthesis.Command) == "" {
			return errors.New("synthesis.command must be set when synthesis.provider is command")
		}
	case SynthesisOpenAI:
		if strings.TrimSpace(c.Synthesis.APIKey) == "" {
			return errors.New("synthesis.api_key must be set when synthesis.provider is openai (or set OPENAI_API_KEY)")
		}
	default:
		return fmt.Errorf("synthesis.provider: unsupported value %q (want command or openai)", c.Synthesis.Provider)
	}
	if c.Synthesis.RetryAttempts < 0 {
		return errors.New("synthesis.retry_attempts must be >= 0")
	}
	return nil
}

func (c *Config) validateDubbing() error {
	if c.Dubbing.Gain < 0 || c.Dubbing.Gain > 1 {
		return errors.New("dubbing.gain must be between 0 and 1")
	}
	switch c.Dubbing.MixPolicy {
	case MixPolicyFirst, MixPolicyLongest, MixPolicyStretch:
	default:
		return fmt.Errorf("dubbing.mix_policy: unsupported value %q (want first, longest or stretch)", c.Dubbing.MixPolicy)
	}
	if c.Dubbing.MaxTempo < 1 || c.Dubbing.MaxTempo > 4 {
		return errors.New("dubbing.max_tempo must be between 1 and 4")
	}
	if c.Dubbing.Workers < 1 {
		return errors.New("dubbing.workers must be positive")
	}
	if c.Dubbing.TimeoutSeconds < 0 {
		return errors.New("dubbing.timeout_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}
