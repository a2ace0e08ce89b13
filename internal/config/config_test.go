package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"dubber/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("HF_TOKEN", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".cache", "dubber", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, ".local", "share", "dubber") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.Transcription.Provider != config.TranscriptionWhisperX {
		t.Fatalf("expected whisperx provider by default, got %q", cfg.Transcription.Provider)
	}
	if cfg.Transcription.VADMethod != "silero" {
		t.Fatalf("expected silero VAD default, got %q", cfg.Transcription.VADMethod)
	}
	if !cfg.Transcription.CacheEnabled {
		t.Fatal("expected transcript cache enabled by default")
	}
	if cfg.Synthesis.Provider != config.SynthesisCommand {
		t.Fatalf("expected command synthesizer by default, got %q", cfg.Synthesis.Provider)
	}
	if cfg.Dubbing.Gain != 0.2 {
		t.Fatalf("expected default gain 0.2, got %v", cfg.Dubbing.Gain)
	}
	if cfg.Dubbing.MixPolicy != config.MixPolicyFirst {
		t.Fatalf("expected first mix policy, got %q", cfg.Dubbing.MixPolicy)
	}
	if cfg.Dubbing.Workers != config.Default().Dubbing.Workers {
		t.Fatalf("unexpected workers: %d", cfg.Dubbing.Workers)
	}
	if !cfg.Output.Remux || !cfg.Output.Subtitles {
		t.Fatal("expected remux and subtitles enabled by default")
	}
	if cfg.RunTimeout() != 0 {
		t.Fatalf("expected no run timeout, got %v", cfg.RunTimeout())
	}
	if cfg.StorePath() != filepath.Join(cfg.Paths.StateDir, "dubber.db") {
		t.Fatalf("unexpected store path: %q", cfg.StorePath())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "dubber.toml")

	type payload struct {
		Transcription struct {
			Language string `toml:"language"`
		} `toml:"transcription"`
		Dubbing struct {
			Gain           float64 `toml:"gain"`
			MixPolicy      string  `toml:"mix_policy"`
			Workers        int     `toml:"workers"`
			TimeoutSeconds int     `toml:"timeout_seconds"`
		} `toml:"dubbing"`
		Media struct {
			FFmpegBinary string `toml:"ffmpeg_binary"`
		} `toml:"media"`
	}
	custom := payload{}
	custom.Transcription.Language = "English"
	custom.Dubbing.Gain = 0.35
	custom.Dubbing.MixPolicy = "LONGEST"
	custom.Dubbing.Workers = 8
	custom.Dubbing.TimeoutSeconds = 90
	custom.Media.FFmpegBinary = "/opt/ffmpeg/bin/ffmpeg"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Transcription.Language != "en" {
		t.Fatalf("expected normalized language en, got %q", cfg.Transcription.Language)
	}
	if cfg.Dubbing.Gain != 0.35 {
		t.Fatalf("expected gain 0.35, got %v", cfg.Dubbing.Gain)
	}
	if cfg.Dubbing.MixPolicy != config.MixPolicyLongest {
		t.Fatalf("expected normalized mix policy, got %q", cfg.Dubbing.MixPolicy)
	}
	if cfg.Dubbing.Workers != 8 {
		t.Fatalf("expected 8 workers, got %d", cfg.Dubbing.Workers)
	}
	if cfg.RunTimeout() != 90*time.Second {
		t.Fatalf("expected 90s run timeout, got %v", cfg.RunTimeout())
	}
	if cfg.FFmpegBinary() != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("unexpected ffmpeg binary: %q", cfg.FFmpegBinary())
	}
	if cfg.FFprobeBinary() != "ffprobe" {
		t.Fatalf("unexpected ffprobe binary: %q", cfg.FFprobeBinary())
	}
}

func TestEnvVarsFillMissingSecrets(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "dubber.toml")

	type payload struct {
		Synthesis struct {
			Provider string `toml:"provider"`
		} `toml:"synthesis"`
		Transcription struct {
			HFToken string `toml:"hf_token"`
		} `toml:"transcription"`
	}
	custom := payload{}
	custom.Synthesis.Provider = "openai"
	custom.Transcription.HFToken = "file-hf"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	t.Setenv("OPENAI_API_KEY", "env-openai")
	t.Setenv("HF_TOKEN", "env-hf")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Synthesis.APIKey != "env-openai" {
		t.Errorf("expected OpenAI key from env, got %q", cfg.Synthesis.APIKey)
	}
	if cfg.Synthesis.Voice != "alloy" {
		t.Errorf("expected default openai voice, got %q", cfg.Synthesis.Voice)
	}
	if cfg.Transcription.HFToken != "file-hf" {
		t.Errorf("expected file HF token to win over env, got %q", cfg.Transcription.HFToken)
	}
}

func TestLoadRejectsOpenAIWithoutKey(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "dubber.toml")
	if err := os.WriteFile(configPath, []byte("[synthesis]\nprovider = \"openai\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("OPENAI_API_KEY", "")

	if _, _, _, err := config.Load(configPath); err == nil || !strings.Contains(err.Error(), "synthesis.api_key") {
		t.Fatalf("expected api key validation error, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "mix_policy") {
		t.Fatalf("sample config missing mix_policy: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}

	if runtime.GOOS != "windows" {
		if !strings.Contains(cfg.Paths.WorkDir, "dubber") {
			t.Fatalf("expected work dir to contain dubber, got %q", cfg.Paths.WorkDir)
		}
	}
	if cfg.Dubbing.Gain != 0.2 {
		t.Fatalf("expected sample gain 0.2, got %v", cfg.Dubbing.Gain)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	mutations := map[string]func(*config.Config){
		"gain above one":       func(c *config.Config) { c.Dubbing.Gain = 1.5 },
		"negative gain":        func(c *config.Config) { c.Dubbing.Gain = -0.1 },
		"unknown mix policy":   func(c *config.Config) { c.Dubbing.MixPolicy = "shortest" },
		"tempo below one":      func(c *config.Config) { c.Dubbing.MaxTempo = 0.5 },
		"zero workers":         func(c *config.Config) { c.Dubbing.Workers = 0 },
		"negative timeout":     func(c *config.Config) { c.Dubbing.TimeoutSeconds = -1 },
		"unknown transcriber":  func(c *config.Config) { c.Transcription.Provider = "vosk" },
		"unknown vad":          func(c *config.Config) { c.Transcription.VADMethod = "webrtc" },
		"bad language":         func(c *config.Config) { c.Transcription.Language = "not a language" },
		"unknown synthesizer":  func(c *config.Config) { c.Synthesis.Provider = "festival" },
		"empty command":        func(c *config.Config) { c.Synthesis.Command = "" },
		"negative retries":     func(c *config.Config) { c.Synthesis.RetryAttempts = -1 },
		"unknown log format":   func(c *config.Config) { c.Logging.Format = "xml" },
		"negative retention":   func(c *config.Config) { c.Logging.RetentionDays = -2 },
		"openai without a key": func(c *config.Config) { c.Synthesis.Provider = config.SynthesisOpenAI; c.Synthesis.APIKey = "" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}
