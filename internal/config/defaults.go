package config

const (
	defaultConfigPath            = "~/.config/dubber/config.toml"
	defaultWorkDir               = "~/.cache/dubber/work"
	defaultStateDir              = "~/.local/share/dubber"
	defaultLogDir                = "~/.local/share/dubber/logs"
	defaultLogRetentionDays      = 30
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultTranscriptionProvider = "whisperx"
	defaultWhisperXModel         = "large-v3"
	defaultVADMethod             = "silero"
	defaultSynthesisProvider     = "command"
	defaultSynthesisCommand      = "espeak-ng"
	defaultSynthesisBaseURL      = "https://api.openai.com/v1/audio/speech"
	defaultSynthesisModel        = "tts-1"
	defaultSynthesisVoice        = "alloy"
	defaultSynthesisTimeout      = 60
	defaultSynthesisRetries      = 3
	defaultGain                  = 0.2
	defaultMixPolicy             = "first"
	defaultMaxTempo              = 1.5
	defaultWorkers               = 4
	defaultRemuxAudioCodec       = "aac"
)

// Mix policies accepted by dubbing.mix_policy.
const (
	MixPolicyFirst   = "first"
	MixPolicyLongest = "longest"
	MixPolicyStretch = "stretch"
)

// Transcription providers accepted by transcription.provider.
const (
	TranscriptionWhisperX = "whisperx"
	TranscriptionFile     = "file"
)

// Synthesis providers accepted by synthesis.provider.
const (
	SynthesisCommand = "command"
	SynthesisOpenAI  = "openai"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Media: Media{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Transcription: Transcription{
			Provider:     defaultTranscriptionProvider,
			Model:        defaultWhisperXModel,
			VADMethod:    defaultVADMethod,
			CacheEnabled: true,
		},
		Synthesis: Synthesis{
			Provider:       defaultSynthesisProvider,
			Command:        defaultSynthesisCommand,
			BaseURL:        defaultSynthesisBaseURL,
			Model:          defaultSynthesisModel,
			Voice:          "",
			TimeoutSeconds: defaultSynthesisTimeout,
			RetryAttempts:  defaultSynthesisRetries,
		},
		Dubbing: Dubbing{
			Gain:      defaultGain,
			MixPolicy: defaultMixPolicy,
			MaxTempo:  defaultMaxTempo,
			Workers:   defaultWorkers,
		},
		Output: Output{
			Remux:      true,
			Subtitles:  true,
			AudioCodec: defaultRemuxAudioCodec,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
