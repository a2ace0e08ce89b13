package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dubber/internal/logging"
	"dubber/internal/services"
)

const (
	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryAttempts  = 4
	maxErrorBody          = 512
)

// OpenAIConfig captures the settings for an OpenAI-compatible speech endpoint.
type OpenAIConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	Voice          string
	TimeoutSeconds int
}

// OpenAI synthesizes speech through POST <BaseURL> with a JSON body and
// WAV response.
type OpenAI struct {
	cfg        OpenAIConfig
	httpClient *http.Client
	logger     *slog.Logger

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(context.Context, time.Duration) error
}

// Option customizes the OpenAI provider.
type Option func(*OpenAI)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *OpenAI) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithRetryMaxAttempts sets the total number of attempts per clip.
func WithRetryMaxAttempts(attempts int) Option {
	return func(o *OpenAI) {
		o.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(o *OpenAI) {
		o.retryBaseDelay = baseDelay
		o.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry waits are performed (useful for tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(o *OpenAI) {
		if sleeper != nil {
			o.sleeper = sleeper
		}
	}
}

// NewOpenAI constructs the HTTP provider.
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger, opts ...Option) *OpenAI {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	o := &OpenAI{
		cfg: OpenAIConfig{
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			Model:          strings.TrimSpace(cfg.Model),
			Voice:          strings.TrimSpace(cfg.Voice),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		logger:           logging.NewComponentLogger(logger, "tts"),
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
		sleeper:          sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg.BaseURL == "" {
		o.cfg.BaseURL = "https://api.openai.com/v1/audio/speech"
	}
	if o.cfg.Model == "" {
		o.cfg.Model = "tts-1"
	}
	if o.cfg.Voice == "" {
		o.cfg.Voice = "alloy"
	}
	return o
}

// Name identifies the provider.
func (o *OpenAI) Name() string { return "openai" }

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("speech request: http %d: %s", e.StatusCode, e.Body)
}

// Synthesize requests speech for text and writes the WAV payload to dest.
// Timeouts, 408, 429 and 5xx responses are retried with exponential
// backoff, honoring Retry-After.
func (o *OpenAI) Synthesize(ctx context.Context, text, dest string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return services.Wrap(services.ErrValidation, stage, "openai", "Text is required", nil)
	}
	if o.cfg.APIKey == "" {
		return services.Wrap(services.ErrConfiguration, stage, "openai", "API key is required", nil)
	}
	payload, err := json.Marshal(speechRequest{
		Model:          o.cfg.Model,
		Input:          text,
		Voice:          o.cfg.Voice,
		ResponseFormat: "wav",
	})
	if err != nil {
		return services.Wrap(services.ErrProvider, stage, "openai", "Failed to encode request", err)
	}

	attempts := o.retryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		audio, err := o.sendOnce(ctx, payload)
		if err == nil {
			if err := writeAtomic(dest, audio); err != nil {
				return services.Wrap(services.ErrProvider, stage, "openai", "Failed to write clip", err)
			}
			return nil
		}
		lastErr = err
		delay, retry := o.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			break
		}
		logging.WarnWithContext(o.logger, "speech request failed; retrying", "tts_retry",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldImpact, "clip synthesis delayed"),
		)
		if err := o.sleeper(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}
	if errors.Is(lastErr, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, stage, "openai", "Speech request timed out", lastErr)
	}
	return services.Wrap(services.ErrProvider, stage, "openai",
		fmt.Sprintf("Speech request failed for %q", snippet(text)), lastErr)
}

func (o *OpenAI) sendOnce(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("speech request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("speech request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Body: msg, RetryAfter: retryAfter}
	}
	if len(body) == 0 {
		return nil, errors.New("speech request: empty audio payload")
	}
	return body, nil
}

func (o *OpenAI) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return o.capDelay(statusErr.RetryAfter), true
			}
			return o.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return o.backoffDelay(attempt), true
	}
	return 0, false
}

// backoffDelay doubles from the base delay: attempt 1 -> base, 2 -> base*2.
func (o *OpenAI) backoffDelay(attempt int) time.Duration {
	if o.retryBaseDelay <= 0 {
		return 0
	}
	delay := o.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if o.retryMaxDelay > 0 && delay > o.retryMaxDelay/2 {
			return o.retryMaxDelay
		}
		delay *= 2
	}
	return o.capDelay(delay)
}

func (o *OpenAI) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if o.retryMaxDelay > 0 && delay > o.retryMaxDelay {
		return o.retryMaxDelay
	}
	return delay
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
