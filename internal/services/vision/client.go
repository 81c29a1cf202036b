package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/googleapi"

	"binder/internal/cards"
)

const (
	defaultModel          = "gemini-2.5-flash"
	defaultTimeout        = 45 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 3
	defaultMaxImageBytes  = 16 << 20
)

// Config captures the runtime settings required to talk to the
// recognition model.
type Config struct {
	APIKey         string
	Model          string
	TimeoutSeconds int
	MaxImageBytes  int64
}

// DefaultTimeout returns the default timeout used for recognition requests.
func DefaultTimeout() time.Duration {
	return defaultTimeout
}

var (
	// ErrBadImage marks a scan image that cannot be submitted for
	// recognition (missing, empty, or not a supported image type).
	ErrBadImage = errors.New("unreadable scan image")
	// ErrBadPayload marks a model response that failed structured
	// decoding. The request itself succeeded, so retrying the transport
	// will not help.
	ErrBadPayload = errors.New("malformed recognition payload")
)

// Extraction is one recognition pass over a card image. Raw keeps the
// unparsed model payload for troubleshooting.
type Extraction struct {
	Fields cards.DetectedCardFields
	Raw    string
}

// Extractor reads card fields from scan images. The side hint ("front",
// "back", or empty) tells the model which card face the photograph shows.
type Extractor interface {
	ExtractFields(ctx context.Context, imagePath, sideHint string) (Extraction, error)
	HealthCheck(ctx context.Context) error
}

type generator interface {
	generateJSON(ctx context.Context, req generateRequest) (string, error)
}

// Client calls the Gemini API to read card fields from scan images.
type Client struct {
	cfg       Config
	timeout   time.Duration
	generator generator

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

var _ Extractor = (*Client)(nil)

// Option customizes the client.
type Option func(*Client)

// WithGenerator overrides the Gemini backend (primarily for tests).
func WithGenerator(gen generator) Option {
	return func(c *Client) {
		if gen != nil {
			c.generator = gen
		}
	}
}

// WithRetryMaxAttempts overrides the default attempt count (defaults to 3).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a recognition client using the supplied
// configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
			MaxImageBytes:  cfg.MaxImageBytes,
		},
		timeout:          timeout,
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.Model == "" {
		client.cfg.Model = defaultModel
	}
	if client.cfg.MaxImageBytes <= 0 {
		client.cfg.MaxImageBytes = defaultMaxImageBytes
	}
	if client.generator == nil {
		client.generator = geminiGenerator{apiKey: client.cfg.APIKey}
	}
	return client
}

// ExtractFields reads one card image and returns the printed fields the
// model could identify. Missing keys and malformed payloads are errors;
// an all-null record is a valid outcome for an unreadable image.
func (c *Client) ExtractFields(ctx context.Context, imagePath, sideHint string) (Extraction, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return Extraction{}, errors.New("vision extract: api key required")
	}
	image, mimeType, err := readImage(imagePath, c.cfg.MaxImageBytes)
	if err != nil {
		return Extraction{}, fmt.Errorf("%w: %w", ErrBadImage, err)
	}

	raw, err := c.generateWithRetry(ctx, generateRequest{
		model:  c.cfg.Model,
		system: extractionInstruction,
		user:   extractionPrompt(sideHint),
		image:  image,
		mime:   mimeType,
		schema: detectedFieldsSchema(),
	})
	if err != nil {
		return Extraction{}, err
	}
	fields, err := decodeDetectedPayload(raw)
	if err != nil {
		return Extraction{}, fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	return Extraction{Fields: fields, Raw: raw}, nil
}

// HealthCheck issues a fast ping to verify the API key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return errors.New("vision health: api key required")
	}
	raw, err := c.generateWithRetry(ctx, generateRequest{
		model:  c.cfg.Model,
		system: "You must respond with JSON only.",
		user:   `Respond with {"ok":true}`,
	})
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := decodeModelJSON(raw, &parsed); err != nil {
		return fmt.Errorf("vision health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("vision health: unexpected response")
	}
	return nil
}

func (c *Client) generateWithRetry(ctx context.Context, req generateRequest) (string, error) {
	attempts := c.retryAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		raw, err := c.generateOnce(ctx, req)
		if err == nil {
			return raw, nil
		}
		delay, retryable := c.retryDelay(ctx, err, attempt, attempts)
		if !retryable {
			return "", err
		}
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return "", sleepErr
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return "", fmt.Errorf("vision extract: failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) generateOnce(ctx context.Context, req generateRequest) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.generator.generateJSON(attemptCtx, req)
}

func (c *Client) retryAttempts() int {
	if c == nil {
		return 1
	}
	if c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

// retryDelay reports whether the attempt should be retried and the delay
// to wait before the next attempt.
func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts {
		return 0, false
	}
	if err == nil {
		return 0, false
	}
	if ctx == nil {
		return 0, false
	}
	if ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusRequestTimeout,
			apiErr.Code == http.StatusTooManyRequests,
			apiErr.Code >= http.StatusInternalServerError:
			if retryAfter := parseRetryAfter(apiErr.Header.Get("Retry-After")); retryAfter > 0 {
				return c.capDelay(retryAfter), true
			}
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return c.backoffDelay(attempt), true
		}
		return 0, false
	}

	// The SDK surfaces stream and transport failures without a status
	// code; treat those as transient.
	return c.backoffDelay(attempt), true
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	baseDelay := defaultRetryBaseDelay
	maxDelay := defaultRetryMaxDelay
	if c != nil {
		if c.retryBaseDelay >= 0 {
			baseDelay = c.retryBaseDelay
		}
		if c.retryMaxDelay > 0 {
			maxDelay = c.retryMaxDelay
		}
	}
	if baseDelay <= 0 {
		return 0
	}

	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			delay = maxDelay
			break
		}
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	maxDelay := defaultRetryMaxDelay
	if c != nil && c.retryMaxDelay > 0 {
		maxDelay = c.retryMaxDelay
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if ctx == nil {
		return errors.New("vision retry: nil context")
	}
	if delay <= 0 {
		return ctx.Err()
	}
	if c != nil && c.sleeper != nil {
		c.sleeper(delay)
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

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay
		}
	}
	return 0
}

var supportedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

func readImage(path string, maxBytes int64) ([]byte, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", fmt.Errorf("read scan image: %w", err)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return nil, "", fmt.Errorf("scan image %s is %d bytes; limit is %d", path, info.Size(), maxBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read scan image: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("scan image %s is empty", path)
	}
	mimeType := http.DetectContentType(data)
	if _, ok := supportedImageTypes[mimeType]; !ok {
		return nil, "", fmt.Errorf("scan image %s has unsupported type %s", path, mimeType)
	}
	return data, mimeType, nil
}

func decodeDetectedPayload(content string) (cards.DetectedCardFields, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return cards.DetectedCardFields{}, errors.New("empty payload")
	}

	fields, directErr := cards.DecodeDetectedFields([]byte(trimmed))
	if directErr == nil {
		return fields, nil
	}

	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return cards.DetectedCardFields{}, fmt.Errorf("%w (payload snippet: %s)", directErr, summarizePayloadSnippet(trimmed))
	}
	fields, sanitizedErr := cards.DecodeDetectedFields([]byte(sanitized))
	if sanitizedErr == nil {
		return fields, nil
	}
	return cards.DetectedCardFields{}, fmt.Errorf("%w (sanitized payload snippet: %s)", sanitizedErr, summarizePayloadSnippet(sanitized))
}

func decodeModelJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, summarizePayloadSnippet(trimmed))
	}
	sanitizedErr := json.Unmarshal([]byte(sanitized), target)
	if sanitizedErr == nil {
		return nil
	}
	return fmt.Errorf("%w (sanitized payload snippet: %s)", sanitizedErr, summarizePayloadSnippet(sanitized))
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	if start := strings.Index(trimmed, "["); start >= 0 {
		if end := strings.LastIndex(trimmed, "]"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
		body = strings.TrimLeft(body, " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func summarizePayloadSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	replacer := strings.NewReplacer("\r", " ", "\n", " ", "\t", " ")
	clean := replacer.Replace(trimmed)
	clean = strings.Join(strings.Fields(clean), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
