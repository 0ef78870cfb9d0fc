package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"
)

const (
	defaultAttempts    = 3
	defaultBackoffBase = 2 * time.Second
)

// Gemini generates readings through the Gemini API.
type Gemini struct {
	client      *genai.Client
	model       string
	attempts    uint64
	backoffBase time.Duration
	temperature float32
}

type geminiConfig struct {
	baseURL     string
	httpClient  *http.Client
	attempts    uint64
	backoffBase time.Duration
}

type GeminiOption func(*geminiConfig)

// WithBaseURL points the client at another endpoint, mostly for tests.
// Empty keeps the SDK default.
func WithBaseURL(u string) GeminiOption {
	return func(c *geminiConfig) { c.baseURL = u }
}

func WithHTTPClient(hc *http.Client) GeminiOption {
	return func(c *geminiConfig) { c.httpClient = hc }
}

// WithRetry sets the number of attempts and the first backoff delay, which
// doubles on every retry.
func WithRetry(attempts int, base time.Duration) GeminiOption {
	return func(c *geminiConfig) {
		if attempts > 0 {
			c.attempts = uint64(attempts)
		}
		if base > 0 {
			c.backoffBase = base
		}
	}
}

func NewGemini(ctx context.Context, apiKey, model string, opts ...GeminiOption) (*Gemini, error) {
	cfg := geminiConfig{
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		attempts:    defaultAttempts,
		backoffBase: defaultBackoffBase,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("internal/oracle: could not create gemini client: %w", err)
	}

	return &Gemini{
		client:      client,
		model:       model,
		attempts:    cfg.attempts,
		backoffBase: cfg.backoffBase,
		temperature: 0.7,
	}, nil
}

// statusCode returns the HTTP status of an API error, or 0.
func statusCode(err error) int {
	var ae genai.APIError
	if errors.As(err, &ae) {
		return ae.Code
	}
	var pae *genai.APIError
	if errors.As(err, &pae) && pae != nil {
		return pae.Code
	}
	return 0
}

// retryable reports whether the call may succeed later.
func retryable(err error) bool {
	code := statusCode(err)
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

// Generate sends the prompt, retrying with exponential backoff while the API
// answers 429 or 503.
func (g *Gemini) Generate(ctx context.Context, p Prompt) (string, error) {
	contents, config := g.request(p)

	var text string
	attempt := 0
	backoff := retry.WithMaxRetries(g.attempts-1, retry.NewExponential(g.backoffBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		res, callErr := g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if callErr != nil {
			if retryable(callErr) {
				slog.WarnContext(ctx, "generator busy, retrying",
					slog.Int("attempt", attempt),
					slog.Int("status", statusCode(callErr)))
				return retry.RetryableError(callErr)
			}
			return fmt.Errorf("internal/oracle: generateContent failed: %w", callErr)
		}
		text = res.Text()
		return nil
	})
	if err != nil {
		if retryable(err) {
			return "", fmt.Errorf("%w after %d attempts: %v", ErrOverloaded, attempt, err)
		}
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		return "", ErrEmpty
	}
	return text, nil
}

func (g *Gemini) request(p Prompt) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents := make([]*genai.Content, 0, len(p.History)+1)
	for _, t := range p.History {
		contents = append(contents, genai.NewContentFromText(t.Text, genai.Role(t.Role)))
	}
	contents = append(contents, genai.NewContentFromText(p.Text(), genai.RoleUser))

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(SystemInstruction)}},
		Temperature:       genai.Ptr(g.temperature),
	}
	return contents, config
}
