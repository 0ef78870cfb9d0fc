package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wireContent is the JSON shape of a content entry on the request.
type wireContent struct {
	Role  string `json:"role"`
	Parts []struct {
		Text string `json:"text"`
	} `json:"parts"`
}

type wireRequest struct {
	SystemInstruction *wireContent  `json:"systemInstruction"`
	Contents          []wireContent `json:"contents"`
}

const generatePath = "/v1beta/models/test-model:generateContent"

func geminiServer(t *testing.T, statuses []int, reply string) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))

		assert.Equal(t, generatePath, r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var req wireRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		if n <= len(statuses) && statuses[n-1] != http.StatusOK {
			w.WriteHeader(statuses[n-1])
			fmt.Fprintf(w, `{"error":{"code":%d,"message":"busy","status":"UNAVAILABLE"}}`, statuses[n-1])
			return
		}

		fmt.Fprintf(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":%q}]}}]}`, reply)
	}))
	t.Cleanup(srv.Close)

	return srv, &calls
}

func newTestGemini(t *testing.T, url string) *Gemini {
	t.Helper()
	g, err := NewGemini(context.Background(), "test-key", "test-model",
		WithBaseURL(url),
		WithRetry(3, time.Millisecond))
	require.NoError(t, err)
	return g
}

func TestGeminiGenerate(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		reply     string
		wantText  string
		wantErr   error
		wantCalls int32
	}{
		{"first_try", nil, "Intro Deep Dive: more", "Intro Deep Dive: more", nil, 1},
		{"retry_on_429", []int{429, 503}, "ok", "ok", nil, 3},
		{"overloaded", []int{429, 429, 429}, "never", "", ErrOverloaded, 3},
		{"empty_reply", nil, "   ", "", ErrEmpty, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := geminiServer(t, tt.statuses, tt.reply)

			got, err := newTestGemini(t, srv.URL).Generate(context.Background(), Prompt{Question: "what about Mars?"})
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "Generate() error = %v", err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantText, got)
			}
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestGeminiDoesNotRetryClientErrors(t *testing.T) {
	srv, calls := geminiServer(t, []int{http.StatusBadRequest}, "never")

	_, err := newTestGemini(t, srv.URL).Generate(context.Background(), Prompt{Question: "hi"})

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, statusCode(err))
	assert.False(t, errors.Is(err, ErrOverloaded))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeminiRequestCarriesHistory(t *testing.T) {
	var got wireRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, generatePath, r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"a"},{"text":"b"}]}}]}`)
	}))
	defer srv.Close()

	now := time.Date(2026, 3, 21, 6, 0, 0, 0, time.UTC)
	text, err := newTestGemini(t, srv.URL).Generate(context.Background(), Prompt{
		Question: "and my career?",
		History: []Turn{
			{Role: RoleUser, Text: "hello"},
			{Role: RoleModel, Text: "Namaste"},
		},
		Now: now,
	})
	require.NoError(t, err)
	assert.Equal(t, "ab", text)

	require.NotNil(t, got.SystemInstruction)
	assert.Contains(t, got.SystemInstruction.Parts[0].Text, "Deep Dive:")
	require.Len(t, got.Contents, 3)
	assert.Equal(t, "model", got.Contents[1].Role)
	assert.Equal(t, "[Current Real-Time: Saturday, March 21, 2026 06:00 UTC] and my career?", got.Contents[2].Parts[0].Text)
}

func TestFallbackText(t *testing.T) {
	assert.Equal(t, overloadedText, FallbackText(fmt.Errorf("wrapped: %w", ErrOverloaded)))
	assert.Equal(t, emptyText, FallbackText(ErrEmpty))
	assert.Equal(t, failureText, FallbackText(errors.New("boom")))
}

func TestCanned(t *testing.T) {
	c := &Canned{Readings: []string{"one", "two"}}

	for _, want := range []string{"one", "two", "one"} {
		got, err := c.Generate(context.Background(), Prompt{})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Generate(ctx, Prompt{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCannedDefaultsHaveDeepDives(t *testing.T) {
	c := &Canned{}
	got, err := c.Generate(context.Background(), Prompt{})
	require.NoError(t, err)
	assert.Contains(t, got, "Deep Dive:")
}
