// Package summarizer condenses transcripts with the Gemini generateContent API.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/lexiqai/tldr/internal/observability"
	"github.com/lexiqai/tldr/internal/resilience"
)

// ServiceName labels metrics, logs and the circuit breaker
const ServiceName = "summarizer"

// ErrNoText is returned when a response has no text parts
var ErrNoText = errors.New("response did not contain any text")

// Request carries per-call credentials and the text to condense
type Request struct {
	APIKey       string
	Model        string
	SystemPrompt string
	Transcript   string
}

// Summarizer defines the interface for a summarization backend
type Summarizer interface {
	// Summarize returns a summary of req.Transcript
	Summarize(ctx context.Context, req Request) (string, error)

	// Healthy reports whether the backend is currently accepting calls
	Healthy(ctx context.Context) (bool, error)
}

// GeminiClient implements Summarizer with google.golang.org/genai. A genai
// client is built per call because the API key arrives with each request.
type GeminiClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
}

// NewGeminiClient creates a Gemini summarizer. An empty baseURL uses the SDK
// default endpoint; a nil breaker disables circuit breaking.
func NewGeminiClient(baseURL string, timeout time.Duration, breaker *resilience.CircuitBreaker) *GeminiClient {
	return &GeminiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
		breaker:    breaker,
	}
}

// generationConfig matches the sampling parameters the web UI was tuned for
func generationConfig(systemPrompt string) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
		Temperature:       genai.Ptr[float32](1.0),
		TopK:              genai.Ptr[float32](64),
		TopP:              genai.Ptr[float32](0.95),
		MaxOutputTokens:   65536,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}
}

// Summarize sends the transcript as a single user turn
func (g *GeminiClient) Summarize(ctx context.Context, req Request) (string, error) {
	session := NewSession(2).SetRememberReply(false)
	session.Ask(req.Transcript)
	return g.Ask(ctx, req, session)
}

// Ask sends the session history and records the reply in the session
func (g *GeminiClient) Ask(ctx context.Context, req Request, session *Session) (string, error) {
	if g.breaker != nil {
		if err := g.breaker.Allow(); err != nil {
			return "", err
		}
	}

	start := time.Now()
	text, err := g.generate(ctx, req, session)
	observability.RecordUpstream(ServiceName, start, err)

	if g.breaker != nil {
		g.breaker.RecordResult(!countsAsOutage(err))
	}
	if err != nil {
		observability.RecordError("upstream", ServiceName)
		return "", err
	}

	session.Reply(text)
	return text, nil
}

func (g *GeminiClient) generate(ctx context.Context, req Request, session *Session) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	cc := &genai.ClientConfig{
		APIKey:     req.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	}
	if g.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return "", fmt.Errorf("create client: %w", err)
	}

	result, err := client.Models.GenerateContent(ctx, req.Model, session.contents(), generationConfig(req.SystemPrompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", ErrNoText
	}

	var text strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	if text.Len() == 0 {
		return "", ErrNoText
	}
	return text.String(), nil
}

// Healthy reports whether the circuit breaker admits calls
func (g *GeminiClient) Healthy(ctx context.Context) (bool, error) {
	if g.breaker == nil || g.breaker.Healthy() {
		return true, nil
	}
	return false, resilience.ErrOpen
}

// countsAsOutage treats transport failures, 429 and 5xx as upstream outages.
// Bad keys and unknown models are the caller's problem.
func countsAsOutage(err error) bool {
	if err == nil || errors.Is(err, ErrNoText) {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500 || apiErr.Code == http.StatusTooManyRequests
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code >= 500 || apiErrPtr.Code == http.StatusTooManyRequests
	}
	return true
}
