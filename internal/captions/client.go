// Package captions talks to the video player API to list caption tracks and
// download their json3 timed text.
package captions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lexiqai/tldr/internal/observability"
	"github.com/lexiqai/tldr/internal/resilience"
	"github.com/lexiqai/tldr/internal/transcript"
)

const (
	// ServiceName labels metrics, logs and the circuit breaker
	ServiceName = "captions"

	DefaultBaseURL = "https://www.youtube.com"

	clientName    = "WEB"
	clientVersion = "2.20251113.00.00"
	userAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"

	// maxResponseBytes caps how much of an upstream body is read
	maxResponseBytes = 32 << 20
)

var (
	// ErrVideoNotFound is returned when the player response has no video details
	ErrVideoNotFound = errors.New("video not found or server IP blocked")
	// ErrNoCaptions is returned when a video has no caption tracks
	ErrNoCaptions = errors.New("no captions found")
)

// UpstreamError is a non-2xx answer from the provider
type UpstreamError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s API returned status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s API returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// Client implements Provider over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
}

// NewClient creates a captions client. A nil breaker disables circuit breaking.
func NewClient(baseURL string, timeout time.Duration, breaker *resilience.CircuitBreaker) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
	}
}

// Video looks up the title and caption tracks of a video
func (c *Client) Video(ctx context.Context, videoID string) (*Video, error) {
	reqBody := playerRequest{
		Context: playerContext{Client: playerClient{
			ClientName:    clientName,
			ClientVersion: clientVersion,
		}},
		VideoID: videoID,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.baseURL + "/youtubei/v1/player?prettyPrint=false"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", c.baseURL+"/")

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("player request: %w", err)
	}

	var player playerResponse
	if err := json.Unmarshal(body, &player); err != nil {
		return nil, fmt.Errorf("decode player response: %w", err)
	}
	if player.VideoDetails == nil || player.VideoDetails.Title == "" {
		return nil, ErrVideoNotFound
	}

	video := &Video{ID: videoID, Title: player.VideoDetails.Title}
	if player.Captions != nil && player.Captions.Renderer != nil {
		for _, t := range player.Captions.Renderer.CaptionTracks {
			video.Tracks = append(video.Tracks, transcript.CaptionTrack{
				Language: t.LanguageCode,
				BaseURL:  t.BaseURL,
				Kind:     trackKind(t),
				Name:     t.displayName(),
			})
		}
	}
	if len(video.Tracks) == 0 {
		return nil, fmt.Errorf("%w for video %s", ErrNoCaptions, videoID)
	}
	return video, nil
}

// Entries downloads a track as json3 and returns its segment events as entries
func (c *Client) Entries(ctx context.Context, track transcript.CaptionTrack) ([]transcript.Entry, error) {
	endpoint, err := timedTextURL(track.BaseURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("caption request: %w", err)
	}

	var doc timedText
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode captions: %w", err)
	}
	return entriesFromEvents(doc.Events), nil
}

// Healthy reports whether the circuit breaker admits calls
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	if c.breaker == nil || c.breaker.Healthy() {
		return true, nil
	}
	return false, resilience.ErrOpen
}

// do sends req through the circuit breaker and returns the body of a 2xx
// response. Transport errors, 429 and 5xx count as breaker failures.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			return nil, err
		}
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	body, err := c.roundTrip(req)
	observability.RecordUpstream(ServiceName, start, err)

	if c.breaker != nil {
		c.breaker.RecordResult(!countsAsOutage(err))
	}
	if err != nil {
		observability.RecordError("upstream", ServiceName)
	}
	return body, err
}

func (c *Client) roundTrip(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Service: ServiceName, StatusCode: resp.StatusCode, Body: snippet(body)}
	}
	return body, nil
}

// countsAsOutage reports whether err says the upstream itself is unhealthy.
func countsAsOutage(err error) bool {
	if err == nil {
		return false
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.StatusCode >= 500 || upstream.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// trackKind classifies a track from its kind field and base URL
func trackKind(t captionTrack) transcript.CaptionKind {
	asr := t.Kind == "asr" || strings.Contains(t.BaseURL, "kind=asr")
	switch {
	case !asr:
		return transcript.Manual
	case strings.Contains(t.BaseURL, "variant=punctuated"):
		return transcript.AsrPunctuated
	default:
		return transcript.AsrPlain
	}
}

// timedTextURL requests the json3 format of a track's base URL
func timedTextURL(baseURL string) (string, error) {
	baseURL = strings.ReplaceAll(baseURL, `\u0026`, "&")
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid caption track URL %q", baseURL)
	}
	q := u.Query()
	q.Set("fmt", "json3")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
