// Package pipeline turns a summarize request into a response: fetch the
// captions, pick a track, merge it into a transcript and condense it.
package pipeline

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/lexiqai/tldr/internal/captions"
	"github.com/lexiqai/tldr/internal/summarizer"
	"github.com/lexiqai/tldr/internal/transcript"
)

//go:embed dryrun.md
var dryRunMarkdown string

// DryRunVideoName is the video_name of every dry run response
const DryRunVideoName = "Dry Run"

var (
	ErrMissingURL          = errors.New("missing url")
	ErrMissingAPIKey       = errors.New("missing API key")
	ErrMissingModel        = errors.New("missing model")
	ErrMissingSystemPrompt = errors.New("missing system prompt")
)

// Options holds the defaults applied to every request
type Options struct {
	DefaultLanguage string
	Merge           transcript.MergeConfig
}

// Transcript is a merged transcript and where it came from
type Transcript struct {
	Video *captions.Video
	Track transcript.CaptionTrack
	Text  string
}

// Service runs summarize requests. It holds no per-request state and is
// safe for concurrent use.
type Service struct {
	captions   captions.Provider
	summarizer summarizer.Summarizer
	opts       Options
}

// New creates a pipeline service
func New(provider captions.Provider, s summarizer.Summarizer, opts Options) *Service {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "en"
	}
	return &Service{captions: provider, summarizer: s, opts: opts}
}

// Decode parses a request body
func Decode(body []byte) (SummarizeRequest, error) {
	var req SummarizeRequest
	if len(bytes.TrimSpace(body)) == 0 {
		return req, badRequest("invalid request body", errors.New("empty body"))
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, badRequest("invalid request body", err)
	}
	return req, nil
}

// Run decodes body and handles it
func (s *Service) Run(ctx context.Context, body []byte) (*SummarizeResponse, error) {
	req, err := Decode(body)
	if err != nil {
		return nil, err
	}
	return s.Summarize(ctx, req)
}

// Summarize handles a decoded request. Errors are always *Error.
func (s *Service) Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error) {
	logger := zerolog.Ctx(ctx)

	if req.DryRun {
		logger.Debug().Msg("Dry run")
		return &SummarizeResponse{
			Summary:   dryRunMarkdown,
			Subtitles: dryRunMarkdown,
			VideoName: DryRunVideoName,
		}, nil
	}

	videoID, lang, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	sreq := summarizer.Request{
		APIKey:       strings.TrimSpace(req.APIKey),
		Model:        strings.TrimSpace(req.Model),
		SystemPrompt: req.SystemPrompt,
	}
	if !req.TranscriptOnly {
		if err := checkCredentials(sreq); err != nil {
			return nil, err
		}
	}

	t, err := s.transcript(ctx, videoID, lang)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("video_id", videoID).
		Str("language", t.Track.Language).
		Str("kind", t.Track.Kind.String()).
		Int("chars", len(t.Text)).
		Msg("Transcript merged")

	if req.TranscriptOnly {
		return &SummarizeResponse{Summary: t.Text, Subtitles: t.Text, VideoName: t.Video.Title}, nil
	}

	sreq.Transcript = t.Text
	start := time.Now()
	summary, err := s.summarizer.Summarize(ctx, sreq)
	if err != nil {
		return nil, failed("summarize", err)
	}
	logger.Info().Dur("duration", time.Since(start)).Int("chars", len(summary)).Msg("Summary generated")

	return &SummarizeResponse{Summary: summary, Subtitles: t.Text, VideoName: t.Video.Title}, nil
}

// Transcript fetches and merges the best track of the video at rawURL. An
// empty lang uses the default language.
func (s *Service) Transcript(ctx context.Context, rawURL, lang string) (*Transcript, error) {
	videoID, tag, err := s.validate(SummarizeRequest{URL: rawURL, Language: lang})
	if err != nil {
		return nil, err
	}
	return s.transcript(ctx, videoID, tag)
}

// Tracks lists the caption tracks of the video at rawURL and the one that
// would be selected for lang. The selected track is zero when none matches.
func (s *Service) Tracks(ctx context.Context, rawURL, lang string) (*captions.Video, transcript.CaptionTrack, error) {
	videoID, tag, err := s.validate(SummarizeRequest{URL: rawURL, Language: lang})
	if err != nil {
		return nil, transcript.CaptionTrack{}, err
	}
	video, err := s.captions.Video(ctx, videoID)
	if err != nil {
		return nil, transcript.CaptionTrack{}, failed("fetch captions", err)
	}
	track, err := transcript.SelectTrack(video.Tracks, tag)
	if err != nil {
		return video, transcript.CaptionTrack{}, failed("", err)
	}
	return video, track, nil
}

// MergeConfig returns the merge settings applied to transcripts
func (s *Service) MergeConfig() transcript.MergeConfig {
	return s.opts.Merge
}

// WithMergeConfig returns a copy of s that merges with cfg
func (s *Service) WithMergeConfig(cfg transcript.MergeConfig) *Service {
	c := *s
	c.opts.Merge = cfg
	return &c
}

func (s *Service) transcript(ctx context.Context, videoID, lang string) (*Transcript, error) {
	video, err := s.captions.Video(ctx, videoID)
	if err != nil {
		return nil, failed("fetch captions", err)
	}

	track, err := transcript.SelectTrack(video.Tracks, lang)
	if err != nil {
		return nil, failed("", err)
	}

	entries, err := s.captions.Entries(ctx, track)
	if err != nil {
		return nil, failed("fetch captions", err)
	}

	return &Transcript{
		Video: video,
		Track: track,
		Text:  transcript.Merge(entries, s.opts.Merge),
	}, nil
}

// validate extracts the video ID and resolves the language
func (s *Service) validate(req SummarizeRequest) (string, string, error) {
	if strings.TrimSpace(req.URL) == "" {
		return "", "", badRequest("", ErrMissingURL)
	}
	videoID, err := captions.ExtractVideoID(req.URL)
	if err != nil {
		return "", "", badRequest("", err)
	}

	lang := strings.TrimSpace(req.Language)
	if lang == "" {
		lang = s.opts.DefaultLanguage
	}
	if _, err := language.Parse(lang); err != nil {
		return "", "", badRequest("invalid language "+lang, err)
	}
	return videoID, lang, nil
}

func checkCredentials(req summarizer.Request) error {
	switch {
	case req.APIKey == "":
		return failed("", ErrMissingAPIKey)
	case req.Model == "":
		return failed("", ErrMissingModel)
	case strings.TrimSpace(req.SystemPrompt) == "":
		return failed("", ErrMissingSystemPrompt)
	}
	return nil
}
