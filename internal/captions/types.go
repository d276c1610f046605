package captions

import (
	"context"

	"github.com/lexiqai/tldr/internal/transcript"
)

// Video is the player metadata needed to fetch a transcript
type Video struct {
	ID     string
	Title  string
	Tracks []transcript.CaptionTrack
}

// Provider defines the interface for a captions source
type Provider interface {
	// Video looks up the title and caption tracks of a video
	Video(ctx context.Context, videoID string) (*Video, error)

	// Entries downloads the timed entries of one track
	Entries(ctx context.Context, track transcript.CaptionTrack) ([]transcript.Entry, error)

	// Healthy reports whether the provider is currently accepting calls
	Healthy(ctx context.Context) (bool, error)
}

// playerRequest is the body posted to the player endpoint
type playerRequest struct {
	Context playerContext `json:"context"`
	VideoID string        `json:"videoId"`
}

type playerContext struct {
	Client playerClient `json:"client"`
}

type playerClient struct {
	ClientName    string `json:"clientName"`
	ClientVersion string `json:"clientVersion"`
	HL            string `json:"hl,omitempty"`
}

// playerResponse holds the fields read from the player endpoint
type playerResponse struct {
	VideoDetails *struct {
		VideoID string `json:"videoId"`
		Title   string `json:"title"`
	} `json:"videoDetails"`
	Captions *struct {
		Renderer *struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
	Name         struct {
		SimpleText string `json:"simpleText"`
		Runs       []struct {
			Text string `json:"text"`
		} `json:"runs"`
	} `json:"name"`
}

// displayName returns the track's human readable name
func (t captionTrack) displayName() string {
	if t.Name.SimpleText != "" {
		return t.Name.SimpleText
	}
	for _, run := range t.Name.Runs {
		if run.Text != "" {
			return run.Text
		}
	}
	return ""
}

// timedText is the json3 caption document
type timedText struct {
	Events []Event `json:"events"`
}
