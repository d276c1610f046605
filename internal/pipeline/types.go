package pipeline

import (
	"fmt"
	"net/http"
)

// SummarizeRequest is the body of POST /api/summarize
type SummarizeRequest struct {
	URL            string `json:"url"`
	APIKey         string `json:"api_key,omitempty"`
	Model          string `json:"model,omitempty"`
	SystemPrompt   string `json:"system_prompt,omitempty"`
	Language       string `json:"language,omitempty"`
	DryRun         bool   `json:"dry_run,omitempty"`
	TranscriptOnly bool   `json:"transcript_only,omitempty"`
}

// SummarizeResponse is the 200 body of POST /api/summarize
type SummarizeResponse struct {
	Summary   string `json:"summary"`
	Subtitles string `json:"subtitles"`
	VideoName string `json:"video_name"`
}

// Error is a pipeline failure with the status it should be answered with
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func badRequest(msg string, err error) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg, Err: err}
}

func failed(msg string, err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: msg, Err: err}
}
