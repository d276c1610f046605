package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testURL = "https://youtu.be/dQw4w9WgXcQ"

func fakeCaptions(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/youtubei/v1/player", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{
  "videoDetails": {"videoId": "dQw4w9WgXcQ", "title": "Test Video"},
  "captions": {"playerCaptionsTracklistRenderer": {"captionTracks": [
    {"baseUrl": "%[1]s/api/timedtext?lang=en&kind=asr", "languageCode": "en", "kind": "asr", "name": {"simpleText": "English (auto-generated)"}},
    {"baseUrl": "%[1]s/api/timedtext?lang=en", "languageCode": "en", "name": {"simpleText": "English"}}
  ]}}
}`, srv.URL)
	})
	mux.HandleFunc("/api/timedtext", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"events": [
  {"tStartMs": 0, "dDurationMs": 1000, "segs": [{"utf8": "Hello [Music]"}]},
  {"tStartMs": 1000, "dDurationMs": 1000, "segs": [{"utf8": "world"}]},
  {"tStartMs": 3000, "dDurationMs": 1000, "segs": [{"utf8": "Again"}]}
]}`)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stdout)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestTracksCommand(t *testing.T) {
	srv := fakeCaptions(t)
	t.Setenv("TLDR_CAPTIONS_BASE_URL", srv.URL)

	out, err := runCLI(t, "tracks", testURL)
	if err != nil {
		t.Fatalf("tracks failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Test Video (dQw4w9WgXcQ)") {
		t.Errorf("Expected title line, got:\n%s", out)
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "English (auto-generated)") && strings.Contains(line, "*") {
			t.Errorf("ASR track should not be selected:\n%s", out)
		}
		if strings.Contains(line, "manual") && !strings.Contains(line, "*") {
			t.Errorf("Manual track should be selected:\n%s", out)
		}
	}
}

func TestTracksCommand_NoTrack(t *testing.T) {
	srv := fakeCaptions(t)
	t.Setenv("TLDR_CAPTIONS_BASE_URL", srv.URL)

	out, err := runCLI(t, "tracks", testURL, "--lang", "fr")
	if err == nil {
		t.Fatal("Expected an error for a missing language")
	}
	if !strings.Contains(out, "Test Video") {
		t.Errorf("Expected the track table anyway, got:\n%s", out)
	}
}

func TestTranscriptCommand(t *testing.T) {
	srv := fakeCaptions(t)
	t.Setenv("TLDR_CAPTIONS_BASE_URL", srv.URL)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"defaults", nil, "Hello world Again\n"},
		{"short pause", []string{"--pause", "0.5"}, "Hello world\n\nAgain\n"},
		{"keep annotations", []string{"--keep-annotations"}, "Hello [Music] world Again\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, append([]string{"transcript", testURL}, tt.args...)...)
			if err != nil {
				t.Fatalf("transcript failed: %v", err)
			}
			if out != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, out)
			}
		})
	}
}

func TestTranscriptCommand_InvalidURL(t *testing.T) {
	if _, err := runCLI(t, "transcript", "https://example.com/"); err == nil {
		t.Error("Expected an error for an invalid URL")
	}
}

func TestServeCommand_InvalidFlags(t *testing.T) {
	if _, err := runCLI(t, "serve", "--workers", "0"); err == nil {
		t.Error("Expected validation error for zero workers")
	}
	if _, err := runCLI(t, "serve", "--port", "http"); err == nil {
		t.Error("Expected validation error for a non-numeric port")
	}
}

func TestConfigFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tldr.yaml")
	if err := os.WriteFile(path, []byte("workers: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TLDR_CONFIG", "")
	t.Setenv("TLDR_WORKERS", "")
	os.Unsetenv("TLDR_WORKERS")

	_, err := runCLI(t, "--config", path, "tracks", testURL)
	if err == nil || !strings.Contains(err.Error(), "TLDR_WORKERS") {
		t.Errorf("Expected the file's workers value to fail validation, got %v", err)
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"1", "2"}, {"3"}})
	for _, want := range []string{"A", "B", "1", "2", "3"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in table:\n%s", want, out)
		}
	}
	if renderTable(nil, nil) != "" {
		t.Error("Expected empty output without headers")
	}
}
