package static

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lexiqai/tldr/internal/wire"
)

func TestStore_EmbeddedRoutes(t *testing.T) {
	s, err := New("")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	tests := []struct {
		path        string
		contentType string
		contains    string
	}{
		{"/", wire.ContentTypeHTML, "<!DOCTYPE html>"},
		{"/index.html", wire.ContentTypeHTML, "summarize-form"},
		{"/style.css", wire.ContentTypeCSS, "font-family"},
		{"/style.min.css", wire.ContentTypeCSS, "font-family"},
		{"/script.js", wire.ContentTypeJS, "/api/summarize"},
		{"/script.min.js", wire.ContentTypeJS, "/api/summarize"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if !IsAssetPath(tt.path) {
				t.Errorf("Expected %s to be an asset path", tt.path)
			}
			resp := s.Response(tt.path)
			if resp == nil {
				t.Fatalf("Expected a response for %s", tt.path)
			}
			if resp.Status != http.StatusOK {
				t.Errorf("Expected 200, got %d", resp.Status)
			}
			if resp.ContentType != tt.contentType {
				t.Errorf("Expected %q, got %q", tt.contentType, resp.ContentType)
			}
			if !strings.Contains(string(resp.Body), tt.contains) {
				t.Errorf("Body of %s does not contain %q", tt.path, tt.contains)
			}
		})
	}
}

func TestStore_UnknownPath(t *testing.T) {
	s, err := New("")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	for _, p := range []string{"/api/summarize", "/favicon.ico", "/index.htm", ""} {
		if IsAssetPath(p) {
			t.Errorf("Did not expect %q to be an asset path", p)
		}
		if s.Response(p) != nil {
			t.Errorf("Expected no response for %q", p)
		}
	}
}

func TestPaths(t *testing.T) {
	if got := len(Paths()); got != 6 {
		t.Errorf("Expected 6 paths, got %d", got)
	}
}

func TestStore_DirOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "style.css"), []byte("body{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := New(dir)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	css, _ := s.Lookup("/style.min.css")
	if string(css.Body) != "body{}" {
		t.Errorf("Expected override body, got %q", css.Body)
	}
	html, _ := s.Lookup("/")
	if !bytes.Contains(html.Body, []byte("<!DOCTYPE html>")) {
		t.Error("Missing files should fall back to the embedded copy")
	}
}

func TestNew_BadDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := New(file); err == nil {
		t.Error("Expected error for a file path")
	}
	if _, err := New(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Expected error for a missing dir")
	}
}

func TestStore_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script.js")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := New(dir)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	// The watcher may not be registered yet, so keep rewriting until it sees a change.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
			t.Fatal(err)
		}
		if a, _ := s.Lookup("/script.js"); string(a.Body) == "v2" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Asset was not reloaded")
		}
		time.Sleep(50 * time.Millisecond)
	}

	s.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() returned %v after Close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch() did not return after Close")
	}
}

func TestStore_WatchWithoutDir(t *testing.T) {
	s, err := New("")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := s.Watch(context.Background()); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}
