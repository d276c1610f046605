// Package static serves the web UI. Assets are embedded in the binary; when a
// directory is configured its files override the embedded copies and are
// reloaded as they change.
package static

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/lexiqai/tldr/internal/observability"
	"github.com/lexiqai/tldr/internal/wire"
)

//go:embed assets/index.html assets/style.css assets/script.js
var embedded embed.FS

// Asset is one servable file
type Asset struct {
	Name        string
	ContentType string
	Body        []byte
}

// files maps asset file names to their content types
var files = map[string]string{
	"index.html": wire.ContentTypeHTML,
	"style.css":  wire.ContentTypeCSS,
	"script.js":  wire.ContentTypeJS,
}

// routes maps request paths to asset file names
var routes = map[string]string{
	"/":              "index.html",
	"/index.html":    "index.html",
	"/style.css":     "style.css",
	"/style.min.css": "style.css",
	"/script.js":     "script.js",
	"/script.min.js": "script.js",
}

// IsAssetPath reports whether path names a static asset
func IsAssetPath(path string) bool {
	_, ok := routes[path]
	return ok
}

// Paths returns every path served by a Store
func Paths() []string {
	out := make([]string, 0, len(routes))
	for p := range routes {
		out = append(out, p)
	}
	return out
}

// Store holds the current asset bodies
type Store struct {
	mu      sync.RWMutex
	assets  map[string]Asset
	dir     string
	logger  zerolog.Logger
	done    chan struct{}
	closing sync.Once
}

// New loads the embedded assets and overlays files from dir when dir is set.
// Call Watch to pick up later changes in dir.
func New(dir string) (*Store, error) {
	s := &Store{
		assets: make(map[string]Asset, len(files)),
		dir:    dir,
		logger: observability.GetLogger().With().Str("component", "static").Logger(),
		done:   make(chan struct{}),
	}

	for name, contentType := range files {
		body, err := embedded.ReadFile("assets/" + name)
		if err != nil {
			return nil, fmt.Errorf("read embedded %s: %w", name, err)
		}
		s.assets[name] = Asset{Name: name, ContentType: contentType, Body: body}
	}

	if dir == "" {
		return s, nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("static dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("static dir %s is not a directory", dir)
	}
	for name := range files {
		if err := s.reload(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

// Lookup returns the asset served at path
func (s *Store) Lookup(path string) (Asset, bool) {
	name, ok := routes[path]
	if !ok {
		return Asset{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[name]
	return a, ok
}

// Response builds a 200 response for path, or nil if path is not an asset
func (s *Store) Response(path string) *wire.Response {
	a, ok := s.Lookup(path)
	if !ok {
		return nil
	}
	return wire.NewResponse(http.StatusOK, a.ContentType, a.Body)
}

// Watch reloads assets from the configured directory until ctx is done or
// Close is called. It returns immediately when no directory is configured.
func (s *Store) Watch(ctx context.Context) error {
	if s.dir == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("add watch path: %w", err)
	}
	defer watcher.Close()

	s.logger.Info().Str("dir", s.dir).Msg("Watching static assets")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			if _, known := files[name]; !known {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := s.reload(name); err != nil {
				// A rename away or a half-written file; keep serving the last good copy.
				s.logger.Warn().Err(err).Str("file", name).Msg("Failed to reload asset")
				continue
			}
			s.logger.Info().Str("file", name).Msg("Reloaded asset")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// Close stops Watch
func (s *Store) Close() error {
	s.closing.Do(func() { close(s.done) })
	return nil
}

func (s *Store) reload(name string) error {
	body, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.assets[name] = Asset{Name: name, ContentType: files[name], Body: body}
	s.mu.Unlock()
	return nil
}
