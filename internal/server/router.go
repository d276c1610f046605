package server

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/lexiqai/tldr/internal/wire"
)

// HandlerFunc answers one framed request
type HandlerFunc func(ctx context.Context, req *wire.Request) *wire.Response

// Router dispatches on exact path, then method
type Router struct {
	routes map[string]map[string]HandlerFunc
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{routes: make(map[string]map[string]HandlerFunc)}
}

// Handle registers h for method and path
func (r *Router) Handle(method, path string, h HandlerFunc) {
	methods, ok := r.routes[path]
	if !ok {
		methods = make(map[string]HandlerFunc)
		r.routes[path] = methods
	}
	methods[method] = h
}

// Route returns the metrics label for path
func (r *Router) Route(path string) string {
	if _, ok := r.routes[path]; ok {
		return path
	}
	return "unknown"
}

// Serve answers req. Unknown paths get 404 and known paths with another
// method get 405 with an Allow header.
func (r *Router) Serve(ctx context.Context, req *wire.Request) *wire.Response {
	methods, ok := r.routes[req.Path]
	if !ok {
		return wire.Error(http.StatusNotFound, "not found")
	}
	h, ok := methods[req.Method]
	if !ok {
		return wire.Error(http.StatusMethodNotAllowed, "method not allowed").
			SetHeader("Allow", allowed(methods))
	}
	return h(ctx, req)
}

func allowed(methods map[string]HandlerFunc) string {
	names := make([]string, 0, len(methods))
	for m := range methods {
		names = append(names, m)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
