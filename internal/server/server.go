// Package server accepts TCP connections, queues them for a fixed worker
// pool and answers each with exactly one framed response.
package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/lexiqai/tldr/internal/config"
	"github.com/lexiqai/tldr/internal/observability"
	"github.com/lexiqai/tldr/internal/pipeline"
	"github.com/lexiqai/tldr/internal/queue"
	"github.com/lexiqai/tldr/internal/static"
	"github.com/lexiqai/tldr/internal/wire"
)

// SummarizePath is the only non-static route
const SummarizePath = "/api/summarize"

const (
	acceptBackoffMin = 5 * time.Millisecond
	acceptBackoffMax = time.Second

	// rstAvoidanceDelay is how long a closing connection keeps draining
	// unread client bytes so the kernel does not answer them with RST.
	rstAvoidanceDelay = 500 * time.Millisecond
	maxDrainBytes     = 256 << 10
)

// ErrServerClosed is returned by Serve after Shutdown
var ErrServerClosed = errors.New("server closed")

// Runner handles the body of a summarize request
type Runner interface {
	Run(ctx context.Context, body []byte) (*pipeline.SummarizeResponse, error)
}

// Deps are the collaborators a Server is built with
type Deps struct {
	Pipeline Runner
	Static   *static.Store
	// Checks are extra readiness checks, typically upstream breakers
	Checks []observability.Check
}

// Server is the acceptor plus the worker pool it feeds
type Server struct {
	cfg      *config.Config
	limits   wire.Limits
	queue    *queue.Queue
	pool     *Pool
	router   *Router
	static   *static.Store
	pipeline Runner
	checks   []observability.Check
	logger   zerolog.Logger

	// baseCtx outlives client connections; it is cancelled at shutdown
	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	serving  sync.WaitGroup
	closing  sync.WaitGroup
}

// New builds a server from cfg. Nothing listens until Serve or
// ListenAndServe is called.
func New(cfg *config.Config, deps Deps) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg: cfg,
		limits: wire.Limits{
			MaxHeaderBytes: cfg.MaxHeaderBytes,
			MaxHeaderCount: cfg.MaxHeaderCount,
			MaxBodyBytes:   cfg.MaxBodyBytes,
		},
		queue:    queue.New(cfg.QueueCapacity),
		router:   NewRouter(),
		static:   deps.Static,
		pipeline: deps.Pipeline,
		checks:   deps.Checks,
		logger:   observability.GetLogger().With().Str("component", "server").Logger(),
		baseCtx:  ctx,
		cancel:   cancel,
	}
	if s.static == nil {
		// The embedded assets are compiled in, so this cannot fail.
		s.static, _ = static.New("")
	}
	s.pool = NewPool(s.queue, cfg.Workers, s.handleItem)

	for _, p := range static.Paths() {
		s.router.Handle(http.MethodGet, p, s.serveStatic)
	}
	s.router.Handle(http.MethodPost, SummarizePath, s.summarize)
	return s
}

// ListenAndServe binds the configured address and serves until Shutdown
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve runs the accept loop on ln. It returns nil once the listener is
// closed by Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.serving.Add(1)
	s.mu.Unlock()
	defer s.serving.Done()

	s.pool.Start()
	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Int("workers", s.pool.Size()).
		Int("queue_capacity", s.queue.Cap()).
		Str("max_header_bytes", humanize.IBytes(uint64(s.limits.MaxHeaderBytes))).
		Str("max_body_bytes", humanize.IBytes(uint64(s.limits.MaxBodyBytes))).
		Msg("Server listening")

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			delay = nextBackoff(delay)
			s.logger.Warn().Err(err).Dur("retry_in", delay).Msg("Accept failed")
			observability.RecordError("accept", "acceptor")
			time.Sleep(delay)
			continue
		}
		delay = 0
		s.dispatch(conn)
	}
}

// Addr returns the listener address, or nil before Serve
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting, lets the workers finish every queued item and
// waits for them. In-flight upstream calls are cancelled if ctx expires
// first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.serving.Wait()
		s.queue.Close()
		s.pool.Wait()
		s.closing.Wait()
		close(done)
	}()

	defer s.cancel()
	select {
	case <-done:
		s.logger.Info().Msg("Server drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether new work can be queued
func (s *Server) Ready(ctx context.Context) (bool, error) {
	if s.queue.Closed() {
		return false, errors.New("worker pool unavailable")
	}
	return true, nil
}

// Details returns queue and pool gauges for the readiness body
func (s *Server) Details() map[string]int {
	return map[string]int{
		"queue_depth":    s.queue.Len(),
		"queue_capacity": s.queue.Cap(),
		"workers":        s.pool.Size(),
		"workers_busy":   s.pool.Busy(),
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return acceptBackoffMin
	}
	d *= 2
	if d > acceptBackoffMax {
		d = acceptBackoffMax
	}
	return d
}

// dispatch classifies a fresh connection and either answers it inline or
// hands it to the queue.
func (s *Server) dispatch(conn net.Conn) {
	now := time.Now()
	observability.RecordAccepted()
	conn.SetReadDeadline(now.Add(s.cfg.ReadTimeout))
	conn.SetWriteDeadline(now.Add(s.cfg.WriteTimeout))

	br := bufio.NewReader(conn)
	requestID := observability.NewRequestID()

	if s.serveInline(conn, br, requestID, now) {
		return
	}

	err := s.queue.TrySubmit(queue.Item{Conn: conn, Reader: br, RequestID: requestID, Accepted: now})
	switch {
	case err == nil:
		observability.SetQueueDepth(s.queue.Len())
	case errors.Is(err, queue.ErrFull):
		s.reject(conn, requestID, http.StatusServiceUnavailable, "server busy", "full")
	default:
		s.reject(conn, requestID, http.StatusInternalServerError, "worker pool unavailable", "closed")
	}
}

// serveInline answers a complete body-less GET for a static asset on the
// accept goroutine. It reports false, leaving any peeked bytes buffered in
// br, for everything else.
func (s *Server) serveInline(conn net.Conn, br *bufio.Reader, requestID string, accepted time.Time) bool {
	if s.cfg.ClassifyWindow <= 0 {
		return false
	}
	conn.SetReadDeadline(time.Now().Add(s.cfg.ClassifyWindow))
	_, err := br.Peek(1)
	conn.SetReadDeadline(accepted.Add(s.cfg.ReadTimeout))
	if err != nil {
		return false
	}

	buffered, _ := br.Peek(br.Buffered())
	head, ok := wire.PeekHead(buffered)
	if !ok || head.Method != http.MethodGet || head.HasBody || !static.IsAssetPath(head.Path) {
		return false
	}

	logger := observability.WithRequestID(requestID).With().Bool("inline", true).Logger()
	m := observability.NewRequestMetrics(requestID, time.Time{})
	resp, req, route := s.process(logger, br)
	s.respond(conn, resp, requestID, logger)
	observability.RecordInline()
	m.RecordResponse(route, resp.Status)
	logCompleted(logger, req, resp, m.Elapsed())
	s.closeAsync(conn)
	return true
}

// reject answers a connection the queue would not take
func (s *Server) reject(conn net.Conn, requestID string, status int, msg, reason string) {
	logger := observability.WithRequestID(requestID)
	observability.RecordRejected(reason)
	logger.Warn().Str("reason", reason).Int("status", status).Msg("Connection rejected")
	s.respond(conn, wire.Error(status, msg), requestID, logger)
	s.closeAsync(conn)
}

// handleItem is the worker side: frame, route, respond
func (s *Server) handleItem(workerID int, item queue.Item) {
	conn := item.Conn
	logger := observability.WithRequestID(item.RequestID).With().Int("worker", workerID).Logger()
	m := observability.NewRequestMetrics(item.RequestID, item.Accepted)

	// Time spent queued does not count against the client.
	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

	reader := io.Reader(conn)
	if item.Reader != nil {
		reader = item.Reader
	}
	resp, req, route := s.process(logger, reader)
	s.respond(conn, resp, item.RequestID, logger)
	m.RecordResponse(route, resp.Status)
	logCompleted(logger, req, resp, m.Elapsed())
	s.closeAsync(conn)
}

// process frames one request from r and routes it. A panic anywhere in
// routing becomes a 500.
func (s *Server) process(logger zerolog.Logger, r io.Reader) (resp *wire.Response, req *wire.Request, route string) {
	route = "framing"
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("Handler panicked")
			observability.RecordError("panic", "worker")
			resp = wire.Error(http.StatusInternalServerError, "internal server error")
		}
	}()

	req, err := wire.ReadRequest(r, s.limits)
	if err != nil {
		kind := wire.ErrorKind(err)
		observability.RecordFramingError(kind)
		logger.Warn().Err(err).Str("kind", kind).Msg("Malformed request")
		return wire.Error(wire.StatusFor(err), err.Error()), nil, route
	}

	route = s.router.Route(req.Path)
	ctx := logger.WithContext(s.baseCtx)
	return s.router.Serve(ctx, req), req, route
}

// respond writes resp with a fresh write deadline. A failed write is logged
// and otherwise ignored; the connection is closed either way.
func (s *Server) respond(conn net.Conn, resp *wire.Response, requestID string, logger zerolog.Logger) {
	resp.SetHeader("X-Request-Id", requestID)
	conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if _, err := resp.WriteTo(conn); err != nil {
		logger.Warn().Err(err).Int("status", resp.Status).Msg("Failed to write response")
		observability.RecordError("write", "server")
	}
}

// closeAsync half-closes conn and drains what the client still sends
// before the final close.
func (s *Server) closeAsync(conn net.Conn) {
	s.closing.Add(1)
	go func() {
		defer s.closing.Done()
		closeConn(conn)
	}()
}

func closeConn(conn net.Conn) {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		if cw.CloseWrite() == nil {
			conn.SetReadDeadline(time.Now().Add(rstAvoidanceDelay))
			io.Copy(io.Discard, io.LimitReader(conn, maxDrainBytes))
		}
	}
	conn.Close()
}

func logCompleted(logger zerolog.Logger, req *wire.Request, resp *wire.Response, elapsed time.Duration) {
	ev := logger.Info()
	if resp.Status >= http.StatusInternalServerError {
		ev = logger.Warn()
	}
	if req != nil {
		ev = ev.Str("method", req.Method).Str("path", req.Path)
	}
	ev.Int("status", resp.Status).Dur("duration", elapsed).Msg("Request completed")
}

func (s *Server) serveStatic(ctx context.Context, req *wire.Request) *wire.Response {
	if resp := s.static.Response(req.Path); resp != nil {
		return resp
	}
	return wire.Error(http.StatusNotFound, "not found")
}

func (s *Server) summarize(ctx context.Context, req *wire.Request) *wire.Response {
	if s.pipeline == nil {
		return wire.Error(http.StatusInternalServerError, "summarizer unavailable")
	}

	result, err := s.pipeline.Run(ctx, req.Body)
	if err != nil {
		status := http.StatusInternalServerError
		var perr *pipeline.Error
		if errors.As(err, &perr) {
			status = perr.Status
		}
		zerolog.Ctx(ctx).Warn().Err(err).Int("status", status).Msg("Summarize failed")
		return wire.Error(status, err.Error())
	}
	return wire.JSON(http.StatusOK, result)
}
