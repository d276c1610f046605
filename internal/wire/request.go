// Package wire frames HTTP/1.x requests and responses directly over a byte
// stream. It reads exactly one request per connection and always answers
// with Connection: close.
package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

var headerTerminator = []byte("\r\n\r\n")

const readChunk = 4096

// Limits bounds what ReadRequest will accept.
type Limits struct {
	MaxHeaderBytes int
	MaxHeaderCount int
	MaxBodyBytes   int64
}

// DefaultLimits returns 16 KiB of headers, 100 header lines and a 10 MiB body.
func DefaultLimits() Limits {
	return Limits{
		MaxHeaderBytes: 16 << 10,
		MaxHeaderCount: 100,
		MaxBodyBytes:   10 << 20,
	}
}

// Request is a fully framed request. Body always holds exactly the declared
// Content-Length bytes.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Proto    string
	Headers  map[string]string // lowercase keys, last value wins
	Body     []byte
}

// Header returns the value of a header, matched case-insensitively.
func (r *Request) Header(name string) string {
	return r.Headers[strings.ToLower(name)]
}

// requiresBody reports whether a method must declare Content-Length.
func requiresBody(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH":
		return true
	}
	return false
}

// ReadRequest reads one request from r. It never returns a Request whose
// body is shorter than declared; bytes past the declared length are left
// unread or discarded.
func ReadRequest(r io.Reader, limits Limits) (*Request, error) {
	buf := make([]byte, 0, readChunk)
	chunk := make([]byte, readChunk)
	end := -1

	for end < 0 {
		n, err := r.Read(chunk)
		if n > 0 {
			// The terminator may straddle two reads.
			from := len(buf) - len(headerTerminator) + 1
			if from < 0 {
				from = 0
			}
			buf = append(buf, chunk[:n]...)
			if i := bytes.Index(buf[from:], headerTerminator); i >= 0 {
				end = from + i
			}
		}
		if end >= 0 {
			if end > limits.MaxHeaderBytes {
				return nil, headersTooLarge(limits)
			}
			break
		}
		if len(buf) > limits.MaxHeaderBytes {
			return nil, headersTooLarge(limits)
		}
		if err != nil {
			return nil, readError(err, "reading headers")
		}
	}

	req, err := parseHead(buf[:end], limits)
	if err != nil {
		return nil, err
	}

	length, err := contentLength(req, limits)
	if err != nil {
		return nil, err
	}

	already := buf[end+len(headerTerminator):]
	if int64(len(already)) >= length {
		req.Body = append([]byte(nil), already[:length]...)
		return req, nil
	}

	body := make([]byte, length)
	copied := copy(body, already)
	if _, err := io.ReadFull(r, body[copied:]); err != nil {
		return nil, readError(err, fmt.Sprintf("reading body (%d of %d bytes)", copied, length))
	}
	req.Body = body
	return req, nil
}

func headersTooLarge(limits Limits) error {
	return fmt.Errorf("%w: more than %s", ErrHeadersTooLarge, humanize.IBytes(uint64(limits.MaxHeaderBytes)))
}

func readError(err error, during string) error {
	switch {
	case isTimeout(err):
		return fmt.Errorf("%w while %s", ErrReadTimeout, during)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w while %s", ErrUnexpectedEOF, during)
	default:
		return fmt.Errorf("%s: %w", during, err)
	}
}

// parseHead parses the start line and header lines preceding the terminator.
func parseHead(head []byte, limits Limits) (*Request, error) {
	lines := strings.Split(string(head), "\r\n")

	fields := strings.Fields(lines[0])
	if len(fields) < 2 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedStartLine, truncate(lines[0]))
	}

	req := &Request{
		Method:  fields[0],
		Path:    fields[1],
		Proto:   "HTTP/1.1",
		Headers: make(map[string]string, len(lines)-1),
	}
	if len(fields) > 2 {
		req.Proto = fields[2]
	}
	if i := strings.IndexByte(req.Path, '?'); i >= 0 {
		req.RawQuery = req.Path[i+1:]
		req.Path = req.Path[:i]
	}

	headerLines := lines[1:]
	if len(headerLines) > limits.MaxHeaderCount {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrTooManyHeaders, len(headerLines), limits.MaxHeaderCount)
	}
	for _, line := range headerLines {
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q", ErrMalformedHeader, truncate(line))
		}
		req.Headers[strings.ToLower(name)] = strings.TrimSpace(value)
	}

	return req, nil
}

// contentLength validates the declared body length for req.
func contentLength(req *Request, limits Limits) (int64, error) {
	raw, ok := req.Headers["content-length"]
	if !ok {
		if requiresBody(req.Method) {
			return 0, fmt.Errorf("%w for %s", ErrMissingContentLength, req.Method)
		}
		return 0, nil
	}

	if raw == "" || strings.TrimLeft(raw, "0123456789") != "" {
		return 0, fmt.Errorf("%w: %q", ErrMalformedContentLength, truncate(raw))
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// Only overflow is possible at this point.
		return 0, fmt.Errorf("%w: %s bytes exceeds %s", ErrBodyTooLarge, raw, humanize.IBytes(uint64(limits.MaxBodyBytes)))
	}
	if n > limits.MaxBodyBytes {
		return 0, fmt.Errorf("%w: %s exceeds %s", ErrBodyTooLarge,
			humanize.IBytes(uint64(n)), humanize.IBytes(uint64(limits.MaxBodyBytes)))
	}
	return n, nil
}

// Head is the result of PeekHead.
type Head struct {
	Method  string
	Path    string
	HasBody bool
}

// PeekHead inspects bytes that have already arrived without consuming them.
// It reports false unless b holds a complete header block with a parseable
// start line. HasBody is set when the request declares any body framing.
func PeekHead(b []byte) (Head, bool) {
	end := bytes.Index(b, headerTerminator)
	if end < 0 {
		return Head{}, false
	}
	lines := strings.Split(string(b[:end]), "\r\n")
	fields := strings.Fields(lines[0])
	if len(fields) < 2 {
		return Head{}, false
	}

	h := Head{Method: fields[0], Path: fields[1]}
	if i := strings.IndexByte(h.Path, '?'); i >= 0 {
		h.Path = h.Path[:i]
	}
	for _, line := range lines[1:] {
		name, value, _ := strings.Cut(line, ":")
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "content-length":
			if strings.TrimSpace(value) != "0" {
				h.HasBody = true
			}
		case "transfer-encoding":
			h.HasBody = true
		}
	}
	return h, true
}

func truncate(s string) string {
	const max = 64
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
