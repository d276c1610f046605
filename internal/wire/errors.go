package wire

import (
	"errors"
	"net"
	"os"
)

// Framing errors returned by ReadRequest. They are wrapped with detail, so
// compare with errors.Is.
var (
	ErrHeadersTooLarge        = errors.New("request headers too large")
	ErrUnexpectedEOF          = errors.New("unexpected end of stream")
	ErrMalformedStartLine     = errors.New("malformed request line")
	ErrMalformedHeader        = errors.New("malformed header line")
	ErrTooManyHeaders         = errors.New("too many headers")
	ErrMissingContentLength   = errors.New("missing Content-Length")
	ErrMalformedContentLength = errors.New("malformed Content-Length")
	ErrBodyTooLarge           = errors.New("request body too large")
	ErrReadTimeout            = errors.New("read timed out")
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrHeadersTooLarge, "headers_too_large"},
	{ErrUnexpectedEOF, "unexpected_eof"},
	{ErrMalformedStartLine, "malformed_start_line"},
	{ErrMalformedHeader, "malformed_header"},
	{ErrTooManyHeaders, "too_many_headers"},
	{ErrMissingContentLength, "missing_content_length"},
	{ErrMalformedContentLength, "malformed_content_length"},
	{ErrBodyTooLarge, "body_too_large"},
	{ErrReadTimeout, "read_timeout"},
}

// ErrorKind returns a metric label for a framing error, or "io" for
// anything else.
func ErrorKind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "io"
}

// StatusFor maps a ReadRequest error to the response status: 408 for a
// read timeout, 400 otherwise.
func StatusFor(err error) int {
	if errors.Is(err, ErrReadTimeout) {
		return 408
	}
	return 400
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
