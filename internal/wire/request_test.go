package wire

import (
	"bytes"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"
)

// chunkedReader returns at most n bytes per Read so terminators and bodies
// straddle reads.
type chunkedReader struct {
	data []byte
	n    int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	size := c.n
	if size > len(p) {
		size = len(p)
	}
	if size > len(c.data) {
		size = len(c.data)
	}
	copied := copy(p, c.data[:size])
	c.data = c.data[copied:]
	return copied, nil
}

func TestReadRequest_Get(t *testing.T) {
	raw := "GET /index.html?x=1 HTTP/1.1\r\nHost: example.com\r\nX-Thing: one\r\nx-thing: two\r\n\r\n"

	req, err := ReadRequest(strings.NewReader(raw), DefaultLimits())
	if err != nil {
		t.Fatalf("ReadRequest() failed: %v", err)
	}

	if req.Method != "GET" || req.Path != "/index.html" || req.RawQuery != "x=1" {
		t.Errorf("Unexpected start line: %s %s ? %s", req.Method, req.Path, req.RawQuery)
	}
	if req.Proto != "HTTP/1.1" {
		t.Errorf("Expected proto HTTP/1.1, got %s", req.Proto)
	}
	if got := req.Header("HOST"); got != "example.com" {
		t.Errorf("Expected case-insensitive Host lookup, got %q", got)
	}
	if got := req.Header("X-Thing"); got != "two" {
		t.Errorf("Expected last duplicate header to win, got %q", got)
	}
	if len(req.Body) != 0 {
		t.Errorf("Expected empty body, got %d bytes", len(req.Body))
	}
}

func TestReadRequest_PostBody(t *testing.T) {
	body := `{"url":"https://youtu.be/dQw4w9WgXcQ"}`
	raw := "POST /api/summarize HTTP/1.1\r\ncontent-length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body

	for _, chunk := range []int{1, 3, 7, 4096} {
		req, err := ReadRequest(&chunkedReader{data: []byte(raw), n: chunk}, DefaultLimits())
		if err != nil {
			t.Fatalf("chunk=%d: ReadRequest() failed: %v", chunk, err)
		}
		if string(req.Body) != body {
			t.Errorf("chunk=%d: expected body %q, got %q", chunk, body, req.Body)
		}
	}
}

func TestReadRequest_PipelinedBytesIgnored(t *testing.T) {
	raw := "POST /api/summarize HTTP/1.1\r\nContent-Length: 5\r\n\r\nhelloGET / HTTP/1.1\r\n\r\n"

	req, err := ReadRequest(strings.NewReader(raw), DefaultLimits())
	if err != nil {
		t.Fatalf("ReadRequest() failed: %v", err)
	}
	if string(req.Body) != "hello" {
		t.Errorf("Expected body 'hello', got %q", req.Body)
	}
}

func TestReadRequest_ShortBody(t *testing.T) {
	// Declares 50 bytes, sends 30 and closes.
	raw := "POST /api/summarize HTTP/1.1\r\nContent-Length: 50\r\n\r\n" + strings.Repeat("a", 30)

	req, err := ReadRequest(strings.NewReader(raw), DefaultLimits())
	if !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("Expected ErrUnexpectedEOF, got %v", err)
	}
	if req != nil {
		t.Error("Expected no request on a truncated body")
	}
}

func TestReadRequest_Errors(t *testing.T) {
	limits := Limits{MaxHeaderBytes: 128, MaxHeaderCount: 3, MaxBodyBytes: 100}

	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"headers too large", "GET / HTTP/1.1\r\nX-Big: " + strings.Repeat("b", 200) + "\r\n\r\n", ErrHeadersTooLarge},
		{"headers never end", "GET / HTTP/1.1\r\nX-Big: " + strings.Repeat("b", 200), ErrHeadersTooLarge},
		{"eof before terminator", "GET / HTTP/1.1\r\nHost: x\r\n", ErrUnexpectedEOF},
		{"empty stream", "", ErrUnexpectedEOF},
		{"one token start line", "GET\r\nHost: x\r\n\r\n", ErrMalformedStartLine},
		{"blank start line", "\r\n\r\n", ErrMalformedStartLine},
		{"header without colon", "GET / HTTP/1.1\r\nnonsense\r\n\r\n", ErrMalformedHeader},
		{"header with empty name", "GET / HTTP/1.1\r\n: value\r\n\r\n", ErrMalformedHeader},
		{"too many headers", "GET / HTTP/1.1\r\nA: 1\r\nB: 2\r\nC: 3\r\nD: 4\r\n\r\n", ErrTooManyHeaders},
		{"post without length", "POST /api/summarize HTTP/1.1\r\n\r\n{}", ErrMissingContentLength},
		{"put without length", "PUT /x HTTP/1.1\r\n\r\n", ErrMissingContentLength},
		{"negative length", "POST / HTTP/1.1\r\nContent-Length: -1\r\n\r\n", ErrMalformedContentLength},
		{"signed length", "POST / HTTP/1.1\r\nContent-Length: +5\r\n\r\nhello", ErrMalformedContentLength},
		{"text length", "POST / HTTP/1.1\r\nContent-Length: ten\r\n\r\n", ErrMalformedContentLength},
		{"body too large", "POST / HTTP/1.1\r\nContent-Length: 101\r\n\r\n", ErrBodyTooLarge},
		{"length overflows", "POST / HTTP/1.1\r\nContent-Length: 99999999999999999999\r\n\r\n", ErrBodyTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ReadRequest(strings.NewReader(tt.raw), limits)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			if req != nil {
				t.Error("Expected nil request on error")
			}
			if StatusFor(err) != 400 {
				t.Errorf("Expected status 400, got %d", StatusFor(err))
			}
		})
	}
}

func TestReadRequest_GetWithBody(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nContent-Length: 3\r\n\r\nabc"

	req, err := ReadRequest(strings.NewReader(raw), DefaultLimits())
	if err != nil {
		t.Fatalf("ReadRequest() failed: %v", err)
	}
	if string(req.Body) != "abc" {
		t.Errorf("Expected body 'abc', got %q", req.Body)
	}
}

func TestReadRequest_Timeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go client.Write([]byte("POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc"))

	server.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	_, err := ReadRequest(server, DefaultLimits())
	if !errors.Is(err, ErrReadTimeout) {
		t.Fatalf("Expected ErrReadTimeout, got %v", err)
	}
	if StatusFor(err) != 408 {
		t.Errorf("Expected status 408, got %d", StatusFor(err))
	}
	if ErrorKind(err) != "read_timeout" {
		t.Errorf("Expected kind read_timeout, got %s", ErrorKind(err))
	}
}

func TestErrorKind(t *testing.T) {
	if got := ErrorKind(ErrBodyTooLarge); got != "body_too_large" {
		t.Errorf("Expected body_too_large, got %s", got)
	}
	if got := ErrorKind(errors.New("connection reset")); got != "io" {
		t.Errorf("Expected io, got %s", got)
	}
}

func TestPeekHead(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantOK   bool
		wantHead Head
	}{
		{"static get", "GET /style.css?v=2 HTTP/1.1\r\nHost: x\r\n\r\n", true, Head{Method: "GET", Path: "/style.css"}},
		{"zero length", "GET / HTTP/1.1\r\nContent-Length: 0\r\n\r\n", true, Head{Method: "GET", Path: "/"}},
		{"get with body", "GET / HTTP/1.1\r\nContent-Length: 4\r\n\r\nabcd", true, Head{Method: "GET", Path: "/", HasBody: true}},
		{"chunked", "POST /api/summarize HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n", true, Head{Method: "POST", Path: "/api/summarize", HasBody: true}},
		{"incomplete", "GET / HTTP/1.1\r\nHost: x\r\n", false, Head{}},
		{"bad start line", "GET\r\n\r\n", false, Head{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			head, ok := PeekHead([]byte(tt.raw))
			if ok != tt.wantOK {
				t.Fatalf("Expected ok=%v, got %v", tt.wantOK, ok)
			}
			if head != tt.wantHead {
				t.Errorf("Expected %+v, got %+v", tt.wantHead, head)
			}
		})
	}
}

func TestResponse_WriteTo(t *testing.T) {
	resp := Error(503, "server busy").SetHeader("X-Request-Id", "abc")

	var buf bytes.Buffer
	n, err := resp.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo() failed: %v", err)
	}
	if n != int64(buf.Len()) {
		t.Errorf("Expected %d bytes reported, got %d", buf.Len(), n)
	}

	want := "HTTP/1.1 503 Service Unavailable\r\n" +
		"Content-Type: application/json\r\n" +
		"Content-Length: 23\r\n" +
		"Connection: close\r\n" +
		"X-Request-Id: abc\r\n" +
		"\r\n" +
		`{"error":"server busy"}`

	if buf.String() != want {
		t.Errorf("Unexpected response bytes:\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestResponse_SetHeaderReplaces(t *testing.T) {
	resp := NewResponse(405, ContentTypeJSON, nil).SetHeader("Allow", "GET").SetHeader("Allow", "POST")
	if got := resp.HeaderValue("Allow"); got != "POST" {
		t.Errorf("Expected Allow POST, got %q", got)
	}
}

func TestJSON_Unencodable(t *testing.T) {
	resp := JSON(200, map[string]any{"bad": make(chan int)})
	if resp.Status != 500 {
		t.Errorf("Expected 500 for unencodable value, got %d", resp.Status)
	}
}
