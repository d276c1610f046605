package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Content types used by the service.
const (
	ContentTypeJSON = "application/json"
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeCSS  = "text/css; charset=utf-8"
	ContentTypeJS   = "application/javascript; charset=utf-8"
	ContentTypeText = "text/plain; charset=utf-8"
)

// Response is a complete response. It is always written with Content-Type,
// Content-Length and Connection: close.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
	headers     [][2]string
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// NewResponse builds a response with an explicit body.
func NewResponse(status int, contentType string, body []byte) *Response {
	return &Response{Status: status, ContentType: contentType, Body: body}
}

// JSON encodes v as the response body. An encoding failure yields a 500
// error response instead.
func JSON(status int, v any) *Response {
	body, err := json.Marshal(v)
	if err != nil {
		return Error(http.StatusInternalServerError, fmt.Sprintf("encode response: %v", err))
	}
	return NewResponse(status, ContentTypeJSON, body)
}

// Error builds a {"error": msg} response.
func Error(status int, msg string) *Response {
	body, _ := json.Marshal(ErrorBody{Error: msg})
	return NewResponse(status, ContentTypeJSON, body)
}

// SetHeader adds an extra header. Setting the same name again replaces it.
// Framing headers are always generated and cannot be overridden.
func (r *Response) SetHeader(name, value string) *Response {
	for i, h := range r.headers {
		if h[0] == name {
			r.headers[i][1] = value
			return r
		}
	}
	r.headers = append(r.headers, [2]string{name, value})
	return r
}

// HeaderValue returns an extra header previously set with SetHeader.
func (r *Response) HeaderValue(name string) string {
	for _, h := range r.headers {
		if h[0] == name {
			return h[1]
		}
	}
	return ""
}

// WriteTo writes the status line, headers and body to w in one write.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	text := http.StatusText(r.Status)
	if text == "" {
		text = "Status " + strconv.Itoa(r.Status)
	}
	contentType := r.ContentType
	if contentType == "" {
		contentType = ContentTypeText
	}

	var buf bytes.Buffer
	buf.Grow(256 + len(r.Body))
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", r.Status, text)
	fmt.Fprintf(&buf, "Content-Type: %s\r\n", contentType)
	fmt.Fprintf(&buf, "Content-Length: %d\r\n", len(r.Body))
	buf.WriteString("Connection: close\r\n")
	for _, h := range r.headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h[0], h[1])
	}
	buf.WriteString("\r\n")
	buf.Write(r.Body)

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}
