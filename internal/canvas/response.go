package canvas

import (
	"net/http"
	"strconv"
	"time"
)

// Response is a fully read API response.
//
// The body is read inside the request timeout, so a Response never holds an
// open connection. API responses are small JSON documents; file contents go
// through Open instead.
type Response struct {
	// URL is the final request URL after redirects.
	URL string

	// StatusCode is the HTTP status code.
	StatusCode int

	// Header holds the response headers.
	Header http.Header

	// Body is the complete response body.
	Body []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Forbidden reports whether the response is a 403.
func (r *Response) Forbidden() bool {
	return r.StatusCode == http.StatusForbidden
}

// ContentLength returns the Content-Length header, or 0 if absent or invalid.
func (r *Response) ContentLength() int64 {
	n, err := strconv.ParseInt(r.Header.Get("Content-Length"), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// LastModified returns the parsed Last-Modified header.
func (r *Response) LastModified() (time.Time, bool) {
	lm := r.Header.Get("Last-Modified")
	if lm == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(lm)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
