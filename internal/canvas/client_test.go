package canvas

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// newTestClient returns a client whose backoff sleeps are recorded instead
// of performed.
func newTestClient(t *testing.T, opts ...Option) (*Client, *[]time.Duration) {
	t.Helper()

	var (
		mu    sync.Mutex
		waits []time.Duration
	)
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	c := NewClient("test-token", opts...)
	c.sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
		return nil
	}
	return c, &waits
}

// TestFetchOneRetriesForbidden tests that 403, 403, 200 results in three
// requests and the 200 body.
func TestFetchOneRetriesForbidden(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = io.WriteString(w, `[{"id":1}]`)
	}))
	defer srv.Close()

	c, waits := newTestClient(t)
	resp, err := c.FetchOne(context.Background(), srv.URL+"/api/v1/courses")
	if err != nil {
		t.Fatalf("FetchOne() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, expected 200", resp.StatusCode)
	}
	if string(resp.Body) != `[{"id":1}]` {
		t.Errorf("Body = %q", resp.Body)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d requests, expected 3", got)
	}
	if len(*waits) != 2 {
		t.Errorf("slept %d times, expected 2", len(*waits))
	}
}

// TestFetchOneReturnsLastForbidden tests that exhausted retries hand back the
// 403 response instead of an error.
func TestFetchOneReturnsLastForbidden(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"status":"unauthorized"}`)
	}))
	defer srv.Close()

	c, waits := newTestClient(t)
	resp, err := c.FetchOne(context.Background(), srv.URL+"/api/v1/courses/1/users")
	if err != nil {
		t.Fatalf("FetchOne() error = %v", err)
	}
	if !resp.Forbidden() {
		t.Errorf("StatusCode = %d, expected 403", resp.StatusCode)
	}
	if got := calls.Load(); got != DefaultMaxAttempts {
		t.Errorf("server saw %d requests, expected %d", got, DefaultMaxAttempts)
	}
	if len(*waits) != DefaultMaxAttempts-1 {
		t.Errorf("slept %d times, expected %d", len(*waits), DefaultMaxAttempts-1)
	}
}

// TestFetchOneDoesNotRetryOtherStatuses tests that 4xx/5xx other than 403 are returned as-is.
func TestFetchOneDoesNotRetryOtherStatuses(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(status)
			}))
			defer srv.Close()

			c, _ := newTestClient(t)
			resp, err := c.FetchOne(context.Background(), srv.URL)
			if err != nil {
				t.Fatalf("FetchOne() error = %v", err)
			}
			if resp.StatusCode != status {
				t.Errorf("StatusCode = %d, expected %d", resp.StatusCode, status)
			}
			if calls.Load() != 1 {
				t.Errorf("server saw %d requests, expected 1", calls.Load())
			}
		})
	}
}

// TestFetchOneTransportErrorNotRetried tests that a refused connection fails immediately.
func TestFetchOneTransportErrorNotRetried(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	var dials atomic.Int32
	hc := &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, network, a string) (net.Conn, error) {
			dials.Add(1)
			var d net.Dialer
			return d.DialContext(ctx, network, a)
		},
	}}

	c, waits := newTestClient(t, WithHTTPClient(hc))
	if _, err := c.FetchOne(context.Background(), "http://"+addr+"/api/v1/courses"); err == nil {
		t.Fatal("FetchOne() expected error for refused connection")
	}
	if dials.Load() != 1 {
		t.Errorf("dialed %d times, expected 1", dials.Load())
	}
	if len(*waits) != 0 {
		t.Errorf("slept %d times, expected none", len(*waits))
	}
}

// TestFetchOneTimeout tests that a slow server hits the per-request timeout.
func TestFetchOneTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, _ := newTestClient(t, WithTimeout(50*time.Millisecond))
	_, err := c.FetchOne(context.Background(), srv.URL)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("FetchOne() error = %v, expected deadline exceeded", err)
	}
}

// TestFetchOneSendsCredentials tests the Authorization and User-Agent headers.
func TestFetchOneSendsCredentials(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, WithUserAgent("canvasmirror/1.2.3"))
	resp, err := c.FetchOne(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchOne() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK || string(resp.Body) != "canvasmirror/1.2.3" {
		t.Errorf("got %d %q", resp.StatusCode, resp.Body)
	}
}

// TestFetchOneInvalidURL tests URL validation.
func TestFetchOneInvalidURL(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	for _, u := range []string{"", "/api/v1/courses", "://bad"} {
		if _, err := c.FetchOne(context.Background(), u); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("FetchOne(%q) error = %v, expected %v", u, err, ErrInvalidURL)
		}
	}
}

// TestBackoffBounds tests that every delay lies in [base*2^n, base*2^n*1.5).
func TestBackoffBounds(t *testing.T) {
	t.Parallel()

	c := NewClient("t")
	for attempt := range 3 {
		lo := DefaultBaseDelay << attempt
		hi := lo + lo/2
		for range 200 {
			d := c.backoff(attempt)
			if d < lo || d >= hi {
				t.Fatalf("backoff(%d) = %v, expected in [%v, %v)", attempt, d, lo, hi)
			}
		}
	}
}

// TestBackoffJitterExtremes tests the jitter bounds with a fixed source.
func TestBackoffJitterExtremes(t *testing.T) {
	t.Parallel()

	c := NewClient("t")
	c.jitter = func(int64) int64 { return 0 }
	if d := c.backoff(1); d != time.Second {
		t.Errorf("backoff(1) with zero jitter = %v, expected 1s", d)
	}
	c.jitter = func(n int64) int64 { return n - 1 }
	if d := c.backoff(0); d != 750*time.Millisecond-1 {
		t.Errorf("backoff(0) with max jitter = %v", d)
	}
}

// TestOpen tests streaming downloads and status handling.
func TestOpen(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", "5")
		_, _ = io.WriteString(w, "hello")
	}))
	defer srv.Close()

	c, _ := newTestClient(t)

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		body, size, err := c.Open(context.Background(), srv.URL+"/file")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer body.Close()
		data, _ := io.ReadAll(body)
		if string(data) != "hello" || size != 5 {
			t.Errorf("got %q size %d", data, size)
		}
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		_, _, err := c.Open(context.Background(), srv.URL+"/missing")
		if !errors.Is(err, ErrUnexpectedStatus) {
			t.Errorf("Open() error = %v, expected %v", err, ErrUnexpectedStatus)
		}
	})
}

// TestHead tests HEAD metadata extraction.
func TestHead(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Last-Modified", "Wed, 21 Oct 2015 07:28:00 GMT")
		w.Header().Set("Content-Disposition", `inline; filename="diagram.png"`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t)
	resp, err := c.Head(context.Background(), srv.URL+"/img")
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	lm, ok := resp.LastModified()
	if !ok || !lm.Equal(time.Date(2015, 10, 21, 7, 28, 0, 0, time.UTC)) {
		t.Errorf("LastModified() = %v, %v", lm, ok)
	}
}
