package mirror

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// recordHandler keeps every log record for assertions.
type recordHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.records = append(h.records, r.Clone())
	h.mu.Unlock()
	return nil
}

func (h *recordHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordHandler) count(level slog.Level) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == level {
			n++
		}
	}
	return n
}

func (h *recordHandler) messages(level slog.Level) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, r := range h.records {
		if r.Level == level {
			out = append(out, r.Message)
		}
	}
	return out
}

func newRecordLogger() (*slog.Logger, *recordHandler) {
	h := &recordHandler{}
	return slog.New(h), h
}

// stubOpener serves fixed bodies by URL.
type stubOpener struct {
	bodies map[string]string
	// failAfter makes the body fail with errStream after that many bytes.
	failAfter map[string]int
	openErr   error
}

var errStream = errors.New("connection reset by peer")

func (o *stubOpener) Open(_ context.Context, url string) (io.ReadCloser, int64, error) {
	if o.openErr != nil {
		return nil, 0, o.openErr
	}
	body, ok := o.bodies[url]
	if !ok {
		return nil, 0, errors.New("404 not found")
	}
	var r io.Reader = strings.NewReader(body)
	if n, ok := o.failAfter[url]; ok {
		r = io.MultiReader(io.LimitReader(strings.NewReader(body), int64(n)), failingReader{})
	}
	return io.NopCloser(r), int64(len(body)), nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errStream }

// chtimesFailFs rejects every Chtimes call.
type chtimesFailFs struct {
	afero.Fs
}

func (chtimesFailFs) Chtimes(string, time.Time, time.Time) error {
	return errors.New("operation not permitted")
}
