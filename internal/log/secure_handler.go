package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// sensitiveKeys contains attribute keys whose values are always masked.
var sensitiveKeys = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"token":               true,
	"canvas_token":        true,
	"access_token":        true,
	"refresh_token":       true,
	"api_key":             true,
	"password":            true,
	"secret":              true,
	"session":             true,
	"verifier":            true,
}

// sensitiveKeywords mask any key that contains them.
var sensitiveKeywords = []string{"token", "secret", "password", "auth", "credential"}

// sensitivePatterns mask a whole string value regardless of its key.
var sensitivePatterns = []*regexp.Regexp{
	// Bearer header values
	regexp.MustCompile(`(?i)^bearer\s+.+`),

	// Canvas access tokens: "<instance id>~<random>"
	regexp.MustCompile(`^\d+~[A-Za-z0-9]{20,}$`),

	// JWT (Canvas uses them for LTI launches and file previews)
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
}

// sensitiveParams matches credential-bearing query parameters and inline
// bearer tokens anywhere inside a larger string, e.g. a URL in an error.
var sensitiveParams = regexp.MustCompile(`(?i)((?:access_token|verifier|sf_verifier|session_token)=)[^&\s"']+|(bearer\s+)[^\s"']+`)

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// SecureHandler wraps an slog.Handler and redacts credentials from every
// attribute before passing the record on.
//
// Design decision: We use a handler wrapper rather than a custom logger
// because every package already logs through *slog.Logger, and errors from
// net/http embed request URLs we do not control.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler wraps handler. A nil handler wraps slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled delegates to the wrapped handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle redacts the record's message and attributes and forwards it.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, redactInline(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs redacts attrs and returns a handler carrying them.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(out)}
}

// WithGroup returns a handler nesting attributes under name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

func sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			out[i] = sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		s := a.Value.String()
		if isSensitiveValue(s) {
			return slog.String(a.Key, MaskValue)
		}
		if red := redactInline(s); red != s {
			return slog.String(a.Key, red)
		}
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			msg := err.Error()
			if red := redactInline(msg); red != msg {
				return slog.String(a.Key, red)
			}
		}
	}
	return a
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	if sensitiveKeys[k] {
		return true
	}
	for _, kw := range sensitiveKeywords {
		if strings.Contains(k, kw) {
			return true
		}
	}
	return false
}

func isSensitiveValue(value string) bool {
	for _, p := range sensitivePatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

// redactInline masks credential query parameters and bearer tokens inside s.
func redactInline(s string) string {
	return sensitiveParams.ReplaceAllStringFunc(s, func(m string) string {
		sub := sensitiveParams.FindStringSubmatch(m)
		if sub[1] != "" {
			return sub[1] + MaskValue
		}
		return sub[2] + MaskValue
	})
}

// NewSecureLogger returns a text logger writing to w with redaction.
// Verbose enables Debug; otherwise Info, which carries the user-facing
// "found update" hints.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, handlerOptions(verbose))))
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
