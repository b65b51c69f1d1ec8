package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// MaskValue replaces redacted values.
const MaskValue = "***REDACTED***"

// sensitiveKeys are attribute keys whose values are always masked.
var sensitiveKeys = map[string]bool{
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"proxy-authorization": true,
	"password":            true,
	"passwd":              true,
	"secret":              true,
	"token":               true,
	"api_key":             true,
	"apikey":              true,
	"api-key":             true,
	"access_token":        true,
	"refresh_token":       true,
	"session":             true,
	"session_id":          true,
	"sessionid":           true,
	"sid":                 true,
	"jsessionid":          true,
	"credential":          true,
	"credentials":         true,
}

// sensitiveKeywords mask any key that contains them.
// "auth" alone would also hit "author", so only the full header forms are
// listed for it.
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "credential", "cookie", "authorization",
}

// sensitivePatterns match values that are credentials whatever their key.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// sensitiveParams are URL query parameters whose values are masked.
var sensitiveParams = map[string]bool{
	"token":         true,
	"access_token":  true,
	"refresh_token": true,
	"api_key":       true,
	"apikey":        true,
	"key":           true,
	"sig":           true,
	"signature":     true,
	"password":      true,
	"session":       true,
	"sessionid":     true,
	"sid":           true,
	"auth":          true,
}

// RedactingHandler wraps an slog.Handler and masks sensitive attribute
// values before the wrapped handler sees them.
type RedactingHandler struct {
	handler slog.Handler
}

// NewRedactingHandler wraps handler. A nil handler wraps the default
// logger's handler.
func NewRedactingHandler(handler slog.Handler) *RedactingHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &RedactingHandler{handler: handler}
}

// Enabled implements slog.Handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	redacted := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		redacted.AddAttrs(redactAttr(a))
		return true
	})
	return h.handler.Handle(ctx, redacted)
}

// WithAttrs implements slog.Handler.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &RedactingHandler{handler: h.handler.WithAttrs(redacted)}
}

// WithGroup implements slog.Handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{handler: h.handler.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		redacted := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			redacted[i] = redactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	var s string
	switch a.Value.Kind() {
	case slog.KindString:
		s = a.Value.String()
	case slog.KindAny:
		// Errors often embed the URL that failed.
		err, ok := a.Value.Any().(error)
		if !ok {
			return a
		}
		s = err.Error()
		if redacted := redactString(s); redacted != s {
			return slog.String(a.Key, redacted)
		}
		return a
	default:
		return a
	}

	if redacted := redactString(s); redacted != s {
		return slog.String(a.Key, redacted)
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

// redactString masks a credential-looking value, or the credential parts
// of every URL embedded in it.
func redactString(s string) string {
	for _, p := range sensitivePatterns {
		if p.MatchString(s) {
			return MaskValue
		}
	}
	if !strings.Contains(s, "://") {
		return s
	}

	fields := strings.Fields(s)
	changed := false
	for i, f := range fields {
		// Error messages quote URLs ("Get \"http://...\": ...").
		trimmed := strings.Trim(f, `"'():,`)
		if r := RedactURL(trimmed); r != trimmed {
			fields[i] = strings.Replace(f, trimmed, r, 1)
			changed = true
		}
	}
	if !changed {
		return s
	}
	return strings.Join(fields, " ")
}

// RedactURL masks the password of raw's user info and the values of
// credential-like query parameters. Anything that is not an absolute URL
// is returned unchanged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	changed := false
	// url.Userinfo would percent-encode the mask, so it is spliced back in
	// after formatting.
	userinfo := ""
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			userinfo = u.User.Username() + ":" + MaskValue
		} else {
			userinfo = MaskValue
		}
		u.User = nil
		changed = true
	}

	if u.RawQuery != "" {
		q := u.Query()
		masked := false
		for name := range q {
			if sensitiveParams[strings.ToLower(name)] {
				q[name] = []string{MaskValue}
				masked = true
			}
		}
		if masked {
			u.RawQuery = encodeQuery(q)
			changed = true
		}
	}

	if !changed {
		return raw
	}
	out := u.String()
	if userinfo != "" {
		out = strings.Replace(out, "://", "://"+userinfo+"@", 1)
	}
	return out
}

// encodeQuery is url.Values.Encode without escaping the mask, so that the
// output stays readable.
func encodeQuery(q url.Values) string {
	return strings.ReplaceAll(q.Encode(), url.QueryEscape(MaskValue), MaskValue)
}

// Options configures NewLogger.
type Options struct {
	// Level is the minimum level written.
	Level slog.Level

	// JSON selects the JSON handler instead of the text handler.
	JSON bool
}

// NewLogger returns a redacting logger writing to w.
func NewLogger(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(NewRedactingHandler(handler))
}

// LevelFor maps the CLI verbosity flags to a level. verbose wins over quiet.
func LevelFor(verbose, quiet bool) slog.Level {
	switch {
	case verbose:
		return slog.LevelDebug
	case quiet:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
