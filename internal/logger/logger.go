package logger

import (
	"context"
	"io"
	log "log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

type ctxKey string

const (
	// TraceIDKey and RequestIDKey are the attribute names added to every
	// record logged with a context.
	TraceIDKey   = "trace_id"
	RequestIDKey = "request_id"

	requestIDCtxKey ctxKey = "request_id"
)

// Init installs a JSON logger on stdout as the slog default.
func Init(level string) *log.Logger {
	return InitWithWriter(os.Stdout, level)
}

func InitWithWriter(w io.Writer, level string) *log.Logger {
	h := log.NewJSONHandler(w, &log.HandlerOptions{Level: ParseLevel(level)})
	l := log.New(&ContextHandler{Handler: h})
	log.SetDefault(l)
	return l
}

func ParseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.LevelDebug
	case "warn", "warning":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}

// ContextHandler adds the span trace id and the request id from ctx.
type ContextHandler struct {
	log.Handler
}

func (h *ContextHandler) Handle(ctx context.Context, r log.Record) error {
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			r.AddAttrs(log.String(TraceIDKey, sc.TraceID().String()))
		}
		if id := RequestIDFromContext(ctx); id != "" {
			r.AddAttrs(log.String(RequestIDKey, id))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []log.Attr) log.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) log.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}

// WithRequestID stores a request id in ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey).(string)
	return id
}
