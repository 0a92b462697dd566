package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times a named step of a larger operation, such as a trending
// computation or a retention sweep, and logs its outcome when it ends.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
	attrs  []any
	err    error
}

// StartSpan opens a span below whatever span ctx already carries. The first
// span of an operation also allocates its trace id. The returned context's
// logger carries the trace and span ids.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	var fields []any
	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
		ctx = WithTraceID(ctx, traceID)
		fields = append(fields, slog.String("trace_id", traceID))
	}
	if parent := SpanIDFromContext(ctx); parent != "" {
		fields = append(fields, slog.String("parent_span_id", parent))
	}

	spanID := uuid.NewString()
	fields = append(fields, slog.String("span_id", spanID), slog.String("span_name", name))
	logger := FromContext(ctx).With(fields...)

	ctx = WithSpanID(WithLogger(ctx, logger), spanID)
	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// SetAttr attaches a key/value pair that is emitted when the span ends.
func (s *Span) SetAttr(key string, value any) {
	if s == nil {
		return
	}
	s.attrs = append(s.attrs, key, value)
}

// Fail marks the span as failed; End then logs at error level.
func (s *Span) Fail(err error) {
	if s == nil || err == nil {
		return
	}
	s.err = err
}

// Elapsed reports how long the span has been running.
func (s *Span) Elapsed() time.Duration {
	if s == nil {
		return 0
	}
	return time.Since(s.start)
}

// End logs the span's duration and attributes.
func (s *Span) End() {
	if s == nil {
		return
	}
	args := append([]any{slog.Duration("duration", s.Elapsed())}, s.attrs...)
	if s.err != nil {
		s.logger.Error(s.name+" failed", append(args, slog.Any("error", s.err))...)
		return
	}
	s.logger.Info(s.name+" finished", args...)
}
