package server

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type logSink interface {
	appendLog(jobID uuid.UUID, entry LogEntry)
}

// JobLogHandler is a slog.Handler that keeps records in the job's log and
// mirrors them to Next when set.
type JobLogHandler struct {
	JobID uuid.UUID
	Next  slog.Handler

	sink   logSink
	attrs  []slog.Attr
	prefix string
}

func NewJobLogHandler(sink logSink, jobID uuid.UUID, next slog.Handler) *JobLogHandler {
	return &JobLogHandler{
		JobID: jobID,
		Next:  next,
		sink:  sink,
	}
}

func (h *JobLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true // Log everything
}

func (h *JobLogHandler) Handle(ctx context.Context, r slog.Record) error {
	meta := make(map[string]interface{}, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		addAttr(meta, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(meta, h.prefix, a)
		return true
	})

	h.sink.appendLog(h.JobID, LogEntry{
		Timestamp: r.Time,
		Level:     r.Level.String(),
		Message:   r.Message,
		Metadata:  meta,
	})

	if h.Next != nil && h.Next.Enabled(ctx, r.Level) {
		return h.Next.Handle(ctx, r)
	}
	return nil
}

func (h *JobLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		clone.attrs = append(clone.attrs, a)
	}
	if h.Next != nil {
		clone.Next = h.Next.WithAttrs(attrs)
	}
	return &clone
}

func (h *JobLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	if h.Next != nil {
		clone.Next = h.Next.WithGroup(name)
	}
	return &clone
}

// addAttr flattens groups into dotted keys. Errors are stored as their message.
func addAttr(meta map[string]interface{}, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			addAttr(meta, prefix+a.Key+".", ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	v := a.Value.Any()
	if err, ok := v.(error); ok {
		v = err.Error()
	}
	meta[prefix+a.Key] = v
}
