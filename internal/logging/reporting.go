package logging

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/rollbar/rollbar-go"
)

// Reporter receives records forwarded by a ReportingHandler.
type Reporter interface {
	Report(level slog.Level, msg string, err error, extras map[string]any)
}

// ReportingHandler wraps another handler and forwards records at or above
// the threshold to a Reporter.
type ReportingHandler struct {
	next      slog.Handler
	reporter  Reporter
	threshold slog.Level
	attrs     []slog.Attr
}

// NewReportingHandler wraps next so that records at threshold or above are reported.
func NewReportingHandler(next slog.Handler, reporter Reporter, threshold slog.Level) *ReportingHandler {
	return &ReportingHandler{next: next, reporter: reporter, threshold: threshold}
}

// Enabled implements slog.Handler.
func (h *ReportingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *ReportingHandler) Handle(ctx context.Context, record slog.Record) error {
	err := h.next.Handle(ctx, record)
	if h.reporter == nil || record.Level < h.threshold {
		return err
	}

	extras := make(map[string]any, len(h.attrs)+record.NumAttrs())
	var cause error
	collect := func(attr slog.Attr) bool {
		value := attr.Value.Resolve()
		if e, ok := value.Any().(error); ok && cause == nil {
			cause = e
			extras[attr.Key] = e.Error()
			return true
		}
		extras[attr.Key] = value.String()
		return true
	}
	for _, attr := range h.attrs {
		collect(attr)
	}
	record.Attrs(collect)

	h.reporter.Report(record.Level, record.Message, cause, extras)
	return err
}

// WithAttrs implements slog.Handler.
func (h *ReportingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &ReportingHandler{next: h.next.WithAttrs(attrs), reporter: h.reporter, threshold: h.threshold, attrs: merged}
}

// WithGroup implements slog.Handler.
func (h *ReportingHandler) WithGroup(name string) slog.Handler {
	return &ReportingHandler{next: h.next.WithGroup(name), reporter: h.reporter, threshold: h.threshold, attrs: h.attrs}
}

// RollbarReporter forwards records to Rollbar using the package level client.
type RollbarReporter struct{}

// NewRollbarReporter configures the global Rollbar client.
func NewRollbarReporter(token, environment, codeVersion string) *RollbarReporter {
	rollbar.SetToken(token)
	rollbar.SetEnvironment(environment)
	if codeVersion != "" {
		rollbar.SetCodeVersion(codeVersion)
	}
	if host, err := os.Hostname(); err == nil {
		rollbar.SetServerHost(host)
	}
	return &RollbarReporter{}
}

// Report implements Reporter.
func (RollbarReporter) Report(level slog.Level, msg string, err error, extras map[string]any) {
	args := make([]interface{}, 0, 3)
	if err == nil {
		err = errors.New(msg)
	}
	args = append(args, err)
	extras["message"] = msg
	args = append(args, map[string]interface{}(extras))

	switch {
	case level >= slog.LevelError:
		rollbar.Error(args...)
	case level >= slog.LevelWarn:
		rollbar.Warning(args...)
	default:
		rollbar.Info(args...)
	}
}

// Close blocks until queued items have been sent.
func (RollbarReporter) Close() {
	rollbar.Wait()
}
