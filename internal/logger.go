package internal

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

const serviceName = "iiifviewer"

// datadogLogger forwards the tracer diagnostics to the application logger, keeping their severity.
type datadogLogger struct {
	logger zerolog.Logger
}

func (dl datadogLogger) Log(msg string) {
	var event *zerolog.Event
	switch {
	case strings.Contains(msg, " ERROR: "):
		event = dl.logger.Error()
	case strings.Contains(msg, " WARN: "):
		event = dl.logger.Warn()
	default:
		event = dl.logger.Info()
	}
	event.Str("component", "tracer").Msg(strings.TrimSpace(msg))
}

// traceLogger correlates the request logs with the Datadog traces.
func traceLogger(enabled bool) func(context.Context, zerolog.Logger) (zerolog.Logger, error) {
	return func(ctx context.Context, logger zerolog.Logger) (zerolog.Logger, error) {
		if !enabled {
			return logger, nil
		}

		span, ok := tracer.SpanFromContext(ctx)
		if !ok {
			return logger, errors.New("no span found at the request context")
		}
		return logger.With().Dict("dd", zerolog.Dict().
			Str("service", serviceName).
			Uint64("trace_id", span.Context().TraceID()).
			Uint64("span_id", span.Context().SpanID()),
		).Logger(), nil
	}
}
