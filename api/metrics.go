package api

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sprint-api/domain"
)

const (
	tracerName         = "sprint-api/api"
	requestSpanName    = "sprint.request"
	observabilityEvent = "observability.event"

	boardEventName    = "board.request"
	catalogEventName  = "catalog.request"
	sprintEventDomain = "sprint"
)

// requestMetrics collects the timings of a single request and reports them
// once, as a log entry and as a span event.
type requestMetrics struct {
	logger *log.Logger
	span   trace.Span
	event  string
	route  string
	start  time.Time

	applyDuration  time.Duration
	encodeDuration time.Duration
	hasBoard       bool
	columns        int
	cards          int
	revision       uint64
	changed        bool
	items          int
	hasItems       bool
	errorStage     string
	err            error
}

func newRequestMetrics(ctx context.Context, logger *log.Logger, event, route string) (*requestMetrics, context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, requestSpanName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("http.route", route)),
	)
	return &requestMetrics{
		logger: logger,
		span:   span,
		event:  event,
		route:  route,
		start:  time.Now(),
	}, ctx
}

func (m *requestMetrics) ObserveApply(d time.Duration) {
	if d > 0 {
		m.applyDuration = d
	}
}

func (m *requestMetrics) ObserveEncode(d time.Duration) {
	if d > 0 {
		m.encodeDuration = d
	}
}

func (m *requestMetrics) SetBoard(b domain.Board, revision uint64, changed bool) {
	m.hasBoard = true
	m.columns = len(b)
	m.cards = b.CardCount()
	m.revision = revision
	m.changed = changed
}

func (m *requestMetrics) SetItemsReturned(n int) {
	if n < 0 {
		n = 0
	}
	m.items = n
	m.hasItems = true
}

func (m *requestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// SetError records a failure that was already answered, so the handler
// itself returns nil.
func (m *requestMetrics) SetError(err error) {
	if err != nil {
		m.err = err
	}
}

func (m *requestMetrics) attributes(status int, err error) map[string]any {
	attrs := map[string]any{
		"http.route":       m.route,
		"http.status_code": status,
		"sprint.total_ms":  durationToMillis(time.Since(m.start)),
	}
	if m.applyDuration > 0 {
		attrs["sprint.apply_ms"] = durationToMillis(m.applyDuration)
	}
	if m.encodeDuration > 0 {
		attrs["sprint.encode_ms"] = durationToMillis(m.encodeDuration)
	}
	if m.hasBoard {
		attrs["sprint.board.columns"] = m.columns
		attrs["sprint.board.cards"] = m.cards
		attrs["sprint.board.revision"] = int64(m.revision)
		attrs["sprint.board.changed"] = m.changed
	}
	if m.hasItems {
		attrs["sprint.items_returned"] = m.items
	}
	if m.errorStage != "" {
		attrs["sprint.error_stage"] = m.errorStage
	}
	if err != nil {
		attrs["error.message"] = err.Error()
	}
	return attrs
}

// Log emits the observability event and ends the request span.
func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	if err == nil {
		err = m.err
	}
	attrs := m.attributes(status, err)
	severityText, severityNumber := severityForStatus(status, err)

	if m.span != nil {
		kvs := toKeyValues(attrs)
		m.span.SetAttributes(kvs...)
		m.span.AddEvent(observabilityEvent, trace.WithAttributes(append(kvs,
			attribute.String("event.name", m.event),
			attribute.String("event.domain", sprintEventDomain),
			attribute.String("severity_text", severityText),
			attribute.Int("severity_number", severityNumber),
		)...))
		if severityText == "ERROR" {
			desc := fmt.Sprintf("status %d", status)
			if err != nil {
				desc = err.Error()
			}
			m.span.SetStatus(codes.Error, desc)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		defer m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      m.event,
		"event.domain":    sprintEventDomain,
		"attributes":      attrs,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.IsValid() {
			fields["trace_id"] = sc.TraceID().String()
			fields["span_id"] = sc.SpanID().String()
		}
	}
	m.logger.WithFields(fields).Log(levelForSeverity(severityText), observabilityEvent)
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case status >= 500:
		return "ERROR", 17
	case status >= 400:
		return "WARN", 13
	case err != nil:
		return "ERROR", 17
	default:
		return "INFO", 9
	}
}

func levelForSeverity(text string) log.Level {
	switch text {
	case "ERROR":
		return log.ErrorLevel
	case "WARN":
		return log.WarnLevel
	default:
		return log.InfoLevel
	}
}

func toKeyValues(attrs map[string]any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, k := range slices.Sorted(maps.Keys(attrs)) {
		switch v := attrs[k].(type) {
		case string:
			out = append(out, attribute.String(k, v))
		case bool:
			out = append(out, attribute.Bool(k, v))
		case int:
			out = append(out, attribute.Int(k, v))
		case int64:
			out = append(out, attribute.Int64(k, v))
		case float64:
			out = append(out, attribute.Float64(k, v))
		default:
			out = append(out, attribute.String(k, fmt.Sprint(v)))
		}
	}
	return out
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
