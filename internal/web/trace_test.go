package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func spanAttribute(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTraceRecordsRequestSpan(t *testing.T) {
	recorder := recordSpans(t)

	handler := Trace("vortex-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/polls/p1", nil))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "GET /api/polls/p1" {
		t.Fatalf("unexpected span name %q", span.Name())
	}
	if span.SpanKind() != trace.SpanKindServer {
		t.Fatalf("expected server span, got %s", span.SpanKind())
	}
	status, ok := spanAttribute(span, "http.response.status_code")
	if !ok || status.AsInt64() != http.StatusNotFound {
		t.Fatalf("expected recorded status 404, got %v", status.Emit())
	}
}

func TestTracePropagatesSpanContext(t *testing.T) {
	recordSpans(t)

	var sawSpan bool
	handler := Trace("vortex-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawSpan = trace.SpanContextFromContext(r.Context()).IsValid()
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/polls", nil))

	if !sawSpan {
		t.Fatal("handler context must carry the request span")
	}
}

func TestTraceKeepsFlusher(t *testing.T) {
	recordSpans(t)

	handler := Trace("vortex-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Error("streaming handlers need a flusher")
			return
		}
		flusher.Flush()
	}))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/polls/p1/results", nil))

	if !recorder.Flushed {
		t.Fatal("flush must reach the underlying writer")
	}
}
