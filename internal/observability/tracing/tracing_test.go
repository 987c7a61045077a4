package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestWrapHTTPClientInjectsTraceparent(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	provider := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ctx, span := provider.Tracer("test").Start(context.Background(), "outbound")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := WrapHTTPClient(nil).Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Contains(t, got, span.SpanContext().TraceID().String())
	assert.Empty(t, req.Header.Get("traceparent"))
}

func TestSafeAttributes(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("Authorization", "apikey secret"),
		attribute.String("http.route", strings.Repeat("a", 300)),
	)
	require.Len(t, attrs, 1)
	assert.Len(t, attrs[0].Value.AsString(), maxAttributeLength)
}

func TestSafeError(t *testing.T) {
	assert.Nil(t, SafeError(nil))
	assert.EqualError(t, SafeError(errors.New(" boom ")), "boom")
}

func TestGinMiddlewareTagsProductRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = provider.Shutdown(context.Background())
	})

	r := gin.New()
	r.Use(GinMiddleware(GinConfig{
		SkipPaths: []string{"/health"},
		ErrorClassifier: func(error) (string, string) {
			return "not_found", "not_found"
		},
	}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/products/:code", func(c *gin.Context) {
		_ = c.Error(errors.New("not_found"))
		c.Status(http.StatusNotFound)
	})
	r.POST("/api/sync", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
		c.Status(http.StatusInternalServerError)
	})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/health", nil),
		httptest.NewRequest(http.MethodGet, "/api/products/ABC123", nil),
		httptest.NewRequest(http.MethodPost, "/api/sync", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	get := spans[0]
	assert.Equal(t, "HTTP GET /api/products/:code", get.Name())
	attrs := spanAttributes(get)
	assert.Equal(t, "ABC123", attrs["product.primary_code"].AsString())
	assert.Equal(t, "not_found", attrs["error.type"].AsString())
	assert.Equal(t, int64(http.StatusNotFound), attrs["http.status_code"].AsInt64())
	assert.Equal(t, codes.Unset, get.Status().Code)

	sync := spans[1]
	assert.Equal(t, "HTTP POST /api/sync", sync.Name())
	assert.Equal(t, codes.Error, sync.Status().Code)
	_, tagged := spanAttributes(sync)["product.primary_code"]
	assert.False(t, tagged)
}

func spanAttributes(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}
