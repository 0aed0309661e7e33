package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	nbcontext "github.com/netbirdio/updater/shared/context"
	"github.com/netbirdio/updater/util"
)

const (
	httpRequestCounter  = "updates.http.request.counter"
	httpResponseCounter = "updates.http.response.counter"
	httpRequestDuration = "updates.http.request.duration.ms"
)

// WrappedResponseWriter is a wrapper for http.ResponseWriter that allows the
// written HTTP status code to be captured for metrics reporting or logging purposes.
type WrappedResponseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

// WrapResponseWriter wraps original http.ResponseWriter
func WrapResponseWriter(w http.ResponseWriter) *WrappedResponseWriter {
	return &WrappedResponseWriter{ResponseWriter: w, status: http.StatusOK}
}

// Status returns response status
func (rw *WrappedResponseWriter) Status() int {
	return rw.status
}

// WriteHeader wraps http.ResponseWriter.WriteHeader method
func (rw *WrappedResponseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}

	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
	rw.wroteHeader = true
}

// Unwrap lets http.ResponseController reach the underlying writer
func (rw *WrappedResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// HTTPMiddleware handler used to collect metrics of every request/response coming to the API.
// Also adds request tracing (logging).
type HTTPMiddleware struct {
	ctx             context.Context
	requestCounter  metric.Int64Counter
	responseCounter metric.Int64Counter
	requestDuration metric.Int64Histogram
}

// NewMetricsMiddleware creates a new HTTPMiddleware
func NewMetricsMiddleware(ctx context.Context, meter metric.Meter) (*HTTPMiddleware, error) {
	requestCounter, err := meter.Int64Counter(httpRequestCounter, metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	responseCounter, err := meter.Int64Counter(httpResponseCounter, metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Int64Histogram(httpRequestDuration, metric.WithUnit("milliseconds"))
	if err != nil {
		return nil, err
	}

	return &HTTPMiddleware{
		ctx:             ctx,
		requestCounter:  requestCounter,
		responseCounter: responseCounter,
		requestDuration: requestDuration,
	}, nil
}

// routeTemplate returns the registered mux path so that ids in URLs don't explode metric cardinality
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// Handler logs every request and response and adds them to metrics.
// Every request gets an id that is carried in its context for log correlation.
func (m *HTTPMiddleware) Handler(h http.Handler) http.Handler {
	fn := func(rw http.ResponseWriter, r *http.Request) {
		reqStart := time.Now()

		reqID := uuid.New().String()
		//nolint
		ctx := context.WithValue(r.Context(), nbcontext.SourceKey, util.HTTPSource)
		//nolint
		ctx = context.WithValue(ctx, nbcontext.RequestIDKey, reqID)
		r = r.WithContext(ctx)

		log.WithContext(ctx).Tracef("HTTP request %v: %v %v", reqID, r.Method, r.URL)

		w := WrapResponseWriter(rw)
		h.ServeHTTP(w, r)

		endpoint := routeTemplate(r)
		attrs := metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("method", r.Method),
		)
		m.requestCounter.Add(m.ctx, 1, attrs)
		m.responseCounter.Add(m.ctx, 1, metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("method", r.Method),
			attribute.Int("status", w.Status()),
		))

		reqTook := time.Since(reqStart)
		m.requestDuration.Record(m.ctx, reqTook.Milliseconds(), attrs)

		if w.Status() > 499 {
			log.WithContext(ctx).Errorf("HTTP response %v: %v %v status %v", reqID, r.Method, r.URL, w.Status())
		} else {
			log.WithContext(ctx).Debugf("request %s %s took %d ms and finished with status %d", r.Method, r.URL.Path, reqTook.Milliseconds(), w.Status())
		}
	}

	return http.HandlerFunc(fn)
}
