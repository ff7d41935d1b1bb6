package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"hpackCodec/internal/hpack"
)

const namespace = "hpack"

const (
	DirectionDecode = "decode"
	DirectionEncode = "encode"

	resultOK    = "ok"
	resultError = "error"
)

var (
	headerBlocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "header_blocks_total",
			Help:      "Total number of header blocks processed",
		},
		[]string{"direction", "result"},
	)

	headerBlockSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "header_block_size_bytes",
			Help:      "Encoded header block size in bytes",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 7),
		},
		[]string{"direction"},
	)

	headerListSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "header_list_size_bytes",
			Help:      "Header list size in bytes, counting 32 octets of overhead per field",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 7),
		},
		[]string{"direction"},
	)

	compressionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compression_errors_total",
			Help:      "Total number of compression errors by cause",
		},
		[]string{"cause"},
	)

	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Current number of codec sessions",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

var causes = []struct {
	err   error
	label string
}{
	{hpack.ErrIntegerOverflow, "integer_overflow"},
	{hpack.ErrTruncated, "truncated"},
	{hpack.ErrInvalidIndex, "invalid_index"},
	{hpack.ErrSizeUpdateAfterHeader, "size_update_after_header"},
	{hpack.ErrSizeUpdateTooLarge, "size_update_too_large"},
	{hpack.ErrHuffmanInvalid, "huffman_invalid"},
	{hpack.ErrHeaderListTooLarge, "header_list_too_large"},
	{hpack.ErrEntryTooLarge, "entry_too_large"},
	{hpack.ErrTableSizeOverflow, "table_size_overflow"},
}

// ErrorCause maps an error to the label used by compression_errors_total.
func ErrorCause(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range causes {
		if errors.Is(err, c.err) {
			return c.label
		}
	}
	if errors.Is(err, hpack.ErrHeaderComp) {
		return "compression"
	}
	return "other"
}

// ObserveBlock records one processed header block.
func ObserveBlock(direction string, blockSize int, listSize uint64, err error) {
	if err != nil {
		headerBlocksTotal.WithLabelValues(direction, resultError).Inc()
		compressionErrorsTotal.WithLabelValues(ErrorCause(err)).Inc()
		return
	}

	headerBlocksTotal.WithLabelValues(direction, resultOK).Inc()
	headerBlockSize.WithLabelValues(direction).Observe(float64(blockSize))
	headerListSize.WithLabelValues(direction).Observe(float64(listSize))
}

func SessionOpened() {
	sessionsActive.Inc()
}

func SessionClosed() {
	sessionsActive.Dec()
}

// Middleware records request count and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		status := strconv.Itoa(code)

		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}
