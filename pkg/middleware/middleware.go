package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RouteMiddleware wraps a single route handler.
type RouteMiddleware func(next http.HandlerFunc) http.HandlerFunc

// SetRouteChain applies middlewares to handler, outermost first.
func SetRouteChain(handler http.HandlerFunc, middlewares ...RouteMiddleware) http.HandlerFunc {
	h := handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}

	return h
}

// HTTPResponseTraceInjection tags every response with a trace id so a
// client-reported failure can be matched against the request log.
func HTTPResponseTraceInjection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-Id")
		if traceID == "" {
			traceID = uuid.NewString()
		}

		w.Header().Set("X-Trace-Id", traceID)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

type HTTPRequestLogger struct {
	logger        *logrus.Logger
	debug         bool
	minErrorLevel int
}

// NewHTTPRequestLogger logs every request when debug is set, otherwise only
// those whose status reaches minErrorLevel.
func NewHTTPRequestLogger(logger *logrus.Logger, debug bool, minErrorLevel int) *HTTPRequestLogger {
	return &HTTPRequestLogger{
		logger:        logger,
		debug:         debug,
		minErrorLevel: minErrorLevel,
	}
}

func (l *HTTPRequestLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		if !l.debug && rec.statusCode < l.minErrorLevel {
			return
		}

		l.logger.WithContext(r.Context()).WithFields(logrus.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"status":  rec.statusCode,
			"elapsed": time.Since(start).String(),
		}).Info()
	})
}
