package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/vin-jex/queuectl/internal/observability"
)

const requestIDHeader = "X-Request-ID"

// requestContext attaches a request id and a request-scoped logger.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requestID := request.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		writer.Header().Set(requestIDHeader, requestID)

		ctx := observability.WithRequestID(request.Context(), requestID)
		ctx = observability.WithLogger(ctx, s.logger.With("request_id", requestID))

		next.ServeHTTP(writer, request.WithContext(ctx))
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		started := time.Now()
		recorder := &observability.StatusRecorder{ResponseWriter: writer, Status: http.StatusOK}

		next.ServeHTTP(recorder, request)

		route := "unmatched"
		if current := mux.CurrentRoute(request); current != nil {
			if template, err := current.GetPathTemplate(); err == nil {
				route = template
			}
		}

		elapsed := time.Since(started)
		s.metrics.Observe(route, request.Method, recorder.Status, elapsed)
		observability.LoggerFromContext(request.Context()).Debug(
			"http request",
			"method", request.Method,
			"route", route,
			"status", recorder.Status,
			"duration", elapsed,
		)
	})
}
