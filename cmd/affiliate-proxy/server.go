package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/affiliatekit/smartsearch/pkg/logging"
	"github.com/affiliatekit/smartsearch/pkg/marketplace"
	"github.com/affiliatekit/smartsearch/pkg/smartsearch"
)

const (
	// requestIDHeader is echoed back on every response so callers can
	// correlate their logs with ours.
	requestIDHeader = "X-Request-ID"

	// maxRequestBytes bounds search request bodies. Search parameters are
	// tiny; anything larger is a client bug.
	maxRequestBytes = 64 << 10
)

type ctxKey int

const requestIDKey ctxKey = 0

var validate = validator.New()

// apiError is the JSON shape for every failed request. ErrorCode carries
// the stable error kind; Error carries the human-readable detail.
type apiError struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}

func newRouter(searcher smartsearch.SmartSearcher, client *marketplace.Client, redisClient *redis.Client) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(requestID)
	r.Use(requestLogger(logging.NewLogger("http")))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(redisClient))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/smart-search", smartSearchHandler(searcher))
		r.Get("/categories", categoriesHandler(client))
	})

	return r
}

// requestID honors an inbound X-Request-ID and generates one otherwise.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", requestIDFrom(r.Context())).
				Str("remote_addr", r.RemoteAddr).
				Msg("HTTP request")
		})
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// readyHandler reports readiness. Without Redis the proxy has no external
// dependency to wait on and is ready as soon as it listens.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

func smartSearchHandler(searcher smartsearch.SmartSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req smartsearch.Request
		body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, string(marketplace.KindInvalidParameter), "request body is not valid JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, string(marketplace.KindInvalidParameter), validationMessage(err))
			return
		}

		resp, err := searcher.SmartSearch(r.Context(), req)
		if err != nil {
			writeMarketplaceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func categoriesHandler(client *marketplace.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := client.GetCategories(r.Context(), r.URL.Query().Get("parent_id"))
		if err != nil {
			writeMarketplaceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"categories": categories,
			},
		})
	}
}

// writeMarketplaceError maps an orchestration failure onto the wire: the
// error kind picks the status code and becomes the machine-readable
// error_code field.
func writeMarketplaceError(w http.ResponseWriter, err error) {
	var mErr *marketplace.Error
	if errors.As(err, &mErr) {
		writeError(w, mErr.HTTPStatus(), string(mErr.Kind), mErr.Error())
		return
	}
	writeError(w, http.StatusBadGateway, string(marketplace.KindRemoteUnavailable), err.Error())
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Success: false, Error: message, ErrorCode: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := logging.NewLogger("http")
		logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// validationMessage flattens validator errors into one readable line, e.g.
// "keywords is required; pagesize must be at most 50".
func validationMessage(err error) string {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(vErrs))
	for _, fe := range vErrs {
		msgs = append(msgs, fieldErrorMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

func fieldErrorMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return field + " is invalid"
	}
}
