package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sqlgend/internal/pipeline"
	"sqlgend/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Convert(ctx context.Context, question, profileID string) (*pipeline.Result, error)
	Profiles() []types.ProfileInfo
	Status() types.StatusResponse
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(types.ProfilesResponse{Profiles: svc.Profiles()}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "", "failed to encode response")
		}
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Status()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "", "failed to encode response")
		}
	})

	r.Post("/convert", func(w http.ResponseWriter, r *http.Request) { handleConvert(svc, w, r) })

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// handleConvert runs one question through the pipeline.
//
//	@Summary	Convert a natural-language question to validated SQL
//	@Accept		json
//	@Produce	json
//	@Param		request	body		types.ConvertRequest	true	"question and optional profile"
//	@Success	200		{object}	types.ConvertResponse
//	@Failure	400		{object}	types.ErrorResponse
//	@Failure	422		{object}	types.ErrorResponse
//	@Failure	503		{object}	types.ErrorResponse
//	@Router		/convert [post]
func handleConvert(svc Service, w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "", "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req types.ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSONError(w, http.StatusBadRequest, "", "question is required")
		return
	}

	start := time.Now()
	logStart(r, req.Profile)

	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	res, err := svc.Convert(ctx, req.Question, req.Profile)
	if err != nil {
		// Client disconnects and shutdowns produce no response.
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		status := http.StatusInternalServerError
		kind := ""
		if f, ok := pipeline.AsFailure(err); ok {
			status = f.StatusCode()
			kind = string(f.Kind)
		} else if he, ok := err.(HTTPError); ok {
			status = he.StatusCode()
		}
		if status == http.StatusTooManyRequests {
			httpBackpressureTotal.Inc()
		}
		writeJSONError(w, status, kind, err.Error())
		logEnd(r, status, time.Since(start), err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(types.ConvertResponse{
		SQL:         res.SQL,
		Corrections: res.Corrections,
		Profile:     res.Profile,
		Backend:     res.Backend,
		Precision:   res.Precision,
		Attempts:    res.Attempts,
		RequestID:   res.RequestID,
	}); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "", "failed to encode response")
		return
	}
	logEnd(r, http.StatusOK, time.Since(start), nil)
}
