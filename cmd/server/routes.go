package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"grantwatch/internal/ioformats"
	"grantwatch/internal/models"
	"grantwatch/pkg/logger"
)

type grantReader interface {
	List(ctx context.Context) ([]models.GrantSummary, error)
	Exists(ctx context.Context, url string) (bool, error)
}

func newRouter(st grantReader, l logger.Logger) http.Handler {
	if l == nil {
		l = logger.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logRequest(l))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// GET /grants[?format=csv]
	r.Get("/grants", func(w http.ResponseWriter, r *http.Request) {
		grants, err := st.List(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "listing grants failed"})
			return
		}
		if r.URL.Query().Get("format") == "csv" {
			w.Header().Set("Content-Type", "text/csv")
			w.WriteHeader(http.StatusOK)
			_ = ioformats.WriteGrantsCSV(w, grants)
			return
		}
		if grants == nil {
			grants = []models.GrantSummary{}
		}
		writeJSON(w, http.StatusOK, grants)
	})

	// GET /grants/exists?url=https://...
	r.Get("/grants/exists", func(w http.ResponseWriter, r *http.Request) {
		url := r.URL.Query().Get("url")
		if url == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url query parameter required"})
			return
		}
		ok, err := st.Exists(r.Context(), url)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"url": url, "exists": ok})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func logRequest(l logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			l.Info("request",
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Int("status", ww.Status()),
				logger.Duration("took", time.Since(start)),
				logger.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
