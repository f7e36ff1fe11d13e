package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/quarto-backend/internal/history"
	"github.com/DoyleJ11/quarto-backend/pkg/types"
)

// GameLister lists live sessions.
type GameLister interface {
	Games(ctx context.Context) ([]types.GameSummary, error)
}

// HistoryReader reads archived games.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.GameRecord, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func ListGames(games GameLister, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := games.Games(r.Context())
		if err != nil {
			logger.Error("list games", zap.Error(err))
			http.Error(w, "failed to list games", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// RecentHistory serves the archive. Without a store it is always empty.
func RecentHistory(store HistoryReader, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeJSON(w, http.StatusOK, []history.GameRecord{})
			return
		}
		limit := 0
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		recs, err := store.Recent(r.Context(), limit)
		if err != nil {
			logger.Error("read history", zap.Error(err))
			http.Error(w, "failed to read history", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

// RequestLogger logs each request through zap.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
