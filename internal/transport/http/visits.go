package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
)

// HistoryStore exposes the read side of the persistence collaborator for
// the stats endpoints.
type HistoryStore interface {
	MatchHistory(ctx context.Context, limit int) ([]domain.MatchRecord, error)
	VisitStats(ctx context.Context, days int) ([]domain.VisitStat, error)
}

// WithVisitRecording records every request as a visit, fire-and-forget.
func WithVisitRecording(recorder app.MatchRecorder, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		visit := domain.Visit{
			IP:        r.RemoteAddr,
			UserAgent: r.UserAgent(),
			Path:      r.URL.Path,
			At:        time.Now(),
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := recorder.RecordVisit(ctx, visit); err != nil {
				log.Error().Err(err).Str("path", visit.Path).Msg("recording visit failed")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// StatsHandler serves recent match history and visit analytics.
type StatsHandler struct {
	store HistoryStore
}

func NewStatsHandler(store HistoryStore) *StatsHandler {
	return &StatsHandler{store: store}
}

func (h *StatsHandler) Matches(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.MatchHistory(r.Context(), 50)
	if err != nil {
		log.Error().Err(err).Msg("match history query failed")
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, records)
}

func (h *StatsHandler) Visits(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.VisitStats(r.Context(), 14)
	if err != nil {
		log.Error().Err(err).Msg("visit stats query failed")
		http.Error(w, "stats unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("response encode failed")
	}
}
