package memory

import (
	"context"
	"sync"

	"quiz-duel-service/internal/domain"
)

// Recorder keeps match and visit records in memory. It backs database-less
// runs and tests; the postgres recorder replaces it in production.
type Recorder struct {
	mu      sync.RWMutex
	matches []domain.MatchRecord
	visits  []domain.Visit
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) RecordMatch(_ context.Context, rec domain.MatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches = append(r.matches, rec)
	return nil
}

func (r *Recorder) RecordVisit(_ context.Context, v domain.Visit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visits = append(r.visits, v)
	return nil
}

// MatchHistory returns up to limit finished matches, newest first.
func (r *Recorder) MatchHistory(_ context.Context, limit int) ([]domain.MatchRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.MatchRecord, 0, limit)
	for i := len(r.matches) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.matches[i])
	}
	return out, nil
}

// VisitStats groups visits per day, newest day first, capped at days entries.
func (r *Recorder) VisitStats(_ context.Context, days int) ([]domain.VisitStat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int)
	order := make([]string, 0)
	for i := len(r.visits) - 1; i >= 0; i-- {
		date := r.visits[i].At.Format("2006-01-02")
		if _, ok := counts[date]; !ok {
			if len(order) == days {
				continue
			}
			order = append(order, date)
		}
		counts[date]++
	}
	out := make([]domain.VisitStat, 0, len(order))
	for _, date := range order {
		out = append(out, domain.VisitStat{Date: date, Total: counts[date]})
	}
	return out, nil
}
