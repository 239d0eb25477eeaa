package app

import (
	"github.com/jonboulle/clockwork"

	"quiz-duel-service/internal/domain"
)

// RoomStatus is the match lifecycle state.
type RoomStatus string

const (
	RoomStarting       RoomStatus = "starting"
	RoomQuestionActive RoomStatus = "question_active"
	RoomScoring        RoomStatus = "scoring"
	RoomFinished       RoomStatus = "finished"
)

// Room is one two-player match. Every field is guarded by the owning
// GameService mutex; timer callbacks re-enter through the service and
// re-check room state before acting, so a cancelled-but-fired timer is a
// no-op.
type Room struct {
	id      string
	players [2]domain.PlayerInfo // challenger first; order fixed at creation
	scores  map[string]int
	total   int

	current  int // 1-based question index; 0 before the first question
	question domain.Question
	answers  map[int]map[string]domain.Answer
	resolved map[int]bool

	status RoomStatus

	startTimer    clockwork.Timer
	questionTimer clockwork.Timer
	advanceTimer  clockwork.Timer
}

func newRoom(id string, challenger, target domain.PlayerInfo, total int) *Room {
	return &Room{
		id:      id,
		players: [2]domain.PlayerInfo{challenger, target},
		scores: map[string]int{
			challenger.ID: 0,
			target.ID:     0,
		},
		total:    total,
		answers:  make(map[int]map[string]domain.Answer),
		resolved: make(map[int]bool),
		status:   RoomStarting,
	}
}

func (r *Room) hasPlayer(id string) bool {
	return r.players[0].ID == id || r.players[1].ID == id
}

func (r *Room) opponent(id string) (domain.PlayerInfo, bool) {
	switch id {
	case r.players[0].ID:
		return r.players[1], true
	case r.players[1].ID:
		return r.players[0], true
	}
	return domain.PlayerInfo{}, false
}

// recordAnswer stores an answer for the question index. Returns false on a
// duplicate submission; recorded answers are never overwritten.
func (r *Room) recordAnswer(index int, ans domain.Answer) bool {
	byPlayer, ok := r.answers[index]
	if !ok {
		byPlayer = make(map[string]domain.Answer, 2)
		r.answers[index] = byPlayer
	}
	if _, exists := byPlayer[ans.PlayerID]; exists {
		return false
	}
	byPlayer[ans.PlayerID] = ans
	return true
}

func (r *Room) bothAnswered(index int) bool {
	return len(r.answers[index]) == 2
}

// markResolved is the resolution guard: the first caller for an index wins,
// any later caller (a raced timer or answer) observes false and backs off.
func (r *Room) markResolved(index int) bool {
	if r.resolved[index] {
		return false
	}
	r.resolved[index] = true
	return true
}

// fillTimeouts synthesizes a timed-out answer for every player missing one,
// so scoring always sees a complete pair.
func (r *Room) fillTimeouts(index int, windowSeconds float64) {
	for _, p := range r.players {
		if _, ok := r.answers[index][p.ID]; ok {
			continue
		}
		r.recordAnswer(index, domain.Answer{
			PlayerID:       p.ID,
			OptionIndex:    domain.NoAnswer,
			IsCorrect:      false,
			ElapsedSeconds: windowSeconds,
			TimedOut:       true,
		})
	}
}

// applyScores runs the pure scoring function over the completed pair for the
// index and folds the deltas into the cumulative scores.
func (r *Room) applyScores(index int) {
	a := r.answers[index][r.players[0].ID]
	b := r.answers[index][r.players[1].ID]
	da, db := Score(a, b)
	r.scores[r.players[0].ID] += da
	r.scores[r.players[1].ID] += db
}

// winner returns the winning player id, or nil on a tie.
func (r *Room) winner() *string {
	s1 := r.scores[r.players[0].ID]
	s2 := r.scores[r.players[1].ID]
	switch {
	case s1 > s2:
		id := r.players[0].ID
		return &id
	case s2 > s1:
		id := r.players[1].ID
		return &id
	}
	return nil
}

func (r *Room) scoresSnapshot() map[string]int {
	out := make(map[string]int, len(r.scores))
	for id, s := range r.scores {
		out[id] = s
	}
	return out
}

func (r *Room) answersSnapshot(index int) map[string]domain.Answer {
	out := make(map[string]domain.Answer, len(r.answers[index]))
	for id, a := range r.answers[index] {
		out[id] = a
	}
	return out
}

// stopTimers cancels every live timer the room owns. Cancellation is
// best-effort; an already-fired callback no-ops on the state re-checks.
func (r *Room) stopTimers() {
	for _, t := range []clockwork.Timer{r.startTimer, r.questionTimer, r.advanceTimer} {
		if t != nil {
			t.Stop()
		}
	}
}
