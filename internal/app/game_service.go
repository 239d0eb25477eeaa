package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"quiz-duel-service/internal/domain"
)

// QuestionBank supplies questions for a round, drawn uniformly at random
// with replacement.
type QuestionBank interface {
	Draw(ctx context.Context) (domain.Question, error)
}

// MatchRecorder is the persistence collaborator. Both calls are
// fire-and-forget from the game's point of view: failures are logged at the
// boundary and never affect in-memory match outcome delivery.
type MatchRecorder interface {
	RecordMatch(ctx context.Context, rec domain.MatchRecord) error
	RecordVisit(ctx context.Context, v domain.Visit) error
}

// Settings holds the timed-transition knobs for a match.
type Settings struct {
	TotalQuestions    int
	AnswerWindow      time.Duration
	ChallengeWindow   time.Duration
	StartDelay        time.Duration
	NextQuestionDelay time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		TotalQuestions:    5,
		AnswerWindow:      10 * time.Second,
		ChallengeWindow:   30 * time.Second,
		StartDelay:        2 * time.Second,
		NextQuestionDelay: 3 * time.Second,
	}
}

type challengeKey struct {
	challengerID string
	targetID     string
}

type pendingChallenge struct {
	key      challengeKey
	issuedAt time.Time
	timer    clockwork.Timer
}

// GameService is the match orchestration engine: player registry access,
// challenge negotiation, and the per-room question/answer/scoring state
// machine. All state transitions are short operations serialized under one
// mutex; timers are the only other entry point and every timer callback
// re-checks the state it depends on before acting.
type GameService struct {
	mu         sync.Mutex
	registry   *Registry
	bank       QuestionBank
	recorder   MatchRecorder
	notifier   Notifier
	clock      clockwork.Clock
	settings   Settings
	challenges map[challengeKey]*pendingChallenge
	rooms      map[string]*Room
}

func NewGameService(registry *Registry, bank QuestionBank, recorder MatchRecorder, notifier Notifier, clock clockwork.Clock, settings Settings) *GameService {
	return &GameService{
		registry:   registry,
		bank:       bank,
		recorder:   recorder,
		notifier:   notifier,
		clock:      clock,
		settings:   settings,
		challenges: make(map[challengeKey]*pendingChallenge),
		rooms:      make(map[string]*Room),
	}
}

// Register creates an Idle player for the connection and pushes the updated
// idle list to everyone.
func (s *GameService) Register(connID, name string) (domain.Player, error) {
	player, err := s.registry.Register(connID, name)
	if err != nil {
		return domain.Player{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier.Notify(connID, Event{Type: EventRegistered, Payload: RegisteredPayload{ID: player.ID, Name: player.DisplayName}})
	s.broadcastIdleLocked()
	log.Info().Str("player_id", connID).Str("name", player.DisplayName).Msg("player registered")
	return player, nil
}

// Challenge issues a challenge from challengerID to targetID. Invalid
// requests (unknown ids, busy target, self-challenge) are logged no-ops.
// A repeat challenge for the same pair replaces the pending one.
func (s *GameService) Challenge(challengerID, targetID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenger, ok := s.registry.Get(challengerID)
	if !ok || challenger.Status == domain.StatusInMatch {
		log.Warn().Str("challenger_id", challengerID).Msg("challenge from unknown or in-match player ignored")
		return
	}
	target, ok := s.registry.Get(targetID)
	if !ok || challengerID == targetID {
		log.Warn().Str("challenger_id", challengerID).Str("target_id", targetID).Msg("challenge to unknown or self target ignored")
		return
	}
	if target.Status != domain.StatusIdle {
		log.Warn().Str("challenger_id", challengerID).Str("target_id", targetID).Str("status", string(target.Status)).Msg("challenge to non-idle target ignored")
		return
	}

	key := challengeKey{challengerID: challengerID, targetID: targetID}
	if prev, ok := s.challenges[key]; ok {
		prev.timer.Stop()
		delete(s.challenges, key)
		log.Debug().Str("challenger_id", challengerID).Str("target_id", targetID).Msg("replacing pending challenge")
	}

	ch := &pendingChallenge{key: key, issuedAt: s.clock.Now()}
	ch.timer = s.clock.AfterFunc(s.settings.ChallengeWindow, func() {
		s.expireChallenge(key)
	})
	s.challenges[key] = ch

	// The target stays Idle; only the challenger leaves the idle list.
	s.registry.MarkChallenging(challengerID)
	s.broadcastIdleLocked()
	s.notifier.Notify(targetID, Event{Type: EventChallengeRequest, Payload: ChallengeRequestPayload{
		Challenger: domain.PlayerInfo{ID: challenger.ID, Name: challenger.DisplayName},
	}})
	log.Info().Str("challenger_id", challengerID).Str("target_id", targetID).Msg("challenge issued")
}

// expireChallenge fires when the 30s window lapses without a response.
func (s *GameService) expireChallenge(key challengeKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.challenges[key]; !ok {
		return // already accepted, rejected, or withdrawn
	}
	delete(s.challenges, key)

	target, _ := s.registry.Get(key.targetID)
	s.notifier.Notify(key.challengerID, Event{Type: EventChallengeExpired, Payload: ChallengeExpiredPayload{
		Target: domain.PlayerInfo{ID: key.targetID, Name: target.DisplayName},
	}})
	s.settleChallengerLocked(key.challengerID)
	log.Info().Str("challenger_id", key.challengerID).Str("target_id", key.targetID).Msg("challenge expired")
}

// AcceptChallenge resolves the exact pending (challenger, target) pair into
// a new match. Accepting a stale or unknown challenge returns
// domain.ErrNoSuchChallenge for the transport to surface as a no-op.
func (s *GameService) AcceptChallenge(targetID, challengerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := challengeKey{challengerID: challengerID, targetID: targetID}
	ch, ok := s.challenges[key]
	if !ok {
		log.Warn().Str("challenger_id", challengerID).Str("target_id", targetID).Msg("accept for missing or expired challenge")
		return domain.ErrNoSuchChallenge
	}
	challenger, ok := s.registry.Get(challengerID)
	if !ok {
		ch.timer.Stop()
		delete(s.challenges, key)
		return domain.ErrNoSuchChallenge
	}
	target, ok := s.registry.Get(targetID)
	if !ok {
		return domain.ErrNoSuchChallenge
	}

	ch.timer.Stop()
	delete(s.challenges, key)
	s.dropChallengesInvolvingLocked(challengerID)
	s.dropChallengesInvolvingLocked(targetID)

	roomID := uuid.NewString()
	room := newRoom(roomID,
		domain.PlayerInfo{ID: challenger.ID, Name: challenger.DisplayName},
		domain.PlayerInfo{ID: target.ID, Name: target.DisplayName},
		s.settings.TotalQuestions,
	)
	s.rooms[roomID] = room
	s.registry.MarkInMatch(challengerID, roomID)
	s.registry.MarkInMatch(targetID, roomID)
	s.broadcastIdleLocked()

	s.notifier.Notify(challengerID, Event{Type: EventChallengeAccepted, Payload: ChallengeAcceptedPayload{RoomID: roomID, Opponent: room.players[1]}})
	s.notifier.Notify(targetID, Event{Type: EventChallengeAccepted, Payload: ChallengeAcceptedPayload{RoomID: roomID, Opponent: room.players[0]}})

	// Grace delay before the first question so both clients can switch views.
	room.startTimer = s.clock.AfterFunc(s.settings.StartDelay, func() {
		s.startMatch(roomID)
	})

	log.Info().Str("room_id", roomID).Str("challenger_id", challengerID).Str("target_id", targetID).Msg("challenge accepted, room created")
	return nil
}

// RejectChallenge declines a pending challenge and notifies the challenger.
func (s *GameService) RejectChallenge(targetID, challengerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := challengeKey{challengerID: challengerID, targetID: targetID}
	ch, ok := s.challenges[key]
	if !ok {
		log.Warn().Str("challenger_id", challengerID).Str("target_id", targetID).Msg("reject for missing or expired challenge")
		return domain.ErrNoSuchChallenge
	}
	ch.timer.Stop()
	delete(s.challenges, key)

	target, _ := s.registry.Get(targetID)
	s.notifier.Notify(challengerID, Event{Type: EventChallengeRejected, Payload: ChallengeRejectedPayload{
		Player: domain.PlayerInfo{ID: targetID, Name: target.DisplayName},
	}})
	s.settleChallengerLocked(challengerID)
	log.Info().Str("challenger_id", challengerID).Str("target_id", targetID).Msg("challenge rejected")
	return nil
}

// startMatch fires after the grace delay and pushes the first question.
func (s *GameService) startMatch(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok || room.status != RoomStarting {
		return // room discarded before the grace delay elapsed
	}
	s.nextQuestionLocked(room)
}

func (s *GameService) nextQuestionLocked(room *Room) {
	question, err := s.bank.Draw(context.Background())
	if err != nil {
		log.Error().Err(err).Str("room_id", room.id).Msg("question draw failed, finishing match early")
		s.finishMatchLocked(room)
		return
	}

	room.current++
	room.question = question
	room.status = RoomQuestionActive

	index := room.current
	room.questionTimer = s.clock.AfterFunc(s.settings.AnswerWindow, func() {
		s.questionTimeout(room.id, index)
	})

	payload := NewQuestionPayload{
		QuestionIndex:    index,
		Text:             question.Text,
		Options:          question.Options,
		TimeLimitSeconds: int(s.settings.AnswerWindow / time.Second),
		TotalQuestions:   room.total,
	}
	for _, p := range room.players {
		s.notifier.Notify(p.ID, Event{Type: EventNewQuestion, Payload: payload})
	}
	log.Debug().Str("room_id", room.id).Int("question_index", index).Msg("question sent")
}

// SubmitAnswer records one player's answer for the active question. Any
// mismatch (wrong room state, stale index, non-member, duplicate) is a
// logged no-op.
func (s *GameService) SubmitAnswer(playerID, roomID string, questionIndex, optionIndex int, elapsedSeconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		log.Warn().Str("room_id", roomID).Str("player_id", playerID).Msg("answer for unknown room ignored")
		return
	}
	if room.status != RoomQuestionActive || questionIndex != room.current {
		log.Warn().Str("room_id", roomID).Int("question_index", questionIndex).Int("current", room.current).Msg("answer for inactive question ignored")
		return
	}
	if !room.hasPlayer(playerID) {
		log.Warn().Str("room_id", roomID).Str("player_id", playerID).Msg("answer from non-member ignored")
		return
	}

	window := s.settings.AnswerWindow.Seconds()
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	} else if elapsedSeconds > window {
		elapsedSeconds = window
	}

	recorded := room.recordAnswer(questionIndex, domain.Answer{
		PlayerID:       playerID,
		OptionIndex:    optionIndex,
		IsCorrect:      optionIndex == room.question.CorrectOption,
		ElapsedSeconds: elapsedSeconds,
		TimedOut:       false,
	})
	if !recorded {
		log.Warn().Str("room_id", roomID).Str("player_id", playerID).Int("question_index", questionIndex).Msg("duplicate answer ignored")
		return
	}

	if room.bothAnswered(questionIndex) {
		if room.questionTimer != nil {
			room.questionTimer.Stop()
		}
		s.resolveQuestionLocked(room, questionIndex)
	}
}

// questionTimeout fires when the answer window lapses for an index.
func (s *GameService) questionTimeout(roomID string, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok || room.status != RoomQuestionActive || room.current != index {
		return // resolved or discarded before the timer landed
	}
	s.resolveQuestionLocked(room, index)
}

// resolveQuestionLocked scores an index exactly once; the markResolved guard
// settles the race between the last-instant answer and the expiring timer.
func (s *GameService) resolveQuestionLocked(room *Room, index int) {
	if !room.markResolved(index) {
		return
	}
	room.status = RoomScoring
	room.fillTimeouts(index, s.settings.AnswerWindow.Seconds())
	room.applyScores(index)

	payload := QuestionResultPayload{
		QuestionIndex:  index,
		CorrectOption:  room.question.CorrectOption,
		Answers:        room.answersSnapshot(index),
		Scores:         room.scoresSnapshot(),
		TotalQuestions: room.total,
	}
	for _, p := range room.players {
		s.notifier.Notify(p.ID, Event{Type: EventQuestionResult, Payload: payload})
	}

	room.advanceTimer = s.clock.AfterFunc(s.settings.NextQuestionDelay, func() {
		s.advanceRoom(room.id, index)
	})
	log.Debug().Str("room_id", room.id).Int("question_index", index).Msg("question resolved")
}

// advanceRoom moves to the next question, or finishes after the last one.
func (s *GameService) advanceRoom(roomID string, afterIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok || room.status != RoomScoring || room.current != afterIndex {
		return
	}
	if room.current < room.total {
		s.nextQuestionLocked(room)
		return
	}
	s.finishMatchLocked(room)
}

func (s *GameService) finishMatchLocked(room *Room) {
	room.status = RoomFinished
	room.stopTimers()

	winnerID := room.winner()
	payload := GameOverPayload{
		Scores:   room.scoresSnapshot(),
		WinnerID: winnerID,
		IsTie:    winnerID == nil,
		Player1:  room.players[0],
		Player2:  room.players[1],
	}
	for _, p := range room.players {
		s.notifier.Notify(p.ID, Event{Type: EventGameOver, Payload: payload})
	}

	winnerName := ""
	if winnerID != nil {
		for _, p := range room.players {
			if p.ID == *winnerID {
				winnerName = p.Name
			}
		}
	}
	record := domain.MatchRecord{
		RoomID:       room.id,
		Player1ID:    room.players[0].ID,
		Player1Name:  room.players[0].Name,
		Player2ID:    room.players[1].ID,
		Player2Name:  room.players[1].Name,
		Player1Score: room.scores[room.players[0].ID],
		Player2Score: room.scores[room.players[1].ID],
		WinnerName:   winnerName,
		FinishedAt:   s.clock.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.recorder.RecordMatch(ctx, record); err != nil {
			log.Error().Err(err).Str("room_id", record.RoomID).Msg("recording match result failed")
		}
	}()

	for _, p := range room.players {
		s.registry.MarkIdle(p.ID)
	}
	delete(s.rooms, room.id)
	s.broadcastIdleLocked()
	log.Info().
		Str("room_id", room.id).
		Int("player1_score", record.Player1Score).
		Int("player2_score", record.Player2Score).
		Str("winner", winnerName).
		Msg("match finished")
}

// Disconnect tears down everything tied to a dropped connection: an
// in-flight match ends with an opponent-left outcome, pending challenges
// involving the player are invalidated, and the record is removed.
func (s *GameService) Disconnect(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.registry.Get(connID)
	if !ok {
		return
	}

	if player.Status == domain.StatusInMatch {
		if room, ok := s.rooms[player.RoomID]; ok {
			room.stopTimers()
			delete(s.rooms, room.id)
			if opp, ok := room.opponent(connID); ok {
				s.registry.MarkIdle(opp.ID)
				s.notifier.Notify(opp.ID, Event{Type: EventOpponentLeft, Payload: OpponentLeftPayload{Name: player.DisplayName}})
			}
			log.Info().Str("room_id", room.id).Str("player_id", connID).Msg("match abandoned on disconnect")
		}
	}

	s.dropChallengesInvolvingLocked(connID)
	s.registry.Remove(connID)
	s.broadcastIdleLocked()
	log.Info().Str("player_id", connID).Msg("player disconnected")
}

// dropChallengesInvolvingLocked cancels every pending challenge where the
// player appears on either side and settles affected challenger statuses.
func (s *GameService) dropChallengesInvolvingLocked(playerID string) {
	var affected []string
	for key, ch := range s.challenges {
		if key.challengerID != playerID && key.targetID != playerID {
			continue
		}
		ch.timer.Stop()
		delete(s.challenges, key)
		if key.challengerID != playerID {
			affected = append(affected, key.challengerID)
		}
	}
	for _, id := range affected {
		s.settleChallengerLocked(id)
	}
}

// settleChallengerLocked returns a challenger to Idle once they have no
// outstanding challenges left.
func (s *GameService) settleChallengerLocked(challengerID string) {
	for key := range s.challenges {
		if key.challengerID == challengerID {
			return
		}
	}
	if p, ok := s.registry.Get(challengerID); ok && p.Status == domain.StatusChallenging {
		s.registry.MarkIdle(challengerID)
		s.broadcastIdleLocked()
	}
}

func (s *GameService) broadcastIdleLocked() {
	s.notifier.Broadcast(Event{Type: EventPlayersList, Payload: PlayersListPayload{Players: s.registry.ListIdle()}})
}
