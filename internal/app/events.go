package app

import "quiz-duel-service/internal/domain"

// Event is one outbound message envelope for the transport layer.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Notifier delivers events to connected clients. Implemented by the
// websocket hub; the game core never touches a connection directly.
// Implementations must not block and must not call back into the service.
type Notifier interface {
	Notify(playerID string, event Event)
	Broadcast(event Event)
}

// Outbound event types understood by the client.
const (
	EventRegistered        = "registered"
	EventPlayersList       = "playersList"
	EventChallengeRequest  = "challengeRequest"
	EventChallengeAccepted = "challengeAccepted"
	EventChallengeRejected = "challengeRejected"
	EventChallengeExpired  = "challengeExpired"
	EventNewQuestion       = "newQuestion"
	EventQuestionResult    = "questionResult"
	EventGameOver          = "gameOver"
	EventOpponentLeft      = "opponentLeft"
	EventError             = "error"
)

type RegisteredPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type PlayersListPayload struct {
	Players []domain.PlayerInfo `json:"players"`
}

type ChallengeRequestPayload struct {
	Challenger domain.PlayerInfo `json:"challenger"`
}

type ChallengeAcceptedPayload struct {
	RoomID   string            `json:"roomId"`
	Opponent domain.PlayerInfo `json:"opponent"`
}

type ChallengeRejectedPayload struct {
	Player domain.PlayerInfo `json:"player"`
}

// ChallengeExpiredPayload tells a challenger the target never responded.
type ChallengeExpiredPayload struct {
	Target domain.PlayerInfo `json:"target"`
}

type NewQuestionPayload struct {
	QuestionIndex    int      `json:"questionIndex"`
	Text             string   `json:"text"`
	Options          []string `json:"options"`
	TimeLimitSeconds int      `json:"timeLimitSeconds"`
	TotalQuestions   int      `json:"totalQuestions"`
}

type QuestionResultPayload struct {
	QuestionIndex  int                      `json:"questionIndex"`
	CorrectOption  int                      `json:"correctOptionIndex"`
	Answers        map[string]domain.Answer `json:"answers"`
	Scores         map[string]int           `json:"scores"`
	TotalQuestions int                      `json:"totalQuestions"`
}

type GameOverPayload struct {
	Scores   map[string]int    `json:"scores"`
	WinnerID *string           `json:"winnerId"`
	IsTie    bool              `json:"isTie"`
	Player1  domain.PlayerInfo `json:"player1"`
	Player2  domain.PlayerInfo `json:"player2"`
}

type OpponentLeftPayload struct {
	Name string `json:"name"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
