package domain

import "time"

// PlayerStatus tracks where a connected player is in the lobby lifecycle.
type PlayerStatus string

const (
	StatusIdle        PlayerStatus = "idle"
	StatusChallenging PlayerStatus = "challenging"
	StatusInMatch     PlayerStatus = "in_match"
)

// Player represents one registered connection. The registry is the sole
// owner; rooms hold only the id.
type Player struct {
	ID          string
	DisplayName string
	Status      PlayerStatus
	RoomID      string // set iff Status == StatusInMatch
}

// PlayerInfo is the wire-friendly view of a player.
type PlayerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Question models an MCQ question with one correct option.
type Question struct {
	ID            int      `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correctOption"`
}

// NoAnswer is the sentinel option index recorded for a timed-out answer.
const NoAnswer = -1

// Answer is a player's recorded response for one question. Immutable once
// recorded; at most one per (question index, player).
type Answer struct {
	PlayerID       string  `json:"playerId"`
	OptionIndex    int     `json:"optionIndex"`
	IsCorrect      bool    `json:"isCorrect"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
	TimedOut       bool    `json:"timedOut"`
}

// MatchRecord is the completed-match summary handed to the persistence
// collaborator.
type MatchRecord struct {
	RoomID       string    `json:"roomId"`
	Player1ID    string    `json:"player1Id"`
	Player1Name  string    `json:"player1Name"`
	Player2ID    string    `json:"player2Id"`
	Player2Name  string    `json:"player2Name"`
	Player1Score int       `json:"player1Score"`
	Player2Score int       `json:"player2Score"`
	WinnerName   string    `json:"winnerName"` // empty on a tie
	FinishedAt   time.Time `json:"finishedAt"`
}

// Visit is a single HTTP hit, recorded as a pure side channel.
type Visit struct {
	IP        string
	UserAgent string
	Path      string
	At        time.Time
}

// VisitStat is a per-day visit count.
type VisitStat struct {
	Date  string `json:"date"`
	Total int    `json:"total"`
}
