package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/infra/memory"
)

type outboundEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	bank := memory.NewQuestionBank(memory.NewStaticQuestionLoader(memory.DefaultQuestions()), time.Minute)
	hub := NewHub()
	service := app.NewGameService(app.NewRegistry(), bank, memory.NewRecorder(), hub, clockwork.NewRealClock(), app.DefaultSettings())
	handler := NewWSHandler(service, hub)

	server := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	t.Cleanup(server.Close)
	return server
}

func dialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendMessage(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := conn.WriteJSON(inboundMessage{Type: msgType, Payload: raw}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// awaitEvent reads until an event of the wanted type arrives, skipping
// interleaved broadcasts such as playersList refreshes.
func awaitEvent(t *testing.T, conn *websocket.Conn, eventType string) outboundEvent {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		var event outboundEvent
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("waiting for %s: %v", eventType, err)
		}
		if event.Type == eventType {
			return event
		}
	}
	t.Fatalf("timed out waiting for %s", eventType)
	return outboundEvent{}
}

func TestRegisterOverWebsocket(t *testing.T) {
	server := newTestServer(t)
	conn := dialWS(t, server)

	sendMessage(t, conn, "register", map[string]string{"name": "Alice"})

	registered := awaitEvent(t, conn, app.EventRegistered)
	var who app.RegisteredPayload
	if err := json.Unmarshal(registered.Payload, &who); err != nil {
		t.Fatalf("decode registered: %v", err)
	}
	if who.Name != "Alice" || who.ID == "" {
		t.Fatalf("unexpected registered payload %+v", who)
	}

	list := awaitEvent(t, conn, app.EventPlayersList)
	var players app.PlayersListPayload
	if err := json.Unmarshal(list.Payload, &players); err != nil {
		t.Fatalf("decode playersList: %v", err)
	}
	if len(players.Players) != 1 || players.Players[0].Name != "Alice" {
		t.Fatalf("unexpected idle list %+v", players.Players)
	}
}

func TestRegisterRejectsBlankName(t *testing.T) {
	server := newTestServer(t)
	conn := dialWS(t, server)

	sendMessage(t, conn, "register", map[string]string{"name": "   "})

	errEvent := awaitEvent(t, conn, app.EventError)
	var payload app.ErrorPayload
	if err := json.Unmarshal(errEvent.Payload, &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Message != "display name must not be empty" {
		t.Fatalf("unexpected error message %q", payload.Message)
	}
}

func TestChallengeRoundTrip(t *testing.T) {
	server := newTestServer(t)
	alice := dialWS(t, server)
	bob := dialWS(t, server)

	sendMessage(t, alice, "register", map[string]string{"name": "Alice"})
	registered := awaitEvent(t, alice, app.EventRegistered)
	var aliceInfo app.RegisteredPayload
	if err := json.Unmarshal(registered.Payload, &aliceInfo); err != nil {
		t.Fatalf("decode registered: %v", err)
	}

	sendMessage(t, bob, "register", map[string]string{"name": "Bob"})
	registered = awaitEvent(t, bob, app.EventRegistered)
	var bobInfo app.RegisteredPayload
	if err := json.Unmarshal(registered.Payload, &bobInfo); err != nil {
		t.Fatalf("decode registered: %v", err)
	}

	sendMessage(t, alice, "challenge", map[string]string{"targetId": bobInfo.ID})

	request := awaitEvent(t, bob, app.EventChallengeRequest)
	var challenge app.ChallengeRequestPayload
	if err := json.Unmarshal(request.Payload, &challenge); err != nil {
		t.Fatalf("decode challengeRequest: %v", err)
	}
	if challenge.Challenger.ID != aliceInfo.ID || challenge.Challenger.Name != "Alice" {
		t.Fatalf("unexpected challenger %+v", challenge.Challenger)
	}

	sendMessage(t, bob, "rejectChallenge", map[string]string{"challengerId": aliceInfo.ID})

	rejected := awaitEvent(t, alice, app.EventChallengeRejected)
	var rejection app.ChallengeRejectedPayload
	if err := json.Unmarshal(rejected.Payload, &rejection); err != nil {
		t.Fatalf("decode challengeRejected: %v", err)
	}
	if rejection.Player.Name != "Bob" {
		t.Fatalf("expected rejection from Bob, got %+v", rejection.Player)
	}
}

func TestUnsupportedMessageType(t *testing.T) {
	server := newTestServer(t)
	conn := dialWS(t, server)

	sendMessage(t, conn, "teleport", map[string]string{})

	errEvent := awaitEvent(t, conn, app.EventError)
	var payload app.ErrorPayload
	if err := json.Unmarshal(errEvent.Payload, &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Message != "unsupported message type" {
		t.Fatalf("unexpected error message %q", payload.Message)
	}
}

func TestStatsEndpoints(t *testing.T) {
	recorder := memory.NewRecorder()
	if err := recorder.RecordMatch(context.Background(), domain.MatchRecord{
		RoomID:      "room-1",
		Player1Name: "Alice",
		Player2Name: "Bob",
		WinnerName:  "Alice",
		FinishedAt:  time.Now(),
	}); err != nil {
		t.Fatalf("seed match: %v", err)
	}

	stats := NewStatsHandler(recorder)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/matches", stats.Matches)
	mux.HandleFunc("/api/stats/visits", stats.Visits)
	server := httptest.NewServer(WithVisitRecording(recorder, mux))
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/api/matches")
	if err != nil {
		t.Fatalf("get matches: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var matches []domain.MatchRecord
	if err := json.NewDecoder(resp.Body).Decode(&matches); err != nil {
		t.Fatalf("decode matches: %v", err)
	}
	if len(matches) != 1 || matches[0].WinnerName != "Alice" {
		t.Fatalf("unexpected history %+v", matches)
	}

	// the request above was counted by the visit middleware, asynchronously
	deadline := time.Now().Add(2 * time.Second)
	for {
		recorded, err := recorder.VisitStats(context.Background(), 7)
		if err != nil {
			t.Fatalf("visit stats: %v", err)
		}
		if len(recorded) == 1 && recorded[0].Total >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("visit was never recorded, got %+v", recorded)
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err = http.Get(server.URL + "/api/stats/visits")
	if err != nil {
		t.Fatalf("get visits: %v", err)
	}
	defer resp.Body.Close()
	var visitStats []domain.VisitStat
	if err := json.NewDecoder(resp.Body).Decode(&visitStats); err != nil {
		t.Fatalf("decode visit stats: %v", err)
	}
	if len(visitStats) != 1 || visitStats[0].Total < 1 {
		t.Fatalf("unexpected visit stats %+v", visitStats)
	}
}
