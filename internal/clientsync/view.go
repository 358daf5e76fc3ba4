// Package clientsync mirrors a room on the client side: it seeds from the
// room read endpoint, then folds the room's event stream into local state.
package clientsync

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// PlayerState is one row of the local scoreboard. Correct is nil until the
// current question has been graded.
type PlayerState struct {
	ID       string
	Name     string
	Score    int
	Answer   *string
	Correct  *bool
	JoinedAt time.Time
}

// View is the local mirror of one room. It is safe for concurrent use.
type View struct {
	mu        sync.RWMutex
	roomID    string
	code      string
	status    domain.RoomStatus
	question  *domain.Question
	answering bool
	players   []PlayerState
	index     map[string]int
}

func NewView() *View {
	return &View{index: make(map[string]int)}
}

type envelope struct {
	Event  string          `json:"event"`
	RoomID string          `json:"room_id"`
	Data   json.RawMessage `json:"data"`
}

// Seed replaces the view with a snapshot read from the server.
func (v *View) Seed(room domain.Room, players []domain.PlayerSummary) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.roomID = room.ID
	v.code = room.Code
	v.status = room.Status
	v.question = room.CurrentQuestion
	v.answering = room.CurrentQuestion != nil && room.CurrentQuestion.GradedAt == nil
	v.players = nil
	v.index = make(map[string]int, len(players))
	for _, p := range players {
		v.addLocked(PlayerState{ID: p.ID, Name: p.Name, Score: p.Score, JoinedAt: p.JoinedAt})
	}
}

// Apply folds one event envelope into the view. It reports whether the view
// changed; unknown events and events for other rooms are ignored.
func (v *View) Apply(raw []byte) (bool, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false, fmt.Errorf("decode envelope: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.roomID != "" && env.RoomID != "" && env.RoomID != v.roomID {
		return false, nil
	}

	switch env.Event {
	case domain.EventPlayerJoined:
		var p domain.PlayerJoinedPayload
		if err := decodeData(env, &p); err != nil {
			return false, err
		}
		if _, ok := v.index[p.Player.ID]; ok {
			return false, nil
		}
		v.addLocked(PlayerState{ID: p.Player.ID, Name: p.Player.Name, Score: p.Player.Score, JoinedAt: p.Player.JoinedAt})

	case domain.EventQuestionAsked:
		var p domain.QuestionAskedPayload
		if err := decodeData(env, &p); err != nil {
			return false, err
		}
		q := p.Question
		v.question = &q
		v.status = domain.RoomInProgress
		v.answering = true
		v.clearAnswersLocked()

	case domain.EventPlayerAnswered:
		var p domain.PlayerAnsweredPayload
		if err := decodeData(env, &p); err != nil {
			return false, err
		}
		i, ok := v.index[p.PlayerID]
		if !ok {
			return false, nil
		}
		answer := p.Answer.Normalize()
		v.players[i].Answer = &answer

	case domain.EventQuestionGraded:
		var p domain.QuestionGradedPayload
		if err := decodeData(env, &p); err != nil {
			return false, err
		}
		for _, r := range p.Results {
			i, ok := v.index[r.PlayerID]
			if !ok {
				i = v.addLocked(PlayerState{ID: r.PlayerID, Name: r.PlayerName})
			}
			correct := r.IsCorrect
			v.players[i].Answer = r.Answer
			v.players[i].Correct = &correct
			v.players[i].Score = r.NewScore
		}
		v.answering = false

	case domain.EventScoreUpdated:
		var p domain.ScoreUpdatedPayload
		if err := decodeData(env, &p); err != nil {
			return false, err
		}
		i, ok := v.index[p.PlayerID]
		if !ok {
			return false, nil
		}
		v.players[i].Score = p.NewScore

	case domain.EventQuestionReset:
		v.question = nil
		v.status = domain.RoomWaiting
		v.answering = false
		v.clearAnswersLocked()

	default:
		return false, nil
	}
	return true, nil
}

func decodeData(env envelope, dst any) error {
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", env.Event, err)
	}
	return nil
}

func (v *View) addLocked(p PlayerState) int {
	v.index[p.ID] = len(v.players)
	v.players = append(v.players, p)
	return len(v.players) - 1
}

func (v *View) clearAnswersLocked() {
	for i := range v.players {
		v.players[i].Answer = nil
		v.players[i].Correct = nil
	}
}

func (v *View) RoomID() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.roomID
}

func (v *View) Code() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.code
}

func (v *View) Status() domain.RoomStatus {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.status
}

// Question returns a copy of the current question, or nil.
func (v *View) Question() *domain.Question {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.question == nil {
		return nil
	}
	q := *v.question
	return &q
}

// Answering reports whether the current question is still open for answers.
func (v *View) Answering() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.answering
}

// Players returns the scoreboard in join order.
func (v *View) Players() []PlayerState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]PlayerState, len(v.players))
	copy(out, v.players)
	return out
}
