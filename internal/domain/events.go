package domain

import "time"

// Event names broadcast on a room topic.
const (
	EventPlayerJoined   = "PlayerJoinedEvent"
	EventQuestionAsked  = "QuestionAskedEvent"
	EventPlayerAnswered = "PlayerAnsweredEvent"
	EventQuestionGraded = "QuestionGradedEvent"
	EventScoreUpdated   = "ScoreUpdatedEvent"
	EventQuestionReset  = "QuestionResetEvent"
)

// RoomTopic is the broadcast channel name for a room.
func RoomTopic(roomID string) string {
	return "room." + roomID
}

// Event is a state change published to a room topic.
type Event struct {
	Name   string `json:"event"`
	RoomID string `json:"room_id"`
	Data   any    `json:"data"`
}

// PlayerSummary is the public view of a player carried in events.
type PlayerSummary struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Score    int       `json:"score"`
	JoinedAt time.Time `json:"joined_at"`
}

type PlayerJoinedPayload struct {
	Player PlayerSummary `json:"player"`
}

type QuestionAskedPayload struct {
	Question Question `json:"question"`
}

type PlayerAnsweredPayload struct {
	PlayerID string `json:"player_id"`
	Answer   Scalar `json:"answer"`
}

type QuestionGradedPayload struct {
	Results []GradeResult `json:"results"`
}

type ScoreUpdatedPayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	OldScore   int    `json:"oldScore"`
	NewScore   int    `json:"newScore"`
}

type QuestionResetPayload struct{}

func NewPlayerJoined(p Player) Event {
	return Event{
		Name:   EventPlayerJoined,
		RoomID: p.RoomID,
		Data: PlayerJoinedPayload{Player: PlayerSummary{
			ID:       p.ID,
			Name:     p.Name,
			Score:    p.Score,
			JoinedAt: p.JoinedAt,
		}},
	}
}

func NewQuestionAsked(roomID string, q Question) Event {
	return Event{Name: EventQuestionAsked, RoomID: roomID, Data: QuestionAskedPayload{Question: q}}
}

func NewPlayerAnswered(p Player, answer Scalar) Event {
	return Event{Name: EventPlayerAnswered, RoomID: p.RoomID, Data: PlayerAnsweredPayload{PlayerID: p.ID, Answer: answer}}
}

func NewQuestionGraded(roomID string, results []GradeResult) Event {
	return Event{Name: EventQuestionGraded, RoomID: roomID, Data: QuestionGradedPayload{Results: results}}
}

func NewScoreUpdated(p Player, oldScore int) Event {
	return Event{
		Name:   EventScoreUpdated,
		RoomID: p.RoomID,
		Data: ScoreUpdatedPayload{
			PlayerID:   p.ID,
			PlayerName: p.Name,
			OldScore:   oldScore,
			NewScore:   p.Score,
		},
	}
}

func NewQuestionReset(roomID string) Event {
	return Event{Name: EventQuestionReset, RoomID: roomID, Data: QuestionResetPayload{}}
}
