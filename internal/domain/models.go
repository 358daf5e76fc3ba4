package domain

import "time"

// RoomCodeLength is the fixed length of a room code.
const RoomCodeLength = 8

// MaxPlayerNameLength bounds player display names, in characters.
const MaxPlayerNameLength = 100

// MaxScore is the largest score a player can hold; stores keep it in a
// 32-bit integer column.
const MaxScore = 1<<31 - 1

// RoomStatus is the lifecycle state of a room.
type RoomStatus string

const (
	RoomWaiting    RoomStatus = "waiting"
	RoomInProgress RoomStatus = "in_progress"
	RoomFinished   RoomStatus = "finished"
)

// QuestionType selects how answers are compared during grading.
type QuestionType string

const (
	QuestionTrueFalse      QuestionType = "true-false"
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionTextInput      QuestionType = "text-input"
)

// Valid reports whether t is one of the supported question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTrueFalse, QuestionMultipleChoice, QuestionTextInput:
		return true
	}
	return false
}

// Question is the single active prompt of a room.
type Question struct {
	ID            string       `json:"id"`
	Type          QuestionType `json:"type"`
	CorrectAnswer Scalar       `json:"correctAnswer"`
	AskedAt       time.Time    `json:"asked_at"`
	GradedAt      *time.Time   `json:"graded_at,omitempty"`
}

// Gradable reports whether the question can be graded right now.
func (q *Question) Gradable() bool {
	return q != nil && !q.CorrectAnswer.IsNull() && q.GradedAt == nil
}

// WithoutAnswer returns a copy safe to broadcast to players.
func (q Question) WithoutAnswer() Question {
	q.CorrectAnswer = Scalar{}
	return q
}

// Room is one live quiz session.
type Room struct {
	ID              string     `json:"id"`
	Code            string     `json:"room_code"`
	Status          RoomStatus `json:"status"`
	CurrentQuestion *Question  `json:"current_question"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Player is a participant bound to exactly one room.
type Player struct {
	ID            string    `json:"id"`
	RoomID        string    `json:"room_id"`
	Name          string    `json:"name"`
	Score         int       `json:"score"`
	CurrentAnswer *string   `json:"current_answer"`
	JoinedAt      time.Time `json:"joined_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// GradeResult is the per-player outcome of grading a question.
type GradeResult struct {
	PlayerID   string  `json:"player_id"`
	PlayerName string  `json:"player_name"`
	Answer     *string `json:"answer"`
	IsCorrect  bool    `json:"is_correct"`
	NewScore   int     `json:"new_score"`
}
