package memory

import (
	"context"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// RoomRepository is an in-memory implementation of app.RoomRepository.
type RoomRepository struct {
	mu     sync.RWMutex
	rooms  map[string]domain.Room
	byCode map[string]string
}

func NewRoomRepository() *RoomRepository {
	return &RoomRepository{
		rooms:  make(map[string]domain.Room),
		byCode: make(map[string]string),
	}
}

func (r *RoomRepository) Create(_ context.Context, room domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byCode[room.Code]; ok {
		return domain.ErrRoomCodeTaken
	}
	r.rooms[room.ID] = cloneRoom(room)
	r.byCode[room.Code] = room.ID
	return nil
}

func (r *RoomRepository) GetByID(_ context.Context, roomID string) (domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return cloneRoom(room), nil
}

func (r *RoomRepository) GetByCode(_ context.Context, code string) (domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byCode[code]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return cloneRoom(r.rooms[id]), nil
}

func (r *RoomRepository) CodeExists(_ context.Context, code string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byCode[code]
	return ok, nil
}

func (r *RoomRepository) SetQuestion(_ context.Context, roomID string, q *domain.Question, status domain.RoomStatus, at time.Time) (domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	room.CurrentQuestion = cloneQuestion(q)
	room.Status = status
	room.UpdatedAt = at
	r.rooms[roomID] = room
	return cloneRoom(room), nil
}

func (r *RoomRepository) MarkQuestionGraded(_ context.Context, roomID, questionID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	q := room.CurrentQuestion
	if q == nil || q.ID != questionID || q.GradedAt != nil {
		return domain.ErrGradingUnavailable
	}
	graded := *q
	graded.GradedAt = &at
	room.CurrentQuestion = &graded
	room.UpdatedAt = at
	r.rooms[roomID] = room
	return nil
}

// ReopenGrading clears the graded stamp of questionID if it is still the
// current question.
func (r *RoomRepository) ReopenGrading(_ context.Context, roomID, questionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	q := room.CurrentQuestion
	if q == nil || q.ID != questionID || q.GradedAt == nil {
		return nil
	}
	reopened := *q
	reopened.GradedAt = nil
	room.CurrentQuestion = &reopened
	r.rooms[roomID] = room
	return nil
}

// cloneRoom keeps callers from mutating the stored question through a pointer.
func cloneRoom(room domain.Room) domain.Room {
	room.CurrentQuestion = cloneQuestion(room.CurrentQuestion)
	return room
}

func cloneQuestion(q *domain.Question) *domain.Question {
	if q == nil {
		return nil
	}
	c := *q
	if q.GradedAt != nil {
		at := *q.GradedAt
		c.GradedAt = &at
	}
	return &c
}
