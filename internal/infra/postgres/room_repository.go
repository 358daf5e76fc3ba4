package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"live-quiz-service/internal/domain"
)

const roomColumns = `id::text, room_code, status, current_question, created_at, updated_at`

// RoomRepository stores rooms in the quiz_rooms table. The current question
// lives in a jsonb column.
type RoomRepository struct {
	pool *pgxpool.Pool
}

func NewRoomRepository(pool *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

func (r *RoomRepository) Create(ctx context.Context, room domain.Room) error {
	question, err := encodeQuestion(room.CurrentQuestion)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO quiz_rooms (id, room_code, status, current_question, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		room.ID, room.Code, string(room.Status), question, room.CreatedAt, room.UpdatedAt)
	if pgErrorCode(err) == uniqueViolation {
		return domain.ErrRoomCodeTaken
	}
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

func (r *RoomRepository) GetByID(ctx context.Context, roomID string) (domain.Room, error) {
	if !validID(roomID) {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM quiz_rooms WHERE id = $1`, roomID)
	return scanRoom(row)
}

func (r *RoomRepository) GetByCode(ctx context.Context, code string) (domain.Room, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM quiz_rooms WHERE room_code = $1`, code)
	return scanRoom(row)
}

func (r *RoomRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM quiz_rooms WHERE room_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check room code: %w", err)
	}
	return exists, nil
}

func (r *RoomRepository) SetQuestion(ctx context.Context, roomID string, q *domain.Question, status domain.RoomStatus, at time.Time) (domain.Room, error) {
	if !validID(roomID) {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	question, err := encodeQuestion(q)
	if err != nil {
		return domain.Room{}, err
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE quiz_rooms
		SET current_question = $2, status = $3, updated_at = $4
		WHERE id = $1
		RETURNING `+roomColumns,
		roomID, question, string(status), at)
	return scanRoom(row)
}

// MarkQuestionGraded stamps graded_at into the stored question, only when
// questionID is still current and has not been graded yet.
func (r *RoomRepository) MarkQuestionGraded(ctx context.Context, roomID, questionID string, at time.Time) error {
	if !validID(roomID) {
		return domain.ErrRoomNotFound
	}
	stamp, err := json.Marshal(at)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE quiz_rooms
		SET current_question = jsonb_set(current_question, '{graded_at}', $3::jsonb), updated_at = $4
		WHERE id = $1
		  AND current_question->>'id' = $2
		  AND current_question->>'graded_at' IS NULL`,
		roomID, questionID, string(stamp), at)
	if err != nil {
		return fmt.Errorf("mark question graded: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, roomID); err != nil {
		return err
	}
	return domain.ErrGradingUnavailable
}

// ReopenGrading removes graded_at from questionID if it is still current.
func (r *RoomRepository) ReopenGrading(ctx context.Context, roomID, questionID string) error {
	if !validID(roomID) {
		return domain.ErrRoomNotFound
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE quiz_rooms
		SET current_question = current_question - 'graded_at'
		WHERE id = $1 AND current_question->>'id' = $2`,
		roomID, questionID)
	if err != nil {
		return fmt.Errorf("reopen grading: %w", err)
	}
	return nil
}

func scanRoom(row pgx.Row) (domain.Room, error) {
	var (
		room     domain.Room
		status   string
		question []byte
	)
	err := row.Scan(&room.ID, &room.Code, &status, &question, &room.CreatedAt, &room.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("scan room: %w", err)
	}
	room.Status = domain.RoomStatus(status)
	if len(question) > 0 {
		var q domain.Question
		if err := json.Unmarshal(question, &q); err != nil {
			return domain.Room{}, fmt.Errorf("decode current question: %w", err)
		}
		room.CurrentQuestion = &q
	}
	return room, nil
}

// encodeQuestion returns nil for a missing question so the column is NULL.
func encodeQuestion(q *domain.Question) (interface{}, error) {
	if q == nil {
		return nil, nil
	}
	raw, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode question: %w", err)
	}
	return string(raw), nil
}
