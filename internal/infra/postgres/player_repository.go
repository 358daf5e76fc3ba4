package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"live-quiz-service/internal/domain"
)

const playerColumns = `id::text, room_id::text, name, score, current_answer, joined_at, updated_at`

// PlayerRepository stores players in the players table.
type PlayerRepository struct {
	pool *pgxpool.Pool
}

func NewPlayerRepository(pool *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{pool: pool}
}

func (r *PlayerRepository) Create(ctx context.Context, player domain.Player) error {
	if !validID(player.RoomID) {
		return domain.ErrRoomNotFound
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO players (id, room_id, name, score, current_answer, joined_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		player.ID, player.RoomID, player.Name, player.Score, player.CurrentAnswer, player.JoinedAt, player.UpdatedAt)
	if pgErrorCode(err) == foreignKeyViolation {
		return domain.ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

func (r *PlayerRepository) Get(ctx context.Context, playerID string) (domain.Player, error) {
	if !validID(playerID) {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, playerID)
	return scanPlayer(row)
}

// ListByRoom returns players in join order.
func (r *PlayerRepository) ListByRoom(ctx context.Context, roomID string) ([]domain.Player, error) {
	if !validID(roomID) {
		return []domain.Player{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+playerColumns+`
		FROM players
		WHERE room_id = $1
		ORDER BY joined_at, id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	players := []domain.Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	return players, nil
}

func (r *PlayerRepository) SetAnswer(ctx context.Context, playerID, answer string, at time.Time) (domain.Player, error) {
	if !validID(playerID) {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE players SET current_answer = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+playerColumns, playerID, answer, at)
	return scanPlayer(row)
}

func (r *PlayerRepository) ClearAnswers(ctx context.Context, roomID string, at time.Time) error {
	if !validID(roomID) {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE players SET current_answer = NULL, updated_at = $2
		WHERE room_id = $1 AND current_answer IS NOT NULL`, roomID, at)
	if err != nil {
		return fmt.Errorf("clear answers: %w", err)
	}
	return nil
}

// AwardPoints increments every listed score in one transaction. Scores are
// updated in place so concurrent awards never overwrite each other. When a
// player is missing nothing is changed.
func (r *PlayerRepository) AwardPoints(ctx context.Context, playerIDs []string, delta int, at time.Time) ([]domain.Player, error) {
	if len(playerIDs) == 0 {
		return []domain.Player{}, nil
	}
	for _, id := range playerIDs {
		if !validID(id) {
			return nil, domain.ErrPlayerNotFound
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		UPDATE players
		SET score = LEAST(GREATEST(score::bigint + $2, 0), $4)::integer, updated_at = $3
		WHERE id = ANY($1::uuid[])
		RETURNING `+playerColumns, playerIDs, delta, at, domain.MaxScore)
	if err != nil {
		return nil, fmt.Errorf("award points: %w", err)
	}
	byID := make(map[string]domain.Player, len(playerIDs))
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		byID[p.ID] = p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("award points: %w", err)
	}

	updated := make([]domain.Player, 0, len(playerIDs))
	for _, id := range playerIDs {
		p, ok := byID[id]
		if !ok {
			return nil, domain.ErrPlayerNotFound
		}
		updated = append(updated, p)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

func (r *PlayerRepository) SetScore(ctx context.Context, playerID string, score int, at time.Time) (int, domain.Player, error) {
	if !validID(playerID) {
		return 0, domain.Player{}, domain.ErrPlayerNotFound
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, domain.Player{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var old int
	err = tx.QueryRow(ctx, `SELECT score FROM players WHERE id = $1 FOR UPDATE`, playerID).Scan(&old)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.Player{}, domain.ErrPlayerNotFound
	}
	if err != nil {
		return 0, domain.Player{}, fmt.Errorf("lock player: %w", err)
	}

	row := tx.QueryRow(ctx, `
		UPDATE players SET score = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+playerColumns, playerID, score, at)
	player, err := scanPlayer(row)
	if err != nil {
		return 0, domain.Player{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, domain.Player{}, fmt.Errorf("commit: %w", err)
	}
	return old, player, nil
}

func scanPlayer(row pgx.Row) (domain.Player, error) {
	var p domain.Player
	err := row.Scan(&p.ID, &p.RoomID, &p.Name, &p.Score, &p.CurrentAnswer, &p.JoinedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	if err != nil {
		return domain.Player{}, fmt.Errorf("scan player: %w", err)
	}
	return p, nil
}
