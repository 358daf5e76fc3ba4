package memory

import (
	"context"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// PlayerRepository is an in-memory implementation of app.PlayerRepository.
type PlayerRepository struct {
	mu      sync.RWMutex
	players map[string]*domain.Player
	// roster keeps player ids per room in join order.
	roster map[string][]string
}

func NewPlayerRepository() *PlayerRepository {
	return &PlayerRepository{
		players: make(map[string]*domain.Player),
		roster:  make(map[string][]string),
	}
}

func (r *PlayerRepository) Create(_ context.Context, player domain.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := clonePlayer(player)
	r.players[p.ID] = &p
	r.roster[p.RoomID] = append(r.roster[p.RoomID], p.ID)
	return nil
}

func (r *PlayerRepository) Get(_ context.Context, playerID string) (domain.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[playerID]
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	return clonePlayer(*p), nil
}

func (r *PlayerRepository) ListByRoom(_ context.Context, roomID string) ([]domain.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.roster[roomID]
	players := make([]domain.Player, 0, len(ids))
	for _, id := range ids {
		players = append(players, clonePlayer(*r.players[id]))
	}
	return players, nil
}

func (r *PlayerRepository) SetAnswer(_ context.Context, playerID, answer string, at time.Time) (domain.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[playerID]
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	p.CurrentAnswer = &answer
	p.UpdatedAt = at
	return clonePlayer(*p), nil
}

func (r *PlayerRepository) ClearAnswers(_ context.Context, roomID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.roster[roomID] {
		p := r.players[id]
		if p.CurrentAnswer != nil {
			p.CurrentAnswer = nil
			p.UpdatedAt = at
		}
	}
	return nil
}

// AwardPoints adds delta to every listed player, or to none of them when one
// is missing.
func (r *PlayerRepository) AwardPoints(_ context.Context, playerIDs []string, delta int, at time.Time) ([]domain.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range playerIDs {
		if _, ok := r.players[id]; !ok {
			return nil, domain.ErrPlayerNotFound
		}
	}

	updated := make([]domain.Player, 0, len(playerIDs))
	for _, id := range playerIDs {
		p := r.players[id]
		p.Score = clampScore(p.Score + delta)
		p.UpdatedAt = at
		updated = append(updated, clonePlayer(*p))
	}
	return updated, nil
}

func (r *PlayerRepository) SetScore(_ context.Context, playerID string, score int, at time.Time) (int, domain.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[playerID]
	if !ok {
		return 0, domain.Player{}, domain.ErrPlayerNotFound
	}
	old := p.Score
	p.Score = score
	p.UpdatedAt = at
	return old, clonePlayer(*p), nil
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > domain.MaxScore {
		return domain.MaxScore
	}
	return score
}

func clonePlayer(p domain.Player) domain.Player {
	if p.CurrentAnswer != nil {
		answer := *p.CurrentAnswer
		p.CurrentAnswer = &answer
	}
	return p
}
