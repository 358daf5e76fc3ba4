package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
)

func TestPlayerRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewPlayerRepository()
	now := time.Now()

	for _, p := range []domain.Player{
		{ID: "p1", RoomID: "room-1", Name: "Alice", JoinedAt: now},
		{ID: "p2", RoomID: "room-1", Name: "Bob", JoinedAt: now},
		{ID: "p3", RoomID: "room-2", Name: "Carol", JoinedAt: now},
	} {
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("create %s: %v", p.ID, err)
		}
	}

	players, err := repo.ListByRoom(ctx, "room-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(players) != 2 || players[0].Name != "Alice" || players[1].Name != "Bob" {
		t.Fatalf("expected Alice, Bob in join order, got %+v", players)
	}

	if _, err := repo.SetAnswer(ctx, "p1", "true", now); err != nil {
		t.Fatalf("set answer: %v", err)
	}
	if _, err := repo.SetAnswer(ctx, "p3", "B", now); err != nil {
		t.Fatalf("set answer: %v", err)
	}
	if err := repo.ClearAnswers(ctx, "room-1", now); err != nil {
		t.Fatalf("clear: %v", err)
	}
	p1, _ := repo.Get(ctx, "p1")
	p3, _ := repo.Get(ctx, "p3")
	if p1.CurrentAnswer != nil {
		t.Fatalf("expected p1 answer cleared, got %q", *p1.CurrentAnswer)
	}
	if p3.CurrentAnswer == nil || *p3.CurrentAnswer != "B" {
		t.Fatalf("expected other room untouched, got %+v", p3.CurrentAnswer)
	}

	awarded, err := repo.AwardPoints(ctx, []string{"p2"}, 100, now)
	if err != nil || len(awarded) != 1 || awarded[0].Score != 100 {
		t.Fatalf("expected score 100, got %+v err=%v", awarded, err)
	}
	old, updated, err := repo.SetScore(ctx, "p2", 250, now)
	if err != nil || old != 100 || updated.Score != 250 {
		t.Fatalf("expected 100 -> 250, got %d -> %d err=%v", old, updated.Score, err)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected player not found, got %v", err)
	}
}

func TestPlayerRepositoryAwardPointsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	repo := NewPlayerRepository()
	now := time.Now()
	for _, p := range []domain.Player{
		{ID: "p1", RoomID: "room-1", Name: "Alice", JoinedAt: now},
		{ID: "p2", RoomID: "room-1", Name: "Bob", Score: domain.MaxScore - 10, JoinedAt: now},
	} {
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("create %s: %v", p.ID, err)
		}
	}

	if _, err := repo.AwardPoints(ctx, []string{"p1", "missing"}, 100, now); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected player not found, got %v", err)
	}
	p1, _ := repo.Get(ctx, "p1")
	if p1.Score != 0 {
		t.Fatalf("expected no points awarded, got %d", p1.Score)
	}

	awarded, err := repo.AwardPoints(ctx, []string{"p1", "p2"}, 100, now)
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if awarded[0].Score != 100 || awarded[1].Score != domain.MaxScore {
		t.Fatalf("expected 100 and capped score, got %+v", awarded)
	}
}

func TestRoomRepositoryMarkGradedOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewRoomRepository()
	if err := repo.Create(ctx, sampleRoom()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, sampleRoom()); !errors.Is(err, domain.ErrRoomCodeTaken) {
		t.Fatalf("expected duplicate code rejected, got %v", err)
	}

	q := &domain.Question{ID: "q1", Type: domain.QuestionMultipleChoice, CorrectAnswer: domain.StringScalar("B")}
	if _, err := repo.SetQuestion(ctx, "room-1", q, domain.RoomInProgress, time.Now()); err != nil {
		t.Fatalf("set question: %v", err)
	}

	if err := repo.MarkQuestionGraded(ctx, "room-1", "q1", time.Now()); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := repo.MarkQuestionGraded(ctx, "room-1", "q1", time.Now()); !errors.Is(err, domain.ErrGradingUnavailable) {
		t.Fatalf("expected second mark rejected, got %v", err)
	}
	if err := repo.MarkQuestionGraded(ctx, "room-1", "other", time.Now()); !errors.Is(err, domain.ErrGradingUnavailable) {
		t.Fatalf("expected stale question rejected, got %v", err)
	}

	if err := repo.ReopenGrading(ctx, "room-1", "q1"); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := repo.MarkQuestionGraded(ctx, "room-1", "q1", time.Now()); err != nil {
		t.Fatalf("mark after reopen: %v", err)
	}

	room, _ := repo.GetByID(ctx, "room-1")
	room.CurrentQuestion.Type = domain.QuestionTextInput
	again, _ := repo.GetByID(ctx, "room-1")
	if again.CurrentQuestion.Type != domain.QuestionMultipleChoice {
		t.Fatalf("stored question mutated through returned copy")
	}
}
