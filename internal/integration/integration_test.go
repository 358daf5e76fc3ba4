package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
	pgmigrations "live-quiz-service/internal/infra/postgres/migrations"
	infraredis "live-quiz-service/internal/infra/redis"
)

type stack struct {
	service *app.QuizService
	rooms   app.RoomRepository
	players app.PlayerRepository
	hub     *memory.Broadcaster
}

func TestQuizRoundEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateSchema(t, ctx, pgURL)
	s := newStack(t, ctx, pgURL, redisURL)

	room, err := s.service.CreateRoom(ctx)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	events, cancel := s.hub.Subscribe(domain.RoomTopic(room.ID))
	defer cancel()

	alice, err := s.service.Join(ctx, strings.ToLower(room.Code), "Alice")
	if err != nil {
		t.Fatalf("join alice: %v", err)
	}
	bob, err := s.service.Join(ctx, room.Code, "Bob")
	if err != nil {
		t.Fatalf("join bob: %v", err)
	}
	expectEvent(t, events, domain.EventPlayerJoined)
	expectEvent(t, events, domain.EventPlayerJoined)

	if _, err := s.service.AskQuestion(ctx, room.ID, domain.QuestionTrueFalse, domain.BoolScalar(true)); err != nil {
		t.Fatalf("ask: %v", err)
	}
	asked := expectEvent(t, events, domain.EventQuestionAsked)
	if strings.Contains(string(asked), `"correctAnswer":true`) {
		t.Fatalf("correct answer leaked: %s", asked)
	}

	if _, err := s.service.SubmitAnswer(ctx, alice.ID, domain.BoolScalar(true)); err != nil {
		t.Fatalf("alice answer: %v", err)
	}
	if _, err := s.service.SubmitAnswer(ctx, bob.ID, domain.StringScalar("false")); err != nil {
		t.Fatalf("bob answer: %v", err)
	}
	expectEvent(t, events, domain.EventPlayerAnswered)
	expectEvent(t, events, domain.EventPlayerAnswered)

	results, err := s.service.GradeQuestion(ctx, room.ID)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %+v", results)
	}
	if results[0].PlayerName != "Alice" || !results[0].IsCorrect || results[0].NewScore != 100 {
		t.Fatalf("unexpected alice result %+v", results[0])
	}
	if results[1].PlayerName != "Bob" || results[1].IsCorrect || results[1].NewScore != 0 {
		t.Fatalf("unexpected bob result %+v", results[1])
	}
	expectEvent(t, events, domain.EventQuestionGraded)

	if _, err := s.service.GradeQuestion(ctx, room.ID); !errors.Is(err, domain.ErrGradingUnavailable) {
		t.Fatalf("expected second grading rejected, got %v", err)
	}

	updated, err := s.service.UpdateScore(ctx, bob.ID, 250)
	if err != nil {
		t.Fatalf("update score: %v", err)
	}
	if updated.Score != 250 {
		t.Fatalf("expected 250, got %d", updated.Score)
	}
	scored := expectEvent(t, events, domain.EventScoreUpdated)
	if !strings.Contains(string(scored), `"oldScore":0`) || !strings.Contains(string(scored), `"newScore":250`) {
		t.Fatalf("unexpected score event %s", scored)
	}

	got, players, err := s.service.GetRoom(ctx, room.Code)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if got.Status != domain.RoomInProgress || got.CurrentQuestion == nil || got.CurrentQuestion.GradedAt == nil {
		t.Fatalf("expected graded question persisted, got %+v", got)
	}
	if len(players) != 2 || players[0].Score != 100 || players[1].Score != 250 {
		t.Fatalf("unexpected players %+v", players)
	}

	// asking again clears answers and reopens grading
	if _, err := s.service.AskQuestion(ctx, room.ID, domain.QuestionMultipleChoice, domain.StringScalar("B")); err != nil {
		t.Fatalf("ask 2: %v", err)
	}
	reloaded, err := s.players.Get(ctx, alice.ID)
	if err != nil {
		t.Fatalf("get alice: %v", err)
	}
	if reloaded.CurrentAnswer != nil {
		t.Fatalf("expected answer cleared, got %q", *reloaded.CurrentAnswer)
	}
}

func TestPostgresRepositoriesEdgeCases(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	migrateSchema(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	rooms := postgres.NewRoomRepository(pool)
	players := postgres.NewPlayerRepository(pool)

	now := time.Now().UTC().Truncate(time.Millisecond)
	first := domain.Room{ID: "8f4b7f0e-9d55-4c55-9f07-0d6f3b1f1a01", Code: "SAMECODE", Status: domain.RoomWaiting, CreatedAt: now, UpdatedAt: now}
	if err := rooms.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := first
	dup.ID = "8f4b7f0e-9d55-4c55-9f07-0d6f3b1f1a02"
	if err := rooms.Create(ctx, dup); !errors.Is(err, domain.ErrRoomCodeTaken) {
		t.Fatalf("expected code taken, got %v", err)
	}
	if exists, err := rooms.CodeExists(ctx, "SAMECODE"); err != nil || !exists {
		t.Fatalf("expected code to exist, got %v %v", exists, err)
	}

	if _, err := rooms.GetByID(ctx, "not-a-uuid"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected not found for malformed id, got %v", err)
	}
	if _, err := players.Get(ctx, "8f4b7f0e-9d55-4c55-9f07-0d6f3b1f1a99"); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected player not found, got %v", err)
	}

	q := &domain.Question{ID: "q-1", Type: domain.QuestionTextInput, CorrectAnswer: domain.StringScalar("Paris"), AskedAt: now}
	if _, err := rooms.SetQuestion(ctx, first.ID, q, domain.RoomInProgress, now); err != nil {
		t.Fatalf("set question: %v", err)
	}
	if err := rooms.MarkQuestionGraded(ctx, first.ID, "q-other", now); !errors.Is(err, domain.ErrGradingUnavailable) {
		t.Fatalf("expected stale question rejected, got %v", err)
	}
	if err := rooms.MarkQuestionGraded(ctx, first.ID, "q-1", now); err != nil {
		t.Fatalf("mark graded: %v", err)
	}
	if err := rooms.MarkQuestionGraded(ctx, first.ID, "q-1", now); !errors.Is(err, domain.ErrGradingUnavailable) {
		t.Fatalf("expected regrade rejected, got %v", err)
	}
	if err := rooms.ReopenGrading(ctx, first.ID, "q-1"); err != nil {
		t.Fatalf("reopen grading: %v", err)
	}
	if err := rooms.MarkQuestionGraded(ctx, first.ID, "q-1", now); err != nil {
		t.Fatalf("mark after reopen: %v", err)
	}
	stored, err := rooms.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if answer, _ := stored.CurrentQuestion.CorrectAnswer.Text(); answer != "Paris" || stored.CurrentQuestion.GradedAt == nil {
		t.Fatalf("unexpected stored question %+v", stored.CurrentQuestion)
	}

	player := domain.Player{ID: "8f4b7f0e-9d55-4c55-9f07-0d6f3b1f1b01", RoomID: first.ID, Name: "Zoe", JoinedAt: now, UpdatedAt: now}
	if err := players.Create(ctx, player); err != nil {
		t.Fatalf("create player: %v", err)
	}
	if _, err := players.AwardPoints(ctx, []string{player.ID, "8f4b7f0e-9d55-4c55-9f07-0d6f3b1f1bff"}, 100, now); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected award with missing player rejected, got %v", err)
	}
	if p, _ := players.Get(ctx, player.ID); p.Score != 0 {
		t.Fatalf("expected rejected award to change nothing, got %d", p.Score)
	}
	if _, err := players.AwardPoints(ctx, []string{player.ID}, 100, now); err != nil {
		t.Fatalf("award points: %v", err)
	}
	old, p, err := players.SetScore(ctx, player.ID, 7, now)
	if err != nil {
		t.Fatalf("set score: %v", err)
	}
	if old != 100 || p.Score != 7 {
		t.Fatalf("expected 100 -> 7, got %d -> %d", old, p.Score)
	}
}

func newStack(t *testing.T, ctx context.Context, pgURL, redisURL string) stack {
	t.Helper()
	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	hub := memory.NewBroadcaster(32)
	relay := infraredis.NewRelay(redisClient, hub, nil)
	if err := relay.Start(ctx); err != nil {
		t.Fatalf("start relay: %v", err)
	}
	t.Cleanup(func() { _ = relay.Close() })

	var rooms app.RoomRepository = postgres.NewRoomRepository(pool)
	rooms = infraredis.NewCodeCache(redisClient, rooms, 5*time.Minute)
	rooms = memory.NewCodeCache(rooms, time.Minute)
	players := postgres.NewPlayerRepository(pool)

	service := app.NewQuizService(rooms, players, infraredis.NewPublisher(redisClient))
	return stack{service: service, rooms: rooms, players: players, hub: hub}
}

func expectEvent(t *testing.T, events <-chan []byte, name string) []byte {
	t.Helper()
	select {
	case payload := <-events:
		var env struct {
			Event string `json:"event"`
		}
		if err := json.Unmarshal(payload, &env); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if env.Event != name {
			t.Fatalf("expected %s, got %s", name, payload)
		}
		return payload
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", name)
	}
	return nil
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateSchema(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
