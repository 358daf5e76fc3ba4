package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"live-quiz-service/internal/domain"
)

// maxCreateAttempts bounds retries when a freshly allocated code collides at insert.
const maxCreateAttempts = 3

// RoomRepository abstracts how rooms are stored (in-memory, Postgres, etc).
type RoomRepository interface {
	CodeChecker
	Create(ctx context.Context, room domain.Room) error
	GetByID(ctx context.Context, roomID string) (domain.Room, error)
	GetByCode(ctx context.Context, code string) (domain.Room, error)
	// SetQuestion replaces the current question (nil clears it) and the status.
	SetQuestion(ctx context.Context, roomID string, q *domain.Question, status domain.RoomStatus, at time.Time) (domain.Room, error)
	// MarkQuestionGraded stamps the current question as graded. It returns
	// domain.ErrGradingUnavailable when questionID is no longer current or was
	// already graded.
	MarkQuestionGraded(ctx context.Context, roomID, questionID string, at time.Time) error
	// ReopenGrading undoes MarkQuestionGraded when questionID is still current.
	ReopenGrading(ctx context.Context, roomID, questionID string) error
}

// PlayerRepository abstracts how players are stored.
type PlayerRepository interface {
	Create(ctx context.Context, player domain.Player) error
	Get(ctx context.Context, playerID string) (domain.Player, error)
	// ListByRoom returns the room's players in join order.
	ListByRoom(ctx context.Context, roomID string) ([]domain.Player, error)
	SetAnswer(ctx context.Context, playerID, answer string, at time.Time) (domain.Player, error)
	ClearAnswers(ctx context.Context, roomID string, at time.Time) error
	// AwardPoints adds delta to every listed player atomically and returns them
	// in the same order. Scores stay within [0, domain.MaxScore].
	AwardPoints(ctx context.Context, playerIDs []string, delta int, at time.Time) ([]domain.Player, error)
	// SetScore overwrites the score and returns the score it replaced.
	SetScore(ctx context.Context, playerID string, score int, at time.Time) (int, domain.Player, error)
}

// Publisher delivers events to the subscribers of a topic. Delivery is
// best effort.
type Publisher interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
}

// Recorder receives operational counters. See internal/metrics.
type Recorder interface {
	RoomCreated()
	PlayerJoined()
	QuestionAsked(kind domain.QuestionType)
	AnswerSubmitted()
	QuestionGraded(outcome string)
	EventPublished(event string, err error)
}

// Settings tune scoring and broadcasting.
type Settings struct {
	PointsPerCorrect       int
	BroadcastCorrectAnswer bool
}

// Option customises a QuizService.
type Option func(*QuizService)

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *QuizService) { s.logger = logger }
}

func WithRecorder(r Recorder) Option {
	return func(s *QuizService) { s.metrics = r }
}

func WithSettings(settings Settings) Option {
	return func(s *QuizService) { s.settings = settings }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

func WithCodeAllocator(codes *CodeAllocator) Option {
	return func(s *QuizService) { s.codes = codes }
}

// QuizService contains the room, player and question use cases.
type QuizService struct {
	rooms     RoomRepository
	players   PlayerRepository
	publisher Publisher
	codes     *CodeAllocator
	settings  Settings
	logger    *zap.SugaredLogger
	metrics   Recorder
	now       func() time.Time
}

func NewQuizService(rooms RoomRepository, players PlayerRepository, publisher Publisher, opts ...Option) *QuizService {
	s := &QuizService{
		rooms:     rooms,
		players:   players,
		publisher: publisher,
		settings:  Settings{PointsPerCorrect: DefaultPointsPerCorrect},
		logger:    zap.NewNop().Sugar(),
		metrics:   nopRecorder{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.codes == nil {
		s.codes = NewCodeAllocator(rooms)
	}
	if s.settings.PointsPerCorrect <= 0 {
		s.settings.PointsPerCorrect = DefaultPointsPerCorrect
	}
	return s
}

// CreateRoom opens a new room in the waiting state.
func (s *QuizService) CreateRoom(ctx context.Context) (domain.Room, error) {
	for attempt := 1; ; attempt++ {
		code, err := s.codes.Generate(ctx)
		if err != nil {
			return domain.Room{}, err
		}
		now := s.now()
		room := domain.Room{
			ID:        uuid.NewString(),
			Code:      code,
			Status:    domain.RoomWaiting,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err = s.rooms.Create(ctx, room)
		if errors.Is(err, domain.ErrRoomCodeTaken) && attempt < maxCreateAttempts {
			s.logger.Debugw("room code collided, retrying", "code", code, "attempt", attempt)
			continue
		}
		if err != nil {
			return domain.Room{}, fmt.Errorf("create room: %w", err)
		}
		s.metrics.RoomCreated()
		s.logger.Infow("room created", "room_id", room.ID, "code", room.Code)
		return room, nil
	}
}

// GetRoom looks a room up by its code, case-insensitively, with its players.
func (s *QuizService) GetRoom(ctx context.Context, code string) (domain.Room, []domain.Player, error) {
	room, err := s.rooms.GetByCode(ctx, NormalizeCode(code))
	if err != nil {
		return domain.Room{}, nil, err
	}
	players, err := s.players.ListByRoom(ctx, room.ID)
	if err != nil {
		return domain.Room{}, nil, err
	}
	return room, players, nil
}

// Join registers a new player in the room identified by code.
func (s *QuizService) Join(ctx context.Context, code, name string) (domain.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Player{}, domain.Invalid("name", "is required")
	}
	if utf8.RuneCountInString(name) > domain.MaxPlayerNameLength {
		return domain.Player{}, domain.Invalid("name", fmt.Sprintf("must be at most %d characters", domain.MaxPlayerNameLength))
	}

	room, err := s.rooms.GetByCode(ctx, NormalizeCode(code))
	if err != nil {
		return domain.Player{}, err
	}

	now := s.now()
	player := domain.Player{
		ID:        uuid.NewString(),
		RoomID:    room.ID,
		Name:      name,
		Score:     0,
		JoinedAt:  now,
		UpdatedAt: now,
	}
	if err := s.players.Create(ctx, player); err != nil {
		return domain.Player{}, fmt.Errorf("create player: %w", err)
	}

	s.metrics.PlayerJoined()
	s.publish(ctx, domain.NewPlayerJoined(player))
	return player, nil
}

// GetRoomByID looks a room up by its id.
func (s *QuizService) GetRoomByID(ctx context.Context, roomID string) (domain.Room, error) {
	return s.rooms.GetByID(ctx, roomID)
}

// ListPlayers returns the players of a room in join order.
func (s *QuizService) ListPlayers(ctx context.Context, roomID string) ([]domain.Player, error) {
	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		return nil, err
	}
	return s.players.ListByRoom(ctx, roomID)
}

func (s *QuizService) GetPlayer(ctx context.Context, playerID string) (domain.Player, error) {
	return s.players.Get(ctx, playerID)
}

// SubmitAnswer records the player's answer, replacing any earlier one. It does
// not check that a question is open.
func (s *QuizService) SubmitAnswer(ctx context.Context, playerID string, answer domain.Scalar) (domain.Player, error) {
	if answer.IsNull() || strings.TrimSpace(answer.Normalize()) == "" {
		return domain.Player{}, domain.Invalid("answer", "is required")
	}

	player, err := s.players.SetAnswer(ctx, playerID, answer.Normalize(), s.now())
	if err != nil {
		return domain.Player{}, err
	}

	s.metrics.AnswerSubmitted()
	s.publish(ctx, domain.NewPlayerAnswered(player, answer))
	return player, nil
}

// UpdateScore overwrites a player's score, as a host override.
func (s *QuizService) UpdateScore(ctx context.Context, playerID string, score int) (domain.Player, error) {
	if score < 0 {
		return domain.Player{}, domain.Invalid("score", "must be at least 0")
	}
	if score > domain.MaxScore {
		return domain.Player{}, domain.Invalid("score", fmt.Sprintf("must be at most %d", domain.MaxScore))
	}

	oldScore, player, err := s.players.SetScore(ctx, playerID, score, s.now())
	if err != nil {
		return domain.Player{}, err
	}

	s.publish(ctx, domain.NewScoreUpdated(player, oldScore))
	return player, nil
}

// AskQuestion replaces the room's current question, moves the room to
// in_progress and clears every pending answer. Ungraded answers to the
// previous question are discarded.
func (s *QuizService) AskQuestion(ctx context.Context, roomID string, kind domain.QuestionType, correct domain.Scalar) (domain.Question, error) {
	if !kind.Valid() {
		return domain.Question{}, domain.Invalid("type", "must be one of true-false, multiple-choice, text-input")
	}

	now := s.now()
	question := domain.Question{
		ID:            uuid.NewString(),
		Type:          kind,
		CorrectAnswer: correct,
		AskedAt:       now,
	}
	if _, err := s.rooms.SetQuestion(ctx, roomID, &question, domain.RoomInProgress, now); err != nil {
		return domain.Question{}, err
	}
	if err := s.players.ClearAnswers(ctx, roomID, now); err != nil {
		return domain.Question{}, fmt.Errorf("clear answers: %w", err)
	}

	s.metrics.QuestionAsked(kind)
	broadcast := question
	if !s.settings.BroadcastCorrectAnswer {
		broadcast = question.WithoutAnswer()
	}
	s.publish(ctx, domain.NewQuestionAsked(roomID, broadcast))
	return question, nil
}

// GradeQuestion compares every player's answer with the correct answer and
// awards points to the correct ones. A question can be graded once; when
// awarding fails no points are kept and the question can be graded again.
func (s *QuizService) GradeQuestion(ctx context.Context, roomID string) ([]domain.GradeResult, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.CurrentQuestion.Gradable() {
		s.metrics.QuestionGraded("unavailable")
		return nil, domain.ErrGradingUnavailable
	}
	question := *room.CurrentQuestion

	if err := s.rooms.MarkQuestionGraded(ctx, roomID, question.ID, s.now()); err != nil {
		if errors.Is(err, domain.ErrGradingUnavailable) {
			s.metrics.QuestionGraded("unavailable")
		}
		return nil, err
	}

	results, err := s.award(ctx, roomID, question)
	if err != nil {
		if rerr := s.rooms.ReopenGrading(context.WithoutCancel(ctx), roomID, question.ID); rerr != nil {
			s.logger.Errorw("reopen grading failed", "room_id", roomID, "question_id", question.ID, "error", rerr)
		}
		s.metrics.QuestionGraded("failed")
		return nil, err
	}

	s.metrics.QuestionGraded("graded")
	s.logger.Infow("question graded", "room_id", roomID, "question_id", question.ID, "players", len(results))
	s.publish(ctx, domain.NewQuestionGraded(roomID, results))
	return results, nil
}

func (s *QuizService) award(ctx context.Context, roomID string, question domain.Question) ([]domain.GradeResult, error) {
	players, err := s.players.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	results := make([]domain.GradeResult, 0, len(players))
	var winners []string
	for _, player := range players {
		result, correct := gradeResult(question, player)
		if correct {
			winners = append(winners, player.ID)
		}
		results = append(results, result)
	}
	if len(winners) == 0 {
		return results, nil
	}

	updated, err := s.players.AwardPoints(ctx, winners, s.settings.PointsPerCorrect, s.now())
	if err != nil {
		return nil, fmt.Errorf("award points: %w", err)
	}
	scores := make(map[string]int, len(updated))
	for _, p := range updated {
		scores[p.ID] = p.Score
	}
	for i := range results {
		if score, ok := scores[results[i].PlayerID]; ok {
			results[i].NewScore = score
		}
	}
	return results, nil
}

// ResetQuestion clears the current question and returns the room to waiting.
func (s *QuizService) ResetQuestion(ctx context.Context, roomID string) (domain.Room, error) {
	now := s.now()
	room, err := s.rooms.SetQuestion(ctx, roomID, nil, domain.RoomWaiting, now)
	if err != nil {
		return domain.Room{}, err
	}
	if err := s.players.ClearAnswers(ctx, roomID, now); err != nil {
		return domain.Room{}, fmt.Errorf("clear answers: %w", err)
	}

	s.publish(ctx, domain.NewQuestionReset(roomID))
	return room, nil
}

func (s *QuizService) Settings() Settings {
	return s.settings
}

// publish is fire-and-forget: failures are logged, never returned.
func (s *QuizService) publish(ctx context.Context, event domain.Event) {
	err := s.publisher.Publish(ctx, domain.RoomTopic(event.RoomID), event)
	s.metrics.EventPublished(event.Name, err)
	if err != nil {
		s.logger.Warnw("event publish failed", "event", event.Name, "room_id", event.RoomID, "error", err)
	}
}

// NormalizeCode upper-cases a user-entered room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type nopRecorder struct{}

func (nopRecorder) RoomCreated()                      {}
func (nopRecorder) PlayerJoined()                     {}
func (nopRecorder) QuestionAsked(domain.QuestionType) {}
func (nopRecorder) AnswerSubmitted()                  {}
func (nopRecorder) QuestionGraded(string)             {}
func (nopRecorder) EventPublished(string, error)      {}
