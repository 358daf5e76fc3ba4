package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// Handler exposes QuizService over REST plus the room event stream.
type Handler struct {
	service  *app.QuizService
	events   Subscriber
	logger   *zap.SugaredLogger
	upgrader websocket.Upgrader
}

func NewHandler(service *app.QuizService, events Subscriber, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{
		service: service,
		events:  events,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type joinRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type answerRequest struct {
	Answer domain.Scalar `json:"answer"`
}

type scoreRequest struct {
	Score *int `json:"score" validate:"required,min=0,max=2147483647"`
}

type questionRequest struct {
	Type          string        `json:"type" validate:"required,oneof=true-false multiple-choice text-input"`
	CorrectAnswer domain.Scalar `json:"correctAnswer"`
}

type roomView struct {
	ID              string            `json:"id"`
	Code            string            `json:"room_code"`
	Status          domain.RoomStatus `json:"status"`
	CurrentQuestion *domain.Question  `json:"current_question"`
	CreatedAt       time.Time         `json:"created_at"`
}

type joinedPlayerView struct {
	ID       string    `json:"id"`
	RoomID   string    `json:"room_id"`
	Name     string    `json:"name"`
	Score    int       `json:"score"`
	JoinedAt time.Time `json:"joined_at"`
}

type playerDetailView struct {
	ID            string    `json:"id"`
	RoomID        string    `json:"room_id"`
	Name          string    `json:"name"`
	Score         int       `json:"score"`
	CurrentAnswer *string   `json:"current_answer"`
	JoinedAt      time.Time `json:"joined_at"`
}

type scoreView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.service.CreateRoom(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"success": true, "room": h.roomView(room)})
}

func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, players, err := h.service.GetRoom(r.Context(), chi.URLParam(r, "room"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"success": true,
		"room":    h.roomView(room),
		"players": summaries(players),
	})
}

func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	player, err := h.service.Join(r.Context(), chi.URLParam(r, "room"), req.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"success": true, "player": joinedPlayerView{
		ID:       player.ID,
		RoomID:   player.RoomID,
		Name:     player.Name,
		Score:    player.Score,
		JoinedAt: player.JoinedAt,
	}})
}

func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.service.ListPlayers(r.Context(), chi.URLParam(r, "room"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "players": summaries(players)})
}

func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	player, err := h.service.GetPlayer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "player": playerDetailView{
		ID:            player.ID,
		RoomID:        player.RoomID,
		Name:          player.Name,
		Score:         player.Score,
		CurrentAnswer: player.CurrentAnswer,
		JoinedAt:      player.JoinedAt,
	}})
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if _, err := h.service.SubmitAnswer(r.Context(), chi.URLParam(r, "id"), req.Answer); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "message": "Answer submitted successfully"})
}

func (h *Handler) UpdateScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	player, err := h.service.UpdateScore(r.Context(), chi.URLParam(r, "id"), *req.Score)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "player": scoreView{
		ID:    player.ID,
		Name:  player.Name,
		Score: player.Score,
	}})
}

func (h *Handler) AskQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	question, err := h.service.AskQuestion(r.Context(), chi.URLParam(r, "room"), domain.QuestionType(req.Type), req.CorrectAnswer)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "question": question})
}

func (h *Handler) GradeQuestion(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.GradeQuestion(r.Context(), chi.URLParam(r, "room"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "results": results})
}

func (h *Handler) ResetQuestion(w http.ResponseWriter, r *http.Request) {
	room, err := h.service.ResetQuestion(r.Context(), chi.URLParam(r, "room"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "room": h.roomView(room)})
}

// roomView hides the correct answer from the public room read unless the
// service is configured to broadcast it.
func (h *Handler) roomView(room domain.Room) roomView {
	view := roomView{
		ID:              room.ID,
		Code:            room.Code,
		Status:          room.Status,
		CurrentQuestion: room.CurrentQuestion,
		CreatedAt:       room.CreatedAt,
	}
	if room.CurrentQuestion != nil && !h.service.Settings().BroadcastCorrectAnswer {
		q := room.CurrentQuestion.WithoutAnswer()
		view.CurrentQuestion = &q
	}
	return view
}

func summaries(players []domain.Player) []domain.PlayerSummary {
	out := make([]domain.PlayerSummary, 0, len(players))
	for _, p := range players {
		out = append(out, domain.PlayerSummary{ID: p.ID, Name: p.Name, Score: p.Score, JoinedAt: p.JoinedAt})
	}
	return out
}
