package api

import (
	"errors"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/jaam8/polls/internal/models"
	"github.com/jaam8/polls/internal/service"
	"go.uber.org/zap"
	"net/http"
	"time"
)

type AdminHandler struct {
	s *service.PollService
	l *zap.Logger
}

type createQuestionRequest struct {
	Text        string     `json:"text"`
	PublishedAt *time.Time `json:"published_at"`
	Choices     []string   `json:"choices"`
}

type updateQuestionRequest struct {
	Text        *string    `json:"text"`
	PublishedAt *time.Time `json:"published_at"`
}

type addChoiceRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewAdminHandler(s *service.PollService, l *zap.Logger) *AdminHandler {
	return &AdminHandler{
		s: s,
		l: l,
	}
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Get("/questions", h.ListQuestions)
	r.Post("/questions", h.CreateQuestion)
	r.Get("/questions/{questionID}", h.GetQuestion)
	r.Patch("/questions/{questionID}", h.UpdateQuestion)
	r.Delete("/questions/{questionID}", h.DeleteQuestion)
	r.Post("/questions/{questionID}/choices", h.AddChoice)
	r.Delete("/questions/{questionID}/choices/{choiceID}", h.DeleteChoice)
}

// ListQuestions handles GET /admin/questions, scheduled ones included.
func (h *AdminHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.s.AllQuestions(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *AdminHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req createQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
		return
	}
	var publishedAt time.Time
	if req.PublishedAt != nil {
		publishedAt = *req.PublishedAt
	}
	q, err := h.s.CreateQuestion(r.Context(), req.Text, publishedAt, req.Choices)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *AdminHandler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "questionID"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: models.ErrQuestionNotFound.Error()})
		return
	}
	q, err := h.s.Question(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *AdminHandler) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "questionID"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: models.ErrQuestionNotFound.Error()})
		return
	}
	var req updateQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
		return
	}
	q, err := h.s.UpdateQuestion(r.Context(), id, req.Text, req.PublishedAt)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *AdminHandler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "questionID"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: models.ErrQuestionNotFound.Error()})
		return
	}
	if err := h.s.DeleteQuestion(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) AddChoice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "questionID"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: models.ErrQuestionNotFound.Error()})
		return
	}
	var req addChoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
		return
	}
	c, err := h.s.AddChoice(r.Context(), id, req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *AdminHandler) DeleteChoice(w http.ResponseWriter, r *http.Request) {
	questionID, okQuestion := parseID(chi.URLParam(r, "questionID"))
	choiceID, okChoice := parseID(chi.URLParam(r, "choiceID"))
	if !okQuestion || !okChoice {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: models.ErrChoiceNotFound.Error()})
		return
	}
	if err := h.s.DeleteChoice(r.Context(), questionID, choiceID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrQuestionNotFound), errors.Is(err, models.ErrChoiceNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrQuestionTextEmpty),
		errors.Is(err, models.ErrQuestionTextTooLong),
		errors.Is(err, models.ErrChoiceTextEmpty),
		errors.Is(err, models.ErrChoiceTextTooLong):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		h.l.Error("admin request failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "something went wrong"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
