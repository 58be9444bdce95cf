package api

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"github.com/go-chi/chi/v5"
	"github.com/jaam8/polls/internal/models"
	"github.com/jaam8/polls/internal/service"
	"go.uber.org/zap"
	"html/template"
	"net/http"
	"strconv"
)

const NoChoiceMessage = "You did not select a choice."

//go:embed templates/*.html
var templateFS embed.FS

var pages = []string{"index.html", "detail.html", "results.html", "not_found.html", "error.html"}

type WebHandler struct {
	s     *service.PollService
	l     *zap.Logger
	pages map[string]*template.Template
}

type detailPage struct {
	Question     *models.Question
	ErrorMessage string
}

func NewWebHandler(s *service.PollService, l *zap.Logger) (*WebHandler, error) {
	funcs := template.FuncMap{
		"pluralize": func(n uint64) string {
			if n == 1 {
				return ""
			}
			return "s"
		},
	}
	parsed := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		t, err := template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/base.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("api: parse template %s: %w", page, err)
		}
		parsed[page] = t
	}
	return &WebHandler{
		s:     s,
		l:     l,
		pages: parsed,
	}, nil
}

// Index handles GET /polls
func (h *WebHandler) Index(w http.ResponseWriter, r *http.Request) {
	questions, err := h.s.LatestQuestions(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "index.html", questions)
}

// Detail handles GET /polls/{questionID}
func (h *WebHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "questionID"))
	if !ok {
		h.NotFound(w, r)
		return
	}
	q, err := h.s.PublishedQuestion(r.Context(), id)
	if err != nil {
		h.questionError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "detail.html", detailPage{Question: q})
}

// Results handles GET /polls/{questionID}/results
func (h *WebHandler) Results(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "questionID"))
	if !ok {
		h.NotFound(w, r)
		return
	}
	q, err := h.s.PublishedQuestion(r.Context(), id)
	if err != nil {
		h.questionError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "results.html", q)
}

// Vote handles POST /polls/{questionID}/vote with the form field "choice".
func (h *WebHandler) Vote(w http.ResponseWriter, r *http.Request) {
	questionID, ok := parseID(chi.URLParam(r, "questionID"))
	if !ok {
		h.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.l.Debug("failed to parse vote form", zap.Error(err))
		h.redisplayVoteForm(w, r, questionID)
		return
	}
	choiceID, ok := parseID(r.PostForm.Get("choice"))
	if !ok {
		h.redisplayVoteForm(w, r, questionID)
		return
	}

	q, err := h.s.RecordVote(r.Context(), questionID, choiceID)
	switch {
	case err == nil:
		http.Redirect(w, r, fmt.Sprintf("/polls/%d/results", q.ID), http.StatusSeeOther)
	case errors.Is(err, models.ErrInvalidSelection):
		h.redisplayVoteForm(w, r, questionID)
	default:
		h.questionError(w, r, err)
	}
}

func (h *WebHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "not_found.html", nil)
}

// redisplayVoteForm shows the voting form again with the no-choice error.
// A missing question still wins over a missing choice.
func (h *WebHandler) redisplayVoteForm(w http.ResponseWriter, r *http.Request, questionID uint64) {
	q, err := h.s.Question(r.Context(), questionID)
	if err != nil {
		h.questionError(w, r, err)
		return
	}
	h.l.Debug("vote without a valid choice", zap.Uint64("question_id", questionID))
	h.render(w, r, http.StatusOK, "detail.html", detailPage{Question: q, ErrorMessage: NoChoiceMessage})
}

func (h *WebHandler) questionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, models.ErrQuestionNotFound) {
		h.NotFound(w, r)
		return
	}
	h.serverError(w, r, err)
}

func (h *WebHandler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.l.Error("request failed",
		zap.String("request_id", RequestIDFrom(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	h.render(w, r, http.StatusInternalServerError, "error.html", nil)
}

func (h *WebHandler) render(w http.ResponseWriter, r *http.Request, status int, page string, data interface{}) {
	var buf bytes.Buffer
	if err := h.pages[page].ExecuteTemplate(&buf, "base", data); err != nil {
		h.l.Error("failed to render page",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("page", page),
			zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func parseID(raw string) (uint64, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
