package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jaam8/polls/internal/service"
	"go.uber.org/zap"
	"net/http"
)

// NewRouter wires the public poll pages and, when adminKey is set, the
// admin API.
func NewRouter(s *service.PollService, l *zap.Logger, adminKey string) (http.Handler, error) {
	web, err := NewWebHandler(s, l)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logging(l))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/polls", http.StatusFound)
	})

	r.Route("/polls", func(r chi.Router) {
		r.Get("/", web.Index)
		r.Get("/{questionID}", web.Detail)
		r.Get("/{questionID}/results", web.Results)
		r.Post("/{questionID}/vote", web.Vote)
	})
	r.NotFound(web.NotFound)

	if adminKey != "" {
		admin := NewAdminHandler(s, l)
		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminKey(adminKey))
			admin.Register(r)
		})
	} else {
		l.Info("admin API disabled, ADMIN_KEY is empty")
	}

	return r, nil
}
