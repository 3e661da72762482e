package api

import (
	"io/fs"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"

	"github.com/rflorenc/facility-workbench/internal/datasource"
	"github.com/rflorenc/facility-workbench/internal/models"
	"github.com/rflorenc/facility-workbench/internal/notify"
	"github.com/rflorenc/facility-workbench/internal/resources"
	"github.com/rflorenc/facility-workbench/internal/screen"
	"github.com/rflorenc/facility-workbench/internal/session"
)

// SourceFactory builds the data source for a resource schema.
type SourceFactory func(schema *models.Schema) datasource.Source

// Server holds shared state for all API handlers.
type Server struct {
	Screens  *screen.Store
	Registry *resources.Registry
	Sources  SourceFactory
	Notes    *notify.Center
	Session  *session.Store
	Auth     session.Poster
	Options  screen.Options
	CSRFKey  []byte
}

// NewRouter builds the chi router with all API routes and, when webFS is
// not nil, static file serving for the dashboard.
func NewRouter(s *Server, webFS fs.FS) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	if len(s.CSRFKey) > 0 {
		r.Use(csrfMiddleware(s.CSRFKey))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/resources", s.ListResources)
		r.Get("/csrf", s.CSRFToken)

		// Session
		r.Post("/session", s.Login)
		r.Get("/session", s.GetSession)
		r.Delete("/session", s.Logout)

		// Screens
		r.With(s.requireAdmin).Post("/screens", s.MountScreen)
		r.Route("/screens/{id}", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/", s.GetScreen)
			r.Delete("/", s.CloseScreen)
			r.Post("/refresh", s.RefreshScreen)

			r.Put("/query/search", s.SetSearch)
			r.Put("/query/filter", s.SetFilter)
			r.Delete("/query/filters", s.ClearFilters)
			r.Put("/query/sort", s.SetSort)
			r.Put("/query/page", s.SetPage)

			r.Post("/form", s.OpenForm)
			r.Delete("/form", s.CloseForm)
			r.Put("/form/fields/{name}", s.SetField)
			r.Post("/form/images/{name}", s.AttachImage)
			r.Post("/form/submit", s.SubmitForm)

			r.Post("/confirmation", s.RequestConfirmation)
			r.Put("/confirmation/payload", s.SetConfirmationValue)
			r.Post("/confirmation/confirm", s.Confirm)
			r.Delete("/confirmation", s.CancelConfirmation)
		})

		// Notifications
		r.Get("/notifications", s.ListNotifications)
		r.Delete("/notifications/{id}", s.DismissNotification)
	})

	// WebSocket (outside /api to avoid JSON content-type assumptions)
	r.Get("/ws/notifications", s.StreamNotifications)

	if webFS != nil {
		r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
			path := req.URL.Path
			if path == "/" {
				path = "/index.html"
			}
			f, err := webFS.Open(path[1:])
			if err == nil {
				f.Close()
				http.ServeFileFS(w, req, webFS, path[1:])
				return
			}
			// SPA client-side routing
			http.ServeFileFS(w, req, webFS, "index.html")
		})
	}

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin rejects signed-in non-admins. Without a session the backend
// token alone decides.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.Session.Current(); ok && !s.Session.IsAdmin() {
			writeError(w, statusFor(session.ErrNotAdmin), session.ErrNotAdmin.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// csrfMiddleware protects form and multipart posts. JSON requests are exempt.
func csrfMiddleware(key []byte) func(http.Handler) http.Handler {
	protect := csrf.Protect(key,
		csrf.Secure(false),
		csrf.Path("/"),
		csrf.RequestHeader("X-CSRF-Token"),
	)
	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
				next.ServeHTTP(w, r)
				return
			}
			if r.TLS == nil {
				r = csrf.PlaintextHTTPRequest(r)
			}
			protected.ServeHTTP(w, r)
		})
	}
}

// CSRFToken hands the token to the dashboard in a response header.
func (s *Server) CSRFToken(w http.ResponseWriter, r *http.Request) {
	if len(s.CSRFKey) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("X-CSRF-Token", csrf.Token(r))
	w.WriteHeader(http.StatusNoContent)
}
