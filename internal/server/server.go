package server

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/sjawhar/interview-coach/internal/feedback"
	"github.com/sjawhar/interview-coach/internal/questions"
	"github.com/sjawhar/interview-coach/internal/session"
	"github.com/sjawhar/interview-coach/internal/storage"
)

type InterviewStore interface {
	ListInterviews(ctx context.Context, ownerID string) ([]storage.Interview, error)
	GetInterview(ctx context.Context, id string) (storage.Interview, error)
	EnsureUser(ctx context.Context, u storage.User) (bool, error)
}

type FeedbackService interface {
	Generate(ctx context.Context, req feedback.Request) (feedback.Result, error)
	Lookup(ctx context.Context, interviewID, userID string) (storage.Feedback, error)
}

type InterviewGenerator interface {
	Generate(ctx context.Context, p questions.Params) (storage.Interview, error)
}

type SessionController interface {
	Start(ctx context.Context, spec session.Spec) (session.Snapshot, error)
	Get(id, userID string) (session.Snapshot, error)
	Stop(id, userID string) (session.Snapshot, error)
	HandleFrame(id, userID string, binary bool, data []byte) error
}

type Deps struct {
	Hub       *Hub
	Store     InterviewStore
	Feedback  FeedbackService
	Generator InterviewGenerator
	Sessions  SessionController
	Guard     *feedback.Guard
	Limiter   *RateLimiter
	Warnings  func() []string
	// Static serves a built UI when set; unknown paths fall back to index.html.
	Static fs.FS
}

func Handler(deps Deps) (http.Handler, error) {
	if deps.Hub == nil {
		deps.Hub = NewHub()
	}
	if deps.Guard == nil {
		deps.Guard = feedback.NewGuard()
	}

	mux := http.NewServeMux()

	registerWSRoutes(mux, deps.Hub, deps.Sessions)
	registerAPIRoutes(mux, deps)

	if deps.Static != nil {
		mux.HandleFunc("/", serveSPA(deps.Static))
	}

	return mux, nil
}

// Serve blocks until the server stops. Shutdown is driven through srv.
func Serve(srv *http.Server) error {
	log.Printf("listening on http://%s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func serveSPA(staticFS fs.FS) func(http.ResponseWriter, *http.Request) {
	fileServer := http.FileServer(http.FS(staticFS))
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/ws") {
			http.NotFound(w, r)
			return
		}

		cleanPath := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
		if cleanPath == "." || cleanPath == "" {
			r.URL.Path = "/"
			fileServer.ServeHTTP(w, r)
			return
		}
		if !strings.Contains(cleanPath, ".") {
			// Client-side routes get the app shell; the URL stays as requested.
			http.ServeFileFS(w, r, staticFS, "index.html")
			return
		}

		r.URL.Path = "/" + cleanPath
		fileServer.ServeHTTP(w, r)
	}
}
