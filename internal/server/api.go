package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sjawhar/interview-coach/internal/feedback"
	"github.com/sjawhar/interview-coach/internal/questions"
	"github.com/sjawhar/interview-coach/internal/session"
	"github.com/sjawhar/interview-coach/internal/storage"
	"github.com/sjawhar/interview-coach/internal/transcript"
)

// userHeader is set by the upstream auth proxy and trusted verbatim.
const userHeader = "X-User-ID"

const (
	msgFeedbackFailed   = "Failed to generate feedback"
	msgFeedbackNotFound = "No feedback found for this interview. Please complete the interview first."
)

type feedbackRequest struct {
	InterviewID string             `json:"interviewId"`
	UserID      string             `json:"userId"`
	Transcript  []transcript.Entry `json:"transcript"`
	FeedbackID  string             `json:"feedbackId,omitempty"`
}

type userRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type sessionRequest struct {
	Mode        session.Mode `json:"mode"`
	InterviewID string       `json:"interviewId,omitempty"`
	FeedbackID  string       `json:"feedbackId,omitempty"`
	UserName    string       `json:"userName,omitempty"`
}

type interviewView struct {
	storage.Interview
	Evaluated bool `json:"evaluated"`
}

func registerAPIRoutes(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("POST /api/feedback", func(w http.ResponseWriter, r *http.Request) {
		var req feedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeFeedbackError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if strings.TrimSpace(req.InterviewID) == "" || strings.TrimSpace(req.UserID) == "" || len(req.Transcript) == 0 {
			writeFeedbackError(w, http.StatusBadRequest, "Missing required fields")
			return
		}
		if !deps.Limiter.Allow(req.UserID) {
			writeFeedbackError(w, http.StatusTooManyRequests, "Too many feedback requests, try again later")
			return
		}

		release, ok := deps.Guard.Acquire(req.InterviewID)
		if !ok {
			writeFeedbackError(w, http.StatusConflict, "Feedback for this interview is already being generated")
			return
		}
		defer release()

		res, err := deps.Feedback.Generate(r.Context(), feedback.Request{
			InterviewID: req.InterviewID,
			UserID:      req.UserID,
			Transcript:  req.Transcript,
			FeedbackID:  req.FeedbackID,
		})
		if err != nil {
			slog.Warn("server: feedback generation failed",
				"interview_id", req.InterviewID, "kind", feedback.KindOf(err), "error", err)
			status, msg := feedbackStatus(err)
			writeFeedbackError(w, status, msg)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"success": true, "feedbackId": res.FeedbackID})
	})

	mux.HandleFunc("GET /api/interviews", func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		interviews, err := deps.Store.ListInterviews(r.Context(), userID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list interviews: %v", err))
			return
		}
		if interviews == nil {
			interviews = []storage.Interview{}
		}
		writeJSON(w, http.StatusOK, interviews)
	})

	mux.HandleFunc("POST /api/interviews", func(w http.ResponseWriter, r *http.Request) {
		var params questions.Params
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if params.UserID == "" {
			params.UserID = r.Header.Get(userHeader)
		}

		iv, err := deps.Generator.Generate(r.Context(), params)
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, questions.ErrInvalidParams) {
				status = http.StatusBadRequest
			}
			writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "interviewId": iv.ID, "interview": iv})
	})

	mux.HandleFunc("GET /api/interviews/{id}", func(w http.ResponseWriter, r *http.Request) {
		iv, err := deps.Store.GetInterview(r.Context(), r.PathValue("id"))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeJSONError(w, http.StatusNotFound, "Interview not found")
				return
			}
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get interview: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, interviewView{Interview: iv, Evaluated: iv.Score != nil})
	})

	mux.HandleFunc("GET /api/interviews/{id}/feedback", func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		fb, err := deps.Feedback.Lookup(r.Context(), r.PathValue("id"), userID)
		if err != nil {
			if errors.Is(err, feedback.ErrNotFound) {
				writeJSONError(w, http.StatusNotFound, msgFeedbackNotFound)
				return
			}
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get feedback: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, fb)
	})

	mux.HandleFunc("POST /api/users", func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req userRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		created, err := deps.Store.EnsureUser(r.Context(), storage.User{
			ID:        userID,
			FirstName: strings.TrimSpace(req.FirstName),
			LastName:  strings.TrimSpace(req.LastName),
			Email:     strings.TrimSpace(req.Email),
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "created": created})
	})

	mux.HandleFunc("POST /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req sessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		snap, err := deps.Sessions.Start(r.Context(), session.Spec{
			Mode:        req.Mode,
			InterviewID: req.InterviewID,
			FeedbackID:  req.FeedbackID,
			UserID:      userID,
			UserName:    req.UserName,
		})
		if err != nil {
			writeJSONError(w, sessionStartStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, snap)
	})

	mux.HandleFunc("GET /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		snap, err := deps.Sessions.Get(r.PathValue("id"), userID)
		if err != nil {
			writeSessionLookupError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	mux.HandleFunc("POST /api/sessions/{id}/stop", func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		snap, err := deps.Sessions.Stop(r.PathValue("id"), userID)
		if err != nil {
			writeSessionLookupError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		var warnings []string
		if deps.Warnings != nil {
			warnings = deps.Warnings()
		}
		if warnings == nil {
			warnings = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"warnings": warnings})
	})
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get(userHeader))
	if userID == "" {
		writeJSONError(w, http.StatusUnauthorized, "missing user identity")
		return "", false
	}
	return userID, true
}

// feedbackStatus maps pipeline error kinds onto HTTP statuses. Internal
// details stay in the log.
func feedbackStatus(err error) (int, string) {
	switch feedback.KindOf(err) {
	case feedback.KindValidation:
		return http.StatusBadRequest, "Missing required fields"
	case feedback.KindGeneration:
		return http.StatusBadGateway, msgFeedbackFailed
	default:
		return http.StatusInternalServerError, msgFeedbackFailed
	}
}

func sessionStartStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrUnknownMode), errors.Is(err, session.ErrMissingInterview), errors.Is(err, session.ErrMissingUser):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeSessionLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrSessionNotFound) {
		writeJSONError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSONError(w, http.StatusInternalServerError, err.Error())
}

func writeFeedbackError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
