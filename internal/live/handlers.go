package live

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/SurveyCast/SC-Backend/internal/middleware"
	"github.com/SurveyCast/SC-Backend/internal/survey"
	"github.com/SurveyCast/SC-Backend/internal/utils"
	"github.com/go-chi/chi/v5"
)

// StateReader is the read-only slice of the survey store the streams need.
// Streams are snapshot-based: every wake-up re-reads current state, so an
// event lost between disconnect and reconnect can never be observed as a
// stale value.
type StateReader interface {
	ActiveCategory(surveyID string) (string, error)
	Status(surveyID string) (string, error)
	ListResponses(surveyID string) ([]survey.ResponseRow, error)
	OwnerOf(surveyID string) (string, error)
}

type Handler struct {
	Reads     StateReader
	Broker    *Broker
	Tokens    *TokenIssuer
	Keepalive time.Duration
}

func NewHandler(reads StateReader, broker *Broker, tokens *TokenIssuer, keepalive time.Duration) *Handler {
	if keepalive <= 0 {
		keepalive = 15 * time.Second
	}
	return &Handler{Reads: reads, Broker: broker, Tokens: tokens, Keepalive: keepalive}
}

func (h *Handler) SetupRoutes(fetcher middleware.SessionFetcher) http.Handler {
	r := chi.NewRouter()

	r.Get("/{surveyID}/category", h.CategoryStreamHandler)
	r.Get("/{surveyID}/status", h.StatusStreamHandler)
	r.Get("/{surveyID}/stats", h.StatsStreamHandler)
	r.With(middleware.SessionMiddleware(fetcher)).Post("/token", h.MintTokenHandler)

	return r
}

// stream runs the shared subscription loop: initial snapshot, then a fresh
// snapshot per change event, with keepalive comments so silently-dead
// connections are detected. It returns when the client goes away.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request, streamName, surveyID string, snapshot func() (any, error)) {
	// Read the snapshot before committing to a stream response so a bad
	// survey id still gets a plain 404.
	initial, err := snapshot()
	if err != nil {
		if errors.Is(err, survey.ErrNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to read state: "+err.Error(), http.StatusInternalServerError)
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := sse.sendJSON(initial); err != nil {
		return
	}

	events, cancel := h.Broker.Subscribe(streamName, surveyID)
	defer cancel()

	ticker := time.NewTicker(h.Keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := sse.comment("keepalive"); err != nil {
				return
			}
		case _, ok := <-events:
			if !ok {
				return
			}
			current, err := snapshot()
			if err != nil {
				// Survey may have been deleted mid-stream; stop pushing.
				return
			}
			if err := sse.sendJSON(current); err != nil {
				return
			}
		}
	}
}

// CategoryStreamHandler pushes the active category id, starting with the
// current value and then once per change.
func (h *Handler) CategoryStreamHandler(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "surveyID")
	h.stream(w, r, survey.StreamCategory, surveyID, func() (any, error) {
		return h.Reads.ActiveCategory(surveyID)
	})
}

func (h *Handler) StatusStreamHandler(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "surveyID")
	h.stream(w, r, survey.StreamStatus, surveyID, func() (any, error) {
		return h.Reads.Status(surveyID)
	})
}

// StatsStreamHandler pushes the full response set for the admin statistics
// view. Authenticated by a signed stream token bound to the survey.
func (h *Handler) StatsStreamHandler(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "surveyID")

	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		http.Error(w, "Missing stream token", http.StatusUnauthorized)
		return
	}
	ownerID, err := h.Tokens.Verify(tokenString, surveyID)
	if err != nil {
		http.Error(w, "Invalid stream token", http.StatusUnauthorized)
		return
	}
	owner, err := h.Reads.OwnerOf(surveyID)
	if err != nil {
		if errors.Is(err, survey.ErrNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to read survey: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if owner != ownerID {
		http.Error(w, "You don't have permission to view these responses", http.StatusForbidden)
		return
	}

	h.stream(w, r, survey.StreamResponses, surveyID, func() (any, error) {
		return h.Reads.ListResponses(surveyID)
	})
}

// MintTokenHandler exchanges an owner session for a short-lived stats
// stream token.
func (h *Handler) MintTokenHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
		return
	}

	var input struct {
		SurveyID string `json:"surveyId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.SurveyID == "" {
		http.Error(w, "Survey ID is required", http.StatusBadRequest)
		return
	}

	owner, err := h.Reads.OwnerOf(input.SurveyID)
	if err != nil {
		if errors.Is(err, survey.ErrNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to read survey: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if owner != ownerID {
		http.Error(w, "You don't have permission to stream this survey", http.StatusForbidden)
		return
	}

	token, err := h.Tokens.Mint(input.SurveyID, ownerID)
	if err != nil {
		http.Error(w, "Failed to mint token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}
