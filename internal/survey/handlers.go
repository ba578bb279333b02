package survey

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/SurveyCast/SC-Backend/internal/utils"
	"github.com/go-chi/chi/v5"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type Handler struct {
	Store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{Store: store}
}

// writeStoreError maps the store's failure classes onto HTTP statuses.
// Conflict cases get a JSON payload so the client can show a corrective
// message instead of silently failing.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, ErrNotOwner):
		http.Error(w, "You don't have permission to modify this survey", http.StatusForbidden)
	case errors.Is(err, ErrWrongSurvey):
		http.Error(w, "Resource does not belong to this survey", http.StatusBadRequest)
	case errors.Is(err, ErrCategoryNotActive):
		writeJSON(w, http.StatusConflict, map[string]any{"error": "No active category found."})
	case errors.Is(err, ErrCategorySubmitted):
		writeJSON(w, http.StatusConflict, map[string]any{"error": "This category has already been submitted."})
	default:
		http.Error(w, "Internal error: "+err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) ListSurveysHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
		return
	}

	surveys, err := h.Store.ListSurveys(ownerID)
	if err != nil {
		http.Error(w, "Failed to fetch surveys: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// The dashboard can ask for a locale-aware title sort instead of the
	// default newest-first ordering.
	if r.URL.Query().Get("sort") == "title" {
		c := collate.New(language.English, collate.IgnoreCase)
		sort.SliceStable(surveys, func(i, j int) bool {
			return c.CompareString(surveys[i].Title, surveys[j].Title) < 0
		})
	}

	writeJSON(w, http.StatusOK, surveys)
}

func (h *Handler) CreateSurveyHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
		return
	}

	var input struct {
		Title      string          `json:"title"`
		Categories []CategoryPatch `json:"categories"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if input.Title == "" {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return
	}

	sv, err := h.Store.CreateSurvey(ownerID, input.Title, input.Categories)
	if err != nil {
		http.Error(w, "Failed to create survey: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, sv)
}

func (h *Handler) GetSurveyHandler(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "surveyID")

	sv, err := h.Store.GetSurvey(surveyID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sv)
}

func (h *Handler) SaveSurveyHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
		return
	}
	surveyID := chi.URLParam(r, "surveyID")

	var patch SurveyPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := ValidatePatch(patch); err != nil {
		http.Error(w, "Invalid survey: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Store.SaveSurvey(surveyID, ownerID, patch); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) DeleteSurveyHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
		return
	}
	surveyID := chi.URLParam(r, "surveyID")

	if err := h.Store.DeleteSurvey(surveyID, ownerID); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotOwner) {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "Failed to delete survey: " + err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) ToggleStatusHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
		return
	}
	surveyID := chi.URLParam(r, "surveyID")

	var input struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Store.SetStatus(surveyID, ownerID, input.Status); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotOwner) {
			writeStoreError(w, err)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": input.Status})
}

func (h *Handler) SetActiveCategoryHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
		return
	}
	surveyID := chi.URLParam(r, "surveyID")

	var input struct {
		CategoryID string `json:"categoryId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Store.SetActiveCategory(surveyID, input.CategoryID, ownerID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// GetActiveCategoryHandler is the poll-based fallback for observing the
// active category; clients diff the returned value against the last one.
func (h *Handler) GetActiveCategoryHandler(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "surveyID")

	categoryID, err := h.Store.ActiveCategory(surveyID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var payload any
	if categoryID != "" {
		payload = categoryID
	}
	writeJSON(w, http.StatusOK, map[string]any{"activeCategory": payload})
}

func (h *Handler) DeleteCategoryHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
		return
	}
	surveyID := chi.URLParam(r, "surveyID")
	categoryID := chi.URLParam(r, "categoryID")

	if err := h.Store.DeleteCategory(surveyID, categoryID, ownerID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) DeleteQuestionHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
		return
	}
	surveyID := chi.URLParam(r, "surveyID")

	var input struct {
		QuestionID string `json:"questionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.QuestionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Question ID is required",
		})
		return
	}

	if err := h.Store.DeleteQuestion(surveyID, input.QuestionID, ownerID); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotOwner) || errors.Is(err, ErrWrongSurvey) {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "Failed to delete question: " + err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) SaveAnswerHandler(w http.ResponseWriter, r *http.Request) {
	takerID, ok := utils.GetTakerIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Session expired. Please refresh the page.", http.StatusUnauthorized)
		return
	}
	surveyID := chi.URLParam(r, "surveyID")

	var input AnswerInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.QuestionID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Store.SaveAnswer(surveyID, takerID, input); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) SubmitAnswersHandler(w http.ResponseWriter, r *http.Request) {
	takerID, ok := utils.GetTakerIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Session expired. Please refresh the page.", http.StatusUnauthorized)
		return
	}
	surveyID := chi.URLParam(r, "surveyID")

	var input struct {
		CategoryID string        `json:"categoryId"`
		Answers    []AnswerInput `json:"answers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Older clients omit categoryId and submit against whatever category is
	// currently active; resolve it for them. SubmitCategory re-validates
	// inside its transaction either way.
	if input.CategoryID == "" {
		current, err := h.Store.ActiveCategory(surveyID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if current == "" {
			writeJSON(w, http.StatusConflict, map[string]any{"error": "No active category found."})
			return
		}
		input.CategoryID = current
	}

	if err := h.Store.SubmitCategory(surveyID, takerID, input.CategoryID, input.Answers); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// SubmissionCheckHandler reports whether the calling taker already holds a
// receipt for the category; the answer page calls it whenever the active
// category changes so the submitted flag never carries over.
func (h *Handler) SubmissionCheckHandler(w http.ResponseWriter, r *http.Request) {
	takerID, ok := utils.GetTakerIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Session expired. Please refresh the page.", http.StatusUnauthorized)
		return
	}
	surveyID := chi.URLParam(r, "surveyID")
	categoryID := chi.URLParam(r, "categoryID")

	submitted, err := h.Store.HasSubmission(surveyID, categoryID, takerID)
	if err != nil {
		http.Error(w, "Failed to check submission: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submitted": submitted})
}

func (h *Handler) ListResponsesHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
		return
	}
	surveyID := chi.URLParam(r, "surveyID")

	owner, err := h.Store.OwnerOf(surveyID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if owner != ownerID {
		http.Error(w, "You don't have permission to view these responses", http.StatusForbidden)
		return
	}

	rows, err := h.Store.ListResponses(surveyID)
	if err != nil {
		http.Error(w, "Failed to fetch responses: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
