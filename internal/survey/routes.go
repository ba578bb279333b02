package survey

import (
	"net/http"

	"github.com/SurveyCast/SC-Backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// SetupRoutes wires the survey endpoints. Owner routes sit behind the
// session middleware; respondent routes behind the taker-cookie middleware.
func (h *Handler) SetupRoutes(fetcher middleware.SessionFetcher, answerLimiter *middleware.TakerRateLimiter) http.Handler {
	r := chi.NewRouter()

	// Public reads: answer-page render and the polling fallback.
	r.Get("/{surveyID}", h.GetSurveyHandler)
	r.Get("/{surveyID}/active-category", h.GetActiveCategoryHandler)

	// Respondent writes. Answer saves mint the taker cookie on first use;
	// submits require an existing one.
	r.Group(func(r chi.Router) {
		r.Use(middleware.TakerSessionMiddleware(true))
		if answerLimiter != nil {
			r.With(answerLimiter.Middleware).Post("/{surveyID}/answers", h.SaveAnswerHandler)
		} else {
			r.Post("/{surveyID}/answers", h.SaveAnswerHandler)
		}
		r.Get("/{surveyID}/categories/{categoryID}/submission", h.SubmissionCheckHandler)
	})
	r.With(middleware.TakerSessionMiddleware(false)).
		Post("/{surveyID}/submit", h.SubmitAnswersHandler)

	// Owner routes.
	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(fetcher))
		r.Get("/", h.ListSurveysHandler)
		r.Post("/", h.CreateSurveyHandler)
		r.Post("/{surveyID}", h.SaveSurveyHandler)
		r.Delete("/{surveyID}", h.DeleteSurveyHandler)
		r.Post("/{surveyID}/status", h.ToggleStatusHandler)
		r.Post("/{surveyID}/active-category", h.SetActiveCategoryHandler)
		r.Delete("/{surveyID}/categories/{categoryID}", h.DeleteCategoryHandler)
		r.Post("/{surveyID}/questions/delete", h.DeleteQuestionHandler)
		r.Get("/{surveyID}/responses", h.ListResponsesHandler)
	})

	return r
}
