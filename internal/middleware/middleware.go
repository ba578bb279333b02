package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/SurveyCast/SC-Backend/internal/utils"
	"golang.org/x/time/rate"
)

type SessionFetcher interface {
	FindSessionByID(id string) (utils.SessionData, error)
}

func SessionMiddleware(fetcher SessionFetcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie("session_id")
			if err != nil {
				http.Error(w, "Couldn't find cookie", http.StatusUnauthorized)
				return
			}

			session, err := fetcher.FindSessionByID(cookie.Value)
			if err != nil {
				http.Error(w, "Couldn't find session", http.StatusUnauthorized)
				return
			}

			if session.ExpiresAt.Before(time.Now()) {
				http.Error(w, "Session expired", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), utils.ContextUserIDKey, session.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TakerSessionMiddleware resolves the anonymous respondent identity carried
// in the taker_id cookie. When mint is true a missing cookie is created on
// the fly (first answer save); when false the request is rejected, matching
// the submit path where an expired session must not mint a fresh identity.
func TakerSessionMiddleware(mint bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var takerID string
			cookie, err := r.Cookie("taker_id")
			if err == nil && cookie.Value != "" {
				takerID = cookie.Value
			} else if mint {
				takerID = utils.GenerateUUID()
				http.SetCookie(w, &http.Cookie{
					Name:     "taker_id",
					Value:    takerID,
					Path:     "/",
					MaxAge:   60 * 60 * 24 * 30,
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			} else {
				http.Error(w, "Session expired. Please refresh the page.", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), utils.ContextTakerIDKey, takerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Echo the origin back only if it’s on our allow-list
			if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin") // important for caches
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods",
					"GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers",
					"Content-Type, Authorization")
			}

			w.Header().Set("Access-Control-Expose-Headers", "Retry-After, Cache-Control")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TakerRateLimiter throttles answer autosaves per taker. Clients debounce
// free-text input to roughly one write per second; the limiter enforces the
// same order of magnitude server-side so a broken client cannot flood the
// response table.
type TakerRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewTakerRateLimiter(perSecond float64, burst int) *TakerRateLimiter {
	return &TakerRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (l *TakerRateLimiter) limiterFor(takerID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[takerID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[takerID] = lim
	}
	return lim
}

func (l *TakerRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		takerID, ok := utils.GetTakerIDFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized: missing taker ID in context", http.StatusUnauthorized)
			return
		}

		if !l.limiterFor(takerID).Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
