package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/SurveyCast/SC-Backend/internal/auth"
	"github.com/SurveyCast/SC-Backend/internal/config"
	"github.com/SurveyCast/SC-Backend/internal/db"
	"github.com/SurveyCast/SC-Backend/internal/live"
	"github.com/SurveyCast/SC-Backend/internal/middleware"
	"github.com/SurveyCast/SC-Backend/internal/survey"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid config: ", err)
	}

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	log.Println("Connected to database")

	if err := auth.Init(gdb); err != nil {
		log.Fatal("Failed to set up auth tables: ", err)
	}
	if err := survey.Init(gdb); err != nil {
		log.Fatal("Failed to set up survey tables: ", err)
	}

	broker := live.NewBroker()
	store := survey.NewGormStore(gdb, broker)
	fetcher := auth.SessionInfo{DB: gdb}

	authHandler := auth.NewHandler(gdb, cfg.SessionTTL)
	surveyHandler := survey.NewHandler(store)
	liveHandler := live.NewHandler(
		store,
		broker,
		live.NewTokenIssuer([]byte(cfg.StreamSecret), 5*time.Minute),
		cfg.KeepaliveInterval,
	)
	answerLimiter := middleware.NewTakerRateLimiter(2, cfg.AnswerBurst)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Get("/", RootHandler)
	r.Get("/healthz", RootHandler)

	r.Mount("/auth", authHandler.SetupRoutes())
	r.Mount("/surveys", surveyHandler.SetupRoutes(fetcher, answerLimiter))
	r.Mount("/live", liveHandler.SetupRoutes(fetcher))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("Server listening on %s...", cfg.Addr)
	if err := server.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
