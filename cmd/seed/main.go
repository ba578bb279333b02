package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Seeds a demo owner plus one survey with two categories so a fresh
// deployment has something to open in the dashboard.

var (
	dsn      = flag.String("dsn", os.Getenv("DATABASE_URL"), "Postgres DSN (default: env DATABASE_URL)")
	username = flag.String("username", "demo", "Demo owner username")
	password = flag.String("password", "demo-pass", "Demo owner password")
)

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *dsn == "" {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		fatalf("ping: %v", err)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		fatalf("begin tx: %v", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op if already committed
	}()

	hashed, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		fatalf("hash password: %v", err)
	}

	ownerID := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO app_auth.users (user_id, username, hashed_password)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO NOTHING`,
		ownerID, *username, string(hashed)); err != nil {
		fatalf("upsert owner: %v", err)
	}

	// Resolve the actual owner id in case the user already existed.
	if err := tx.QueryRowContext(ctx,
		`SELECT user_id FROM app_auth.users WHERE username = $1`, *username).
		Scan(&ownerID); err != nil {
		fatalf("fetch owner: %v", err)
	}

	surveyID := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO surveys.surveys (id, title, user_id, status, created_at)
		VALUES ($1, $2, $3, 'draft', now())`,
		surveyID, "Demo Survey", ownerID); err != nil {
		fatalf("insert survey: %v", err)
	}

	type seedQuestion struct {
		title   string
		qtype   string
		options []string
	}
	categories := []struct {
		title     string
		questions []seedQuestion
	}{
		{"Warm-up", []seedQuestion{
			{"How did you hear about us?", "multiple_choice", []string{"Friend", "Search", "Social media"}},
			{"Anything else we should know?", "free_text", nil},
		}},
		{"Feedback", []seedQuestion{
			{"How likely are you to recommend us?", "linear_scale", nil},
		}},
	}

	for i, cat := range categories {
		categoryID := uuid.NewString()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO surveys.categories (id, survey_id, title, display_order)
			VALUES ($1, $2, $3, $4)`,
			categoryID, surveyID, cat.title, i); err != nil {
			fatalf("insert category %q: %v", cat.title, err)
		}
		for j, q := range cat.questions {
			var scaleStart, scaleEnd *int
			if q.qtype == "linear_scale" {
				one, ten := 1, 10
				scaleStart, scaleEnd = &one, &ten
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO surveys.questions
					(id, category_id, title, type, options, scale_start, scale_end, display_order)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				uuid.NewString(), categoryID, q.title, q.qtype,
				stringArray(q.options), scaleStart, scaleEnd, j); err != nil {
				fatalf("insert question %q: %v", q.title, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		fatalf("commit: %v", err)
	}
	fmt.Printf("Seeded survey %s for owner %q\n", surveyID, *username)
}

// stringArray renders a text[] literal, nil for non-choice questions.
func stringArray(values []string) any {
	if values == nil {
		return nil
	}
	out := "{"
	for i, v := range values {
		if i > 0 {
			out += ","
		}
		out += `"` + v + `"`
	}
	return out + "}"
}
