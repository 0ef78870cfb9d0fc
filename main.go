// Package main our entry point.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/johndosdos/astrochat/internal/auth"
	"github.com/johndosdos/astrochat/internal/chat"
	"github.com/johndosdos/astrochat/internal/config"
	"github.com/johndosdos/astrochat/internal/database"
	"github.com/johndosdos/astrochat/internal/handler"
	"github.com/johndosdos/astrochat/internal/oracle"
	ratelimiter "github.com/johndosdos/astrochat/internal/rate_limiter"
	"github.com/johndosdos/astrochat/internal/reveal"
	"github.com/johndosdos/astrochat/sql/schema"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("Starting application...")

	// Init DB
	log.Println("Initializing Database connection...")

	dbConn, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		log.Fatalf("could not connect to the postgresql database: %v", err)
	}
	defer dbConn.Close()

	if err := migrate(dbConn); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	dbQueries := database.New(dbConn)

	var gen oracle.Generator
	if cfg.GeminiAPIKey != "" {
		gemini, err := oracle.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, oracle.WithBaseURL(cfg.GeminiBaseURL))
		if err != nil {
			log.Fatalf("could not set up the oracle: %v", err)
		}
		gen = gemini
		slog.Info("oracle uses gemini", slog.String("model", cfg.GeminiModel))
	} else {
		gen = &oracle.Canned{}
		slog.Warn("GEMINI_API_KEY is not set; oracle answers with canned readings")
	}

	var override *reveal.TriggerOverride
	if cfg.TriggerOverride {
		override = reveal.NewTriggerOverride(cfg.TriggerPrefixes...)
		slog.Warn("trigger override enabled; challenge-gated deep dives unlock without payment")
	}

	// hub.Run is our central hub that is always listening for client related events.
	hub := chat.NewHub()
	go hub.Run(ctx)

	svc := chat.NewService(dbQueries, gen, hub, chat.Options{
		RevealInterval:        cfg.RevealInterval,
		FreshWindow:           cfg.FreshWindow,
		Override:              override,
		HistoryLimit:          cfg.HistoryLimit,
		FreeDailyQuestions:    cfg.FreeDailyQuestions,
		PremiumDailyQuestions: cfg.PremiumDailyQuestions,
	})
	go svc.Run(ctx)

	limiter := ratelimiter.NewIPRateLimiter(10, time.Minute, ratelimiter.CleanupOpts{
		TTL:      10 * time.Minute,
		Interval: time.Minute,
	})
	defer limiter.Stop()

	router := handler.NewRouter(handler.Deps{
		Store:          dbQueries,
		Chat:           svc,
		Hub:            hub,
		Auth:           auth.DefaultSettings(cfg.JWTSecret, cfg.JWTIssuer),
		AllowedOrigins: cfg.AllowedOrigins,
		Limit:          limiter.Middleware,
		PanelToken:     cfg.PanelToken,
	})

	// WriteTimeout stays zero: websocket and SSE responses are long-lived
	// and oracle answers can take a while.
	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		log.Printf("Server starting at 0.0.0.0:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutdown signal received; shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println(err)
	}

	svc.Close()

	log.Println("Server stopped")
}

// migrate brings the schema up to date with the embedded goose migrations.
func migrate(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(schema.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, ".")
}
