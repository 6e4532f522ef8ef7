package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/recoagua/backend/internal/auth"
	"github.com/recoagua/backend/internal/config"
	"github.com/recoagua/backend/internal/database"
	"github.com/recoagua/backend/internal/events"
	"github.com/recoagua/backend/internal/gamification"
	"github.com/recoagua/backend/internal/logger"
	"github.com/recoagua/backend/internal/middleware"
	"github.com/recoagua/backend/internal/models"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logg.Sync()

	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		logg.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logg.Fatal("Failed to run migrations", "error", err)
	}

	// Event publisher
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RedisAddr != "" {
		publisher, err = events.NewRedisPublisher(logg, cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			logg.Fatal("Failed to connect to redis", "error", err)
		}
	} else {
		logg.Info("REDIS_ADDR not set, gamification events are not published")
	}
	defer publisher.Close()

	// Initialize services and handlers
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	authHandler := auth.NewHandler(db, tokens)

	gamificationService := gamification.NewService(gamification.NewStore(db), gamification.Options{
		ReferencePolicy: gamification.ParseReferencePolicy(cfg.ReferencePolicy),
		LevelBadges:     cfg.LevelBadgesEnabled,
		Publisher:       publisher,
		Logger:          logg,
	})
	gamificationHandler := gamification.NewHandler(gamificationService, logg)

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.RequestID, middleware.AccessLog(logg))
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth(tokens))
	protected.HandleFunc("/auth/me", authHandler.GetCurrentUser).Methods("GET")
	gamificationHandler.Register(protected)

	// Admin routes
	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	gamificationHandler.RegisterAdmin(admin)

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: cfg.CORSAllowCredentials(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logg.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("Server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logg.Error("Graceful shutdown failed", "error", err)
	}
}
