package main

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"pairpad/internal/api"
	"pairpad/internal/config"
	"pairpad/internal/metrics"
	"pairpad/internal/routers"
	"pairpad/internal/session"
	"pairpad/internal/store"
	"pairpad/internal/utils"
)

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		return store.OpenPostgres(cfg.DatabaseURL)
	case config.BackendRedis:
		return store.OpenRedis(cfg.RedisAddr)
	default:
		return store.OpenSQLite(cfg.SQLitePath)
	}
}

func main() {
	logger := utils.NewLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	st, err := openStore(cfg)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer st.Close()
	logger.Info("store ready", zap.String("backend", cfg.StoreBackend))

	registry := session.NewRegistry()
	gateway := session.NewGateway(registry, st, logger)
	handlers := api.NewHandlers(logger, gateway, []byte(cfg.JWTSecret))

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		metrics.Middleware,
	)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())
	r.Mount("/", routers.New(handlers))

	addr := ":" + cfg.Port
	log.Printf("pairpad listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}
