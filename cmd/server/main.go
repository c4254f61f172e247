// cmd/server/main.go
package main

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vendaflow/automation-service/internal/bugsink"
	"github.com/vendaflow/automation-service/internal/config"
	"github.com/vendaflow/automation-service/internal/controller"
	"github.com/vendaflow/automation-service/internal/db"
	"github.com/vendaflow/automation-service/internal/metrics"
	"github.com/vendaflow/automation-service/internal/rabbit"
	"github.com/vendaflow/automation-service/internal/repository"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, relying on OS environment variables")
	}
	config.Init()
	cfg := config.C()

	if err := bugsink.Init(cfg.SentryDSN, cfg.Environment, "server"); err != nil {
		log.Warn().Err(err).Msg("error tracking disabled")
	}
	defer bugsink.Flush()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	rb, err := rabbit.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}
	defer rb.Close()

	queueRepo := &repository.QueueItemRepository{DB: conn}
	auditRepo := &repository.AuditLogRepository{DB: conn}
	blacklistRepo := &repository.BlacklistRepository{DB: conn}

	automationController := &controller.AutomationController{
		Queue:             queueRepo,
		Audit:             auditRepo,
		Runs:              rb,
		DefaultBatchSize:  cfg.BatchSize,
		DefaultMaxRetries: cfg.MaxRetries,
	}
	blacklistController := &controller.BlacklistController{Repo: blacklistRepo}

	r := chi.NewRouter()

	r.Post("/automation/run", automationController.TriggerRun)
	r.Get("/automation/queue", automationController.ListQueue)
	r.Get("/automation/items/{id}/log", automationController.ItemLog)

	r.Get("/blacklist", blacklistController.List)
	r.Post("/blacklist", blacklistController.Create)
	r.Delete("/blacklist/{id}", blacklistController.Delete)

	r.Get("/metrics", metrics.Handler)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("server listening")
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
