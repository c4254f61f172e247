// cmd/worker/main.go
package main

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"

	"github.com/vendaflow/automation-service/internal/bugsink"
	"github.com/vendaflow/automation-service/internal/config"
	"github.com/vendaflow/automation-service/internal/db"
	"github.com/vendaflow/automation-service/internal/dispatch"
	"github.com/vendaflow/automation-service/internal/model"
	"github.com/vendaflow/automation-service/internal/processor"
	"github.com/vendaflow/automation-service/internal/provider"
	"github.com/vendaflow/automation-service/internal/rabbit"
	"github.com/vendaflow/automation-service/internal/repository"
)

const rabbitReconnectDelay = 5 * time.Second

// consumeLoop drains run request deliveries and asks redial for a fresh
// stream whenever the current one closes. A nil stream from redial ends the
// loop.
func consumeLoop(deliveries <-chan amqp.Delivery, redial func() <-chan amqp.Delivery, handle func(amqp.Delivery)) {
	for deliveries != nil {
		for d := range deliveries {
			handle(d)
		}
		deliveries = redial()
	}
}

// runRequestHandler decodes one queued run trigger, fills in the worker
// defaults and executes the run. Undecodable payloads are acked and dropped.
func runRequestHandler(run func(maxBatchSize, maxRetries int), defaultBatchSize, defaultMaxRetries int) func(amqp.Delivery) {
	return func(d amqp.Delivery) {
		var req rabbit.RunRequest
		if err := json.Unmarshal(d.Body, &req); err != nil {
			log.Warn().Err(err).Msg("invalid run request, dropping")
			d.Ack(false)
			return
		}
		if req.MaxBatchSize <= 0 {
			req.MaxBatchSize = defaultBatchSize
		}
		if req.MaxRetries <= 0 {
			req.MaxRetries = defaultMaxRetries
		}
		log.Info().Int("max_batch_size", req.MaxBatchSize).Msg("run requested via queue")
		run(req.MaxBatchSize, req.MaxRetries)
		d.Ack(false)
	}
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, relying on OS environment variables")
	}
	config.Init()
	cfg := config.C()

	if err := bugsink.Init(cfg.SentryDSN, cfg.Environment, "worker"); err != nil {
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

	// The broker client is replaced on reconnect, so every use goes through
	// the mutex.
	var rbMu sync.Mutex
	rbCur := rb
	defer func() {
		rbMu.Lock()
		defer rbMu.Unlock()
		rbCur.Close()
	}()
	publishResult := func(res any) error {
		rbMu.Lock()
		defer rbMu.Unlock()
		return rbCur.PublishResult(res)
	}

	procConfig := processor.DefaultConfig()
	if cfg.DispatchTimeout > 0 {
		procConfig.DispatchTimeout = cfg.DispatchTimeout
	}

	proc := &processor.Processor{
		Queue:     &repository.QueueItemRepository{DB: conn},
		Flows:     &repository.FlowRepository{DB: conn},
		Deals:     &repository.DealRepository{DB: conn},
		Contacts:  &repository.ContactRepository{DB: conn},
		Blacklist: &repository.BlacklistRepository{DB: conn},
		Profiles:  &repository.ProfileRepository{DB: conn},
		Audit:     &repository.AuditLogRepository{DB: conn},
		Dispatchers: map[model.Channel]dispatch.Dispatcher{
			model.ChannelChat:  &dispatch.ChatDispatcher{Client: provider.NewChatClient(cfg.ChatAPIURL, cfg.ChatAPIKey)},
			model.ChannelEmail: &dispatch.EmailDispatcher{Client: provider.NewMailClient(cfg.MailAPIURL, cfg.MailAPIKey)},
		},
		Config: procConfig,
	}

	run := func(maxBatchSize, maxRetries int) {
		res, err := proc.RunOnce(maxBatchSize, maxRetries)
		if err != nil {
			if errors.Is(err, processor.ErrRunInProgress) {
				log.Debug().Msg("run skipped, another run holds the lock")
				return
			}
			bugsink.CaptureError(err, map[string]string{"component": "worker"})
			log.Error().Err(err).Msg("automation run failed")
			return
		}
		if err := publishResult(res); err != nil {
			log.Warn().Err(err).Msg("failed to publish batch result")
		}
	}

	redial := func() <-chan amqp.Delivery {
		log.Warn().Msg("run request stream closed, reconnecting to rabbitmq")
		for {
			time.Sleep(rabbitReconnectDelay)
			next, err := rabbit.Dial(cfg.RabbitURL)
			if err != nil {
				log.Error().Err(err).Msg("rabbitmq reconnect failed")
				continue
			}
			deliveries, err := next.ConsumeRunRequests()
			if err != nil {
				log.Error().Err(err).Msg("failed to consume run requests after reconnect")
				next.Close()
				continue
			}
			rbMu.Lock()
			old := rbCur
			rbCur = next
			rbMu.Unlock()
			old.Close()
			log.Info().Msg("rabbitmq reconnected")
			return deliveries
		}
	}

	deliveries, err := rb.ConsumeRunRequests()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to consume run requests")
	}
	go consumeLoop(deliveries, redial, runRequestHandler(run, cfg.BatchSize, cfg.MaxRetries))

	interval := cfg.Interval
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	log.Info().Dur("interval", interval).Msg("worker running")

	run(cfg.BatchSize, cfg.MaxRetries)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		run(cfg.BatchSize, cfg.MaxRetries)
	}
}
