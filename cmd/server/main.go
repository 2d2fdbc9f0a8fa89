package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/michalfoune/rizma-heygen/internal/avatar"
	"github.com/michalfoune/rizma-heygen/internal/config"
	"github.com/michalfoune/rizma-heygen/internal/evaluate"
	"github.com/michalfoune/rizma-heygen/internal/events"
	"github.com/michalfoune/rizma-heygen/internal/guardrails"
	"github.com/michalfoune/rizma-heygen/internal/httpserver"
	"github.com/michalfoune/rizma-heygen/internal/interview"
	"github.com/michalfoune/rizma-heygen/internal/llm"
	"github.com/michalfoune/rizma-heygen/internal/logging"
	"github.com/michalfoune/rizma-heygen/internal/memory"
	"github.com/michalfoune/rizma-heygen/internal/metrics"
	"github.com/michalfoune/rizma-heygen/internal/persona"
)

func main() {
	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	personas := persona.NewRegistry()

	// Transcript store: Redis when configured, in-process otherwise.
	var store interview.Memory
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisStore, err := memory.NewRedis(ctx, cfg.RedisURL, logging.Component("memory"))
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, falling back to in-memory storage")
			store = memory.NewInMemory()
		} else {
			defer redisStore.Close()
			store = redisStore
		}
	} else {
		store = memory.NewInMemory()
	}

	publisher := events.New(&events.Config{
		Brokers:          cfg.KafkaBrokers,
		TopicTurns:       cfg.KafkaTopicTurns,
		TopicTransitions: cfg.KafkaTopicTransitions,
		Enabled:          cfg.KafkaEnabled,
	}, logging.Component("events"))
	defer publisher.Close()

	orch := interview.New(
		interview.Config{GreetingCap: cfg.GreetingCap, TechnicalCap: cfg.TechnicalCap},
		evaluate.New(cfg.PassingScore, logging.Component("evaluate")),
		guardrails.New(cfg.StrictGuardrails, logging.Component("guardrails")),
		store,
		llm.NewClient(cfg.CerebrasKey, cfg.CerebrasModelID, personas, logging.Component("llm")),
		personas,
		logging.Component("interview"),
		publisher,
		metrics.Default,
	)

	avatars := avatar.NewClient(cfg.HeyGenKey, logging.Component("avatar"))
	srv := httpserver.New(orch, avatars, personas, metrics.Default, logging.Component("http"))

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start(cfg.HTTPAddress)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
