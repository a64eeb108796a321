package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"call-transcription-engine/internal/bus"
	"call-transcription-engine/internal/config"
	"call-transcription-engine/internal/events"
	httpapi "call-transcription-engine/internal/http"
	"call-transcription-engine/internal/identity"
	"call-transcription-engine/internal/observability"
	"call-transcription-engine/internal/observability/logging"
	"call-transcription-engine/internal/service/engine"
	"call-transcription-engine/internal/service/stt"
	googlestt "call-transcription-engine/internal/service/stt/google"
	mockstt "call-transcription-engine/internal/service/stt/mock"
	"call-transcription-engine/internal/session"
	"call-transcription-engine/internal/store"
)

func main() {
	cfg := config.Load()

	logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		TimeFormat: time.RFC3339,
	})

	obs := observability.NewServer(cfg.MetricsAddr)
	obs.Start()

	st, err := store.New(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("failed to open conversation store")
	}

	busClient, err := bus.Connect(cfg.NatsURL, cfg.NatsToken, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.NatsURL).Msg("failed to connect to NATS")
	}

	// Kafka feed with separate topics for transcripts and summaries
	feed := events.New(&events.Config{
		Enabled:          cfg.KafkaEnabled,
		Brokers:          cfg.KafkaBrokers,
		TopicTranscripts: cfg.KafkaTopicTranscripts,
		TopicSummaries:   cfg.KafkaTopicSummaries,
		Principal:        cfg.KafkaPrincipal,
	})
	defer feed.Close()

	transcriber, closeSTT, err := newTranscriber(cfg.STTProvider)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.STTProvider).Msg("failed to create transcriber")
	}
	defer closeSTT()

	registry := session.NewRegistry(session.DefaultTunables(), time.Now)
	dispatcher := bus.NewDispatcher(busClient, log.Logger)

	eng := engine.New(registry, transcriber, dispatcher, st, feed, log.Logger, engine.Options{
		STTTimeout:  cfg.STTTimeout,
		IdleTimeout: cfg.IdleTimeout,
		Label:       identity.SpeakerLabel,
	})
	eng.StartJanitor(cfg.JanitorInterval)

	consumer := bus.NewConsumer(eng, log.Logger)
	if err := consumer.Start(busClient); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to conversation subjects")
	}

	api := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      httpapi.NewRouter(st),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", api.Addr).Msg("Call Transcription Engine API started")
		if err := api.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("api serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")

	// Stop taking new work before draining sessions.
	busClient.Close()
	eng.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := api.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("api shutdown error")
	}
	if err := obs.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("observability shutdown error")
	}
}

func newTranscriber(provider string) (stt.Transcriber, func(), error) {
	switch provider {
	case "google":
		adapter, err := googlestt.New(context.Background())
		if err != nil {
			return nil, nil, err
		}
		return adapter, func() { _ = adapter.Close() }, nil
	default:
		return mockstt.New(), func() {}, nil
	}
}
