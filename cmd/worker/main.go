package main

import (
	"os"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/greenroute/fieldcrm/internal/common"
	"github.com/greenroute/fieldcrm/internal/config"
	"github.com/greenroute/fieldcrm/internal/notify"
	"github.com/greenroute/fieldcrm/internal/obs"
)

// The worker drains the notification queue. It is deliberately separate
// from the API process: a slow mail provider slows this binary, not the
// request path that produced the events.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Str("component", "worker").Logger()

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	var mailer common.EmailSender = common.NopEmailSender{}
	opsAddress := envOrDefault("NOTIFY_EMAIL_TO", "")

	srv := asynq.NewServer(asynqOpt, asynq.Config{
		Concurrency: cfg.NotifyConcurrency,
		Queues:      map[string]int{cfg.NotifyQueue: 1},
	})

	mux := asynq.NewServeMux()
	emailHandler := &notify.EmailHandler{Email: mailer, To: opsAddress, Log: logger}
	emailHandler.Register(mux)

	logger.Info().Str("queue", cfg.NotifyQueue).Int("concurrency", cfg.NotifyConcurrency).Msg("worker starting")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker exited unexpectedly")
	}
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
