package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vndocker/pos-AI-community/activity"
	audithook "github.com/vndocker/pos-AI-community/audit_hook"
	"github.com/vndocker/pos-AI-community/config"
	"github.com/vndocker/pos-AI-community/store"
	"github.com/vndocker/pos-AI-community/store/memory"
	"github.com/vndocker/pos-AI-community/store/postgres"
	"github.com/vndocker/pos-AI-community/store/redis"
)

// openStore connects the configured backend. The returned func releases
// its connections.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, func() error, error) {
	switch cfg.Store {
	case config.StoreRedis:
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		s := redis.New(rdb, redis.WithLogger(logger))
		if err := s.Ping(ctx); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return s, rdb.Close, nil
	case config.StorePostgres:
		s, err := postgres.New(ctx, cfg.DatabaseURL, postgres.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		s := memory.New()
		return s, s.Close, nil
	}
}

// newActivitySet builds the production activities: Turnstile for bot
// checks and SMTP delivery, or the log mailer when mail is not configured.
func newActivitySet(cfg *config.Config, logger *slog.Logger) (*activity.Set, error) {
	secret := cfg.TurnstileSecret
	if secret == "" {
		if !cfg.AllowTestSecret {
			return nil, errors.New("TURNSTILE_SECRET is not set")
		}
		logger.Warn("TURNSTILE_SECRET not set; every bot token passes")
		secret = activity.TurnstileTestSecret
	}
	verifier := activity.NewTurnstileVerifier(secret, activity.WithEndpoint(cfg.TurnstileURL))

	var mailer activity.Mailer
	if smtp, ok := cfg.SMTP(); ok {
		m, err := activity.NewSMTPMailer(smtp)
		if err != nil {
			return nil, err
		}
		mailer = m
	} else {
		logger.Warn("MAIL_USERNAME not set; codes are written to the log")
		mailer = activity.NewLogMailer(logger)
	}

	return activity.NewSet(verifier, mailer,
		activity.WithCodeTTL(cfg.OTPTTL),
		activity.WithLogger(logger),
	), nil
}

// newAuditRecorder publishes to Kafka when brokers are configured and
// logs otherwise.
func newAuditRecorder(cfg *config.Config, logger *slog.Logger) audithook.Recorder {
	if len(cfg.KafkaBrokers) > 0 {
		return audithook.NewKafkaRecorder(cfg.KafkaBrokers, cfg.KafkaAuditTopic)
	}
	return audithook.NewLogRecorder(logger)
}
