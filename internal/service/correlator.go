package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"nsp-alarm-correlator/internal/cache"
	"nsp-alarm-correlator/internal/config"
	"nsp-alarm-correlator/internal/consumer"
	"nsp-alarm-correlator/internal/correlate"
	"nsp-alarm-correlator/internal/database"
	"nsp-alarm-correlator/internal/lifecycle"
	"nsp-alarm-correlator/internal/metrics"
	"nsp-alarm-correlator/internal/normalizer"
	"nsp-alarm-correlator/internal/nsp"
	"nsp-alarm-correlator/internal/repository"
	"nsp-alarm-correlator/internal/streams"
)

// CorrelatorService is the composition root: it owns the store and stream
// connections, the correlation cache and every component wired around them.
// The cache is constructed here and passed by handle; there is no ambient
// global state.
type CorrelatorService struct {
	config        *config.Config
	logger        *zap.Logger
	db            *sql.DB
	redisClient   *redis.Client
	repo          *repository.AlarmRepository
	alarmCache    *cache.AlarmCache
	pipeline      *normalizer.Pipeline
	synchronizer  *lifecycle.Synchronizer
	consumer      *consumer.NotificationConsumer
	tokens        *nsp.TokenManager
	subscriptions *nsp.SubscriptionClient
	subscription  *nsp.Subscription
}

// NewCorrelatorService wires the alarm correlator.
func NewCorrelatorService(cfg *config.Config, logger *zap.Logger) (*CorrelatorService, error) {
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient := streams.NewClient(&cfg.Redis)
	if err := streams.Ping(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	metrics.Init()

	repo := repository.NewAlarmRepository(db, logger)
	alarmCache := cache.New()
	pipeline := normalizer.NewPipeline(alarmCache, correlate.DefaultRules(), logger)
	synchronizer := lifecycle.NewSynchronizer(repo, alarmCache, logger)

	notificationConsumer := consumer.NewNotificationConsumer(
		redisClient,
		pipeline,
		synchronizer,
		logger,
		cfg.Consumer.Stream,
		cfg.Consumer.Group,
		cfg.Consumer.Name,
		int64(cfg.Consumer.BatchSize),
	)

	svc := &CorrelatorService{
		config:       cfg,
		logger:       logger,
		db:           db,
		redisClient:  redisClient,
		repo:         repo,
		alarmCache:   alarmCache,
		pipeline:     pipeline,
		synchronizer: synchronizer,
		consumer:     notificationConsumer,
	}

	if cfg.NSP.Enabled {
		svc.tokens = nsp.NewTokenManager(&cfg.NSP, logger)
		svc.subscriptions = nsp.NewSubscriptionClient(svc.tokens, &cfg.NSP, logger)
	}

	return svc, nil
}

// Start seeds the correlation cache from the durable store, establishes the
// platform subscription when enabled, and consumes notifications until the
// context is canceled. The cache seed completes before the first message is
// read.
func (s *CorrelatorService) Start(ctx context.Context) error {
	s.logger.Info("Starting alarm correlator service",
		zap.String("stream", s.config.Consumer.Stream),
		zap.Bool("nsp_enabled", s.config.NSP.Enabled),
	)

	if err := s.seedCache(ctx); err != nil {
		return fmt.Errorf("failed to seed correlation cache: %w", err)
	}

	if s.subscriptions != nil {
		sub, err := s.subscriptions.Create(ctx)
		if err != nil {
			return fmt.Errorf("failed to create notification subscription: %w", err)
		}
		s.subscription = sub

		interval := time.Duration(s.config.NSP.RenewInterval) * time.Second
		go s.subscriptions.RunRenewal(ctx, sub.ID, interval)
	}

	return s.consumer.Start(ctx)
}

// seedCache performs the startup-only bulk load of both categories.
func (s *CorrelatorService) seedCache(ctx context.Context) error {
	powerIssues, err := s.repo.ActivePowerIssues(ctx)
	if err != nil {
		return err
	}
	s.alarmCache.Load(cache.CategoryPowerIssue, powerIssues)

	losAlarms, err := s.repo.ActiveLossOfSignal(ctx)
	if err != nil {
		return err
	}
	s.alarmCache.Load(cache.CategoryLossOfSignal, losAlarms)

	s.logger.Info("Seeded correlation cache",
		zap.Int("power_issues", len(powerIssues)),
		zap.Int("los_alarms", len(losAlarms)),
	)

	return nil
}

// Stop releases the platform subscription and closes the connections.
func (s *CorrelatorService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping alarm correlator service")

	if s.subscriptions != nil && s.subscription != nil {
		if err := s.subscriptions.Delete(ctx, s.subscription.ID); err != nil {
			s.logger.Error("Failed to delete subscription", zap.Error(err))
		}
		s.subscription = nil
	}

	if s.tokens != nil {
		if err := s.tokens.Revoke(ctx); err != nil {
			s.logger.Error("Failed to revoke token", zap.Error(err))
		}
	}

	if s.redisClient != nil {
		if err := streams.Close(s.redisClient); err != nil {
			s.logger.Error("Error closing redis connection", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			s.logger.Error("Error closing database connection", zap.Error(err))
		}
	}

	s.logger.Info("Alarm correlator service stopped")
	return nil
}
