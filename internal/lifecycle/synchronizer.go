package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"nsp-alarm-correlator/internal/cache"
	"nsp-alarm-correlator/internal/models"
)

// Store is the durable alarm store the synchronizer reconciles against.
// UpsertActive must be idempotent by alarm_id; ClearActive must delete the
// active row and archive its payload in one all-or-nothing unit, reporting
// whether a row was archived.
type Store interface {
	UpsertActive(ctx context.Context, alarm *models.AlarmRecord) error
	ClearActive(ctx context.Context, alarmID string) (bool, error)
}

// Outcome reports what one lifecycle event did. Dropped and Ignored are not
// errors: malformed events and delete-type events are absorbed silently.
type Outcome int

const (
	// OutcomeDropped means the event was malformed and nothing happened.
	OutcomeDropped Outcome = iota
	// OutcomeIgnored means a delete-type event arrived; it mutates
	// neither the store nor the cache.
	OutcomeIgnored
	// OutcomeUpserted means the active row and the cache were updated.
	OutcomeUpserted
	// OutcomeCleared means the alarm was evicted from the cache and its
	// active row moved to history.
	OutcomeCleared
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDropped:
		return "dropped"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeUpserted:
		return "upserted"
	case OutcomeCleared:
		return "cleared"
	}
	return "unknown"
}

// Synchronizer applies one normalized alarm lifecycle event to the durable
// store and the correlation cache:
//
//   - alarm-create           → upsert active row, then cache upsert
//   - alarm-change (CLEAR)   → cache evict, then move row to history
//   - alarm-change (others)  → upsert active row, then cache upsert
//   - alarm-delete           → ignored
//
// The ordering is asymmetric. For create/change the cache is only
// updated after the durable write succeeded, so the cache never claims
// an alarm that failed to persist. For clear the cache is evicted before
// the durable delete is issued, so a cleared root cause stops suppressing
// derivatives immediately; if the delete then fails the eviction is not
// rolled back. That narrow window is accepted behavior.
type Synchronizer struct {
	store  Store
	cache  *cache.AlarmCache
	logger *zap.Logger
}

// NewSynchronizer creates a new lifecycle synchronizer.
func NewSynchronizer(store Store, alarmCache *cache.AlarmCache, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		store:  store,
		cache:  alarmCache,
		logger: logger,
	}
}

// Apply reconciles one event against the store and the cache. A nil error
// with OutcomeDropped/OutcomeIgnored means the event was absorbed without
// any mutation. A non-nil error means the durable write failed and the
// caller should surface it; for clear events the cache eviction has already
// happened by then.
func (s *Synchronizer) Apply(ctx context.Context, alarm *models.AlarmRecord) (Outcome, error) {
	if alarm == nil || alarm.AlarmID == "" || alarm.EventType == "" {
		return OutcomeDropped, nil
	}

	if alarm.EventType == models.EventDelete {
		s.logger.Debug("Ignoring alarm-delete event",
			zap.String("alarm_id", alarm.AlarmID),
		)
		return OutcomeIgnored, nil
	}

	if alarm.EventType == models.EventChange && alarm.Severity == models.SeverityClear {
		return s.applyClear(ctx, alarm)
	}

	if alarm.EventType != models.EventCreate && alarm.EventType != models.EventChange {
		return OutcomeDropped, nil
	}

	// Safety guard
	if alarm.AlarmName == "" || alarm.NEName == "" {
		return OutcomeDropped, nil
	}

	if err := s.store.UpsertActive(ctx, alarm); err != nil {
		return OutcomeDropped, fmt.Errorf("failed to persist alarm %s: %w", alarm.AlarmID, err)
	}

	// Cache update strictly after the durable write succeeded
	s.cache.Upsert(*alarm)

	s.logger.Debug("Upserted active alarm",
		zap.String("alarm_id", alarm.AlarmID),
		zap.String("event_type", alarm.EventType),
		zap.String("severity", alarm.Severity),
	)

	return OutcomeUpserted, nil
}

func (s *Synchronizer) applyClear(ctx context.Context, alarm *models.AlarmRecord) (Outcome, error) {
	// Evict before the durable delete is issued, so suppression stops
	// immediately. Not compensated if the delete fails.
	s.cache.Evict(alarm.AlarmID)

	archived, err := s.store.ClearActive(ctx, alarm.AlarmID)
	if err != nil {
		return OutcomeDropped, fmt.Errorf("failed to clear alarm %s: %w", alarm.AlarmID, err)
	}

	s.logger.Debug("Cleared alarm",
		zap.String("alarm_id", alarm.AlarmID),
		zap.Bool("archived", archived),
	)

	return OutcomeCleared, nil
}
