package cache

import (
	"sync"

	"nsp-alarm-correlator/internal/models"
)

// Category identifies one of the root-cause partitions tracked by the cache.
type Category string

const (
	CategoryPowerIssue   Category = "power-issue"
	CategoryLossOfSignal Category = "loss-of-signal"
)

// AlarmCache holds the currently-active root-cause alarms, partitioned into
// two categories keyed by alarm_id. It never stores derivative or cleared
// alarms. The cache has no persistence of its own: it is seeded from the
// active-alarm table at startup and mutated incrementally per lifecycle
// event afterwards.
//
// One mutex covers both categories: a single lifecycle event can touch
// either or both, and readers must observe a consistent view. No I/O ever
// happens while the lock is held.
type AlarmCache struct {
	mu sync.Mutex

	activePowerIssues map[string]models.AlarmRecord
	activeLOSAlarms   map[string]models.AlarmRecord
}

// New creates an empty alarm cache.
func New() *AlarmCache {
	return &AlarmCache{
		activePowerIssues: make(map[string]models.AlarmRecord),
		activeLOSAlarms:   make(map[string]models.AlarmRecord),
	}
}

// Load replaces the whole content of one category, keyed by alarm_id.
// Startup only: it discards whatever the category held before, so it must
// run to completion before event consumption starts.
func (c *AlarmCache) Load(category Category, alarms []models.AlarmRecord) {
	entries := make(map[string]models.AlarmRecord, len(alarms))
	for _, a := range alarms {
		entries[a.AlarmID] = a.Clone()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch category {
	case CategoryPowerIssue:
		c.activePowerIssues = entries
	case CategoryLossOfSignal:
		c.activeLOSAlarms = entries
	}
}

// Snapshot returns an independent point-in-time copy of one category.
// The returned records do not alias cache storage: later cache mutations
// cannot change a snapshot already handed out, and mutating a returned
// record cannot change the cache. Order is unspecified.
func (c *AlarmCache) Snapshot(category Category) []models.AlarmRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	var entries map[string]models.AlarmRecord
	switch category {
	case CategoryPowerIssue:
		entries = c.activePowerIssues
	case CategoryLossOfSignal:
		entries = c.activeLOSAlarms
	}

	out := make([]models.AlarmRecord, 0, len(entries))
	for _, a := range entries {
		out = append(out, a.Clone())
	}
	return out
}

// Upsert evaluates both category predicates against the record and inserts
// or overwrites the entry in every category that matches. A record matching
// no predicate is not stored anywhere.
func (c *AlarmCache) Upsert(alarm models.AlarmRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if matchesPowerIssue(alarm) {
		c.activePowerIssues[alarm.AlarmID] = alarm.Clone()
	}

	if matchesLossOfSignal(alarm) {
		c.activeLOSAlarms[alarm.AlarmID] = alarm.Clone()
	}
}

// Evict removes the alarm from both categories. No-op if absent.
func (c *AlarmCache) Evict(alarmID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.activePowerIssues, alarmID)
	delete(c.activeLOSAlarms, alarmID)
}

func matchesPowerIssue(alarm models.AlarmRecord) bool {
	return alarm.AlarmName == models.AlarmNamePowerIssue &&
		alarm.ObjectType == models.ObjectTypePhysicalConnection
}

func matchesLossOfSignal(alarm models.AlarmRecord) bool {
	return alarm.AlarmName == models.AlarmNameLossOfSignalOCH &&
		(alarm.Severity == models.SeverityCritical || alarm.Severity == models.SeverityMajor)
}
