package normalizer

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"nsp-alarm-correlator/internal/cache"
	"nsp-alarm-correlator/internal/correlate"
	"nsp-alarm-correlator/internal/models"
)

// eventTypePrefix tags the single alarm payload inside a notification; the
// rest of the key is the lifecycle event type.
const eventTypePrefix = "nsp-fault:"

// envelope is the wire shape of one NSP notification.
type envelope struct {
	Data struct {
		Notification map[string]json.RawMessage `json:"ietf-restconf:notification"`
	} `json:"data"`
}

// rawAlarm is the alarm body as the platform emits it, camelCase fields and
// loosely-typed timestamps included.
type rawAlarm struct {
	ObjectID           string          `json:"objectId"`
	AlarmName          string          `json:"alarmName"`
	SpecificProblem    string          `json:"specificProblem"`
	ProbableCause      string          `json:"probableCause"`
	NEName             string          `json:"neName"`
	NEID               string          `json:"neId"`
	SourceType         string          `json:"sourceType"`
	Severity           string          `json:"severity"`
	AffectedObject     string          `json:"affectedObject"`
	AffectedObjectName string          `json:"affectedObjectName"`
	AffectedObjectType string          `json:"affectedObjectType"`
	FirstTimeDetected  json.RawMessage `json:"firstTimeDetected"`
	LastTimeDetected   json.RawMessage `json:"lastTimeDetected"`
	Acknowledged       bool            `json:"acknowledged"`
	ServiceAffecting   *bool           `json:"serviceAffecting"`
	ImplicitlyCleared  bool            `json:"implicitlyCleared"`
}

// Pipeline turns one raw notification into a canonical AlarmRecord, or into
// nothing when the notification is malformed or judged a derivative of an
// active root cause. It reads correlation context from cache snapshots only,
// never from the database.
type Pipeline struct {
	cache  *cache.AlarmCache
	rules  correlate.Rules
	logger *zap.Logger
}

// NewPipeline creates a new decision pipeline.
func NewPipeline(alarmCache *cache.AlarmCache, rules correlate.Rules, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cache:  alarmCache,
		rules:  rules,
		logger: logger,
	}
}

// Normalize parses, classifies and correlates one notification payload.
// nil, nil means the notification was dropped: malformed input and
// suppressed derivatives are noise, not faults.
func (p *Pipeline) Normalize(payload []byte) (*models.AlarmRecord, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		p.logger.Debug("Discarding unparseable notification", zap.Error(err))
		return nil, nil
	}

	var (
		eventType string
		eventTime string
		body      json.RawMessage
	)
	for key, value := range env.Data.Notification {
		if key == "eventTime" {
			_ = json.Unmarshal(value, &eventTime)
			continue
		}
		if strings.HasPrefix(key, eventTypePrefix) {
			eventType = strings.TrimPrefix(key, eventTypePrefix)
			body = value
		}
	}

	if eventType == "" || body == nil {
		return nil, nil
	}

	var alarm rawAlarm
	if err := json.Unmarshal(body, &alarm); err != nil {
		p.logger.Debug("Discarding notification with malformed alarm body",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return nil, nil
	}

	severity := p.rules.MapSeverity(alarm.Severity, alarm.SpecificProblem)
	firstDetected := EpochMillis(alarm.FirstTimeDetected)
	lastDetected := EpochMillis(alarm.LastTimeDetected)

	// Correlation context comes from cache snapshots: the predicate sees a
	// fixed point in time and cannot observe or cause cache mutations.
	activePowerIssues := p.cache.Snapshot(cache.CategoryPowerIssue)
	activeLOSAlarms := p.cache.Snapshot(cache.CategoryLossOfSignal)

	candidate := correlate.Candidate{
		AlarmName:          alarm.AlarmName,
		SpecificProblem:    alarm.SpecificProblem,
		ProbableCause:      alarm.ProbableCause,
		NEName:             alarm.NEName,
		NEID:               alarm.NEID,
		Source:             alarm.SourceType,
		ObjectType:         alarm.AffectedObjectType,
		Severity:           severity,
		AffectedObjectName: alarm.AffectedObjectName,
		FirstDetected:      firstDetected,
	}

	if p.rules.ShouldDrop(candidate, activePowerIssues, activeLOSAlarms) {
		p.logger.Debug("Suppressed derivative alarm",
			zap.String("alarm_id", alarm.ObjectID),
			zap.String("alarm_name", alarm.AlarmName),
			zap.String("ne_name", alarm.NEName),
		)
		return nil, nil
	}

	return &models.AlarmRecord{
		EventType: eventType,
		EventTime: eventTime,

		AlarmID:         alarm.ObjectID,
		AlarmName:       alarm.AlarmName,
		SpecificProblem: alarm.SpecificProblem,
		ProbableCause:   alarm.ProbableCause,

		NEName: alarm.NEName,
		NEID:   alarm.NEID,
		Source: alarm.SourceType,

		SeverityRaw: alarm.Severity,
		Severity:    severity,

		AffectedObject:     alarm.AffectedObject,
		AffectedObjectName: alarm.AffectedObjectName,
		ObjectType:         alarm.AffectedObjectType,
		ObjectDetails:      p.rules.ParseObject(alarm.AffectedObject),

		FirstDetected: firstDetected,
		LastDetected:  lastDetected,

		Acknowledged:      alarm.Acknowledged,
		ServiceAffecting:  alarm.ServiceAffecting,
		ImplicitlyCleared: alarm.ImplicitlyCleared,
	}, nil
}
