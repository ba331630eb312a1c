package normalizer

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nsp-alarm-correlator/internal/cache"
	"nsp-alarm-correlator/internal/correlate"
	"nsp-alarm-correlator/internal/models"
)

func notification(eventType, alarmBody string) []byte {
	return []byte(fmt.Sprintf(`{
		"data": {
			"ietf-restconf:notification": {
				"eventTime": "2023-11-14T22:13:20Z",
				"nsp-fault:%s": %s
			}
		}
	}`, eventType, alarmBody))
}

func keepEverything() correlate.Rules {
	rules := correlate.DefaultRules()
	rules.ShouldDrop = func(correlate.Candidate, []models.AlarmRecord, []models.AlarmRecord) bool {
		return false
	}
	return rules
}

func TestNormalize_AssemblesCanonicalRecord(t *testing.T) {
	pipeline := NewPipeline(cache.New(), keepEverything(), zap.NewNop())

	payload := notification("alarm-create", `{
		"objectId": "A1",
		"alarmName": "Power Issue",
		"specificProblem": "rectifier failure",
		"probableCause": "powerProblem",
		"neName": "NE1",
		"neId": "ne-0001",
		"sourceType": "wdm",
		"severity": "major",
		"affectedObject": "fdn:realm:conn:port-1",
		"affectedObjectName": "PORT-1",
		"affectedObjectType": "PHYSICALCONNECTION",
		"firstTimeDetected": 1700000000000,
		"lastTimeDetected": "1700000000000",
		"acknowledged": false,
		"serviceAffecting": true,
		"implicitlyCleared": false
	}`)

	record, err := pipeline.Normalize(payload)

	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, models.EventCreate, record.EventType)
	assert.Equal(t, "2023-11-14T22:13:20Z", record.EventTime)
	assert.Equal(t, "A1", record.AlarmID)
	assert.Equal(t, models.AlarmNamePowerIssue, record.AlarmName)
	assert.Equal(t, "rectifier failure", record.SpecificProblem)
	assert.Equal(t, "powerProblem", record.ProbableCause)
	assert.Equal(t, "NE1", record.NEName)
	assert.Equal(t, "ne-0001", record.NEID)
	assert.Equal(t, "wdm", record.Source)
	assert.Equal(t, "major", record.SeverityRaw)
	assert.Equal(t, models.SeverityMajor, record.Severity)
	assert.Equal(t, models.ObjectTypePhysicalConnection, record.ObjectType)
	assert.Equal(t, "PORT-1", record.AffectedObjectName)
	assert.Equal(t, "fdn:realm:conn:port-1", record.ObjectDetails["fdn"])

	want := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	require.NotNil(t, record.FirstDetected)
	require.NotNil(t, record.LastDetected)
	assert.Equal(t, want, *record.FirstDetected)
	assert.Equal(t, want, *record.LastDetected)

	require.NotNil(t, record.ServiceAffecting)
	assert.True(t, *record.ServiceAffecting)
	assert.False(t, record.Acknowledged)
}

func TestNormalize_PredicateReceivesSnapshots(t *testing.T) {
	alarmCache := cache.New()
	alarmCache.Upsert(models.AlarmRecord{
		AlarmID:    "P1",
		AlarmName:  models.AlarmNamePowerIssue,
		ObjectType: models.ObjectTypePhysicalConnection,
		NEName:     "NE1",
		Severity:   models.SeverityMajor,
	})

	var seenPower, seenLOS []models.AlarmRecord
	var seen correlate.Candidate

	rules := correlate.DefaultRules()
	rules.ShouldDrop = func(c correlate.Candidate, power, los []models.AlarmRecord) bool {
		seen = c
		seenPower = power
		seenLOS = los
		return false
	}

	pipeline := NewPipeline(alarmCache, rules, zap.NewNop())

	payload := notification("alarm-create", `{
		"objectId": "A2",
		"alarmName": "Link Down",
		"neName": "NE1",
		"severity": "critical"
	}`)

	_, err := pipeline.Normalize(payload)
	require.NoError(t, err)

	require.Len(t, seenPower, 1)
	assert.Equal(t, "P1", seenPower[0].AlarmID)
	assert.Empty(t, seenLOS)
	assert.Equal(t, "Link Down", seen.AlarmName)
	assert.Equal(t, models.SeverityCritical, seen.Severity)

	// The snapshot handed to the predicate must be detached from the cache
	seenPower[0].NEName = "mutated"
	fresh := alarmCache.Snapshot(cache.CategoryPowerIssue)
	require.Len(t, fresh, 1)
	assert.Equal(t, "NE1", fresh[0].NEName)
}

func TestNormalize_DropSignalProducesNothing(t *testing.T) {
	rules := correlate.DefaultRules()
	rules.ShouldDrop = func(correlate.Candidate, []models.AlarmRecord, []models.AlarmRecord) bool {
		return true
	}

	pipeline := NewPipeline(cache.New(), rules, zap.NewNop())

	record, err := pipeline.Normalize(notification("alarm-create", `{"objectId": "A1", "alarmName": "Link Down", "neName": "NE1"}`))

	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestNormalize_MalformedEnvelopesAreDropped(t *testing.T) {
	pipeline := NewPipeline(cache.New(), keepEverything(), zap.NewNop())

	tests := []struct {
		name    string
		payload []byte
	}{
		{"not json", []byte(`{{{{`)},
		{"empty object", []byte(`{}`)},
		{"no notification", []byte(`{"data": {}}`)},
		{"no tagged alarm", []byte(`{"data": {"ietf-restconf:notification": {"eventTime": "2023-11-14T22:13:20Z"}}}`)},
		{"alarm body not an object", notification("alarm-create", `"just-a-string"`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := pipeline.Normalize(tt.payload)
			require.NoError(t, err)
			assert.Nil(t, record)
		})
	}
}

func TestNormalize_UnparseableTimestampsBecomeNil(t *testing.T) {
	pipeline := NewPipeline(cache.New(), keepEverything(), zap.NewNop())

	payload := notification("alarm-change", `{
		"objectId": "A1",
		"alarmName": "Link Down",
		"neName": "NE1",
		"severity": "minor",
		"firstTimeDetected": "soon",
		"lastTimeDetected": {"nanos": 4}
	}`)

	record, err := pipeline.Normalize(payload)

	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Nil(t, record.FirstDetected)
	assert.Nil(t, record.LastDetected)
	assert.Equal(t, models.EventChange, record.EventType)
}
