package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nsp-alarm-correlator/internal/models"
)

func powerIssue(id string) models.AlarmRecord {
	return models.AlarmRecord{
		EventType:  models.EventCreate,
		AlarmID:    id,
		AlarmName:  models.AlarmNamePowerIssue,
		ObjectType: models.ObjectTypePhysicalConnection,
		NEName:     "NE1",
		Severity:   models.SeverityMajor,
	}
}

func losAlarm(id, severity string) models.AlarmRecord {
	return models.AlarmRecord{
		EventType: models.EventCreate,
		AlarmID:   id,
		AlarmName: models.AlarmNameLossOfSignalOCH,
		NEName:    "NE2",
		Severity:  severity,
	}
}

func TestUpsert_PowerIssueCategory(t *testing.T) {
	c := New()

	alarm := powerIssue("A1")
	c.Upsert(alarm)

	snapshot := c.Snapshot(CategoryPowerIssue)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "A1", snapshot[0].AlarmID)
	assert.Equal(t, alarm, snapshot[0])

	// No spill into the other category
	assert.Empty(t, c.Snapshot(CategoryLossOfSignal))
}

func TestUpsert_LossOfSignalSeverityGate(t *testing.T) {
	c := New()

	c.Upsert(losAlarm("L1", models.SeverityCritical))
	c.Upsert(losAlarm("L2", models.SeverityMajor))
	c.Upsert(losAlarm("L3", models.SeverityMinor))
	c.Upsert(losAlarm("L4", models.SeverityClear))

	snapshot := c.Snapshot(CategoryLossOfSignal)
	assert.Len(t, snapshot, 2)

	ids := map[string]bool{}
	for _, a := range snapshot {
		ids[a.AlarmID] = true
	}
	assert.True(t, ids["L1"])
	assert.True(t, ids["L2"])
}

func TestUpsert_NoCategoryMatchIsIgnored(t *testing.T) {
	c := New()

	c.Upsert(models.AlarmRecord{
		AlarmID:   "X1",
		AlarmName: "Link Down",
		NEName:    "NE3",
		Severity:  models.SeverityCritical,
	})

	assert.Empty(t, c.Snapshot(CategoryPowerIssue))
	assert.Empty(t, c.Snapshot(CategoryLossOfSignal))
}

func TestUpsert_Idempotent(t *testing.T) {
	c := New()

	alarm := powerIssue("A1")
	c.Upsert(alarm)
	once := c.Snapshot(CategoryPowerIssue)

	c.Upsert(alarm)
	twice := c.Snapshot(CategoryPowerIssue)

	assert.Equal(t, once, twice)
}

func TestUpsert_OverwritesByAlarmID(t *testing.T) {
	c := New()

	c.Upsert(powerIssue("A1"))

	updated := powerIssue("A1")
	updated.Severity = models.SeverityCritical
	c.Upsert(updated)

	snapshot := c.Snapshot(CategoryPowerIssue)
	require.Len(t, snapshot, 1)
	assert.Equal(t, models.SeverityCritical, snapshot[0].Severity)
}

func TestEvict_RemovesFromBothCategories(t *testing.T) {
	c := New()

	c.Upsert(powerIssue("A1"))
	c.Upsert(losAlarm("L1", models.SeverityCritical))

	c.Evict("A1")
	c.Evict("L1")

	assert.Empty(t, c.Snapshot(CategoryPowerIssue))
	assert.Empty(t, c.Snapshot(CategoryLossOfSignal))
}

func TestEvict_AbsentIsNoop(t *testing.T) {
	c := New()

	c.Upsert(powerIssue("A1"))
	before := c.Snapshot(CategoryPowerIssue)

	c.Evict("does-not-exist")

	assert.Equal(t, before, c.Snapshot(CategoryPowerIssue))
}

func TestLoad_ReplacesCategory(t *testing.T) {
	c := New()

	// Pre-existing entry must be discarded by a load
	c.Upsert(powerIssue("stale"))

	r1 := powerIssue("A1")
	r2 := powerIssue("A2")
	c.Load(CategoryPowerIssue, []models.AlarmRecord{r1, r2})

	snapshot := c.Snapshot(CategoryPowerIssue)
	require.Len(t, snapshot, 2)

	ids := map[string]bool{}
	for _, a := range snapshot {
		ids[a.AlarmID] = true
	}
	assert.True(t, ids["A1"])
	assert.True(t, ids["A2"])
	assert.False(t, ids["stale"])

	// Round trip is order independent
	d := New()
	d.Load(CategoryPowerIssue, []models.AlarmRecord{r2, r1})
	assert.ElementsMatch(t, snapshot, d.Snapshot(CategoryPowerIssue))
}

func TestSnapshot_Independence(t *testing.T) {
	c := New()

	alarm := powerIssue("A1")
	alarm.ObjectDetails = map[string]string{"fdn": "fdn:realm:port-1"}
	c.Upsert(alarm)

	snapshot := c.Snapshot(CategoryPowerIssue)
	require.Len(t, snapshot, 1)

	// Mutating the snapshot must not leak back into the cache
	snapshot[0].Severity = models.SeverityClear
	snapshot[0].ObjectDetails["fdn"] = "changed"

	fresh := c.Snapshot(CategoryPowerIssue)
	require.Len(t, fresh, 1)
	assert.Equal(t, models.SeverityMajor, fresh[0].Severity)
	assert.Equal(t, "fdn:realm:port-1", fresh[0].ObjectDetails["fdn"])

	// And cache mutations must not change a snapshot already handed out
	held := c.Snapshot(CategoryPowerIssue)
	updated := powerIssue("A1")
	updated.Severity = models.SeverityCritical
	c.Upsert(updated)
	assert.Equal(t, models.SeverityMajor, held[0].Severity)
}

func TestLoad_MutatingInputDoesNotAffectCache(t *testing.T) {
	c := New()

	alarm := powerIssue("A1")
	alarm.ObjectDetails = map[string]string{"fdn": "fdn:realm:port-1"}
	input := []models.AlarmRecord{alarm}

	c.Load(CategoryPowerIssue, input)
	input[0].ObjectDetails["fdn"] = "changed"

	snapshot := c.Snapshot(CategoryPowerIssue)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "fdn:realm:port-1", snapshot[0].ObjectDetails["fdn"])
}
