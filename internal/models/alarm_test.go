package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClone_Independence(t *testing.T) {
	first := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	affecting := true

	original := AlarmRecord{
		EventType:        EventCreate,
		AlarmID:          "alarm-1",
		AlarmName:        AlarmNamePowerIssue,
		NEName:           "NE1",
		Severity:         SeverityMajor,
		ObjectDetails:    map[string]string{"fdn": "fdn:realm:port-1"},
		FirstDetected:    &first,
		ServiceAffecting: &affecting,
	}

	clone := original.Clone()

	// Mutate the clone, the original must not change
	clone.ObjectDetails["fdn"] = "changed"
	*clone.FirstDetected = clone.FirstDetected.Add(time.Hour)
	*clone.ServiceAffecting = false
	clone.Severity = SeverityClear

	assert.Equal(t, "fdn:realm:port-1", original.ObjectDetails["fdn"])
	assert.Equal(t, first, *original.FirstDetected)
	assert.True(t, *original.ServiceAffecting)
	assert.Equal(t, SeverityMajor, original.Severity)
}

func TestClone_NilOptionalFields(t *testing.T) {
	original := AlarmRecord{AlarmID: "alarm-2", EventType: EventChange}

	clone := original.Clone()

	assert.Nil(t, clone.ObjectDetails)
	assert.Nil(t, clone.FirstDetected)
	assert.Nil(t, clone.LastDetected)
	assert.Nil(t, clone.ServiceAffecting)
	assert.Equal(t, original, clone)
}
