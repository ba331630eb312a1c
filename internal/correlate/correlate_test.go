package correlate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"nsp-alarm-correlator/internal/models"
)

func TestDefaultSeverityMapper(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"critical", models.SeverityCritical},
		{"Critical", models.SeverityCritical},
		{"major", models.SeverityMajor},
		{"minor", models.SeverityMinor},
		{"warning", models.SeverityWarning},
		{"indeterminate", models.SeverityWarning},
		{"cleared", models.SeverityClear},
		{"clear", models.SeverityClear},
		{"something-else", "SOMETHING-ELSE"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultSeverityMapper(tt.raw, ""), "raw=%s", tt.raw)
	}
}

func TestDefaultObjectParser(t *testing.T) {
	assert.Nil(t, DefaultObjectParser(""))

	details := DefaultObjectParser("fdn:realm:otu:port-1-1-2")
	assert.Equal(t, "fdn:realm:otu:port-1-1-2", details["fdn"])
	assert.Equal(t, "port-1-1-2", details["leaf"])

	// No separators: keep the reference, no leaf
	flat := DefaultObjectParser("port-1")
	assert.Equal(t, "port-1", flat["fdn"])
	_, ok := flat["leaf"]
	assert.False(t, ok)
}

func TestDefaultDropPredicate_RootCausesNeverSuppressed(t *testing.T) {
	roots := []models.AlarmRecord{{AlarmID: "P1", NEName: "NE1"}}

	power := Candidate{AlarmName: models.AlarmNamePowerIssue, NEName: "NE1"}
	assert.False(t, DefaultDropPredicate(power, roots, nil))

	los := Candidate{AlarmName: models.AlarmNameLossOfSignalOCH, NEName: "NE1"}
	assert.False(t, DefaultDropPredicate(los, roots, nil))
}

func TestDefaultDropPredicate_SuppressesOnRootCauseNE(t *testing.T) {
	powerRoots := []models.AlarmRecord{{AlarmID: "P1", NEName: "NE1"}}
	losRoots := []models.AlarmRecord{{AlarmID: "L1", NEName: "NE2", AffectedObjectName: "och-1"}}

	derivative := Candidate{AlarmName: "Link Down", NEName: "NE1"}
	assert.True(t, DefaultDropPredicate(derivative, powerRoots, nil))

	sameObject := Candidate{AlarmName: "Signal Degrade", NEName: "NE9", AffectedObjectName: "och-1"}
	assert.True(t, DefaultDropPredicate(sameObject, nil, losRoots))

	unrelated := Candidate{AlarmName: "Link Down", NEName: "NE9"}
	assert.False(t, DefaultDropPredicate(unrelated, powerRoots, losRoots))
}

func TestDefaultDropPredicate_EmptyNENeverMatches(t *testing.T) {
	// A root cause without ne_name must not suppress everything
	roots := []models.AlarmRecord{{AlarmID: "P1"}}
	candidate := Candidate{AlarmName: "Link Down"}

	assert.False(t, DefaultDropPredicate(candidate, roots, nil))
}
