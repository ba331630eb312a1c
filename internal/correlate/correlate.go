package correlate

import (
	"strings"
	"time"

	"nsp-alarm-correlator/internal/models"
)

// Candidate carries the classifying fields of one incoming alarm, as handed
// to the drop predicate together with the root-cause snapshots.
type Candidate struct {
	AlarmName       string
	SpecificProblem string
	ProbableCause   string

	NEName string
	NEID   string
	Source string

	ObjectType         string
	Severity           string
	AffectedObjectName string

	FirstDetected *time.Time
}

// SeverityMapper normalizes a source-vocabulary severity. Pure function of
// (raw severity, specific problem).
type SeverityMapper func(rawSeverity, specificProblem string) string

// ObjectParser extracts structured details from an affected-object
// reference. Returns nil when the reference cannot be interpreted.
type ObjectParser func(affectedObject string) map[string]string

// DropPredicate decides whether the candidate is a derivative of an active
// root cause and should be suppressed. It receives point-in-time snapshots,
// never live cache handles.
type DropPredicate func(c Candidate, activePowerIssues, activeLOSAlarms []models.AlarmRecord) bool

// Rules bundles the three correlation collaborators. Deployments replace
// individual members to customize behavior.
type Rules struct {
	MapSeverity SeverityMapper
	ParseObject ObjectParser
	ShouldDrop  DropPredicate
}

// DefaultRules returns the built-in collaborators.
func DefaultRules() Rules {
	return Rules{
		MapSeverity: DefaultSeverityMapper,
		ParseObject: DefaultObjectParser,
		ShouldDrop:  DefaultDropPredicate,
	}
}

// DefaultSeverityMapper maps the NSP severity vocabulary onto the
// normalized one. Unrecognized values pass through uppercased so they stay
// visible downstream instead of disappearing.
func DefaultSeverityMapper(rawSeverity, _ string) string {
	switch strings.ToLower(rawSeverity) {
	case "critical":
		return models.SeverityCritical
	case "major":
		return models.SeverityMajor
	case "minor":
		return models.SeverityMinor
	case "warning", "indeterminate":
		return models.SeverityWarning
	case "cleared", "clear":
		return models.SeverityClear
	}
	return strings.ToUpper(rawSeverity)
}

// DefaultObjectParser splits an NSP affected-object FDN into its segments.
// Returns nil for an empty reference.
func DefaultObjectParser(affectedObject string) map[string]string {
	if affectedObject == "" {
		return nil
	}

	details := map[string]string{"fdn": affectedObject}
	if segments := strings.Split(affectedObject, ":"); len(segments) > 1 {
		details["leaf"] = segments[len(segments)-1]
	}
	return details
}

// DefaultDropPredicate suppresses a candidate when it rides on a network
// element that currently carries an active root cause. Root-cause alarms
// themselves are never suppressed.
func DefaultDropPredicate(c Candidate, activePowerIssues, activeLOSAlarms []models.AlarmRecord) bool {
	if c.AlarmName == models.AlarmNamePowerIssue || c.AlarmName == models.AlarmNameLossOfSignalOCH {
		return false
	}

	for _, root := range activePowerIssues {
		if root.NEName != "" && root.NEName == c.NEName {
			return true
		}
	}

	for _, root := range activeLOSAlarms {
		if root.NEName != "" && root.NEName == c.NEName {
			return true
		}
		if c.AffectedObjectName != "" && root.AffectedObjectName == c.AffectedObjectName {
			return true
		}
	}

	return false
}
