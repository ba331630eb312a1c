package models

import "time"

// Lifecycle event types as delivered on the wire (the "nsp-fault:" tag
// prefix is stripped by the normalizer).
const (
	EventCreate = "alarm-create"
	EventChange = "alarm-change"
	EventDelete = "alarm-delete"
)

// Normalized severity vocabulary.
const (
	SeverityCritical = "CRITICAL"
	SeverityMajor    = "MAJOR"
	SeverityMinor    = "MINOR"
	SeverityWarning  = "WARNING"
	SeverityClear    = "CLEAR"
)

// Well-known root-cause alarm identities tracked by the correlation cache.
const (
	AlarmNamePowerIssue          = "Power Issue"
	AlarmNameLossOfSignalOCH     = "Loss of signal - OCH"
	ObjectTypePhysicalConnection = "PHYSICALCONNECTION"
)

// AlarmRecord is the canonical representation of one alarm occurrence.
// AlarmID is the join key between the active-alarm table, the history
// archive and the correlation cache, and stays stable for the whole
// lifecycle of one occurrence.
type AlarmRecord struct {
	EventType string `json:"event_type"`
	EventTime string `json:"event_time,omitempty"`

	AlarmID         string `json:"alarm_id"`
	AlarmName       string `json:"alarm_name"`
	SpecificProblem string `json:"specific_problem,omitempty"`
	ProbableCause   string `json:"probable_cause,omitempty"`

	NEName string `json:"ne_name,omitempty"`
	NEID   string `json:"ne_id,omitempty"`
	Source string `json:"source,omitempty"`

	SeverityRaw string `json:"severity_raw,omitempty"`
	Severity    string `json:"severity"`

	AffectedObject     string            `json:"affected_object,omitempty"`
	AffectedObjectName string            `json:"affected_object_name,omitempty"`
	ObjectType         string            `json:"object_type,omitempty"`
	ObjectDetails      map[string]string `json:"object_details,omitempty"`

	FirstDetected *time.Time `json:"first_detected,omitempty"`
	LastDetected  *time.Time `json:"last_detected,omitempty"`

	Acknowledged      bool  `json:"acknowledged"`
	ServiceAffecting  *bool `json:"service_affecting,omitempty"`
	ImplicitlyCleared bool  `json:"implicitly_cleared"`
}

// Clone returns an independent copy of the record. Map and pointer fields
// are duplicated so the copy never aliases the original.
func (a AlarmRecord) Clone() AlarmRecord {
	out := a

	if a.ObjectDetails != nil {
		out.ObjectDetails = make(map[string]string, len(a.ObjectDetails))
		for k, v := range a.ObjectDetails {
			out.ObjectDetails[k] = v
		}
	}

	if a.FirstDetected != nil {
		t := *a.FirstDetected
		out.FirstDetected = &t
	}
	if a.LastDetected != nil {
		t := *a.LastDetected
		out.LastDetected = &t
	}
	if a.ServiceAffecting != nil {
		b := *a.ServiceAffecting
		out.ServiceAffecting = &b
	}

	return out
}
