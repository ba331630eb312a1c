package normalizer

import (
	"encoding/json"
	"strconv"
	"time"
)

// epochObject is the structured timestamp shape some NSP payloads use.
// Exactly one of the members is expected to carry the value.
type epochObject struct {
	Value        json.RawMessage `json:"value"`
	Milliseconds json.RawMessage `json:"milliseconds"`
	Seconds      *int64          `json:"seconds"`
}

// EpochMillis resolves the epoch-millisecond timestamp encodings emitted by
// the platform: a raw JSON integer, a numeric string, or an object carrying
// one of value/milliseconds/seconds. Any other shape resolves to nil, never
// an error.
func EpochMillis(raw json.RawMessage) *time.Time {
	ms, ok := epochMillisValue(raw)
	if !ok {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

func epochMillisValue(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}

	switch val := v.(type) {
	case float64:
		return int64(val), true

	case string:
		// Numeric strings only; anything else is an unknown shape
		ms, err := strconv.ParseInt(val, 10, 64)
		if err != nil || ms < 0 {
			return 0, false
		}
		return ms, true

	case map[string]interface{}:
		var obj epochObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return 0, false
		}
		if len(obj.Value) > 0 {
			return epochMillisValue(obj.Value)
		}
		if len(obj.Milliseconds) > 0 {
			return epochMillisValue(obj.Milliseconds)
		}
		if obj.Seconds != nil {
			return *obj.Seconds * 1000, true
		}
		return 0, false
	}

	return 0, false
}
