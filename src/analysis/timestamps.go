package analysis

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// Timestamp coercion. Chart samples arrive with heterogeneous time values:
// numeric seconds, numeric milliseconds, numeric strings, or date strings.
// Everything is normalized to epoch milliseconds.
// -----------------------------------------------------------------------------

// millisThreshold separates second-scale from millisecond-scale epochs.
// Values above it are already milliseconds.
const millisThreshold = 1e12

// -----------------------------------------------------------------------------

// CoerceTimestampMillis converts a raw sample timestamp to epoch milliseconds.
// Returns nil when the value cannot be interpreted or is not positive.
func CoerceTimestampMillis(raw interface{}) *int64 {
	switch v := raw.(type) {
	case nil:
		return nil
	case time.Time:
		if v.IsZero() {
			return nil
		}
		ms := v.UnixMilli()
		return &ms
	case int64:
		return scaleToMillis(float64(v))
	case int:
		return scaleToMillis(float64(v))
	case float64:
		return scaleToMillis(v)
	case float32:
		return scaleToMillis(float64(v))
	case string:
		return coerceString(v)
	default:
		return nil
	}
}

// -----------------------------------------------------------------------------

func coerceString(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	// Numeric strings first, they are the common case on the wire.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return scaleToMillis(f)
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			ms := t.UnixMilli()
			if ms <= 0 {
				return nil
			}
			return &ms
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

func scaleToMillis(f float64) *int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return nil
	}
	var ms int64
	if f > millisThreshold {
		ms = int64(f)
	} else {
		ms = int64(f * 1000)
	}
	return &ms
}
