package signals

import (
	"encoding/json"
	"fmt"
	"time"
)

// #region wire

// wire is the flat JSON envelope used by collaborators. Only the fields of the
// named kind are meaningful; durations are Go duration strings ("7h30m").
type wire struct {
	Kind          Kind          `json:"kind"`
	Timestamp     time.Time     `json:"timestamp"`
	Type          FinancialType `json:"type,omitempty"`
	Amount        float64       `json:"amount,omitempty"`
	Steps         int           `json:"steps,omitempty"`
	Duration      string        `json:"duration,omitempty"`
	IsRecovery    bool          `json:"is_recovery,omitempty"`
	Quality       float64       `json:"quality,omitempty"`
	Interruptions int           `json:"interruptions,omitempty"`
	UserInitiated bool          `json:"user_initiated,omitempty"`
	Category      Category      `json:"category,omitempty"`
	Count         int           `json:"count,omitempty"`
	QuietHours    bool          `json:"quiet_hours,omitempty"`
	LateNight     bool          `json:"late_night,omitempty"`
}

func durationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("signals: duration %q: %w", s, err)
	}
	return d, nil
}

func toWire(s Signal) (wire, error) {
	w := wire{Kind: s.Kind(), Timestamp: s.Timestamp()}
	switch v := s.(type) {
	case Financial:
		w.Type, w.Amount = v.Type, v.Amount
	case Activity:
		w.Steps, w.Duration, w.IsRecovery = v.Steps, durationString(v.Duration), v.IsRecovery
	case Sleep:
		w.Duration, w.Quality, w.Interruptions = durationString(v.Duration), v.Quality, v.Interruptions
	case Focus:
		w.Duration, w.Interruptions, w.UserInitiated = durationString(v.Duration), v.Interruptions, v.UserInitiated
	case NotificationBurst:
		w.Category, w.Count, w.QuietHours = v.Category, v.Count, v.QuietHours
	case ScreenUsage:
		w.Duration, w.LateNight = durationString(v.Duration), v.LateNight
	default:
		return wire{}, fmt.Errorf("signals: cannot encode %T", s)
	}
	return w, nil
}

func (w wire) signal() (Signal, error) {
	d, err := parseDuration(w.Duration)
	if err != nil {
		return nil, err
	}
	switch w.Kind {
	case KindFinancial:
		return Financial{At: w.Timestamp, Type: w.Type, Amount: w.Amount}, nil
	case KindActivity:
		return Activity{At: w.Timestamp, Steps: w.Steps, Duration: d, IsRecovery: w.IsRecovery}, nil
	case KindSleep:
		return Sleep{At: w.Timestamp, Duration: d, Quality: w.Quality, Interruptions: w.Interruptions}, nil
	case KindFocus:
		return Focus{At: w.Timestamp, Duration: d, Interruptions: w.Interruptions, UserInitiated: w.UserInitiated}, nil
	case KindNotificationBurst:
		return NotificationBurst{At: w.Timestamp, Category: w.Category, Count: w.Count, QuietHours: w.QuietHours}, nil
	case KindScreenUsage:
		return ScreenUsage{At: w.Timestamp, Duration: d, LateNight: w.LateNight}, nil
	}
	return nil, fmt.Errorf("signals: unknown kind %q", w.Kind)
}

// #endregion wire

// #region codec

// Marshal encodes one signal as a JSON envelope.
func Marshal(s Signal) ([]byte, error) {
	w, err := toWire(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// Unmarshal decodes one JSON envelope. The result is not validated.
func Unmarshal(data []byte) (Signal, error) {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("signals: decode: %w", err)
	}
	return w.signal()
}

// MarshalBatch encodes a batch as a JSON array of envelopes.
func MarshalBatch(batch []Signal) ([]byte, error) {
	out := make([]wire, 0, len(batch))
	for i, s := range batch {
		w, err := toWire(s)
		if err != nil {
			return nil, fmt.Errorf("signal %d: %w", i, err)
		}
		out = append(out, w)
	}
	return json.Marshal(out)
}

// UnmarshalBatch decodes a JSON array of envelopes, preserving order.
func UnmarshalBatch(data []byte) ([]Signal, error) {
	var ws []wire
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("signals: decode batch: %w", err)
	}
	out := make([]Signal, 0, len(ws))
	for i, w := range ws {
		s, err := w.signal()
		if err != nil {
			return nil, fmt.Errorf("signal %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// #endregion codec
