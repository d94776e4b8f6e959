// Package dedup suppresses repeated notifications of an unchanged fact.
//
// State is a persistent map of fact hash → send count plus the time of the
// last delivery. A Gate consults it per item and a Store persists it; every
// load → mutate → persist cycle goes through Store.Update so it is atomic.
package dedup

import (
	"encoding/json"
	"fmt"
	"hash/adler32"
	"strconv"
	"time"
)

// Accepted timestamp layouts, newest first. The last two are what older
// mail_counts.json files carry (naive UTC, optional microseconds).
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// State is the persisted dedup document.
type State struct {
	Sent map[string]int
	// LastActivity is the time of the last counted delivery; zero means none.
	LastActivity time.Time
}

// NewState returns an empty state.
func NewState() State {
	return State{Sent: map[string]int{}}
}

// Stale reports whether the state should be wiped: no activity recorded or
// the last one is older than window.
func (s State) Stale(now time.Time, window time.Duration) bool {
	return s.LastActivity.IsZero() || now.Sub(s.LastActivity) > window
}

// Reset clears all counters and the activity timestamp.
func (s *State) Reset() {
	s.Sent = map[string]int{}
	s.LastActivity = time.Time{}
}

type stateJSON struct {
	Sent map[string]int `json:"sent"`
	Time *string        `json:"time"`
}

func (s State) MarshalJSON() ([]byte, error) {
	out := stateJSON{Sent: s.Sent}
	if out.Sent == nil {
		out.Sent = map[string]int{}
	}
	if !s.LastActivity.IsZero() {
		ts := FormatTime(s.LastActivity)
		out.Time = &ts
	}
	return json.Marshal(out)
}

func (s *State) UnmarshalJSON(data []byte) error {
	var in stateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	s.Sent = in.Sent
	if s.Sent == nil {
		s.Sent = map[string]int{}
	}
	s.LastActivity = time.Time{}
	if in.Time != nil && *in.Time != "" {
		t, err := ParseTime(*in.Time)
		if err != nil {
			return err
		}
		s.LastActivity = t
	}
	return nil
}

// FormatTime renders t the way the store persists it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime accepts RFC 3339 and the legacy "YYYY-MM-DD HH:MM:SS[.ffffff]"
// layout. Zone-less values are UTC.
func ParseTime(v string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", v)
}

// Hash returns a stable digest of v. v is serialised to JSON and decoded
// back into generic maps before hashing, so struct field order and map
// insertion order never change the result.
func Hash(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("hashing: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("hashing: %w", err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("hashing: %w", err)
	}
	return strconv.FormatUint(uint64(adler32.Checksum(canonical)), 10), nil
}
