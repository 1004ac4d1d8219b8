package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ClockTimeLayout is the 24-hour HH:MM text form of a wall-clock time.
const ClockTimeLayout = "15:04"

// ClockTime is a local wall-clock time of day without date or zone.
type ClockTime struct {
	Hour   int
	Minute int
}

// NewClockTime builds a ClockTime, rejecting out-of-range components.
func NewClockTime(hour, minute int) (ClockTime, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return ClockTime{}, fmt.Errorf("clock time %02d:%02d out of range", hour, minute)
	}
	return ClockTime{Hour: hour, Minute: minute}, nil
}

// ClockTimeOf extracts the wall-clock part of t.
func ClockTimeOf(t time.Time) ClockTime {
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}
}

// ParseClockTime parses strict HH:MM 24-hour text.
func ParseClockTime(raw string) (ClockTime, error) {
	if len(raw) != len(ClockTimeLayout) {
		return ClockTime{}, fmt.Errorf("clock time %q must be HH:MM", raw)
	}
	t, err := time.Parse(ClockTimeLayout, raw)
	if err != nil {
		return ClockTime{}, fmt.Errorf("clock time %q must be HH:MM", raw)
	}
	return ClockTimeOf(t), nil
}

// String renders HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Minutes returns minutes since midnight.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

// Ptr returns a pointer to a copy of c.
func (c ClockTime) Ptr() *ClockTime {
	return &c
}

// Clone copies a nullable clock time.
func (c *ClockTime) Clone() *ClockTime {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}

// Value implements driver.Valuer for TIME columns.
func (c ClockTime) Value() (driver.Value, error) {
	return c.String() + ":00", nil
}

// Scan implements sql.Scanner, accepting HH:MM[:SS] text and time values.
func (c *ClockTime) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case nil:
		*c = ClockTime{}
		return nil
	case time.Time:
		*c = ClockTimeOf(v)
		return nil
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("unsupported type %T for ClockTime", value)
	}
	if len(raw) >= len("15:04:05") {
		t, err := time.Parse("15:04:05", raw[:8])
		if err != nil {
			return fmt.Errorf("scan clock time %q: %w", raw, err)
		}
		*c = ClockTimeOf(t)
		return nil
	}
	parsed, err := ParseClockTime(raw)
	if err != nil {
		return fmt.Errorf("scan clock time: %w", err)
	}
	*c = parsed
	return nil
}

// MarshalJSON renders "HH:MM".
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts "HH:MM".
func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseClockTime(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
