package studio

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// OffsetUnit is the unit of a reminder offset.
type OffsetUnit string

const (
	UnitWeeks OffsetUnit = "weeks"
	UnitDays  OffsetUnit = "days"
	UnitHours OffsetUnit = "hours"
)

// OffsetSpec is how long before an appointment a reminder fires. It is
// resolved once when configuration loads.
type OffsetSpec struct {
	Unit OffsetUnit
	N    int
}

// Weeks returns an offset of n weeks.
func Weeks(n int) OffsetSpec { return OffsetSpec{Unit: UnitWeeks, N: n} }

// Days returns an offset of n days.
func Days(n int) OffsetSpec { return OffsetSpec{Unit: UnitDays, N: n} }

// Hours returns an offset of n hours. Bare integers in older schedules mean hours.
func Hours(n int) OffsetSpec { return OffsetSpec{Unit: UnitHours, N: n} }

// Duration converts the offset to a time.Duration.
func (o OffsetSpec) Duration() time.Duration {
	switch o.Unit {
	case UnitWeeks:
		return time.Duration(o.N) * 7 * 24 * time.Hour
	case UnitDays:
		return time.Duration(o.N) * 24 * time.Hour
	case UnitHours:
		return time.Duration(o.N) * time.Hour
	}
	return 0
}

// Label is the reminder type for this offset, e.g. reminder_2weeks or reminder_1day.
func (o OffsetSpec) Label() string {
	unit := string(o.Unit)
	if o.N == 1 {
		unit = strings.TrimSuffix(unit, "s")
	}
	return fmt.Sprintf("reminder_%d%s", o.N, unit)
}

func (o OffsetSpec) String() string {
	return fmt.Sprintf("%d %s", o.N, o.Unit)
}

// Validate rejects unknown units and non-positive counts.
func (o OffsetSpec) Validate() error {
	switch o.Unit {
	case UnitWeeks, UnitDays, UnitHours:
	default:
		return Invalid("reminder_schedule", fmt.Sprintf("unknown unit %q", o.Unit))
	}
	if o.N <= 0 {
		return Invalid("reminder_schedule", fmt.Sprintf("offset must be positive, got %d %s", o.N, o.Unit))
	}
	return nil
}

// ParseOffsetSpec resolves one reminder schedule entry as decoded from YAML
// or JSON: {weeks: n}, {days: n}, {hours: n}, or a bare integer of hours.
func ParseOffsetSpec(raw any) (OffsetSpec, error) {
	switch v := raw.(type) {
	case map[string]any:
		if len(v) != 1 {
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			return OffsetSpec{}, Invalid("reminder_schedule", fmt.Sprintf("entry must have exactly one of weeks, days, hours; got %v", keys))
		}
		for key, val := range v {
			n, err := wholeNumber(val)
			if err != nil {
				return OffsetSpec{}, err
			}
			spec := OffsetSpec{Unit: OffsetUnit(strings.ToLower(strings.TrimSpace(key))), N: n}
			return spec, spec.Validate()
		}
	case map[any]any:
		converted := make(map[string]any, len(v))
		for k, val := range v {
			converted[fmt.Sprint(k)] = val
		}
		return ParseOffsetSpec(converted)
	default:
		n, err := wholeNumber(raw)
		if err != nil {
			return OffsetSpec{}, err
		}
		spec := Hours(n)
		return spec, spec.Validate()
	}
	return OffsetSpec{}, Invalid("reminder_schedule", "empty entry")
}

// ParseSchedule resolves every entry of a reminder schedule, preserving order.
func ParseSchedule(raw []any) ([]OffsetSpec, error) {
	out := make([]OffsetSpec, 0, len(raw))
	for i, entry := range raw {
		spec, err := ParseOffsetSpec(entry)
		if err != nil {
			return nil, fmt.Errorf("reminder_schedule[%d]: %w", i, err)
		}
		out = append(out, spec)
	}
	return out, nil
}

func wholeNumber(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, Invalid("reminder_schedule", fmt.Sprintf("offset must be a whole number, got %v", n))
		}
		return int(n), nil
	}
	return 0, Invalid("reminder_schedule", fmt.Sprintf("unsupported offset value %v (%T)", v, v))
}
