package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wolfman30/snapstudio-crm/internal/studio"
)

// Business is the studio's public contact block used in notifications and
// calendar events.
type Business struct {
	Name    string `yaml:"name" json:"name"`
	Email   string `yaml:"email" json:"email"`
	Phone   string `yaml:"phone" json:"phone,omitempty"`
	Website string `yaml:"website" json:"website,omitempty"`
	Address string `yaml:"address" json:"address,omitempty"`
}

// SessionType is a bookable session with its defaults.
type SessionType struct {
	Name        string  `yaml:"name" json:"name"`
	Duration    int     `yaml:"duration" json:"duration"`
	Price       float64 `yaml:"price" json:"price"`
	Description string  `yaml:"description" json:"description,omitempty"`
}

// Studio is the read-only studio configuration snapshot handed to each
// component at construction.
type Studio struct {
	Business        Business
	CalendarID      string
	Timezone        string
	DefaultDuration int

	schedule     []studio.OffsetSpec
	sessionTypes map[string]SessionType
	location     *time.Location
}

// DefaultStudio is used when no studio file is configured.
func DefaultStudio() Studio {
	return Studio{
		Business:        Business{Name: "SnapStudio Photography"},
		CalendarID:      "primary",
		Timezone:        "UTC",
		DefaultDuration: 60,
		schedule:        []studio.OffsetSpec{studio.Weeks(2), studio.Weeks(1), studio.Days(3), studio.Days(1)},
		location:        time.UTC,
	}
}

// NewStudio builds a snapshot from already-resolved values. It is mainly
// useful for tests and for callers that assemble configuration in code.
func NewStudio(business Business, defaultDuration int, schedule []studio.OffsetSpec) Studio {
	s := DefaultStudio()
	s.Business = business
	if defaultDuration > 0 {
		s.DefaultDuration = defaultDuration
	}
	s.schedule = append([]studio.OffsetSpec(nil), schedule...)
	return s
}

// Schedule returns a copy of the reminder offsets in configured order.
func (s Studio) Schedule() []studio.OffsetSpec {
	return append([]studio.OffsetSpec(nil), s.schedule...)
}

// SessionType looks up a configured session type by case-insensitive name.
func (s Studio) SessionType(name string) (SessionType, bool) {
	st, ok := s.sessionTypes[strings.ToLower(strings.TrimSpace(name))]
	return st, ok
}

// SessionTypes lists configured session types.
func (s Studio) SessionTypes() []SessionType {
	out := make([]SessionType, 0, len(s.sessionTypes))
	for _, st := range s.sessionTypes {
		out = append(out, st)
	}
	return out
}

// Location is the studio's timezone, UTC when unset.
func (s Studio) Location() *time.Location {
	if s.location == nil {
		return time.UTC
	}
	return s.location
}

type studioFile struct {
	Business Business `yaml:"business"`
	Calendar struct {
		TargetCalendarID string `yaml:"target_calendar_id"`
		Timezone         string `yaml:"timezone"`
	} `yaml:"calendar"`
	Appointments struct {
		DefaultDuration  int   `yaml:"default_duration"`
		ReminderSchedule []any `yaml:"reminder_schedule"`
	} `yaml:"appointments"`
	SessionTypes []SessionType `yaml:"session_types"`
}

// LoadStudio reads and validates the studio YAML file. An empty path yields
// DefaultStudio.
func LoadStudio(path string) (Studio, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultStudio(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Studio{}, fmt.Errorf("config: read studio file: %w", err)
	}
	return ParseStudio(data)
}

// ParseStudio decodes studio YAML and resolves the reminder schedule into
// offset specs.
func ParseStudio(data []byte) (Studio, error) {
	var raw studioFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Studio{}, fmt.Errorf("config: invalid studio yaml: %w", err)
	}

	if strings.TrimSpace(raw.Business.Name) == "" {
		return Studio{}, fmt.Errorf("config: business.name is required")
	}
	if strings.TrimSpace(raw.Business.Email) == "" {
		return Studio{}, fmt.Errorf("config: business.email is required")
	}
	if len(raw.Appointments.ReminderSchedule) == 0 {
		return Studio{}, fmt.Errorf("config: appointments.reminder_schedule is required")
	}
	schedule, err := studio.ParseSchedule(raw.Appointments.ReminderSchedule)
	if err != nil {
		return Studio{}, fmt.Errorf("config: %w", err)
	}

	s := DefaultStudio()
	s.Business = raw.Business
	s.schedule = schedule
	if raw.Appointments.DefaultDuration < 0 {
		return Studio{}, fmt.Errorf("config: appointments.default_duration must be positive")
	}
	if raw.Appointments.DefaultDuration > 0 {
		s.DefaultDuration = raw.Appointments.DefaultDuration
	}
	if id := strings.TrimSpace(raw.Calendar.TargetCalendarID); id != "" {
		s.CalendarID = id
	}
	if tz := strings.TrimSpace(raw.Calendar.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return Studio{}, fmt.Errorf("config: calendar.timezone: %w", err)
		}
		s.Timezone = tz
		s.location = loc
	}

	s.sessionTypes = make(map[string]SessionType, len(raw.SessionTypes))
	for _, st := range raw.SessionTypes {
		name := strings.TrimSpace(st.Name)
		if name == "" {
			continue
		}
		st.Name = name
		s.sessionTypes[strings.ToLower(name)] = st
	}
	return s, nil
}
