// Package templates renders the studio's notification emails.
package templates

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/wolfman30/snapstudio-crm/internal/config"
	"github.com/wolfman30/snapstudio-crm/internal/studio"
)

// Template names.
const (
	Confirmation = "confirmation"
	Cancellation = "cancellation"
	Reminder     = "reminder"
	Message      = "message"
)

// Context is the data every template is executed against.
type Context struct {
	Appointment studio.Appointment
	Client      studio.Client
	Business    config.Business
	Reminder    studio.Reminder
	TimeUntil   string
	Reason      string
}

// Renderer renders a named template.
type Renderer interface {
	Render(name string, data Context) (string, error)
}

// Library holds the parsed templates. It is safe for concurrent use.
type Library struct {
	set *template.Template
	loc *time.Location
}

// NewLibrary parses the built-in templates, then any <name>.tmpl files in
// overrideDir, which replace built-ins of the same name or add new ones.
// Times are shown in loc.
func NewLibrary(overrideDir string, loc *time.Location) (*Library, error) {
	if loc == nil {
		loc = time.UTC
	}
	root := template.New("").Option("missingkey=error").Funcs(Funcs(loc))
	if _, err := root.New("signature").Parse(signature); err != nil {
		return nil, fmt.Errorf("templates: parse signature: %w", err)
	}
	for name, text := range builtins {
		if _, err := root.New(name).Parse(text); err != nil {
			return nil, fmt.Errorf("templates: parse %s: %w", name, err)
		}
	}

	if dir := strings.TrimSpace(overrideDir); dir != "" {
		paths, err := filepath.Glob(filepath.Join(dir, "*.tmpl"))
		if err != nil {
			return nil, fmt.Errorf("templates: list %s: %w", dir, err)
		}
		for _, path := range paths {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("templates: read %s: %w", path, err)
			}
			name := strings.TrimSuffix(filepath.Base(path), ".tmpl")
			if _, err := root.New(name).Parse(string(data)); err != nil {
				return nil, fmt.Errorf("templates: parse %s: %w", path, err)
			}
		}
	}
	return &Library{set: root, loc: loc}, nil
}

// Has reports whether a template with this exact name exists.
func (l *Library) Has(name string) bool {
	return l.set.Lookup(name) != nil
}

// Resolve maps a requested name to the template that will render it.
// Unknown reminder_* names fall back to the generic reminder template and
// anything else to the generic message.
func (l *Library) Resolve(name string) string {
	if name != "" && l.Has(name) {
		return name
	}
	if strings.HasPrefix(name, Reminder) {
		return Reminder
	}
	return Message
}

// Render executes the resolved template and trims surrounding blank lines.
func (l *Library) Render(name string, data Context) (string, error) {
	resolved := l.Resolve(name)
	var buf bytes.Buffer
	if err := l.set.ExecuteTemplate(&buf, resolved, data); err != nil {
		return "", fmt.Errorf("templates: execute %s: %w", resolved, err)
	}
	return strings.TrimSpace(buf.String()) + "\n", nil
}

// Funcs are the helpers available to every template.
func Funcs(loc *time.Location) template.FuncMap {
	return template.FuncMap{
		"date":     func(t time.Time) string { return t.In(loc).Format("January 2, 2006") },
		"clock":    func(t time.Time) string { return t.In(loc).Format("03:04 PM") },
		"duration": FormatDuration,
		"money":    func(v float64) string { return fmt.Sprintf("$%.2f", v) },
	}
}

// FormatDuration renders minutes as "45 minutes", "1 hour" or
// "2 hours 30 minutes".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d minutes", minutes)
	}
	hours, rest := minutes/60, minutes%60
	unit := "hours"
	if hours == 1 {
		unit = "hour"
	}
	if rest == 0 {
		return fmt.Sprintf("%d %s", hours, unit)
	}
	return fmt.Sprintf("%d %s %d minutes", hours, unit, rest)
}
