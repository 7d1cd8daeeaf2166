package notify

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ErrUnknownTemplate is returned when rendering references an unregistered
// template name.
var ErrUnknownTemplate = errors.New("unknown template")

// MissingVarsError reports template variables absent from the supplied data.
type MissingVarsError struct {
	Template string
	Missing  []string
}

func (e *MissingVarsError) Error() string {
	return fmt.Sprintf("template %q missing required variables: %s",
		e.Template, strings.Join(e.Missing, ", "))
}

var varPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Template is a named notification body with declared required variables.
type Template struct {
	Name     string
	Body     string
	Required []string
}

// Renderer substitutes {{name}} placeholders and memoizes results in the
// template cache.
type Renderer struct {
	templates map[string]Template
	cache     *TemplateCache
	cacheTTL  time.Duration
}

// NewRenderer creates a Renderer serving the given templates. cache may be
// nil to disable memoization.
func NewRenderer(templates []Template, cache *TemplateCache, cacheTTL time.Duration) *Renderer {
	m := make(map[string]Template, len(templates))
	for _, t := range templates {
		m[t.Name] = t
	}
	return &Renderer{templates: m, cache: cache, cacheTTL: cacheTTL}
}

// Register adds or replaces a template.
func (r *Renderer) Register(t Template) {
	r.templates[t.Name] = t
}

// CacheStats reports hit counters for the render cache. A zero value is
// returned when memoization is disabled.
func (r *Renderer) CacheStats() CacheStats {
	if r.cache == nil {
		return CacheStats{}
	}
	return r.cache.Stats()
}

// Render resolves the named template with data. All declared required
// variables and all placeholders appearing in the body must be present in
// data, otherwise a *MissingVarsError enumerating the missing names is
// returned and nothing is cached.
func (r *Renderer) Render(name string, data map[string]string) (string, error) {
	t, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	if missing := missingVars(t, data); len(missing) > 0 {
		return "", &MissingVarsError{Template: name, Missing: missing}
	}

	key := CacheKey(name, data)
	if r.cache != nil {
		if v, ok := r.cache.Get(key); ok {
			return v, nil
		}
	}
	out := varPattern.ReplaceAllStringFunc(t.Body, func(m string) string {
		return data[m[2:len(m)-2]]
	})
	if r.cache != nil {
		r.cache.Set(key, out, r.cacheTTL)
	}
	return out, nil
}

func missingVars(t Template, data map[string]string) []string {
	seen := map[string]bool{}
	var missing []string
	note := func(name string) {
		if _, ok := data[name]; !ok && !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
	}
	for _, v := range t.Required {
		note(v)
	}
	for _, m := range varPattern.FindAllStringSubmatch(t.Body, -1) {
		note(m[1])
	}
	sort.Strings(missing)
	return missing
}

// DefaultTemplates returns the built-in emergency alert bodies.
func DefaultTemplates() []Template {
	return []Template{
		{
			Name:     "emergency_alert_sms",
			Body:     "EMERGENCY ALERT\n\nLocation: {{location}}\nType: {{category}}\nSeverity: {{severity}}\n\nPlease respond if you can help.\n\nGarazzo Emergency System",
			Required: []string{"location", "category", "severity"},
		},
		{
			Name:     "emergency_alert_push",
			Body:     "Emergency near {{location}}",
			Required: []string{"location"},
		},
		{
			Name:     "incident_status_sms",
			Body:     "Update on your roadside request: {{status}}. {{detail}}",
			Required: []string{"status", "detail"},
		},
	}
}
