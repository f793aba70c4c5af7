// Package template holds the message templates used by the delivery
// channels and renders them with per-notification variables.
package template

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	texttemplate "text/template"

	"github.com/zayyadi/paroll-sub001/pkg/notification"
)

var (
	// ErrNotFound is returned when no template exists for the requested
	// name and channel and no fallback applies.
	ErrNotFound = errors.New("template not found")

	// ErrMissingVariable is returned by Render when a required variable is
	// absent from the data map.
	ErrMissingVariable = errors.New("missing template variable")

	// ErrInvalidTemplate is returned when a template body fails to parse.
	ErrInvalidTemplate = errors.New("invalid template")
)

// DefaultLanguage is used when a caller does not request a specific
// language or the requested one is not registered.
const DefaultLanguage = "en"

// Template is a versioned message template for one channel and language.
// Subject is used by email; the in-app, push and SMS channels use Body
// only.
type Template struct {
	Name         string
	Channel      notification.Channel
	Language     string
	Version      int
	Subject      string
	Body         string
	RequiredVars []string

	subject *texttemplate.Template
	body    *texttemplate.Template
}

// Rendered is the output of Template.Render.
type Rendered struct {
	Subject string
	Body    string
}

func (t *Template) compile() error {
	subject, err := texttemplate.New(t.Name + ":subject").Option("missingkey=zero").Parse(t.Subject)
	if err != nil {
		return fmt.Errorf("%w: %s subject: %v", ErrInvalidTemplate, t.Name, err)
	}
	body, err := texttemplate.New(t.Name + ":body").Option("missingkey=zero").Parse(t.Body)
	if err != nil {
		return fmt.Errorf("%w: %s body: %v", ErrInvalidTemplate, t.Name, err)
	}
	t.subject = subject
	t.body = body
	return nil
}

// Render validates that every required variable is present, then executes
// the subject and body templates. It never panics on malformed data.
func (t *Template) Render(data map[string]any) (*Rendered, error) {
	var missing []string
	for _, name := range t.RequiredVars {
		if _, ok := data[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s requires %s", ErrMissingVariable, t.Name, strings.Join(missing, ", "))
	}

	if t.subject == nil || t.body == nil {
		if err := t.compile(); err != nil {
			return nil, err
		}
	}

	var subject, body bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return nil, fmt.Errorf("%w: %s subject: %v", ErrInvalidTemplate, t.Name, err)
	}
	if err := t.body.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("%w: %s body: %v", ErrInvalidTemplate, t.Name, err)
	}
	return &Rendered{Subject: subject.String(), Body: body.String()}, nil
}

// Registry stores templates keyed by name, channel and language. Lookups
// fall back to the default language and then to a channel-wide default
// template, so a notification type without a bespoke template still
// produces a readable message.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewRegistry creates a registry preloaded with the built-in defaults.
func NewRegistry() *Registry {
	r := &Registry{templates: make(map[string]*Template)}
	for _, t := range builtins() {
		// Built-ins are static and known to compile.
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

func key(name string, ch notification.Channel, lang string) string {
	return name + "|" + string(ch) + "|" + lang
}

// Register adds or replaces a template. A template with a higher Version
// replaces a lower one; an equal or lower version is ignored.
func (r *Registry) Register(t Template) error {
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTemplate)
	}
	if !t.Channel.Valid() {
		return fmt.Errorf("%w: unknown channel %q", ErrInvalidTemplate, t.Channel)
	}
	if t.Language == "" {
		t.Language = DefaultLanguage
	}
	if err := t.compile(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(t.Name, t.Channel, t.Language)
	if existing, ok := r.templates[k]; ok && existing.Version >= t.Version {
		return nil
	}
	r.templates[k] = &t
	return nil
}

// Lookup resolves a template by name, channel and language, falling back
// to the default language and then the channel default.
func (r *Registry) Lookup(name string, ch notification.Channel, lang string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if lang == "" {
		lang = DefaultLanguage
	}
	for _, k := range []string{
		key(name, ch, lang),
		key(name, ch, DefaultLanguage),
		key(fallbackName, ch, DefaultLanguage),
	} {
		if t, ok := r.templates[k]; ok {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s/%s", ErrNotFound, name, ch, lang)
}

// Render is the registry-level convenience: lookup then render.
func (r *Registry) Render(name string, ch notification.Channel, lang string, data map[string]any) (*Rendered, error) {
	t, err := r.Lookup(name, ch, lang)
	if err != nil {
		return nil, err
	}
	return t.Render(data)
}
