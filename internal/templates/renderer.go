// Package templates renders generated email copy through the Liquid
// template language, injecting lead fields before drafts are persisted.
package templates

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/ignite/prospect-pipeline/internal/domain"
)

// Renderer renders Liquid templates with caching. Safe for concurrent use.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewRenderer creates a renderer with the pipeline's custom filters.
func NewRenderer() *Renderer {
	engine := liquid.NewEngine()

	// {{ first_name | default: "there" }} for leads with missing fields.
	engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		s := fmt.Sprintf("%v", value)
		if s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	// {{ name | capitalize }}
	engine.RegisterFilter("capitalize", func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + s[1:]
	})

	return &Renderer{engine: engine}
}

// LeadBindings builds the variable bindings for a lead.
func LeadBindings(lead *domain.Lead) map[string]interface{} {
	return map[string]interface{}{
		"first_name": lead.FirstName,
		"last_name":  lead.LastName,
		"email":      lead.Email,
		"company":    lead.Company,
		"title":      lead.Title,
	}
}

// Render renders one template string against the bindings. Unknown
// variables render empty (lax mode): a missing field must never block a
// draft from being written.
func (r *Renderer) Render(tmpl string, bindings map[string]interface{}) (string, error) {
	t, err := r.parse(tmpl)
	if err != nil {
		return "", err
	}
	out, err := t.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("templates: render: %w", err)
	}
	return out, nil
}

// RenderThread renders every subject and body in a thread, returning a new
// thread. A nil thread renders to nil.
func (r *Renderer) RenderThread(t *domain.Thread, bindings map[string]interface{}) (*domain.Thread, error) {
	if t == nil {
		return nil, nil
	}

	out := &domain.Thread{Emails: make([]domain.Email, 0, len(t.Emails))}
	var err error
	if out.Subject, err = r.Render(t.Subject, bindings); err != nil {
		return nil, err
	}
	for _, e := range t.Emails {
		var rendered domain.Email
		if rendered.Subject, err = r.Render(e.Subject, bindings); err != nil {
			return nil, err
		}
		if rendered.Body, err = r.Render(e.Body, bindings); err != nil {
			return nil, err
		}
		out.Emails = append(out.Emails, rendered)
	}
	return out, nil
}

func (r *Renderer) parse(tmpl string) (*liquid.Template, error) {
	if cached, ok := r.cache.Load(tmpl); ok {
		return cached.(*liquid.Template), nil
	}
	t, err := r.engine.ParseString(tmpl)
	if err != nil {
		return nil, fmt.Errorf("templates: parse: %w", err)
	}
	r.cache.Store(tmpl, t)
	return t, nil
}
