package templates

import (
	"testing"

	"github.com/ignite/prospect-pipeline/internal/domain"
)

func TestRenderBindings(t *testing.T) {
	r := NewRenderer()
	bindings := LeadBindings(&domain.Lead{
		FirstName: "jo",
		Company:   "Acme",
	})

	tests := []struct {
		tmpl string
		want string
	}{
		{"Hi {{ first_name | capitalize }}", "Hi Jo"},
		{"Saw the news at {{ company }}", "Saw the news at Acme"},
		{"Hi {{ title | default: \"there\" }}", "Hi there"}, // empty field falls back
		{"no variables here", "no variables here"},
	}
	for _, tt := range tests {
		got, err := r.Render(tt.tmpl, bindings)
		if err != nil {
			t.Fatalf("Render(%q): %v", tt.tmpl, err)
		}
		if got != tt.want {
			t.Errorf("Render(%q) = %q, want %q", tt.tmpl, got, tt.want)
		}
	}
}

func TestRenderThread(t *testing.T) {
	r := NewRenderer()
	bindings := LeadBindings(&domain.Lead{FirstName: "Jo"})

	in := &domain.Thread{
		Subject: "Quick question, {{ first_name }}",
		Emails: []domain.Email{
			{Subject: "Quick question, {{ first_name }}", Body: "Hi {{ first_name }},"},
			{Subject: "Re: Quick question", Body: "Bumping this, {{ first_name }}."},
		},
	}
	out, err := r.RenderThread(in, bindings)
	if err != nil {
		t.Fatalf("RenderThread: %v", err)
	}
	if out.Subject != "Quick question, Jo" {
		t.Errorf("subject = %q", out.Subject)
	}
	if out.Emails[0].Body != "Hi Jo," {
		t.Errorf("body = %q", out.Emails[0].Body)
	}
	if out.Emails[1].Body != "Bumping this, Jo." {
		t.Errorf("body = %q", out.Emails[1].Body)
	}

	// Input thread untouched.
	if in.Emails[0].Body != "Hi {{ first_name }}," {
		t.Error("input thread was mutated")
	}
}

func TestRenderThreadNil(t *testing.T) {
	r := NewRenderer()
	out, err := r.RenderThread(nil, nil)
	if err != nil || out != nil {
		t.Fatalf("RenderThread(nil) = %+v, %v", out, err)
	}
}

func TestRenderParseError(t *testing.T) {
	r := NewRenderer()
	if _, err := r.Render("{{ broken", nil); err == nil {
		t.Fatal("expected parse error")
	}
}
