package logger

import "testing"

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"jane.doe@example.com", "ja***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"a@example.com", "***@example.com"},
		{"not-an-email", "***@***"},
	}
	for _, tt := range tests {
		if got := RedactEmail(tt.in); got != tt.want {
			t.Errorf("RedactEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRedactionInFields(t *testing.T) {
	// Redaction applies to values embedded in larger strings too.
	got := emailRegex.ReplaceAllStringFunc("sent to jane.doe@example.com ok", RedactEmail)
	want := "sent to ja***@example.com ok"
	if got != want {
		t.Errorf("redacted = %q, want %q", got, want)
	}
}
