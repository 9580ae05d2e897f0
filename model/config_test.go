package model

import (
	"testing"
)

func TestIsConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  EmailConfiguration
		want bool
	}{
		{
			name: "complete",
			cfg: EmailConfiguration{
				EmailAddress: "a@example.com",
				SMTPServer:   "smtp.example.com",
				SMTPUsername: "a@example.com",
				SMTPPassword: "secret",
			},
			want: true,
		},
		{
			name: "missing password",
			cfg: EmailConfiguration{
				EmailAddress: "a@example.com",
				SMTPServer:   "smtp.example.com",
				SMTPUsername: "a@example.com",
			},
			want: false,
		},
		{
			name: "empty",
			cfg:  EmailConfiguration{},
			want: false,
		},
	}

	for _, tt := range tests {
		if got := tt.cfg.IsConfigured(); got != tt.want {
			t.Errorf("%s: IsConfigured() = %v; want %v", tt.name, got, tt.want)
		}
	}
}

func TestIMAPCredentialsFallback(t *testing.T) {
	cfg := EmailConfiguration{
		SMTPUsername: "smtp-user",
		SMTPPassword: "smtp-pass",
	}

	user, pass := cfg.IMAPCredentials()
	if user != "smtp-user" || pass != "smtp-pass" {
		t.Errorf("unset IMAP credentials must fall back to SMTP, got %q/%q", user, pass)
	}

	cfg.IMAPUsername = "imap-user"
	cfg.IMAPPassword = "imap-pass"
	user, pass = cfg.IMAPCredentials()
	if user != "imap-user" || pass != "imap-pass" {
		t.Errorf("dedicated IMAP credentials must win, got %q/%q", user, pass)
	}
}

func TestSearchCriterion(t *testing.T) {
	var cfg EmailConfiguration
	if got := cfg.SearchCriterion(); got != SearchUnseen {
		t.Errorf("empty criterion = %q; want unseen default", got)
	}
	cfg.IMAPSearch = SearchAll
	if got := cfg.SearchCriterion(); got != SearchAll {
		t.Errorf("criterion = %q; want all", got)
	}
}
