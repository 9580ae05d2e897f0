package model

import (
	"time"
)

// IMAP search criteria selectable per account. The default only picks up
// messages the server still reports as unseen; "all" re-scans the whole
// folder and relies on Message-ID dedup.
const (
	SearchUnseen = "unseen"
	SearchAll    = "all"

	// SearchSincePrefix starts a "since:<days>" criterion limiting the
	// scan to messages newer than N days.
	SearchSincePrefix = "since:"
)

// EmailConfiguration holds one user's SMTP/IMAP endpoints and credentials.
// Exactly one active configuration exists per user.
type EmailConfiguration struct {
	Model
	User         string `gorm:"type:varchar(255);not null;uniqueIndex" json:"user"`
	DisplayName  string `gorm:"type:varchar(200);not null" json:"display_name"`
	EmailAddress string `gorm:"type:varchar(255);not null" json:"email_address"`
	ReplyTo      string `gorm:"type:varchar(255)" json:"reply_to"`

	SMTPServer   string `gorm:"type:varchar(200);not null;default:''" json:"smtp_server"`
	SMTPPort     int    `gorm:"not null;default:587" json:"smtp_port"`
	SMTPUsername string `gorm:"type:varchar(200);not null;default:''" json:"smtp_username"`
	SMTPPassword string `gorm:"type:varchar(500);not null;default:''" json:"-"`
	UseTLS       bool   `gorm:"not null;default:true" json:"use_tls"`
	UseSSL       bool   `gorm:"not null;default:false" json:"use_ssl"`

	IMAPServer   string `gorm:"type:varchar(200)" json:"imap_server"`
	IMAPPort     int    `gorm:"not null;default:993" json:"imap_port"`
	IMAPUsername string `gorm:"type:varchar(200)" json:"imap_username"`
	IMAPPassword string `gorm:"type:varchar(500)" json:"-"`
	IMAPUseTLS   bool   `gorm:"not null;default:false" json:"imap_use_tls"`
	IMAPUseSSL   bool   `gorm:"not null;default:true" json:"imap_use_ssl"`
	IMAPEnabled  bool   `gorm:"not null;default:false" json:"imap_enabled"`
	IMAPSearch   string `gorm:"type:varchar(50);not null;default:'unseen'" json:"imap_search"`

	LastIMAPSync  *time.Time `json:"last_imap_sync"`
	LastIMAPError string     `gorm:"type:text" json:"last_imap_error"`

	IsActive   bool       `gorm:"not null;default:true" json:"is_active"`
	IsVerified bool       `gorm:"not null;default:false" json:"is_verified"`
	LastTestAt *time.Time `json:"last_test_at"`
	LastError  string     `gorm:"type:text" json:"last_error"`

	DailyLimit  int `gorm:"not null;default:500" json:"daily_limit"`
	HourlyLimit int `gorm:"not null;default:50" json:"hourly_limit"`
}

// IsConfigured reports whether the account can send through its own SMTP
// endpoint. Incomplete configurations fall back to the process-wide
// default transport.
func (c *EmailConfiguration) IsConfigured() bool {
	return c.SMTPServer != "" && c.SMTPUsername != "" &&
		c.SMTPPassword != "" && c.EmailAddress != ""
}

// IMAPCredentials returns the IMAP login, falling back to the SMTP
// credentials when the IMAP ones are unset.
func (c *EmailConfiguration) IMAPCredentials() (username, password string) {
	username = c.IMAPUsername
	if username == "" {
		username = c.SMTPUsername
	}
	password = c.IMAPPassword
	if password == "" {
		password = c.SMTPPassword
	}
	return username, password
}

// SearchCriterion returns the configured IMAP search mode, defaulting to
// unseen-only.
func (c *EmailConfiguration) SearchCriterion() string {
	if c.IMAPSearch == "" {
		return SearchUnseen
	}
	return c.IMAPSearch
}
