package model

import (
	"fmt"
	"strings"
)

// Template categories mirror the business areas that send mail through the
// gateway. The category is carried into per-day statistics.
const (
	CategoryPreventivi   = "preventivi"
	CategoryAutomezzi    = "automezzi"
	CategoryStabilimenti = "stabilimenti"
	CategoryAcquisti     = "acquisti"
	CategoryFatturazione = "fatturazione"
	CategoryAnagrafica   = "anagrafica"
	CategorySistema      = "sistema"
	CategoryGenerico     = "generico"
)

// EmailTemplate is a named render unit. Bodies contain {{var}} placeholders
// substituted at send time.
type EmailTemplate struct {
	Model
	Name        string `gorm:"type:varchar(200);not null" json:"name"`
	Slug        string `gorm:"type:varchar(100);not null;uniqueIndex" json:"slug"`
	Description string `gorm:"type:text" json:"description"`
	Category    string `gorm:"type:varchar(100);not null;default:'generico'" json:"category"`

	Subject     string `gorm:"type:varchar(255);not null" json:"subject"`
	ContentHTML string `gorm:"type:text;not null" json:"content_html"`
	ContentText string `gorm:"type:text" json:"content_text"`

	AvailableVariables []string       `gorm:"type:json;serializer:json" json:"available_variables"`
	SampleData         map[string]any `gorm:"type:json;serializer:json" json:"sample_data"`

	IsActive bool `gorm:"not null;default:true" json:"is_active"`
	IsSystem bool `gorm:"not null;default:false" json:"is_system"`

	CreatedBy  string `gorm:"type:varchar(255)" json:"created_by"`
	UsageCount int    `gorm:"not null;default:0" json:"usage_count"`
}

// Rendered is the result of substituting variables into a template.
type Rendered struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// Render substitutes each {{key}} placeholder with the string form of the
// supplied value. Unresolved placeholders are left verbatim. When vars is
// nil the template's sample data is used.
func (t *EmailTemplate) Render(vars map[string]any) Rendered {
	if vars == nil {
		vars = t.SampleData
	}

	subject := t.Subject
	html := t.ContentHTML
	text := t.ContentText

	for key, value := range vars {
		placeholder := "{{" + key + "}}"
		repl := fmt.Sprintf("%v", value)
		subject = strings.ReplaceAll(subject, placeholder, repl)
		html = strings.ReplaceAll(html, placeholder, repl)
		text = strings.ReplaceAll(text, placeholder, repl)
	}

	return Rendered{
		Subject: subject,
		HTML:    html,
		Text:    text,
	}
}
