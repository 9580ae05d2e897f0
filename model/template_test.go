package model

import (
	"testing"
)

func TestTemplateRender(t *testing.T) {
	tmpl := &EmailTemplate{
		Subject:     "Preventivo {{numero}} per {{cliente}}",
		ContentHTML: "<p>Gentile {{cliente}}, preventivo n. {{numero}} pronto.</p>",
		ContentText: "Gentile {{cliente}}, preventivo n. {{numero}} pronto.",
	}

	got := tmpl.Render(map[string]any{
		"numero":  42,
		"cliente": "Rossi SRL",
	})

	if got.Subject != "Preventivo 42 per Rossi SRL" {
		t.Errorf("Subject = %q", got.Subject)
	}
	if got.HTML != "<p>Gentile Rossi SRL, preventivo n. 42 pronto.</p>" {
		t.Errorf("HTML = %q", got.HTML)
	}
	if got.Text != "Gentile Rossi SRL, preventivo n. 42 pronto." {
		t.Errorf("Text = %q", got.Text)
	}

	// Rendering is pure: the same inputs give the same output.
	again := tmpl.Render(map[string]any{
		"numero":  42,
		"cliente": "Rossi SRL",
	})
	if again != got {
		t.Errorf("second render = %+v; want identical to first", again)
	}
}

func TestTemplateRenderUnresolved(t *testing.T) {
	tmpl := &EmailTemplate{
		Subject: "Ordine {{numero}} da {{fornitore}}",
	}

	got := tmpl.Render(map[string]any{"numero": "A-1"})
	if got.Subject != "Ordine A-1 da {{fornitore}}" {
		t.Errorf("unresolved placeholder must survive verbatim, got %q", got.Subject)
	}
}

func TestTemplateRenderSampleData(t *testing.T) {
	tmpl := &EmailTemplate{
		Subject:    "Ciao {{nome}}",
		SampleData: map[string]any{"nome": "Mario"},
	}

	if got := tmpl.Render(nil); got.Subject != "Ciao Mario" {
		t.Errorf("nil vars should fall back to sample data, got %q", got.Subject)
	}
	// Explicit empty vars means no substitution at all.
	if got := tmpl.Render(map[string]any{}); got.Subject != "Ciao {{nome}}" {
		t.Errorf("empty vars should leave placeholders, got %q", got.Subject)
	}
}

func TestTemplateRenderRepeatedPlaceholder(t *testing.T) {
	tmpl := &EmailTemplate{
		ContentText: "{{x}} and {{x}} again",
	}
	if got := tmpl.Render(map[string]any{"x": "y"}); got.Text != "y and y again" {
		t.Errorf("Text = %q", got.Text)
	}
}
