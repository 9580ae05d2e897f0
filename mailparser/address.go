package mailparser

import (
	"strings"
)

// ParseAddressList splits a To/Cc/Bcc header into individual addresses.
// Commas inside quoted strings and comments do not split.
func ParseAddressList(s string) []string {
	var addresses []string
	var quoted bool
	var escape bool
	var comment bool
	var depth int
	var buf strings.Builder

	for _, r := range s {
		switch {
		case escape:
			buf.WriteRune(r)
			escape = false
		case r == '\\':
			escape = true
		case r == '"':
			if !comment {
				quoted = !quoted
			}
			buf.WriteRune(r)
		case r == '(' && !quoted:
			comment = true
			depth = 1
		case r == ')' && comment:
			depth--
			if depth == 0 {
				comment = false
			}
		case comment:
			continue
		case r == ',' && !quoted:
			part := strings.TrimSpace(buf.String())
			if part != "" {
				addresses = append(addresses, part)
			}
			buf.Reset()
		default:
			buf.WriteRune(r)
		}
	}

	if trimmed := strings.TrimSpace(buf.String()); trimmed != "" {
		addresses = append(addresses, trimmed)
	}

	return addresses
}

// ParseAddress splits a From-style header into display name and address.
func ParseAddress(s string) (name, address string) {
	var quoted bool
	var escape bool
	var angle bool
	var comment bool
	var depth int
	var start, end int

	var buf strings.Builder

	for i, r := range s {
		switch {
		case escape:
			escape = false
		case r == '\\':
			escape = true
		case r == '"' && !angle && !comment:
			quoted = !quoted
		case r == '(' && !quoted:
			comment = true
			depth = 1
		case r == ')' && comment:
			depth--
			if depth == 0 {
				comment = false
			}
		case comment:
			continue
		case r == '<' && !quoted && !comment:
			angle = true
			start = i
		case r == '>' && !quoted && !comment:
			angle = false
			end = i
		}
		if !comment {
			buf.WriteRune(r)
		}
	}

	clean := buf.String()

	if start < end {
		address = strings.TrimSpace(clean[start+1 : end])
		name = strings.Trim(strings.TrimSpace(clean[:start]), `"`)
	} else {
		address = strings.TrimSpace(clean)
	}

	return name, address
}
