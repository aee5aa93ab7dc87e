package utils

import (
	"regexp"
	"strings"
)

var nonDigits = regexp.MustCompile(`[^0-9]+`)

// NormalizePhone reduce un identificador de canal (JID, wa_id o número con
// formato libre) a solo dígitos: "5215512345678@s.whatsapp.net" -> "5215512345678".
func NormalizePhone(raw string) string {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return ""
	}

	// jid.split('@')[0].split(':')[0]
	if idx := strings.Index(candidate, "@"); idx >= 0 {
		candidate = candidate[:idx]
	}
	if idx := strings.Index(candidate, ":"); idx >= 0 {
		candidate = candidate[:idx]
	}

	return nonDigits.ReplaceAllString(candidate, "")
}
