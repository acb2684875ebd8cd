package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// logKeys are written verbatim. Every other key is masked, so new fields stay
// hidden until they are listed here.
var logKeys = map[string]struct{}{
	"service":   {},
	"env":       {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"error":     {},
	"reason":    {},
	"method":    {},
	"requestid": {},
	"caller":    {},
	"type":      {},
	"status":    {},
	"listen":    {},

	// ledger event attributes
	"by":           {},
	"role":         {},
	"account":      {},
	"client":       {},
	"lender":       {},
	"previous":     {},
	"current":      {},
	"plans":        {},
	"planid":       {},
	"borrower":     {},
	"payer":        {},
	"principal":    {},
	"totaldebt":    {},
	"installments": {},
	"amount":       {},
	"unpaiddebt":   {},
	"totalpaid":    {},
}

// IsAllowlisted reports whether key is logged without redaction.
func IsAllowlisted(key string) bool {
	_, ok := logKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField returns a slog.Attr that redacts value unless key is allowlisted.
// Empty values are kept as is.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// Fields converts a string map into slog arguments ordered by key, masking
// every value whose key is not allowlisted.
func Fields(fields map[string]string) []any {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys))
	for _, key := range keys {
		out = append(out, MaskField(key, fields[key]))
	}
	return out
}
