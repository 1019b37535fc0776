package conflict

import "strings"

// severity classification is deterministic and field-name-driven so that the
// same field always ranks the same across devices.

var criticalFields = []string{"id", "user_id", "email", "password", "auth_token"}

var highFields = []string{"name", "age", "weight", "height", "goal"}

var mediumFields = []string{"setting", "preference", "note"}

func classifySeverity(field string) Severity {
	f := strings.ToLower(field)

	for _, c := range criticalFields {
		if f == c || strings.HasSuffix(f, "_"+c) {
			return SeverityCritical
		}
	}
	for _, h := range highFields {
		if strings.Contains(f, h) {
			return SeverityHigh
		}
	}
	for _, m := range mediumFields {
		if strings.Contains(f, m) {
			return SeverityMedium
		}
	}
	return SeverityLow
}

// isTimestampField reports whether the field name implies a timestamp.
func isTimestampField(field string) bool {
	f := strings.ToLower(field)
	return strings.HasSuffix(f, "_at") || strings.Contains(f, "timestamp")
}
