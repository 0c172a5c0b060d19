package instrumentation

import (
	"slices"
	"strings"
)

// Label values that come from the backend or from users pass through these
// helpers so metric cardinality stays bounded.

// LabelOther replaces label values outside an allowed set.
const LabelOther = "other"

// ExtractUserDomain returns the domain of an email address, or "unknown" when
// email is not of the form local@domain.
func ExtractUserDomain(email string) string {
	_, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" || strings.Contains(domain, "@") {
		return "unknown"
	}
	return domain
}

// BoundedLabel returns value if it is one of allowed, "" if value is empty,
// and LabelOther otherwise. Backend action tags and unmatched HTTP routes go
// through it before becoming metric labels.
func BoundedLabel(value string, allowed ...string) string {
	switch {
	case value == "":
		return ""
	case slices.Contains(allowed, value):
		return value
	default:
		return LabelOther
	}
}
