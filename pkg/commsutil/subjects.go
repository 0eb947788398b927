package commsutil

import (
	"fmt"
	"strings"
)

// DefaultSubjectPrefix is used when no EVENTS_SUBJECT_PREFIX is configured.
const DefaultSubjectPrefix = "orders.assistant"

// DispatchSubject returns the global dispatch event subject for prefix.
func DispatchSubject(prefix string) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return prefix + ".dispatch"
}

// BuildDispatchSubject builds the per-tool dispatch event subject. Tool names
// are lowercased and dots replaced so they occupy a single subject token.
func BuildDispatchSubject(prefix, tool string) string {
	safe := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(tool)), ".", "_")
	if safe == "" {
		safe = "unknown"
	}
	return fmt.Sprintf("%s.%s", DispatchSubject(prefix), safe)
}

// InvokeSubject returns the request-reply subject on which the order service
// answers tool invocations.
func InvokeSubject(prefix string) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return prefix + ".invoke"
}
