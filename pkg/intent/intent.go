// Package intent classifies a user utterance into an order lookup, an email
// history lookup or free text, and detects which single field was asked for.
package intent

import (
	"regexp"
	"strings"
)

// Kind of lookup an utterance asks for.
type Kind string

const (
	KindOrder    Kind = "order"
	KindEmail    Kind = "email"
	KindFreeText Kind = "free_text"
)

// Field is a single record field a user can ask about. The empty Field means
// the whole summary.
type Field string

const (
	FieldNone     Field = ""
	FieldTotal    Field = "total"
	FieldStatus   Field = "status"
	FieldShipping Field = "shipping address"
	FieldTracking Field = "tracking"
	FieldItems    Field = "items"
	FieldEmail    Field = "email"
	FieldDate     Field = "date"
)

// Intent is the resolved meaning of one utterance.
type Intent struct {
	Kind  Kind
	Key   string
	Field Field
}

// Rule maps keyword hits to a field. A rule fires when the lowercased text
// contains any keyword and none of the suppressors.
type Rule struct {
	Field       Field
	Keywords    []string
	Suppressors []string
	// OrderOnly restricts the rule to order lookups.
	OrderOnly bool
}

// DefaultRules is the field detection table in priority order.
var DefaultRules = []Rule{
	{Field: FieldTotal, Keywords: []string{"total cost", "total of", "total for", "total amount", "total price", "total:"}},
	{Field: FieldTotal, Keywords: []string{"total"}, Suppressors: []string{"items"}},
	{Field: FieldStatus, Keywords: []string{"status"}},
	{Field: FieldShipping, Keywords: []string{"shipping address", "shipping to", "ship to", "address"}, Suppressors: []string{"tracking"}},
	{Field: FieldTracking, Keywords: []string{"tracking", "track"}},
	{Field: FieldItems, Keywords: []string{"items", "what's in", "line items"}},
	{Field: FieldEmail, Keywords: []string{"email"}},
	{Field: FieldDate, Keywords: []string{"date", "when"}, OrderOnly: true},
}

var (
	orderPattern = regexp.MustCompile(`(?i)\bORD-\d{4}-\d{3}\b`)
	emailPattern = regexp.MustCompile(`[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`)
)

// Resolver turns utterances into intents using an ordered rule table.
type Resolver struct {
	rules []Rule
}

// NewResolver returns a resolver over rules (DefaultRules when nil).
func NewResolver(rules []Rule) *Resolver {
	if rules == nil {
		rules = DefaultRules
	}
	return &Resolver{rules: rules}
}

// Resolve classifies text. Order identifiers take precedence over email
// addresses; anything else is free text.
func (r *Resolver) Resolve(text string) Intent {
	lower := strings.ToLower(text)

	if m := orderPattern.FindString(text); m != "" {
		return Intent{Kind: KindOrder, Key: strings.ToUpper(m), Field: r.field(lower, KindOrder)}
	}
	if m := emailPattern.FindString(lower); m != "" {
		return Intent{Kind: KindEmail, Key: m, Field: r.field(lower, KindEmail)}
	}
	return Intent{Kind: KindFreeText}
}

// field returns the first rule that fires for kind, or FieldNone.
func (r *Resolver) field(lower string, kind Kind) Field {
	for _, rule := range r.rules {
		if rule.OrderOnly && kind != KindOrder {
			continue
		}
		if containsAny(lower, rule.Suppressors) {
			continue
		}
		if containsAny(lower, rule.Keywords) {
			return rule.Field
		}
	}
	return FieldNone
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
