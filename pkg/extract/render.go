package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Money renders v as "$1,234.50". Values that are not numeric pass through as text.
func Money(v any) string {
	f, ok := toFloat(v)
	if !ok {
		return Text(v)
	}
	return "$" + humanize.FormatFloat("#,###.##", f)
}

// dateLayouts are tried in order for string dates.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Date renders v as "Jan 05, 2024". Unparseable values pass through unchanged.
func Date(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format("Jan 02, 2006")
	case *time.Time:
		if t != nil {
			return t.Format("Jan 02, 2006")
		}
		return ""
	case map[string]any:
		// extended JSON dates: {"$date": "..."}
		if inner, ok := t["$date"]; ok {
			return Date(inner)
		}
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.Format("Jan 02, 2006")
			}
		}
		return t
	}
	return Text(v)
}

// Address renders a structured address as "street, city, state, postal, country",
// skipping empty parts. Plain strings pass through.
func Address(v any, paths PathTable) string {
	m, ok := v.(map[string]any)
	if !ok {
		return Text(v)
	}
	var street []string
	for _, p := range paths[AddressStreet] {
		if s := textAt(m, p); s != "" {
			street = append(street, s)
		}
	}
	cityState := joinNonEmpty(", ", firstText(m, paths[AddressCity]), firstText(m, paths[AddressState]))
	return joinNonEmpty(", ",
		strings.Join(street, " "),
		cityState,
		firstText(m, paths[AddressPostal]),
		firstText(m, paths[AddressCountry]),
	)
}

// Items renders a line-item list as "name (qty x price), ...". An item with no
// resolvable price renders as "name (qty x qty=raw)". Non-list values pass through.
func Items(v any, paths PathTable) string {
	list, ok := v.([]any)
	if !ok {
		return Text(v)
	}
	parts := make([]string, 0, len(list))
	for _, raw := range list {
		it, ok := raw.(map[string]any)
		if !ok {
			parts = append(parts, Text(raw))
			continue
		}
		name := firstText(it, paths[ItemName])
		if name == "" {
			name = "Item"
		}
		qtyRaw, hasQty := First(it, paths[ItemQuantity])
		if !hasQty {
			qtyRaw = 1
		}
		qty := quantity(qtyRaw)
		if price, ok := First(it, paths[ItemPrice]); ok {
			parts = append(parts, fmt.Sprintf("%s (%s x %s)", name, qty, Money(price)))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s x qty=%s)", name, qty, Text(qtyRaw)))
	}
	return strings.Join(parts, ", ")
}

// Text renders a scalar for display. Objects and lists render as JSON.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// quantity renders a count truncated to an integer.
func quantity(v any) string {
	f, ok := toFloat(v)
	if !ok {
		return Text(v)
	}
	return strconv.FormatInt(int64(math.Trunc(f)), 10)
}

// toFloat converts JSON numbers and numeric strings.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func textAt(m map[string]any, path string) string {
	v, ok := Lookup(m, path)
	if !ok {
		return ""
	}
	return strings.TrimSpace(Text(v))
}

func firstText(m map[string]any, paths []string) string {
	for _, p := range paths {
		if s := textAt(m, p); s != "" {
			return s
		}
	}
	return ""
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
