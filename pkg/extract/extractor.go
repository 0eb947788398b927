package extract

import (
	"strings"
)

// Placeholders rendered when a field is absent.
var placeholders = map[string]string{
	FieldOrderNumber:     "(unknown order)",
	FieldCustomerName:    "(no name)",
	FieldCustomerEmail:   "(no email)",
	FieldStatus:          "(unknown)",
	FieldItems:           "(no items)",
	FieldTotal:           "(unknown)",
	FieldTax:             "(unknown)",
	FieldShippingCost:    "(unknown)",
	FieldShippingAddress: "(no shipping address)",
	FieldTracking:        "(no tracking number)",
	FieldDeliveryDate:    "(no delivery date)",
	FieldOrderDate:       "(no date)",
	FieldNotes:           "(no notes)",
}

// Placeholder returns the text shown when field is absent.
func Placeholder(field string) string {
	if p, ok := placeholders[field]; ok {
		return p
	}
	return "(unknown)"
}

// Extractor resolves logical fields through its path tables.
type Extractor struct {
	paths   PathTable
	items   PathTable
	address PathTable
}

// New returns an Extractor over the default tables.
func New() *Extractor {
	return &Extractor{paths: DefaultPaths(), items: DefaultItemPaths(), address: DefaultAddressPaths()}
}

// NewWithTables returns an Extractor over the given tables (already merged onto defaults).
func NewWithTables(t Tables) *Extractor {
	return &Extractor{paths: t.Fields, items: t.Items, address: t.Address}
}

// Raw returns the value at the first present path of field.
func (e *Extractor) Raw(rec Record, field string) (any, bool) {
	return First(rec, e.paths[field])
}

// Value renders field for display. ok is false when the field is absent or
// renders empty.
func (e *Extractor) Value(rec Record, field string) (string, bool) {
	var out string
	switch field {
	case FieldTotal:
		out = e.total(rec)
	case FieldTax, FieldShippingCost:
		if v, ok := e.Raw(rec, field); ok {
			out = Money(v)
		}
	case FieldOrderDate, FieldDeliveryDate:
		if v, ok := e.Raw(rec, field); ok {
			out = Date(v)
		}
	case FieldShippingAddress:
		if v, ok := e.Raw(rec, field); ok {
			out = Address(v, e.address)
		}
	case FieldItems:
		if v, ok := e.Raw(rec, field); ok {
			out = Items(v, e.items)
		}
	default:
		if v, ok := e.Raw(rec, field); ok {
			out = Text(v)
		}
	}
	out = strings.TrimSpace(out)
	return out, out != ""
}

// Field renders field, substituting its placeholder when absent.
func (e *Extractor) Field(rec Record, field string) string {
	if v, ok := e.Value(rec, field); ok {
		return v
	}
	return Placeholder(field)
}

// total renders the stored total, or derives one from line items plus
// shipping and tax. A derived total of zero is treated as unknown.
func (e *Extractor) total(rec Record) string {
	if v, ok := e.Raw(rec, FieldTotal); ok {
		if _, numeric := toFloat(v); numeric {
			return Money(v)
		}
		if s := strings.TrimSpace(Text(v)); s != "" {
			return s
		}
	}
	if sum := e.DerivedTotal(rec); sum != 0 {
		return Money(sum)
	}
	return ""
}

// DerivedTotal sums price x quantity over line items plus shipping cost and tax.
// Items without a numeric price contribute nothing; quantities are truncated.
func (e *Extractor) DerivedTotal(rec Record) float64 {
	var sum float64
	if v, ok := e.Raw(rec, FieldItems); ok {
		if list, ok := v.([]any); ok {
			for _, raw := range list {
				it, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				pv, ok := First(it, e.items[ItemPrice])
				if !ok {
					continue
				}
				price, ok := toFloat(pv)
				if !ok {
					continue
				}
				qty := 1.0
				if qv, ok := First(it, e.items[ItemQuantity]); ok {
					if q, ok := toFloat(qv); ok {
						qty = float64(int64(q))
					}
				}
				sum += price * qty
			}
		}
	}
	for _, f := range []string{FieldShippingCost, FieldTax} {
		if v, ok := e.Raw(rec, f); ok {
			if n, ok := toFloat(v); ok {
				sum += n
			}
		}
	}
	return sum
}
