// Package extract reads display values out of open-schema order records.
//
// Records come from several upstream shapes, so every logical field is
// resolved through an ordered list of candidate paths. Paths are dotted and
// traverse nested objects strictly: a missing segment or a non-object along
// the way makes the whole path absent.
package extract

import "strings"

// Record is an open-schema order document.
type Record = map[string]any

// Logical record fields.
const (
	FieldOrderNumber     = "order_number"
	FieldCustomerName    = "customer_name"
	FieldCustomerEmail   = "customer_email"
	FieldStatus          = "status"
	FieldItems           = "items"
	FieldTotal           = "total"
	FieldTax             = "tax"
	FieldShippingCost    = "shipping_cost"
	FieldShippingAddress = "shipping_address"
	FieldTracking        = "tracking"
	FieldDeliveryDate    = "delivery_date"
	FieldOrderDate       = "order_date"
	FieldNotes           = "notes"
)

// Item and address sub-fields.
const (
	ItemName     = "name"
	ItemQuantity = "quantity"
	ItemPrice    = "price"

	AddressStreet  = "street"
	AddressCity    = "city"
	AddressState   = "state"
	AddressPostal  = "postal"
	AddressCountry = "country"
)

// PathTable maps a logical field to its candidate paths, tried in order.
type PathTable map[string][]string

// DefaultPaths is the record field table.
func DefaultPaths() PathTable {
	return PathTable{
		FieldOrderNumber:     {"order_number", "order_id", "id"},
		FieldCustomerName:    {"customer_name", "customer.name", "name"},
		FieldCustomerEmail:   {"customer_email", "email", "customer.email"},
		FieldStatus:          {"status"},
		FieldItems:           {"items", "line_items", "order_items"},
		FieldTotal:           {"total_amount", "total", "grand_total", "amount"},
		FieldTax:             {"tax", "tax_amount", "taxAmount"},
		FieldShippingCost:    {"shipping_cost", "shipping.amount"},
		FieldShippingAddress: {"shipping.address", "shipping_address", "shippingAddress", "address"},
		FieldTracking:        {"shipping.tracking_number", "tracking_number", "tracking", "shipping.tracking"},
		FieldDeliveryDate:    {"delivered_at", "delivery_date", "shipping.delivered_at"},
		FieldOrderDate:       {"order_date", "created_at", "date"},
		FieldNotes:           {"notes", "note", "customer_notes", "internal_notes"},
	}
}

// DefaultItemPaths is the line-item field table.
func DefaultItemPaths() PathTable {
	return PathTable{
		ItemName:     {"name", "title", "sku"},
		ItemQuantity: {"qty", "quantity", "qty_ordered"},
		ItemPrice:    {"price", "unit_price", "unitPrice", "amount"},
	}
}

// DefaultAddressPaths is the structured address field table. Every street
// path that is present contributes to the street line.
func DefaultAddressPaths() PathTable {
	return PathTable{
		AddressStreet:  {"line1", "street", "address1", "street1"},
		AddressCity:    {"city"},
		AddressState:   {"state"},
		AddressPostal:  {"postal_code", "zip", "postal"},
		AddressCountry: {"country"},
	}
}

// Lookup resolves one dotted path in rec. A JSON null counts as absent.
func Lookup(rec map[string]any, path string) (any, bool) {
	if rec == nil || path == "" {
		return nil, false
	}
	var cur any = rec
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// First returns the value at the first path present in rec.
func First(rec map[string]any, paths []string) (any, bool) {
	for _, p := range paths {
		if v, ok := Lookup(rec, p); ok {
			return v, true
		}
	}
	return nil, false
}
