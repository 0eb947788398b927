// Package format turns order records into the sentences the assistant prints.
package format

import (
	"fmt"
	"strings"

	"github.com/morezero/order-assistant/pkg/extract"
)

// Formatter renders summaries and single-field answers.
type Formatter struct {
	ex *extract.Extractor
}

// New returns a Formatter backed by ex (extract.New() when nil).
func New(ex *extract.Extractor) *Formatter {
	if ex == nil {
		ex = extract.New()
	}
	return &Formatter{ex: ex}
}

// Extractor returns the extractor used for field lookups.
func (f *Formatter) Extractor() *extract.Extractor {
	return f.ex
}

// Summary renders one order as a short paragraph. The greeting and status
// sentence come first; the email sentence, when present, is always second.
// Optional sentences are omitted when their field is absent.
func (f *Formatter) Summary(rec extract.Record) string {
	greeting := "Hello! "
	if name, ok := f.ex.Value(rec, extract.FieldCustomerName); ok {
		greeting = fmt.Sprintf("Hello %s! ", name)
	}

	orderID, ok := f.ex.Value(rec, extract.FieldOrderNumber)
	if !ok {
		orderID = extract.Placeholder(extract.FieldOrderNumber)
	}
	sentences := []string{
		fmt.Sprintf("%sYour order %s is %s.", greeting, orderID, f.ex.Field(rec, extract.FieldStatus)),
	}
	if email, ok := f.ex.Value(rec, extract.FieldCustomerEmail); ok {
		sentences = append(sentences, fmt.Sprintf("Customer email: %s.", email))
	}
	sentences = append(sentences, fmt.Sprintf("Items: %s.", f.ex.Field(rec, extract.FieldItems)))
	if total, ok := f.ex.Value(rec, extract.FieldTotal); ok {
		sentences = append(sentences, fmt.Sprintf("Total: %s.", total))
	}
	sentences = append(sentences, fmt.Sprintf("Shipping to: %s.", f.ex.Field(rec, extract.FieldShippingAddress)))
	if tracking, ok := f.ex.Value(rec, extract.FieldTracking); ok {
		sentences = append(sentences, fmt.Sprintf("Tracking: %s.", tracking))
	}
	if delivered, ok := f.ex.Value(rec, extract.FieldDeliveryDate); ok {
		sentences = append(sentences, fmt.Sprintf("Delivered on: %s.", delivered))
	}
	if notes, ok := f.ex.Value(rec, extract.FieldNotes); ok {
		sentences = append(sentences, fmt.Sprintf("Notes: %s.", notes))
	}
	return strings.Join(sentences, " ")
}

// History renders an email's order list, one line per order.
func (f *Formatter) History(email string, orders []extract.Record) string {
	if len(orders) == 0 {
		return fmt.Sprintf("No orders found for %s.", email)
	}

	greeting := "Hello! "
	for _, o := range orders {
		if name, ok := f.ex.Value(o, extract.FieldCustomerName); ok {
			greeting = fmt.Sprintf("Hello %s! ", name)
			break
		}
	}
	plural := "s"
	if len(orders) == 1 {
		plural = ""
	}

	lines := []string{fmt.Sprintf("%sYou have %d order%s:", greeting, len(orders), plural)}
	for i, o := range orders {
		total, ok := f.ex.Value(o, extract.FieldTotal)
		if !ok {
			total = "(no total)"
		}
		lines = append(lines, fmt.Sprintf("%d. %s, %s, Total: %s, Order Date: %s",
			i+1, f.orderID(o), f.ex.Field(o, extract.FieldStatus), total, f.ex.Field(o, extract.FieldOrderDate)))
	}
	lines = append(lines, fmt.Sprintf("Customer email: %s", email))
	return strings.Join(lines, "\n")
}

// FieldAnswer renders the reply to a single-field question about one order.
// field is an extract field name.
func (f *Formatter) FieldAnswer(orderID, field string, rec extract.Record) string {
	value := f.ex.Field(rec, field)
	switch field {
	case extract.FieldTotal:
		return fmt.Sprintf("The total cost of %s is %s.", orderID, value)
	case extract.FieldStatus:
		return fmt.Sprintf("%s status: %s.", orderID, value)
	case extract.FieldShippingAddress:
		return fmt.Sprintf("Shipping address for %s: %s", orderID, value)
	case extract.FieldTracking:
		return fmt.Sprintf("Tracking for %s: %s", orderID, value)
	case extract.FieldItems:
		return fmt.Sprintf("Items in %s: %s", orderID, value)
	case extract.FieldCustomerEmail:
		return fmt.Sprintf("Customer email for %s: %s", orderID, value)
	case extract.FieldOrderDate:
		return fmt.Sprintf("%s date: %s", orderID, value)
	default:
		return fmt.Sprintf("%s %s: %s", orderID, Label(field), value)
	}
}

// HistoryFieldAnswer renders one field across every order of an email.
func (f *Formatter) HistoryFieldAnswer(email, field string, orders []extract.Record) string {
	if len(orders) == 0 {
		return fmt.Sprintf("No orders found for %s.", email)
	}
	lines := []string{fmt.Sprintf("Orders for %s, %s:", email, Label(field))}
	for _, o := range orders {
		lines = append(lines, fmt.Sprintf("%s: %s", f.orderID(o), f.ex.Field(o, field)))
	}
	return strings.Join(lines, "\n")
}

// labels name fields the way users ask for them.
var labels = map[string]string{
	extract.FieldCustomerEmail: "email",
	extract.FieldOrderDate:     "date",
}

// Label returns the user-facing name of an extract field.
func Label(field string) string {
	if l, ok := labels[field]; ok {
		return l
	}
	return strings.ReplaceAll(field, "_", " ")
}

func (f *Formatter) orderID(rec extract.Record) string {
	if id, ok := f.ex.Value(rec, extract.FieldOrderNumber); ok {
		return id
	}
	return "(unknown)"
}
