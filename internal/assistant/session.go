// Package assistant answers order questions for one conversation: it resolves
// intent, consults the session cache, dispatches tool calls and renders replies.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/morezero/order-assistant/pkg/cache"
	"github.com/morezero/order-assistant/pkg/dispatcher"
	"github.com/morezero/order-assistant/pkg/events"
	"github.com/morezero/order-assistant/pkg/extract"
	"github.com/morezero/order-assistant/pkg/format"
	"github.com/morezero/order-assistant/pkg/generate"
	"github.com/morezero/order-assistant/pkg/intent"
)

const logPrefix = "assistant:session"

// logPrefixPattern matches the "pkg:file - " prefix carried by wrapped errors.
var logPrefixPattern = regexp.MustCompile(`^[\w/.-]+:[\w.-]+ - `)

// DefaultHistoryLimit is the history page size requested per email lookup.
const DefaultHistoryLimit = 10

// ToolInvoker runs tool calls; *dispatcher.Dispatcher implements it.
type ToolInvoker interface {
	Invoke(ctx context.Context, call dispatcher.ToolCall) *dispatcher.ToolResult
}

// fieldOf maps a requested field onto the extractor's logical field.
var fieldOf = map[intent.Field]string{
	intent.FieldTotal:    extract.FieldTotal,
	intent.FieldStatus:   extract.FieldStatus,
	intent.FieldShipping: extract.FieldShippingAddress,
	intent.FieldTracking: extract.FieldTracking,
	intent.FieldItems:    extract.FieldItems,
	intent.FieldEmail:    extract.FieldCustomerEmail,
	intent.FieldDate:     extract.FieldOrderDate,
}

// Session is one conversation. Its cache lives exactly as long as the Session.
type Session struct {
	id           string
	cache        *cache.Session
	resolver     *intent.Resolver
	format       *format.Formatter
	invoker      ToolInvoker
	gen          generate.Generator
	historyLimit int
}

// NewSessionParams holds parameters for NewSession. Only Invoker is required.
type NewSessionParams struct {
	Invoker ToolInvoker
	// Generator answers free text; nil reports an LLM error for such input.
	Generator    generate.Generator
	Extractor    *extract.Extractor
	Resolver     *intent.Resolver
	HistoryLimit int
}

// NewSession creates a Session with an empty cache and a fresh id.
func NewSession(p NewSessionParams) *Session {
	resolver := p.Resolver
	if resolver == nil {
		resolver = intent.NewResolver(nil)
	}
	limit := p.HistoryLimit
	if limit < 1 {
		limit = DefaultHistoryLimit
	}
	s := &Session{
		id:           uuid.NewString(),
		cache:        cache.New(),
		resolver:     resolver,
		format:       format.New(p.Extractor),
		invoker:      p.Invoker,
		gen:          p.Generator,
		historyLimit: limit,
	}
	slog.Debug(fmt.Sprintf("%s - session %s started", logPrefix, s.id))
	return s
}

// ID returns the session id attached to dispatch events.
func (s *Session) ID() string {
	return s.id
}

// Cache returns the session cache.
func (s *Session) Cache() *cache.Session {
	return s.cache
}

// Handle answers one user utterance. It never fails; every error becomes a reply.
func (s *Session) Handle(ctx context.Context, text string) string {
	ctx = events.WithSessionID(ctx, s.id)

	it := s.resolver.Resolve(text)
	slog.Debug(fmt.Sprintf("%s - kind=%s key=%s field=%q", logPrefix, it.Kind, it.Key, it.Field))

	switch it.Kind {
	case intent.KindOrder:
		return s.handleOrder(ctx, it)
	case intent.KindEmail:
		return s.handleEmail(ctx, it)
	default:
		return s.handleFreeText(ctx, text)
	}
}

func (s *Session) handleOrder(ctx context.Context, it intent.Intent) string {
	rec, err := s.loadOrder(ctx, it.Key)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - order %s lookup failed: %v", logPrefix, it.Key, err))
		switch {
		case dispatcher.IsKind(err, dispatcher.KindNotFound):
			return fmt.Sprintf("I can't find order %s. Please check the order number and try again.", it.Key)
		case dispatcher.IsKind(err, dispatcher.KindServiceUnavailable):
			return dispatcher.UnavailableMessage
		default:
			return "Sorry, I encountered an error looking up your order. Please try again in a few minutes."
		}
	}

	if it.Field == intent.FieldNone {
		return s.format.Summary(rec)
	}
	return s.format.FieldAnswer(it.Key, fieldOf[it.Field], rec)
}

func (s *Session) handleEmail(ctx context.Context, it intent.Intent) string {
	res := s.invoker.Invoke(ctx, dispatcher.ToolCall{
		Tool: dispatcher.ToolOrderHistory,
		Args: map[string]any{"email": it.Key, "limit": s.historyLimit},
	})
	if res.Err != nil {
		slog.Warn(fmt.Sprintf("%s - history for %s failed: %v", logPrefix, it.Key, res.Err))
		switch res.Err.Kind {
		case dispatcher.KindNotFound:
			return fmt.Sprintf("I couldn't find any orders for %s.", it.Key)
		case dispatcher.KindServiceUnavailable:
			return dispatcher.UnavailableMessage
		default:
			return "Sorry, I encountered an error looking up orders. Please try again in a few minutes."
		}
	}

	orders, ok := historyRecords(res)
	if !ok {
		slog.Warn(fmt.Sprintf("%s - history for %s returned an unexpected payload", logPrefix, it.Key))
		return "Sorry, I encountered an error looking up orders. Please try again in a few minutes."
	}
	n := s.cache.PutAll(orders, s.orderID)
	slog.Debug(fmt.Sprintf("%s - cached %d/%d history records", logPrefix, n, len(orders)))

	if it.Field == intent.FieldNone {
		return s.format.History(it.Key, orders)
	}
	return s.format.HistoryFieldAnswer(it.Key, fieldOf[it.Field], orders)
}

func (s *Session) handleFreeText(ctx context.Context, text string) string {
	if s.gen == nil {
		return "LLM error: no generation backend configured"
	}
	out, err := s.gen.Generate(ctx, generate.Prompt(text))
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - generation failed: %v", logPrefix, err))
		return "LLM error: " + causeOf(err)
	}

	call, ok := toolSuggestion(out)
	if !ok {
		return out
	}
	slog.Info(fmt.Sprintf("%s - generated text suggested tool %s", logPrefix, call.Tool))

	if call.Tool == dispatcher.ToolOrderStatus {
		orderNumber := ""
		if v, ok := call.Args["order_number"]; ok {
			orderNumber = strings.TrimSpace(extract.Text(v))
		}
		if orderNumber == "" {
			return "order_number required in tool args"
		}
		rec, err := s.loadOrder(ctx, orderNumber)
		if err != nil {
			if dispatcher.IsKind(err, dispatcher.KindNotFound) {
				return fmt.Sprintf("I can't find order %s.", orderNumber)
			}
			return fmt.Sprintf("Order lookup failed: %v", err)
		}
		return s.format.Summary(rec)
	}

	res := s.invoker.Invoke(ctx, call)
	var v any = res.Payload
	if res.Err != nil {
		v = res.Err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("Order lookup failed: %v", err)
	}
	return string(b)
}

// loadOrder returns the cached record for orderNumber or fetches and caches it.
func (s *Session) loadOrder(ctx context.Context, orderNumber string) (cache.Record, error) {
	rec, hit, err := s.cache.Load(ctx, orderNumber, func(ctx context.Context) (cache.Record, error) {
		res := s.invoker.Invoke(ctx, dispatcher.ToolCall{
			Tool: dispatcher.ToolOrderStatus,
			Args: map[string]any{"order_number": orderNumber},
		})
		if res.Err != nil {
			return nil, res.Err
		}
		obj, ok := res.Object()
		if !ok {
			return nil, &dispatcher.ToolError{Kind: dispatcher.KindInvalidJSON, Detail: "order payload is not an object"}
		}
		return obj, nil
	})
	if err != nil {
		return nil, err
	}
	if hit {
		slog.Debug(fmt.Sprintf("%s - order %s served from cache", logPrefix, orderNumber))
	}
	return rec, nil
}

func (s *Session) orderID(rec cache.Record) string {
	id, _ := s.format.Extractor().Value(rec, extract.FieldOrderNumber)
	return id
}

// historyRecords pulls the order list out of a history payload.
func historyRecords(res *dispatcher.ToolResult) ([]cache.Record, bool) {
	obj, ok := res.Object()
	if !ok {
		return nil, false
	}
	raw, ok := obj["orders"]
	if !ok || raw == nil {
		return []cache.Record{}, true
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	out := make([]cache.Record, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, true
}

// errNotToolCall marks generated text that is not a tool suggestion.
var errNotToolCall = errors.New("not a tool call")

// toolSuggestion reports whether generated text is, or embeds, a JSON object
// naming a tool.
func toolSuggestion(text string) (dispatcher.ToolCall, bool) {
	call, err := parseToolCall(strings.TrimSpace(text))
	if err == nil {
		return call, true
	}
	if obj, ok := generate.ExtractJSONObject(text); ok {
		if call, err := parseToolCall(obj); err == nil {
			return call, true
		}
	}
	return dispatcher.ToolCall{}, false
}

func parseToolCall(s string) (dispatcher.ToolCall, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return dispatcher.ToolCall{}, err
	}
	tool, ok := raw["tool"].(string)
	if !ok || tool == "" {
		return dispatcher.ToolCall{}, errNotToolCall
	}
	args, _ := raw["args"].(map[string]any)
	if args == nil {
		args = map[string]any{}
	}
	return dispatcher.ToolCall{Tool: tool, Args: args}, nil
}

// causeOf returns the innermost error message without its log prefix.
func causeOf(err error) string {
	for next := errors.Unwrap(err); next != nil; next = errors.Unwrap(err) {
		err = next
	}
	return logPrefixPattern.ReplaceAllString(err.Error(), "")
}
