package bootstrap

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

const logPrefix = "bootstrap:loader"

// LoadSeedConfig loads seed data from file paths or environment.
// It tries paths in order: first any paths passed in, then SEED_FILE env, then defaults.
// Files may be YAML or JSON. When nothing loads, the built-in sample orders are used.
func LoadSeedConfig(paths ...string) (*SeedConfig, error) {
	all := make([]string, 0, len(paths)+3)
	for _, p := range paths {
		if p != "" {
			all = append(all, p)
		}
	}
	if envPath := os.Getenv("SEED_FILE"); envPath != "" {
		all = append(all, envPath)
	}
	all = append(all, "config/orders.seed.yaml", "orders.seed.json")

	for _, p := range all {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}

		cfg, err := ParseSeedConfig(data)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - Failed to parse seed file %s: %v", logPrefix, p, err))
			continue
		}

		slog.Info(fmt.Sprintf("%s - Loaded %d orders from %s", logPrefix, len(cfg.Orders), p))
		return cfg, nil
	}

	slog.Info(fmt.Sprintf("%s - Using built-in sample orders", logPrefix))
	return GetDefaultSeedConfig(), nil
}

// ParseSeedConfig decodes a YAML or JSON seed document.
func ParseSeedConfig(data []byte) (*SeedConfig, error) {
	var cfg SeedConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s - decode seed: %w", logPrefix, err)
	}
	if len(cfg.Orders) == 0 {
		return nil, fmt.Errorf("%s - seed has no orders", logPrefix)
	}
	return &cfg, nil
}

// GetDefaultSeedConfig returns the built-in sample orders. The documents
// deliberately use different key layouts for the same information.
func GetDefaultSeedConfig() *SeedConfig {
	return &SeedConfig{
		Name:        "order-samples",
		Version:     "1.0.0",
		Description: "Sample orders covering the record shapes the assistant understands",
		Orders: []map[string]any{
			{
				"order_number":   "ORD-2024-001",
				"customer_name":  "Alice Johnson",
				"customer_email": "alice@example.com",
				"status":         "shipped",
				"items": []any{
					map[string]any{"name": "Wireless Mouse", "qty": 1, "price": 29.99},
					map[string]any{"name": "USB-C Cable", "qty": 2, "price": 9.5},
				},
				"total_amount": 48.99,
				"shipping": map[string]any{
					"address": map[string]any{
						"street":      "123 Main St",
						"city":        "Springfield",
						"state":       "IL",
						"postal_code": "62701",
						"country":     "US",
					},
					"tracking_number": "1Z999AA10123456784",
				},
				"order_date": "2024-01-05T10:30:00Z",
			},
			{
				"order_id": "ORD-2024-002",
				"customer": map[string]any{"name": "Alice Johnson", "email": "alice@example.com"},
				"status":   "delivered",
				"line_items": []any{
					map[string]any{"title": "Mechanical Keyboard", "quantity": 1, "unit_price": 119},
				},
				"shipping_cost":    7.5,
				"tax":              9.52,
				"shipping_address": "123 Main St, Springfield, IL 62701",
				"tracking":         "9400111899223197428490",
				"delivered_at":     "2024-02-14",
				"created_at":       "2024-02-10 08:15:00",
			},
			{
				"order_number":   "ORD-2024-003",
				"customer_name":  "Bob Smith",
				"customer_email": "bob@example.com",
				"status":         "processing",
				"items": []any{
					map[string]any{"sku": "SKU-1", "name": "Widget", "qty": 3},
				},
				"total":      "TBD",
				"order_date": "2024-03-01",
				"notes":      "Gift wrap requested",
			},
			{
				"order_number":   "ORD-2024-004",
				"customer_email": "bob@example.com",
				"status":         "cancelled",
				"items":          []any{},
				"total_amount":   0,
				"order_date":     "2024-03-20T16:45:00Z",
			},
		},
	}
}
