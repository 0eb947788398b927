package extract

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

const logPrefix = "extract:tables"

// Tables bundles the record, line-item and address path tables.
type Tables struct {
	Fields  PathTable `yaml:"fields"`
	Items   PathTable `yaml:"items"`
	Address PathTable `yaml:"address"`
}

// DefaultTables returns copies of the built-in tables.
func DefaultTables() Tables {
	return Tables{Fields: DefaultPaths(), Items: DefaultItemPaths(), Address: DefaultAddressPaths()}
}

// LoadTables reads a YAML override file and merges it onto the defaults.
// A field listed in the file replaces that field's candidate list; fields the
// file omits keep their defaults. An empty path returns the defaults.
//
//	fields:
//	  total: [total_amount, totals.grand]
//	items:
//	  price: [price, unit_price]
func LoadTables(path string) (Tables, error) {
	tables := DefaultTables()
	if path == "" {
		return tables, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return tables, fmt.Errorf("%s - failed to read %s: %w", logPrefix, path, err)
	}
	var override Tables
	if err := yaml.Unmarshal(data, &override); err != nil {
		return tables, fmt.Errorf("%s - failed to parse %s: %w", logPrefix, path, err)
	}

	n := merge(tables.Fields, override.Fields) +
		merge(tables.Items, override.Items) +
		merge(tables.Address, override.Address)
	slog.Info(fmt.Sprintf("%s - Loaded %d path overrides from %s", logPrefix, n, path))
	return tables, nil
}

// merge copies non-empty override entries into dst and returns how many it copied.
func merge(dst, override PathTable) int {
	n := 0
	for field, paths := range override {
		if len(paths) == 0 {
			continue
		}
		dst[field] = append([]string(nil), paths...)
		n++
	}
	return n
}
