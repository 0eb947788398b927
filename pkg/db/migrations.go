package db

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
)

const migrationsLogPrefix = "db:migrations"

const downSuffix = ".down.sql"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migration is one schema version: a forward script and an optional rollback.
type Migration struct {
	// Version is the file name without its suffix, e.g. "0001_create_orders".
	Version string
	Up      string
	Down    string
}

// EmbeddedMigrations returns the migrations compiled into the binary.
func EmbeddedMigrations() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// LoadMigrationDir loads migrations from dir, or the embedded set when dir is empty.
func LoadMigrationDir(dir string) ([]Migration, error) {
	if dir == "" {
		return LoadMigrations(EmbeddedMigrations())
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("%s - failed to read migration dir %s: %w", migrationsLogPrefix, dir, err)
	}
	return LoadMigrations(os.DirFS(dir))
}

// LoadMigrations reads NNNN_name.sql files and their NNNN_name.down.sql
// rollbacks from the root of fsys, ordered by version. A rollback without a
// forward script is an error.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read migrations: %w", migrationsLogPrefix, err)
	}

	byVersion := make(map[string]*Migration)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to read %s: %w", migrationsLogPrefix, name, err)
		}
		down := strings.HasSuffix(name, downSuffix)
		version := strings.TrimSuffix(name, ".sql")
		if down {
			version = strings.TrimSuffix(name, downSuffix)
		}
		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version}
			byVersion[version] = m
		}
		if down {
			m.Down = string(data)
		} else {
			m.Up = string(data)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("%s - %s%s has no forward migration", migrationsLogPrefix, m.Version, downSuffix)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	slog.Debug(fmt.Sprintf("%s - Loaded %d migrations", migrationsLogPrefix, len(out)))
	return out, nil
}

// pending returns the migrations not yet applied, in order.
func pending(all []Migration, applied map[string]bool) []Migration {
	var out []Migration
	for _, m := range all {
		if !applied[m.Version] {
			out = append(out, m)
		}
	}
	return out
}

// latestApplied returns the highest applied migration known to all.
func latestApplied(all []Migration, applied map[string]bool) (Migration, bool) {
	for i := len(all) - 1; i >= 0; i-- {
		if applied[all[i].Version] {
			return all[i], true
		}
	}
	return Migration{}, false
}
