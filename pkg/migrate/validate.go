package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

var (
	migrationFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
	uniqueIndexRe   = regexp.MustCompile(`(?is)CREATE\s+UNIQUE\s+INDEX\s+(?:IF\s+NOT\s+EXISTS\s+)?(\w+)\s+ON\s+(\w+)\s*\([^)]*\)\s*(?:WHERE\s+([^;]+))?;`)
	spaceRe         = regexp.MustCompile(`\s+`)
)

// StoreIndex is a unique index the users store depends on for email lookup,
// identity linking or sale dedup.
type StoreIndex struct {
	Name  string
	Table string
	// Where is the partial index predicate, empty for a full index.
	Where string
}

var StoreIndexes = []StoreIndex{
	{Name: "idx_users_email", Table: "users"},
	{Name: "idx_users_external_identity_id", Table: "users", Where: "external_identity_id IS NOT NULL"},
	{Name: "idx_user_purchases_external_sale_id", Table: "user_purchases", Where: "external_sale_id IS NOT NULL"},
}

// ValidateDir checks every migration in dir is a well-formed goose file and
// that, taken together, their Up sections create StoreIndexes. All problems
// are reported at once.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("migrations dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var errs error
	versions := map[string]string{}
	created := map[string]StoreIndex{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".sql" {
			continue
		}
		match := migrationFileRe.FindStringSubmatch(name)
		if match == nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: filename must be YYYYMMDDHHMMSS_name.sql", name))
			continue
		}
		if prev, ok := versions[match[1]]; ok {
			errs = multierr.Append(errs, fmt.Errorf("%s: version %s already used by %s", name, match[1], prev))
			continue
		}
		versions[match[1]] = name

		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		up, err := upSection(string(body))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		for _, idx := range uniqueIndexes(up) {
			created[idx.Name] = idx
		}
	}
	return multierr.Append(errs, checkStoreIndexes(created))
}

func upSection(body string) (string, error) {
	up := strings.Index(body, "-- +goose Up")
	if up < 0 {
		return "", errors.New(`missing "-- +goose Up"`)
	}
	down := strings.Index(body, "-- +goose Down")
	if down < 0 {
		return "", errors.New(`missing "-- +goose Down"`)
	}
	if down < up {
		return "", errors.New("goose Down section precedes Up")
	}
	return body[up:down], nil
}

func uniqueIndexes(sql string) []StoreIndex {
	var out []StoreIndex
	for _, m := range uniqueIndexRe.FindAllStringSubmatch(sql, -1) {
		out = append(out, StoreIndex{Name: m[1], Table: m[2], Where: normalizePredicate(m[3])})
	}
	return out
}

func checkStoreIndexes(created map[string]StoreIndex) error {
	var errs error
	for _, want := range StoreIndexes {
		got, ok := created[want.Name]
		switch {
		case !ok:
			errs = multierr.Append(errs, fmt.Errorf("no migration creates unique index %s", want.Name))
		case got.Table != want.Table:
			errs = multierr.Append(errs, fmt.Errorf("unique index %s is on %s, want %s", want.Name, got.Table, want.Table))
		case got.Where != normalizePredicate(want.Where):
			errs = multierr.Append(errs, fmt.Errorf("unique index %s has predicate %q, want %q", want.Name, got.Where, want.Where))
		}
	}
	return errs
}

func normalizePredicate(where string) string {
	return strings.ToLower(spaceRe.ReplaceAllString(strings.TrimSpace(where), " "))
}
