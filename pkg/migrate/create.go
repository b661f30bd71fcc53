package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

const versionLayout = "20060102150405"

var migrationNameRe = regexp.MustCompile(`^[a-z][a-z0-9]*(_[a-z0-9]+)*$`)

const migrationTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- revert %[1]s
-- +goose StatementEnd
`

// NewMigration writes an empty goose migration named
// <dir>/<YYYYMMDDHHMMSS>_<name>.sql for the postgres store. name must be
// lower snake case, e.g. add_referral_codes.
func NewMigration(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", errors.New("migrations dir is required")
	}
	if !migrationNameRe.MatchString(name) {
		return "", fmt.Errorf("migration name %q must be lower snake case", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create migrations dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", now.UTC().Format(versionLayout), name))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("migration %s already exists", path)
		}
		return "", fmt.Errorf("create migration: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, migrationTemplate, name); err != nil {
		return "", fmt.Errorf("write migration: %w", err)
	}
	return path, nil
}
