package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/pressly/goose/v3"
)

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9]+`)

// CreateSQLMigration writes a timestamped goose SQL skeleton for name into
// dir and returns its path. "Add Refund Reason!" becomes
// <version>_add_refund_reason.sql.
func CreateSQLMigration(dir, name string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", errors.New("migrations dir is required")
	}
	slug := strings.Trim(unsafeNameChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create migrations dir: %w", err)
	}

	before, err := filepath.Glob(filepath.Join(dir, "*_"+slug+".sql"))
	if err != nil {
		return "", err
	}
	goose.SetSequential(false)
	if err := goose.Create(nil, dir, slug, "sql"); err != nil {
		return "", fmt.Errorf("goose create %s: %w", slug, err)
	}
	after, err := filepath.Glob(filepath.Join(dir, "*_"+slug+".sql"))
	if err != nil {
		return "", err
	}
	for _, path := range after {
		if !slices.Contains(before, path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("goose create %s: no file written", slug)
}
