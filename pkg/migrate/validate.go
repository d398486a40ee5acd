package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pressly/goose/v3"
)

var migrationName = regexp.MustCompile(`^\d{14}_[a-z0-9_]+\.sql$`)

const (
	upMarker   = "-- +goose Up"
	downMarker = "-- +goose Down"
)

// ValidateDir reports every malformed migration in dir at once: names must
// be <14-digit version>_<snake_name>.sql, each file needs an Up section
// followed by a Down section, and goose must be able to order the set, which
// rules out duplicate versions.
func ValidateDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("migrations dir is required")
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("list migrations in %q: %w", dir, err)
	}

	var problems []error
	for _, path := range files {
		name := filepath.Base(path)
		if !migrationName.MatchString(name) {
			problems = append(problems, fmt.Errorf("%s: expected YYYYMMDDHHMMSS_name.sql", name))
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", name, err))
			continue
		}
		up := strings.Index(string(content), upMarker)
		down := strings.Index(string(content), downMarker)
		switch {
		case up < 0:
			problems = append(problems, fmt.Errorf("%s: missing %q", name, upMarker))
		case down < 0:
			problems = append(problems, fmt.Errorf("%s: missing %q", name, downMarker))
		case down < up:
			problems = append(problems, fmt.Errorf("%s: Down section precedes Up", name))
		}
	}
	if len(problems) > 0 {
		return errors.Join(problems...)
	}

	if _, err := goose.CollectMigrations(dir, 0, goose.MaxVersion); err != nil {
		return fmt.Errorf("collect migrations: %w", err)
	}
	return nil
}
