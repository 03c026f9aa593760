package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/pressly/goose/v3"
)

var (
	nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)
	sqlFileRe      = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
)

// dialectOnlySQL lists constructs that only one of the supported dialects
// accepts. Catalog migrations run on postgres in production and on sqlite in
// dev and tests, so they have to stay in the shared subset.
var dialectOnlySQL = map[string]string{
	"SERIAL":        "postgres",
	"JSONB":         "postgres",
	"::":            "postgres",
	"AUTOINCREMENT": "sqlite",
	"PRAGMA":        "sqlite",
}

var sqlTemplate = template.Must(template.New("bakeshop.sql").Parse(`-- +goose Up
-- Portable SQL only: runs on postgres and sqlite. Prices are NUMERIC(10,2).
-- +goose StatementBegin
SELECT 'up: {{.CamelName}}';
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
SELECT 'down: {{.CamelName}}';
-- +goose StatementEnd
`))

// CreateSQLMigration writes a timestamped goose SQL migration into dir and
// returns its path.
func CreateSQLMigration(dir string, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	safe := sanitizeName(name)
	if safe == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	before, err := sqlFiles(dir)
	if err != nil {
		return "", err
	}
	if err := goose.CreateWithTemplate(nil, dir, sqlTemplate, safe, "sql"); err != nil {
		return "", fmt.Errorf("create migration %q: %w", safe, err)
	}
	after, err := sqlFiles(dir)
	if err != nil {
		return "", err
	}
	for file := range after {
		if _, existed := before[file]; !existed {
			return filepath.Join(dir, file), nil
		}
	}
	return "", fmt.Errorf("migration %q was not written to %q", safe, dir)
}

// ValidateDir checks migration filenames, version uniqueness, goose headers
// and that no migration leans on a single dialect.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	files, err := sqlFiles(dir)
	if err != nil {
		return err
	}

	for name := range files {
		if !sqlFileRe.MatchString(name) {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		full := filepath.Join(dir, name)
		b, err := os.ReadFile(full)
		if err != nil {
			return fmt.Errorf("read file %q: %w", full, err)
		}
		if err := checkBody(name, string(b)); err != nil {
			return err
		}
	}

	if _, err := goose.CollectMigrations(dir, 0, goose.MaxVersion); err != nil {
		return fmt.Errorf("collect migrations in %q: %w", dir, err)
	}
	return nil
}

func checkBody(name, body string) error {
	if !strings.Contains(body, "-- +goose Up") {
		return fmt.Errorf("migration %q missing \"-- +goose Up\"", name)
	}
	if !strings.Contains(body, "-- +goose Down") {
		return fmt.Errorf("migration %q missing \"-- +goose Down\"", name)
	}
	upper := strings.ToUpper(stripComments(body))
	for token, dialect := range dialectOnlySQL {
		if strings.Contains(upper, token) {
			return fmt.Errorf("migration %q uses %s-only %q", name, dialect, token)
		}
	}
	return nil
}

func stripComments(body string) string {
	lines := strings.Split(body, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func sanitizeName(name string) string {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = strings.ReplaceAll(safe, " ", "_")
	safe = nameSanitizeRe.ReplaceAllString(safe, "_")
	return strings.Trim(safe, "_")
}

func sqlFiles(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}
	out := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		out[e.Name()] = struct{}{}
	}
	return out, nil
}
