package transcriptstore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Open returns the in-memory store for "memory" (or an empty location) and a
// SQLite store at the given file path otherwise.
func Open(location string) (Store, error) {
	location = strings.TrimSpace(location)
	if location == "" || location == "memory" {
		return NewInMemoryStore(0), nil
	}
	if dir := filepath.Dir(location); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create store directory")
		}
	}
	dsn, err := SQLiteDSNForFile(location)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStore(dsn)
}
