package results

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/civiq-care/backend/internal/survey"
)

// FileSink writes one JSON artifact per user under a directory, overwriting
// any previous artifact for the same user.
type FileSink struct {
	dir string
}

// NewFileSink creates a file sink rooted at dir, creating it if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// Store writes the record as results_<userID>.json.
func (f *FileSink) Store(ctx context.Context, rec survey.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	path := filepath.Join(f.dir, "results_"+sanitize(rec.UserID)+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// sanitize keeps the user ID usable as a file name component.
func sanitize(userID string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, userID)
}
