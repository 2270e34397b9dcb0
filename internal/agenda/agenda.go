// Package agenda supplies the engaged agenda items the engine syncs.
//
// Source is the boundary to the events platform: the network layer
// normally implements it. The shipped Dir implementation reads one
// validated JSON intent file per item from a directory, which is what
// the CLI and daemon run against.
package agenda

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/showgrid/agendacal/internal/calendar"
)

// Source reports the agenda items the user currently holds an RSVP for.
type Source interface {
	EngagedItems(ctx context.Context) ([]calendar.Intent, error)
}

// Dir reads engaged items from a directory of *.json intent files.
type Dir struct {
	dir    string
	logger *log.Logger
}

// NewDir creates a directory-backed Source. If logger is nil, a
// default logger writing to stderr is used.
func NewDir(dir string, logger *log.Logger) *Dir {
	if logger == nil {
		logger = log.New(os.Stderr, "[agenda] ", log.LstdFlags)
	}
	return &Dir{dir: dir, logger: logger}
}

// EngagedItems reads every *.json file in the directory.
// Individual bad files are logged and skipped, not fatal.
func (d *Dir) EngagedItems(ctx context.Context) ([]calendar.Intent, error) {
	entries, err := os.ReadDir(d.dir)
	if os.IsNotExist(err) {
		d.logger.Printf("Agenda directory doesn't exist: %s (treating as empty)", d.dir)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read agenda directory: %w", err)
	}

	var out []calendar.Intent
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		intent, err := ReadIntentFile(filepath.Join(d.dir, entry.Name()))
		if err != nil {
			d.logger.Printf("Skipping %s: %v", entry.Name(), err)
			continue
		}
		out = append(out, *intent)
	}
	return out, nil
}

// ReadIntentFile reads and validates one intent file.
func ReadIntentFile(path string) (*calendar.Intent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read intent file: %w", err)
	}

	var intent calendar.Intent
	if err := json.Unmarshal(data, &intent); err != nil {
		return nil, fmt.Errorf("failed to parse intent file %s: %w", path, err)
	}
	if err := intent.Validate(); err != nil {
		return nil, fmt.Errorf("invalid intent in %s: %w", path, err)
	}
	return &intent, nil
}

var _ Source = (*Dir)(nil)
