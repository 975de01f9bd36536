package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirStore offers the files in Dir matching Pattern, dated by mtime.
// Protect names a file that is never listed, typically the log being written.
type DirStore struct {
	Dir     string
	Pattern string
	Protect string
}

// List implements Store.
func (s DirStore) List(ctx context.Context) ([]Item, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, s.Pattern))
	if err != nil {
		return nil, fmt.Errorf("matching %s: %w", s.Pattern, err)
	}

	items := make([]Item, 0, len(matches))
	for _, path := range matches {
		name := filepath.Base(path)
		if name == s.Protect {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			continue
		}
		items = append(items, Item{Name: name, CreatedAt: info.ModTime()})
	}
	return items, nil
}

// Delete implements Store.
func (s DirStore) Delete(ctx context.Context, name string) error {
	return os.Remove(filepath.Join(s.Dir, name))
}
