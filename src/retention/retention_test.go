package retention

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dglib/buildpipe/src/config"
)

type memStore struct {
	items   []Item
	deleted []string
	failOn  string
}

func (m *memStore) List(ctx context.Context) ([]Item, error) {
	return append([]Item(nil), m.items...), nil
}

func (m *memStore) Delete(ctx context.Context, name string) error {
	if name == m.failOn {
		return errors.New("permission denied")
	}
	m.deleted = append(m.deleted, name)
	return nil
}

func day(n int) time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestApplyKeepLast(t *testing.T) {
	store := &memStore{items: []Item{
		{Name: "a", CreatedAt: day(0)},
		{Name: "c", CreatedAt: day(2)},
		{Name: "b", CreatedAt: day(1)},
	}}

	res, err := Apply(context.Background(), store, config.RetentionPolicy{KeepLast: 2})
	if err != nil {
		t.Fatal(err)
	}
	if res.Matched != 3 || res.Kept != 2 {
		t.Errorf("matched=%d kept=%d, want 3 and 2", res.Matched, res.Kept)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "a" {
		t.Errorf("deleted = %v, want [a]", store.deleted)
	}
}

func TestApplyCollectsDeleteErrors(t *testing.T) {
	store := &memStore{
		items: []Item{
			{Name: "new", CreatedAt: day(3)},
			{Name: "old1", CreatedAt: day(1)},
			{Name: "old2", CreatedAt: day(0)},
		},
		failOn: "old1",
	}

	res, err := Apply(context.Background(), store, config.RetentionPolicy{KeepLast: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) != 1 || len(res.Deleted) != 1 || res.Deleted[0] != "old2" {
		t.Errorf("result = %+v", res)
	}
}

func TestApplyInactivePolicy(t *testing.T) {
	if _, err := Apply(context.Background(), &memStore{}, config.RetentionPolicy{}); err == nil {
		t.Fatal("expected error for an inactive policy")
	}
}

func TestApplyPoliciesDaily(t *testing.T) {
	// newest-first, two items per day
	var items []Item
	for d := 3; d >= 0; d-- {
		items = append(items,
			Item{Name: "late", CreatedAt: day(d).Add(time.Hour)},
			Item{Name: "early", CreatedAt: day(d)},
		)
	}

	keep := ApplyPolicies(items, config.RetentionPolicy{KeepDaily: 2})
	want := []bool{true, false, true, false, false, false, false, false}
	for i := range want {
		if keep[i] != want[i] {
			t.Errorf("keep[%d] = %v, want %v", i, keep[i], want[i])
		}
	}
}

func TestTruncateToWeek(t *testing.T) {
	sunday := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
	want := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	if got := TruncateToWeek(sunday); !got.Equal(want) {
		t.Errorf("TruncateToWeek(%v) = %v, want %v", sunday, got, want)
	}
}

func TestDirStore(t *testing.T) {
	dir := t.TempDir()
	for i, name := range []string{"log__1.txt", "log__2.txt", "log__3.txt", "notes.txt"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		mtime := day(i)
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}

	store := DirStore{Dir: dir, Pattern: "log__*.txt", Protect: "log__1.txt"}
	res, err := Apply(context.Background(), store, config.RetentionPolicy{KeepLast: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Deleted) != 1 || res.Deleted[0] != "log__2.txt" {
		t.Errorf("deleted = %v, want [log__2.txt]", res.Deleted)
	}
	for _, name := range []string{"log__1.txt", "log__3.txt", "notes.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s removed: %v", name, err)
		}
	}
}
