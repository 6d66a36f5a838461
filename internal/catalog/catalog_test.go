package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"blockcheck/internal/models"
)

const sampleCatalog = `
categories:
  - name: Ads
    services:
      - name: Example
        domains:
          - A.test
          - " b.test "
  - name: Analytics
    services:
      - name: Tracker
        domains:
          - c.test
`

func TestParse(t *testing.T) {
	seed, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if seed.Size() != 3 {
		t.Fatalf("expected 3 domains, got %d", seed.Size())
	}

	want := []models.Category{
		{Name: "Ads", Services: []models.ServiceGroup{{
			Name: "Example",
			Domains: []models.DomainEntry{
				{Name: "a.test", Status: models.StatusPending},
				{Name: "b.test", Status: models.StatusPending},
			},
		}}},
		{Name: "Analytics", Services: []models.ServiceGroup{{
			Name:    "Tracker",
			Domains: []models.DomainEntry{{Name: "c.test", Status: models.StatusPending}},
		}}},
	}
	if diff := cmp.Diff(want, seed.Categories()); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want error
	}{
		{
			name: "duplicate category",
			yaml: "categories: [{name: A}, {name: A}]",
			want: ErrDuplicateCategory,
		},
		{
			name: "duplicate service",
			yaml: "categories: [{name: A, services: [{name: S}, {name: S}]}]",
			want: ErrDuplicateService,
		},
		{
			name: "duplicate domain after normalisation",
			yaml: "categories: [{name: A, services: [{name: S, domains: [x.test, X.TEST]}]}]",
			want: ErrDuplicateDomain,
		},
		{
			name: "empty service name",
			yaml: "categories: [{name: A, services: [{name: ' '}]}]",
			want: ErrEmptyName,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDefaultCatalog(t *testing.T) {
	seed := Default()
	if seed.Size() == 0 {
		t.Fatal("embedded catalog is empty")
	}
	table := NewTable(seed)
	if table.Len() != seed.Size() {
		t.Errorf("table has %d entries, seed has %d", table.Len(), seed.Size())
	}
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	seed, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if seed.Size() != Default().Size() {
		t.Errorf("expected default catalog")
	}
}

func statusAt(table *Table, i int) models.Status {
	return table.Results()[i].Status
}

func TestTable(t *testing.T) {
	seed, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	table := NewTable(seed)

	t.Run("lookup", func(t *testing.T) {
		i, ok := table.Lookup(Key{Category: "Ads", Service: "Example", Domain: "b.test"})
		if !ok || i != 1 {
			t.Fatalf("expected index 1, got %d (ok=%v)", i, ok)
		}
		if _, ok := table.Lookup(Key{Category: "Ads", Service: "Example", Domain: "c.test"}); ok {
			t.Error("unexpected match across services")
		}
	})

	t.Run("resolve transitions once", func(t *testing.T) {
		if !table.Resolve(0, models.StatusBlocked) {
			t.Fatal("expected pending entry to resolve")
		}
		if table.Resolve(0, models.StatusReachable) {
			t.Error("terminal entry must not transition again")
		}
		if statusAt(table, 0) != models.StatusBlocked {
			t.Errorf("expected blocked, got %s", statusAt(table, 0))
		}
		if table.Resolve(1, models.StatusPending) {
			t.Error("pending is not a terminal status")
		}
		if table.Resolve(99, models.StatusBlocked) {
			t.Error("out of range index resolved")
		}
	})

	t.Run("snapshot does not alias table", func(t *testing.T) {
		snap := table.Snapshot()
		snap[0].Services[0].Domains[0].Status = models.StatusReachable
		if statusAt(table, 0) != models.StatusBlocked {
			t.Error("snapshot mutation leaked into table")
		}
	})

	t.Run("tables from one seed are independent", func(t *testing.T) {
		a := NewTable(seed)
		b := NewTable(seed)
		a.Resolve(2, models.StatusReachable)
		if statusAt(b, 2) != models.StatusPending {
			t.Error("tables share state")
		}
		if seed.Categories()[1].Services[0].Domains[0].Status != models.StatusPending {
			t.Error("seed mutated through table")
		}
	})

	t.Run("results follow catalog order", func(t *testing.T) {
		results := NewTable(seed).Results()
		got := make([]string, len(results))
		for i, r := range results {
			got[i] = r.Domain
		}
		if diff := cmp.Diff([]string{"a.test", "b.test", "c.test"}, got); diff != "" {
			t.Errorf("order mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestWatcherReloadsCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	reloaded := make(chan *Seed, 4)
	w := NewWatcher(path, func(s *Seed) { reloaded <- s })
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- w.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	updated := "categories: [{name: Only, services: [{name: One, domains: [z.test]}]}]"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case seed := <-reloaded:
			done = seed.Size() == 1
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
