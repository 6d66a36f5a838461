package catalog

import (
	"blockcheck/internal/models"
)

// Key identifies one catalog entry.
type Key struct {
	Category string `json:"category"`
	Service  string `json:"service"`
	Domain   string `json:"domain"`
}

// Table is the flat, indexed live state of a catalog. It is not safe for
// concurrent use; the owner serialises access.
type Table struct {
	keys     []Key
	statuses []models.Status
	index    map[Key]int
	layout   []categoryRange
}

type categoryRange struct {
	name     string
	services []serviceRange
}

type serviceRange struct {
	name       string
	start, end int
}

// NewTable materialises a fresh all-pending table from the seed. The table
// never aliases seed data.
func NewTable(seed *Seed) *Table {
	t := &Table{
		keys:     make([]Key, 0, seed.Size()),
		statuses: make([]models.Status, 0, seed.Size()),
		index:    make(map[Key]int, seed.Size()),
		layout:   make([]categoryRange, 0, len(seed.categories)),
	}
	for _, c := range seed.categories {
		cr := categoryRange{name: c.name}
		for _, svc := range c.services {
			sr := serviceRange{name: svc.name, start: len(t.keys)}
			for _, d := range svc.domains {
				key := Key{Category: c.name, Service: svc.name, Domain: d}
				t.index[key] = len(t.keys)
				t.keys = append(t.keys, key)
				t.statuses = append(t.statuses, models.StatusPending)
			}
			sr.end = len(t.keys)
			cr.services = append(cr.services, sr)
		}
		t.layout = append(t.layout, cr)
	}
	return t
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.keys)
}

// Key returns the key stored at index i.
func (t *Table) Key(i int) Key {
	return t.keys[i]
}

// Lookup returns the index of key. Keys from another seed may be absent.
func (t *Table) Lookup(key Key) (int, bool) {
	i, ok := t.index[key]
	return i, ok
}

// Resolve moves a pending entry to a terminal status. It reports false when
// the entry is out of range or already resolved.
func (t *Table) Resolve(i int, status models.Status) bool {
	if i < 0 || i >= len(t.statuses) || !status.Terminal() {
		return false
	}
	if t.statuses[i] != models.StatusPending {
		return false
	}
	t.statuses[i] = status
	return true
}

// Snapshot returns a read-only copy of the table as a catalog tree.
func (t *Table) Snapshot() []models.Category {
	out := make([]models.Category, 0, len(t.layout))
	for _, cr := range t.layout {
		cat := models.Category{
			Name:     cr.name,
			Services: make([]models.ServiceGroup, 0, len(cr.services)),
		}
		for _, sr := range cr.services {
			group := models.ServiceGroup{
				Name:    sr.name,
				Domains: make([]models.DomainEntry, 0, sr.end-sr.start),
			}
			for i := sr.start; i < sr.end; i++ {
				group.Domains = append(group.Domains, models.DomainEntry{
					Name:   t.keys[i].Domain,
					Status: t.statuses[i],
				})
			}
			cat.Services = append(cat.Services, group)
		}
		out = append(out, cat)
	}
	return out
}

// Results flattens the table in catalog order.
func (t *Table) Results() []models.DomainResult {
	out := make([]models.DomainResult, len(t.keys))
	for i, key := range t.keys {
		out[i] = models.DomainResult{
			Category: key.Category,
			Service:  key.Service,
			Domain:   key.Domain,
			Status:   t.statuses[i],
		}
	}
	return out
}
