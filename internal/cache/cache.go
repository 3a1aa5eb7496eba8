// Package cache holds learned DNS records in a tree of zones keyed by domain
// label, mirroring the delegation hierarchy. Walking from the closest cached
// ancestor toward a name is the shared primitive behind both cache hits and
// delegation discovery.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/yuriy-kovalchuk/yk-dns-resolver/internal/wire"
)

// Zone is one node of the domain tree. Records are attached exactly at the
// zone's own name; children are keyed by a single label.
type Zone struct {
	children map[string]*Zone
	records  []*wire.Record
}

func newZone() *Zone {
	return &Zone{children: map[string]*Zone{}}
}

// Cache owns the zone tree rooted at the DNS root. The serve loop resolves
// one query at a time, but every operation still takes the cache lock so the
// tree stays consistent under any future parallel callers.
type Cache struct {
	mu   sync.Mutex
	root *Zone
	now  func() time.Time // swapped out in tests
}

// New returns an empty cache. Callers normally seed it with root hints
// before first use.
func New() *Cache {
	return &Cache{root: newZone(), now: time.Now}
}

// SplitName splits a domain into its labels, most specific first:
// "www.example.com" → ["www", "example", "com"]. Names are case-insensitive
// and a trailing dot is elided; the root name splits to nil.
func SplitName(name string) []string {
	name = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
	if name == "" {
		return nil
	}
	return strings.Split(name, ".")
}

// Lookup walks the tree toward the given label path and returns the deepest
// zone that exists plus the suffix of the path actually matched, in the same
// most-specific-first order. An exact hit returns the full path.
func (c *Cache) Lookup(path []string) ([]string, *Zone) {
	c.mu.Lock()
	defer c.mu.Unlock()

	zone := c.root
	for i := len(path) - 1; i >= 0; i-- {
		child, ok := zone.children[path[i]]
		if !ok {
			return path[i+1:], zone
		}
		zone = child
	}
	return path, zone
}

// Records returns the unexpired records of the given type held directly at
// the zone. Expired records found during the scan are purged in the same
// critical section; read and prune are one atomic step.
func (c *Cache) Records(zone *Zone, rrtype wire.RRType) []*wire.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var matches []*wire.Record
	kept := zone.records[:0]
	for _, r := range zone.records {
		if r.Expired(now) {
			continue
		}
		kept = append(kept, r)
		if r.Type == rrtype {
			matches = append(matches, r)
		}
	}
	zone.records = kept
	return matches
}

// Insert adds records to the zones named by each record, lazily creating any
// missing zone nodes along the way. Records are grouped by name so a batch
// for one domain walks the tree once. Duplicates are not collapsed.
func (c *Cache) Insert(records []*wire.Record) {
	byName := map[string][]*wire.Record{}
	for _, r := range records {
		name := strings.TrimSuffix(strings.ToLower(r.Name), ".")
		byName[name] = append(byName[name], r)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for name, group := range byName {
		zone := c.root
		path := SplitName(name)
		for i := len(path) - 1; i >= 0; i-- {
			child, ok := zone.children[path[i]]
			if !ok {
				child = newZone()
				zone.children[path[i]] = child
			}
			zone = child
		}
		zone.records = append(zone.records, group...)
	}
}
