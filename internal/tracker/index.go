package tracker

import (
	"sync"

	"github.com/wolfman30/leadtriage/internal/extract"
)

// Index maps namespaced identifier keys to lead ids. It is derived from the
// lead records and rebuilt from them at startup; it is never persisted.
type Index struct {
	mu    sync.RWMutex
	byKey map[string]string
}

func NewIndex() *Index {
	return &Index{byKey: make(map[string]string)}
}

// Add points every identifier key at leadID. A key shared by several leads
// belongs to the oldest one; lead ids are ULIDs, so the smaller id is older.
// The owner therefore depends only on the record set, not on insertion order.
func (i *Index) Add(leadID string, ids extract.Identifiers) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, key := range ids.Keys() {
		if owner, taken := i.byKey[key]; !taken || leadID < owner {
			i.byKey[key] = leadID
		}
	}
}

// Lookup returns the distinct lead ids matched by ids, in identifier order.
func (i *Index) Lookup(ids extract.Identifiers) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	var out []string
	seen := make(map[string]bool)
	for _, key := range ids.Keys() {
		id, ok := i.byKey[key]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Reset drops every entry.
func (i *Index) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.byKey = make(map[string]string)
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.byKey)
}
