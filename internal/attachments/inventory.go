// Package attachments tracks the attachments of each wiki page and relocates
// them next to the converted Markdown.
package attachments

import (
	"sort"
	"sync"

	"github.com/starford/tracmark/internal/models"
)

// Inventory maps page names to the attachments still waiting to be copied.
// Each entry is owned by the worker converting that page; the mutex only
// guards the map itself.
type Inventory struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	pending []string
	sources map[string]string
}

func NewInventory() *Inventory {
	return &Inventory{entries: make(map[string]*entry)}
}

// Add registers an attachment as pending for its owning page.
func (inv *Inventory) Add(a models.Attachment) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	e, ok := inv.entries[a.Owner]
	if !ok {
		e = &entry{sources: make(map[string]string)}
		inv.entries[a.Owner] = e
	}
	if _, dup := e.sources[a.Filename]; !dup {
		e.pending = append(e.pending, a.Filename)
	}
	e.sources[a.Filename] = a.Path
}

// Pending returns the filenames of page not yet copied, in insertion order.
func (inv *Inventory) Pending(page string) []string {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	e, ok := inv.entries[page]
	if !ok {
		return nil
	}
	return append([]string(nil), e.pending...)
}

// Pages returns the pages that still have an entry, sorted.
func (inv *Inventory) Pages() []string {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	out := make([]string, 0, len(inv.entries))
	for name := range inv.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// lookup reports the source of filename and whether it is still pending.
func (inv *Inventory) lookup(page, filename string) (src string, pending, known bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	e, ok := inv.entries[page]
	if !ok {
		return "", false, false
	}
	src, known = e.sources[filename]
	if !known {
		return "", false, false
	}
	for _, f := range e.pending {
		if f == filename {
			return src, true, true
		}
	}
	return src, false, true
}

// done removes filename from the pending list of page.
func (inv *Inventory) done(page, filename string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	e, ok := inv.entries[page]
	if !ok {
		return
	}
	for i, f := range e.pending {
		if f == filename {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return
		}
	}
}

// Discard drops the entry of page.
func (inv *Inventory) Discard(page string) {
	inv.mu.Lock()
	delete(inv.entries, page)
	inv.mu.Unlock()
}
