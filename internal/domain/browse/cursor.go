package browse

import (
	"maps"

	"github.com/edumarques81/stellar-online/internal/domain/catalog"
)

// Cursor tracks incremental loading of the song list. It remembers every
// id loaded since the last from-scratch load, whether or not a local
// search currently hides it.
type Cursor struct {
	// Token continues a filtered query; empty for random pages.
	Token       catalog.Cursor
	CanLoadMore bool

	seen map[string]struct{}
}

// newCursor starts a cursor over the first page of a list.
func newCursor(token catalog.Cursor, canLoadMore bool, first []catalog.Track) Cursor {
	c := Cursor{Token: token, CanLoadMore: canLoadMore, seen: make(map[string]struct{}, len(first))}
	for _, t := range first {
		c.seen[t.ID] = struct{}{}
	}
	return c
}

// Reset clears the cursor for a from-scratch load.
func (c *Cursor) Reset() {
	*c = Cursor{}
}

// admit records the tracks of page not loaded before and returns them in
// page order. Duplicates inside page are dropped too.
func (c *Cursor) admit(page []catalog.Track) []catalog.Track {
	if c.seen == nil {
		c.seen = make(map[string]struct{}, len(page))
	}
	var added []catalog.Track
	for _, t := range page {
		if _, ok := c.seen[t.ID]; ok {
			continue
		}
		c.seen[t.ID] = struct{}{}
		added = append(added, t)
	}
	return added
}

// clone returns a copy that shares no state with c.
func (c Cursor) clone() Cursor {
	c.seen = maps.Clone(c.seen)
	return c
}

// appendUnique returns existing followed by the tracks of page whose ids
// are not already present, plus the tracks that were added. Duplicates
// inside page are dropped too.
func appendUnique(existing, page []catalog.Track) ([]catalog.Track, []catalog.Track) {
	seen := make(map[string]struct{}, len(existing)+len(page))
	for _, t := range existing {
		seen[t.ID] = struct{}{}
	}
	var added []catalog.Track
	for _, t := range page {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		added = append(added, t)
	}
	if len(added) == 0 {
		return existing, nil
	}
	out := make([]catalog.Track, 0, len(existing)+len(added))
	out = append(out, existing...)
	return append(out, added...), added
}
