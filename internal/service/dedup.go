package service

// Deduplicator remembers the composite keys seen in one batch. It is never
// shared between batches.
type Deduplicator struct {
	seen map[string]struct{}
}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// IsDuplicate reports whether key was marked earlier. Empty keys never
// collide.
func (d *Deduplicator) IsDuplicate(key string) bool {
	if key == "" {
		return false
	}
	_, ok := d.seen[key]
	return ok
}

func (d *Deduplicator) MarkSeen(key string) {
	if key == "" {
		return
	}
	d.seen[key] = struct{}{}
}

func (d *Deduplicator) Len() int {
	return len(d.seen)
}
