package bucket

import "sort"

// MemDB is an in-memory DB, used by tests and by `distributord serve`,
// which always runs against a MemDB. It is not safe for
// concurrent use without external locking, matching the single-
// threaded-per-distributor-main-loop model of spec.md §5.
type MemDB struct {
	spaces map[Space]map[ID]Entry
}

// NewMemDB returns an empty MemDB.
func NewMemDB() *MemDB {
	return &MemDB{spaces: map[Space]map[ID]Entry{}}
}

func (m *MemDB) space(s Space) map[ID]Entry {
	if m.spaces[s] == nil {
		m.spaces[s] = map[ID]Entry{}
	}
	return m.spaces[s]
}

func (m *MemDB) Get(space Space, id ID) (Entry, bool) {
	e, ok := m.space(space)[id]
	return e, ok
}

func (m *MemDB) Put(space Space, entry Entry) {
	m.space(space)[entry.ID] = entry
}

func (m *MemDB) Delete(space Space, id ID) {
	delete(m.space(space), id)
}

func (m *MemDB) ForEach(space Space, fn func(Entry) bool) {
	entries := m.space(space)
	ids := make([]ID, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].UsedBits != ids[j].UsedBits {
			return ids[i].UsedBits < ids[j].UsedBits
		}
		return ids[i].Raw < ids[j].Raw
	})
	for _, id := range ids {
		if !fn(entries[id]) {
			return
		}
	}
}

// BucketCount reports the total number of entries tracked across both
// bucket spaces, satisfying metrics.BucketCountSource.
func (m *MemDB) BucketCount() (int, error) {
	count := 0
	for _, entries := range m.spaces {
		count += len(entries)
	}
	return count, nil
}

func (m *MemDB) ChildCount(space Space, id ID) int {
	count := 0
	for _, bit := range [2]bool{false, true} {
		if _, ok := m.Get(space, id.Child(bit)); ok {
			count++
		}
	}
	return count
}
