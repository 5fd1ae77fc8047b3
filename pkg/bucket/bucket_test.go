package bucket

import "testing"

func TestIDChildParentRoundTrip(t *testing.T) {
	id, err := New(4, 0xABCD000000000000)
	if err != nil {
		t.Fatal(err)
	}
	lo := id.Child(false)
	hi := id.Child(true)
	if lo.UsedBits != 5 || hi.UsedBits != 5 {
		t.Fatalf("expected used-bits 5, got %d / %d", lo.UsedBits, hi.UsedBits)
	}
	if lo.Parent() != id || hi.Parent() != id {
		t.Fatal("Parent() must invert Child()")
	}
	if lo == hi {
		t.Fatal("the two children must differ")
	}
}

func TestIDSiblingFirst(t *testing.T) {
	id, _ := New(4, 0)
	lo := id.Child(false)
	hi := id.Child(true)
	if !lo.IsSiblingFirst() {
		t.Fatal("low child should be first sibling")
	}
	if hi.IsSiblingFirst() {
		t.Fatal("high child should not be first sibling")
	}
	if lo.Sibling() != hi || hi.Sibling() != lo {
		t.Fatal("Sibling() should be its own inverse")
	}
}

func TestNewRejectsOutOfRangeBits(t *testing.T) {
	if _, err := New(0, 0); err == nil {
		t.Fatal("expected error for used-bits below minimum")
	}
	if _, err := New(59, 0); err == nil {
		t.Fatal("expected error for used-bits above maximum")
	}
}

func TestMemDBChildCount(t *testing.T) {
	db := NewMemDB()
	parent, _ := New(4, 0)
	db.Put(SpaceDefault, Entry{ID: parent})
	if db.ChildCount(SpaceDefault, parent) != 0 {
		t.Fatal("expected no children yet")
	}
	db.Put(SpaceDefault, Entry{ID: parent.Child(false)})
	if db.ChildCount(SpaceDefault, parent) != 1 {
		t.Fatal("expected one child")
	}
	db.Put(SpaceDefault, Entry{ID: parent.Child(true)})
	if db.ChildCount(SpaceDefault, parent) != 2 {
		t.Fatal("expected two children")
	}
}

func TestEntryHighestMetaCount(t *testing.T) {
	e := Entry{Copies: []Copy{
		{NodeIndex: 0, Valid: true, Info: Info{MetaCount: 3}},
		{NodeIndex: 1, Valid: true, Info: Info{MetaCount: 9}},
		{NodeIndex: 2, Valid: false, Info: Info{MetaCount: 100}},
	}}
	if e.HighestMetaCount() != 9 {
		t.Fatalf("expected 9, got %d", e.HighestMetaCount())
	}
}

func TestCopyConsistentWith(t *testing.T) {
	a := Copy{Valid: true, Info: Info{Checksum: 1}}
	b := Copy{Valid: true, Info: Info{Checksum: 2}}
	if a.ConsistentWith(b, true, true) {
		t.Fatal("mismatched checksums on ideal copies should be inconsistent")
	}

	emptyNonIdeal := Copy{Valid: true, Empty: true, Info: Info{Checksum: 0}}
	other := Copy{Valid: true, Info: Info{Checksum: 99}}
	if !emptyNonIdeal.ConsistentWith(other, false, true) {
		t.Fatal("empty copy on a non-ideal node should be ignored in consistency checks")
	}
}

func TestMemDBForEachOrdering(t *testing.T) {
	db := NewMemDB()
	b3, _ := New(4, 0x3000000000000000)
	b1, _ := New(4, 0x1000000000000000)
	b2, _ := New(4, 0x2000000000000000)
	db.Put(SpaceDefault, Entry{ID: b3})
	db.Put(SpaceDefault, Entry{ID: b1})
	db.Put(SpaceDefault, Entry{ID: b2})

	var seen []uint64
	db.ForEach(SpaceDefault, func(e Entry) bool {
		seen = append(seen, e.ID.Raw)
		return true
	})
	if len(seen) != 3 || seen[0] != b1.Raw || seen[1] != b2.Raw || seen[2] != b3.Raw {
		t.Fatalf("expected ascending raw order, got %v", seen)
	}
}
