package bucket

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// boltBucketName returns the bbolt top-level bucket name backing one
// bucket space, so the default and global spaces never collide.
func boltBucketName(space Space) []byte {
	return []byte(fmt.Sprintf("buckets.%s", space))
}

// BoltDB is a bbolt-backed implementation of DB, grounded on the
// teacher's BoltStore (pkg/storage/boltdb.go): one bbolt bucket per
// logical namespace, JSON-encoded values keyed by a string form of the
// entity's own identifier.
type BoltDB struct {
	db *bolt.DB
}

// OpenBoltDB opens (creating if necessary) a bbolt file at path.
func OpenBoltDB(path string) (*BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("bucket: failed to open bucket database: %w", err)
	}
	return &BoltDB{db: db}, nil
}

// Close closes the underlying bbolt file.
func (b *BoltDB) Close() error {
	return b.db.Close()
}

func idKey(id ID) []byte {
	return []byte(id.String())
}

func (b *BoltDB) Get(space Space, id ID) (Entry, bool) {
	var entry Entry
	found := false
	_ = b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(boltBucketName(space))
		if bkt == nil {
			return nil
		}
		data := bkt.Get(idKey(id))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &entry); err != nil {
			return err
		}
		found = true
		return nil
	})
	return entry, found
}

func (b *BoltDB) Put(space Space, entry Entry) {
	_ = b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists(boltBucketName(space))
		if err != nil {
			return err
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return bkt.Put(idKey(entry.ID), data)
	})
}

func (b *BoltDB) Delete(space Space, id ID) {
	_ = b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(boltBucketName(space))
		if bkt == nil {
			return nil
		}
		return bkt.Delete(idKey(id))
	})
}

func (b *BoltDB) ForEach(space Space, fn func(Entry) bool) {
	_ = b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(boltBucketName(space))
		if bkt == nil {
			return nil
		}
		return bkt.ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			if !fn(entry) {
				return errStopIteration
			}
			return nil
		})
	})
}

var errStopIteration = fmt.Errorf("bucket: iteration stopped")

func (b *BoltDB) ChildCount(space Space, id ID) int {
	count := 0
	for _, bit := range [2]bool{false, true} {
		if _, ok := b.Get(space, id.Child(bit)); ok {
			count++
		}
	}
	return count
}

// BucketCount returns the total number of entries across both bucket
// spaces, satisfying metrics.BucketCountSource.
func (b *BoltDB) BucketCount() (int, error) {
	total := 0
	for _, space := range [2]Space{SpaceDefault, SpaceGlobal} {
		_ = b.db.View(func(tx *bolt.Tx) error {
			bkt := tx.Bucket(boltBucketName(space))
			if bkt == nil {
				return nil
			}
			total += bkt.Stats().KeyN
			return nil
		})
	}
	return total, nil
}
