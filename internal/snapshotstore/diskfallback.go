package snapshotstore

import (
	"fmt"

	"github.com/boltdb/bolt"

	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

var snapshotBucket = []byte("snapshots")

// DiskFallback mirrors snapshot bytes into a local bolt file under
// config's GetSnapshotCachePath. cmd/crdtdocd's backup loop writes to it;
// Store does not consult it when redis is unreachable. Grounded on the
// teacher's boltdb-based raft
// log/stable stores, repurposed here as a plain key/value cache rather
// than a raft log.
type DiskFallback struct {
	db *bolt.DB
}

// OpenDiskFallback opens (creating if absent) a bolt file at path.
func OpenDiskFallback(path string) (*DiskFallback, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshotstore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshotstore: init bucket: %w", err)
	}
	return &DiskFallback{db: db}, nil
}

// Put mirrors a snapshot blob for documentKey as of checkpoint.
func (d *DiskFallback) Put(documentKey string, checkpoint doctime.Checkpoint, snapshot []byte) error {
	key := []byte(cacheKey(documentKey, checkpoint))
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotBucket).Put(key, snapshot)
	})
}

// Get returns the cached snapshot bytes for documentKey as of
// checkpoint, and whether one was found.
func (d *DiskFallback) Get(documentKey string, checkpoint doctime.Checkpoint) ([]byte, bool, error) {
	key := []byte(cacheKey(documentKey, checkpoint))
	var value []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(snapshotBucket).Get(key)
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("snapshotstore: disk get %s: %w", documentKey, err)
	}
	return value, value != nil, nil
}

// Close closes the underlying bolt file.
func (d *DiskFallback) Close() error {
	return d.db.Close()
}
