package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cuemby/burrow/pkg/quarantine"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketQuarantine = []byte("quarantine")
)

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "burrow.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketQuarantine); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketQuarantine, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func quarantineKey(resourceID, instanceID string) []byte {
	return []byte(resourceID + "/" + instanceID)
}

// SaveQuarantine upserts one quarantine entry
func (s *BoltStore) SaveQuarantine(e quarantine.Entry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQuarantine)
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return b.Put(quarantineKey(e.ResourceID, e.InstanceID), data)
	})
}

// GetQuarantine fetches one quarantine entry
func (s *BoltStore) GetQuarantine(resourceID, instanceID string) (*quarantine.Entry, error) {
	var entry quarantine.Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQuarantine)
		data := b.Get(quarantineKey(resourceID, instanceID))
		if data == nil {
			return fmt.Errorf("quarantine entry not found: %s/%s", resourceID, instanceID)
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListQuarantine returns every persisted entry, including permanently
// failed ones
func (s *BoltStore) ListQuarantine() ([]quarantine.Entry, error) {
	var entries []quarantine.Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQuarantine)
		return b.ForEach(func(k, v []byte) error {
			var entry quarantine.Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
			return nil
		})
	})
	return entries, err
}

// DeleteQuarantine removes one quarantine entry
func (s *BoltStore) DeleteQuarantine(resourceID, instanceID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQuarantine)
		return b.Delete(quarantineKey(resourceID, instanceID))
	})
}
