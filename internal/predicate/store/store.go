// Package store implements the durable predicate registry: a key-value
// directory keyed by predicate UUID, holding each predicate's document and
// its current status, updated atomically per key (spec.md §6 "Persistence
// layout").
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/hirosystems/chainhook/internal/predicate"
)

var (
	predicatesBucket = []byte("predicates")
	statusBucket     = []byte("predicate_status")

	// ErrNotFound is returned by Get/UpdateStatus when uuid is not
	// registered.
	ErrNotFound = errors.New("store: predicate not found")
)

// Store is a bbolt-backed predicate registry. The zero value is not usable;
// construct with Open.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) the bbolt database at path and
// ensures both buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(predicatesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(statusBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Register persists p with status New in a single transaction. Registering
// an already-present uuid overwrites both the document and its status.
func (s *Store) Register(p predicate.Predicate) error {
	status := predicate.NewStatus()
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putPair(tx, p.UUID, p, status)
	})
}

// Get returns the predicate document and current status for uuid.
func (s *Store) Get(uuid string) (predicate.Predicate, predicate.PredicateStatus, error) {
	var p predicate.Predicate
	var status predicate.PredicateStatus

	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(predicatesBucket).Get([]byte(uuid))
		if raw == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("store: decode predicate %s: %w", uuid, err)
		}
		if err := p.RecompileRegex(); err != nil {
			return fmt.Errorf("store: recompile predicate %s: %w", uuid, err)
		}
		statusRaw := tx.Bucket(statusBucket).Get([]byte(uuid))
		if statusRaw == nil {
			return fmt.Errorf("store: predicate %s has no status record", uuid)
		}
		return json.Unmarshal(statusRaw, &status)
	})
	if err != nil {
		return predicate.Predicate{}, predicate.PredicateStatus{}, err
	}
	return p, status, nil
}

// List returns every registered predicate alongside its status.
func (s *Store) List() ([]predicate.Predicate, []predicate.PredicateStatus, error) {
	var predicates []predicate.Predicate
	var statuses []predicate.PredicateStatus

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(predicatesBucket).ForEach(func(k, v []byte) error {
			var p predicate.Predicate
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("store: decode predicate %s: %w", k, err)
			}
			if err := p.RecompileRegex(); err != nil {
				return fmt.Errorf("store: recompile predicate %s: %w", k, err)
			}
			statusRaw := tx.Bucket(statusBucket).Get(k)
			if statusRaw == nil {
				return fmt.Errorf("store: predicate %s has no status record", k)
			}
			var status predicate.PredicateStatus
			if err := json.Unmarshal(statusRaw, &status); err != nil {
				return fmt.Errorf("store: decode status %s: %w", k, err)
			}
			predicates = append(predicates, p)
			statuses = append(statuses, status)
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return predicates, statuses, nil
}

// UpdateStatus atomically replaces uuid's status. It does not touch the
// predicate document.
func (s *Store) UpdateStatus(uuid string, status predicate.PredicateStatus) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(predicatesBucket).Get([]byte(uuid)) == nil {
			return ErrNotFound
		}
		encoded, err := json.Marshal(status)
		if err != nil {
			return fmt.Errorf("store: encode status %s: %w", uuid, err)
		}
		return tx.Bucket(statusBucket).Put([]byte(uuid), encoded)
	})
}

// Deregister removes uuid's document and status in a single transaction.
func (s *Store) Deregister(uuid string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(predicatesBucket).Get([]byte(uuid)) == nil {
			return ErrNotFound
		}
		if err := tx.Bucket(predicatesBucket).Delete([]byte(uuid)); err != nil {
			return err
		}
		return tx.Bucket(statusBucket).Delete([]byte(uuid))
	})
}

func putPair(tx *bbolt.Tx, uuid string, p predicate.Predicate, status predicate.PredicateStatus) error {
	encodedPredicate, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("store: encode predicate %s: %w", uuid, err)
	}
	encodedStatus, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("store: encode status %s: %w", uuid, err)
	}
	if err := tx.Bucket(predicatesBucket).Put([]byte(uuid), encodedPredicate); err != nil {
		return err
	}
	return tx.Bucket(statusBucket).Put([]byte(uuid), encodedStatus)
}
