// Package store persists the two domain tables the engine owns directly —
// StorageAdapter and AutomationRule (spec §3) — in a local bbolt file
// rather than a full relational database. User accounts, configuration
// rows, and backup/restore serialization stay out of scope (spec §1).
package store

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/objectfs/objectfs/pkg/errors"
	"github.com/objectfs/objectfs/pkg/types"
)

var (
	bucketAdapters = []byte("storage_adapters")
	bucketRules    = []byte("automation_rules")
)

// Store is a bbolt-backed persistence layer for StorageAdapter and
// AutomationRule records.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the bbolt file at path and ensures both
// buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to open store file").WithCause(err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketAdapters); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketRules)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to initialize store buckets").WithCause(err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying bbolt file handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutAdapter upserts a StorageAdapter record by id.
func (s *Store) PutAdapter(rec *types.StorageAdapter) error {
	return s.put(bucketAdapters, rec.ID, rec)
}

// DeleteAdapter removes a StorageAdapter record by id.
func (s *Store) DeleteAdapter(id string) error {
	return s.delete(bucketAdapters, id)
}

// GetAdapter returns one StorageAdapter record, or NotFound.
func (s *Store) GetAdapter(id string) (*types.StorageAdapter, error) {
	var rec types.StorageAdapter
	if err := s.get(bucketAdapters, id, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListEnabledAdapters implements adapter.Store.
func (s *Store) ListEnabledAdapters() ([]*types.StorageAdapter, error) {
	var out []*types.StorageAdapter
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAdapters).ForEach(func(k, v []byte) error {
			var rec types.StorageAdapter
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.Enabled {
				out = append(out, &rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to list adapters").WithCause(err)
	}
	return out, nil
}

// PutRule upserts an AutomationRule record by id.
func (s *Store) PutRule(rule *types.AutomationRule) error {
	return s.put(bucketRules, rule.ID, rule)
}

// DeleteRule removes an AutomationRule record by id.
func (s *Store) DeleteRule(id string) error {
	return s.delete(bucketRules, id)
}

// ListEnabledRulesForEvent returns every enabled rule matching event,
// consumed by internal/automation.
func (s *Store) ListEnabledRulesForEvent(event types.AutomationEvent) ([]*types.AutomationRule, error) {
	var out []*types.AutomationRule
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRules).ForEach(func(k, v []byte) error {
			var rule types.AutomationRule
			if err := json.Unmarshal(v, &rule); err != nil {
				return err
			}
			if rule.Enabled && rule.Event == event {
				out = append(out, &rule)
			}
			return nil
		})
	})
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "failed to list automation rules").WithCause(err)
	}
	return out, nil
}

// GetRule returns one AutomationRule record, or NotFound.
func (s *Store) GetRule(id string) (*types.AutomationRule, error) {
	var rule types.AutomationRule
	if err := s.get(bucketRules, id, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (s *Store) put(bucket []byte, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.NewError(errors.ErrCodeInternalError, "failed to marshal record").WithCause(err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(id), data)
	})
	if err != nil {
		return errors.NewError(errors.ErrCodeInternalError, "failed to persist record").WithCause(err)
	}
	return nil
}

func (s *Store) delete(bucket []byte, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(id))
	})
}

func (s *Store) get(bucket []byte, id string, out any) error {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get([]byte(id))
		if v == nil {
			return nil
		}
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return errors.NewError(errors.ErrCodeInternalError, "store read failed").WithCause(err)
	}
	if data == nil {
		return errors.NotFound("store", fmt.Sprintf("no record for id %q", id))
	}
	return json.Unmarshal(data, out)
}
