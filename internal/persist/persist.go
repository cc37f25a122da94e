// Package persist mirrors chat state into a PebbleDB key-value store.
// The in-memory store stays authoritative; this is a crash-safe copy that
// seeds the next session.
package persist

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble/v2"
	"github.com/rs/zerolog/log"

	"jibber/internal/chat"
	"jibber/internal/notify"
)

var (
	keySnapshot = []byte("snapshot")
	keyFeed     = []byte("notifications")
)

type Store struct {
	db *pebble.DB
}

func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// SaveSnapshot writes the full snapshot. Called on every store mutation.
func (s *Store) SaveSnapshot(snap *chat.Snapshot) error {
	if s == nil || s.db == nil {
		return nil
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.db.Set(keySnapshot, b, pebble.Sync)
}

// LoadSnapshot returns the persisted snapshot, or nil when there is none or
// it cannot be read. Missing, malformed and schema-mismatched data all fall
// back to nil so the caller seeds defaults instead of crashing.
func (s *Store) LoadSnapshot() *chat.Snapshot {
	b, ok := s.get(keySnapshot)
	if !ok {
		return nil
	}
	var snap chat.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		log.Warn().Err(err).Msg("[persist] malformed snapshot, starting fresh")
		return nil
	}
	if snap.Version != chat.SnapshotVersion {
		log.Warn().Int("version", snap.Version).Msg("[persist] snapshot schema mismatch, starting fresh")
		return nil
	}
	return &snap
}

// SaveFeed persists the notification feed independently of chat data.
func (s *Store) SaveFeed(entries []notify.Entry) error {
	if s == nil || s.db == nil {
		return nil
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.db.Set(keyFeed, b, pebble.Sync)
}

// LoadFeed returns the persisted notification feed; malformed or missing
// data yields an empty feed.
func (s *Store) LoadFeed() ([]notify.Entry, error) {
	b, ok := s.get(keyFeed)
	if !ok {
		return nil, nil
	}
	var entries []notify.Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		log.Warn().Err(err).Msg("[persist] malformed notification feed, dropping it")
		return nil, nil
	}
	return entries, nil
}

// SetRaw and GetRaw expose the keyspace to sibling stores (media attachments
// share the same database).
func (s *Store) SetRaw(key, val []byte) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Set(key, val, pebble.Sync)
}

func (s *Store) GetRaw(key []byte) ([]byte, bool) {
	return s.get(key)
}

func (s *Store) get(key []byte) ([]byte, bool) {
	if s == nil || s.db == nil {
		return nil, false
	}
	val, closer, err := s.db.Get(key)
	if err != nil {
		if err != pebble.ErrNotFound {
			log.Warn().Err(err).Msg("[persist] read failed")
		}
		return nil, false
	}
	out := append([]byte(nil), val...)
	_ = closer.Close()
	return out, true
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
