package postpage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/eringen/postpage/content"
)

const pageKeyPrefix = "post:"

// PageSnapshot is a persisted page record with the time it was loaded.
type PageSnapshot struct {
	Post      content.Post `json:"post"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// PageStore persists built pages in Badger so a restart keeps them.
type PageStore struct {
	db *badger.DB
}

// OpenPageStore opens a Badger database in dir. An empty dir opens an
// in-memory database.
func OpenPageStore(dir string) (*PageStore, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create page cache dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &PageStore{db: db}, nil
}

// Close closes the database.
func (s *PageStore) Close() error {
	return s.db.Close()
}

func pageKey(slug string) []byte {
	return []byte(pageKeyPrefix + slug)
}

// Put stores post under slug.
func (s *PageStore) Put(slug string, post content.Post, fetchedAt time.Time) error {
	data, err := json.Marshal(PageSnapshot{Post: post, FetchedAt: fetchedAt})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(pageKey(slug), data)
	})
}

// Get loads the snapshot for slug. ok is false when none exists.
func (s *PageStore) Get(slug string) (snap PageSnapshot, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pageKey(slug))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return PageSnapshot{}, false, nil
	}
	if err != nil {
		return PageSnapshot{}, false, fmt.Errorf("get snapshot %q: %w", slug, err)
	}
	return snap, true, nil
}

// Delete removes the snapshot for slug, if any.
func (s *PageStore) Delete(slug string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(pageKey(slug))
	})
}

// All returns every stored snapshot.
func (s *PageStore) All() ([]PageSnapshot, error) {
	var snaps []PageSnapshot
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(pageKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var snap PageSnapshot
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &snap)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			snaps = append(snaps, snap)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snaps, nil
}
