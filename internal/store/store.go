// Package store is the typed persistence layer of §6: library metadata,
// embeddings, embedding failures, the visualization basis, playlist
// history, and station records, all backed by a single BadgerDB instance.
//
// Grounded on github.com/haivivi/giztoy/go/pkg/kv's Badger store: one
// *badger.DB, key-prefix iteration via badger.IteratorOptions.Prefix, and
// View/Update transactions per operation. Values are JSON-encoded records
// rather than kv's raw []byte contract, since every persisted shape here is
// a small, infrequently-written struct where JSON's self-description is
// worth more than a hand-rolled binary layout (embeddings are JSON too; a
// 100-float32 vector is small either way).
package store

import (
	"encoding/json"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/arung-agamani/denpa-radio/internal/radioerr"
)

// Key prefixes. A colon separates prefix from id so a prefix scan for
// "embedding:" never matches "embedding_failure:".
const (
	prefixTrack       = "track:"
	prefixEmbedding   = "embedding:"
	prefixEmbedFail   = "embedding_failure:"
	prefixPlaylistHist = "playlist_history:"
	prefixStation     = "station:"
	keyVizConfig      = "visualization_config"
)

// Store is the BadgerDB-backed implementation of every persistence
// interface the core depends on (aes.EmbeddingStore, aes.MetadataStore,
// aes.VisualizationConfigStore, curator.LibrarySource, aes.TrackLister, and
// the station/history operations internal/station and internal/library
// need).
type Store struct {
	db *badger.DB
}

// Options configures Store's underlying BadgerDB instance.
type Options struct {
	// Dir is the on-disk directory for BadgerDB's data files. Required
	// unless InMemory is set.
	Dir string
	// InMemory runs BadgerDB without touching disk, for tests.
	InMemory bool
}

// Open creates or opens a Store at the given options.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, radioerr.New(radioerr.Validation, "store: Dir is required unless InMemory is set")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	dbOpts = dbOpts.WithLogger(quietLogger{})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, radioerr.Wrap(radioerr.Persistence, "open badger store", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying BadgerDB handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func unmarshalInto(raw []byte, out interface{}) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return radioerr.Wrap(radioerr.Persistence, "decode stored record", err)
	}
	return nil
}

func (s *Store) getJSON(key string, out interface{}) (bool, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, radioerr.Wrap(radioerr.Persistence, "get "+key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, radioerr.Wrap(radioerr.Persistence, "decode "+key, err)
	}
	return true, nil
}

func (s *Store) putJSON(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return radioerr.Wrap(radioerr.Internal, "encode "+key, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
	if err != nil {
		return radioerr.Wrap(radioerr.Persistence, "put "+key, err)
	}
	return nil
}

func (s *Store) deleteKey(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return radioerr.Wrap(radioerr.Persistence, "delete "+key, err)
	}
	return nil
}

// iteratePrefix runs fn over every value stored under prefix, in key order,
// stopping at the first error fn returns.
func (s *Store) iteratePrefix(prefix string, fn func(raw []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(raw); err != nil {
				return err
			}
		}
		return nil
	})
}

// quietLogger discards every badger log message, errors and warnings
// included.
type quietLogger struct{}

func (quietLogger) Errorf(string, ...interface{})   {}
func (quietLogger) Warningf(string, ...interface{}) {}
func (quietLogger) Infof(string, ...interface{})    {}
func (quietLogger) Debugf(string, ...interface{})   {}

// countPrefix returns the number of keys stored under prefix.
func (s *Store) countPrefix(prefix string) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, radioerr.Wrap(radioerr.Persistence, "count "+prefix, err)
	}
	return n, nil
}
