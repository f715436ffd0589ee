// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketDocuments       = []byte("documents")
	bucketDocumentEntries = []byte("document_entities")
)

// BoltStore is a Store backed by an embedded bbolt database. Values are JSON
// encoded; every table is one bucket keyed by its primary key.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// OpenBoltStore opens (or creates) the database at path and ensures every
// bucket exists.
func OpenBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ledger %q: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{
			bucketDocuments,
			bucketDocumentEntries,
			[]byte(TableReplacements),
			[]byte(TableEncrypted),
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("bucket %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("create ledger buckets: %w", err)
	}

	return &BoltStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *BoltStore) Path() string {
	return s.path
}

func (s *BoltStore) PutDocument(rec DocumentRecord) error {
	if err := validateDocument(rec); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", rec.ID, err)
	}
	return s.update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDocuments).Put([]byte(rec.ID), data)
	})
}

func (s *BoltStore) PutMapping(rec MappingRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode entity %s: %w", rec.EntityID, err)
	}

	return s.update(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketDocuments).Get([]byte(rec.DocumentID))
		if raw == nil {
			return fmt.Errorf("entity %s: %w %q", rec.EntityID, ErrUnknownDocument, rec.DocumentID)
		}
		var doc DocumentRecord
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("decode document %s: %w", rec.DocumentID, err)
		}
		return putMapping(tx, rec, doc, data)
	})
}

func (s *BoltStore) PutBatch(doc DocumentRecord, mappings []MappingRecord) error {
	if err := validateDocument(doc); err != nil {
		return err
	}
	docData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", doc.ID, err)
	}
	encoded := make([][]byte, len(mappings))
	for i, rec := range mappings {
		if encoded[i], err = json.Marshal(rec); err != nil {
			return fmt.Errorf("encode entity %s: %w", rec.EntityID, err)
		}
	}

	return s.update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketDocuments).Put([]byte(doc.ID), docData); err != nil {
			return err
		}
		for i, rec := range mappings {
			if rec.DocumentID != doc.ID {
				return fmt.Errorf("entity %s: %w %q", rec.EntityID, ErrUnknownDocument, rec.DocumentID)
			}
			if err := putMapping(tx, rec, doc, encoded[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// putMapping writes one encoded mapping of doc inside tx.
func putMapping(tx *bolt.Tx, rec MappingRecord, doc DocumentRecord, data []byte) error {
	table, err := validateMapping(rec, doc)
	if err != nil {
		return err
	}

	key := []byte(rec.EntityID)
	for _, t := range []Table{TableReplacements, TableEncrypted} {
		if tx.Bucket([]byte(t)).Get(key) != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateEntity, rec.EntityID)
		}
	}
	if err := tx.Bucket([]byte(table)).Put(key, data); err != nil {
		return err
	}

	entries, err := tx.Bucket(bucketDocumentEntries).CreateBucketIfNotExists([]byte(rec.DocumentID))
	if err != nil {
		return err
	}
	seq, err := entries.NextSequence()
	if err != nil {
		return err
	}
	return entries.Put(sequenceKey(seq), key)
}

func (s *BoltStore) GetMapping(entityID string) (MappingRecord, bool, error) {
	var rec MappingRecord
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		rec, found, err = getMapping(tx, []byte(entityID))
		return err
	})
	if err != nil {
		return MappingRecord{}, false, wrapClosed(err)
	}
	return rec, found, nil
}

func (s *BoltStore) Document(documentID string) (DocumentRecord, bool, error) {
	var rec DocumentRecord
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketDocuments).Get([]byte(documentID))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &rec)
	})
	if err != nil {
		return DocumentRecord{}, false, wrapClosed(err)
	}
	return rec, found, nil
}

func (s *BoltStore) Mappings(documentID string) ([]MappingRecord, error) {
	var out []MappingRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		entries := tx.Bucket(bucketDocumentEntries).Bucket([]byte(documentID))
		if entries == nil {
			return nil
		}
		return entries.ForEach(func(_, entityID []byte) error {
			rec, ok, err := getMapping(tx, entityID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("index references missing entity %s", entityID)
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, wrapClosed(err)
	}
	return out, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) update(fn func(tx *bolt.Tx) error) error {
	return wrapClosed(s.db.Update(fn))
}

func getMapping(tx *bolt.Tx, key []byte) (MappingRecord, bool, error) {
	var rec MappingRecord
	for _, t := range []Table{TableEncrypted, TableReplacements} {
		raw := tx.Bucket([]byte(t)).Get(key)
		if raw == nil {
			continue
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return MappingRecord{}, false, fmt.Errorf("decode entity %s: %w", key, err)
		}
		return rec, true, nil
	}
	return MappingRecord{}, false, nil
}

func sequenceKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func wrapClosed(err error) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}
	return err
}
