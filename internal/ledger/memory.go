// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store used in tests and dry runs.
type MemoryStore struct {
	mu        sync.RWMutex
	closed    bool
	documents map[string]DocumentRecord
	mappings  map[string]MappingRecord
	order     map[string][]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: make(map[string]DocumentRecord),
		mappings:  make(map[string]MappingRecord),
		order:     make(map[string][]string),
	}
}

func (s *MemoryStore) PutDocument(rec DocumentRecord) error {
	if err := validateDocument(rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.documents[rec.ID] = rec
	return nil
}

func (s *MemoryStore) PutMapping(rec MappingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	doc, ok := s.documents[rec.DocumentID]
	if !ok {
		return fmt.Errorf("entity %s: %w %q", rec.EntityID, ErrUnknownDocument, rec.DocumentID)
	}
	if _, err := validateMapping(rec, doc); err != nil {
		return err
	}
	if _, dup := s.mappings[rec.EntityID]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, rec.EntityID)
	}
	s.mappings[rec.EntityID] = rec
	s.order[rec.DocumentID] = append(s.order[rec.DocumentID], rec.EntityID)
	return nil
}

func (s *MemoryStore) PutBatch(doc DocumentRecord, mappings []MappingRecord) error {
	if err := validateDocument(doc); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	seen := make(map[string]struct{}, len(mappings))
	for _, rec := range mappings {
		if rec.DocumentID != doc.ID {
			return fmt.Errorf("entity %s: %w %q", rec.EntityID, ErrUnknownDocument, rec.DocumentID)
		}
		if _, err := validateMapping(rec, doc); err != nil {
			return err
		}
		_, inStore := s.mappings[rec.EntityID]
		_, inBatch := seen[rec.EntityID]
		if inStore || inBatch {
			return fmt.Errorf("%w: %s", ErrDuplicateEntity, rec.EntityID)
		}
		seen[rec.EntityID] = struct{}{}
	}

	s.documents[doc.ID] = doc
	for _, rec := range mappings {
		s.mappings[rec.EntityID] = rec
		s.order[doc.ID] = append(s.order[doc.ID], rec.EntityID)
	}
	return nil
}

func (s *MemoryStore) GetMapping(entityID string) (MappingRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return MappingRecord{}, false, ErrClosed
	}
	rec, ok := s.mappings[entityID]
	return rec, ok, nil
}

func (s *MemoryStore) Document(documentID string) (DocumentRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return DocumentRecord{}, false, ErrClosed
	}
	rec, ok := s.documents[documentID]
	return rec, ok, nil
}

func (s *MemoryStore) Mappings(documentID string) ([]MappingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	ids := s.order[documentID]
	out := make([]MappingRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.mappings[id])
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
