// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"fmt"
)

// MappingWriter accepts mapping records. Both Store and Batch implement it.
type MappingWriter interface {
	PutMapping(rec MappingRecord) error
}

// Batch stages one document and its mappings in memory. Nothing reaches the
// store until Commit, which writes every record in a single transaction.
type Batch struct {
	store    Store
	doc      DocumentRecord
	mappings []MappingRecord
	ids      map[string]struct{}
}

// NewBatch starts a batch for doc against store.
func NewBatch(store Store, doc DocumentRecord) (*Batch, error) {
	if err := validateDocument(doc); err != nil {
		return nil, err
	}
	return &Batch{store: store, doc: doc, ids: make(map[string]struct{})}, nil
}

// Document returns the staged document record.
func (b *Batch) Document() DocumentRecord {
	return b.doc
}

// PutMapping validates rec against the staged document and stages it.
// Duplicate ids, inside the batch or already in the store, are rejected
// here so that the caller fails before doing more work.
func (b *Batch) PutMapping(rec MappingRecord) error {
	if rec.DocumentID != b.doc.ID {
		return fmt.Errorf("entity %s: %w %q", rec.EntityID, ErrUnknownDocument, rec.DocumentID)
	}
	if _, err := validateMapping(rec, b.doc); err != nil {
		return err
	}
	if _, dup := b.ids[rec.EntityID]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, rec.EntityID)
	}
	_, exists, err := b.store.GetMapping(rec.EntityID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, rec.EntityID)
	}

	b.ids[rec.EntityID] = struct{}{}
	b.mappings = append(b.mappings, rec)
	return nil
}

// Len returns the number of staged mappings.
func (b *Batch) Len() int {
	return len(b.mappings)
}

// Commit writes the document and every staged mapping atomically.
func (b *Batch) Commit() error {
	return b.store.PutBatch(b.doc, b.mappings)
}
