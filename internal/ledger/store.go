// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package ledger persists the mapping between substituted placeholders and
// the data needed to restore them.
//
// Two logical tables exist per backend: documents, upserted by id, and one
// append-only entity table per mode (replacements or encrypted). A mapping
// record, once written, is never updated or deleted.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"pii-anonymizer/internal/detector"
)

var (
	// ErrDuplicateEntity is returned when an entity id is already recorded.
	ErrDuplicateEntity = errors.New("entity id already recorded")

	// ErrUnknownDocument is returned when a mapping references a document
	// that was never put.
	ErrUnknownDocument = errors.New("unknown document")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("ledger is closed")
)

// Mode is the substitution mode a document was processed with.
type Mode string

const (
	ModeReplace Mode = "replace"
	ModeEncrypt Mode = "encrypt"
	ModeBlur    Mode = "blur"
)

// Table names the entity table a mode writes to.
type Table string

const (
	TableReplacements Table = "replacements"
	TableEncrypted    Table = "encrypted"
)

// TableFor returns the entity table of mode. Blur has none.
func TableFor(mode Mode) (Table, bool) {
	switch mode {
	case ModeReplace:
		return TableReplacements, true
	case ModeEncrypt:
		return TableEncrypted, true
	default:
		return "", false
	}
}

// DocumentRecord is one processed document.
type DocumentRecord struct {
	ID         string    `json:"document_id"`
	SourceName string    `json:"source_name"`
	OutputName string    `json:"output_name"`
	Mode       Mode      `json:"mode"`
	CreatedAt  time.Time `json:"created_at"`
}

// MappingRecord is one substituted entity. Replace mode fills OriginalText
// and ReplacementText; encrypt mode fills CiphertextToken only.
type MappingRecord struct {
	EntityID        string            `json:"entity_id"`
	DocumentID      string            `json:"document_id"`
	Category        detector.Category `json:"category"`
	Start           int               `json:"start"`
	End             int               `json:"end"`
	OriginalText    string            `json:"original_text,omitempty"`
	ReplacementText string            `json:"replacement_text,omitempty"`
	CiphertextToken string            `json:"ciphertext_token,omitempty"`
}

// Store is implemented by every ledger backend. Implementations must be safe
// for concurrent use.
type Store interface {
	// PutDocument inserts or replaces a document record.
	PutDocument(rec DocumentRecord) error

	// PutMapping appends a mapping to the table of its document's mode.
	// Duplicate entity ids and unknown documents are errors.
	PutMapping(rec MappingRecord) error

	// PutBatch writes doc and its mappings in one transaction. When any
	// record is rejected nothing is written.
	PutBatch(doc DocumentRecord, mappings []MappingRecord) error

	// GetMapping returns the record for entityID. An unknown id reports
	// ok == false with a nil error.
	GetMapping(entityID string) (rec MappingRecord, ok bool, err error)

	// Document returns the record for documentID, if present.
	Document(documentID string) (rec DocumentRecord, ok bool, err error)

	// Mappings returns every mapping of documentID in insertion order.
	Mappings(documentID string) ([]MappingRecord, error)

	// Close releases resources held by the store.
	Close() error
}

// validateDocument checks the fields every backend requires.
func validateDocument(rec DocumentRecord) error {
	if rec.ID == "" {
		return errors.New("document_id cannot be empty")
	}
	switch rec.Mode {
	case ModeReplace, ModeEncrypt, ModeBlur:
	default:
		return fmt.Errorf("document %s: invalid mode %q", rec.ID, rec.Mode)
	}
	return nil
}

// validateMapping checks rec against the schema of the table it targets.
func validateMapping(rec MappingRecord, doc DocumentRecord) (Table, error) {
	if rec.EntityID == "" {
		return "", errors.New("entity_id cannot be empty")
	}
	if rec.Start < 0 || rec.End <= rec.Start {
		return "", fmt.Errorf("entity %s: invalid span [%d,%d)", rec.EntityID, rec.Start, rec.End)
	}

	table, ok := TableFor(doc.Mode)
	if !ok {
		return "", fmt.Errorf("document %s: mode %s keeps no mappings", doc.ID, doc.Mode)
	}
	switch table {
	case TableEncrypted:
		if rec.CiphertextToken == "" {
			return "", fmt.Errorf("entity %s: ciphertext_token cannot be empty", rec.EntityID)
		}
		if rec.OriginalText != "" || rec.ReplacementText != "" {
			return "", fmt.Errorf("entity %s: encrypted mappings must not carry plaintext", rec.EntityID)
		}
	case TableReplacements:
		if rec.OriginalText == "" || rec.ReplacementText == "" {
			return "", fmt.Errorf("entity %s: original_text and replacement_text are required", rec.EntityID)
		}
		if rec.CiphertextToken != "" {
			return "", fmt.Errorf("entity %s: replacement mappings must not carry ciphertext", rec.EntityID)
		}
	}
	return table, nil
}
