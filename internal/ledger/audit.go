// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// AuditLog is a JSON export of one document and its mappings.
type AuditLog struct {
	// Document is the ledger's document record
	Document DocumentRecord `json:"document"`

	// ExportedAt is when the export was built
	ExportedAt time.Time `json:"exported_at"`

	// ExportedBy names the tool release that wrote the export
	ExportedBy string `json:"exported_by,omitempty"`

	// Summary contains counts per category
	Summary AuditSummary `json:"summary"`

	// Entries are the document's mappings in insertion order
	Entries []MappingRecord `json:"entries"`
}

// AuditSummary contains summary statistics about a document's mappings.
type AuditSummary struct {
	TotalMappings int            `json:"total_mappings"`
	Categories    []string       `json:"categories"`
	PerCategory   map[string]int `json:"per_category"`
	Table         Table          `json:"table,omitempty"`
}

// BuildAuditLog reads documentID and its mappings from store.
func BuildAuditLog(store Store, documentID string) (*AuditLog, error) {
	doc, ok, err := store.Document(documentID)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", documentID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownDocument, documentID)
	}
	entries, err := store.Mappings(documentID)
	if err != nil {
		return nil, fmt.Errorf("read mappings of %s: %w", documentID, err)
	}

	audit := &AuditLog{
		Document:   doc,
		ExportedAt: time.Now().UTC(),
		Entries:    entries,
		Summary: AuditSummary{
			TotalMappings: len(entries),
			Categories:    []string{},
			PerCategory:   map[string]int{},
		},
	}
	if table, ok := TableFor(doc.Mode); ok {
		audit.Summary.Table = table
	}
	for _, e := range entries {
		cat := string(e.Category)
		if audit.Summary.PerCategory[cat] == 0 {
			audit.Summary.Categories = append(audit.Summary.Categories, cat)
		}
		audit.Summary.PerCategory[cat]++
	}
	sort.Strings(audit.Summary.Categories)
	if audit.Entries == nil {
		audit.Entries = []MappingRecord{}
	}
	return audit, nil
}

// Validate checks the export for completeness and consistency.
func (a *AuditLog) Validate() error {
	if a.Document.ID == "" {
		return fmt.Errorf("document_id cannot be empty")
	}
	if a.Summary.TotalMappings != len(a.Entries) {
		return fmt.Errorf("summary counts %d mappings, export holds %d", a.Summary.TotalMappings, len(a.Entries))
	}
	for i, e := range a.Entries {
		if e.EntityID == "" {
			return fmt.Errorf("entries[%d].entity_id cannot be empty", i)
		}
		if e.DocumentID != a.Document.ID {
			return fmt.Errorf("entries[%d] belongs to document %s", i, e.DocumentID)
		}
		if a.Document.Mode == ModeEncrypt && (e.OriginalText != "" || e.ReplacementText != "") {
			return fmt.Errorf("entries[%d] carries plaintext in an encrypted document", i)
		}
	}
	return nil
}

// ToJSON converts the export to indented JSON.
func (a *AuditLog) ToJSON() ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}

// Save writes the export to filePath with owner-only permissions.
func (a *AuditLog) Save(filePath string) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid audit log: %w", err)
	}
	data, err := a.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal audit log: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// LoadAuditLog reads an export written by Save.
func LoadAuditLog(filePath string) (*AuditLog, error) {
	// #nosec G304 - path is supplied by the operator
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	var a AuditLog
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal audit log: %w", err)
	}
	return &a, nil
}
