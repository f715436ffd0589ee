// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pii-anonymizer/internal/detector"
)

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"bolt": func(t *testing.T) Store {
			s, err := OpenBoltStore(filepath.Join(t.TempDir(), "db", "ledger.db"))
			require.NoError(t, err)
			return s
		},
	}
}

func encryptedDoc(id string) DocumentRecord {
	return DocumentRecord{ID: id, SourceName: "in.txt", OutputName: "out.txt", Mode: ModeEncrypt, CreatedAt: time.Now().UTC()}
}

func encryptedMapping(entityID, docID string) MappingRecord {
	return MappingRecord{
		EntityID:        entityID,
		DocumentID:      docID,
		Category:        detector.CategoryCaseNumber,
		Start:           7,
		End:             18,
		CiphertextToken: "deadbeef",
	}
}

func TestStore_AppendAndRead(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			require.NoError(t, s.PutDocument(encryptedDoc("doc-1")))
			require.NoError(t, s.PutMapping(encryptedMapping("B", "doc-1")))
			require.NoError(t, s.PutMapping(encryptedMapping("A", "doc-1")))

			rec, ok, err := s.GetMapping("A")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, encryptedMapping("A", "doc-1"), rec)

			all, err := s.Mappings("doc-1")
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "B", all[0].EntityID)
			assert.Equal(t, "A", all[1].EntityID)

			none, err := s.Mappings("doc-2")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestStore_UnknownEntityIsNotAnError(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			_, ok, err := s.GetMapping("missing")
			require.NoError(t, err)
			assert.False(t, ok)

			_, ok, err = s.Document("missing")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_DuplicateEntityRejected(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			require.NoError(t, s.PutDocument(encryptedDoc("doc-1")))
			require.NoError(t, s.PutMapping(encryptedMapping("A", "doc-1")))

			dup := encryptedMapping("A", "doc-1")
			dup.CiphertextToken = "cafe"
			err := s.PutMapping(dup)
			assert.True(t, errors.Is(err, ErrDuplicateEntity))

			rec, _, err := s.GetMapping("A")
			require.NoError(t, err)
			assert.Equal(t, "deadbeef", rec.CiphertextToken)
		})
	}
}

func TestStore_ReferentialAndSchemaChecks(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			err := s.PutMapping(encryptedMapping("A", "nope"))
			assert.True(t, errors.Is(err, ErrUnknownDocument))

			require.NoError(t, s.PutDocument(encryptedDoc("enc")))
			leaky := encryptedMapping("B", "enc")
			leaky.OriginalText = "2-1234/2024"
			assert.Error(t, s.PutMapping(leaky))

			blur := encryptedDoc("blur")
			blur.Mode = ModeBlur
			require.NoError(t, s.PutDocument(blur))
			assert.Error(t, s.PutMapping(encryptedMapping("C", "blur")))

			replace := encryptedDoc("rep")
			replace.Mode = ModeReplace
			require.NoError(t, s.PutDocument(replace))
			assert.Error(t, s.PutMapping(encryptedMapping("D", "rep")))
			require.NoError(t, s.PutMapping(MappingRecord{
				EntityID: "D", DocumentID: "rep", Category: detector.CategoryPhone,
				Start: 0, End: 5, OriginalText: "+7 (999) 123-45-67", ReplacementText: "+7 (495) 000-00-00",
			}))

			bad := encryptedMapping("E", "enc")
			bad.End = bad.Start
			assert.Error(t, s.PutMapping(bad))

			assert.Error(t, s.PutDocument(DocumentRecord{ID: "x", Mode: "shred"}))
			assert.Error(t, s.PutDocument(DocumentRecord{Mode: ModeBlur}))
		})
	}
}

func TestStore_DocumentUpsert(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			doc := encryptedDoc("doc-1")
			require.NoError(t, s.PutDocument(doc))
			doc.OutputName = "renamed.txt"
			require.NoError(t, s.PutDocument(doc))

			got, ok, err := s.Document("doc-1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "renamed.txt", got.OutputName)
			assert.True(t, doc.CreatedAt.Equal(got.CreatedAt))
		})
	}
}

func TestStore_Closed(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			require.NoError(t, s.Close())

			err := s.PutDocument(encryptedDoc("doc-1"))
			assert.True(t, errors.Is(err, ErrClosed))
			_, _, err = s.GetMapping("A")
			assert.True(t, errors.Is(err, ErrClosed))
		})
	}
}

func TestStore_PutBatchIsAllOrNothing(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			require.NoError(t, s.PutBatch(encryptedDoc("doc-1"),
				[]MappingRecord{encryptedMapping("B", "doc-1"), encryptedMapping("A", "doc-1")}))
			mappings, err := s.Mappings("doc-1")
			require.NoError(t, err)
			require.Len(t, mappings, 2)
			assert.Equal(t, "B", mappings[0].EntityID)

			// "A" already exists, so "C" must not land either.
			err = s.PutBatch(encryptedDoc("doc-2"),
				[]MappingRecord{encryptedMapping("C", "doc-2"), encryptedMapping("A", "doc-2")})
			assert.True(t, errors.Is(err, ErrDuplicateEntity))

			_, ok, err := s.Document("doc-2")
			require.NoError(t, err)
			assert.False(t, ok)
			_, ok, err = s.GetMapping("C")
			require.NoError(t, err)
			assert.False(t, ok)

			err = s.PutBatch(encryptedDoc("doc-3"),
				[]MappingRecord{encryptedMapping("D", "doc-3"), encryptedMapping("D", "doc-3")})
			assert.True(t, errors.Is(err, ErrDuplicateEntity))

			err = s.PutBatch(encryptedDoc("doc-4"), []MappingRecord{encryptedMapping("E", "doc-1")})
			assert.True(t, errors.Is(err, ErrUnknownDocument))
			_, ok, err = s.Document("doc-4")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestBatch_StagesUntilCommit(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.PutBatch(encryptedDoc("doc-0"), []MappingRecord{encryptedMapping("A", "doc-0")}))

	b, err := NewBatch(s, encryptedDoc("doc-1"))
	require.NoError(t, err)
	assert.Equal(t, "doc-1", b.Document().ID)

	require.NoError(t, b.PutMapping(encryptedMapping("B", "doc-1")))
	assert.True(t, errors.Is(b.PutMapping(encryptedMapping("B", "doc-1")), ErrDuplicateEntity))
	assert.True(t, errors.Is(b.PutMapping(encryptedMapping("A", "doc-1")), ErrDuplicateEntity))
	assert.True(t, errors.Is(b.PutMapping(encryptedMapping("C", "doc-9")), ErrUnknownDocument))

	leaky := encryptedMapping("D", "doc-1")
	leaky.OriginalText = "2-1234/2024"
	assert.Error(t, b.PutMapping(leaky))
	assert.Equal(t, 1, b.Len())

	_, ok, err := s.Document("doc-1")
	require.NoError(t, err)
	assert.False(t, ok, "nothing is written before Commit")

	require.NoError(t, b.Commit())
	rec, ok, err := s.GetMapping("B")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "doc-1", rec.DocumentID)

	_, err = NewBatch(s, DocumentRecord{ID: "x", Mode: "shred"})
	assert.Error(t, err)
}

func TestBoltStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	s, err := OpenBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, s.PutDocument(encryptedDoc("doc-1")))
	require.NoError(t, s.PutMapping(encryptedMapping("A", "doc-1")))
	require.NoError(t, s.Close())

	s, err = OpenBoltStore(path)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, path, s.Path())

	rec, ok, err := s.GetMapping("A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "deadbeef", rec.CiphertextToken)
}

func TestAuditLog_BuildSaveLoad(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.PutDocument(encryptedDoc("doc-1")))
	require.NoError(t, s.PutMapping(encryptedMapping("A", "doc-1")))
	m := encryptedMapping("B", "doc-1")
	m.Category = detector.CategoryPhone
	require.NoError(t, s.PutMapping(m))

	audit, err := BuildAuditLog(s, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, audit.Summary.TotalMappings)
	assert.Equal(t, []string{"CASE_NUMBER", "PHONE"}, audit.Summary.Categories)
	assert.Equal(t, TableEncrypted, audit.Summary.Table)

	path := filepath.Join(t.TempDir(), "exports", "doc-1.json")
	require.NoError(t, audit.Save(path))

	loaded, err := LoadAuditLog(path)
	require.NoError(t, err)
	assert.Equal(t, audit.Entries, loaded.Entries)
	assert.NoError(t, loaded.Validate())

	_, err = BuildAuditLog(s, "missing")
	assert.True(t, errors.Is(err, ErrUnknownDocument))
}

func TestAuditLog_ValidateRejectsPlaintextInEncryptedDocument(t *testing.T) {
	a := &AuditLog{
		Document: encryptedDoc("doc-1"),
		Summary:  AuditSummary{TotalMappings: 1},
		Entries:  []MappingRecord{{EntityID: "A", DocumentID: "doc-1", OriginalText: "secret"}},
	}
	assert.Error(t, a.Validate())
}
