// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package anonymizer

import (
	"errors"
	"strings"
	"unicode/utf8"

	"pii-anonymizer/internal/detector"
	"pii-anonymizer/internal/ledger"
)

// DefaultMaskChar is the blur mask.
const DefaultMaskChar = "█"

// ValueGenerator produces synthetic values per category.
type ValueGenerator interface {
	Generate(category detector.Category) (string, error)
}

// Encrypter seals an original value into an opaque token.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
}

// Decrypter opens a token produced by an Encrypter.
type Decrypter interface {
	Decrypt(token string) (string, error)
}

// Cipher is the authenticated encryption used by encrypt mode.
type Cipher interface {
	Encrypter
	Decrypter
}

// Substitution is one entity about to be rewritten.
type Substitution struct {
	DocumentID string
	EntityID   string
	Entity     detector.Entity
	Value      string
}

// Strategy produces and records substitution values for one mode. It is
// selected once when the engine is built.
type Strategy interface {
	// Mode returns the mode this strategy implements
	Mode() Mode

	// ProduceValue returns the text that replaces the entity
	ProduceValue(sub Substitution) (string, error)

	// OnSubstitute records whatever is needed to account for sub.
	// A returned error is fatal to the document.
	OnSubstitute(sub Substitution, w ledger.MappingWriter) error
}

// ReplaceStrategy substitutes synthetic values and records both texts.
type ReplaceStrategy struct {
	generator ValueGenerator
}

// NewReplaceStrategy creates a replace-mode strategy.
func NewReplaceStrategy(generator ValueGenerator) *ReplaceStrategy {
	return &ReplaceStrategy{generator: generator}
}

func (s *ReplaceStrategy) Mode() Mode { return ModeReplace }

func (s *ReplaceStrategy) ProduceValue(sub Substitution) (string, error) {
	v, err := s.generator.Generate(sub.Entity.Category)
	if err != nil {
		return "", NewProcessingError(ErrorGeneration, "generate replacement", sub.DocumentID, engineComponent, err)
	}
	return v, nil
}

func (s *ReplaceStrategy) OnSubstitute(sub Substitution, w ledger.MappingWriter) error {
	return putMapping(w, sub, ledger.MappingRecord{
		OriginalText:    sub.Entity.Text,
		ReplacementText: sub.Value,
	})
}

// EncryptStrategy substitutes [ENC:<id>] placeholders and records only ciphertext.
type EncryptStrategy struct {
	crypto Cipher
}

// NewEncryptStrategy creates an encrypt-mode strategy. The same provider
// decrypts during reversal.
func NewEncryptStrategy(crypto Cipher) *EncryptStrategy {
	return &EncryptStrategy{crypto: crypto}
}

func (s *EncryptStrategy) Mode() Mode { return ModeEncrypt }

func (s *EncryptStrategy) ProduceValue(sub Substitution) (string, error) {
	return FormatPlaceholder(sub.EntityID), nil
}

func (s *EncryptStrategy) OnSubstitute(sub Substitution, w ledger.MappingWriter) error {
	token, err := s.crypto.Encrypt(sub.Entity.Text)
	if err != nil {
		pe := NewProcessingError(ErrorEncryption, "encrypt original value", sub.DocumentID, engineComponent, err)
		pe.Recoverable = false
		return pe
	}
	return putMapping(w, sub, ledger.MappingRecord{CiphertextToken: token})
}

// Decrypter returns the provider used for reversal.
func (s *EncryptStrategy) Decrypter() Decrypter {
	return s.crypto
}

// BlurStrategy masks every character of the original and records nothing.
type BlurStrategy struct {
	mask string
}

// NewBlurStrategy creates a blur-mode strategy. An empty mask uses DefaultMaskChar.
func NewBlurStrategy(mask string) (*BlurStrategy, error) {
	if mask == "" {
		mask = DefaultMaskChar
	}
	if utf8.RuneCountInString(mask) != 1 {
		return nil, errors.New("mask must be a single character")
	}
	return &BlurStrategy{mask: mask}, nil
}

func (s *BlurStrategy) Mode() Mode { return ModeBlur }

func (s *BlurStrategy) ProduceValue(sub Substitution) (string, error) {
	return strings.Repeat(s.mask, utf8.RuneCountInString(sub.Entity.Text)), nil
}

func (s *BlurStrategy) OnSubstitute(Substitution, ledger.MappingWriter) error {
	return nil
}

func putMapping(w ledger.MappingWriter, sub Substitution, payload ledger.MappingRecord) error {
	payload.EntityID = sub.EntityID
	payload.DocumentID = sub.DocumentID
	payload.Category = sub.Entity.Category
	payload.Start = sub.Entity.Start
	payload.End = sub.Entity.End
	if err := w.PutMapping(payload); err != nil {
		return NewProcessingError(ErrorLedgerWrite, "record mapping "+sub.EntityID, sub.DocumentID, engineComponent, err)
	}
	return nil
}
