// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package detector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClassifier struct {
	tokens []Token
	err    error
}

func (s stubClassifier) Classify(string) ([]Token, error) {
	return s.tokens, s.err
}

func tok(text, label string, start, end int) Token {
	return Token{Text: text, Label: label, Score: 0.9, Start: start, End: end}
}

func TestModelDetector_RebuildsPersonWithOffsets(t *testing.T) {
	text := "Истец Иванов Иван Иванович"
	d := NewModelDetector(stubClassifier{tokens: []Token{
		tok("[CLS]", "O", -1, -1),
		tok("Истец", "O", 0, 5),
		tok("Иванов", "B-PER", 6, 12),
		tok("Иван", "I-PER", 13, 17),
		tok("Иван", "I-PER", 18, 22),
		tok("##ович", "I-PER", 22, 26),
		tok("[SEP]", "O", -1, -1),
	}}, nil)

	got, err := d.Detect(text)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, CategoryPerson, got[0].Category)
	assert.Equal(t, "Иванов Иван Иванович", got[0].Text)
	assert.Equal(t, 6, got[0].Start)
	assert.Equal(t, 26, got[0].End)
	assert.Equal(t, SourceModel, got[0].Source)
	assert.InDelta(t, 0.9, got[0].Score, 1e-9)
}

func TestModelDetector_UnresolvedOffsetsKeepReconstructedText(t *testing.T) {
	d := NewModelDetector(stubClassifier{tokens: []Token{
		tok("Петрова", "B-PER", -1, -1),
		tok("Анна", "I-PER", -1, -1),
	}}, nil)

	got, err := d.Detect("Ответчик Петрова Анна")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Петрова Анна", got[0].Text)
	assert.False(t, got[0].Resolved())
}

func TestModelDetector_LabelChangeClosesRun(t *testing.T) {
	text := "Иванов Иван 15.04.1985"
	d := NewModelDetector(stubClassifier{tokens: []Token{
		tok("Иванов", "B-PER", 0, 6),
		tok("Иван", "I-PER", 7, 11),
		tok("15.04.1985", "I-DATE", 12, 22),
	}}, nil)

	got, err := d.Detect(text)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, CategoryPerson, got[0].Category)
	assert.Equal(t, CategoryDate, got[1].Category)
	assert.Equal(t, "15.04.1985", got[1].Text)
}

func TestModelDetector_DiscardsInvalidEntities(t *testing.T) {
	d := NewModelDetector(stubClassifier{tokens: []Token{
		tok("Иванов", "B-PER", 0, 6), // no space
		tok("ул", "O", 7, 9),
		tok("иван", "B-PER", 10, 14),
		tok("петров", "I-PER", 15, 21), // lower case words
		tok("Мира", "B-ADDR", 22, 26),  // too short
		tok("x", "B-UNKNOWN", 27, 28),
	}}, nil)

	got, err := d.Detect("Иванов ул иван петров Мира x")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestModelDetector_ClassifierError(t *testing.T) {
	d := NewModelDetector(stubClassifier{err: errors.New("session closed")}, nil)
	_, err := d.Detect("text")
	assert.ErrorContains(t, err, "session closed")

	got, err := d.Detect("   ")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTokensToText(t *testing.T) {
	assert.Equal(t, "Иванович", tokensToText([]Token{{Text: "Иван"}, {Text: "##ович"}}))
	assert.Equal(t, "Анна Петрова", tokensToText([]Token{{Text: "▁Анна"}, {Text: "▁Пет"}, {Text: "рова"}}))
}

func TestEntityValidator(t *testing.T) {
	v := NewEntityValidator(map[Category]int{CategoryAddress: 4})
	assert.True(t, v.Valid("Анна Петрова", CategoryPerson))
	assert.False(t, v.Valid("Анна петрова", CategoryPerson))
	assert.False(t, v.Valid("Анна", CategoryPerson))
	assert.True(t, v.Valid("Мира", CategoryAddress))
	assert.False(t, v.Valid("x", CategoryCaseNumber))
	assert.Equal(t, 3, v.MinLength("UNKNOWN"))
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("inn")
	require.NoError(t, err)
	assert.Equal(t, CategoryTaxID, c)

	_, err = ParseCategory("EMAIL")
	assert.Error(t, err)
}
