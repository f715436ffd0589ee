// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package detector

import (
	"fmt"
	"strings"
)

// Token is one classified token. Start and End are rune offsets of the token
// in the classified text, or -1 when the classifier has no offset for it.
type Token struct {
	Text  string
	Label string
	Score float64
	Start int
	End   int
}

// TokenClassifier labels the tokens of a text with BIO tags (B-<cat>, I-<cat>, O).
// Implementations are responsible for exact token to character offsets.
type TokenClassifier interface {
	Classify(text string) ([]Token, error)
}

// continuationPrefix marks WordPiece sub-word tokens.
const continuationPrefix = "##"

// wordStartMarker marks word-initial SentencePiece tokens.
const wordStartMarker = "▁"

var specialTokens = map[string]bool{
	"[CLS]": true, "[SEP]": true, "[PAD]": true,
	"<s>": true, "</s>": true, "<pad>": true,
}

// ModelDetector implements Detector over a TokenClassifier.
type ModelDetector struct {
	classifier TokenClassifier
	validator  *EntityValidator
}

// NewModelDetector wraps classifier. A nil validator uses the default length table.
func NewModelDetector(classifier TokenClassifier, validator *EntityValidator) *ModelDetector {
	if validator == nil {
		validator = NewEntityValidator(nil)
	}
	return &ModelDetector{classifier: classifier, validator: validator}
}

// GetComponentName returns the component name for observability
func (d *ModelDetector) GetComponentName() string {
	return "model_detector"
}

// Detect classifies text and rebuilds entities from B-/I- runs. A run closes
// on O, on a B- tag, or on a label of another category.
func (d *ModelDetector) Detect(text string) ([]Entity, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	tokens, err := d.classifier.Classify(text)
	if err != nil {
		return nil, fmt.Errorf("classify text: %w", err)
	}
	return d.entitiesFromTokens(text, tokens), nil
}

type tokenRun struct {
	category Category
	tokens   []Token
}

func (d *ModelDetector) entitiesFromTokens(text string, tokens []Token) []Entity {
	runes := []rune(text)
	var entities []Entity
	var cur *tokenRun

	flush := func() {
		if cur == nil {
			return
		}
		if ent, ok := d.buildEntity(runes, cur); ok {
			entities = append(entities, ent)
		}
		cur = nil
	}

	for _, tok := range tokens {
		if specialTokens[tok.Text] {
			continue
		}
		prefix, typ := splitLabel(tok.Label)
		if typ == "" || strings.EqualFold(typ, "O") {
			flush()
			continue
		}
		cat, err := ParseCategory(typ)
		if err != nil {
			flush()
			continue
		}
		if prefix != "B" && cur != nil && cur.category == cat {
			cur.tokens = append(cur.tokens, tok)
			continue
		}
		flush()
		cur = &tokenRun{category: cat, tokens: []Token{tok}}
	}
	flush()
	return entities
}

func (d *ModelDetector) buildEntity(runes []rune, run *tokenRun) (Entity, bool) {
	text := tokensToText(run.tokens)
	if !d.validator.Valid(text, run.category) {
		return Entity{}, false
	}

	var score float64
	for _, t := range run.tokens {
		score += t.Score
	}
	ent := Entity{
		Text:     text,
		Category: run.category,
		Start:    -1,
		End:      -1,
		Source:   SourceModel,
		Score:    score / float64(len(run.tokens)),
	}

	start, end := run.tokens[0].Start, run.tokens[len(run.tokens)-1].End
	if start >= 0 && end > start && end <= len(runes) {
		ent.Start = start
		ent.End = end
		ent.Text = string(runes[start:end])
	}
	return ent, true
}

// tokensToText joins tokens. WordPiece continuations ("##") glue to the
// previous piece; in SentencePiece output only "▁" starts a new word.
func tokensToText(tokens []Token) string {
	sentencePiece := false
	for _, t := range tokens {
		if strings.HasPrefix(t.Text, wordStartMarker) {
			sentencePiece = true
			break
		}
	}

	var sb strings.Builder
	for _, t := range tokens {
		if sentencePiece {
			sb.WriteString(strings.ReplaceAll(t.Text, wordStartMarker, " "))
			continue
		}
		if rest, ok := strings.CutPrefix(t.Text, continuationPrefix); ok {
			sb.WriteString(rest)
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(t.Text)
	}
	return strings.TrimSpace(sb.String())
}

func splitLabel(lbl string) (string, string) {
	lbl = strings.TrimSpace(lbl)
	if lbl == "" {
		return "", ""
	}
	parts := strings.SplitN(lbl, "-", 2)
	if len(parts) == 1 {
		return "", lbl
	}
	return strings.ToUpper(parts[0]), parts[1]
}
