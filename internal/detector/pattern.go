// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package detector

import (
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"
)

// pattern pairs a compiled regex with its category.
type pattern struct {
	re       *regexp.Regexp
	anchored *regexp.Regexp // re pinned to the start of its input
	category Category
}

// defaultPatterns is the static registry, in category order. RE2 has no
// Unicode-aware \b, so word boundaries are enforced after matching.
var defaultPatterns = []struct {
	category Category
	exprs    []string
}{
	{CategoryPerson, []string{
		`[А-ЯЁ][а-яё]+(?:\s+[А-ЯЁ][а-яё]+){1,2}`,
		`[А-ЯЁ][а-яё]+\s+[А-ЯЁ]\.\s*[А-ЯЁ]\.`,
	}},
	{CategoryAddress, []string{
		`г\.\s*[А-ЯЁ][а-яё-]+,\s*(?:ул\.|просп\.|пер\.|б-р)\s*[А-ЯЁ][а-яё-]+,\s*д\.\s*\d+(?:,?\s*кв\.\s*\d+)?`,
		`г\.\s*[А-ЯЁ][а-яё-]+`,
	}},
	{CategoryDate, []string{
		`\d{1,2}\.\d{1,2}\.\d{4}`,
		`(?i)\d{1,2}\s+(?:января|февраля|марта|апреля|мая|июня|июля|августа|сентября|октября|ноября|декабря)\s+\d{4}`,
	}},
	{CategoryPassport, []string{
		`(?i)(?:паспорт\s+)?(?:\d{4}\s+)?(?:№\s*)?\d{6}`,
		`(?i)серия\s*\d{4}\s*№\s*\d{6}`,
	}},
	{CategoryTaxID, []string{
		`(?i)ИНН\s*\d{10}(?:\d{2})?`,
		`\d{10}(?:\d{2})?`,
	}},
	{CategoryPhone, []string{
		`(?:\+7|8)[\s\-]?\(?\d{3}\)?[\s\-]?\d{3}[\s\-]?\d{2}[\s\-]?\d{2}`,
	}},
	{CategoryCaseNumber, []string{
		`\d{1,2}[а-яa-z]?-\d{1,6}/\d{4}`,
		`[АA]\d{2}-\d{1,6}/\d{4}`,
	}},
}

// PatternDetector implements Detector with a regex registry.
type PatternDetector struct {
	patterns []pattern
}

// NewPatternDetector compiles the default registry plus any extra expressions.
// Extra expressions are appended after the defaults of their category.
func NewPatternDetector(extra map[Category][]string) (*PatternDetector, error) {
	d := &PatternDetector{}
	for _, group := range defaultPatterns {
		exprs := append(append([]string{}, group.exprs...), extra[group.category]...)
		for _, expr := range exprs {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("compile %s pattern %q: %w", group.category, expr, err)
			}
			anchored, err := regexp.Compile(`^(?:` + expr + `)`)
			if err != nil {
				return nil, fmt.Errorf("compile %s pattern %q: %w", group.category, expr, err)
			}
			d.patterns = append(d.patterns, pattern{re: re, anchored: anchored, category: group.category})
		}
	}
	for cat := range extra {
		if !isKnownCategory(cat) {
			return nil, fmt.Errorf("extra patterns for unknown category %q", cat)
		}
	}
	return d, nil
}

// DefaultPatternDetector returns a detector with the built-in registry only.
func DefaultPatternDetector() *PatternDetector {
	d, err := NewPatternDetector(nil)
	if err != nil {
		panic(err)
	}
	return d
}

// GetComponentName returns the component name for observability
func (d *PatternDetector) GetComponentName() string {
	return "pattern_detector"
}

// Detect runs every pattern over text. A candidate is rejected when the rune
// before it or the rune at its end is a letter or digit. A candidate cut off
// on the right falls back to a shorter match at the same start that
// ends on a boundary, so "Иванов Иван ИвановичX" still yields "Иванов Иван".
func (d *PatternDetector) Detect(text string) ([]Entity, error) {
	if text == "" {
		return nil, nil
	}
	runeAt := byteToRuneIndex(text)

	var entities []Entity
	for _, p := range d.patterns {
		pos := 0
		for pos < len(text) {
			loc := p.re.FindStringIndex(text[pos:])
			if loc == nil {
				break
			}
			start, end := pos+loc[0], pos+loc[1]
			if end > start && !isBoundary(text, start, end) {
				end = p.shorterMatch(text, start, end)
			}
			if end > start {
				entities = append(entities, Entity{
					Text:     text[start:end],
					Category: p.category,
					Start:    runeAt[start],
					End:      runeAt[end],
					Source:   SourcePattern,
					Score:    1,
				})
				pos = end
				continue
			}
			// Nothing fits at start, resume the scan one rune later.
			_, w := utf8.DecodeRuneInString(text[start:])
			if w == 0 {
				break
			}
			pos = start + w
		}
	}
	return entities, nil
}

// shorterMatch returns the end of a match starting at start that is shorter
// than end and sits on word boundaries, or start when none does.
func (p pattern) shorterMatch(text string, start, end int) int {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isAlnum(r) {
			return start
		}
	}
	for end > start {
		_, w := utf8.DecodeLastRuneInString(text[start:end])
		loc := p.anchored.FindStringIndex(text[start : end-w])
		if loc == nil || loc[1] == 0 {
			return start
		}
		end = start + loc[1]
		if isBoundary(text, start, end) {
			return end
		}
	}
	return start
}

func isBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isAlnum(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isAlnum(r) {
			return false
		}
	}
	return true
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

// byteToRuneIndex maps every byte offset of text (including len(text)) to a rune offset.
func byteToRuneIndex(text string) []int {
	idx := make([]int, len(text)+1)
	n := 0
	for i := range text {
		idx[i] = n
		n++
	}
	// fill continuation bytes and the terminal offset
	last := 0
	for i := 0; i < len(text); i++ {
		if utf8.RuneStart(text[i]) {
			last = idx[i]
		} else {
			idx[i] = last
		}
	}
	idx[len(text)] = n
	return idx
}

func isKnownCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
