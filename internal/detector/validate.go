// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package detector

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMinLengths is the minimum rune length accepted per category for model entities.
var DefaultMinLengths = map[Category]int{
	CategoryPerson:     5,
	CategoryAddress:    10,
	CategoryDate:       4,
	CategoryPassport:   8,
	CategoryTaxID:      10,
	CategoryPhone:      10,
	CategoryCaseNumber: 3,
}

const fallbackMinLength = 3

// EntityValidator applies length and structural checks to reconstructed entities.
type EntityValidator struct {
	minLengths map[Category]int
}

// NewEntityValidator merges overrides onto DefaultMinLengths.
func NewEntityValidator(overrides map[Category]int) *EntityValidator {
	m := make(map[Category]int, len(DefaultMinLengths))
	for k, v := range DefaultMinLengths {
		m[k] = v
	}
	for k, v := range overrides {
		m[k] = v
	}
	return &EntityValidator{minLengths: m}
}

// MinLength returns the minimum accepted length for a category.
func (v *EntityValidator) MinLength(c Category) int {
	if n, ok := v.minLengths[c]; ok {
		return n
	}
	return fallbackMinLength
}

// Valid reports whether text is an acceptable entity of category c.
func (v *EntityValidator) Valid(text string, c Category) bool {
	n := utf8.RuneCountInString(text)
	if n < 2 || n < v.MinLength(c) {
		return false
	}

	if c == CategoryPerson {
		if !strings.Contains(text, " ") {
			return false
		}
		for _, word := range strings.Fields(text) {
			r, _ := utf8.DecodeRuneInString(word)
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return true
}
