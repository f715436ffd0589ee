// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package detector finds personal data entities in a single text unit.
//
// Two strategies satisfy the same Detector contract: PatternDetector runs a
// static registry of regular expressions, ModelDetector rebuilds entities from
// the BIO labels of an external token classifier. Offsets are rune indices
// into the unmodified input text. Detections are not deduplicated: the same
// span may be reported twice under different categories.
package detector

import (
	"fmt"
	"strings"
)

// Category is one of the closed set of entity kinds.
type Category string

const (
	CategoryPerson     Category = "PERSON"
	CategoryAddress    Category = "ADDRESS"
	CategoryDate       Category = "DATE"
	CategoryPassport   Category = "PASSPORT"
	CategoryTaxID      Category = "TAX_ID"
	CategoryPhone      Category = "PHONE"
	CategoryCaseNumber Category = "CASE_NUMBER"
)

// Categories lists every category in registry order.
var Categories = []Category{
	CategoryPerson,
	CategoryAddress,
	CategoryDate,
	CategoryPassport,
	CategoryTaxID,
	CategoryPhone,
	CategoryCaseNumber,
}

// labelAliases maps classifier label suffixes onto categories.
var labelAliases = map[string]Category{
	"PER":         CategoryPerson,
	"PERSON":      CategoryPerson,
	"ADDR":        CategoryAddress,
	"ADDRESS":     CategoryAddress,
	"DATE":        CategoryDate,
	"PASS":        CategoryPassport,
	"PASSPORT":    CategoryPassport,
	"INN":         CategoryTaxID,
	"TAX_ID":      CategoryTaxID,
	"PHONE":       CategoryPhone,
	"CASE":        CategoryCaseNumber,
	"CASE_NUMBER": CategoryCaseNumber,
}

// ParseCategory resolves a category name or classifier alias, case-insensitively.
func ParseCategory(s string) (Category, error) {
	if c, ok := labelAliases[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return c, nil
	}
	return "", fmt.Errorf("unknown entity category %q", s)
}

// Source identifies the strategy that produced an entity.
type Source string

const (
	SourcePattern Source = "pattern"
	SourceModel   Source = "model"
)

// Entity is a detected span of personal data.
//
// Start and End are rune offsets into the original text unit. A model entity
// whose offsets could not be derived carries Start == End == -1 and must be
// located by its Text.
type Entity struct {
	Text     string
	Category Category
	Start    int
	End      int
	Source   Source
	Score    float64
}

// Resolved reports whether the entity carries usable offsets.
func (e Entity) Resolved() bool {
	return e.Start >= 0 && e.End > e.Start
}

// Detector is implemented by every detection strategy.
type Detector interface {
	// Detect returns the entities found in text, in detection order.
	Detect(text string) ([]Entity, error)

	// GetComponentName returns the component name for observability
	GetComponentName() string
}
