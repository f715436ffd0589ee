// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package generator

import (
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pii-anonymizer/internal/detector"
)

func TestGenerate_FormatPerCategory(t *testing.T) {
	g := New()

	tests := []struct {
		category detector.Category
		format   *regexp.Regexp
	}{
		{detector.CategoryPerson, regexp.MustCompile(`^[А-ЯЁ][а-яё]+ [А-ЯЁ][а-яё]+ [А-ЯЁ][а-яё]+(?:ович|евич|овна|евна)$`)},
		{detector.CategoryAddress, regexp.MustCompile(`^г\. [А-ЯЁ][а-яё-]+(?:-[А-ЯЁ][а-яё]+)?, ул\. [А-ЯЁ][а-яё]+, д\. \d{1,3}, кв\. \d{1,3}$`)},
		{detector.CategoryDate, regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}$`)},
		{detector.CategoryPassport, regexp.MustCompile(`^\d{4} № \d{6}$`)},
		{detector.CategoryTaxID, regexp.MustCompile(`^\d{10,12}$`)},
		{detector.CategoryPhone, regexp.MustCompile(`^\+7 \((?:495|499|812)\) \d{3}-\d{2}-\d{2}$`)},
		{detector.CategoryCaseNumber, regexp.MustCompile(`^\d-\d{4}/20\d{2}$`)},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			for i := 0; i < 50; i++ {
				v, err := g.Generate(tt.category)
				require.NoError(t, err)
				assert.Regexp(t, tt.format, v)
			}
		})
	}
}

func TestGenerate_PersonGenderConsistent(t *testing.T) {
	g := New()
	for i := 0; i < 100; i++ {
		v, err := g.Generate(detector.CategoryPerson)
		require.NoError(t, err)
		parts := strings.Fields(v)
		require.Len(t, parts, 3)

		female := strings.HasSuffix(parts[2], "вна")
		assert.Equal(t, female, strings.HasSuffix(parts[0], "а"), "surname in %q", v)
		if female {
			assert.Contains(t, femaleNames, parts[1])
		} else {
			assert.Contains(t, maleNames, parts[1])
		}
	}
}

func TestGenerate_DateWithinYearRange(t *testing.T) {
	g := New(WithYearRange(1990, 1991))
	for i := 0; i < 50; i++ {
		v, err := g.Generate(detector.CategoryDate)
		require.NoError(t, err)
		year, err := strconv.Atoi(v[len(v)-4:])
		require.NoError(t, err)
		assert.GreaterOrEqual(t, year, 1990)
		assert.LessOrEqual(t, year, 1991)

		day, err := strconv.Atoi(v[:2])
		require.NoError(t, err)
		assert.LessOrEqual(t, day, 28)
	}
}

func TestWithYearRange_IgnoresInvalidRange(t *testing.T) {
	g := New(WithYearRange(2000, 1990))
	assert.Equal(t, DefaultYearMin, g.yearMin)
	assert.Equal(t, DefaultYearMax, g.yearMax)
}

func TestGenerate_UnknownCategory(t *testing.T) {
	g := New()
	v, err := g.Generate("email")
	require.NoError(t, err)
	assert.Equal(t, "[EMAIL]", v)
}

func TestPatronymic(t *testing.T) {
	assert.Equal(t, "Алексеевич", patronymic("Алексей", "ович"))
	assert.Equal(t, "Андреевна", patronymic("Андрей", "овна"))
	assert.Equal(t, "Борисович", patronymic("Борис", "ович"))
}
