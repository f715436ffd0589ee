// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package generator produces synthetic, format-valid replacement values.
//
// Values are drawn from crypto/rand and are never derived from the original
// text: the only input is the entity category.
package generator

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"pii-anonymizer/internal/detector"
)

// Default bounds of the generated birth date year.
const (
	DefaultYearMin = 1950
	DefaultYearMax = 2004
)

var (
	maleNames   = []string{"Александр", "Алексей", "Андрей", "Антон", "Артём", "Борис"}
	femaleNames = []string{"Александра", "Алина", "Алиса", "Алла", "Анастасия", "Анна"}
	surnames    = []string{"Иванов", "Петров", "Сидоров", "Смирнов", "Кузнецов", "Попов"}
	cities      = []string{"Москва", "Санкт-Петербург", "Новосибирск", "Екатеринбург"}
	streets     = []string{"Ленина", "Советская", "Мира", "Центральная"}
	phoneCodes  = []string{"495", "499", "812"}
)

// ValueFunc produces one synthetic value.
type ValueFunc func() (string, error)

// Generator maps categories to value functions.
type Generator struct {
	yearMin    int
	yearMax    int
	generators map[detector.Category]ValueFunc
}

// Option configures a Generator.
type Option func(*Generator)

// WithYearRange bounds the year of generated dates. Invalid ranges are ignored.
func WithYearRange(min, max int) Option {
	return func(g *Generator) {
		if min > 0 && max >= min {
			g.yearMin, g.yearMax = min, max
		}
	}
}

// New creates a Generator with one function per known category.
func New(opts ...Option) *Generator {
	g := &Generator{
		yearMin:    DefaultYearMin,
		yearMax:    DefaultYearMax,
		generators: make(map[detector.Category]ValueFunc),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.generators[detector.CategoryPerson] = g.generatePerson
	g.generators[detector.CategoryAddress] = g.generateAddress
	g.generators[detector.CategoryDate] = g.generateDate
	g.generators[detector.CategoryPassport] = g.generatePassport
	g.generators[detector.CategoryTaxID] = g.generateTaxID
	g.generators[detector.CategoryPhone] = g.generatePhone
	g.generators[detector.CategoryCaseNumber] = g.generateCaseNumber
	return g
}

// Generate returns a synthetic value for category. Unknown categories yield a
// bracketed placeholder such as "[EMAIL]".
func (g *Generator) Generate(category detector.Category) (string, error) {
	fn, ok := g.generators[category]
	if !ok {
		return "[" + strings.ToUpper(string(category)) + "]", nil
	}
	v, err := fn()
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", category, err)
	}
	return v, nil
}

func (g *Generator) generatePerson() (string, error) {
	female, err := randInt(2)
	if err != nil {
		return "", err
	}
	surname, err := pick(surnames)
	if err != nil {
		return "", err
	}
	father, err := pick(maleNames)
	if err != nil {
		return "", err
	}

	names, surnameSuffix, patronymicSuffix := maleNames, "", "ович"
	if female == 1 {
		names, surnameSuffix, patronymicSuffix = femaleNames, "а", "овна"
	}
	given, err := pick(names)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s %s %s", surname, surnameSuffix, given, patronymic(father, patronymicSuffix)), nil
}

// patronymic derives a patronymic from the father's given name.
func patronymic(father, suffix string) string {
	base := strings.TrimSuffix(father, "й")
	if base != father {
		// Алексей -> Алексеевич
		return base + strings.Replace(suffix, "о", "е", 1)
	}
	return base + suffix
}

func (g *Generator) generateAddress() (string, error) {
	city, err := pick(cities)
	if err != nil {
		return "", err
	}
	street, err := pick(streets)
	if err != nil {
		return "", err
	}
	house, err := randRange(1, 200)
	if err != nil {
		return "", err
	}
	flat, err := randRange(1, 300)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("г. %s, ул. %s, д. %d, кв. %d", city, street, house, flat), nil
}

func (g *Generator) generateDate() (string, error) {
	day, err := randRange(1, 28)
	if err != nil {
		return "", err
	}
	month, err := randRange(1, 12)
	if err != nil {
		return "", err
	}
	year, err := randRange(g.yearMin, g.yearMax)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d.%02d.%04d", day, month, year), nil
}

func (g *Generator) generatePassport() (string, error) {
	series, err := digits(4)
	if err != nil {
		return "", err
	}
	number, err := digits(6)
	if err != nil {
		return "", err
	}
	return series + " № " + number, nil
}

func (g *Generator) generateTaxID() (string, error) {
	n, err := randRange(10, 12)
	if err != nil {
		return "", err
	}
	return digits(n)
}

func (g *Generator) generatePhone() (string, error) {
	code, err := pick(phoneCodes)
	if err != nil {
		return "", err
	}
	local, err := digits(7)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("+7 (%s) %s-%s-%s", code, local[:3], local[3:5], local[5:]), nil
}

func (g *Generator) generateCaseNumber() (string, error) {
	prefix, err := randRange(1, 9)
	if err != nil {
		return "", err
	}
	num, err := randRange(1, 9999)
	if err != nil {
		return "", err
	}
	year, err := randRange(2020, 2025)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%04d/%d", prefix, num, year), nil
}

// randInt returns a uniform integer in [0, n).
func randInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("read random: %w", err)
	}
	return int(v.Int64()), nil
}

// randRange returns a uniform integer in [min, max].
func randRange(min, max int) (int, error) {
	v, err := randInt(max - min + 1)
	if err != nil {
		return 0, err
	}
	return min + v, nil
}

func pick(items []string) (string, error) {
	i, err := randInt(len(items))
	if err != nil {
		return "", err
	}
	return items[i], nil
}

func digits(n int) (string, error) {
	b := make([]byte, n)
	for i := range b {
		d, err := randInt(10)
		if err != nil {
			return "", err
		}
		b[i] = byte('0' + d)
	}
	return string(b), nil
}
