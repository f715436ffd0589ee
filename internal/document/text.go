// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TextDocument is a plain text file with one unit per line. Line endings
// are kept so an unchanged document writes back byte for byte.
type TextDocument struct {
	units []string
	ext   string
}

// OpenText reads a UTF-8 text file.
func OpenText(path string) (*TextDocument, error) {
	// #nosec G304 - path is supplied by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return NewTextDocument(string(data), filepath.Ext(path)), nil
}

// NewTextDocument splits content into units.
func NewTextDocument(content, ext string) *TextDocument {
	if ext == "" {
		ext = ".txt"
	}
	return &TextDocument{units: strings.Split(content, "\n"), ext: ext}
}

func (d *TextDocument) Units() []string {
	return append([]string(nil), d.units...)
}

func (d *TextDocument) Format() Format { return FormatText }

func (d *TextDocument) OutputExtension() string { return d.ext }

func (d *TextDocument) Write(path string, units []string) error {
	if err := checkUnitCount(len(d.units), units); err != nil {
		return err
	}
	return writeFile(path, []byte(strings.Join(units, "\n")))
}
