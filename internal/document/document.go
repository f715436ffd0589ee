// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package document reads documents as ordered text units and writes
// rewritten units back in the document's own format where possible.
package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies a supported input format.
type Format int

const (
	FormatText Format = iota
	FormatDOCX
	FormatPDF
)

// String returns the string representation of the format
func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatDOCX:
		return "docx"
	case FormatPDF:
		return "pdf"
	default:
		return "unknown"
	}
}

// DetectFormat picks a format from the file extension. Anything unknown is text.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return FormatDOCX
	case ".pdf":
		return FormatPDF
	default:
		return FormatText
	}
}

// Document is an opened input.
type Document interface {
	// Units returns the text units in document order
	Units() []string

	// Format returns the input format
	Format() Format

	// OutputExtension is the extension Write produces, dot included
	OutputExtension() string

	// Write stores units, which must correspond one to one with Units(), at path
	Write(path string, units []string) error
}

// Open reads path according to its extension.
func Open(path string) (Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("input %s is a directory", path)
	}

	switch DetectFormat(path) {
	case FormatDOCX:
		return OpenDOCX(path)
	case FormatPDF:
		return OpenPDF(path)
	default:
		return OpenText(path)
	}
}

// DefaultOutputPath derives an output path next to input, e.g. "a.docx" ->
// "a.anonymized.docx". ext replaces the input extension when non-empty.
func DefaultOutputPath(input, suffix, ext string) string {
	inExt := filepath.Ext(input)
	if ext == "" {
		ext = inExt
	}
	return strings.TrimSuffix(input, inExt) + "." + suffix + ext
}

func checkUnitCount(want int, units []string) error {
	if len(units) != want {
		return fmt.Errorf("expected %d units, got %d", want, len(units))
	}
	return nil
}

// writeFile writes data with owner-only permissions, creating parent directories.
func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
