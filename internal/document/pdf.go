// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package document

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFDocument is a read-only PDF. Units are the extracted text lines;
// Write produces plain text.
type PDFDocument struct {
	units []string
	pages int
}

// OpenPDF validates path with pdfcpu and extracts its text row by row.
func OpenPDF(path string) (*PDFDocument, error) {
	if err := api.ValidateFile(path, model.NewDefaultConfiguration()); err != nil {
		return nil, fmt.Errorf("invalid PDF file: %w", err)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening PDF: %w", err)
	}
	defer f.Close()

	doc := &PDFDocument{pages: r.NumPage()}
	for i := 1; i <= doc.pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := pageText(p)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		doc.units = append(doc.units, strings.Split(strings.TrimRight(text, "\n"), "\n")...)
	}
	return doc, nil
}

// Pages returns the page count.
func (d *PDFDocument) Pages() int { return d.pages }

func (d *PDFDocument) Units() []string {
	return append([]string(nil), d.units...)
}

func (d *PDFDocument) Format() Format { return FormatPDF }

func (d *PDFDocument) OutputExtension() string { return ".txt" }

func (d *PDFDocument) Write(path string, units []string) error {
	if err := checkUnitCount(len(d.units), units); err != nil {
		return err
	}
	return writeFile(path, []byte(strings.Join(units, "\n")+"\n"))
}

// pageText rebuilds a page top to bottom, falling back to plain extraction.
func pageText(p pdf.Page) (string, error) {
	rows, err := p.GetTextByRow()
	if err != nil {
		return p.GetPlainText(nil)
	}

	sorted := make([]*pdf.Row, 0, len(rows))
	for _, row := range rows {
		if row != nil && len(row.Content) > 0 {
			sorted = append(sorted, row)
		}
	}
	// PDF y grows upwards
	sort.SliceStable(sorted, func(i, j int) bool {
		return averageY(sorted[i].Content) > averageY(sorted[j].Content)
	})

	var buf bytes.Buffer
	for _, row := range sorted {
		if line := rowText(row.Content); strings.TrimSpace(line) != "" {
			buf.WriteString(line)
			buf.WriteString("\n")
		}
	}
	return buf.String(), nil
}

func averageY(texts []pdf.Text) float64 {
	if len(texts) == 0 {
		return 0
	}
	var total float64
	for _, t := range texts {
		total += t.Y
	}
	return total / float64(len(texts))
}

// rowText joins the glyph runs of a row left to right, inserting a space
// where the gap exceeds a fifth of the font size.
func rowText(texts []pdf.Text) string {
	sorted := append([]pdf.Text(nil), texts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var buf bytes.Buffer
	for i, t := range sorted {
		buf.WriteString(t.S)
		if i == len(sorted)-1 {
			break
		}
		fontSize := t.FontSize
		if fontSize <= 0 {
			fontSize = 12
		}
		if sorted[i+1].X-(t.X+t.W) > fontSize*0.2 {
			buf.WriteString(" ")
		}
	}
	return buf.String()
}
