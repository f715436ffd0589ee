// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const docxBody = "word/document.xml"

var (
	// paragraphPattern matches <w:p>...</w:p> but not <w:pPr> or <w:proofErr>.
	paragraphPattern = regexp.MustCompile(`(?s)<w:p(?:\s[^>/]*)?>.*?</w:p>`)
	// runTextPattern matches one <w:t> element and captures its content.
	runTextPattern = regexp.MustCompile(`(?s)<w:t(?:\s[^>/]*)?>(.*?)</w:t>`)
)

type zipEntry struct {
	header zip.FileHeader
	data   []byte
}

// paragraph is one <w:p> of document.xml with the byte spans of its text runs.
type paragraph struct {
	start, end int
	runs       [][]int // submatch indices relative to the paragraph
	text       string
}

// DOCXDocument treats every paragraph of word/document.xml as one unit.
// A rewritten paragraph keeps its first run's formatting: the new text goes
// into the first <w:t> and the remaining runs are emptied.
type DOCXDocument struct {
	entries    []zipEntry
	body       string
	paragraphs []paragraph
}

// OpenDOCX reads a .docx archive.
func OpenDOCX(path string) (*DOCXDocument, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("error opening docx file: %w", err)
	}
	defer reader.Close()

	doc := &DOCXDocument{}
	found := false
	for _, f := range reader.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		doc.entries = append(doc.entries, zipEntry{header: f.FileHeader, data: data})
		if f.Name == docxBody {
			doc.body = string(data)
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("%s not found in the archive", docxBody)
	}

	if err := doc.parse(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (d *DOCXDocument) parse() error {
	for _, loc := range paragraphPattern.FindAllStringIndex(d.body, -1) {
		p := paragraph{start: loc[0], end: loc[1]}
		xmlText := d.body[loc[0]:loc[1]]
		p.runs = runTextPattern.FindAllStringSubmatchIndex(xmlText, -1)

		var sb strings.Builder
		for _, r := range p.runs {
			text, err := unescapeXML(xmlText[r[2]:r[3]])
			if err != nil {
				return fmt.Errorf("paragraph at byte %d: %w", loc[0], err)
			}
			sb.WriteString(text)
		}
		p.text = sb.String()
		d.paragraphs = append(d.paragraphs, p)
	}
	return nil
}

func (d *DOCXDocument) Units() []string {
	units := make([]string, len(d.paragraphs))
	for i, p := range d.paragraphs {
		units[i] = p.text
	}
	return units
}

func (d *DOCXDocument) Format() Format { return FormatDOCX }

func (d *DOCXDocument) OutputExtension() string { return ".docx" }

// Write rebuilds the archive with rewritten paragraphs. Unchanged paragraphs
// keep their original XML.
func (d *DOCXDocument) Write(path string, units []string) error {
	if err := checkUnitCount(len(d.paragraphs), units); err != nil {
		return err
	}

	body, err := d.rewriteBody(units)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range d.entries {
		data := e.data
		if e.header.Name == docxBody {
			data = []byte(body)
		}
		hdr := &zip.FileHeader{
			Name:     e.header.Name,
			Method:   e.header.Method,
			Modified: e.header.Modified,
		}
		fw, err := w.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("write %s: %w", e.header.Name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", e.header.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return writeFile(path, buf.Bytes())
}

// rewriteBody splices paragraphs from last to first so earlier byte spans stay valid.
func (d *DOCXDocument) rewriteBody(units []string) (string, error) {
	body := d.body
	for i := len(d.paragraphs) - 1; i >= 0; i-- {
		p := d.paragraphs[i]
		if units[i] == p.text {
			continue
		}
		if len(p.runs) == 0 {
			return "", fmt.Errorf("paragraph %d has no text run to rewrite", i)
		}

		xmlText := body[p.start:p.end]
		var sb strings.Builder
		last := 0
		for j, r := range p.runs {
			sb.WriteString(xmlText[last:r[0]])
			if j == 0 {
				sb.WriteString(`<w:t xml:space="preserve">`)
				if err := xml.EscapeText(&sb, []byte(units[i])); err != nil {
					return "", err
				}
				sb.WriteString(`</w:t>`)
			} else {
				sb.WriteString(`<w:t></w:t>`)
			}
			last = r[1]
		}
		sb.WriteString(xmlText[last:])
		body = body[:p.start] + sb.String() + body[p.end:]
	}
	return body, nil
}

// unescapeXML decodes character data that may contain entity references.
func unescapeXML(s string) (string, error) {
	if !strings.ContainsRune(s, '&') {
		return s, nil
	}
	dec := xml.NewDecoder(strings.NewReader("<t>" + s + "</t>"))
	var out strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode text: %w", err)
		}
		if cd, ok := tok.(xml.CharData); ok {
			out.Write(cd)
		}
	}
	return out.String(), nil
}
