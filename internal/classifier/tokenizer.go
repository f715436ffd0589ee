// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package classifier

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

const continuationPrefix = "##"

// Piece is one WordPiece token with its rune span in the encoded text.
type Piece struct {
	ID    int64
	Text  string
	Start int
	End   int
}

// WordPieceTokenizer is a BERT-compatible tokenizer that keeps exact rune
// offsets for every piece.
type WordPieceTokenizer struct {
	vocab     map[string]int64
	lowerCase bool
	clsID     int64
	sepID     int64
	padID     int64
	unkID     int64
	maxWord   int
}

// LoadWordPieceTokenizer builds the tokenizer from vocab.txt, one token per line.
func LoadWordPieceTokenizer(path string, lowerCase bool) (*WordPieceTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()

	vocab := make(map[string]int64)
	sc := bufio.NewScanner(f)
	var idx int64
	for sc.Scan() {
		token := strings.TrimSpace(sc.Text())
		if token == "" {
			continue
		}
		vocab[token] = idx
		idx++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan vocab: %w", err)
	}
	return NewWordPieceTokenizer(vocab, lowerCase), nil
}

// NewWordPieceTokenizer builds a tokenizer over an in-memory vocabulary.
func NewWordPieceTokenizer(vocab map[string]int64, lowerCase bool) *WordPieceTokenizer {
	return &WordPieceTokenizer{
		vocab:     vocab,
		lowerCase: lowerCase,
		clsID:     vocab["[CLS]"],
		sepID:     vocab["[SEP]"],
		padID:     vocab["[PAD]"],
		unkID:     vocab["[UNK]"],
		maxWord:   100,
	}
}

// Tokenize splits text into pieces. Words break on whitespace and every
// punctuation or symbol rune stands alone, as in BERT basic tokenization.
func (t *WordPieceTokenizer) Tokenize(text string) []Piece {
	runes := []rune(text)
	var pieces []Piece
	for _, w := range splitWords(runes) {
		pieces = append(pieces, t.wordPieces(runes, w.start, w.end)...)
	}
	return pieces
}

// Encode wraps pieces in [CLS]/[SEP] and pads to seqLen. Callers must pass
// at most seqLen-2 pieces.
func (t *WordPieceTokenizer) Encode(pieces []Piece, seqLen int) (ids, mask []int64) {
	ids = make([]int64, seqLen)
	mask = make([]int64, seqLen)
	for i := range ids {
		ids[i] = t.padID
	}
	ids[0], mask[0] = t.clsID, 1
	for i, p := range pieces {
		ids[i+1], mask[i+1] = p.ID, 1
	}
	ids[len(pieces)+1], mask[len(pieces)+1] = t.sepID, 1
	return ids, mask
}

type wordSpan struct {
	start int
	end   int
}

func splitWords(runes []rune) []wordSpan {
	var spans []wordSpan
	start := -1
	closeWord := func(i int) {
		if start >= 0 {
			spans = append(spans, wordSpan{start: start, end: i})
			start = -1
		}
	}
	for i, r := range runes {
		switch {
		case unicode.IsSpace(r):
			closeWord(i)
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			closeWord(i)
			spans = append(spans, wordSpan{start: i, end: i + 1})
		default:
			if start < 0 {
				start = i
			}
		}
	}
	closeWord(len(runes))
	return spans
}

// wordPieces applies greedy longest-match-first over runes[start:end].
func (t *WordPieceTokenizer) wordPieces(runes []rune, start, end int) []Piece {
	unknown := []Piece{{ID: t.unkID, Text: string(runes[start:end]), Start: start, End: end}}
	if end-start > t.maxWord {
		return unknown
	}

	lookup := make([]rune, end-start)
	for i, r := range runes[start:end] {
		if t.lowerCase {
			r = unicode.ToLower(r)
		}
		lookup[i] = r
	}

	var pieces []Piece
	pos := 0
	for pos < len(lookup) {
		found := false
		for stop := len(lookup); stop > pos; stop-- {
			sub := string(lookup[pos:stop])
			surface := string(runes[start+pos : start+stop])
			if pos > 0 {
				sub = continuationPrefix + sub
				surface = continuationPrefix + surface
			}
			if id, ok := t.vocab[sub]; ok {
				pieces = append(pieces, Piece{ID: id, Text: surface, Start: start + pos, End: start + stop})
				pos = stop
				found = true
				break
			}
		}
		if !found {
			return unknown
		}
	}
	return pieces
}
