// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package classifier

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pii-anonymizer/internal/detector"
)

func testVocab() map[string]int64 {
	words := []string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "истец", ":", "иван", "##ов", "##ович", ",", "тел", "."}
	vocab := make(map[string]int64, len(words))
	for i, w := range words {
		vocab[w] = int64(i)
	}
	return vocab
}

func TestTokenize_RuneOffsetsAndContinuations(t *testing.T) {
	tok := NewWordPieceTokenizer(testVocab(), true)
	text := "Истец: Иванов Иванович, тел."

	pieces := tok.Tokenize(text)
	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}
	assert.Equal(t, []string{"Истец", ":", "Иван", "##ов", "Иван", "##ович", ",", "тел", "."}, texts)

	runes := []rune(text)
	for _, p := range pieces {
		assert.Equal(t, strings.TrimPrefix(p.Text, continuationPrefix), string(runes[p.Start:p.End]))
	}
	assert.Equal(t, 7, pieces[2].Start)
	assert.Equal(t, 13, pieces[3].End)
}

func TestTokenize_UnknownWord(t *testing.T) {
	tok := NewWordPieceTokenizer(testVocab(), true)
	pieces := tok.Tokenize("Петров")
	require.Len(t, pieces, 1)
	assert.Equal(t, int64(1), pieces[0].ID)
	assert.Equal(t, "Петров", pieces[0].Text)
	assert.Equal(t, 0, pieces[0].Start)
	assert.Equal(t, 6, pieces[0].End)
}

func TestTokenize_CaseSensitiveVocabulary(t *testing.T) {
	tok := NewWordPieceTokenizer(testVocab(), false)
	pieces := tok.Tokenize("Иван")
	require.Len(t, pieces, 1)
	assert.Equal(t, int64(1), pieces[0].ID)
}

func TestEncode_WrapsAndPads(t *testing.T) {
	tok := NewWordPieceTokenizer(testVocab(), true)
	ids, mask := tok.Encode(tok.Tokenize("тел."), 6)
	assert.Equal(t, []int64{2, 10, 11, 3, 0, 0}, ids)
	assert.Equal(t, []int64{1, 1, 1, 1, 0, 0}, mask)
}

func TestLoadWordPieceTokenizer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte("[PAD]\n[UNK]\n[CLS]\n[SEP]\n\nтел\n"), 0600))

	tok, err := LoadWordPieceTokenizer(path, true)
	require.NoError(t, err)
	pieces := tok.Tokenize("ТЕЛ")
	require.Len(t, pieces, 1)
	assert.Equal(t, int64(4), pieces[0].ID)

	_, err = LoadWordPieceTokenizer(filepath.Join(t.TempDir(), "missing.txt"), true)
	assert.Error(t, err)
}

func TestLoadLabels(t *testing.T) {
	dir := t.TempDir()

	cfg := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(cfg, []byte(`{"id2label":{"0":"O","2":"I-PER","1":"B-PER"}}`), 0600))
	labels, err := loadLabels(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"O", "B-PER", "I-PER"}, labels)

	arr := filepath.Join(dir, "labels.json")
	require.NoError(t, os.WriteFile(arr, []byte(`["O","B-DATE"]`), 0600))
	labels, err = loadLabels(arr)
	require.NoError(t, err)
	assert.Equal(t, []string{"O", "B-DATE"}, labels)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"id2label":{"0":"O","5":"B-PER"}}`), 0600))
	_, err = loadLabels(bad)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"model_type":"bert"}`), 0600))
	_, err = loadLabels(empty)
	assert.Error(t, err)
}

func TestDecodeLogits_FeedsModelDetector(t *testing.T) {
	labels := []string{"O", "B-PER", "I-PER"}
	tok := NewWordPieceTokenizer(testVocab(), true)
	text := "Истец: Иванов Иванович"
	pieces := tok.Tokenize(text)
	require.Len(t, pieces, 6)

	// rows: [CLS], Истец, :, Иван, ##ов, Иван, ##ович
	logits := []float32{
		5, 0, 0,
		5, 0, 0,
		5, 0, 0,
		0, 5, 0,
		0, 0, 5,
		0, 0, 5,
		0, 0, 5,
	}
	tokens := decodeLogits(logits, labels, pieces)
	require.Len(t, tokens, 6)
	assert.Equal(t, "B-PER", tokens[2].Label)
	assert.Greater(t, tokens[2].Score, 0.9)

	d := detector.NewModelDetector(stubClassifier(tokens), nil)
	entities, err := d.Detect(text)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "Иванов Иванович", entities[0].Text)
	assert.Equal(t, 7, entities[0].Start)
	assert.Equal(t, 22, entities[0].End)
}

type stubClassifier []detector.Token

func (s stubClassifier) Classify(string) ([]detector.Token, error) { return s, nil }

func TestModelAvailable(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, ModelAvailable(""))
	assert.False(t, ModelAvailable(dir))

	for _, name := range []string{"model.onnx", "config.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600))
	}
	assert.False(t, ModelAvailable(dir))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tokenizer"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tokenizer", "vocab.txt"), []byte("[PAD]\n"), 0600))
	assert.True(t, ModelAvailable(dir))
}

func TestLoadONNXClassifier_Validation(t *testing.T) {
	_, err := LoadONNXClassifier(Options{})
	assert.Error(t, err)

	_, err = LoadONNXClassifier(Options{Dir: t.TempDir(), SeqLen: 4})
	assert.ErrorContains(t, err, "seq_len")
}
