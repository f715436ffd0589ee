// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package classifier runs a token-classification (NER) ONNX model and
// reports BIO labels with exact rune offsets.
package classifier

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"pii-anonymizer/internal/detector"
)

// DefaultSeqLen is the model input length used when none is configured.
const DefaultSeqLen = 512

const minSeqLen = 8

// Options configures LoadONNXClassifier.
type Options struct {
	// Dir holds model.onnx, config.json and vocab.txt
	Dir string
	// SeqLen is the model input length, [CLS] and [SEP] included
	SeqLen int
	// SharedLibrary is the onnxruntime library path; empty probes common locations
	SharedLibrary string
	// LowerCase lowercases text before vocabulary lookup
	LowerCase bool
}

// ONNXClassifier implements detector.TokenClassifier over an ONNX session.
// Texts longer than one window are classified window by window.
type ONNXClassifier struct {
	session   *ort.AdvancedSession
	tokenizer *WordPieceTokenizer
	labels    []string
	seqLen    int

	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	output        *ort.Tensor[float32]

	mu sync.Mutex
}

var _ detector.TokenClassifier = (*ONNXClassifier)(nil)

// ModelAvailable reports whether dir holds the files LoadONNXClassifier needs.
func ModelAvailable(dir string) bool {
	if strings.TrimSpace(dir) == "" {
		return false
	}
	for _, name := range []string{"model.onnx", "config.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return findVocab(dir) != ""
}

// LoadONNXClassifier initializes the runtime and opens the model session.
func LoadONNXClassifier(opts Options) (*ONNXClassifier, error) {
	if opts.Dir == "" {
		return nil, errors.New("model dir is empty")
	}
	seqLen := opts.SeqLen
	if seqLen <= 0 {
		seqLen = DefaultSeqLen
	}
	if seqLen < minSeqLen {
		return nil, fmt.Errorf("seq_len must be at least %d", minSeqLen)
	}

	libPath := opts.SharedLibrary
	if libPath == "" {
		libPath = resolveSharedLibraryPath(opts.Dir)
	}
	if libPath == "" {
		return nil, fmt.Errorf("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or model.shared_library")
	}
	ort.SetSharedLibraryPath(libPath)
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	modelPath := filepath.Join(opts.Dir, "model.onnx")
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file missing at %s: %w", modelPath, err)
	}
	labels, err := loadLabels(filepath.Join(opts.Dir, "config.json"))
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}
	vocabPath := findVocab(opts.Dir)
	if vocabPath == "" {
		return nil, fmt.Errorf("vocab.txt not found in %s", opts.Dir)
	}
	tokenizer, err := LoadWordPieceTokenizer(vocabPath, opts.LowerCase)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	inputShape := ort.NewShape(1, int64(seqLen))
	inputIDs, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate input_ids tensor: %w", err)
	}
	attnMask, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		inputIDs.Destroy()
		return nil, fmt.Errorf("allocate attention_mask tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(seqLen), int64(len(labels))))
	if err != nil {
		inputIDs.Destroy()
		attnMask.Destroy()
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		[]ort.Value{inputIDs, attnMask},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		inputIDs.Destroy()
		attnMask.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &ONNXClassifier{
		session:       session,
		tokenizer:     tokenizer,
		labels:        labels,
		seqLen:        seqLen,
		inputIDs:      inputIDs,
		attentionMask: attnMask,
		output:        output,
	}, nil
}

// GetComponentName returns the component name for observability
func (c *ONNXClassifier) GetComponentName() string {
	return "onnx_classifier"
}

// Classify labels every piece of text. Token offsets are rune offsets into text.
func (c *ONNXClassifier) Classify(text string) ([]detector.Token, error) {
	if c == nil || c.session == nil {
		return nil, errors.New("classifier not initialized")
	}
	pieces := c.tokenizer.Tokenize(text)
	window := c.seqLen - 2

	c.mu.Lock()
	defer c.mu.Unlock()

	var tokens []detector.Token
	for start := 0; start < len(pieces); start += window {
		end := start + window
		if end > len(pieces) {
			end = len(pieces)
		}
		chunk := pieces[start:end]

		ids, mask := c.tokenizer.Encode(chunk, c.seqLen)
		copy(c.inputIDs.GetData(), ids)
		copy(c.attentionMask.GetData(), mask)
		if err := c.session.Run(); err != nil {
			return nil, fmt.Errorf("onnx run: %w", err)
		}
		tokens = append(tokens, decodeLogits(c.output.GetData(), c.labels, chunk)...)
	}
	return tokens, nil
}

// Close releases the session and its tensors.
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Destroy()
	c.inputIDs.Destroy()
	c.attentionMask.Destroy()
	c.output.Destroy()
	c.session = nil
	return err
}

func findVocab(dir string) string {
	for _, path := range []string{
		filepath.Join(dir, "vocab.txt"),
		filepath.Join(dir, "tokenizer", "vocab.txt"),
	} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// resolveSharedLibraryPath locates a platform-specific onnxruntime shared library.
// ONNXRUNTIME_SHARED_LIBRARY_PATH wins over probing.
func resolveSharedLibraryPath(modelDir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.so",
		"libonnxruntime.dylib",
		"onnxruntime.dll",
	}
	dirs := []string{
		modelDir,
		filepath.Join(modelDir, "lib"),
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}
	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
