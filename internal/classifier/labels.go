// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"

	"pii-anonymizer/internal/detector"
)

// loadLabels reads the id2label table of a Hugging Face config.json, or a
// plain JSON array of labels.
func loadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil && len(arr) > 0 {
		return arr, nil
	}

	var cfg struct {
		ID2Label map[string]string `json:"id2label"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.ID2Label) == 0 {
		return nil, fmt.Errorf("%s has no id2label table", path)
	}

	out := make([]string, len(cfg.ID2Label))
	for k, v := range cfg.ID2Label {
		idx, convErr := strconv.Atoi(k)
		if convErr != nil {
			return nil, fmt.Errorf("invalid label index %q: %w", k, convErr)
		}
		if idx < 0 || idx >= len(out) {
			return nil, fmt.Errorf("label index %d out of range", idx)
		}
		out[idx] = v
	}
	return out, nil
}

// decodeLogits turns per-position logits of shape [positions, len(labels)]
// into tokens. Position 0 is [CLS]; pieces start at position 1.
func decodeLogits(logits []float32, labels []string, pieces []Piece) []detector.Token {
	n := len(labels)
	tokens := make([]detector.Token, 0, len(pieces))
	for i, p := range pieces {
		row := logits[(i+1)*n : (i+2)*n]
		best, score := argmaxSoftmax(row)
		tokens = append(tokens, detector.Token{
			Text:  p.Text,
			Label: labels[best],
			Score: score,
			Start: p.Start,
			End:   p.End,
		})
	}
	return tokens
}

func argmaxSoftmax(row []float32) (int, float64) {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	var sum float64
	for _, v := range row {
		sum += math.Exp(float64(v - row[best]))
	}
	return best, 1 / sum
}
