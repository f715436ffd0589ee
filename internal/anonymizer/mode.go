// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package anonymizer

import (
	"fmt"
	"strings"

	"pii-anonymizer/internal/ledger"
)

// Mode defines how a detected entity is substituted
type Mode int

const (
	// ModeReplace substitutes a synthetic value and records original and replacement
	ModeReplace Mode = iota
	// ModeEncrypt substitutes an [ENC:<id>] placeholder and records the ciphertext
	ModeEncrypt
	// ModeBlur masks every character and records nothing
	ModeBlur
)

// String returns the string representation of the mode
func (m Mode) String() string {
	switch m {
	case ModeReplace:
		return "replace"
	case ModeEncrypt:
		return "encrypt"
	case ModeBlur:
		return "blur"
	default:
		return "unknown"
	}
}

// ParseMode converts a string to Mode
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "replace":
		return ModeReplace, nil
	case "encrypt":
		return ModeEncrypt, nil
	case "blur":
		return ModeBlur, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (expected replace, encrypt or blur)", s)
	}
}

// Reversible reports whether documents processed in this mode can be restored.
func (m Mode) Reversible() bool {
	return m == ModeEncrypt
}

func (m Mode) ledgerMode() ledger.Mode {
	return ledger.Mode(m.String())
}
