// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package encryption

import (
	"errors"
	"fmt"
)

// ErrDecryption is the sentinel wrapped by every DecryptionError.
var ErrDecryption = errors.New("decryption failed")

// DecryptionError reports a token that is malformed, truncated or fails authentication.
type DecryptionError struct {
	Reason string
	Cause  error
}

func (e *DecryptionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", ErrDecryption, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", ErrDecryption, e.Reason)
}

// Unwrap lets errors.Is match ErrDecryption.
func (e *DecryptionError) Unwrap() error {
	return ErrDecryption
}

// IsDecryptionError reports whether err is or wraps a DecryptionError.
func IsDecryptionError(err error) bool {
	var de *DecryptionError
	return errors.As(err, &de)
}
