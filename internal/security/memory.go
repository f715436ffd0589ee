// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package security

// SecureBytes holds key material or plaintext with best-effort zeroing on Clear.
//
// Limitations: Go's garbage collector may move or copy memory at any time, and
// any copy a caller makes of Bytes() cannot be zeroed. Clear()
// zeroes the internal slice, which reduces the window of exposure, but cannot
// guarantee that no copies exist elsewhere in the heap.
type SecureBytes struct {
	data []byte
}

// NewSecureBytes copies b into a buffer owned by the returned value.
func NewSecureBytes(b []byte) *SecureBytes {
	data := make([]byte, len(b))
	copy(data, b)
	return &SecureBytes{data: data}
}

// Bytes returns the backing slice. Callers must not retain it past Clear.
func (sb *SecureBytes) Bytes() []byte {
	return sb.data
}

// Len returns the number of bytes held.
func (sb *SecureBytes) Len() int {
	return len(sb.data)
}

// Clear overwrites the buffer with zeros and releases it.
func (sb *SecureBytes) Clear() {
	if sb.data != nil {
		for i := range sb.data {
			sb.data[i] = 0
		}
		sb.data = nil
	}
}

// Zero overwrites b in place.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
