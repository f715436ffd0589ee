// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package security

import (
	"testing"
)

func TestNewSecureBytes_CopiesInput(t *testing.T) {
	src := []byte{1, 2, 3}
	sb := NewSecureBytes(src)
	src[0] = 9
	if sb.Bytes()[0] != 1 {
		t.Errorf("expected SecureBytes to own a copy, got %v", sb.Bytes())
	}
	if sb.Len() != 3 {
		t.Errorf("expected length 3, got %d", sb.Len())
	}
}

func TestSecureBytes_ClearZeroesBackingArray(t *testing.T) {
	sb := NewSecureBytes([]byte("Иванов Иван"))
	backing := sb.Bytes()
	sb.Clear()
	for i, b := range backing {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %x", i, b)
		}
	}
	if sb.Len() != 0 {
		t.Errorf("expected empty buffer after Clear, got %d bytes", sb.Len())
	}
}

func TestSecureBytes_ClearIdempotent(t *testing.T) {
	sb := NewSecureBytes([]byte("data"))
	sb.Clear()
	sb.Clear()
}

func TestZero(t *testing.T) {
	b := []byte("secret")
	Zero(b)
	for _, c := range b {
		if c != 0 {
			t.Fatalf("expected zeroed slice, got %v", b)
		}
	}
}
