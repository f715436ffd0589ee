// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package encryption provides authenticated encryption of original entity
// values. Tokens are hex encoded nonce||ciphertext produced with
// XChaCha20-Poly1305 under a key derived from the persisted key file.
package encryption

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"pii-anonymizer/internal/observability"
	"pii-anonymizer/internal/security"
)

// hkdfInfo binds the derived key to its single use.
var hkdfInfo = []byte("pii-anonymizer entity encryption v1")

// Provider encrypts and decrypts entity values. It is safe for concurrent
// use once constructed; the key is read-only after initialization.
type Provider struct {
	mu       sync.RWMutex
	aead     cipher.AEAD
	key      *security.SecureBytes
	observer *observability.StandardObserver
}

// NewProvider derives the cipher key from master. The caller keeps ownership
// of master and may clear it after this returns.
func NewProvider(master *security.SecureBytes, observer *observability.StandardObserver) (*Provider, error) {
	if master == nil || master.Len() != KeySize {
		return nil, fmt.Errorf("master key must be %d bytes", KeySize)
	}

	derived := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master.Bytes(), nil, hkdfInfo), derived); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	key := security.NewSecureBytes(derived)
	security.Zero(derived)

	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		key.Clear()
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return &Provider{aead: aead, key: key, observer: observer}, nil
}

// NewProviderFromFile loads or creates the key file at path and builds a Provider.
func NewProviderFromFile(path string, observer *observability.StandardObserver) (*Provider, error) {
	master, err := LoadOrCreateKey(path)
	if err != nil {
		return nil, err
	}
	defer master.Clear()
	return NewProvider(master, observer)
}

// GetComponentName returns the component name for observability
func (p *Provider) GetComponentName() string {
	return "crypto_provider"
}

// Encrypt seals plaintext under a fresh random nonce.
func (p *Provider) Encrypt(plaintext string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.aead == nil {
		return "", errors.New("provider is closed")
	}

	nonce := make([]byte, p.aead.NonceSize(), p.aead.NonceSize()+len(plaintext)+p.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := p.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt. Every failure caused by the
// token itself is a *DecryptionError.
func (p *Provider) Decrypt(token string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.aead == nil {
		return "", errors.New("provider is closed")
	}

	finish := p.observer.StartTiming(p.GetComponentName(), "decrypt", "")
	plaintext, err := p.open(token)
	if err != nil {
		finish(false, map[string]interface{}{"error": err.Error()})
	} else {
		finish(true, nil)
	}
	return plaintext, err
}

func (p *Provider) open(token string) (string, error) {
	raw, err := hex.DecodeString(token)
	if err != nil {
		return "", &DecryptionError{Reason: "malformed token", Cause: err}
	}
	ns := p.aead.NonceSize()
	if len(raw) < ns+p.aead.Overhead() {
		return "", &DecryptionError{Reason: fmt.Sprintf("truncated token (%d bytes)", len(raw))}
	}
	plaintext, err := p.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", &DecryptionError{Reason: "authentication failed", Cause: err}
	}
	return string(plaintext), nil
}

// Close clears the derived key. Further calls fail.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.key != nil {
		p.key.Clear()
		p.key = nil
	}
	p.aead = nil
	return nil
}
