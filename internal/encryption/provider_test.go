// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package encryption

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, dir string) *Provider {
	t.Helper()
	p, err := NewProviderFromFile(filepath.Join(dir, "keys", "secret.key"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestLoadOrCreateKey_CreatesOnceAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "secret.key")

	first, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, KeySize, first.Len())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, first.Bytes(), second.Bytes())

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first.Bytes(), onDisk)
}

func TestLoadOrCreateKey_RejectsWrongSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.key")
	require.NoError(t, os.WriteFile(path, []byte("too short"), 0600))

	_, err := LoadOrCreateKey(path)
	assert.ErrorContains(t, err, "expected 32 bytes")

	_, err = LoadOrCreateKey("")
	assert.Error(t, err)
}

func TestLoadOrCreateKey_ConcurrentFirstRunsAgree(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret.key")

	const workers = 8
	keys := make([][]byte, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key, err := LoadOrCreateKey(path)
			errs[i] = err
			if err == nil {
				keys[i] = append([]byte(nil), key.Bytes()...)
			}
		}(i)
	}
	wg.Wait()

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, onDisk, keys[i], "worker %d", i)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary key files must not be left behind")
	assert.Equal(t, "secret.key", entries[0].Name())
}

func TestLoadOrCreateKey_EmptyFileIsNotReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.key")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	_, err := LoadOrCreateKey(path)
	assert.ErrorContains(t, err, "expected 32 bytes, got 0")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestProvider_RoundTrip(t *testing.T) {
	p := newTestProvider(t, t.TempDir())

	for _, plaintext := range []string{"2-1234/2024", "Иванов Иван Иванович", ""} {
		token, err := p.Encrypt(plaintext)
		require.NoError(t, err)

		got, err := p.Decrypt(token)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestProvider_NonceIsFreshPerCall(t *testing.T) {
	p := newTestProvider(t, t.TempDir())
	a, err := p.Encrypt("same")
	require.NoError(t, err)
	b, err := p.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestProvider_SameKeyAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	token, err := newTestProvider(t, dir).Encrypt("15.04.1985")
	require.NoError(t, err)

	got, err := newTestProvider(t, dir).Decrypt(token)
	require.NoError(t, err)
	assert.Equal(t, "15.04.1985", got)
}

func TestProvider_DecryptFailures(t *testing.T) {
	p := newTestProvider(t, t.TempDir())
	token, err := p.Encrypt("+7 (999) 123-45-67")
	require.NoError(t, err)

	flipped := []byte(token)
	last := len(flipped) - 1
	if flipped[last] == '0' {
		flipped[last] = '1'
	} else {
		flipped[last] = '0'
	}

	other := newTestProvider(t, t.TempDir())

	tests := []struct {
		name  string
		p     *Provider
		token string
	}{
		{"malformed", p, "not-hex!"},
		{"truncated", p, token[:20]},
		{"tampered", p, string(flipped)},
		{"wrong key", other, token},
		{"empty", p, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.p.Decrypt(tt.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecryption))
			assert.True(t, IsDecryptionError(err))
		})
	}
}

func TestProvider_Close(t *testing.T) {
	p := newTestProvider(t, t.TempDir())
	require.NoError(t, p.Close())

	_, err := p.Encrypt("x")
	assert.Error(t, err)
	_, err = p.Decrypt(strings.Repeat("0", 100))
	assert.Error(t, err)
	assert.False(t, IsDecryptionError(err))
}
