// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package encryption

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"pii-anonymizer/internal/security"
)

// KeySize is the length in bytes of the persisted key.
const KeySize = 32

// LoadOrCreateKey reads the raw key at path, creating it first if absent.
// A new key is written and synced to a temporary file in the same directory,
// then hard-linked into place. The link fails when path already exists, so
// concurrent first runs agree on a single key and readers never see a partly
// written file.
func LoadOrCreateKey(path string) (*security.SecureBytes, error) {
	if path == "" {
		return nil, errors.New("key path is empty")
	}

	key, err := readKey(path)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}

	raw := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	tmp, err := writeTempKey(dir, raw)
	if err != nil {
		security.Zero(raw)
		return nil, err
	}
	defer os.Remove(tmp) //nolint:errcheck // the linked name keeps the data

	if err := os.Link(tmp, path); err != nil {
		security.Zero(raw)
		if errors.Is(err, os.ErrExist) {
			// lost the race to another writer
			return readKey(path)
		}
		return nil, fmt.Errorf("install key file: %w", err)
	}
	return secure(raw), nil
}

// writeTempKey writes raw to a fresh 0600 file in dir and returns its name.
func writeTempKey(dir string, raw []byte) (string, error) {
	f, err := os.CreateTemp(dir, ".key-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create key file: %w", err)
	}
	name := f.Name()
	fail := func(op string, err error) (string, error) {
		f.Close()       //nolint:errcheck // already failing
		os.Remove(name) //nolint:errcheck // already failing
		return "", fmt.Errorf("%s key file: %w", op, err)
	}

	if err := f.Chmod(0600); err != nil {
		return fail("protect", err)
	}
	if _, err := f.Write(raw); err != nil {
		return fail("write", err)
	}
	if err := f.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name) //nolint:errcheck // already failing
		return "", fmt.Errorf("close key file: %w", err)
	}
	return name, nil
}

func readKey(path string) (*security.SecureBytes, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw) != KeySize {
		security.Zero(raw)
		return nil, fmt.Errorf("key file %s: expected %d bytes, got %d", path, KeySize, len(raw))
	}
	return secure(raw), nil
}

// secure moves raw into a SecureBytes and zeroes the source.
func secure(raw []byte) *security.SecureBytes {
	sb := security.NewSecureBytes(raw)
	security.Zero(raw)
	return sb
}
