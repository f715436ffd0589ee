// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const appName = "pii-anonymizer"

// GetConfigDir returns the pii-anonymizer configuration directory.
// PII_ANONYMIZER_CONFIG_DIR overrides, then $XDG_CONFIG_HOME, then ~/.config.
func GetConfigDir() string {
	if dir := os.Getenv("PII_ANONYMIZER_CONFIG_DIR"); dir != "" {
		return dir
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(homeDir(), ".config", appName)
}

// GetConfigFile returns the path to the main config file
func GetConfigFile() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// GetDataDir returns the directory holding the ledger and the key file.
// PII_ANONYMIZER_DATA_DIR overrides, then $XDG_DATA_HOME, then ~/.local/share.
func GetDataDir() string {
	if dir := os.Getenv("PII_ANONYMIZER_DATA_DIR"); dir != "" {
		return dir
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	return filepath.Join(homeDir(), ".local", "share", appName)
}

// GetLedgerFile returns the default mapping ledger location
func GetLedgerFile() string {
	return filepath.Join(GetDataDir(), "ledger.db")
}

// GetKeyFile returns the default master key location
func GetKeyFile() string {
	return filepath.Join(GetDataDir(), "secret.key")
}

// GetHomeConfigFile returns the dotfile config in the user's home directory
func GetHomeConfigFile() string {
	return filepath.Join(homeDir(), "."+appName+".yaml")
}

// ExpandHome replaces a leading "~" with the user's home directory and cleans the result.
func ExpandHome(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		return homeDir()
	}
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		return filepath.Join(homeDir(), path[2:])
	}
	return filepath.Clean(path)
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}
