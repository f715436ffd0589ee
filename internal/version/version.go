// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package version carries the build stamp printed by `pii-anonymizer -version`
// and recorded in exported audit logs.
package version

import (
	"fmt"
	"runtime"
)

// Release builds overwrite these through the linker, for example
//
//	go build -ldflags "-X pii-anonymizer/internal/version.Version=1.2.0 \
//	  -X pii-anonymizer/internal/version.GitCommit=$(git rev-parse --short HEAD)" \
//	  ./cmd/pii-anonymizer
//
// A plain `go build` keeps the development values.
var (
	Version   = "0.0.0-development"
	GitCommit = "unknown"
	BuildDate = "unknown"

	// GoVersion and Platform describe the toolchain and target of this binary.
	GoVersion = runtime.Version()
	Platform  = fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
)

// Info is the one-line banner for -version.
func Info() string {
	return fmt.Sprintf("pii-anonymizer %s (commit: %s, built: %s, go: %s, platform: %s)",
		Version, GitCommit, BuildDate, GoVersion, Platform)
}

// Short names the release that wrote an audit log, e.g. "pii-anonymizer/1.2.0".
func Short() string {
	return "pii-anonymizer/" + Version
}
