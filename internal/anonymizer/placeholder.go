// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package anonymizer

import (
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"
)

// placeholderPattern matches [ENC:<ulid>] in any letter case. Entity ids use
// the Crockford base32 alphabet of ULIDs.
var placeholderPattern = regexp.MustCompile(`(?i)\[ENC:([0-9A-HJKMNP-TV-Z]{26})\]`)

// FormatPlaceholder renders the in-text marker for an entity id.
func FormatPlaceholder(entityID string) string {
	return "[ENC:" + entityID + "]"
}

// newEntityID returns a fresh, lexically sortable entity id.
func newEntityID() string {
	return ulid.Make().String()
}

// normalizeEntityID maps a matched id onto the canonical stored form.
func normalizeEntityID(id string) string {
	return strings.ToUpper(id)
}
