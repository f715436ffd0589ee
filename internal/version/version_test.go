// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	info := Info()
	assert.Contains(t, info, "pii-anonymizer "+Version)
	assert.Contains(t, info, "commit: "+GitCommit)
	assert.Contains(t, info, Platform)
}

func TestShort_FollowsLinkerStamp(t *testing.T) {
	saved := Version
	t.Cleanup(func() { Version = saved })

	Version = "1.2.0"
	assert.Equal(t, "pii-anonymizer/1.2.0", Short())
	assert.Contains(t, Info(), "pii-anonymizer 1.2.0 ")
}
