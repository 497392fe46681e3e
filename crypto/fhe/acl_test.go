// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func TestACLAllow(t *testing.T) {
	require := require.New(t)

	var (
		h     = ids.GenerateTestID()
		other = ids.GenerateTestID()
		alice = common.HexToAddress("0xa1")
		bob   = common.HexToAddress("0xb0")
	)
	acl := NewACL()
	require.False(acl.Allowed(h, alice))
	require.Empty(acl.Principals(h))

	acl.Allow(h, alice)
	require.True(acl.Allowed(h, alice))
	require.False(acl.Allowed(h, bob))
	require.False(acl.Allowed(other, alice))

	acl.Allow(h, alice)
	acl.Allow(h, bob)
	require.ElementsMatch([]common.Address{alice, bob}, acl.Principals(h))
	require.Empty(acl.Principals(other))
}
