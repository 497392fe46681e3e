// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"
)

// ACL is the engine-side record of who may decrypt which handle.
type ACL struct {
	lock   sync.RWMutex
	grants map[ids.ID]set.Set[common.Address]
}

func NewACL() *ACL {
	return &ACL{
		grants: make(map[ids.ID]set.Set[common.Address]),
	}
}

// Allow grants principal access to h. Repeated grants are no-ops.
func (a *ACL) Allow(h ids.ID, principal common.Address) {
	a.lock.Lock()
	defer a.lock.Unlock()

	principals, ok := a.grants[h]
	if !ok {
		principals = set.NewSet[common.Address](1)
		a.grants[h] = principals
	}
	principals.Add(principal)
}

// Allowed reports whether principal was granted h.
func (a *ACL) Allowed(h ids.ID, principal common.Address) bool {
	a.lock.RLock()
	defer a.lock.RUnlock()

	return a.grants[h].Contains(principal)
}

// Principals returns everyone granted h, in no particular order.
func (a *ACL) Principals(h ids.ID) []common.Address {
	a.lock.RLock()
	defer a.lock.RUnlock()

	return a.grants[h].List()
}
