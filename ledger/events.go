// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/event"
	"github.com/luxfi/ids"
)

type TransferEvent struct {
	From   common.Address
	To     common.Address
	Amount ids.ID
}

type MintRequestedEvent struct {
	To        common.Address
	RequestID uint64
}

type MintedEvent struct {
	To        common.Address
	RequestID uint64
}

type BurnedEvent struct {
	From   common.Address
	Amount ids.ID
}

type feeds struct {
	transfer      event.Feed
	mintRequested event.Feed
	minted        event.Feed
	burned        event.Feed
	scope         event.SubscriptionScope
}

// SubscribeTransfer delivers every committed transfer to ch.
func (l *Ledger) SubscribeTransfer(ch chan<- TransferEvent) event.Subscription {
	return l.feeds.scope.Track(l.feeds.transfer.Subscribe(ch))
}

// SubscribeMintRequested delivers every registered mint request to ch.
func (l *Ledger) SubscribeMintRequested(ch chan<- MintRequestedEvent) event.Subscription {
	return l.feeds.scope.Track(l.feeds.mintRequested.Subscribe(ch))
}

// SubscribeMinted delivers every completed mint to ch.
func (l *Ledger) SubscribeMinted(ch chan<- MintedEvent) event.Subscription {
	return l.feeds.scope.Track(l.feeds.minted.Subscribe(ch))
}

// SubscribeBurned delivers every committed burn to ch.
func (l *Ledger) SubscribeBurned(ch chan<- BurnedEvent) event.Subscription {
	return l.feeds.scope.Track(l.feeds.burned.Subscribe(ch))
}
