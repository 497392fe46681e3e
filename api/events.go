// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/luxfi/confidential/ledger"
	"go.uber.org/zap"
)

const (
	// Max events queued for one stream. A client that falls further behind
	// is disconnected.
	eventBuffer       = 256
	eventWriteTimeout = 10 * time.Second
)

// events streams committed ledger events as newline-delimited JSON until the
// client disconnects. The first line is a subscribed marker. Feed delivery
// never waits on the client.
func (s *service) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(s.logger, w, http.StatusInternalServerError, 0, "streaming unsupported")
		return
	}
	rc := http.NewResponseController(w)

	// closed after every subscription is gone
	stop := make(chan struct{})
	defer close(stop)

	var (
		transfers = make(chan ledger.TransferEvent)
		requested = make(chan ledger.MintRequestedEvent)
		minted    = make(chan ledger.MintedEvent)
		burned    = make(chan ledger.BurnedEvent)
	)
	transferSub := s.ledger.SubscribeTransfer(transfers)
	defer transferSub.Unsubscribe()
	requestedSub := s.ledger.SubscribeMintRequested(requested)
	defer requestedSub.Unsubscribe()
	mintedSub := s.ledger.SubscribeMinted(minted)
	defer mintedSub.Unsubscribe()
	burnedSub := s.ledger.SubscribeBurned(burned)
	defer burnedSub.Unsubscribe()

	out := make(chan EventMessage, eventBuffer)
	lagged := make(chan struct{})
	go forwardEvents(stop, out, lagged, transfers, requested, minted, burned)

	w.Header().Set(contentTypeLabel, "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	send := func(msg EventMessage) bool {
		_ = rc.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
		if err := enc.Encode(msg); err != nil {
			s.logger.Debug("Event stream closed", zap.Error(err))
			return false
		}
		flusher.Flush()
		return true
	}

	if !send(EventMessage{Type: EventSubscribed}) {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case err := <-transferSub.Err():
			s.logger.Debug("Event subscription ended", zap.Error(err))
			return
		case <-lagged:
			s.logger.Debug("Event stream fell behind, disconnecting")
			return
		case msg := <-out:
			if !send(msg) {
				return
			}
		}
	}
}

// forwardEvents drains the subscriptions into out without blocking. When out
// is full it closes lagged and discards everything until stop is closed.
func forwardEvents(
	stop <-chan struct{},
	out chan<- EventMessage,
	lagged chan<- struct{},
	transfers <-chan ledger.TransferEvent,
	requested <-chan ledger.MintRequestedEvent,
	minted <-chan ledger.MintedEvent,
	burned <-chan ledger.BurnedEvent,
) {
	dropping := false
	for {
		var msg EventMessage
		select {
		case <-stop:
			return
		case ev := <-transfers:
			msg = EventMessage{Type: EventTransfer, From: &ev.From, To: &ev.To, Amount: ev.Amount[:]}
		case ev := <-requested:
			msg = EventMessage{Type: EventMintRequested, To: &ev.To, RequestID: ev.RequestID}
		case ev := <-minted:
			msg = EventMessage{Type: EventMinted, To: &ev.To, RequestID: ev.RequestID}
		case ev := <-burned:
			msg = EventMessage{Type: EventBurned, From: &ev.From, Amount: ev.Amount[:]}
		}
		if dropping {
			continue
		}
		select {
		case out <- msg:
		default:
			dropping = true
			close(lagged)
		}
	}
}
