// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package healthcheck

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alexliesenfeld/health"
	"github.com/luxfi/confidential/db"
	"github.com/luxfi/confidential/entropy"
)

const checkTimeout = 5 * time.Second

var healthKey = []byte("m/health")

// NewHandler reports the daemon healthy while the store answers reads and
// the oracle quotes a fee.
func NewHandler(kv db.KeyValueReader, oracle entropy.Oracle) http.Handler {
	checker := health.NewChecker(
		health.WithTimeout(checkTimeout),
		health.WithCheck(health.Check{
			Name:  "store",
			Check: StoreCheck(kv),
		}),
		health.WithCheck(health.Check{
			Name:  "oracle",
			Check: OracleCheck(oracle),
		}),
	)
	return health.NewHandler(checker)
}

func StoreCheck(kv db.KeyValueReader) func(context.Context) error {
	return func(context.Context) error {
		if _, err := kv.Has(healthKey); err != nil {
			return fmt.Errorf("store unavailable: %w", err)
		}
		return nil
	}
}

func OracleCheck(oracle entropy.Oracle) func(context.Context) error {
	return func(ctx context.Context) error {
		if _, err := oracle.GetFee(ctx); err != nil {
			return fmt.Errorf("oracle unavailable: %w", err)
		}
		return nil
	}
}
