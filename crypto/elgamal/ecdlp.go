// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package elgamal

import (
	"fmt"
	"math"

	"filippo.io/edwards25519"
	"github.com/luxfi/confidential/crypto/fhe"
)

// ErrOutOfRange is returned when a plaintext exceeds the solver's bound.
var ErrOutOfRange = fmt.Errorf("elgamal: %w: not decryptable", fhe.ErrOutOfRange)

// Solver recovers m from mG for m in [0, max] with baby-step giant-step.
// The baby-step table is built once; Solve is safe for concurrent use.
type Solver struct {
	max   uint64
	n     uint64
	table map[[PointSize]byte]uint64
	giant *edwards25519.Point // n*G
}

// NewSolver builds the baby-step table for the range [0, max].
func NewSolver(max uint64) *Solver {
	n := uint64(math.Ceil(math.Sqrt(float64(max) + 1)))
	if n == 0 {
		n = 1
	}

	table := make(map[[PointSize]byte]uint64, n)
	g := edwards25519.NewGeneratorPoint()
	p := edwards25519.NewIdentityPoint()
	var key [PointSize]byte
	for i := uint64(0); i < n; i++ {
		copy(key[:], p.Bytes())
		table[key] = i
		p.Add(p, g)
	}
	// p is now n*G
	return &Solver{
		max:   max,
		n:     n,
		table: table,
		giant: p,
	}
}

// Max returns the largest solvable value.
func (s *Solver) Max() uint64 {
	return s.max
}

// Solve returns m such that m*G == point.
func (s *Solver) Solve(point *edwards25519.Point) (uint64, error) {
	q := new(edwards25519.Point).Set(point)
	var key [PointSize]byte
	maxJ := s.max/s.n + 1
	for j := uint64(0); j <= maxJ; j++ {
		copy(key[:], q.Bytes())
		if i, ok := s.table[key]; ok {
			if m := j*s.n + i; m <= s.max {
				return m, nil
			}
			return 0, ErrOutOfRange
		}
		q.Subtract(q, s.giant)
	}
	return 0, ErrOutOfRange
}
