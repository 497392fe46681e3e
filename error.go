// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package confidential

import "fmt"

// Error represents a ledger error. Errors are compared by identity, so
// callers wrap the sentinels below with %w and match them with errors.Is.
type Error struct {
	Code    int32
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("confidential error %d: %s", e.Code, e.Message)
}

const (
	CodeInsufficientFee int32 = iota + 1
	CodeNotReady
	CodeRequestMismatch
	CodeInvalidProof
	CodeUnauthorized
	CodeZeroAddress
	CodeInvalidOracle
	CodeDuplicateTag
	CodeRequestExpired
	CodeUnknownHandle
	CodeUnsupportedPolicy
	CodeOutOfRange
)

var (
	// ErrInsufficientFee is returned when the payment is below the oracle fee.
	ErrInsufficientFee = &Error{Code: CodeInsufficientFee, Message: "insufficient fee"}
	// ErrNotReady is returned when a request is not fulfilled or was already claimed.
	ErrNotReady = &Error{Code: CodeNotReady, Message: "entropy request not ready"}
	// ErrRequestMismatch is returned when a request is claimed by someone other than its requester.
	ErrRequestMismatch = &Error{Code: CodeRequestMismatch, Message: "request mismatch"}
	// ErrInvalidProof is returned when the engine rejects an external input.
	ErrInvalidProof = &Error{Code: CodeInvalidProof, Message: "invalid input proof"}
	// ErrUnauthorized is returned when a principal uses a handle it was not granted.
	ErrUnauthorized = &Error{Code: CodeUnauthorized, Message: "unauthorized handle access"}
	// ErrZeroAddress is returned for the null account.
	ErrZeroAddress = &Error{Code: CodeZeroAddress, Message: "zero address"}
	// ErrInvalidOracle is returned when a ledger is constructed without an oracle.
	ErrInvalidOracle = &Error{Code: CodeInvalidOracle, Message: "invalid oracle"}
	// ErrDuplicateTag is returned by oracles that enforce tag uniqueness.
	ErrDuplicateTag = &Error{Code: CodeDuplicateTag, Message: "duplicate request tag"}
	// ErrRequestExpired is returned when claiming a request older than the configured TTL.
	ErrRequestExpired = &Error{Code: CodeRequestExpired, Message: "entropy request expired"}
	// ErrUnknownHandle is returned for handles neither the store nor the engine knows.
	ErrUnknownHandle = &Error{Code: CodeUnknownHandle, Message: "unknown handle"}
	// ErrUnsupportedPolicy is returned when the engine cannot evaluate the configured policy.
	ErrUnsupportedPolicy = &Error{Code: CodeUnsupportedPolicy, Message: "engine does not support sufficiency policy"}
	// ErrOutOfRange is returned for amounts or handles outside the range the engine can evaluate.
	ErrOutOfRange = &Error{Code: CodeOutOfRange, Message: "value out of range"}
)

var errorsByCode = map[int32]*Error{
	CodeInsufficientFee:   ErrInsufficientFee,
	CodeNotReady:          ErrNotReady,
	CodeRequestMismatch:   ErrRequestMismatch,
	CodeInvalidProof:      ErrInvalidProof,
	CodeUnauthorized:      ErrUnauthorized,
	CodeZeroAddress:       ErrZeroAddress,
	CodeInvalidOracle:     ErrInvalidOracle,
	CodeDuplicateTag:      ErrDuplicateTag,
	CodeRequestExpired:    ErrRequestExpired,
	CodeUnknownHandle:     ErrUnknownHandle,
	CodeUnsupportedPolicy: ErrUnsupportedPolicy,
	CodeOutOfRange:        ErrOutOfRange,
}

// ErrorFromCode returns the sentinel registered for code, if any.
func ErrorFromCode(code int32) (*Error, bool) {
	err, ok := errorsByCode[code]
	return err, ok
}
