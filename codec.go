// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package confidential

import (
	"errors"
	"fmt"

	"github.com/luxfi/geth/rlp"
)

// CodecVersion is prefixed to every persisted record.
const CodecVersion uint16 = 0

var errUnknownCodecVersion = errors.New("unknown codec version")

// CodecImpl is used for serializing/deserializing persisted ledger records
type CodecImpl struct{}

// Codec is the default codec instance
var Codec = &CodecImpl{}

// Marshal serializes v as RLP prefixed with the two byte codec version.
func (c *CodecImpl) Marshal(version uint16, v interface{}) ([]byte, error) {
	body, err := rlp.EncodeToBytes(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 2, 2+len(body))
	out[0] = byte(version >> 8)
	out[1] = byte(version)
	return append(out, body...), nil
}

// Unmarshal deserializes the bytes into v and returns the codec version.
func (c *CodecImpl) Unmarshal(b []byte, v interface{}) (uint16, error) {
	if len(b) < 2 {
		return 0, fmt.Errorf("record too short: %d bytes", len(b))
	}
	version := uint16(b[0])<<8 | uint16(b[1])
	if version != CodecVersion {
		return version, fmt.Errorf("%w: %d", errUnknownCodecVersion, version)
	}
	return version, rlp.DecodeBytes(b[2:], v)
}
