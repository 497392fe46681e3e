// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package confidential

import (
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	ID    uint64
	Owner common.Address
}

func TestCodecVersionPrefix(t *testing.T) {
	require := require.New(t)

	raw, err := Codec.Marshal(CodecVersion, &testRecord{ID: 3})
	require.NoError(err)
	require.Equal([]byte{0, 0}, raw[:2])

	raw[1] = 1
	var out testRecord
	version, err := Codec.Unmarshal(raw, &out)
	require.ErrorIs(err, errUnknownCodecVersion)
	require.Equal(uint16(1), version)
}

func TestCodecRejectsShortInput(t *testing.T) {
	var out testRecord
	_, err := Codec.Unmarshal([]byte{0}, &out)
	require.Error(t, err)

	_, err = Codec.Unmarshal([]byte{0, 0, 0xff}, &out)
	require.Error(t, err)
}
