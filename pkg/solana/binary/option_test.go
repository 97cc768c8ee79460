package binary

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalKey(t *testing.T) {
	key := ed25519.PublicKey(bytes.Repeat([]byte{7}, ed25519.PublicKeySize))

	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)
	require.NoError(t, WriteOptionalKey(encoder, key))
	require.NoError(t, WriteOptionalKey(encoder, nil))

	raw := buf.Bytes()
	require.Len(t, raw, 2*OptionalKeySize)
	assert.Equal(t, []byte{1, 0, 0, 0}, raw[:4])
	assert.Equal(t, make([]byte, OptionalKeySize), raw[OptionalKeySize:])

	decoder := bin.NewBinDecoder(raw)
	actual, err := ReadOptionalKey(decoder)
	require.NoError(t, err)
	assert.EqualValues(t, key, actual)

	actual, err = ReadOptionalKey(decoder)
	require.NoError(t, err)
	assert.Nil(t, actual)

	_, err = ReadOptionalKey(bin.NewBinDecoder(append([]byte{2, 0, 0, 0}, key...)))
	assert.Error(t, err)

	assert.Error(t, WriteOptionalKey(bin.NewBinEncoder(new(bytes.Buffer)), key[:31]))
}

func TestOptionalUint64(t *testing.T) {
	value := uint64(2039280)

	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)
	require.NoError(t, WriteOptionalUint64(encoder, &value))
	require.NoError(t, WriteOptionalUint64(encoder, nil))
	require.Len(t, buf.Bytes(), 2*OptionalUint64Size)

	decoder := bin.NewBinDecoder(buf.Bytes())
	actual, err := ReadOptionalUint64(decoder)
	require.NoError(t, err)
	require.NotNil(t, actual)
	assert.Equal(t, value, *actual)

	actual, err = ReadOptionalUint64(decoder)
	require.NoError(t, err)
	assert.Nil(t, actual)

	_, err = ReadOptionalUint64(bin.NewBinDecoder([]byte{1, 0, 0, 0}))
	assert.Error(t, err)
}
