package hpack

import (
	"encoding/hex"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegerExamples(t *testing.T) {
	cases := []struct {
		name       string
		value      uint64
		prefixBits uint8
		encoded    string
	}{
		{"C.1.1 ten in 5-bit prefix", 10, 5, "0a"},
		{"C.1.2 1337 in 5-bit prefix", 1337, 5, "1f9a0a"},
		{"C.1.3 42 at octet boundary", 42, 8, "2a"},
		{"prefix filled exactly", 31, 5, "1f00"},
		{"one bit prefix", 0, 1, "00"},
		{"size update 4096", 4096, 5, "1fe11f"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := EncodeInteger(tc.value, tc.prefixBits)
			assert.Equal(t, tc.encoded, hex.EncodeToString(encoded))

			value, consumed, err := DecodeInteger(encoded, tc.prefixBits)
			require.NoError(t, err)
			assert.Equal(t, tc.value, value)
			assert.Equal(t, len(encoded), consumed)
		})
	}
}

func TestAppendIntegerKeepsFlags(t *testing.T) {
	assert.Equal(t, []byte{0x82}, AppendInteger(nil, 0x80, 7, 2))
	assert.Equal(t, []byte{0xaa, 0x3f, 0xe1, 0x1f}, AppendInteger([]byte{0xaa}, 0x20, 5, 4096))
}

func TestDecodeIntegerIgnoresFlagBits(t *testing.T) {
	value, consumed, err := DecodeInteger([]byte{0xe5, 0xff}, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), value)
	assert.Equal(t, 1, consumed)
}

func TestIntegerMaxValue(t *testing.T) {
	encoded := EncodeInteger(math.MaxUint64, 5)
	value, consumed, err := DecodeInteger(encoded, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), value)
	assert.Equal(t, len(encoded), consumed)
}

func TestDecodeIntegerOverflow(t *testing.T) {
	t.Run("carry out of 64 bits", func(t *testing.T) {
		data := []byte{0x1f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}
		_, _, err := DecodeInteger(data, 5)
		assert.ErrorIs(t, err, ErrIntegerOverflow)
		assert.ErrorIs(t, err, ErrHeaderComp)
	})

	t.Run("shift beyond 64 bits", func(t *testing.T) {
		data := []byte{0x1f, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x00}
		_, _, err := DecodeInteger(data, 5)
		assert.ErrorIs(t, err, ErrIntegerOverflow)
	})

	t.Run("chunk loses bits at last shift", func(t *testing.T) {
		data := []byte{0x1f, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x02}
		_, _, err := DecodeInteger(data, 5)
		assert.ErrorIs(t, err, ErrIntegerOverflow)
	})
}

func TestDecodeIntegerTruncated(t *testing.T) {
	_, _, err := DecodeInteger(nil, 7)
	assert.ErrorIs(t, err, ErrTruncated)

	_, _, err = DecodeInteger([]byte{0x1f, 0x9a}, 5)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestIntegerPrefixContract(t *testing.T) {
	assert.Panics(t, func() { EncodeInteger(1, 0) })
	assert.Panics(t, func() { EncodeInteger(1, 9) })
	assert.Panics(t, func() { _, _, _ = DecodeInteger([]byte{0x01}, 0) })
}
