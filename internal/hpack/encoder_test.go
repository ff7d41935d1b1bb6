package hpack

import (
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeSequence(t *testing.T, enc *Encoder, examples []blockExample) []string {
	t.Helper()
	out := make([]string, 0, len(examples))
	for i, ex := range examples {
		block, err := enc.Encode(ex.headers)
		require.NoError(t, err, "block %d", i)
		assert.Equal(t, ex.table, enc.DynamicTable(), "block %d", i)
		assert.Equal(t, ex.tableSize, enc.DynamicTableSize(), "block %d", i)
		out = append(out, hex.EncodeToString(block))
	}
	return out
}

func TestEncodeRequestSequence(t *testing.T) {
	enc := NewEncoder()
	enc.SetHuffmanPolicy(HuffmanNever)
	assert.Equal(t, hexes(requestExamples), encodeSequence(t, enc, requestExamples))
}

func TestEncodeRequestSequenceHuffman(t *testing.T) {
	for _, policy := range []HuffmanPolicy{HuffmanAuto, HuffmanAlways} {
		t.Run(policy.String(), func(t *testing.T) {
			enc := NewEncoder()
			enc.SetHuffmanPolicy(policy)
			assert.Equal(t, huffmanRequestHex, encodeSequence(t, enc, requestExamples))
		})
	}
}

func TestEncodeResponseSequence(t *testing.T) {
	// the first block announces the 256 octet table
	want := hexes(responseExamples)
	want[0] = "3fe101" + want[0]

	enc := NewEncoder(256)
	enc.SetHuffmanPolicy(HuffmanNever)
	assert.Equal(t, want, encodeSequence(t, enc, responseExamples))

	want = append([]string(nil), huffmanResponseHex...)
	want[0] = "3fe101" + want[0]

	enc = NewEncoder(256)
	enc.SetHuffmanPolicy(HuffmanAlways)
	assert.Equal(t, want, encodeSequence(t, enc, responseExamples))
}

func TestEncodeLiteralWithIndexing(t *testing.T) {
	enc := NewEncoder()
	enc.SetHuffmanPolicy(HuffmanNever)

	block, err := enc.Encode([]HeaderField{{Name: "custom-key", Value: "custom-header"}})
	require.NoError(t, err)
	assert.Equal(t, "400a637573746f6d2d6b65790d637573746f6d2d686561646572", hex.EncodeToString(block))

	block, err = enc.Encode([]HeaderField{{Name: "custom-key", Value: "custom-header"}})
	require.NoError(t, err)
	assert.Equal(t, "be", hex.EncodeToString(block))
}

func TestEncodeNeverIndexed(t *testing.T) {
	enc := NewEncoder()
	enc.SetHuffmanPolicy(HuffmanNever)

	block, err := enc.Encode([]HeaderField{NewHeaderField("password", "secret", true)})
	require.NoError(t, err)
	assert.Equal(t, "100870617373776f726406736563726574", hex.EncodeToString(block))
	assert.Empty(t, enc.DynamicTable())

	// a never-indexed field is written literally even when the table holds it
	_, err = enc.Encode([]HeaderField{{Name: "password", Value: "secret"}})
	require.NoError(t, err)
	block, err = enc.Encode([]HeaderField{NewHeaderField("password", "secret", true)})
	require.NoError(t, err)
	assert.Equal(t, "1f2f06736563726574", hex.EncodeToString(block))
}

func TestEncodeZeroSizedTable(t *testing.T) {
	enc := NewEncoder(0)

	block, err := enc.Encode([]HeaderField{{Name: ":method", Value: "GET"}})
	require.NoError(t, err)
	assert.Equal(t, "2082", hex.EncodeToString(block))

	block, err = enc.Encode([]HeaderField{{Name: "x-custom", Value: "v"}})
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), block[0])
	assert.Empty(t, enc.DynamicTable())
}

func TestEncodeInitialSizeAboveDefault(t *testing.T) {
	enc := NewEncoder(8192)
	assert.Equal(t, uint32(DefaultMaxDynamicTableSize), enc.MaxDynamicTableSize())

	block, err := enc.Encode([]HeaderField{{Name: ":method", Value: "GET"}})
	require.NoError(t, err)
	assert.Equal(t, "82", hex.EncodeToString(block))

	// a default decoder accepts what was sent so far
	_, err = NewDecoder(DefaultMaxDynamicTableSize).Decode(block)
	require.NoError(t, err)

	enc.SetMaxDynamicTableSizeLimit(8192)
	enc.SetMaxDynamicTableSize(8192)
	block, err = enc.Encode([]HeaderField{{Name: ":method", Value: "GET"}})
	require.NoError(t, err)
	assert.Equal(t, "3fe13f82", hex.EncodeToString(block))
	assert.Equal(t, uint32(8192), enc.MaxDynamicTableSize())
}

func TestEncodePendingSizeUpdates(t *testing.T) {
	enc := NewEncoder()
	enc.SetMaxDynamicTableSize(100)
	enc.SetMaxDynamicTableSize(200)

	block, err := enc.Encode([]HeaderField{{Name: ":method", Value: "GET"}})
	require.NoError(t, err)
	assert.Equal(t, "3f453fa90182", hex.EncodeToString(block))
	assert.Equal(t, uint32(200), enc.MaxDynamicTableSize())

	block, err = enc.Encode([]HeaderField{{Name: ":method", Value: "GET"}})
	require.NoError(t, err)
	assert.Equal(t, "82", hex.EncodeToString(block))
}

func TestEncodeSizeLimit(t *testing.T) {
	enc := NewEncoder()
	enc.SetMaxDynamicTableSizeLimit(1024)

	block, err := enc.Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "3fe107", hex.EncodeToString(block))

	enc.SetMaxDynamicTableSize(8192)
	assert.Equal(t, uint32(1024), enc.MaxDynamicTableSize())
}

func TestEncodeLargeFieldWithoutIndexing(t *testing.T) {
	enc := NewEncoder()
	enc.SetHuffmanPolicy(HuffmanNever)

	hf := HeaderField{Name: "x-large", Value: strings.Repeat("v", DefaultMaxDynamicTableSize)}
	block, err := enc.Encode([]HeaderField{hf})
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), block[0])
	assert.Empty(t, enc.DynamicTable())

	headers, err := NewDecoder(DefaultMaxDynamicTableSize).Decode(block)
	require.NoError(t, err)
	assert.Equal(t, []HeaderField{hf}, headers)
}

func TestEncoderDecoderTablesStayInSync(t *testing.T) {
	rng := rand.New(rand.NewSource(7541))
	names := []string{":method", ":path", "content-type", "x-request-id", "cookie", "user-agent", "accept"}

	enc := NewEncoder()
	dec := NewDecoder(DefaultMaxDynamicTableSize)

	for block := 0; block < 200; block++ {
		if rng.Intn(10) == 0 {
			enc.SetMaxDynamicTableSize(uint32(rng.Intn(DefaultMaxDynamicTableSize + 1)))
		}
		enc.SetHuffmanPolicy(HuffmanPolicy(rng.Intn(3)))

		headers := make([]HeaderField, rng.Intn(12))
		for i := range headers {
			headers[i] = HeaderField{
				Name:         names[rng.Intn(len(names))],
				Value:        fmt.Sprintf("value-%d", rng.Intn(20)),
				NeverIndexed: rng.Intn(8) == 0,
			}
		}

		encoded, err := enc.Encode(headers)
		require.NoError(t, err, "block %d", block)

		decoded, err := dec.Decode(encoded)
		require.NoError(t, err, "block %d", block)

		require.Len(t, decoded, len(headers), "block %d", block)
		for i := range headers {
			assert.Equal(t, headers[i].Name, decoded[i].Name)
			assert.Equal(t, headers[i].Value, decoded[i].Value)
		}
		require.Equal(t, enc.DynamicTable(), dec.DynamicTable(), "block %d", block)
		require.Equal(t, enc.DynamicTableSize(), dec.DynamicTableSize(), "block %d", block)
	}
}

func TestParseHuffmanPolicy(t *testing.T) {
	for _, s := range []string{"auto", "always", "never"} {
		p, err := ParseHuffmanPolicy(s)
		require.NoError(t, err)
		assert.Equal(t, s, p.String())
	}

	p, err := ParseHuffmanPolicy("")
	require.NoError(t, err)
	assert.Equal(t, HuffmanAuto, p)

	_, err = ParseHuffmanPolicy("sometimes")
	assert.Error(t, err)
}
