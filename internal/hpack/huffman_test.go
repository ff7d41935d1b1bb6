package hpack

import (
	"encoding/hex"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2/hpack"
)

var huffmanExamples = map[string]string{
	"www.example.com":               "f1e3c2e5f23a6ba0ab90f4ff",
	"no-cache":                      "a8eb10649cbf",
	"custom-key":                    "25a849e95ba97d7f",
	"custom-value":                  "25a849e95bb8e8b4bf",
	"302":                           "6402",
	"private":                       "aec3771a4b",
	"Mon, 21 Oct 2013 20:13:21 GMT": "d07abe941054d444a8200595040b8166e082a62d1bff",
	"https://www.example.com":       "9d29ad171863c78f0b97c8e9ae82ae43d3",
}

func TestHuffmanExamples(t *testing.T) {
	for plain, encodedHex := range huffmanExamples {
		encoded := HuffmanEncode(plain)
		assert.Equal(t, encodedHex, hex.EncodeToString(encoded), plain)
		assert.Equal(t, len(encoded), HuffmanEncodedLen(plain), plain)

		decoded, err := HuffmanDecode(encoded)
		require.NoError(t, err, plain)
		assert.Equal(t, plain, string(decoded))
	}
}

func TestHuffmanEverySymbol(t *testing.T) {
	for sym := 0; sym < 256; sym++ {
		s := string([]byte{byte(sym)})
		decoded, err := HuffmanDecode(HuffmanEncode(s))
		require.NoError(t, err, "symbol %d", sym)
		assert.Equal(t, s, string(decoded), "symbol %d", sym)
	}
}

func TestHuffmanMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7541))
	for i := 0; i < 500; i++ {
		buf := make([]byte, rng.Intn(64))
		rng.Read(buf)
		s := string(buf)

		assert.Equal(t, hex.EncodeToString(hpack.AppendHuffmanString(nil, s)), hex.EncodeToString(HuffmanEncode(s)))
		assert.Equal(t, int(hpack.HuffmanEncodeLength(s)), HuffmanEncodedLen(s))

		decoded, err := HuffmanDecode(HuffmanEncode(s))
		require.NoError(t, err)
		assert.Equal(t, s, string(decoded))
	}
}

func TestHuffmanDecodeRejectsInvalidInput(t *testing.T) {
	cases := map[string]string{
		"corrupted final byte":    "f1e3c2e5f23a6ba0ab90f4fe",
		"padding longer than 7":   "1fff",
		"ends inside a long code": "fe",
		"contains EOS":            "ffffffff",
	}

	for name, encodedHex := range cases {
		t.Run(name, func(t *testing.T) {
			data, err := hex.DecodeString(encodedHex)
			require.NoError(t, err)

			_, err = HuffmanDecode(data)
			assert.ErrorIs(t, err, ErrHuffmanInvalid)
			assert.ErrorIs(t, err, ErrHeaderComp)
		})
	}
}

func TestHuffmanEmpty(t *testing.T) {
	assert.Empty(t, HuffmanEncode(""))

	decoded, err := HuffmanDecode(nil)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestHuffmanDecoderStreaming(t *testing.T) {
	encoded, err := hex.DecodeString(huffmanExamples["Mon, 21 Oct 2013 20:13:21 GMT"])
	require.NoError(t, err)

	for chunk := 1; chunk <= 5; chunk++ {
		var (
			dec HuffmanDecoder
			out []byte
		)
		for pos := 0; pos < len(encoded); pos += chunk {
			end := min(pos+chunk, len(encoded))
			out, err = dec.Decode(out, encoded[pos:end], end == len(encoded))
			require.NoError(t, err, "chunk size %d", chunk)
		}
		assert.Equal(t, "Mon, 21 Oct 2013 20:13:21 GMT", string(out), "chunk size %d", chunk)
	}
}

func TestHuffmanDecoderFinalChecksCarriedState(t *testing.T) {
	dec := NewHuffmanDecoder()

	// "custom-key" without its final octet stops mid-code.
	encoded, err := hex.DecodeString("25a849e95ba97d")
	require.NoError(t, err)

	out, err := dec.Decode(nil, encoded, false)
	require.NoError(t, err)
	t.Logf("partial output: %q", out)

	_, err = dec.Decode(out, nil, true)
	assert.ErrorIs(t, err, ErrHuffmanInvalid)

	// The decoder is reset after a final chunk and can take the next literal.
	out, err = dec.Decode(nil, HuffmanEncode("ok"), true)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(out))
}

func TestHuffmanCodeAccessor(t *testing.T) {
	code, nbits := HuffmanCode('a')
	assert.Equal(t, uint32(0x3), code)
	assert.Equal(t, uint8(5), nbits)

	code, nbits = HuffmanCode(huffmanEOS)
	assert.Equal(t, uint32(0x3fffffff), code)
	assert.Equal(t, uint8(30), nbits)
}
