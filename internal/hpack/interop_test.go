package hpack

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tested_hpack "github.com/tatsuhiro-t/go-http2-hpack"
	nethpack "golang.org/x/net/http2/hpack"
)

func TestDecodeFromTatsuhiroEncoder(t *testing.T) {
	encoders := map[string]func() *tested_hpack.Encoder{
		"no table": func() *tested_hpack.Encoder { return tested_hpack.NewEncoder(0) },
		"default":  func() *tested_hpack.Encoder { return tested_hpack.NewEncoder(4096) },
	}

	for name, newEncoder := range encoders {
		headersPre := []*tested_hpack.Header{
			tested_hpack.NewHeader(":method", "GET", false),
			tested_hpack.NewHeader(":scheme", "https", false),
			tested_hpack.NewHeader(":path", "/", false),
			tested_hpack.NewHeader("user-agent", "hpack-codec", false),
			tested_hpack.NewHeader("authorization", "Bearer token", true),
		}

		dec := NewDecoder(DefaultMaxDynamicTableSize)
		enc := newEncoder()

		// the second round exercises entries the first one indexed
		for round := 0; round < 2; round++ {
			encoded := &bytes.Buffer{}
			enc.Encode(encoded, headersPre)

			encBytes := encoded.Bytes()
			t.Logf("Encoded headers as hex   : 0x%s", hex.EncodeToString(encBytes))

			headersAfter, err := dec.Decode(encBytes)
			require.NoError(t, err, "%s: error decoding headers after encoded payload", name)
			require.Len(t, headersAfter, len(headersPre))

			for i, header := range headersAfter {
				assert.Equal(t, headersPre[i].Name, header.Name)
				assert.Equal(t, headersPre[i].Value, header.Value)
			}
		}
	}
}

func TestDecodeFromNetEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := nethpack.NewEncoder(&buf)
	dec := NewDecoder(DefaultMaxDynamicTableSize)

	blocks := [][]nethpack.HeaderField{
		{
			{Name: ":method", Value: "POST"},
			{Name: ":path", Value: "/upload"},
			{Name: "content-type", Value: "application/octet-stream"},
			{Name: "cookie", Value: "session=abc", Sensitive: true},
		},
		{
			{Name: ":method", Value: "POST"},
			{Name: ":path", Value: "/upload"},
			{Name: "content-type", Value: "application/octet-stream"},
			{Name: "x-retry", Value: "1"},
		},
	}

	for i, fields := range blocks {
		buf.Reset()
		for _, hf := range fields {
			require.NoError(t, enc.WriteField(hf))
		}

		headers, err := dec.Decode(buf.Bytes())
		require.NoError(t, err, "block %d", i)
		require.Len(t, headers, len(fields), "block %d", i)
		for j, hf := range fields {
			assert.Equal(t, hf.Name, headers[j].Name)
			assert.Equal(t, hf.Value, headers[j].Value)
			assert.Equal(t, hf.Sensitive, headers[j].NeverIndexed)
		}
	}
}

func TestEncodeForNetDecoder(t *testing.T) {
	enc := NewEncoder()
	netDec := nethpack.NewDecoder(DefaultMaxDynamicTableSize, nil)

	lists := [][]HeaderField{
		requestExamples[0].headers,
		requestExamples[1].headers,
		requestExamples[2].headers,
		{NewHeaderField("authorization", "Basic Zm9vOmJhcg==", true), {Name: "custom-key", Value: "custom-value"}},
	}

	for i, headers := range lists {
		block, err := enc.Encode(headers)
		require.NoError(t, err, "block %d", i)

		fields, err := netDec.DecodeFull(block)
		require.NoError(t, err, "block %d", i)
		require.Len(t, fields, len(headers), "block %d", i)
		for j, hf := range headers {
			assert.Equal(t, hf.Name, fields[j].Name)
			assert.Equal(t, hf.Value, fields[j].Value)
			assert.Equal(t, hf.NeverIndexed, fields[j].Sensitive)
		}
	}
}

// A table filled to exactly its maximum size keeps every entry in RFC 7541
// peers, while this table stays strictly below it and evicts the oldest one.
// The next reference to the evicted entry is out of range here.
func TestNetEncoderExactlyFullTable(t *testing.T) {
	var buf bytes.Buffer
	enc := nethpack.NewEncoder(&buf)
	netDec := nethpack.NewDecoder(DefaultMaxDynamicTableSize, nil)
	dec := NewDecoder(DefaultMaxDynamicTableSize)

	// 3 + 2013 + 32 octets each, 4096 together
	value := strings.Repeat("a", 2013)
	require.NoError(t, enc.WriteField(nethpack.HeaderField{Name: "x-a", Value: value}))
	require.NoError(t, enc.WriteField(nethpack.HeaderField{Name: "x-b", Value: value}))
	first := append([]byte(nil), buf.Bytes()...)

	buf.Reset()
	require.NoError(t, enc.WriteField(nethpack.HeaderField{Name: "x-a", Value: value}))
	second := append([]byte(nil), buf.Bytes()...)
	assert.Equal(t, "bf", hex.EncodeToString(second))

	_, err := netDec.DecodeFull(first)
	require.NoError(t, err)
	fields, err := netDec.DecodeFull(second)
	require.NoError(t, err)
	assert.Equal(t, "x-a", fields[0].Name)

	headers, err := dec.Decode(first)
	require.NoError(t, err)
	assert.Len(t, headers, 2)
	require.Len(t, dec.DynamicTable(), 1)
	assert.Equal(t, "x-b", dec.DynamicTable()[0].Name)
	assert.Equal(t, uint64(2048), dec.DynamicTableSize())

	_, err = dec.Decode(second)
	assert.ErrorIs(t, err, ErrInvalidIndex)
}
