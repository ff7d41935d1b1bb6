package frame

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hpackCodec/internal/http2/structs"
)

func reader(data []byte) *bufio.Reader {
	return bufio.NewReader(bytes.NewReader(data))
}

func TestParseFrame(t *testing.T) {
	// HEADERS, END_STREAM|END_HEADERS, stream 1 with the reserved bit set
	data, err := hex.DecodeString("00000101058000000182")
	require.NoError(t, err)

	f, err := ParseFrame(reader(data))
	require.NoError(t, err)

	assert.Equal(t, uint32(1), f.Length)
	assert.Equal(t, uint8(structs.HEADER_FRAME_TYPE), f.Type)
	assert.True(t, f.HasFlag(structs.END_STREAM))
	assert.True(t, f.HasFlag(structs.END_HEADERS))
	assert.Equal(t, uint32(1), f.StreamID)
	assert.Equal(t, []byte{0x82}, f.Payload)
}

func TestReadFrameErrors(t *testing.T) {
	_, err := ParseFrame(reader([]byte{0x00, 0x00}))
	assert.Error(t, err)

	_, err = ParseFrame(reader([]byte{0x00, 0x00, 0x05, 0x01, 0x04, 0x00, 0x00, 0x00, 0x01, 0x82}))
	assert.Error(t, err)

	_, err = ReadFrame(reader([]byte{0x00, 0x40, 0x01, 0x01, 0x04, 0x00, 0x00, 0x00, 0x01}), structs.DefaultMaxFrameSize)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestWriteFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, NewFrame(structs.HEADER_FRAME_TYPE, structs.END_HEADERS, 1<<31|3, []byte{0x82, 0x86})))
	t.Logf("Encoded frame as hex: 0x%s", hex.EncodeToString(buf.Bytes()))

	assert.Equal(t, "0000020104000000038286", hex.EncodeToString(buf.Bytes()))

	f, err := ParseFrame(reader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, uint32(3), f.StreamID)
	assert.Equal(t, []byte{0x82, 0x86}, f.Payload)
}

func TestReadHeaderBlockWithContinuation(t *testing.T) {
	block, err := hex.DecodeString("828684410f7777772e6578616d706c652e636f6d")
	require.NoError(t, err)

	frames := SplitHeaderBlock(5, block, 8, true)
	require.Len(t, frames, 3)
	assert.Equal(t, uint8(structs.HEADER_FRAME_TYPE), frames[0].Type)
	assert.Equal(t, uint8(structs.END_STREAM), frames[0].Flags)
	assert.Equal(t, uint8(structs.CONTINUATION_FRAME_TYPE), frames[1].Type)
	assert.Equal(t, uint8(0), frames[1].Flags)
	assert.Equal(t, uint8(structs.END_HEADERS), frames[2].Flags)

	var wire []byte
	for _, f := range frames {
		wire = AppendFrame(wire, f)
	}

	hb, err := ReadHeaderBlock(reader(wire), structs.DefaultMaxFrameSize)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), hb.StreamID)
	assert.True(t, hb.EndStream)
	assert.Equal(t, 3, hb.Frames)
	assert.Equal(t, block, hb.Block)
}

func TestSplitHeaderBlockSingleFrame(t *testing.T) {
	frames := SplitHeaderBlock(1, nil, 0, false)
	require.Len(t, frames, 1)
	assert.Equal(t, uint8(structs.END_HEADERS), frames[0].Flags)
	assert.Empty(t, frames[0].Payload)
}

func TestReadHeaderBlockStripsPaddingAndPriority(t *testing.T) {
	// pad length, priority, fragment, padding
	payload := []byte{0x02}
	payload = append(payload, 0x00, 0x00, 0x00, 0x00, 0x10)
	payload = append(payload, 0x82, 0x84)
	payload = append(payload, 0x00, 0x00)

	f := NewFrame(structs.HEADER_FRAME_TYPE, structs.END_HEADERS|structs.PADDED|structs.HEADERS_PRIORITY, 1, payload)
	hb, err := ReadHeaderBlock(reader(AppendFrame(nil, f)), structs.DefaultMaxFrameSize)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x82, 0x84}, hb.Block)
	assert.False(t, hb.EndStream)
}

func TestReadHeaderBlockErrors(t *testing.T) {
	cases := map[string]struct {
		frames []*structs.Frame
		err    error
	}{
		"not a headers frame": {
			frames: []*structs.Frame{NewFrame(structs.DATA_FRAME_TYPE, 0, 1, nil)},
			err:    ErrUnexpectedFrame,
		},
		"stream zero": {
			frames: []*structs.Frame{NewFrame(structs.HEADER_FRAME_TYPE, structs.END_HEADERS, 0, []byte{0x82})},
			err:    ErrInvalidStreamID,
		},
		"padding longer than payload": {
			frames: []*structs.Frame{NewFrame(structs.HEADER_FRAME_TYPE, structs.END_HEADERS|structs.PADDED, 1, []byte{0x05, 0x82})},
			err:    ErrInvalidPadding,
		},
		"interleaved frame": {
			frames: []*structs.Frame{
				NewFrame(structs.HEADER_FRAME_TYPE, 0, 1, []byte{0x82}),
				NewFrame(structs.DATA_FRAME_TYPE, 0, 1, []byte{0x00}),
			},
			err: ErrUnexpectedFrame,
		},
		"continuation on another stream": {
			frames: []*structs.Frame{
				NewFrame(structs.HEADER_FRAME_TYPE, 0, 1, []byte{0x82}),
				NewFrame(structs.CONTINUATION_FRAME_TYPE, structs.END_HEADERS, 3, []byte{0x84}),
			},
			err: ErrInvalidStreamID,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var wire []byte
			for _, f := range tc.frames {
				wire = AppendFrame(wire, f)
			}
			_, err := ReadHeaderBlock(reader(wire), structs.DefaultMaxFrameSize)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}
