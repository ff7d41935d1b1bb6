package session

import (
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/Pallinder/go-randomdata"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hpackCodec/internal/hpack"
	"hpackCodec/internal/http2/frame"
	"hpackCodec/internal/http2/structs"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	data, err := hex.DecodeString(s)
	require.NoError(t, err)
	return data
}

func TestSessionDecode(t *testing.T) {
	s := New("test", DefaultOptions())

	headers, err := s.Decode(mustHex(t, "828684410f7777772e6578616d706c652e636f6d"))
	require.NoError(t, err)
	assert.Len(t, headers, 4)

	headers, err = s.Decode(mustHex(t, "828684be58086e6f2d6361636865"))
	require.NoError(t, err)
	assert.Equal(t, hpack.HeaderField{Name: "cache-control", Value: "no-cache"}, headers[4])

	snap := s.Snapshot()
	assert.Equal(t, uint64(2), snap.DecodedBlocks)
	assert.Equal(t, uint64(110), snap.Decoder.Size)
	assert.Equal(t, uint32(4096), snap.Decoder.MaxSize)
	assert.False(t, snap.Broken)
}

func TestSessionBrokenAfterDecodeError(t *testing.T) {
	s := New("test", DefaultOptions())

	_, err := s.Decode([]byte{0xbe})
	assert.ErrorIs(t, err, hpack.ErrInvalidIndex)

	_, err = s.Decode([]byte{0x82})
	assert.ErrorIs(t, err, ErrSessionBroken)
	assert.True(t, s.Snapshot().Broken)

	// the outbound direction is independent
	_, err = s.Encode([]hpack.HeaderField{{Name: ":status", Value: "200"}})
	assert.NoError(t, err)
}

func TestSessionEncodeDecodeRoundTrip(t *testing.T) {
	client := New("client", DefaultOptions())
	server := New("server", DefaultOptions())

	lists := [][]hpack.HeaderField{
		{{Name: ":method", Value: "GET"}, {Name: ":path", Value: "/a"}, {Name: "x-id", Value: "1"}},
		{{Name: ":method", Value: "GET"}, {Name: ":path", Value: "/b"}, {Name: "x-id", Value: "1"}},
	}
	for _, headers := range lists {
		block, err := client.Encode(headers)
		require.NoError(t, err)

		decoded, err := server.Decode(block)
		require.NoError(t, err)
		assert.Equal(t, headers, decoded)
	}

	clientState, serverState := client.Snapshot().Encoder, server.Snapshot().Decoder
	assert.Equal(t, clientState.Entries, serverState.Entries)
	assert.Equal(t, clientState.Digest, serverState.Digest)
	assert.NotEqual(t, clientState.Digest, client.Snapshot().Decoder.Digest)
}

func TestSessionFrames(t *testing.T) {
	client := New("client", DefaultOptions())
	server := New("server", DefaultOptions())

	headers := []hpack.HeaderField{
		{Name: ":method", Value: "POST"},
		{Name: ":path", Value: "/upload"},
		{Name: "x-payload", Value: string(make([]byte, 20000))},
	}

	wire := []byte(frame.ConnectionPreface)
	wire = frame.AppendFrame(wire, frame.NewSettingsFrame(frame.Settings{}))
	wire = frame.AppendFrame(wire, frame.NewFrame(structs.PING_FRAME_TYPE, 0, 0, make([]byte, 8)))

	first, err := client.EncodeFrames(1, headers, false)
	require.NoError(t, err)
	wire = append(wire, first...)

	second, err := client.EncodeFrames(3, headers[:2], true)
	require.NoError(t, err)
	wire = append(wire, second...)

	blocks, err := server.DecodeFrames(wire)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.Equal(t, uint32(1), blocks[0].StreamID)
	assert.False(t, blocks[0].EndStream)
	assert.Equal(t, 2, blocks[0].Frames)
	assert.Equal(t, headers, blocks[0].Headers)

	assert.Equal(t, uint32(3), blocks[1].StreamID)
	assert.True(t, blocks[1].EndStream)
	assert.Equal(t, 1, blocks[1].Frames)
	assert.Equal(t, headers[:2], blocks[1].Headers)
}

func randomRequest() []hpack.HeaderField {
	return []hpack.HeaderField{
		{Name: ":method", Value: lo.Ternary(randomdata.Boolean(), "GET", "POST")},
		{Name: ":path", Value: "/users/" + randomdata.SillyName()},
		{Name: "user-agent", Value: randomdata.UserAgentString()},
		{Name: "x-forwarded-for", Value: randomdata.IpV4Address()},
		{Name: "x-city", Value: randomdata.City()},
		{Name: "authorization", Value: randomdata.Email(), NeverIndexed: true},
		{Name: "x-note", Value: randomdata.Paragraph()},
	}
}

func TestSessionRandomFramesRoundTrip(t *testing.T) {
	client := New("client", DefaultOptions())
	server := New("server", DefaultOptions())

	for i := 0; i < 50; i++ {
		headers := randomRequest()
		streamID := uint32(2*i + 1)

		wire, err := client.EncodeFrames(streamID, headers, randomdata.Boolean())
		require.NoError(t, err)

		blocks, err := server.DecodeFrames(wire)
		require.NoError(t, err)
		require.Len(t, blocks, 1)
		assert.Equal(t, streamID, blocks[0].StreamID)
		assert.Equal(t, headers, blocks[0].Headers)
	}

	assert.Equal(t, client.Snapshot().Encoder.Digest, server.Snapshot().Decoder.Digest)
	assert.Equal(t, uint64(50), server.Snapshot().DecodedBlocks)
}

func TestSessionFramesErrors(t *testing.T) {
	s := New("test", DefaultOptions())

	_, err := s.EncodeFrames(0, nil, true)
	assert.ErrorIs(t, err, frame.ErrInvalidStreamID)

	orphan := frame.AppendFrame(nil, frame.NewFrame(structs.CONTINUATION_FRAME_TYPE, structs.END_HEADERS, 1, []byte{0x82}))
	_, err = s.DecodeFrames(orphan)
	assert.ErrorIs(t, err, frame.ErrUnexpectedFrame)

	truncated := frame.AppendFrame(nil, frame.NewFrame(structs.HEADER_FRAME_TYPE, structs.END_HEADERS, 1, []byte{0x82}))
	_, err = s.DecodeFrames(truncated[:5])
	assert.Error(t, err)
}

func TestApplySettingsHeaderTableSize(t *testing.T) {
	s := New("test", DefaultOptions())

	var settings frame.Settings
	settings.Set(structs.SETTINGS_HEADER_TABLE_SIZE, 1024)
	settings.Set(structs.SETTINGS_MAX_HEADER_LIST_SIZE, 100)
	s.ApplySettings(settings)

	block, err := s.Encode([]hpack.HeaderField{{Name: ":method", Value: "GET"}})
	require.NoError(t, err)
	assert.Equal(t, "3fe10782", hex.EncodeToString(block))
	assert.Equal(t, uint32(1024), s.Snapshot().Encoder.MaxSize)

	// three times 42 octets exceeds what the peer accepts
	_, err = s.Encode([]hpack.HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":method", Value: "GET"},
		{Name: ":method", Value: "GET"},
	})
	assert.ErrorIs(t, err, hpack.ErrHeaderListTooLarge)
	assert.False(t, s.Snapshot().Broken)
}

func TestSetEncoderTableSize(t *testing.T) {
	s := New("test", DefaultOptions())
	s.SetEncoderTableSize(0)

	block, err := s.Encode([]hpack.HeaderField{{Name: ":method", Value: "GET"}})
	require.NoError(t, err)
	assert.Equal(t, "2082", hex.EncodeToString(block))
}

func TestSessionConcurrentDirections(t *testing.T) {
	sender := New("sender", DefaultOptions())
	receiver := New("receiver", DefaultOptions())

	blocks := make(chan []byte, 64)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer close(blocks)
		for i := 0; i < 64; i++ {
			block, err := sender.Encode([]hpack.HeaderField{{Name: "x-seq", Value: string(rune('a' + i%26))}})
			assert.NoError(t, err)
			blocks <- block
		}
	}()

	go func() {
		defer wg.Done()
		i := 0
		for block := range blocks {
			headers, err := receiver.Decode(block)
			assert.NoError(t, err)
			assert.Equal(t, string(rune('a'+i%26)), headers[0].Value)
			_ = sender.Snapshot()
			i++
		}
	}()

	wg.Wait()
	assert.Equal(t, uint64(64), receiver.Snapshot().DecodedBlocks)
}

func TestStore(t *testing.T) {
	store := NewStore(time.Minute, DefaultOptions())

	s := store.Create()
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 1, store.Len())

	got, ok := store.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	assert.True(t, store.Delete(s.ID))
	assert.False(t, store.Delete(s.ID))

	_, ok = store.Get(s.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestStoreExpires(t *testing.T) {
	store := NewStore(50*time.Millisecond, DefaultOptions())
	s := store.Create()

	// polling slower than the ttl, since Get extends the lifetime
	assert.Eventually(t, func() bool {
		_, ok := store.Get(s.ID)
		return !ok
	}, 2*time.Second, 100*time.Millisecond)
}
