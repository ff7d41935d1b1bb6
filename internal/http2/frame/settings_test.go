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

func TestSettingsRoundTrip(t *testing.T) {
	var settings Settings
	settings.Set(structs.SETTINGS_MAX_HEADER_LIST_SIZE, 8192)
	settings.Set(structs.SETTINGS_HEADER_TABLE_SIZE, 1024)
	settings.Set(0x99, 7)

	f := NewSettingsFrame(settings)
	assert.Equal(t, "000100000400000600002000", hex.EncodeToString(f.Payload))

	parsed, err := ParseSettings(f)
	require.NoError(t, err)
	assert.True(t, parsed.Has(structs.SETTINGS_HEADER_TABLE_SIZE))
	assert.True(t, parsed.Has(structs.SETTINGS_MAX_HEADER_LIST_SIZE))
	assert.False(t, parsed.Has(structs.SETTINGS_MAX_FRAME_SIZE))
	assert.False(t, parsed.Has(0x99))
	assert.Equal(t, uint32(1024), parsed.HeaderTableSize)
	assert.Equal(t, uint32(8192), parsed.MaxHeaderListSize)
}

func TestParseSettingsAck(t *testing.T) {
	parsed, err := ParseSettings(NewSettingsFrame(Settings{Ack: true}))
	require.NoError(t, err)
	assert.True(t, parsed.Ack)

	_, err = ParseSettings(NewFrame(structs.SETTINGS_FRAME_TYPE, structs.ACK, 0, []byte{0, 1, 0, 0, 0, 0}))
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestParseSettingsErrors(t *testing.T) {
	cases := map[string]struct {
		frame *structs.Frame
		err   error
	}{
		"wrong type":        {NewFrame(structs.PING_FRAME_TYPE, 0, 0, make([]byte, 8)), ErrUnexpectedFrame},
		"non-zero stream":   {NewFrame(structs.SETTINGS_FRAME_TYPE, 0, 1, nil), ErrInvalidSettings},
		"partial parameter": {NewFrame(structs.SETTINGS_FRAME_TYPE, 0, 0, []byte{0, 1, 0}), ErrInvalidSettings},
		"enable push 2":     {NewFrame(structs.SETTINGS_FRAME_TYPE, 0, 0, []byte{0, 2, 0, 0, 0, 2}), ErrInvalidSettings},
		"small frame size":  {NewFrame(structs.SETTINGS_FRAME_TYPE, 0, 0, []byte{0, 5, 0, 0, 0x10, 0}), ErrInvalidSettings},
		"window too large":  {NewFrame(structs.SETTINGS_FRAME_TYPE, 0, 0, []byte{0, 4, 0x80, 0, 0, 0}), ErrInvalidSettings},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSettings(tc.frame)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestVerifyConnectionPreface(t *testing.T) {
	var settings Settings
	settings.Set(structs.SETTINGS_HEADER_TABLE_SIZE, 0)

	wire := append([]byte(ConnectionPreface), AppendFrame(nil, NewSettingsFrame(settings))...)
	parsed, err := VerifyConnectionPreface(bufio.NewReader(bytes.NewReader(wire)))
	require.NoError(t, err)
	assert.True(t, parsed.Has(structs.SETTINGS_HEADER_TABLE_SIZE))
	assert.Equal(t, uint32(0), parsed.HeaderTableSize)

	wire = append([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"), AppendFrame(nil, NewSettingsFrame(settings))...)
	_, err = VerifyConnectionPreface(bufio.NewReader(bytes.NewReader(wire)))
	assert.ErrorIs(t, err, ErrInvalidPreface)
}
