package frame

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"hpackCodec/internal/http2/structs"
)

var ConnectionPreface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

// Settings holds the parameters carried by one SETTINGS frame. Only the
// parameters present on the wire are marked by Has.
type Settings struct {
	Ack                  bool
	HeaderTableSize      uint32
	EnablePush           uint32
	MaxConcurrentStreams uint32
	InitialWindowSize    uint32
	MaxFrameSize         uint32
	MaxHeaderListSize    uint32

	present uint8
}

func (s Settings) Has(id uint16) bool {
	if id < structs.SETTINGS_HEADER_TABLE_SIZE || id > structs.SETTINGS_MAX_HEADER_LIST_SIZE {
		return false
	}
	return s.present&(1<<(id-1)) != 0
}

// Set records a parameter; unknown ids are ignored.
func (s *Settings) Set(id uint16, value uint32) {
	switch id {
	case structs.SETTINGS_HEADER_TABLE_SIZE:
		s.HeaderTableSize = value
	case structs.SETTINGS_ENABLE_PUSH:
		s.EnablePush = value
	case structs.SETTINGS_MAX_CONCURRENT_STREAMS:
		s.MaxConcurrentStreams = value
	case structs.SETTINGS_INITIAL_WINDOW_SIZE:
		s.InitialWindowSize = value
	case structs.SETTINGS_MAX_FRAME_SIZE:
		s.MaxFrameSize = value
	case structs.SETTINGS_MAX_HEADER_LIST_SIZE:
		s.MaxHeaderListSize = value
	default:
		return
	}
	s.present |= 1 << (id - 1)
}

func (s Settings) value(id uint16) uint32 {
	switch id {
	case structs.SETTINGS_HEADER_TABLE_SIZE:
		return s.HeaderTableSize
	case structs.SETTINGS_ENABLE_PUSH:
		return s.EnablePush
	case structs.SETTINGS_MAX_CONCURRENT_STREAMS:
		return s.MaxConcurrentStreams
	case structs.SETTINGS_INITIAL_WINDOW_SIZE:
		return s.InitialWindowSize
	case structs.SETTINGS_MAX_FRAME_SIZE:
		return s.MaxFrameSize
	}
	return s.MaxHeaderListSize
}

func ParseSettings(f *structs.Frame) (Settings, error) {
	var settings Settings

	if f.Type != structs.SETTINGS_FRAME_TYPE {
		return settings, fmt.Errorf("%w: %s, expected SETTINGS", ErrUnexpectedFrame, structs.FrameTypeName(f.Type))
	}
	if f.StreamID != 0x0 {
		return settings, fmt.Errorf("%w: stream id %d", ErrInvalidSettings, f.StreamID)
	}
	if f.HasFlag(structs.ACK) {
		if len(f.Payload) != 0 {
			return settings, fmt.Errorf("%w: ack with %d octets of payload", ErrInvalidSettings, len(f.Payload))
		}
		settings.Ack = true
		return settings, nil
	}
	if len(f.Payload)%6 != 0 {
		return settings, fmt.Errorf("%w: payload length %d", ErrInvalidSettings, len(f.Payload))
	}

	for payload := f.Payload; len(payload) > 0; payload = payload[6:] {
		id := binary.BigEndian.Uint16(payload[:2])
		value := binary.BigEndian.Uint32(payload[2:6])

		switch {
		case id == structs.SETTINGS_ENABLE_PUSH && value > 1:
			return settings, fmt.Errorf("%w: enable push %d", ErrInvalidSettings, value)
		case id == structs.SETTINGS_INITIAL_WINDOW_SIZE && value > 1<<31-1:
			return settings, fmt.Errorf("%w: initial window size %d", ErrInvalidSettings, value)
		case id == structs.SETTINGS_MAX_FRAME_SIZE && (value < structs.DefaultMaxFrameSize || value > structs.MaxAllowedFrameSize):
			return settings, fmt.Errorf("%w: max frame size %d", ErrInvalidSettings, value)
		}
		settings.Set(id, value)
	}

	return settings, nil
}

// NewSettingsFrame encodes the present parameters in id order.
func NewSettingsFrame(settings Settings) *structs.Frame {
	if settings.Ack {
		return NewFrame(structs.SETTINGS_FRAME_TYPE, structs.ACK, 0, nil)
	}

	var data []byte
	for id := uint16(structs.SETTINGS_HEADER_TABLE_SIZE); id <= structs.SETTINGS_MAX_HEADER_LIST_SIZE; id++ {
		if !settings.Has(id) {
			continue
		}
		data = binary.BigEndian.AppendUint16(data, id)
		data = binary.BigEndian.AppendUint32(data, settings.value(id))
	}

	return NewFrame(structs.SETTINGS_FRAME_TYPE, 0, 0, data)
}

// VerifyConnectionPreface consumes the client preface and the SETTINGS frame
// that must follow it.
func VerifyConnectionPreface(reader *bufio.Reader) (Settings, error) {
	var preface bytes.Buffer
	_, err := io.CopyN(&preface, reader, int64(len(ConnectionPreface)))
	if err != nil {
		return Settings{}, fmt.Errorf("cannot read connection preface: %w", err)
	}
	if preface.String() != ConnectionPreface {
		return Settings{}, fmt.Errorf("%w: %q", ErrInvalidPreface, preface.String())
	}

	f, err := ReadFrame(reader, structs.DefaultMaxFrameSize)
	if err != nil {
		return Settings{}, fmt.Errorf("cannot parse frames: %w", err)
	}

	settings, err := ParseSettings(f)
	if err != nil {
		return Settings{}, fmt.Errorf("cannot validate settings frame: %w", err)
	}
	if settings.Ack {
		return Settings{}, fmt.Errorf("%w: preface followed by settings ack", ErrInvalidSettings)
	}

	return settings, nil
}
