package structs

//goland:noinspection ALL
const (
	DATA_FRAME_TYPE = iota
	HEADER_FRAME_TYPE
	PRIORITY_FRAME_TYPE
	RST_STREAM_FRAME_TYPE
	SETTINGS_FRAME_TYPE
	PUSH_PROMISE_FRAME_TYPE
	PING_FRAME_TYPE
	GOAWAY_FRAME_TYPE
	WINDOW_UPDATE_FRAME_TYPE
	CONTINUATION_FRAME_TYPE
)

const (
	PADDED           = 0x08
	END_STREAM       = 0x01
	END_HEADERS      = 0x04
	HEADERS_PRIORITY = 0x20
	ACK              = 0x01
)

//goland:noinspection ALL
const (
	SETTINGS_HEADER_TABLE_SIZE = iota + 1
	SETTINGS_ENABLE_PUSH
	SETTINGS_MAX_CONCURRENT_STREAMS
	SETTINGS_INITIAL_WINDOW_SIZE
	SETTINGS_MAX_FRAME_SIZE
	SETTINGS_MAX_HEADER_LIST_SIZE
)

const (
	FrameHeaderLength   = 9
	DefaultMaxFrameSize = 16_384
	MaxAllowedFrameSize = 1<<24 - 1
)

type Frame struct {
	Length   uint32
	Type     uint8
	Flags    uint8
	StreamID uint32
	Payload  []byte
}

func (f *Frame) HasFlag(flag uint8) bool {
	return f.Flags&flag != 0
}

// FrameTypeName is used in error messages and logs.
func FrameTypeName(t uint8) string {
	switch t {
	case DATA_FRAME_TYPE:
		return "DATA"
	case HEADER_FRAME_TYPE:
		return "HEADERS"
	case PRIORITY_FRAME_TYPE:
		return "PRIORITY"
	case RST_STREAM_FRAME_TYPE:
		return "RST_STREAM"
	case SETTINGS_FRAME_TYPE:
		return "SETTINGS"
	case PUSH_PROMISE_FRAME_TYPE:
		return "PUSH_PROMISE"
	case PING_FRAME_TYPE:
		return "PING"
	case GOAWAY_FRAME_TYPE:
		return "GOAWAY"
	case WINDOW_UPDATE_FRAME_TYPE:
		return "WINDOW_UPDATE"
	case CONTINUATION_FRAME_TYPE:
		return "CONTINUATION"
	}
	return "UNKNOWN"
}
