package frame

import (
	"bufio"
	"fmt"

	"hpackCodec/internal/http2/structs"
)

// HeaderBlock is a header block reassembled from one HEADERS frame and the
// CONTINUATION frames that follow it.
type HeaderBlock struct {
	StreamID  uint32
	EndStream bool
	Block     []byte
	Frames    int
}

// ReadHeaderBlock reads a HEADERS frame and its CONTINUATION frames up to
// END_HEADERS and returns the concatenated block.
func ReadHeaderBlock(reader *bufio.Reader, maxFrameSize uint32) (*HeaderBlock, error) {
	first, err := ReadFrame(reader, maxFrameSize)
	if err != nil {
		return nil, err
	}
	return ContinueHeaderBlock(reader, first, maxFrameSize)
}

// ContinueHeaderBlock is ReadHeaderBlock for a HEADERS frame that has already
// been read.
func ContinueHeaderBlock(reader *bufio.Reader, first *structs.Frame, maxFrameSize uint32) (*HeaderBlock, error) {
	if first.Type != structs.HEADER_FRAME_TYPE {
		return nil, fmt.Errorf("%w: %s, expected HEADERS", ErrUnexpectedFrame, structs.FrameTypeName(first.Type))
	}
	if first.StreamID == 0 {
		return nil, fmt.Errorf("%w: HEADERS on stream 0", ErrInvalidStreamID)
	}

	fragment, err := headersFragment(first)
	if err != nil {
		return nil, err
	}

	hb := &HeaderBlock{
		StreamID:  first.StreamID,
		EndStream: first.HasFlag(structs.END_STREAM),
		Block:     append([]byte(nil), fragment...),
		Frames:    1,
	}

	endHeaders := first.HasFlag(structs.END_HEADERS)
	for !endHeaders {
		f, err := ReadFrame(reader, maxFrameSize)
		if err != nil {
			return nil, fmt.Errorf("cannot read continuation of stream %d: %w", hb.StreamID, err)
		}
		if f.Type != structs.CONTINUATION_FRAME_TYPE {
			return nil, fmt.Errorf("%w: %s inside header block of stream %d", ErrUnexpectedFrame, structs.FrameTypeName(f.Type), hb.StreamID)
		}
		if f.StreamID != hb.StreamID {
			return nil, fmt.Errorf("%w: CONTINUATION on stream %d, header block on %d", ErrInvalidStreamID, f.StreamID, hb.StreamID)
		}

		hb.Block = append(hb.Block, f.Payload...)
		hb.Frames++
		endHeaders = f.HasFlag(structs.END_HEADERS)
	}

	return hb, nil
}

// headersFragment strips the padding and priority fields of a HEADERS frame.
func headersFragment(f *structs.Frame) ([]byte, error) {
	payload := f.Payload

	var paddingLength int
	if f.HasFlag(structs.PADDED) {
		if len(payload) < 1 {
			return nil, fmt.Errorf("%w: missing padding length", ErrInvalidPadding)
		}
		paddingLength = int(payload[0])
		payload = payload[1:]
	}

	if f.HasFlag(structs.HEADERS_PRIORITY) {
		if len(payload) < 5 {
			return nil, fmt.Errorf("cannot read header priority: %d octets left", len(payload))
		}
		payload = payload[5:]
	}

	if paddingLength > len(payload) {
		return nil, fmt.Errorf("%w: %d octets of padding, %d of payload", ErrInvalidPadding, paddingLength, len(payload))
	}

	return payload[:len(payload)-paddingLength], nil
}

// SplitHeaderBlock cuts block into a HEADERS frame followed by as many
// CONTINUATION frames as maxFrameSize requires.
func SplitHeaderBlock(streamID uint32, block []byte, maxFrameSize uint32, endStream bool) []*structs.Frame {
	if maxFrameSize == 0 {
		maxFrameSize = structs.DefaultMaxFrameSize
	}

	var frames []*structs.Frame
	frameType := uint8(structs.HEADER_FRAME_TYPE)
	for {
		chunk := block
		if uint32(len(chunk)) > maxFrameSize {
			chunk = chunk[:maxFrameSize]
		}
		block = block[len(chunk):]

		var flags uint8
		if frameType == structs.HEADER_FRAME_TYPE && endStream {
			flags |= structs.END_STREAM
		}
		if len(block) == 0 {
			flags |= structs.END_HEADERS
		}

		frames = append(frames, NewFrame(frameType, flags, streamID, chunk))
		if len(block) == 0 {
			return frames
		}
		frameType = structs.CONTINUATION_FRAME_TYPE
	}
}
