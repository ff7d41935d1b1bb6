package frame

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"hpackCodec/internal/http2/structs"
)

var (
	ErrFrameTooLarge   = errors.New("frame exceeds maximum frame size")
	ErrUnexpectedFrame = errors.New("unexpected frame")
	ErrInvalidStreamID = errors.New("invalid stream id")
	ErrInvalidPadding  = errors.New("invalid padding")
	ErrInvalidSettings = errors.New("invalid settings frame")
	ErrInvalidPreface  = errors.New("invalid connection preface")
)

// ParseFrame reads one frame of any length the wire format allows.
func ParseFrame(reader *bufio.Reader) (*structs.Frame, error) {
	return ReadFrame(reader, structs.MaxAllowedFrameSize)
}

// ReadFrame reads one frame and rejects payloads above maxFrameSize before
// reading them.
func ReadFrame(reader *bufio.Reader, maxFrameSize uint32) (*structs.Frame, error) {
	newFrame := new(structs.Frame)

	var buffer bytes.Buffer
	_, err := io.CopyN(&buffer, reader, structs.FrameHeaderLength)
	if err != nil {
		return nil, fmt.Errorf("cannot read frame header: %w", err)
	}

	var length []byte
	length = append(length, 0)
	length = append(length, buffer.Next(3)...)

	newFrame.Length = binary.BigEndian.Uint32(length)
	newFrame.Type = buffer.Next(1)[0]
	newFrame.Flags = buffer.Next(1)[0]
	newFrame.StreamID = binary.BigEndian.Uint32(buffer.Next(4))

	// Clears the first bit (Reserved)
	newFrame.StreamID &^= 1 << 31

	if newFrame.Length > maxFrameSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, newFrame.Length, maxFrameSize)
	}

	_, err = io.CopyN(&buffer, reader, int64(newFrame.Length))
	if err != nil {
		return nil, fmt.Errorf("cannot read frame payload: %w", err)
	}
	newFrame.Payload = buffer.Bytes()

	return newFrame, nil
}

func NewFrame(iType uint8, flags uint8, streamID uint32, data []byte) *structs.Frame {
	return &structs.Frame{
		Length:   uint32(len(data)),
		Type:     iType,
		Flags:    flags,
		StreamID: streamID &^ (1 << 31),
		Payload:  data,
	}
}

// AppendFrame appends the wire form of f to dst. The length field is taken
// from the payload.
func AppendFrame(dst []byte, f *structs.Frame) []byte {
	lengthBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(lengthBytes, uint32(len(f.Payload)))
	dst = append(dst, lengthBytes[1:]...)

	dst = append(dst, f.Type, f.Flags)

	// Sets the reserved bit to 0
	dst = binary.BigEndian.AppendUint32(dst, f.StreamID&^(1<<31))

	return append(dst, f.Payload...)
}

func WriteFrame(w io.Writer, f *structs.Frame) error {
	if len(f.Payload) > structs.MaxAllowedFrameSize {
		return fmt.Errorf("%w: %d octets", ErrFrameTooLarge, len(f.Payload))
	}

	_, err := w.Write(AppendFrame(make([]byte, 0, structs.FrameHeaderLength+len(f.Payload)), f))
	if err != nil {
		return fmt.Errorf("send frame failed: %w", err)
	}

	return nil
}
