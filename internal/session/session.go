package session

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/samber/lo"

	"hpackCodec/internal/hpack"
	"hpackCodec/internal/http2/frame"
	"hpackCodec/internal/http2/structs"
	"hpackCodec/internal/logging"
	"hpackCodec/internal/metrics"
)

// ErrSessionBroken is returned for every block submitted after a direction
// has failed once; its table can no longer be trusted.
var ErrSessionBroken = errors.New("session broken by earlier compression error")

type Options struct {
	// HeaderTableSize is the SETTINGS_HEADER_TABLE_SIZE this endpoint advertises.
	HeaderTableSize   uint32
	MaxHeaderListSize uint32
	MaxFrameSize      uint32
	Huffman           hpack.HuffmanPolicy
	Logger            logging.Logger
}

func DefaultOptions() Options {
	return Options{
		HeaderTableSize:   hpack.DefaultMaxDynamicTableSize,
		MaxHeaderListSize: hpack.DefaultMaxHeaderListSize,
		MaxFrameSize:      structs.DefaultMaxFrameSize,
		Huffman:           hpack.HuffmanAuto,
	}
}

// Session is one connection's pair of compression contexts: a Decoder for
// inbound header blocks and an Encoder for outbound ones. Each direction is
// serialized by its own mutex.
type Session struct {
	ID        string
	CreatedAt time.Time

	logger       logging.Logger
	maxFrameSize uint32

	decMu         sync.Mutex
	dec           *hpack.Decoder
	decBroken     error
	decodedBlocks uint64

	encMu                 sync.Mutex
	enc                   *hpack.Encoder
	encBroken             error
	encodedBlocks         uint64
	peerMaxFrameSize      uint32
	peerMaxHeaderListSize uint32
}

func New(id string, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.MaxFrameSize == 0 {
		opts.MaxFrameSize = structs.DefaultMaxFrameSize
	}

	dec := hpack.NewDecoder(opts.HeaderTableSize)
	if opts.MaxHeaderListSize > 0 {
		dec.SetMaxHeaderListSize(opts.MaxHeaderListSize)
	}

	enc := hpack.NewEncoder()
	enc.SetHuffmanPolicy(opts.Huffman)

	return &Session{
		ID:               id,
		CreatedAt:        time.Now(),
		logger:           opts.Logger,
		maxFrameSize:     opts.MaxFrameSize,
		dec:              dec,
		enc:              enc,
		peerMaxFrameSize: structs.DefaultMaxFrameSize,
	}
}

// Decode decodes one inbound header block.
func (s *Session) Decode(block []byte) ([]hpack.HeaderField, error) {
	s.decMu.Lock()
	defer s.decMu.Unlock()

	return s.decodeLocked(block)
}

func (s *Session) decodeLocked(block []byte) ([]hpack.HeaderField, error) {
	if s.decBroken != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionBroken, s.decBroken)
	}

	headers, err := s.dec.Decode(block)
	metrics.ObserveBlock(metrics.DirectionDecode, len(block), listSize(headers), err)
	if err != nil {
		s.decBroken = err
		s.logger.Log(logging.LogLevelWarn, "session %s: decoding block %d failed: %v", s.ID, s.decodedBlocks, err)
		return headers, err
	}

	s.decodedBlocks++
	s.logger.Log(logging.LogLevelDebug, "session %s: decoded %d fields from %d octets, table size %d",
		s.ID, len(headers), len(block), s.dec.DynamicTableSize())

	return headers, nil
}

// Encode encodes one outbound header list.
func (s *Session) Encode(headers []hpack.HeaderField) ([]byte, error) {
	s.encMu.Lock()
	defer s.encMu.Unlock()

	return s.encodeLocked(headers)
}

func (s *Session) encodeLocked(headers []hpack.HeaderField) ([]byte, error) {
	if s.encBroken != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionBroken, s.encBroken)
	}

	size := listSize(headers)
	if s.peerMaxHeaderListSize > 0 && size > uint64(s.peerMaxHeaderListSize) {
		// rejected before the table is touched, so the session stays usable
		err := fmt.Errorf("%w: %d octets, peer accepts %d", hpack.ErrHeaderListTooLarge, size, s.peerMaxHeaderListSize)
		metrics.ObserveBlock(metrics.DirectionEncode, 0, size, err)
		return nil, err
	}

	block, err := s.enc.Encode(headers)
	metrics.ObserveBlock(metrics.DirectionEncode, len(block), size, err)
	if err != nil {
		s.encBroken = err
		s.logger.Log(logging.LogLevelError, "session %s: encoding block %d failed: %v", s.ID, s.encodedBlocks, err)
		return nil, err
	}

	s.encodedBlocks++
	s.logger.Log(logging.LogLevelDebug, "session %s: encoded %d fields into %d octets, table size %d",
		s.ID, len(headers), len(block), s.enc.DynamicTableSize())

	return block, nil
}

// DecodedBlock is one header block found in a frame stream.
type DecodedBlock struct {
	StreamID  uint32              `json:"stream_id"`
	EndStream bool                `json:"end_stream"`
	Frames    int                 `json:"frames"`
	Headers   []hpack.HeaderField `json:"headers"`
}

// DecodeFrames reads HTTP/2 frames, optionally preceded by the connection
// preface. Header blocks are reassembled and decoded in order, SETTINGS frames
// are applied to the outbound direction and every other frame is skipped.
func (s *Session) DecodeFrames(data []byte) ([]DecodedBlock, error) {
	reader := bufio.NewReader(bytes.NewReader(data))

	if bytes.HasPrefix(data, []byte(frame.ConnectionPreface)) {
		settings, err := frame.VerifyConnectionPreface(reader)
		if err != nil {
			return nil, err
		}
		s.ApplySettings(settings)
	}

	s.decMu.Lock()
	defer s.decMu.Unlock()

	var blocks []DecodedBlock
	for {
		if _, err := reader.Peek(1); errors.Is(err, io.EOF) {
			return blocks, nil
		}

		f, err := frame.ReadFrame(reader, s.maxFrameSize)
		if err != nil {
			return blocks, err
		}

		switch f.Type {
		case structs.HEADER_FRAME_TYPE:
			hb, err := frame.ContinueHeaderBlock(reader, f, s.maxFrameSize)
			if err != nil {
				return blocks, err
			}
			headers, err := s.decodeLocked(hb.Block)
			if err != nil {
				return blocks, fmt.Errorf("stream %d: %w", hb.StreamID, err)
			}
			blocks = append(blocks, DecodedBlock{
				StreamID:  hb.StreamID,
				EndStream: hb.EndStream,
				Frames:    hb.Frames,
				Headers:   headers,
			})
		case structs.SETTINGS_FRAME_TYPE:
			settings, err := frame.ParseSettings(f)
			if err != nil {
				return blocks, err
			}
			s.ApplySettings(settings)
		case structs.CONTINUATION_FRAME_TYPE:
			return blocks, fmt.Errorf("%w: CONTINUATION without HEADERS on stream %d", frame.ErrUnexpectedFrame, f.StreamID)
		default:
			s.logger.Log(logging.LogLevelDebug, "session %s: skipping %s frame on stream %d",
				s.ID, structs.FrameTypeName(f.Type), f.StreamID)
		}
	}
}

// EncodeFrames encodes headers and frames the block for streamID, split at the
// peer's maximum frame size.
func (s *Session) EncodeFrames(streamID uint32, headers []hpack.HeaderField, endStream bool) ([]byte, error) {
	if streamID == 0 {
		return nil, fmt.Errorf("%w: header block on stream 0", frame.ErrInvalidStreamID)
	}

	s.encMu.Lock()
	defer s.encMu.Unlock()

	block, err := s.encodeLocked(headers)
	if err != nil {
		return nil, err
	}

	return appendHeaderFrames(nil, streamID, block, s.peerMaxFrameSize, endStream), nil
}

// FrameBlock frames an already encoded block for streamID.
func (s *Session) FrameBlock(streamID uint32, block []byte, endStream bool) ([]byte, error) {
	if streamID == 0 {
		return nil, fmt.Errorf("%w: header block on stream 0", frame.ErrInvalidStreamID)
	}

	s.encMu.Lock()
	maxFrameSize := s.peerMaxFrameSize
	s.encMu.Unlock()

	return appendHeaderFrames(nil, streamID, block, maxFrameSize, endStream), nil
}

func appendHeaderFrames(wire []byte, streamID uint32, block []byte, maxFrameSize uint32, endStream bool) []byte {
	for _, f := range frame.SplitHeaderBlock(streamID, block, maxFrameSize, endStream) {
		wire = frame.AppendFrame(wire, f)
	}
	return wire
}

// ApplySettings applies the peer's SETTINGS to the outbound direction.
func (s *Session) ApplySettings(settings frame.Settings) {
	if settings.Ack {
		return
	}

	s.encMu.Lock()
	defer s.encMu.Unlock()

	if settings.Has(structs.SETTINGS_HEADER_TABLE_SIZE) {
		s.enc.SetMaxDynamicTableSizeLimit(settings.HeaderTableSize)
		s.logger.Log(logging.LogLevelInfo, "session %s: peer header table size %d", s.ID, settings.HeaderTableSize)
	}
	if settings.Has(structs.SETTINGS_MAX_FRAME_SIZE) {
		s.peerMaxFrameSize = settings.MaxFrameSize
	}
	if settings.Has(structs.SETTINGS_MAX_HEADER_LIST_SIZE) {
		s.peerMaxHeaderListSize = settings.MaxHeaderListSize
	}
}

// SetEncoderTableSize changes the outbound table size; the change is announced
// at the start of the next encoded block.
func (s *Session) SetEncoderTableSize(size uint32) {
	s.encMu.Lock()
	defer s.encMu.Unlock()

	s.enc.SetMaxDynamicTableSize(size)
}

// TableState describes one dynamic table. Digest is equal for two tables with
// the same entries in the same order, so a peer's encoder and decoder can be
// compared without shipping the entries.
type TableState struct {
	MaxSize uint32              `json:"max_size"`
	Size    uint64              `json:"size"`
	Entries []hpack.HeaderField `json:"entries"`
	Digest  uint64              `json:"digest"`
}

func newTableState(maxSize uint32, size uint64, entries []hpack.HeaderField) TableState {
	return TableState{
		MaxSize: maxSize,
		Size:    size,
		Entries: entries,
		Digest:  lo.Must(hashstructure.Hash(entries, hashstructure.FormatV2, nil)),
	}
}

type Snapshot struct {
	ID            string     `json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	Decoder       TableState `json:"decoder"`
	Encoder       TableState `json:"encoder"`
	DecodedBlocks uint64     `json:"decoded_blocks"`
	EncodedBlocks uint64     `json:"encoded_blocks"`
	Broken        bool       `json:"broken"`
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
	}

	s.decMu.Lock()
	snap.Decoder = newTableState(s.dec.MaxDynamicTableSize(), s.dec.DynamicTableSize(), s.dec.DynamicTable())
	snap.DecodedBlocks = s.decodedBlocks
	snap.Broken = s.decBroken != nil
	s.decMu.Unlock()

	s.encMu.Lock()
	snap.Encoder = newTableState(s.enc.MaxDynamicTableSize(), s.enc.DynamicTableSize(), s.enc.DynamicTable())
	snap.EncodedBlocks = s.encodedBlocks
	snap.Broken = snap.Broken || s.encBroken != nil
	s.encMu.Unlock()

	return snap
}

func listSize(headers []hpack.HeaderField) uint64 {
	var size uint64
	for _, hf := range headers {
		size += hf.Size()
	}
	return size
}
