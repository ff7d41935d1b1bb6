package hpack

import (
	"fmt"
	"strings"
)

// HuffmanPolicy selects how string literals are written.
type HuffmanPolicy int

const (
	// HuffmanAuto picks the shorter of the two encodings; ties stay raw.
	HuffmanAuto HuffmanPolicy = iota
	HuffmanAlways
	HuffmanNever
)

func ParseHuffmanPolicy(s string) (HuffmanPolicy, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return HuffmanAuto, nil
	case "always":
		return HuffmanAlways, nil
	case "never":
		return HuffmanNever, nil
	}
	return HuffmanAuto, fmt.Errorf("unknown huffman policy: %q", s)
}

func (p HuffmanPolicy) String() string {
	switch p {
	case HuffmanAlways:
		return "always"
	case HuffmanNever:
		return "never"
	}
	return "auto"
}

// Encoder turns header lists into header blocks. Its table mirrors the peer
// decoder's, so every block it produces must reach the peer, in order.
type Encoder struct {
	table     *HeaderTable
	huffman   HuffmanPolicy
	sizeLimit uint32

	// smallest size set since the last block, emitted first
	minPendingSize    uint32
	pendingSizeUpdate bool
}

// NewEncoder creates an encoder whose dynamic table starts at the RFC default.
// A smaller size is announced at the start of the first block. Larger sizes
// are clamped to the default, which is all a peer accepts before its SETTINGS
// arrive; raise the limit with SetMaxDynamicTableSizeLimit first.
func NewEncoder(dynamicTableSize ...uint32) *Encoder {
	enc := &Encoder{
		table:     NewHeaderTable(DefaultMaxDynamicTableSize),
		sizeLimit: DefaultMaxDynamicTableSize,
	}
	if len(dynamicTableSize) > 0 && dynamicTableSize[0] < DefaultMaxDynamicTableSize {
		enc.SetMaxDynamicTableSize(dynamicTableSize[0])
	}

	return enc
}

func (e *Encoder) SetHuffmanPolicy(p HuffmanPolicy) {
	e.huffman = p
}

// SetMaxDynamicTableSize resizes the local table right away and queues a size
// update for the beginning of the next block. The size is capped at the limit
// set by SetMaxDynamicTableSizeLimit.
func (e *Encoder) SetMaxDynamicTableSize(v uint32) {
	v = min(v, e.sizeLimit)
	if !e.pendingSizeUpdate || v < e.minPendingSize {
		e.minPendingSize = v
	}
	e.pendingSizeUpdate = true
	e.table.SetMaxSize(v)
}

// SetMaxDynamicTableSizeLimit records the peer's SETTINGS_HEADER_TABLE_SIZE.
func (e *Encoder) SetMaxDynamicTableSizeLimit(v uint32) {
	e.sizeLimit = v
	if e.table.MaxSize() > v {
		e.SetMaxDynamicTableSize(v)
	}
}

func (e *Encoder) MaxDynamicTableSize() uint32 {
	return e.table.MaxSize()
}

func (e *Encoder) DynamicTableSize() uint64 {
	return e.table.Size()
}

// DynamicTable returns a copy of the dynamic table, newest first.
func (e *Encoder) DynamicTable() []HeaderField {
	return e.table.Entries()
}

func (e *Encoder) Encode(headers []HeaderField) ([]byte, error) {
	return e.AppendEncode(nil, headers)
}

// AppendEncode appends the header block for headers to dst.
func (e *Encoder) AppendEncode(dst []byte, headers []HeaderField) ([]byte, error) {
	if e.pendingSizeUpdate {
		flags, prefixBits := representationSizeUpdate.pattern()
		if e.minPendingSize < e.table.MaxSize() {
			dst = AppendInteger(dst, flags, prefixBits, uint64(e.minPendingSize))
		}
		dst = AppendInteger(dst, flags, prefixBits, uint64(e.table.MaxSize()))
		e.pendingSizeUpdate = false
	}

	for _, hf := range headers {
		var err error
		dst, err = e.appendField(dst, hf)
		if err != nil {
			return dst, fmt.Errorf("encode %q: %w", hf.Name, err)
		}
	}

	return dst, nil
}

func (e *Encoder) appendField(dst []byte, hf HeaderField) ([]byte, error) {
	// a never-indexed field keeps its literal form even when the table holds it
	index, nameValueMatch := e.table.Find(hf.Name, hf.Value)
	if nameValueMatch && !hf.NeverIndexed {
		flags, prefixBits := representationIndexed.pattern()
		return AppendInteger(dst, flags, prefixBits, index), nil
	}

	rep := e.literalRepresentation(hf)
	flags, prefixBits := rep.pattern()
	dst = AppendInteger(dst, flags, prefixBits, index)
	if index == 0 {
		dst = e.appendString(dst, hf.Name)
	}
	dst = e.appendString(dst, hf.Value)

	if rep == representationLiteralIncremental {
		if err := e.table.Add(hf.Name, hf.Value); err != nil {
			return dst, err
		}
	}

	return dst, nil
}

func (e *Encoder) literalRepresentation(hf HeaderField) representation {
	switch {
	case hf.NeverIndexed:
		return representationLiteralNeverIndexed
	case hf.Size() < uint64(e.table.MaxSize()):
		return representationLiteralIncremental
	default:
		return representationLiteralWithoutIndexing
	}
}

func (e *Encoder) appendString(dst []byte, s string) []byte {
	if e.useHuffman(s) {
		dst = AppendInteger(dst, 0x80, 7, uint64(HuffmanEncodedLen(s)))
		return AppendHuffmanString(dst, s)
	}
	dst = AppendInteger(dst, 0, 7, uint64(len(s)))
	return append(dst, s...)
}

func (e *Encoder) useHuffman(s string) bool {
	switch e.huffman {
	case HuffmanAlways:
		return true
	case HuffmanNever:
		return false
	}
	return HuffmanEncodedLen(s) < len(s)
}
