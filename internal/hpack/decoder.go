package hpack

import "fmt"

const DefaultMaxHeaderListSize = 64 << 10

// representation is the wire form of one header block instruction (RFC 7541 §6).
type representation uint8

const (
	representationIndexed representation = iota
	representationLiteralIncremental
	representationSizeUpdate
	representationLiteralNeverIndexed
	representationLiteralWithoutIndexing
)

// classify decides the representation from the leading octet; the checks run
// in the priority order of the pattern bits.
func classify(b byte) representation {
	switch {
	case b&0x80 != 0:
		return representationIndexed
	case b&0x40 != 0:
		return representationLiteralIncremental
	case b&0x20 != 0:
		return representationSizeUpdate
	case b&0x10 != 0:
		return representationLiteralNeverIndexed
	default:
		return representationLiteralWithoutIndexing
	}
}

// pattern returns the leading bits and the prefix length of the integer that follows.
func (r representation) pattern() (flags byte, prefixBits uint8) {
	switch r {
	case representationIndexed:
		return 0x80, 7
	case representationLiteralIncremental:
		return 0x40, 6
	case representationSizeUpdate:
		return 0x20, 5
	case representationLiteralNeverIndexed:
		return 0x10, 4
	default:
		return 0x00, 4
	}
}

func (r representation) String() string {
	switch r {
	case representationIndexed:
		return "indexed"
	case representationLiteralIncremental:
		return "literal-incremental"
	case representationSizeUpdate:
		return "size-update"
	case representationLiteralNeverIndexed:
		return "literal-never-indexed"
	case representationLiteralWithoutIndexing:
		return "literal-without-indexing"
	}
	return fmt.Sprintf("representation(%d)", uint8(r))
}

// Decoder turns header blocks into header lists. It owns the dynamic table of
// its direction, so blocks must be decoded in the order the peer produced them.
// After Decode returns an error the table state is undefined and the Decoder
// must be discarded together with its connection.
type Decoder struct {
	table             *HeaderTable
	maxHeaderListSize uint32
	allowedMaxSize    uint32
	huffman           HuffmanDecoder
}

func NewDecoder(maxDynamicTableSize uint32) *Decoder {
	return &Decoder{
		table:             NewHeaderTable(maxDynamicTableSize),
		maxHeaderListSize: DefaultMaxHeaderListSize,
		allowedMaxSize:    maxDynamicTableSize,
	}
}

// SetMaxHeaderListSize caps the inflated size of one decoded header list.
func (d *Decoder) SetMaxHeaderListSize(n uint32) {
	d.maxHeaderListSize = n
}

// SetAllowedMaxDynamicTableSize sets the largest table size a size update may
// request, i.e. the value this endpoint advertised in SETTINGS_HEADER_TABLE_SIZE.
func (d *Decoder) SetAllowedMaxDynamicTableSize(n uint32) {
	d.allowedMaxSize = n
}

func (d *Decoder) MaxDynamicTableSize() uint32 {
	return d.table.MaxSize()
}

func (d *Decoder) DynamicTableSize() uint64 {
	return d.table.Size()
}

// DynamicTable returns a copy of the dynamic table, newest first.
func (d *Decoder) DynamicTable() []HeaderField {
	return d.table.Entries()
}

// Decode decodes one complete header block. On error the fields decoded before
// the failure are returned alongside it; they are for diagnostics only.
func (d *Decoder) Decode(data []byte) ([]HeaderField, error) {
	var (
		headers  []HeaderField
		listSize uint64
		pos      int
	)

	for pos < len(data) {
		rep := classify(data[pos])

		if rep == representationSizeUpdate {
			if len(headers) > 0 {
				return headers, ErrSizeUpdateAfterHeader
			}
			n, err := d.parseSizeUpdate(data[pos:])
			if err != nil {
				return headers, err
			}
			pos += n
			continue
		}

		var (
			hf  HeaderField
			n   int
			err error
		)
		if rep == representationIndexed {
			hf, n, err = d.parseIndexed(data[pos:])
		} else {
			hf, n, err = d.parseLiteral(rep, data[pos:])
		}
		if err != nil {
			return headers, fmt.Errorf("header field %d (%s): %w", len(headers), rep, err)
		}
		pos += n

		listSize += hf.Size()
		if listSize > uint64(d.maxHeaderListSize) {
			return headers, fmt.Errorf("%w: more than %d octets", ErrHeaderListTooLarge, d.maxHeaderListSize)
		}
		headers = append(headers, hf)
	}

	return headers, nil
}

func (d *Decoder) parseSizeUpdate(data []byte) (int, error) {
	_, prefixBits := representationSizeUpdate.pattern()
	size, n, err := DecodeInteger(data, prefixBits)
	if err != nil {
		return 0, err
	}
	if size > uint64(d.allowedMaxSize) {
		return 0, fmt.Errorf("%w: %d > %d", ErrSizeUpdateTooLarge, size, d.allowedMaxSize)
	}
	d.table.SetMaxSize(uint32(size))
	return n, nil
}

func (d *Decoder) parseIndexed(data []byte) (HeaderField, int, error) {
	_, prefixBits := representationIndexed.pattern()
	index, n, err := DecodeInteger(data, prefixBits)
	if err != nil {
		return HeaderField{}, 0, err
	}
	hf, err := d.table.Header(index)
	if err != nil {
		return HeaderField{}, 0, err
	}
	return hf, n, nil
}

func (d *Decoder) parseLiteral(rep representation, data []byte) (HeaderField, int, error) {
	_, prefixBits := rep.pattern()
	nameIndex, pos, err := DecodeInteger(data, prefixBits)
	if err != nil {
		return HeaderField{}, 0, err
	}

	var hf HeaderField
	if nameIndex > 0 {
		named, err := d.table.Header(nameIndex)
		if err != nil {
			return HeaderField{}, 0, err
		}
		hf.Name = named.Name
	} else {
		name, n, err := d.readString(data[pos:])
		if err != nil {
			return HeaderField{}, 0, fmt.Errorf("name: %w", err)
		}
		hf.Name = name
		pos += n
	}

	value, n, err := d.readString(data[pos:])
	if err != nil {
		return HeaderField{}, 0, fmt.Errorf("value: %w", err)
	}
	hf.Value = value
	pos += n

	switch rep {
	case representationLiteralIncremental:
		if err := d.table.Add(hf.Name, hf.Value); err != nil {
			return HeaderField{}, 0, err
		}
	case representationLiteralNeverIndexed:
		hf.NeverIndexed = true
	}

	return hf, pos, nil
}

// readString reads a string literal (RFC 7541 §5.2).
func (d *Decoder) readString(data []byte) (string, int, error) {
	if len(data) == 0 {
		return "", 0, ErrTruncated
	}
	huffmanCoded := data[0]&0x80 != 0

	length, n, err := DecodeInteger(data, 7)
	if err != nil {
		return "", 0, err
	}
	if length > uint64(len(data)-n) {
		return "", 0, fmt.Errorf("%w: string of %d octets, %d left", ErrTruncated, length, len(data)-n)
	}
	if !huffmanCoded && length > uint64(d.maxHeaderListSize) {
		return "", 0, fmt.Errorf("%w: string of %d octets", ErrHeaderListTooLarge, length)
	}

	payload := data[n : n+int(length)]
	if !huffmanCoded {
		return string(payload), n + int(length), nil
	}

	decoded, err := d.huffman.Decode(make([]byte, 0, len(payload)*8/5), payload, true)
	if err != nil {
		return "", 0, err
	}
	if uint64(len(decoded)) > uint64(d.maxHeaderListSize) {
		return "", 0, fmt.Errorf("%w: string of %d octets", ErrHeaderListTooLarge, len(decoded))
	}
	return string(decoded), n + int(length), nil
}
