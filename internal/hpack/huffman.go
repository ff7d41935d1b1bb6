package hpack

//go:generate go run ../../tools/huffmanTable -out huffman_table.go

type huffmanCode struct {
	code  uint32
	nbits uint8
}

const huffmanEOS = 256

// HuffmanCode returns the code of sym (0..256) right-aligned in code.
func HuffmanCode(sym int) (code uint32, nbits uint8) {
	c := huffmanCodes[sym]
	return c.code, c.nbits
}

// HuffmanEncodedLen is the number of octets HuffmanEncode would produce for s.
func HuffmanEncodedLen(s string) int {
	var n uint64
	for i := 0; i < len(s); i++ {
		n += uint64(huffmanCodes[s[i]].nbits)
	}
	return int((n + 7) / 8)
}

// AppendHuffmanString appends the Huffman encoding of s to dst, padding the last
// octet with the most significant bits of EOS.
func AppendHuffmanString(dst []byte, s string) []byte {
	var (
		acc   uint64
		nbits uint
	)
	for i := 0; i < len(s); i++ {
		c := huffmanCodes[s[i]]
		acc = acc<<c.nbits | uint64(c.code)
		nbits += uint(c.nbits)
		for nbits >= 8 {
			nbits -= 8
			dst = append(dst, byte(acc>>nbits))
		}
		acc &= 1<<nbits - 1
	}
	if nbits > 0 {
		pad := 8 - nbits
		dst = append(dst, byte(acc<<pad|(1<<pad-1)))
	}
	return dst
}

func HuffmanEncode(s string) []byte {
	return AppendHuffmanString(make([]byte, 0, HuffmanEncodedLen(s)), s)
}

const (
	huffmanAccepted = 1 << iota
	huffmanSymbol
	huffmanFail
)

type huffmanDecodeEntry struct {
	next  uint8
	flags uint8
	sym   uint8
}

// HuffmanDecoder is a resumable decoder for one Huffman-encoded string literal.
// A literal may be fed in several chunks; only the last chunk is final.
// The zero value is ready to use.
type HuffmanDecoder struct {
	state  uint8
	accept bool
}

func NewHuffmanDecoder() *HuffmanDecoder {
	return &HuffmanDecoder{}
}

func (d *HuffmanDecoder) Reset() {
	d.state = 0
	d.accept = false
}

// Decode appends the symbols decoded from src to dst. When final is set the
// input must end on a symbol boundary followed by at most seven bits of EOS
// padding, and the decoder is reset for the next literal.
func (d *HuffmanDecoder) Decode(dst, src []byte, final bool) ([]byte, error) {
	for _, b := range src {
		for _, nibble := range [2]byte{b >> 4, b & 0x0f} {
			t := huffmanDecodeTable[d.state][nibble]
			if t.flags&huffmanFail != 0 {
				d.Reset()
				return dst, ErrHuffmanInvalid
			}
			if t.flags&huffmanSymbol != 0 {
				dst = append(dst, t.sym)
			}
			d.state = t.next
			d.accept = t.flags&huffmanAccepted != 0
		}
	}

	if !final {
		return dst, nil
	}

	// State 0 is the root; only the zero value reaches it without a transition.
	ok := d.accept || d.state == 0
	d.Reset()
	if !ok {
		return dst, ErrHuffmanInvalid
	}
	return dst, nil
}

// HuffmanDecode decodes a complete Huffman-encoded string.
func HuffmanDecode(src []byte) ([]byte, error) {
	var d HuffmanDecoder
	return d.Decode(make([]byte, 0, len(src)*8/5), src, true)
}
