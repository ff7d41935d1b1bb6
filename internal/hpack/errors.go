package hpack

import (
	"errors"
	"fmt"
)

// ErrHeaderComp is the single error kind of the codec. Every cause below wraps it,
// and every one of them is fatal for the connection direction that produced it.
var ErrHeaderComp = errors.New("hpack: compression error")

var (
	ErrIntegerOverflow       = compressionError("integer overflow")
	ErrTruncated             = compressionError("truncated header block")
	ErrInvalidIndex          = compressionError("invalid table index")
	ErrSizeUpdateAfterHeader = compressionError("dynamic table size update after header field")
	ErrSizeUpdateTooLarge    = compressionError("dynamic table size update above allowed maximum")
	ErrHuffmanInvalid        = compressionError("invalid huffman-encoded data")
	ErrHeaderListTooLarge    = compressionError("header list exceeds maximum size")
	ErrEntryTooLarge         = compressionError("entry does not fit in dynamic table")
	ErrTableSizeOverflow     = compressionError("dynamic table size overflow")
)

func compressionError(msg string) error {
	return fmt.Errorf("%w: %s", ErrHeaderComp, msg)
}
