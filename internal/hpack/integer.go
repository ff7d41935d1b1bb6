package hpack

import (
	"fmt"
	"math/bits"
)

func checkPrefix(prefixBits uint8) {
	if prefixBits < 1 || prefixBits > 8 {
		panic(fmt.Sprintf("hpack: prefix length must be within [1,8], got %d", prefixBits))
	}
}

// AppendInteger appends v as an RFC 7541 §5.1 prefixed integer. flags holds the
// representation bits above the prefix of the first octet.
func AppendInteger(dst []byte, flags byte, prefixBits uint8, v uint64) []byte {
	checkPrefix(prefixBits)

	limit := uint64(1)<<prefixBits - 1
	if v < limit {
		return append(dst, flags|byte(v))
	}

	dst = append(dst, flags|byte(limit))
	v -= limit
	for v >= 0x80 {
		dst = append(dst, byte(v&0x7f)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

func EncodeInteger(v uint64, prefixBits uint8) []byte {
	return AppendInteger(nil, 0, prefixBits, v)
}

// DecodeInteger reads a prefixed integer from the start of data, ignoring the
// bits above the prefix, and reports how many octets it consumed.
func DecodeInteger(data []byte, prefixBits uint8) (uint64, int, error) {
	checkPrefix(prefixBits)

	if len(data) == 0 {
		return 0, 0, ErrTruncated
	}

	limit := uint64(1)<<prefixBits - 1
	v := uint64(data[0]) & limit
	if v < limit {
		return v, 1, nil
	}

	var shift uint
	for i := 1; i < len(data); i++ {
		b := data[i]
		if shift >= 64 {
			return 0, 0, ErrIntegerOverflow
		}

		chunk := uint64(b & 0x7f)
		if chunk<<shift>>shift != chunk {
			return 0, 0, ErrIntegerOverflow
		}

		var carry uint64
		v, carry = bits.Add64(v, chunk<<shift, 0)
		if carry != 0 {
			return 0, 0, ErrIntegerOverflow
		}

		if b&0x80 == 0 {
			return v, i + 1, nil
		}
		shift += 7
	}

	return 0, 0, ErrTruncated
}
