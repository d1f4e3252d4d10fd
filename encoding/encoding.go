// Package encoding implements the two parquet value encodings this
// module reads: PLAIN length-prefixed byte arrays, and the RLE/bit-packed
// hybrid used for both definition levels and dictionary indices.
//
// Decoders here are deliberately tolerant: a stream that runs out early
// yields the values decoded so far rather than an error, so that one
// truncated page costs its own tail and nothing else.
package encoding

import (
	"encoding/binary"
)

// ReadPlainByteArrays decodes up to numValues PLAIN-encoded byte arrays:
// a little-endian u32 length prefix followed by that many raw bytes,
// repeated. The returned slices alias data. If the input is exhausted
// early, the values decoded so far are returned.
func ReadPlainByteArrays(data []byte, numValues int) [][]byte {
	out := make([][]byte, 0, numValues)
	pos := 0
	for len(out) < numValues {
		if pos+4 > len(data) {
			break
		}
		n := int(binary.LittleEndian.Uint32(data[pos:]))
		pos += 4
		if n < 0 || pos+n > len(data) {
			break
		}
		out = append(out, data[pos:pos+n])
		pos += n
	}
	return out
}

// ReadRLEBitPackedHybrid decodes up to numValues values of bitWidth bits
// each from an RLE/bit-packed hybrid stream. Run headers are varints: an
// odd header introduces a bit-packed run of (header>>1)*8 values packed
// LSB-first, an even header an RLE run of (header>>1) repeats of one
// ceil(bitWidth/8)-byte little-endian value. bitWidth 0 means every
// value is zero. Decoding stops at numValues outputs or when the input
// is exhausted, whichever comes first.
func ReadRLEBitPackedHybrid(data []byte, bitWidth uint, numValues int) []uint32 {
	if bitWidth > 32 {
		return nil
	}
	out := make([]uint32, 0, numValues)
	pos := 0
	for len(out) < numValues && pos < len(data) {
		header, n := binary.Uvarint(data[pos:])
		if n <= 0 {
			break
		}
		pos += n

		if header&1 == 1 {
			// Bit-packed run: groups of 8 values.
			count := int(header>>1) * 8
			byteCount := (count*int(bitWidth) + 7) / 8
			if pos+byteCount > len(data) {
				break
			}
			out = appendBitPacked(out, data[pos:pos+byteCount], count, bitWidth, numValues)
			pos += byteCount
		} else {
			count := int(header >> 1)
			width := int(bitWidth+7) / 8
			if pos+width > len(data) {
				break
			}
			var val uint32
			for i := 0; i < width; i++ {
				val |= uint32(data[pos+i]) << (8 * i)
			}
			pos += width
			for i := 0; i < count && len(out) < numValues; i++ {
				out = append(out, val)
			}
		}
	}
	return out
}

// appendBitPacked unpacks count values of bitWidth bits from src,
// LSB-first across the byte stream, stopping at the limit.
func appendBitPacked(out []uint32, src []byte, count int, bitWidth uint, limit int) []uint32 {
	if bitWidth == 0 {
		for i := 0; i < count && len(out) < limit; i++ {
			out = append(out, 0)
		}
		return out
	}
	mask := uint64(1)<<bitWidth - 1
	bitPos := uint(0)
	for i := 0; i < count && len(out) < limit; i++ {
		byteIdx := bitPos / 8
		shift := bitPos % 8
		var word uint64
		for j, b := uint(0), byteIdx; j < 8 && b < uint(len(src)); j, b = j+1, b+1 {
			word |= uint64(src[b]) << (8 * j)
		}
		out = append(out, uint32((word>>shift)&mask))
		bitPos += bitWidth
	}
	return out
}

// SkipDefinitionLevels consumes the definition-level section of a v1
// data page for a column with max definition level 1: a little-endian
// u32 byte length followed by that many bytes of 1-bit RLE/bit-packed
// levels. It returns the remaining page bytes and the count of non-null
// slots among numValues; that count, not numValues, is how many entries
// the value stream holds. A truncated section yields (nil, 0).
func SkipDefinitionLevels(data []byte, numValues int) ([]byte, int) {
	if len(data) < 4 {
		return nil, 0
	}
	n := int(binary.LittleEndian.Uint32(data))
	if n < 0 || 4+n > len(data) {
		return nil, 0
	}
	levels := ReadRLEBitPackedHybrid(data[4:4+n], 1, numValues)
	return data[4+n:], CountNonNull(levels)
}

// CountNonNull counts set definition levels.
func CountNonNull(levels []uint32) int {
	nonNull := 0
	for _, l := range levels {
		if l != 0 {
			nonNull++
		}
	}
	return nonNull
}
