// Package compress performs one-shot decompression of parquet page
// bodies. Codecs register themselves in a small registry keyed by the
// parquet CompressionCodec enum; only UNCOMPRESSED and ZSTD are wired,
// and any other codec is reported as unsupported so the page decoder can
// degrade instead of aborting.
package compress

import (
	"errors"
	"fmt"

	"github.com/go-mizu/ptext/parquet"
)

var (
	ErrDecompress       = errors.New("compress: decompress failed")
	ErrUnsupportedCodec = errors.New("compress: unsupported codec")
)

type uncompressor func(src []byte, uncompressedSize int) ([]byte, error)

var uncompressors = map[parquet.CompressionCodec]uncompressor{
	parquet.CodecUncompressed: uncompressPassthrough,
}

// Supported reports whether pages compressed with the codec can be
// decoded.
func Supported(codec parquet.CompressionCodec) bool {
	_, ok := uncompressors[codec]
	return ok
}

// Uncompress decompresses one page body into a freshly owned buffer and
// validates that the result is exactly uncompressedSize bytes; a
// mismatch indicates truncated or corrupted input and is never silently
// accepted. When the stored and uncompressed sizes are equal the page
// was written without compression and the bytes are copied through.
func Uncompress(src []byte, codec parquet.CompressionCodec, uncompressedSize int) ([]byte, error) {
	if len(src) == uncompressedSize {
		return uncompressPassthrough(src, uncompressedSize)
	}
	fn, ok := uncompressors[codec]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCodec, codec)
	}
	out, err := fn(src, uncompressedSize)
	if err != nil {
		return nil, err
	}
	if len(out) != uncompressedSize {
		return nil, fmt.Errorf("%w: got %d bytes, expected %d", ErrDecompress, len(out), uncompressedSize)
	}
	return out, nil
}

func uncompressPassthrough(src []byte, uncompressedSize int) ([]byte, error) {
	if len(src) != uncompressedSize {
		return nil, fmt.Errorf("%w: stored page has %d bytes, expected %d", ErrDecompress, len(src), uncompressedSize)
	}
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}
