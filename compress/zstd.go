package compress

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/go-mizu/ptext/parquet"
)

// A single stateless decoder is shared by all workers; DecodeAll is safe
// for concurrent use as long as the decoder was created without a reader.
var zstdDecoder *zstd.Decoder

func init() {
	var err error
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		panic(fmt.Sprintf("compress: zstd.NewReader: %v", err))
	}
	uncompressors[parquet.CodecZstd] = uncompressZstd
}

func uncompressZstd(src []byte, uncompressedSize int) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(src, make([]byte, 0, uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrDecompress, err)
	}
	return out, nil
}
