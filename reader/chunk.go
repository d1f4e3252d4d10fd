package reader

import (
	"errors"

	"github.com/go-mizu/ptext/compress"
	"github.com/go-mizu/ptext/encoding"
	"github.com/go-mizu/ptext/parquet"
	"github.com/go-mizu/ptext/thriftc"
)

// ErrNoDictionary reports a dictionary-encoded data page with no
// preceding dictionary page in its chunk.
var ErrNoDictionary = errors.New("reader: dictionary-encoded page before dictionary")

// decodeColumnChunk walks the page sequence of one column chunk: at most
// one dictionary page, then data pages (v1 or v2), until the chunk's
// declared value count is reached, the input ends, or maxDocs values
// have been produced (maxDocs 0 means unlimited).
//
// The returned slices alias page buffers owned by this call's allocations;
// callers copy them into longer-lived storage before decoding another
// chunk. Corrupt or truncated pages end the chunk with the values
// decoded so far; only decompression failures and a missing dictionary
// are reported as errors.
func decodeColumnChunk(chunk []byte, meta parquet.ColumnChunkMeta, maxDocs int) ([][]byte, error) {
	var (
		out        [][]byte
		dict       [][]byte
		valuesRead int64
		pos        int
	)

	for valuesRead < meta.NumValues && pos < len(chunk) {
		if maxDocs > 0 && len(out) >= maxDocs {
			break
		}

		r := thriftc.NewReader(chunk[pos:])
		header, err := parquet.ParsePageHeader(r)
		if err != nil {
			// Truncated or garbled header: keep what was decoded.
			break
		}
		bodyStart := pos + r.Pos()
		bodySize := int(header.CompressedSize)
		if bodySize < 0 || bodyStart+bodySize > len(chunk) {
			break
		}
		body := chunk[bodyStart : bodyStart+bodySize]
		pos = bodyStart + bodySize

		switch header.Type {
		case parquet.PageTypeDictionary:
			if header.DictionaryPage == nil {
				continue
			}
			pageData, err := compress.Uncompress(body, meta.Codec, int(header.UncompressedSize))
			if err != nil {
				if errors.Is(err, compress.ErrUnsupportedCodec) {
					continue
				}
				return out, err
			}
			// A chunk has at most one dictionary; a second replaces it.
			dict = encoding.ReadPlainByteArrays(pageData, int(header.DictionaryPage.NumValues))

		case parquet.PageTypeData:
			if header.DataPage == nil {
				continue
			}
			numValues := int(header.DataPage.NumValues)
			pageData, err := compress.Uncompress(body, meta.Codec, int(header.UncompressedSize))
			if err != nil {
				if errors.Is(err, compress.ErrUnsupportedCodec) {
					valuesRead += int64(numValues)
					continue
				}
				return out, err
			}
			rest, nonNull := encoding.SkipDefinitionLevels(pageData, numValues)
			out, err = appendPageValues(out, rest, header.DataPage.Encoding, nonNull, dict, maxDocs)
			if err != nil {
				return out, err
			}
			valuesRead += int64(numValues)

		case parquet.PageTypeDataV2:
			h2 := header.DataPageV2
			if h2 == nil {
				continue
			}
			numValues := int(h2.NumValues)
			levelLen := int(h2.RepetitionLevelsLength) + int(h2.DefinitionLevelsLength)
			if levelLen < 0 || levelLen > len(body) {
				valuesRead += int64(numValues)
				continue
			}
			// V2 level streams are never compressed and carry no
			// length prefix; the header gives their byte lengths and
			// the null count directly.
			nonNull := numValues - int(h2.NumNulls)
			if nonNull < 0 {
				nonNull = 0
			}
			valueBytes := body[levelLen:]
			if h2.IsCompressed && meta.Codec != parquet.CodecUncompressed {
				valueBytes, err = compress.Uncompress(valueBytes, meta.Codec, int(header.UncompressedSize)-levelLen)
				if err != nil {
					if errors.Is(err, compress.ErrUnsupportedCodec) {
						valuesRead += int64(numValues)
						continue
					}
					return out, err
				}
			}
			out, err = appendPageValues(out, valueBytes, h2.Encoding, nonNull, dict, maxDocs)
			if err != nil {
				return out, err
			}
			valuesRead += int64(numValues)

		default:
			// Index or unknown page kind: body already skipped.
		}
	}
	return out, nil
}

// appendPageValues decodes one data page's value stream. Encodings other
// than PLAIN and the two dictionary forms are skipped rather than
// rejected: their values count as read but emit nothing, trading strict
// validation for maximal extraction from imperfect files.
func appendPageValues(out [][]byte, data []byte, enc parquet.Encoding, numValues int, dict [][]byte, maxDocs int) ([][]byte, error) {
	limit := numValues
	if maxDocs > 0 && maxDocs-len(out) < limit {
		limit = maxDocs - len(out)
	}
	switch enc {
	case parquet.EncodingPlain:
		return append(out, encoding.ReadPlainByteArrays(data, limit)...), nil

	case parquet.EncodingRLEDictionary, parquet.EncodingPlainDictionary:
		if dict == nil {
			return out, ErrNoDictionary
		}
		if len(data) == 0 {
			return out, nil
		}
		// The first byte of the stream is the index bit width.
		indices := encoding.ReadRLEBitPackedHybrid(data[1:], uint(data[0]), limit)
		for _, idx := range indices {
			if int(idx) >= len(dict) {
				// Corrupt index: stop this page, keep the prefix.
				break
			}
			out = append(out, dict[idx])
		}
		return out, nil

	default:
		return out, nil
	}
}
