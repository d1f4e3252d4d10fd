package reader

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"github.com/go-mizu/ptext/parquet"
)

// pageWriter assembles page header bytes with the reference thrift
// compact encoder, followed by the raw page body.
type pageWriter struct {
	t   *testing.T
	ctx context.Context
	mb  *thrift.TMemoryBuffer
	p   *thrift.TCompactProtocol
}

func newPageWriter(t *testing.T) *pageWriter {
	mb := thrift.NewTMemoryBuffer()
	return &pageWriter{
		t:   t,
		ctx: context.Background(),
		mb:  mb,
		p:   thrift.NewTCompactProtocolConf(mb, &thrift.TConfiguration{}),
	}
}

func (w *pageWriter) i32(id int16, v int32) {
	require.NoError(w.t, w.p.WriteFieldBegin(w.ctx, "", thrift.I32, id))
	require.NoError(w.t, w.p.WriteI32(w.ctx, v))
	require.NoError(w.t, w.p.WriteFieldEnd(w.ctx))
}

func (w *pageWriter) i64(id int16, v int64) {
	require.NoError(w.t, w.p.WriteFieldBegin(w.ctx, "", thrift.I64, id))
	require.NoError(w.t, w.p.WriteI64(w.ctx, v))
	require.NoError(w.t, w.p.WriteFieldEnd(w.ctx))
}

func (w *pageWriter) str(id int16, v string) {
	require.NoError(w.t, w.p.WriteFieldBegin(w.ctx, "", thrift.STRING, id))
	require.NoError(w.t, w.p.WriteString(w.ctx, v))
	require.NoError(w.t, w.p.WriteFieldEnd(w.ctx))
}

func (w *pageWriter) boolean(id int16, v bool) {
	require.NoError(w.t, w.p.WriteFieldBegin(w.ctx, "", thrift.BOOL, id))
	require.NoError(w.t, w.p.WriteBool(w.ctx, v))
	require.NoError(w.t, w.p.WriteFieldEnd(w.ctx))
}

func (w *pageWriter) structList(id int16, n int, elem func(i int)) {
	require.NoError(w.t, w.p.WriteFieldBegin(w.ctx, "", thrift.LIST, id))
	require.NoError(w.t, w.p.WriteListBegin(w.ctx, thrift.STRUCT, n))
	for i := 0; i < n; i++ {
		require.NoError(w.t, w.p.WriteStructBegin(w.ctx, ""))
		elem(i)
		require.NoError(w.t, w.p.WriteFieldStop(w.ctx))
		require.NoError(w.t, w.p.WriteStructEnd(w.ctx))
	}
	require.NoError(w.t, w.p.WriteListEnd(w.ctx))
	require.NoError(w.t, w.p.WriteFieldEnd(w.ctx))
}

func (w *pageWriter) structField(id int16, body func()) {
	require.NoError(w.t, w.p.WriteFieldBegin(w.ctx, "", thrift.STRUCT, id))
	require.NoError(w.t, w.p.WriteStructBegin(w.ctx, ""))
	body()
	require.NoError(w.t, w.p.WriteFieldStop(w.ctx))
	require.NoError(w.t, w.p.WriteStructEnd(w.ctx))
	require.NoError(w.t, w.p.WriteFieldEnd(w.ctx))
}

func (w *pageWriter) finish(body []byte) []byte {
	require.NoError(w.t, w.p.WriteFieldStop(w.ctx))
	require.NoError(w.t, w.p.WriteStructEnd(w.ctx))
	return append(w.mb.Bytes(), body...)
}

// dataPageV1 encodes a complete v1 data page: header plus body.
func dataPageV1(t *testing.T, numValues int32, enc parquet.Encoding, uncompressedSize int, body []byte) []byte {
	w := newPageWriter(t)
	require.NoError(t, w.p.WriteStructBegin(w.ctx, ""))
	w.i32(1, int32(parquet.PageTypeData))
	w.i32(2, int32(uncompressedSize))
	w.i32(3, int32(len(body)))
	w.structField(5, func() {
		w.i32(1, numValues)
		w.i32(2, int32(enc))
		w.i32(3, int32(parquet.EncodingRLE))
		w.i32(4, int32(parquet.EncodingRLE))
	})
	return w.finish(body)
}

// dataPageV2 encodes a complete v2 data page. A nil compressed leaves
// the is_compressed field at its default.
func dataPageV2(t *testing.T, numValues, numNulls int32, enc parquet.Encoding, defLevelsLen, uncompressedSize int, body []byte, compressed *bool) []byte {
	w := newPageWriter(t)
	require.NoError(t, w.p.WriteStructBegin(w.ctx, ""))
	w.i32(1, int32(parquet.PageTypeDataV2))
	w.i32(2, int32(uncompressedSize))
	w.i32(3, int32(len(body)))
	w.structField(8, func() {
		w.i32(1, numValues)
		w.i32(2, numNulls)
		w.i32(3, numValues)
		w.i32(4, int32(enc))
		w.i32(5, int32(defLevelsLen))
		w.i32(6, 0)
		if compressed != nil {
			w.boolean(7, *compressed)
		}
	})
	return w.finish(body)
}

func dictPage(t *testing.T, numValues int32, uncompressedSize int, body []byte) []byte {
	w := newPageWriter(t)
	require.NoError(t, w.p.WriteStructBegin(w.ctx, ""))
	w.i32(1, int32(parquet.PageTypeDictionary))
	w.i32(2, int32(uncompressedSize))
	w.i32(3, int32(len(body)))
	w.structField(7, func() {
		w.i32(1, numValues)
		w.i32(2, int32(parquet.EncodingPlain))
	})
	return w.finish(body)
}

// defLevels encodes n definition levels of value 1 as the v1
// length-prefixed RLE stream.
func defLevels(n int) []byte {
	run := binary.AppendUvarint(nil, uint64(n)<<1)
	run = append(run, 0x01)
	out := binary.LittleEndian.AppendUint32(nil, uint32(len(run)))
	return append(out, run...)
}

// v2Levels encodes definition levels as the raw RLE stream v2 pages
// carry, one run per level, without a length prefix.
func v2Levels(levels ...byte) []byte {
	var out []byte
	for _, lvl := range levels {
		out = binary.AppendUvarint(out, 2)
		out = append(out, lvl)
	}
	return out
}

func plainValues(docs ...string) []byte {
	var out []byte
	for _, d := range docs {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(d)))
		out = append(out, d...)
	}
	return out
}

// dictIndices encodes dictionary indices as a bit-width byte plus one
// RLE run per index.
func dictIndices(bitWidth byte, indices ...uint64) []byte {
	out := []byte{bitWidth}
	for _, idx := range indices {
		out = binary.AppendUvarint(out, 2) // RLE run of length 1
		out = append(out, byte(idx))
	}
	return out
}

func chunkMeta(numValues int64, codec parquet.CompressionCodec) parquet.ColumnChunkMeta {
	return parquet.ColumnChunkMeta{
		Type:      parquet.TypeByteArray,
		Codec:     codec,
		NumValues: numValues,
	}
}

func asStrings(values [][]byte) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func TestDecodeColumnChunkPlain(t *testing.T) {
	body := append(defLevels(3), plainValues("alpha", "", "gamma")...)
	chunk := dataPageV1(t, 3, parquet.EncodingPlain, len(body), body)

	values, err := decodeColumnChunk(chunk, chunkMeta(3, parquet.CodecUncompressed), 0)
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "", "gamma"}, asStrings(values))
}

func TestDecodeColumnChunkDictionary(t *testing.T) {
	dictBody := plainValues("first", "second")
	dataBody := append(defLevels(4), dictIndices(1, 0, 1, 1, 0)...)
	chunk := dictPage(t, 2, len(dictBody), dictBody)
	chunk = append(chunk, dataPageV1(t, 4, parquet.EncodingRLEDictionary, len(dataBody), dataBody)...)

	values, err := decodeColumnChunk(chunk, chunkMeta(4, parquet.CodecUncompressed), 0)
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second", "second", "first"}, asStrings(values))
}

func TestDecodeColumnChunkPlainDictionarySynonym(t *testing.T) {
	dictBody := plainValues("only")
	dataBody := append(defLevels(2), dictIndices(1, 0, 0)...)
	chunk := dictPage(t, 1, len(dictBody), dictBody)
	chunk = append(chunk, dataPageV1(t, 2, parquet.EncodingPlainDictionary, len(dataBody), dataBody)...)

	values, err := decodeColumnChunk(chunk, chunkMeta(2, parquet.CodecUncompressed), 0)
	require.NoError(t, err)
	require.Equal(t, []string{"only", "only"}, asStrings(values))
}

func TestDecodeColumnChunkMissingDictionary(t *testing.T) {
	dataBody := append(defLevels(2), dictIndices(1, 0, 1)...)
	chunk := dataPageV1(t, 2, parquet.EncodingRLEDictionary, len(dataBody), dataBody)

	_, err := decodeColumnChunk(chunk, chunkMeta(2, parquet.CodecUncompressed), 0)
	require.ErrorIs(t, err, ErrNoDictionary)
}

func TestDecodeColumnChunkUnknownEncodingSkipped(t *testing.T) {
	skipped := append(defLevels(2), 0xAA, 0xBB)
	kept := append(defLevels(1), plainValues("kept")...)
	chunk := dataPageV1(t, 2, parquet.EncodingDeltaByteArray, len(skipped), skipped)
	chunk = append(chunk, dataPageV1(t, 1, parquet.EncodingPlain, len(kept), kept)...)

	values, err := decodeColumnChunk(chunk, chunkMeta(3, parquet.CodecUncompressed), 0)
	require.NoError(t, err)
	require.Equal(t, []string{"kept"}, asStrings(values))
}

func TestDecodeColumnChunkZstd(t *testing.T) {
	raw := append(defLevels(2), plainValues("compressed", "page")...)
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	body := enc.EncodeAll(raw, nil)
	require.NoError(t, enc.Close())

	chunk := dataPageV1(t, 2, parquet.EncodingPlain, len(raw), body)
	values, err := decodeColumnChunk(chunk, chunkMeta(2, parquet.CodecZstd), 0)
	require.NoError(t, err)
	require.Equal(t, []string{"compressed", "page"}, asStrings(values))
}

func TestDecodeColumnChunkTruncated(t *testing.T) {
	t.Run("garbage_header", func(t *testing.T) {
		values, err := decodeColumnChunk([]byte{0xFF, 0xFF, 0xFF}, chunkMeta(5, parquet.CodecUncompressed), 0)
		require.NoError(t, err)
		require.Empty(t, values)
	})

	t.Run("body_past_end", func(t *testing.T) {
		body := append(defLevels(1), plainValues("lost")...)
		chunk := dataPageV1(t, 1, parquet.EncodingPlain, len(body), body)
		values, err := decodeColumnChunk(chunk[:len(chunk)-3], chunkMeta(1, parquet.CodecUncompressed), 0)
		require.NoError(t, err)
		require.Empty(t, values)
	})

	t.Run("good_page_then_garbage", func(t *testing.T) {
		body := append(defLevels(1), plainValues("salvaged")...)
		chunk := dataPageV1(t, 1, parquet.EncodingPlain, len(body), body)
		chunk = append(chunk, 0xFF, 0xFF)
		values, err := decodeColumnChunk(chunk, chunkMeta(2, parquet.CodecUncompressed), 0)
		require.NoError(t, err)
		require.Equal(t, []string{"salvaged"}, asStrings(values))
	})
}

func TestDecodeColumnChunkDataV2(t *testing.T) {
	levels := v2Levels(1, 1, 1)
	body := append(levels, plainValues("v2a", "v2b", "v2c")...)
	chunk := dataPageV2(t, 3, 0, parquet.EncodingPlain, len(levels), len(body), body, nil)

	values, err := decodeColumnChunk(chunk, chunkMeta(3, parquet.CodecUncompressed), 0)
	require.NoError(t, err)
	require.Equal(t, []string{"v2a", "v2b", "v2c"}, asStrings(values))
}

func TestDecodeColumnChunkDataV2ZstdWithNulls(t *testing.T) {
	// Levels stay uncompressed while the value stream is compressed;
	// the null in the middle has no value bytes at all.
	levels := v2Levels(1, 0, 1)
	raw := plainValues("kept", "also")
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	compressedVals := enc.EncodeAll(raw, nil)
	require.NoError(t, enc.Close())

	body := append(levels, compressedVals...)
	chunk := dataPageV2(t, 3, 1, parquet.EncodingPlain, len(levels), len(levels)+len(raw), body, nil)

	values, err := decodeColumnChunk(chunk, chunkMeta(3, parquet.CodecZstd), 0)
	require.NoError(t, err)
	require.Equal(t, []string{"kept", "also"}, asStrings(values))
}

func TestDecodeColumnChunkDataV2UncompressedFlag(t *testing.T) {
	// is_compressed false keeps the value stream raw even when the
	// chunk codec says zstd.
	levels := v2Levels(1, 1)
	body := append(levels, plainValues("raw1", "raw2")...)
	notCompressed := false
	chunk := dataPageV2(t, 2, 0, parquet.EncodingPlain, len(levels), len(body), body, &notCompressed)

	values, err := decodeColumnChunk(chunk, chunkMeta(2, parquet.CodecZstd), 0)
	require.NoError(t, err)
	require.Equal(t, []string{"raw1", "raw2"}, asStrings(values))
}

func TestDecodeColumnChunkDataV2MissingDictionary(t *testing.T) {
	levels := v2Levels(1, 1)
	body := append(levels, dictIndices(1, 0, 1)...)
	chunk := dataPageV2(t, 2, 0, parquet.EncodingRLEDictionary, len(levels), len(body), body, nil)

	_, err := decodeColumnChunk(chunk, chunkMeta(2, parquet.CodecUncompressed), 0)
	require.ErrorIs(t, err, ErrNoDictionary)
}

func TestDecodeColumnChunkMaxDocs(t *testing.T) {
	var chunk []byte
	for _, docs := range [][]string{{"a", "b", "c"}, {"d", "e", "f"}} {
		body := append(defLevels(3), plainValues(docs...)...)
		chunk = append(chunk, dataPageV1(t, 3, parquet.EncodingPlain, len(body), body)...)
	}

	values, err := decodeColumnChunk(chunk, chunkMeta(6, parquet.CodecUncompressed), 4)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c", "d"}, asStrings(values))
}
