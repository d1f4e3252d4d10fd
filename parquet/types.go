// Package parquet models the slice of the Parquet on-disk format this
// module needs: the thrift-encoded file footer, page headers, and the
// enum values they carry. It deliberately keeps only the fields required
// to locate and decode a flat byte-array column.
package parquet

import "fmt"

// PhysicalType is the parquet Type enum.
type PhysicalType int32

const (
	TypeBoolean           PhysicalType = 0
	TypeInt32             PhysicalType = 1
	TypeInt64             PhysicalType = 2
	TypeInt96             PhysicalType = 3
	TypeFloat             PhysicalType = 4
	TypeDouble            PhysicalType = 5
	TypeByteArray         PhysicalType = 6
	TypeFixedLenByteArray PhysicalType = 7
)

func (t PhysicalType) String() string {
	switch t {
	case TypeBoolean:
		return "BOOLEAN"
	case TypeInt32:
		return "INT32"
	case TypeInt64:
		return "INT64"
	case TypeInt96:
		return "INT96"
	case TypeFloat:
		return "FLOAT"
	case TypeDouble:
		return "DOUBLE"
	case TypeByteArray:
		return "BYTE_ARRAY"
	case TypeFixedLenByteArray:
		return "FIXED_LEN_BYTE_ARRAY"
	}
	return fmt.Sprintf("TYPE_%d", int32(t))
}

// CompressionCodec is the parquet CompressionCodec enum.
type CompressionCodec int32

const (
	CodecUncompressed CompressionCodec = 0
	CodecSnappy       CompressionCodec = 1
	CodecGzip         CompressionCodec = 2
	CodecLzo          CompressionCodec = 3
	CodecBrotli       CompressionCodec = 4
	CodecLz4          CompressionCodec = 5
	CodecZstd         CompressionCodec = 6
	CodecLz4Raw       CompressionCodec = 7
)

func (c CompressionCodec) String() string {
	switch c {
	case CodecUncompressed:
		return "UNCOMPRESSED"
	case CodecSnappy:
		return "SNAPPY"
	case CodecGzip:
		return "GZIP"
	case CodecLzo:
		return "LZO"
	case CodecBrotli:
		return "BROTLI"
	case CodecLz4:
		return "LZ4"
	case CodecZstd:
		return "ZSTD"
	case CodecLz4Raw:
		return "LZ4_RAW"
	}
	return fmt.Sprintf("CODEC_%d", int32(c))
}

// Encoding is the parquet Encoding enum.
type Encoding int32

const (
	EncodingPlain                Encoding = 0
	EncodingPlainDictionary      Encoding = 2
	EncodingRLE                  Encoding = 3
	EncodingBitPacked            Encoding = 4
	EncodingDeltaBinaryPacked    Encoding = 5
	EncodingDeltaLengthByteArray Encoding = 6
	EncodingDeltaByteArray       Encoding = 7
	EncodingRLEDictionary        Encoding = 8
	EncodingByteStreamSplit      Encoding = 9
)

// PageType is the parquet PageType enum.
type PageType int32

const (
	PageTypeData       PageType = 0
	PageTypeIndex      PageType = 1
	PageTypeDictionary PageType = 2
	PageTypeDataV2     PageType = 3
)

// SchemaElement is one node of the flattened schema tree. Elements with
// NumChildren == 0 are leaf columns; the root element sits at index 0.
type SchemaElement struct {
	Name        string
	Type        *PhysicalType
	NumChildren int32
}

// ColumnChunkMeta describes one column's byte range within one row group.
type ColumnChunkMeta struct {
	Type                 PhysicalType
	Codec                CompressionCodec
	NumValues            int64
	TotalUncompressed    int64
	TotalCompressed      int64
	DataPageOffset       int64
	DictionaryPageOffset *int64
}

// StartOffset is where the chunk's page sequence begins: the dictionary
// page when present, the first data page otherwise.
func (c *ColumnChunkMeta) StartOffset() int64 {
	if c.DictionaryPageOffset != nil && *c.DictionaryPageOffset > 0 {
		return *c.DictionaryPageOffset
	}
	return c.DataPageOffset
}

// RowGroupMeta is one horizontal partition of the file.
type RowGroupMeta struct {
	Columns       []ColumnChunkMeta
	TotalByteSize int64
	NumRows       int64
}

// FileMetaData is the parsed footer. It is only needed to compute byte
// ranges and is discarded before page decoding begins.
type FileMetaData struct {
	Version   int32
	Schema    []SchemaElement
	NumRows   int64
	RowGroups []RowGroupMeta
}

// DataPageHeader carries the v1 data page fields.
type DataPageHeader struct {
	NumValues               int32
	Encoding                Encoding
	DefinitionLevelEncoding Encoding
	RepetitionLevelEncoding Encoding
}

// DictionaryPageHeader carries the dictionary page fields.
type DictionaryPageHeader struct {
	NumValues int32
	Encoding  Encoding
}

// DataPageHeaderV2 carries the v2 data page fields. Level streams are
// stored uncompressed with explicit byte lengths, and compression of the
// value stream is tracked per page rather than assumed from the chunk
// codec.
type DataPageHeaderV2 struct {
	NumValues              int32
	NumNulls               int32
	NumRows                int32
	Encoding               Encoding
	DefinitionLevelsLength int32
	RepetitionLevelsLength int32
	IsCompressed           bool
}

// PageHeader is the tagged union preceding every page body. Exactly one
// of the typed header pointers is set, matching Type.
type PageHeader struct {
	Type             PageType
	UncompressedSize int32
	CompressedSize   int32

	DataPage       *DataPageHeader
	DictionaryPage *DictionaryPageHeader
	DataPageV2     *DataPageHeaderV2
}
