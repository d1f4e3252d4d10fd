package parquet

import (
	"fmt"

	"github.com/go-mizu/ptext/thriftc"
)

// Thrift field ids from the parquet-format definition. Only the fields
// needed to locate column chunk byte ranges are materialized; everything
// else is skipped so that new optional footer fields keep parsing.
const (
	fileMetaVersion   = 1
	fileMetaSchema    = 2
	fileMetaNumRows   = 3
	fileMetaRowGroups = 4

	schemaElemType        = 1
	schemaElemName        = 4
	schemaElemNumChildren = 5

	rowGroupColumns       = 1
	rowGroupTotalByteSize = 2
	rowGroupNumRows       = 3

	columnChunkMetaData = 3

	columnMetaType             = 1
	columnMetaCodec            = 4
	columnMetaNumValues        = 5
	columnMetaUncompressedSize = 6
	columnMetaCompressedSize   = 7
	columnMetaDataPageOffset   = 9
	columnMetaDictPageOffset   = 11
)

// ParseFileMetaData decodes the thrift-encoded footer bytes into a
// FileMetaData.
func ParseFileMetaData(data []byte) (*FileMetaData, error) {
	r := thriftc.NewReader(data)
	meta := &FileMetaData{}
	for {
		fh, ok, err := r.ReadFieldHeader()
		if err != nil {
			return nil, fmt.Errorf("file metadata: %w", err)
		}
		if !ok {
			return meta, nil
		}
		switch {
		case fh.ID == fileMetaVersion && fh.Type == thriftc.TypeI32:
			if meta.Version, err = r.ReadZigzag32(); err != nil {
				return nil, fmt.Errorf("file metadata version: %w", err)
			}
		case fh.ID == fileMetaSchema && fh.Type == thriftc.TypeList:
			if meta.Schema, err = parseSchemaList(r); err != nil {
				return nil, err
			}
		case fh.ID == fileMetaNumRows && fh.Type == thriftc.TypeI64:
			if meta.NumRows, err = r.ReadZigzag64(); err != nil {
				return nil, fmt.Errorf("file metadata num_rows: %w", err)
			}
		case fh.ID == fileMetaRowGroups && fh.Type == thriftc.TypeList:
			if meta.RowGroups, err = parseRowGroupList(r); err != nil {
				return nil, err
			}
		default:
			if err := r.SkipValue(fh.Type); err != nil {
				return nil, fmt.Errorf("file metadata field %d: %w", fh.ID, err)
			}
		}
	}
}

func parseSchemaList(r *thriftc.Reader) ([]SchemaElement, error) {
	size, elemType, err := r.ReadListHeader()
	if err != nil {
		return nil, fmt.Errorf("schema list: %w", err)
	}
	if elemType != thriftc.TypeStruct {
		return nil, fmt.Errorf("schema list: unexpected element type %d", elemType)
	}
	out := make([]SchemaElement, 0, size)
	for i := 0; i < size; i++ {
		se, err := parseSchemaElement(r)
		if err != nil {
			return nil, fmt.Errorf("schema element %d: %w", i, err)
		}
		out = append(out, se)
	}
	return out, nil
}

func parseSchemaElement(r *thriftc.Reader) (SchemaElement, error) {
	r.PushStruct()
	defer r.PopStruct()
	var out SchemaElement
	for {
		fh, ok, err := r.ReadFieldHeader()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		switch {
		case fh.ID == schemaElemType && fh.Type == thriftc.TypeI32:
			v, err := r.ReadZigzag32()
			if err != nil {
				return out, err
			}
			pt := PhysicalType(v)
			out.Type = &pt
		case fh.ID == schemaElemName && fh.Type == thriftc.TypeBinary:
			b, err := r.ReadBinary()
			if err != nil {
				return out, err
			}
			out.Name = string(b)
		case fh.ID == schemaElemNumChildren && fh.Type == thriftc.TypeI32:
			if out.NumChildren, err = r.ReadZigzag32(); err != nil {
				return out, err
			}
		default:
			if err := r.SkipValue(fh.Type); err != nil {
				return out, err
			}
		}
	}
}

func parseRowGroupList(r *thriftc.Reader) ([]RowGroupMeta, error) {
	size, elemType, err := r.ReadListHeader()
	if err != nil {
		return nil, fmt.Errorf("row group list: %w", err)
	}
	if elemType != thriftc.TypeStruct {
		return nil, fmt.Errorf("row group list: unexpected element type %d", elemType)
	}
	out := make([]RowGroupMeta, 0, size)
	for i := 0; i < size; i++ {
		rg, err := parseRowGroup(r)
		if err != nil {
			return nil, fmt.Errorf("row group %d: %w", i, err)
		}
		out = append(out, rg)
	}
	return out, nil
}

func parseRowGroup(r *thriftc.Reader) (RowGroupMeta, error) {
	r.PushStruct()
	defer r.PopStruct()
	var out RowGroupMeta
	for {
		fh, ok, err := r.ReadFieldHeader()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		switch {
		case fh.ID == rowGroupColumns && fh.Type == thriftc.TypeList:
			size, elemType, err := r.ReadListHeader()
			if err != nil {
				return out, err
			}
			if elemType != thriftc.TypeStruct {
				return out, fmt.Errorf("column list: unexpected element type %d", elemType)
			}
			out.Columns = make([]ColumnChunkMeta, 0, size)
			for i := 0; i < size; i++ {
				cc, err := parseColumnChunk(r)
				if err != nil {
					return out, fmt.Errorf("column chunk %d: %w", i, err)
				}
				out.Columns = append(out.Columns, cc)
			}
		case fh.ID == rowGroupTotalByteSize && fh.Type == thriftc.TypeI64:
			if out.TotalByteSize, err = r.ReadZigzag64(); err != nil {
				return out, err
			}
		case fh.ID == rowGroupNumRows && fh.Type == thriftc.TypeI64:
			if out.NumRows, err = r.ReadZigzag64(); err != nil {
				return out, err
			}
		default:
			if err := r.SkipValue(fh.Type); err != nil {
				return out, err
			}
		}
	}
}

// parseColumnChunk unwraps the ColumnChunk envelope and returns the
// nested ColumnMetaData as a value; the envelope's own fields
// (file_path, file_offset) are not needed.
func parseColumnChunk(r *thriftc.Reader) (ColumnChunkMeta, error) {
	r.PushStruct()
	defer r.PopStruct()
	var out ColumnChunkMeta
	for {
		fh, ok, err := r.ReadFieldHeader()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		if fh.ID == columnChunkMetaData && fh.Type == thriftc.TypeStruct {
			if out, err = parseColumnMetaData(r); err != nil {
				return out, err
			}
			continue
		}
		if err := r.SkipValue(fh.Type); err != nil {
			return out, err
		}
	}
}

func parseColumnMetaData(r *thriftc.Reader) (ColumnChunkMeta, error) {
	r.PushStruct()
	defer r.PopStruct()
	var out ColumnChunkMeta
	for {
		fh, ok, err := r.ReadFieldHeader()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		switch {
		case fh.ID == columnMetaType && fh.Type == thriftc.TypeI32:
			v, err := r.ReadZigzag32()
			if err != nil {
				return out, err
			}
			out.Type = PhysicalType(v)
		case fh.ID == columnMetaCodec && fh.Type == thriftc.TypeI32:
			v, err := r.ReadZigzag32()
			if err != nil {
				return out, err
			}
			out.Codec = CompressionCodec(v)
		case fh.ID == columnMetaNumValues && fh.Type == thriftc.TypeI64:
			if out.NumValues, err = r.ReadZigzag64(); err != nil {
				return out, err
			}
		case fh.ID == columnMetaUncompressedSize && fh.Type == thriftc.TypeI64:
			if out.TotalUncompressed, err = r.ReadZigzag64(); err != nil {
				return out, err
			}
		case fh.ID == columnMetaCompressedSize && fh.Type == thriftc.TypeI64:
			if out.TotalCompressed, err = r.ReadZigzag64(); err != nil {
				return out, err
			}
		case fh.ID == columnMetaDataPageOffset && fh.Type == thriftc.TypeI64:
			if out.DataPageOffset, err = r.ReadZigzag64(); err != nil {
				return out, err
			}
		case fh.ID == columnMetaDictPageOffset && fh.Type == thriftc.TypeI64:
			v, err := r.ReadZigzag64()
			if err != nil {
				return out, err
			}
			out.DictionaryPageOffset = &v
		default:
			if err := r.SkipValue(fh.Type); err != nil {
				return out, err
			}
		}
	}
}

// FindColumnIndex resolves a column name to its 0-based position among
// the leaf elements of the schema, which is also its index within every
// row group's column list. The root element is excluded. The second
// return is false when the column does not exist.
func FindColumnIndex(schema []SchemaElement, name string) (int, bool) {
	leaf := 0
	for i := 1; i < len(schema); i++ {
		if schema[i].NumChildren > 0 {
			continue
		}
		if schema[i].Name == name {
			return leaf, true
		}
		leaf++
	}
	return 0, false
}
