package parquet

import (
	"fmt"

	"github.com/go-mizu/ptext/thriftc"
)

const (
	pageHeaderType             = 1
	pageHeaderUncompressedSize = 2
	pageHeaderCompressedSize   = 3
	pageHeaderDataPage         = 5
	pageHeaderDictionaryPage   = 7
	pageHeaderDataPageV2       = 8

	dataPageNumValues     = 1
	dataPageEncoding      = 2
	dataPageDefLevelEnc   = 3
	dataPageRepLevelEnc   = 4
	dictPageNumValues     = 1
	dictPageEncoding      = 2
	dataPageV2NumValues   = 1
	dataPageV2NumNulls    = 2
	dataPageV2NumRows     = 3
	dataPageV2Encoding    = 4
	dataPageV2DefLevelLen = 5
	dataPageV2RepLevelLen = 6
	dataPageV2Compressed  = 7
)

// ParsePageHeader decodes the page header at the reader's cursor,
// leaving the cursor at the first byte of the page body.
func ParsePageHeader(r *thriftc.Reader) (*PageHeader, error) {
	h := &PageHeader{}
	for {
		fh, ok, err := r.ReadFieldHeader()
		if err != nil {
			return nil, fmt.Errorf("page header: %w", err)
		}
		if !ok {
			return h, nil
		}
		switch {
		case fh.ID == pageHeaderType && fh.Type == thriftc.TypeI32:
			v, err := r.ReadZigzag32()
			if err != nil {
				return nil, err
			}
			h.Type = PageType(v)
		case fh.ID == pageHeaderUncompressedSize && fh.Type == thriftc.TypeI32:
			if h.UncompressedSize, err = r.ReadZigzag32(); err != nil {
				return nil, err
			}
		case fh.ID == pageHeaderCompressedSize && fh.Type == thriftc.TypeI32:
			if h.CompressedSize, err = r.ReadZigzag32(); err != nil {
				return nil, err
			}
		case fh.ID == pageHeaderDataPage && fh.Type == thriftc.TypeStruct:
			if h.DataPage, err = parseDataPageHeader(r); err != nil {
				return nil, fmt.Errorf("data page header: %w", err)
			}
		case fh.ID == pageHeaderDictionaryPage && fh.Type == thriftc.TypeStruct:
			if h.DictionaryPage, err = parseDictionaryPageHeader(r); err != nil {
				return nil, fmt.Errorf("dictionary page header: %w", err)
			}
		case fh.ID == pageHeaderDataPageV2 && fh.Type == thriftc.TypeStruct:
			if h.DataPageV2, err = parseDataPageHeaderV2(r); err != nil {
				return nil, fmt.Errorf("data page v2 header: %w", err)
			}
		default:
			if err := r.SkipValue(fh.Type); err != nil {
				return nil, fmt.Errorf("page header field %d: %w", fh.ID, err)
			}
		}
	}
}

func parseDataPageHeader(r *thriftc.Reader) (*DataPageHeader, error) {
	r.PushStruct()
	defer r.PopStruct()
	h := &DataPageHeader{}
	for {
		fh, ok, err := r.ReadFieldHeader()
		if err != nil {
			return nil, err
		}
		if !ok {
			return h, nil
		}
		if fh.Type != thriftc.TypeI32 {
			if err := r.SkipValue(fh.Type); err != nil {
				return nil, err
			}
			continue
		}
		v, err := r.ReadZigzag32()
		if err != nil {
			return nil, err
		}
		switch fh.ID {
		case dataPageNumValues:
			h.NumValues = v
		case dataPageEncoding:
			h.Encoding = Encoding(v)
		case dataPageDefLevelEnc:
			h.DefinitionLevelEncoding = Encoding(v)
		case dataPageRepLevelEnc:
			h.RepetitionLevelEncoding = Encoding(v)
		}
	}
}

func parseDictionaryPageHeader(r *thriftc.Reader) (*DictionaryPageHeader, error) {
	r.PushStruct()
	defer r.PopStruct()
	h := &DictionaryPageHeader{}
	for {
		fh, ok, err := r.ReadFieldHeader()
		if err != nil {
			return nil, err
		}
		if !ok {
			return h, nil
		}
		switch {
		case fh.ID == dictPageNumValues && fh.Type == thriftc.TypeI32:
			if h.NumValues, err = r.ReadZigzag32(); err != nil {
				return nil, err
			}
		case fh.ID == dictPageEncoding && fh.Type == thriftc.TypeI32:
			v, err := r.ReadZigzag32()
			if err != nil {
				return nil, err
			}
			h.Encoding = Encoding(v)
		default:
			if err := r.SkipValue(fh.Type); err != nil {
				return nil, err
			}
		}
	}
}

func parseDataPageHeaderV2(r *thriftc.Reader) (*DataPageHeaderV2, error) {
	r.PushStruct()
	defer r.PopStruct()
	// is_compressed defaults to true when the writer omits it.
	h := &DataPageHeaderV2{IsCompressed: true}
	for {
		fh, ok, err := r.ReadFieldHeader()
		if err != nil {
			return nil, err
		}
		if !ok {
			return h, nil
		}
		if fh.ID == dataPageV2Compressed {
			switch fh.Type {
			case thriftc.TypeBooleanTrue:
				h.IsCompressed = true
			case thriftc.TypeBooleanFalse:
				h.IsCompressed = false
			default:
				if err := r.SkipValue(fh.Type); err != nil {
					return nil, err
				}
			}
			continue
		}
		if fh.Type != thriftc.TypeI32 {
			if err := r.SkipValue(fh.Type); err != nil {
				return nil, err
			}
			continue
		}
		v, err := r.ReadZigzag32()
		if err != nil {
			return nil, err
		}
		switch fh.ID {
		case dataPageV2NumValues:
			h.NumValues = v
		case dataPageV2NumNulls:
			h.NumNulls = v
		case dataPageV2NumRows:
			h.NumRows = v
		case dataPageV2Encoding:
			h.Encoding = Encoding(v)
		case dataPageV2DefLevelLen:
			h.DefinitionLevelsLength = v
		case dataPageV2RepLevelLen:
			h.RepetitionLevelsLength = v
		}
	}
}
