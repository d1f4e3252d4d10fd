// Package thriftc implements the subset of the Thrift Compact Protocol
// needed to decode Parquet file footers and page headers: varint and
// zigzag integers, binary blobs, field headers with delta-encoded ids,
// and a generic skip for values of any type.
package thriftc

import (
	"errors"
	"fmt"
)

// Compact protocol type ids as they appear in field and element headers.
type Type byte

const (
	TypeStop         Type = 0
	TypeBooleanTrue  Type = 1
	TypeBooleanFalse Type = 2
	TypeByte         Type = 3
	TypeI16          Type = 4
	TypeI32          Type = 5
	TypeI64          Type = 6
	TypeDouble       Type = 7
	TypeBinary       Type = 8
	TypeList         Type = 9
	TypeSet          Type = 10
	TypeMap          Type = 11
	TypeStruct       Type = 12
)

var (
	ErrEndOfBuffer   = errors.New("thriftc: unexpected end of buffer")
	ErrVarintTooLong = errors.New("thriftc: varint exceeds 10 bytes")
	ErrUnknownType   = errors.New("thriftc: unknown type id")
)

// FieldHeader identifies one field of a compact-protocol struct.
type FieldHeader struct {
	ID   int16
	Type Type
}

// Reader is a cursor over an in-memory compact-protocol byte slice. It is
// created per parse (footer or page header), is not safe for concurrent
// use, and does not copy the data it reads from.
type Reader struct {
	data        []byte
	pos         int
	lastFieldID int16
	fieldStack  []int16
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Pos returns the current cursor position.
func (r *Reader) Pos() int { return r.pos }

// Remaining returns the bytes after the cursor without advancing it.
func (r *Reader) Remaining() []byte { return r.data[r.pos:] }

func (r *Reader) readByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrEndOfBuffer
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *Reader) skip(n int) error {
	if n < 0 || r.pos+n > len(r.data) {
		return ErrEndOfBuffer
	}
	r.pos += n
	return nil
}

// ReadVarint reads a little-endian base-128 varint: 7 payload bits per
// byte, high bit set on all but the last byte.
func (r *Reader) ReadVarint() (uint64, error) {
	var res uint64
	var shift uint
	for {
		b, err := r.readByte()
		if err != nil {
			return 0, err
		}
		res |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			return res, nil
		}
		shift += 7
		if shift > 63 {
			return 0, ErrVarintTooLong
		}
	}
}

func zigzag(n uint64) int64 {
	return int64(n>>1) ^ -int64(n&1)
}

// ReadZigzag16 reads a zigzag-encoded varint as an int16 field id.
func (r *Reader) ReadZigzag16() (int16, error) {
	n, err := r.ReadVarint()
	if err != nil {
		return 0, err
	}
	return int16(zigzag(n)), nil
}

func (r *Reader) ReadZigzag32() (int32, error) {
	n, err := r.ReadVarint()
	if err != nil {
		return 0, err
	}
	return int32(zigzag(n)), nil
}

func (r *Reader) ReadZigzag64() (int64, error) {
	n, err := r.ReadVarint()
	if err != nil {
		return 0, err
	}
	return zigzag(n), nil
}

// ReadBinary reads a varint length prefix followed by that many raw
// bytes. The returned slice aliases the reader's underlying data.
func (r *Reader) ReadBinary() ([]byte, error) {
	n, err := r.ReadVarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(r.data)-r.pos) {
		return nil, ErrEndOfBuffer
	}
	out := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return out, nil
}

// ReadFieldHeader reads the next field header of the current struct.
// It returns ok=false on the STOP byte. Field ids are deltas from the
// previous field of the same struct; a zero delta nibble means an
// explicit zigzag-i16 id follows.
func (r *Reader) ReadFieldHeader() (FieldHeader, bool, error) {
	b, err := r.readByte()
	if err != nil {
		return FieldHeader{}, false, err
	}
	if b == 0 {
		return FieldHeader{}, false, nil
	}
	typeID := Type(b & 0x0F)
	delta := int16(b >> 4)
	if delta != 0 {
		r.lastFieldID += delta
	} else {
		id, err := r.ReadZigzag16()
		if err != nil {
			return FieldHeader{}, false, err
		}
		r.lastFieldID = id
	}
	return FieldHeader{ID: r.lastFieldID, Type: typeID}, true, nil
}

// PushStruct saves the running field-id state before descending into a
// nested struct; field-id deltas are relative to the enclosing struct.
func (r *Reader) PushStruct() {
	r.fieldStack = append(r.fieldStack, r.lastFieldID)
	r.lastFieldID = 0
}

// PopStruct restores the field-id state saved by the matching PushStruct.
func (r *Reader) PopStruct() {
	n := len(r.fieldStack) - 1
	r.lastFieldID = r.fieldStack[n]
	r.fieldStack = r.fieldStack[:n]
}

// SkipValue skips one value of the given type. Unknown field ids in the
// footer are skipped through this so that new optional Parquet metadata
// does not break parsing. Booleans at field position carry their value in
// the type nibble and occupy no further bytes.
func (r *Reader) SkipValue(typeID Type) error {
	switch typeID {
	case TypeBooleanTrue, TypeBooleanFalse:
		return nil
	case TypeByte:
		return r.skip(1)
	case TypeI16, TypeI32, TypeI64:
		_, err := r.ReadVarint()
		return err
	case TypeDouble:
		return r.skip(8)
	case TypeBinary:
		_, err := r.ReadBinary()
		return err
	case TypeList, TypeSet:
		size, elemType, err := r.ReadListHeader()
		if err != nil {
			return err
		}
		return r.skipElements(size, elemType)
	case TypeMap:
		size, keyType, valType, err := r.readMapHeader()
		if err != nil {
			return err
		}
		for i := 0; i < size; i++ {
			if err := r.skipElement(keyType); err != nil {
				return err
			}
			if err := r.skipElement(valType); err != nil {
				return err
			}
		}
		return nil
	case TypeStruct:
		r.PushStruct()
		defer r.PopStruct()
		for {
			fh, ok, err := r.ReadFieldHeader()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if err := r.SkipValue(fh.Type); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownType, typeID)
	}
}

// ReadListHeader reads a list or set header: a 4-bit size with the
// element type in the low nibble, the size 0x0F escaping to a trailing
// varint for lists of 15 or more elements.
func (r *Reader) ReadListHeader() (int, Type, error) {
	b, err := r.readByte()
	if err != nil {
		return 0, 0, err
	}
	elemType := Type(b & 0x0F)
	size := int(b >> 4)
	if size == 0x0F {
		n, err := r.ReadVarint()
		if err != nil {
			return 0, 0, err
		}
		size = int(n)
	}
	return size, elemType, nil
}

func (r *Reader) readMapHeader() (int, Type, Type, error) {
	n, err := r.ReadVarint()
	if err != nil {
		return 0, 0, 0, err
	}
	if n == 0 {
		return 0, 0, 0, nil
	}
	b, err := r.readByte()
	if err != nil {
		return 0, 0, 0, err
	}
	return int(n), Type(b >> 4), Type(b & 0x0F), nil
}

func (r *Reader) skipElements(size int, elemType Type) error {
	for i := 0; i < size; i++ {
		if err := r.skipElement(elemType); err != nil {
			return err
		}
	}
	return nil
}

// skipElement skips one collection element. Unlike struct fields,
// booleans inside collections occupy a full byte.
func (r *Reader) skipElement(typeID Type) error {
	switch typeID {
	case TypeBooleanTrue, TypeBooleanFalse:
		return r.skip(1)
	default:
		return r.SkipValue(typeID)
	}
}
