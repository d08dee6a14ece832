package driftwood

import (
	"fmt"
	"strconv"
)

// Dtype describes the element type of a variable, following the NumPy array
// protocol type string (typestr) format. The format consists of 3 parts:
//   - One character describing the byte order of the data:
//     "<": little-endian; ">": big-endian; "|": not relevant
//   - One character code giving the basic type:
//     "f": floating point; "i": integer; "u": unsigned integer;
//     "S": string (fixed-length sequence of bytes)
//   - An integer giving the number of bytes one element uses.
//
// Container payloads are always written little-endian; ">" parses but is
// rejected by the container reader.
type Dtype struct {
	ByteOrder ByteOrder
	BasicType BasicType
	ByteSize  int
}

// ByteOrder is the single-character byte order code.
type ByteOrder rune

// Byte order codes.
const (
	LittleEndian ByteOrder = '<'
	BigEndian    ByteOrder = '>'
	NoOrder      ByteOrder = '|'
)

var byteOrders = map[ByteOrder]struct{}{
	LittleEndian: {},
	BigEndian:    {},
	NoOrder:      {},
}

// ParseByteOrder parses a byte order code rune.
func ParseByteOrder(r rune) (ByteOrder, error) {
	o := ByteOrder(r)
	if _, ok := byteOrders[o]; !ok {
		return o, fmt.Errorf("driftwood: unsupported byte order: %q", r)
	}
	return o, nil
}

// BasicType is the single-character basic type code.
type BasicType rune

// Basic type codes. The container format supports the subset of typestr
// codes that trajectory datasets actually use.
const (
	TypeFloat    BasicType = 'f'
	TypeInt      BasicType = 'i'
	TypeUnsigned BasicType = 'u'
	TypeString   BasicType = 'S'
)

var basicTypes = map[BasicType]struct{}{
	TypeFloat:    {},
	TypeInt:      {},
	TypeUnsigned: {},
	TypeString:   {},
}

// ParseBasicType parses a basic type code rune.
func ParseBasicType(r rune) (BasicType, error) {
	t := BasicType(r)
	if _, ok := basicTypes[t]; !ok {
		return t, fmt.Errorf("driftwood: unsupported basic type: %q", r)
	}
	return t, nil
}

// Common dtypes for trajectory datasets.
var (
	Float32 = Dtype{LittleEndian, TypeFloat, 4}
	Float64 = Dtype{LittleEndian, TypeFloat, 8}
	Int32   = Dtype{LittleEndian, TypeInt, 4}
	Int64   = Dtype{LittleEndian, TypeInt, 8}
	Uint8   = Dtype{NoOrder, TypeUnsigned, 1}
)

// Bytes returns a fixed-length byte string dtype of n bytes. Values shorter
// than n are NUL-padded on encode.
func Bytes(n int) Dtype {
	return Dtype{NoOrder, TypeString, n}
}

// ParseDtype parses a typestr such as "<f4" or "|S32".
func ParseDtype(s string) (dt Dtype, err error) {
	if len(s) < 3 {
		return dt, fmt.Errorf("driftwood: invalid dtype string: %q is too short", s)
	}

	boByte, s := s[0], s[1:]
	dt.ByteOrder, err = ParseByteOrder(rune(boByte))
	if err != nil {
		return dt, err
	}

	typeByte, s := s[0], s[1:]
	dt.BasicType, err = ParseBasicType(rune(typeByte))
	if err != nil {
		return dt, err
	}

	size, err := strconv.ParseInt(s, 10, 0)
	if err != nil {
		return dt, fmt.Errorf("driftwood: invalid dtype byte size %q: %w", s, err)
	}
	if size < 1 {
		return dt, fmt.Errorf("driftwood: dtype byte size must be positive, got %d", size)
	}
	dt.ByteSize = int(size)

	switch dt.BasicType {
	case TypeFloat:
		if dt.ByteSize != 4 && dt.ByteSize != 8 {
			return dt, fmt.Errorf("driftwood: float dtype must be 4 or 8 bytes, got %d", dt.ByteSize)
		}
	case TypeInt, TypeUnsigned:
		switch dt.ByteSize {
		case 1, 2, 4, 8:
		default:
			return dt, fmt.Errorf("driftwood: integer dtype must be 1, 2, 4 or 8 bytes, got %d", dt.ByteSize)
		}
	}

	return dt, nil
}

func (dt Dtype) String() string {
	return fmt.Sprintf("%s%s%d", string(dt.ByteOrder), string(dt.BasicType), dt.ByteSize)
}

// Compatible reports whether a variable of dtype other can satisfy a schema
// entry declared with dtype dt. Basic types must match; widths may differ
// (a dataset storing doubles satisfies an entry declared as float32).
func (dt Dtype) Compatible(other Dtype) bool {
	return dt.BasicType == other.BasicType
}

// MarshalJSON encodes the dtype as its typestr.
func (dt Dtype) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(dt.String())), nil
}

// UnmarshalJSON decodes a typestr.
func (dt *Dtype) UnmarshalJSON(d []byte) error {
	s, err := strconv.Unquote(string(d))
	if err != nil {
		return fmt.Errorf("driftwood: dtype must be a JSON string: %w", err)
	}
	t, err := ParseDtype(s)
	if err != nil {
		return err
	}
	*dt = t
	return nil
}
