// Package msgpack implements a minimal decoder for the compact binary
// object format carried inside decrypted sync payloads. It covers the
// subset of tags the messaging service actually emits; anything outside
// that subset is a typed decode error, never a panic.
package msgpack

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// DecodeError reports malformed input at an exact byte offset.
type DecodeError struct {
	Offset int
	Tag    byte
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("msgpack: %s at offset %d (tag 0x%02x)", e.Reason, e.Offset, e.Tag)
}

// Decode parses a single value from data. Decoded values are one of:
// nil, bool, int64, float64, string, []byte, []any, or map[string]any.
// Map keys are normalized to strings so callers can probe nested fields
// uniformly regardless of how the producer encoded the key.
func Decode(data []byte) (any, error) {
	// Trailing bytes after a complete value are tolerated; some payloads
	// pad the tail. The first value wins.
	v, _, err := decodeValue(data, 0)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeLenient parses data and, when that fails, falls back to a
// portable text form of the raw bytes. Some sync payloads are legitimately
// opaque blobs; dropping them outright would lose diagnostics.
func DecodeLenient(data []byte) any {
	v, err := Decode(data)
	if err != nil {
		return base64.StdEncoding.EncodeToString(data)
	}
	return v
}

func decodeValue(data []byte, off int) (any, int, error) {
	if off >= len(data) {
		return nil, off, &DecodeError{Offset: off, Reason: "unexpected end of data"}
	}
	tag := data[off]
	off++

	switch {
	case tag <= 0x7f: // positive fixint
		return int64(tag), off, nil
	case tag >= 0xe0: // negative fixint
		return int64(int8(tag)), off, nil
	case tag >= 0xa0 && tag <= 0xbf: // fixstr
		return decodeStr(data, off, int(tag&0x1f), tag)
	case tag >= 0x90 && tag <= 0x9f: // fixarray
		return decodeArray(data, off, int(tag&0x0f))
	case tag >= 0x80 && tag <= 0x8f: // fixmap
		return decodeMap(data, off, int(tag&0x0f))
	}

	switch tag {
	case 0xc0:
		return nil, off, nil
	case 0xc2:
		return false, off, nil
	case 0xc3:
		return true, off, nil
	case 0xc4: // bin8
		n, off, err := readUint(data, off, 1, tag)
		if err != nil {
			return nil, off, err
		}
		return decodeBin(data, off, int(n), tag)
	case 0xc5: // bin16
		n, off, err := readUint(data, off, 2, tag)
		if err != nil {
			return nil, off, err
		}
		return decodeBin(data, off, int(n), tag)
	case 0xca: // float32
		if off+4 > len(data) {
			return nil, off, &DecodeError{Offset: off, Tag: tag, Reason: "truncated float32"}
		}
		bits := binary.BigEndian.Uint32(data[off:])
		return float64(math.Float32frombits(bits)), off + 4, nil
	case 0xcb: // float64
		if off+8 > len(data) {
			return nil, off, &DecodeError{Offset: off, Tag: tag, Reason: "truncated float64"}
		}
		bits := binary.BigEndian.Uint64(data[off:])
		return math.Float64frombits(bits), off + 8, nil
	case 0xcc, 0xcd, 0xce, 0xcf: // uint8..uint64
		width := 1 << (tag - 0xcc)
		n, off, err := readUint(data, off, width, tag)
		if err != nil {
			return nil, off, err
		}
		return int64(n), off, nil
	case 0xd0: // int8
		if off >= len(data) {
			return nil, off, &DecodeError{Offset: off, Tag: tag, Reason: "truncated int8"}
		}
		return int64(int8(data[off])), off + 1, nil
	case 0xd1: // int16
		if off+2 > len(data) {
			return nil, off, &DecodeError{Offset: off, Tag: tag, Reason: "truncated int16"}
		}
		return int64(int16(binary.BigEndian.Uint16(data[off:]))), off + 2, nil
	case 0xd2: // int32
		if off+4 > len(data) {
			return nil, off, &DecodeError{Offset: off, Tag: tag, Reason: "truncated int32"}
		}
		return int64(int32(binary.BigEndian.Uint32(data[off:]))), off + 4, nil
	case 0xd3: // int64
		if off+8 > len(data) {
			return nil, off, &DecodeError{Offset: off, Tag: tag, Reason: "truncated int64"}
		}
		return int64(binary.BigEndian.Uint64(data[off:])), off + 8, nil
	case 0xd9: // str8
		n, off, err := readUint(data, off, 1, tag)
		if err != nil {
			return nil, off, err
		}
		return decodeStr(data, off, int(n), tag)
	case 0xda: // str16
		n, off, err := readUint(data, off, 2, tag)
		if err != nil {
			return nil, off, err
		}
		return decodeStr(data, off, int(n), tag)
	case 0xdb: // str32
		n, off, err := readUint(data, off, 4, tag)
		if err != nil {
			return nil, off, err
		}
		return decodeStr(data, off, int(n), tag)
	case 0xdc: // array16
		n, off, err := readUint(data, off, 2, tag)
		if err != nil {
			return nil, off, err
		}
		return decodeArray(data, off, int(n))
	case 0xde: // map16
		n, off, err := readUint(data, off, 2, tag)
		if err != nil {
			return nil, off, err
		}
		return decodeMap(data, off, int(n))
	}

	return nil, off - 1, &DecodeError{Offset: off - 1, Tag: tag, Reason: "unsupported tag"}
}

func readUint(data []byte, off, width int, tag byte) (uint64, int, error) {
	if off+width > len(data) {
		return 0, off, &DecodeError{Offset: off, Tag: tag, Reason: "truncated length prefix"}
	}
	var n uint64
	for i := 0; i < width; i++ {
		n = n<<8 | uint64(data[off+i])
	}
	return n, off + width, nil
}

func decodeStr(data []byte, off, length int, tag byte) (any, int, error) {
	if length < 0 || off+length > len(data) {
		return nil, off, &DecodeError{Offset: off, Tag: tag, Reason: "truncated string"}
	}
	return string(data[off : off+length]), off + length, nil
}

func decodeBin(data []byte, off, length int, tag byte) (any, int, error) {
	if length < 0 || off+length > len(data) {
		return nil, off, &DecodeError{Offset: off, Tag: tag, Reason: "truncated binary"}
	}
	out := make([]byte, length)
	copy(out, data[off:off+length])
	return out, off + length, nil
}

func decodeArray(data []byte, off, count int) (any, int, error) {
	arr := make([]any, 0, count)
	for i := 0; i < count; i++ {
		v, next, err := decodeValue(data, off)
		if err != nil {
			return nil, next, err
		}
		arr = append(arr, v)
		off = next
	}
	return arr, off, nil
}

func decodeMap(data []byte, off, count int) (any, int, error) {
	m := make(map[string]any, count)
	for i := 0; i < count; i++ {
		k, next, err := decodeValue(data, off)
		if err != nil {
			return nil, next, err
		}
		off = next
		v, next, err := decodeValue(data, off)
		if err != nil {
			return nil, next, err
		}
		off = next
		m[mapKey(k)] = v
	}
	return m, off, nil
}

// mapKey renders a decoded key as a string. The service mixes string and
// integer keys for the same logical field, so both "1" and 1 must land on
// the "1" entry.
func mapKey(k any) string {
	switch v := k.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
