package msgpack

import (
	"encoding/base64"
	"errors"
	"reflect"
	"testing"
)

func TestDecodeScalars(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want any
	}{
		{"positive fixint", []byte{0x05}, int64(5)},
		{"positive fixint max", []byte{0x7f}, int64(127)},
		{"negative fixint", []byte{0xff}, int64(-1)},
		{"negative fixint min", []byte{0xe0}, int64(-32)},
		{"nil", []byte{0xc0}, nil},
		{"false", []byte{0xc2}, false},
		{"true", []byte{0xc3}, true},
		{"fixstr", []byte{0xa3, 'a', 'b', 'c'}, "abc"},
		{"empty fixstr", []byte{0xa0}, ""},
		{"str8", []byte{0xd9, 0x02, 'h', 'i'}, "hi"},
		{"uint8", []byte{0xcc, 0xfe}, int64(254)},
		{"uint16", []byte{0xcd, 0x01, 0x00}, int64(256)},
		{"int8", []byte{0xd0, 0xff}, int64(-1)},
		{"int32", []byte{0xd2, 0xff, 0xff, 0xff, 0x9c}, int64(-100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.data)
			if err != nil {
				t.Fatalf("Decode(%v) error: %v", tt.data, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Decode(%v) = %v, want %v", tt.data, got, tt.want)
			}
		})
	}
}

func TestDecodeArray(t *testing.T) {
	got, err := Decode([]byte{0x92, 0x01, 0x02})
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	want := []any{int64(1), int64(2)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Decode = %v, want %v", got, want)
	}
}

func TestDecodeMap(t *testing.T) {
	got, err := Decode([]byte{0x81, 0x01, 0x02})
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	// Integer keys are normalized to their base-10 string form.
	want := map[string]any{"1": int64(2)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Decode = %v, want %v", got, want)
	}
}

func TestDecodeNested(t *testing.T) {
	// {"1": {"10": "msg"}, "3": [true, nil]}
	data := []byte{
		0x82,
		0xa1, '1', 0x81, 0xa2, '1', '0', 0xa3, 'm', 's', 'g',
		0xa1, '3', 0x92, 0xc3, 0xc0,
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	want := map[string]any{
		"1": map[string]any{"10": "msg"},
		"3": []any{true, nil},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Decode = %v, want %v", got, want)
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty input", nil},
		{"truncated fixstr", []byte{0xa5, 'a'}},
		{"truncated array element", []byte{0x92, 0x01}},
		{"truncated map value", []byte{0x81, 0x01}},
		{"truncated length prefix", []byte{0xd9}},
		{"unsupported tag", []byte{0xc7, 0x00}},
		{"truncated int64", []byte{0xd3, 0x00, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if err == nil {
				t.Fatalf("Decode(%v) expected error", tt.data)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Errorf("Decode(%v) error type %T, want *DecodeError", tt.data, err)
			}
		})
	}
}

func TestDecodeErrorOffset(t *testing.T) {
	// fixarray of 2: first element ok, second missing. The error should
	// point at the byte after the last consumed one.
	_, err := Decode([]byte{0x92, 0x01})
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
	if de.Offset != 2 {
		t.Errorf("Offset = %d, want 2", de.Offset)
	}
}

func TestDecodeLenientFallback(t *testing.T) {
	raw := []byte{0xc7, 0xde, 0xad}
	got := DecodeLenient(raw)
	want := base64.StdEncoding.EncodeToString(raw)
	if got != want {
		t.Errorf("DecodeLenient = %v, want %v", got, want)
	}

	// Same input must always produce the same fallback.
	if again := DecodeLenient(raw); again != got {
		t.Errorf("DecodeLenient not deterministic: %v vs %v", got, again)
	}
}

func TestDecodeLenientValid(t *testing.T) {
	got := DecodeLenient([]byte{0x05})
	if got != int64(5) {
		t.Errorf("DecodeLenient = %v, want 5", got)
	}
}
