package encoding

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewEncoder(t *testing.T) {
	// Should work with any key length (derives 32-byte key)
	_, err := NewEncoder([]byte("short"))
	if err != nil {
		t.Fatalf("NewEncoder with short key failed: %v", err)
	}

	_, err = NewEncoder([]byte("this-is-a-32-byte-key-for-aes!!!"))
	if err != nil {
		t.Fatalf("NewEncoder with 32-byte key failed: %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	enc, err := NewEncoder([]byte("test-key"))
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	tests := []struct {
		name  string
		value any
		want  any
	}{
		{"nil", nil, nil},
		{"string", "hello", "hello"},
		{"bool", true, true},
		{"small int", int64(3), int64(3)},
		{"large int", int64(1 << 40), int64(1 << 40)},
		{"negative int", -7, int64(-7)},
		{"float", 1.25, 1.25},
		{"list", []any{"a", int64(1)}, []any{"a", int64(1)}},
		{"map", map[string]any{"user": map[string]any{"name": "Ada"}}, map[string]any{"user": map[string]any{"name": "Ada"}}},
	}

	for _, sensitive := range []bool{false, true} {
		for _, tt := range tests {
			encoded, err := enc.Encode(tt.value, sensitive)
			if err != nil {
				t.Fatalf("%s: Encode failed: %v", tt.name, err)
			}
			got, err := enc.Decode(encoded, sensitive)
			if err != nil {
				t.Fatalf("%s: Decode failed: %v", tt.name, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("%s (sensitive=%v): got %#v, want %#v", tt.name, sensitive, got, tt.want)
			}
		}
	}
}

func TestDecodeInto(t *testing.T) {
	enc, err := NewEncoder([]byte("test-key"))
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	type session struct {
		ID   int64
		Name string
	}

	encoded, err := enc.Encode(session{ID: 12345, Name: "test"}, true)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var decoded session
	if err := enc.DecodeInto(encoded, true, &decoded); err != nil {
		t.Fatalf("DecodeInto failed: %v", err)
	}
	if decoded.ID != 12345 || decoded.Name != "test" {
		t.Errorf("decoded = %+v, want {ID:12345 Name:test}", decoded)
	}
}

func TestSignatureVerificationFailure(t *testing.T) {
	enc, err := NewEncoder([]byte("test-key"))
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	encoded, err := enc.Encode("value", false)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// Tamper with the signature
	tampered := encoded[:len(encoded)-2] + "XX"

	_, err = enc.Decode(tampered, false)
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("Decode(tampered) error = %v, want ErrSignatureInvalid", err)
	}
}

func TestDecryptionFailure(t *testing.T) {
	enc, err := NewEncoder([]byte("test-key"))
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	encoded, err := enc.Encode("secret", true)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	tampered := encoded[:len(encoded)-2] + "XX"

	_, err = enc.Decode(tampered, true)
	if !errors.Is(err, ErrDecryptFailed) {
		t.Errorf("Decode(tampered) error = %v, want ErrDecryptFailed", err)
	}
}

func TestInvalidFormat(t *testing.T) {
	enc, err := NewEncoder([]byte("test-key"))
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	// Missing signature separator
	_, err = enc.Decode("invalidbase64withoutseparator", false)
	if !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("Decode error = %v, want ErrInvalidFormat", err)
	}
}

func TestDifferentKeysCannotDecode(t *testing.T) {
	enc1, _ := NewEncoder([]byte("key-one"))
	enc2, _ := NewEncoder([]byte("key-two"))

	encoded, err := enc1.Encode("value", false)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if _, err := enc2.Decode(encoded, false); err == nil {
		t.Error("Expected error when decoding with different key")
	}
}
