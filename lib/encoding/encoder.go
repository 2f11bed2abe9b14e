// Package encoding encodes persisted storage values.
//
// Values are packed with msgpack inside a one-field envelope so any value a
// page script can produce (nil, bools, numbers, strings, lists and string
// keyed maps) survives the round trip. The packed bytes are then either:
//   - Signed (default): Base64 + HMAC signature - readable but tamper-proof
//   - Encrypted: AES-256-GCM - fully opaque
package encoding

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrInvalidFormat    = errors.New("encoding: invalid format")
	ErrSignatureInvalid = errors.New("encoding: signature verification failed")
	ErrDecryptFailed    = errors.New("encoding: decryption failed")
)

// Encoder encodes and decodes storage values under one key.
type Encoder struct {
	key []byte
	gcm cipher.AEAD
}

// NewEncoder creates a new encoder with the given key.
// Keys shorter than 32 bytes are stretched with SHA-256.
func NewEncoder(key []byte) (*Encoder, error) {
	if len(key) < 32 {
		h := sha256.Sum256(key)
		key = h[:]
	}

	block, err := aes.NewCipher(key[:32])
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Encoder{
		key: key,
		gcm: gcm,
	}, nil
}

type envelope struct {
	Value any `msgpack:"v"`
}

type rawEnvelope struct {
	Value msgpack.RawMessage `msgpack:"v"`
}

// Encode serializes v. If sensitive is true the result is encrypted,
// otherwise it is signed.
func (e *Encoder) Encode(v any, sensitive bool) (string, error) {
	packed, err := msgpack.Marshal(envelope{Value: v})
	if err != nil {
		return "", fmt.Errorf("encoding: marshal: %w", err)
	}

	if sensitive {
		return e.encrypt(packed)
	}
	return e.sign(packed), nil
}

// Decode verifies (or decrypts) encoded and returns the value it holds.
// Integers come back as int64, floats as float64 and maps as
// map[string]any, whatever width they were written with.
func (e *Encoder) Decode(encoded string, sensitive bool) (any, error) {
	packed, err := e.open(encoded, sensitive)
	if err != nil {
		return nil, err
	}

	dec := msgpack.NewDecoder(bytes.NewReader(packed))
	dec.UseLooseInterfaceDecoding(true)
	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return normalize(env.Value), nil
}

// DecodeInto decodes the stored value into dst, which must be a pointer.
func (e *Encoder) DecodeInto(encoded string, sensitive bool, dst any) error {
	packed, err := e.open(encoded, sensitive)
	if err != nil {
		return err
	}

	var env rawEnvelope
	if err := msgpack.Unmarshal(packed, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if err := msgpack.Unmarshal(env.Value, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return nil
}

func (e *Encoder) open(encoded string, sensitive bool) ([]byte, error) {
	if sensitive {
		return e.decrypt(encoded)
	}
	return e.verify(encoded)
}

func normalize(v any) any {
	switch v := v.(type) {
	case uint64:
		if v <= math.MaxInt64 {
			return int64(v)
		}
		return v
	case []any:
		for i := range v {
			v[i] = normalize(v[i])
		}
		return v
	case map[string]any:
		for k, val := range v {
			v[k] = normalize(val)
		}
		return v
	}
	return v
}

// sign creates a signed (but visible) encoding: base64.signature
func (e *Encoder) sign(data []byte) string {
	b64 := base64.RawURLEncoding.EncodeToString(data)
	mac := hmac.New(sha256.New, e.key)
	mac.Write(data)
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil)[:16]) // 16 bytes = 128 bits
	return b64 + "." + sig
}

// verify verifies and decodes a signed string
func (e *Encoder) verify(encoded string) ([]byte, error) {
	b64, sig64, ok := strings.Cut(encoded, ".")
	if !ok {
		return nil, ErrInvalidFormat
	}

	data, err := base64.RawURLEncoding.DecodeString(b64)
	if err != nil {
		return nil, ErrInvalidFormat
	}

	sig, err := base64.RawURLEncoding.DecodeString(sig64)
	if err != nil {
		return nil, ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, e.key)
	mac.Write(data)
	expected := mac.Sum(nil)[:16]

	if !hmac.Equal(sig, expected) {
		return nil, ErrSignatureInvalid
	}

	return data, nil
}

// encrypt creates an encrypted encoding using AES-256-GCM
func (e *Encoder) encrypt(data []byte) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ciphertext := e.gcm.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

// decrypt decodes and decrypts an encrypted string
func (e *Encoder) decrypt(encoded string) ([]byte, error) {
	ciphertext, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrDecryptFailed
	}

	if len(ciphertext) < e.gcm.NonceSize() {
		return nil, ErrDecryptFailed
	}

	nonce := ciphertext[:e.gcm.NonceSize()]
	ciphertext = ciphertext[e.gcm.NonceSize():]

	data, err := e.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return data, nil
}
