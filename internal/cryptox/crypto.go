// Package cryptox implements the at-rest encryption used for local drafts:
// AES-256-GCM over the JSON encoding of a value, keyed by a passphrase
// derived key.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// CiphertextPrefix marks values produced by AESCipher.Encrypt. Anything
// without it is treated as legacy plaintext.
const CiphertextPrefix = "enc:v1:"

const nonceSize = 12

var (
	ErrInvalidKey        = errors.New("invalid key length")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

// DeriveMasterKey stretches a passphrase into a 32-byte key with Argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// EncryptEntry serializes entry to JSON and seals it with AES-GCM under key.
// A fresh 12-byte nonce is generated per call and returned separately.
func EncryptEntry(entry any, key []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(entry)
	if err != nil {
		return nil, nil, err
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	return aesgcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// DecryptEntry opens ciphertext with key and nonce and unmarshals the JSON
// into v.
func DecryptEntry(ciphertext, nonce, key []byte, v any) error {
	aesgcm, err := newGCM(key)
	if err != nil {
		return err
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return err
	}

	return json.Unmarshal(plaintext, v)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// AESCipher turns JSON-serializable values into self-describing ciphertext
// strings of the form "enc:v1:<base64(nonce||sealed)>".
type AESCipher struct {
	key []byte
}

// NewAESCipher copies key; it must be 16, 24 or 32 bytes long.
func NewAESCipher(key []byte) (*AESCipher, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, ErrInvalidKey
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &AESCipher{key: k}, nil
}

func (c *AESCipher) Encrypt(v any) (string, error) {
	ct, nonce, err := EncryptEntry(v, c.key)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	buf := make([]byte, 0, len(nonce)+len(ct))
	buf = append(buf, nonce...)
	buf = append(buf, ct...)
	return CiphertextPrefix + base64.StdEncoding.EncodeToString(buf), nil
}

func (c *AESCipher) Decrypt(s string, v any) error {
	if !IsEncrypted(s) {
		return ErrInvalidCiphertext
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, CiphertextPrefix))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	if len(raw) <= nonceSize {
		return ErrInvalidCiphertext
	}
	if err := DecryptEntry(raw[nonceSize:], raw[:nonceSize], c.key, v); err != nil {
		return fmt.Errorf("decrypt: %w", err)
	}
	return nil
}

func (c *AESCipher) IsEncrypted(s string) bool {
	return IsEncrypted(s)
}

// IsEncrypted reports whether s carries the ciphertext prefix.
func IsEncrypted(s string) bool {
	return strings.HasPrefix(s, CiphertextPrefix)
}
