package cipher

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

// Secretbox implements the Cipher interface with XSalsa20 and Poly1305. The
// token is the random nonce followed by the sealed box, URL safe base64
// encoded.
type Secretbox struct{}

// Scheme returns the scheme name.
func (Secretbox) Scheme() string {
	return SchemeSecretbox
}

// GenerateKey returns a new random key.
func (Secretbox) GenerateKey() (Key, error) {
	var k [keySize]byte
	if _, err := io.ReadFull(rand.Reader, k[:]); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}

	return Key(base64.URLEncoding.EncodeToString(k[:])), nil
}

// Encrypt seals the data under a fresh nonce.
func (Secretbox) Encrypt(data []byte, key Key, _ time.Time) (string, error) {
	k, err := decodeKey(key)
	if err != nil {
		return "", err
	}

	// Random 192-bit nonce per message.
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	box := secretbox.Seal(nonce[:], data, &nonce, k)

	return base64.URLEncoding.EncodeToString(box), nil
}

// Decrypt opens the token and authenticates it against the key.
func (Secretbox) Decrypt(token string, key Key) ([]byte, error) {
	k, err := decodeKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}

	box, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: decode token: %w", ErrDecryption, err)
	}

	if len(box) < nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("%w: token too short", ErrDecryption)
	}

	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])

	data, ok := secretbox.Open(nil, box[nonceSize:], &nonce, k)
	if !ok {
		return nil, ErrDecryption
	}

	if data == nil {
		data = []byte{}
	}

	return data, nil
}

// decodeKey converts the encoded key back into its raw form.
func decodeKey(key Key) (*[keySize]byte, error) {
	raw, err := base64.URLEncoding.DecodeString(string(key))
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}

	if len(raw) != keySize {
		return nil, fmt.Errorf("decode key: invalid length %d", len(raw))
	}

	var k [keySize]byte
	copy(k[:], raw)

	return &k, nil
}
