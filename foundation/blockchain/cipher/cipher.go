// Package cipher provides the symmetric encryption schemes used to seal block
// payloads. Every block gets its own freshly generated key.
package cipher

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Set of schemes that can be selected by name.
const (
	SchemeFernet    = "fernet"
	SchemeSecretbox = "secretbox"
)

// ErrDecryption is returned when a token can't be opened with the provided
// key. A wrong key, a tampered token and a malformed token all produce it.
var ErrDecryption = errors.New("decryption failed")

// Key is the encoded form of a symmetric key.
type Key string

// Cipher represents the behavior of a symmetric encryption scheme whose
// ciphertext is a self-describing token bound to the key. Schemes that
// timestamp their tokens use the time passed to Encrypt.
type Cipher interface {
	Scheme() string
	GenerateKey() (Key, error)
	Encrypt(data []byte, key Key, now time.Time) (string, error)
	Decrypt(token string, key Key) ([]byte, error)
}

// New returns the cipher registered under the scheme name.
func New(scheme string) (Cipher, error) {
	switch strings.ToLower(scheme) {
	case SchemeFernet:
		return Fernet{}, nil
	case SchemeSecretbox:
		return Secretbox{}, nil
	}

	return nil, fmt.Errorf("unknown cipher scheme %q", scheme)
}
