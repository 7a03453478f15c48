package cipher

import (
	"fmt"
	"time"

	"github.com/fernet/fernet-go"
)

// Fernet implements the Cipher interface with AES-128-CBC and HMAC-SHA256
// tokens that embed a timestamp and a random IV.
type Fernet struct{}

// Scheme returns the scheme name.
func (Fernet) Scheme() string {
	return SchemeFernet
}

// GenerateKey returns a new random key in its URL safe base64 encoding.
func (Fernet) GenerateKey() (Key, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}

	return Key(k.Encode()), nil
}

// Encrypt produces a signed token for the data stamped with the seal time.
func (Fernet) Encrypt(data []byte, key Key, now time.Time) (string, error) {
	k, err := fernet.DecodeKey(string(key))
	if err != nil {
		return "", fmt.Errorf("decode key: %w", err)
	}

	tok, err := fernet.EncryptAndSignAtTime(data, k, now)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}

	return string(tok), nil
}

// Decrypt verifies the token signature and returns the data. A zero ttl
// turns off both the expiry and the clock skew checks on the token time.
func (Fernet) Decrypt(token string, key Key) ([]byte, error) {
	k, err := fernet.DecodeKey(string(key))
	if err != nil {
		return nil, fmt.Errorf("%w: decode key: %w", ErrDecryption, err)
	}

	data := fernet.VerifyAndDecrypt([]byte(token), 0, []*fernet.Key{k})
	if data == nil {
		return nil, ErrDecryption
	}

	return data, nil
}
