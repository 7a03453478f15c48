// Package signature provides helper functions for signing and verifying the
// messages a node sends to its peers.
package signature

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// vaultID is added to the recovery id so signatures produced by a node are
// recognizable as vault signatures.
const vaultID = 29

// ErrInvalidSignature is returned when a signature fails verification.
var ErrInvalidSignature = errors.New("invalid signature")

// Signature is the [R|S|V] form of a secp256k1 signature.
type Signature struct {
	V *big.Int `json:"v"`
	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
}

// Sign uses the specified private key to sign the value.
func Sign(value any, privateKey *ecdsa.PrivateKey) (Signature, error) {
	data, err := stamp(value)
	if err != nil {
		return Signature{}, err
	}

	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return Signature{}, err
	}

	// Check the public key extracted from the data and signature.
	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return Signature{}, err
	}

	rs := sig[:crypto.RecoveryIDOffset]
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), data, rs) {
		return Signature{}, ErrInvalidSignature
	}

	return toSignature(sig), nil
}

// Verify checks the signature values conform to our standards.
func (s Signature) Verify() error {
	if s.V == nil || s.R == nil || s.S == nil {
		return fmt.Errorf("%w: missing values", ErrInvalidSignature)
	}

	uintV := s.V.Uint64() - vaultID
	if uintV != 0 && uintV != 1 {
		return fmt.Errorf("%w: invalid recovery id", ErrInvalidSignature)
	}

	if !crypto.ValidateSignatureValues(byte(uintV), s.R, s.S, false) {
		return fmt.Errorf("%w: invalid signature values", ErrInvalidSignature)
	}

	return nil
}

// Signer extracts the address of the account that signed the value. If the
// value is not the exact value that was signed, the address will not match
// the signer's.
func (s Signature) Signer(value any) (string, error) {
	if err := s.Verify(); err != nil {
		return "", err
	}

	data, err := stamp(value)
	if err != nil {
		return "", err
	}

	publicKey, err := crypto.SigToPub(data, s.bytes())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	return crypto.PubkeyToAddress(*publicKey).String(), nil
}

// String returns the signature as a hex string including the vault id.
func (s Signature) String() string {
	if s.V == nil || s.R == nil || s.S == nil {
		return ""
	}

	sig := s.bytes()
	sig[64] = byte(s.V.Uint64())

	return hexutil.Encode(sig)
}

// FromHex converts a hex representation of the signature into its parts.
func FromHex(sigStr string) (Signature, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigStr, "0x"))
	if err != nil {
		return Signature{}, err
	}

	if len(sig) != crypto.SignatureLength {
		return Signature{}, fmt.Errorf("%w: invalid length %d", ErrInvalidSignature, len(sig))
	}

	s := Signature{
		R: new(big.Int).SetBytes(sig[:32]),
		S: new(big.Int).SetBytes(sig[32:64]),
		V: new(big.Int).SetBytes([]byte{sig[64]}),
	}

	return s, nil
}

// Address returns the account address for the private key.
func Address(privateKey *ecdsa.PrivateKey) string {
	return crypto.PubkeyToAddress(privateKey.PublicKey).String()
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents this value with the vault
// stamp embedded into the final hash.
func stamp(value any) ([]byte, error) {
	v, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	valueHash := crypto.Keccak256(v)

	// The stamp keeps signatures we produce unique to vault nodes.
	stamp := []byte("\x19Blockvault Signed Message:\n32")

	return crypto.Keccak256(stamp, valueHash), nil
}

// toSignature converts the 65 byte signature into the [R|S|V] format.
func toSignature(sig []byte) Signature {
	return Signature{
		R: new(big.Int).SetBytes(sig[:32]),
		S: new(big.Int).SetBytes(sig[32:64]),
		V: new(big.Int).SetBytes([]byte{sig[64] + vaultID}),
	}
}

// bytes converts the signature into the original 65 bytes with the vault id
// removed.
func (s Signature) bytes() []byte {
	sig := make([]byte, crypto.SignatureLength)

	s.R.FillBytes(sig[:32])
	s.S.FillBytes(sig[32:64])
	sig[64] = byte(s.V.Uint64() - vaultID)

	return sig
}
