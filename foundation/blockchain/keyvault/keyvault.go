// Package keyvault holds block keys apart from the block payloads they open.
// Keys are indexed by block hash and are never rotated or replaced.
package keyvault

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ardanlabs/blockvault/foundation/blockchain/cipher"
)

// Set of key custody policies a node can run with.
const (
	CustodyEmbedded = "embedded" // The key is kept inside the block.
	CustodyVault    = "vault"    // The key is kept in a Vault keyed by block hash.
)

// Set of errors the vault can return.
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrKeyExists   = errors.New("key already exists")
)

// ValidateCustody checks the custody policy name.
func ValidateCustody(custody string) error {
	switch custody {
	case CustodyEmbedded, CustodyVault:
		return nil
	}

	return fmt.Errorf("unknown key custody %q", custody)
}

// =============================================================================

// Vault is an access controlled key store. When a path is provided the keys
// are persisted to a file only readable by the owner.
type Vault struct {
	mu   sync.RWMutex
	path string
	keys map[string]cipher.Key
}

// New constructs a vault. An empty path keeps the keys in memory only.
func New(path string) (*Vault, error) {
	v := Vault{
		path: path,
		keys: make(map[string]cipher.Key),
	}

	if path == "" {
		return &v, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return &v, nil
	case err != nil:
		return nil, fmt.Errorf("reading vault: %w", err)
	}

	if err := json.Unmarshal(data, &v.keys); err != nil {
		return nil, fmt.Errorf("decoding vault: %w", err)
	}

	return &v, nil
}

// Store records the key for the block hash. A hash can only be stored once.
func (v *Vault) Store(hash string, key cipher.Key) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.keys[hash]; exists {
		return fmt.Errorf("%w: %s", ErrKeyExists, hash)
	}

	v.keys[hash] = key

	if err := v.flush(); err != nil {
		delete(v.keys, hash)
		return err
	}

	return nil
}

// Delete removes the key for the block hash. This is only used to roll back
// a seal that failed after the key was stored.
func (v *Vault) Delete(hash string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	delete(v.keys, hash)

	return v.flush()
}

// Load returns the key for the block hash.
func (v *Vault) Load(hash string) (cipher.Key, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	key, exists := v.keys[hash]
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, hash)
	}

	return key, nil
}

// Len returns the number of keys held.
func (v *Vault) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return len(v.keys)
}

// flush writes the keys to disk when the vault is file backed. The file is
// replaced atomically. The caller must hold the write lock.
func (v *Vault) flush() error {
	if v.path == "" {
		return nil
	}

	data, err := json.Marshal(v.keys)
	if err != nil {
		return fmt.Errorf("encoding vault: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(v.path), 0700); err != nil {
		return fmt.Errorf("creating vault folder: %w", err)
	}

	tmp := v.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing vault: %w", err)
	}

	if err := os.Rename(tmp, v.path); err != nil {
		return fmt.Errorf("replacing vault: %w", err)
	}

	return nil
}
