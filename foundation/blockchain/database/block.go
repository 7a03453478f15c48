package database

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ardanlabs/blockvault/foundation/blockchain/cipher"
	"github.com/ardanlabs/blockvault/foundation/blockchain/codec"
)

// Genesis block values.
const (
	GenesisPrevHash    = "0"
	GenesisTransaction = "Bloco Genesis"
)

// Set of errors for block construction and validation.
var (
	ErrSeal        = errors.New("seal failed")
	ErrChainBroken = errors.New("chain integrity broken")
)

// =============================================================================

// Block represents a sealed batch of transactions. The payload is the
// concatenated transactions, compressed and then encrypted with a key that
// was generated for this block alone.
type Block struct {
	TimeStamp     float64    `json:"timestamp"`       // Unix seconds when the block was sealed.
	Ciphertext    string     `json:"ciphertext"`      // Token produced by the cipher.
	PrevBlockHash string     `json:"prev_block_hash"` // Hash of the previous block, "0" for genesis.
	Hash          string     `json:"hash"`            // SHA-256 over timestamp, ciphertext and prev hash.
	Key           cipher.Key `json:"key,omitempty"`   // Empty when the key is held by a vault.
}

// Seal constructs a new block for the set of transactions. The transactions
// are joined without a separator. Any failure wraps ErrSeal and no block is
// produced.
func Seal(c cipher.Cipher, now time.Time, trans []string, prevBlockHash string) (Block, error) {
	plaintext := strings.Join(trans, "")

	compressed, err := codec.Compress(plaintext)
	if err != nil {
		return Block{}, fmt.Errorf("%w: %w", ErrSeal, err)
	}

	key, err := c.GenerateKey()
	if err != nil {
		return Block{}, fmt.Errorf("%w: %w", ErrSeal, err)
	}

	ciphertext, err := c.Encrypt(compressed, key, now)
	if err != nil {
		return Block{}, fmt.Errorf("%w: %w", ErrSeal, err)
	}

	b := Block{
		TimeStamp:     ToTimeStamp(now),
		Ciphertext:    ciphertext,
		PrevBlockHash: prevBlockHash,
		Key:           key,
	}
	b.Hash = b.ComputeHash()

	return b, nil
}

// ComputeHash returns the hex encoded SHA-256 digest of the timestamp, the
// ciphertext and the previous hash concatenated as text.
func (b Block) ComputeHash() string {
	var sb strings.Builder
	sb.WriteString(FormatTimeStamp(b.TimeStamp))
	sb.WriteString(b.Ciphertext)
	sb.WriteString(b.PrevBlockHash)

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// Open reverses the seal pipeline and returns the concatenated transactions.
func (b Block) Open(c cipher.Cipher, key cipher.Key) (string, error) {
	compressed, err := c.Decrypt(b.Ciphertext, key)
	if err != nil {
		return "", fmt.Errorf("block %s: %w", b.Hash, err)
	}

	text, err := codec.Decompress(compressed)
	if err != nil {
		return "", fmt.Errorf("block %s: %w", b.Hash, err)
	}

	return text, nil
}

// IsGenesis reports if this block starts a chain.
func (b Block) IsGenesis() bool {
	return b.PrevBlockHash == GenesisPrevHash
}

// ValidateBlock checks that the block's hash matches its contents and that it
// links to the previous block. Pass the zero Block when validating genesis.
func (b Block) ValidateBlock(previousBlock Block, evHandler func(v string, args ...any)) error {
	evHandler("database: ValidateBlock: validate: blk[%s]: check: block hash matches contents", b.Hash)

	if hash := b.ComputeHash(); hash != b.Hash {
		return fmt.Errorf("%w: block hash doesn't match contents, got %s, exp %s", ErrChainBroken, b.Hash, hash)
	}

	evHandler("database: ValidateBlock: validate: blk[%s]: check: parent hash does match parent block", b.Hash)

	expPrev := GenesisPrevHash
	if previousBlock.Hash != "" {
		expPrev = previousBlock.Hash
	}

	if b.PrevBlockHash != expPrev {
		return fmt.Errorf("%w: parent block hash doesn't match our known parent, got %s, exp %s", ErrChainBroken, b.PrevBlockHash, expPrev)
	}

	return nil
}

// =============================================================================

// ToTimeStamp converts the time into Unix seconds with sub-second precision.
func ToTimeStamp(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FormatTimeStamp renders the timestamp in its canonical text form. This is
// the shortest decimal that parses back to the same value.
func FormatTimeStamp(ts float64) string {
	return strconv.FormatFloat(ts, 'f', -1, 64)
}

// =============================================================================

// BlockData represents what is written to storage. The fields are in the order
// they are needed to replay the chain.
type BlockData struct {
	Number        uint64     `json:"number"`
	TimeStamp     float64    `json:"timestamp"`
	Ciphertext    string     `json:"ciphertext"`
	PrevBlockHash string     `json:"prev_block_hash"`
	Hash          string     `json:"hash"`
	Key           cipher.Key `json:"key,omitempty"`
}

// NewBlockData constructs the value to serialize to storage.
func NewBlockData(number uint64, block Block) BlockData {
	return BlockData{
		Number:        number,
		TimeStamp:     block.TimeStamp,
		Ciphertext:    block.Ciphertext,
		PrevBlockHash: block.PrevBlockHash,
		Hash:          block.Hash,
		Key:           block.Key,
	}
}

// ToBlock converts the storage value back into a block.
func ToBlock(blockData BlockData) Block {
	return Block{
		TimeStamp:     blockData.TimeStamp,
		Ciphertext:    blockData.Ciphertext,
		PrevBlockHash: blockData.PrevBlockHash,
		Hash:          blockData.Hash,
		Key:           blockData.Key,
	}
}
