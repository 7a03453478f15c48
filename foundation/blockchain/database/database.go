// Package database maintains the sealed blocks of the chain in memory and
// writes them through to a Serializer for storage.
package database

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when a block can't be located.
var ErrNotFound = errors.New("block not found")

// Serializer interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain.
type Serializer interface {
	Write(blockData BlockData) error
	GetBlock(num uint64) (BlockData, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the blocks.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}

// =============================================================================

// Database holds the append-only sequence of blocks. Reads work against a
// snapshot of the sequence so they never observe a partial append.
type Database struct {
	mu         sync.RWMutex
	blocks     []Block
	serializer Serializer
}

// New constructs a database and replays any blocks the serializer already
// holds. Every replayed block is validated against its parent.
func New(serializer Serializer, evHandler func(v string, args ...any)) (*Database, error) {
	db := Database{
		serializer: serializer,
	}

	var latestBlock Block

	iter := db.serializer.ForEach()
	for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		if blockData.Number != uint64(len(db.blocks)) {
			return nil, fmt.Errorf("%w: block out of order, got %d, exp %d", ErrChainBroken, blockData.Number, len(db.blocks))
		}

		block := ToBlock(blockData)
		if err := block.ValidateBlock(latestBlock, evHandler); err != nil {
			return nil, err
		}

		db.blocks = append(db.blocks, block)
		latestBlock = block
	}

	return &db, nil
}

// Close closes the serializer.
func (db *Database) Close() error {
	return db.serializer.Close()
}

// Write stores the block and appends it to the chain. The block is only
// appended when storage accepts it.
func (db *Database) Write(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	blockData := NewBlockData(uint64(len(db.blocks)), block)
	if err := db.serializer.Write(blockData); err != nil {
		return fmt.Errorf("writing block %d: %w", blockData.Number, err)
	}

	db.blocks = append(db.blocks, block)

	return nil
}

// Blocks returns a copy of the chain in order.
func (db *Database) Blocks() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return append([]Block(nil), db.blocks...)
}

// Len returns the number of blocks in the chain.
func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.blocks)
}

// LatestBlock returns the last block of the chain. The bool is false when
// the chain is empty.
func (db *Database) LatestBlock() (Block, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if len(db.blocks) == 0 {
		return Block{}, false
	}

	return db.blocks[len(db.blocks)-1], true
}

// GetBlock returns the block at the specified position.
func (db *Database) GetBlock(num uint64) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if num >= uint64(len(db.blocks)) {
		return Block{}, fmt.Errorf("%w: number %d", ErrNotFound, num)
	}

	return db.blocks[num], nil
}

// QueryByHash walks the chain in order and returns the first block with the
// specified hash.
func (db *Database) QueryByHash(hash string) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, block := range db.blocks {
		if block.Hash == hash {
			return block, nil
		}
	}

	return Block{}, fmt.Errorf("%w: hash %s", ErrNotFound, hash)
}

// Verify walks the chain checking every hash and link. It returns the number
// of the first broken block along with the error.
func (db *Database) Verify() (uint64, error) {
	noop := func(string, ...any) {}

	var previousBlock Block
	for i, block := range db.Blocks() {
		if err := block.ValidateBlock(previousBlock, noop); err != nil {
			return uint64(i), err
		}
		previousBlock = block
	}

	return 0, nil
}
