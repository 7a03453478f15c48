package state

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ardanlabs/blockvault/foundation/blockchain/cipher"
	"github.com/ardanlabs/blockvault/foundation/blockchain/database"
	"github.com/ardanlabs/blockvault/foundation/blockchain/keyvault"
)

// BlockView is the decrypted form of a block handed to clients.
type BlockView struct {
	Hash         string  `json:"hash"`
	TimeStamp    float64 `json:"timestamp"`
	Transactions string  `json:"transactions"`
}

// BlockFailure records a block whose payload could not be opened during a
// search.
type BlockFailure struct {
	Hash string
	Err  error
}

// =============================================================================

// QueryBlockByHash returns the block with the specified hash.
func (s *State) QueryBlockByHash(hash string) (database.Block, error) {
	return s.db.QueryByHash(hash)
}

// QueryBlocksByRange returns the blocks numbered from through to inclusive.
// A to past the end of the chain is clamped to the latest block. The blocks
// are a copy and don't share memory with the chain.
func (s *State) QueryBlocksByRange(from uint64, to uint64) ([]database.Block, error) {
	if from > to {
		return nil, fmt.Errorf("%w: from %d is after to %d", ErrInvalidQuery, from, to)
	}

	blocks := s.db.Blocks()
	if from >= uint64(len(blocks)) {
		return nil, fmt.Errorf("%w: number %d", database.ErrNotFound, from)
	}

	if to >= uint64(len(blocks)) {
		to = uint64(len(blocks)) - 1
	}

	return blocks[from : to+1], nil
}

// RetrieveBlockView looks up the block by hash and opens its payload.
func (s *State) RetrieveBlockView(hash string) (BlockView, error) {
	block, err := s.db.QueryByHash(hash)
	if err != nil {
		return BlockView{}, err
	}

	return s.openBlock(block)
}

// SearchTransactions opens every block in chain order and returns the blocks
// whose transactions contain the term. Blocks that can't be opened are
// reported as failures and the search continues.
func (s *State) SearchTransactions(term string) ([]BlockView, []BlockFailure, error) {
	if term == "" {
		return nil, nil, fmt.Errorf("%w: search term is empty", ErrInvalidQuery)
	}

	var views []BlockView
	var failures []BlockFailure

	for _, block := range s.db.Blocks() {
		view, err := s.openBlock(block)
		if err != nil {
			s.evHandler("state: SearchTransactions: blk[%s]: ERROR: %s", block.Hash, err)
			failures = append(failures, BlockFailure{Hash: block.Hash, Err: err})
			continue
		}

		if strings.Contains(view.Transactions, term) {
			views = append(views, view)
		}
	}

	return views, failures, nil
}

// VerifyChain walks the chain checking every hash and link. It returns the
// number of the first broken block along with the error.
func (s *State) VerifyChain() (uint64, error) {
	return s.db.Verify()
}

// =============================================================================

// openBlock decrypts and decompresses the block payload.
func (s *State) openBlock(block database.Block) (BlockView, error) {
	key, err := s.blockKey(block)
	if err != nil {
		s.metrics.AddReadFailure()
		return BlockView{}, err
	}

	text, err := block.Open(s.cipher, key)
	if err != nil {
		s.metrics.AddReadFailure()
		return BlockView{}, err
	}

	view := BlockView{
		Hash:         block.Hash,
		TimeStamp:    block.TimeStamp,
		Transactions: text,
	}

	return view, nil
}

// blockKey returns the key that opens the block. Blocks sealed under vault
// custody carry no key and it's looked up by hash.
func (s *State) blockKey(block database.Block) (cipher.Key, error) {
	if block.Key != "" {
		return block.Key, nil
	}

	if s.vault == nil {
		return "", fmt.Errorf("block %s: %w: no key held for block", block.Hash, cipher.ErrDecryption)
	}

	key, err := s.vault.Load(block.Hash)
	if err != nil {
		if errors.Is(err, keyvault.ErrKeyNotFound) {
			return "", fmt.Errorf("block %s: %w: %w", block.Hash, cipher.ErrDecryption, err)
		}
		return "", err
	}

	return key, nil
}
