// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ardanlabs/blockvault/foundation/blockchain/cipher"
	"github.com/ardanlabs/blockvault/foundation/blockchain/database"
	"github.com/ardanlabs/blockvault/foundation/blockchain/keyvault"
	"github.com/ardanlabs/blockvault/foundation/blockchain/peer"
	"github.com/ardanlabs/blockvault/foundation/metrics"
)

// Set of errors returned by the state API.
var (
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidQuery       = errors.New("invalid query")
)

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for sealing and distributing blocks.
type Worker interface {
	Shutdown()
	SignalBlockSealed(block database.Block)
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Host       string
	Storage    database.Serializer
	Cipher     cipher.Cipher
	KeyCustody string
	Vault      *keyvault.Vault
	KnownPeers *peer.PeerSet
	Metrics    *metrics.Metrics
	EvHandler  EventHandler
	Now        func() time.Time
}

// State manages the blockchain database.
type State struct {
	host       string
	evHandler  EventHandler
	now        func() time.Time
	cipher     cipher.Cipher
	custody    string
	vault      *keyvault.Vault
	knownPeers *peer.PeerSet
	metrics    *metrics.Metrics
	db         *database.Database

	sealMu    sync.Mutex
	pendingMu sync.Mutex
	pending   []string

	Worker Worker
}

// New constructs a new blockchain for data management. When storage holds no
// blocks the genesis block is sealed before New returns.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.Cipher == nil {
		return nil, errors.New("cipher is required")
	}

	if cfg.Storage == nil {
		return nil, errors.New("storage is required")
	}

	custody := cfg.KeyCustody
	if custody == "" {
		custody = keyvault.CustodyEmbedded
	}

	if err := keyvault.ValidateCustody(custody); err != nil {
		return nil, err
	}

	vault := cfg.Vault
	if custody == keyvault.CustodyVault && vault == nil {
		var err error
		if vault, err = keyvault.New(""); err != nil {
			return nil, err
		}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	// Load all existing blocks from storage into memory for processing.
	db, err := database.New(cfg.Storage, ev)
	if err != nil {
		return nil, err
	}

	state := State{
		host:       cfg.Host,
		evHandler:  ev,
		now:        now,
		cipher:     cfg.Cipher,
		custody:    custody,
		vault:      vault,
		knownPeers: knownPeers,
		metrics:    cfg.Metrics,
		db:         db,
	}

	if db.Len() > 0 {
		latest, _ := db.LatestBlock()
		ev("state: New: replayed blocks[%d]: latest[%s]", db.Len(), latest.Hash)
		return &state, nil
	}

	block, err := state.writeBlock([]string{database.GenesisTransaction})
	if err != nil {
		return nil, fmt.Errorf("sealing genesis: %w", err)
	}

	ev("state: New: genesis sealed: blk[%s]", block.Hash)

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	// Make sure the storage is properly closed.
	return s.db.Close()
}

// =============================================================================

// SubmitTransaction appends the transaction to the pending buffer.
func (s *State) SubmitTransaction(tx string) error {
	if tx == "" {
		return fmt.Errorf("%w: transaction text is empty", ErrInvalidTransaction)
	}

	s.pendingMu.Lock()
	s.pending = append(s.pending, tx)
	n := len(s.pending)
	s.pendingMu.Unlock()

	s.metrics.AddTransaction(n)
	s.evHandler("state: SubmitTransaction: accepted: len[%d]: pending[%d]", len(tx), n)

	return nil
}

// SealBlock seals the pending transactions into a new block and appends it
// to the chain. A block is sealed even when nothing is pending. On failure
// the chain and the pending buffer are left untouched.
func (s *State) SealBlock() (database.Block, error) {
	s.sealMu.Lock()
	defer s.sealMu.Unlock()

	start := time.Now()
	trans := s.RetrievePending()

	block, err := s.writeBlock(trans)
	if err != nil {
		s.metrics.ObserveSeal(time.Since(start), len(trans), err)
		return database.Block{}, err
	}

	// Transactions submitted while sealing are still queued behind the
	// drained prefix.
	s.pendingMu.Lock()
	s.pending = append([]string(nil), s.pending[len(trans):]...)
	remaining := len(s.pending)
	s.pendingMu.Unlock()

	s.metrics.ObserveSeal(time.Since(start), remaining, nil)
	s.evHandler("state: SealBlock: sealed: blk[%s]: trans[%d]: pending[%d]", block.Hash, len(trans), remaining)

	if s.Worker != nil {
		s.Worker.SignalBlockSealed(block)
	}

	return block, nil
}

// writeBlock seals the transactions on top of the latest block, stores the
// key per the custody policy and appends the block. The caller must hold the
// seal lock or be constructing the state.
func (s *State) writeBlock(trans []string) (database.Block, error) {
	prevHash := database.GenesisPrevHash
	if latest, exists := s.db.LatestBlock(); exists {
		prevHash = latest.Hash
	}

	block, err := database.Seal(s.cipher, s.now(), trans, prevHash)
	if err != nil {
		return database.Block{}, err
	}

	if s.custody != keyvault.CustodyVault {
		if err := s.db.Write(block); err != nil {
			return database.Block{}, fmt.Errorf("%w: %w", database.ErrSeal, err)
		}
		return block, nil
	}

	key := block.Key
	block.Key = ""

	if err := s.vault.Store(block.Hash, key); err != nil {
		return database.Block{}, fmt.Errorf("%w: %w", database.ErrSeal, err)
	}

	if err := s.db.Write(block); err != nil {
		if err := s.vault.Delete(block.Hash); err != nil {
			s.evHandler("state: writeBlock: blk[%s]: ERROR: removing key: %s", block.Hash, err)
		}
		return database.Block{}, fmt.Errorf("%w: %w", database.ErrSeal, err)
	}

	return block, nil
}
