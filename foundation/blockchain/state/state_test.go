package state_test

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ardanlabs/blockvault/foundation/blockchain/cipher"
	"github.com/ardanlabs/blockvault/foundation/blockchain/database"
	"github.com/ardanlabs/blockvault/foundation/blockchain/keyvault"
	"github.com/ardanlabs/blockvault/foundation/blockchain/state"
	"github.com/ardanlabs/blockvault/foundation/blockchain/storage/memory"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func ifErrFailNow(t *testing.T, err error) {
	if err != nil {
		t.Error(err)
		t.FailNow()
	}
}

func newState(t *testing.T, custody string) (*state.State, *memory.Memory) {
	storage, err := memory.New()
	ifErrFailNow(t, err)

	c, err := cipher.New(cipher.SchemeFernet)
	ifErrFailNow(t, err)

	st, err := state.New(state.Config{
		Host:       "localhost:9080",
		Storage:    storage,
		Cipher:     c,
		KeyCustody: custody,
		EvHandler:  func(v string, args ...any) { t.Logf(v, args...) },
	})
	ifErrFailNow(t, err)

	return st, storage
}

// =============================================================================

func Test_Genesis(t *testing.T) {
	t.Log("Given the need to start a chain with a genesis block.")
	{
		st, _ := newState(t, keyvault.CustodyEmbedded)

		if h := st.RetrieveHeight(); h != 1 {
			t.Fatalf("\t%s\tShould have one block after construction: got %d", failed, h)
		}
		t.Logf("\t%s\tShould have one block after construction.", success)

		genesis := st.RetrieveLatestBlock()
		if genesis.PrevBlockHash != database.GenesisPrevHash {
			t.Fatalf("\t%s\tShould link genesis to %q: got %q", failed, database.GenesisPrevHash, genesis.PrevBlockHash)
		}
		t.Logf("\t%s\tShould link genesis to %q.", success, database.GenesisPrevHash)

		view, err := st.RetrieveBlockView(genesis.Hash)
		ifErrFailNow(t, err)

		if view.Transactions != database.GenesisTransaction {
			t.Fatalf("\t%s\tShould open genesis to %q: got %q", failed, database.GenesisTransaction, view.Transactions)
		}
		t.Logf("\t%s\tShould open genesis to %q.", success, database.GenesisTransaction)
	}
}

func Test_SealAndSearch(t *testing.T) {
	t.Log("Given the need to seal pending transactions and find them again.")
	{
		st, _ := newState(t, keyvault.CustodyEmbedded)

		ifErrFailNow(t, st.SubmitTransaction("A"))
		ifErrFailNow(t, st.SubmitTransaction("B"))

		block, err := st.SealBlock()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to seal a block: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to seal a block.", success)

		if n := len(st.RetrievePending()); n != 0 {
			t.Fatalf("\t%s\tShould clear the pending buffer: got %d", failed, n)
		}
		t.Logf("\t%s\tShould clear the pending buffer.", success)

		view, err := st.RetrieveBlockView(block.Hash)
		ifErrFailNow(t, err)

		if view.Transactions != "AB" {
			t.Fatalf("\t%s\tShould join the transactions without a separator: got %q", failed, view.Transactions)
		}
		t.Logf("\t%s\tShould join the transactions without a separator.", success)

		again, err := st.RetrieveBlockView(block.Hash)
		ifErrFailNow(t, err)

		if again != view {
			t.Fatalf("\t%s\tShould get the same view on every lookup.", failed)
		}
		t.Logf("\t%s\tShould get the same view on every lookup.", success)

		views, failures, err := st.SearchTransactions("A")
		ifErrFailNow(t, err)

		if len(views) != 1 || views[0].Hash != block.Hash || len(failures) != 0 {
			t.Fatalf("\t%s\tShould find exactly one block for \"A\": got %d views, %d failures", failed, len(views), len(failures))
		}
		t.Logf("\t%s\tShould find exactly one block for \"A\".", success)

		views, _, err = st.SearchTransactions("Z")
		ifErrFailNow(t, err)

		if len(views) != 0 {
			t.Fatalf("\t%s\tShould find nothing for \"Z\": got %d", failed, len(views))
		}
		t.Logf("\t%s\tShould find nothing for \"Z\".", success)
	}
}

func Test_Linkage(t *testing.T) {
	t.Log("Given the need for every block to link to its predecessor.")
	{
		st, _ := newState(t, keyvault.CustodyEmbedded)
		genesis := st.RetrieveLatestBlock()

		ifErrFailNow(t, st.SubmitTransaction("X"))
		b1, err := st.SealBlock()
		ifErrFailNow(t, err)

		ifErrFailNow(t, st.SubmitTransaction("Y"))
		b2, err := st.SealBlock()
		ifErrFailNow(t, err)

		if b1.PrevBlockHash != genesis.Hash || b2.PrevBlockHash != b1.Hash {
			t.Fatalf("\t%s\tShould link each block to the previous hash.", failed)
		}
		t.Logf("\t%s\tShould link each block to the previous hash.", success)

		for _, exp := range []struct {
			hash string
			text string
		}{{b1.Hash, "X"}, {b2.Hash, "Y"}} {
			view, err := st.RetrieveBlockView(exp.hash)
			ifErrFailNow(t, err)

			if view.Transactions != exp.text {
				t.Fatalf("\t%s\tShould open block %s to %q: got %q", failed, exp.hash, exp.text, view.Transactions)
			}
			t.Logf("\t%s\tShould open block %s to %q.", success, exp.hash, exp.text)
		}

		if _, err := st.VerifyChain(); err != nil {
			t.Fatalf("\t%s\tShould verify the chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould verify the chain.", success)

		empty, err := st.SealBlock()
		ifErrFailNow(t, err)

		view, err := st.RetrieveBlockView(empty.Hash)
		ifErrFailNow(t, err)

		if view.Transactions != "" || empty.PrevBlockHash != b2.Hash {
			t.Fatalf("\t%s\tShould seal an empty block linked to the chain: got %q", failed, view.Transactions)
		}
		t.Logf("\t%s\tShould seal an empty block linked to the chain.", success)

		blocks, err := st.QueryBlocksByRange(1, 100)
		ifErrFailNow(t, err)

		if len(blocks) != 3 || blocks[0].Hash != b1.Hash {
			t.Fatalf("\t%s\tShould clamp the range to the chain: got %d", failed, len(blocks))
		}
		t.Logf("\t%s\tShould clamp the range to the chain.", success)
	}
}

func Test_ReadIdempotent(t *testing.T) {
	t.Log("Given the need for lookups to leave the chain untouched.")
	{
		st, _ := newState(t, keyvault.CustodyEmbedded)

		ifErrFailNow(t, st.SubmitTransaction("alpha"))
		block, err := st.SealBlock()
		ifErrFailNow(t, err)
		ifErrFailNow(t, st.SubmitTransaction("beta"))

		height := st.RetrieveHeight()
		latest := st.RetrieveLatestBlock()
		pending := st.RetrievePending()

		first, err := st.QueryBlockByHash(block.Hash)
		ifErrFailNow(t, err)
		second, err := st.QueryBlockByHash(block.Hash)
		ifErrFailNow(t, err)

		if first != second || first != block {
			t.Fatalf("\t%s\tShould return the same block on every lookup by hash.", failed)
		}
		t.Logf("\t%s\tShould return the same block on every lookup by hash.", success)

		v1, err := st.RetrieveBlockView(block.Hash)
		ifErrFailNow(t, err)
		v2, err := st.RetrieveBlockView(block.Hash)
		ifErrFailNow(t, err)

		if v1 != v2 || v1.Transactions != "alpha" {
			t.Fatalf("\t%s\tShould return the same view on every lookup: got %q and %q", failed, v1.Transactions, v2.Transactions)
		}
		t.Logf("\t%s\tShould return the same view on every lookup.", success)

		if _, _, err := st.SearchTransactions("alpha"); err != nil {
			t.Fatalf("\t%s\tShould be able to search: %v", failed, err)
		}

		if h := st.RetrieveHeight(); h != height {
			t.Fatalf("\t%s\tShould keep the height after reads: got %d, exp %d", failed, h, height)
		}
		t.Logf("\t%s\tShould keep the height after reads.", success)

		if st.RetrieveLatestBlock() != latest {
			t.Fatalf("\t%s\tShould keep the latest block after reads.", failed)
		}
		t.Logf("\t%s\tShould keep the latest block after reads.", success)

		after := st.RetrievePending()
		if len(after) != len(pending) || after[0] != pending[0] {
			t.Fatalf("\t%s\tShould keep the pending buffer after reads: got %v, exp %v", failed, after, pending)
		}
		t.Logf("\t%s\tShould keep the pending buffer after reads.", success)
	}
}

func Test_RangeIsCopy(t *testing.T) {
	t.Log("Given the need for listed blocks to be detached from the chain.")
	{
		st, _ := newState(t, keyvault.CustodyEmbedded)

		ifErrFailNow(t, st.SubmitTransaction("gamma"))
		block, err := st.SealBlock()
		ifErrFailNow(t, err)

		blocks, err := st.QueryBlocksByRange(0, 1)
		ifErrFailNow(t, err)

		blocks[1].Ciphertext = "overwritten"
		blocks[1].Hash = "overwritten"

		got, err := st.QueryBlockByHash(block.Hash)
		if err != nil {
			t.Fatalf("\t%s\tShould still find the block by its original hash: %v", failed, err)
		}
		if got != block {
			t.Fatalf("\t%s\tShould not let a caller change a sealed block.", failed)
		}
		t.Logf("\t%s\tShould not let a caller change a sealed block.", success)

		if _, err := st.VerifyChain(); err != nil {
			t.Fatalf("\t%s\tShould still verify the chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould still verify the chain.", success)
	}
}

func Test_InvalidRequests(t *testing.T) {
	st, _ := newState(t, keyvault.CustodyEmbedded)

	tt := []struct {
		name string
		fn   func() error
		exp  error
	}{
		{
			name: "empty-transaction",
			fn:   func() error { return st.SubmitTransaction("") },
			exp:  state.ErrInvalidTransaction,
		},
		{
			name: "empty-term",
			fn: func() error {
				_, _, err := st.SearchTransactions("")
				return err
			},
			exp: state.ErrInvalidQuery,
		},
		{
			name: "unknown-hash",
			fn: func() error {
				_, err := st.RetrieveBlockView("deadbeef")
				return err
			},
			exp: database.ErrNotFound,
		},
		{
			name: "reversed-range",
			fn: func() error {
				_, err := st.QueryBlocksByRange(2, 1)
				return err
			},
			exp: state.ErrInvalidQuery,
		},
		{
			name: "range-past-end",
			fn: func() error {
				_, err := st.QueryBlocksByRange(10, 20)
				return err
			},
			exp: database.ErrNotFound,
		},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			if err := tst.fn(); !errors.Is(err, tst.exp) {
				t.Fatalf("\t%s\tTest %s:\tShould get %v: got %v", failed, tst.name, tst.exp, err)
			}
			t.Logf("\t%s\tTest %s:\tShould get %v.", success, tst.name, tst.exp)
		}

		t.Run(tst.name, f)
	}

	if n := len(st.RetrievePending()); n != 0 {
		t.Fatalf("\t%s\tShould not queue a rejected transaction: got %d", failed, n)
	}
}

func Test_SealFailure(t *testing.T) {
	t.Log("Given a storage failure while sealing.")
	{
		storage, err := memory.New()
		ifErrFailNow(t, err)

		fs := failingStorage{Memory: storage}

		c, err := cipher.New(cipher.SchemeSecretbox)
		ifErrFailNow(t, err)

		st, err := state.New(state.Config{Storage: &fs, Cipher: c})
		ifErrFailNow(t, err)

		ifErrFailNow(t, st.SubmitTransaction("kept"))
		fs.fail = true

		if _, err := st.SealBlock(); !errors.Is(err, database.ErrSeal) {
			t.Fatalf("\t%s\tShould get ErrSeal: got %v", failed, err)
		}
		t.Logf("\t%s\tShould get ErrSeal.", success)

		if h := st.RetrieveHeight(); h != 1 {
			t.Fatalf("\t%s\tShould leave the chain untouched: got height %d", failed, h)
		}
		t.Logf("\t%s\tShould leave the chain untouched.", success)

		pending := st.RetrievePending()
		if len(pending) != 1 || pending[0] != "kept" {
			t.Fatalf("\t%s\tShould keep the pending transactions: got %v", failed, pending)
		}
		t.Logf("\t%s\tShould keep the pending transactions.", success)

		fs.fail = false
		block, err := st.SealBlock()
		ifErrFailNow(t, err)

		view, err := st.RetrieveBlockView(block.Hash)
		ifErrFailNow(t, err)

		if view.Transactions != "kept" {
			t.Fatalf("\t%s\tShould seal the kept transactions on retry: got %q", failed, view.Transactions)
		}
		t.Logf("\t%s\tShould seal the kept transactions on retry.", success)
	}
}

func Test_ConcurrentSubmitAndSeal(t *testing.T) {
	const (
		submitters = 8
		perG       = 50
	)

	t.Log("Given concurrent submissions while blocks are being sealed.")
	{
		st, _ := newState(t, keyvault.CustodyEmbedded)

		var wg sync.WaitGroup
		wg.Add(submitters)

		for g := range submitters {
			go func() {
				defer wg.Done()
				for i := range perG {
					if err := st.SubmitTransaction(fmt.Sprintf("tx-%02d-%03d;", g, i)); err != nil {
						t.Error(err)
						return
					}
				}
			}()
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

	seal:
		for {
			select {
			case <-done:
				break seal
			default:
				if _, err := st.SealBlock(); err != nil {
					t.Fatalf("\t%s\tShould be able to seal while submitting: %v", failed, err)
				}
			}
		}

		_, err := st.SealBlock()
		ifErrFailNow(t, err)

		var all strings.Builder
		blocks, err := st.QueryBlocksByRange(1, st.RetrieveHeight())
		ifErrFailNow(t, err)

		for _, block := range blocks {
			view, err := st.RetrieveBlockView(block.Hash)
			ifErrFailNow(t, err)
			all.WriteString(view.Transactions)
		}

		text := all.String()
		for g := range submitters {
			for i := range perG {
				tx := fmt.Sprintf("tx-%02d-%03d;", g, i)
				if n := strings.Count(text, tx); n != 1 {
					t.Fatalf("\t%s\tShould seal %s exactly once: got %d", failed, tx, n)
				}
			}
		}
		t.Logf("\t%s\tShould seal every transaction exactly once.", success)

		if _, err := st.VerifyChain(); err != nil {
			t.Fatalf("\t%s\tShould verify the chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould verify the chain.", success)
	}
}

func Test_VaultCustody(t *testing.T) {
	t.Log("Given keys held in a vault apart from the blocks.")
	{
		st, storage := newState(t, keyvault.CustodyVault)

		ifErrFailNow(t, st.SubmitTransaction("secret"))
		block, err := st.SealBlock()
		ifErrFailNow(t, err)

		if block.Key != "" {
			t.Fatalf("\t%s\tShould not keep the key in the block.", failed)
		}
		t.Logf("\t%s\tShould not keep the key in the block.", success)

		view, err := st.RetrieveBlockView(block.Hash)
		ifErrFailNow(t, err)

		if view.Transactions != "secret" {
			t.Fatalf("\t%s\tShould open the block with the vault key: got %q", failed, view.Transactions)
		}
		t.Logf("\t%s\tShould open the block with the vault key.", success)

		// A node over the same storage without the vault can't read it.
		c, err := cipher.New(cipher.SchemeFernet)
		ifErrFailNow(t, err)

		other, err := state.New(state.Config{Storage: storage, Cipher: c})
		ifErrFailNow(t, err)

		if _, err := other.RetrieveBlockView(block.Hash); !errors.Is(err, cipher.ErrDecryption) {
			t.Fatalf("\t%s\tShould get ErrDecryption without the vault: got %v", failed, err)
		}
		t.Logf("\t%s\tShould get ErrDecryption without the vault.", success)

		_, failures, err := other.SearchTransactions("secret")
		ifErrFailNow(t, err)

		if len(failures) != 2 {
			t.Fatalf("\t%s\tShould report every unreadable block: got %d", failed, len(failures))
		}
		t.Logf("\t%s\tShould report every unreadable block.", success)
	}
}

func Test_SealSignal(t *testing.T) {
	t.Log("Given a worker waiting for sealed blocks.")
	{
		st, _ := newState(t, keyvault.CustodyEmbedded)

		var w recordingWorker
		st.Worker = &w

		block, err := st.SealBlock()
		ifErrFailNow(t, err)

		if len(w.sealed) != 1 || w.sealed[0].Hash != block.Hash {
			t.Fatalf("\t%s\tShould signal the sealed block.", failed)
		}
		t.Logf("\t%s\tShould signal the sealed block.", success)

		ifErrFailNow(t, st.Shutdown())

		if !w.shutdown {
			t.Fatalf("\t%s\tShould shut the worker down.", failed)
		}
		t.Logf("\t%s\tShould shut the worker down.", success)
	}
}

// =============================================================================

type failingStorage struct {
	*memory.Memory
	fail bool
}

func (fs *failingStorage) Write(blockData database.BlockData) error {
	if fs.fail {
		return errors.New("disk full")
	}
	return fs.Memory.Write(blockData)
}

type recordingWorker struct {
	sealed   []database.Block
	shutdown bool
}

func (w *recordingWorker) Shutdown() {
	w.shutdown = true
}

func (w *recordingWorker) SignalBlockSealed(block database.Block) {
	w.sealed = append(w.sealed, block)
}
