package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/ardanlabs/blockvault/app/services/node/handlers"
	v1 "github.com/ardanlabs/blockvault/business/web/v1"
	"github.com/ardanlabs/blockvault/foundation/blockchain/cipher"
	"github.com/ardanlabs/blockvault/foundation/blockchain/keyvault"
	"github.com/ardanlabs/blockvault/foundation/blockchain/peer"
	"github.com/ardanlabs/blockvault/foundation/blockchain/signature"
	"github.com/ardanlabs/blockvault/foundation/blockchain/state"
	"github.com/ardanlabs/blockvault/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/blockvault/foundation/events"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"

type testNode struct {
	state   *state.State
	storage *memory.Memory
	public  http.Handler
	private http.Handler
}

func newTestNode(t *testing.T, custody string) testNode {
	storage, err := memory.New()
	require.NoError(t, err)

	c, err := cipher.New(cipher.SchemeFernet)
	require.NoError(t, err)

	st, err := state.New(state.Config{
		Host:       "localhost:9080",
		Storage:    storage,
		Cipher:     c,
		KeyCustody: custody,
	})
	require.NoError(t, err)

	return newTestNodeFromState(st, storage)
}

func newTestNodeFromState(st *state.State, storage *memory.Memory) testNode {
	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		panic(err)
	}

	cfg := handlers.MuxConfig{
		Shutdown:       make(chan os.Signal, 1),
		Log:            zap.NewNop().Sugar(),
		State:          st,
		Evts:           events.New(),
		TrustedSigners: []string{strings.ToLower(signature.Address(pk))},
	}

	return testNode{
		state:   st,
		storage: storage,
		public:  handlers.PublicMux(cfg),
		private: handlers.PrivateMux(cfg),
	}
}

func do(t *testing.T, h http.Handler, method string, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	r := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) v1.ErrorResponse {
	var er v1.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&er))
	return er
}

// =============================================================================

func Test_SubmitTransaction(t *testing.T) {
	node := newTestNode(t, keyvault.CustodyEmbedded)

	w := do(t, node.public, http.MethodPost, "/v1/tx/submit", map[string]string{"transaction": "A"})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, "transaction received", resp.Status)
	require.Equal(t, []string{"A"}, node.state.RetrievePending())

	tt := []struct {
		name string
		body any
	}{
		{name: "empty", body: map[string]string{"transaction": ""}},
		{name: "missing", body: map[string]string{}},
		{name: "unknown-field", body: map[string]string{"transacao": "A"}},
	}

	for _, tst := range tt {
		t.Run(tst.name, func(t *testing.T) {
			w := do(t, node.public, http.MethodPost, "/v1/tx/submit", tst.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			require.Equal(t, v1.KindInvalidTransaction, decodeError(t, w).Kind)
		})
	}

	w = do(t, node.public, http.MethodPost, "/v1/tx/submit", map[string]string{"transaction": ""})
	require.Contains(t, decodeError(t, w).Fields, "transaction")

	require.Len(t, node.state.RetrievePending(), 1)
}

func Test_QueryAndSearch(t *testing.T) {
	node := newTestNode(t, keyvault.CustodyEmbedded)

	require.NoError(t, node.state.SubmitTransaction("A"))
	require.NoError(t, node.state.SubmitTransaction("B"))
	block, err := node.state.SealBlock()
	require.NoError(t, err)

	w := do(t, node.public, http.MethodGet, "/v1/block/"+block.Hash, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var view state.BlockView
	require.NoError(t, json.NewDecoder(w.Body).Decode(&view))
	require.Equal(t, block.Hash, view.Hash)
	require.Equal(t, block.TimeStamp, view.TimeStamp)
	require.Equal(t, "AB", view.Transactions)

	w = do(t, node.public, http.MethodGet, "/v1/block/unknown", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, v1.KindNotFound, decodeError(t, w).Kind)

	w = do(t, node.public, http.MethodGet, "/v1/tx/search?term=A", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var views []state.BlockView
	require.NoError(t, json.NewDecoder(w.Body).Decode(&views))
	require.Len(t, views, 1)
	require.Equal(t, block.Hash, views[0].Hash)

	w = do(t, node.public, http.MethodGet, "/v1/tx/search?term=Z", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, "[]", w.Body.String())

	w = do(t, node.public, http.MethodGet, "/v1/tx/search", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, v1.KindInvalidQuery, decodeError(t, w).Kind)

	w = do(t, node.public, http.MethodGet, "/v1/blocks/list/0/5", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var headers []struct {
		Number uint64 `json:"number"`
		Hash   string `json:"hash"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&headers))
	require.Len(t, headers, 2)
	require.Equal(t, uint64(1), headers[1].Number)
	require.Equal(t, block.Hash, headers[1].Hash)

	w = do(t, node.public, http.MethodGet, "/v1/blocks/list/x/5", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, v1.KindInvalidQuery, decodeError(t, w).Kind)
}

func Test_DecryptionError(t *testing.T) {
	node := newTestNode(t, keyvault.CustodyVault)

	require.NoError(t, node.state.SubmitTransaction("secret"))
	block, err := node.state.SealBlock()
	require.NoError(t, err)

	// Replay the same storage on a node that holds none of the keys.
	c, err := cipher.New(cipher.SchemeFernet)
	require.NoError(t, err)

	st, err := state.New(state.Config{Storage: node.storage, Cipher: c})
	require.NoError(t, err)

	other := newTestNodeFromState(st, node.storage)

	w := do(t, other.public, http.MethodGet, "/v1/block/"+block.Hash, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	er := decodeError(t, w)
	require.Equal(t, v1.KindDecryptionError, er.Kind)
	require.NotContains(t, er.Error, "goroutine")

	w = do(t, other.public, http.MethodGet, "/v1/tx/search?term=secret", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "2", w.Header().Get("X-Block-Failures"))
}

func Test_NodeStatusAndAnnounce(t *testing.T) {
	node := newTestNode(t, keyvault.CustodyEmbedded)

	w := do(t, node.private, http.MethodGet, "/v1/node/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status peer.Status
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	require.Equal(t, uint64(1), status.Height)
	require.True(t, status.Verified)
	require.Equal(t, node.state.RetrieveLatestBlock().Hash, status.LatestBlockHash)

	pk, err := crypto.HexToECDSA(pkHexKey)
	require.NoError(t, err)

	ann := peer.Announcement{
		Host:          "localhost:9180",
		Hash:          "abc",
		PrevBlockHash: "0",
		TimeStamp:     1700000000.5,
		Height:        1,
	}
	sig, err := signature.Sign(ann, pk)
	require.NoError(t, err)

	w = do(t, node.private, http.MethodPost, "/v1/node/block/announce", peer.SignedAnnouncement{Announcement: ann, Signature: sig})
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, []peer.Peer{{Host: "localhost:9180"}}, node.state.RetrieveKnownPeers())

	w = do(t, node.private, http.MethodPost, "/v1/node/block/announce", peer.SignedAnnouncement{Announcement: ann})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, v1.KindInvalidSignature, decodeError(t, w).Kind)

	stranger, err := crypto.GenerateKey()
	require.NoError(t, err)

	ann.Host = "attacker.example:9080"
	sig, err = signature.Sign(ann, stranger)
	require.NoError(t, err)

	w = do(t, node.private, http.MethodPost, "/v1/node/block/announce", peer.SignedAnnouncement{Announcement: ann, Signature: sig})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, v1.KindInvalidSignature, decodeError(t, w).Kind)
	require.Equal(t, []peer.Peer{{Host: "localhost:9180"}}, node.state.RetrieveKnownPeers())
}
