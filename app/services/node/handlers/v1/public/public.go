// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	v1 "github.com/ardanlabs/blockvault/business/web/v1"
	"github.com/ardanlabs/blockvault/foundation/blockchain/cipher"
	"github.com/ardanlabs/blockvault/foundation/blockchain/codec"
	"github.com/ardanlabs/blockvault/foundation/blockchain/database"
	"github.com/ardanlabs/blockvault/foundation/blockchain/state"
	"github.com/ardanlabs/blockvault/foundation/events"
	"github.com/ardanlabs/blockvault/foundation/validate"
	"github.com/ardanlabs/blockvault/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of vault endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide seal events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// SubmitTransaction adds a new transaction to the pending buffer.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var tx SubmitTx
	if err := web.Decode(r, &tx); err != nil {
		return v1.NewRequestError(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest, v1.KindInvalidTransaction)
	}

	if err := validate.Check(tx); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest, v1.KindInvalidTransaction)
	}

	h.Log.Infow("submit tran", "traceid", v.TraceID, "len", len(tx.Transaction))
	if err := h.State.SubmitTransaction(tx.Transaction); err != nil {
		return toRequestError(err)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "transaction received",
	}

	return web.Respond(ctx, w, resp, http.StatusCreated)
}

// QueryBlock returns the decrypted view of the block with the specified hash.
func (h Handlers) QueryBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	view, err := h.State.RetrieveBlockView(web.Param(r, "hash"))
	if err != nil {
		return toRequestError(err)
	}

	return web.Respond(ctx, w, view, http.StatusOK)
}

// SearchTransactions returns the views of the blocks whose transactions
// contain the term, in chain order. Blocks that can't be opened are skipped
// and counted in the X-Block-Failures header.
func (h Handlers) SearchTransactions(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	views, failures, err := h.State.SearchTransactions(r.URL.Query().Get("term"))
	if err != nil {
		return toRequestError(err)
	}

	for _, f := range failures {
		h.Log.Infow("search tran", "traceid", v.TraceID, "blk", f.Hash, "ERROR", f.Err)
	}

	if len(failures) > 0 {
		w.Header().Set("X-Block-Failures", strconv.Itoa(len(failures)))
	}

	if views == nil {
		views = []state.BlockView{}
	}

	return web.Respond(ctx, w, views, http.StatusOK)
}

// BlocksByRange returns the headers of the blocks numbered from through to.
func (h Handlers) BlocksByRange(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	from, err := strconv.ParseUint(web.Param(r, "from"), 10, 64)
	if err != nil {
		return v1.NewRequestError(fmt.Errorf("%w: from: %w", state.ErrInvalidQuery, err), http.StatusBadRequest, v1.KindInvalidQuery)
	}

	to, err := strconv.ParseUint(web.Param(r, "to"), 10, 64)
	if err != nil {
		return v1.NewRequestError(fmt.Errorf("%w: to: %w", state.ErrInvalidQuery, err), http.StatusBadRequest, v1.KindInvalidQuery)
	}

	blocks, err := h.State.QueryBlocksByRange(from, to)
	if err != nil {
		return toRequestError(err)
	}

	return web.Respond(ctx, w, toBlockHeaders(from, blocks), http.StatusOK)
}

// Pending returns the transactions waiting for the next seal.
func (h Handlers) Pending(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrievePending(), http.StatusOK)
}

// =============================================================================

// toRequestError maps the chain errors to the status and kind reported to
// the client. Anything unknown is left for the Errors middleware.
func toRequestError(err error) error {
	switch {
	case errors.Is(err, state.ErrInvalidTransaction):
		return v1.NewRequestError(err, http.StatusBadRequest, v1.KindInvalidTransaction)
	case errors.Is(err, state.ErrInvalidQuery):
		return v1.NewRequestError(err, http.StatusBadRequest, v1.KindInvalidQuery)
	case errors.Is(err, database.ErrNotFound):
		return v1.NewRequestError(err, http.StatusNotFound, v1.KindNotFound)
	case errors.Is(err, codec.ErrCorruptPayload):
		return v1.NewRequestError(err, http.StatusUnprocessableEntity, v1.KindCorruptPayload)
	case errors.Is(err, cipher.ErrDecryption):
		return v1.NewRequestError(err, http.StatusUnprocessableEntity, v1.KindDecryptionError)
	case errors.Is(err, database.ErrSeal):
		return v1.NewRequestError(err, http.StatusInternalServerError, v1.KindSealError)
	}

	return err
}
