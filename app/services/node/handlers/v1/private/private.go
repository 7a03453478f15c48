// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	v1 "github.com/ardanlabs/blockvault/business/web/v1"
	"github.com/ardanlabs/blockvault/foundation/blockchain/peer"
	"github.com/ardanlabs/blockvault/foundation/blockchain/state"
	"github.com/ardanlabs/blockvault/foundation/web"
	"go.uber.org/zap"
)

// ErrUntrustedSigner is returned when an announcement is signed by a key
// that isn't in the trusted signer list.
var ErrUntrustedSigner = errors.New("announcement signer is not trusted")

// Handlers manages the set of node endpoints. Only announcements signed by
// one of the TrustedSigners addresses are accepted.
type Handlers struct {
	Log            *zap.SugaredLogger
	State          *state.State
	NodeAddress    string
	TrustedSigners []string
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	verified := true
	if num, err := h.State.VerifyChain(); err != nil {
		h.Log.Errorw("node status", "traceid", v.TraceID, "blk", num, "ERROR", err)
		verified = false
	}

	status := peer.Status{
		LatestBlockHash: h.State.RetrieveLatestBlock().Hash,
		Height:          h.State.RetrieveHeight(),
		Pending:         len(h.State.RetrievePending()),
		Verified:        verified,
		NodeAddress:     h.NodeAddress,
		KnownPeers:      h.State.RetrieveKnownPeers(),
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// AnnounceBlock records a block sealed by a peer. The announcement must be
// signed by a trusted peer and the peer becomes a known peer. Nothing is
// replicated into the local chain.
func (h Handlers) AnnounceBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var ann peer.SignedAnnouncement
	if err := web.Decode(r, &ann); err != nil {
		return v1.NewRequestError(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest, v1.KindInvalidSignature)
	}

	signer, err := ann.Signature.Signer(ann.Announcement)
	if err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest, v1.KindInvalidSignature)
	}

	if !h.trusted(signer) {
		h.Log.Infow("block announced", "traceid", v.TraceID, "status", "rejected", "host", ann.Host, "signer", signer)
		return v1.NewRequestError(fmt.Errorf("%w: %s", ErrUntrustedSigner, signer), http.StatusForbidden, v1.KindInvalidSignature)
	}

	h.Log.Infow("block announced", "traceid", v.TraceID, "host", ann.Host, "signer", signer,
		"blk", ann.Hash, "prev", ann.PrevBlockHash, "height", ann.Height)

	if ann.Host != "" && h.State.AddKnownPeer(peer.New(ann.Host)) {
		h.Log.Infow("block announced", "traceid", v.TraceID, "status", "added known peer", "host", ann.Host)
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// trusted reports if the address is in the trusted signer list. Addresses
// are compared without regard to checksum case.
func (h Handlers) trusted(address string) bool {
	for _, a := range h.TrustedSigners {
		if strings.EqualFold(a, address) {
			return true
		}
	}

	return false
}
