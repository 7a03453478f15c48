package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ardanlabs/blockvault/foundation/blockchain/database"
	"github.com/ardanlabs/blockvault/foundation/blockchain/peer"
	"github.com/ardanlabs/blockvault/foundation/blockchain/signature"
)

// distributeOperations handles handing sealed blocks to viewers and peers.
func (w *Worker) distributeOperations() {
	w.evHandler("worker: distributeOperations: G started")
	defer w.evHandler("worker: distributeOperations: G completed")

	for {
		select {
		case block := <-w.sealed:
			if !w.isShutdown() {
				w.runDistributeOperation(block)
			}
		case <-w.shut:
			w.evHandler("worker: distributeOperations: received shut signal")
			return
		}
	}
}

// runDistributeOperation publishes the sealed block to the viewers and
// announces it to the known peers. Failures are logged and never affect the
// chain.
func (w *Worker) runDistributeOperation(block database.Block) {
	height := w.state.RetrieveHeight()

	data, err := json.Marshal(struct {
		Hash          string  `json:"hash"`
		PrevBlockHash string  `json:"prev_block_hash"`
		TimeStamp     float64 `json:"timestamp"`
		Height        uint64  `json:"height"`
	}{
		Hash:          block.Hash,
		PrevBlockHash: block.PrevBlockHash,
		TimeStamp:     block.TimeStamp,
		Height:        height,
	})
	if err == nil {
		w.evHandler("viewer: block sealed: %s", data)
	}

	peers := w.state.RetrieveKnownPeers()
	if len(peers) == 0 {
		return
	}

	ann := peer.Announcement{
		Host:          w.state.RetrieveHost(),
		Hash:          block.Hash,
		PrevBlockHash: block.PrevBlockHash,
		TimeStamp:     block.TimeStamp,
		Height:        height,
	}

	signed := peer.SignedAnnouncement{
		Announcement: ann,
	}

	if w.privateKey != nil {
		sig, err := signature.Sign(ann, w.privateKey)
		if err != nil {
			w.evHandler("worker: runDistributeOperation: blk[%s]: ERROR: signing: %s", block.Hash, err)
			return
		}
		signed.Signature = sig
	}

	for _, p := range peers {
		if w.isShutdown() {
			return
		}

		w.limiter.Take()

		url := fmt.Sprintf("%s/block/announce", fmt.Sprintf(w.baseURL, p.Host))
		if err := w.send(http.MethodPost, url, signed); err != nil {
			w.evHandler("worker: runDistributeOperation: peer[%s]: WARNING: %s", p.Host, err)
			continue
		}

		w.evHandler("worker: runDistributeOperation: peer[%s]: announced blk[%s]", p.Host, block.Hash)
	}
}

// send posts the value as JSON and checks the peer accepted it.
func (w *Worker) send(method string, url string, dataSend any) error {
	data, err := json.Marshal(dataSend)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(w.ctx, w.sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
		return nil
	}

	msg, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	return errors.New(string(msg))
}
