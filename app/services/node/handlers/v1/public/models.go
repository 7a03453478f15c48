package public

import (
	"github.com/ardanlabs/blockvault/foundation/blockchain/database"
)

// SubmitTx is the payload accepted for a new transaction.
type SubmitTx struct {
	Transaction string `json:"transaction" validate:"required"`
}

type blockHeader struct {
	Number        uint64  `json:"number"`
	Hash          string  `json:"hash"`
	PrevBlockHash string  `json:"prev_block_hash"`
	TimeStamp     float64 `json:"timestamp"`
}

func toBlockHeaders(from uint64, blocks []database.Block) []blockHeader {
	headers := make([]blockHeader, len(blocks))
	for i, block := range blocks {
		headers[i] = blockHeader{
			Number:        from + uint64(i),
			Hash:          block.Hash,
			PrevBlockHash: block.PrevBlockHash,
			TimeStamp:     block.TimeStamp,
		}
	}

	return headers
}
