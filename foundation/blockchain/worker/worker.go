// Package worker implements block sealing and the distribution of sealed
// blocks for the blockchain.
package worker

import (
	"context"
	"crypto/ecdsa"
	"net/http"
	"sync"
	"time"

	"github.com/ardanlabs/blockvault/foundation/blockchain/database"
	"github.com/ardanlabs/blockvault/foundation/blockchain/state"
	"go.uber.org/ratelimit"
)

// maxSealNotifications represents the max number of sealed block
// notifications that can be outstanding before notifications are dropped.
const maxSealNotifications = 100

// Default values used when the configuration leaves them unset.
const (
	defaultSealInterval = time.Second
	defaultAnnounceRate = 10
	defaultSendTimeout  = 5 * time.Second
)

// =============================================================================

// Config represents the settings the worker runs with.
type Config struct {
	SealInterval time.Duration
	PrivateKey   *ecdsa.PrivateKey
	AnnounceRate int
	SendTimeout  time.Duration
	Client       *http.Client
	EvHandler    state.EventHandler
}

// Worker manages the sealing and distribution workflows for the blockchain.
type Worker struct {
	state       *state.State
	wg          sync.WaitGroup
	ticker      *time.Ticker
	shut        chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
	sealed      chan database.Block
	privateKey  *ecdsa.PrivateKey
	limiter     ratelimit.Limiter
	client      *http.Client
	sendTimeout time.Duration
	evHandler   state.EventHandler
	baseURL     string
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, cfg Config) *Worker {
	interval := cfg.SealInterval
	if interval <= 0 {
		interval = defaultSealInterval
	}

	rate := cfg.AnnounceRate
	if rate <= 0 {
		rate = defaultAnnounceRate
	}

	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}

	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}

	evHandler := cfg.EvHandler
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := Worker{
		state:       st,
		ticker:      time.NewTicker(interval),
		shut:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		sealed:      make(chan database.Block, maxSealNotifications),
		privateKey:  cfg.PrivateKey,
		limiter:     ratelimit.New(rate),
		client:      client,
		sendTimeout: sendTimeout,
		evHandler:   evHandler,
		baseURL:     "http://%s/v1/node",
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Load the set of operations we need to run.
	operations := []func(){
		w.sealOperations,
		w.distributeOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for range g {
		<-hasStarted
	}

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutines performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: stop ticker")
	w.ticker.Stop()

	w.evHandler("worker: shutdown: cancel outstanding announcements")
	w.cancel()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// SignalBlockSealed queues the block for distribution. If
// maxSealNotifications signals exist in the channel, the notification is
// dropped and sealing carries on.
func (w *Worker) SignalBlockSealed(block database.Block) {
	select {
	case w.sealed <- block:
		w.evHandler("worker: SignalBlockSealed: distribution signaled: blk[%s]", block.Hash)
	default:
		w.evHandler("worker: SignalBlockSealed: queue full, blk[%s] won't be distributed", block.Hash)
	}
}

// =============================================================================

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
