package worker

// sealOperations seals a block on every tick of the seal interval.
func (w *Worker) sealOperations() {
	w.evHandler("worker: sealOperations: G started")
	defer w.evHandler("worker: sealOperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.runSealOperation()
			}
		case <-w.shut:
			w.evHandler("worker: sealOperations: received shut signal")
			return
		}
	}
}

// runSealOperation seals whatever is pending. A failed seal leaves the
// pending transactions in place for the next tick.
func (w *Worker) runSealOperation() {
	block, err := w.state.SealBlock()
	if err != nil {
		w.evHandler("worker: runSealOperation: ERROR: %s", err)
		return
	}

	w.evHandler("worker: runSealOperation: sealed: blk[%s]", block.Hash)
}
