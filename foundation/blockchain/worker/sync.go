package worker

import (
	"context"
	"time"
)

// syncTimeout bounds a single periodic pull from the configured peer.
const syncTimeout = time.Minute

// syncOperations periodically checks the configured peer and pulls its
// chain when the peer is ahead of this node.
func (w *Worker) syncOperations() {
	w.evHandler("worker: syncOperations: G started")
	defer w.evHandler("worker: syncOperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.runSyncOperation()
			}
		case <-w.shut:
			w.evHandler("worker: syncOperations: received shut signal")
			return
		}
	}
}

// runSyncOperation pulls the peer's chain if it reports more blocks than
// this node holds. Chains are only compared by length.
func (w *Worker) runSyncOperation() {
	w.evHandler("worker: runSyncOperation: started: %s", w.syncPeer)
	defer w.evHandler("worker: runSyncOperation: completed: %s", w.syncPeer)

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	status, err := w.state.NetQueryPeerStatus(ctx, w.syncPeer)
	if err != nil {
		w.evHandler("worker: runSyncOperation: queryPeerStatus: %s: ERROR: %s", w.syncPeer, err)
		return
	}

	if status.Length <= w.state.RetrieveLength() {
		w.evHandler("worker: runSyncOperation: peer not ahead: peer[%d]: local[%d]", status.Length, w.state.RetrieveLength())
		return
	}

	if err := w.state.PullFrom(ctx, w.syncPeer); err != nil {
		w.evHandler("worker: runSyncOperation: pullFrom: %s: ERROR: %s", w.syncPeer, err)
	}
}
