// Package worker implements background mining and the periodic pull of a
// peer's chain for the blockchain node.
package worker

import (
	"sync"
	"time"

	"github.com/darendal/powchain/foundation/blockchain/peer"
	"github.com/darendal/powchain/foundation/blockchain/state"
)

// =============================================================================

// Config represents the configuration required to run the worker.
type Config struct {
	SyncPeer     peer.Peer
	SyncInterval time.Duration
	EvHandler    state.EventHandler
}

// Worker manages the POW workflows for the blockchain.
type Worker struct {
	state        *state.State
	wg           sync.WaitGroup
	ticker       *time.Ticker
	syncPeer     peer.Peer
	shut         chan struct{}
	startMining  chan bool
	cancelMining chan chan struct{}
	evHandler    state.EventHandler

	mu     sync.Mutex
	target int
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, cfg Config) *Worker {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	w := Worker{
		state:        st,
		syncPeer:     cfg.SyncPeer,
		shut:         make(chan struct{}),
		startMining:  make(chan bool, 1),
		cancelMining: make(chan chan struct{}, 1),
		evHandler:    ev,
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Load the set of operations we need to run.
	operations := []func(){
		w.miningOperations,
	}

	// The peer is only pulled periodically when both a peer and an
	// interval have been provided.
	if cfg.SyncPeer.Host != "" && cfg.SyncInterval > 0 {
		w.ticker = time.NewTicker(cfg.SyncInterval)
		operations = append(operations, w.syncOperations)
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

	if w.ticker != nil {
		w.evHandler("worker: shutdown: stop ticker")
		w.ticker.Stop()
	}

	w.evHandler("worker: shutdown: signal stop mining")
	w.SignalStopMining()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// SignalMineToSize starts a mining operation that runs until the chain
// holds the specified number of blocks. If there is already a signal pending
// in the channel the new target is picked up by that operation.
func (w *Worker) SignalMineToSize(size int) {
	w.mu.Lock()
	w.target = size
	w.mu.Unlock()

	select {
	case w.startMining <- true:
	default:
	}
	w.evHandler("worker: SignalMineToSize: mining signaled: target[%d]", size)
}

// SignalCancelMining signals the G executing the runMiningOperation function
// to stop immediately. That G will not return from the function until done
// is called. This allows the caller to complete any state changes before
// mining resumes towards the current target.
func (w *Worker) SignalCancelMining() (done func()) {
	wait := make(chan struct{})

	select {
	case w.cancelMining <- wait:
	default:
	}
	w.evHandler("worker: SignalCancelMining: MINING: CANCEL: signaled")

	return func() {
		close(wait)
		w.resume()
	}
}

// SignalStopMining cancels any mining in progress and clears the target so
// mining doesn't resume.
func (w *Worker) SignalStopMining() {
	w.mu.Lock()
	w.target = 0
	w.mu.Unlock()

	done := w.SignalCancelMining()
	done()
}

// =============================================================================

// resume signals mining again when the chain is below the current target.
// The chain can shrink when a shorter chain is adopted.
func (w *Worker) resume() {
	target := w.currentTarget()
	if target == 0 || w.isShutdown() || w.state.RetrieveLength() >= target {
		return
	}

	select {
	case w.startMining <- true:
	default:
	}
	w.evHandler("worker: resume: MINING: signaled: length[%d]: target[%d]", w.state.RetrieveLength(), target)
}

// currentTarget returns the number of blocks mining is working towards.
func (w *Worker) currentTarget() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.target
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
