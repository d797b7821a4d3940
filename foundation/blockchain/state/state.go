// Package state is the core API for the blockchain node and implements all
// the business rules and processing.
package state

import (
	"context"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/darendal/powchain/foundation/blockchain/database"
)

// defaultSyncTimeout is used when no timeout is configured for pulling a
// chain from a peer.
const defaultSyncTimeout = 30 * time.Second

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for background mining.
type Worker interface {
	Shutdown()
	SignalMineToSize(size int)
	SignalCancelMining() (done func())
	SignalStopMining()
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Identity    uint16
	Storage     database.Storage
	Difficulty  uint
	Workers     int
	StrictAdopt bool
	SyncTimeout time.Duration
	EvHandler   EventHandler
}

// State manages the blockchain database for one node.
type State struct {
	identity  uint16
	evHandler EventHandler
	client    *http.Client

	db *database.Database

	Worker Worker
}

// New constructs a new node. The chain is opened on the configured storage,
// which includes writing the genesis block when the storage is empty.
func New(ctx context.Context, cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	// Open the chain, bootstrapping the storage if required.
	db, err := database.Open(ctx, database.Config{
		Storage:     cfg.Storage,
		Difficulty:  cfg.Difficulty,
		Workers:     cfg.Workers,
		StrictAdopt: cfg.StrictAdopt,
		EvHandler:   database.EventHandler(ev),
	})
	if err != nil {
		return nil, err
	}

	timeout := cfg.SyncTimeout
	if timeout <= 0 {
		timeout = defaultSyncTimeout
	}

	state := State{
		identity:  cfg.Identity,
		evHandler: ev,
		client:    &http.Client{Timeout: timeout},
		db:        db,
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	// Make sure the storage is properly closed.
	return s.db.Close()
}

// ChainPath returns the chain directory for the node with the specified
// identity so distinct nodes on the same machine get distinct storage.
func ChainPath(base string, identity uint16) string {
	return filepath.Join(base, strconv.FormatUint(uint64(identity), 10))
}
