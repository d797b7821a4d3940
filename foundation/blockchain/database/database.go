// Package database handles the chain of blocks a node owns: mining new
// blocks, loading and validating blocks from storage and replacing the chain
// with one received from a peer.
package database

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
)

// ErrChainEmpty is returned when an operation requires at least one block.
var ErrChainEmpty = errors.New("chain has no blocks")

// ErrChainChanged is returned by Mine when the chain was replaced while the
// POW was running.
var ErrChainChanged = errors.New("chain changed while mining")

// Storage interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain.
type Storage interface {
	Write(block Block) error
	GetBlock(index uint64) (Block, error)
	ReadAll() ([]Block, error)
	Truncate(length uint64) error
	Close() error
}

// =============================================================================

// Config represents the configuration required to open a chain.
type Config struct {
	Storage     Storage
	Difficulty  uint
	Workers     int
	StrictAdopt bool
	EvHandler   EventHandler
}

// Database manages the ordered sequence of blocks backed by storage. A single
// writer lock serializes all mutations of the chain.
type Database struct {
	mu sync.RWMutex

	storage     Storage
	difficulty  uint
	workers     int
	strictAdopt bool
	evHandler   EventHandler
	blocks      []Block
}

// Open constructs a database for the specified storage. If the storage holds
// no blocks the genesis block is mined and written. The blocks are then
// loaded and validated.
func Open(ctx context.Context, cfg Config) (*Database, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	db := Database{
		storage:     cfg.Storage,
		difficulty:  cfg.Difficulty,
		workers:     cfg.Workers,
		strictAdopt: cfg.StrictAdopt,
		evHandler:   ev,
	}

	if err := db.bootstrap(ctx); err != nil {
		return nil, err
	}

	if err := db.Sync(); err != nil {
		return nil, err
	}

	return &db, nil
}

// Close closes the underlying storage.
func (db *Database) Close() error {
	return db.storage.Close()
}

// Sync replaces the in memory chain with the blocks found in storage. The
// blocks are ordered by index and the linkage between them is validated.
func (db *Database) Sync() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	blocks, err := Load(db.storage)
	if err != nil {
		return err
	}

	db.evHandler("database: Sync: loaded blks[%d]", len(blocks))

	db.blocks = blocks
	return nil
}

// Mine performs the POW for the block that follows the latest block, writes
// it to storage and appends it to the chain. The POW runs without holding
// the lock so readers are not blocked. If the chain changed while mining the
// block is discarded and ErrChainChanged is returned.
func (db *Database) Mine(ctx context.Context) (Block, error) {
	latest, exists := LatestBlock(db.Blocks())
	if !exists {
		return Block{}, ErrChainEmpty
	}

	db.evHandler("database: Mine: MINING: successor of %s", latest)

	block, err := latest.MineSuccessor(ctx, POWArgs{
		Difficulty: db.difficulty,
		Workers:    db.workers,
		EvHandler:  db.evHandler,
	})
	if err != nil {
		return Block{}, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	current, exists := LatestBlock(db.blocks)
	if !exists || !current.Equal(latest) {
		db.evHandler("database: Mine: MINING: discarded %s: chain changed", block)
		return Block{}, ErrChainChanged
	}

	if block.PrevHash != current.Hash || block.Index != current.Index+1 {
		return Block{}, &ChainIntegrityError{
			Index:  block.Index,
			Reason: fmt.Sprintf("mined block doesn't extend %s", current),
		}
	}

	if err := db.storage.Write(block); err != nil {
		return Block{}, err
	}

	db.blocks = append(db.blocks, block)

	db.evHandler("database: Mine: MINING: appended %s", block)

	return block, nil
}

// Adopt replaces the chain with the specified blocks and writes every block
// to storage. Unless the database was opened in strict mode, NO validation
// of linkage or POW is performed on the blocks.
func (db *Database) Adopt(blocks []Block) error {
	if db.strictAdopt {
		return db.AdoptVerified(blocks)
	}

	return db.adopt(blocks)
}

// AdoptVerified validates the genesis block, the POW and the linkage of the
// specified blocks before replacing the chain with them.
func (db *Database) AdoptVerified(blocks []Block) error {
	if err := ValidateChain(blocks, db.difficulty, db.evHandler); err != nil {
		db.evHandler("database: AdoptVerified: REJECTED: %s", err)
		return err
	}

	return db.adopt(blocks)
}

// PersistAll writes every block of the chain to storage, overwriting any
// existing block with the same index.
func (db *Database) PersistAll() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.persistAll(db.blocks)
}

// Blocks returns a copy of the chain.
func (db *Database) Blocks() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	blocks := make([]Block, len(db.blocks))
	copy(blocks, db.blocks)
	return blocks
}

// Len returns the number of blocks in the chain.
func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.blocks)
}

// LatestBlock returns the block with the highest index.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	latest, _ := LatestBlock(db.blocks)
	return latest
}

// Snapshot re-reads the chain from storage instead of using the in memory
// copy. The read lock keeps writers from changing storage mid read.
func (db *Database) Snapshot() ([]Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return Load(db.storage)
}

// Difficulty returns the number of leading zeros a block hash requires.
func (db *Database) Difficulty() uint {
	return db.difficulty
}

// =============================================================================

// Load reads every block from storage, orders them by index and validates
// the chain starts with a genesis block and the linkage between them.
func Load(storage Storage) ([]Block, error) {
	blocks, err := storage.ReadAll()
	if err != nil {
		return nil, err
	}

	SortBlocks(blocks)

	if len(blocks) > 0 {
		if err := validateGenesis(blocks[0]); err != nil {
			return nil, err
		}
	}

	if err := ValidateLinkage(blocks); err != nil {
		return nil, err
	}

	return blocks, nil
}

// bootstrap writes the genesis block when storage is empty.
func (db *Database) bootstrap(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	blocks, err := db.storage.ReadAll()
	if err != nil {
		return err
	}

	if len(blocks) > 0 {
		return nil
	}

	db.evHandler("database: bootstrap: no blocks found, mining genesis")

	genesis, err := Genesis(ctx, db.difficulty, db.evHandler)
	if err != nil {
		return err
	}

	return db.storage.Write(genesis)
}

// adopt performs the replacement under the write lock. The chain in memory
// is only replaced once every block has been written.
func (db *Database) adopt(blocks []Block) error {
	if len(blocks) == 0 {
		return ErrChainEmpty
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	db.evHandler("database: Adopt: replacing blks[%d] with blks[%d]", len(db.blocks), len(blocks))

	cpy := make([]Block, len(blocks))
	copy(cpy, blocks)

	if err := db.persistAll(cpy); err != nil {
		return err
	}

	db.blocks = cpy

	// Remove blocks left over from a longer chain so storage holds exactly
	// the adopted chain. Nothing can follow the largest possible index.
	latest, _ := LatestBlock(cpy)
	if latest.Index == math.MaxUint64 {
		return nil
	}

	return db.storage.Truncate(latest.Index + 1)
}

// persistAll writes the blocks to storage. The caller must hold the lock.
func (db *Database) persistAll(blocks []Block) error {
	for _, block := range blocks {
		if err := db.storage.Write(block); err != nil {
			return err
		}
	}

	return nil
}
