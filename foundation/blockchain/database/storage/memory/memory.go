// Package memory implements the ability to read and write blocks to memory
// using a map keyed by block index.
package memory

import (
	"fmt"
	"io/fs"
	"sync"

	"github.com/darendal/powchain/foundation/blockchain/database"
)

// Memory represents the serialization implementation for reading and storing
// blocks in memory. This implements the database.Storage interface.
type Memory struct {
	mu     sync.RWMutex
	blocks map[uint64]database.Block
}

// New constructs a Memory value for use.
func New() *Memory {
	return &Memory{
		blocks: make(map[uint64]database.Block),
	}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Write stores the block, replacing any block with the same index.
func (m *Memory) Write(block database.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks[block.Index] = block
	return nil
}

// GetBlock locates and returns the specified block by index.
func (m *Memory) GetBlock(index uint64) (database.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	block, exists := m.blocks[index]
	if !exists {
		return database.Block{}, &database.StorageError{Op: "get", Path: fmt.Sprintf("blk[%d]", index), Err: fs.ErrNotExist}
	}

	return block, nil
}

// ReadAll returns every stored block in no particular order.
func (m *Memory) ReadAll() ([]database.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blocks := make([]database.Block, 0, len(m.blocks))
	for _, block := range m.blocks {
		blocks = append(blocks, block)
	}

	return blocks, nil
}

// Truncate removes every block with an index equal or greater than the
// specified length.
func (m *Memory) Truncate(length uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for index := range m.blocks {
		if index >= length {
			delete(m.blocks, index)
		}
	}

	return nil
}
