package database

import (
	"fmt"
	"slices"
)

// SortBlocks orders the blocks by index in ascending order.
func SortBlocks(blocks []Block) {
	slices.SortFunc(blocks, func(a, b Block) int {
		switch {
		case a.Index < b.Index:
			return -1
		case a.Index > b.Index:
			return 1
		}
		return 0
	})
}

// LatestBlock returns the block with the highest index. Indexes are unique
// within a chain so there are no ties to break.
func LatestBlock(blocks []Block) (Block, bool) {
	if len(blocks) == 0 {
		return Block{}, false
	}

	latest := blocks[0]
	for _, block := range blocks[1:] {
		if block.Index > latest.Index {
			latest = block
		}
	}

	return latest, true
}

// CompareChains compares two chains by length only. It returns -1 when a is
// shorter, 1 when a is longer and 0 when both have the same number of blocks.
// This is not a fork choice rule, no work or validity is taken into account.
func CompareChains(a, b []Block) int {
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// EqualChains reports whether both chains have the same length and the same
// blocks in the same order.
func EqualChains(a, b []Block) bool {
	return slices.EqualFunc(a, b, Block.Equal)
}

// =============================================================================

// ValidateLinkage walks an index ordered sequence checking that every block
// points at the hash of the block before it and that the indexes increase
// by one. The first violation is returned.
func ValidateLinkage(blocks []Block) error {
	for i := 1; i < len(blocks); i++ {
		prev, block := blocks[i-1], blocks[i]

		if block.Index != prev.Index+1 {
			return &ChainIntegrityError{
				Index:  block.Index,
				Reason: fmt.Sprintf("block is not the next index, got %d, exp %d", block.Index, prev.Index+1),
			}
		}

		if block.PrevHash != prev.Hash {
			return &ChainIntegrityError{
				Index:  block.Index,
				Reason: fmt.Sprintf("parent block hash doesn't match, got %s, exp %s", block.PrevHash, prev.Hash),
			}
		}
	}

	return nil
}

// ValidateChain performs the strict checks used before adopting a chain
// received from a peer. On top of the linkage rules it requires a genesis
// block at index zero and a recomputable, solved hash for every block.
func ValidateChain(blocks []Block, difficulty uint, evHandler EventHandler) error {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	if len(blocks) == 0 {
		return &ChainIntegrityError{Index: 0, Reason: "chain is empty"}
	}

	if err := validateGenesis(blocks[0]); err != nil {
		return err
	}

	for _, block := range blocks {
		evHandler("database: ValidateChain: validate: blk[%d]: check: block hash has been solved", block.Index)

		if !block.IsValid(difficulty) {
			return &ChainIntegrityError{Index: block.Index, Reason: fmt.Sprintf("%s invalid block hash", block.Hash)}
		}

		if !block.VerifyHash() {
			return &ChainIntegrityError{Index: block.Index, Reason: "block hash doesn't match block contents"}
		}
	}

	evHandler("database: ValidateChain: validate: blks[%d]: check: linkage", len(blocks))

	return ValidateLinkage(blocks)
}

// validateGenesis checks the first block of a chain is a genesis block.
func validateGenesis(genesis Block) error {
	if genesis.Index != 0 || genesis.PrevHash != "" {
		return &ChainIntegrityError{Index: genesis.Index, Reason: "first block is not a genesis block"}
	}

	return nil
}
