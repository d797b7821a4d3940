package state

import (
	"context"
	"errors"

	"github.com/darendal/powchain/foundation/blockchain/database"
)

// MineNewBlock mines the block that follows the latest block in the chain,
// writes it to storage and appends it to the chain.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: perform POW on top of %s", s.db.LatestBlock())

	block, err := s.db.Mine(ctx)
	if err != nil {
		return database.Block{}, err
	}

	s.evHandler("state: MineNewBlock: MINING: added %s: length[%d]", block, s.db.Len())

	return block, nil
}

// MineToSize mines blocks until the chain holds at least the specified number
// of blocks. This call blocks the caller and can only be stopped by the
// context.
func (s *State) MineToSize(ctx context.Context, size int) error {
	s.evHandler("state: MineToSize: started: length[%d]: target[%d]", s.db.Len(), size)
	defer s.evHandler("state: MineToSize: completed: length[%d]", s.db.Len())

	for s.db.Len() < size {
		_, err := s.MineNewBlock(ctx)
		switch {
		case errors.Is(err, database.ErrChainChanged):
			s.evHandler("state: MineToSize: chain changed, mining on the new latest block")
		case err != nil:
			return err
		}
	}

	return nil
}
