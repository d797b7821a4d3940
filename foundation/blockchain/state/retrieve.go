package state

import (
	"github.com/darendal/powchain/foundation/blockchain/database"
	"github.com/darendal/powchain/foundation/blockchain/peer"
)

// RetrieveIdentity returns the identity of the node.
func (s *State) RetrieveIdentity() uint16 {
	return s.identity
}

// RetrieveDifficulty returns the number of leading zeros a hash requires.
func (s *State) RetrieveDifficulty() uint {
	return s.db.Difficulty()
}

// RetrieveLatestBlock returns a copy the current latest block.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.LatestBlock()
}

// RetrieveBlocks returns a copy of the in memory chain.
func (s *State) RetrieveBlocks() []database.Block {
	return s.db.Blocks()
}

// RetrieveLength returns the number of blocks in the chain.
func (s *State) RetrieveLength() int {
	return s.db.Len()
}

// RetrieveStatus returns the status of this node.
func (s *State) RetrieveStatus() peer.PeerStatus {
	blocks := s.db.Blocks()
	latest, _ := database.LatestBlock(blocks)

	return peer.PeerStatus{
		Identity:         s.identity,
		LatestBlockHash:  latest.Hash,
		LatestBlockIndex: latest.Index,
		Length:           len(blocks),
	}
}

// ReadChain re-reads the full chain from storage and validates it. The in
// memory chain shared with mining is not used, storage is the source of truth.
func (s *State) ReadChain() ([]database.Block, error) {
	return s.db.Snapshot()
}
