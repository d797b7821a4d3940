package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Payloads used for the demo content of blocks.
const (
	genesisData     = "First block data"
	minedDataFormat = "I block %d"
)

// Block represents one unit of the chain. The hash is computed once by the
// POW search during construction and stored, it is never recomputed on demand.
type Block struct {
	Index     uint64    `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	PrevHash  string    `json:"prev_hash" validate:"omitempty,hexadecimal,len=64"`
	Hash      string    `json:"hash" validate:"required,hexadecimal,len=64"`
	Data      string    `json:"data"`
	Nonce     uint64    `json:"nonce"`
}

// NewGenesis constructs the first block of a chain. This call blocks until
// the POW puzzle is solved.
func NewGenesis(difficulty uint) Block {
	return NewBlock(0, time.Now(), "", genesisData, difficulty)
}

// Genesis constructs the first block of a chain. The POW search can be
// cancelled with the context.
func Genesis(ctx context.Context, difficulty uint, evHandler EventHandler) (Block, error) {
	return POW(ctx, POWArgs{
		Index:      0,
		Timestamp:  time.Now(),
		Data:       genesisData,
		Difficulty: difficulty,
		EvHandler:  evHandler,
	})
}

// NewBlock constructs a block and performs the unbounded sequential POW
// search for its hash. There is no iteration cap or timeout, use POW for a
// cancelable search.
func NewBlock(index uint64, timestamp time.Time, prevHash string, data string, difficulty uint) Block {
	block, _ := POW(context.Background(), POWArgs{
		Index:      index,
		Timestamp:  timestamp,
		PrevHash:   prevHash,
		Data:       data,
		Difficulty: difficulty,
	})

	return block
}

// MineSuccessor mines the block that follows this one in the chain. The index,
// timestamp, previous hash and data fields of args are replaced.
func (b Block) MineSuccessor(ctx context.Context, args POWArgs) (Block, error) {
	args.Index = b.Index + 1
	args.Timestamp = time.Now()
	args.PrevHash = b.Hash
	args.Data = fmt.Sprintf(minedDataFormat, b.Index)

	return POW(ctx, args)
}

// IsValid reports whether the stored hash has the number of leading zeros
// the difficulty requires. The hash is NOT recomputed from the block fields,
// so a tampered block that kept a valid looking hash is reported valid.
func (b Block) IsValid(difficulty uint) bool {
	return isHashSolved(difficulty, b.Hash)
}

// VerifyHash recomputes the header hash with the stored nonce and reports
// whether it matches the stored hash.
func (b Block) VerifyHash() bool {
	return b.Hash == b.hashWith(b.Nonce)
}

// Equal reports whether both values represent the same block. Only the hash
// and index take part in the comparison.
func (b Block) Equal(other Block) bool {
	return b.Hash == other.Hash && b.Index == other.Index
}

// String implements the fmt.Stringer interface.
func (b Block) String() string {
	return fmt.Sprintf("blk[%d]:%s", b.Index, b.Hash)
}

// =============================================================================

// Encode returns the JSON interchange form of the block.
func (b Block) Encode() ([]byte, error) {
	return json.Marshal(b)
}

// Decode converts the JSON interchange form back into a block.
func Decode(data []byte, source string) (Block, error) {
	var block Block
	if err := json.Unmarshal(data, &block); err != nil {
		return Block{}, &DecodeError{Source: source, Err: err}
	}

	return block, nil
}

// EncodeBlocks returns the JSON array form of the set of blocks.
func EncodeBlocks(blocks []Block) ([]byte, error) {
	if blocks == nil {
		blocks = []Block{}
	}

	return json.Marshal(blocks)
}

// DecodeBlocks converts the JSON array form back into a set of blocks.
func DecodeBlocks(data []byte, source string) ([]Block, error) {
	var blocks []Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, &DecodeError{Source: source, Err: err}
	}

	return blocks, nil
}
