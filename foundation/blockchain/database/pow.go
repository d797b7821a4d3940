package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// EventHandler defines a function that is called when events occur in the
// processing of mining and persisting blocks.
type EventHandler func(v string, args ...any)

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	Index      uint64
	Timestamp  time.Time
	PrevHash   string
	Data       string
	Difficulty uint
	Workers    int
	EvHandler  EventHandler
}

// POW constructs a new Block and performs the work to find the smallest
// nonce that solves the cryptographic POW puzzle. The search stops early
// only if the context is cancelled.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	ev := args.EvHandler
	if ev == nil {
		ev = func(string, ...any) {}
	}

	nb := Block{
		Index:     args.Index,
		Timestamp: args.Timestamp.UTC().Round(0),
		PrevHash:  args.PrevHash,
		Data:      args.Data,
	}

	ev("database: POW: MINING: started: blk[%d]: difficulty[%d]: workers[%d]", nb.Index, args.Difficulty, args.Workers)
	defer ev("database: POW: MINING: completed: blk[%d]", nb.Index)

	var nonce uint64
	var err error
	switch {
	case args.Workers > 1:
		nonce, err = nb.searchSharded(ctx, args.Difficulty, args.Workers, ev)
	default:
		nonce, err = nb.searchSequential(ctx, args.Difficulty, ev)
	}
	if err != nil {
		ev("database: POW: MINING: CANCELLED: blk[%d]", nb.Index)
		return Block{}, err
	}

	nb.Nonce = nonce
	nb.Hash = nb.hashWith(nonce)

	ev("database: POW: MINING: SOLVED: blk[%d]: nonce[%d]: prevBlk[%s]: newBlk[%s]", nb.Index, nonce, nb.PrevHash, nb.Hash)

	return nb, nil
}

// searchSequential walks the nonce space from zero until a solution is found.
func (b Block) searchSequential(ctx context.Context, difficulty uint, ev EventHandler) (uint64, error) {
	for nonce := uint64(0); ; nonce++ {
		if nonce%1_000_000 == 0 {
			if nonce > 0 {
				ev("database: POW: MINING: blk[%d]: attempts[%d]", b.Index, nonce)
			}

			// Did we get cancelled trying to solve the problem.
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}

		if isHashSolved(difficulty, b.hashWith(nonce)) {
			return nonce, nil
		}
	}
}

// searchSharded splits the nonce space by stride across the workers. A worker
// keeps going until its next nonce is larger than the best solution found so
// far, which guarantees the smallest valid nonce wins.
func (b Block) searchSharded(ctx context.Context, difficulty uint, workers int, ev EventHandler) (uint64, error) {
	var best atomic.Uint64
	best.Store(math.MaxUint64)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(workers)

	for w := range workers {
		go func(start uint64) {
			defer wg.Done()

			stride := uint64(workers)
			for nonce, n := start, uint64(0); nonce < best.Load(); nonce, n = nonce+stride, n+1 {
				if n%1_000_000 == 0 && ctx.Err() != nil {
					return
				}

				if !isHashSolved(difficulty, b.hashWith(nonce)) {
					continue
				}

				for {
					cur := best.Load()
					if nonce >= cur || best.CompareAndSwap(cur, nonce) {
						break
					}
				}
				return
			}
		}(uint64(w))
	}

	wg.Wait()

	// A cancel can stop workers before they reach the smallest nonce.
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	nonce := best.Load()
	if nonce == math.MaxUint64 {
		return 0, fmt.Errorf("nonce space exhausted for blk[%d]", b.Index)
	}

	ev("database: POW: MINING: blk[%d]: sharded search settled on nonce[%d]", b.Index, nonce)

	return nonce, nil
}

// hashWith returns the hash of the block header for the specified nonce.
func (b Block) hashWith(nonce uint64) string {
	return HashHeader(b.Index, b.PrevHash, b.Data, b.Timestamp, nonce)
}

// HashHeader is the pure proof of work function. It concatenates the header
// fields with the nonce and returns the hex encoded SHA-256 of the result.
func HashHeader(index uint64, prevHash string, data string, timestamp time.Time, nonce uint64) string {
	header := fmt.Sprintf("%d%s%s%s%d", index, prevHash, data, timestamp.UTC().Format(time.RFC3339Nano), nonce)

	hash := sha256.Sum256([]byte(header))
	return hex.EncodeToString(hash[:])
}

// isHashSolved checks the hash to make sure it complies with the POW rules.
// We need to match a difficulty number of leading 0's.
func isHashSolved(difficulty uint, hash string) bool {
	if uint(len(hash)) < difficulty {
		return false
	}

	return strings.Count(hash[:difficulty], "0") == int(difficulty)
}
