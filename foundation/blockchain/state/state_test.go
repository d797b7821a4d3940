package state_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/darendal/powchain/foundation/blockchain/database"
	"github.com/darendal/powchain/foundation/blockchain/database/storage/disk"
	"github.com/darendal/powchain/foundation/blockchain/database/storage/memory"
	"github.com/darendal/powchain/foundation/blockchain/peer"
	"github.com/darendal/powchain/foundation/blockchain/state"
	"github.com/darendal/powchain/foundation/logger"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const difficulty = 1

// =============================================================================

func Test_MineToSize(t *testing.T) {
	t.Log("Given the need to mine a chain to a fixed size.")
	{
		st := newNode(t, 3000, memory.New(), false)

		if err := st.MineToSize(context.Background(), 6); err != nil {
			t.Fatalf("\t%s\tShould be able to mine to size 6: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to mine to size 6.", success)

		if st.RetrieveLength() != 6 {
			t.Fatalf("\t%s\tShould have 6 blocks, got %d.", failed, st.RetrieveLength())
		}
		t.Logf("\t%s\tShould have 6 blocks.", success)

		status := st.RetrieveStatus()
		if status.Identity != 3000 || status.Length != 6 || status.LatestBlockIndex != 5 {
			t.Fatalf("\t%s\tShould report the right status: %+v", failed, status)
		}
		t.Logf("\t%s\tShould report the right status.", success)

		if err := st.MineToSize(context.Background(), 2); err != nil {
			t.Fatalf("\t%s\tShould be able to ask for a smaller size: %v", failed, err)
		}

		if st.RetrieveLength() != 6 {
			t.Fatalf("\t%s\tShould not mine when the chain is already large enough, got %d.", failed, st.RetrieveLength())
		}
		t.Logf("\t%s\tShould not mine when the chain is already large enough.", success)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := st.MineToSize(ctx, 10); !errors.Is(err, context.Canceled) {
			t.Fatalf("\t%s\tShould stop mining on a cancelled context, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould stop mining on a cancelled context.", success)
	}
}

func Test_PullFrom(t *testing.T) {
	t.Log("Given the need to pull the chain from a serving node.")
	{
		base := t.TempDir()

		nodeA := newNode(t, 3000, diskStorage(t, base, 3000), false)
		if err := nodeA.MineToSize(context.Background(), 6); err != nil {
			t.Fatalf("\t%s\tShould be able to mine node A to size 6: %v", failed, err)
		}

		srv := serve(t, nodeA)

		nodeB := newNode(t, 3001, diskStorage(t, base, 3001), false)
		if nodeB.RetrieveLength() != 1 {
			t.Fatalf("\t%s\tShould start node B with only a genesis block, got %d.", failed, nodeB.RetrieveLength())
		}

		if err := nodeB.PullFrom(context.Background(), peer.New(srv.URL)); err != nil {
			t.Fatalf("\t%s\tShould be able to pull from node A: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to pull from node A.", success)

		if !database.EqualChains(nodeA.RetrieveBlocks(), nodeB.RetrieveBlocks()) {
			t.Fatalf("\t%s\tShould hold the same chain as node A.", failed)
		}
		t.Logf("\t%s\tShould hold the same chain as node A.", success)

		for i := range 6 {
			path := filepath.Join(state.ChainPath(base, 3001), fmt.Sprintf("%d.chain", i))
			if _, err := os.Stat(path); err != nil {
				t.Fatalf("\t%s\tShould have written block %d to disk: %v", failed, i, err)
			}
		}
		t.Logf("\t%s\tShould have written every block to disk.", success)

		blocks, err := nodeB.ReadChain()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to read the chain back: %v", failed, err)
		}

		if !database.EqualChains(nodeA.RetrieveBlocks(), blocks) {
			t.Fatalf("\t%s\tShould read back the adopted chain.", failed)
		}
		t.Logf("\t%s\tShould read back the adopted chain.", success)
	}
}

func Test_PullBrokenChain(t *testing.T) {
	t.Log("Given the need to handle a peer serving a chain with broken linkage.")
	{
		blocks := chain(t, 5)
		blocks[3].PrevHash = strings.Repeat("a", 64)

		data, err := database.EncodeBlocks(blocks)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encode the chain: %v", failed, err)
		}

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write(data)
		}))
		t.Cleanup(srv.Close)

		t.Logf("\tTest 0:\tWhen adopting without validation.")
		{
			st := newNode(t, 3000, memory.New(), false)

			if err := st.PullFrom(context.Background(), peer.New(srv.URL)); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould accept the chain: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould accept the chain.", success)

			if st.RetrieveLength() != 5 {
				t.Fatalf("\t%s\tTest 0:\tShould hold 5 blocks, got %d.", failed, st.RetrieveLength())
			}
			t.Logf("\t%s\tTest 0:\tShould hold 5 blocks.", success)

			var ce *database.ChainIntegrityError
			if _, err := st.ReadChain(); !errors.As(err, &ce) || ce.Index != 3 {
				t.Fatalf("\t%s\tTest 0:\tShould detect the broken link at block 3 on read, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould detect the broken link at block 3 on read.", success)
		}

		t.Logf("\tTest 1:\tWhen adopting in strict mode.")
		{
			st := newNode(t, 3000, memory.New(), true)
			before := st.RetrieveLatestBlock()

			err := st.PullFrom(context.Background(), peer.New(srv.URL))

			var ce *database.ChainIntegrityError
			if !errors.As(err, &ce) || ce.Index != 3 {
				t.Fatalf("\t%s\tTest 1:\tShould reject the chain at block 3, got %v.", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould reject the chain at block 3.", success)

			if !state.IsSyncError(err) || database.IsLocalCorruption(err) {
				t.Fatalf("\t%s\tTest 1:\tShould report a peer failure, not local corruption: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould report a peer failure, not local corruption.", success)

			if st.RetrieveLength() != 1 || !st.RetrieveLatestBlock().Equal(before) {
				t.Fatalf("\t%s\tTest 1:\tShould keep the local chain.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould keep the local chain.", success)
		}
	}
}

func Test_PullFromSyncError(t *testing.T) {
	type table struct {
		name    string
		status  int
		body    string
		expCode int
	}

	tt := []table{
		{name: "not-found", status: http.StatusNotFound, body: "no chain here", expCode: http.StatusNotFound},
		{name: "not-json", status: http.StatusOK, body: "<html></html>"},
		{name: "empty-array", status: http.StatusOK, body: "[]"},
		{name: "bad-hash", status: http.StatusOK, body: `[{"index":0,"hash":"xyz"}]`},
	}

	t.Log("Given the need to report a peer that doesn't serve a usable chain.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tst.status)
					w.Write([]byte(tst.body))
				}))
				t.Cleanup(srv.Close)

				st := newNode(t, 3000, memory.New(), false)
				before := st.RetrieveLatestBlock()

				err := st.PullFrom(context.Background(), peer.New(srv.URL))

				var se *state.SyncError
				if !errors.As(err, &se) {
					t.Fatalf("\t%s\tTest %d:\tShould get a sync error, got %v.", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould get a sync error.", success, testID)

				if se.Status != tst.expCode {
					t.Fatalf("\t%s\tTest %d:\tShould get status %d, got %d.", failed, testID, tst.expCode, se.Status)
				}

				if database.IsLocalCorruption(err) {
					t.Fatalf("\t%s\tTest %d:\tShould not report local corruption: %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould not report local corruption.", success, testID)

				if st.RetrieveLength() != 1 || !st.RetrieveLatestBlock().Equal(before) {
					t.Fatalf("\t%s\tTest %d:\tShould keep the local chain.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould keep the local chain.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_PullUnreachable(t *testing.T) {
	t.Log("Given the need to report a peer that can't be reached.")
	{
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		st := newNode(t, 3000, memory.New(), false)

		if err := st.PullFrom(context.Background(), peer.New(url)); !state.IsSyncError(err) {
			t.Fatalf("\t%s\tShould get a sync error, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould get a sync error.", success)
	}
}

func Test_NetQueryPeerStatus(t *testing.T) {
	t.Log("Given the need to ask a peer for its status.")
	{
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != peer.StatusPath {
				http.NotFound(w, r)
				return
			}
			w.Write([]byte(`{"identity":3001,"latest_block_hash":"00ab","latest_block_index":4,"length":5}`))
		}))
		t.Cleanup(srv.Close)

		st := newNode(t, 3000, memory.New(), false)

		status, err := st.NetQueryPeerStatus(context.Background(), peer.New(srv.URL))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to query the status: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to query the status.", success)

		if status.Identity != 3001 || status.Length != 5 {
			t.Fatalf("\t%s\tShould decode the status: %+v", failed, status)
		}
		t.Logf("\t%s\tShould decode the status.", success)
	}
}

func Test_ChainPath(t *testing.T) {
	got := state.ChainPath("/data/chain", 3000)
	exp := filepath.Join("/data/chain", "3000")

	if got != exp {
		t.Fatalf("Should build the chain path, got %s, exp %s.", got, exp)
	}
}

// =============================================================================

func newNode(t *testing.T, identity uint16, strg database.Storage, strict bool) *state.State {
	t.Helper()

	log, err := logger.New("TEST")
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a logger: %v", failed, err)
	}

	ev := func(v string, args ...any) {
		log.Debugw(fmt.Sprintf(v, args...), "identity", identity)
	}

	st, err := state.New(context.Background(), state.Config{
		Identity:    identity,
		Storage:     strg,
		Difficulty:  difficulty,
		StrictAdopt: strict,
		EvHandler:   ev,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the node: %v", failed, err)
	}
	t.Cleanup(func() { st.Shutdown() })

	return st
}

func diskStorage(t *testing.T, base string, identity uint16) *disk.Disk {
	t.Helper()

	strg, err := disk.New(state.ChainPath(base, identity))
	if err != nil {
		t.Fatalf("\t%s\tShould be able to open the disk storage: %v", failed, err)
	}

	return strg
}

// serve exposes the node's chain the way the public API does.
func serve(t *testing.T, st *state.State) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc(peer.ChainPath, func(w http.ResponseWriter, r *http.Request) {
		blocks, err := st.ReadChain()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		data, err := database.EncodeBlocks(blocks)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func chain(t *testing.T, length int) []database.Block {
	t.Helper()

	blocks := []database.Block{database.NewGenesis(difficulty)}
	for len(blocks) < length {
		next, err := blocks[len(blocks)-1].MineSuccessor(context.Background(), database.POWArgs{Difficulty: difficulty})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine a successor: %v", failed, err)
		}
		blocks = append(blocks, next)
	}

	return blocks
}
