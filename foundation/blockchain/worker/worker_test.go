package worker_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/darendal/powchain/foundation/blockchain/database"
	"github.com/darendal/powchain/foundation/blockchain/database/storage/memory"
	"github.com/darendal/powchain/foundation/blockchain/peer"
	"github.com/darendal/powchain/foundation/blockchain/state"
	"github.com/darendal/powchain/foundation/blockchain/worker"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_MineToSize(t *testing.T) {
	t.Log("Given the need to mine in the background.")
	{
		st := newNode(t)
		worker.Run(st, worker.Config{})

		st.Worker.SignalMineToSize(5)
		waitForLength(t, st, 5)
		t.Logf("\t%s\tShould mine to size 5.", success)

		if err := database.ValidateChain(st.RetrieveBlocks(), 1, nil); err != nil {
			t.Fatalf("\t%s\tShould mine a valid chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould mine a valid chain.", success)

		st.Worker.SignalMineToSize(7)
		waitForLength(t, st, 7)
		t.Logf("\t%s\tShould continue mining to a larger size.", success)
	}
}

func Test_PullWhileMining(t *testing.T) {
	t.Log("Given the need to adopt a peer chain while mining.")
	{
		peerNode := newNode(t)
		if err := peerNode.MineToSize(context.Background(), 8); err != nil {
			t.Fatalf("\t%s\tShould be able to mine the peer chain: %v", failed, err)
		}
		peerChain := peerNode.RetrieveBlocks()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := database.EncodeBlocks(peerChain)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Write(data)
		}))
		t.Cleanup(srv.Close)

		st := newNode(t)
		worker.Run(st, worker.Config{})

		const target = 12
		st.Worker.SignalMineToSize(target)

		if err := st.PullFrom(context.Background(), peer.New(srv.URL)); err != nil {
			t.Fatalf("\t%s\tShould be able to pull while mining: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to pull while mining.", success)

		waitForLength(t, st, target)
		t.Logf("\t%s\tShould resume mining to the target.", success)

		blocks := st.RetrieveBlocks()
		if !database.EqualChains(peerChain, blocks[:len(peerChain)]) {
			t.Fatalf("\t%s\tShould mine on top of the adopted chain.", failed)
		}
		t.Logf("\t%s\tShould mine on top of the adopted chain.", success)

		if err := database.ValidateLinkage(blocks); err != nil {
			t.Fatalf("\t%s\tShould keep the chain linked: %v", failed, err)
		}
		t.Logf("\t%s\tShould keep the chain linked.", success)
	}
}

func Test_StopMining(t *testing.T) {
	t.Log("Given the need to stop background mining.")
	{
		st := newNode(t)
		worker.Run(st, worker.Config{})

		st.Worker.SignalMineToSize(3)
		waitForLength(t, st, 3)

		st.Worker.SignalStopMining()
		length := st.RetrieveLength()

		time.Sleep(100 * time.Millisecond)

		if st.RetrieveLength() != length {
			t.Fatalf("\t%s\tShould not mine after stopping, got %d, exp %d.", failed, st.RetrieveLength(), length)
		}
		t.Logf("\t%s\tShould not mine after stopping.", success)
	}
}

func Test_PeriodicSync(t *testing.T) {
	t.Log("Given the need to pull from a peer that is ahead.")
	{
		peerNode := newNode(t)
		if err := peerNode.MineToSize(context.Background(), 4); err != nil {
			t.Fatalf("\t%s\tShould be able to mine the peer chain: %v", failed, err)
		}

		mux := http.NewServeMux()
		mux.HandleFunc(peer.StatusPath, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"identity":3001,"length":4}`))
		})
		mux.HandleFunc(peer.ChainPath, func(w http.ResponseWriter, r *http.Request) {
			data, _ := database.EncodeBlocks(peerNode.RetrieveBlocks())
			w.Write(data)
		})
		srv := httptest.NewServer(mux)
		t.Cleanup(srv.Close)

		st := newNode(t)
		worker.Run(st, worker.Config{
			SyncPeer:     peer.New(srv.URL),
			SyncInterval: 10 * time.Millisecond,
		})

		waitForLength(t, st, 4)

		if !database.EqualChains(peerNode.RetrieveBlocks(), st.RetrieveBlocks()) {
			t.Fatalf("\t%s\tShould adopt the peer chain.", failed)
		}
		t.Logf("\t%s\tShould adopt the peer chain.", success)
	}
}

// =============================================================================

func newNode(t *testing.T) *state.State {
	t.Helper()

	st, err := state.New(context.Background(), state.Config{
		Identity:   3000,
		Storage:    memory.New(),
		Difficulty: 1,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the node: %v", failed, err)
	}
	t.Cleanup(func() { st.Shutdown() })

	return st
}

func waitForLength(t *testing.T, st *state.State, length int) {
	t.Helper()

	deadline := time.Now().Add(30 * time.Second)
	for st.RetrieveLength() < length {
		if time.Now().After(deadline) {
			t.Fatalf("\t%s\tShould reach length %d, got %d.", failed, length, st.RetrieveLength())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
