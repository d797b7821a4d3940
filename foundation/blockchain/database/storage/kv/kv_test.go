package kv_test

import (
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/darendal/powchain/foundation/blockchain/database"
	"github.com/darendal/powchain/foundation/blockchain/database/storage/kv"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_KV(t *testing.T) {
	t.Log("Given the need to store blocks in badger.")
	{
		store, err := kv.New(t.TempDir(), nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open the database: %v", failed, err)
		}
		defer store.Close()

		var want []database.Block
		prev := database.NewGenesis(0)
		want = append(want, prev)
		for i := uint64(1); i <= 11; i++ {
			prev = database.NewBlock(i, time.Now(), prev.Hash, "I block", 0)
			want = append(want, prev)
		}

		// Write out of order so the key ordering is exercised.
		for i := len(want) - 1; i >= 0; i-- {
			if err := store.Write(want[i]); err != nil {
				t.Fatalf("\t%s\tShould be able to write %s: %v", failed, want[i], err)
			}
		}
		t.Logf("\t%s\tShould be able to write blocks.", success)

		got, err := store.ReadAll()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to read the blocks: %v", failed, err)
		}

		if !database.EqualChains(want, got) {
			t.Fatalf("\t%s\tShould read the blocks back ordered by index.", failed)
		}
		t.Logf("\t%s\tShould read the blocks back ordered by index.", success)

		block, err := store.GetBlock(10)
		if err != nil || !block.Equal(want[10]) {
			t.Fatalf("\t%s\tShould be able to get block 10: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to get block 10.", success)

		if err := store.Truncate(3); err != nil {
			t.Fatalf("\t%s\tShould be able to truncate: %v", failed, err)
		}

		got, err = store.ReadAll()
		if err != nil || len(got) != 3 {
			t.Fatalf("\t%s\tShould keep 3 blocks, got %d: %v", failed, len(got), err)
		}
		t.Logf("\t%s\tShould keep 3 blocks.", success)

		if _, err := store.GetBlock(10); !errors.Is(err, fs.ErrNotExist) {
			t.Fatalf("\t%s\tShould report a removed block as not existing, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould report a removed block as not existing.", success)
	}
}
