package cmd

import (
	"errors"
	"fmt"

	"github.com/darendal/powchain/foundation/blockchain/database"
	"github.com/darendal/powchain/foundation/blockchain/database/storage/disk"
	"github.com/darendal/powchain/foundation/blockchain/database/storage/kv"
	"github.com/spf13/cobra"
)

var (
	verifyDifficulty uint
	verifyBadger     bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify <chain-directory>",
	Short: "Check the linkage, proof of work and hashes of a chain on storage.",
	Args:  cobra.ExactArgs(1),
	RunE:  verifyRun,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().UintVarP(&verifyDifficulty, "difficulty", "d", 2, "Number of leading zeros a block hash requires.")
	verifyCmd.Flags().BoolVarP(&verifyBadger, "badger", "b", false, "The chain is stored in a badger database.")
}

func verifyRun(cmd *cobra.Command, args []string) error {
	strg, err := open(args[0])
	if err != nil {
		return err
	}
	defer strg.Close()

	w := cmd.OutOrStdout()

	blocks, err := database.Load(strg)
	if err != nil {
		failColor.Fprintln(w, "linkage: FAILED")
		return describe(err)
	}
	okColor.Fprintf(w, "linkage: ok ")
	fmt.Fprintf(w, "blocks[%d]\n", len(blocks))

	if err := database.ValidateChain(blocks, verifyDifficulty, nil); err != nil {
		failColor.Fprintln(w, "proof of work: FAILED")
		return describe(err)
	}
	okColor.Fprintf(w, "proof of work: ok ")
	fmt.Fprintf(w, "difficulty[%d]\n", verifyDifficulty)

	return nil
}

func open(path string) (database.Storage, error) {
	if verifyBadger {
		return kv.New(path, nil)
	}
	return disk.New(path)
}

// describe adds the offending block to integrity failures.
func describe(err error) error {
	var ce *database.ChainIntegrityError
	if errors.As(err, &ce) {
		return fmt.Errorf("block %d: %w", ce.Index, err)
	}
	return err
}
