package cmd

import (
	"fmt"
	"net/http"

	"github.com/darendal/powchain/foundation/blockchain/database"
	"github.com/darendal/powchain/foundation/blockchain/peer"
	"github.com/spf13/cobra"
)

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "Print the chain served by the node.",
	RunE:  blocksRun,
}

func init() {
	rootCmd.AddCommand(blocksCmd)
}

func blocksRun(cmd *cobra.Command, args []string) error {
	var blocks []database.Block
	if err := call(http.MethodGet, endpoint(publicURL, peer.ChainPath), nil, &blocks); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, block := range blocks {
		infoColor.Fprintf(w, "%6d ", block.Index)
		okColor.Fprintf(w, "%s ", block.Hash)
		fmt.Fprintf(w, "nonce[%d] %s %q\n", block.Nonce, block.Timestamp.Format("2006-01-02T15:04:05Z07:00"), block.Data)
	}
	fmt.Fprintf(w, "blocks[%d]\n", len(blocks))

	return nil
}
