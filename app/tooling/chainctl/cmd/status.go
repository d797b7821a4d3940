package cmd

import (
	"fmt"
	"net/http"

	"github.com/darendal/powchain/foundation/blockchain/peer"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the status of the node.",
	RunE:  statusRun,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusRun(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	var status peer.PeerStatus
	if err := call(http.MethodGet, endpoint(publicURL, peer.StatusPath), nil, &status); err != nil {
		return err
	}

	fmt.Fprintf(w, "identity: %d\n", status.Identity)
	fmt.Fprintf(w, "length:   %d\n", status.Length)
	fmt.Fprintf(w, "latest:   blk[%d] ", status.LatestBlockIndex)
	okColor.Fprintln(w, status.LatestBlockHash)

	return nil
}
