package cmd

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync <peer>",
	Short: "Ask the node to pull and adopt the chain of a peer.",
	Args:  cobra.ExactArgs(1),
	RunE:  syncRun,
}

var (
	mineSize int
)

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Ask the node to mine until the chain holds the given number of blocks.",
	RunE:  mineRun,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Ask the node to stop mining.",
	RunE:  cancelRun,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(mineCmd)
	rootCmd.AddCommand(cancelCmd)
	mineCmd.Flags().IntVarP(&mineSize, "size", "s", 6, "Number of blocks the chain should hold.")
}

func syncRun(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	var resp struct {
		Status string `json:"status"`
		Length int    `json:"length"`
		Latest string `json:"latest_block_hash"`
	}

	req := struct {
		URL string `json:"url"`
	}{
		URL: args[0],
	}

	if err := call(http.MethodPost, endpoint(privateURL, "/v1/node/sync"), req, &resp); err != nil {
		return err
	}

	okColor.Fprintf(w, "%s ", resp.Status)
	fmt.Fprintf(w, "length[%d] latest[%s]\n", resp.Length, resp.Latest)

	return nil
}

func mineRun(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	if mineSize < 1 {
		return errors.New("size must be at least 1")
	}

	var resp struct {
		Status string `json:"status"`
		Target int    `json:"target"`
		Length int    `json:"length"`
	}

	req := struct {
		Size int `json:"size"`
	}{
		Size: mineSize,
	}

	if err := call(http.MethodPost, endpoint(privateURL, "/v1/node/mine"), req, &resp); err != nil {
		return err
	}

	okColor.Fprintf(w, "%s ", resp.Status)
	fmt.Fprintf(w, "length[%d] target[%d]\n", resp.Length, resp.Target)

	return nil
}

func cancelRun(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	if err := call(http.MethodDelete, endpoint(privateURL, "/v1/node/mine"), nil, nil); err != nil {
		return err
	}

	okColor.Fprintln(w, "mining stopped")

	return nil
}
