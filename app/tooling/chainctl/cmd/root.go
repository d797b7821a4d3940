// Package cmd contains the chainctl commands.
package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	publicURL  string
	privateURL string
	timeout    time.Duration
)

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed)
	infoColor = color.New(color.FgCyan)
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&publicURL, "url", "u", "http://localhost:3000", "Url of the node's public api.")
	rootCmd.PersistentFlags().StringVarP(&privateURL, "private-url", "p", "http://localhost:9080", "Url of the node's private api.")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 30*time.Second, "Timeout for calls to the node.")
}

var rootCmd = &cobra.Command{
	Use:           "chainctl",
	Short:         "Inspect and control a proof of work node",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command selected by the command line arguments.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		failColor.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

// =============================================================================

// call performs the request against the node and decodes a successful
// response into resp when resp isn't nil.
func call(method string, url string, body any, resp any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := http.Client{Timeout: timeout}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	if res.StatusCode >= http.StatusBadRequest {
		var er struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(data, &er); err == nil && er.Error != "" {
			return fmt.Errorf("%s: %s", res.Status, er.Error)
		}
		return errors.New(res.Status)
	}

	if resp == nil || len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, resp)
}

func endpoint(base string, path string) string {
	return strings.TrimSuffix(base, "/") + path
}
