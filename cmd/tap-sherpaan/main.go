// Command tap-sherpaan replicates Sherpa collections incrementally and
// writes one JSON object per record to stdout. Logs go to stderr.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tap-sherpaan",
		Short:         "Token-ordered replication client for the Sherpa SOAP API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newSyncCmd(), newStreamsCmd())
	return cmd
}
