package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/XAbade/tap-sherpaan/pkg/streams"
)

func newStreamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "streams",
		Short: "List the collections this replicator knows",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSERVICE\tKIND\tCHILD")
			for _, def := range streams.All() {
				kind := "paginated"
				if def.IsDetail() {
					kind = "detail"
				}
				child := ""
				if def.FanOut != nil {
					child = def.FanOut.Child
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", def.Name, def.Service, kind, child)
			}
			return w.Flush()
		},
	}
}
