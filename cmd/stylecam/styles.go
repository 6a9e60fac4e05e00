package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/stylecam/internal/styles"
)

var stylesCmd = &cobra.Command{
	Use:   "styles",
	Short: "List the outfit styles the backend predicts",
	Run: func(cmd *cobra.Command, args []string) {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "STYLE\tDESCRIPTION")
		fmt.Fprintln(w, "-----\t-----------")
		for _, s := range styles.All() {
			fmt.Fprintf(w, "%s\t%s\n", s.Name, s.Description)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(stylesCmd)
}
