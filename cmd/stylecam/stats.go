package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var recentLimit int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show prediction and feedback statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats()
	},
}

func init() {
	statsCmd.Flags().IntVar(&recentLimit, "recent", 10, "number of recent captures to list")
	rootCmd.AddCommand(statsCmd)
}

func runStats() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Captures().Statistics()
	if err != nil {
		return fmt.Errorf("failed to compute statistics: %w", err)
	}

	if stats.TotalCaptures == 0 {
		fmt.Println("No captures found in database.")
		return nil
	}

	fmt.Printf("Captures: %d  Analyzed: %d  With feedback: %d (%.0f%%)\n\n",
		stats.TotalCaptures, stats.Analyzed, stats.WithFeedback, stats.FeedbackRate*100)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TOP PREDICTION\tCOUNT")
	fmt.Fprintln(w, "--------------\t-----")
	for _, c := range stats.TopPredictions {
		fmt.Fprintf(w, "%s\t%d\n", c.Name, c.Count)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USER CORRECTION\tCOUNT")
	fmt.Fprintln(w, "---------------\t-----")
	for _, c := range stats.Corrections {
		fmt.Fprintf(w, "%s\t%d\n", c.Name, c.Count)
	}
	w.Flush()

	if recentLimit <= 0 {
		return nil
	}

	captures, err := st.Captures().List(recentLimit)
	if err != nil {
		return fmt.Errorf("failed to list captures: %w", err)
	}

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tTRIGGER\tPREDICTION\tCORRECTION\tCREATED")
	fmt.Fprintln(w, "--\t-------\t----------\t----------\t-------")
	for _, c := range captures {
		prediction := "-"
		if c.Analyzed() {
			prediction = fmt.Sprintf("%s (%.0f%%)", c.TopPrediction, c.TopConfidence*100)
		}
		correction := c.UserCorrection
		if correction == "" {
			correction = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", shortID(c.ID), c.Trigger, prediction, correction, c.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
