package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/drhuang0922/ngic/internal/output"
	"github.com/drhuang0922/ngic/internal/store"
)

var (
	statsPruneDays int

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show conversion totals per target format",
		Long: `Display how many images were converted to each format and how many bytes
the conversions saved. Failed conversions are counted but do not contribute
to the byte totals.

Use --prune-days to delete history older than the given number of days
before the totals are computed.`,
		Example: `  # Per-format totals
  ngic stats

  # Forget conversions older than 90 days
  ngic stats --prune-days 90`,
		Args: cobra.NoArgs,
		RunE: runStats,
	}
)

func init() {
	statsCmd.Flags().IntVar(&statsPruneDays, "prune-days", 0, "delete history older than N days first")
}

func runStats(cmd *cobra.Command, args []string) error {
	if statsPruneDays < 0 {
		return fmt.Errorf("invalid prune-days: %d (must be positive)", statsPruneDays)
	}
	out := cmd.OutOrStdout()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if statsPruneDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -statsPruneDays)
		n, err := st.PruneBefore(cutoff)
		if err != nil && !errors.Is(err, store.ErrNotInitialized) {
			return fmt.Errorf("failed to prune history: %w", err)
		}
		fmt.Fprintf(out, "Pruned %d conversions older than %d days\n\n", n, statsPruneDays)
	}

	stats, err := st.FormatStats()
	if errors.Is(err, store.ErrNotInitialized) {
		fmt.Fprint(out, output.RenderFormatStats(nil))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprint(out, output.RenderFormatStats(stats))
	return nil
}
