package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/textlens/internal/config"
	"github.com/lehigh-university-libraries/textlens/pkg/history"
)

var (
	historyLimit int
	historyPrune time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently recorded recognition outcomes",
	Long: `List outcomes recorded by recognize and session. Recording is enabled by
setting DATABASE_URL to a Postgres connection string.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Loader{}.Load()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("history requires DATABASE_URL")
		}

		ctx := cmd.Context()
		repo, closeDB, err := openHistory(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeDB()

		if historyPrune > 0 {
			n, err := repo.Prune(ctx, historyPrune)
			if err != nil {
				return err
			}
			fmt.Printf("Pruned %d records older than %s\n", n, historyPrune)
		}

		recs, err := repo.Recent(ctx, historyLimit)
		if err != nil {
			return err
		}
		writeHistory(os.Stdout, recs)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of records to show")
	historyCmd.Flags().DurationVar(&historyPrune, "prune", 0, "Delete records older than this before listing, e.g. 720h")
}

func writeHistory(w io.Writer, recs []history.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No recorded outcomes")
		return
	}
	for _, r := range recs {
		status := fmt.Sprintf("%.1f%%", r.Confidence*100)
		if r.Error != "" {
			status = "error: " + r.Error
		}
		text := strings.Join(strings.Fields(r.Text), " ")
		if rs := []rune(text); len(rs) > 60 {
			text = string(rs[:57]) + "..."
		}
		fmt.Fprintf(w, "%s  %-9s %5d ms  %s  %s  %s\n",
			r.CreatedAt.Local().Format(time.DateTime), r.Engine, r.ElapsedMS, status, r.Source, text)
	}
}
