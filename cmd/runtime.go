package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/textlens/internal/config"
	"github.com/lehigh-university-libraries/textlens/pkg/dispatch"
	"github.com/lehigh-university-libraries/textlens/pkg/engine"
	"github.com/lehigh-university-libraries/textlens/pkg/history"
	"github.com/lehigh-university-libraries/textlens/pkg/recognition"
)

// pollInterval is how often the CLI checks its mailbox for outcomes.
const pollInterval = 50 * time.Millisecond

// openRegistry loads configuration and opens the engines, honoring --engine.
func openRegistry(cmd *cobra.Command) (config.Config, *engine.Registry, error) {
	cfg, err := config.Loader{}.Load()
	if err != nil {
		return config.Config{}, nil, err
	}

	var only recognition.EngineKind
	if name, _ := cmd.Flags().GetString("engine"); name != "" {
		only, err = recognition.ParseKind(name)
		if err != nil {
			return config.Config{}, nil, err
		}
	}

	reg, err := engine.New(cmd.Context(), cfg.EngineConfig(only), slog.Default())
	if err != nil {
		return config.Config{}, nil, err
	}
	slog.Debug("Engines ready", "active", reg.ActiveKind(), "status", reg.Status())
	return cfg, reg, nil
}

// openHistory returns nil when DATABASE_URL is not configured.
func openHistory(ctx context.Context, cfg config.Config) (*history.Repo, func(), error) {
	if cfg.DatabaseURL == "" {
		return nil, func() {}, nil
	}
	db, err := history.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	repo := history.NewRepo(db)
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return repo, func() { db.Close() }, nil
}

// awaitOutcome polls mb until the outcome for id arrives or ctx ends.
// Outcomes for other requests are discarded.
func awaitOutcome(ctx context.Context, mb *dispatch.Mailbox, id dispatch.RequestID, interval time.Duration) (dispatch.Outcome, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		for {
			o, ok := mb.Poll()
			if !ok {
				break
			}
			if o.RequestID == id {
				return o, nil
			}
		}
		select {
		case <-ctx.Done():
			return dispatch.Outcome{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printOutcome(o dispatch.Outcome) {
	if !o.OK() {
		fmt.Printf("[%d] %s: error: %v\n", o.RequestID, o.Source, o.Err)
		return
	}
	r := o.Result
	fmt.Printf("[%d] %s (%s, confidence %.1f%%, %d ms)\n", o.RequestID, o.Source, r.Engine, r.Confidence*100, r.Elapsed.Milliseconds())
	if r.Text == "" {
		fmt.Println("(no text detected)")
		return
	}
	fmt.Println(r.Text)
}
