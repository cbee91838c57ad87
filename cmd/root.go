package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/textlens/internal/config"
)

var RootCmd = &cobra.Command{
	Use:   "textlens",
	Short: "Recognize text in images with a learned model or tesseract",
	Long: `textlens recognizes text in document images. It prefers the learned-model
engine described by the model artifact and falls back to tesseract when that
engine is compiled in.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logLevel(cmd, config.Loader{})
		if err != nil {
			return err
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		handler := slog.New(slog.NewTextHandler(os.Stdout, opts))
		slog.SetDefault(handler)

		return nil
	},
}

// logLevel prefers an explicit --log-level and otherwise uses LOG_LEVEL as
// resolved by the config loader, which sees values from .env.
func logLevel(cmd *cobra.Command, loader config.Loader) (slog.Level, error) {
	ll, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return slog.LevelInfo, err
	}
	if !cmd.Flags().Changed("log-level") {
		cfg, err := loader.Load()
		if err != nil {
			return slog.LevelInfo, err
		}
		ll = cfg.LogLevel
	}
	return config.ParseLogLevel(ll)
}

func init() {
	RootCmd.PersistentFlags().String("log-level", config.DefaultLogLevel, "The logging level for the command (overrides LOG_LEVEL)")
	RootCmd.PersistentFlags().String("engine", "", "Pin a single engine (model or tesseract) instead of TEXTLENS_ENGINES")
}
