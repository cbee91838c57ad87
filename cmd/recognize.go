package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/textlens/internal/utils"
	"github.com/lehigh-university-libraries/textlens/pkg/dispatch"
	"github.com/lehigh-university-libraries/textlens/pkg/export"
	"github.com/lehigh-university-libraries/textlens/pkg/history"
	"github.com/lehigh-university-libraries/textlens/pkg/imagesource"
	"github.com/lehigh-university-libraries/textlens/pkg/recognition"
)

var (
	recognizeImage  string
	recognizeFormat string
	recognizeOutput string
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize",
	Short: "Recognize the text in one image",
	Long: `Recognize the text in one image with the active engine.

The result is printed with its confidence and elapsed time. With --output the
result is also exported; the format follows --format or the file extension.`,
	RunE: runRecognize,
}

func init() {
	RootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().StringVarP(&recognizeImage, "image", "i", "", "Path to the image (png, jpeg, gif, bmp, tiff, webp)")
	recognizeCmd.Flags().StringVarP(&recognizeFormat, "format", "f", "", "Export format: txt, hocr, yaml, json")
	recognizeCmd.Flags().StringVarP(&recognizeOutput, "output", "o", "", "Write the result to this file")
	_ = recognizeCmd.MarkFlagRequired("image")
}

func runRecognize(cmd *cobra.Command, args []string) error {
	format := export.FormatText
	if recognizeFormat != "" {
		f, err := export.ParseFormat(recognizeFormat)
		if err != nil {
			return err
		}
		format = f
	} else if recognizeOutput != "" {
		format = export.FormatForPath(recognizeOutput)
	}

	cfg, reg, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	repo, closeDB, err := openHistory(ctx, cfg)
	if err != nil {
		slog.Warn("History disabled", "err", utils.MaskSensitiveError(err))
		repo, closeDB = nil, func() {}
	}
	defer closeDB()

	img, err := imagesource.Open(recognizeImage)
	if err != nil {
		record(ctx, repo, history.NewRecord(recognizeImage, nil, recognition.Result{}, err))
		return err
	}

	mb := dispatch.NewMailbox()
	coord := dispatch.New(reg, mb,
		dispatch.WithLogger(slog.Default()),
		dispatch.WithConcurrency(cfg.Workers),
		dispatch.WithTimeout(cfg.Timeout),
	)
	defer coord.Close()

	id := coord.Submit(img)
	outcome, err := awaitOutcome(ctx, mb, id, pollInterval)
	if err != nil {
		return fmt.Errorf("recognition interrupted: %w", err)
	}

	record(ctx, repo, history.NewRecord(outcome.Source, img, outcome.Result, outcome.Err))
	if !outcome.OK() {
		return outcome.Err
	}
	printOutcome(outcome)

	if recognizeOutput != "" {
		doc := export.NewDocument(outcome.Source, outcome.Result, img)
		if err := export.WriteFile(recognizeOutput, format, doc); err != nil {
			return err
		}
		fmt.Printf("Saved %s result to %s\n", format, recognizeOutput)
	} else if recognizeFormat != "" && format != export.FormatText {
		doc := export.NewDocument(outcome.Source, outcome.Result, img)
		return export.Write(os.Stdout, format, doc)
	}
	return nil
}

func record(ctx context.Context, repo *history.Repo, rec history.Record) {
	if repo == nil {
		return
	}
	if _, err := repo.Save(ctx, rec); err != nil {
		slog.Warn("Unable to record outcome", "source", rec.Source, "err", utils.MaskSensitiveError(err))
	}
}
