package cmd

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/textlens/internal/utils"
	"github.com/lehigh-university-libraries/textlens/pkg/dispatch"
	"github.com/lehigh-university-libraries/textlens/pkg/history"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Recognize images as their paths arrive on stdin",
	Long: `Read image paths from stdin, one per line. Each path is submitted at once and
supersedes the one before it, so only the newest image's result is printed.
The session ends at end of input once the last request has finished.`,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		rec := newAsyncRecorder(repo)
		defer rec.Wait()

		mb := dispatch.NewMailbox()
		coord := dispatch.New(reg, mb,
			dispatch.WithLogger(slog.Default()),
			dispatch.WithConcurrency(cfg.Workers),
			dispatch.WithTimeout(cfg.Timeout),
		)
		defer coord.Close()

		return runSession(ctx, os.Stdin, coord, mb, pollInterval, func(o dispatch.Outcome) {
			printOutcome(o)
			rec.Record(ctx, history.NewRecord(o.Source, nil, o.Result, o.Err))
		})
	},
}

func init() {
	RootCmd.AddCommand(sessionCmd)
}

// recordTimeout bounds a single background history insert.
const recordTimeout = 5 * time.Second

// asyncRecorder saves outcomes off the session's polling loop so a slow
// database never delays the next outcome.
type asyncRecorder struct {
	save    func(context.Context, history.Record) error
	timeout time.Duration
	wg      sync.WaitGroup
}

// newAsyncRecorder returns a recorder that drops every record when repo is
// nil.
func newAsyncRecorder(repo *history.Repo) *asyncRecorder {
	r := &asyncRecorder{timeout: recordTimeout}
	if repo != nil {
		r.save = func(ctx context.Context, rec history.Record) error {
			_, err := repo.Save(ctx, rec)
			return err
		}
	}
	return r
}

// Record starts saving rec and returns at once. The insert keeps ctx's values
// but not its cancellation, so an interrupt still lets it finish within the
// timeout.
func (r *asyncRecorder) Record(ctx context.Context, rec history.Record) {
	if r.save == nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		if err := r.save(sctx, rec); err != nil {
			slog.Warn("Unable to record outcome", "source", rec.Source, "err", utils.MaskSensitiveError(err))
		}
	}()
}

// Wait blocks until every started insert has returned.
func (r *asyncRecorder) Wait() {
	r.wg.Wait()
}

// submitter is the part of the coordinator a session drives.
type submitter interface {
	SubmitFile(path string) dispatch.RequestID
	Latest() dispatch.RequestID
	State(id dispatch.RequestID) dispatch.State
}

// runSession submits every non-empty line of in and hands delivered outcomes
// to show from the polling loop. It returns at end of input once the latest
// request is terminal, or when ctx ends.
func runSession(ctx context.Context, in io.Reader, coord submitter, mb *dispatch.Mailbox, interval time.Duration, show func(dispatch.Outcome)) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	drain := func() {
		for {
			o, ok := mb.Poll()
			if !ok {
				return
			}
			show(o)
		}
	}

	eof := false
	for {
		select {
		case <-ctx.Done():
			drain()
			return nil
		case line, ok := <-lines:
			if !ok {
				eof = true
				lines = nil
				continue
			}
			path := strings.TrimSpace(line)
			if path == "" {
				continue
			}
			id := coord.SubmitFile(path)
			slog.Debug("Submitted", "request", id, "path", path)
		case <-ticker.C:
			drain()
			if eof {
				latest := coord.Latest()
				if latest == 0 || coord.State(latest).Terminal() {
					drain()
					return nil
				}
			}
		}
	}
}
