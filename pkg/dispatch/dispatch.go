// Package dispatch runs recognition off the caller's goroutine. Every
// submission gets a fresh request id and supersedes the ones before it; only
// the latest request's outcome ever reaches the sink.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lehigh-university-libraries/textlens/internal/utils"
	"github.com/lehigh-university-libraries/textlens/pkg/imagesource"
	"github.com/lehigh-university-libraries/textlens/pkg/recognition"
)

// RequestID identifies one submission. Ids increase monotonically; zero is
// never issued.
type RequestID uint64

// Request is one user action.
type Request struct {
	ID     RequestID
	Source string
	Image  *recognition.Image
}

// Recognizer is what the coordinator runs. *engine.Registry satisfies it.
type Recognizer interface {
	Recognize(ctx context.Context, img *recognition.Image) (recognition.Result, error)
}

// kindReporter is implemented by recognizers that know which engine kind
// serves their calls, such as *engine.Registry.
type kindReporter interface {
	ActiveKind() recognition.EngineKind
}

// Decoder turns a path into an image. Failures should be
// *recognition.DecodeError; anything else is wrapped as one.
type Decoder func(path string) (*recognition.Image, error)

// stateHistory bounds how many finished requests State remembers.
const stateHistory = 128

// Coordinator owns the request counter and the background work.
type Coordinator struct {
	recognizer Recognizer
	sink       Sink
	decode     Decoder
	logger     *slog.Logger
	sem        *semaphore.Weighted
	timeout    time.Duration

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu       sync.Mutex
	latest   RequestID
	cancelFn context.CancelFunc
	states   map[RequestID]State
	closed   bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDecoder replaces imagesource.Open for SubmitFile.
func WithDecoder(d Decoder) Option {
	return func(c *Coordinator) {
		if d != nil {
			c.decode = d
		}
	}
}

// WithConcurrency bounds how many requests run their backend call at once.
// Superseded requests waiting for a slot give up without running.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithTimeout sets a deadline for each backend call.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates a coordinator delivering outcomes to sink.
func New(r Recognizer, sink Sink, opts ...Option) *Coordinator {
	c := &Coordinator{
		recognizer: r,
		sink:       sink,
		decode:     imagesource.Open,
		logger:     slog.Default(),
		states:     make(map[RequestID]State),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "dispatch")
	c.base, c.stop = context.WithCancel(context.Background())
	return c
}

// Submit schedules recognition of an already decoded image and returns at
// once.
func (c *Coordinator) Submit(img *recognition.Image) RequestID {
	source := ""
	if img != nil {
		source = img.Source()
	}
	return c.submit(source, img, "")
}

// SubmitFile schedules decoding and recognition of the file at path and
// returns at once. Decoding happens in the background.
func (c *Coordinator) SubmitFile(path string) RequestID {
	return c.submit(path, nil, path)
}

func (c *Coordinator) submit(source string, img *recognition.Image, path string) RequestID {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Warn("submit after close ignored", "source", source)
		return 0
	}

	c.supersedeLocked()
	c.latest++
	id := c.latest
	ctx, cancel := context.WithCancel(c.base)
	c.cancelFn = cancel
	c.states[id] = StateSubmitted
	if id > stateHistory {
		delete(c.states, id-stateHistory)
	}
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.Debug("request submitted", "id", id, "source", source)
	go c.run(ctx, cancel, Request{ID: id, Source: source, Image: img}, path)
	return id
}

// supersedeLocked cancels the current latest request. c.mu must be held.
func (c *Coordinator) supersedeLocked() {
	if c.cancelFn != nil {
		c.cancelFn()
		c.cancelFn = nil
	}
	if st, ok := c.states[c.latest]; ok && !st.Terminal() {
		c.states[c.latest] = StateSuperseded
	}
}

func (c *Coordinator) run(ctx context.Context, cancel context.CancelFunc, req Request, path string) {
	defer c.wg.Done()
	defer cancel()

	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			c.drop(req.ID, err)
			return
		}
		defer c.sem.Release(1)
	}

	if path != "" {
		img, err := c.decode(path)
		if err != nil {
			if !errors.Is(err, recognition.ErrImageDecode) {
				err = &recognition.DecodeError{Path: path, Err: err}
			}
			c.finish(Outcome{RequestID: req.ID, Source: req.Source, Err: err})
			return
		}
		req.Image = img
	}

	if ctx.Err() != nil {
		c.drop(req.ID, ctx.Err())
		return
	}
	if !c.markRunning(req.ID) {
		return
	}

	rctx := ctx
	if c.timeout > 0 {
		var rcancel context.CancelFunc
		rctx, rcancel = context.WithTimeout(ctx, c.timeout)
		defer rcancel()
	}

	res, err := c.recognizer.Recognize(rctx, req.Image)
	if err != nil {
		if !recognition.IsTyped(err) {
			err = &recognition.RecognitionError{Kind: c.kindOf(res), Err: err}
		}
		c.finish(Outcome{RequestID: req.ID, Source: req.Source, Err: utils.MaskSensitiveError(err)})
		return
	}
	c.finish(Outcome{RequestID: req.ID, Source: req.Source, Result: res.Normalized()})
}

// kindOf names the engine behind a failed call. Backends rarely fill in the
// result on error, so the recognizer is asked when it can say.
func (c *Coordinator) kindOf(res recognition.Result) recognition.EngineKind {
	if res.Engine != "" {
		return res.Engine
	}
	if kr, ok := c.recognizer.(kindReporter); ok {
		return kr.ActiveKind()
	}
	return ""
}

func (c *Coordinator) markRunning(id RequestID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != c.latest || c.closed {
		return false
	}
	c.states[id] = StateRunning
	return true
}

// finish delivers o if its request is still the latest. The check and the
// delivery happen under the same lock Submit takes, so a newer submission
// can never be overtaken by an older outcome.
func (c *Coordinator) finish(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if o.RequestID != c.latest || c.closed {
		if _, ok := c.states[o.RequestID]; ok {
			c.states[o.RequestID] = StateSuperseded
		}
		c.logger.Debug("late outcome discarded", "id", o.RequestID, "latest", c.latest, "cause", recognition.ErrSuperseded)
		return
	}

	if o.Err != nil {
		c.states[o.RequestID] = StateFailed
		c.logger.Debug("request failed", "id", o.RequestID, "err", o.Err)
	} else {
		c.states[o.RequestID] = StateCompleted
		c.logger.Debug("request completed", "id", o.RequestID,
			"engine", o.Result.Engine,
			"confidence", o.Result.Confidence,
			"elapsed", o.Result.Elapsed,
		)
	}
	c.cancelFn = nil
	c.sink.Deliver(o)
}

func (c *Coordinator) drop(id RequestID, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.states[id]; ok {
		c.states[id] = StateSuperseded
	}
	c.logger.Debug("request abandoned", "id", id, "cause", errors.Join(recognition.ErrSuperseded, cause))
}

// Latest returns the most recently issued request id, zero if none.
func (c *Coordinator) Latest() RequestID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// State reports the lifecycle state of a recent request. Requests older than
// the tracked window report StateUnknown.
func (c *Coordinator) State(id RequestID) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[id]
}

// Close cancels in-flight work, waits for background goroutines and makes
// later submissions no-ops. No outcome is delivered after Close returns.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.supersedeLocked()
	c.mu.Unlock()

	c.stop()
	c.wg.Wait()
}
