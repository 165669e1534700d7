// internal/shipper/shipper.go

package shipper

import (
	"bytes"
	"sync"

	"github.com/google/uuid"
	"github.com/orgoj/hecship/internal/config"
	"github.com/orgoj/hecship/internal/delivery"
	"github.com/orgoj/hecship/internal/event"
	"github.com/orgoj/hecship/internal/logger"
)

// Dependencies holds the collaborators a Shipper delivers through. Nil
// fields fall back to production defaults: the HTTP transport, exponential
// backoff, an error sink that logs through the app logger.
type Dependencies struct {
	Transport delivery.Transport
	Backoff   delivery.BackoffFunc
	ErrorSink delivery.ErrorSink
	AppLogger *logger.AppLogger
}

// Shipper accumulates events, runs them through the registered middleware
// pipeline, batches them, and delivers them to the collector endpoint. All
// mutable per-instance state (queue, timer, middleware list) lives on the
// handle; there are no process-wide singletons.
type Shipper struct {
	mu       sync.Mutex // guards settings and sink
	settings config.Settings
	sink     delivery.ErrorSink

	channel  string // stable request-channel id for this instance
	queue    *accumulator
	timer    *flushTimer
	pipeline *pipeline
	engine   *delivery.Engine
	log      *logger.AppLogger

	inflight sync.WaitGroup
}

// New resolves o over the built-in defaults into the instance settings and
// wires a ready-to-use Shipper. A ConfigError is returned for malformed
// settings, before anything else is initialized.
func New(o *config.Overrides, deps Dependencies) (*Shipper, error) {
	st, err := config.Resolve(config.Defaults(), o)
	if err != nil {
		return nil, err
	}

	appLog := deps.AppLogger
	if appLog == nil {
		appLog = logger.GetAppLogger()
	}

	s := &Shipper{
		settings: st,
		sink:     deps.ErrorSink,
		channel:  uuid.NewString(),
		queue:    newAccumulator(),
		pipeline: newPipeline(),
		log:      appLog,
	}
	s.timer = newFlushTimer(func() {
		if s.queue.length() > 0 {
			s.Flush(nil)
		}
	})
	s.engine = delivery.NewEngine(deps.Transport, deps.Backoff, s.notifyError, appLog)

	if err := s.timer.sync(st); err != nil {
		return nil, err
	}
	return s, nil
}

// Settings returns the instance settings snapshot.
func (s *Shipper) Settings() config.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetErrorSink replaces the error sink. Passing nil restores the default
// sink, which logs through the app logger.
func (s *Shipper) SetErrorSink(sink delivery.ErrorSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

func (s *Shipper) notifyError(err error, ctx *event.Context) {
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	if sink != nil {
		sink(err, ctx)
		return
	}
	s.log.Error("Event delivery failed: %v", err)
}

// Use registers a middleware step on the pipeline. Steps run in
// registration order on every flush context.
func (s *Shipper) Use(step Middleware) error {
	return s.pipeline.register(step)
}

// CalculateBatchSize returns the byte total of all queued serialized
// events.
func (s *Shipper) CalculateBatchSize() int {
	return s.queue.totalSize()
}

// resolve merges per-call overrides over the instance settings and
// reconciles the flush timer with the result. Every path that can change
// batching policy goes through here.
func (s *Shipper) resolve(o *config.Overrides) (config.Settings, error) {
	s.mu.Lock()
	base := s.settings
	s.mu.Unlock()

	st, err := config.Resolve(base, o)
	if err != nil {
		return config.Settings{}, err
	}
	if err := s.timer.sync(st); err != nil {
		return config.Settings{}, err
	}
	return st, nil
}

// Send normalizes and queues one event. Validation failures (malformed
// payload or settings) are returned synchronously before anything is
// queued. When the effective settings call for an immediate flush the
// queued batch is flushed and done rides along; otherwise done is not
// invoked until a later flush it happens to trigger.
func (s *Shipper) Send(p *event.Payload, done delivery.DoneFunc) error {
	if err := event.ValidateSeed(p); err != nil {
		return err
	}
	st, err := s.resolve(p.Config)
	if err != nil {
		return err
	}

	ctx, err := event.NewContext(p, st, s.channel)
	if err != nil {
		return err
	}
	body, err := ctx.Serialize()
	if err != nil {
		return err
	}

	total := s.queue.enqueue(ctx, len(body))

	// A running timer owns flushing; otherwise any queued total above the
	// size threshold triggers delivery now. A zero threshold means every
	// event flushes immediately.
	if st.AutoFlush && !s.timer.running() && total > st.MaxBatchSize {
		s.Flush(done)
	}
	return nil
}

// Flush delivers queued events. With batching in effect (a running flush
// timer or a positive size threshold) the whole queue is drained in one
// atomic snapshot and sent as a single concatenated request body. Without a
// batching condition only the most recently queued event is taken, leaving
// older entries for a later flush; this mirrors the long-standing behavior
// manual-flush consumers depend on.
func (s *Shipper) Flush(done delivery.DoneFunc) {
	s.mu.Lock()
	st := s.settings
	s.mu.Unlock()

	var fctx *event.Context
	if s.timer.running() || st.MaxBatchSize > 0 {
		contexts, _ := s.queue.drainAll()
		if len(contexts) == 0 {
			if done != nil {
				done(nil, nil, nil)
			}
			return
		}
		// Bodies are concatenated back-to-back with no delimiter.
		var buf bytes.Buffer
		for _, c := range contexts {
			buf.Write(c.Request.Body)
		}
		fctx = event.NewBatchContext(buf.Bytes(), st, s.channel)
	} else {
		fctx = s.queue.takeNewest()
		if fctx == nil {
			if done != nil {
				done(nil, nil, nil)
			}
			return
		}
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.deliver(fctx, done)
	}()
}

// deliver runs the middleware pipeline, re-normalizes to absorb any
// middleware mutations, re-serializes the body (batched contexts included)
// and hands the context to the delivery engine. POST attempts within one
// flush are strictly sequential.
func (s *Shipper) deliver(ctx *event.Context, done delivery.DoneFunc) {
	if err := s.pipeline.run(ctx); err != nil {
		s.notifyError(err, ctx)
		if done != nil {
			done(err, nil, nil)
		}
		return
	}

	if err := ctx.Normalize(); err != nil {
		s.notifyError(err, ctx)
		if done != nil {
			done(err, nil, nil)
		}
		return
	}
	if _, err := ctx.Serialize(); err != nil {
		s.notifyError(err, ctx)
		if done != nil {
			done(err, nil, nil)
		}
		return
	}

	s.engine.Run(ctx, done)
}

// Close stops the flush timer and waits for in-flight deliveries. Queued
// but unflushed events stay queued; call Flush first for a final drain.
func (s *Shipper) Close() {
	s.timer.stopTimer()
	s.inflight.Wait()
}
