// internal/delivery/engine.go

package delivery

import (
	"time"

	"github.com/orgoj/hecship/internal/event"
	"github.com/orgoj/hecship/internal/logger"
)

// DoneFunc is the caller-supplied completion callback for one flush. err is
// non-nil only for transport failures that exhausted the retry budget;
// service-level rejections are reported through the error sink alone.
type DoneFunc func(err error, resp *Response, ack *Ack)

// ErrorSink receives every delivery-path failure together with the context
// it belonged to.
type ErrorSink func(err error, ctx *event.Context)

// Engine performs the POST for one flush context, classifies the outcome
// and drives the retry loop. A single engine is shared by all flushes of a
// shipper; each Run call is an independent attempt sequence.
type Engine struct {
	transport Transport
	backoff   BackoffFunc
	sink      ErrorSink
	log       *logger.AppLogger
}

// NewEngine wires an engine. Nil collaborators fall back to the HTTP
// transport, exponential backoff, and a sink that logs through appLog.
func NewEngine(transport Transport, backoff BackoffFunc, sink ErrorSink, appLog *logger.AppLogger) *Engine {
	if appLog == nil {
		appLog = logger.GetAppLogger()
	}
	e := &Engine{
		transport: transport,
		backoff:   backoff,
		sink:      sink,
		log:       appLog,
	}
	if e.transport == nil {
		e.transport = NewHTTPTransport(0)
	}
	if e.backoff == nil {
		e.backoff = ExponentialBackoff
	}
	if e.sink == nil {
		e.sink = func(err error, _ *event.Context) {
			appLog.Error("Delivery failed: %v", err)
		}
	}
	return e
}

// Run issues POST attempts for ctx until success, a service-level
// rejection, or exhaustion of the retry budget. Attempts are strictly
// sequential; with maxRetries = N at most N+1 attempts occur, separated by
// increasing backoff delays.
func (e *Engine) Run(ctx *event.Context, done DoneFunc) {
	maxRetries := ctx.Settings.MaxRetries

	var resp *Response
	var transportErr error
	for attempt := 0; ; attempt++ {
		r, err := e.transport.Post(ctx.Request)
		if err == nil {
			resp = r
			transportErr = nil
			break
		}
		transportErr = &TransportError{Err: err}
		if attempt >= maxRetries {
			break
		}
		delay := e.backoff(attempt)
		e.log.Warn("Delivery attempt %d/%d failed, retrying in %s: %v", attempt+1, maxRetries+1, delay, err)
		time.Sleep(delay)
	}

	var ack *Ack
	var serviceErr error
	if resp != nil {
		ack = ParseAck(resp.Body)
		// A non-zero acknowledgement code is final: no retry budget is
		// spent on application-level rejections.
		if ack != nil && !ack.OK() {
			serviceErr = &ServiceError{Code: ack.Code.String(), Text: ack.Text}
		}
	}

	if serviceErr != nil {
		e.sink(serviceErr, ctx)
	}
	if transportErr != nil {
		e.sink(transportErr, ctx)
	}
	if done != nil {
		done(transportErr, resp, ack)
	}
}
