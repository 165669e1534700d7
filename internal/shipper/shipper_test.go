package shipper

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgoj/hecship/internal/config"
	"github.com/orgoj/hecship/internal/delivery"
	"github.com/orgoj/hecship/internal/event"
	"github.com/orgoj/hecship/internal/logger"
)

// captureTransport records every POST and answers with a scripted response.
type captureTransport struct {
	mu       sync.Mutex
	requests []*event.Request
	err      error
	body     string
}

func newCaptureTransport() *captureTransport {
	return &captureTransport{body: `{"text":"Success","code":0}`}
}

func (c *captureTransport) Post(req *event.Request) (*delivery.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	return &delivery.Response{Status: 200, Body: []byte(c.body)}, nil
}

func (c *captureTransport) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *captureTransport) request(i int) *event.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[i]
}

func newTestShipper(t *testing.T, o *config.Overrides, transport delivery.Transport) *Shipper {
	t.Helper()
	s, err := New(o, Dependencies{
		Transport: transport,
		Backoff:   delivery.NoBackoff,
		AppLogger: logger.NewAppLogger(io.Discard, logger.FATAL),
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func tokenOverrides() *config.Overrides {
	tok := "test-token"
	return &config.Overrides{Token: &tok}
}

func waitDone(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("done callback not invoked")
		return nil
	}
}

func TestNew_InvalidSettings(t *testing.T) {
	_, err := New(nil, Dependencies{})
	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "token", cfgErr.Field)
}

func TestNew_StartsTimerFromInstanceSettings(t *testing.T) {
	o := tokenOverrides()
	interval := 60000
	o.BatchInterval = &interval

	s := newTestShipper(t, o, newCaptureTransport())
	assert.True(t, s.timer.running())
	assert.Equal(t, time.Minute, s.timer.currentInterval())
}

func TestShipper_DefaultSettingsFlushImmediately(t *testing.T) {
	transport := newCaptureTransport()
	s := newTestShipper(t, tokenOverrides(), transport)

	done := make(chan error, 1)
	var gotAck *delivery.Ack
	err := s.Send(&event.Payload{Message: "hello", Severity: "info"}, func(err error, _ *delivery.Response, ack *delivery.Ack) {
		gotAck = ack
		done <- err
	})
	require.NoError(t, err)
	require.NoError(t, waitDone(t, done))

	// With no batching configured each event goes out on its own as JSON.
	require.Equal(t, 1, transport.count())
	req := transport.request(0)
	assert.Equal(t, "application/json", req.Headers.Get("Content-Type"))
	assert.Equal(t, "Splunk test-token", req.Headers.Get("Authorization"))
	assert.NotEmpty(t, req.Headers.Get("X-Splunk-Request-Channel"))
	assert.Contains(t, string(req.Body), `"message":"hello"`)
	assert.Contains(t, string(req.Body), `"severity":"info"`)

	require.NotNil(t, gotAck)
	assert.True(t, gotAck.OK())
	assert.Equal(t, 0, s.queue.length(), "queue empty after the flush")
}

func TestShipper_TimerBatchesIntoOneRequest(t *testing.T) {
	transport := newCaptureTransport()
	o := tokenOverrides()
	interval := 30
	o.BatchInterval = &interval

	s := newTestShipper(t, o, transport)

	require.NoError(t, s.Send(&event.Payload{Message: "first"}, nil))
	require.NoError(t, s.Send(&event.Payload{Message: "second"}, nil))

	// Nothing goes out before the timer fires.
	assert.Equal(t, 0, transport.count())
	assert.Equal(t, 2, s.queue.length())

	require.Eventually(t, func() bool { return transport.count() >= 1 }, 2*time.Second, 5*time.Millisecond)

	req := transport.request(0)
	assert.Equal(t, "application/x-www-form-urlencoded", req.Headers.Get("Content-Type"))
	body := string(req.Body)
	assert.Contains(t, body, `"message":"first"`)
	assert.Contains(t, body, `"message":"second"`)
	assert.Less(t, strings.Index(body, "first"), strings.Index(body, "second"), "batch preserves enqueue order")

	// The timer keeps ticking but an empty queue produces no traffic.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, transport.count())
}

func TestShipper_SizeThresholdFlushesWholeQueue(t *testing.T) {
	transport := newCaptureTransport()
	o := tokenOverrides()
	maxSize := 150
	o.MaxBatchSize = &maxSize

	s := newTestShipper(t, o, transport)

	done := make(chan error, 1)
	require.NoError(t, s.Send(&event.Payload{Message: "small"}, nil))
	assert.Equal(t, 0, transport.count(), "below the threshold nothing is sent")
	require.Positive(t, s.CalculateBatchSize())

	require.NoError(t, s.Send(&event.Payload{Message: strings.Repeat("x", 200)}, func(err error, _ *delivery.Response, _ *delivery.Ack) {
		done <- err
	}))
	require.NoError(t, waitDone(t, done))

	require.Equal(t, 1, transport.count())
	req := transport.request(0)
	assert.Equal(t, "application/x-www-form-urlencoded", req.Headers.Get("Content-Type"))
	assert.Contains(t, string(req.Body), `"message":"small"`)
	assert.Contains(t, string(req.Body), strings.Repeat("x", 200))
	assert.Equal(t, 0, s.CalculateBatchSize())
}

func TestShipper_ManualFlushTakesNewestOnly(t *testing.T) {
	transport := newCaptureTransport()
	o := tokenOverrides()
	off := false
	o.AutoFlush = &off

	s := newTestShipper(t, o, transport)

	require.NoError(t, s.Send(&event.Payload{Message: "first"}, nil))
	require.NoError(t, s.Send(&event.Payload{Message: "second"}, nil))
	require.NoError(t, s.Send(&event.Payload{Message: "third"}, nil))
	assert.Equal(t, 0, transport.count())

	done := make(chan error, 1)
	s.Flush(func(err error, _ *delivery.Response, _ *delivery.Ack) { done <- err })
	require.NoError(t, waitDone(t, done))

	// Without a batching condition a flush sends only the newest event.
	require.Equal(t, 1, transport.count())
	req := transport.request(0)
	assert.Equal(t, "application/json", req.Headers.Get("Content-Type"))
	assert.Contains(t, string(req.Body), `"message":"third"`)
	assert.NotContains(t, string(req.Body), `"message":"second"`)
	assert.Equal(t, 2, s.queue.length(), "older events stay queued")
}

func TestShipper_RepeatedFlushDrainsWholeQueue(t *testing.T) {
	transport := newCaptureTransport()
	o := tokenOverrides()
	off := false
	o.AutoFlush = &off

	s := newTestShipper(t, o, transport)

	for _, msg := range []string{"one", "two", "three"} {
		require.NoError(t, s.Send(&event.Payload{Message: msg}, nil))
	}

	// The newest-only fallback path gives up one event per flush, so a
	// shutdown drain keeps flushing until the size tally reaches zero.
	for s.CalculateBatchSize() > 0 {
		done := make(chan error, 1)
		s.Flush(func(err error, _ *delivery.Response, _ *delivery.Ack) { done <- err })
		require.NoError(t, waitDone(t, done))
	}

	require.Equal(t, 3, transport.count(), "no queued event is abandoned")
	assert.Contains(t, string(transport.request(0).Body), `"message":"three"`)
	assert.Contains(t, string(transport.request(1).Body), `"message":"two"`)
	assert.Contains(t, string(transport.request(2).Body), `"message":"one"`)
	assert.Equal(t, 0, s.queue.length())
}

func TestShipper_FlushEmptyQueue(t *testing.T) {
	transport := newCaptureTransport()
	s := newTestShipper(t, tokenOverrides(), transport)

	called := false
	s.Flush(func(err error, resp *delivery.Response, ack *delivery.Ack) {
		called = true
		assert.NoError(t, err)
		assert.Nil(t, resp)
		assert.Nil(t, ack)
	})

	// Empty-queue flushes complete synchronously.
	assert.True(t, called)
	assert.Equal(t, 0, transport.count())
}

func TestShipper_SendValidation(t *testing.T) {
	s := newTestShipper(t, tokenOverrides(), newCaptureTransport())

	var ctxErr *event.ContextError
	require.ErrorAs(t, s.Send(nil, nil), &ctxErr)
	require.ErrorAs(t, s.Send(&event.Payload{}, nil), &ctxErr)

	badPort := 1
	err := s.Send(&event.Payload{
		Message: "m",
		Config:  &config.Overrides{Port: &badPort},
	}, nil)
	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "port", cfgErr.Field)
	assert.Equal(t, 0, s.queue.length(), "nothing queued on validation failure")
}

func TestShipper_PerCallOverrides(t *testing.T) {
	transport := newCaptureTransport()
	s := newTestShipper(t, tokenOverrides(), transport)

	done := make(chan error, 1)
	host := "other.example.com"
	require.NoError(t, s.Send(&event.Payload{
		Message: "m",
		Config:  &config.Overrides{Host: &host},
	}, func(err error, _ *delivery.Response, _ *delivery.Ack) { done <- err }))
	require.NoError(t, waitDone(t, done))

	require.Equal(t, 1, transport.count())
	assert.Contains(t, transport.request(0).URL, "other.example.com")

	// The per-call override does not change the instance settings.
	assert.Equal(t, config.DefaultHost, s.Settings().Host)
}

func TestShipper_PerCallOverrideStartsTimer(t *testing.T) {
	s := newTestShipper(t, tokenOverrides(), newCaptureTransport())
	assert.False(t, s.timer.running())

	interval := 60000
	require.NoError(t, s.Send(&event.Payload{
		Message: "m",
		Config:  &config.Overrides{BatchInterval: &interval},
	}, nil))

	// Settings resolution reconciles the flush timer on every send.
	assert.True(t, s.timer.running())
	assert.Equal(t, time.Minute, s.timer.currentInterval())
	assert.Equal(t, 1, s.queue.length(), "running timer owns flushing")
}

func TestShipper_MiddlewareAbortSkipsNetwork(t *testing.T) {
	transport := newCaptureTransport()
	s := newTestShipper(t, tokenOverrides(), transport)

	boom := errors.New("rejected")
	require.NoError(t, s.Use(func(*event.Context) error { return boom }))

	var sinkErr error
	var sinkMu sync.Mutex
	s.SetErrorSink(func(err error, _ *event.Context) {
		sinkMu.Lock()
		sinkErr = err
		sinkMu.Unlock()
	})

	done := make(chan error, 1)
	require.NoError(t, s.Send(&event.Payload{Message: "m"}, func(err error, _ *delivery.Response, _ *delivery.Ack) {
		done <- err
	}))
	err := waitDone(t, done)

	var mwErr *MiddlewareError
	require.ErrorAs(t, err, &mwErr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, transport.count(), "no network attempt for an aborted flush")

	sinkMu.Lock()
	defer sinkMu.Unlock()
	require.ErrorAs(t, sinkErr, &mwErr)
}

func TestShipper_MiddlewareMutationsAreRenormalized(t *testing.T) {
	transport := newCaptureTransport()
	s := newTestShipper(t, tokenOverrides(), transport)

	require.NoError(t, s.Use(func(ctx *event.Context) error {
		ctx.Event.Message = "rewritten"
		ctx.Event.Metadata["host"] = "middleware-host"
		ctx.Event.Metadata["junk"] = "dropped"
		return nil
	}))

	done := make(chan error, 1)
	require.NoError(t, s.Send(&event.Payload{Message: "original"}, func(err error, _ *delivery.Response, _ *delivery.Ack) {
		done <- err
	}))
	require.NoError(t, waitDone(t, done))

	require.Equal(t, 1, transport.count())
	body := string(transport.request(0).Body)
	assert.Contains(t, body, `"message":"rewritten"`)
	assert.Contains(t, body, `"host":"middleware-host"`)
	assert.NotContains(t, body, "junk")
}

func TestShipper_BatchedMiddlewareMutationsReachTheWire(t *testing.T) {
	transport := newCaptureTransport()
	o := tokenOverrides()
	interval := 30
	o.BatchInterval = &interval

	s := newTestShipper(t, o, transport)

	require.NoError(t, s.Use(func(ctx *event.Context) error {
		if ctx.Batched {
			ctx.Event.Message = `{"event":{"message":"rewritten-batch","severity":"info"}}`
		}
		return nil
	}))

	require.NoError(t, s.Send(&event.Payload{Message: "original"}, nil))
	require.Eventually(t, func() bool { return transport.count() >= 1 }, 2*time.Second, 5*time.Millisecond)

	// The batch context runs through the pipeline like any other flush;
	// its transmitted body reflects the step's rewrite, not the bodies
	// assembled at drain time.
	body := string(transport.request(0).Body)
	assert.Contains(t, body, "rewritten-batch")
	assert.NotContains(t, body, "original")
	assert.Equal(t, "application/x-www-form-urlencoded", transport.request(0).Headers.Get("Content-Type"))
}

func TestShipper_TransportErrorReachesSinkAndCallback(t *testing.T) {
	transport := newCaptureTransport()
	transport.err = errors.New("connection refused")
	s := newTestShipper(t, tokenOverrides(), transport)

	var sinkErr error
	var sinkMu sync.Mutex
	s.SetErrorSink(func(err error, _ *event.Context) {
		sinkMu.Lock()
		sinkErr = err
		sinkMu.Unlock()
	})

	done := make(chan error, 1)
	require.NoError(t, s.Send(&event.Payload{Message: "m"}, func(err error, _ *delivery.Response, _ *delivery.Ack) {
		done <- err
	}))
	err := waitDone(t, done)

	var transportErr *delivery.TransportError
	require.ErrorAs(t, err, &transportErr)

	sinkMu.Lock()
	defer sinkMu.Unlock()
	require.ErrorAs(t, sinkErr, &transportErr)
}

func TestShipper_SendDuringInflightFlushIsNotLost(t *testing.T) {
	release := make(chan struct{})
	first := true
	var mu sync.Mutex

	transport := newCaptureTransport()
	blocking := transportFunc(func(req *event.Request) (*delivery.Response, error) {
		mu.Lock()
		wasFirst := first
		first = false
		mu.Unlock()
		if wasFirst {
			<-release
		}
		return transport.Post(req)
	})

	s := newTestShipper(t, tokenOverrides(), blocking)

	done1 := make(chan error, 1)
	require.NoError(t, s.Send(&event.Payload{Message: "blocked"}, func(err error, _ *delivery.Response, _ *delivery.Ack) {
		done1 <- err
	}))

	// A second send while the first delivery is stalled mid-POST.
	done2 := make(chan error, 1)
	require.NoError(t, s.Send(&event.Payload{Message: "concurrent"}, func(err error, _ *delivery.Response, _ *delivery.Ack) {
		done2 <- err
	}))
	require.NoError(t, waitDone(t, done2))

	close(release)
	require.NoError(t, waitDone(t, done1))

	assert.Equal(t, 2, transport.count(), "both events delivered")
}

type transportFunc func(req *event.Request) (*delivery.Response, error)

func (f transportFunc) Post(req *event.Request) (*delivery.Response, error) { return f(req) }

func TestShipper_CloseWaitsForInflight(t *testing.T) {
	release := make(chan struct{})
	delivered := make(chan struct{})

	blocking := transportFunc(func(*event.Request) (*delivery.Response, error) {
		<-release
		close(delivered)
		return &delivery.Response{Status: 200, Body: []byte(`{"text":"Success","code":0}`)}, nil
	})

	s, err := New(tokenOverrides(), Dependencies{
		Transport: blocking,
		Backoff:   delivery.NoBackoff,
		AppLogger: logger.NewAppLogger(io.Discard, logger.FATAL),
	})
	require.NoError(t, err)

	require.NoError(t, s.Send(&event.Payload{Message: "m"}, nil))

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	s.Close()

	select {
	case <-delivered:
	default:
		t.Fatal("Close returned before the in-flight delivery finished")
	}
}
