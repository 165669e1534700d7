// internal/delivery/transport.go

package delivery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/orgoj/hecship/internal/event"
)

// Response is the transport-level outcome of one POST attempt.
type Response struct {
	Status int
	Body   []byte
}

// Ack is the collector's application-level acknowledgement carried in the
// response body. Code "0" means the event batch was accepted.
type Ack struct {
	Text string      `json:"text"`
	Code json.Number `json:"code"`
}

// OK reports whether the acknowledgement signals acceptance.
func (a *Ack) OK() bool {
	n, err := a.Code.Int64()
	return err == nil && n == 0
}

// ParseAck decodes a collector acknowledgement from a raw response body.
// Returns nil when the body does not carry one.
func ParseAck(body []byte) *Ack {
	if len(body) == 0 {
		return nil
	}
	var ack Ack
	if err := json.Unmarshal(body, &ack); err != nil {
		return nil
	}
	if ack.Code == "" && ack.Text == "" {
		return nil
	}
	return &ack
}

// Transport is the POST primitive the delivery engine drives. A returned
// error signals a transport failure; any received response, whatever its
// status, is returned for classification.
type Transport interface {
	Post(req *event.Request) (*Response, error)
}

// DefaultTimeout bounds a single POST attempt.
const DefaultTimeout = 10 * time.Second

// HTTPTransport implements Transport over net/http.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates a transport with the given per-attempt timeout.
// A non-positive timeout falls back to DefaultTimeout.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPTransport{
		client: &http.Client{Timeout: timeout},
	}
}

// Post issues one HTTP POST with the request's transport options.
func (t *HTTPTransport) Post(req *event.Request) (*Response, error) {
	httpReq, err := http.NewRequest(http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for name, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{Status: resp.StatusCode, Body: body}, nil
}
