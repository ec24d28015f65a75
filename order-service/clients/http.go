package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"mini-shop/order-service/circuitbreaker"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Request describes one outbound HTTP operation.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
}

// DependencyError is a failed answer or a transport failure from a remote
// service. StatusCode is 0 when no response was received. Rejected marks a 2xx
// answer whose body reported success=false.
type DependencyError struct {
	Service    string
	Operation  string
	StatusCode int
	Message    string
	Rejected   bool
	Err        error
}

func (e *DependencyError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s failed: %s", e.Service, e.Operation, e.Message)
	}
	if e.Rejected {
		return fmt.Sprintf("%s %s rejected: %s", e.Service, e.Operation, e.Message)
	}
	return fmt.Sprintf("%s %s returned %d: %s", e.Service, e.Operation, e.StatusCode, e.Message)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

// IsClientError reports a 4xx answer or a rejected request, both business
// outcomes rather than signs of an unhealthy dependency.
func (e *DependencyError) IsClientError() bool {
	return e.Rejected || (e.StatusCode >= 400 && e.StatusCode < 500)
}

// ShortCircuitError is returned when the dependency's breaker refused the call.
type ShortCircuitError struct {
	Service string
}

func (e *ShortCircuitError) Error() string {
	return fmt.Sprintf("%s unavailable: circuit breaker is open", e.Service)
}

func (e *ShortCircuitError) Is(target error) bool {
	return target == circuitbreaker.ErrCircuitOpen
}

// IsFailure is the breaker failure predicate for remote calls: everything but
// success and business refusals counts against the dependency.
func IsFailure(err error) bool {
	if err == nil {
		return false
	}
	var depErr *DependencyError
	if errors.As(err, &depErr) && depErr.IsClientError() {
		return false
	}
	return true
}

// Transport executes Requests over an otelhttp-instrumented client, which
// starts the client span and propagates trace context in the headers.
type Transport struct {
	httpClient *http.Client
}

func NewTransport() *Transport {
	base := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
	}
	return NewTransportWithClient(&http.Client{
		Transport: otelhttp.NewTransport(base,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		),
	})
}

func NewTransportWithClient(httpClient *http.Client) *Transport {
	return &Transport{httpClient: httpClient}
}

// Do sends req and decodes a 2xx JSON body into out when out is non-nil. It
// returns the response status, or 0 when no response was received.
func (t *Transport) Do(ctx context.Context, service, operation string, req Request, out any) (int, error) {
	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal %s request: %w", operation, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return 0, fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		if v != "" {
			httpReq.Header.Set(k, v)
		}
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return 0, &DependencyError{Service: service, Operation: operation, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &DependencyError{Service: service, Operation: operation, StatusCode: resp.StatusCode, Message: err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &DependencyError{
			Service:    service,
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw, resp.Status),
		}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, &DependencyError{
				Service:    service,
				Operation:  operation,
				StatusCode: resp.StatusCode,
				Message:    "invalid response body",
				Err:        err,
			}
		}
	}
	return resp.StatusCode, nil
}

func errorMessage(raw []byte, fallback string) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return fallback
}

// envelope is the {success, message, data} wrapper used by the shop services.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func envelopeMessage(msg string) string {
	if msg == "" {
		return "request was not successful"
	}
	return msg
}

// remote binds a service to its breaker and the shared transport.
type remote struct {
	service   string
	baseURL   string
	transport *Transport
	breaker   *circuitbreaker.CircuitBreaker
}

func (r *remote) Breaker() *circuitbreaker.CircuitBreaker {
	return r.breaker
}

func call[T any](ctx context.Context, r *remote, operation string, req Request) (T, error) {
	out, err := circuitbreaker.Call(ctx, r.breaker, func(ctx context.Context) (T, error) {
		var env envelope[T]
		var zero T
		status, err := r.transport.Do(ctx, r.service, operation, req, &env)
		if err != nil {
			return zero, err
		}
		if status != http.StatusNoContent && !env.Success {
			return zero, &DependencyError{
				Service:    r.service,
				Operation:  operation,
				StatusCode: status,
				Message:    envelopeMessage(env.Message),
				Rejected:   true,
			}
		}
		return env.Data, nil
	})
	switch {
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return out, &ShortCircuitError{Service: r.service}
	case errors.Is(err, circuitbreaker.ErrTimeout):
		return out, &DependencyError{Service: r.service, Operation: operation, Message: "request timed out", Err: err}
	}
	return out, err
}
