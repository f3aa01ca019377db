package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker/v2"
)

// StatusError marks a 5xx upstream response. The response is still returned
// to the caller, which owns its body.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("resilience: upstream returned %d", e.StatusCode)
}

// HTTPClient wraps an http.Client with a circuit breaker. It never retries:
// a failed call is reported to the caller as-is.
type HTTPClient struct {
	Client  *http.Client
	Breaker *Breaker
}

// Do executes req under the breaker. When the breaker is open ErrOpenCircuit
// is returned without contacting the upstream.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	call := func() (*http.Response, error) {
		resp, err := cl.Client.Do(req.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, &StatusError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	}
	if cl.Breaker == nil {
		return call()
	}
	resp, err := cl.Breaker.Execute(call)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrOpenCircuit, err)
	}
	return resp, err
}
