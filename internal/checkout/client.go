package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/agromarket/internal/cart"
	"github.com/noah-isme/agromarket/internal/common"
	"github.com/noah-isme/agromarket/internal/resilience"
)

// TokenSource returns the bearer token for the current buyer.
type TokenSource func(ctx context.Context) (string, error)

// Client calls the order creation endpoint of a remote checkout API. It
// satisfies the same contract as Service.CreateOrderIntent so a payment
// session can drive either one. Calls are never retried.
type Client struct {
	BaseURL string
	HTTP    resilience.HTTPClient
	Token   TokenSource
}

// ClientConfig configures NewClient.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Breaker *resilience.Breaker
	Token   TokenSource
}

// NewClient builds a Client with an instrumented transport.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		HTTP: resilience.HTTPClient{
			Client: &http.Client{
				Timeout:   timeout,
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
			Breaker: cfg.Breaker,
		},
		Token: cfg.Token,
	}
}

type envelope struct {
	Data  *Result           `json:"data"`
	Error *common.ErrorBody `json:"error"`
}

// CreateOrderIntent posts the order request and decodes the tagged result.
// Transport failures come back as CodeUnavailable.
func (c *Client) CreateOrderIntent(ctx context.Context, in Input) Result {
	body, err := json.Marshal(toCreateRequest(in))
	if err != nil {
		return failure(CodeInternal, GenericFailureMessage)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/checkout/orders", bytes.NewReader(body))
	if err != nil {
		return failure(CodeInternal, GenericFailureMessage)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
		req.Header.Set(common.IdempotencyHeader, key)
	}
	if c.Token != nil {
		token, err := c.Token(ctx)
		if err != nil {
			return failure(CodeUnauthenticated, "sign in with a retailer account to place an order")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.HTTP.Do(ctx, req)
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	var statusErr *resilience.StatusError
	if err != nil && !errors.As(err, &statusErr) {
		return failure(CodeUnavailable, "the order service is unreachable, please try again")
	}
	return decodeResult(resp)
}

func decodeResult(resp *http.Response) Result {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return failure(CodeUnavailable, "the order service is unreachable, please try again")
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return failure(CodeInternal, fmt.Sprintf("unexpected response from the order service (%d)", resp.StatusCode))
	}
	if env.Data != nil && resp.StatusCode < http.StatusBadRequest {
		return *env.Data
	}
	if env.Error != nil {
		res := failure(env.Error.Code, env.Error.Message)
		if res.Code == "" {
			res.Code = CodeInternal
		}
		if details, ok := decodeDetails(env.Error.Details); ok {
			res.Details = details
		}
		return res
	}
	return failure(CodeInternal, GenericFailureMessage)
}

func toCreateRequest(in Input) createRequest {
	req := createRequest{Delivery: in.Delivery, ClientTotal: in.ClientTotal}
	for _, l := range in.Lines {
		req.Lines = append(req.Lines, lineRequest{
			ProductID:       l.ProductID,
			VariantID:       l.VariantID,
			Quantity:        l.Quantity,
			ClientUnitPrice: l.ClientUnitPrice,
			SeenVersion:     l.SeenVersion,
		})
	}
	return req
}

func decodeDetails(raw any) ([]cart.ValidationError, bool) {
	if raw == nil {
		return nil, false
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}
	var out []cart.ValidationError
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	return out, len(out) > 0
}
