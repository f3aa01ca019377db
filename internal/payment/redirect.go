package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// RedirectWidget hands the buyer to a hosted payment page. It performs no
// network I/O: RequestPayment only builds the page URL.
type RedirectWidget struct {
	BaseURL string

	mu          sync.Mutex
	clientKey   string
	customerKey string
	amount      Amount
	rendered    []string
}

func (w *RedirectWidget) Init(_ context.Context, cfg InitConfig) error {
	if strings.TrimSpace(w.BaseURL) == "" {
		return errors.New("payment widget: base url is required")
	}
	if strings.TrimSpace(cfg.ClientKey) == "" {
		return errors.New("payment widget: client key is required")
	}
	if strings.TrimSpace(cfg.CustomerKey) == "" {
		return errors.New("payment widget: customer key is required")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clientKey = cfg.ClientKey
	w.customerKey = cfg.CustomerKey
	return nil
}

func (w *RedirectWidget) SetAmount(_ context.Context, amount Amount) error {
	if amount.Value <= 0 {
		return fmt.Errorf("payment widget: invalid amount %d", amount.Value)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.amount = amount
	return nil
}

// RenderPaymentMethods records the selector. The hosted page draws the
// methods itself; a second render into the same selector is an error.
func (w *RedirectWidget) RenderPaymentMethods(_ context.Context, selector string) error {
	return w.render(selector)
}

// RenderAgreements records the selector. The hosted page draws the
// agreements itself; a second render into the same selector is an error.
func (w *RedirectWidget) RenderAgreements(_ context.Context, selector string) error {
	return w.render(selector)
}

func (w *RedirectWidget) render(selector string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.rendered {
		if s == selector {
			return fmt.Errorf("payment widget: %s already rendered", selector)
		}
	}
	w.rendered = append(w.rendered, selector)
	return nil
}

func (w *RedirectWidget) RequestPayment(_ context.Context, req PaymentRequest) (Outcome, error) {
	w.mu.Lock()
	clientKey, customerKey, amount := w.clientKey, w.customerKey, w.amount
	w.mu.Unlock()
	if clientKey == "" {
		return Outcome{}, errors.New("payment widget: not initialised")
	}
	if amount.Value <= 0 {
		return Outcome{}, errors.New("payment widget: amount not configured")
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return Outcome{}, errors.New("payment widget: order id is required")
	}
	base, err := url.Parse(strings.TrimSpace(w.BaseURL))
	if err != nil {
		return Outcome{}, fmt.Errorf("payment widget: invalid base url: %w", err)
	}
	q := base.Query()
	q.Set("clientKey", clientKey)
	q.Set("customerKey", customerKey)
	q.Set("orderId", req.OrderID)
	q.Set("orderName", req.OrderName)
	q.Set("amount", strconv.FormatInt(amount.Value, 10))
	if amount.Currency != "" {
		q.Set("currency", amount.Currency)
	}
	q.Set("customerName", req.CustomerName)
	q.Set("customerEmail", req.CustomerEmail)
	q.Set("successUrl", req.SuccessURL)
	q.Set("failUrl", req.FailURL)
	base.RawQuery = q.Encode()
	return Outcome{
		Redirect:    true,
		RedirectURL: base.String(),
		OrderID:     req.OrderID,
		Amount:      amount.Value,
	}, nil
}
