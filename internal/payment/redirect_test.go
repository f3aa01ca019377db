package payment

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedirectWidgetBuildsHostedURL(t *testing.T) {
	w := &RedirectWidget{BaseURL: "https://pay.example/checkout?locale=ko"}
	ctx := context.Background()
	require.NoError(t, w.Init(ctx, InitConfig{ClientKey: "ck_test", CustomerKey: "user-1"}))
	require.NoError(t, w.SetAmount(ctx, Amount{Currency: "KRW", Value: 31500}))

	out, err := w.RequestPayment(ctx, PaymentRequest{
		OrderID:       "ORD-1",
		OrderName:     "Shallot and 1 more",
		CustomerName:  "Buyer",
		CustomerEmail: "buyer@agromarket.local",
		SuccessURL:    "https://shop.example/payments/success",
		FailURL:       "https://shop.example/payments/fail",
	})
	require.NoError(t, err)
	require.True(t, out.Redirect)
	require.Equal(t, int64(31500), out.Amount)

	u, err := url.Parse(out.RedirectURL)
	require.NoError(t, err)
	require.Equal(t, "pay.example", u.Host)
	q := u.Query()
	require.Equal(t, "ko", q.Get("locale"))
	require.Equal(t, "ck_test", q.Get("clientKey"))
	require.Equal(t, "user-1", q.Get("customerKey"))
	require.Equal(t, "ORD-1", q.Get("orderId"))
	require.Equal(t, "Shallot and 1 more", q.Get("orderName"))
	require.Equal(t, "31500", q.Get("amount"))
	require.Equal(t, "KRW", q.Get("currency"))
	require.Equal(t, "https://shop.example/payments/fail", q.Get("failUrl"))
}

func TestRedirectWidgetGuards(t *testing.T) {
	ctx := context.Background()
	require.Error(t, (&RedirectWidget{}).Init(ctx, InitConfig{ClientKey: "ck", CustomerKey: "u"}))

	w := &RedirectWidget{BaseURL: "https://pay.example"}
	require.Error(t, w.Init(ctx, InitConfig{CustomerKey: "u"}))
	require.Error(t, w.Init(ctx, InitConfig{ClientKey: "ck"}))

	_, err := w.RequestPayment(ctx, PaymentRequest{OrderID: "ORD-1"})
	require.Error(t, err, "not initialised")

	require.NoError(t, w.Init(ctx, InitConfig{ClientKey: "ck", CustomerKey: "u"}))
	_, err = w.RequestPayment(ctx, PaymentRequest{OrderID: "ORD-1"})
	require.Error(t, err, "amount not configured")

	require.Error(t, w.SetAmount(ctx, Amount{Value: 0}))
	require.NoError(t, w.SetAmount(ctx, Amount{Value: 10}))
	_, err = w.RequestPayment(ctx, PaymentRequest{})
	require.Error(t, err, "order id required")

	require.NoError(t, w.RenderPaymentMethods(ctx, PaymentMethodSelector))
	require.Error(t, w.RenderPaymentMethods(ctx, PaymentMethodSelector))
	require.NoError(t, w.RenderAgreements(ctx, AgreementSelector))
	require.Error(t, w.RenderAgreements(ctx, AgreementSelector), "agreements render once")
}
