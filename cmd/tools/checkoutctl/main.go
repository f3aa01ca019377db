// Command checkoutctl drives a payment session against a running API from the
// command line: it reads cart lines from a JSON file, creates the order
// remotely and prints where the buyer should be redirected.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/noah-isme/agromarket/internal/cart"
	"github.com/noah-isme/agromarket/internal/checkout"
	"github.com/noah-isme/agromarket/internal/obs"
	"github.com/noah-isme/agromarket/internal/payment"
	"github.com/noah-isme/agromarket/internal/pendingorder"
	"github.com/noah-isme/agromarket/internal/resilience"
)

func main() {
	_ = godotenv.Load()

	var (
		cartFile   = flag.String("cart", "cart.json", "JSON file holding the cart lines")
		apiURL     = flag.String("api", envOrDefault("AGROMARKET_API_URL", "http://localhost:8080"), "base URL of the checkout API")
		widgetURL  = flag.String("widget", envOrDefault("PAYMENT_WIDGET_BASE_URL", "https://pay.example.com/checkout"), "hosted payment page URL")
		clientKey  = flag.String("client-key", os.Getenv("PAYMENT_CLIENT_KEY"), "payment provider client key")
		successURL = flag.String("success-url", envOrDefault("PAYMENT_SUCCESS_URL", "http://localhost:8080/api/v1/payments/success"), "success redirect URL")
		failURL    = flag.String("fail-url", envOrDefault("PAYMENT_FAIL_URL", "http://localhost:8080/api/v1/payments/fail"), "fail redirect URL")
		currency   = flag.String("currency", envOrDefault("CURRENCY", "KRW"), "currency code")
		customer   = flag.String("customer", "", "customer key; defaults to a random id")
		name       = flag.String("name", "", "customer name shown on the payment page")
		email      = flag.String("email", "", "customer email shown on the payment page")
		address    = flag.String("address", "", "delivery address")
		idemKey    = flag.String("idempotency-key", "", "reuse a key to replay an earlier order")
		timeout    = flag.Duration("timeout", 15*time.Second, "request timeout")
	)
	flag.Parse()

	logger := obs.NewLogger(envOrDefault("OBS_LOG_FORMAT", "console"), envOrDefault("OBS_LOG_LEVEL", "warn"))

	lines, err := readLines(*cartFile)
	if err != nil {
		logger.Fatal().Err(err).Str("file", *cartFile).Msg("read cart")
	}
	token := strings.TrimSpace(os.Getenv("AGROMARKET_TOKEN"))
	if token == "" {
		logger.Fatal().Msg("AGROMARKET_TOKEN is not set")
	}
	customerKey := strings.TrimSpace(*customer)
	if customerKey == "" {
		customerKey = uuid.NewString()
	}

	client := checkout.NewClient(checkout.ClientConfig{
		BaseURL: *apiURL,
		Timeout: *timeout,
		Breaker: resilience.NewBreaker(resilience.BreakerConfig{Target: "checkout-api", Logger: &logger}),
		Token:   func(context.Context) (string, error) { return token, nil },
	})

	ctrl := payment.NewController(payment.Config{
		ClientKey:         *clientKey,
		Customer:          payment.Customer{Key: customerKey, Name: *name, Email: *email},
		RetailerID:        customerKey,
		Currency:          *currency,
		ProvisionalAmount: int64(cart.SumLines(lines).Total),
		SuccessURL:        *successURL,
		FailURL:           *failURL,
		Widget:            &payment.RedirectWidget{BaseURL: *widgetURL},
		Orders:            client,
		Pending:           &pendingorder.MemoryStore{},
		Log:               logger,
	})
	defer ctrl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := ctrl.Mount(ctx); err != nil {
		logger.Fatal().Err(err).Msg(ctrl.Message())
	}
	if err := ctrl.Render(ctx); err != nil {
		logger.Fatal().Err(err).Msg("render payment widget")
	}
	attempt, err := ctrl.RequestPayment(ctx, payment.Checkout{
		Lines:          lines,
		Delivery:       checkout.Delivery{Address: *address},
		IdempotencyKey: *idemKey,
	})
	if err != nil {
		logger.Error().Err(err).Msg("request payment")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(attempt); err != nil {
		logger.Fatal().Err(err).Msg("write result")
	}
	if attempt.Outcome != payment.AttemptRedirect && attempt.Outcome != payment.AttemptSucceeded {
		os.Exit(1)
	}
}

func readLines(path string) ([]cart.Line, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines []cart.Line
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("decode cart lines: %w", err)
	}
	return lines, nil
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
