package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/agromarket/internal/cart"
	"github.com/noah-isme/agromarket/internal/catalog"
	"github.com/noah-isme/agromarket/internal/common"
	"github.com/noah-isme/agromarket/internal/events"
	"github.com/noah-isme/agromarket/internal/identity"
	"github.com/noah-isme/agromarket/internal/lock"
	"github.com/noah-isme/agromarket/internal/obs"
	"github.com/noah-isme/agromarket/internal/pricing"
)

var (
	// ErrOrderNotFound is returned by OrderStore lookups that match nothing.
	ErrOrderNotFound = errors.New("checkout: order not found")
	// ErrDuplicateOrder is returned by OrderStore.Create when the idempotency
	// key is already taken.
	ErrDuplicateOrder = errors.New("checkout: duplicate idempotency key")
)

var validate = validator.New()

// RetailerLookup resolves the retailer placing the order.
type RetailerLookup interface {
	CurrentRetailer(ctx context.Context) (identity.Retailer, error)
}

// PriceLookup returns the authoritative price snapshot for a product.
type PriceLookup interface {
	Lookup(ctx context.Context, productID string, variantID *string) (catalog.Price, error)
}

// OrderStore persists orders.
type OrderStore interface {
	Create(ctx context.Context, order Order) error
	FindByIdempotencyKey(ctx context.Context, retailerID, key string) (Order, error)
}

// Locker serialises work on a key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Publisher emits domain events.
type Publisher interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Service creates server-confirmed orders from buyer proposals.
type Service struct {
	Retailers RetailerLookup
	Prices    PriceLookup
	Orders    OrderStore
	Locker    Locker
	LockTTL   time.Duration
	Events    Publisher
	Log       zerolog.Logger
	Now       func() time.Time
	NewToken  func() string
}

// CreateOrderIntent re-prices the proposed lines against the catalog,
// persists the order with the server-computed amount and returns a tagged
// result. It never panics and never returns a Go error: every failure is
// reported through Result.Code.
func (s *Service) CreateOrderIntent(ctx context.Context, in Input) (res Result) {
	ctx, span := otel.Tracer("checkout.Service").Start(ctx, "CreateOrderIntent")
	defer span.End()

	drift := false
	defer func() {
		if rec := recover(); rec != nil {
			s.logger().Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("create order intent panicked")
			res = failure(CodeInternal, GenericFailureMessage)
		}
		label := "success"
		if !res.Success {
			label = res.Code
			span.SetStatus(codes.Error, res.Code)
		}
		span.SetAttributes(attribute.String("checkout.result", label), attribute.Int64("checkout.amount", res.Amount))
		obs.ObserveCheckout(label, res.Amount, drift)
	}()

	if s == nil || s.Retailers == nil || s.Prices == nil || s.Orders == nil {
		return failure(CodeInternal, GenericFailureMessage)
	}

	retailer, err := s.Retailers.CurrentRetailer(ctx)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthenticated) || errors.Is(err, identity.ErrNoRetailer) {
			return failure(CodeUnauthenticated, "sign in with a retailer account to place an order")
		}
		s.logger().Error().Err(err).Msg("resolve retailer")
		return failure(CodeInternal, "we could not verify your retailer account, please try again")
	}

	if r, ok := checkInput(in); !ok {
		return r
	}

	fingerprint, err := requestFingerprint(in)
	if err != nil {
		s.logger().Error().Err(err).Msg("fingerprint order request")
		return failure(CodeInternal, GenericFailureMessage)
	}

	create := func(ctx context.Context) Result {
		return s.create(ctx, retailer, in, fingerprint, &drift)
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" {
		return create(ctx)
	}
	return s.createIdempotent(ctx, retailer.ID, key, fingerprint, create)
}

func (s *Service) createIdempotent(ctx context.Context, retailerID, key, fingerprint string, create func(context.Context) Result) Result {
	run := func(ctx context.Context) Result {
		existing, err := s.Orders.FindByIdempotencyKey(ctx, retailerID, key)
		switch {
		case err == nil:
			if existing.RequestFingerprint != fingerprint {
				return failure(CodeIdempotencyConflict, "this idempotency key was already used for a different order")
			}
			return resultFromOrder(existing, true)
		case errors.Is(err, ErrOrderNotFound):
			return create(ctx)
		default:
			s.logger().Error().Err(err).Str("retailer_id", retailerID).Msg("find order by idempotency key")
			return failure(CodePersistFailed, "we could not check for an earlier submission of this order, please try again")
		}
	}
	if s.Locker == nil {
		return run(ctx)
	}
	var out Result
	err := s.Locker.WithLock(ctx, "checkout:"+retailerID+":"+key, s.lockTTL(), func(ctx context.Context) error {
		out = run(ctx)
		return nil
	})
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return failure(CodeIdempotencyConflict, "an order with this idempotency key is already being created")
		}
		s.logger().Error().Err(err).Msg("acquire checkout lock")
		return failure(CodeInternal, GenericFailureMessage)
	}
	return out
}

func (s *Service) create(ctx context.Context, retailer identity.Retailer, in Input, fingerprint string, drift *bool) Result {
	items, res, ok := s.reprice(ctx, in.Lines)
	if !ok {
		return res
	}

	inputs := make([]pricing.Input, 0, len(items))
	for _, it := range items {
		inputs = append(inputs, pricing.Input{UnitPrice: it.UnitPrice, ShippingUnitFee: it.ShippingFeePerUnit, Quantity: it.Quantity})
	}
	totals := pricing.Sum(inputs...)

	if in.ClientTotal != nil && *in.ClientTotal != totals.Total {
		*drift = true
		s.logger().Warn().
			Str("retailer_id", retailer.ID).
			Int64("client_total", *in.ClientTotal).
			Int64("server_total", totals.Total).
			Msg("client total differs from recomputed amount")
	}

	now := s.now().UTC()
	order := Order{
		ID:                 s.orderID(now),
		Name:               OrderName(items),
		RetailerID:         retailer.ID,
		Status:             StatusPendingPayment,
		Amount:             totals.Total,
		ProductTotal:       totals.ProductTotal,
		ShippingFee:        totals.ShippingFee,
		Items:              items,
		Delivery:           in.Delivery,
		RequestFingerprint: fingerprint,
		CreatedAt:          now,
	}
	if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
		order.IdempotencyKey = &key
	}

	if err := s.Orders.Create(ctx, order); err != nil {
		if errors.Is(err, ErrDuplicateOrder) && order.IdempotencyKey != nil {
			existing, findErr := s.Orders.FindByIdempotencyKey(ctx, retailer.ID, *order.IdempotencyKey)
			if findErr == nil && existing.RequestFingerprint == fingerprint {
				return resultFromOrder(existing, true)
			}
			return failure(CodeIdempotencyConflict, "this idempotency key was already used for a different order")
		}
		s.logger().Error().Err(err).Str("order_id", order.ID).Msg("persist order")
		return failure(CodePersistFailed, "we could not save your order, please try again")
	}

	s.emitCreated(ctx, order)
	s.logger().Info().
		Str("order_id", order.ID).
		Str("retailer_id", retailer.ID).
		Int64("amount", order.Amount).
		Int("items", len(items)).
		Msg("order created")
	return resultFromOrder(order, false)
}

// reprice resolves each line against the catalog and re-checks stock and MOQ.
// Lines naming the same product and variant are checked against their
// combined quantity.
func (s *Service) reprice(ctx context.Context, lines []LineInput) ([]ValidatedItem, Result, bool) {
	items := make([]ValidatedItem, 0, len(lines))
	snapshots := make([]cart.Line, 0, len(lines))
	merged := make(map[string]int, len(lines))
	for _, line := range lines {
		price, err := s.Prices.Lookup(ctx, line.ProductID, line.VariantID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, failure(CodePricingFailed, fmt.Sprintf("product %s is no longer available", line.ProductID)), false
			}
			s.logger().Error().Err(err).Str("product_id", line.ProductID).Msg("lookup price")
			return nil, failure(CodePricingFailed, fmt.Sprintf("we could not confirm the current price of product %s", line.ProductID)), false
		}
		name := price.Name
		if name == "" {
			name = line.ProductID
		}
		if line.SeenVersion > 0 && price.Version > line.SeenVersion {
			return nil, failure(CodeStalePrice, fmt.Sprintf("the price of %s changed since you added it, please review your cart", name)), false
		}
		totals := pricing.Calculate(pricing.Input{UnitPrice: price.UnitPrice, ShippingUnitFee: price.ShippingFeePerUnit, Quantity: line.Quantity})
		items = append(items, ValidatedItem{
			ProductID:          line.ProductID,
			VariantID:          line.VariantID,
			Name:               name,
			SellerID:           price.SellerID,
			Quantity:           line.Quantity,
			UnitPrice:          price.UnitPrice,
			ShippingFeePerUnit: price.ShippingFeePerUnit,
			ProductTotal:       totals.ProductTotal,
			ShippingFee:        totals.ShippingFee,
			LineTotal:          totals.Total,
		})
		key := lineKey(line)
		if i, ok := merged[key]; ok {
			snapshots[i].Quantity += line.Quantity
			continue
		}
		merged[key] = len(snapshots)
		snapshots = append(snapshots, cart.Line{
			ProductID:     line.ProductID,
			VariantID:     line.VariantID,
			Name:          name,
			Quantity:      line.Quantity,
			MOQ:           price.MOQ,
			StockQuantity: price.StockQuantity,
		})
	}
	if v := cart.CheckLines(snapshots); !v.IsValid {
		res := failure(v.Errors[0].Code, v.Errors[0].Message)
		res.Details = v.Errors
		return nil, res, false
	}
	return items, Result{}, true
}

func lineKey(line LineInput) string {
	variant := ""
	if line.VariantID != nil {
		variant = strings.TrimSpace(*line.VariantID)
	}
	return strings.TrimSpace(line.ProductID) + "|" + variant
}

func (s *Service) emitCreated(ctx context.Context, order Order) {
	if s.Events == nil {
		return
	}
	payload := events.OrderCreated{
		OrderID:    order.ID,
		OrderName:  order.Name,
		RetailerID: order.RetailerID,
		Amount:     order.Amount,
		ItemCount:  len(order.Items),
	}
	if _, err := s.Events.Emit(ctx, events.TopicOrderCreated, order.ID, payload); err != nil {
		s.logger().Warn().Err(err).Str("order_id", order.ID).Msg("emit order.created")
	}
}

func checkInput(in Input) (Result, bool) {
	if len(in.Lines) == 0 {
		return failure(CodeEmptyOrder, "add at least one item to place an order"), false
	}
	for _, line := range in.Lines {
		if line.Quantity <= 0 {
			return failure(CodeInvalidQuantity, fmt.Sprintf("quantity for product %s must be at least 1", line.ProductID)), false
		}
	}
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return failure(CodeInvalidInput, fmt.Sprintf("%s is invalid", verrs[0].Namespace())), false
		}
		return failure(CodeInvalidInput, "the order request is invalid"), false
	}
	return Result{}, true
}

// OrderName returns "<first product>" or "<first product> and N more".
func OrderName(items []ValidatedItem) string {
	if len(items) == 0 {
		return ""
	}
	first := items[0].Name
	if first == "" {
		first = items[0].ProductID
	}
	if len(items) == 1 {
		return first
	}
	return fmt.Sprintf("%s and %d more", first, len(items)-1)
}

func (s *Service) orderID(now time.Time) string {
	token := ""
	if s.NewToken != nil {
		token = s.NewToken()
	} else {
		token = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if len(token) > 10 {
		token = token[:10]
	}
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), token)
}

func requestFingerprint(in Input) (string, error) {
	type line struct {
		ProductID string  `json:"p"`
		VariantID *string `json:"v,omitempty"`
		Quantity  int     `json:"q"`
	}
	payload := struct {
		Lines    []line   `json:"l"`
		Delivery Delivery `json:"d"`
	}{Delivery: in.Delivery}
	for _, l := range in.Lines {
		payload.Lines = append(payload.Lines, line{ProductID: l.ProductID, VariantID: l.VariantID, Quantity: l.Quantity})
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return common.Sha256Hex(string(data)), nil
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return 15 * time.Second
	}
	return s.LockTTL
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

var nopLogger = zerolog.Nop()

func (s *Service) logger() *zerolog.Logger {
	if s == nil {
		return &nopLogger
	}
	return &s.Log
}
