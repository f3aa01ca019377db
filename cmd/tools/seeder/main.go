package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/noah-isme/agromarket/internal/migrations"
	"github.com/noah-isme/agromarket/internal/obs"
)

type wholesaler struct {
	ID           string
	BusinessName string
	ContactName  string
	Email        string
}

type variant struct {
	ID            string
	Name          string
	UnitPrice     int64
	StockQuantity int
}

type product struct {
	ID                 string
	WholesalerID       string
	Name               string
	ImageURL           string
	UnitPrice          int64
	ShippingFeePerUnit int64
	StockQuantity      int
	MOQ                int
	Variants           []variant
}

var wholesalers = []wholesaler{
	{"5b0c7a1e-8f4d-4c61-9a5e-0d1f2a3b4c01", "Green Valley Farm", "Kim Minjun", "sales@greenvalley.example"},
	{"5b0c7a1e-8f4d-4c61-9a5e-0d1f2a3b4c02", "Sunrise Orchard", "Lee Seoyeon", "orders@sunrise.example"},
	{"5b0c7a1e-8f4d-4c61-9a5e-0d1f2a3b4c03", "Riverside Grains", "Park Jiho", "hello@riverside.example"},
}

var products = []product{
	{
		ID: "9e1d2c3b-4a59-4f68-8b7c-1a2b3c4d5e01", WholesalerID: wholesalers[0].ID,
		Name: "Cheongyang Chili", UnitPrice: 10000, ShippingFeePerUnit: 500, StockQuantity: 200, MOQ: 3,
		Variants: []variant{
			{"0f1e2d3c-4b5a-4968-8776-655443322101", "1kg box", 10000, 120},
			{"0f1e2d3c-4b5a-4968-8776-655443322102", "5kg box", 45000, 40},
		},
	},
	{
		ID: "9e1d2c3b-4a59-4f68-8b7c-1a2b3c4d5e02", WholesalerID: wholesalers[0].ID,
		Name: "Napa Cabbage", UnitPrice: 3500, ShippingFeePerUnit: 300, StockQuantity: 500, MOQ: 10,
	},
	{
		ID: "9e1d2c3b-4a59-4f68-8b7c-1a2b3c4d5e03", WholesalerID: wholesalers[1].ID,
		Name: "Fuji Apple", UnitPrice: 28000, ShippingFeePerUnit: 2500, StockQuantity: 80, MOQ: 2,
		Variants: []variant{
			{"0f1e2d3c-4b5a-4968-8776-655443322103", "Premium 5kg", 42000, 30},
			{"0f1e2d3c-4b5a-4968-8776-655443322104", "Standard 5kg", 28000, 50},
		},
	},
	{
		ID: "9e1d2c3b-4a59-4f68-8b7c-1a2b3c4d5e04", WholesalerID: wholesalers[2].ID,
		Name: "Brown Rice 20kg", UnitPrice: 62000, ShippingFeePerUnit: 0, StockQuantity: 60, MOQ: 1,
	},
	{
		ID: "9e1d2c3b-4a59-4f68-8b7c-1a2b3c4d5e05", WholesalerID: wholesalers[2].ID,
		Name: "Black Soybeans", UnitPrice: 15000, ShippingFeePerUnit: 1000, StockQuantity: 4, MOQ: 5,
	},
}

func main() {
	_ = godotenv.Load()
	logger := obs.NewLogger(envOrDefault("OBS_LOG_FORMAT", "console"), envOrDefault("OBS_LOG_LEVEL", "info"))

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}
	if err := migrations.Up(dbURL); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	seedWholesalers(ctx, pool, logger)
	seedProducts(ctx, pool, logger)
	if userID := strings.TrimSpace(os.Getenv("SEED_RETAILER_USER_ID")); userID != "" {
		seedRetailer(ctx, pool, logger, userID)
	}

	logger.Info().Int("wholesalers", len(wholesalers)).Int("products", len(products)).Msg("seeding completed")
}

func seedWholesalers(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) {
	for _, w := range wholesalers {
		_, err := pool.Exec(ctx, `
			INSERT INTO wholesalers (id, business_name, contact_name, email)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET business_name = EXCLUDED.business_name,
			    contact_name = EXCLUDED.contact_name, email = EXCLUDED.email`,
			w.ID, w.BusinessName, w.ContactName, w.Email)
		if err != nil {
			logger.Error().Err(err).Str("wholesaler", w.BusinessName).Msg("seed wholesaler")
		}
	}
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) {
	for _, p := range products {
		_, err := pool.Exec(ctx, `
			INSERT INTO products (id, wholesaler_id, name, image_url, unit_price, shipping_fee_per_unit, stock_quantity, moq)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, unit_price = EXCLUDED.unit_price,
			    shipping_fee_per_unit = EXCLUDED.shipping_fee_per_unit,
			    stock_quantity = EXCLUDED.stock_quantity, moq = EXCLUDED.moq`,
			p.ID, p.WholesalerID, p.Name, p.ImageURL, p.UnitPrice, p.ShippingFeePerUnit, p.StockQuantity, p.MOQ)
		if err != nil {
			logger.Error().Err(err).Str("product", p.Name).Msg("seed product")
			continue
		}
		for _, v := range p.Variants {
			_, err := pool.Exec(ctx, `
				INSERT INTO product_variants (id, product_id, name, unit_price, stock_quantity)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, unit_price = EXCLUDED.unit_price,
				    stock_quantity = EXCLUDED.stock_quantity, version = product_variants.version + 1`,
				v.ID, p.ID, v.Name, v.UnitPrice, v.StockQuantity)
			if err != nil {
				logger.Error().Err(err).Str("product", p.Name).Str("variant", v.Name).Msg("seed variant")
			}
		}
	}
}

func seedRetailer(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger, userID string) {
	_, err := pool.Exec(ctx, `
		INSERT INTO retailers (user_id, business_name, contact_name, email)
		VALUES ($1::uuid, 'Corner Grocery', 'Choi Yuna', 'buyer@corner.example')
		ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		logger.Error().Err(err).Str("user_id", userID).Msg("seed retailer")
		return
	}
	logger.Info().Str("user_id", userID).Msg("retailer seeded")
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
