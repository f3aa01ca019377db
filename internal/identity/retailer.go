package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/agromarket/internal/common"
)

var (
	// ErrUnauthenticated is returned when the context carries no caller.
	ErrUnauthenticated = errors.New("identity: unauthenticated")
	// ErrNoRetailer is returned when the caller has no retailer profile.
	ErrNoRetailer = errors.New("identity: retailer profile not found")
)

// Retailer is the buying business linked to an authenticated user.
type Retailer struct {
	ID           string `json:"id"`
	UserID       string `json:"userId"`
	BusinessName string `json:"businessName"`
	ContactName  string `json:"contactName"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
}

// Querier is the subset of pgxpool.Pool used for retailer reads.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRetailers resolves the caller's retailer row.
type PostgresRetailers struct {
	DB Querier
}

const retailerByUserSQL = `
SELECT id::text, user_id::text, business_name, COALESCE(contact_name, ''), COALESCE(email, ''), COALESCE(phone, '')
FROM retailers
WHERE user_id = $1::uuid`

// CurrentRetailer returns the retailer owned by the authenticated user in ctx.
func (p PostgresRetailers) CurrentRetailer(ctx context.Context) (Retailer, error) {
	userID, ok := common.UserID(ctx)
	if !ok || userID == "" {
		return Retailer{}, ErrUnauthenticated
	}
	if p.DB == nil {
		return Retailer{}, errors.New("identity: database not configured")
	}
	var r Retailer
	err := p.DB.QueryRow(ctx, retailerByUserSQL, userID).Scan(&r.ID, &r.UserID, &r.BusinessName, &r.ContactName, &r.Email, &r.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Retailer{}, ErrNoRetailer
		}
		return Retailer{}, fmt.Errorf("load retailer: %w", err)
	}
	if principal, ok := common.PrincipalFrom(ctx); ok {
		if r.Email == "" {
			r.Email = principal.Email
		}
		if r.ContactName == "" {
			r.ContactName = principal.Name
		}
	}
	return r, nil
}
