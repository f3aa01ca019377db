package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/agromarket/internal/common"
)

type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

type stubDB struct {
	row  rowFunc
	args []any
}

func (s *stubDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	s.args = args
	return s.row
}

func TestCurrentRetailer(t *testing.T) {
	db := &stubDB{row: func(dest ...any) error {
		*dest[0].(*string) = "r-1"
		*dest[1].(*string) = "user-123"
		*dest[2].(*string) = "Toko Sayur Segar"
		*dest[3].(*string) = ""
		*dest[4].(*string) = ""
		*dest[5].(*string) = "0812"
		return nil
	}}
	lookup := PostgresRetailers{DB: db}
	ctx := common.WithPrincipal(context.Background(), common.Principal{UserID: "user-123", Email: "sari@example.com", Name: "Sari"})

	r, err := lookup.CurrentRetailer(ctx)
	require.NoError(t, err)
	require.Equal(t, "r-1", r.ID)
	require.Equal(t, "sari@example.com", r.Email, "falls back to token email")
	require.Equal(t, "Sari", r.ContactName)
	require.Equal(t, []any{"user-123"}, db.args)
}

func TestCurrentRetailerErrors(t *testing.T) {
	lookup := PostgresRetailers{DB: &stubDB{row: func(...any) error { return pgx.ErrNoRows }}}

	_, err := lookup.CurrentRetailer(context.Background())
	require.ErrorIs(t, err, ErrUnauthenticated)

	ctx := common.WithUserID(context.Background(), "user-9")
	_, err = lookup.CurrentRetailer(ctx)
	require.ErrorIs(t, err, ErrNoRetailer)

	boom := errors.New("connection reset")
	lookup = PostgresRetailers{DB: &stubDB{row: func(...any) error { return boom }}}
	_, err = lookup.CurrentRetailer(ctx)
	require.ErrorIs(t, err, boom)
}
