package cart

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidQuantity is returned when a quantity is not a positive integer.
var ErrInvalidQuantity = errors.New("quantity must be a positive integer")

// CoerceQuantity converts a decoded JSON value into a positive integer quantity.
func CoerceQuantity(v any) (int, error) {
	switch q := v.(type) {
	case int:
		return positive(int64(q))
	case int32:
		return positive(int64(q))
	case int64:
		return positive(q)
	case float64:
		return fromFloat(q)
	case json.Number:
		if n, err := q.Int64(); err == nil {
			return positive(n)
		}
		f, err := q.Float64()
		if err != nil {
			return 0, ErrInvalidQuantity
		}
		return fromFloat(f)
	case string:
		trimmed := strings.TrimSpace(q)
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return 0, ErrInvalidQuantity
		}
		return positive(n)
	default:
		return 0, ErrInvalidQuantity
	}
}

func fromFloat(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, ErrInvalidQuantity
	}
	if f > math.MaxInt32 {
		return 0, ErrInvalidQuantity
	}
	return positive(int64(f))
}

func positive(n int64) (int, error) {
	if n <= 0 || n > math.MaxInt32 {
		return 0, ErrInvalidQuantity
	}
	return int(n), nil
}
