package resilience

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrOpenCircuit is returned when the circuit breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// Breaker guards an HTTP dependency.
type Breaker = gobreaker.CircuitBreaker[*http.Response]

// BreakerConfig tunes NewBreaker.
type BreakerConfig struct {
	Target         string
	MinRequests    uint32
	FailureRatio   float64
	OpenFor        time.Duration
	HalfOpenProbes uint32
	Interval       time.Duration
	Logger         *zerolog.Logger
}

// NewBreaker constructs a breaker that opens when the failure ratio reaches
// FailureRatio once MinRequests have been observed in the current interval.
func NewBreaker(cfg BreakerConfig) *Breaker {
	target := strings.TrimSpace(cfg.Target)
	if target == "" {
		target = "default"
	}
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 1
	}
	ratio := cfg.FailureRatio
	if ratio <= 0 {
		ratio = 0.5
	}
	if ratio > 1 {
		ratio = 1
	}
	openFor := cfg.OpenFor
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	probes := cfg.HalfOpenProbes
	if probes == 0 {
		probes = 1
	}
	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	recordState(target, gobreaker.StateClosed)
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        target,
		MaxRequests: probes,
		Interval:    cfg.Interval,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			recordState(name, to)
			recordTransition(name, from, to)
			logger.Warn().
				Str("target", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
}
