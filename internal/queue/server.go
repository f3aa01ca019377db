package queue

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// ServerConfig tunes NewServer.
type ServerConfig struct {
	Queue           string
	Concurrency     int
	ShutdownTimeout time.Duration
	Logger          zerolog.Logger
}

// NewServer builds an asynq server listening on a single queue.
func NewServer(redis asynq.RedisConnOpt, cfg ServerConfig) *asynq.Server {
	queue := cfg.Queue
	if queue == "" {
		queue = "default"
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	return asynq.NewServer(redis, asynq.Config{
		Concurrency:     concurrency,
		Queues:          map[string]int{queue: 1},
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          Logger{L: cfg.Logger},
	})
}

// Logger adapts zerolog to asynq.Logger.
type Logger struct {
	L zerolog.Logger
}

func (l Logger) Debug(args ...any) { l.L.Debug().Msg(fmt.Sprint(args...)) }
func (l Logger) Info(args ...any)  { l.L.Info().Msg(fmt.Sprint(args...)) }
func (l Logger) Warn(args ...any)  { l.L.Warn().Msg(fmt.Sprint(args...)) }
func (l Logger) Error(args ...any) { l.L.Error().Msg(fmt.Sprint(args...)) }
func (l Logger) Fatal(args ...any) { l.L.Fatal().Msg(fmt.Sprint(args...)) }
