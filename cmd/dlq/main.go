// Command dlq inspects the audit dead-letter queue and optionally replays it.
// Usage: go run ./cmd/dlq [-replay 50]
package main

import (
	"context"
	"flag"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kananavy/pharmacie/internal/config"
	"github.com/kananavy/pharmacie/internal/infra"
	"github.com/kananavy/pharmacie/internal/worker"
)

func main() {
	replay := flag.Int("replay", 0, "number of entries to move back onto the queue")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rdb, err := infra.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if rdb == nil {
		log.Fatal().Msg("REDIS_URL is empty")
	}
	defer rdb.Close()

	n, err := worker.DLQLength(ctx, rdb, worker.QueueAudit)
	if err != nil {
		log.Fatal().Err(err).Msg("dlq length")
	}
	log.Info().Str("queue", worker.QueueAudit).Int64("parked", n).Msg("dlq")

	if *replay > 0 {
		moved, err := worker.Replay(ctx, rdb, worker.QueueAudit, *replay)
		if err != nil {
			log.Fatal().Err(err).Int("moved", moved).Msg("dlq replay")
		}
		log.Info().Int("moved", moved).Msg("dlq replayed")
	}
}
