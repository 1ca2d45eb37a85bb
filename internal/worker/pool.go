package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/kananavy/pharmacie/internal/audit"
)

const (
	QueueAudit = "jobs:audit"
	JobAudit   = "audit"

	// MaxAttempts before a job is parked in the dead letter queue.
	MaxAttempts = 3
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Attempts int             `json:"attempts"`
	Payload  json.RawMessage `json:"payload"`
}

// Dispatcher enqueues audit events into a Redis list. It implements
// audit.Sink, so services publish to it after commit without waiting for the
// downstream consumer.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// Publish pushes one job per event.
func (d *Dispatcher) Publish(ctx context.Context, events ...audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	encoded := make([]interface{}, 0, len(events))
	for _, e := range events {
		raw, err := encodeJob(JobAudit, 0, e)
		if err != nil {
			return err
		}
		encoded = append(encoded, raw)
	}
	return d.rdb.LPush(ctx, QueueAudit, encoded...).Err()
}

func encodeJob(jobType string, attempts int, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Job{Type: jobType, Attempts: attempts, Payload: data})
}

// StartWorkerPool launches numWorkers goroutines consuming the audit queue
// and forwarding each event to sink. Each goroutine blocks on BRPOP while idle.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, sink audit.Sink, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, sink, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

const (
	pauseMin = 500 * time.Millisecond
	pauseMax = 10 * time.Second
)

func runWorker(ctx context.Context, rdb *redis.Client, sink audit.Sink, id int) {
	var pause time.Duration
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
		}

		// Blocking pop: waits up to 5s then loops to check ctx
		result, err := rdb.BRPop(ctx, 5*time.Second, QueueAudit).Result()
		if err != nil {
			pause = pauseApresErreur(err, pause)
			if pause == 0 {
				continue
			}
			log.Warn().Err(err).Int("worker", id).Dur("pause", pause).Msg("audit queue unavailable")
			select {
			case <-ctx.Done():
			case <-time.After(pause):
			}
			continue
		}
		pause = 0
		if len(result) < 2 {
			continue
		}
		processJob(ctx, rdb, sink, result[0], result[1])
	}
}

// pauseApresErreur returns how long to wait before the next BRPOP. An empty
// queue or a cancelled context retries at once; anything else backs off
// exponentially from pauseMin up to pauseMax.
func pauseApresErreur(err error, precedente time.Duration) time.Duration {
	if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0
	}
	if precedente < pauseMin {
		return pauseMin
	}
	if precedente*2 > pauseMax {
		return pauseMax
	}
	return precedente * 2
}

// processJob runs one job and requeues it on failure until MaxAttempts,
// after which it goes to the dead letter queue.
func processJob(ctx context.Context, rdb *redis.Client, sink audit.Sink, queue, raw string) {
	job, err := handleJob(ctx, sink, raw)
	if err == nil {
		return
	}
	if errors.Is(err, errMalformed) {
		quoted, _ := json.Marshal(raw)
		SendToDLQ(ctx, rdb, queue, "", quoted, err.Error(), 0)
		return
	}

	job.Attempts++
	if job.Attempts >= MaxAttempts {
		SendToDLQ(ctx, rdb, queue, job.Type, job.Payload, err.Error(), job.Attempts)
		return
	}
	requeued, encErr := json.Marshal(job)
	if encErr == nil {
		encErr = rdb.LPush(ctx, queue, requeued).Err()
	}
	if encErr != nil {
		log.Error().Err(encErr).Str("queue", queue).Msg("failed to requeue job")
		return
	}
	log.Warn().Err(err).Str("type", job.Type).Int("attempts", job.Attempts).Msg("job requeued")
}

var errMalformed = errors.New("malformed job")

// handleJob decodes raw and forwards the event to sink.
func handleJob(ctx context.Context, sink audit.Sink, raw string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return job, fmt.Errorf("%w: %v", errMalformed, err)
	}
	switch job.Type {
	case JobAudit:
		var e audit.Event
		if err := json.Unmarshal(job.Payload, &e); err != nil {
			return job, fmt.Errorf("%w: %v", errMalformed, err)
		}
		log.Debug().Str("entite", e.Entite).Str("entite_id", e.EntiteID.String()).Msg("processing audit job")
		return job, sink.Publish(ctx, e)
	default:
		return job, fmt.Errorf("%w: unknown type %q", errMalformed, job.Type)
	}
}
