package emitter

import (
	"context"
	"time"

	"github.com/nerrad567/ir-relay/internal/infrastructure/config"
	"github.com/nerrad567/ir-relay/internal/infrastructure/logging"
)

// Sender abstracts the emitter client for the repeater.
type Sender interface {
	Emit(ctx context.Context, endpointID, key string) error
}

// Repeater paces repeated IR emissions.
//
// IR receivers debounce; bursts of identical key presses are dropped
// unless separated by a sufficient gap. The repeater emits strictly
// sequentially with a fixed pacing interval between presses, clamps
// requested counts to a configured maximum, and never schedules
// recursively: the whole sequence is one bounded loop.
type Repeater struct {
	sender    Sender
	pace      time.Duration
	maxRepeat int
	logger    *logging.Logger
}

// NewRepeater creates a repeater over the given sender.
//
// Parameters:
//   - sender: Emitter client (or stub in tests)
//   - cfg: Emitter settings supplying the pacing interval and repeat cap
//   - logger: Logger consuming detached sequence outcomes
func NewRepeater(sender Sender, cfg config.EmitterConfig, logger *logging.Logger) *Repeater {
	return &Repeater{
		sender:    sender,
		pace:      cfg.Pace(),
		maxRepeat: cfg.MaxRepeat,
		logger:    logger.With("component", "repeater"),
	}
}

// Repeat emits key to endpointID count times, pacing between presses.
//
// Semantics:
//   - count <= 0: no emission, immediate success
//   - count == 1: a single emission with no pacing delay
//   - count > the configured maximum: clamped silently to the maximum
//   - otherwise: sequential emissions separated by the pacing interval
//
// The first failed emission abandons the rest of the sequence.
//
// Parameters:
//   - ctx: Context for cancellation between presses
//   - key: IR key name
//   - endpointID: Receiver identifier
//   - count: Requested number of presses
//
// Returns:
//   - error: ErrTransport from the failed press, or ctx.Err() if
//     cancelled while pacing
func (r *Repeater) Repeat(ctx context.Context, key, endpointID string, count int) error {
	if count <= 0 {
		return nil
	}
	if count > r.maxRepeat {
		r.logger.Warn("repeat count clamped",
			"endpoint_id", endpointID,
			"requested", count,
			"max", r.maxRepeat,
		)
		count = r.maxRepeat
	}

	for i := 0; i < count; i++ {
		if i > 0 {
			timer := time.NewTimer(r.pace)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err := r.sender.Emit(ctx, endpointID, key); err != nil {
			return err
		}
	}

	return nil
}

// Dispatch runs a repeat sequence in a detached goroutine.
//
// The caller gets no handle and no cancellation mechanism; the outcome
// is consumed by the logging sink and, when done is non-nil, by the
// completion hook (used to settle audit records and publish events).
// The sequence runs against the background context so it outlives the
// originating HTTP request.
func (r *Repeater) Dispatch(key, endpointID string, count int, done func(err error)) {
	go func() {
		err := r.Repeat(context.Background(), key, endpointID, count)
		if err != nil {
			r.logger.Error("detached repeat sequence failed",
				"endpoint_id", endpointID,
				"key", key,
				"count", count,
				"error", err,
			)
		} else {
			r.logger.Debug("detached repeat sequence completed",
				"endpoint_id", endpointID,
				"key", key,
				"count", count,
			)
		}
		if done != nil {
			done(err)
		}
	}()
}
