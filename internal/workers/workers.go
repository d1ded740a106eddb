package workers

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"orgauthz/internal/platform/metrics"
)

// Sweeper persists the expired status of stale pending invitations.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// ExpireInvitations runs one sweep. Readers derive expiry on their own, so a
// missed run only delays cleanup.
func ExpireInvitations(ctx context.Context, s Sweeper) error {
	start := time.Now()
	n, err := s.SweepExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Worker: invitation sweep failed")
		return err
	}
	metrics.ObserveExpired(n)
	log.Info().Int64("expired", n).Dur("took", time.Since(start)).Msg("Worker: invitation sweep done")
	return nil
}

// NewScheduler registers the sweep on spec, a standard cron expression or a
// descriptor such as "@every 5m". The returned scheduler is not started.
func NewScheduler(spec string, s Sweeper, timeout time.Duration) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ExpireInvitations(ctx, s)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
