package grant

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper periodically transitions approved grants past their ExpiresAt to
// expired. It is best-effort housekeeping: access decisions never depend on
// the sweep having run, because the gate derives activity from ExpiresAt
// directly.
type Sweeper struct {
	svc      *Service
	store    ContractStore
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(svc *Service, store ContractStore, interval time.Duration) *Sweeper {
	return &Sweeper{
		svc:      svc,
		store:    store,
		interval: interval,
		now:      time.Now,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("lifecycle sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("lifecycle sweeper stopped")
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				log.Error().Err(err).Msg("lifecycle sweep failed")
			} else if n > 0 {
				log.Info().Int("expired", n).Msg("lifecycle sweep completed")
			}
		}
	}
}

// SweepOnce expires every approved grant whose ExpiresAt is at or before now
// and returns how many transitions this call committed. Grants another
// writer touched concurrently are skipped, not retried; the next tick or the
// competing writer covers them.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	due, err := s.store.ListExpiringBefore(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}

	var expired int
	for _, g := range due {
		committed, err := s.svc.Expire(ctx, g)
		if err != nil {
			log.Error().Err(err).Str("grant_id", g.ID.String()).Msg("expire grant failed")
			continue
		}
		if committed {
			expired++
		}
	}
	return expired, nil
}
