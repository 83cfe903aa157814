package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/nucleus/pm-sync/internal/logging"
	"github.com/nucleus/pm-sync/internal/reconcile"
)

// ProjectSyncer is satisfied by *reconcile.Engine.
type ProjectSyncer interface {
	SyncAllProjects(ctx context.Context) ([]*reconcile.SyncStatus, error)
}

// SyncService runs SyncAllProjects once at start and then every interval.
type SyncService struct {
	syncer   ProjectSyncer
	interval time.Duration
}

// NewSyncService creates a periodic sync service.
func NewSyncService(syncer ProjectSyncer, interval time.Duration) *SyncService {
	return &SyncService{syncer: syncer, interval: interval}
}

// Serve implements suture.Service.
func (s *SyncService) Serve(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("sync interval must be positive, got %s", s.interval)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *SyncService) runOnce(ctx context.Context) {
	ctx = logging.ContextWithCorrelationID(ctx, logging.NewCorrelationID())
	log := logging.Ctx(ctx)
	start := time.Now()

	statuses, err := s.syncer.SyncAllProjects(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scheduled sync failed")
		return
	}
	failed := 0
	for _, st := range statuses {
		if st.Status != reconcile.StatusSuccess {
			failed++
		}
	}
	log.Info().
		Int("projects", len(statuses)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("scheduled sync finished")
}

func (s *SyncService) String() string { return "project-sync" }
