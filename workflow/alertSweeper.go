package workflow

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/keyflowhq/keyflow_backend/models"
)

// AlertSweeper periodically scans open checkout sessions and logs keys that
// have crossed into YELLOW or RED. It only reads; escalation side effects
// (notifications, pages) hang off the log stream.
type AlertSweeper struct {
	Store  models.LifecycleStore
	Logger *logrus.Logger

	SweepInterval time.Duration
}

func NewAlertSweeper(store models.LifecycleStore, logger *logrus.Logger) *AlertSweeper {
	return &AlertSweeper{
		Store:         store,
		Logger:        logger,
		SweepInterval: time.Minute,
	}
}

func (s *AlertSweeper) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.sweepOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.SweepInterval):
		}
	}
}

func (s *AlertSweeper) sweepOnce(ctx context.Context) {
	dealerships, err := s.Store.ListDealerships(ctx)
	if err != nil {
		s.Logger.WithError(err).Error("alert sweep: list dealerships")
		return
	}

	now := time.Now()
	for _, dealership := range dealerships {
		open, err := s.Store.ListOpenSessions(ctx, dealership.ID)
		if err != nil {
			s.Logger.WithError(err).WithField("dealership_id", dealership.ID).
				Error("alert sweep: list open sessions")
			continue
		}
		yellow, red := models.ResolveAlertThresholds(dealership)

		for _, session := range open {
			elapsed := now.Sub(session.CheckedOutAt)
			tier := models.ClassifyAlertTier(elapsed, yellow, red)
			if tier == models.AlertTierGreen {
				continue
			}
			s.Logger.WithFields(logrus.Fields{
				"dealership_id":   dealership.ID,
				"key_id":          session.KeyId,
				"session_id":      session.ID,
				"held_by":         session.UserName,
				"reason":          session.Reason,
				"elapsed_minutes": int(elapsed.Minutes()),
				"tier":            tier,
			}).Warn("key overdue")
		}
	}
}
