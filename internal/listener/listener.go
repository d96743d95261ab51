package listener

import (
	"context"
	"time"

	"go.uber.org/zap"

	"rfpdesk/internal/correlator"
	"rfpdesk/internal/storage"
)

// Service polls the mailbox for every RFP on a fixed interval.
type Service struct {
	db         *storage.DB
	correlator *correlator.Correlator
	interval   time.Duration
}

func NewService(db *storage.DB, corr *correlator.Correlator, interval time.Duration) *Service {
	return &Service{db: db, correlator: corr, interval: interval}
}

func (s *Service) Run(ctx context.Context) error {
	zap.L().Info("mail listener started", zap.Duration("interval", s.interval))
	for {
		if err := s.runCycle(ctx); err != nil {
			zap.L().Error("listener cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			zap.L().Info("mail listener stopped")
			return nil
		case <-time.After(s.interval):
		}
	}
}

// runCycle polls each RFP that has invited vendors. A failing RFP does
// not abort the cycle; its messages stay unread for the next round.
func (s *Service) runCycle(ctx context.Context) error {
	rfps, err := s.db.ListRfps()
	if err != nil {
		return err
	}

	for _, rfp := range rfps {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if len(rfp.VendorIDs) == 0 {
			continue
		}

		result, err := s.correlator.Poll(ctx, rfp.ID)
		if err != nil {
			zap.L().Error("poll failed", zap.String("rfp_id", rfp.ID), zap.Error(err))
			continue
		}
		if result.Matched > 0 {
			zap.L().Info("poll finished",
				zap.String("rfp_id", rfp.ID),
				zap.Int("matched", result.Matched),
				zap.Int("created", result.Created),
				zap.Int("skipped", result.Skipped))
		}
	}
	return nil
}
