package dashboard

import (
	"context"
	"time"
)

// Run refreshes the snapshot every interval until ctx is done. When a
// notifier is configured and the critical-alert KPI rises between two
// successful refreshes, the executive report is sent.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	L := s.logger.With("component", "refresher")
	L.Info(ctx, "snapshot refresher started", "interval", interval.String())

	lastCritical := -1
	if v := s.cached(); v != nil {
		lastCritical = v.KPIs.CriticalAlerts
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			L.Info(ctx, "snapshot refresher stopped")
			return
		case <-t.C:
		}

		v, err := s.Refresh(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			L.Error(ctx, err, "background refresh failed")
			continue
		}

		critical := v.KPIs.CriticalAlerts
		if lastCritical >= 0 && critical > lastCritical {
			s.notify(ctx, v, lastCritical)
		}
		lastCritical = critical
	}
}

func (s *Service) notify(ctx context.Context, v *View, previous int) {
	if s.notifier == nil {
		return
	}
	r := s.reportFor(v)
	err := s.notifier.NotifyReport(ctx, r, v.KPIs)
	s.metrics.notification(err)
	if err != nil {
		s.logger.Error(ctx, err, "report notification failed")
		return
	}
	s.logger.Info(ctx, "critical alerts rose, report sent",
		"previous", previous, "critical", v.KPIs.CriticalAlerts)
}
