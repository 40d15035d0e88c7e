package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "churchsite/internal/log"
)

// StartScheduler runs Refresh on spec, a standard five-field cron
// expression evaluated in the service's civil zone. Stop the returned
// cron on shutdown.
func StartScheduler(spec string, svc *Service, timeout time.Duration) (*cron.Cron, error) {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	c := cron.New(cron.WithLocation(svc.Location()))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := svc.Refresh(ctx); err != nil {
			appLog.Error("calendar: scheduled refresh failed", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("calendar refresh schedule %q: %w", spec, err)
	}
	c.Start()
	appLog.Info("calendar: refresh scheduled", "spec", spec)
	return c, nil
}
