package devserver

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts the standard 5-field format: minute hour day-of-month month day-of-week
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseResetSchedule validates a reset cron expression
func ParseResetSchedule(expr string) (cron.Schedule, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid reset schedule %q: %w", expr, err)
	}
	return schedule, nil
}

// nextReset calculates the next reset time from a cron expression
func nextReset(expr string, from time.Time) *time.Time {
	if expr == "" {
		return nil
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil
	}
	next := schedule.Next(from)
	return &next
}

// StartResetScheduler reloads the demo data on the configured cron schedule
// until ctx is cancelled. It is a no-op when no schedule is configured.
func (s *Server) StartResetScheduler(ctx context.Context) error {
	expr := s.config.ResetSchedule
	if expr == "" {
		s.logger.Debug().Msg("No reset schedule configured")
		return nil
	}
	if _, err := ParseResetSchedule(expr); err != nil {
		return err
	}

	c := cron.New(cron.WithParser(cronParser))
	if _, err := c.AddFunc(expr, s.runReset); err != nil {
		return fmt.Errorf("failed to schedule reset: %w", err)
	}
	c.Start()

	s.logger.Info().
		Str("reset_schedule", expr).
		Time("next_reset_at", *nextReset(expr, s.now())).
		Msg("Demo data reset scheduled")

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}

func (s *Server) runReset() {
	start := time.Now()
	if err := s.ResetDemo(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to reset demo data")
		return
	}
	s.logger.Info().
		Dur("duration", time.Since(start)).
		Time("next_reset_at", *nextReset(s.config.ResetSchedule, s.now())).
		Msg("Demo data reset")
}
