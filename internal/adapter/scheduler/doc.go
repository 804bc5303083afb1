// Package scheduler runs periodic maintenance jobs on a cron schedule.
//
// Jobs are plain functions of a context. The scheduler adds per-job
// timeouts, overlap control, panic recovery and metrics, and stops
// gracefully with an optional deadline:
//
//	s := scheduler.New(scheduler.Config{Logger: log})
//	_, err := s.AddCronJobWithOptions("0 30 3 * * *", hk.Run, scheduler.JobOptions{
//		Name:          "prune",
//		Timeout:       time.Minute,
//		OverlapPolicy: scheduler.SkipIfRunning,
//	})
//	s.Start()
//	defer s.StopContext(ctx)
//
// Schedules use the seconds-enabled cron syntax, plus descriptors such as
// "@daily" and "@every 1h".
package scheduler
