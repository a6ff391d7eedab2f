package rules

import "time"

// TimerHandle cancels a scheduled callback. *time.Timer satisfies it.
type TimerHandle interface {
	Stop() bool
}

// Scheduler runs fn once after delay.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) TimerHandle
}

// ClockScheduler schedules on the wall clock. fn runs on its own goroutine.
type ClockScheduler struct{}

// Schedule implements Scheduler.
func (ClockScheduler) Schedule(delay time.Duration, fn func()) TimerHandle {
	return time.AfterFunc(delay, fn)
}
