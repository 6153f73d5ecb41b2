package scheduler

import (
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// Sweeper drops abandoned sessions and reports how many it removed
type Sweeper interface {
	SweepStale() int
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	sweeper   Sweeper
	interval  time.Duration
}

// New creates a new scheduler instance
func New(sweeper Sweeper, interval time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		sweeper:   sweeper,
		interval:  interval,
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		log.Println("Session sweep disabled")
		return nil
	}

	if _, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(func() { s.sweepSessions() }); err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) sweepSessions() {
	if n := s.sweeper.SweepStale(); n > 0 {
		log.Printf("Dropped %d abandoned registration sessions", n)
	}
}
