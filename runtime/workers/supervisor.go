// Package workers holds the supervised background tasks of the system.
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/errors"
)

// Supervisor owns a context and a cancel function, runs each worker in a
// goroutine, recovers panics, restarts crashed workers, and shuts down
// cleanly when the parent context is canceled. A failure in one worker
// never stops the supervisor itself.
type Supervisor struct {
	Cancel          context.CancelFunc
	wg              *sync.WaitGroup
	log             *slog.Logger
	workers         []contract.Worker
	restartInterval time.Duration
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	return &Supervisor{
		wg:              &sync.WaitGroup{},
		log:             log,
		restartInterval: restartInterval,
	}
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Run creates a local cancellation trigger tied to the parent ctx: if the
// parent cancels, the children cancel; if Stop is called, only the
// children cancel. Blocks until every worker goroutine has finished.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.Cancel = cancel
	defer s.Cancel()

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

// Start runs one worker under supervision in a dedicated goroutine.
// A panicking or erroring worker is restarted after the restart interval;
// a worker that returns nil terminated properly and is never restarted.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	workerName := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()

		for {
			if ctx.Err() != nil {
				s.log.Info(fmt.Sprintf("Stopping : %s", workerName))
				return
			}

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = errors.ErrWorkerPanic
					}
				}()
				return worker.Run(ctx)
			}()

			if err == nil {
				s.log.Info(fmt.Sprintf("Worker finished : %s", workerName))
				return
			}

			if ctx.Err() != nil {
				s.log.Info("Worker stopped (context canceled)", "name", workerName)
				return
			}

			s.log.Warn("Worker crashed, restarting", "name", workerName, "error", err)
			select {
			case <-ctx.Done():
				// Priority stop: skip the restart delay.
				return
			case <-time.After(s.restartInterval):
			}
		}
	}()
}

// Stop cancels all supervised goroutines; Run then waits for them.
func (s *Supervisor) Stop() {
	if s.Cancel != nil {
		s.Cancel()
	}
}
