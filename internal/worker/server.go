package worker

import (
	"fmt"

	"github.com/gaev-art/gain-grid/internal/services"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// PurgeSchedule is how often expired OAuth state is removed.
const PurgeSchedule = "@every 1h"

// Server processes queued tasks and enqueues the periodic purge.
type Server struct {
	srv       *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	log       logrus.FieldLogger
}

func NewServer(redisOpt asynq.RedisClientOpt, concurrency int, avatars *AvatarImporter, purge *PurgeHandler, log logrus.FieldLogger) *Server {
	log = log.WithField("component", "worker")

	mux := NewServeMux(avatars, purge)
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Logger:      log,
		Queues:      map[string]int{"default": 1},
	})
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: log})

	return &Server{srv: srv, mux: mux, scheduler: scheduler, log: log}
}

// NewServeMux routes each task type to its handler.
func NewServeMux(avatars *AvatarImporter, purge *PurgeHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(services.TypeAvatarImport, avatars)
	mux.Handle(services.TypePurgeOAuthStates, purge)
	return mux
}

// Start runs the scheduler and the processor in the background.
func (s *Server) Start() error {
	if _, err := s.scheduler.Register(PurgeSchedule, services.NewPurgeOAuthStatesTask()); err != nil {
		return fmt.Errorf("failed to register purge schedule: %w", err)
	}
	if err := s.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	if err := s.srv.Start(s.mux); err != nil {
		s.scheduler.Shutdown()
		return fmt.Errorf("failed to start worker: %w", err)
	}
	s.log.Info("Worker started")
	return nil
}

func (s *Server) Shutdown() {
	s.scheduler.Shutdown()
	s.srv.Shutdown()
	s.log.Info("Worker stopped")
}
