package worker

import (
	"context"

	"communityos/internal/config"
	"communityos/internal/infra/queue"
	"communityos/internal/worker/handlers"
	"communityos/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

func NewServer(
	redisCfg config.RedisConfig,
	workerCfg config.WorkerConfig,
	mentions handlers.MentionProcessor,
	logger *zap.Logger,
) (*Server, error) {
	opt, err := queue.ConnOpt(redisCfg)
	if err != nil {
		return nil, err
	}
	concurrency := workerCfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queue.Weights(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("task failed",
				zap.String("type", task.Type()),
				zap.Error(err),
			)
		}),
	})

	mux := asynq.NewServeMux()
	mentionHandler := handlers.NewMentionHandler(mentions, logger)
	mux.HandleFunc(tasks.TypeMentionNotify, mentionHandler.HandleMentionNotify)

	return &Server{
		server: srv,
		mux:    mux,
		logger: logger,
	}, nil
}

// Run blocks until the server stops.
func (s *Server) Run() error {
	s.logger.Info("worker server starting")
	return s.server.Run(s.mux)
}

// Start runs the server in the background.
func (s *Server) Start() error {
	s.logger.Info("worker server starting (background)")
	return s.server.Start(s.mux)
}

func (s *Server) Shutdown() {
	s.logger.Info("worker server stopping")
	s.server.Shutdown()
}
