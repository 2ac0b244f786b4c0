package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/utsbot/uts-chatbot-go/internal/config"
	"github.com/utsbot/uts-chatbot-go/internal/logger"
	"github.com/utsbot/uts-chatbot-go/internal/sentry"
)

// job is a named unit of scheduled work.
type job struct {
	name    string
	spec    string
	timeout time.Duration
	run     func(ctx context.Context) error
}

// scheduler runs jobs on cron expressions. A job never overlaps itself;
// a tick that arrives while the previous run is active is skipped.
type scheduler struct {
	cron   *cron.Cron
	logger *logger.Logger
	ctx    context.Context
}

func newScheduler(ctx context.Context, log *logger.Logger) *scheduler {
	cronLog := cron.PrintfLogger(schedulerLogAdapter{log})
	return &scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLog),
			cron.SkipIfStillRunning(cronLog),
		)),
		logger: log.WithModule("scheduler"),
		ctx:    ctx,
	}
}

// add registers j. An empty spec leaves the job disabled.
func (s *scheduler) add(j job) error {
	if j.spec == "" {
		s.logger.WithField("job", j.name).Debug("Job disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(j.spec, func() { s.execute(j) }); err != nil {
		return fmt.Errorf("schedule %s: %w", j.name, err)
	}
	s.logger.WithField("job", j.name).WithField("schedule", j.spec).Info("Job scheduled")
	return nil
}

func (s *scheduler) execute(j job) {
	if s.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, j.timeout)
	defer cancel()

	start := time.Now()
	log := s.logger.WithField("job", j.name)
	if err := j.run(ctx); err != nil {
		log.WithError(err).Error("Scheduled job failed")
		sentry.CaptureError(ctx, err)
		return
	}
	log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("Scheduled job completed")
}

func (s *scheduler) start() {
	s.cron.Start()
}

// stop halts the schedule and waits for running jobs to return.
func (s *scheduler) stop() {
	<-s.cron.Stop().Done()
}

func (s *scheduler) len() int {
	return len(s.cron.Entries())
}

// schedulerLogAdapter lets cron's printf-style logger write through slog.
type schedulerLogAdapter struct {
	log *logger.Logger
}

func (a schedulerLogAdapter) Printf(format string, args ...any) {
	a.log.WithModule("cron").Infof(format, args...)
}

// knowledgeReloadJob reloads the retrieval index.
func knowledgeReloadJob(spec string, index KnowledgeIndex) job {
	return job{
		name:    "knowledge_reload",
		spec:    spec,
		timeout: config.KnowledgeReload,
		run: func(ctx context.Context) error {
			_, err := index.Reload(ctx)
			return err
		},
	}
}

// backupJob takes a database backup.
func backupJob(spec string, runner BackupRunner) job {
	return job{
		name:    "backup",
		spec:    spec,
		timeout: config.BackupRun,
		run: func(ctx context.Context) error {
			_, err := runner.Run(ctx)
			return err
		},
	}
}

// ConversationPruner deletes conversation turns older than a cutoff.
type ConversationPruner interface {
	DeleteConversationsBefore(ctx context.Context, unix int64) (int64, error)
}

// conversationCleanupJob drops turns older than retention.
func conversationCleanupJob(spec string, retention time.Duration, pruner ConversationPruner, log *logger.Logger) job {
	return job{
		name:    "conversation_cleanup",
		spec:    spec,
		timeout: config.ConversationCleanup,
		run: func(ctx context.Context) error {
			cutoff := time.Now().Add(-retention)
			n, err := pruner.DeleteConversationsBefore(ctx, cutoff.Unix())
			if err != nil {
				return err
			}
			log.WithField("deleted", n).
				WithField("cutoff", cutoff.UTC().Format(time.RFC3339)).
				Info("Old conversations deleted")
			return nil
		},
	}
}
