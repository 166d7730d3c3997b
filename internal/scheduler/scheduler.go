package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/KotFed0t/copytrade_backoffice/utils"
	"github.com/go-co-op/gocron/v2"
)

type Task func(ctx context.Context) error

// Job is a background task of the back office. Exactly one of Every and Crontab is set.
type Job struct {
	Name             string
	Task             Task
	Every            time.Duration
	Crontab          string
	StartImmediately bool
}

func (j Job) definition() (gocron.JobDefinition, error) {
	switch {
	case j.Every > 0 && j.Crontab == "":
		return gocron.DurationJob(j.Every), nil
	case j.Crontab != "" && j.Every == 0:
		// crontab с секундами: "0 0 3 * * *"
		return gocron.CronJob(j.Crontab, true), nil
	default:
		return nil, fmt.Errorf("job %q: set either Every or Crontab", j.Name)
	}
}

type Scheduler struct {
	scheduler  gocron.Scheduler
	jobTimeout time.Duration
}

func New(jobTimeout time.Duration) *Scheduler {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		panic(err.Error())
	}
	return &Scheduler{scheduler: s, jobTimeout: jobTimeout}
}

// Register adds jobs that run one at a time: a run that is still going when the next one is due
// pushes the next one back.
func (s *Scheduler) Register(jobs ...Job) error {
	for _, job := range jobs {
		def, err := job.definition()
		if err != nil {
			return err
		}

		opts := []gocron.JobOption{
			gocron.WithName(job.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		}
		if job.StartImmediately {
			opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
		}

		if _, err = s.scheduler.NewJob(def, gocron.NewTask(s.run(job)), opts...); err != nil {
			return fmt.Errorf("job %q: %w", job.Name, err)
		}

		slog.Info("job registered", slog.String("jobName", job.Name), slog.String("every", job.Every.String()), slog.String("crontab", job.Crontab))
	}

	return nil
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
}

func (s *Scheduler) Stop() {
	if err := s.scheduler.Shutdown(); err != nil {
		slog.Error("Scheduler shutdown error", slog.String("err", err.Error()))
	}
}

func (s *Scheduler) run(job Job) func() {
	return func() {
		// у каждого запуска свой rqID, как у http запроса
		ctx, cancel := context.WithTimeout(utils.CreateCtxWithRqID(context.Background(), ""), s.jobTimeout)
		defer cancel()

		rqID := utils.GetRequestIDFromCtx(ctx)
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				slog.Error(
					"Panic recovered in scheduler job",
					slog.String("rqID", rqID),
					slog.String("jobName", job.Name),
					slog.Any("panic", r),
					slog.String("stacktrace", string(debug.Stack())),
				)
			}
		}()

		slog.Info("job start", slog.String("rqID", rqID), slog.String("jobName", job.Name))

		if err := job.Task(ctx); err != nil {
			slog.Error("job failed", slog.String("rqID", rqID), slog.String("jobName", job.Name), slog.String("err", err.Error()))
			return
		}

		slog.Info(
			"job completed",
			slog.String("rqID", rqID),
			slog.String("jobName", job.Name),
			slog.String("duration", fmt.Sprintf("%.2fs", time.Since(start).Seconds())),
		)
	}
}
