package app

import (
	"gorm.io/gorm"

	"github.com/studyloop/reviewquiz-backend/internal/jobs/pipeline/assignment_heal"
	"github.com/studyloop/reviewquiz-backend/internal/jobs/pipeline/course_cache_rebuild"
	"github.com/studyloop/reviewquiz-backend/internal/jobs/pipeline/review_reconcile"
	jobruntime "github.com/studyloop/reviewquiz-backend/internal/jobs/runtime"
	"github.com/studyloop/reviewquiz-backend/internal/jobs/worker"
	"github.com/studyloop/reviewquiz-backend/internal/logger"
	"github.com/studyloop/reviewquiz-backend/internal/services"
)

type Services struct {
	Analysis  services.AttemptAnalysisService
	Provision services.ProvisionService
	Reconcile services.ReconcileService
	Events    services.EventService

	JobNotifier services.JobNotifier
	JobService  services.JobService

	JobRegistry *jobruntime.Registry
	JobWorker   *worker.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, clients Clients, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	notifier := services.NewLogNotifier(log)
	jobSvc := services.NewJobService(db, log, reposet.JobRun, notifier, clients.Throttle)

	analysis := services.NewAttemptAnalysisService(log, clients.LMS)
	provision := services.NewProvisionService(db, log, clients.LMS, reposet.ReviewCourse, reposet.ReviewQuiz)
	reconcile := services.NewReconcileService(
		db, log, clients.LMS, clients.Locker,
		reposet.QuestionFlag, reposet.ReviewCourse, reposet.ReviewQuiz, reposet.ReviewAssignment,
		provision, analysis, jobSvc,
	)
	events := services.NewEventService(
		log, clients.LMS,
		reposet.QuestionFlag, reposet.ReviewCourse, reposet.ReviewQuiz,
		reconcile, jobSvc,
	)

	registry := jobruntime.NewRegistry()
	pipelines := []jobruntime.Handler{
		review_reconcile.New(db, log, clients.LMS, reposet.ReviewCourse, reposet.ReviewQuiz, reconcile, jobSvc),
		assignment_heal.New(db, log, clients.LMS, reposet.ReviewCourse, reposet.ReviewQuiz, reposet.ReviewAssignment, jobSvc),
		course_cache_rebuild.New(db, log, clients.LMS),
	}
	for _, p := range pipelines {
		if err := registry.Register(p); err != nil {
			return Services{}, err
		}
	}

	jobWorker := worker.New(db, log, registry, reposet.JobRun, notifier, cfg.WorkerPoolSize)

	return Services{
		Analysis:    analysis,
		Provision:   provision,
		Reconcile:   reconcile,
		Events:      events,
		JobNotifier: notifier,
		JobService:  jobSvc,
		JobRegistry: registry,
		JobWorker:   jobWorker,
	}, nil
}
