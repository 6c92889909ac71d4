package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/trainwatch-backend/internal/data/aggregates"
	"github.com/yungbote/trainwatch-backend/internal/data/repos/sessions"
	domainagg "github.com/yungbote/trainwatch-backend/internal/domain/aggregates"
	"github.com/yungbote/trainwatch-backend/internal/identity"
	"github.com/yungbote/trainwatch-backend/internal/ingestion"
	"github.com/yungbote/trainwatch-backend/internal/insights"
	"github.com/yungbote/trainwatch-backend/internal/observability"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
	"github.com/yungbote/trainwatch-backend/internal/reconcile"
	"github.com/yungbote/trainwatch-backend/internal/services"
)

type Services struct {
	TraineeView domainagg.SessionLogAggregate
	ProgramView domainagg.SessionLogAggregate
	TrainerView domainagg.SessionLogAggregate

	Pseudonyms *identity.Generator
	Trainee    services.TraineeService
	Program    services.ProgramService

	Coordinator *ingestion.Coordinator
	Insights    *insights.Service

	RepairQueue  reconcile.Queue
	Scheduler    ingestion.RepairScheduler
	Repairer     *reconcile.Repairer
	RepairWorker *reconcile.Worker
	Drift        *reconcile.Checker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	base := aggregates.BaseDeps{
		DB:          db,
		Log:         log,
		Runner:      aggregates.NewGormTxRunner(db, aggregates.WithLockTimeout(cfg.ViewLockTimeout)),
		Hooks:       aggregates.NewObservabilityHooks(metrics),
		CASGuard:    aggregates.NewCASGuard(db),
		MaxAttempts: cfg.ViewWriteMaxAttempts,
	}
	viewDeps := func(entries sessions.SessionLogRepo) aggregates.SessionLogAggregateDeps {
		return aggregates.SessionLogAggregateDeps{
			Base:     base,
			Entries:  entries,
			Trainees: repos.Trainees,
			Programs: repos.Programs,
			Trainers: repos.Trainers,
		}
	}

	traineeView := aggregates.NewTraineeViewAggregate(viewDeps(repos.TraineeLog))
	programView := aggregates.NewProgramViewAggregate(viewDeps(repos.ProgramLog))
	trainerView := aggregates.NewTrainerViewAggregate(viewDeps(repos.TrainerLog))

	var reserver identity.Reserver = identity.NewMemoryReserver()
	if clients.Redis != nil {
		reserver = identity.NewRedisReserver(clients.Redis, cfg.PseudonymPrefix)
	}
	pseudonyms := identity.NewGenerator(log, reserver)

	traineeSvc := services.NewTraineeService(db, log, repos.Trainees, repos.TraineeLog, traineeView, pseudonyms)
	programSvc := services.NewProgramService(db, log, repos.Programs, repos.Trainers, repos.ProgramLog, repos.TrainerLog, programView, trainerView)

	// Repair queue: Redis when configured, otherwise in-process while the
	// worker runs, otherwise gaps are only logged.
	var (
		queue     reconcile.Queue
		scheduler ingestion.RepairScheduler
	)
	switch {
	case clients.Redis != nil:
		queue = reconcile.NewRedisQueue(clients.Redis, cfg.RepairQueueKey)
	case cfg.RepairWorkerEnabled:
		queue = reconcile.NewMemoryQueue()
	}
	if queue != nil {
		scheduler = reconcile.NewQueueScheduler(log, queue, metrics)
	} else {
		scheduler = reconcile.NewLogScheduler(log)
	}

	coordinator, err := ingestion.NewCoordinator(ingestion.Deps{
		Log:        log,
		Trainee:    traineeView,
		Program:    programView,
		Trainer:    trainerView,
		Programs:   programSvc,
		Pseudonyms: traineeSvc,
		Generator:  pseudonyms,
		Scheduler:  scheduler,
		Metrics:    metrics,
		Config: ingestion.Config{
			SecondaryTimeout: cfg.SecondaryWriteTimeout,
			Breaker: ingestion.BreakerConfig{
				FailureThreshold: uint32(max(cfg.BreakerFailureThreshold, 0)),
				OpenTimeout:      cfg.BreakerOpenTimeout,
				HalfOpenRequests: uint32(max(cfg.BreakerHalfOpenRequests, 0)),
			},
		},
	})
	if err != nil {
		return Services{}, fmt.Errorf("init ingestion coordinator: %w", err)
	}

	repairer := reconcile.NewRepairer(log, reconcile.RepairerDeps{
		Trainees:   repos.Trainees,
		TraineeLog: repos.TraineeLog,
		Program:    programView,
		Trainer:    trainerView,
		Programs:   programSvc,
	})
	var worker *reconcile.Worker
	if queue != nil && cfg.RepairWorkerEnabled {
		worker = reconcile.NewWorker(log, queue, repairer, metrics, reconcile.WorkerConfig{
			Concurrency: cfg.RepairWorkerConcurrency,
			MaxAttempts: cfg.RepairMaxAttempts,
			RetryDelay:  cfg.RepairRetryDelay,
		})
	}

	return Services{
		TraineeView: traineeView,
		ProgramView: programView,
		TrainerView: trainerView,

		Pseudonyms: pseudonyms,
		Trainee:    traineeSvc,
		Program:    programSvc,

		Coordinator: coordinator,
		Insights: insights.NewService(log, insights.ServiceDeps{
			Trainees:   repos.Trainees,
			Programs:   repos.Programs,
			TraineeLog: repos.TraineeLog,
			ProgramLog: repos.ProgramLog,
			Concepts:   repos.Concepts,
		}),

		RepairQueue:  queue,
		Scheduler:    scheduler,
		Repairer:     repairer,
		RepairWorker: worker,
		Drift: reconcile.NewChecker(log, reconcile.CheckerDeps{
			Trainees:   repos.Trainees,
			TraineeLog: repos.TraineeLog,
			Program:    programView,
			Trainer:    trainerView,
			Programs:   programSvc,
			Scheduler:  scheduler,
		}),
	}, nil
}
