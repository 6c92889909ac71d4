package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	domainagg "github.com/yungbote/trainwatch-backend/internal/domain/aggregates"
	"github.com/yungbote/trainwatch-backend/internal/domain/playback"
	"github.com/yungbote/trainwatch-backend/internal/domain/views"
	"github.com/yungbote/trainwatch-backend/internal/observability"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
)

// ProgramRef is what ingestion needs to know about a provisioned program.
type ProgramRef struct {
	ProgramID string
	Name      string
	TrainerID string
}

// ProgramDirectory answers whether a program is provisioned. A missing
// program is (ProgramRef{}, false, nil), never an error.
type ProgramDirectory interface {
	LookupProgram(ctx context.Context, programID string) (ProgramRef, bool, error)
}

// PseudonymLookup returns the pseudonym already stored for a trainee.
type PseudonymLookup interface {
	LookupPseudonym(ctx context.Context, traineeID string) (string, bool, error)
}

type PseudonymGenerator interface {
	Generate(ctx context.Context) (string, error)
}

// RepairScheduler receives secondary views that failed to take an event.
type RepairScheduler interface {
	Schedule(ctx context.Context, view views.Kind, eventID, reason string) error
}

type Config struct {
	// SecondaryTimeout bounds Program-View and Trainer-View writes, which run
	// detached from the caller's cancellation.
	SecondaryTimeout time.Duration
	Breaker          BreakerConfig
}

type Deps struct {
	Log        *logger.Logger
	Trainee    domainagg.SessionLogAggregate
	Program    domainagg.SessionLogAggregate
	Trainer    domainagg.SessionLogAggregate
	Programs   ProgramDirectory
	Pseudonyms PseudonymLookup
	Generator  PseudonymGenerator
	Scheduler  RepairScheduler
	Metrics    *observability.Metrics
	Now        func() time.Time
	Config     Config
}

type Coordinator struct {
	log      *logger.Logger
	deps     Deps
	breakers viewBreakers
}

func NewCoordinator(deps Deps) (*Coordinator, error) {
	if deps.Trainee == nil || deps.Program == nil || deps.Trainer == nil {
		return nil, fmt.Errorf("ingestion: all three view aggregates are required")
	}
	if deps.Programs == nil {
		return nil, fmt.Errorf("ingestion: program directory is required")
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if deps.Config.SecondaryTimeout <= 0 {
		deps.Config.SecondaryTimeout = 5 * time.Second
	}
	log := deps.Log.With("service", "IngestionCoordinator")
	return &Coordinator{
		log:      log,
		deps:     deps,
		breakers: newViewBreakers(deps.Config.Breaker, log, deps.Metrics, views.KindProgram, views.KindTrainer),
	}, nil
}

// Record validates ev, writes it to the Trainee-View, then fans it out to the
// Program-View and Trainer-View. Only validation and primary-write failures
// are errors; secondary trouble degrades the result.
func (c *Coordinator) Record(ctx context.Context, ev playback.Event) (Result, error) {
	const op = "ingestion.Record"
	ctx, span := observability.Tracer().Start(ctx, op, trace.WithAttributes(
		attribute.String("event.id", ev.ID),
		attribute.String("event.kind", string(ev.Kind)),
		attribute.String("program.id", ev.ProgramID),
		attribute.String("session.id", ev.SessionID),
	))
	defer span.End()

	if err := playback.Validate(&ev); err != nil {
		c.deps.Metrics.IncIngestion("rejected")
		span.SetStatus(codes.Error, "validation")
		return Result{}, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), err)
	}
	ev.Normalize()
	// Ingestion time is always ours; client clocks are not trusted.
	ev.CreatedAt = c.deps.Now()

	pseudonym, err := c.resolvePseudonym(ctx, ev)
	if err != nil {
		return c.fail(span, op, err)
	}

	defaults := views.EntryDefaults{Title: ev.SessionTitle, AssignedAt: ev.CreatedAt}
	primary, err := c.recordView(ctx, c.deps.Trainee, views.RecordInput{
		OwnerKey:    ev.TraineeID,
		PseudonymID: pseudonym,
		Event:       ev,
		Defaults:    defaults,
	})
	if err != nil {
		return c.fail(span, op, err)
	}
	if primary.PseudonymID != "" {
		pseudonym = primary.PseudonymID
	}

	res := Result{
		EventID:     ev.ID,
		PseudonymID: pseudonym,
		Status:      StatusRecorded,
		Views:       []ViewReport{{View: views.KindTrainee, Outcome: outcomeOf(primary)}},
	}
	res.Views = append(res.Views, c.fanOut(ctx, ev, pseudonym, defaults)...)

	for _, v := range res.Views {
		if v.Outcome == OutcomeFailed || v.Outcome == OutcomeSkipped {
			res.Status = StatusDegraded
		}
	}
	c.deps.Metrics.IncIngestion(string(res.Status))
	span.SetAttributes(attribute.String("ingestion.status", string(res.Status)))
	if res.Degraded() {
		c.log.Warn("event recorded with degraded fan-out", "event_id", ev.ID, "trainee_id", ev.TraineeID, "views", res.Views)
	}
	return res, nil
}

func (c *Coordinator) fail(span trace.Span, op string, err error) (Result, error) {
	c.deps.Metrics.IncIngestion("failed")
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if domainagg.CodeOf(err) == "" {
		err = domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return Result{}, err
}

// resolvePseudonym prefers the stored pseudonym, then the event's, and only
// generates one for a trainee seen for the first time.
func (c *Coordinator) resolvePseudonym(ctx context.Context, ev playback.Event) (string, error) {
	if c.deps.Pseudonyms != nil {
		stored, ok, err := c.deps.Pseudonyms.LookupPseudonym(ctx, ev.TraineeID)
		if err != nil {
			return "", err
		}
		if ok && stored != "" {
			return stored, nil
		}
	}
	if p := strings.TrimSpace(ev.PseudonymID); p != "" {
		return p, nil
	}
	if c.deps.Generator == nil {
		return "", domainagg.NewError(domainagg.CodeValidation, "ingestion.pseudonym", "pseudonymId is required for a new trainee", nil)
	}
	return c.deps.Generator.Generate(ctx)
}

func (c *Coordinator) fanOut(ctx context.Context, ev playback.Event, pseudonym string, defaults views.EntryDefaults) []ViewReport {
	ref, found, err := c.deps.Programs.LookupProgram(ctx, ev.ProgramID)
	switch {
	case err != nil:
		c.log.Error("program lookup failed", "event_id", ev.ID, "program_id", ev.ProgramID, "error", err)
		return []ViewReport{
			c.failed(ctx, views.KindProgram, ev.ID, ReasonProgramLookupFailed, err),
			c.failed(ctx, views.KindTrainer, ev.ID, ReasonProgramLookupFailed, err),
		}
	case !found:
		c.log.Warn("program not provisioned; skipping program and trainer views", "event_id", ev.ID, "program_id", ev.ProgramID)
		c.deps.Metrics.ObserveViewWrite(string(views.KindProgram), string(OutcomeSkipped), 0)
		c.deps.Metrics.ObserveViewWrite(string(views.KindTrainer), string(OutcomeSkipped), 0)
		return []ViewReport{
			{View: views.KindProgram, Outcome: OutcomeSkipped, Reason: ReasonProgramNotProvisioned},
			{View: views.KindTrainer, Outcome: OutcomeSkipped, Reason: ReasonProgramNotProvisioned},
		}
	}

	secCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.deps.Config.SecondaryTimeout)
	defer cancel()

	type target struct {
		agg domainagg.SessionLogAggregate
		key string
	}
	targets := []target{{c.deps.Program, ref.ProgramID}, {c.deps.Trainer, ref.TrainerID}}
	reports := make([]ViewReport, len(targets))

	var g errgroup.Group
	for i, t := range targets {
		kind := t.agg.Kind()
		if strings.TrimSpace(t.key) == "" {
			reports[i] = ViewReport{View: kind, Outcome: OutcomeSkipped, Reason: ReasonTrainerNotAssigned}
			continue
		}
		in := views.RecordInput{OwnerKey: t.key, PseudonymID: pseudonym, Event: ev, Defaults: defaults}
		g.Go(func() error {
			res, err := c.breakers.execute(kind, func() (views.RecordResult, error) {
				return c.recordView(secCtx, t.agg, in)
			})
			if err != nil {
				reason := ReasonWriteFailed
				if errors.Is(err, ErrBreakerOpen) {
					reason = ReasonBreakerOpen
				}
				reports[i] = c.failed(secCtx, kind, ev.ID, reason, err)
				return nil
			}
			reports[i] = ViewReport{View: kind, Outcome: outcomeOf(res)}
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

// recordView writes one view inside its own span and records the outcome.
func (c *Coordinator) recordView(ctx context.Context, agg domainagg.SessionLogAggregate, in views.RecordInput) (views.RecordResult, error) {
	view := string(agg.Kind())
	ctx, span := observability.Tracer().Start(ctx, "ingestion.view."+view)
	defer span.End()

	start := time.Now()
	res, err := agg.Record(ctx, in)
	outcome := string(outcomeOf(res))
	if err != nil {
		outcome = string(OutcomeFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("view.outcome", outcome))
	c.deps.Metrics.ObserveViewWrite(view, outcome, time.Since(start))
	return res, err
}

func (c *Coordinator) failed(ctx context.Context, kind views.Kind, eventID, reason string, err error) ViewReport {
	report := ViewReport{View: kind, Outcome: OutcomeFailed, Reason: reason, Error: err.Error()}
	c.log.Warn("secondary view write failed", "view", string(kind), "event_id", eventID, "reason", reason, "error", err)
	if c.deps.Scheduler == nil {
		return report
	}
	if serr := c.deps.Scheduler.Schedule(context.WithoutCancel(ctx), kind, eventID, reason); serr != nil {
		c.log.Error("repair scheduling failed", "view", string(kind), "event_id", eventID, "error", serr)
		return report
	}
	report.RepairScheduled = true
	return report
}

// BreakerState reports the breaker state of a secondary view.
func (c *Coordinator) BreakerState(kind views.Kind) string {
	return c.breakers.state(kind)
}
