package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/reportship/internal/aggregate"
	"github.com/bft-labs/reportship/internal/cleaner"
	"github.com/bft-labs/reportship/internal/domain"
	"github.com/bft-labs/reportship/internal/loader"
	"github.com/bft-labs/reportship/internal/notify"
	"github.com/bft-labs/reportship/internal/ports"
	"github.com/bft-labs/reportship/internal/recipients"
	"github.com/bft-labs/reportship/internal/render"
	"github.com/bft-labs/reportship/pkg/log"
)

// PipelineConfig describes what one run reads, computes and sends.
type PipelineConfig struct {
	Source      string
	LoadOptions loader.Options
	Clean       cleaner.Options

	// Aggregate is optional; without it only table-sourced specs can render.
	Aggregate *aggregate.Request

	Render []render.Spec

	// AllowPartialRender keeps the run going when some specs fail.
	AllowPartialRender bool

	Recipients recipients.Source

	// Subject and Body may contain {date}, replaced with the run's start date.
	Subject string
	Body    string
}

// PipelineDeps are the collaborators behind ports.
type PipelineDeps struct {
	Charts ports.ChartBackend
	Mail   ports.MailSender
	From   string
	Store  ports.ArtifactStore
	RunLog ports.RunLog
	Logger log.Logger

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Pipeline runs ingest, clean, aggregate, render, resolve and distribute in
// that order, once per call to Run.
type Pipeline struct {
	cfg      PipelineConfig
	renderer *render.Renderer
	notifier *notify.Notifier
	store    ports.ArtifactStore
	runLog   ports.RunLog
	logger   log.Logger
	now      func() time.Time
}

// NewPipeline wires a pipeline.
func NewPipeline(cfg PipelineConfig, deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		cfg:      cfg,
		renderer: render.New(deps.Charts, logger),
		notifier: notify.New(deps.Mail, deps.From, logger),
		store:    deps.Store,
		runLog:   deps.RunLog,
		logger:   logger,
		now:      now,
	}
}

// Run executes every stage and returns the finished record, which has also
// been appended to the run log. A stage error ends the run as failed at that
// stage; Run itself never fails.
func (p *Pipeline) Run(ctx context.Context, trigger domain.Trigger) domain.RunRecord {
	rec := domain.RunRecord{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: p.now(),
	}
	logger := &runLogger{Logger: p.logger, id: rec.ID}
	logger.Info("run started", log.String("trigger", string(trigger)), log.String("source", p.cfg.Source))

	p.executeGuarded(ctx, &rec, logger)

	rec.FinishedAt = p.now()
	if p.runLog != nil {
		if err := p.runLog.Append(ctx, rec); err != nil {
			logger.Error("failed to append run record", log.Err(err))
		}
	}

	fields := []log.Field{
		log.String("status", string(rec.Status)),
		log.String("stage", string(rec.Stage)),
		log.Duration("duration", rec.Duration()),
		log.Int("artifacts", len(rec.Artifacts)),
	}
	if rec.Succeeded() {
		logger.Info("run finished", fields...)
	} else {
		logger.Error("run failed", append(fields, log.String("error", rec.Error))...)
	}
	return rec
}

// executeGuarded records a panic in any stage as a failure of that stage.
func (p *Pipeline) executeGuarded(ctx context.Context, rec *domain.RunRecord, logger log.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("stage panicked",
				log.String("stage", string(rec.Stage)),
				log.String("panic", fmt.Sprint(r)),
				log.String("stack", string(debug.Stack())),
			)
			rec.Status = domain.RunFailed
			rec.Error = fmt.Sprintf("panic in %s stage: %v", rec.Stage, r)
		}
	}()
	p.execute(ctx, rec, logger)
}

func (p *Pipeline) execute(ctx context.Context, rec *domain.RunRecord, logger log.Logger) {
	fail := func(stage domain.Stage, err error) {
		rec.Stage = stage
		rec.Status = domain.RunFailed
		rec.Error = err.Error()
	}

	rec.Stage = domain.StageIngest
	raw, err := loader.Load(p.cfg.Source, p.cfg.LoadOptions)
	if err != nil {
		fail(domain.StageIngest, err)
		return
	}
	rec.Rows = raw.Len()
	logger.Debug("loaded source", log.Int("rows", raw.Len()), log.Int("columns", len(raw.Columns())))

	rec.Stage = domain.StageClean
	table, err := cleaner.Clean(raw, p.cfg.Clean)
	if err != nil {
		fail(domain.StageClean, err)
		return
	}

	var agg *aggregate.Table
	if p.cfg.Aggregate != nil {
		rec.Stage = domain.StageAggregate
		agg, err = aggregate.Aggregate(table, *p.cfg.Aggregate)
		if err != nil {
			fail(domain.StageAggregate, err)
			return
		}
		logger.Debug("aggregated", log.Int("groups", agg.Len()))
	}

	rec.Stage = domain.StageRender
	res := p.renderer.Render(table, agg, p.cfg.Render)
	for _, f := range res.Failures() {
		rec.RenderFailures = append(rec.RenderFailures, domain.RenderFailure{Spec: f.Spec, Error: f.Err.Error()})
	}
	if len(rec.RenderFailures) > 0 && !p.cfg.AllowPartialRender {
		fail(domain.StageRender, errors.Join(failureErrors(res)...))
		return
	}
	if p.store != nil && len(res.Artifacts) > 0 {
		paths, err := p.store.Save(ctx, res.Artifacts)
		rec.Artifacts = paths
		if err != nil {
			fail(domain.StageRender, err)
			return
		}
	} else {
		for _, a := range res.Artifacts {
			rec.Artifacts = append(rec.Artifacts, a.Name)
		}
	}

	rec.Stage = domain.StageResolve
	set, err := recipients.Resolve(p.cfg.Recipients, table, p.loadAddresses)
	switch {
	case errors.Is(err, domain.ErrNoRecipientColumn):
		logger.Warn("no recipient column, delivery will be skipped", log.Err(err))
	case err != nil:
		fail(domain.StageResolve, err)
		return
	}
	rec.Recipients = set.Len()

	rec.Stage = domain.StageDistribute
	date := rec.StartedAt.Format("2006-01-02")
	subject := strings.ReplaceAll(p.cfg.Subject, "{date}", date)
	body := strings.ReplaceAll(p.cfg.Body, "{date}", date)
	result, err := p.notifier.Notify(ctx, set, subject, body, res.Artifacts)
	if err != nil {
		fail(domain.StageDistribute, err)
		return
	}

	rec.Stage = domain.StageDone
	rec.Status = domain.RunSucceeded
	if result.Status == notify.StatusSkipped {
		rec.Status = domain.RunSucceededSkippedDelivery
	}
}

func (p *Pipeline) loadAddresses(path string) (*domain.Table, error) {
	return loader.Load(path, loader.Options{})
}

func failureErrors(res render.Result) []error {
	var errs []error
	for _, f := range res.Failures() {
		errs = append(errs, f.Err)
	}
	return errs
}

// runLogger tags every entry with the run ID.
type runLogger struct {
	log.Logger
	id string
}

func (l *runLogger) Debug(msg string, fields ...log.Field) {
	l.Logger.Debug(msg, append(fields, log.String("run_id", l.id))...)
}

func (l *runLogger) Info(msg string, fields ...log.Field) {
	l.Logger.Info(msg, append(fields, log.String("run_id", l.id))...)
}

func (l *runLogger) Warn(msg string, fields ...log.Field) {
	l.Logger.Warn(msg, append(fields, log.String("run_id", l.id))...)
}

func (l *runLogger) Error(msg string, fields ...log.Field) {
	l.Logger.Error(msg, append(fields, log.String("run_id", l.id))...)
}
