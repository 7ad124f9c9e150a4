package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"propval/internal"
	"propval/internal/domain"
	"propval/internal/logger"
	"propval/internal/repository"
	"propval/internal/service"

	"github.com/google/uuid"
)

// ReportPublisher hands a finalized record to the report-rendering
// collaborator.
type ReportPublisher interface {
	Publish(ctx context.Context, record *domain.ValuationRecord) error
}

type ValuationHandler struct {
	MarketData            repository.MarketDataRepository
	Evaluators            []service.MethodEvaluator
	TrendService          service.TrendService
	ConditionService      service.ConditionService
	ReconciliationService service.ReconciliationService

	// RecordRepository and ReportPublisher are optional; a nil value
	// skips persistence / publishing.
	RecordRepository repository.ValuationRecordRepository
	ReportPublisher  ReportPublisher

	Config internal.ValuationConfig
}

type RunValuationInput struct {
	Subject    domain.Property
	Scope      domain.Scope
	Window     domain.Window
	Assessment *domain.ConditionAssessment
	// SupersedesRunID links a correction run to the run it replaces.
	SupersedesRunID *uuid.UUID
}

type evaluatorSlot struct {
	method domain.MethodID
	result *domain.MethodResult
	err    error
}

// RunValuation executes one full pipeline run. Evaluators, trend and
// condition fan out concurrently and reconciliation is the single
// barrier that waits for every slot to report. Only comparable-selection
// failure and total method failure are fatal; everything else degrades.
// On failure the returned record still carries whatever partial
// artifacts were computed, for diagnostics, never as a final estimate.
func (h ValuationHandler) RunValuation(ctx context.Context, in RunValuationInput) (*domain.ValuationRecord, error) {
	log := logger.FromContext(ctx)

	record := &domain.ValuationRecord{
		RunID:           uuid.New(),
		SupersedesRunID: in.SupersedesRunID,
		Subject:         in.Subject.DeepCopy(),
		Scope:           in.Scope,
		Assessment:      in.Assessment,
		CreatedAt:       time.Now().UTC(),
	}
	h.transition(record, domain.RunInitiated)
	log.Infow("valuation run initiated",
		"runId", record.RunID,
		"subjectId", in.Subject.ID,
	)

	candidates, err := h.MarketData.FetchCandidates(ctx, in.Scope)
	if err != nil {
		return h.fail(ctx, record, fmt.Errorf("failed to fetch candidates: %w", err))
	}

	comps, err := internal.SelectComparables(in.Subject, candidates, in.Scope, h.Config, record.CreatedAt)
	if err != nil {
		return h.fail(ctx, record, err)
	}
	record.Comparables = *comps
	h.transition(record, domain.RunComparablesResolved)
	log.Infow("comparables resolved", "runId", record.RunID, "count", comps.Size())

	trend, condition := h.fanOut(ctx, record, comps, in)

	h.transition(record, domain.RunMethodsEvaluated)
	h.transition(record, domain.RunTrendComputed)
	record.Trend = trend
	h.transition(record, domain.RunConditionApplied)
	record.Condition = condition

	estimate, err := h.ReconciliationService.Reconcile(ctx, service.ReconcileInput{
		MethodResults:  record.MethodResults,
		MethodFailures: record.MethodFailures,
		TotalMethods:   len(h.Evaluators),
		Trend:          trend,
		Condition:      condition,
	})
	if err != nil {
		return h.fail(ctx, record, err)
	}
	record.Estimate = estimate
	h.transition(record, domain.RunReconciled)

	h.transition(record, domain.RunFinalized)
	record.FinalState = domain.RunFinalized
	log.Infow("valuation run finalized",
		"runId", record.RunID,
		"pointValue", estimate.PointValue,
		"confidence", estimate.Confidence,
	)

	if h.RecordRepository != nil {
		if err := h.RecordRepository.Add(ctx, record); err != nil {
			return record, fmt.Errorf("failed to persist valuation record: %w", err)
		}
	}
	if h.ReportPublisher != nil {
		// the record is already final; a sink outage should not undo
		// the run
		if err := h.ReportPublisher.Publish(ctx, record); err != nil {
			log.Warnw("failed to publish valuation record to report sink",
				"runId", record.RunID,
				"error", err,
			)
		}
	}

	return record, nil
}

// fanOut runs every evaluator plus trend and condition concurrently and
// blocks until all have reported success or captured failure. Results
// land in per-task slots so there is no shared mutable accumulation
// during concurrent writes.
func (h ValuationHandler) fanOut(
	ctx context.Context,
	record *domain.ValuationRecord,
	comps *domain.ComparableSet,
	in RunValuationInput,
) (domain.TrendSignal, domain.ConditionAdjustment) {
	log := logger.FromContext(ctx)

	slots := make([]evaluatorSlot, len(h.Evaluators))
	var trend domain.TrendSignal
	var condition domain.ConditionAdjustment

	var wg sync.WaitGroup
	for i, evaluator := range h.Evaluators {
		wg.Add(1)
		go func(i int, evaluator service.MethodEvaluator) {
			defer wg.Done()
			result, err := h.evaluateWithTimeout(ctx, evaluator, comps, in.Subject)
			slots[i] = evaluatorSlot{
				method: evaluator.Method(),
				result: result,
				err:    err,
			}
		}(i, evaluator)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		signal, err := h.TrendService.ComputeTrend(ctx, in.Scope, in.Window)
		if err != nil || signal == nil {
			// the trend service degrades internally; this is belt and
			// braces for an unexpected hard error
			fallback := domain.NeutralTrend(in.Window, h.Config.TrendDegradedConfidence)
			trend = fallback
			return
		}
		trend = *signal
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		condition = h.ConditionService.Adjust(in.Assessment)
	}()

	wg.Wait()

	record.MethodResults = []domain.MethodResult{}
	record.MethodFailures = map[domain.MethodID]string{}
	for _, slot := range slots {
		if slot.err != nil {
			record.MethodFailures[slot.method] = slot.err.Error()
			log.Warnw("method evaluator unavailable",
				"runId", record.RunID,
				"method", slot.method,
				"reason", slot.err.Error(),
			)
			continue
		}
		record.MethodResults = append(record.MethodResults, *slot.result)
	}

	return trend, condition
}

// evaluateWithTimeout treats a timed-out evaluator identically to a
// failed one. The evaluator goroutine is not cancelled mid-computation;
// its late result is simply never used.
func (h ValuationHandler) evaluateWithTimeout(
	ctx context.Context,
	evaluator service.MethodEvaluator,
	comps *domain.ComparableSet,
	subject domain.Property,
) (*domain.MethodResult, error) {
	if h.Config.EvaluatorTimeoutMS <= 0 {
		return evaluator.Evaluate(ctx, *comps, subject)
	}

	type evalOutcome struct {
		result *domain.MethodResult
		err    error
	}
	outcomeCh := make(chan evalOutcome, 1)
	go func() {
		result, err := evaluator.Evaluate(ctx, *comps, subject)
		outcomeCh <- evalOutcome{result: result, err: err}
	}()

	select {
	case outcome := <-outcomeCh:
		return outcome.result, outcome.err
	case <-time.After(time.Duration(h.Config.EvaluatorTimeoutMS) * time.Millisecond):
		return nil, domain.MethodUnavailableError{
			Method: evaluator.Method(),
			Reason: fmt.Sprintf("timed out after %dms", h.Config.EvaluatorTimeoutMS),
		}
	}
}

func (h ValuationHandler) transition(record *domain.ValuationRecord, state domain.RunState) {
	record.States = append(record.States, domain.StateTransition{
		State: state,
		At:    time.Now().UTC(),
	})
}

// fail moves the run to the terminal FAILED state, keeping partial
// artifacts on the record for diagnostics. The record is persisted
// best-effort so failed runs stay auditable too.
func (h ValuationHandler) fail(ctx context.Context, record *domain.ValuationRecord, cause error) (*domain.ValuationRecord, error) {
	log := logger.FromContext(ctx)

	h.transition(record, domain.RunFailed)
	record.FinalState = domain.RunFailed
	record.FailureReason = cause.Error()
	log.Warnw("valuation run failed",
		"runId", record.RunID,
		"reason", cause.Error(),
	)

	if h.RecordRepository != nil {
		if err := h.RecordRepository.Add(ctx, record); err != nil {
			log.Errorw("failed to persist failed valuation record",
				"runId", record.RunID,
				"error", err,
			)
		}
	}

	return record, cause
}
