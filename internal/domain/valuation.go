package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RunState string

const (
	RunInitiated           RunState = "INITIATED"
	RunComparablesResolved RunState = "COMPARABLES_RESOLVED"
	RunMethodsEvaluated    RunState = "METHODS_EVALUATED"
	RunTrendComputed       RunState = "TREND_COMPUTED"
	RunConditionApplied    RunState = "CONDITION_APPLIED"
	RunReconciled          RunState = "RECONCILED"
	RunFinalized           RunState = "FINALIZED"
	RunFailed              RunState = "FAILED"
)

type StateTransition struct {
	State RunState  `json:"state"`
	At    time.Time `json:"at"`
}

// ValuationEstimate is the reconciliation engine's output, derived once
// from frozen inputs.
type ValuationEstimate struct {
	PointValue decimal.Decimal `json:"pointValue"`
	RangeLow   decimal.Decimal `json:"rangeLow"`
	RangeHigh  decimal.Decimal `json:"rangeHigh"`
	Confidence float64         `json:"confidence"`
	// MethodWeights are the normalized contributions of each method that
	// succeeded; they sum to 1.
	MethodWeights map[MethodID]float64 `json:"methodWeights"`
	// TrendFactor is the multiplicative market-trajectory adjustment
	// already applied to PointValue.
	TrendFactor float64 `json:"trendFactor"`
	// ConditionMultiplier is applied to PointValue; RepairCost is a cash
	// outflow reported alongside, never subtracted from the value.
	ConditionMultiplier decimal.Decimal `json:"conditionMultiplier"`
	RepairCost          decimal.Decimal `json:"repairCost"`
	CoverageFactor      float64         `json:"coverageFactor"`
	DisagreementPenalty float64         `json:"disagreementPenalty"`
}

// ValuationRecord is the terminal artifact of a run. Once the
// orchestrator emits it, nothing mutates it; corrections are new runs
// referencing the superseded run id.
type ValuationRecord struct {
	RunID           uuid.UUID  `json:"runId"`
	SupersedesRunID *uuid.UUID `json:"supersedesRunId,omitempty"`

	Subject     Property      `json:"subject"`
	Scope       Scope         `json:"scope"`
	Comparables ComparableSet `json:"comparables"`

	MethodResults []MethodResult `json:"methodResults"`
	// MethodFailures captures evaluators that returned MethodUnavailable
	// (or timed out), keyed by method, for diagnostics.
	MethodFailures map[MethodID]string `json:"methodFailures,omitempty"`

	Trend      TrendSignal          `json:"trend"`
	Condition  ConditionAdjustment  `json:"condition"`
	Assessment *ConditionAssessment `json:"assessment,omitempty"`

	Estimate *ValuationEstimate `json:"estimate,omitempty"`

	States     []StateTransition `json:"states"`
	FinalState RunState          `json:"finalState"`
	// FailureReason is set only when FinalState is FAILED.
	FailureReason string    `json:"failureReason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (r ValuationRecord) ToJSONBytes() ([]byte, error) {
	return json.Marshal(r)
}
