// Package oracle defines the interfaces to the three external predictive
// services and their neutral fallback values.
package oracle

import (
	"context"

	"github.com/mvasconcelos/plantpulse/internal/model"
)

// AnomalyOracle scores a machine for anomalous behaviour.
type AnomalyOracle interface {
	Name() string
	DetectAnomaly(ctx context.Context, machineID int) (model.AnomalySignal, error)
}

// FailureOracle predicts failure probability and remaining useful life.
type FailureOracle interface {
	Name() string
	PredictFailure(ctx context.Context, machineID int) (model.FailureSignal, error)
}

// OptimizationOracle estimates the optimization potential of a machine's
// operating parameters.
type OptimizationOracle interface {
	Name() string
	AnalyzeOptimization(ctx context.Context, machineID int) (model.OptimizationSignal, error)
}

// Neutral defaults substituted when an oracle is unavailable. A machine with
// neutral signals triggers no recommendation rule.
const NeutralRUL = 10000

// NeutralAnomaly returns the no-signal anomaly verdict.
func NeutralAnomaly() model.AnomalySignal {
	return model.AnomalySignal{}
}

// NeutralFailure returns the no-signal failure prediction.
func NeutralFailure() model.FailureSignal {
	return model.FailureSignal{PredictedRUL: NeutralRUL}
}

// NeutralOptimization returns the no-signal optimization assessment.
func NeutralOptimization() model.OptimizationSignal {
	return model.OptimizationSignal{}
}
