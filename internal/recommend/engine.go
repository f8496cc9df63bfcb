package recommend

import (
	"context"
	"log/slog"

	"github.com/mvasconcelos/plantpulse/internal/model"
	"github.com/mvasconcelos/plantpulse/internal/oracle"
)

// Engine gathers predictive signals and produces recommendations. Any of
// the oracles may be nil, in which case its neutral signal is used.
type Engine struct {
	anomaly      oracle.AnomalyOracle
	failure      oracle.FailureOracle
	optimization oracle.OptimizationOracle
}

func NewEngine(an oracle.AnomalyOracle, fa oracle.FailureOracle, op oracle.OptimizationOracle) *Engine {
	return &Engine{anomaly: an, failure: fa, optimization: op}
}

// Recommend fetches signals once per machine appearing in rows, then fuses
// them into per-row recommendations. Oracle failures degrade to neutral
// signals rather than failing the whole request.
func (e *Engine) Recommend(ctx context.Context, rows []model.Reading) []model.Recommendation {
	signals := make(map[int]Signals)
	for _, row := range rows {
		if _, ok := signals[row.MachineID]; ok {
			continue
		}
		signals[row.MachineID] = e.signalsFor(ctx, row.MachineID)
	}
	return Fuse(rows, signals)
}

func (e *Engine) signalsFor(ctx context.Context, machineID int) Signals {
	sig := Signals{
		Anomaly:      oracle.NeutralAnomaly(),
		Failure:      oracle.NeutralFailure(),
		Optimization: oracle.NeutralOptimization(),
	}
	if e.anomaly != nil {
		if s, err := e.anomaly.DetectAnomaly(ctx, machineID); err != nil {
			slog.Warn("anomaly oracle unavailable, using neutral signal",
				"oracle", e.anomaly.Name(), "machine_id", machineID, "error", err)
		} else {
			sig.Anomaly = s
		}
	}
	if e.failure != nil {
		if s, err := e.failure.PredictFailure(ctx, machineID); err != nil {
			slog.Warn("failure oracle unavailable, using neutral signal",
				"oracle", e.failure.Name(), "machine_id", machineID, "error", err)
		} else {
			sig.Failure = s
		}
	}
	if e.optimization != nil {
		if s, err := e.optimization.AnalyzeOptimization(ctx, machineID); err != nil {
			slog.Warn("optimization oracle unavailable, using neutral signal",
				"oracle", e.optimization.Name(), "machine_id", machineID, "error", err)
		} else {
			sig.Optimization = s
		}
	}
	return sig
}
