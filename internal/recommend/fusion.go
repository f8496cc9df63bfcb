// Package recommend fuses the predictive signals into maintenance
// recommendations and builds the maintenance schedule.
package recommend

import (
	"fmt"
	"strings"

	"github.com/mvasconcelos/plantpulse/internal/model"
	"github.com/mvasconcelos/plantpulse/internal/oracle"
)

// Signals groups the three oracle outputs for one machine.
type Signals struct {
	Anomaly      model.AnomalySignal
	Failure      model.FailureSignal
	Optimization model.OptimizationSignal
}

// NoActionNeeded is the action text for a row that triggers no rule.
const NoActionNeeded = "No action needed"

// Fuse annotates each reading row with a maintenance recommendation derived
// from its machine's signals. It is a pure transform: identical inputs yield
// identical outputs. Machines missing from signals get neutral treatment.
func Fuse(rows []model.Reading, signals map[int]Signals) []model.Recommendation {
	out := make([]model.Recommendation, 0, len(rows))
	for _, row := range rows {
		sig, ok := signals[row.MachineID]
		if !ok {
			sig = Signals{
				Anomaly:      oracle.NeutralAnomaly(),
				Failure:      oracle.NeutralFailure(),
				Optimization: oracle.NeutralOptimization(),
			}
		}
		out = append(out, fuseRow(row, sig))
	}
	return out
}

// fuseRow applies the scoring table. Each rule contributes once; the
// priority is clamped to [0,10]; the timeframe only ever escalates.
func fuseRow(row model.Reading, sig Signals) model.Recommendation {
	priority := 0
	timeframe := model.TimeframeNone
	var actions, details []string

	escalate := func(t model.Timeframe) {
		if t > timeframe {
			timeframe = t
		}
	}

	if sig.Anomaly.IsAnomaly {
		priority += 3
		actions = append(actions, "Investigate anomaly")
		escalate(model.TimeframeNextDays)
		details = append(details, fmt.Sprintf("Anomaly detected on %s with score %.2f.",
			row.ParameterName, sig.Anomaly.AnomalyScore))
	}

	switch fp := sig.Failure.FailureProbability; {
	case fp > 0.7:
		priority += 5
		actions = append(actions, "Urgent corrective maintenance")
		escalate(model.TimeframeImmediate)
		details = append(details, fmt.Sprintf("High failure probability: %.2f.", fp))
	case fp > 0.4:
		priority += 3
		actions = append(actions, "Preventive maintenance")
		escalate(model.TimeframeNextWeek)
		details = append(details, fmt.Sprintf("Moderate failure probability: %.2f.", fp))
	case fp > 0.2:
		priority += 1
		actions = append(actions, "Intensive monitoring")
		escalate(model.TimeframeNextService)
		details = append(details, fmt.Sprintf("Low failure probability: %.2f.", fp))
	}

	switch rul := sig.Failure.PredictedRUL; {
	case rul < 100:
		priority += 4
		actions = append(actions, "Plan replacement")
		escalate(model.TimeframeNextWeek)
		details = append(details, fmt.Sprintf("Remaining useful life low: %.0f hours.", rul))
	case rul < 500:
		priority += 2
		actions = append(actions, "Schedule preventive maintenance")
		escalate(model.TimeframeNextService)
		details = append(details, fmt.Sprintf("Remaining useful life moderate: %.0f hours.", rul))
	}

	if op := sig.Optimization.OptimizationPotential; op > 10 {
		priority += 1
		actions = append(actions, "Adjust operating parameters")
		escalate(model.TimeframeNextService)
		details = append(details, fmt.Sprintf("Optimization potential: %.2f%%.", op))
	}

	if priority > 10 {
		priority = 10
	}

	rec := model.Recommendation{
		MachineID:   row.MachineID,
		MachineType: row.MachineType,
		Parameter:   row.ParameterName,
		Priority:    priority,
		Timeframe:   timeframe,
	}
	if len(actions) == 0 {
		rec.Action = NoActionNeeded
		rec.Details = "Normal operation."
	} else {
		rec.Action = strings.Join(actions, ", ")
		rec.Details = strings.Join(details, " ")
	}
	return rec
}
