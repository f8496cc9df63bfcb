// Package model defines all shared domain types for PlantPulse.
package model

import "time"

// TimestampLayout is the wire format for reading timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// RawReading is a single measurement as submitted by a telemetry source.
type RawReading struct {
	MachineID        int     `json:"machine_id"`
	MachineType      string  `json:"machine_type"`
	Parameter        string  `json:"parameter"`
	Value            float64 `json:"value"`
	Timestamp        string  `json:"timestamp"` // "YYYY-MM-DD HH:MM:SS"
	Location         string  `json:"location,omitempty"`
	InstallationDate string  `json:"installation_date,omitempty"`
	Status           string  `json:"status,omitempty"`
	Anomaly          bool    `json:"anomaly,omitempty"` // upstream anomaly mark, if any
}

// EnrichedReading is a raw reading with statistical context attached from the
// profile catalog. Enriched is false when no profile exists for the reading's
// (machine_type, parameter); limit and deviation fields are then zero and
// must not be interpreted.
type EnrichedReading struct {
	RawReading
	Enriched    bool    `json:"enriched"`
	Unit        string  `json:"unit,omitempty"`
	MinLimit    float64 `json:"min_limit,omitempty"`
	MaxLimit    float64 `json:"max_limit,omitempty"`
	Mean        float64 `json:"mean,omitempty"`
	Deviation   float64 `json:"deviation,omitempty"` // (value - mean) / stddev
	OutOfLimits bool    `json:"out_of_limits"`
}

// IsAnomalous reports whether the reading should be stored as an anomaly:
// the enrichment out-of-limits flag OR'd with any upstream anomaly mark.
func (r EnrichedReading) IsAnomalous() bool {
	return r.OutOfLimits || r.Anomaly
}

// Machine is a registered industrial machine.
type Machine struct {
	MachineID        int    `json:"machine_id"`
	MachineType      string `json:"machine_type"`
	Location         string `json:"location,omitempty"`
	InstallationDate string `json:"installation_date,omitempty"`
	Status           string `json:"status,omitempty"`
}

// Parameter is a measured quantity registered for a machine.
type Parameter struct {
	ParameterID   int64    `json:"parameter_id"`
	MachineID     int      `json:"machine_id"`
	ParameterName string   `json:"parameter_name"`
	Unit          string   `json:"unit,omitempty"`
	MinLimit      *float64 `json:"min_limit,omitempty"`
	MaxLimit      *float64 `json:"max_limit,omitempty"`
}

// Reading is a persisted measurement row, joined with machine and parameter
// context for query responses.
type Reading struct {
	ReadingID     int64    `json:"reading_id"`
	MachineID     int      `json:"machine_id"`
	MachineType   string   `json:"machine_type"`
	ParameterName string   `json:"parameter_name"`
	Timestamp     string   `json:"timestamp"`
	Value         float64  `json:"value"`
	IsAnomaly     bool     `json:"is_anomaly"`
	MinLimit      *float64 `json:"min_limit,omitempty"`
	MaxLimit      *float64 `json:"max_limit,omitempty"`
}

// Anomaly severity levels.
const (
	SeverityMedium = "Medium"
	SeverityHigh   = "High"
)

// Anomaly is a persisted anomaly row referencing its reading.
type Anomaly struct {
	AnomalyID     int64   `json:"anomaly_id"`
	ReadingID     int64   `json:"reading_id"`
	MachineID     int     `json:"machine_id"`
	MachineType   string  `json:"machine_type"`
	ParameterName string  `json:"parameter_name"`
	Timestamp     string  `json:"timestamp"`
	Value         float64 `json:"value"`
	Severity      string  `json:"severity"`
	Description   string  `json:"description"`
}

// MachineStats aggregates live per-machine counts and reading bounds.
type MachineStats struct {
	MachineID    int    `json:"machine_id"`
	MachineType  string `json:"machine_type"`
	Location     string `json:"location,omitempty"`
	Status       string `json:"status,omitempty"`
	Parameters   int    `json:"num_parameters"`
	Readings     int    `json:"num_readings"`
	Anomalies    int    `json:"num_anomalies"`
	FirstReading string `json:"first_reading,omitempty"`
	LastReading  string `json:"last_reading,omitempty"`
}

// Timeframe is a maintenance urgency window. Higher values are more urgent;
// once a recommendation's timeframe has been escalated it is never lowered.
type Timeframe int

const (
	TimeframeNone Timeframe = iota
	TimeframeNextService
	TimeframeNextWeek
	TimeframeNextDays
	TimeframeImmediate
)

// String returns the wire label for the timeframe.
func (t Timeframe) String() string {
	switch t {
	case TimeframeImmediate:
		return "Immediate"
	case TimeframeNextDays:
		return "Next days"
	case TimeframeNextWeek:
		return "Next week"
	case TimeframeNextService:
		return "Next scheduled maintenance"
	default:
		return "None"
	}
}

// MarshalText implements encoding.TextMarshaler so JSON output carries the
// label rather than the ordinal.
func (t Timeframe) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// AnomalySignal is the anomaly oracle's verdict for a machine.
type AnomalySignal struct {
	IsAnomaly    bool    `json:"is_anomaly"`
	AnomalyScore float64 `json:"anomaly_score"`
}

// FailureSignal is the failure oracle's prediction for a machine.
type FailureSignal struct {
	FailureProbability float64 `json:"failure_probability"`             // 0..1
	PredictedRUL       float64 `json:"predicted_remaining_useful_life"` // hours
}

// OptimizationSignal is the optimization oracle's assessment for a machine.
type OptimizationSignal struct {
	OptimizationPotential float64 `json:"optimization_potential"` // percent
}

// Recommendation annotates one input row with a maintenance decision.
type Recommendation struct {
	MachineID   int       `json:"machine_id"`
	MachineType string    `json:"machine_type"`
	Parameter   string    `json:"parameter"`
	Priority    int       `json:"priority"` // 0..10
	Action      string    `json:"action"`
	Timeframe   Timeframe `json:"timeframe"`
	Details     string    `json:"details"`
}

// ScheduleEntry is one machine's slot in a generated maintenance schedule.
type ScheduleEntry struct {
	MachineID          int       `json:"machine_id"`
	MachineType        string    `json:"machine_type"`
	Priority           int       `json:"priority"`
	MaintenanceDate    time.Time `json:"maintenance_date"`
	DaysUntil          int       `json:"days_until_maintenance"`
	RecommendedActions []string  `json:"recommended_actions"`
	EstimatedDuration  float64   `json:"estimated_duration_hours"`
}

// CurrentValue is the most recent observed value for one machine parameter.
type CurrentValue struct {
	MachineID   int       `json:"machine_id"`
	MachineType string    `json:"machine_type"`
	Parameter   string    `json:"parameter"`
	Value       float64   `json:"value"`
	Timestamp   string    `json:"timestamp"`
	OutOfLimits bool      `json:"out_of_limits"`
	UpdatedAt   time.Time `json:"updated_at"`
}
