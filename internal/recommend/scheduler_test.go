package recommend

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvasconcelos/plantpulse/internal/model"
)

var scheduleNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func rec(machineID, priority int, action string) model.Recommendation {
	return model.Recommendation{
		MachineID:   machineID,
		MachineType: "cnc_lathe",
		Parameter:   "temperature",
		Priority:    priority,
		Action:      action,
	}
}

func TestBuildSchedule_Empty(t *testing.T) {
	assert.Empty(t, BuildSchedule(nil, scheduleNow))
}

func TestBuildSchedule_SkipsZeroPriority(t *testing.T) {
	recs := []model.Recommendation{
		rec(1, 0, "No action needed"),
		rec(2, 3, "Preventive maintenance"),
	}

	entries := BuildSchedule(recs, scheduleNow)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].MachineID)
}

func TestBuildSchedule_LeadTimeBands(t *testing.T) {
	for _, tc := range []struct {
		priority int
		days     int
	}{
		{10, 1},
		{8, 1},
		{7, 3},
		{5, 3},
		{4, 7},
		{3, 7},
		{2, 14},
		{1, 14},
	} {
		entries := BuildSchedule([]model.Recommendation{rec(1, tc.priority, "Intensive monitoring")}, scheduleNow)
		require.Len(t, entries, 1, "priority=%d", tc.priority)
		assert.Equal(t, tc.days, entries[0].DaysUntil, "priority=%d", tc.priority)
		assert.Equal(t, scheduleNow.AddDate(0, 0, tc.days), entries[0].MaintenanceDate, "priority=%d", tc.priority)
	}
}

func TestBuildSchedule_MaxPriorityPerMachine(t *testing.T) {
	recs := []model.Recommendation{
		rec(1, 2, "Schedule preventive maintenance"),
		rec(1, 8, "Urgent corrective maintenance, Plan replacement"),
		rec(1, 5, "Preventive maintenance"),
	}

	entries := BuildSchedule(recs, scheduleNow)
	require.Len(t, entries, 1)
	assert.Equal(t, 8, entries[0].Priority)
	assert.Equal(t, 1, entries[0].DaysUntil)
}

func TestBuildSchedule_ActionsDedupedInOrder(t *testing.T) {
	recs := []model.Recommendation{
		rec(1, 3, "Investigate anomaly"),
		rec(1, 4, "Investigate anomaly, Plan replacement"),
		rec(1, 1, "Intensive monitoring"),
	}

	entries := BuildSchedule(recs, scheduleNow)
	require.Len(t, entries, 1)
	assert.Equal(t,
		[]string{"Investigate anomaly", "Plan replacement", "Intensive monitoring"},
		entries[0].RecommendedActions)
}

func TestScheduleEntry_ActionsSerializeAsList(t *testing.T) {
	recs := []model.Recommendation{
		rec(1, 7, "Urgent corrective maintenance, Plan replacement"),
	}

	entries := BuildSchedule(recs, scheduleNow)
	require.Len(t, entries, 1)
	assert.Equal(t,
		[]string{"Urgent corrective maintenance", "Plan replacement"},
		entries[0].RecommendedActions)

	data, err := json.Marshal(entries[0])
	require.NoError(t, err)
	assert.Contains(t, string(data),
		`"recommended_actions":["Urgent corrective maintenance","Plan replacement"]`)
}

func TestBuildSchedule_NoActionNeededExcluded(t *testing.T) {
	recs := []model.Recommendation{
		rec(1, 0, "No action needed"),
		rec(1, 3, "Investigate anomaly"),
	}

	entries := BuildSchedule(recs, scheduleNow)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"Investigate anomaly"}, entries[0].RecommendedActions)
}

func TestBuildSchedule_Durations(t *testing.T) {
	for _, tc := range []struct {
		name     string
		priority int
		action   string
		hours    float64
	}{
		{"low band monitoring", 1, "Intensive monitoring", 1},
		{"mid band preventive", 3, "Preventive maintenance", 2.5},
		{"high band corrective", 5, "Urgent corrective maintenance", 4},
		{"top band replacement and corrective", 9, "Urgent corrective maintenance, Plan replacement", 7},
		{"preventive and replacement", 6, "Schedule preventive maintenance, Plan replacement", 5.5},
	} {
		t.Run(tc.name, func(t *testing.T) {
			entries := BuildSchedule([]model.Recommendation{rec(1, tc.priority, tc.action)}, scheduleNow)
			require.Len(t, entries, 1)
			assert.Equal(t, tc.hours, entries[0].EstimatedDuration)
		})
	}
}

func TestBuildSchedule_SortedByPriorityThenID(t *testing.T) {
	recs := []model.Recommendation{
		rec(5, 3, "Preventive maintenance"),
		rec(2, 9, "Urgent corrective maintenance"),
		rec(9, 3, "Investigate anomaly"),
		rec(1, 9, "Urgent corrective maintenance"),
	}

	entries := BuildSchedule(recs, scheduleNow)
	require.Len(t, entries, 4)

	ids := make([]int, len(entries))
	for i, e := range entries {
		ids[i] = e.MachineID
	}
	assert.Equal(t, []int{1, 2, 5, 9}, ids)
	assert.Equal(t, 9, entries[0].Priority)
	assert.Equal(t, 3, entries[3].Priority)
}
