package recommend

import (
	"sort"
	"strings"
	"time"

	"github.com/mvasconcelos/plantpulse/internal/model"
)

// BuildSchedule turns per-row recommendations into one schedule entry per
// machine that needs attention. Machines whose highest priority is zero are
// left off the schedule.
func BuildSchedule(recs []model.Recommendation, now time.Time) []model.ScheduleEntry {
	type agg struct {
		machineType string
		priority    int
		actions     []string
		seen        map[string]bool
	}
	byMachine := make(map[int]*agg)
	var order []int

	for _, rec := range recs {
		a, ok := byMachine[rec.MachineID]
		if !ok {
			a = &agg{machineType: rec.MachineType, seen: make(map[string]bool)}
			byMachine[rec.MachineID] = a
			order = append(order, rec.MachineID)
		}
		if rec.Priority > a.priority {
			a.priority = rec.Priority
		}
		if rec.Action == NoActionNeeded {
			continue
		}
		for _, action := range strings.Split(rec.Action, ", ") {
			if !a.seen[action] {
				a.seen[action] = true
				a.actions = append(a.actions, action)
			}
		}
	}

	entries := make([]model.ScheduleEntry, 0, len(order))
	for _, id := range order {
		a := byMachine[id]
		if a.priority <= 0 {
			continue
		}
		lead := leadDays(a.priority)
		entries = append(entries, model.ScheduleEntry{
			MachineID:          id,
			MachineType:        a.machineType,
			Priority:           a.priority,
			MaintenanceDate:    now.AddDate(0, 0, lead),
			DaysUntil:          lead,
			RecommendedActions: a.actions,
			EstimatedDuration:  estimateDuration(a.priority, a.actions),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].MachineID < entries[j].MachineID
	})
	return entries
}

// leadDays maps a priority to how soon the visit must happen.
func leadDays(priority int) int {
	switch {
	case priority >= 8:
		return 1
	case priority >= 5:
		return 3
	case priority >= 3:
		return 7
	default:
		return 14
	}
}

// estimateDuration sizes the visit in hours from the priority band plus
// surcharges for the heavier kinds of work.
func estimateDuration(priority int, actions []string) float64 {
	var hours float64
	switch {
	case priority >= 8:
		hours = 4
	case priority >= 5:
		hours = 3
	case priority >= 3:
		hours = 2
	default:
		hours = 1
	}
	joined := strings.ToLower(strings.Join(actions, " "))
	if strings.Contains(joined, "replacement") {
		hours += 2
	}
	if strings.Contains(joined, "corrective") {
		hours += 1
	}
	if strings.Contains(joined, "preventive") {
		hours += 0.5
	}
	return hours
}
