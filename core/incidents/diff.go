package incidents

import (
	"fmt"
	"strings"

	"warroom/core/store"
)

type TimelineEntry struct {
	Action  Action
	Details string
}

// diffIncident compares the requested changes with the persisted row and
// returns one entry per changed audited field. Description is not audited.
func diffIncident(cur store.Incident, in UpdateInput) []TimelineEntry {
	var out []TimelineEntry
	if in.Status != nil && *in.Status != cur.Status {
		out = append(out, TimelineEntry{
			Action:  ActionStatusChange,
			Details: fmt.Sprintf("Status changed to %s", *in.Status),
		})
	}
	if in.Severity != nil && *in.Severity != cur.Severity {
		out = append(out, TimelineEntry{
			Action:  ActionSeverityChange,
			Details: fmt.Sprintf("Severity changed from %s to %s", cur.Severity, *in.Severity),
		})
	}
	if in.AssignedTo != nil {
		next := normalizeAssignee(in.AssignedTo)
		if !sameOptional(cur.AssignedTo, next) {
			details := "Unassigned"
			if next != nil {
				details = fmt.Sprintf("Assigned to %s", *next)
			}
			out = append(out, TimelineEntry{Action: ActionAssigned, Details: details})
		}
	}
	return out
}

// normalizeAssignee maps a blank assignee to nil.
func normalizeAssignee(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func sameOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
