package domain

import "strings"

// POStatus is a purchase order lifecycle state.
type POStatus string

const (
	POStatusDraft           POStatus = "draft"
	POStatusPendingApproval POStatus = "pending_approval"
	POStatusApproved        POStatus = "approved"
	POStatusSent            POStatus = "sent"
	POStatusReceived        POStatus = "received"
	POStatusCancelled       POStatus = "cancelled"
)

var poStatusLabels = map[POStatus]string{
	POStatusDraft:           "Draft",
	POStatusPendingApproval: "Pending Approval",
	POStatusApproved:        "Approved",
	POStatusSent:            "Sent",
	POStatusReceived:        "Received",
	POStatusCancelled:       "Cancelled",
}

// approval/send/receive source-state guards. cancel is the odd one out: it is
// allowed from every state except received.
var poTransitionSources = map[string][]POStatus{
	"approve": {POStatusDraft, POStatusPendingApproval},
	"send":    {POStatusApproved},
	"receive": {POStatusSent},
	"update":  {POStatusDraft},
	"submit":  {POStatusDraft},
}

// Label returns a human-readable label for a PO status.
func (s POStatus) Label() string {
	if label, ok := poStatusLabels[s]; ok {
		return label
	}
	return "Draft"
}

// ParsePOStatus returns the status for a given label or raw value
// (case-insensitive).
func ParsePOStatus(value string) (POStatus, bool) {
	normalized := POStatus(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := poStatusLabels[normalized]; ok {
		return normalized, true
	}
	return "", false
}

// CanTransition reports whether the named action is allowed from the current
// status. Disallowed transitions must never mutate the order.
func (s POStatus) CanTransition(action string) bool {
	if action == "cancel" {
		return s != POStatusReceived
	}
	sources, ok := poTransitionSources[action]
	if !ok {
		return false
	}
	for _, src := range sources {
		if s == src {
			return true
		}
	}
	return false
}
