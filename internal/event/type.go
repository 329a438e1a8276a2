package event

import "time"

const PolicyLifecycleQueue = "policy_lifecycle_events"

type LifecycleEventType string

const (
	EventPolicyIssued      LifecycleEventType = "policy_issued"
	EventSessionIneligible LifecycleEventType = "session_ineligible"
	EventReviewBlocked     LifecycleEventType = "review_blocked"
	EventStageFailed       LifecycleEventType = "stage_failed"
)

// PolicyLifecycleEvent is the message published when a session reaches a
// terminal state. Downstream services (notification, billing) consume it.
type PolicyLifecycleEvent struct {
	EventType     LifecycleEventType `json:"event_type"`
	SessionID     string             `json:"session_id"`
	QuoteNumber   int64              `json:"quote_number,omitempty"`
	PolicyNumber  string             `json:"policy_number,omitempty"`
	Stage         string             `json:"stage,omitempty"`
	Reason        string             `json:"reason,omitempty"`
	CorrelationID string             `json:"correlation_id,omitempty"`
	OccurredAt    time.Time          `json:"occurred_at"`
}
