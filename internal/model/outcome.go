package model

import "time"

type NotificationKind string

const (
	KindStatus       NotificationKind = "status"
	KindTracking     NotificationKind = "tracking"
	KindCustomerNote NotificationKind = "customer_note"
)

type OutcomeStatus string

const (
	OutcomeSent    OutcomeStatus = "sent"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Outcome is the result of one pipeline execution.
type Outcome struct {
	ID        string           `json:"id"`
	OrderID   string           `json:"order_id"`
	Kind      NotificationKind `json:"kind"`
	Status    OutcomeStatus    `json:"status"`
	Reason    string           `json:"reason,omitempty"`
	Phone     string           `json:"phone,omitempty"`
	Message   string           `json:"message,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
