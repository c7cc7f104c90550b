package model

import "time"

const (
	DispatcherProducts   = "products"
	DispatcherCloneQueue = "clone_queue"
	DispatcherManual     = "manual"
)

// DeliveryAttempt is one send to one group, appended to the ClickHouse audit log.
type DeliveryAttempt struct {
	Dispatcher  string    `db:"dispatcher"   json:"dispatcher"`
	ItemID      string    `db:"item_id"      json:"item_id"`
	GroupID     string    `db:"group_id"     json:"group_id"`
	Success     bool      `db:"success"      json:"success"`
	Error       string    `db:"error"        json:"error,omitempty"`
	AttemptedAt time.Time `db:"attempted_at" json:"attempted_at"`
}

// GroupResult is the per-group outcome returned by a manual send.
type GroupResult struct {
	GroupID string `json:"grupo"`
	Success bool   `json:"sucesso"`
	Error   string `json:"erro,omitempty"`
}
