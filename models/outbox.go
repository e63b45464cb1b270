package models

import "time"

type TaskKind string

const (
	TaskConfirm TaskKind = "confirm" // auto-confirm after AUTHORIZED
	TaskSettle  TaskKind = "settle"  // payouts + fiscal receipt after CONFIRMED
)

// OutboxTask is a persisted unit of post-transition work. Webhook handling
// only enqueues; a background runner drains due tasks with backoff, so a
// locally failed side effect is retried instead of silently lost.
type OutboxTask struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PaymentID string   `gorm:"size:32;not null;index:ix_outbox_payment_kind,priority:1" json:"payment_id"`
	Kind      TaskKind `gorm:"size:16;not null;index:ix_outbox_payment_kind,priority:2" json:"kind"`

	Attempts  int        `gorm:"default:0" json:"attempts"`
	NextRunAt time.Time  `gorm:"index" json:"next_run_at"`
	LastError string     `gorm:"size:500" json:"last_error"`
	DoneAt    *time.Time `json:"done_at"`
}

// TableName overrides the table name
func (OutboxTask) TableName() string {
	return "outbox_tasks"
}
